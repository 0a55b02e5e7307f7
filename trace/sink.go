package trace

import (
	"fmt"

	"github.com/pdonahue-ventana/riscv-trace-decoder/riscv"
)

// OutputSink receives the decoder's reconstructed PC transitions. It is
// notified once per retired instruction: oldPC is the address execution
// came from (riscv.SentinelAddress for the very first notification of a
// trace stream), newPC is never the sentinel, and instr is the decoded
// instruction at newPC. This is the minimal, required sink contract
// (spec.md §4.7 / §6's advance_decoded_pc).
type OutputSink interface {
	AdvancePC(oldPC, newPC riscv.Address, instr riscv.DecodedInstruction)
}

// OutputSinkFunc adapts a plain function to an OutputSink.
type OutputSinkFunc func(oldPC, newPC riscv.Address, instr riscv.DecodedInstruction)

// AdvancePC implements OutputSink.
func (f OutputSinkFunc) AdvancePC(oldPC, newPC riscv.Address, instr riscv.DecodedInstruction) {
	f(oldPC, newPC, instr)
}

// ElementType distinguishes the kind of ElementSink notification, adapted
// from the teacher's common.GenericTraceElement/ElemType convention:
// alongside the required per-instruction AdvancePC callback, a decoder can
// optionally also be given an ElementSink to receive typed notifications
// of the trace-level events the packet processor already detects (trace
// start, exceptions, end of trace) but which spec.md's minimal sink
// contract has no event for.
type ElementType int

const (
	ElementAddrRange ElementType = iota
	ElementException
	ElementTraceOn
	ElementEOTrace
)

func (t ElementType) String() string {
	switch t {
	case ElementAddrRange:
		return "ADDR_RANGE"
	case ElementException:
		return "EXCEPTION"
	case ElementTraceOn:
		return "TRACE_ON"
	case ElementEOTrace:
		return "EO_TRACE"
	default:
		return "UNKNOWN"
	}
}

// Element is one typed trace-level notification, optionally delivered
// alongside the required per-instruction AdvancePC callback.
type Element struct {
	Type      ElementType
	StartPC   riscv.Address
	EndPC     riscv.Address
	Privilege uint8
	Reason    string
}

func (e Element) String() string {
	switch e.Type {
	case ElementAddrRange:
		return fmt.Sprintf("ADDR_RANGE: [%#x-%#x]", e.StartPC, e.EndPC)
	case ElementException:
		return fmt.Sprintf("EXCEPTION: privilege=%d pc=%#x", e.Privilege, e.StartPC)
	case ElementTraceOn:
		if e.Reason != "" {
			return fmt.Sprintf("TRACE_ON: %s", e.Reason)
		}
		return "TRACE_ON"
	case ElementEOTrace:
		return "EO_TRACE"
	default:
		return "UNKNOWN_ELEMENT"
	}
}

// ElementSink optionally receives typed trace-level Elements. A Decoder
// with no ElementSink set simply skips these notifications; AdvancePC is
// still delivered regardless.
type ElementSink interface {
	Notify(e Element)
}

// ElementSinkFunc adapts a plain function to an ElementSink.
type ElementSinkFunc func(e Element)

// Notify implements ElementSink.
func (f ElementSinkFunc) Notify(e Element) { f(e) }
