package trace

import (
	"fmt"

	"github.com/pdonahue-ventana/riscv-trace-decoder/riscv"
)

// FatalCode enumerates the contradictions this decoder treats as fatal
// protocol violations. There are no "soft" error codes: per the protocol's
// error taxonomy, every one of these means the packet stream and the
// decoder's reconstructed state have diverged, and no recovery is
// attempted. This replaces the reference implementation's exit(1): the
// first five codes correspond to its unrecoverable_error() call sites, and
// FatalUnhandledQualStatus, FatalCallDepthExceeded and FatalInvalidJtcIndex
// cover conditions it does not check.
type FatalCode int

const (
	// FatalBranchMapDepleted: a branch instruction was reached but the
	// branch count had already reached zero.
	FatalBranchMapDepleted FatalCode = iota
	// FatalUnprocessedBranches: the path follower stopped with branch
	// outcomes still pending that the packet claimed were resolved.
	FatalUnprocessedBranches
	// FatalUnexpectedDiscontinuity: an uninferrable discontinuity was
	// reached while stop_at_last_branch was set, which the protocol
	// defines as impossible.
	FatalUnexpectedDiscontinuity
	// FatalNonSyncBeforeSync: a non-format-3 packet arrived before the
	// first format-3 synchronization packet of a trace.
	FatalNonSyncBeforeSync
	// FatalStopAtLastBranchDepleted: the path follower's loop invariant
	// (stop_at_last_branch implies branches > 0) was violated.
	FatalStopAtLastBranchDepleted
	// FatalUnhandledQualStatus: a support packet reported a qualification
	// status this decoder does not define behavior for (QualStatusLost).
	FatalUnhandledQualStatus
	// FatalCallDepthExceeded: the configured call-counter width would
	// produce a return stack larger than this implementation supports.
	FatalCallDepthExceeded
	// FatalInvalidJtcIndex: a jump-target-cache index extension packet
	// referenced an index outside the configured table, or a slot that was
	// never written.
	FatalInvalidJtcIndex
)

func (c FatalCode) String() string {
	switch c {
	case FatalBranchMapDepleted:
		return "branch map depleted"
	case FatalUnprocessedBranches:
		return "unprocessed branches remain at stop"
	case FatalUnexpectedDiscontinuity:
		return "unexpected uninferrable discontinuity"
	case FatalNonSyncBeforeSync:
		return "non-synchronization packet before start of trace"
	case FatalStopAtLastBranchDepleted:
		return "stop-at-last-branch set with no branches remaining"
	case FatalUnhandledQualStatus:
		return "unhandled trace qualification status"
	case FatalCallDepthExceeded:
		return "call counter width exceeds supported call depth"
	case FatalInvalidJtcIndex:
		return "invalid jump-target-cache index"
	default:
		return "unknown fatal condition"
	}
}

// DecodeError is returned for every fatal condition the decoder detects. It
// is always a sign that the packet stream and decoder state have diverged
// in a way the protocol does not define recovery for; callers should treat
// it as terminal for the trace stream (though, unlike the reference
// implementation, not for the process).
type DecodeError struct {
	Code    FatalCode
	PC      riscv.Address // SentinelAddress if not applicable
	Disasm  string        // instruction being processed, if known
	Message string
}

func (e *DecodeError) Error() string {
	if e.PC != riscv.SentinelAddress && e.Disasm != "" {
		return fmt.Sprintf("riscv-trace: %s: %s (at %#x: %s)", e.Code, e.Message, e.PC, e.Disasm)
	}
	return fmt.Sprintf("riscv-trace: %s: %s", e.Code, e.Message)
}

func fatal(code FatalCode, instr *riscv.DecodedInstruction, message string) error {
	err := &DecodeError{Code: code, PC: riscv.SentinelAddress, Message: message}
	if instr != nil {
		err.PC = instr.PC
		err.Disasm = instr.Disasm
	}
	return err
}
