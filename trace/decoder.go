package trace

import "github.com/pdonahue-ventana/riscv-trace-decoder/riscv"

// Decoder is the top-level entry point: it owns one trace stream's State,
// decode cache and output sinks, and turns a sequence of te_inst Packets
// into AdvancePC/Element notifications. It is grounded structurally on the
// teacher's ptm.Decoder (now folded into this package): one constructor
// pair (plain / with-logger), a settable sink, a single packet-processing
// entry point, and a PrintStats companion.
type Decoder struct {
	state    *State
	cache    *riscv.DecodeCache
	proc     *PacketProcessor
	stats    Stats
	sink     OutputSink
	elements ElementSink
	logger   Logger
}

// NewDecoder builds a Decoder over oracle using the default discovery
// geometry (DefaultDiscoveryResponse) and a NoOpLogger, suitable when the
// caller has no out-of-band discovery response and no interest in debug
// tracing.
func NewDecoder(oracle riscv.InstructionOracle) (*Decoder, error) {
	return NewDecoderWithLogger(oracle, DefaultDiscoveryResponse(), NewNoOpLogger())
}

// NewDecoderWithLogger builds a Decoder over oracle using the given
// discovery geometry and logger. discovery.CallCounterWidth is validated
// against MaxCallDepth; every other field is taken as-is.
func NewDecoderWithLogger(oracle riscv.InstructionOracle, discovery DiscoveryResponse, log Logger) (*Decoder, error) {
	state, err := newState(discovery)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = NewNoOpLogger()
	}

	d := &Decoder{state: state, logger: log}
	d.cache = riscv.NewDecodeCache(oracle)

	wrapped := wrapLogger(log)
	steps := newStepEngine(d.cache, sinkFunc(d.advance), &d.stats, wrapped)
	follower := newFollower(steps, d.cache)
	d.proc = newPacketProcessor(state, d.cache, steps, follower, elementFunc(d.notify), wrapped, &d.stats)
	return d, nil
}

// sinkFunc/elementFunc let the Decoder hand itself to its own sub-objects as
// an OutputSink/ElementSink without exposing AdvancePC/Notify on its public
// API (callers interact only through SetSink/SetElementSink).
type sinkFunc func(oldPC, newPC riscv.Address, instr riscv.DecodedInstruction)

func (f sinkFunc) AdvancePC(oldPC, newPC riscv.Address, instr riscv.DecodedInstruction) { f(oldPC, newPC, instr) }

type elementFunc func(e Element)

func (f elementFunc) Notify(e Element) { f(e) }

func (d *Decoder) advance(oldPC, newPC riscv.Address, instr riscv.DecodedInstruction) {
	if d.sink != nil {
		d.sink.AdvancePC(oldPC, newPC, instr)
	}
}

func (d *Decoder) notify(e Element) {
	if d.elements != nil {
		d.elements.Notify(e)
	}
}

// SetSink installs the OutputSink that receives AdvancePC notifications for
// every retired instruction. It may be changed at any time, including
// mid-trace.
func (d *Decoder) SetSink(sink OutputSink) { d.sink = sink }

// SetElementSink installs the optional ElementSink that receives typed
// trace-level notifications (trace-on, address ranges, exceptions,
// end-of-trace). It may be nil.
func (d *Decoder) SetElementSink(sink ElementSink) { d.elements = sink }

// ProcessPacket applies one te_inst packet to the decoder's state, per
// spec.md §4.5. A non-nil error means the packet stream and the decoder's
// reconstructed state have diverged in a way the protocol does not define
// recovery for (see DecodeError); the Decoder should not be reused for this
// trace stream afterwards.
func (d *Decoder) ProcessPacket(pkt Packet) error {
	return d.proc.Process(pkt)
}

// Stats returns a snapshot of the run-time counters accumulated so far.
func (d *Decoder) Stats() Stats { return d.stats }

// CacheStats returns a snapshot of the underlying decode cache's hit-rate
// counters.
func (d *Decoder) CacheStats() riscv.CacheStats { return d.cache.Stats }

// State exposes the decoder's mutable State for callers that need to
// inspect PC / return-stack / predictor state between packets (e.g. test
// assertions, or a CLI's --verbose dump). Callers must not mutate the
// returned State.
func (d *Decoder) State() *State { return d.state }
