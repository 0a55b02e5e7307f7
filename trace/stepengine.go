package trace

import "github.com/pdonahue-ventana/riscv-trace-decoder/riscv"

// StepEngine computes one instruction's PC transition at a time, applying
// the six classification rules from spec.md §4.2, and notifies an
// OutputSink of the result. It is grounded directly on the
// reference implementation's next_pc(), disseminate_pc() and
// push_return_stack()/pop_return_stack().
type StepEngine struct {
	cache  *riscv.DecodeCache
	sink   OutputSink
	stats  *Stats
	logger logger
}

func newStepEngine(cache *riscv.DecodeCache, sink OutputSink, stats *Stats, log logger) *StepEngine {
	return &StepEngine{cache: cache, sink: sink, stats: stats, logger: log}
}

// Step advances state by exactly one instruction. reportedAddress is the
// address the current packet is steering the follower towards; it is only
// consulted when the instruction at state.PC turns out to be an
// uninferrable discontinuity. Step returns stopHere=true when it resolved
// an uninferrable discontinuity by adopting reportedAddress outright
// (meaning the path follower must not keep stepping past it blindly).
func (e *StepEngine) Step(state *State, reportedAddress riscv.Address) (stopHere bool, err error) {
	thisPC := state.PC
	instr, err := state.fetch(e.cache, thisPC)
	if err != nil {
		return false, err
	}

	if instr.IsBranch() {
		e.stats.Branches++
	}

	switch {
	case instr.IsInferrableJump():
		state.PC = thisPC + riscv.Address(instr.Imm)

	case instr.IsUninferrableJump() && e.isSequentialJump(state, instr):
		state.PC, err = e.sequentialJumpTarget(state, instr)
		if err != nil {
			return false, err
		}

	case instr.IsReturnCandidate() && state.Options.ImplicitReturn && state.CallCounter() > 0:
		state.PC = state.ReturnStack.Pop()

	case instr.IsUninferrableDiscontinuity():
		if state.StopAtLastBranch {
			return false, fatal(FatalUnexpectedDiscontinuity, &instr, "unexpected uninferrable discontinuity")
		}
		state.PC = reportedAddress
		stopHere = true
		e.stats.Updiscons++

	case instr.IsBranch():
		taken, err := state.Predictor.Resolve(instr, state.Options.BranchPrediction)
		if err != nil {
			return false, err
		}
		if taken {
			state.PC = thisPC + riscv.Address(instr.Imm)
			e.stats.Taken++
		} else {
			state.PC = thisPC + riscv.Address(instr.Length)
		}

	default:
		state.PC = thisPC + riscv.Address(instr.Length)
	}

	if instr.IsCall() {
		e.pushReturnStack(state, thisPC, instr)
		e.stats.Calls++
	}

	state.LastPC = thisPC
	if err := e.disseminate(state); err != nil {
		return false, err
	}

	return stopHere, nil
}

// isSequentialJump reports whether instr (an uninferrable jump at
// state.PC) is fed by an auipc/lui/c.lui at state.LastPC targeting the
// same register, per spec.md §4.2 rule (2).
func (e *StepEngine) isSequentialJump(state *State, instr riscv.DecodedInstruction) bool {
	if state.LastPC == riscv.SentinelAddress {
		return false
	}
	prev, err := state.fetch(e.cache, state.LastPC)
	if err != nil {
		return false
	}
	return prev.IsSequentialJumpBase() && instr.Rs1 == prev.Rd
}

func (e *StepEngine) sequentialJumpTarget(state *State, instr riscv.DecodedInstruction) (riscv.Address, error) {
	prev, err := state.fetch(e.cache, state.LastPC)
	if err != nil {
		return 0, err
	}
	var target riscv.Address
	if prev.Op == riscv.OpAuipc {
		target = prev.PC
	}
	target += riscv.Address(prev.Imm)
	if instr.Op == riscv.OpJalr {
		target += riscv.Address(instr.Imm)
	}
	return target, nil
}

func (e *StepEngine) pushReturnStack(state *State, callPC riscv.Address, callInstr riscv.DecodedInstruction) {
	if !state.Options.ImplicitReturn {
		return
	}
	linkReg := callPC + riscv.Address(callInstr.Length)
	state.ReturnStack.Push(linkReg)
	if e.logger != nil {
		e.logger.DebugPC(linkReg, "call-stack: pushed [%3d]", state.ReturnStack.Len()-1)
	}
}

// disseminate notifies the output sink of the pc transition that just
// happened: state.LastPC (the old PC) -> state.PC (the new PC). It is the
// single control point the reference implementation's disseminate_pc()
// comment describes: nothing calculates the PC here, it only reports it.
func (e *StepEngine) disseminate(state *State) error {
	instr, err := state.fetch(e.cache, state.PC)
	if err != nil {
		return err
	}
	if e.logger != nil {
		e.logger.DebugPC(state.PC, "set_pc <- %#x: %s", state.LastPC, instr.Disasm)
	}
	if e.sink != nil {
		e.sink.AdvancePC(state.LastPC, state.PC, instr)
	}
	e.stats.Instructions++
	return nil
}
