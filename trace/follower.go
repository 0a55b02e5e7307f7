package trace

import "github.com/pdonahue-ventana/riscv-trace-decoder/riscv"

// Follower drives the StepEngine, one instruction at a time, until one of
// the stop conditions from spec.md §4.6 is reached. It is grounded
// directly on the reference implementation's follow_execution_path().
type Follower struct {
	steps *StepEngine
	cache *riscv.DecodeCache
}

func newFollower(steps *StepEngine, cache *riscv.DecodeCache) *Follower {
	return &Follower{steps: steps, cache: cache}
}

func branchBit(instr riscv.DecodedInstruction) uint32 {
	if instr.IsBranch() {
		return 1
	}
	return 0
}

// Follow steps state forward until it reaches address (the packet's
// reported address) having accounted for every outstanding branch outcome,
// or until an uninferrable discontinuity short-circuits the search.
// format and updiscon are taken from the packet driving this follow (a
// logical, already-deserializer-XORed flag, per spec.md §4.6).
func (f *Follower) Follow(state *State, address riscv.Address, format Format, updiscon bool) error {
	previousAddress := state.PC

	for {
		if state.StopAtLastBranch && state.Predictor.Branches == 0 {
			instr, _ := state.fetch(f.cache, state.PC)
			return fatal(FatalStopAtLastBranchDepleted, &instr,
				"follow_execution_path: stop_at_last_branch set with branches == 0")
		}

		if state.InferredAddress {
			stopHere, err := f.steps.Step(state, previousAddress)
			if err != nil {
				return err
			}
			if stopHere {
				state.InferredAddress = false
			}
			continue
		}

		stopHere, err := f.steps.Step(state, address)
		if err != nil {
			return err
		}
		instr, err := state.fetch(f.cache, state.PC)
		if err != nil {
			return err
		}
		bit := branchBit(instr)

		if state.Predictor.Branches == 1 && instr.IsBranch() && state.StopAtLastBranch {
			// Reached the final branch: stop here, without following into
			// the next instruction, since we do not yet know whether it
			// retires.
			state.StopAtLastBranch = false
			return nil
		}

		if stopHere {
			// Reached the reported address via an uninferrable
			// discontinuity: every branch outcome except possibly the one
			// for the instruction we just landed on must already be spent.
			if state.Predictor.Branches > bit {
				return fatal(FatalUnprocessedBranches, &instr, "unprocessed branches")
			}
			return nil
		}

		if format != Format3Sync && state.PC == address && !updiscon &&
			!state.StopAtLastBranch && state.Predictor.Branches == bit {
			// All branches processed and the reported address reached, but
			// not via an uninferrable jump target. This may not be the
			// final retired instruction -- remember it and keep checking
			// on the next packet.
			state.InferredAddress = true
			return nil
		}

		if format == Format3Sync && state.PC == address && state.Predictor.Branches == bit {
			return nil
		}
	}
}
