package trace

import "github.com/pdonahue-ventana/riscv-trace-decoder/riscv"

// Default geometry used when a caller does not have real discovery-response
// values to hand (e.g. test fixtures, or tooling that has not performed the
// out-of-scope discovery handshake). These mirror the reference
// implementation's default_discovery_response fake-up values.
const (
	DefaultCallCounterWidth     uint8 = 7 // return stack holds up to 512 entries
	DefaultIaddressLSB          uint8 = 1 // compressed instructions supported
	DefaultJumpTargetCacheBits  uint8 = 10
	DefaultBranchPredictionBits uint8 = 10
)

// DefaultDiscoveryResponse returns the geometry the reference implementation
// fakes up when it has no real discovery handshake to draw on.
func DefaultDiscoveryResponse() DiscoveryResponse {
	return DiscoveryResponse{
		CallCounterWidth:     DefaultCallCounterWidth,
		IaddressLSB:          DefaultIaddressLSB,
		JumpTargetCacheBits:  DefaultJumpTargetCacheBits,
		BranchPredictionBits: DefaultBranchPredictionBits,
	}
}

// State is the complete mutable state of one trace-decoder instance: the
// reconstructed program counter, the return stack, jump-target cache and
// branch predictor, and the bookkeeping flags the packet processor and
// path follower use to track where they are mid-packet. It owns its
// sub-tables exclusively; nothing outside this package mutates them
// directly. A State is specific to exactly one trace stream and is not
// safe for concurrent use, matching spec.md §5.
type State struct {
	PC               riscv.Address
	LastPC           riscv.Address
	LastSentAddr     riscv.Address
	StopAtLastBranch bool
	InferredAddress  bool
	StartOfTrace     bool
	NonSyncPackets   int
	Privilege        uint8

	Options   Options
	Discovery DiscoveryResponse

	ReturnStack *ReturnStack
	JTC         *JumpTargetCache
	Predictor   *Predictor

	// LastInstr is the most recently decoded instruction, handed to the
	// decode cache as scratch on the next Get call: when the next request
	// is for the same address (the common case of re-examining the
	// instruction a step just landed on), the cache is not consulted at
	// all, mirroring the reference implementation's single "current
	// instruction" pointer.
	LastInstr *riscv.DecodedInstruction
}

// newState builds a freshly-opened State per spec.md §6's Open() contract:
// pc/last_pc/last_sent_addr seeded to the sentinel, start_of_trace set,
// every option false, geometry taken from discovery, and the predictor
// table seeded weakly-not-taken.
func newState(discovery DiscoveryResponse) (*State, error) {
	retStack, err := NewReturnStack(discovery.CallCounterWidth)
	if err != nil {
		return nil, err
	}
	return &State{
		PC:           riscv.SentinelAddress,
		LastPC:       riscv.SentinelAddress,
		LastSentAddr: riscv.SentinelAddress,
		StartOfTrace: true,
		Discovery:    discovery,
		ReturnStack:  retStack,
		JTC:          NewJumpTargetCache(discovery.JumpTargetCacheBits),
		Predictor:    NewPredictor(discovery.BranchPredictionBits),
	}, nil
}

// CallCounter reports the number of entries currently on the return stack,
// matching the reference implementation's call_counter field.
func (s *State) CallCounter() int { return s.ReturnStack.Len() }

// fetch decodes the instruction at addr via cache, offering LastInstr as
// scratch so a request for the instruction this State just decoded (the
// common case right after a step) is satisfied without touching the
// cache, then remembers the result as the new scratch.
func (s *State) fetch(cache *riscv.DecodeCache, addr riscv.Address) (riscv.DecodedInstruction, error) {
	instr, err := cache.Get(addr, s.LastInstr)
	if err != nil {
		return riscv.DecodedInstruction{}, err
	}
	s.LastInstr = &instr
	return instr, nil
}
