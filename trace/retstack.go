package trace

import "github.com/pdonahue-ventana/riscv-trace-decoder/riscv"

// MaxCallDepth bounds how large a return stack this implementation will
// allocate, regardless of what a call_counter_width would otherwise imply.
// The reference implementation asserts call_counter_max <= TE_MAX_CALL_DEPTH
// but never validates it at construction (spec.md Open Question (c)); here
// NewReturnStack validates it, so NewDecoderWithLogger rejects a bad width
// before any packet is processed.
const MaxCallDepth = 1 << 16

// ReturnStack is a bounded LIFO of return addresses, sized to
// 2^(call_counter_width+2) entries at construction. It is grounded on the
// reference decoder's return_stack[]/call_counter pair and on the teacher's
// internal/common/ret_stack.go AddrReturnStack, but implements the
// protocol's specific eviction rule: pushing onto a full stack drops the
// oldest entry by shifting every remaining entry down one slot, rather
// than wrapping a circular head index. The two are behaviorally
// equivalent; the shift keeps index 0 always the oldest surviving call,
// which is what the reference implementation's diagnostics assume.
type ReturnStack struct {
	entries []riscv.Address
	depth   int
}

// NewReturnStack allocates a return stack with depth = 2^(callCounterWidth+2).
func NewReturnStack(callCounterWidth uint8) (*ReturnStack, error) {
	depth := 1 << (uint(callCounterWidth) + 2)
	if depth > MaxCallDepth {
		return nil, fatal(FatalCallDepthExceeded, nil,
			"configured call_counter_width would require a return stack deeper than MaxCallDepth")
	}
	return &ReturnStack{entries: make([]riscv.Address, depth)}, nil
}

// Len reports the number of entries currently on the stack (the protocol's
// call_counter).
func (s *ReturnStack) Len() int { return s.depth }

// Push adds linkAddr to the top of the stack, dropping the oldest entry if
// the stack is already at capacity.
func (s *ReturnStack) Push(linkAddr riscv.Address) {
	if s.depth == len(s.entries) {
		copy(s.entries, s.entries[1:])
		s.depth--
	}
	s.entries[s.depth] = linkAddr
	s.depth++
}

// Pop removes and returns the most recently pushed address. The caller
// must not call Pop when Len() == 0.
func (s *ReturnStack) Pop() riscv.Address {
	s.depth--
	return s.entries[s.depth]
}

// Reset empties the stack without reallocating it.
func (s *ReturnStack) Reset() { s.depth = 0 }
