package trace

import "github.com/pdonahue-ventana/riscv-trace-decoder/riscv"

// JumpTargetCache is a direct-mapped cache of previously-seen uninferrable
// jump targets. Each target address is written into the slot given by a
// hash of that target address, and read back by a packet-supplied index. Per
// spec.md §4.4, it is never invalidated: the trace encoder guarantees it
// only ever sends a JTC-index packet after having already sent the
// corresponding address, so every index the decoder is asked to read is
// guaranteed to have been written first.
type JumpTargetCache struct {
	entries []riscv.Address
	written []bool
}

// NewJumpTargetCache allocates a cache with 2^indexBits entries.
func NewJumpTargetCache(indexBits uint8) *JumpTargetCache {
	n := 1 << indexBits
	return &JumpTargetCache{entries: make([]riscv.Address, n), written: make([]bool, n)}
}

func (j *JumpTargetCache) hash(addr riscv.Address) uint32 {
	return uint32(addr>>1) % uint32(len(j.entries))
}

// Write stores the jump target addr in the slot its own hash selects.
func (j *JumpTargetCache) Write(addr riscv.Address) {
	idx := j.hash(addr)
	j.entries[idx] = addr
	j.written[idx] = true
}

// ReadIndex resolves a jump target directly by the packet-supplied index,
// used by the format-0 jump-target-cache extension packet. The write side
// computes its own index by hashing the target address (Write, above);
// the read side trusts the packet's index outright, since the encoder is
// contractually required to have written that exact slot already (see the
// type doc comment). Indexing by the two different means is intentional,
// not a bug: spec.md Open Question (a) is about a debug-log line in the
// reference implementation that printed the packet's index on the *write*
// path where the computed hash was actually used -- a cosmetic diagnostic
// mismatch, not a functional one, and not reproduced here.
func (j *JumpTargetCache) ReadIndex(index uint32) (riscv.Address, bool) {
	if int(index) >= len(j.entries) {
		return 0, false
	}
	return j.entries[index], j.written[index]
}
