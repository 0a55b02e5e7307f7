package riscv

import "fmt"

// InstructionOracle supplies the raw bits of the instruction at a given
// address. The decoder never fetches or disassembles instructions itself;
// it only ever asks an oracle for them, and caches the answer. Implementors
// typically wrap a flat memory image or a live target connection.
//
// Fetch returns the raw instruction word (right-justified) and its length
// in bytes, which must be 2 (a compressed instruction) or 4.
type InstructionOracle interface {
	Fetch(address Address) (raw uint32, length int, err error)
}

// OracleFunc adapts a plain function to an InstructionOracle, the way
// http.HandlerFunc adapts a function to http.Handler.
type OracleFunc func(address Address) (uint32, int, error)

// Fetch implements InstructionOracle.
func (f OracleFunc) Fetch(address Address) (uint32, int, error) { return f(address) }

// CacheStats tracks hit/miss behavior of a DecodeCache, mirroring the
// original decoder's num_gets/num_same/num_hits counters.
type CacheStats struct {
	Gets int // total calls to Get
	Same int // requests satisfied by the caller's own scratch instruction
	Hits int // requests satisfied by the direct-mapped cache
}

// cacheSlots is the number of direct-mapped slots in the decode cache. It
// has no protocol significance; it only trades memory for hit rate.
const cacheSlots = 1024

// DecodeCache is a direct-mapped cache of decoded instructions in front of
// an InstructionOracle + Decoder pair, grounded on the original
// implementation's get_instr(): a cache slot is simply overwritten on a
// collision, there is no eviction policy or invalidation, and a fast path
// short-circuits entirely when the caller already holds the instruction it
// is asking for.
type DecodeCache struct {
	oracle  InstructionOracle
	decoder *Decoder
	slots   [cacheSlots]DecodedInstruction
	valid   [cacheSlots]bool
	Stats   CacheStats
}

// NewDecodeCache builds a decode cache fronting the given oracle.
func NewDecodeCache(oracle InstructionOracle) *DecodeCache {
	return &DecodeCache{oracle: oracle, decoder: NewDecoder()}
}

func slotFor(address Address) int {
	return int((address >> 1) % cacheSlots)
}

// Get returns the decoded instruction at address, consulting scratch (the
// caller's last-used instruction) first, then the cache, then finally
// falling through to the oracle and caching the result.
func (c *DecodeCache) Get(address Address, scratch *DecodedInstruction) (DecodedInstruction, error) {
	if address == SentinelAddress {
		return DecodedInstruction{}, fmt.Errorf("riscv: cannot decode sentinel address")
	}

	c.Stats.Gets++

	if scratch != nil && scratch.PC == address {
		c.Stats.Same++
		return *scratch, nil
	}

	slot := slotFor(address)
	if c.valid[slot] && c.slots[slot].PC == address {
		c.Stats.Hits++
		return c.slots[slot], nil
	}

	raw, length, err := c.oracle.Fetch(address)
	if err != nil {
		return DecodedInstruction{}, fmt.Errorf("riscv: fetch %#x: %w", address, err)
	}
	instr, err := c.decoder.Decode(address, raw, length)
	if err != nil {
		return DecodedInstruction{}, err
	}

	c.slots[slot] = instr
	c.valid[slot] = true
	return instr, nil
}
