package trace

import "github.com/pdonahue-ventana/riscv-trace-decoder/riscv"

// bpredState is a 2-bit saturating counter: bit 1 (the MSB) is the
// predicted direction (1 = taken), bit 0 records the counter's low bit.
// This is a standard 2-bit saturating branch predictor, as described by
// spec.md §4.4 and grounded on the reference decoder's
// te_next_bpred_state()/is_taken_branch() pair.
type bpredState uint8

const (
	bpredStronglyNotTaken bpredState = 0
	bpredWeaklyNotTaken   bpredState = 1
	bpredWeaklyTaken      bpredState = 2
	bpredStronglyTaken    bpredState = 3
)

func (s bpredState) predicted() bool { return s&0x2 != 0 }

func nextBpredState(old bpredState, taken bool) bpredState {
	if taken {
		if old == bpredStronglyTaken {
			return bpredStronglyTaken
		}
		return old + 1
	}
	if old == bpredStronglyNotTaken {
		return bpredStronglyNotTaken
	}
	return old - 1
}

// Predictor holds the per-trace-stream branch-outcome state: the branch
// map bit vector, the branch-count-vs-branch-map/carry-in/predictor-table
// source-selection flags, and the direct-mapped 2-bit predictor table
// itself. It is grounded directly on the reference decoder's
// is_taken_branch(), bit for bit.
type Predictor struct {
	table []bpredState // direct-mapped, 2^BranchPredictionBits entries

	// BranchMap is the packed branch-outcome bit vector. Bit 0 is the next
	// outcome to consume; the wire convention is inverted (0 = taken,
	// 1 = not-taken), matching spec.md §3/§4.4.
	BranchMap uint32
	// Branches is the count of outstanding branch outcomes the packet
	// stream has committed to (either via BranchMap bits or a predictor
	// correct-predictions count).
	Branches uint32

	UseBmapFirst         bool // next outcome must come from BranchMap even if correct_predictions > 0
	MissPredictCarryIn   bool // next outcome is a predictor miss, carried in from the previous packet
	MissPredictCarryOut  bool // this packet left a predictor miss for the *next* packet to carry in
	CorrectPredictions   uint32
	bpredSerial          uint32
}

// NewPredictor allocates a predictor table with 2^tableBits entries,
// initialized to weakly-not-taken, matching Open()'s required seeding.
func NewPredictor(tableBits uint8) *Predictor {
	p := &Predictor{table: make([]bpredState, 1<<tableBits)}
	for i := range p.table {
		p.table[i] = bpredWeaklyNotTaken
	}
	return p
}

func (p *Predictor) index(pc riscv.Address) uint32 {
	return uint32(pc>>1) % uint32(len(p.table))
}

// Resolve determines whether the branch at pc, enabled for prediction via
// usePrediction, is taken. It consumes exactly one outcome source per the
// protocol's strict mutually-exclusive priority (use-bmap-first, then
// miss-predict carry-in, then a correct-predictions credit, then finally
// the branch map itself), decrements Branches, and -- when usePrediction is
// set -- updates the predictor table. It returns an error if Branches is
// already zero, per spec.md's "branch map depleted" fatal condition.
func (p *Predictor) Resolve(instr riscv.DecodedInstruction, usePrediction bool) (bool, error) {
	if p.Branches == 0 {
		return false, fatal(FatalBranchMapDepleted, &instr, "cannot resolve branch outcome")
	}
	p.Branches--

	var idx uint32
	var predicted bool
	if usePrediction {
		idx = p.index(instr.PC)
		predicted = p.table[idx].predicted()
	}

	var taken bool
	switch {
	case p.UseBmapFirst:
		taken = p.BranchMap&1 == 0
		p.BranchMap >>= 1
		p.UseBmapFirst = false
	case p.MissPredictCarryIn:
		taken = !predicted
		p.MissPredictCarryIn = false
	case p.CorrectPredictions > 0:
		taken = predicted
		p.CorrectPredictions--
	default:
		taken = p.BranchMap&1 == 0
		p.BranchMap >>= 1
	}

	if usePrediction {
		p.table[idx] = nextBpredState(p.table[idx], taken)
		p.bpredSerial++
	}

	return taken, nil
}

// FoldSingleBit folds one raw wire-convention branch-outcome bit (as
// carried by a sync packet's `branch` field) into the branch map at the
// current Branches offset, and increments Branches by one. This mirrors
// the reference decoder's `branch_map |= (branch << branches); branches++`.
func (p *Predictor) FoldSingleBit(bit bool) {
	v := uint32(0)
	if bit {
		v = 1
	}
	p.BranchMap |= v << p.Branches
	p.Branches++
}

// FoldMap folds a multi-bit packed branch map (as carried by a format-1
// packet, or a format-0 jump-target-cache extension packet) into the
// predictor's branch map. If a miss-predict is being carried in from the
// previous packet, the incoming bits replace the branch map outright
// rather than being shifted in alongside it, matching the reference
// decoder's `if (miss_predict_carry_in) branch_map = bits; else
// branch_map |= bits << branches;`.
func (p *Predictor) FoldMap(bits uint32, count uint32) {
	if p.MissPredictCarryIn {
		p.BranchMap = bits
	} else {
		p.BranchMap |= bits << p.Branches
	}
	p.Branches += count
}
