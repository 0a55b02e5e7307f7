package trace

import (
	"testing"

	"github.com/pdonahue-ventana/riscv-trace-decoder/riscv"
)

func branchInstr(pc riscv.Address) riscv.DecodedInstruction {
	return riscv.DecodedInstruction{PC: pc, Op: riscv.OpBeq}
}

func TestPredictorResolveFromBranchMap(t *testing.T) {
	p := NewPredictor(4)
	// BranchMap wire convention: bit=0 means taken.
	p.FoldSingleBit(false) // taken
	p.FoldSingleBit(true)  // not-taken

	taken, err := p.Resolve(branchInstr(0x1000), false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !taken {
		t.Error("first branch should resolve taken")
	}

	taken, err = p.Resolve(branchInstr(0x1004), false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if taken {
		t.Error("second branch should resolve not-taken")
	}

	if p.Branches != 0 {
		t.Errorf("Branches = %d, want 0", p.Branches)
	}
}

func TestPredictorResolveDepleted(t *testing.T) {
	p := NewPredictor(4)
	if _, err := p.Resolve(branchInstr(0x1000), false); err == nil {
		t.Error("Resolve() with Branches == 0 should have returned an error")
	}
}

func TestPredictorCorrectPredictionsUsesTable(t *testing.T) {
	p := NewPredictor(4)
	p.CorrectPredictions = 1
	p.Branches = 1

	// Table starts weakly-not-taken everywhere, so the prediction is
	// not-taken, and consuming one correct-prediction credit must agree.
	taken, err := p.Resolve(branchInstr(0x2000), true)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if taken {
		t.Error("weakly-not-taken table entry predicts not-taken")
	}
	if p.CorrectPredictions != 0 {
		t.Errorf("CorrectPredictions = %d, want 0", p.CorrectPredictions)
	}
}

func TestPredictorMissPredictCarryInInvertsPrediction(t *testing.T) {
	p := NewPredictor(4)
	p.Branches = 1
	p.MissPredictCarryIn = true

	// Table predicts not-taken (fresh table); a miss-predict carry-in means
	// the actual outcome is the opposite of the prediction.
	taken, err := p.Resolve(branchInstr(0x3000), true)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !taken {
		t.Error("miss-predict carry-in should invert the not-taken prediction to taken")
	}
	if p.MissPredictCarryIn {
		t.Error("MissPredictCarryIn should be consumed")
	}
}

func TestPredictorUseBmapFirstTakesPriorityOverCorrectPredictions(t *testing.T) {
	p := NewPredictor(4)
	p.CorrectPredictions = 1
	p.UseBmapFirst = true
	p.FoldMap(0, 1) // bit 0 = taken, merged in (no carry-in active); sets Branches = 1

	taken, err := p.Resolve(branchInstr(0x4000), false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !taken {
		t.Error("UseBmapFirst should take priority and read the branch map bit")
	}
	if p.UseBmapFirst {
		t.Error("UseBmapFirst should be consumed")
	}
	if p.CorrectPredictions != 1 {
		t.Error("CorrectPredictions should not be touched when UseBmapFirst fires")
	}
}

func TestFoldMapReplacesOnCarryIn(t *testing.T) {
	p := NewPredictor(4)
	p.BranchMap = 0xFF
	p.Branches = 3
	p.MissPredictCarryIn = true

	p.FoldMap(0x5, 2)

	if p.BranchMap != 0x5 {
		t.Errorf("BranchMap = %#x, want 0x5 (replaced, not merged)", p.BranchMap)
	}
	if p.Branches != 5 {
		t.Errorf("Branches = %d, want 5", p.Branches)
	}
}

func TestFoldMapMergesWithoutCarryIn(t *testing.T) {
	p := NewPredictor(4)
	p.BranchMap = 0x1
	p.Branches = 1

	p.FoldMap(0x2, 2)

	// 0x2 shifted left by the current Branches (1) and or'd in: 0x1 | (0x2<<1) = 0x5
	if p.BranchMap != 0x5 {
		t.Errorf("BranchMap = %#x, want 0x5", p.BranchMap)
	}
	if p.Branches != 3 {
		t.Errorf("Branches = %d, want 3", p.Branches)
	}
}
