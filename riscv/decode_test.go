package riscv

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestDecode32(t *testing.T) {
	tests := []struct {
		name string
		raw  uint32
		want DecodedInstruction
	}{
		{
			name: "jal ra, +16",
			raw:  0x0100_00EF, // jal x1, 16
			want: DecodedInstruction{Op: OpJal, Rd: 1, Imm: 16},
		},
		{
			name: "jalr x0, x1, 0 (plain return)",
			raw:  0x0000_8067, // jalr x0, x1, 0
			want: DecodedInstruction{Op: OpJalr, Rd: 0, Rs1: 1, Imm: 0},
		},
		{
			name: "beq x1, x2, +8",
			raw:  0x0020_8463, // beq x1, x2, 8
			want: DecodedInstruction{Op: OpBeq, Rs1: 1, Imm: 8},
		},
		{
			name: "auipc x5, 0x1000",
			raw:  0x0100_0297, // auipc x5, 0x1000
			want: DecodedInstruction{Op: OpAuipc, Rd: 5, Imm: 0x1000000},
		},
		{
			name: "mret",
			raw:  0x3020_0073,
			want: DecodedInstruction{Op: OpMret},
		},
	}

	d := NewDecoder()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.Decode(0x1000, tt.raw, 4)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			tt.want.PC = 0x1000
			tt.want.Length = 4
			if diff := cmp.Diff(tt.want, got, cmpopts.IgnoreFields(DecodedInstruction{}, "Disasm")); diff != "" {
				t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecode16(t *testing.T) {
	tests := []struct {
		name string
		raw  uint16
		want DecodedInstruction
	}{
		{
			name: "c.jr x1",
			raw:  0x8082,
			want: DecodedInstruction{Op: OpCJr, Rs1: 1},
		},
		{
			name: "c.jalr x1",
			raw:  0x9082,
			want: DecodedInstruction{Op: OpCJalr, Rs1: 1, Rd: 1},
		},
		{
			name: "c.j -2",
			raw:  0xBFFD,
			want: DecodedInstruction{Op: OpCJ, Imm: -2},
		},
		{
			name: "c.beqz x8, 0",
			raw:  0xC001,
			want: DecodedInstruction{Op: OpCBeqz, Rs1: 8, Imm: 0},
		},
	}

	d := NewDecoder()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.Decode(0x2000, uint32(tt.raw), 2)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			tt.want.PC = 0x2000
			tt.want.Length = 2
			if diff := cmp.Diff(tt.want, got, cmpopts.IgnoreFields(DecodedInstruction{}, "Disasm")); diff != "" {
				t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeInvalidLength(t *testing.T) {
	d := NewDecoder()
	if _, err := d.Decode(0, 0, 3); err == nil {
		t.Error("Decode() with length 3 should have returned an error")
	}
}

func TestClassification(t *testing.T) {
	beq := DecodedInstruction{Op: OpBeq}
	if !beq.IsBranch() {
		t.Error("beq should be a branch")
	}
	if beq.IsInferrableJump() || beq.IsUninferrableJump() {
		t.Error("beq should not be any kind of jump")
	}

	jalrRet := DecodedInstruction{Op: OpJalr, Rs1: 1, Rd: 0}
	if !jalrRet.IsReturnCandidate() {
		t.Error("jalr x0, x1, 0 should be a return candidate")
	}
	if !jalrRet.IsUninferrableJump() {
		t.Error("jalr x0, x1, 0 should be uninferrable (rs1 != x0)")
	}

	jalrZero := DecodedInstruction{Op: OpJalr, Rs1: 0}
	if !jalrZero.IsInferrableJump() {
		t.Error("jalr with rs1=x0 should be inferrable")
	}

	call := DecodedInstruction{Op: OpJal, Rd: 1}
	if !call.IsCall() {
		t.Error("jal x1, ... should be a call")
	}
	tailCall := DecodedInstruction{Op: OpJal, Rd: 0}
	if tailCall.IsCall() {
		t.Error("jal x0, ... should not be a call")
	}
}
