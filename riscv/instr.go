// Package riscv classifies RISC-V instructions (base I, C extension, and the
// privileged xRET instructions) for the purposes a trace decoder needs:
// telling branches, inferrable jumps, uninferrable jumps/discontinuities,
// calls and sequential-jump idioms (auipc/lui feeding a jalr) apart.
package riscv

import "fmt"

// Address is a 64-bit target/program-counter value. SentinelAddress is used
// throughout the decoder to mean "no valid address", analogous to the
// original implementation's TE_SENTINEL_BAD_ADDRESS.
type Address = uint64

// SentinelAddress is a value that can never be a legitimate instruction
// address, used to mark "pc not yet known" state.
const SentinelAddress Address = ^Address(0)

// Op identifies the instruction forms the decoder cares about. Every other
// instruction (loads, stores, ALU ops, ecall/ebreak, ...) is classified as
// OpOther: the decoder does not need to tell them apart from one another.
type Op int

const (
	OpOther Op = iota
	OpBeq
	OpBne
	OpBlt
	OpBge
	OpBltu
	OpBgeu
	OpCBeqz
	OpCBnez
	OpJal
	OpJalr
	OpCJ
	OpCJal
	OpCJr
	OpCJalr
	OpAuipc
	OpLui
	OpCLui
	OpUret
	OpSret
	OpMret
	OpDret
)

func (o Op) String() string {
	switch o {
	case OpBeq:
		return "beq"
	case OpBne:
		return "bne"
	case OpBlt:
		return "blt"
	case OpBge:
		return "bge"
	case OpBltu:
		return "bltu"
	case OpBgeu:
		return "bgeu"
	case OpCBeqz:
		return "c.beqz"
	case OpCBnez:
		return "c.bnez"
	case OpJal:
		return "jal"
	case OpJalr:
		return "jalr"
	case OpCJ:
		return "c.j"
	case OpCJal:
		return "c.jal"
	case OpCJr:
		return "c.jr"
	case OpCJalr:
		return "c.jalr"
	case OpAuipc:
		return "auipc"
	case OpLui:
		return "lui"
	case OpCLui:
		return "c.lui"
	case OpUret:
		return "uret"
	case OpSret:
		return "sret"
	case OpMret:
		return "mret"
	case OpDret:
		return "dret"
	default:
		return "other"
	}
}

// DecodedInstruction is the immutable result of decoding one instruction at
// a given address. Decoder.Decode constructs these from the raw bits an
// oracle returns; the decoder never mutates one
// once it has been returned from the cache.
type DecodedInstruction struct {
	PC     Address
	Op     Op
	Rd     uint8
	Rs1    uint8
	Imm    int64
	Length uint8 // 2 (compressed) or 4
	Disasm string
}

func (d DecodedInstruction) String() string {
	return fmt.Sprintf("%#x: %s", d.PC, d.Disasm)
}

// IsBranch reports whether the instruction is a conditional branch whose
// outcome is carried by the trace's branch map / predictor.
func (d DecodedInstruction) IsBranch() bool {
	switch d.Op {
	case OpBeq, OpBne, OpBlt, OpBge, OpBltu, OpBgeu, OpCBeqz, OpCBnez:
		return true
	}
	return false
}

// IsInferrableJump reports whether the target can be computed from the
// instruction alone: jal, c.jal, c.j, or jalr with rs1==x0 (whose only
// legal source, per the calling convention this format assumes, is an
// immediate of 0 relative to a known base -- in practice jalr x0 is only
// inferrable when rs1 is the zero register, since x0 always reads as 0).
func (d DecodedInstruction) IsInferrableJump() bool {
	switch d.Op {
	case OpJal, OpCJal, OpCJ:
		return true
	case OpJalr:
		return d.Rs1 == 0
	}
	return false
}

// IsUninferrableJump reports whether the instruction is a register-indirect
// jump whose target cannot be known without the trace's address payload.
func (d DecodedInstruction) IsUninferrableJump() bool {
	switch d.Op {
	case OpCJalr, OpCJr:
		return true
	case OpJalr:
		return d.Rs1 != 0
	}
	return false
}

// IsUninferrableDiscontinuity reports whether the instruction is an
// uninferrable jump or one of the privileged exception-return instructions.
// ecall/ebreak/c.ebreak are deliberately excluded: the trace's exception
// reporting mechanism covers those, so the decoder need not treat them as
// discontinuities here.
func (d DecodedInstruction) IsUninferrableDiscontinuity() bool {
	if d.IsUninferrableJump() {
		return true
	}
	switch d.Op {
	case OpUret, OpSret, OpMret, OpDret:
		return true
	}
	return false
}

// IsCall reports whether the instruction pushes a return address, i.e. it
// is a jal/jalr that writes x1 (ra). Tail calls (jal/jalr writing x0) are
// excluded, since they do not push anything onto the return stack.
func (d DecodedInstruction) IsCall() bool {
	switch d.Op {
	case OpCJal:
		return true
	case OpJalr:
		return d.Rd == 1
	case OpJal:
		return d.Rd == 1
	case OpCJalr:
		return true
	}
	return false
}

// IsReturnCandidate reports whether the instruction has the exact shape of
// an implicit return (jalr x0,x1 or c.jr x1). Whether it is *actually*
// treated as an implicit return additionally depends on decoder state (the
// implicit_return option and a non-empty return stack), which is decided by
// the step engine, not here.
func (d DecodedInstruction) IsReturnCandidate() bool {
	switch d.Op {
	case OpJalr:
		return d.Rs1 == 1 && d.Rd == 0
	case OpCJr:
		return d.Rs1 == 1
	}
	return false
}

// IsSequentialJumpBase reports whether this instruction could be the first
// half of an auipc/lui + jalr sequentially-inferrable jump idiom.
func (d DecodedInstruction) IsSequentialJumpBase() bool {
	switch d.Op {
	case OpAuipc, OpLui, OpCLui:
		return true
	}
	return false
}
