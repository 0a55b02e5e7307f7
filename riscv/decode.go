package riscv

import "fmt"

// signExtend sign-extends the low `bits` bits of val to a 64-bit signed
// value, using the same shift-left/arithmetic-shift-right trick the teacher
// uses for ARM branch offsets.
func signExtend(val uint32, bits int) int64 {
	shift := 32 - bits
	return int64(int32(val<<uint(shift)) >> uint(shift))
}

// Decoder turns a raw instruction word plus its length (2 for a compressed
// instruction, 4 otherwise) into a DecodedInstruction. It holds no state of
// its own and is safe for concurrent use, though the decoder as a whole is
// single-threaded per trace stream.
type Decoder struct{}

// NewDecoder returns a stateless RISC-V instruction classifier.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode classifies the raw instruction bits found at pc. length must be 2
// or 4, matching what the instruction oracle reported.
func (d *Decoder) Decode(pc Address, raw uint32, length int) (DecodedInstruction, error) {
	switch length {
	case 4:
		return d.decode32(pc, raw), nil
	case 2:
		return d.decode16(pc, uint16(raw)), nil
	default:
		return DecodedInstruction{}, fmt.Errorf("riscv: invalid instruction length %d at %#x", length, pc)
	}
}

func (d *Decoder) decode32(pc Address, raw uint32) DecodedInstruction {
	instr := DecodedInstruction{PC: pc, Length: 4, Op: OpOther}
	opcode := raw & 0x7F
	funct3 := (raw >> 12) & 0x7
	rd := uint8((raw >> 7) & 0x1F)
	rs1 := uint8((raw >> 15) & 0x1F)

	switch opcode {
	case 0x6F: // JAL
		instr.Op = OpJal
		instr.Rd = rd
		imm20 := (raw >> 31) & 0x1
		imm19_12 := (raw >> 12) & 0xFF
		imm11 := (raw >> 20) & 0x1
		imm10_1 := (raw >> 21) & 0x3FF
		bits := (imm20 << 20) | (imm19_12 << 12) | (imm11 << 11) | (imm10_1 << 1)
		instr.Imm = signExtend(bits, 21)

	case 0x67: // JALR
		if funct3 == 0 {
			instr.Op = OpJalr
			instr.Rd = rd
			instr.Rs1 = rs1
			instr.Imm = signExtend((raw>>20)&0xFFF, 12)
		}

	case 0x63: // Branch (B-type)
		imm12 := (raw >> 31) & 0x1
		imm10_5 := (raw >> 25) & 0x3F
		imm4_1 := (raw >> 8) & 0xF
		imm11 := (raw >> 7) & 0x1
		bits := (imm12 << 12) | (imm11 << 11) | (imm10_5 << 5) | (imm4_1 << 1)
		imm := signExtend(bits, 13)
		instr.Imm = imm
		instr.Rs1 = rs1
		switch funct3 {
		case 0x0:
			instr.Op = OpBeq
		case 0x1:
			instr.Op = OpBne
		case 0x4:
			instr.Op = OpBlt
		case 0x5:
			instr.Op = OpBge
		case 0x6:
			instr.Op = OpBltu
		case 0x7:
			instr.Op = OpBgeu
		}

	case 0x17: // AUIPC
		instr.Op = OpAuipc
		instr.Rd = rd
		instr.Imm = int64(int32(raw & 0xFFFFF000))

	case 0x37: // LUI
		instr.Op = OpLui
		instr.Rd = rd
		instr.Imm = int64(int32(raw & 0xFFFFF000))

	case 0x73: // SYSTEM
		if funct3 == 0 {
			funct12 := raw >> 20
			switch funct12 {
			case 0x002:
				instr.Op = OpUret
			case 0x102:
				instr.Op = OpSret
			case 0x302:
				instr.Op = OpMret
			case 0x7B2:
				instr.Op = OpDret
			}
		}
	}

	instr.Disasm = disasm(instr)
	return instr
}

func (d *Decoder) decode16(pc Address, raw uint16) DecodedInstruction {
	instr := DecodedInstruction{PC: pc, Length: 2, Op: OpOther}
	op := raw & 0x3
	funct3 := (raw >> 13) & 0x7

	switch op {
	case 0x1: // quadrant C1
		switch funct3 {
		case 0x1: // C.JAL (RV32 only)
			instr.Op = OpCJal
			instr.Rd = 1
			instr.Imm = cjImm(raw)
		case 0x5: // C.J
			instr.Op = OpCJ
			instr.Imm = cjImm(raw)
		case 0x6: // C.BEQZ
			instr.Op = OpCBeqz
			instr.Rs1 = cRegPrime(raw)
			instr.Imm = cbImm(raw)
		case 0x7: // C.BNEZ
			instr.Op = OpCBnez
			instr.Rs1 = cRegPrime(raw)
			instr.Imm = cbImm(raw)
		case 0x3: // C.LUI / C.ADDI16SP
			rdFull := uint8((raw >> 7) & 0x1F)
			if rdFull != 0 && rdFull != 2 {
				instr.Op = OpCLui
				instr.Rd = rdFull
				nzimm17 := (uint32(raw>>12) & 0x1) << 17
				nzimm16_12 := (uint32(raw>>2) & 0x1F) << 12
				instr.Imm = signExtend(nzimm17|nzimm16_12, 18)
			}
		}

	case 0x2: // quadrant C2
		if funct3 == 0x4 {
			bit12 := (raw >> 12) & 0x1
			rs1full := uint8((raw >> 7) & 0x1F)
			rs2full := uint8((raw >> 2) & 0x1F)
			if rs2full == 0 && rs1full != 0 {
				if bit12 == 0 {
					instr.Op = OpCJr
					instr.Rs1 = rs1full
				} else {
					instr.Op = OpCJalr
					instr.Rs1 = rs1full
					instr.Rd = 1
				}
			}
		}
	}

	instr.Disasm = disasm(instr)
	return instr
}

// cRegPrime decodes the compressed 3-bit register field (bits 9:7) used by
// C.BEQZ/C.BNEZ, which encodes x8-x15.
func cRegPrime(raw uint16) uint8 {
	return uint8((raw>>7)&0x7) + 8
}

// cjImm decodes the CJ-format 11-bit signed, left-shifted-by-1 immediate
// used by C.J and C.JAL.
func cjImm(raw uint16) int64 {
	b := uint32(raw)
	imm11 := (b >> 12) & 0x1
	imm4 := (b >> 11) & 0x1
	imm9_8 := (b >> 9) & 0x3
	imm10 := (b >> 8) & 0x1
	imm6 := (b >> 7) & 0x1
	imm7 := (b >> 6) & 0x1
	imm3_1 := (b >> 3) & 0x7
	imm5 := (b >> 2) & 0x1
	bits := (imm11 << 11) | (imm10 << 10) | (imm9_8 << 8) | (imm7 << 7) | (imm6 << 6) |
		(imm5 << 5) | (imm4 << 4) | (imm3_1 << 1)
	return signExtend(bits, 12)
}

// cbImm decodes the CB-format 8-bit signed, left-shifted-by-1 immediate
// used by C.BEQZ/C.BNEZ.
func cbImm(raw uint16) int64 {
	b := uint32(raw)
	imm8 := (b >> 12) & 0x1
	imm4_3 := (b >> 10) & 0x3
	imm7_6 := (b >> 5) & 0x3
	imm2_1 := (b >> 3) & 0x3
	imm5 := (b >> 2) & 0x1
	bits := (imm8 << 8) | (imm7_6 << 6) | (imm5 << 5) | (imm4_3 << 3) | (imm2_1 << 1)
	return signExtend(bits, 9)
}

func disasm(i DecodedInstruction) string {
	switch {
	case i.IsBranch():
		return fmt.Sprintf("%s x%d, %+d", i.Op, i.Rs1, i.Imm)
	case i.Op == OpJal:
		return fmt.Sprintf("jal x%d, %+d", i.Rd, i.Imm)
	case i.Op == OpJalr:
		return fmt.Sprintf("jalr x%d, x%d, %d", i.Rd, i.Rs1, i.Imm)
	case i.Op == OpCJ, i.Op == OpCJal:
		return fmt.Sprintf("%s %+d", i.Op, i.Imm)
	case i.Op == OpCJr, i.Op == OpCJalr:
		return fmt.Sprintf("%s x%d", i.Op, i.Rs1)
	case i.Op == OpAuipc, i.Op == OpLui, i.Op == OpCLui:
		return fmt.Sprintf("%s x%d, %#x", i.Op, i.Rd, uint64(i.Imm)>>12)
	case i.Op == OpUret, i.Op == OpSret, i.Op == OpMret, i.Op == OpDret:
		return i.Op.String()
	default:
		return "..."
	}
}
