// Package riscv implements the RV32I base integer interpreter that runs
// in parallel with the ARMv7-M core, sharing the cpu.Core contract.
package riscv

import "github.com/labwired/labwired-go/internal/simerr"

// Op tags the decoded RV32I instruction form.
type Op int

const (
	OpUnknown Op = iota
	OpLui
	OpAuipc
	OpJal
	OpJalr
	OpBeq
	OpBne
	OpBlt
	OpBge
	OpBltu
	OpBgeu
	OpLb
	OpLh
	OpLw
	OpLbu
	OpLhu
	OpSb
	OpSh
	OpSw
	OpAddi
	OpSlti
	OpSltiu
	OpXori
	OpOri
	OpAndi
	OpSlli
	OpSrli
	OpSrai
	OpAdd
	OpSub
	OpSll
	OpSlt
	OpSltu
	OpXor
	OpSrl
	OpSra
	OpOr
	OpAnd
	OpFence
	OpEcall
	OpEbreak
)

// Instruction is the decoded form of one 32-bit RV32I word.
type Instruction struct {
	Op           Op
	Rd, Rs1, Rs2 int
	Imm          int32
	Raw          uint32
}

func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}

func decodeI(instr uint32) (rd, rs1 int, imm int32) {
	rd = int((instr >> 7) & 0x1F)
	rs1 = int((instr >> 15) & 0x1F)
	imm = signExtend(instr>>20, 12)
	return
}

func decodeS(instr uint32) (rs1, rs2 int, imm int32) {
	rs1 = int((instr >> 15) & 0x1F)
	rs2 = int((instr >> 20) & 0x1F)
	raw := ((instr >> 25) << 5) | ((instr >> 7) & 0x1F)
	imm = signExtend(raw, 12)
	return
}

func decodeB(instr uint32) (rs1, rs2 int, imm int32) {
	rs1 = int((instr >> 15) & 0x1F)
	rs2 = int((instr >> 20) & 0x1F)
	bit11 := (instr >> 7) & 1
	bit4_1 := (instr >> 8) & 0xF
	bit10_5 := (instr >> 25) & 0x3F
	bit12 := (instr >> 31) & 1
	raw := (bit12 << 12) | (bit11 << 11) | (bit10_5 << 5) | (bit4_1 << 1)
	imm = signExtend(raw, 13)
	return
}

func decodeU(instr uint32) (rd int, imm uint32) {
	rd = int((instr >> 7) & 0x1F)
	imm = instr & 0xFFFF_F000
	return
}

func decodeJ(instr uint32) (rd int, imm int32) {
	rd = int((instr >> 7) & 0x1F)
	bit19_12 := (instr >> 12) & 0xFF
	bit11 := (instr >> 20) & 1
	bit10_1 := (instr >> 21) & 0x3FF
	bit20 := (instr >> 31) & 1
	raw := (bit20 << 20) | (bit19_12 << 12) | (bit11 << 11) | (bit10_1 << 1)
	imm = signExtend(raw, 21)
	return
}

func decodeR(instr uint32) (rd, rs1, rs2 int) {
	rd = int((instr >> 7) & 0x1F)
	rs1 = int((instr >> 15) & 0x1F)
	rs2 = int((instr >> 20) & 0x1F)
	return
}

// Decode decodes one 32-bit RV32I instruction word, returning
// simerr.DecodeError for an unhandled opcode and for an unhandled
// funct3/funct7 combination in the JALR, branch, load, store and
// register-arithmetic groups (no M extension). FENCE and SYSTEM words are
// not checked further: every SYSTEM word other than EBREAK decodes as
// ECALL, and a shift-immediate's funct7 only selects SRAI (0x20) over SRLI.
func Decode(instr uint32, pc uint32) (Instruction, error) {
	opcode := instr & 0x7F
	funct3 := (instr >> 12) & 0x7
	funct7 := (instr >> 25) & 0x7F

	switch opcode {
	case 0x37: // LUI
		rd, imm := decodeU(instr)
		return Instruction{Op: OpLui, Rd: rd, Imm: int32(imm), Raw: instr}, nil
	case 0x17: // AUIPC
		rd, imm := decodeU(instr)
		return Instruction{Op: OpAuipc, Rd: rd, Imm: int32(imm), Raw: instr}, nil
	case 0x6F: // JAL
		rd, imm := decodeJ(instr)
		return Instruction{Op: OpJal, Rd: rd, Imm: imm, Raw: instr}, nil
	case 0x67: // JALR
		if funct3 != 0 {
			break
		}
		rd, rs1, imm := decodeI(instr)
		return Instruction{Op: OpJalr, Rd: rd, Rs1: rs1, Imm: imm, Raw: instr}, nil
	case 0x63: // branches
		rs1, rs2, imm := decodeB(instr)
		var op Op
		switch funct3 {
		case 0:
			op = OpBeq
		case 1:
			op = OpBne
		case 4:
			op = OpBlt
		case 5:
			op = OpBge
		case 6:
			op = OpBltu
		case 7:
			op = OpBgeu
		default:
			break
		}
		if op != OpUnknown {
			return Instruction{Op: op, Rs1: rs1, Rs2: rs2, Imm: imm, Raw: instr}, nil
		}
	case 0x03: // loads
		rd, rs1, imm := decodeI(instr)
		var op Op
		switch funct3 {
		case 0:
			op = OpLb
		case 1:
			op = OpLh
		case 2:
			op = OpLw
		case 4:
			op = OpLbu
		case 5:
			op = OpLhu
		}
		if op != OpUnknown {
			return Instruction{Op: op, Rd: rd, Rs1: rs1, Imm: imm, Raw: instr}, nil
		}
	case 0x23: // stores
		rs1, rs2, imm := decodeS(instr)
		var op Op
		switch funct3 {
		case 0:
			op = OpSb
		case 1:
			op = OpSh
		case 2:
			op = OpSw
		}
		if op != OpUnknown {
			return Instruction{Op: op, Rs1: rs1, Rs2: rs2, Imm: imm, Raw: instr}, nil
		}
	case 0x13: // immediate arithmetic
		rd, rs1, imm := decodeI(instr)
		switch funct3 {
		case 0:
			return Instruction{Op: OpAddi, Rd: rd, Rs1: rs1, Imm: imm, Raw: instr}, nil
		case 2:
			return Instruction{Op: OpSlti, Rd: rd, Rs1: rs1, Imm: imm, Raw: instr}, nil
		case 3:
			return Instruction{Op: OpSltiu, Rd: rd, Rs1: rs1, Imm: imm, Raw: instr}, nil
		case 4:
			return Instruction{Op: OpXori, Rd: rd, Rs1: rs1, Imm: imm, Raw: instr}, nil
		case 6:
			return Instruction{Op: OpOri, Rd: rd, Rs1: rs1, Imm: imm, Raw: instr}, nil
		case 7:
			return Instruction{Op: OpAndi, Rd: rd, Rs1: rs1, Imm: imm, Raw: instr}, nil
		case 1:
			return Instruction{Op: OpSlli, Rd: rd, Rs1: rs1, Imm: int32(imm & 0x1F), Raw: instr}, nil
		case 5:
			shamt := imm & 0x1F
			if funct7 == 0x20 {
				return Instruction{Op: OpSrai, Rd: rd, Rs1: rs1, Imm: shamt, Raw: instr}, nil
			}
			return Instruction{Op: OpSrli, Rd: rd, Rs1: rs1, Imm: shamt, Raw: instr}, nil
		}
	case 0x33: // register arithmetic
		rd, rs1, rs2 := decodeR(instr)
		switch {
		case funct3 == 0 && funct7 == 0x00:
			return Instruction{Op: OpAdd, Rd: rd, Rs1: rs1, Rs2: rs2, Raw: instr}, nil
		case funct3 == 0 && funct7 == 0x20:
			return Instruction{Op: OpSub, Rd: rd, Rs1: rs1, Rs2: rs2, Raw: instr}, nil
		case funct3 == 1 && funct7 == 0x00:
			return Instruction{Op: OpSll, Rd: rd, Rs1: rs1, Rs2: rs2, Raw: instr}, nil
		case funct3 == 2 && funct7 == 0x00:
			return Instruction{Op: OpSlt, Rd: rd, Rs1: rs1, Rs2: rs2, Raw: instr}, nil
		case funct3 == 3 && funct7 == 0x00:
			return Instruction{Op: OpSltu, Rd: rd, Rs1: rs1, Rs2: rs2, Raw: instr}, nil
		case funct3 == 4 && funct7 == 0x00:
			return Instruction{Op: OpXor, Rd: rd, Rs1: rs1, Rs2: rs2, Raw: instr}, nil
		case funct3 == 5 && funct7 == 0x00:
			return Instruction{Op: OpSrl, Rd: rd, Rs1: rs1, Rs2: rs2, Raw: instr}, nil
		case funct3 == 5 && funct7 == 0x20:
			return Instruction{Op: OpSra, Rd: rd, Rs1: rs1, Rs2: rs2, Raw: instr}, nil
		case funct3 == 6 && funct7 == 0x00:
			return Instruction{Op: OpOr, Rd: rd, Rs1: rs1, Rs2: rs2, Raw: instr}, nil
		case funct3 == 7 && funct7 == 0x00:
			return Instruction{Op: OpAnd, Rd: rd, Rs1: rs1, Rs2: rs2, Raw: instr}, nil
		}
	case 0x0F:
		return Instruction{Op: OpFence, Raw: instr}, nil
	case 0x73:
		if instr>>20 == 1 {
			return Instruction{Op: OpEbreak, Raw: instr}, nil
		}
		return Instruction{Op: OpEcall, Raw: instr}, nil
	}

	return Instruction{}, &simerr.DecodeError{PC: pc}
}
