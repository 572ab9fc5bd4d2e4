/*
 * labwired - Thumb-2 instruction decoder
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package armthumb implements the dual-width Thumb-2 decoder and the
// ARMv7-M interpreter built on top of it.
package armthumb

// Op tags the Instruction variant decoded from one or two halfwords,
// generalizing the teacher's per-opcode stepInfo dispatch to a single
// reusable struct.
type Op int

const (
	OpUnknown Op = iota
	OpNop
	OpMovImm
	OpCmpImm
	OpAddImm8
	OpSubImm8
	OpAddReg
	OpSubReg
	OpAddImm3
	OpSubImm3
	OpAnd
	OpOrr
	OpEor
	OpMvn
	OpLsl
	OpLsr
	OpAsr
	OpLdrImm
	OpStrImm
	OpLdrbImm
	OpStrbImm
	OpLdrLit
	OpLdrSp
	OpStrSp
	OpPush
	OpPop
	OpBranch
	OpBranchCond
	OpBx
	OpCpsid
	OpCpsie
	OpAddSpImm
	OpSubSpImm
	OpMovRegHi
	OpPrefix32
	OpBl
	OpMovw
	OpMovt
)

// Instruction is the decoded form of one instruction, 16- or 32-bit.
// Not every field is meaningful for every Op; see the comment at each
// construction site.
type Instruction struct {
	Op Op

	Rd, Rm, Rn int
	Imm        int32
	Offset     int32
	Cond       uint8
	Regs       uint8
	IncludeLR  bool
	IncludePC  bool

	Raw  uint16 // first halfword, kept for Prefix32/Unknown trace logging.
	Raw2 uint16 // second halfword, valid only after Decode32.
}

func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}

// Decode16 decodes a single Thumb halfword. A 32-bit instruction's first
// halfword decodes to OpPrefix32; the caller fetches the next halfword and
// calls Decode32.
func Decode16(opcode uint16) Instruction {
	switch {
	case opcode == 0xBF00:
		return Instruction{Op: OpNop, Raw: opcode}
	case opcode == 0xB672: // CPSID i
		return Instruction{Op: OpCpsid, Raw: opcode}
	case opcode == 0xB662: // CPSIE i
		return Instruction{Op: OpCpsie, Raw: opcode}

	// Format 1: move shifted register (LSL/LSR/ASR by immediate).
	case opcode&0xF800 == 0x0000:
		return Instruction{Op: OpLsl, Rd: int(opcode & 0x7), Rm: int((opcode >> 3) & 0x7), Imm: int32((opcode >> 6) & 0x1F), Raw: opcode}
	case opcode&0xF800 == 0x0800:
		return Instruction{Op: OpLsr, Rd: int(opcode & 0x7), Rm: int((opcode >> 3) & 0x7), Imm: int32((opcode >> 6) & 0x1F), Raw: opcode}
	case opcode&0xF800 == 0x1000:
		return Instruction{Op: OpAsr, Rd: int(opcode & 0x7), Rm: int((opcode >> 3) & 0x7), Imm: int32((opcode >> 6) & 0x1F), Raw: opcode}

	// Format 2: add/subtract register or 3-bit immediate.
	case opcode&0xFE00 == 0x1800:
		return Instruction{Op: OpAddReg, Rd: int(opcode & 0x7), Rn: int((opcode >> 3) & 0x7), Rm: int((opcode >> 6) & 0x7), Raw: opcode}
	case opcode&0xFE00 == 0x1A00:
		return Instruction{Op: OpSubReg, Rd: int(opcode & 0x7), Rn: int((opcode >> 3) & 0x7), Rm: int((opcode >> 6) & 0x7), Raw: opcode}
	case opcode&0xFE00 == 0x1C00:
		return Instruction{Op: OpAddImm3, Rd: int(opcode & 0x7), Rn: int((opcode >> 3) & 0x7), Imm: int32((opcode >> 6) & 0x7), Raw: opcode}
	case opcode&0xFE00 == 0x1E00:
		return Instruction{Op: OpSubImm3, Rd: int(opcode & 0x7), Rn: int((opcode >> 3) & 0x7), Imm: int32((opcode >> 6) & 0x7), Raw: opcode}

	// Format 3: move/compare/add/subtract immediate.
	case opcode&0xF800 == 0x2000:
		return Instruction{Op: OpMovImm, Rd: int((opcode >> 8) & 0x7), Imm: int32(opcode & 0xFF), Raw: opcode}
	case opcode&0xF800 == 0x2800:
		return Instruction{Op: OpCmpImm, Rd: int((opcode >> 8) & 0x7), Imm: int32(opcode & 0xFF), Raw: opcode}
	case opcode&0xF800 == 0x3000:
		return Instruction{Op: OpAddImm8, Rd: int((opcode >> 8) & 0x7), Imm: int32(opcode & 0xFF), Raw: opcode}
	case opcode&0xF800 == 0x3800:
		return Instruction{Op: OpSubImm8, Rd: int((opcode >> 8) & 0x7), Imm: int32(opcode & 0xFF), Raw: opcode}

	// Format 4: ALU operations (subset: AND/EOR/ORR/MVN).
	case opcode&0xFFC0 == 0x4000:
		return Instruction{Op: OpAnd, Rd: int(opcode & 0x7), Rm: int((opcode >> 3) & 0x7), Raw: opcode}
	case opcode&0xFFC0 == 0x4040:
		return Instruction{Op: OpEor, Rd: int(opcode & 0x7), Rm: int((opcode >> 3) & 0x7), Raw: opcode}
	case opcode&0xFFC0 == 0x4300:
		return Instruction{Op: OpOrr, Rd: int(opcode & 0x7), Rm: int((opcode >> 3) & 0x7), Raw: opcode}
	case opcode&0xFFC0 == 0x43C0:
		return Instruction{Op: OpMvn, Rd: int(opcode & 0x7), Rm: int((opcode >> 3) & 0x7), Raw: opcode}

	// Format 5: hi-register MOV and BX.
	case opcode&0xFF87 == 0x4700:
		return Instruction{Op: OpBx, Rm: int((opcode >> 3) & 0xF), Raw: opcode}
	case opcode&0xFF00 == 0x4600:
		h1 := (opcode >> 7) & 1
		h2 := (opcode >> 6) & 1
		return Instruction{
			Op: OpMovRegHi,
			Rd: int(h1<<3) | int(opcode&0x7),
			Rm: int(h2<<3) | int((opcode>>3)&0x7),
			Raw: opcode,
		}

	// Format 6: PC-relative load.
	case opcode&0xF800 == 0x4800:
		return Instruction{Op: OpLdrLit, Rd: int((opcode >> 8) & 0x7), Imm: int32(opcode&0xFF) * 4, Raw: opcode}

	// Format 9: load/store word or byte, immediate offset.
	case opcode&0xF800 == 0x6000:
		return Instruction{Op: OpStrImm, Rd: int(opcode & 0x7), Rn: int((opcode >> 3) & 0x7), Imm: int32((opcode>>6)&0x1F) * 4, Raw: opcode}
	case opcode&0xF800 == 0x6800:
		return Instruction{Op: OpLdrImm, Rd: int(opcode & 0x7), Rn: int((opcode >> 3) & 0x7), Imm: int32((opcode>>6)&0x1F) * 4, Raw: opcode}
	case opcode&0xF800 == 0x7000:
		return Instruction{Op: OpStrbImm, Rd: int(opcode & 0x7), Rn: int((opcode >> 3) & 0x7), Imm: int32((opcode >> 6) & 0x1F), Raw: opcode}
	case opcode&0xF800 == 0x7800:
		return Instruction{Op: OpLdrbImm, Rd: int(opcode & 0x7), Rn: int((opcode >> 3) & 0x7), Imm: int32((opcode >> 6) & 0x1F), Raw: opcode}

	// Format 11: SP-relative load/store.
	case opcode&0xF800 == 0x9000:
		return Instruction{Op: OpStrSp, Rd: int((opcode >> 8) & 0x7), Imm: int32(opcode&0xFF) * 4, Raw: opcode}
	case opcode&0xF800 == 0x9800:
		return Instruction{Op: OpLdrSp, Rd: int((opcode >> 8) & 0x7), Imm: int32(opcode&0xFF) * 4, Raw: opcode}

	// Format 13: add/subtract offset to SP.
	case opcode&0xFF80 == 0xB000:
		return Instruction{Op: OpAddSpImm, Imm: int32(opcode&0x7F) * 4, Raw: opcode}
	case opcode&0xFF80 == 0xB080:
		return Instruction{Op: OpSubSpImm, Imm: int32(opcode&0x7F) * 4, Raw: opcode}

	// Format 14: push/pop register lists.
	case opcode&0xFE00 == 0xB400:
		return Instruction{Op: OpPush, Regs: uint8(opcode & 0xFF), IncludeLR: opcode&0x0100 != 0, Raw: opcode}
	case opcode&0xFE00 == 0xBC00:
		return Instruction{Op: OpPop, Regs: uint8(opcode & 0xFF), IncludePC: opcode&0x0100 != 0, Raw: opcode}

	// Format 16: conditional branch.
	case opcode&0xF000 == 0xD000:
		cond := uint8((opcode >> 8) & 0xF)
		return Instruction{Op: OpBranchCond, Cond: cond, Offset: signExtend(uint32(opcode&0xFF), 8) * 2, Raw: opcode}

	// Format 18: unconditional branch.
	case opcode&0xF800 == 0xE000:
		return Instruction{Op: OpBranch, Offset: signExtend(uint32(opcode&0x7FF), 11) * 2, Raw: opcode}

	// 32-bit prefixes: BL (0xF000-0xF7FF) and MOVW/MOVT.
	case opcode&0xF800 == 0xF000:
		return Instruction{Op: OpPrefix32, Raw: opcode}
	case opcode&0xFBF0 == 0xF240:
		return Instruction{Op: OpPrefix32, Raw: opcode}
	case opcode&0xFBF0 == 0xF2C0:
		return Instruction{Op: OpPrefix32, Raw: opcode}
	// Remaining 32-bit first halfwords (0xE800-0xEFFF, 0xF800-0xFFFF).
	case opcode&0xF800 == 0xE800, opcode&0xF800 == 0xF800:
		return Instruction{Op: OpPrefix32, Raw: opcode}

	default:
		return Instruction{Op: OpUnknown, Raw: opcode}
	}
}

// Decode32 re-decodes a Prefix32 first halfword together with the second
// halfword, producing BL, MOVW, or MOVT. Every other 32-bit shape that
// Decode16 flagged as Prefix32 (any 0xF000-0xF7FF first halfword whose
// second halfword is not a BL, and every 0xE800-0xEFFF or 0xF800-0xFFFF
// first halfword) is reported Unknown with both halfwords retained for
// tracing.
func Decode32(h1, h2 uint16) Instruction {
	switch {
	case h1&0xF800 == 0xF000 && h2&0xD000 == 0xD000:
		s := uint32((h1 >> 10) & 1)
		imm10 := uint32(h1 & 0x3FF)
		j1 := uint32((h2 >> 13) & 1)
		j2 := uint32((h2 >> 11) & 1)
		imm11 := uint32(h2 & 0x7FF)
		i1 := 1 - (j1 ^ s)
		i2 := 1 - (j2 ^ s)
		imm32 := (s << 24) | (i1 << 23) | (i2 << 22) | (imm10 << 12) | (imm11 << 1)
		return Instruction{Op: OpBl, Offset: signExtend(imm32, 25), Raw: h1, Raw2: h2}

	case h1&0xFBF0 == 0xF240:
		rd := int((h2 >> 8) & 0xF)
		i := uint32((h1 >> 10) & 1)
		imm4 := uint32(h1 & 0xF)
		imm3 := uint32((h2 >> 12) & 0x7)
		imm8 := uint32(h2 & 0xFF)
		imm16 := (imm4 << 12) | (i << 11) | (imm3 << 8) | imm8
		return Instruction{Op: OpMovw, Rd: rd, Imm: int32(imm16), Raw: h1, Raw2: h2}

	case h1&0xFBF0 == 0xF2C0:
		rd := int((h2 >> 8) & 0xF)
		i := uint32((h1 >> 10) & 1)
		imm4 := uint32(h1 & 0xF)
		imm3 := uint32((h2 >> 12) & 0x7)
		imm8 := uint32(h2 & 0xFF)
		imm16 := (imm4 << 12) | (i << 11) | (imm3 << 8) | imm8
		return Instruction{Op: OpMovt, Rd: rd, Imm: int32(imm16), Raw: h1, Raw2: h2}

	default:
		return Instruction{Op: OpUnknown, Raw: h1, Raw2: h2}
	}
}
