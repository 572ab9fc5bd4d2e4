/*
 * labwired - ARMv7-M Thumb-2 interpreter
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

package armthumb

import (
	"log/slog"
	"math/bits"

	"github.com/labwired/labwired-go/internal/cpu"
	"github.com/labwired/labwired-go/internal/scb"
)

// xPSR flag bit positions.
const (
	bitN = 31
	bitZ = 30
	bitC = 29
	bitV = 28
)

// excReturnMagic marks a branch target as an exception return rather than
// an ordinary branch: bits 31..28 == 0b1111.
const excReturnMagic = 0xF000_0000

// CortexM is the ARMv7-M core: 16 general registers (R0-R12, SP, LR, PC)
// plus xPSR, PRIMASK, a pending-exception bitmask, and a reference to the
// shared VTOR word (owned by SCB, consulted here at reset and exception
// entry).
type CortexM struct {
	R       [13]uint32 // R0..R12
	SP      uint32     // R13
	LR      uint32     // R14
	PCReg   uint32     // R15
	XPSR    uint32
	PRIMASK bool
	Pending uint32

	VTOR *scb.VTOR
}

// New returns a CortexM wired to the given shared VTOR.
func New(vtor *scb.VTOR) *CortexM {
	return &CortexM{VTOR: vtor}
}

// PC implements cpu.Core.
func (c *CortexM) PC() uint32 { return c.PCReg }

// SetPC implements cpu.PCSetter, used by Machine to apply the
// bare-binary entry-point fallback after a failed vector-table reset.
func (c *CortexM) SetPC(v uint32) { c.PCReg = v }

// Snapshot implements cpu.Snapshotter.
func (c *CortexM) Snapshot() cpu.CPUSnapshot {
	var regs [16]uint32
	copy(regs[:13], c.R[:])
	regs[13] = c.SP
	regs[14] = c.LR
	regs[15] = c.PCReg
	return cpu.CPUSnapshot{
		Registers:         regs,
		XPSR:              c.XPSR,
		PRIMASK:           c.PRIMASK,
		PendingExceptions: c.Pending,
		VTOR:              c.VTOR.Load(),
	}
}

// PendException implements cpu.Interruptible.
func (c *CortexM) PendException(n uint32) {
	if n < 32 {
		c.Pending |= 1 << n
	}
}

// GetReg reads any of the 16 architectural registers by number.
func (c *CortexM) GetReg(n int) uint32 {
	switch {
	case n < 13:
		return c.R[n]
	case n == 13:
		return c.SP
	case n == 14:
		return c.LR
	default:
		return c.PCReg
	}
}

// SetReg writes any of the 16 architectural registers by number.
func (c *CortexM) SetReg(n int, v uint32) {
	switch {
	case n < 13:
		c.R[n] = v
	case n == 13:
		c.SP = v
	case n == 14:
		c.LR = v
	default:
		c.PCReg = v
	}
}

// Reset clears the pending-exception set and loads SP/PC from the vector
// table at VTOR+0/VTOR+4. A failed read (MemoryViolation) or an all-zero
// result leaves PC at zero; Machine is responsible for the
// bare-binary-entry-point fallback spec §4.5 describes, since only it
// knows the firmware image's entry point.
func (c *CortexM) Reset(bus cpu.Bus) {
	c.Pending = 0
	c.PRIMASK = false
	c.XPSR = 0
	vtor := c.VTOR.Load()

	sp, err := bus.ReadWord(vtor)
	if err != nil {
		sp = 0
	}
	pc, err := bus.ReadWord(vtor + 4)
	if err != nil {
		pc = 0
	}
	c.SP = sp
	c.PCReg = pc &^ 1
}

func updateNZ(xpsr uint32, result uint32) uint32 {
	xpsr &^= (1 << bitN) | (1 << bitZ)
	if result&0x8000_0000 != 0 {
		xpsr |= 1 << bitN
	}
	if result == 0 {
		xpsr |= 1 << bitZ
	}
	return xpsr
}

func updateNZCV(xpsr uint32, result uint32, carry, overflow bool) uint32 {
	xpsr = updateNZ(xpsr, result) &^ ((1 << bitC) | (1 << bitV))
	if carry {
		xpsr |= 1 << bitC
	}
	if overflow {
		xpsr |= 1 << bitV
	}
	return xpsr
}

func addWithFlags(a, b uint32) (result uint32, carry, overflow bool) {
	wide := uint64(a) + uint64(b)
	result = uint32(wide)
	carry = wide > 0xFFFF_FFFF
	signA, signB, signR := a>>31, b>>31, result>>31
	overflow = signA == signB && signR != signA
	return
}

func subWithFlags(a, b uint32) (result uint32, carry, overflow bool) {
	result = a - b
	carry = a >= b // carry set means "no borrow".
	signA, signB, signR := a>>31, b>>31, result>>31
	overflow = signA != signB && signR != signA
	return
}

func evalCond(cond uint8, xpsr uint32) bool {
	n := xpsr&(1<<bitN) != 0
	z := xpsr&(1<<bitZ) != 0
	c := xpsr&(1<<bitC) != 0
	v := xpsr&(1<<bitV) != 0
	switch cond {
	case 0x0:
		return z // EQ
	case 0x1:
		return !z // NE
	case 0x2:
		return c // CS
	case 0x3:
		return !c // CC
	case 0x4:
		return n // MI
	case 0x5:
		return !n // PL
	case 0x6:
		return v // VS
	case 0x7:
		return !v // VC
	case 0x8:
		return c && !z // HI
	case 0x9:
		return !c || z // LS
	case 0xA:
		return n == v // GE
	case 0xB:
		return n != v // LT
	case 0xC:
		return !z && n == v // GT
	case 0xD:
		return z || n != v // LE
	case 0xE:
		return true // AL
	default:
		return false // 0xF undefined
	}
}

// Step implements cpu.Core: service a pending exception if one is ready,
// otherwise fetch, decode, and execute one instruction.
func (c *CortexM) Step(bus cpu.Bus) error {
	if c.Pending != 0 && !c.PRIMASK {
		return c.enterException(bus)
	}
	return c.stepNormal(bus)
}

func (c *CortexM) enterException(bus cpu.Bus) error {
	n := 31 - bits.LeadingZeros32(c.Pending) // highest set bit wins.
	c.Pending &^= 1 << uint(n)

	frame := [8]uint32{c.R[0], c.R[1], c.R[2], c.R[3], c.R[12], c.LR, c.PCReg, c.XPSR}
	newSP := c.SP - 32
	addr := newSP
	for _, v := range frame {
		if err := bus.WriteWord(addr, v); err != nil {
			return err
		}
		addr += 4
	}
	c.SP = newSP
	c.LR = 0xFFFF_FFF9

	vector := c.VTOR.Load() + 4*uint32(n)
	word, err := bus.ReadWord(vector)
	if err != nil {
		return err
	}
	c.PCReg = word &^ 1
	return nil
}

func (c *CortexM) stepNormal(bus cpu.Bus) error {
	fetchPC := c.PCReg &^ 1
	h1, err := bus.ReadHalf(fetchPC)
	if err != nil {
		return err
	}
	instr := Decode16(h1)
	size := uint32(2)
	if instr.Op == OpPrefix32 {
		h2, err := bus.ReadHalf(fetchPC + 2)
		if err != nil {
			return err
		}
		instr = Decode32(h1, h2)
		size = 4
	}

	pcIncrement := size
	c.execute(bus, instr, fetchPC, &pcIncrement)
	c.PCReg += pcIncrement
	return nil
}

// exceptionReturn implements the EXC_RETURN procedure: pop the 8-word
// frame at SP and resume at the restored PC.
func (c *CortexM) exceptionReturn(bus cpu.Bus) {
	addr := c.SP
	var frame [8]uint32
	for i := range frame {
		v, err := bus.ReadWord(addr)
		if err != nil {
			slog.Warn("EXC_RETURN frame read failed", "addr", addr)
			v = 0
		}
		frame[i] = v
		addr += 4
	}
	c.R[0], c.R[1], c.R[2], c.R[3] = frame[0], frame[1], frame[2], frame[3]
	c.R[12] = frame[4]
	c.LR = frame[5]
	c.PCReg = frame[6]
	c.XPSR = frame[7]
	c.SP += 32
}

// branchOrReturn implements the shared "pop PC"/"BX Rm" rule: a target
// whose top nibble is 0xF triggers EXC_RETURN instead of an ordinary
// branch.
func (c *CortexM) branchOrReturn(bus cpu.Bus, target uint32) {
	if target&0xF000_0000 == excReturnMagic {
		c.exceptionReturn(bus)
		return
	}
	c.PCReg = target &^ 1
}

func (c *CortexM) execute(bus cpu.Bus, in Instruction, fetchPC uint32, pcIncrement *uint32) {
	switch in.Op {
	case OpNop, OpUnknown, OpCpsid, OpCpsie:
		switch in.Op {
		case OpCpsid:
			c.PRIMASK = true
		case OpCpsie:
			c.PRIMASK = false
		case OpUnknown:
			slog.Warn("unknown instruction, skipping", "pc", fetchPC, "opcode", in.Raw, "opcode2", in.Raw2)
		}

	case OpMovImm:
		v := uint32(in.Imm)
		c.R[in.Rd] = v
		c.XPSR = updateNZ(c.XPSR, v)

	case OpCmpImm:
		result, carry, overflow := subWithFlags(c.R[in.Rd], uint32(in.Imm))
		c.XPSR = updateNZCV(c.XPSR, result, carry, overflow)

	case OpAddImm8:
		result, carry, overflow := addWithFlags(c.R[in.Rd], uint32(in.Imm))
		c.R[in.Rd] = result
		c.XPSR = updateNZCV(c.XPSR, result, carry, overflow)

	case OpSubImm8:
		result, carry, overflow := subWithFlags(c.R[in.Rd], uint32(in.Imm))
		c.R[in.Rd] = result
		c.XPSR = updateNZCV(c.XPSR, result, carry, overflow)

	case OpAddReg:
		result, carry, overflow := addWithFlags(c.R[in.Rn], c.R[in.Rm])
		c.R[in.Rd] = result
		c.XPSR = updateNZCV(c.XPSR, result, carry, overflow)

	case OpSubReg:
		result, carry, overflow := subWithFlags(c.R[in.Rn], c.R[in.Rm])
		c.R[in.Rd] = result
		c.XPSR = updateNZCV(c.XPSR, result, carry, overflow)

	case OpAddImm3:
		result, carry, overflow := addWithFlags(c.R[in.Rn], uint32(in.Imm))
		c.R[in.Rd] = result
		c.XPSR = updateNZCV(c.XPSR, result, carry, overflow)

	case OpSubImm3:
		result, carry, overflow := subWithFlags(c.R[in.Rn], uint32(in.Imm))
		c.R[in.Rd] = result
		c.XPSR = updateNZCV(c.XPSR, result, carry, overflow)

	case OpAnd:
		c.R[in.Rd] &= c.R[in.Rm]
		c.XPSR = updateNZ(c.XPSR, c.R[in.Rd])
	case OpOrr:
		c.R[in.Rd] |= c.R[in.Rm]
		c.XPSR = updateNZ(c.XPSR, c.R[in.Rd])
	case OpEor:
		c.R[in.Rd] ^= c.R[in.Rm]
		c.XPSR = updateNZ(c.XPSR, c.R[in.Rd])
	case OpMvn:
		c.R[in.Rd] = ^c.R[in.Rm]
		c.XPSR = updateNZ(c.XPSR, c.R[in.Rd])

	case OpLsl:
		v := c.R[in.Rm] << uint32(in.Imm)
		c.R[in.Rd] = v
		c.XPSR = updateNZ(c.XPSR, v)
	case OpLsr:
		// Encoded shift of 0 means "shift by 32" for LSR.
		shift := uint32(in.Imm)
		var v uint32
		if shift != 0 {
			v = c.R[in.Rm] >> shift
		}
		c.R[in.Rd] = v
		c.XPSR = updateNZ(c.XPSR, v)
	case OpAsr:
		// Encoded shift of 0 means "shift by 32" for ASR: result is all
		// sign bit.
		shift := uint32(in.Imm)
		var v uint32
		if shift == 0 {
			if c.R[in.Rm]&0x8000_0000 != 0 {
				v = 0xFFFF_FFFF
			}
		} else {
			v = uint32(int32(c.R[in.Rm]) >> shift)
		}
		c.R[in.Rd] = v
		c.XPSR = updateNZ(c.XPSR, v)

	case OpLdrImm:
		addr := c.R[in.Rn] + uint32(in.Imm)
		v, err := bus.ReadWord(addr)
		if err != nil {
			slog.Warn("LDR fault, register unchanged", "addr", addr)
			break
		}
		c.R[in.Rd] = v
	case OpStrImm:
		addr := c.R[in.Rn] + uint32(in.Imm)
		if err := bus.WriteWord(addr, c.R[in.Rd]); err != nil {
			slog.Warn("STR fault", "addr", addr)
		}
	case OpLdrbImm:
		addr := c.R[in.Rn] + uint32(in.Imm)
		v, err := bus.ReadByte(addr)
		if err != nil {
			slog.Warn("LDRB fault, register unchanged", "addr", addr)
			break
		}
		c.R[in.Rd] = uint32(v) // zero-extended, per spec §9 open question i.
	case OpStrbImm:
		addr := c.R[in.Rn] + uint32(in.Imm)
		if err := bus.WriteByte(addr, uint8(c.R[in.Rd])); err != nil {
			slog.Warn("STRB fault", "addr", addr)
		}

	case OpLdrLit:
		addr := (fetchPC &^ 3) + 4 + uint32(in.Imm)
		v, err := bus.ReadWord(addr)
		if err != nil {
			slog.Warn("LDR literal fault, register unchanged", "addr", addr)
			break
		}
		c.R[in.Rd] = v
	case OpLdrSp:
		addr := c.SP + uint32(in.Imm)
		v, err := bus.ReadWord(addr)
		if err != nil {
			slog.Warn("LDR SP-relative fault, register unchanged", "addr", addr)
			break
		}
		c.R[in.Rd] = v
	case OpStrSp:
		addr := c.SP + uint32(in.Imm)
		if err := bus.WriteWord(addr, c.R[in.Rd]); err != nil {
			slog.Warn("STR SP-relative fault", "addr", addr)
		}

	case OpPush:
		count := bits.OnesCount8(in.Regs)
		if in.IncludeLR {
			count++
		}
		newSP := c.SP - uint32(4*count)
		addr := newSP
		for bit := 0; bit < 8; bit++ {
			if in.Regs&(1<<uint(bit)) == 0 {
				continue
			}
			if err := bus.WriteWord(addr, c.R[bit]); err != nil {
				slog.Warn("PUSH fault", "addr", addr)
			}
			addr += 4
		}
		if in.IncludeLR {
			if err := bus.WriteWord(addr, c.LR); err != nil {
				slog.Warn("PUSH fault", "addr", addr)
			}
		}
		c.SP = newSP

	case OpPop:
		addr := c.SP
		for bit := 0; bit < 8; bit++ {
			if in.Regs&(1<<uint(bit)) == 0 {
				continue
			}
			v, err := bus.ReadWord(addr)
			if err != nil {
				slog.Warn("POP fault", "addr", addr)
			} else {
				c.R[bit] = v
			}
			addr += 4
		}
		if in.IncludePC {
			v, err := bus.ReadWord(addr)
			addr += 4
			c.SP = addr
			if err != nil {
				slog.Warn("POP fault reading PC", "addr", addr)
				break
			}
			c.branchOrReturn(bus, v)
			*pcIncrement = 0
		} else {
			c.SP = addr
		}

	case OpBranch:
		c.PCReg = fetchPC + 4 + uint32(in.Offset)
		*pcIncrement = 0

	case OpBranchCond:
		if evalCond(in.Cond, c.XPSR) {
			c.PCReg = fetchPC + 4 + uint32(in.Offset)
			*pcIncrement = 0
		}

	case OpBx:
		target := c.GetReg(in.Rm)
		c.branchOrReturn(bus, target)
		*pcIncrement = 0

	case OpAddSpImm:
		c.SP += uint32(in.Imm)
	case OpSubSpImm:
		c.SP -= uint32(in.Imm)

	case OpMovRegHi:
		v := c.GetReg(in.Rm)
		c.SetReg(in.Rd, v)
		if in.Rd == 15 {
			c.PCReg &^= 1
			*pcIncrement = 0
		}

	case OpBl:
		c.LR = (fetchPC + 4) | 1
		c.PCReg = fetchPC + 4 + uint32(in.Offset)
		*pcIncrement = 0

	case OpMovw:
		v := c.GetReg(in.Rd)
		c.SetReg(in.Rd, (v &^ 0xFFFF) | uint32(in.Imm))
	case OpMovt:
		v := c.GetReg(in.Rd)
		c.SetReg(in.Rd, (v & 0xFFFF) | (uint32(in.Imm) << 16))
	}
}
