package riscv

import (
	"github.com/labwired/labwired-go/internal/cpu"
)

// resetPC is the typical RISC-V reset vector used absent a firmware
// image's own entry point (varies by platform in real silicon).
const resetPC = 0x8000_0000

// RV32I is the parallel core: a flat register file of 32, x0 hardwired
// to zero, running the base integer ISA. It implements cpu.Core but not
// cpu.Interruptible — this spec models no RV32I interrupt/exception
// pending set.
type RV32I struct {
	X  [32]uint32
	PC uint32
}

// New returns an RV32I core with all registers zeroed.
func New() *RV32I {
	return &RV32I{}
}

// PC implements cpu.Core.
func (r *RV32I) PC() uint32 { return r.PC }

// SetPC implements cpu.PCSetter for Machine's bare-binary entry-point
// fallback.
func (r *RV32I) SetPC(v uint32) { r.PC = v }

// GetReg and SetReg implement cpu.RegisterAccess for debug control.
func (r *RV32I) GetReg(n int) uint32 {
	if n < 0 || n > 31 {
		return 0
	}
	return r.get(n)
}

func (r *RV32I) SetReg(n int, v uint32) {
	if n < 0 || n > 31 {
		return
	}
	r.set(n, v)
}

// Snapshot implements cpu.Snapshotter, mapping the 32-register RV32I
// file onto the ARM-shaped snapshot the way the reference implementation
// does: x0-x12 -> registers[0..13), x2 (sp) -> registers[13], x1 (ra) ->
// registers[14]. xpsr/primask/pending/vtor are always zero: this core
// models none of them.
func (r *RV32I) Snapshot() cpu.CPUSnapshot {
	var regs [16]uint32
	copy(regs[:13], r.X[:13])
	regs[13] = r.X[2]
	regs[14] = r.X[1]
	regs[15] = r.PC
	return cpu.CPUSnapshot{Registers: regs}
}

func (r *RV32I) get(n int) uint32 {
	if n == 0 {
		return 0
	}
	return r.X[n]
}

func (r *RV32I) set(n int, v uint32) {
	if n != 0 {
		r.X[n] = v
	}
}

// Reset implements cpu.Core.
func (r *RV32I) Reset(bus cpu.Bus) {
	r.X = [32]uint32{}
	r.PC = resetPC
}

// Step implements cpu.Core: fetch, decode, execute exactly one
// instruction. Unlike the Thumb core, an undecodable opcode is a hard
// DecodeError rather than a logged skip (spec §7).
func (r *RV32I) Step(bus cpu.Bus) error {
	word, err := bus.ReadWord(r.PC)
	if err != nil {
		return err
	}
	in, err := Decode(word, r.PC)
	if err != nil {
		return err
	}

	nextPC := r.PC + 4
	if err := r.execute(bus, in, &nextPC); err != nil {
		return err
	}
	r.X[0] = 0
	r.PC = nextPC
	return nil
}

func (r *RV32I) execute(bus cpu.Bus, in Instruction, nextPC *uint32) error {
	switch in.Op {
	case OpLui:
		r.set(in.Rd, uint32(in.Imm))
	case OpAuipc:
		r.set(in.Rd, r.PC+uint32(in.Imm))

	case OpJal:
		r.set(in.Rd, r.PC+4)
		*nextPC = r.PC + uint32(in.Imm)
	case OpJalr:
		target := (r.get(in.Rs1) + uint32(in.Imm)) &^ 1
		r.set(in.Rd, r.PC+4)
		*nextPC = target

	case OpBeq:
		if r.get(in.Rs1) == r.get(in.Rs2) {
			*nextPC = r.PC + uint32(in.Imm)
		}
	case OpBne:
		if r.get(in.Rs1) != r.get(in.Rs2) {
			*nextPC = r.PC + uint32(in.Imm)
		}
	case OpBlt:
		if int32(r.get(in.Rs1)) < int32(r.get(in.Rs2)) {
			*nextPC = r.PC + uint32(in.Imm)
		}
	case OpBge:
		if int32(r.get(in.Rs1)) >= int32(r.get(in.Rs2)) {
			*nextPC = r.PC + uint32(in.Imm)
		}
	case OpBltu:
		if r.get(in.Rs1) < r.get(in.Rs2) {
			*nextPC = r.PC + uint32(in.Imm)
		}
	case OpBgeu:
		if r.get(in.Rs1) >= r.get(in.Rs2) {
			*nextPC = r.PC + uint32(in.Imm)
		}

	case OpLb:
		addr := r.get(in.Rs1) + uint32(in.Imm)
		v, err := bus.ReadByte(addr)
		if err != nil {
			return err
		}
		r.set(in.Rd, uint32(int32(int8(v)))) // sign-extended, per spec §9 open question i.
	case OpLh:
		addr := r.get(in.Rs1) + uint32(in.Imm)
		v, err := bus.ReadHalf(addr)
		if err != nil {
			return err
		}
		r.set(in.Rd, uint32(int32(int16(v))))
	case OpLw:
		addr := r.get(in.Rs1) + uint32(in.Imm)
		v, err := bus.ReadWord(addr)
		if err != nil {
			return err
		}
		r.set(in.Rd, v)
	case OpLbu:
		addr := r.get(in.Rs1) + uint32(in.Imm)
		v, err := bus.ReadByte(addr)
		if err != nil {
			return err
		}
		r.set(in.Rd, uint32(v))
	case OpLhu:
		addr := r.get(in.Rs1) + uint32(in.Imm)
		v, err := bus.ReadHalf(addr)
		if err != nil {
			return err
		}
		r.set(in.Rd, uint32(v))

	case OpSb:
		addr := r.get(in.Rs1) + uint32(in.Imm)
		if err := bus.WriteByte(addr, uint8(r.get(in.Rs2))); err != nil {
			return err
		}
	case OpSh:
		addr := r.get(in.Rs1) + uint32(in.Imm)
		if err := bus.WriteHalf(addr, uint16(r.get(in.Rs2))); err != nil {
			return err
		}
	case OpSw:
		addr := r.get(in.Rs1) + uint32(in.Imm)
		if err := bus.WriteWord(addr, r.get(in.Rs2)); err != nil {
			return err
		}

	case OpAddi:
		r.set(in.Rd, r.get(in.Rs1)+uint32(in.Imm))
	case OpSlti:
		r.set(in.Rd, boolToWord(int32(r.get(in.Rs1)) < in.Imm))
	case OpSltiu:
		r.set(in.Rd, boolToWord(r.get(in.Rs1) < uint32(in.Imm)))
	case OpXori:
		r.set(in.Rd, r.get(in.Rs1)^uint32(in.Imm))
	case OpOri:
		r.set(in.Rd, r.get(in.Rs1)|uint32(in.Imm))
	case OpAndi:
		r.set(in.Rd, r.get(in.Rs1)&uint32(in.Imm))
	case OpSlli:
		r.set(in.Rd, r.get(in.Rs1)<<uint32(in.Imm))
	case OpSrli:
		r.set(in.Rd, r.get(in.Rs1)>>uint32(in.Imm))
	case OpSrai:
		r.set(in.Rd, uint32(int32(r.get(in.Rs1))>>uint32(in.Imm)))

	case OpAdd:
		r.set(in.Rd, r.get(in.Rs1)+r.get(in.Rs2))
	case OpSub:
		r.set(in.Rd, r.get(in.Rs1)-r.get(in.Rs2))
	case OpSll:
		r.set(in.Rd, r.get(in.Rs1)<<(r.get(in.Rs2)&0x1F))
	case OpSlt:
		r.set(in.Rd, boolToWord(int32(r.get(in.Rs1)) < int32(r.get(in.Rs2))))
	case OpSltu:
		r.set(in.Rd, boolToWord(r.get(in.Rs1) < r.get(in.Rs2)))
	case OpXor:
		r.set(in.Rd, r.get(in.Rs1)^r.get(in.Rs2))
	case OpSrl:
		r.set(in.Rd, r.get(in.Rs1)>>(r.get(in.Rs2)&0x1F))
	case OpSra:
		r.set(in.Rd, uint32(int32(r.get(in.Rs1))>>(r.get(in.Rs2)&0x1F)))
	case OpOr:
		r.set(in.Rd, r.get(in.Rs1)|r.get(in.Rs2))
	case OpAnd:
		r.set(in.Rd, r.get(in.Rs1)&r.get(in.Rs2))

	case OpFence:
		// No-op: this core has no out-of-order or multi-hart state to order.
	case OpEcall, OpEbreak:
		// No syscall ABI or debug-halt state modeled; logged at decode
		// time is unnecessary since neither traps.
	}
	return nil
}

func boolToWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
