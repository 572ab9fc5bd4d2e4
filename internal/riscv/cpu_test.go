package riscv

import (
	"testing"

	"github.com/labwired/labwired-go/internal/bus"
	"github.com/labwired/labwired-go/internal/memory"
)

func newTestSystem() (*RV32I, *bus.SystemBus) {
	b := bus.New(memory.New(0, 0x1000), memory.New(0x8000_0000, 0x1000))
	return New(), b
}

func TestAddi(t *testing.T) {
	r, b := newTestSystem()
	// ADDI x1, x0, 5 -> 0x00500093
	if err := b.WriteWord(0, 0x0050_0093); err != nil {
		t.Fatalf("WriteWord: %v", err)
	}
	r.PC = 0

	if err := r.Step(b); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if r.X[1] != 5 {
		t.Errorf("x1 = %d, want 5", r.X[1])
	}
	if r.PC != 4 {
		t.Errorf("PC = %#x, want 4", r.PC)
	}
}

func TestBeqTaken(t *testing.T) {
	r, b := newTestSystem()
	program := []uint32{
		0x00A0_0093, // ADDI x1, x0, 10
		0x00A0_0113, // ADDI x2, x0, 10
		0x0020_8463, // BEQ x1, x2, 8
		0x0010_0193, // ADDI x3, x0, 1 (skipped)
		0x0010_0213, // ADDI x4, x0, 1 (target)
	}
	for i, w := range program {
		if err := b.WriteWord(uint32(i*4), w); err != nil {
			t.Fatalf("WriteWord[%d]: %v", i, err)
		}
	}
	r.PC = 0

	if err := r.Step(b); err != nil {
		t.Fatalf("step 1: %v", err)
	}
	if r.X[1] != 10 {
		t.Fatalf("x1 = %d, want 10", r.X[1])
	}
	if err := r.Step(b); err != nil {
		t.Fatalf("step 2: %v", err)
	}
	if r.X[2] != 10 {
		t.Fatalf("x2 = %d, want 10", r.X[2])
	}
	if r.PC != 8 {
		t.Fatalf("PC before BEQ = %#x, want 8", r.PC)
	}
	if err := r.Step(b); err != nil {
		t.Fatalf("step 3 (BEQ): %v", err)
	}
	if r.PC != 16 {
		t.Fatalf("PC after BEQ taken = %#x, want 16", r.PC)
	}
	if err := r.Step(b); err != nil {
		t.Fatalf("step 4: %v", err)
	}
	if r.X[4] != 1 {
		t.Errorf("x4 = %d, want 1", r.X[4])
	}
	if r.X[3] != 0 {
		t.Errorf("x3 = %d, want 0 (instruction skipped by branch)", r.X[3])
	}
}

func TestX0HardwiredZero(t *testing.T) {
	r, b := newTestSystem()
	// ADDI x0, x0, 5 -> attempts to write x0, must stay zero.
	if err := b.WriteWord(0, 0x0050_0013); err != nil {
		t.Fatalf("WriteWord: %v", err)
	}
	r.PC = 0
	if err := r.Step(b); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if r.X[0] != 0 {
		t.Errorf("x0 = %d, want 0", r.X[0])
	}
}

func TestLoadStoreRoundTrip(t *testing.T) {
	r, b := newTestSystem()
	// Program: ADDI x1, x0, 0x8000_0000-base would overflow imm; instead
	// seed x1 via direct register write (register state, not firmware),
	// then SW x1 at 0(x2)=flash base, then LW x3, 0(x2).
	r.X[1] = 0xCAFEBABE
	r.X[2] = 0 // flash base
	// SW x1, 0(x2) -> opcode 0x23, funct3=2, rs1=2, rs2=1, imm=0
	sw := uint32(0x23) | (0 << 7) | (2 << 12) | (2 << 15) | (1 << 20)
	if err := b.WriteWord(0x100, sw); err != nil {
		t.Fatalf("WriteWord(sw): %v", err)
	}
	r.PC = 0x100
	if err := r.Step(b); err != nil {
		t.Fatalf("Step(sw): %v", err)
	}
	got, err := b.ReadWord(0)
	if err != nil {
		t.Fatalf("ReadWord: %v", err)
	}
	if got != 0xCAFEBABE {
		t.Errorf("stored word = %#x, want 0xCAFEBABE", got)
	}

	// LW x3, 0(x2) -> opcode 0x03, funct3=2, rd=3, rs1=2, imm=0
	lw := uint32(0x03) | (3 << 7) | (2 << 12) | (2 << 15)
	if err := b.WriteWord(0x104, lw); err != nil {
		t.Fatalf("WriteWord(lw): %v", err)
	}
	r.PC = 0x104
	if err := r.Step(b); err != nil {
		t.Fatalf("Step(lw): %v", err)
	}
	if r.X[3] != 0xCAFEBABE {
		t.Errorf("x3 = %#x, want 0xCAFEBABE", r.X[3])
	}
}

func TestDecodeErrorOnUnknownOpcode(t *testing.T) {
	r, b := newTestSystem()
	if err := b.WriteWord(0, 0xFFFF_FFFF); err != nil {
		t.Fatalf("WriteWord: %v", err)
	}
	r.PC = 0
	if err := r.Step(b); err == nil {
		t.Fatalf("expected DecodeError for unknown opcode, got nil")
	}
}

func TestResetSetsConventionalVector(t *testing.T) {
	r, b := newTestSystem()
	r.Reset(b)
	if r.PC != resetPC {
		t.Errorf("PC after reset = %#x, want %#x", r.PC, resetPC)
	}
}
