package machine

import (
	"testing"

	"github.com/labwired/labwired-go/internal/bus"
	"github.com/labwired/labwired-go/internal/loader"
	"github.com/labwired/labwired-go/internal/memory"
	"github.com/labwired/labwired-go/internal/riscv"
	"github.com/labwired/labwired-go/internal/uart"
)

func newTestMachine() *Machine {
	sink := &uart.Sink{}
	b, _ := bus.NewDefault(sink, false, nil)
	return WithBus(b)
}

func TestLoadFirmwareFallsBackToEntryPoint(t *testing.T) {
	m := newTestMachine()
	img := loader.Image{
		EntryPoint: 0x0000_0200,
		Segments:   []loader.Segment{{Addr: 0, Bytes: []byte{0x00, 0xBF}}}, // NOP; reset-PC vector at 0x4 left at zero.
	}
	m.LoadFirmware(img)
	if m.CPU.PC() != 0x0000_0200 {
		t.Fatalf("PC = %#x, want entry-point fallback 0x200", m.CPU.PC())
	}
}

func TestLoadFirmwareUsesVectorTableWhenPresent(t *testing.T) {
	m := newTestMachine()
	vtorSP := []byte{0x00, 0x00, 0x02, 0x20} // 0x20020000, little-endian
	vtorPC := []byte{0x01, 0x02, 0x00, 0x00} // 0x00000201, little-endian
	img := loader.Image{
		EntryPoint: 0xDEAD_BEEF, // must be ignored since the vector table is valid.
		Segments: []loader.Segment{
			{Addr: 0x0000_0000, Bytes: vtorSP},
			{Addr: 0x0000_0004, Bytes: vtorPC},
		},
	}
	m.LoadFirmware(img)
	if m.CPU.PC() != 0x0000_0200 {
		t.Fatalf("PC = %#x, want 0x200 from vector table", m.CPU.PC())
	}
}

func TestRunMaxSteps(t *testing.T) {
	m := newTestMachine()
	m.LoadFirmware(loader.Image{EntryPoint: 0, Segments: []loader.Segment{{Addr: 0, Bytes: []byte{0xBF, 0x00}}}})
	result, err := m.Run(3)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Reason != StopMaxSteps || result.Steps != 3 {
		t.Fatalf("result = %+v, want StopMaxSteps/3", result)
	}
}

func TestRunBreakpoint(t *testing.T) {
	m := newTestMachine()
	m.LoadFirmware(loader.Image{EntryPoint: 0, Segments: []loader.Segment{{Addr: 0, Bytes: []byte{0xBF, 0x00, 0xBF, 0x00}}}})
	m.AddBreakpoint(0x0000_0002)
	result, err := m.Run(10)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Reason != StopBreakpoint || result.BreakpointPC != 0x2 || result.Steps != 1 {
		t.Fatalf("result = %+v, want breakpoint at 0x2 after 1 step", result)
	}
}

func TestReadWriteMemory(t *testing.T) {
	m := newTestMachine()
	if err := m.WriteMemory(0x2000_0000, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("WriteMemory: %v", err)
	}
	got, err := m.ReadMemory(0x2000_0000, 4)
	if err != nil {
		t.Fatalf("ReadMemory: %v", err)
	}
	if string(got) != "\x01\x02\x03\x04" {
		t.Fatalf("ReadMemory = %v, want [1 2 3 4]", got)
	}
}

func TestSnapshotIncludesUART1(t *testing.T) {
	m := newTestMachine()
	m.LoadFirmware(loader.Image{EntryPoint: 0})
	if err := m.WriteMemory(bus.UART1Base, []byte("OK")); err != nil {
		t.Fatalf("WriteMemory: %v", err)
	}
	snap, err := m.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	state, ok := snap.Peripherals["uart1"]
	if !ok {
		t.Fatalf("Peripherals missing uart1: %+v", snap.Peripherals)
	}
	_ = state
}

func TestRiscvMachineRuns(t *testing.T) {
	b := bus.New(memory.New(0, 0x1000), memory.New(0x8000_0000, 0x1000))
	m := New(riscv.New(), b)
	// ADDI x1, x0, 5 at address 0.
	if err := b.WriteWord(0, 0x0050_0093); err != nil {
		t.Fatalf("WriteWord: %v", err)
	}
	m.CPU.Reset(b)
	m.CPU.(*riscv.RV32I).SetPC(0)
	if err := m.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	v, err := m.GetRegister(1)
	if err != nil {
		t.Fatalf("GetRegister: %v", err)
	}
	if v != 5 {
		t.Fatalf("x1 = %d, want 5", v)
	}
}
