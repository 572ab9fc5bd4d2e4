package bus

import (
	"testing"

	"github.com/labwired/labwired-go/internal/memory"
	"github.com/labwired/labwired-go/internal/nvic"
	"github.com/labwired/labwired-go/internal/peripheral"
	"github.com/labwired/labwired-go/internal/simerr"
)

func newTestBus() *SystemBus {
	return New(memory.New(0, 0x100), memory.New(0x2000_0000, 0x100))
}

func TestReadWriteRoundTrip(t *testing.T) {
	b := newTestBus()
	if err := b.WriteByte(0x2000_0010, 0x42); err != nil {
		t.Fatalf("WriteByte: %v", err)
	}
	v, err := b.ReadByte(0x2000_0010)
	if err != nil {
		t.Fatalf("ReadByte: %v", err)
	}
	if v != 0x42 {
		t.Fatalf("ReadByte = %#x, want 0x42", v)
	}
}

func TestUnresolvedIsMemoryViolation(t *testing.T) {
	b := newTestBus()
	_, err := b.ReadByte(0x9000_0000)
	var mv *simerr.MemoryViolation
	if err == nil {
		t.Fatalf("expected MemoryViolation, got nil")
	}
	if !asMemoryViolation(err, &mv) {
		t.Fatalf("expected *simerr.MemoryViolation, got %T", err)
	}
}

func asMemoryViolation(err error, target **simerr.MemoryViolation) bool {
	mv, ok := err.(*simerr.MemoryViolation)
	if ok {
		*target = mv
	}
	return ok
}

func TestWordLittleEndian(t *testing.T) {
	b := newTestBus()
	if err := b.WriteWord(0x2000_0000, 0x0102_0304); err != nil {
		t.Fatalf("WriteWord: %v", err)
	}
	b0, _ := b.ReadByte(0x2000_0000)
	b1, _ := b.ReadByte(0x2000_0001)
	b2, _ := b.ReadByte(0x2000_0002)
	b3, _ := b.ReadByte(0x2000_0003)
	if b0 != 0x04 || b1 != 0x03 || b2 != 0x02 || b3 != 0x01 {
		t.Fatalf("bytes = %02x %02x %02x %02x, want 04 03 02 01", b0, b1, b2, b3)
	}
	v, err := b.ReadWord(0x2000_0000)
	if err != nil {
		t.Fatalf("ReadWord: %v", err)
	}
	if v != 0x0102_0304 {
		t.Fatalf("ReadWord = %#x, want 0x01020304", v)
	}
}

type fakeIRQPeripheral struct {
	raiseOn int
	calls   int
}

func (f *fakeIRQPeripheral) ReadByte(uint32) uint8   { return 0 }
func (f *fakeIRQPeripheral) WriteByte(uint32, uint8) {}
func (f *fakeIRQPeripheral) Tick() (bool, int) {
	f.calls++
	return f.calls == f.raiseOn, 1
}

func TestTickPeripheralsRoutesCoreExceptionDirectly(t *testing.T) {
	b := newTestBus()
	irq := uint32(15)
	b.AddPeripheral(&peripheral.Entry{Name: "fake", Base: 0x5000_0000, Size: 4, IRQ: &irq, Dev: &fakeIRQPeripheral{raiseOn: 1}})
	got := b.TickPeripherals()
	if len(got) != 1 || got[0] != 15 {
		t.Fatalf("TickPeripherals = %v, want [15]", got)
	}
}

func TestTickPeripheralsSetsNVICPendingForHighIRQ(t *testing.T) {
	b := newTestBus()
	state := nvic.NewState()
	b.SetNVIC(state)
	irq := uint32(20)
	b.AddPeripheral(&peripheral.Entry{Name: "fake", Base: 0x5000_0000, Size: 4, IRQ: &irq, Dev: &fakeIRQPeripheral{raiseOn: 1}})

	// Not enabled yet: tick sets ISPR but nothing comes back.
	if got := b.TickPeripherals(); len(got) != 0 {
		t.Fatalf("expected no IRQs before enable, got %v", got)
	}
	// Enable IRQ 20 (bit 4 of word 0) and tick the NVIC-installed peripheral again.
	state.SetPending(20) // idempotent re-set, no-op beyond already pending
	enableWord(state, 0, 1<<4)
	got := b.TickPeripherals()
	if len(got) != 1 || got[0] != 20 {
		t.Fatalf("TickPeripherals = %v, want [20]", got)
	}
}

func enableWord(s *nvic.State, word int, mask uint32) {
	d := nvic.New(s)
	base := uint32(nvic.OffISER + word*4)
	for i := uint32(0); i < 4; i++ {
		d.WriteByte(base+i, uint8(mask>>(i*8)))
	}
}
