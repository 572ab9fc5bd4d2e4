// Package nvic implements the nested vectored interrupt controller's
// shared enable/pending state and its memory-mapped register window.
//
// The state is held behind sync/atomic words rather than a single mutable
// root, because both the bus (which sets pending bits while ticking
// peripherals) and this package's own Device (which responds to
// memory-mapped ISER/ICER/ISPR/ICPR writes from the CPU) must mutate it
// concurrently with respect to each other.
package nvic

import "sync/atomic"

// Offsets within the NVIC register window.
const (
	OffISER = 0x000
	OffICER = 0x080
	OffISPR = 0x100
	OffICPR = 0x180
)

const words = 8

// State is the NVIC's enable/pending arrays, shared between the bus and
// the NVIC peripheral entry.
type State struct {
	iser [words]atomic.Uint32
	ispr [words]atomic.Uint32
}

// NewState returns a freshly zeroed NVIC state.
func NewState() *State {
	return &State{}
}

// SetPending ORs bit (irq-16)%32 into ISPR[(irq-16)/32]. Used by the bus
// when a peripheral raises an IRQ >= 16.
func (s *State) SetPending(irq uint32) {
	idx := (irq - 16) / 32
	bit := (irq - 16) % 32
	if idx >= words {
		return
	}
	for old := s.ispr[idx].Load(); !s.ispr[idx].CompareAndSwap(old, old|1<<bit); old = s.ispr[idx].Load() {
	}
}

// EnabledPending returns, for word i (0..8), the bitwise AND of ISER[i] and
// ISPR[i] — the set of IRQs in that word that are both enabled and
// pending.
func (s *State) EnabledPending(i int) uint32 {
	return s.iser[i].Load() & s.ispr[i].Load()
}

func (s *State) iserWord(i int) uint32 { return s.iser[i].Load() }
func (s *State) isprWord(i int) uint32 { return s.ispr[i].Load() }

// Device is the memory-mapped NVIC peripheral: byte-addressable access to
// the shared State's ISER/ICER/ISPR/ICPR windows.
type Device struct {
	State *State
}

// New builds the NVIC peripheral entry backed by state.
func New(state *State) *Device {
	return &Device{State: state}
}

func wordAndByte(offset uint32) (idx int, byteOff uint, ok bool) {
	idx = int(offset / 4)
	byteOff = uint(offset % 4)
	ok = idx < words
	return
}

func (d *Device) ReadByte(offset uint32) uint8 {
	var val uint32
	switch {
	case offset >= OffISER && offset < OffISER+0x20:
		idx, byteOff, ok := wordAndByte(offset - OffISER)
		if !ok {
			return 0
		}
		val = d.State.iserWord(idx)
		return uint8(val >> (byteOff * 8))
	case offset >= OffISPR && offset < OffISPR+0x20:
		idx, byteOff, ok := wordAndByte(offset - OffISPR)
		if !ok {
			return 0
		}
		val = d.State.isprWord(idx)
		return uint8(val >> (byteOff * 8))
	default:
		return 0
	}
}

func (d *Device) WriteByte(offset uint32, v uint8) {
	switch {
	case offset >= OffISER && offset < OffISER+0x20:
		idx, byteOff, ok := wordAndByte(offset - OffISER)
		if !ok {
			return
		}
		w, m := &d.State.iser[idx], uint32(v)<<(byteOff*8)
		for old := w.Load(); !w.CompareAndSwap(old, old|m); old = w.Load() {
		}
	case offset >= OffICER && offset < OffICER+0x20:
		idx, byteOff, ok := wordAndByte(offset - OffICER)
		if !ok {
			return
		}
		w, m := &d.State.iser[idx], uint32(v)<<(byteOff*8)
		for old := w.Load(); !w.CompareAndSwap(old, old&^m); old = w.Load() {
		}
	case offset >= OffISPR && offset < OffISPR+0x20:
		idx, byteOff, ok := wordAndByte(offset - OffISPR)
		if !ok {
			return
		}
		w, m := &d.State.ispr[idx], uint32(v)<<(byteOff*8)
		for old := w.Load(); !w.CompareAndSwap(old, old|m); old = w.Load() {
		}
	case offset >= OffICPR && offset < OffICPR+0x20:
		idx, byteOff, ok := wordAndByte(offset - OffICPR)
		if !ok {
			return
		}
		w, m := &d.State.ispr[idx], uint32(v)<<(byteOff*8)
		for old := w.Load(); !w.CompareAndSwap(old, old&^m); old = w.Load() {
		}
	}
}

// Tick never raises an interrupt itself; the NVIC only reacts to writes
// and to the bus's SetPending calls.
func (d *Device) Tick() (bool, int) {
	return false, 0
}
