// Package scb implements the System Control Block. The only modeled
// register is VTOR, held as a single shared atomic word so both the SCB
// device (write path, from the CPU) and the CPU core (read path, at reset
// and exception entry) observe updates without requiring a single
// exclusive owner.
package scb

import "sync/atomic"

// VTOROffset is the offset of VTOR within the SCB's register window
// (absolute address 0xE000_ED08 in the standard memory map).
const VTOROffset = 0x08

// VTOR is the shared vector-table-offset word.
type VTOR struct {
	word atomic.Uint32
}

// NewVTOR returns a VTOR initialized to zero.
func NewVTOR() *VTOR {
	return &VTOR{}
}

// Load returns the current VTOR value.
func (v *VTOR) Load() uint32 { return v.word.Load() }

// Store sets VTOR to val.
func (v *VTOR) Store(val uint32) { v.word.Store(val) }

// Device is the memory-mapped SCB peripheral.
type Device struct {
	VTOR *VTOR
}

// New builds the SCB peripheral entry backed by vtor.
func New(vtor *VTOR) *Device {
	return &Device{VTOR: vtor}
}

func (d *Device) ReadByte(offset uint32) uint8 {
	if offset < VTOROffset || offset >= VTOROffset+4 {
		return 0
	}
	shift := (offset - VTOROffset) * 8
	return uint8(d.VTOR.Load() >> shift)
}

func (d *Device) WriteByte(offset uint32, v uint8) {
	if offset < VTOROffset || offset >= VTOROffset+4 {
		return
	}
	shift := (offset - VTOROffset) * 8
	mask := uint32(0xFF) << shift
	cur := d.VTOR.Load()
	cur = (cur &^ mask) | (uint32(v) << shift)
	d.VTOR.Store(cur)
}

func (d *Device) Tick() (bool, int) {
	return false, 0
}
