/*
labwired Peripheral interface

	Copyright (c) 2024, Richard Cornwell

	Permission is hereby granted, free of charge, to any person obtaining a
	copy of this software and associated documentation files (the "Software"),
	to deal in the Software without restriction, including without limitation
	the rights to use, copy, modify, merge, publish, distribute, sublicense,
	and/or sell copies of the Software, and to permit persons to whom the
	Software is furnished to do so, subject to the following conditions:

	The above copyright notice and this permission notice shall be included in
	all copies or substantial portions of the Software.

	THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
	IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
	FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
	RICHARD CORNWELL BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
	IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
	CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*/

// Package peripheral defines the polymorphic contract every memory-mapped
// device on the bus implements, and the bus-side bookkeeping (Entry) that
// locates one in the address space.
package peripheral

// Device is the interface every memory-mapped peripheral satisfies. Adding
// a peripheral never requires a change to the bus: the bus only ever talks
// to this interface.
type Device interface {
	// ReadByte returns the byte at offset within the device's register
	// window.
	ReadByte(offset uint32) uint8
	// WriteByte stores v at offset within the device's register window.
	WriteByte(offset uint32, v uint8)
	// Tick advances the device by one simulation step, returning whether
	// it wants to raise its configured IRQ this step and how many cycles
	// it consumed.
	Tick() (irqRaised bool, cycles int)
}

// Introspectable is an optional interface a Device can implement to
// contribute to Machine's interactive-mode snapshot (spec §6). Devices
// that don't implement it are simply omitted from the snapshot.
type Introspectable interface {
	JSONState() any
}

// Entry binds a Device into the bus's address space.
type Entry struct {
	Name string
	Base uint32
	Size uint32
	IRQ  *uint32 // nil means the peripheral never raises an interrupt.
	Dev  Device
}

// Contains reports whether addr falls inside this entry's register window.
func (e *Entry) Contains(addr uint32) bool {
	off := uint64(addr) - uint64(e.Base)
	return off < uint64(e.Size)
}
