/*
 * labwired - System bus
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

// Package bus implements the memory-mapped system bus: address decode
// across RAM, flash, and a vector of peripherals, little-endian wide
// accesses composed from byte operations, and the per-step peripheral
// tick that collects raised interrupts.
package bus

import (
	"log/slog"

	"github.com/labwired/labwired-go/internal/memory"
	"github.com/labwired/labwired-go/internal/nvic"
	"github.com/labwired/labwired-go/internal/peripheral"
	"github.com/labwired/labwired-go/internal/simerr"
)

// SystemBus composes the two linear-memory regions with an ordered list
// of peripherals. RAM is tried first, then flash, then peripherals in
// insertion order — first match wins.
type SystemBus struct {
	RAM   *memory.Region
	Flash *memory.Region

	peripherals []*peripheral.Entry
	nvic        *nvic.State // nil if no NVIC is installed.
}

// New builds a bus over the given flash and RAM regions with no
// peripherals installed.
func New(flash, ram *memory.Region) *SystemBus {
	return &SystemBus{RAM: ram, Flash: flash}
}

// AddPeripheral appends e to the peripheral list. Order matters: it is
// both the address-decode priority among overlapping (which should not
// happen — see spec §3 invariant) entries and the tick order.
func (b *SystemBus) AddPeripheral(e *peripheral.Entry) {
	b.peripherals = append(b.peripherals, e)
}

// RemovePeripheralAt drops any existing peripheral entry whose base
// address equals base. Used by Machine.WithBus to make room for the SCB
// and NVIC entries it installs itself.
func (b *SystemBus) RemovePeripheralAt(base uint32) {
	out := b.peripherals[:0]
	for _, e := range b.peripherals {
		if e.Base != base {
			out = append(out, e)
		}
	}
	b.peripherals = out
}

// SetNVIC installs the shared NVIC state the bus uses to post pending
// bits for IRQs >= 16 during TickPeripherals.
func (b *SystemBus) SetNVIC(state *nvic.State) {
	b.nvic = state
}

func (b *SystemBus) findPeripheral(addr uint32) *peripheral.Entry {
	for _, e := range b.peripherals {
		if e.Contains(addr) {
			return e
		}
	}
	return nil
}

// ReadByte resolves addr against RAM, then flash, then peripherals.
func (b *SystemBus) ReadByte(addr uint32) (uint8, error) {
	if v, ok := b.RAM.ReadByte(addr); ok {
		return v, nil
	}
	if v, ok := b.Flash.ReadByte(addr); ok {
		return v, nil
	}
	if e := b.findPeripheral(addr); e != nil {
		return e.Dev.ReadByte(addr - e.Base), nil
	}
	return 0, &simerr.MemoryViolation{Addr: addr}
}

// WriteByte resolves addr the same way ReadByte does.
func (b *SystemBus) WriteByte(addr uint32, v uint8) error {
	if b.RAM.WriteByte(addr, v) {
		return nil
	}
	if b.Flash.WriteByte(addr, v) {
		return nil
	}
	if e := b.findPeripheral(addr); e != nil {
		e.Dev.WriteByte(addr-e.Base, v)
		return nil
	}
	return &simerr.MemoryViolation{Addr: addr}
}

// ReadHalf and ReadWord compose byte reads in little-endian order, the
// bus's only way of doing wide access (spec §4.2).
func (b *SystemBus) ReadHalf(addr uint32) (uint16, error) {
	lo, err := b.ReadByte(addr)
	if err != nil {
		return 0, err
	}
	hi, err := b.ReadByte(addr + 1)
	if err != nil {
		return 0, err
	}
	return uint16(lo) | uint16(hi)<<8, nil
}

func (b *SystemBus) ReadWord(addr uint32) (uint32, error) {
	lo, err := b.ReadHalf(addr)
	if err != nil {
		return 0, err
	}
	hi, err := b.ReadHalf(addr + 2)
	if err != nil {
		return 0, err
	}
	return uint32(lo) | uint32(hi)<<16, nil
}

// WriteHalf and WriteWord decompose into ascending-address byte writes —
// the hazard documented in spec §4.2 and §9 for write-triggered
// peripheral registers.
func (b *SystemBus) WriteHalf(addr uint32, v uint16) error {
	if err := b.WriteByte(addr, uint8(v)); err != nil {
		return err
	}
	return b.WriteByte(addr+1, uint8(v>>8))
}

func (b *SystemBus) WriteWord(addr uint32, v uint32) error {
	if err := b.WriteHalf(addr, uint16(v)); err != nil {
		return err
	}
	return b.WriteHalf(addr+2, uint16(v>>16))
}

// LoadSegment copies bytes into whichever of RAM/flash contains start,
// reporting false if neither does.
func (b *SystemBus) LoadSegment(start uint32, data []byte) bool {
	if b.Flash.LoadSegment(start, data) {
		return true
	}
	return b.RAM.LoadSegment(start, data)
}

// TickPeripherals implements the control flow of spec §4.2: tick every
// peripheral in insertion order, route IRQs >= 16 through the NVIC's
// pending set (if one is installed) and return raw core-exception numbers
// directly, then append every enabled-and-pending NVIC IRQ.
func (b *SystemBus) TickPeripherals() []uint32 {
	var raised []uint32
	for _, e := range b.peripherals {
		irq, _ := e.Dev.Tick()
		if !irq || e.IRQ == nil {
			continue
		}
		n := *e.IRQ
		if n >= 16 && b.nvic != nil {
			b.nvic.SetPending(n)
		} else {
			raised = append(raised, n)
		}
	}
	if b.nvic != nil {
		for i := 0; i < 8; i++ {
			word := b.nvic.EnabledPending(i)
			for bit := 0; bit < 32; bit++ {
				if word&(1<<uint(bit)) != 0 {
					raised = append(raised, uint32(16+32*i+bit))
				}
			}
		}
	}
	return raised
}

// PeripheralStates collects the JSON-able state of every peripheral that
// implements peripheral.Introspectable, keyed by name, for Machine's
// interactive-mode snapshot.
func (b *SystemBus) PeripheralStates() map[string]interface{} {
	out := make(map[string]interface{})
	for _, e := range b.peripherals {
		if in, ok := e.Dev.(peripheral.Introspectable); ok {
			out[e.Name] = in.JSONState()
		}
	}
	return out
}

// LogUnresolved is a small helper used by Machine when a debug read/write
// fails so the failure is visible without the caller having to format it.
func LogUnresolved(op string, addr uint32) {
	slog.Warn("bus access unresolved", "op", op, "addr", addr)
}
