/*
 * labwired - Machine orchestration and debug control
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

// Package machine owns the CPU, the bus, the observer list, and the
// breakpoint set, and drives the per-step control flow spec §5 pins
// down: exception-entry check, fetch/decode/execute, bus tick, NVIC
// apply, observer notification.
package machine

import (
	"fmt"

	"github.com/labwired/labwired-go/internal/armthumb"
	"github.com/labwired/labwired-go/internal/bus"
	"github.com/labwired/labwired-go/internal/cpu"
	"github.com/labwired/labwired-go/internal/loader"
	"github.com/labwired/labwired-go/internal/nvic"
	"github.com/labwired/labwired-go/internal/peripheral"
	"github.com/labwired/labwired-go/internal/scb"
)

// Observer receives callbacks at step boundaries and peripheral ticks.
// PerformanceMetrics (internal/metrics.Performance) is one
// implementation; a snapshot writer or a future DAP front-end could be
// another.
type Observer interface {
	OnStep(pc uint32, cycles int)
	OnPeripheralTick(irqs []uint32)
}

// StopReason classifies why Run returned without an error.
type StopReason int

const (
	StopMaxSteps StopReason = iota
	StopBreakpoint
)

func (s StopReason) String() string {
	switch s {
	case StopBreakpoint:
		return "breakpoint"
	default:
		return "max_steps"
	}
}

// RunResult reports how Run stopped.
type RunResult struct {
	Reason       StopReason
	BreakpointPC uint32
	Steps        uint64
}

// Machine owns one CPU core and one bus and drives them together. CPU
// and bus lifetime match the Machine's; peripherals belong to the bus;
// observers are shared references the caller still owns.
type Machine struct {
	CPU    cpu.Core
	Bus    *bus.SystemBus
	Shared *bus.Shared // nil for machines not wired to SCB/NVIC (e.g. a bare RV32I machine).

	Observers   []Observer
	Breakpoints map[uint32]bool
}

// WithBus constructs a Machine around an ARMv7-M core: a fresh CortexM,
// the provided bus, a shared atomic VTOR, and a shared NVIC state. It
// installs (or replaces) the SCB and NVIC peripheral entries at their
// standard addresses so the shared state the core consults is the same
// state the memory-mapped registers mutate.
func WithBus(b *bus.SystemBus) *Machine {
	shared := &bus.Shared{NVIC: nvic.NewState(), VTOR: scb.NewVTOR()}
	b.SetNVIC(shared.NVIC)
	b.RemovePeripheralAt(bus.SCBBase)
	b.RemovePeripheralAt(bus.NVICBase)
	b.AddPeripheral(&peripheral.Entry{Name: "scb", Base: bus.SCBBase, Size: bus.SCBSize, Dev: scb.New(shared.VTOR)})
	b.AddPeripheral(&peripheral.Entry{Name: "nvic", Base: bus.NVICBase, Size: bus.NVICSize, Dev: nvic.New(shared.NVIC)})

	return &Machine{
		CPU:         armthumb.New(shared.VTOR),
		Bus:         b,
		Shared:      shared,
		Breakpoints: make(map[uint32]bool),
	}
}

// New wraps an already-constructed core and bus directly — used for the
// RV32I path, which has no VTOR/NVIC wiring of its own.
func New(core cpu.Core, b *bus.SystemBus) *Machine {
	return &Machine{CPU: core, Bus: b, Breakpoints: make(map[uint32]bool)}
}

// LoadFirmware copies each segment of image into whichever of flash/RAM
// contains its start address, resets the CPU, and applies the
// bare-binary entry-point fallback if reset left PC at zero.
func (m *Machine) LoadFirmware(image loader.Image) {
	for _, seg := range image.Segments {
		if !m.Bus.LoadSegment(seg.Addr, seg.Bytes) {
			bus.LogUnresolved("load_segment", seg.Addr)
		}
	}
	m.CPU.Reset(m.Bus)
	if m.CPU.PC() == 0 {
		if setter, ok := m.CPU.(cpu.PCSetter); ok {
			setter.SetPC(image.EntryPoint)
		}
	}
}

// Step performs exactly one simulation step: CPU step (which internally
// services a pending exception before fetch/decode/execute), bus tick,
// NVIC-signaled IRQ delivery to the CPU's pending set, then observer
// notification.
func (m *Machine) Step() error {
	if err := m.CPU.Step(m.Bus); err != nil {
		return err
	}

	irqs := m.Bus.TickPeripherals()
	if ic, ok := m.CPU.(cpu.Interruptible); ok {
		for _, irq := range irqs {
			ic.PendException(irq)
		}
	}

	for _, obs := range m.Observers {
		obs.OnStep(m.CPU.PC(), 1)
		if len(irqs) > 0 {
			obs.OnPeripheralTick(irqs)
		}
	}
	return nil
}

// Run steps until a breakpoint is hit, max_steps is reached, or the CPU
// returns an error. A breakpoint check happens before each step against
// PC & ~1, matching the Thumb-bit-insensitive breakpoint addresses used
// everywhere else in debug control.
func (m *Machine) Run(maxSteps uint64) (RunResult, error) {
	var steps uint64
	for steps < maxSteps {
		pc := m.CPU.PC() &^ 1
		if m.Breakpoints[pc] {
			return RunResult{Reason: StopBreakpoint, BreakpointPC: pc, Steps: steps}, nil
		}
		if err := m.Step(); err != nil {
			return RunResult{Steps: steps}, err
		}
		steps++
	}
	return RunResult{Reason: StopMaxSteps, Steps: steps}, nil
}

// AddBreakpoint and RemoveBreakpoint manage the breakpoint set Run
// consults.
func (m *Machine) AddBreakpoint(pc uint32)    { m.Breakpoints[pc&^1] = true }
func (m *Machine) RemoveBreakpoint(pc uint32) { delete(m.Breakpoints, pc&^1) }

// ReadMemory reads length bytes starting at addr, byte by byte through
// the bus. Any unresolved address aborts the whole read.
func (m *Machine) ReadMemory(addr uint32, length int) ([]byte, error) {
	out := make([]byte, length)
	for i := 0; i < length; i++ {
		v, err := m.Bus.ReadByte(addr + uint32(i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// WriteMemory writes data starting at addr, byte by byte through the
// bus. Per spec §9 open question (iii), this is fail-fast: the first
// unresolved address aborts the write and returns MemoryViolation, even
// though earlier bytes in the same call may already have landed.
func (m *Machine) WriteMemory(addr uint32, data []byte) error {
	for i, v := range data {
		if err := m.Bus.WriteByte(addr+uint32(i), v); err != nil {
			return err
		}
	}
	return nil
}

// GetRegister and SetRegister implement debug-control register access
// for whichever core architecture is loaded.
func (m *Machine) GetRegister(n int) (uint32, error) {
	ra, ok := m.CPU.(cpu.RegisterAccess)
	if !ok {
		return 0, fmt.Errorf("machine: core does not support register access")
	}
	return ra.GetReg(n), nil
}

func (m *Machine) SetRegister(n int, v uint32) error {
	ra, ok := m.CPU.(cpu.RegisterAccess)
	if !ok {
		return fmt.Errorf("machine: core does not support register access")
	}
	ra.SetReg(n, v)
	return nil
}

// Snapshot implements the interactive-mode register-file snapshot (spec
// §6): CPU state plus whatever peripherals choose to report.
type Snapshot struct {
	Type        string                 `json:"type"`
	CPU         cpu.CPUSnapshot        `json:"cpu"`
	Peripherals map[string]interface{} `json:"peripherals"`
}

func (m *Machine) Snapshot() (Snapshot, error) {
	snap, ok := m.CPU.(cpu.Snapshotter)
	if !ok {
		return Snapshot{}, fmt.Errorf("machine: core does not support snapshotting")
	}
	return Snapshot{
		Type:        "interactive_cortex_m",
		CPU:         snap.Snapshot(),
		Peripherals: m.Bus.PeripheralStates(),
	}, nil
}
