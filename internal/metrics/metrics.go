// Package metrics implements the Performance observer named in spec
// component C12: step/cycle counters a Machine can report through
// without any component upstream needing to know metrics exist.
package metrics

import (
	"sync/atomic"
	"time"
)

// Performance is an Observer that counts instructions and cycles and
// derives instructions-per-second from wall-clock elapsed time. Counters
// are atomic so a caller can read them from another goroutine (e.g. a
// status endpoint) while a step loop is running, even though the step
// loop itself is single-threaded.
type Performance struct {
	instructions atomic.Uint64
	cycles       atomic.Uint64
	start        time.Time
}

// New returns a Performance observer with its clock started now.
func New() *Performance {
	return &Performance{start: time.Now()}
}

// Reset zeroes both counters without resetting the start clock.
func (p *Performance) Reset() {
	p.instructions.Store(0)
	p.cycles.Store(0)
}

// OnStep implements machine.Observer: one instruction, one or more
// cycles.
func (p *Performance) OnStep(pc uint32, cycles int) {
	p.instructions.Add(1)
	if cycles > 0 {
		p.cycles.Add(uint64(cycles))
	}
}

// OnPeripheralTick implements machine.Observer. Interrupt delivery is
// not separately costed in this model.
func (p *Performance) OnPeripheralTick(irqs []uint32) {}

// Instructions returns the total instruction count.
func (p *Performance) Instructions() uint64 { return p.instructions.Load() }

// Cycles returns the total cycle count.
func (p *Performance) Cycles() uint64 { return p.cycles.Load() }

// InstructionsPerSecond derives throughput from wall-clock elapsed time
// since New.
func (p *Performance) InstructionsPerSecond() float64 {
	elapsed := time.Since(p.start).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(p.Instructions()) / elapsed
}
