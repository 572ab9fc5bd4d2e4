// Package uart implements the minimal UART peripheral: a TX data register
// whose writes are captured to a byte sink (and optionally echoed), and an
// always-ready status register. There is no RX and no interrupt in this
// core.
package uart

import "sync"

const (
	offTXData = 0x00
	offStatus = 0x04

	statusTXReady = 0x01
)

// Sink receives every byte written to the TX data register. Access is
// behind a scoped mutex acquired for the duration of each write, per the
// resource-acquisition rule in spec §5: the lock is never held across a
// call boundary.
type Sink struct {
	mu   sync.Mutex
	data []byte
}

// Bytes returns a copy of everything captured so far.
func (s *Sink) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out
}

func (s *Sink) append(b byte) {
	s.mu.Lock()
	s.data = append(s.data, b)
	s.mu.Unlock()
}

// Device is the UART peripheral.
type Device struct {
	Sink *Sink
	Echo bool

	echoFn func(b byte)
}

// New returns a UART backed by sink. When echo is true, TX bytes are also
// written via echoFn (typically os.Stdout).
func New(sink *Sink, echo bool, echoFn func(b byte)) *Device {
	return &Device{Sink: sink, Echo: echo, echoFn: echoFn}
}

func (d *Device) ReadByte(offset uint32) uint8 {
	if offset == offStatus {
		return statusTXReady
	}
	return 0
}

func (d *Device) WriteByte(offset uint32, v uint8) {
	if offset != offTXData {
		return
	}
	if d.Sink != nil {
		d.Sink.append(v)
	}
	if d.Echo && d.echoFn != nil {
		d.echoFn(v)
	}
}

// Tick never raises an interrupt.
func (d *Device) Tick() (bool, int) {
	return false, 0
}

// JSONState implements peripheral.Introspectable.
func (d *Device) JSONState() any {
	captured := 0
	if d.Sink != nil {
		captured = len(d.Sink.Bytes())
	}
	return struct {
		TXReady       bool `json:"tx_ready"`
		CapturedBytes int  `json:"captured_bytes"`
	}{TXReady: true, CapturedBytes: captured}
}
