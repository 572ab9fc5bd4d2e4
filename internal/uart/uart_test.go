package uart

import "testing"

func TestTXCaptureAndStatus(t *testing.T) {
	sink := &Sink{}
	d := New(sink, false, nil)
	for _, b := range []byte("OK\n") {
		d.WriteByte(offTXData, b)
	}
	if got := string(sink.Bytes()); got != "OK\n" {
		t.Fatalf("captured = %q, want %q", got, "OK\n")
	}
	if d.ReadByte(offStatus) != statusTXReady {
		t.Fatalf("status = %#x, want TX ready", d.ReadByte(offStatus))
	}
}

func TestEcho(t *testing.T) {
	sink := &Sink{}
	var echoed []byte
	d := New(sink, true, func(b byte) { echoed = append(echoed, b) })
	d.WriteByte(offTXData, 'x')
	if string(echoed) != "x" {
		t.Fatalf("echoed = %q, want %q", echoed, "x")
	}
}
