package memory

import "testing"

func TestReadWriteByte(t *testing.T) {
	r := New(0x2000_0000, 1024)
	for i := range uint32(256) {
		addr := 0x2000_0000 + i*4
		if !r.WriteByte(addr, uint8(i)) {
			t.Errorf("WriteByte(%#x) reported out of range", addr)
		}
	}
	for i := range uint32(256) {
		addr := 0x2000_0000 + i*4
		v, ok := r.ReadByte(addr)
		if !ok {
			t.Errorf("ReadByte(%#x) reported out of range", addr)
		}
		if v != uint8(i) {
			t.Errorf("ReadByte(%#x) = %d, want %d", addr, v, i)
		}
	}
}

func TestOutOfRange(t *testing.T) {
	r := New(0x2000_0000, 1024)
	if _, ok := r.ReadByte(0x1000_0000); ok {
		t.Errorf("ReadByte below base reported in range")
	}
	if _, ok := r.ReadByte(0x2000_0400); ok {
		t.Errorf("ReadByte at base+size reported in range")
	}
	if r.WriteByte(0x2000_0400, 1) {
		t.Errorf("WriteByte at base+size reported success")
	}
}

func TestLoadSegment(t *testing.T) {
	r := New(0x0000_0000, 256)
	seg := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	if !r.LoadSegment(0x10, seg) {
		t.Errorf("LoadSegment reported failure for a segment that fits")
	}
	for i, want := range seg {
		v, _ := r.ReadByte(0x10 + uint32(i))
		if v != want {
			t.Errorf("byte %d = %#x, want %#x", i, v, want)
		}
	}
	if r.LoadSegment(0x200, []byte{1, 2}) {
		t.Errorf("LoadSegment reported success for a segment past the end of the region")
	}
	if r.LoadSegment(0xF0, make([]byte, 32)) {
		t.Errorf("LoadSegment reported success for a segment that overruns the region")
	}
}

func TestContains(t *testing.T) {
	r := New(0x4000_0000, 0x100)
	cases := []struct {
		addr uint32
		want bool
	}{
		{0x3FFF_FFFF, false},
		{0x4000_0000, true},
		{0x4000_00FF, true},
		{0x4000_0100, false},
	}
	for _, c := range cases {
		if got := r.Contains(c.addr); got != c.want {
			t.Errorf("Contains(%#x) = %v, want %v", c.addr, got, c.want)
		}
	}
}
