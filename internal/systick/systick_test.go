package systick

import "testing"

func TestReloadSequence(t *testing.T) {
	d := New()
	const rvr = 3
	writeWord(d, offRVR, rvr)
	writeWord(d, offCSR, csrEnable|csrTickInt)

	want := []uint32{rvr, rvr - 1, rvr - 2, 0, rvr, rvr - 1}
	prevCVR := uint32(0)
	for i, w := range want {
		wantIRQ := prevCVR == 0
		irq, _ := d.Tick()
		if d.cvr != w {
			t.Fatalf("tick %d: CVR = %d, want %d", i, d.cvr, w)
		}
		// irq_raised is true exactly on ticks where CVR was 0 before decrement.
		if irq != wantIRQ {
			t.Fatalf("tick %d: irq_raised = %v, want %v", i, irq, wantIRQ)
		}
		prevCVR = d.cvr
	}
}

func TestDisabledIsNoop(t *testing.T) {
	d := New()
	writeWord(d, offRVR, 5)
	irq, cycles := d.Tick()
	if irq || cycles != 0 {
		t.Fatalf("disabled tick: irq=%v cycles=%d, want false,0", irq, cycles)
	}
}

func TestWriteCVRClearsCountFlag(t *testing.T) {
	d := New()
	writeWord(d, offRVR, 1)
	writeWord(d, offCSR, csrEnable)
	d.Tick() // reloads CVR and sets COUNTFLAG
	if d.csr&csrCountFlag == 0 {
		t.Fatalf("expected COUNTFLAG set after reload tick")
	}
	writeWord(d, offCVR, 0)
	if d.cvr != 0 || d.csr&csrCountFlag != 0 {
		t.Fatalf("write to CVR did not clear CVR/COUNTFLAG")
	}
}

func writeWord(d *Device, base uint32, v uint32) {
	for i := uint32(0); i < 4; i++ {
		d.WriteByte(base+i, uint8(v>>(i*8)))
	}
}
