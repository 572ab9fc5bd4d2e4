/*
 * labwired - Low level memory
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

// Package memory implements the linear, byte-addressable memory regions
// (flash and RAM) that make up the bottom of the bus's address decode.
package memory

// Region is a contiguous byte buffer based at a fixed address. It never
// returns an error from Read/Write: an out-of-range access signals the bus
// to try the next candidate region rather than faulting at this layer.
type Region struct {
	Base uint32
	buf  []byte
}

// New allocates a Region of size bytes starting at base.
func New(base uint32, size uint32) *Region {
	return &Region{Base: base, buf: make([]byte, size)}
}

// Contains reports whether addr falls within [Base, Base+len(buf)).
func (r *Region) Contains(addr uint32) bool {
	off := uint64(addr) - uint64(r.Base)
	return off < uint64(len(r.buf))
}

// ReadByte returns the byte at addr and true, or (0, false) if addr is
// outside the region.
func (r *Region) ReadByte(addr uint32) (uint8, bool) {
	if !r.Contains(addr) {
		return 0, false
	}
	return r.buf[addr-r.Base], true
}

// WriteByte stores v at addr, returning false if addr is outside the
// region (in which case nothing is written).
func (r *Region) WriteByte(addr uint32, v uint8) bool {
	if !r.Contains(addr) {
		return false
	}
	r.buf[addr-r.Base] = v
	return true
}

// LoadSegment copies bytes starting at start, returning true iff the
// entire segment fits within the region.
func (r *Region) LoadSegment(start uint32, bytes []byte) bool {
	if !r.Contains(start) {
		return false
	}
	end := start + uint32(len(bytes))
	// end == Base+len(buf) is the exact-fit case; Contains requires a
	// strict upper bound so check it separately.
	if uint64(end)-uint64(r.Base) > uint64(len(r.buf)) {
		return false
	}
	copy(r.buf[start-r.Base:], bytes)
	return true
}

// Size reports the region's byte length.
func (r *Region) Size() uint32 {
	return uint32(len(r.buf))
}
