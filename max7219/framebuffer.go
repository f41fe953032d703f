// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package max7219

// FrameBuffer holds one byte per LED column, left to right. Each byte is the
// vertical 8 pixel state of its column.
//
// Column j*8+i belongs to chip j of the chain and is sent through the digit
// register 8-i of that chip.
type FrameBuffer []byte

// NewFrameBuffer returns a blank buffer for chips cascaded units.
func NewFrameBuffer(chips int) FrameBuffer {
	if chips < 0 {
		chips = 0
	}
	return make(FrameBuffer, chips*8)
}

// Width is the number of columns.
func (b FrameBuffer) Width() int {
	return len(b)
}

// Clear turns every LED off.
func (b FrameBuffer) Clear() {
	for ix := range b {
		b[ix] = 0
	}
}

// Set writes a column. Writes outside the buffer are dropped.
func (b FrameBuffer) Set(col int, value byte) {
	if col >= 0 && col < len(b) {
		b[col] = value
	}
}

// Or sets the bits of mask on a column. Writes outside the buffer are
// dropped.
func (b FrameBuffer) Or(col int, mask byte) {
	if col >= 0 && col < len(b) {
		b[col] |= mask
	}
}

// At returns a column, 0 outside the buffer.
func (b FrameBuffer) At(col int) byte {
	if col >= 0 && col < len(b) {
		return b[col]
	}
	return 0
}
