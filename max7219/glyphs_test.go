// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package max7219

import "testing"

func TestGlyphs(t *testing.T) {
	// Verify our glyphs look OK.
	if len(asciiToRaw) != int('}'-' '+1) {
		t.Errorf("glyph table not expected length. Got: %d", len(asciiToRaw))
	}
	data := []struct {
		r    rune
		want byte
		ok   bool
	}{
		{' ', 0x00, true},
		{'.', 0x80, true},
		{'0', 0x7e, true},
		{'8', 0x7f, true},
		{'A', 0x77, true},
		{'}', 0x07, true},
		{'#', UnknownChar, false},
		{'~', UnknownChar, false},
		{'\n', UnknownChar, false},
		{0x7f, UnknownChar, false},
		{'€', UnknownChar, false},
		{-1, UnknownChar, false},
	}
	for _, line := range data {
		got, ok := Glyph(line.r)
		if got != line.want || ok != line.ok {
			t.Errorf("Glyph(%q) = 0x%x, %t; want 0x%x, %t", line.r, got, ok, line.want, line.ok)
		}
	}
}

func TestFrameBuffer(t *testing.T) {
	b := NewFrameBuffer(2)
	if b.Width() != 16 {
		t.Fatalf("Width() = %d", b.Width())
	}
	b.Set(0, 0x01)
	b.Or(0, 0x80)
	b.Set(15, 0xff)
	b.Set(16, 0xff)
	b.Or(-1, 0xff)
	if b.At(0) != 0x81 || b.At(15) != 0xff || b.At(16) != 0 || b.At(-1) != 0 {
		t.Errorf("unexpected content %x", []byte(b))
	}
	b.Clear()
	for ix := range b {
		if b[ix] != 0 {
			t.Fatalf("column %d not cleared", ix)
		}
	}
	if NewFrameBuffer(-1).Width() != 0 {
		t.Error("negative unit count must give an empty buffer")
	}
}
