// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package max7219

import (
	"strings"
	"testing"
	"time"

	"github.com/GermanBionicSystems/max7219grid/timesource"
	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/spi/spitest"
)

func glyph(t *testing.T, r rune) byte {
	t.Helper()
	g, ok := Glyph(r)
	if !ok {
		t.Fatalf("no glyph for %q", r)
	}
	return g
}

func TestPrintString(t *testing.T) {
	dev, _, logger := newTestDev(t, 2)
	if n := dev.Print("HELLO"); n != 5 {
		t.Fatalf("Print() = %d, want 5", n)
	}
	want := make([]byte, 16)
	for ix, r := range "HELLO" {
		want[ix] = glyph(t, r)
	}
	if diff := cmp.Diff(want, dev.Columns()); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}
	if len(logger.warnings)+len(logger.errors) != 0 {
		t.Errorf("unexpected log lines: %v %v", logger.warnings, logger.errors)
	}
}

func TestPrintDecimalPoint(t *testing.T) {
	data := []struct {
		pos  int
		text string
		n    int
		want []byte
	}{
		{0, "1.2", 2, []byte{0b10110000, 0b01101101}},
		{0, ".", 1, []byte{0x80}},
		{0, ".5", 2, []byte{0x80, 0b01011011}},
		{3, "0.", 1, []byte{0, 0, 0, 0b11111110}},
		{0, "1..", 1, []byte{0b10110000}},
		{2, "12.5", 3, []byte{0, 0, 0b00110000, 0b11101101, 0b01011011}},
	}
	for _, line := range data {
		dev, _, _ := newTestDev(t, 1)
		if n := dev.PrintAt(line.pos, line.text); n != line.n {
			t.Errorf("PrintAt(%d, %q) = %d, want %d", line.pos, line.text, n, line.n)
		}
		want := make([]byte, 8)
		copy(want, line.want)
		if diff := cmp.Diff(want, dev.Columns()); diff != "" {
			t.Errorf("PrintAt(%d, %q) columns (-want +got):\n%s", line.pos, line.text, diff)
		}
	}
}

func TestPrintOverflow(t *testing.T) {
	dev, _, logger := newTestDev(t, 1)
	if n := dev.Print("0123456789"); n != 8 {
		t.Errorf("Print() = %d, want 8", n)
	}
	for ix, r := range "01234567" {
		if dev.Column(ix) != glyph(t, r) {
			t.Errorf("column %d = 0x%x", ix, dev.Column(ix))
		}
	}
	if len(logger.errors) != 1 {
		t.Errorf("expected one overflow error, got %v", logger.errors)
	}

	data := []struct {
		pos  int
		text string
		n    int
	}{
		{6, "abc", 2},
		{7, "8.8", 1},
		{8, "x", 0},
		{8, ".", 0},
		{20, "12", 0},
		{-1, "12", 0},
	}
	for _, line := range data {
		dev, _, _ := newTestDev(t, 1)
		n := dev.PrintAt(line.pos, line.text)
		if n != line.n {
			t.Errorf("PrintAt(%d, %q) = %d, want %d", line.pos, line.text, n, line.n)
		}
		if line.pos >= 0 && n > dev.Width()-line.pos && n != 0 {
			t.Errorf("PrintAt(%d, %q) used %d columns past the edge", line.pos, line.text, n)
		}
	}
}

func TestPrintUnknown(t *testing.T) {
	dev, _, logger := newTestDev(t, 1)
	if n := dev.Print("#é~A"); n != 4 {
		t.Fatalf("Print() = %d, want 4", n)
	}
	want := []byte{UnknownChar, UnknownChar, UnknownChar, glyph(t, 'A'), 0, 0, 0, 0}
	if diff := cmp.Diff(want, dev.Columns()); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}
	if len(logger.warnings) != 3 {
		t.Errorf("expected 3 warnings, got %v", logger.warnings)
	}
}

func TestPrintf(t *testing.T) {
	dev, _, _ := newTestDev(t, 1)
	if n := dev.Printf("%d.%d", 4, 2); n != 2 {
		t.Errorf("Printf() = %d", n)
	}
	if dev.Column(0) != glyph(t, '4')|DecimalPoint || dev.Column(1) != glyph(t, '2') {
		t.Errorf("columns %x", dev.Columns())
	}
	before := dev.Columns()
	if n := dev.PrintfAt(3, "%s", ""); n != 0 {
		t.Errorf("PrintfAt() = %d for an empty result", n)
	}
	if diff := cmp.Diff(before, dev.Columns()); diff != "" {
		t.Errorf("empty Printf changed the buffer:\n%s", diff)
	}
	if n := dev.PrintfAt(6, "%02d", 7); n != 2 || dev.Column(6) != glyph(t, '0') || dev.Column(7) != glyph(t, '7') {
		t.Errorf("PrintfAt(6) = %d, columns %x", n, dev.Columns())
	}
}

func TestPrintfBounded(t *testing.T) {
	dev, _, logger := newTestDev(t, 10)
	if n := dev.Printf("%s", strings.Repeat("8", 80)); n != timesource.MaxLength {
		t.Errorf("Printf() = %d, want %d", n, timesource.MaxLength)
	}
	if dev.Column(timesource.MaxLength) != 0 {
		t.Error("formatted text longer than the limit was printed")
	}
	if len(logger.errors) != 0 {
		t.Errorf("truncation must not be reported as overflow: %v", logger.errors)
	}
}

func TestStrftime(t *testing.T) {
	dev, _, _ := newTestDev(t, 1)
	ts := time.Date(2024, time.June, 1, 12, 34, 56, 0, time.UTC)
	if n := dev.Strftime("%H%M", ts); n != 4 {
		t.Fatalf("Strftime() = %d", n)
	}
	want := []byte{glyph(t, '1'), glyph(t, '2'), glyph(t, '3'), glyph(t, '4'), 0, 0, 0, 0}
	if diff := cmp.Diff(want, dev.Columns()); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}
	if n := dev.StrftimeAt(4, "%S.", ts); n != 2 || dev.Column(5) != glyph(t, '6')|DecimalPoint {
		t.Errorf("StrftimeAt() = %d, columns %x", n, dev.Columns())
	}
}

func TestPrintTime(t *testing.T) {
	logger := &recordLogger{}
	ts := time.Date(2024, time.June, 1, 9, 5, 0, 0, time.UTC)
	clock := &timesource.Fixed{T: ts}
	dev, err := NewSPI(&spitest.Record{}, nil, &Opts{Clock: clock, Logger: logger, Sleep: func(time.Duration) {}})
	if err != nil {
		t.Fatal(err)
	}
	if err := dev.Setup(); err != nil {
		t.Fatal(err)
	}
	if n := dev.PrintTime("%H%M"); n != 4 || dev.Column(0) != glyph(t, '0') || dev.Column(1) != glyph(t, '9') {
		t.Errorf("PrintTime() = %d, columns %x", n, dev.Columns())
	}
	clock.T = time.Time{}
	if n := dev.PrintTimeAt(4, "%H"); n != 0 {
		t.Errorf("PrintTimeAt() = %d with an invalid clock", n)
	}

	// Without a clock the time methods are unavailable.
	dev2, _, logger2 := newTestDev(t, 1)
	for range 3 {
		if n := dev2.PrintTime("%H"); n != 0 {
			t.Errorf("PrintTime() = %d without a clock", n)
		}
	}
	if len(logger2.warnings) != 1 {
		t.Errorf("expected a single warning, got %v", logger2.warnings)
	}
}
