// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package lambda

import (
	"strings"
	"testing"
	"time"

	"github.com/GermanBionicSystems/max7219grid/max7219"
	"github.com/GermanBionicSystems/max7219grid/timesource"
	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/spi/spitest"
)

func newDev(t *testing.T, chips int, clock timesource.Source) *max7219.Dev {
	t.Helper()
	dev, err := max7219.NewSPI(&spitest.Record{}, nil, &max7219.Opts{NumChips: chips, Clock: clock, Sleep: func(time.Duration) {}})
	if err != nil {
		t.Fatal(err)
	}
	if err := dev.Setup(); err != nil {
		t.Fatal(err)
	}
	return dev
}

func compile(t *testing.T, src string, opts *Opts) *Script {
	t.Helper()
	s, err := Compile("test", src, opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s
}

func glyph(r rune) byte {
	g, _ := max7219.Glyph(r)
	return g
}

func TestPrint(t *testing.T) {
	dev := newDev(t, 1, nil)
	s := compile(t, `
local n = it:print("1.2")
it:print(n + 1, "AB")
it:set_column(it:width() - 1, 0xff)
`, nil)
	if err := s.Run(dev); err != nil {
		t.Fatal(err)
	}
	want := []byte{glyph('1') | max7219.DecimalPoint, glyph('2'), 0, glyph('A'), glyph('B'), 0, 0, 0xff}
	if diff := cmp.Diff(want, dev.Columns()); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}
}

func TestPrintf(t *testing.T) {
	dev := newDev(t, 1, nil)
	s := compile(t, `
it:printf("%d", 4)
it:printf(6, "%02d", 7)
`, nil)
	if err := s.Run(dev); err != nil {
		t.Fatal(err)
	}
	want := []byte{glyph('4'), 0, 0, 0, 0, 0, glyph('0'), glyph('7')}
	if diff := cmp.Diff(want, dev.Columns()); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}
}

func TestStrftime(t *testing.T) {
	ts := time.Date(2024, time.June, 1, 9, 5, 0, 0, time.UTC)
	dev := newDev(t, 1, &timesource.Fixed{T: ts})
	s := compile(t, `it:strftime(1, "%H%M")`, nil)
	if err := s.Run(dev); err != nil {
		t.Fatal(err)
	}
	want := []byte{0, glyph('0'), glyph('9'), glyph('0'), glyph('5'), 0, 0, 0}
	if diff := cmp.Diff(want, dev.Columns()); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}
}

func TestDimensions(t *testing.T) {
	dev := newDev(t, 3, nil)
	s := compile(t, `
assert(it:width() == 24, "width")
assert(it:height() == 8, "height")
it:set_column(5, 0x42)
assert(it:column(5) == 0x42, "column")
assert(it:column(99) == 0, "outside")
`, nil)
	if err := s.Run(dev); err != nil {
		t.Fatal(err)
	}
}

func TestWriter(t *testing.T) {
	dev := newDev(t, 1, nil)
	s := compile(t, `it:print("42")`, nil)
	dev.SetWriter(s.Writer())
	for i := 0; i < 3; i++ {
		if err := dev.Update(); err != nil {
			t.Fatal(err)
		}
	}
	if dev.Column(0) != glyph('4') || dev.Column(1) != glyph('2') {
		t.Errorf("columns %x", dev.Columns())
	}
}

func TestErrors(t *testing.T) {
	if _, err := Compile("broken", "it:print(", nil); err == nil {
		t.Error("expected a syntax error")
	}

	dev := newDev(t, 1, nil)
	s := compile(t, `it:print(0, "1") error("boom")`, nil)
	err := s.Run(dev)
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("Run() = %v", err)
	}
	// The script keeps working after a failure.
	if err := s.Run(dev); err == nil {
		t.Error("expected the error again")
	}

	s = compile(t, `os.exit(1)`, nil)
	if err := s.Run(dev); err == nil {
		t.Error("the os library must not be available")
	}

	s = compile(t, `it.print(nil, "x")`, nil)
	if err := s.Run(dev); err == nil {
		t.Error("expected a bad receiver error")
	}

	s.Close()
	if err := s.Run(dev); err == nil {
		t.Error("Run() after Close() must fail")
	}
}

func TestTimeout(t *testing.T) {
	dev := newDev(t, 1, nil)
	s := compile(t, `while true do end`, &Opts{Timeout: 20 * time.Millisecond})
	err := s.Run(dev)
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("Run() = %v", err)
	}
	if s.String() != "lambda(test)" {
		t.Errorf("String() = %q", s.String())
	}
}
