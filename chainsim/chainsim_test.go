// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package chainsim

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spitest"
)

func connect(t *testing.T, c *Chain) spi.Conn {
	t.Helper()
	conn, err := c.Connect(10*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		t.Fatal(err)
	}
	return conn
}

func TestConnect(t *testing.T) {
	c := New(1, nil)
	data := []struct {
		f    physic.Frequency
		mode spi.Mode
		bits int
		ok   bool
	}{
		{10 * physic.MegaHertz, spi.Mode0, 8, true},
		{physic.MegaHertz, spi.Mode3 | spi.NoCS, 8, true},
		{physic.MegaHertz, spi.Mode1, 8, false},
		{physic.MegaHertz, spi.Mode0 | spi.LSBFirst, 8, false},
		{physic.MegaHertz, spi.Mode0, 16, false},
		{20 * physic.MegaHertz, spi.Mode0, 8, false},
	}
	for _, line := range data {
		_, err := c.Connect(line.f, line.mode, line.bits)
		if (err == nil) != line.ok {
			t.Errorf("Connect(%s, %s, %d) = %v", line.f, line.mode, line.bits, err)
		}
	}
	if s := c.String(); s != "chainsim(1)" {
		t.Errorf("String() = %q", s)
	}
}

func TestDaisyChain(t *testing.T) {
	c := New(3, nil)
	conn := connect(t, c)
	if err := conn.Tx([]byte{0x8, 0x11, 0x8, 0x22, 0x8, 0x33}, nil); err != nil {
		t.Fatal(err)
	}
	for ix, want := range []byte{0x11, 0x22, 0x33} {
		if got := c.Chip(ix).Digits[7]; got != want {
			t.Errorf("unit %d digit 8 = 0x%x, want 0x%x", ix, got, want)
		}
	}

	// A single frame only reaches the closest unit; the others latch what was
	// shifted one step further.
	if err := conn.Tx([]byte{0xa, 0x5}, nil); err != nil {
		t.Fatal(err)
	}
	if c.Chip(2).Intensity != 5 {
		t.Errorf("unit 2 intensity = %d", c.Chip(2).Intensity)
	}
	if c.Chip(0).Digits[7] != 0x22 || c.Chip(1).Digits[7] != 0x33 {
		t.Errorf("frames did not shift: %+v %+v", c.Chip(0), c.Chip(1))
	}
	if n := c.Transactions(); n != 2 {
		t.Errorf("Transactions() = %d", n)
	}
}

func TestShiftOut(t *testing.T) {
	c := New(1, nil)
	conn := connect(t, c)
	if err := conn.Tx([]byte{0x1, 0xaa}, nil); err != nil {
		t.Fatal(err)
	}
	r := make([]byte, 4)
	if err := conn.Tx([]byte{0x2, 0xbb, 0x3, 0xcc}, r); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{0x1, 0xaa, 0x2, 0xbb}, r); diff != "" {
		t.Errorf("DOUT (-want +got):\n%s", diff)
	}
}

func TestPartialFrame(t *testing.T) {
	c := New(1, nil)
	conn := connect(t, c)
	if err := conn.Tx([]byte{0x1}, nil); err == nil {
		t.Error("expected an error for half a frame")
	}
	if err := conn.Tx([]byte{0x1, 0x2}, make([]byte, 4)); err == nil {
		t.Error("expected an error for an oversized read buffer")
	}
	if n := c.Transactions(); n != 0 {
		t.Errorf("rejected transactions were latched: %d", n)
	}
}

func TestVisible(t *testing.T) {
	c := New(1, nil)
	conn := connect(t, c)
	tx := func(reg, data byte) {
		t.Helper()
		if err := conn.Tx([]byte{reg, data}, nil); err != nil {
			t.Fatal(err)
		}
	}
	tx(0x1, 0x85)
	tx(0x8, 0x42)
	if got := c.Snapshot().Columns; got[0] != 0 || got[7] != 0 {
		t.Errorf("unit in shutdown shows %x", got)
	}

	tx(0xc, 0x1)
	tx(0xb, 0x7)
	if got := c.Snapshot().Columns; got[0] != 0x42 || got[7] != 0x85 {
		t.Errorf("raw columns %x", got)
	}

	// Code B on digit 1: 5 with the decimal point.
	tx(0x9, 0x01)
	if got := c.Snapshot().Columns[7]; got != 0xdb {
		t.Errorf("decoded column = 0x%x, want 0xdb", got)
	}

	tx(0xb, 0x3)
	if got := c.Snapshot().Columns; got[0] != 0 || got[7] != 0xdb {
		t.Errorf("scan limit not applied: %x", got)
	}

	tx(0xf, 0x1)
	snap := c.Snapshot()
	for ix, v := range snap.Columns {
		if v != 0xff {
			t.Errorf("display test column %d = 0x%x", ix, v)
		}
	}
	if snap.Intensity[0] != 0x0f {
		t.Errorf("display test intensity = %d", snap.Intensity[0])
	}
}

func TestTxPackets(t *testing.T) {
	c := New(2, nil)
	conn := connect(t, c)
	var latched int
	c.OnLatch(func(Snapshot) { latched++ })
	p := []spi.Packet{
		{W: []byte{0x1, 0x11}, KeepCS: true},
		{W: []byte{0x1, 0x22}, KeepCS: false},
		{W: []byte{0x1, 0x33, 0x1, 0x44}, KeepCS: true},
	}
	if err := conn.TxPackets(p); err != nil {
		t.Fatal(err)
	}
	if latched != 2 {
		t.Errorf("latched %d times, want 2", latched)
	}
	if c.Chip(0).Digits[0] != 0x33 || c.Chip(1).Digits[0] != 0x44 {
		t.Errorf("unexpected state %+v %+v", c.Chip(0), c.Chip(1))
	}
}

func TestForward(t *testing.T) {
	record := &spitest.Record{}
	c := New(1, &Opts{Forward: record})
	conn := connect(t, c)
	var seen []Snapshot
	c.OnLatch(func(s Snapshot) { seen = append(seen, s) })
	if err := conn.Tx([]byte{0xc, 0x1}, nil); err != nil {
		t.Fatal(err)
	}
	expected := []conntest.IO{{W: []byte{0xc, 0x1}}}
	if diff := cmp.Diff(expected, record.Ops, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("forwarded operations (-want +got):\n%s", diff)
	}
	if len(seen) != 1 {
		t.Errorf("OnLatch called %d times", len(seen))
	}
	if err := c.Close(); err != nil {
		t.Error(err)
	}
}

func TestFromColumns(t *testing.T) {
	s := FromColumns(make([]byte, 17), 0x1f)
	if s.Units() != 3 {
		t.Errorf("Units() = %d", s.Units())
	}
	if diff := cmp.Diff([]byte{0xf, 0xf, 0xf}, s.Intensity); diff != "" {
		t.Errorf("intensity (-want +got):\n%s", diff)
	}
	if New(0, nil).Units() != 1 {
		t.Error("an empty chain must have one unit")
	}
}
