// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package chainsim emulates a chain of daisy-chained MAX7219 units behind an
// spi.Port.
//
// Every 16 bit frame written in a transaction is shifted into the unit
// closest to DIN, pushing the previous content one unit further. When the
// transaction ends, each unit latches the frame its shift register holds.
// Frame k of a transaction carrying one frame per unit therefore lands in
// unit k.
//
// A Chain can forward every transaction to a real port, which makes it a
// tap that mirrors the state of physical hardware.
package chainsim

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

const (
	regNoop        = 0x0
	regDigit0      = 0x1
	regDigit7      = 0x8
	regDecodeMode  = 0x9
	regIntensity   = 0xa
	regScanLimit   = 0xb
	regShutdown    = 0xc
	regDisplayTest = 0xf
)

// codeB maps the low nibble of a Code B decoded digit register to segments.
var codeB = [16]byte{
	0x7e, 0x30, 0x6d, 0x79, 0x33, 0x5b, 0x5f, 0x70, // 0-7
	0x7f, 0x7b, 0x01, 0x4f, 0x37, 0x0e, 0x67, 0x00, // 8, 9, -, E, H, L, P, blank
}

// Opts configures a Chain.
type Opts struct {
	// Forward receives every transaction once it was decoded.
	Forward spi.Port
}

// Chip is the register state of one unit. The power-on state is shutdown
// with every register cleared.
type Chip struct {
	Digits      [8]byte
	DecodeMode  byte
	Intensity   byte
	ScanLimit   byte
	Shutdown    bool
	DisplayTest bool
}

// Snapshot is what the chain shows, laid out like the grid's frame buffer:
// column j*8+i is digit register 8-i of unit j.
type Snapshot struct {
	// Columns is the visible pattern of each column, after shutdown, display
	// test, scan limit and decoding were applied.
	Columns []byte
	// Intensity is the effective brightness of each unit, 0 to 15.
	Intensity []byte
}

// Units is the number of units in the snapshot.
func (s Snapshot) Units() int {
	return len(s.Intensity)
}

// FromColumns builds a snapshot of a lit chain showing cols.
func FromColumns(cols []byte, intensity byte) Snapshot {
	s := Snapshot{Columns: append([]byte(nil), cols...), Intensity: make([]byte, (len(cols)+7)/8)}
	for ix := range s.Intensity {
		s.Intensity[ix] = intensity & 0x0f
	}
	return s
}

type frame struct {
	register, data byte
}

// Chain is an emulated chain of units. It implements spi.PortCloser and the
// spi.Conn returned by Connect.
type Chain struct {
	mu      sync.Mutex
	chips   []Chip
	shift   []frame
	txCount int
	forward spi.Port
	fconn   spi.Conn
	onLatch []func(Snapshot)
}

// New returns a chain of units MAX7219, at least one.
func New(units int, opts *Opts) *Chain {
	if units < 1 {
		units = 1
	}
	c := &Chain{chips: make([]Chip, units), shift: make([]frame, units)}
	for ix := range c.chips {
		c.chips[ix].Shutdown = true
	}
	if opts != nil {
		c.forward = opts.Forward
	}
	return c
}

func (c *Chain) String() string {
	if c.forward != nil {
		return fmt.Sprintf("chainsim(%d)+%s", len(c.chips), c.forward)
	}
	return fmt.Sprintf("chainsim(%d)", len(c.chips))
}

// Connect implements spi.Port. The units sample on the rising edge with the
// most significant bit first, so Mode1 and LSBFirst are rejected.
func (c *Chain) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	if bits != 8 {
		return nil, fmt.Errorf("chainsim: %d bits per word is not supported", bits)
	}
	if mode&spi.LSBFirst != 0 {
		return nil, errors.New("chainsim: MAX7219 is MSB first")
	}
	if mode&spi.Mode3 == spi.Mode1 {
		return nil, errors.New("chainsim: MAX7219 doesn't work in Mode1")
	}
	if f > 10*physic.MegaHertz {
		return nil, fmt.Errorf("chainsim: %s exceeds the 10MHz serial clock", f)
	}
	if c.forward != nil {
		fc, err := c.forward.Connect(f, mode, bits)
		if err != nil {
			return nil, fmt.Errorf("chainsim: %w", err)
		}
		c.mu.Lock()
		c.fconn = fc
		c.mu.Unlock()
	}
	return c, nil
}

// LimitSpeed implements spi.PortCloser.
func (c *Chain) LimitSpeed(f physic.Frequency) error {
	if p, ok := c.forward.(spi.PortCloser); ok {
		return p.LimitSpeed(f)
	}
	return nil
}

// Close implements spi.PortCloser.
func (c *Chain) Close() error {
	if p, ok := c.forward.(io.Closer); ok {
		return p.Close()
	}
	return nil
}

// Duplex implements conn.Conn.
func (c *Chain) Duplex() conn.Duplex {
	return conn.Full
}

// Tx implements conn.Conn. w is one transaction: chip select falls, w is
// shifted in, chip select rises. r receives the bytes shifted out of the
// last unit.
func (c *Chain) Tx(w, r []byte) error {
	if len(w)%2 != 0 {
		return fmt.Errorf("chainsim: %d bytes is not a whole number of 16 bit frames", len(w))
	}
	if len(r) > len(w) {
		return errors.New("chainsim: read buffer longer than write buffer")
	}
	c.mu.Lock()
	out := c.shiftLocked(w)
	snap := c.latchLocked()
	fc := c.fconn
	callbacks := c.onLatch
	c.mu.Unlock()

	for _, f := range callbacks {
		f(snap)
	}
	if fc != nil {
		return fc.Tx(w, r)
	}
	copy(r, out)
	return nil
}

// TxPackets implements spi.Conn. Units latch whenever a packet releases chip
// select, and after the last packet.
func (c *Chain) TxPackets(p []spi.Packet) error {
	var snaps []Snapshot
	c.mu.Lock()
	for ix, pkt := range p {
		if len(pkt.W)%2 != 0 {
			c.mu.Unlock()
			return fmt.Errorf("chainsim: %d bytes is not a whole number of 16 bit frames", len(pkt.W))
		}
		out := c.shiftLocked(pkt.W)
		copy(pkt.R, out)
		if !pkt.KeepCS || ix == len(p)-1 {
			snaps = append(snaps, c.latchLocked())
		}
	}
	fc := c.fconn
	callbacks := c.onLatch
	c.mu.Unlock()

	for _, s := range snaps {
		for _, f := range callbacks {
			f(s)
		}
	}
	if fc != nil {
		return fc.TxPackets(p)
	}
	return nil
}

// OnLatch registers f to be called with the new state after every
// transaction. f runs on the caller's goroutine and must not call back into
// Tx.
func (c *Chain) OnLatch(f func(Snapshot)) {
	c.mu.Lock()
	c.onLatch = append(c.onLatch, f)
	c.mu.Unlock()
}

// Chip returns the registers of unit ix.
func (c *Chain) Chip(ix int) Chip {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chips[ix]
}

// Units is the number of units in the chain.
func (c *Chain) Units() int {
	return len(c.chips)
}

// Transactions is the number of latched transactions so far.
func (c *Chain) Transactions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txCount
}

// Snapshot returns what the chain currently shows.
func (c *Chain) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// shiftLocked pushes the frames of w into the chain and returns the bytes
// that fall out of the last unit.
func (c *Chain) shiftLocked(w []byte) []byte {
	out := make([]byte, 0, len(w))
	last := len(c.shift) - 1
	for ix := 0; ix < len(w); ix += 2 {
		evicted := c.shift[0]
		out = append(out, evicted.register, evicted.data)
		copy(c.shift, c.shift[1:])
		c.shift[last] = frame{register: w[ix], data: w[ix+1]}
	}
	return out
}

func (c *Chain) latchLocked() Snapshot {
	for ix, f := range c.shift {
		c.chips[ix].apply(f)
	}
	c.txCount++
	return c.snapshotLocked()
}

func (c *Chain) snapshotLocked() Snapshot {
	s := Snapshot{
		Columns:   make([]byte, 8*len(c.chips)),
		Intensity: make([]byte, len(c.chips)),
	}
	for j, chip := range c.chips {
		s.Intensity[j] = chip.Intensity
		if chip.DisplayTest {
			s.Intensity[j] = 0x0f
		}
		for i := 0; i < 8; i++ {
			s.Columns[j*8+i] = chip.visible(8 - i)
		}
	}
	return s
}

func (chip *Chip) apply(f frame) {
	switch {
	case f.register == regNoop:
	case f.register >= regDigit0 && f.register <= regDigit7:
		chip.Digits[f.register-regDigit0] = f.data
	case f.register == regDecodeMode:
		chip.DecodeMode = f.data
	case f.register == regIntensity:
		chip.Intensity = f.data & 0x0f
	case f.register == regScanLimit:
		chip.ScanLimit = f.data & 0x07
	case f.register == regShutdown:
		chip.Shutdown = f.data&0x01 == 0
	case f.register == regDisplayTest:
		chip.DisplayTest = f.data&0x01 != 0
	}
}

// visible returns the segments lit for digit register reg, 1 to 8.
func (chip *Chip) visible(reg int) byte {
	ix := reg - regDigit0
	switch {
	case chip.DisplayTest:
		return 0xff
	case chip.Shutdown, ix > int(chip.ScanLimit):
		return 0
	case chip.DecodeMode&(1<<ix) != 0:
		v := chip.Digits[ix]
		return codeB[v&0x0f] | v&0x80
	default:
		return chip.Digits[ix]
	}
}

var _ spi.PortCloser = &Chain{}
var _ spi.Conn = &Chain{}
