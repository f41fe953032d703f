// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package tinygospi exposes a TinyGo SPI bus as a periph spi.Port, so that
// the periph device drivers run on microcontrollers.
//
// TinyGo configures the clock, mode and pins of a bus when it is created, so
// Connect only checks that the requested settings can be honored. Chip
// select is driven by the adapter around every transaction.
package tinygospi

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"tinygo.org/x/drivers"
)

// Pin is the part of a TinyGo machine.Pin configured as output that is
// needed to drive chip select.
type Pin interface {
	Low()
	High()
}

// Opts configures a Port.
type Opts struct {
	// Name is returned by String. Defaults to "tinygo-spi".
	Name string
	// Mode is the mode the bus was configured with. Defaults to Mode0.
	Mode spi.Mode
	// MaxSpeed is the clock the bus was configured with, 0 if unknown.
	MaxSpeed physic.Frequency
}

// Port is an spi.PortCloser on top of a drivers.SPI.
type Port struct {
	bus   drivers.SPI
	cs    Pin
	name  string
	mode  spi.Mode
	maxHz physic.Frequency
}

// New returns a Port for bus. cs may be nil when the device has no chip
// select line or when the caller drives it.
func New(bus drivers.SPI, cs Pin, opts *Opts) *Port {
	if opts == nil {
		opts = &Opts{}
	}
	p := &Port{bus: bus, cs: cs, name: opts.Name, mode: opts.Mode, maxHz: opts.MaxSpeed}
	if p.name == "" {
		p.name = "tinygo-spi"
	}
	if cs != nil {
		cs.High()
	}
	return p
}

func (p *Port) String() string {
	return p.name
}

// Connect implements spi.Port.
func (p *Port) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	if bits != 8 {
		return nil, fmt.Errorf("tinygospi: %d bits per word is not supported", bits)
	}
	if mode&spi.LSBFirst != 0 {
		return nil, errors.New("tinygospi: LSBFirst is not supported")
	}
	if mode&spi.Mode3 != p.mode&spi.Mode3 {
		return nil, fmt.Errorf("tinygospi: bus is configured in %s, not %s", p.mode&spi.Mode3, mode&spi.Mode3)
	}
	if p.maxHz != 0 && f > p.maxHz {
		f = p.maxHz
	}
	return &Conn{p: p, f: f, noCS: mode&spi.NoCS != 0 || p.cs == nil}, nil
}

// LimitSpeed implements spi.PortCloser. It only lowers the speed reported by
// connections; the bus keeps the clock it was configured with.
func (p *Port) LimitSpeed(f physic.Frequency) error {
	if f <= 0 {
		return errors.New("tinygospi: invalid speed")
	}
	p.maxHz = f
	return nil
}

// Close implements spi.PortCloser.
func (p *Port) Close() error {
	return nil
}

// Conn is a connection on a Port.
type Conn struct {
	p    *Port
	f    physic.Frequency
	noCS bool
}

func (c *Conn) String() string {
	return fmt.Sprintf("%s@%s", c.p.name, c.f)
}

// Duplex implements conn.Conn.
func (c *Conn) Duplex() conn.Duplex {
	return conn.Full
}

// Tx implements conn.Conn. Chip select is held low for the whole of w.
func (c *Conn) Tx(w, r []byte) error {
	c.csLow()
	err := c.p.bus.Tx(w, r)
	c.csHigh()
	if err != nil {
		return fmt.Errorf("tinygospi: %w", err)
	}
	return nil
}

// TxPackets implements spi.Conn. Chip select is released after each packet
// that doesn't set KeepCS, and after the last one.
func (c *Conn) TxPackets(pkts []spi.Packet) error {
	for _, pkt := range pkts {
		if pkt.BitsPerWord != 0 && pkt.BitsPerWord != 8 {
			return fmt.Errorf("tinygospi: %d bits per word is not supported", pkt.BitsPerWord)
		}
	}
	held := false
	defer func() {
		if held {
			c.csHigh()
		}
	}()
	for _, pkt := range pkts {
		if !held {
			c.csLow()
			held = true
		}
		if err := c.p.bus.Tx(pkt.W, pkt.R); err != nil {
			return fmt.Errorf("tinygospi: %w", err)
		}
		if !pkt.KeepCS {
			c.csHigh()
			held = false
		}
	}
	return nil
}

func (c *Conn) csLow() {
	if !c.noCS {
		c.p.cs.Low()
	}
}

func (c *Conn) csHigh() {
	if !c.noCS {
		c.p.cs.High()
	}
}

var _ spi.PortCloser = &Port{}
var _ spi.Conn = &Conn{}
