// Copyright 2017 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package screen draws the state of an emulated MAX7219 chain on a terminal
// using ANSI color codes.
//
// Useful while the matrix modules are still on their way, or to watch what a
// remote chain shows.
package screen

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"os"
	"sync"

	"github.com/GermanBionicSystems/max7219grid/chainsim"
	"github.com/GermanBionicSystems/max7219grid/internal/log"
	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"golang.org/x/term"
)

// Opts represents the options available for this display.
type Opts struct {
	// Out defaults to stdout, with Windows consoles translated by colorable.
	Out io.Writer
	// InPlace redraws over the previous frame instead of scrolling. It
	// defaults to true when Out is a terminal.
	InPlace *bool
	// On is the color of a lit LED at full intensity. Defaults to red.
	On      color.NRGBA
	Palette *ansi256.Palette

	_ struct{}
}

// Dev is a LED matrix emulator that outputs to the console.
type Dev struct {
	mu      sync.Mutex
	w       io.Writer
	inPlace bool
	on      color.NRGBA
	palette ansi256.Palette

	drawn  bool
	buf    bytes.Buffer
	logger *log.Logger
}

var off = color.NRGBA{0x20, 0x20, 0x20, 255}

// New returns a Dev that displays at the console.
func New(opts *Opts) *Dev {
	if opts == nil {
		opts = &Opts{}
	}
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	d := &Dev{
		w:       opts.Out,
		on:      opts.On,
		palette: *p,
		logger:  log.Tag("screen"),
	}
	if d.w == nil {
		d.w = colorable.NewColorableStdout()
		d.inPlace = term.IsTerminal(int(os.Stdout.Fd()))
	}
	if opts.InPlace != nil {
		d.inPlace = *opts.InPlace
	}
	if d.on == (color.NRGBA{}) {
		d.on = color.NRGBA{0xff, 0x10, 0x10, 255}
	}
	return d
}

func (d *Dev) String() string {
	return "Screen"
}

// Halt implements conn.Resource.
//
// It resets the colors so the terminal is not corrupted.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drawn = false
	_, err := d.w.Write([]byte("\033[0m\n"))
	return err
}

// Show draws s as 8 lines of LEDs. Bit 0 of a column is the top row. It has
// the signature of a chainsim.Chain.OnLatch callback.
func (d *Dev) Show(s chainsim.Snapshot) {
	if err := d.Draw(s); err != nil {
		d.logger.Error("drawing failed", err)
	}
}

// Draw draws s and returns the write error, if any.
func (d *Dev) Draw(s chainsim.Snapshot) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	// This code is designed to minimize the amount of memory allocated per call.
	d.buf.Reset()
	if d.inPlace && d.drawn {
		_, _ = d.buf.WriteString("\033[8A")
	}
	for row := 0; row < 8; row++ {
		_, _ = d.buf.WriteString("\r\033[0m")
		for col, v := range s.Columns {
			c := off
			if v&(1<<row) != 0 {
				c = d.lit(s, col/8)
			}
			_, _ = io.WriteString(&d.buf, d.palette.Block(c))
		}
		_, _ = d.buf.WriteString("\033[0m\n")
	}
	d.drawn = true
	_, err := d.buf.WriteTo(d.w)
	return err
}

// lit scales the LED color with the intensity of unit. The chip's 16 steps
// are mapped above a floor so that intensity 0 stays visible.
func (d *Dev) lit(s chainsim.Snapshot, unit int) color.NRGBA {
	level := 15
	if unit < len(s.Intensity) {
		level = int(s.Intensity[unit])
	}
	scale := func(v uint8) uint8 {
		return uint8((int(v)*(level+5) + 10) / 20)
	}
	return color.NRGBA{scale(d.on.R), scale(d.on.G), scale(d.on.B), 255}
}

var _ fmt.Stringer = &Dev{}
