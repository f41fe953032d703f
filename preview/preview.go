// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package preview renders the state of a MAX7219 chain as a picture of round
// LEDs.
package preview

import (
	"image"
	"image/color"
	"io"

	"github.com/GermanBionicSystems/max7219grid/chainsim"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
)

// Opts represents the options available for the renderer.
type Opts struct {
	// Pitch is the distance between two LEDs in pixels. Defaults to 16.
	Pitch int
	// On is the color of a lit LED at full intensity. Defaults to red.
	On color.NRGBA
	// Off is the color of a dark LED.
	Off color.NRGBA
	// Background defaults to black.
	Background color.NRGBA
	// Label, when set, is written under the LEDs.
	Label string
	// Face is the label font. Defaults to Go Regular sized to the pitch.
	Face font.Face

	_ struct{}
}

// Renderer draws snapshots. It is safe for concurrent use as each Render
// uses its own drawing context.
type Renderer struct {
	pitch int
	on    color.NRGBA
	off   color.NRGBA
	bg    color.NRGBA
	label string
	face  font.Face
}

// New returns a Renderer.
func New(opts *Opts) *Renderer {
	if opts == nil {
		opts = &Opts{}
	}
	r := &Renderer{
		pitch: opts.Pitch,
		on:    opts.On,
		off:   opts.Off,
		bg:    opts.Background,
		label: opts.Label,
		face:  opts.Face,
	}
	if r.pitch <= 0 {
		r.pitch = 16
	}
	if r.on == (color.NRGBA{}) {
		r.on = color.NRGBA{0xff, 0x10, 0x10, 0xff}
	}
	if r.off == (color.NRGBA{}) {
		r.off = color.NRGBA{0x30, 0x08, 0x08, 0xff}
	}
	if r.bg == (color.NRGBA{}) {
		r.bg = color.NRGBA{0, 0, 0, 0xff}
	}
	if r.label != "" && r.face == nil {
		r.face = labelFace(float64(r.pitch))
	}
	return r
}

func labelFace(size float64) font.Face {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return basicfont.Face7x13
	}
	return truetype.NewFace(f, &truetype.Options{Size: size})
}

// Size returns the image size for a chain of units.
func (r *Renderer) Size(units int) image.Point {
	p := image.Point{X: (8*units + 1) * r.pitch, Y: 9 * r.pitch}
	if r.label != "" {
		p.Y += 2 * r.pitch
	}
	return p
}

// Render draws s. Bit 0 of a column is the top row.
func (r *Renderer) Render(s chainsim.Snapshot) image.Image {
	size := r.Size(s.Units())
	dc := gg.NewContext(size.X, size.Y)
	dc.SetColor(r.bg)
	dc.Clear()

	pitch := float64(r.pitch)
	radius := 0.4 * pitch
	for col, v := range s.Columns {
		lit := r.lit(s, col/8)
		for row := 0; row < 8; row++ {
			x := pitch + float64(col)*pitch
			y := pitch + float64(row)*pitch
			dc.DrawCircle(x, y, radius)
			if v&(1<<row) != 0 {
				dc.SetColor(lit)
			} else {
				dc.SetColor(r.off)
			}
			dc.Fill()
		}
	}

	if r.label != "" {
		dc.SetFontFace(r.face)
		dc.SetColor(r.on)
		dc.DrawStringAnchored(r.label, float64(size.X)/2, float64(size.Y)-pitch, 0.5, 0.5)
	}
	return dc.Image()
}

// EncodePNG renders s and writes it to w as PNG.
func (r *Renderer) EncodePNG(w io.Writer, s chainsim.Snapshot) error {
	dc := gg.NewContextForImage(r.Render(s))
	return dc.EncodePNG(w)
}

// SavePNG renders s into the PNG file path.
func (r *Renderer) SavePNG(path string, s chainsim.Snapshot) error {
	return gg.SavePNG(path, r.Render(s))
}

// lit scales the LED color with the intensity of unit above a floor so that
// intensity 0 stays visible.
func (r *Renderer) lit(s chainsim.Snapshot, unit int) color.NRGBA {
	level := 15
	if unit < len(s.Intensity) {
		level = int(s.Intensity[unit])
	}
	scale := func(v uint8) uint8 {
		return uint8((int(v)*(level+5) + 10) / 20)
	}
	return color.NRGBA{scale(r.on.R), scale(r.on.G), scale(r.on.B), 0xff}
}
