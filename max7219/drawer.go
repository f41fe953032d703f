// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package max7219

import (
	"image"
	"image/color"
	"image/draw"

	"periph.io/x/conn/v3/display"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// ColorModel implements display.Drawer.
//
// It is a one bit color model, as implemented by image1bit.Bit.
func (d *Dev) ColorModel() color.Model {
	return image1bit.BitModel
}

// Bounds implements display.Drawer. Min is guaranteed to be {0, 0}.
func (d *Dev) Bounds() image.Rectangle {
	return image.Rect(0, 0, d.Width(), d.Height())
}

// Draw implements display.Drawer.
//
// A column byte has the image1bit.VerticalLSB layout: 8 vertical pixels,
// bit 0 on top. Pixels outside r keep their value. The buffer is sent
// synchronously; the next Update clears it again, so Draw is meant for hosts
// that don't register a Writer.
func (d *Dev) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	rect := d.Bounds()
	if img, ok := src.(*image1bit.VerticalLSB); ok && r == rect && img.Rect == rect && sp.X == 0 && sp.Y == 0 {
		// Exact size, full frame, image1bit encoding: fast path!
		copy(d.buffer, img.Pix)
		return d.Display()
	}
	if d.next == nil || d.next.Rect != rect {
		d.next = image1bit.NewVerticalLSB(rect)
	}
	copy(d.next.Pix, d.buffer)
	draw.Src.Draw(d.next, r, src, sp)
	copy(d.buffer, d.next.Pix)
	return d.Display()
}

var _ display.Drawer = &Dev{}
