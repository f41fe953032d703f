// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package max7219

import (
	"fmt"
	"time"

	"github.com/GermanBionicSystems/max7219grid/timesource"
)

// Print writes s from the first column. See PrintAt.
func (d *Dev) Print(s string) int {
	return d.PrintAt(0, s)
}

// PrintAt writes s one character per column, starting at column pos, and
// returns the number of columns used.
//
// A '.' doesn't take a column of its own: it lights the decimal point of the
// previous character, or of column pos when it comes first. Characters
// without a pattern are shown as UnknownChar. Text that doesn't fit is cut
// at the right edge.
func (d *Dev) PrintAt(pos int, s string) int {
	if pos < 0 {
		return 0
	}
	start := pos
	width := d.Width()
	for _, r := range s {
		data, ok := Glyph(r)
		if !ok {
			d.logger.Warn("character has no MAX7219 representation", "char", fmt.Sprintf("%q", r))
		}
		if r == '.' {
			if pos != start {
				pos--
			} else if pos >= width {
				d.logger.Error("string is too long for the display", nil, "text", s, "pos", start)
				break
			}
			d.buffer.Or(pos, DecimalPoint)
		} else {
			if pos >= width {
				d.logger.Error("string is too long for the display", nil, "text", s, "pos", start)
				break
			}
			d.buffer.Set(pos, data)
		}
		pos++
	}
	return pos - start
}

// Printf formats like fmt.Sprintf and prints from the first column.
func (d *Dev) Printf(format string, a ...any) int {
	return d.PrintfAt(0, format, a...)
}

// PrintfAt formats like fmt.Sprintf and prints from column pos. The
// formatted text is limited to 63 bytes.
func (d *Dev) PrintfAt(pos int, format string, a ...any) int {
	s := timesource.Truncate(fmt.Sprintf(format, a...), timesource.MaxLength)
	if s == "" {
		return 0
	}
	return d.PrintAt(pos, s)
}

// Strftime formats t with a strftime pattern and prints it from the first
// column.
func (d *Dev) Strftime(format string, t time.Time) int {
	return d.StrftimeAt(0, format, t)
}

// StrftimeAt formats t with a strftime pattern, e.g. "%H:%M", and prints it
// from column pos.
func (d *Dev) StrftimeAt(pos int, format string, t time.Time) int {
	s, err := timesource.Format(format, t)
	if err != nil {
		d.logger.Error("invalid time format", err, "format", format)
		return 0
	}
	if s == "" {
		return 0
	}
	return d.PrintAt(pos, s)
}

// PrintTime prints the current time of the configured clock from the first
// column.
func (d *Dev) PrintTime(format string) int {
	return d.PrintTimeAt(0, format)
}

// PrintTimeAt prints the current time of the configured clock from column
// pos. Nothing is printed without a clock or while its time is invalid. The
// missing clock is reported once.
func (d *Dev) PrintTimeAt(pos int, format string) int {
	if d.clock == nil {
		if !d.noClockWarned {
			d.logger.Warn("no time source configured", "format", format)
			d.noClockWarned = true
		}
		return 0
	}
	t, ok := d.clock.Now()
	if !ok {
		return 0
	}
	return d.StrftimeAt(pos, format, t)
}
