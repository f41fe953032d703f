// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.
//
// The max7219 package drives a chain of daisy-chained MAX7219 units as one
// pixel grid of 8 rows by 8 columns per unit. The grid is kept in a
// FrameBuffer that is rebuilt and retransmitted on every Update, optionally
// filled by a Writer or by the text rendering methods.
package max7219

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/GermanBionicSystems/max7219grid/component"
	"github.com/GermanBionicSystems/max7219grid/internal/log"
	"github.com/GermanBionicSystems/max7219grid/timesource"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

const (
	_REGISTER_NOOP         byte = 0x0
	_REGISTER_DECODE_MODE  byte = 0x9
	_REGISTER_INTENSITY    byte = 0xa
	_REGISTER_SCAN_LIMIT   byte = 0xb
	_REGISTER_SHUTDOWN     byte = 0xc
	_REGISTER_DISPLAY_TEST byte = 0xf
)

const (
	_SHUTDOWN_MODE    byte = 0x0
	_NORMAL_OPERATION byte = 0x1
	_DISPLAY_TEST_OFF byte = 0x0
	_DISPLAY_TEST_ON  byte = 0x1
	_SCAN_ALL_DIGITS  byte = 0x7
	_DECODE_NONE      byte = 0x0
	_MAX_INTENSITY    byte = 0xf
)

const (
	rowsPerUnit   = 8
	settleDelay   = 250 * time.Millisecond
	defaultPeriod = time.Second
)

// DecimalPoint is OR'd onto a column by a '.' in printed text.
const DecimalPoint byte = 0x80

// ErrInvalidChips is returned by Setup when the chain has no unit.
var ErrInvalidChips = errors.New("max7219: invalid value for number of cascaded units")

// Writer draws into the grid. It runs synchronously inside Update, after the
// buffer was cleared and before it is transmitted.
type Writer func(d *Dev)

// Logger receives the recoverable rendering problems.
type Logger interface {
	Warn(msg string, kv ...any)
	Error(msg string, err error, kv ...any)
}

// Opts holds the configuration applied before Setup.
type Opts struct {
	// NumChips is the number of cascaded units. Defaults to 1.
	NumChips int
	// UpdateInterval is how often the scheduler calls Update. Defaults to 1s.
	UpdateInterval time.Duration
	// Clock enables PrintTime. Without it the clock methods print nothing.
	Clock timesource.Source
	// Logger defaults to the "display.max7219" program logger.
	Logger Logger
	// Sleep is used for the settle delay in Setup. Defaults to time.Sleep.
	Sleep func(time.Duration)
}

// Dev is a chain of Maxim MAX7219/MAX7221 units seen as one pixel grid.
type Dev struct {
	conn spi.Conn
	// cs is an optional chip select line driven by the driver itself. When
	// nil the SPI port's own CE line frames each transaction.
	cs        gpio.PinOut
	intensity byte
	// chips is the number of 7219 units daisy-chained together.
	chips    int
	interval time.Duration
	buffer   FrameBuffer
	writer   Writer
	clock    timesource.Source
	logger   Logger
	sleep    func(time.Duration)
	// pending collects the bytes of the open transaction.
	pending []byte
	// next is lazy initialized on the first Draw.
	next *image1bit.VerticalLSB
	// noClockWarned is set once PrintTime reported the missing clock.
	noClockWarned bool
}

// NewSPI connects to a MAX7219 chain on p. cs may be nil, in which case the
// port's chip enable line is used. The chain is not touched until Setup.
func NewSPI(p spi.Port, cs gpio.PinOut, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &Opts{}
	}
	mode := spi.Mode0
	if cs != nil {
		mode |= spi.NoCS
		if err := cs.Out(gpio.High); err != nil {
			return nil, fmt.Errorf("max7219: %w", err)
		}
	}
	// It works in Mode0, Mode2 and Mode3, MSB first.
	c, err := p.Connect(10*physic.MegaHertz, mode, 8)
	if err != nil {
		return nil, fmt.Errorf("max7219: %w", err)
	}
	d := &Dev{
		conn:      c,
		cs:        cs,
		intensity: _MAX_INTENSITY,
		chips:     1,
		interval:  defaultPeriod,
		clock:     opts.Clock,
		logger:    opts.Logger,
		sleep:     opts.Sleep,
	}
	if opts.NumChips != 0 {
		d.SetNumChips(opts.NumChips)
	}
	if opts.UpdateInterval > 0 {
		d.interval = opts.UpdateInterval
	}
	if d.logger == nil {
		d.logger = log.Tag("display.max7219")
	}
	if d.sleep == nil {
		d.sleep = time.Sleep
	}
	return d, nil
}

// SetIntensity sets the brightness used by Setup. Only the 4 low bits are
// used by the chip, 0 is dimmest and 15 brightest.
func (d *Dev) SetIntensity(intensity byte) {
	d.intensity = intensity & 0x0f
}

// SetNumChips sets the number of cascaded units. It takes effect at Setup.
func (d *Dev) SetNumChips(chips int) {
	d.chips = chips
}

// SetWriter registers the drawing procedure called on every Update,
// replacing the previous one. nil removes it.
func (d *Dev) SetWriter(w Writer) {
	d.writer = w
}

// Width is the grid width in columns.
func (d *Dev) Width() int {
	return d.chips * rowsPerUnit
}

// Height is the grid height in pixels.
func (d *Dev) Height() int {
	return rowsPerUnit
}

// SetColumn writes one column of the buffer. Writes outside the grid are
// ignored.
func (d *Dev) SetColumn(col int, value byte) {
	d.buffer.Set(col, value)
}

// Column returns one column of the buffer, 0 outside the grid.
func (d *Dev) Column(col int) byte {
	return d.buffer.At(col)
}

// Columns returns a copy of the buffer.
func (d *Dev) Columns() []byte {
	return append([]byte(nil), d.buffer...)
}

// Setup allocates the buffer and programs every unit of the chain: leave
// shutdown, no display test, all 8 digits scanned, no decoding, then the
// configured intensity. After a settle delay the blank buffer is sent and
// the display is powered up.
func (d *Dev) Setup() error {
	if d.chips < 1 {
		return ErrInvalidChips
	}
	d.buffer = NewFrameBuffer(d.chips)
	initCommands := [][]byte{
		{_REGISTER_SHUTDOWN, _SHUTDOWN_MODE},
		{_REGISTER_DISPLAY_TEST, _DISPLAY_TEST_OFF},
		// Even a single unit may not default to scanning every digit.
		{_REGISTER_SCAN_LIMIT, _SCAN_ALL_DIGITS},
		// Columns are raw segment bits, not Code B digits.
		{_REGISTER_DECODE_MODE, _DECODE_NONE},
		{_REGISTER_INTENSITY, d.intensity},
	}
	for _, cmd := range initCommands {
		if err := d.sendToAll(cmd[0], cmd[1]); err != nil {
			return err
		}
	}
	d.sleep(settleDelay)
	if err := d.Display(); err != nil {
		return err
	}
	return d.sendToAll(_REGISTER_SHUTDOWN, _NORMAL_OPERATION)
}

// Update clears the buffer, lets the Writer draw and sends the result.
func (d *Dev) Update() error {
	d.buffer.Clear()
	if d.writer != nil {
		d.writer(d)
	}
	return d.Display()
}

// Display sends the buffer as is. Each of the 8 transactions carries one
// row register for every unit; rows go out as digit registers 8 down to 1.
func (d *Dev) Display() error {
	for i := 0; i < rowsPerUnit; i++ {
		d.begin()
		for j := 0; j < d.chips; j++ {
			d.sendByte(byte(rowsPerUnit-i), d.buffer.At(j*rowsPerUnit+i))
		}
		if err := d.end(); err != nil {
			return err
		}
	}
	return nil
}

// TestDisplay turns on the 7219 display test mode which lights every LED at
// full intensity. With many units, mind the current draw.
func (d *Dev) TestDisplay(on bool) error {
	if on {
		return d.sendToAll(_REGISTER_DISPLAY_TEST, _DISPLAY_TEST_ON)
	}
	return d.sendToAll(_REGISTER_DISPLAY_TEST, _DISPLAY_TEST_OFF)
}

// Halt implements conn.Resource. It blanks the grid and puts every unit in
// shutdown mode.
func (d *Dev) Halt() error {
	d.buffer.Clear()
	if err := d.Display(); err != nil {
		return err
	}
	return d.sendToAll(_REGISTER_SHUTDOWN, _SHUTDOWN_MODE)
}

func (d *Dev) String() string {
	return fmt.Sprintf("MAX7219{%s, units=%d}", d.conn, d.chips)
}

// SetupPriority implements component.Prioritizer. The chain is set up after
// the buses and pins it depends on.
func (d *Dev) SetupPriority() float32 {
	return component.PostHardware
}

// UpdateInterval implements component.Poller.
func (d *Dev) UpdateInterval() time.Duration {
	return d.interval
}

// DumpConfig implements component.Component.
func (d *Dev) DumpConfig(w io.Writer) {
	cs := "SPI CE"
	if d.cs != nil {
		cs = d.cs.Name()
	}
	fmt.Fprintf(w, "MAX7219:\n")
	fmt.Fprintf(w, "  Number of Chips: %d\n", d.chips)
	fmt.Fprintf(w, "  Intensity: %d\n", d.intensity)
	fmt.Fprintf(w, "  CS Pin: %s\n", cs)
	fmt.Fprintf(w, "  Update Interval: %s\n", d.interval)
}

// begin opens a transaction.
func (d *Dev) begin() {
	d.pending = make([]byte, 0, 2*max(d.chips, 0))
}

// writeByte queues a byte in the open transaction.
func (d *Dev) writeByte(b byte) {
	d.pending = append(d.pending, b)
}

// end sends the queued bytes in a single chip select bracket. The units
// latch their shift register when chip select rises.
func (d *Dev) end() error {
	if d.cs != nil {
		if err := d.cs.Out(gpio.Low); err != nil {
			return fmt.Errorf("max7219: %w", err)
		}
	}
	err := d.conn.Tx(d.pending, nil)
	if d.cs != nil {
		if err2 := d.cs.Out(gpio.High); err == nil && err2 != nil {
			err = err2
		}
	}
	if err != nil {
		return fmt.Errorf("max7219: %w", err)
	}
	return nil
}

// sendByte queues one 16 bit register frame, MSB first.
func (d *Dev) sendByte(register, data byte) {
	d.writeByte(register)
	d.writeByte(data)
}

// WriteRegister writes a register of a single unit. Every other unit of the
// chain receives a no-op frame in the same transaction, so it keeps its
// state.
func (d *Dev) WriteRegister(unit int, register, data byte) error {
	if unit < 0 || unit >= d.chips {
		return fmt.Errorf("max7219: unit %d out of range [0, %d)", unit, d.chips)
	}
	d.begin()
	for j := range d.chips {
		if j == unit {
			d.sendByte(register, data)
		} else {
			d.sendByte(_REGISTER_NOOP, 0)
		}
	}
	return d.end()
}

// sendToAll writes the same register value to every unit. The bus has no
// addressing, so the frame is repeated once per unit in one transaction.
func (d *Dev) sendToAll(register, data byte) error {
	d.begin()
	for range d.chips {
		d.sendByte(register, data)
	}
	return d.end()
}

var _ conn.Resource = &Dev{}
var _ component.Component = &Dev{}
var _ component.Prioritizer = &Dev{}
var _ component.Poller = &Dev{}
