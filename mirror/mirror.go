// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package mirror serves the state of a MAX7219 chain over HTTP. Client
// requests get an initial picture of the LEDs and are updated further on
// every change published by the chain.
//
// The protocol used is "MJPEG" (https://en.wikipedia.org/wiki/Motion_JPEG)
// which is often used by IP cameras. Because of its better suitability for
// computer-drawn graphics the PNG image format is used by default. JPEG as
// a format can be selected via Options.Format or using the "format" URL
// parameter. "?once=1" returns a single image instead of a stream.
package mirror

import (
	"bytes"
	"image"
	"image/png"
	"net/http"
	"sync"
	"time"

	"github.com/GermanBionicSystems/max7219grid/chainsim"
	"github.com/GermanBionicSystems/max7219grid/internal/log"
	"github.com/GermanBionicSystems/max7219grid/preview"
)

// Options for mirror instances.
type Options struct {
	// Units is the chain length shown before the first snapshot. Defaults
	// to 1.
	Units int

	// Renderer draws the LEDs. Defaults to preview.New(nil).
	Renderer *preview.Renderer

	// Format specifies the image format to send to clients.
	Format ImageFormat

	// JPEGQuality ranges from 1 to 100. Defaults to 90.
	JPEGQuality int

	// PNGCompression is the PNG encoder compression level.
	PNGCompression png.CompressionLevel

	// KeepAlive resends the current picture to idle streams so that proxies
	// don't time them out. Zero disables it.
	KeepAlive time.Duration
}

// Mirror is an http.Handler showing the latest published snapshot.
type Mirror struct {
	renderer      *preview.Renderer
	defaultFormat ImageFormat
	jpegQuality   int
	pngLevel      png.CompressionLevel
	keepAlive     time.Duration
	logger        *log.Logger

	mu       sync.Mutex
	state    chainsim.Snapshot
	rendered image.Image
	clients  map[*client]struct{}
	snapshot map[imageConfig][]byte
}

var _ http.Handler = (*Mirror)(nil)

// New creates a new mirror instance.
func New(opt *Options) *Mirror {
	if opt == nil {
		opt = &Options{}
	}
	units := max(opt.Units, 1)
	m := &Mirror{
		renderer:      opt.Renderer,
		defaultFormat: opt.Format,
		jpegQuality:   opt.JPEGQuality,
		pngLevel:      opt.PNGCompression,
		keepAlive:     opt.KeepAlive,
		logger:        log.Tag("mirror"),
		state:         chainsim.FromColumns(make([]byte, 8*units), 0),
		clients:       map[*client]struct{}{},
		snapshot:      map[imageConfig][]byte{},
	}
	if m.renderer == nil {
		m.renderer = preview.New(nil)
	}
	if m.jpegQuality <= 0 || m.jpegQuality > 100 {
		m.jpegQuality = 90
	}
	return m
}

// String returns the name of the device.
func (m *Mirror) String() string {
	return "Mirror"
}

// Halt implements conn.Resource and terminates all running client requests
// asynchronously.
func (m *Mirror) Halt() error {
	m.mu.Lock()
	m.terminateClientsLocked()
	m.mu.Unlock()

	return nil
}

// Publish replaces the picture shown to clients. It has the signature of a
// chainsim.Chain.OnLatch callback. Rendering is deferred until a client
// asks for the picture, and an unchanged snapshot wakes nobody.
func (m *Mirror) Publish(s chainsim.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bytes.Equal(s.Columns, m.state.Columns) && bytes.Equal(s.Intensity, m.state.Intensity) {
		return
	}
	m.state = chainsim.Snapshot{
		Columns:   append([]byte(nil), s.Columns...),
		Intensity: append([]byte(nil), s.Intensity...),
	}
	m.rendered = nil
	m.bufferChangedLocked()
}

// Snapshot returns the last published snapshot.
func (m *Mirror) Snapshot() chainsim.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Mirror) imageLocked() image.Image {
	if m.rendered == nil {
		m.rendered = m.renderer.Render(m.state)
	}
	return m.rendered
}
