// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mirror

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"image/png"
	"sync"
)

// bufferPool stores reusable []byte instances.
var bufferPool = sync.Pool{
	New: func() any {
		return []byte(nil)
	},
}

type pngBufferPool sync.Pool

func (p *pngBufferPool) Get() *png.EncoderBuffer {
	buf, _ := (*sync.Pool)(p).Get().(*png.EncoderBuffer)
	return buf
}

func (p *pngBufferPool) Put(buf *png.EncoderBuffer) {
	(*sync.Pool)(p).Put(buf)
}

type pngEncoders struct {
	mu   sync.Mutex
	pool pngBufferPool
	enc  map[png.CompressionLevel]*png.Encoder
}

var pngEncoder pngEncoders

// get returns a PNG encoder with a globally shared buffer pool.
func (m *pngEncoders) get(level png.CompressionLevel) *png.Encoder {
	m.mu.Lock()
	defer m.mu.Unlock()

	enc := m.enc[level]
	if enc == nil {
		if m.enc == nil {
			// Almost always a single level is used.
			m.enc = make(map[png.CompressionLevel]*png.Encoder, 1)
		}
		enc = &png.Encoder{CompressionLevel: level, BufferPool: &m.pool}
		m.enc[level] = enc
	}

	return enc
}

// encodeLocked renders the current state if needed and encodes it into a
// pooled buffer.
func (m *Mirror) encodeLocked(format ImageFormat) ([]byte, error) {
	buf := bytes.NewBuffer(bufferPool.Get().([]byte)[:0])
	img := m.imageLocked()

	switch format {
	case PNG:
		if err := pngEncoder.get(m.pngLevel).Encode(buf, img); err != nil {
			return nil, err
		}

	case JPEG:
		if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: m.jpegQuality}); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("mirror: unhandled image format %s", format)
	}

	return buf.Bytes(), nil
}

// grabSnapshot returns a pooled copy of the encoded picture, encoding it at
// most once per published state and format.
func (m *Mirror) grabSnapshot(cfg imageConfig) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	encoded, ok := m.snapshot[cfg]
	if !ok {
		var err error
		if encoded, err = m.encodeLocked(cfg.format); err != nil {
			return nil, err
		}
		m.snapshot[cfg] = encoded
	}

	return append(bufferPool.Get().([]byte)[:0], encoded...), nil
}
