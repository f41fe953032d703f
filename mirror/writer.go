// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mirror

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"io"
	"net/http"
	"net/textproto"
	"strconv"
)

// randomBoundary returns 68 hex digits, within the 70 characters RFC 2046
// allows for a multipart boundary.
func randomBoundary() string {
	var b [34]byte
	if _, err := io.ReadFull(rand.Reader, b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// partWriter writes the never ending multipart body of a stream. Every part
// is followed by its boundary line so the client shows it immediately, which
// mime/multipart.Writer doesn't do.
type partWriter struct {
	w        io.Writer
	boundary string
	opened   bool
	// scratch is reused across frames.
	scratch bytes.Buffer
}

func newPartWriter(w io.Writer) *partWriter {
	return &partWriter{w: w, boundary: randomBoundary()}
}

// writeFrame sends body as one part, headers sorted, in a single Write. It
// sets Content-Length in the caller's header.
func (p *partWriter) writeFrame(header textproto.MIMEHeader, body []byte) error {
	header.Set("Content-Length", strconv.Itoa(len(body)))
	p.scratch.Reset()
	if !p.opened {
		p.scratch.WriteString("--" + p.boundary + "\r\n")
		p.opened = true
	}
	if err := http.Header(header).Write(&p.scratch); err != nil {
		return err
	}
	p.scratch.WriteString("\r\n")
	p.scratch.Write(body)
	p.scratch.WriteString("\r\n--" + p.boundary + "\r\n")
	_, err := p.scratch.WriteTo(p.w)
	return err
}
