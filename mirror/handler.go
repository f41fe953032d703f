// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mirror

import (
	"mime"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"time"
)

type imageConfig struct {
	format ImageFormat
}

type request struct {
	cfg  imageConfig
	once bool
}

func (m *Mirror) parseQuery(values url.Values) (request, error) {
	req := request{cfg: imageConfig{format: m.defaultFormat}}

	if value := values.Get("format"); value != "" {
		format, err := ImageFormatFromString(value)
		if err != nil {
			return request{}, err
		}
		req.cfg.format = format
	}
	if value := values.Get("once"); value != "" {
		once, err := strconv.ParseBool(value)
		if err != nil {
			return request{}, err
		}
		req.once = once
	}

	return req, nil
}

type client struct {
	refresh   chan struct{}
	terminate chan struct{}
}

func (m *Mirror) bufferChangedLocked() {
	for cfg, buffer := range m.snapshot {
		if buffer != nil {
			//lint:ignore SA6002 buffer is []byte and thus pointer-like
			bufferPool.Put(buffer)
		}

		delete(m.snapshot, cfg)
	}

	for c := range m.clients {
		select {
		case c.refresh <- struct{}{}:
		default:
		}
	}
}

func (m *Mirror) terminateClientsLocked() {
	for c := range m.clients {
		select {
		case c.terminate <- struct{}{}:
		default:
		}
	}
}

// ServeHTTP handles HTTP GET requests and sends a stream of images
// representing the LEDs in response. The options control the default format
// and clients can explicitly request PNG or JPEG images using the "format"
// parameter ("?format=png", "?format=jpeg").
func (m *Mirror) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.Body.Close(); err != nil {
		m.logger.Warn("closing request body failed", "err", err)
	}

	if r.Method != http.MethodGet {
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}

	req, err := m.parseQuery(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.once {
		m.serveImage(w, req.cfg)
		return
	}
	m.serveStream(w, r, req.cfg)
}

func (m *Mirror) serveImage(w http.ResponseWriter, cfg imageConfig) {
	payload, err := m.grabSnapshot(cfg)
	if err != nil {
		m.logger.Error("encoding image failed", err, "format", cfg.format)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	//lint:ignore SA6002 buffer is []byte and thus pointer-like
	defer bufferPool.Put(payload)

	w.Header().Set("Content-Type", cfg.format.mimeType())
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(payload)
}

func (m *Mirror) serveStream(w http.ResponseWriter, r *http.Request, cfg imageConfig) {
	pw := newPartWriter(w)

	w.Header().Set("Content-Type",
		mime.FormatMediaType("multipart/x-mixed-replace", map[string]string{
			"boundary": pw.boundary,
		}))

	c := &client{
		refresh:   make(chan struct{}, 1),
		terminate: make(chan struct{}, 1),
	}

	m.mu.Lock()
	m.clients[c] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.clients, c)
		m.mu.Unlock()
	}()

	partHeaders := make(textproto.MIMEHeader)
	partHeaders.Set("Content-Type", mime.FormatMediaType(cfg.format.mimeType(), nil))
	partHeaders.Set("Content-Transfer-Encoding", "binary")

	var keepAlive <-chan time.Time
	if m.keepAlive > 0 {
		t := time.NewTicker(m.keepAlive)
		defer t.Stop()
		keepAlive = t.C
	}

	for {
		payload, err := m.grabSnapshot(cfg)
		if err != nil {
			m.logger.Error("encoding image failed", err, "format", cfg.format)
			return
		}
		err = pw.writeFrame(partHeaders, payload)

		//lint:ignore SA6002 buffer is []byte and thus pointer-like
		bufferPool.Put(payload)

		if err != nil {
			// Errors cause the request to be silently terminated. There's no
			// good way to deliver an error message to the client within an
			// image stream.
			m.logger.Debug("client left", "remote", r.RemoteAddr, "err", err)
			return
		}

		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}

		select {
		case <-c.refresh:
		case <-keepAlive:
		case <-c.terminate:
			return
		case <-r.Context().Done():
			return
		}
	}
}
