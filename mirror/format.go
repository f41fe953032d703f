// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mirror

import (
	"fmt"
	"strconv"
	"strings"
)

// ImageFormat is the encoding of the served frames.
type ImageFormat int

const (
	PNG ImageFormat = iota
	JPEG

	// DefaultFormat is served when neither Options nor the "format" URL
	// parameter pick one.
	DefaultFormat = PNG
)

var formats = [...]struct {
	name    string
	mime    string
	aliases []string
}{
	PNG:  {"PNG", "image/png", []string{"png"}},
	JPEG: {"JPEG", "image/jpeg", []string{"jpg", "jpeg"}},
}

func (f ImageFormat) known() bool {
	return f >= 0 && int(f) < len(formats)
}

func (f ImageFormat) String() string {
	if !f.known() {
		return "ImageFormat(" + strconv.Itoa(int(f)) + ")"
	}
	return formats[f].name
}

func (f ImageFormat) mimeType() string {
	if !f.known() {
		return "application/octet-stream"
	}
	return formats[f].mime
}

// ImageFormatFromString parses a format name such as "png" or "jpg",
// ignoring case.
func ImageFormatFromString(value string) (ImageFormat, error) {
	value = strings.ToLower(value)
	for f := range formats {
		for _, alias := range formats[f].aliases {
			if alias == value {
				return ImageFormat(f), nil
			}
		}
	}
	return DefaultFormat, fmt.Errorf("mirror: unrecognized image format %q", value)
}
