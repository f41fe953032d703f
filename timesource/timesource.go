// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package timesource provides wall clock sources and strftime style
// formatting for clock displays.
package timesource

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/lestrrat-go/strftime"
)

// MaxLength is the longest string Format returns, in bytes.
const MaxLength = 63

// Source returns the current time. ok is false while the source has no
// valid time yet, e.g. before the first network sync.
type Source interface {
	Now() (t time.Time, ok bool)
}

// System is the host clock, optionally converted to Location.
type System struct {
	Location *time.Location
}

func (s System) Now() (time.Time, bool) {
	t := time.Now()
	if s.Location != nil {
		t = t.In(s.Location)
	}
	return t, true
}

// Fixed always returns T. It is invalid when T is zero.
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() (time.Time, bool) {
	return f.T, !f.T.IsZero()
}

// Func adapts a function to Source.
type Func func() (time.Time, bool)

func (f Func) Now() (time.Time, bool) {
	return f()
}

// Format renders t according to the strftime pattern format. The result is
// cut to MaxLength bytes on a rune boundary.
func Format(format string, t time.Time) (string, error) {
	s, err := strftime.Format(format, t)
	if err != nil {
		return "", fmt.Errorf("timesource: %w", err)
	}
	return Truncate(s, MaxLength), nil
}

// Truncate cuts s to at most n bytes without splitting a rune.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
