// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package log is the leveled key=value logger shared by the program.
//
// Lines look like:
//
//	time=2026-01-01T00:00:00.000Z level=WARN msg="..." tag=display.max7219 key=value
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	minLevel = new(slog.LevelVar)
	std      atomic.Pointer[slog.Logger]
)

func init() {
	SetOutput(os.Stderr)
}

// SetOutput redirects all loggers to w.
func SetOutput(w io.Writer) {
	std.Store(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: minLevel})))
}

// SetLevel drops every line below l.
func SetLevel(l Level) {
	minLevel.Set(l.slog())
}

// ParseLevel accepts the level names in any case. An empty string is INFO.
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToUpper(s)); l {
	case "":
		return LevelInfo, nil
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return l, nil
	}
	return LevelInfo, fmt.Errorf("log: unknown level %q", s)
}

func (l Level) slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func Debug(msg string, kv ...any) {
	std.Load().Debug(msg, kv...)
}

func Info(msg string, kv ...any) {
	std.Load().Info(msg, kv...)
}

func Warn(msg string, kv ...any) {
	std.Load().Warn(msg, kv...)
}

// Error logs msg with err prepended to the key-value list. err may be nil.
func Error(msg string, err error, kv ...any) {
	if err != nil {
		kv = append([]any{"err", err}, kv...)
	}
	std.Load().Error(msg, kv...)
}

// Logger prefixes every line with a component tag.
type Logger struct {
	tag string
}

// Tag returns a Logger for the named component, e.g. "display.max7219".
func Tag(tag string) *Logger {
	return &Logger{tag: tag}
}

func (l *Logger) Debug(msg string, kv ...any) {
	Debug(msg, l.with(kv)...)
}

func (l *Logger) Info(msg string, kv ...any) {
	Info(msg, l.with(kv)...)
}

func (l *Logger) Warn(msg string, kv ...any) {
	Warn(msg, l.with(kv)...)
}

func (l *Logger) Error(msg string, err error, kv ...any) {
	Error(msg, err, l.with(kv)...)
}

func (l *Logger) with(kv []any) []any {
	return append([]any{"tag", l.tag}, kv...)
}
