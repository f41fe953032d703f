// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package component defines the lifecycle contract between devices and the
// host scheduler.
//
// A Component is set up once, then updated periodically. Setup order across
// components follows their setup priority, highest first.
package component

import (
	"io"
	"time"
)

// Setup priorities. Higher values are set up earlier.
const (
	Bus          float32 = 1000
	IO           float32 = 900
	Hardware     float32 = 800
	PostHardware float32 = 700
	Data         float32 = 600
	Processor    float32 = 400
	Late         float32 = -100
)

// DefaultUpdateInterval is used for components that don't implement Poller.
const DefaultUpdateInterval = time.Second

// Component is implemented by anything the scheduler drives.
type Component interface {
	// Setup runs once before the first Update.
	Setup() error
	// Update runs on every tick. It must not block indefinitely; a blocked
	// Update stalls its own schedule.
	Update() error
	// DumpConfig describes the component configuration in human form.
	DumpConfig(w io.Writer)
}

// Prioritizer is implemented by components that need a specific setup order.
type Prioritizer interface {
	SetupPriority() float32
}

// Poller is implemented by components with their own update interval.
type Poller interface {
	UpdateInterval() time.Duration
}

// SetupPriority returns c's priority, Data when c doesn't specify one.
func SetupPriority(c Component) float32 {
	if p, ok := c.(Prioritizer); ok {
		return p.SetupPriority()
	}
	return Data
}

// UpdateInterval returns c's interval, DefaultUpdateInterval when c doesn't
// specify a positive one.
func UpdateInterval(c Component) time.Duration {
	if p, ok := c.(Poller); ok {
		if d := p.UpdateInterval(); d > 0 {
			return d
		}
	}
	return DefaultUpdateInterval
}
