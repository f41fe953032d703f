// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package max7219grid drives daisy-chained MAX7219 LED matrix drivers as a
// single 8 row pixel grid.
//
// The driver itself lives in package max7219. The remaining packages are the
// plumbing around it: a software model of the chip chain (chainsim), terminal
// and image renderers (screen, preview, mirror), the polling scheduler and the
// command line host in cmd/max7219grid.
package max7219grid
