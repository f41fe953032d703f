// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package config holds the YAML configuration of the max7219grid program.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/GermanBionicSystems/max7219grid/internal/log"
	"gopkg.in/yaml.v3"
)

// SPIConfig selects the bus the chain is wired to.
type SPIConfig struct {
	// Port is the periph SPI port name, e.g. "SPI0.0". Empty picks the first
	// port available.
	Port string `yaml:"port"`
	// CSPin is a GPIO name driven as chip select, e.g. "GPIO8". Empty uses
	// the port's own chip enable line.
	CSPin string `yaml:"cs_pin,omitempty"`
	// MaxHz caps the bus clock. 0 keeps the driver's 10MHz.
	MaxHz int64 `yaml:"max_hz,omitempty"`
}

// Config is the top-level program configuration.
type Config struct {
	SPI SPIConfig `yaml:"spi"`

	// NumChips is the number of daisy-chained units.
	NumChips int `yaml:"num_chips"`

	// Intensity is the brightness, 0 to 15.
	Intensity int `yaml:"intensity"`

	// UpdateInterval is how often the grid is redrawn, e.g. "1s".
	UpdateInterval time.Duration `yaml:"update_interval"`

	// Schedule is an optional cron spec (e.g. "*/5 * * * * *") that
	// replaces UpdateInterval.
	Schedule string `yaml:"schedule,omitempty"`

	// Timezone is the IANA zone used for the clock and cron specs. "Local"
	// is the host zone.
	Timezone string `yaml:"timezone"`

	// What is drawn on every update, first set wins: Lambda is a Lua
	// script, TimeFormat a strftime format shown with the current time,
	// Text a fixed string.
	Lambda     string `yaml:"lambda"`
	TimeFormat string `yaml:"time_format"`
	Text       string `yaml:"text"`

	// Simulate replaces the hardware with an emulated chain.
	Simulate bool `yaml:"simulate"`

	// Screen draws the chain on the terminal.
	Screen bool `yaml:"screen"`

	// HTTP is the listen address of the MJPEG mirror. Empty disables it.
	HTTP string `yaml:"http,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// FieldError reports an invalid configuration value.
type FieldError struct {
	Field string
	Msg   string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

// DefaultTimeFormat is shown when none of lambda, time_format and text is
// set.
const DefaultTimeFormat = "%H:%M"

// DefaultConfig returns an in-memory default configuration: a 4 unit clock.
func DefaultConfig() *Config {
	c := baseConfig()
	c.TimeFormat = DefaultTimeFormat
	return c
}

// baseConfig holds the defaults a file is loaded on top of. What to draw is
// left unset so that the field present in the file picks the writer.
func baseConfig() *Config {
	return &Config{
		NumChips:       4,
		Intensity:      15,
		UpdateInterval: time.Second,
		Timezone:       "Local",
		LogLevel:       "info",
	}
}

// Normalize fills in missing values with the defaults. Intensity is left
// alone since 0 is a valid brightness.
func (c *Config) Normalize() {
	if c.NumChips == 0 {
		c.NumChips = 1
	}
	if c.UpdateInterval == 0 {
		c.UpdateInterval = time.Second
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Lambda == "" && c.TimeFormat == "" && c.Text == "" {
		c.TimeFormat = DefaultTimeFormat
	}
}

// Validate returns every invalid field as a *FieldError, joined.
func (c *Config) Validate() error {
	var errs []error
	bad := func(field, format string, args ...any) {
		errs = append(errs, &FieldError{Field: field, Msg: fmt.Sprintf(format, args...)})
	}
	if c.NumChips < 1 || c.NumChips > 255 {
		bad("num_chips", "%d is not in [1, 255]", c.NumChips)
	}
	if c.Intensity < 0 || c.Intensity > 15 {
		bad("intensity", "%d is not in [0, 15]", c.Intensity)
	}
	if c.UpdateInterval <= 0 {
		bad("update_interval", "%s must be positive", c.UpdateInterval)
	}
	if c.SPI.MaxHz < 0 {
		bad("spi.max_hz", "%d must not be negative", c.SPI.MaxHz)
	}
	if _, err := c.Location(); err != nil {
		bad("timezone", "%v", err)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		bad("log_level", "%q is not one of debug, info, warn, error", c.LogLevel)
	}
	return errors.Join(errs...)
}

// Location returns the time zone named by Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise fields missing from the file keep their default value, then
//     the result is normalized and validated. The clock is only the default
//     drawing when the file sets none of lambda, time_format and text.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config: path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg := baseConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path atomically via a temp file and rename, creating
// the parent directory (0700) if needed. The file ends up with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config: path is empty")
	}
	if cfg == nil {
		return errors.New("config: nil config")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".max7219grid-config-*.tmp")
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
