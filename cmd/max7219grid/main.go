// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// max7219grid shows text, the time or a Lua drawing on a chain of MAX7219 LED
// matrix modules.
//
// Without hardware, -sim emulates the chain; -screen draws it on the
// terminal and -http serves it as an MJPEG stream.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GermanBionicSystems/max7219grid/chainsim"
	"github.com/GermanBionicSystems/max7219grid/internal/config"
	appLog "github.com/GermanBionicSystems/max7219grid/internal/log"
	"github.com/GermanBionicSystems/max7219grid/lambda"
	"github.com/GermanBionicSystems/max7219grid/max7219"
	"github.com/GermanBionicSystems/max7219grid/mirror"
	"github.com/GermanBionicSystems/max7219grid/preview"
	"github.com/GermanBionicSystems/max7219grid/scheduler"
	"github.com/GermanBionicSystems/max7219grid/screen"
	"github.com/GermanBionicSystems/max7219grid/timesource"
	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// flagConfig holds CLI flag values; set flags override the config file.
type flagConfig struct {
	configPath string
	once       bool
	sim        bool
	screen     bool
	dump       string
	listen     string
}

func main() {
	flags := parseFlags()
	if err := run(flags); err != nil {
		appLog.Error("max7219grid failed", err)
		os.Exit(1)
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "max7219grid.yaml", "Path to config file, created with defaults if missing")
	flag.BoolVar(&cfg.once, "once", false, "Draw once and exit, leaving the display on")
	flag.BoolVar(&cfg.sim, "sim", false, "Emulate the chain instead of using SPI hardware")
	flag.BoolVar(&cfg.screen, "screen", false, "Draw the chain on the terminal")
	flag.StringVar(&cfg.dump, "dump", "", "Save a PNG picture of the chain to this path on exit")
	flag.StringVar(&cfg.listen, "http", "", "Serve the chain as MJPEG on this address (overrides config if set)")

	flag.Parse()

	return cfg
}

func run(flags flagConfig) error {
	conf, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	if flags.sim {
		conf.Simulate = true
	}
	if flags.screen {
		conf.Screen = true
	}
	if flags.listen != "" {
		conf.HTTP = flags.listen
	}
	level, _ := appLog.ParseLevel(conf.LogLevel)
	appLog.SetLevel(level)

	appLog.Info("effective config",
		"config_path", flags.configPath,
		"spi_port", conf.SPI.Port,
		"cs_pin", conf.SPI.CSPin,
		"num_chips", conf.NumChips,
		"intensity", conf.Intensity,
		"update_interval", conf.UpdateInterval,
		"schedule", conf.Schedule,
		"timezone", conf.Timezone,
		"simulate", conf.Simulate,
		"screen", conf.Screen,
		"http", conf.HTTP,
		"once", flags.once,
	)

	loc, err := conf.Location()
	if err != nil {
		return err
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	port, cs, err := openPort(conf)
	if err != nil {
		return err
	}
	defer port.Close()

	// A chain model is needed as soon as something shows the LEDs.
	var chain *chainsim.Chain
	if c, ok := port.(*chainsim.Chain); ok {
		chain = c
	} else if conf.Screen || conf.HTTP != "" || flags.dump != "" {
		chain = chainsim.New(conf.NumChips, &chainsim.Opts{Forward: port})
	}
	var bus spi.Port = port
	if chain != nil {
		bus = chain
	}

	dev, err := max7219.NewSPI(bus, cs, &max7219.Opts{
		NumChips:       conf.NumChips,
		UpdateInterval: conf.UpdateInterval,
		Clock:          timesource.System{Location: loc},
	})
	if err != nil {
		return err
	}
	dev.SetIntensity(byte(conf.Intensity))

	w, closeWriter, err := buildWriter(conf)
	if err != nil {
		return err
	}
	defer closeWriter()
	dev.SetWriter(w)

	grid := &tappedGrid{Dev: dev, chain: chain}
	var halters []func() error

	if conf.Screen && chain != nil {
		scr := screen.New(nil)
		grid.sinks = append(grid.sinks, scr.Show)
		halters = append(halters, scr.Halt)
	}

	var m *mirror.Mirror
	if conf.HTTP != "" && !flags.once {
		m = mirror.New(&mirror.Options{Units: conf.NumChips, KeepAlive: 10 * time.Second})
		grid.sinks = append(grid.sinks, m.Publish)
	}

	sched := scheduler.New(&scheduler.Opts{Location: loc})
	if conf.Schedule != "" {
		if err := sched.RegisterSpec(grid, conf.Schedule); err != nil {
			return err
		}
	} else {
		sched.Register(grid)
	}

	if flags.once {
		err := sched.RunOnce()
		if flags.dump != "" && chain != nil {
			err = errors.Join(err, dump(flags.dump, chain))
		}
		return err
	}

	// The scheduler and the mirror stop together: a failing listener ends the
	// program and a signal ends the listener.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(gctx)
	})
	if m != nil {
		srv := &http.Server{Addr: conf.HTTP, Handler: m, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			appLog.Info("mirror listening", "addr", conf.HTTP)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("mirror: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			// Streams only end once the clients are dropped.
			err := m.Halt()
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return errors.Join(err, srv.Shutdown(sctx))
		})
	}
	runErr := g.Wait()
	appLog.Info("shutting down")

	if flags.dump != "" && chain != nil {
		if err := dump(flags.dump, chain); err != nil {
			appLog.Error("saving picture failed", err, "path", flags.dump)
		}
	}
	if err := dev.Halt(); err != nil {
		appLog.Error("halting display failed", err)
	}
	for _, h := range halters {
		if err := h(); err != nil {
			appLog.Error("halt failed", err)
		}
	}
	appLog.Info("max7219grid exiting")
	return runErr
}

// openPort returns the emulated chain, or the SPI port and optional chip
// select pin of the hardware.
func openPort(conf *config.Config) (spi.PortCloser, gpio.PinOut, error) {
	if conf.Simulate {
		return chainsim.New(conf.NumChips, nil), nil, nil
	}
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("periph host init: %w", err)
	}
	port, err := spireg.Open(conf.SPI.Port)
	if err != nil {
		return nil, nil, fmt.Errorf("open SPI port %q: %w", conf.SPI.Port, err)
	}
	if conf.SPI.MaxHz > 0 {
		if err := port.LimitSpeed(physic.Frequency(conf.SPI.MaxHz) * physic.Hertz); err != nil {
			port.Close()
			return nil, nil, fmt.Errorf("limit SPI speed: %w", err)
		}
	}
	var cs gpio.PinOut
	if conf.SPI.CSPin != "" {
		p := gpioreg.ByName(conf.SPI.CSPin)
		if p == nil {
			port.Close()
			return nil, nil, fmt.Errorf("unknown chip select pin %q", conf.SPI.CSPin)
		}
		cs = p
	}
	return port, cs, nil
}

// buildWriter picks the drawing procedure: lambda, then time format, then
// fixed text.
func buildWriter(conf *config.Config) (max7219.Writer, func(), error) {
	switch {
	case conf.Lambda != "":
		s, err := lambda.Compile("lambda", conf.Lambda, nil)
		if err != nil {
			return nil, nil, err
		}
		return s.Writer(), s.Close, nil
	case conf.TimeFormat != "":
		format := conf.TimeFormat
		return func(d *max7219.Dev) { d.PrintTime(format) }, func() {}, nil
	case conf.Text != "":
		text := conf.Text
		return func(d *max7219.Dev) { d.Print(text) }, func() {}, nil
	}
	return nil, func() {}, nil
}

func dump(path string, chain *chainsim.Chain) error {
	r := preview.New(&preview.Opts{Label: time.Now().Format(time.DateTime)})
	if err := r.SavePNG(path, chain.Snapshot()); err != nil {
		return err
	}
	appLog.Info("picture saved", "path", path)
	return nil
}

// tappedGrid hands what the chain shows to the sinks after every update.
type tappedGrid struct {
	*max7219.Dev
	chain *chainsim.Chain
	sinks []func(chainsim.Snapshot)
}

func (g *tappedGrid) Update() error {
	err := g.Dev.Update()
	if g.chain != nil && len(g.sinks) != 0 {
		s := g.chain.Snapshot()
		for _, sink := range g.sinks {
			sink(s)
		}
	}
	return err
}

func (g *tappedGrid) DumpConfig(w io.Writer) {
	g.Dev.DumpConfig(w)
	if g.chain != nil {
		fmt.Fprintf(w, "  Emulation: %s\n", g.chain)
	}
}
