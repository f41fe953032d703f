// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package scheduler drives components: it sets them up in priority order,
// then calls Update on each at its own interval or cron schedule.
//
// Updates of one component never overlap; a tick arriving while the previous
// Update still runs is skipped. A panic in Update is logged and the
// component keeps being scheduled.
package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/GermanBionicSystems/max7219grid/component"
	"github.com/GermanBionicSystems/max7219grid/internal/log"
	"github.com/robfig/cron/v3"
)

// Opts configures a Scheduler.
type Opts struct {
	// Location is used to interpret cron specs. Defaults to time.Local.
	Location *time.Location
}

// Scheduler runs registered components.
type Scheduler struct {
	cron   *cron.Cron
	parser cron.Parser
	logger *log.Logger

	mu      sync.Mutex
	entries []*entry
	ready   bool
	running bool
}

type entry struct {
	c        component.Component
	schedule cron.Schedule
	spec     string
	failed   bool
	failures int
}

func (e *entry) String() string {
	if s, ok := e.c.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", e.c)
}

// New returns an idle Scheduler.
func New(opts *Opts) *Scheduler {
	if opts == nil {
		opts = &Opts{}
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	logger := log.Tag("scheduler")
	cl := cronLogger{logger}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithParser(parser),
			cron.WithLogger(cl),
			cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
		),
		parser: parser,
		logger: logger,
	}
}

// Register schedules c every component.UpdateInterval(c).
func (s *Scheduler) Register(c component.Component) {
	d := component.UpdateInterval(c)
	s.add(&entry{c: c, schedule: every(d), spec: "every " + d.String()})
}

// RegisterSpec schedules c with a cron spec instead of its interval. Specs
// have five fields, or six with leading seconds, or are descriptors such as
// "@every 500ms" and "@hourly".
func (s *Scheduler) RegisterSpec(c component.Component, spec string) error {
	var sched cron.Schedule
	if d, ok := strings.CutPrefix(spec, "@every "); ok {
		// cron rounds @every to whole seconds.
		delay, err := time.ParseDuration(d)
		if err != nil || delay <= 0 {
			return fmt.Errorf("scheduler: invalid interval %q", d)
		}
		sched = every(delay)
	} else {
		var err error
		if sched, err = s.parser.Parse(spec); err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
	}
	s.add(&entry{c: c, schedule: sched, spec: spec})
	return nil
}

func (s *Scheduler) add(e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

// Setup sets every component up, highest priority first, and logs its
// configuration. A component failing Setup is marked failed and never
// updated; the failures are returned together once all were tried.
func (s *Scheduler) Setup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	sort.SliceStable(s.entries, func(i, j int) bool {
		return component.SetupPriority(s.entries[i].c) > component.SetupPriority(s.entries[j].c)
	})
	var errs []error
	for _, e := range s.entries {
		if err := e.c.Setup(); err != nil {
			e.failed = true
			s.logger.Error("setup failed, component marked failed", err, "component", e)
			errs = append(errs, fmt.Errorf("scheduler: setup %s: %w", e, err))
			continue
		}
		var buf bytes.Buffer
		e.c.DumpConfig(&buf)
		for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
			s.logger.Info(line, "component", e)
		}
		s.logger.Debug("scheduled", "component", e, "schedule", e.spec)
	}
	s.ready = true
	return errors.Join(errs...)
}

// RunOnce updates every healthy component once, in setup order. Setup
// failures are returned along with the update failures.
func (s *Scheduler) RunOnce() error {
	errs := []error{s.Setup()}
	for _, e := range s.healthy() {
		if err := e.c.Update(); err != nil {
			errs = append(errs, fmt.Errorf("scheduler: update %s: %w", e, err))
		}
	}
	return errors.Join(errs...)
}

// Run sets the components up if needed, then updates the healthy ones until
// ctx is done. It waits for running updates before returning.
//
// A component failing Setup is skipped and the others keep running; Run
// only returns the setup error when no component is left to run.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Setup(); err != nil && len(s.healthy()) == 0 {
		return err
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler: already running")
	}
	s.running = true
	for _, e := range s.entries {
		if e.failed {
			continue
		}
		s.cron.Schedule(e.schedule, cron.FuncJob(func() { s.update(e) }))
	}
	s.mu.Unlock()

	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}

// healthy returns the entries that passed Setup, in setup order.
func (s *Scheduler) healthy() []*entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entry
	for _, e := range s.entries {
		if !e.failed {
			out = append(out, e)
		}
	}
	return out
}

// update runs from the cron goroutines; SkipIfStillRunning serializes the
// calls of a given entry.
func (s *Scheduler) update(e *entry) {
	if err := e.c.Update(); err != nil {
		e.failures++
		if e.failures == 1 {
			s.logger.Warn("update failed", "component", e, "err", err)
		} else {
			s.logger.Debug("update failed again", "component", e, "failures", e.failures, "err", err)
		}
		return
	}
	if e.failures != 0 {
		s.logger.Info("update recovered", "component", e, "failures", e.failures)
		e.failures = 0
	}
}

// every is a fixed delay schedule that, unlike cron.Every, accepts sub-second
// delays.
type every time.Duration

func (d every) Next(t time.Time) time.Time {
	return t.Add(time.Duration(d))
}

// cronLogger forwards cron's logging. Its routine lines are demoted to debug.
type cronLogger struct {
	l *log.Logger
}

func (c cronLogger) Info(msg string, kv ...any) {
	c.l.Debug(msg, kv...)
}

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.l.Error(msg, err, kv...)
}

var _ cron.Logger = cronLogger{}
