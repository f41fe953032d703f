// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package lambda runs a Lua script as the drawing procedure of a grid.
//
// The script is compiled once and run on every update with the grid bound to
// the global "it":
//
//	it:print([pos,] text)          -- returns the columns used
//	it:printf([pos,] format, ...)  -- string.format, bounded to 63 bytes
//	it:strftime([pos,] format)     -- current time, needs a clock
//	it:set_column(col, value)
//	it:column(col)
//	it:width()
//	it:height()
//
// Only the base, table, string and math libraries are loaded.
package lambda

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/GermanBionicSystems/max7219grid/internal/log"
	"github.com/GermanBionicSystems/max7219grid/max7219"
	lua "github.com/yuin/gopher-lua"
)

const gridType = "max7219.grid"

// Opts configures a Script.
type Opts struct {
	// Timeout bounds one run. Defaults to 100ms.
	Timeout time.Duration
}

// Script is a compiled drawing procedure. It is safe for concurrent use;
// runs are serialized.
type Script struct {
	name    string
	timeout time.Duration
	logger  *log.Logger

	mu sync.Mutex
	L  *lua.LState
	fn *lua.LFunction
}

// Compile parses src. name is used in error messages.
func Compile(name, src string, opts *Opts) (*Script, error) {
	if opts == nil {
		opts = &Opts{}
	}
	s := &Script{
		name:    name,
		timeout: opts.Timeout,
		logger:  log.Tag("lambda"),
		L:       lua.NewState(lua.Options{SkipOpenLibs: true}),
	}
	if s.timeout <= 0 {
		s.timeout = 100 * time.Millisecond
	}
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := s.L.CallByParam(lua.P{Fn: s.L.NewFunction(lib.open), NRet: 0, Protect: true}, lua.LString(lib.name)); err != nil {
			s.L.Close()
			return nil, fmt.Errorf("lambda: opening %s: %w", lib.name, err)
		}
	}
	mt := s.L.NewTypeMetatable(gridType)
	s.L.SetField(mt, "__index", s.L.SetFuncs(s.L.NewTable(), methods))

	fn, err := s.L.Load(strings.NewReader(src), name)
	if err != nil {
		s.L.Close()
		return nil, fmt.Errorf("lambda: %w", err)
	}
	s.fn = fn
	return s, nil
}

// Run executes the script once against d.
func (s *Script) Run(d *max7219.Dev) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.L == nil {
		return errors.New("lambda: script closed")
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	ud := s.L.NewUserData()
	ud.Value = d
	s.L.SetMetatable(ud, s.L.GetTypeMetatable(gridType))
	s.L.SetGlobal("it", ud)
	defer s.L.SetGlobal("it", lua.LNil)
	defer s.L.SetTop(0)

	s.L.Push(s.fn)
	if err := s.L.PCall(0, lua.MultRet, nil); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("lambda: %s: timed out after %s", s.name, s.timeout)
		}
		return fmt.Errorf("lambda: %w", err)
	}
	return nil
}

// Writer returns a max7219.Writer running the script. A failing run is
// logged and leaves whatever it drew so far.
func (s *Script) Writer() max7219.Writer {
	return func(d *max7219.Dev) {
		if err := s.Run(d); err != nil {
			s.logger.Error("script failed", err, "script", s.name)
		}
	}
}

// Close releases the interpreter.
func (s *Script) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.L != nil {
		s.L.Close()
		s.L = nil
	}
}

func (s *Script) String() string {
	return fmt.Sprintf("lambda(%s)", s.name)
}

var methods = map[string]lua.LGFunction{
	"print":      gridPrint,
	"printf":     gridPrintf,
	"strftime":   gridStrftime,
	"set_column": gridSetColumn,
	"column":     gridColumn,
	"width":      gridWidth,
	"height":     gridHeight,
}

func checkGrid(L *lua.LState) *max7219.Dev {
	ud := L.CheckUserData(1)
	if d, ok := ud.Value.(*max7219.Dev); ok {
		return d
	}
	L.ArgError(1, "grid expected")
	return nil
}

// optPos returns the optional leading column argument and the index of the
// next argument.
func optPos(L *lua.LState) (int, int) {
	if L.Get(2).Type() == lua.LTNumber {
		return L.CheckInt(2), 3
	}
	return 0, 2
}

func gridPrint(L *lua.LState) int {
	d := checkGrid(L)
	pos, next := optPos(L)
	L.Push(lua.LNumber(d.PrintAt(pos, L.CheckString(next))))
	return 1
}

func gridPrintf(L *lua.LState) int {
	d := checkGrid(L)
	pos, next := optPos(L)
	args := []lua.LValue{lua.LString(L.CheckString(next))}
	for ix := next + 1; ix <= L.GetTop(); ix++ {
		args = append(args, L.Get(ix))
	}
	format := L.GetField(L.GetGlobal("string"), "format")
	if err := L.CallByParam(lua.P{Fn: format, NRet: 1, Protect: true}, args...); err != nil {
		L.RaiseError("printf: %v", err)
		return 0
	}
	text := L.Get(-1).String()
	L.Pop(1)
	L.Push(lua.LNumber(d.PrintfAt(pos, "%s", text)))
	return 1
}

func gridStrftime(L *lua.LState) int {
	d := checkGrid(L)
	pos, next := optPos(L)
	L.Push(lua.LNumber(d.PrintTimeAt(pos, L.CheckString(next))))
	return 1
}

func gridSetColumn(L *lua.LState) int {
	d := checkGrid(L)
	d.SetColumn(L.CheckInt(2), byte(L.CheckInt(3)))
	return 0
}

func gridColumn(L *lua.LState) int {
	d := checkGrid(L)
	L.Push(lua.LNumber(d.Column(L.CheckInt(2))))
	return 1
}

func gridWidth(L *lua.LState) int {
	L.Push(lua.LNumber(checkGrid(L).Width()))
	return 1
}

func gridHeight(L *lua.LState) int {
	L.Push(lua.LNumber(checkGrid(L).Height()))
	return 1
}
