// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/devshell/runner.go
// Summary: Runs a child program inside a local tcell screen.
// Usage: cmd/texelvt calls Run with options built from the config file.
// Notes: The screen and session constructors are swappable so tests can
//   use a simulation screen and a scripted PTY.

package devshell

import (
	"context"
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/framegrace/texelvt/grid"
	"github.com/framegrace/texelvt/internal/ioloop"
	"github.com/framegrace/texelvt/parser"
	"github.com/framegrace/texelvt/session"
)

// Options describes the child and how it is presented.
type Options struct {
	Program string
	Args    []string
	// Env defaults to the current environment when nil.
	Env []string
	Dir string

	DeferredWrap bool
	Scrollback   grid.Scrollback

	Border      bool
	BorderChars string
	// ToggleKey cycles the border character instead of reaching the child.
	ToggleKey string

	// Rows and Cols size the headless grid when stdout is not a terminal.
	Rows, Cols int
}

// Result describes how a run ended.
type Result struct {
	Reason ioloop.Reason
	Status session.ExitStatus
	// Exited is false when the exit status of the child is unknown.
	Exited bool
}

// SessionFactory starts the child on a PTY of the given size.
type SessionFactory func(rows, cols int, opts Options) (ioloop.PTY, error)

var (
	screenFactory  = tcell.NewScreen
	sessionFactory = openSession
)

// SetScreenFactory overrides the screen factory used by Run. Passing nil restores the default.
func SetScreenFactory(factory func() (tcell.Screen, error)) {
	if factory == nil {
		screenFactory = tcell.NewScreen
		return
	}
	screenFactory = factory
}

// SetSessionFactory overrides how children are started. Passing nil restores the default.
func SetSessionFactory(factory SessionFactory) {
	if factory == nil {
		sessionFactory = openSession
		return
	}
	sessionFactory = factory
}

func openSession(rows, cols int, opts Options) (ioloop.PTY, error) {
	var sopts []session.Option
	if opts.Env != nil {
		sopts = append(sopts, session.WithEnv(opts.Env))
	}
	if opts.Dir != "" {
		sopts = append(sopts, session.WithDir(opts.Dir))
	}
	return session.Open(rows, cols, opts.Program, opts.Args, sopts...)
}

// exitReporter is implemented by *session.Session.
type exitReporter interface {
	ChildExited() (session.ExitStatus, bool)
}

func newGrid(rows, cols int, opts Options) *grid.Grid {
	var gopts []grid.Option
	if opts.DeferredWrap {
		gopts = append(gopts, grid.WithDeferredWrap())
	}
	if opts.Scrollback != nil {
		gopts = append(gopts, grid.WithScrollback(opts.Scrollback))
	}
	return grid.New(rows, cols, gopts...)
}

func result(loop *ioloop.Loop, pty ioloop.PTY) Result {
	res := Result{Reason: loop.Reason()}
	if er, ok := pty.(exitReporter); ok {
		res.Status, res.Exited = er.ChildExited()
	}
	return res
}

// Run starts the child and drives it until it exits or ctx is cancelled.
// The screen is released before Run returns.
func Run(ctx context.Context, opts Options) (Result, error) {
	toggle, hasToggle, err := ParseToggleKey(opts.ToggleKey)
	if err != nil {
		return Result{}, err
	}

	screen, err := screenFactory()
	if err != nil {
		return Result{}, fmt.Errorf("init screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return Result{}, fmt.Errorf("screen init: %w", err)
	}
	fini := sync.OnceFunc(screen.Fini)
	defer fini()
	screen.Clear()
	screen.EnablePaste()

	rend := NewScreenRenderer(screen, opts.Border, opts.BorderChars)
	rows, cols := rend.GridSize(screen.Size())

	pty, err := sessionFactory(rows, cols, opts)
	if err != nil {
		return Result{}, err
	}
	loop := ioloop.New(pty, newGrid(rows, cols, opts), parser.New(), rend)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	input := make(chan []byte, 64)
	resize := make(chan ioloop.Size, 1)

	pump := &eventPump{
		screen:    screen,
		rend:      rend,
		input:     input,
		resize:    resize,
		toggle:    toggle,
		hasToggle: hasToggle,
	}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pump.run(ctx)
	}()

	runErr := loop.Run(ctx, input, resize)
	cancel()
	// Fini makes PollEvent return nil, which ends the pump.
	fini()
	wg.Wait()
	return result(loop, pty), runErr
}

// eventPump turns tcell events into loop input and resize requests.
type eventPump struct {
	screen    tcell.Screen
	rend      *ScreenRenderer
	input     chan<- []byte
	resize    chan ioloop.Size
	toggle    tcell.Key
	hasToggle bool

	inPaste bool
	paste   []byte
}

func (p *eventPump) run(ctx context.Context) {
	for {
		ev := p.screen.PollEvent()
		if ev == nil {
			return
		}
		switch tev := ev.(type) {
		case *tcell.EventResize:
			rows, cols := p.rend.GridSize(tev.Size())
			offerSize(p.resize, ioloop.Size{Rows: rows, Cols: cols})
		case *tcell.EventPaste:
			if tev.Start() {
				p.inPaste, p.paste = true, nil
			} else if tev.End() {
				p.inPaste = false
				if len(p.paste) > 0 && !p.send(ctx, EncodePaste(p.paste, p.rend.Modes().BracketedPaste)) {
					return
				}
				p.paste = nil
			}
		case *tcell.EventKey:
			if p.inPaste {
				p.paste = append(p.paste, EncodeKey(tev, false)...)
				continue
			}
			if p.hasToggle && tev.Key() == p.toggle {
				p.rend.CycleBorder()
				continue
			}
			if b := EncodeKey(tev, p.rend.Modes().AppCursor); b != nil && !p.send(ctx, b) {
				return
			}
		}
	}
}

func (p *eventPump) send(ctx context.Context, b []byte) bool {
	select {
	case p.input <- b:
		return true
	case <-ctx.Done():
		return false
	}
}

// offerSize replaces any size still waiting in the single-slot channel.
// It must only be called from one goroutine.
func offerSize(ch chan ioloop.Size, sz ioloop.Size) {
	select {
	case <-ch:
	default:
	}
	ch <- sz
}
