// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/ioloop/loop.go
// Summary: Pumps PTY output through the parser into the grid and forwards
//   input, device replies and resizes back to the PTY.
// Usage: cmd/texelvt builds a Loop per session and calls Run.
// Notes: Run's goroutine is the only one touching the grid and the parser.
//   The reader and writer workers only move bytes.

package ioloop

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/framegrace/texelvt/grid"
	"github.com/framegrace/texelvt/parser"
	"github.com/framegrace/texelvt/session"
)

const (
	defaultReadSize = 16 * 1024
	chunkQueue      = 16
	// maxCoalesce bounds how many queued chunks form one batch so a flood
	// of output cannot starve input and resize handling.
	maxCoalesce = 64
)

// PTY is the byte pipe to the child. *session.Session implements it.
type PTY interface {
	Read(p []byte) (int, error)
	Write(p []byte) error
	Resize(rows, cols int) error
	Close() error
}

// Renderer displays grid snapshots.
type Renderer interface {
	Render(snap grid.Snapshot) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(snap grid.Snapshot) error

func (f RendererFunc) Render(snap grid.Snapshot) error { return f(snap) }

// Size is a requested grid size in cells.
type Size struct {
	Rows, Cols int
}

// Reason tells why Run returned.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonChildExited
	ReasonWriteFailed
	ReasonShutdown
)

func (r Reason) String() string {
	switch r {
	case ReasonChildExited:
		return "child exited"
	case ReasonWriteFailed:
		return "write to child failed"
	case ReasonShutdown:
		return "shutdown"
	}
	return "running"
}

// Loop connects one PTY to one grid.
type Loop struct {
	pty      PTY
	grid     *grid.Grid
	parser   *parser.Parser
	renderer Renderer

	readSize int
	actions  []parser.Action
	pending  [][]byte
	reason   Reason
}

// Option configures a Loop.
type Option func(*Loop)

// WithReadBufferSize sets the size of a single PTY read.
func WithReadBufferSize(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.readSize = n
		}
	}
}

// New creates a loop. The grid and parser must not be used by anyone else
// while Run is active.
func New(pty PTY, g *grid.Grid, p *parser.Parser, r Renderer, opts ...Option) *Loop {
	l := &Loop{
		pty:      pty,
		grid:     g,
		parser:   p,
		renderer: r,
		readSize: defaultReadSize,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Reason reports why the last Run returned.
func (l *Loop) Reason() Reason { return l.reason }

// Run drives the session until the child exits, a write to it fails or ctx
// is cancelled. Input chunks are written to the child in order; resize
// requests are applied between output batches. Either channel may be nil.
// The PTY is closed and both workers have exited when Run returns.
func (l *Loop) Run(ctx context.Context, input <-chan []byte, resize <-chan Size) error {
	workCtx, stop := context.WithCancel(context.Background())
	defer stop()
	eg, workCtx := errgroup.WithContext(workCtx)

	chunks := make(chan []byte, chunkQueue)
	writes := make(chan []byte)
	writeErr := make(chan error, 1)

	eg.Go(func() error { return l.readPTY(workCtx, chunks) })
	eg.Go(func() error { return l.writePTY(workCtx, writes, writeErr) })

	err := l.apply(ctx, chunks, writes, writeErr, input, resize)
	l.render()

	stop()
	if cerr := l.pty.Close(); cerr != nil {
		log.Printf("Loop: Closing PTY: %v", cerr)
	}
	if werr := eg.Wait(); werr != nil && err == nil {
		err = werr
	}
	log.Printf("Loop: Stopped (%s)", l.reason)
	return err
}

func (l *Loop) readPTY(ctx context.Context, chunks chan<- []byte) error {
	defer close(chunks)
	buf := make([]byte, l.readSize)
	for {
		n, err := l.pty.Read(buf)
		if n > 0 {
			select {
			case chunks <- append([]byte(nil), buf[:n]...):
			case <-ctx.Done():
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, session.ErrClosed) {
				return nil
			}
			return fmt.Errorf("ioloop: read: %w", err)
		}
	}
}

func (l *Loop) writePTY(ctx context.Context, writes <-chan []byte, writeErr chan<- error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case data := <-writes:
			if err := l.pty.Write(data); err != nil {
				writeErr <- err
				return nil
			}
		}
	}
}

// apply is the single consumer of every event source.
func (l *Loop) apply(ctx context.Context, chunks <-chan []byte, writes chan<- []byte,
	writeErr <-chan error, input <-chan []byte, resize <-chan Size) error {
	l.render()
	for {
		// The write queue is unbounded: sendCh stays nil while it is empty.
		var sendCh chan<- []byte
		var head []byte
		if len(l.pending) > 0 {
			sendCh, head = writes, l.pending[0]
		}

		select {
		case <-ctx.Done():
			l.reason = ReasonShutdown
			return nil

		case data, ok := <-chunks:
			if !ok {
				l.reason = ReasonChildExited
				return nil
			}
			open := l.applyBatch(data, chunks)
			l.queueReplies()
			l.render()
			if !open {
				l.reason = ReasonChildExited
				return nil
			}

		case data, ok := <-input:
			if !ok {
				input = nil
				continue
			}
			if len(data) > 0 {
				l.pending = append(l.pending, data)
			}

		case sz, ok := <-resize:
			if !ok {
				resize = nil
				continue
			}
			l.applyResize(latestSize(resize, sz))

		case sendCh <- head:
			l.pending[0] = nil
			l.pending = l.pending[1:]

		case err := <-writeErr:
			log.Printf("Loop: Write to child failed: %v", err)
			l.reason = ReasonWriteFailed
			return err
		}
	}
}

// applyBatch applies data plus every chunk already queued behind it. It
// reports false when the reader has finished.
func (l *Loop) applyBatch(data []byte, chunks <-chan []byte) bool {
	l.applyChunk(data)
	for i := 1; i < maxCoalesce; i++ {
		select {
		case more, ok := <-chunks:
			if !ok {
				return false
			}
			l.applyChunk(more)
		default:
			return true
		}
	}
	return true
}

func (l *Loop) applyChunk(data []byte) {
	l.actions = l.parser.Feed(data, l.actions[:0])
	for _, a := range l.actions {
		switch a.Kind {
		case parser.KindOSC, parser.KindDCS:
			debugLog.Printf("Loop: Ignoring %s", a)
		}
		l.grid.Apply(a)
	}
}

func (l *Loop) queueReplies() {
	if r := l.grid.TakeReplies(); len(r) > 0 {
		l.pending = append(l.pending, r)
	}
}

// latestSize collapses a burst of resize requests into the last one.
func latestSize(resize <-chan Size, sz Size) Size {
	for {
		select {
		case next, ok := <-resize:
			if !ok {
				return sz
			}
			sz = next
		default:
			return sz
		}
	}
}

func (l *Loop) applyResize(sz Size) {
	if sz.Rows < 1 || sz.Cols < 1 {
		debugLog.Printf("Loop: Ignoring resize to %dx%d", sz.Cols, sz.Rows)
		return
	}
	// The grid only takes a size the PTY accepted.
	if err := l.pty.Resize(sz.Rows, sz.Cols); err != nil && !errors.Is(err, session.ErrClosed) {
		log.Printf("Loop: PTY resize to %dx%d failed, keeping grid size: %v", sz.Cols, sz.Rows, err)
		return
	}
	l.grid.Resize(sz.Rows, sz.Cols)
	l.render()
}

// render hands a snapshot to the renderer when the grid changed. Render
// failures are logged and never stop the loop.
func (l *Loop) render() {
	if !l.grid.Dirty() {
		return
	}
	snap := l.grid.Snapshot()
	l.grid.ClearDirty()
	if err := l.renderer.Render(snap); err != nil {
		log.Printf("Loop: Render failed: %v", err)
	}
}
