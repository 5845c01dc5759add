// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/ioloop/loop_test.go
// Summary: Drives the loop with a scripted PTY and a recording renderer.

package ioloop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/framegrace/texelvt/grid"
	"github.com/framegrace/texelvt/parser"
	"github.com/framegrace/texelvt/session"
)

// fakePTY serves scripted output and records everything sent to it.
// Closing reads simulates the child exiting.
type fakePTY struct {
	reads     chan []byte
	gate      chan struct{}
	closed    chan struct{}
	once      sync.Once
	mu        sync.Mutex
	written   bytes.Buffer
	resizes   []Size
	writeErr  error
	resizeErr error
}

func newFakePTY() *fakePTY {
	return &fakePTY{
		reads:  make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (f *fakePTY) Read(p []byte) (int, error) {
	select {
	case data, ok := <-f.reads:
		if !ok {
			return 0, session.ErrClosed
		}
		return copy(p, data), nil
	case <-f.closed:
		return 0, session.ErrClosed
	}
}

func (f *fakePTY) Write(p []byte) error {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-f.closed:
			return session.ErrWriteFailed
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written.Write(p)
	return nil
}

func (f *fakePTY) Resize(rows, cols int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resizes = append(f.resizes, Size{rows, cols})
	return f.resizeErr
}

func (f *fakePTY) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakePTY) Written() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written.String()
}

func (f *fakePTY) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

type recordingRenderer struct {
	mu    sync.Mutex
	snaps []grid.Snapshot
	err   error
}

func (r *recordingRenderer) Render(s grid.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
	return r.err
}

func (r *recordingRenderer) last() (grid.Snapshot, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snaps) == 0 {
		return grid.Snapshot{}, 0
	}
	return r.snaps[len(r.snaps)-1], len(r.snaps)
}

type runResult struct {
	err error
}

type harness struct {
	pty    *fakePTY
	grid   *grid.Grid
	rend   *recordingRenderer
	loop   *Loop
	input  chan []byte
	resize chan Size
	cancel context.CancelFunc
	done   chan runResult
}

func startLoop(t *testing.T, configure func(*fakePTY, *recordingRenderer)) *harness {
	t.Helper()
	h := &harness{
		pty:    newFakePTY(),
		grid:   grid.New(24, 80),
		rend:   &recordingRenderer{},
		input:  make(chan []byte),
		resize: make(chan Size, 4),
		done:   make(chan runResult, 1),
	}
	if configure != nil {
		configure(h.pty, h.rend)
	}
	h.loop = New(h.pty, h.grid, parser.New(), h.rend, WithReadBufferSize(64))
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- runResult{h.loop.Run(ctx, h.input, h.resize)} }()
	t.Cleanup(func() {
		cancel()
		h.wait(t)
	})
	return h
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case r, ok := <-h.done:
		if !ok {
			return nil
		}
		close(h.done)
		return r.err
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
		return nil
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestOutputRenderedUntilChildExits(t *testing.T) {
	h := startLoop(t, nil)
	h.pty.reads <- []byte("\x1b[2;5HHi\x1b[0m")
	close(h.pty.reads)

	if err := h.wait(t); err != nil {
		t.Fatalf("Run = %v", err)
	}
	if h.loop.Reason() != ReasonChildExited {
		t.Errorf("Reason = %s", h.loop.Reason())
	}
	snap, n := h.rend.last()
	if n == 0 {
		t.Fatal("nothing rendered")
	}
	if got := snap.Line(1); got != "    Hi" {
		t.Errorf("row 1 = %q", got)
	}
	if !h.pty.isClosed() {
		t.Error("PTY not closed")
	}
}

func TestFragmentedOutputMatchesWhole(t *testing.T) {
	h := startLoop(t, nil)
	for _, part := range []string{"\x1b", "[2", ";5", "H", "H", "i"} {
		h.pty.reads <- []byte(part)
	}
	close(h.pty.reads)
	h.wait(t)

	if got := h.grid.Line(1); got != "    Hi" {
		t.Errorf("row 1 = %q", got)
	}
}

func TestRepliesWrittenToChild(t *testing.T) {
	h := startLoop(t, nil)
	h.pty.reads <- []byte("ab\x1b[6n\x1b[c")
	waitFor(t, "device replies", func() bool {
		return h.pty.Written() == "\x1b[1;3R\x1b[?62;22c"
	})

	h.cancel()
	if err := h.wait(t); err != nil {
		t.Fatalf("Run = %v", err)
	}
	if h.loop.Reason() != ReasonShutdown {
		t.Errorf("Reason = %s", h.loop.Reason())
	}
}

func TestInputForwardedInOrder(t *testing.T) {
	h := startLoop(t, nil)
	for _, s := range []string{"l", "s", "", " -la\r"} {
		h.input <- []byte(s)
	}
	waitFor(t, "input", func() bool { return h.pty.Written() == "ls -la\r" })
}

func TestInputQueuedWhileWriterBlocked(t *testing.T) {
	gate := make(chan struct{})
	h := startLoop(t, func(p *fakePTY, _ *recordingRenderer) { p.gate = gate })

	var want bytes.Buffer
	for i := 0; i < 50; i++ {
		s := fmt.Sprintf("%d,", i)
		want.WriteString(s)
		h.input <- []byte(s)
	}

	// Output keeps flowing while the child is not reading its input.
	h.pty.reads <- []byte("still alive")
	waitFor(t, "render during backpressure", func() bool {
		snap, _ := h.rend.last()
		return snap.Rows > 0 && snap.Line(0) == "still alive"
	})

	close(gate)
	waitFor(t, "queued input", func() bool { return h.pty.Written() == want.String() })
}

func TestResizeAppliedToPTYAndGrid(t *testing.T) {
	h := startLoop(t, nil)
	h.resize <- Size{Rows: 30, Cols: 100}
	waitFor(t, "resized render", func() bool {
		snap, _ := h.rend.last()
		return snap.Rows == 30 && snap.Cols == 100
	})
	h.cancel()
	h.wait(t)

	if rows, cols := h.grid.Size(); rows != 30 || cols != 100 {
		t.Errorf("grid size = %dx%d", rows, cols)
	}
	h.pty.mu.Lock()
	defer h.pty.mu.Unlock()
	if !reflect.DeepEqual(h.pty.resizes, []Size{{30, 100}}) {
		t.Errorf("PTY resizes = %+v", h.pty.resizes)
	}
}

func TestInvalidResizeIgnored(t *testing.T) {
	h := startLoop(t, nil)
	h.resize <- Size{Rows: 0, Cols: 100}
	h.cancel()
	h.wait(t)

	if rows, cols := h.grid.Size(); rows != 24 || cols != 80 {
		t.Errorf("grid size = %dx%d", rows, cols)
	}
	if len(h.pty.resizes) != 0 {
		t.Errorf("PTY resizes = %+v", h.pty.resizes)
	}
}

func TestRejectedResizeKeepsGridSize(t *testing.T) {
	h := startLoop(t, func(p *fakePTY, _ *recordingRenderer) {
		p.resizeErr = errors.New("inappropriate ioctl for device")
	})
	h.resize <- Size{Rows: 30, Cols: 100}
	waitFor(t, "resize attempt", func() bool {
		h.pty.mu.Lock()
		defer h.pty.mu.Unlock()
		return len(h.pty.resizes) == 1
	})
	h.pty.reads <- []byte("after")
	waitFor(t, "output after resize", func() bool {
		snap, _ := h.rend.last()
		return snap.Line(0) == "after"
	})
	h.cancel()
	h.wait(t)

	if rows, cols := h.grid.Size(); rows != 24 || cols != 80 {
		t.Errorf("grid size = %dx%d, want 24x80", rows, cols)
	}
	if snap, _ := h.rend.last(); snap.Rows != 24 || snap.Cols != 80 {
		t.Errorf("rendered size = %dx%d", snap.Rows, snap.Cols)
	}
}

func TestWriteFailureStopsLoop(t *testing.T) {
	wantErr := fmt.Errorf("%w: broken pipe", session.ErrWriteFailed)
	h := startLoop(t, func(p *fakePTY, _ *recordingRenderer) { p.writeErr = wantErr })
	h.input <- []byte("x")

	err := h.wait(t)
	if !errors.Is(err, session.ErrWriteFailed) {
		t.Fatalf("Run = %v, want ErrWriteFailed", err)
	}
	if h.loop.Reason() != ReasonWriteFailed {
		t.Errorf("Reason = %s", h.loop.Reason())
	}
	if !h.pty.isClosed() {
		t.Error("PTY not closed")
	}
}

func TestRenderErrorsDoNotStopLoop(t *testing.T) {
	h := startLoop(t, func(_ *fakePTY, r *recordingRenderer) { r.err = errors.New("display gone") })
	h.pty.reads <- []byte("one")
	waitFor(t, "first render", func() bool {
		snap, _ := h.rend.last()
		return snap.Line(0) == "one"
	})
	h.pty.reads <- []byte(" two")
	close(h.pty.reads)

	if err := h.wait(t); err != nil {
		t.Fatalf("Run = %v", err)
	}
	if snap, _ := h.rend.last(); snap.Line(0) != "one two" {
		t.Errorf("final render = %q", snap.Line(0))
	}
}

func TestShutdownClosesPTY(t *testing.T) {
	h := startLoop(t, nil)
	h.cancel()
	if err := h.wait(t); err != nil {
		t.Fatalf("Run = %v", err)
	}
	if h.loop.Reason() != ReasonShutdown {
		t.Errorf("Reason = %s", h.loop.Reason())
	}
	if !h.pty.isClosed() {
		t.Error("PTY not closed")
	}
	if _, n := h.rend.last(); n != 1 {
		t.Errorf("renders = %d, want the initial one", n)
	}
}

func TestUnexpectedReadErrorReturned(t *testing.T) {
	p := &erroringPTY{fakePTY: newFakePTY(), err: errors.New("device vanished")}
	l := New(p, grid.New(5, 10), parser.New(), RendererFunc(func(grid.Snapshot) error { return nil }))
	err := l.Run(context.Background(), nil, nil)
	if err == nil || !errors.Is(err, p.err) {
		t.Fatalf("Run = %v", err)
	}
	if l.Reason() != ReasonChildExited {
		t.Errorf("Reason = %s", l.Reason())
	}
}

func TestShutdownWithChildIgnoringHangup(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	s, err := session.Open(24, 80, "/bin/sh", []string{"-c", "trap '' HUP; sleep 30; :"})
	if err != nil {
		t.Skipf("cannot allocate a PTY here: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	l := New(s, grid.New(24, 80), parser.New(), RendererFunc(func(grid.Snapshot) error { return nil }))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx, nil, nil) }()

	time.Sleep(300 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run = %v", err)
		}
	case <-time.After(8 * time.Second):
		t.Fatal("Run still blocked after shutdown")
	}
	if l.Reason() != ReasonShutdown {
		t.Errorf("Reason = %s", l.Reason())
	}
	if _, ok := s.ChildExited(); !ok {
		t.Error("child not reaped")
	}
}

type erroringPTY struct {
	*fakePTY
	err error
}

func (e *erroringPTY) Read([]byte) (int, error) { return 0, e.err }

func TestReasonString(t *testing.T) {
	tests := map[Reason]string{
		ReasonNone:        "running",
		ReasonChildExited: "child exited",
		ReasonWriteFailed: "write to child failed",
		ReasonShutdown:    "shutdown",
	}
	for r, want := range tests {
		if r.String() != want {
			t.Errorf("%d.String() = %q, want %q", r, r.String(), want)
		}
	}
}
