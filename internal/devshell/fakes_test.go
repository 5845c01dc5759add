// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/devshell/fakes_test.go
// Summary: Scripted PTY and polling helpers shared by the devshell tests.

package devshell_test

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/framegrace/texelvt/internal/devshell"
	"github.com/framegrace/texelvt/internal/ioloop"
	"github.com/framegrace/texelvt/session"
)

type fakePTY struct {
	reads   chan []byte
	closed  chan struct{}
	once    sync.Once
	mu      sync.Mutex
	written bytes.Buffer
	resizes []ioloop.Size
	opened  ioloop.Size
	opts    devshell.Options
}

func newFakePTY() *fakePTY {
	return &fakePTY{reads: make(chan []byte, 16), closed: make(chan struct{})}
}

// install routes devshell's session factory to f for the test.
func (f *fakePTY) install(t *testing.T) {
	t.Helper()
	devshell.SetSessionFactory(func(rows, cols int, opts devshell.Options) (ioloop.PTY, error) {
		f.mu.Lock()
		f.opened = ioloop.Size{Rows: rows, Cols: cols}
		f.opts = opts
		f.mu.Unlock()
		return f, nil
	})
	t.Cleanup(func() { devshell.SetSessionFactory(nil) })
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
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written.Write(p)
	return nil
}

func (f *fakePTY) Resize(rows, cols int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resizes = append(f.resizes, ioloop.Size{Rows: rows, Cols: cols})
	return nil
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

func (f *fakePTY) lastResize() (ioloop.Size, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.resizes) == 0 {
		return ioloop.Size{}, false
	}
	return f.resizes[len(f.resizes)-1], true
}

func (f *fakePTY) openedSize() ioloop.Size {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

func waitFor(cond func() bool, timeout time.Duration, t *testing.T, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", msg)
}
