// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/devshell/headless.go
// Summary: Runs a child without a screen: stdin is forwarded raw, the host
//   terminal size follows SIGWINCH and the final screen is printed on exit.
// Usage: texelvt -headless, mainly for scripts and CI.

package devshell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/framegrace/texelvt/grid"
	"github.com/framegrace/texelvt/internal/ioloop"
	"github.com/framegrace/texelvt/parser"
)

// SnapshotRenderer keeps the most recent snapshot.
type SnapshotRenderer struct {
	mu   sync.Mutex
	last grid.Snapshot
}

// Render stores snap.
func (r *SnapshotRenderer) Render(snap grid.Snapshot) error {
	r.mu.Lock()
	r.last = snap
	r.mu.Unlock()
	return nil
}

// Last returns the most recent snapshot.
func (r *SnapshotRenderer) Last() grid.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// ScreenText returns the snapshot rows with trailing blank rows removed.
func ScreenText(snap grid.Snapshot) string {
	lines := make([]string, snap.Rows)
	for i := range lines {
		lines[i] = snap.Line(i)
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

func headlessSize(out *os.File, opts Options) (rows, cols int) {
	if term.IsTerminal(int(out.Fd())) {
		if w, h, err := term.GetSize(int(out.Fd())); err == nil && w > 0 && h > 0 {
			return h, w
		}
	}
	rows, cols = opts.Rows, opts.Cols
	if rows <= 0 {
		rows = 24
	}
	if cols <= 0 {
		cols = 80
	}
	return rows, cols
}

// RunHeadless starts the child, forwards in to it and writes the final
// screen contents to out once the child exits or ctx is cancelled.
func RunHeadless(ctx context.Context, opts Options, in, out *os.File) (Result, error) {
	rows, cols := headlessSize(out, opts)
	pty, err := sessionFactory(rows, cols, opts)
	if err != nil {
		return Result{}, err
	}

	restore := func() {}
	if fd := int(in.Fd()); term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			pty.Close()
			return Result{}, fmt.Errorf("raw mode: %w", err)
		}
		restore = sync.OnceFunc(func() { term.Restore(fd, state) })
		defer restore()
	}

	rend := &SnapshotRenderer{}
	loop := ioloop.New(pty, newGrid(rows, cols, opts), parser.New(), rend)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	input := make(chan []byte, 16)
	resize := make(chan ioloop.Size, 1)

	winch := make(chan os.Signal, 1)
	signal.Notify(winch, unix.SIGWINCH)
	defer signal.Stop(winch)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-winch:
				if w, h, err := term.GetSize(int(out.Fd())); err == nil {
					offerSize(resize, ioloop.Size{Rows: h, Cols: w})
				}
			}
		}
	}()

	// The stdin reader cannot be interrupted; it ends at the next read
	// after cancellation or at EOF.
	go forwardInput(ctx, in, input)

	runErr := loop.Run(ctx, input, resize)
	res := result(loop, pty)
	restore()
	if _, err := fmt.Fprintln(out, ScreenText(rend.Last())); err != nil {
		log.Printf("Headless: Writing screen: %v", err)
	}
	return res, runErr
}

func forwardInput(ctx context.Context, in io.Reader, input chan<- []byte) {
	buf := make([]byte, 4096)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			select {
			case input <- append([]byte(nil), buf[:n]...):
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				log.Printf("Headless: Reading input: %v", err)
			}
			return
		}
	}
}
