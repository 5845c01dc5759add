// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: session/session.go
// Summary: Child process attached to a pseudo-terminal.
// Usage: Opened by the CLI and driven by the I/O loop.
// Notes: Read and Write may run on different goroutines; Resize and Close
//   are serialised by the session mutex.

package session

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

var (
	// ErrSpawnFailed is returned when the PTY or the child cannot be started.
	ErrSpawnFailed = errors.New("session: spawn failed")

	// ErrWriteFailed is returned when bytes cannot be delivered to the child.
	ErrWriteFailed = errors.New("session: write failed")

	// ErrClosed is returned once the child side of the PTY is gone or the
	// session was closed.
	ErrClosed = errors.New("session: closed")
)

const (
	maxDimension = 65535
	hangupGrace  = 2 * time.Second
)

// ExitStatus describes how the child terminated.
type ExitStatus struct {
	Code        int // -1 when the child was killed by a signal
	Description string
}

func (e ExitStatus) String() string {
	if e.Description != "" {
		return e.Description
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// WinsizeSetter applies a window size to the PTY master.
type WinsizeSetter func(f *os.File, ws *pty.Winsize) error

type options struct {
	env     []string
	dir     string
	setsize WinsizeSetter
}

// Option configures Open.
type Option func(*options)

// WithEnv replaces the inherited environment of the child. TERM is always
// set to xterm-256color.
func WithEnv(env []string) Option {
	return func(o *options) { o.env = env }
}

// WithDir sets the child's working directory.
func WithDir(dir string) Option {
	return func(o *options) { o.dir = dir }
}

// WithWinsizeSetter replaces the TIOCSWINSZ ioctl used for resize requests.
func WithWinsizeSetter(fn WinsizeSetter) Option {
	return func(o *options) { o.setsize = fn }
}

// Session owns a PTY master and the child running on its slave side.
type Session struct {
	ptmx    *os.File
	cmd     *exec.Cmd
	setsize WinsizeSetter

	mu         sync.Mutex
	rows, cols int
	closed     bool

	done   chan struct{}
	status ExitStatus
}

func validSize(rows, cols int) bool {
	return rows > 0 && cols > 0 && rows <= maxDimension && cols <= maxDimension
}

// Open starts program with args on a new rows×cols PTY.
func Open(rows, cols int, program string, args []string, opts ...Option) (*Session, error) {
	if program == "" {
		return nil, fmt.Errorf("%w: no program given", ErrSpawnFailed)
	}
	if !validSize(rows, cols) {
		return nil, fmt.Errorf("%w: invalid size %dx%d", ErrSpawnFailed, rows, cols)
	}
	o := options{env: os.Environ(), setsize: setWinsize}
	for _, opt := range opts {
		opt(&o)
	}

	cmd := exec.Command(program, args...)
	cmd.Env = append(append([]string(nil), o.env...), "TERM=xterm-256color")
	cmd.Dir = o.dir

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
	if err != nil {
		log.Printf("Session: Failed to start %s: %v", program, err)
		return nil, fmt.Errorf("%w: %s: %w", ErrSpawnFailed, program, err)
	}
	if pf, err := pollable(ptmx); err != nil {
		log.Printf("Session: Master for %s stays blocking: %v", program, err)
	} else {
		ptmx.Close()
		ptmx = pf
	}

	s := &Session{
		ptmx:    ptmx,
		cmd:     cmd,
		setsize: o.setsize,
		rows:    rows,
		cols:    cols,
		done:    make(chan struct{}),
	}
	go s.wait()
	log.Printf("Session: Started %s (pid %d) at %dx%d", program, cmd.Process.Pid, cols, rows)
	return s, nil
}

// pollable returns a non-blocking duplicate of the master registered with
// the runtime poller, so closing it interrupts a pending Read. The master
// from pty.Start is in blocking mode.
func pollable(f *os.File) (*os.File, error) {
	rc, err := f.SyscallConn()
	if err != nil {
		return nil, err
	}
	fd := -1
	var dupErr error
	if err := rc.Control(func(raw uintptr) {
		fd, dupErr = unix.FcntlInt(raw, unix.F_DUPFD_CLOEXEC, 0)
	}); err != nil {
		return nil, err
	}
	if dupErr != nil {
		return nil, fmt.Errorf("dup master: %w", dupErr)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set non-blocking: %w", err)
	}
	return os.NewFile(uintptr(fd), f.Name()), nil
}

// setWinsize issues TIOCSWINSZ through the raw connection. pty.Setsize
// goes through File.Fd, which would put the master back in blocking mode.
func setWinsize(f *os.File, ws *pty.Winsize) error {
	rc, err := f.SyscallConn()
	if err != nil {
		return err
	}
	var ioctlErr error
	err = rc.Control(func(fd uintptr) {
		ioctlErr = unix.IoctlSetWinsize(int(fd), unix.TIOCSWINSZ, &unix.Winsize{
			Row:    ws.Rows,
			Col:    ws.Cols,
			Xpixel: ws.X,
			Ypixel: ws.Y,
		})
	})
	if err != nil {
		return err
	}
	return ioctlErr
}

func (s *Session) wait() {
	err := s.cmd.Wait()
	st := ExitStatus{Code: -1}
	if ps := s.cmd.ProcessState; ps != nil {
		st.Code = ps.ExitCode()
		st.Description = ps.String()
	} else if err != nil {
		st.Description = err.Error()
	}
	s.status = st
	close(s.done)
	log.Printf("Session: Child %d exited: %s", s.cmd.Process.Pid, st)
}

// Read blocks until the child produces output. It returns ErrClosed once the
// child side has hung up (EOF or EIO on the master) or the session is closed.
func (s *Session) Read(p []byte) (int, error) {
	for {
		n, err := s.ptmx.Read(p)
		if n > 0 || err == nil {
			return n, nil
		}
		switch {
		case errors.Is(err, unix.EINTR), errors.Is(err, unix.EAGAIN):
			continue
		case errors.Is(err, io.EOF), errors.Is(err, unix.EIO), errors.Is(err, os.ErrClosed):
			return 0, ErrClosed
		default:
			return 0, fmt.Errorf("session: read: %w", err)
		}
	}
}

// Write delivers all of p to the child, continuing after partial writes and
// retrying interrupted ones. A write that makes no progress is a failure.
func (s *Session) Write(p []byte) error {
	for len(p) > 0 {
		n, err := s.ptmx.Write(p)
		p = p[n:]
		switch {
		case err == nil && n == 0:
			return fmt.Errorf("%w: zero-length write", ErrWriteFailed)
		case err == nil:
		case errors.Is(err, unix.EINTR), errors.Is(err, unix.EAGAIN):
		default:
			return fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
	}
	return nil
}

// Resize updates the kernel window size of the PTY, which signals SIGWINCH
// to the child's foreground process group. Unchanged sizes are ignored.
func (s *Session) Resize(rows, cols int) error {
	if !validSize(rows, cols) {
		return fmt.Errorf("session: invalid size %dx%d", rows, cols)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if rows == s.rows && cols == s.cols {
		return nil
	}
	if err := s.setsize(s.ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}); err != nil {
		return fmt.Errorf("session: resize to %dx%d: %w", cols, rows, err)
	}
	s.rows, s.cols = rows, cols
	return nil
}

// Size returns the last size applied to the PTY.
func (s *Session) Size() (rows, cols int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows, s.cols
}

// Pid returns the child's process id.
func (s *Session) Pid() int { return s.cmd.Process.Pid }

// Done is closed once the child has been reaped.
func (s *Session) Done() <-chan struct{} { return s.done }

// ChildExited reports the exit status without blocking.
func (s *Session) ChildExited() (ExitStatus, bool) {
	select {
	case <-s.done:
		return s.status, true
	default:
		return ExitStatus{}, false
	}
}

// Close hangs up the child's process group, closes the master and reaps the
// child. A group that ignores SIGHUP is killed after a grace period. Close is
// idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.signalGroup(unix.SIGHUP)
	err := s.ptmx.Close()

	select {
	case <-s.done:
	case <-time.After(hangupGrace):
		log.Printf("Session: Child %d ignored hangup, killing its process group", s.cmd.Process.Pid)
		s.signalGroup(unix.SIGKILL)
		<-s.done
	}
	return err
}

// signalGroup signals the session the child leads. pty.Start runs the child
// with Setsid, so its pid is also the process group id.
func (s *Session) signalGroup(sig unix.Signal) {
	pid := s.cmd.Process.Pid
	if err := unix.Kill(-pid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		log.Printf("Session: Failed to send %s to process group %d: %v", sig, pid, err)
	}
}
