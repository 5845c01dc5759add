// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/scrollback/ring.go
// Summary: Bounded in-memory history of lines scrolled off the primary screen.
// Usage: Installed on the grid with grid.WithScrollback; optionally mirrors
//   every line into an Archive for later search.

package scrollback

import (
	"strings"
	"sync"

	"github.com/framegrace/texelvt/grid"
)

// DefaultMaxLines bounds the ring when no size is given.
const DefaultMaxLines = 2000

// Appender receives the text of every line entering the ring.
type Appender interface {
	Append(text string)
}

// Ring keeps the most recent lines, dropping the oldest when full.
type Ring struct {
	mu      sync.Mutex
	lines   [][]grid.Cell
	start   int
	count   int
	archive Appender
}

// NewRing creates a ring holding up to maxLines lines. A nil archive
// disables mirroring.
func NewRing(maxLines int, archive Appender) *Ring {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	return &Ring{
		lines:   make([][]grid.Cell, maxLines),
		archive: archive,
	}
}

// Push appends a line, taking ownership of the slice.
func (r *Ring) Push(line []grid.Cell) {
	r.mu.Lock()
	idx := (r.start + r.count) % len(r.lines)
	r.lines[idx] = line
	if r.count < len(r.lines) {
		r.count++
	} else {
		r.start = (r.start + 1) % len(r.lines)
	}
	r.mu.Unlock()

	if r.archive != nil {
		if text := cellsText(line); text != "" {
			r.archive.Append(text)
		}
	}
}

// Clear drops the in-memory history. Archived lines are kept.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.lines {
		r.lines[i] = nil
	}
	r.start, r.count = 0, 0
}

// Len returns the number of lines held.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Cap returns the maximum number of lines held.
func (r *Ring) Cap() int { return len(r.lines) }

// Line returns a copy of line i, where 0 is the oldest line held.
func (r *Ring) Line(i int) []grid.Cell {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i < 0 || i >= r.count {
		return nil
	}
	return append([]grid.Cell(nil), r.lines[(r.start+i)%len(r.lines)]...)
}

// Text returns line i as text without trailing blanks.
func (r *Ring) Text(i int) string {
	return cellsText(r.Line(i))
}

// Tail returns the text of up to n most recent lines, oldest first.
func (r *Ring) Tail(n int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	n = min(n, r.count)
	out := make([]string, 0, n)
	for i := r.count - n; i < r.count; i++ {
		out = append(out, cellsText(r.lines[(r.start+i)%len(r.lines)]))
	}
	return out
}

func cellsText(cells []grid.Cell) string {
	var sb strings.Builder
	for _, c := range cells {
		if c.Rune != 0 {
			sb.WriteRune(c.Rune)
		}
	}
	return strings.TrimRight(sb.String(), " ")
}
