// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: grid/harness_test.go
// Summary: Test harness feeding raw sequences through the parser into a grid.
// Usage: Used by grid tests to send sequences and verify buffer state.

package grid

import (
	"fmt"
	"strings"
	"testing"

	"github.com/framegrace/texelvt/parser"
)

// TestHarness drives a Grid with bytes decoded by a real Parser.
type TestHarness struct {
	grid   *Grid
	parser *parser.Parser
}

// NewTestHarness creates a harness with a rows×cols grid.
func NewTestHarness(rows, cols int, opts ...Option) *TestHarness {
	return &TestHarness{
		grid:   New(rows, cols, opts...),
		parser: parser.New(),
	}
}

// SendSeq feeds raw terminal output.
// Example: h.SendSeq("\x1b[5A") sends "cursor up 5"
func (h *TestHarness) SendSeq(seq string) {
	for _, a := range h.parser.Feed([]byte(seq), nil) {
		h.grid.Apply(a)
	}
}

// WriteRows places label text at the start of each listed row.
func (h *TestHarness) WriteRows(labels ...string) {
	for i, l := range labels {
		h.SendSeq(fmt.Sprintf("\x1b[%d;1H%s", i+1, l))
	}
}

func (h *TestHarness) AssertRune(t *testing.T, row, col int, want rune) {
	t.Helper()
	if got := h.grid.Cell(row, col).Rune; got != want {
		t.Errorf("Cell[%d,%d] rune: expected %q, got %q", row, col, want, got)
	}
}

func (h *TestHarness) AssertLine(t *testing.T, row int, want string) {
	t.Helper()
	if got := h.grid.Line(row); got != want {
		t.Errorf("Line %d: expected %q, got %q\n%s", row, want, got, h.Dump())
	}
}

func (h *TestHarness) AssertLines(t *testing.T, want ...string) {
	t.Helper()
	for i, w := range want {
		h.AssertLine(t, i, w)
	}
}

func (h *TestHarness) AssertCursor(t *testing.T, row, col int) {
	t.Helper()
	r, c := h.grid.Cursor()
	if r != row || c != col {
		t.Errorf("Cursor position: expected (%d,%d), got (%d,%d)", row, col, r, c)
	}
}

func (h *TestHarness) AssertScrollRegion(t *testing.T, top, bottom int) {
	t.Helper()
	gt, gb := h.grid.ScrollRegion()
	if gt != top || gb != bottom {
		t.Errorf("Scroll region: expected [%d,%d], got [%d,%d]", top, bottom, gt, gb)
	}
}

// Dump returns a visual representation of the grid with the cursor marked.
func (h *TestHarness) Dump() string {
	rows, cols := h.grid.Size()
	cr, cc := h.grid.Cursor()
	var sb strings.Builder
	fmt.Fprintf(&sb, "Grid %dx%d (cursor at %d,%d)\n", rows, cols, cr, cc)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			cell := h.grid.Cell(r, c)
			switch {
			case r == cr && c == cc:
				sb.WriteString("[")
			case cell.Rune == 0:
				sb.WriteString(" ")
			default:
				sb.WriteRune(cell.Rune)
			}
		}
		fmt.Fprintf(&sb, " |%d\n", r)
	}
	return sb.String()
}

// recordingScrollback collects lines pushed out of the primary buffer.
type recordingScrollback struct {
	lines   [][]Cell
	cleared int
}

func (s *recordingScrollback) Push(line []Cell) { s.lines = append(s.lines, line) }

func (s *recordingScrollback) Clear() {
	s.lines = nil
	s.cleared++
}

func (s *recordingScrollback) text() []string {
	out := make([]string, len(s.lines))
	for i, l := range s.lines {
		out[i] = lineText(l)
	}
	return out
}
