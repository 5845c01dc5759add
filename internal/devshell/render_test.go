// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package devshell

import (
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/framegrace/texelvt/grid"
	"github.com/framegrace/texelvt/parser"
)

func newSimScreen(t *testing.T, w, h int) tcell.SimulationScreen {
	t.Helper()
	s := tcell.NewSimulationScreen("UTF-8")
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(s.Fini)
	s.SetSize(w, h)
	return s
}

func snapshotOf(rows, cols int, input string) grid.Snapshot {
	g := grid.New(rows, cols)
	for _, a := range parser.New().Feed([]byte(input), nil) {
		g.Apply(a)
	}
	return g.Snapshot()
}

func cellAt(s tcell.SimulationScreen, x, y int) tcell.SimCell {
	cells, w, _ := s.GetContents()
	return cells[y*w+x]
}

func TestRenderInsideBorder(t *testing.T) {
	s := newSimScreen(t, 12, 5)
	r := NewScreenRenderer(s, true, "")
	if rows, cols := r.GridSize(12, 5); rows != 3 || cols != 10 {
		t.Fatalf("GridSize = %dx%d", rows, cols)
	}

	if err := r.Render(snapshotOf(3, 10, "\x1b]0;top\x07\x1b[1;31mhi")); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if c := cellAt(s, 0, 0); c.Runes[0] != '*' {
		t.Errorf("corner = %q", c.Runes)
	}
	if c := cellAt(s, 11, 4); c.Runes[0] != '*' {
		t.Errorf("bottom right = %q", c.Runes)
	}
	if c := cellAt(s, 3, 0); c.Runes[0] != 't' {
		t.Errorf("title start = %q", c.Runes)
	}
	c := cellAt(s, 1, 1)
	if c.Runes[0] != 'h' {
		t.Fatalf("cell (1,1) = %q", c.Runes)
	}
	if fg, _, attrs := c.Style.Decompose(); fg != tcell.PaletteColor(1) || attrs&tcell.AttrBold == 0 {
		t.Errorf("style fg=%v attrs=%v", fg, attrs)
	}
	if x, y, visible := s.GetCursor(); !visible || x != 3 || y != 1 {
		t.Errorf("cursor = (%d,%d) visible=%v", x, y, visible)
	}
}

func TestRenderWithoutBorderAndHiddenCursor(t *testing.T) {
	s := newSimScreen(t, 10, 3)
	r := NewScreenRenderer(s, false, "")
	if r.Inset() != 0 {
		t.Fatalf("Inset = %d", r.Inset())
	}
	r.Render(snapshotOf(3, 10, "\x1b[?25lab\x1b[38;2;1;2;3m\x1b[48;5;200mc"))
	if c := cellAt(s, 0, 0); c.Runes[0] != 'a' {
		t.Errorf("cell (0,0) = %q", c.Runes)
	}
	fg, bg, _ := cellAt(s, 2, 0).Style.Decompose()
	if fg != tcell.NewRGBColor(1, 2, 3) || bg != tcell.PaletteColor(200) {
		t.Errorf("colors fg=%v bg=%v", fg, bg)
	}
	if _, _, visible := s.GetCursor(); visible {
		t.Error("cursor should be hidden")
	}
	if r.Modes().CursorVisible {
		t.Error("Modes should reflect the last snapshot")
	}
}

func TestCycleBorder(t *testing.T) {
	s := newSimScreen(t, 6, 4)
	r := NewScreenRenderer(s, true, "#=")
	r.Render(snapshotOf(2, 4, ""))
	if got := r.CycleBorder(); got != '=' {
		t.Errorf("CycleBorder = %q", got)
	}
	if c := cellAt(s, 0, 0); c.Runes[0] != '=' {
		t.Errorf("border not redrawn: %q", c.Runes)
	}
	r.CycleBorder()
	if r.BorderChar() != '#' {
		t.Errorf("BorderChar = %q", r.BorderChar())
	}
}

func TestRenderWideRune(t *testing.T) {
	s := newSimScreen(t, 6, 2)
	r := NewScreenRenderer(s, false, "")
	r.Render(snapshotOf(2, 6, "中x"))
	if c := cellAt(s, 0, 0); c.Runes[0] != '中' {
		t.Errorf("wide cell = %q", c.Runes)
	}
	if c := cellAt(s, 2, 0); c.Runes[0] != 'x' {
		t.Errorf("after wide = %q", c.Runes)
	}
}

func TestGridSizeNeverBelowOne(t *testing.T) {
	r := NewScreenRenderer(nil, true, "")
	if rows, cols := r.GridSize(1, 2); rows != 1 || cols != 1 {
		t.Errorf("GridSize = %dx%d", rows, cols)
	}
}
