// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/devshell/render.go
// Summary: Draws grid snapshots onto a tcell screen, optionally inside a
//   one-cell border carrying the window title.
// Notes: Render runs on the I/O loop goroutine while CycleBorder and Modes
//   are called from the event goroutine; the mutex covers both.

package devshell

import (
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/framegrace/texelvt/grid"
)

// ScreenRenderer implements ioloop.Renderer on a tcell screen.
type ScreenRenderer struct {
	screen tcell.Screen

	mu          sync.Mutex
	border      bool
	borderChars []rune
	borderIdx   int
	last        grid.Snapshot
	hasLast     bool
}

// NewScreenRenderer creates a renderer. An empty borderChars falls back to
// "*+-".
func NewScreenRenderer(screen tcell.Screen, border bool, borderChars string) *ScreenRenderer {
	chars := []rune(borderChars)
	if len(chars) == 0 {
		chars = []rune("*+-")
	}
	return &ScreenRenderer{screen: screen, border: border, borderChars: chars}
}

// Inset is the number of cells the border takes on each side.
func (r *ScreenRenderer) Inset() int {
	if r.border {
		return 1
	}
	return 0
}

// GridSize converts a screen size to the grid size that fits inside the
// border, never smaller than 1x1.
func (r *ScreenRenderer) GridSize(width, height int) (rows, cols int) {
	in := 2 * r.Inset()
	return max(height-in, 1), max(width-in, 1)
}

// Render draws snap and rings the host bell when requested.
func (r *ScreenRenderer) Render(snap grid.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last, r.hasLast = snap, true
	r.draw()
	if snap.Bell {
		if err := r.screen.Beep(); err != nil {
			return fmt.Errorf("bell: %w", err)
		}
	}
	return nil
}

// CycleBorder advances to the next border character and redraws.
func (r *ScreenRenderer) CycleBorder() rune {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.borderIdx = (r.borderIdx + 1) % len(r.borderChars)
	if r.hasLast {
		r.draw()
	}
	return r.borderChars[r.borderIdx]
}

// BorderChar returns the character currently used for the border.
func (r *ScreenRenderer) BorderChar() rune {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.borderChars[r.borderIdx]
}

// Modes returns the terminal modes of the last rendered snapshot. Input
// encoding depends on them.
func (r *ScreenRenderer) Modes() grid.Modes {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last.Modes
}

func (r *ScreenRenderer) draw() {
	s := r.screen
	snap := r.last
	s.Clear()
	width, height := s.Size()
	off := r.Inset()
	if r.border {
		r.drawBorder(width, height, snap.Title)
	}

	rows := min(snap.Rows, height-2*off)
	cols := min(snap.Cols, width-2*off)
	for y := 0; y < rows; y++ {
		line := snap.Cells[y]
		for x := 0; x < cols; x++ {
			c := line[x]
			if c.Rune == 0 {
				continue
			}
			s.SetContent(off+x, off+y, c.Rune, nil, cellStyle(c))
		}
	}

	if snap.CursorVisible && snap.CursorRow < rows && snap.CursorCol < cols {
		s.ShowCursor(off+snap.CursorCol, off+snap.CursorRow)
	} else {
		s.HideCursor()
	}
	s.Show()
}

func (r *ScreenRenderer) drawBorder(width, height int, title string) {
	ch := r.borderChars[r.borderIdx]
	st := tcell.StyleDefault
	for x := 0; x < width; x++ {
		r.screen.SetContent(x, 0, ch, nil, st)
		r.screen.SetContent(x, height-1, ch, nil, st)
	}
	for y := 1; y < height-1; y++ {
		r.screen.SetContent(0, y, ch, nil, st)
		r.screen.SetContent(width-1, y, ch, nil, st)
	}
	if title == "" || width < 6 {
		return
	}
	label := []rune(" " + title + " ")
	if len(label) > width-4 {
		label = label[:width-4]
	}
	for i, c := range label {
		r.screen.SetContent(2+i, 0, c, nil, st.Bold(true))
	}
}

func cellStyle(c grid.Cell) tcell.Style {
	style := tcell.StyleDefault.Foreground(tcellColor(c.FG)).Background(tcellColor(c.BG))
	style = style.Bold(c.Attr&grid.AttrBold != 0)
	style = style.Italic(c.Attr&grid.AttrItalic != 0)
	style = style.Underline(c.Attr&grid.AttrUnderline != 0)
	style = style.Reverse(c.Attr&grid.AttrReverse != 0)
	style = style.StrikeThrough(c.Attr&grid.AttrStrikethrough != 0)
	return style
}

func tcellColor(c grid.Color) tcell.Color {
	switch c.Mode {
	case grid.ColorModeStandard, grid.ColorMode256:
		return tcell.PaletteColor(int(c.Value))
	case grid.ColorModeRGB:
		return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
	default:
		return tcell.ColorDefault
	}
}
