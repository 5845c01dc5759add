// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: grid/cursor.go
// Summary: Cursor positioning, printing, tab stops and saved cursor state.
// Usage: Part of the Grid screen model.

package grid

import (
	"github.com/mattn/go-runewidth"

	"github.com/framegrace/texelvt/parser"
)

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// setCursor moves to a zero-based position. In origin mode rows are relative
// to the scroll region and confined to it.
func (g *Grid) setCursor(row, col int) {
	g.wrapNext = false
	if g.modes.Origin {
		g.row = clamp(row+g.top, g.top, g.bottom)
	} else {
		g.row = clamp(row, 0, g.rows-1)
	}
	g.col = clamp(col, 0, g.cols-1)
}

// moveVertical moves by n rows. Starting inside the scroll region the move
// stops at its margins; outside it stops at the screen edge.
func (g *Grid) moveVertical(n int) {
	g.wrapNext = false
	lo, hi := 0, g.rows-1
	if g.row >= g.top && g.row <= g.bottom {
		lo, hi = g.top, g.bottom
	}
	g.row = clamp(g.row+n, lo, hi)
}

func (g *Grid) moveCursor(a parser.Action) {
	n := a.Param(0, 1)
	switch a.Dir {
	case parser.MoveUp:
		g.moveVertical(-n)
	case parser.MoveDown, parser.MoveRowRelative:
		g.moveVertical(n)
	case parser.MoveForward, parser.MoveColumnRelative:
		g.wrapNext = false
		g.col = clamp(g.col+n, 0, g.cols-1)
	case parser.MoveBack:
		g.wrapNext = false
		g.col = clamp(g.col-n, 0, g.cols-1)
	case parser.MoveNextLine:
		g.moveVertical(n)
		g.col = 0
	case parser.MovePrevLine:
		g.moveVertical(-n)
		g.col = 0
	case parser.MoveColumn:
		g.wrapNext = false
		g.col = clamp(n-1, 0, g.cols-1)
	case parser.MoveRow:
		g.setCursor(n-1, g.col)
	case parser.MoveAbsolute:
		g.setCursor(n-1, a.Param(1, 1)-1)
	}
}

// print writes one rune at the cursor with the current pen and advances.
func (g *Grid) print(r rune) {
	r = g.translate(r)
	w := runewidth.RuneWidth(r)
	if w == 0 || w > g.cols {
		return
	}

	if g.wrapNext {
		g.wrapNext = false
		if g.modes.AutoWrap {
			g.col = 0
			g.index()
		}
	}
	if g.col+w > g.cols {
		// A wide rune that does not fit on the rest of the line.
		if g.modes.AutoWrap {
			g.eraseRange(g.row, g.col, g.cols)
			g.col = 0
			g.index()
		} else {
			g.col = g.cols - w
		}
	}

	line := g.line(g.row)
	if g.modes.Insert {
		g.breakWideAt(g.row, g.col)
		copy(line[g.col+w:], line[g.col:])
		g.fixWideTail(g.row)
	} else {
		g.splitWide(g.row, g.col)
		if w == 2 {
			g.splitWide(g.row, g.col+1)
		}
	}
	line[g.col] = Cell{Rune: r, FG: g.pen.FG, BG: g.pen.BG, Attr: g.pen.Attr, Wide: w == 2}
	if w == 2 {
		line[g.col+1] = Cell{Rune: 0, FG: g.pen.FG, BG: g.pen.BG, Attr: g.pen.Attr}
	}
	g.lastRune = r

	g.col += w
	if g.col < g.cols {
		return
	}
	switch {
	case !g.modes.AutoWrap:
		g.col = g.cols - 1
	case g.deferredWrap:
		g.col = g.cols - 1
		g.wrapNext = true
	default:
		g.col = 0
		g.index()
	}
}

// splitWide blanks the other half of a wide rune about to be overwritten at col.
func (g *Grid) splitWide(row, col int) {
	line := g.line(row)
	c := line[col]
	switch {
	case c.Wide && col+1 < g.cols:
		line[col+1] = g.blank()
	case c.Rune == 0 && col > 0 && line[col-1].Wide:
		line[col-1] = g.blank()
	}
}

// breakWideAt blanks both halves of a wide rune whose continuation sits at
// col, so a shift starting there never moves an orphaned half.
func (g *Grid) breakWideAt(row, col int) {
	line := g.line(row)
	if col > 0 && line[col].Rune == 0 && line[col-1].Wide {
		b := g.blank()
		line[col-1], line[col] = b, b
	}
}

// fixWideTail blanks a leading half left without its continuation at the end
// of a row after a right shift.
func (g *Grid) fixWideTail(row int) {
	line := g.line(row)
	if last := len(line) - 1; line[last].Wide {
		line[last] = g.blank()
	}
}

func (g *Grid) repeat(n int) {
	if g.lastRune == 0 {
		return
	}
	n = min(n, g.rows*g.cols)
	r := g.lastRune
	for i := 0; i < n; i++ {
		g.print(r)
	}
}

func (g *Grid) lineFeed() {
	g.index()
	if g.modes.NewLine {
		g.col = 0
	}
}

// index moves down one row, scrolling the region when at its bottom margin.
func (g *Grid) index() {
	g.wrapNext = false
	switch {
	case g.row == g.bottom:
		g.scrollUp(1)
	case g.row < g.rows-1:
		g.row++
	}
}

// reverseIndex moves up one row, scrolling the region down at its top margin.
func (g *Grid) reverseIndex() {
	g.wrapNext = false
	switch {
	case g.row == g.top:
		g.scrollDown(1)
	case g.row > 0:
		g.row--
	}
}

func (g *Grid) saveCursor() {
	g.buf().saved = &savedCursor{
		row:      g.row,
		col:      g.col,
		pen:      g.pen,
		origin:   g.modes.Origin,
		charsets: g.charsets,
		shift:    g.shift,
		wrapNext: g.wrapNext,
	}
}

// restoreCursor restores the slot of the active buffer. Without a saved
// state the cursor homes and the pen resets.
func (g *Grid) restoreCursor() {
	s := g.buf().saved
	if s == nil {
		g.modes.Origin = false
		g.pen = DefaultPen
		g.charsets = [2]byte{'B', 'B'}
		g.shift = 0
		g.setCursor(0, 0)
		return
	}
	g.pen = s.pen
	g.modes.Origin = s.origin
	g.charsets = s.charsets
	g.shift = s.shift
	g.row = clamp(s.row, 0, g.rows-1)
	g.col = clamp(s.col, 0, g.cols-1)
	g.wrapNext = s.wrapNext && g.col == g.cols-1
}

func defaultTabs(cols int) []bool {
	tabs := make([]bool, cols)
	for i := 8; i < cols; i += 8 {
		tabs[i] = true
	}
	return tabs
}

func (g *Grid) tabForward(n int) {
	g.wrapNext = false
	for ; n > 0 && g.col < g.cols-1; n-- {
		g.col++
		for g.col < g.cols-1 && !g.tabs[g.col] {
			g.col++
		}
	}
}

func (g *Grid) tabBackward(n int) {
	g.wrapNext = false
	for ; n > 0 && g.col > 0; n-- {
		g.col--
		for g.col > 0 && !g.tabs[g.col] {
			g.col--
		}
	}
}

func (g *Grid) clearTabStop(mode int) {
	switch mode {
	case 0:
		g.tabs[g.col] = false
	case 3:
		for i := range g.tabs {
			g.tabs[i] = false
		}
	}
}

// decSpecialGraphics maps 0x5f-0x7e to line drawing glyphs when G0/G1 is
// designated with ESC ( 0.
var decSpecialGraphics = map[rune]rune{
	'_': ' ', '`': '◆', 'a': '▒', 'b': '␉', 'c': '␌', 'd': '␍', 'e': '␊',
	'f': '°', 'g': '±', 'h': '␤', 'i': '␋', 'j': '┘', 'k': '┐', 'l': '┌',
	'm': '└', 'n': '┼', 'o': '⎺', 'p': '⎻', 'q': '─', 'r': '⎼', 's': '⎽',
	't': '├', 'u': '┤', 'v': '┴', 'w': '┬', 'x': '│', 'y': '≤', 'z': '≥',
	'{': 'π', '|': '≠', '}': '£', '~': '·',
}

func (g *Grid) translate(r rune) rune {
	if g.charsets[g.shift] != '0' {
		return r
	}
	if m, ok := decSpecialGraphics[r]; ok {
		return m
	}
	return r
}

func (g *Grid) designateCharset(slot byte, set rune) {
	var i int
	switch slot {
	case '(':
		i = 0
	case ')':
		i = 1
	default:
		debugLog.Printf("Grid: Ignoring charset designation %c%c", slot, set)
		return
	}
	if set == '0' {
		g.charsets[i] = '0'
	} else {
		g.charsets[i] = 'B'
	}
}
