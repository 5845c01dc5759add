// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: grid/edit.go
// Summary: Erase, insert/delete and scrolling operations within margins.
// Usage: Part of the Grid screen model.
// Notes: Erased cells take the current background color (BCE).

package grid

// eraseRange blanks columns [from, to) of a row.
func (g *Grid) eraseRange(row, from, to int) {
	from, to = clamp(from, 0, g.cols), clamp(to, 0, g.cols)
	if from >= to {
		return
	}
	line := g.line(row)
	if from > 0 && line[from].Rune == 0 && line[from-1].Wide {
		line[from-1] = g.blank()
	}
	if to < g.cols && line[to-1].Wide {
		line[to] = g.blank()
	}
	b := g.blank()
	for i := from; i < to; i++ {
		line[i] = b
	}
}

func (g *Grid) eraseRows(from, to int) {
	for r := from; r < to; r++ {
		g.eraseRange(r, 0, g.cols)
	}
}

func (g *Grid) eraseInLine(mode int) {
	g.wrapNext = false
	switch mode {
	case 0:
		g.eraseRange(g.row, g.col, g.cols)
	case 1:
		g.eraseRange(g.row, 0, g.col+1)
	case 2:
		g.eraseRange(g.row, 0, g.cols)
	}
}

func (g *Grid) eraseInDisplay(mode int) {
	g.wrapNext = false
	switch mode {
	case 0:
		g.eraseRange(g.row, g.col, g.cols)
		g.eraseRows(g.row+1, g.rows)
	case 1:
		g.eraseRows(0, g.row)
		g.eraseRange(g.row, 0, g.col+1)
	case 2:
		g.eraseRows(0, g.rows)
	case 3:
		g.eraseRows(0, g.rows)
		if g.scrollback != nil {
			g.scrollback.Clear()
		}
	}
}

func (g *Grid) eraseChars(n int) {
	g.wrapNext = false
	g.eraseRange(g.row, g.col, g.col+n)
}

// insertChars shifts the rest of the line right by n, dropping cells pushed
// past the right edge.
func (g *Grid) insertChars(n int) {
	g.wrapNext = false
	line := g.line(g.row)
	n = min(n, g.cols-g.col)
	g.breakWideAt(g.row, g.col)
	copy(line[g.col+n:], line[g.col:])
	b := g.blank()
	for i := g.col; i < g.col+n; i++ {
		line[i] = b
	}
	g.fixWideTail(g.row)
}

// deleteChars removes n cells at the cursor, pulling the rest of the line left.
func (g *Grid) deleteChars(n int) {
	g.wrapNext = false
	line := g.line(g.row)
	n = min(n, g.cols-g.col)
	g.splitWide(g.row, g.col)
	if end := g.col + n; end < g.cols {
		g.breakWideAt(g.row, end)
	}
	copy(line[g.col:], line[g.col+n:])
	b := g.blank()
	for i := g.cols - n; i < g.cols; i++ {
		line[i] = b
	}
}

// insertLines opens n blank lines at the cursor row, inside the region only.
func (g *Grid) insertLines(n int) {
	if g.row < g.top || g.row > g.bottom {
		return
	}
	g.wrapNext = false
	g.shiftDown(g.row, g.bottom, n)
	g.col = 0
}

// deleteLines removes n lines at the cursor row, inside the region only.
func (g *Grid) deleteLines(n int) {
	if g.row < g.top || g.row > g.bottom {
		return
	}
	g.wrapNext = false
	g.shiftUp(g.row, g.bottom, n, false)
	g.col = 0
}

// scrollUp scrolls the region up by n lines. Lines leaving the top of the
// primary screen are handed to the scrollback sink.
func (g *Grid) scrollUp(n int) {
	keep := g.active == Primary && g.top == 0 && g.scrollback != nil
	g.shiftUp(g.top, g.bottom, n, keep)
}

func (g *Grid) scrollDown(n int) {
	g.shiftDown(g.top, g.bottom, n)
}

// shiftUp moves rows [top+n, bottom] to top and blanks the bottom n rows.
func (g *Grid) shiftUp(top, bottom, n int, keep bool) {
	n = min(n, bottom-top+1)
	if n <= 0 {
		return
	}
	cells := g.buf().cells
	removed := make([][]Cell, n)
	copy(removed, cells[top:top+n])
	copy(cells[top:], cells[top+n:bottom+1])
	for i := bottom - n + 1; i <= bottom; i++ {
		if keep {
			cells[i] = blankRow(g.cols, g.blank())
		} else {
			// Reuse the removed rows.
			cells[i] = removed[i-(bottom-n+1)]
			g.eraseRange(i, 0, g.cols)
		}
	}
	if keep {
		for _, line := range removed {
			g.scrollback.Push(line)
		}
	}
}

// shiftDown moves rows [top, bottom-n] down by n and blanks the top n rows.
func (g *Grid) shiftDown(top, bottom, n int) {
	n = min(n, bottom-top+1)
	if n <= 0 {
		return
	}
	cells := g.buf().cells
	removed := make([][]Cell, n)
	copy(removed, cells[bottom-n+1:bottom+1])
	copy(cells[top+n:bottom+1], cells[top:bottom-n+1])
	for i := 0; i < n; i++ {
		cells[top+i] = removed[i]
		g.eraseRange(top+i, 0, g.cols)
	}
}

// setScrollRegion takes 1-based margins. Invalid regions are ignored.
func (g *Grid) setScrollRegion(top, bottom int) {
	top, bottom = top-1, min(bottom, g.rows)-1
	if top < 0 || top >= bottom {
		debugLog.Printf("Grid: Ignoring scroll region %d;%d", top+1, bottom+1)
		return
	}
	g.top, g.bottom = top, bottom
	g.setCursor(0, 0)
}

// alignmentTest fills the screen with 'E' (DECALN).
func (g *Grid) alignmentTest() {
	g.top, g.bottom = 0, g.rows-1
	g.modes.Origin = false
	fill := Cell{Rune: 'E', FG: DefaultFG, BG: DefaultBG}
	for _, line := range g.buf().cells {
		for i := range line {
			line[i] = fill
		}
	}
	g.setCursor(0, 0)
}
