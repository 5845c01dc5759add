// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: grid/resize.go
// Summary: Grid resizing by truncating or padding both buffers.
// Usage: Called by the I/O loop after the PTY window size has changed.

package grid

// Resize changes the grid to rows×cols. Both buffers keep their top-left
// intersection. When the primary buffer loses rows below the cursor, the
// rows above it go to scrollback instead so the cursor line survives.
func (g *Grid) Resize(rows, cols int) {
	rows, cols = max(rows, 1), max(cols, 1)
	if rows == g.rows && cols == g.cols {
		return
	}

	if g.active == Primary && g.row >= rows {
		drop := g.row - rows + 1
		primary := g.screens[Primary]
		for _, line := range primary.cells[:drop] {
			if g.scrollback != nil {
				g.scrollback.Push(line)
			}
		}
		primary.cells = append(primary.cells[:0:0], primary.cells[drop:]...)
		g.row -= drop
		if s := primary.saved; s != nil {
			s.row = max(s.row-drop, 0)
		}
	}

	for _, s := range g.screens {
		s.cells = resizeCells(s.cells, rows, cols)
	}

	tabs := defaultTabs(cols)
	copy(tabs, g.tabs)
	g.tabs = tabs

	g.rows, g.cols = rows, cols
	g.row = clamp(g.row, 0, rows-1)
	g.col = clamp(g.col, 0, cols-1)
	g.wrapNext = false
	g.top, g.bottom = 0, rows-1
	g.dirty = true
}

func resizeCells(cells [][]Cell, rows, cols int) [][]Cell {
	if len(cells) > rows {
		cells = cells[:rows]
	}
	for i, line := range cells {
		switch {
		case len(line) > cols:
			line = line[:cols:cols]
			if line[cols-1].Wide {
				line[cols-1] = BlankCell
			}
		case len(line) < cols:
			grown := blankRow(cols, BlankCell)
			copy(grown, line)
			line = grown
		}
		cells[i] = line
	}
	for len(cells) < rows {
		cells = append(cells, blankRow(cols, BlankCell))
	}
	return cells
}
