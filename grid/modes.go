// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: grid/modes.go
// Summary: ANSI and DEC private modes, alternate screen and device reports.
// Usage: Part of the Grid screen model.

package grid

import "fmt"

func (g *Grid) setModes(marker byte, params []int, enable bool) {
	for _, p := range params {
		if marker == '?' {
			g.setPrivateMode(p, enable)
		} else {
			g.setANSIMode(p, enable)
		}
	}
}

func (g *Grid) setANSIMode(mode int, enable bool) {
	switch mode {
	case 4:
		g.modes.Insert = enable
	case 20:
		g.modes.NewLine = enable
	default:
		debugLog.Printf("Grid: Unhandled ANSI mode %d (enable=%v)", mode, enable)
	}
}

func (g *Grid) setPrivateMode(mode int, enable bool) {
	switch mode {
	case 1:
		g.modes.AppCursor = enable
	case 6:
		g.modes.Origin = enable
		g.setCursor(0, 0)
	case 7:
		g.modes.AutoWrap = enable
		if !enable {
			g.wrapNext = false
		}
	case 25:
		g.modes.CursorVisible = enable
	case 47, 1047:
		if enable {
			g.enterAlternate()
		} else {
			g.leaveAlternate()
		}
	case 1048:
		if enable {
			g.saveCursor()
		} else {
			g.restoreCursor()
		}
	case 1049:
		if enable {
			if g.active == Alternate {
				return
			}
			g.saveCursor()
			g.enterAlternate()
		} else {
			if g.active == Primary {
				return
			}
			g.leaveAlternate()
			g.restoreCursor()
		}
	case 2004:
		g.modes.BracketedPaste = enable
	default:
		debugLog.Printf("Grid: Unhandled private mode %d (enable=%v)", mode, enable)
	}
}

// enterAlternate switches to a freshly cleared alternate buffer. The primary
// buffer is left untouched until leaveAlternate.
func (g *Grid) enterAlternate() {
	if g.active == Alternate {
		return
	}
	alt := g.screens[Alternate]
	for _, line := range alt.cells {
		for i := range line {
			line[i] = BlankCell
		}
	}
	g.active = Alternate
	g.wrapNext = false
}

func (g *Grid) leaveAlternate() {
	if g.active == Primary {
		return
	}
	g.active = Primary
	g.wrapNext = false
}

// deviceStatus answers DSR 5 (status) and DSR 6 (cursor position).
func (g *Grid) deviceStatus(marker byte, req int) {
	switch req {
	case 5:
		g.replies = append(g.replies, "\x1b[0n"...)
	case 6:
		row := g.row
		if g.modes.Origin {
			row -= g.top
		}
		prefix := ""
		if marker == '?' {
			prefix = "?"
		}
		g.replies = fmt.Appendf(g.replies, "\x1b[%s%d;%dR", prefix, row+1, g.col+1)
	default:
		debugLog.Printf("Grid: Unhandled device status request %d", req)
	}
}

// deviceAttributes answers DA1 as a VT220-class terminal and DA2 with a
// fixed firmware version.
func (g *Grid) deviceAttributes(marker byte, req int) {
	if req != 0 {
		return
	}
	switch marker {
	case 0:
		g.replies = append(g.replies, "\x1b[?62;22c"...)
	case '>':
		g.replies = append(g.replies, "\x1b[>1;100;0c"...)
	}
}
