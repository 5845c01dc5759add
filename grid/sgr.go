// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: grid/sgr.go
// Summary: SGR (Select Graphic Rendition) - text attributes and colors.
// Usage: Part of the Grid screen model.

package grid

import "github.com/framegrace/texelvt/parser"

func clamp8(v int) uint8 {
	return uint8(clamp(v, 0, 255))
}

// handleSGR processes SGR (Select Graphic Rendition) parameters. An empty
// parameter list resets the pen. A parameter followed by colon
// sub-parameters is decoded as one unit.
func (g *Grid) handleSGR(a parser.Action) {
	params := a.Params
	if len(params) == 0 {
		params = []int{0}
	}
	for i := 0; i < len(params); i++ {
		p := params[i]
		end := i + 1
		for end < len(params) && a.IsSub(end) {
			end++
		}
		if end > i+1 {
			g.sgrGroup(p, params[i+1:end])
			i = end - 1
			continue
		}
		switch {
		case p == 0:
			g.pen = DefaultPen
		case p == 1:
			g.pen.Attr |= AttrBold
		case p == 3:
			g.pen.Attr |= AttrItalic
		case p == 4:
			g.pen.Attr |= AttrUnderline
		case p == 7:
			g.pen.Attr |= AttrReverse
		case p == 9:
			g.pen.Attr |= AttrStrikethrough
		case p == 22:
			g.pen.Attr &^= AttrBold
		case p == 23:
			g.pen.Attr &^= AttrItalic
		case p == 24:
			g.pen.Attr &^= AttrUnderline
		case p == 27:
			g.pen.Attr &^= AttrReverse
		case p == 29:
			g.pen.Attr &^= AttrStrikethrough
		case p >= 30 && p <= 37:
			g.pen.FG = Color{Mode: ColorModeStandard, Value: uint8(p - 30)}
		case p == 39:
			g.pen.FG = DefaultFG
		case p >= 40 && p <= 47:
			g.pen.BG = Color{Mode: ColorModeStandard, Value: uint8(p - 40)}
		case p == 49:
			g.pen.BG = DefaultBG
		case p == 38, p == 48:
			c, used, ok := extendedColor(params[i+1:])
			i += used
			if ok {
				g.setExtended(p, c)
			}
		case p >= 90 && p <= 97: // Bright foreground
			g.pen.FG = Color{Mode: ColorModeStandard, Value: uint8(p - 90 + 8)}
		case p >= 100 && p <= 107: // Bright background
			g.pen.BG = Color{Mode: ColorModeStandard, Value: uint8(p - 100 + 8)}
		default:
			debugLog.Printf("Grid: Unhandled SGR parameter %d", p)
		}
	}
}

// sgrGroup applies a colon group such as "4:3" or "38:2::r:g:b". Groups
// that are not understood are skipped whole.
func (g *Grid) sgrGroup(p int, sub []int) {
	switch p {
	case 4:
		// Underline styles all map onto the single underline attribute.
		switch {
		case sub[0] == 0:
			g.pen.Attr &^= AttrUnderline
		case sub[0] <= 5:
			g.pen.Attr |= AttrUnderline
		default:
			debugLog.Printf("Grid: Unhandled underline style %d", sub[0])
		}
		return
	case 38, 48:
		if c, ok := colonColor(sub); ok {
			g.setExtended(p, c)
			return
		}
	}
	debugLog.Printf("Grid: Unhandled SGR group %d:%v", p, sub)
}

func (g *Grid) setExtended(p int, c Color) {
	if p == 38 {
		g.pen.FG = c
	} else {
		g.pen.BG = c
	}
}

// colonColor decodes "5:n", "2:r:g:b" and "2:cs:r:g:b", where cs is a
// colour space id that is ignored.
func colonColor(sub []int) (Color, bool) {
	switch {
	case sub[0] == 5 && len(sub) == 2:
		return Color{Mode: ColorMode256, Value: clamp8(sub[1])}, true
	case sub[0] == 2 && (len(sub) == 4 || len(sub) == 5):
		rgb := sub[len(sub)-3:]
		return Color{Mode: ColorModeRGB, R: clamp8(rgb[0]), G: clamp8(rgb[1]), B: clamp8(rgb[2])}, true
	}
	return Color{}, false
}

// extendedColor decodes the tail of SGR 38/48: "5;n" or "2;r;g;b". It
// reports how many parameters it consumed.
func extendedColor(rest []int) (Color, int, bool) {
	if len(rest) == 0 {
		return Color{}, 0, false
	}
	switch rest[0] {
	case 5:
		if len(rest) < 2 {
			return Color{}, len(rest), false
		}
		return Color{Mode: ColorMode256, Value: clamp8(rest[1])}, 2, true
	case 2:
		if len(rest) < 4 {
			return Color{}, len(rest), false
		}
		return Color{Mode: ColorModeRGB, R: clamp8(rest[1]), G: clamp8(rest[2]), B: clamp8(rest[3])}, 4, true
	}
	return Color{}, 1, false
}
