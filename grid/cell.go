// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: grid/cell.go
// Summary: Cell, color and attribute types held by the screen model.
// Usage: Written by Grid.Apply and read by renderers through snapshots.

package grid

import "strings"

type Attribute uint16

const (
	AttrBold Attribute = 1 << iota
	AttrItalic
	AttrUnderline
	AttrReverse
	AttrStrikethrough
)

var attrNames = []struct {
	attr Attribute
	name string
}{
	{AttrBold, "bold"},
	{AttrItalic, "italic"},
	{AttrUnderline, "underline"},
	{AttrReverse, "reverse"},
	{AttrStrikethrough, "strikethrough"},
}

// String returns a human-readable representation of the attribute flags.
func (a Attribute) String() string {
	if a == 0 {
		return "none"
	}
	var parts []string
	for _, n := range attrNames {
		if a&n.attr != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, "|")
}

// ColorMode defines the type of color stored.
type ColorMode int

const (
	ColorModeDefault  ColorMode = iota // Default terminal color
	ColorModeStandard                  // ANSI colors 0-15
	ColorMode256                       // 256-color palette
	ColorModeRGB                       // 24-bit "true" color
)

// Color is a fixed-shape color record valid in every mode.
type Color struct {
	Mode    ColorMode
	Value   uint8 // Color code for Standard (0-15) and 256-mode (0-255)
	R, G, B uint8 // RGB mode only
}

var (
	DefaultFG = Color{Mode: ColorModeDefault}
	DefaultBG = Color{Mode: ColorModeDefault}
)

// Pen holds the attributes applied to newly printed cells.
type Pen struct {
	FG   Color
	BG   Color
	Attr Attribute
}

// DefaultPen is the pen after SGR 0.
var DefaultPen = Pen{FG: DefaultFG, BG: DefaultBG}

// Cell represents a single character cell on the screen.
type Cell struct {
	Rune rune
	FG   Color
	BG   Color
	Attr Attribute
	// Wide marks the leading half of a two-column rune. The trailing half
	// holds rune 0.
	Wide bool
}

// BlankCell is an erased cell with default colors.
var BlankCell = Cell{Rune: ' ', FG: DefaultFG, BG: DefaultBG}

// IsBlank reports whether the cell shows nothing but background.
func (c Cell) IsBlank() bool {
	return (c.Rune == ' ' || c.Rune == 0) && c.Attr&(AttrReverse|AttrUnderline|AttrStrikethrough) == 0
}

func blankRow(cols int, fill Cell) []Cell {
	row := make([]Cell, cols)
	for i := range row {
		row[i] = fill
	}
	return row
}

// lineText renders a row as text, dropping wide-rune continuation cells and
// trailing blanks.
func lineText(cells []Cell) string {
	var sb strings.Builder
	for _, c := range cells {
		if c.Rune == 0 {
			continue
		}
		sb.WriteRune(c.Rune)
	}
	return strings.TrimRight(sb.String(), " ")
}
