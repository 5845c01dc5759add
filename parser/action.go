// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: parser/action.go
// Summary: Structured terminal actions emitted by the protocol parser.
// Usage: Produced by Parser.Feed and applied by the grid model.

package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies what an Action asks the screen model to do.
type Kind uint8

const (
	KindNone Kind = iota
	KindPrint
	KindBell
	KindBackspace
	KindTab
	KindLineFeed
	KindCarriageReturn
	KindShiftOut
	KindShiftIn
	KindIndex
	KindNextLine
	KindReverseIndex
	KindSetTabStop
	KindSaveCursor
	KindRestoreCursor
	KindReset
	KindAlignmentTest
	KindDesignateCharset
	KindCursorMove
	KindEraseInDisplay
	KindEraseInLine
	KindEraseChars
	KindInsertChars
	KindDeleteChars
	KindInsertLines
	KindDeleteLines
	KindScrollUp
	KindScrollDown
	KindSetAttribute
	KindScrollRegion
	KindSetMode
	KindResetMode
	KindDeviceStatus
	KindDeviceAttributes
	KindClearTabStop
	KindTabForward
	KindTabBackward
	KindRepeat
	KindSetTitle
	KindOSC
	KindDCS
)

var kindNames = [...]string{
	KindNone:             "None",
	KindPrint:            "Print",
	KindBell:             "Bell",
	KindBackspace:        "Backspace",
	KindTab:              "Tab",
	KindLineFeed:         "LineFeed",
	KindCarriageReturn:   "CarriageReturn",
	KindShiftOut:         "ShiftOut",
	KindShiftIn:          "ShiftIn",
	KindIndex:            "Index",
	KindNextLine:         "NextLine",
	KindReverseIndex:     "ReverseIndex",
	KindSetTabStop:       "SetTabStop",
	KindSaveCursor:       "SaveCursor",
	KindRestoreCursor:    "RestoreCursor",
	KindReset:            "Reset",
	KindAlignmentTest:    "AlignmentTest",
	KindDesignateCharset: "DesignateCharset",
	KindCursorMove:       "CursorMove",
	KindEraseInDisplay:   "EraseInDisplay",
	KindEraseInLine:      "EraseInLine",
	KindEraseChars:       "EraseChars",
	KindInsertChars:      "InsertChars",
	KindDeleteChars:      "DeleteChars",
	KindInsertLines:      "InsertLines",
	KindDeleteLines:      "DeleteLines",
	KindScrollUp:         "ScrollUp",
	KindScrollDown:       "ScrollDown",
	KindSetAttribute:     "SetAttribute",
	KindScrollRegion:     "ScrollRegion",
	KindSetMode:          "SetMode",
	KindResetMode:        "ResetMode",
	KindDeviceStatus:     "DeviceStatus",
	KindDeviceAttributes: "DeviceAttributes",
	KindClearTabStop:     "ClearTabStop",
	KindTabForward:       "TabForward",
	KindTabBackward:      "TabBackward",
	KindRepeat:           "Repeat",
	KindSetTitle:         "SetTitle",
	KindOSC:              "OSC",
	KindDCS:              "DCS",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Direction qualifies a KindCursorMove action.
type Direction uint8

const (
	MoveUp Direction = iota + 1
	MoveDown
	MoveForward
	MoveBack
	MoveNextLine
	MovePrevLine
	MoveColumn         // CHA, HPA: absolute column
	MoveRow            // VPA: absolute row
	MoveAbsolute       // CUP, HVP: row;col
	MoveColumnRelative // HPR
	MoveRowRelative    // VPR
)

var directionNames = [...]string{
	MoveUp:             "up",
	MoveDown:           "down",
	MoveForward:        "forward",
	MoveBack:           "back",
	MoveNextLine:       "next-line",
	MovePrevLine:       "prev-line",
	MoveColumn:         "column",
	MoveRow:            "row",
	MoveAbsolute:       "absolute",
	MoveColumnRelative: "column-relative",
	MoveRowRelative:    "row-relative",
}

func (d Direction) String() string {
	if int(d) < len(directionNames) && directionNames[d] != "" {
		return directionNames[d]
	}
	return "Direction(" + strconv.Itoa(int(d)) + ")"
}

// Action is one complete unit of terminal protocol. Params hold the raw
// numeric parameters as received (1-based coordinates, 0 meaning omitted).
type Action struct {
	Kind Kind
	Rune rune
	Dir  Direction
	// Params are owned by the action; the parser never reuses them.
	Params []int
	// Sub marks colon sub-parameters, as in CSISequence.Sub.
	Sub uint16
	// Marker is the CSI private marker ('?', '>', '=', '<') or, for
	// KindDesignateCharset, the designated slot ('(' for G0, ')' for G1).
	Marker  byte
	Payload []byte
}

// Param returns parameter i, or def when it is missing or zero.
func (a Action) Param(i, def int) int {
	if i < len(a.Params) && a.Params[i] != 0 {
		return a.Params[i]
	}
	return def
}

// IsSub reports whether Params[i] is a colon sub-parameter of the
// parameter before it.
func (a Action) IsSub(i int) bool {
	return i > 0 && i < len(a.Params) && i < maxParams && a.Sub&(1<<i) != 0
}

func (a Action) String() string {
	switch a.Kind {
	case KindPrint:
		return fmt.Sprintf("Print(%q)", a.Rune)
	case KindCursorMove:
		return fmt.Sprintf("CursorMove(%s %s)", a.Dir, joinParams(a.Params))
	case KindSetAttribute:
		if isReset(a.Params) {
			return "SetAttribute(reset)"
		}
		return "SetAttribute(" + joinSub(a.Params, a.Sub) + ")"
	case KindSetTitle, KindDCS:
		return fmt.Sprintf("%s(%q)", a.Kind, a.Payload)
	case KindOSC:
		return fmt.Sprintf("OSC(%s %q)", joinParams(a.Params), a.Payload)
	case KindDesignateCharset:
		return fmt.Sprintf("DesignateCharset(%c%c)", a.Marker, a.Rune)
	}
	var b strings.Builder
	b.WriteString(a.Kind.String())
	if a.Marker != 0 || len(a.Params) > 0 {
		b.WriteByte('(')
		if a.Marker != 0 {
			b.WriteByte(a.Marker)
		}
		b.WriteString(joinParams(a.Params))
		b.WriteByte(')')
	}
	return b.String()
}

func isReset(params []int) bool {
	for _, p := range params {
		if p != 0 {
			return false
		}
	}
	return true
}

func joinParams(params []int) string {
	return joinSub(params, 0)
}

func joinSub(params []int, sub uint16) string {
	var b strings.Builder
	for i, p := range params {
		switch {
		case i == 0:
		case i < maxParams && sub&(1<<i) != 0:
			b.WriteByte(':')
		default:
			b.WriteByte(';')
		}
		b.WriteString(strconv.Itoa(p))
	}
	return b.String()
}
