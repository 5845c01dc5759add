// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: parser/catalog.go
// Summary: Table of supported CSI sequences keyed by final byte.
// Usage: DefaultCatalog is installed by New; WithCSI extends or overrides it.
// Notes: A handler that declines a sequence makes the parser discard it.

package parser

// CSISequence is a fully parsed control sequence awaiting translation.
type CSISequence struct {
	Params []int
	// Sub has bit i set when Params[i] was introduced by ':' and so belongs
	// to the group opened by the parameter before it.
	Sub           uint16
	Marker        byte
	Intermediates []byte
	Final         byte
}

// Param returns parameter i, or def when it is missing or zero.
func (s CSISequence) Param(i, def int) int {
	if i < len(s.Params) && s.Params[i] != 0 {
		return s.Params[i]
	}
	return def
}

func (s CSISequence) plain() bool {
	return s.Marker == 0 && len(s.Intermediates) == 0
}

// CSIHandler turns a sequence into an action. Returning false discards it.
type CSIHandler func(seq CSISequence) (Action, bool)

// Catalog maps CSI final bytes to handlers.
type Catalog map[byte]CSIHandler

// Clone returns a copy that can be modified independently.
func (c Catalog) Clone() Catalog {
	out := make(Catalog, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// DefaultCatalog returns the sequences needed by common full-screen programs.
func DefaultCatalog() Catalog {
	return Catalog{
		'A': cursor(MoveUp),
		'B': cursor(MoveDown),
		'C': cursor(MoveForward),
		'D': cursor(MoveBack),
		'E': cursor(MoveNextLine),
		'F': cursor(MovePrevLine),
		'G': cursor(MoveColumn),
		'`': cursor(MoveColumn),
		'a': cursor(MoveColumnRelative),
		'd': cursor(MoveRow),
		'e': cursor(MoveRowRelative),
		'H': cursor(MoveAbsolute),
		'f': cursor(MoveAbsolute),
		'J': erase(KindEraseInDisplay),
		'K': erase(KindEraseInLine),
		'X': plain(KindEraseChars),
		'@': plain(KindInsertChars),
		'P': plain(KindDeleteChars),
		'L': plain(KindInsertLines),
		'M': plain(KindDeleteLines),
		'S': plain(KindScrollUp),
		'T': scrollDown,
		'm': plain(KindSetAttribute),
		'r': plain(KindScrollRegion),
		'h': mode(KindSetMode),
		'l': mode(KindResetMode),
		's': saveCursor,
		'u': plain(KindRestoreCursor),
		'n': deviceStatus,
		'c': deviceAttributes,
		'g': plain(KindClearTabStop),
		'I': plain(KindTabForward),
		'Z': plain(KindTabBackward),
		'b': plain(KindRepeat),
	}
}

func cursor(dir Direction) CSIHandler {
	return func(s CSISequence) (Action, bool) {
		if !s.plain() {
			return Action{}, false
		}
		return Action{Kind: KindCursorMove, Dir: dir, Params: s.Params}, true
	}
}

func plain(kind Kind) CSIHandler {
	return func(s CSISequence) (Action, bool) {
		if !s.plain() {
			return Action{}, false
		}
		return Action{Kind: kind, Params: s.Params, Sub: s.Sub}, true
	}
}

// erase accepts DECSED/DECSEL ('?') as plain erases; there is no protected
// attribute to honour.
func erase(kind Kind) CSIHandler {
	return func(s CSISequence) (Action, bool) {
		if len(s.Intermediates) > 0 || (s.Marker != 0 && s.Marker != '?') {
			return Action{}, false
		}
		return Action{Kind: kind, Params: s.Params}, true
	}
}

func mode(kind Kind) CSIHandler {
	return func(s CSISequence) (Action, bool) {
		if len(s.Intermediates) > 0 || (s.Marker != 0 && s.Marker != '?') || len(s.Params) == 0 {
			return Action{}, false
		}
		return Action{Kind: kind, Params: s.Params, Marker: s.Marker}, true
	}
}

// CSI T with more than one parameter is xterm mouse highlight tracking.
func scrollDown(s CSISequence) (Action, bool) {
	if !s.plain() || len(s.Params) > 1 {
		return Action{}, false
	}
	return Action{Kind: KindScrollDown, Params: s.Params}, true
}

// CSI s with parameters is DECSLRM, which needs left/right margin mode.
func saveCursor(s CSISequence) (Action, bool) {
	if !s.plain() || len(s.Params) > 0 {
		return Action{}, false
	}
	return Action{Kind: KindSaveCursor}, true
}

func deviceStatus(s CSISequence) (Action, bool) {
	if len(s.Intermediates) > 0 || (s.Marker != 0 && s.Marker != '?') {
		return Action{}, false
	}
	return Action{Kind: KindDeviceStatus, Params: s.Params, Marker: s.Marker}, true
}

func deviceAttributes(s CSISequence) (Action, bool) {
	if len(s.Intermediates) > 0 || (s.Marker != 0 && s.Marker != '>') {
		return Action{}, false
	}
	return Action{Kind: KindDeviceAttributes, Params: s.Params, Marker: s.Marker}, true
}
