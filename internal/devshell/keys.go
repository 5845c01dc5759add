// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/devshell/keys.go
// Summary: Encodes host key and paste events into the bytes a VT100/xterm
//   application expects on its input.

package devshell

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"
)

// cursorKeys switch between CSI and SS3 forms with application cursor mode.
var cursorKeys = map[tcell.Key]byte{
	tcell.KeyUp:    'A',
	tcell.KeyDown:  'B',
	tcell.KeyRight: 'C',
	tcell.KeyLeft:  'D',
	tcell.KeyHome:  'H',
	tcell.KeyEnd:   'F',
}

var specialKeys = map[tcell.Key]string{
	tcell.KeyInsert:  "\x1b[2~",
	tcell.KeyDelete:  "\x1b[3~",
	tcell.KeyPgUp:    "\x1b[5~",
	tcell.KeyPgDn:    "\x1b[6~",
	tcell.KeyBacktab: "\x1b[Z",
	tcell.KeyF1:      "\x1bOP",
	tcell.KeyF2:      "\x1bOQ",
	tcell.KeyF3:      "\x1bOR",
	tcell.KeyF4:      "\x1bOS",
	tcell.KeyF5:      "\x1b[15~",
	tcell.KeyF6:      "\x1b[17~",
	tcell.KeyF7:      "\x1b[18~",
	tcell.KeyF8:      "\x1b[19~",
	tcell.KeyF9:      "\x1b[20~",
	tcell.KeyF10:     "\x1b[21~",
	tcell.KeyF11:     "\x1b[23~",
	tcell.KeyF12:     "\x1b[24~",
}

// EncodeKey returns the bytes for ev, or nil for keys with no encoding.
func EncodeKey(ev *tcell.EventKey, appCursor bool) []byte {
	key, mods := ev.Key(), ev.Modifiers()

	var out []byte
	switch {
	case key == tcell.KeyRune:
		out = utf8.AppendRune(nil, ev.Rune())
	case cursorKeys[key] != 0:
		final := cursorKeys[key]
		if m := modifierParam(mods); m > 1 {
			return fmt.Appendf(nil, "\x1b[1;%d%c", m, final)
		}
		if appCursor {
			return []byte{0x1b, 'O', final}
		}
		return []byte{0x1b, '[', final}
	case specialKeys[key] != "":
		out = []byte(specialKeys[key])
	case key == tcell.KeyBackspace2:
		out = []byte{0x7f}
	case key >= 0 && key < 0x20:
		// Enter, Tab, Esc, Backspace and the Ctrl-letter keys are their
		// own control codes.
		out = []byte{byte(key)}
	default:
		return nil
	}
	if mods&tcell.ModAlt != 0 {
		out = append([]byte{0x1b}, out...)
	}
	return out
}

// modifierParam is the xterm modifier parameter: 1 plus shift=1, alt=2, ctrl=4.
func modifierParam(mods tcell.ModMask) int {
	m := 1
	if mods&tcell.ModShift != 0 {
		m++
	}
	if mods&tcell.ModAlt != 0 {
		m += 2
	}
	if mods&tcell.ModCtrl != 0 {
		m += 4
	}
	return m
}

const (
	pasteStart = "\x1b[200~"
	pasteEnd   = "\x1b[201~"
)

// EncodePaste wraps pasted text in bracketed paste markers when the
// application enabled them. An embedded end marker is removed so the paste
// cannot terminate the bracket early.
func EncodePaste(data []byte, bracketed bool) []byte {
	if !bracketed {
		return append([]byte(nil), data...)
	}
	data = bytes.ReplaceAll(data, []byte(pasteEnd), nil)
	out := make([]byte, 0, len(data)+len(pasteStart)+len(pasteEnd))
	out = append(out, pasteStart...)
	out = append(out, data...)
	return append(out, pasteEnd...)
}

// ParseToggleKey parses "ctrl-a" through "ctrl-z". "none" and "" disable
// the toggle.
func ParseToggleKey(name string) (tcell.Key, bool, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "none" {
		return 0, false, nil
	}
	letter, ok := strings.CutPrefix(name, "ctrl-")
	if !ok || len(letter) != 1 || letter[0] < 'a' || letter[0] > 'z' {
		return 0, false, fmt.Errorf("devshell: unsupported toggle key %q", name)
	}
	return tcell.KeyCtrlA + tcell.Key(letter[0]-'a'), true, nil
}
