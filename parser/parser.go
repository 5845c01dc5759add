// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: parser/parser.go
// Summary: Byte-driven VT protocol state machine.
// Usage: Consumed by the I/O loop when decoding PTY output into actions.
// Notes: Keeps parsing concerns isolated from the screen model.

package parser

import (
	"strconv"
	"unicode/utf8"
)

type State int

const (
	StateGround State = iota
	StateEscape
	StateEscapeIntermediate
	StateCsiEntry
	StateCsiParam
	StateCsiIntermediate
	StateOscString
	StateOscEscape
	StateDcsEntry
	StateDcsEscape
)

var stateNames = [...]string{
	StateGround:             "Ground",
	StateEscape:             "Escape",
	StateEscapeIntermediate: "EscapeIntermediate",
	StateCsiEntry:           "CsiEntry",
	StateCsiParam:           "CsiParam",
	StateCsiIntermediate:    "CsiIntermediate",
	StateOscString:          "OscString",
	StateOscEscape:          "OscEscape",
	StateDcsEntry:           "DcsEntry",
	StateDcsEscape:          "DcsEscape",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}

const (
	maxParams        = 16
	maxParamValue    = 65535
	maxIntermediates = 2
	maxPayload       = 4096
)

// Parser incrementally decodes a terminal byte stream. State survives between
// Feed calls, so sequences may be split at any byte boundary.
type Parser struct {
	state State

	params    []int
	sub       uint16
	cur       int
	curSub    bool
	hasParams bool
	marker    byte
	inter     []byte
	payload   []byte

	utf8Buf  [utf8.UTFMax]byte
	utf8Len  int
	utf8Need int

	catalog Catalog
	out     []Action
}

// Option configures a Parser.
type Option func(*Parser)

// WithCatalog replaces the whole CSI catalog.
func WithCatalog(c Catalog) Option {
	return func(p *Parser) { p.catalog = c.Clone() }
}

// WithCSI installs a handler for one CSI final byte. A nil handler removes
// the sequence from the catalog.
func WithCSI(final byte, h CSIHandler) Option {
	return func(p *Parser) {
		if h == nil {
			delete(p.catalog, final)
			return
		}
		p.catalog[final] = h
	}
}

// New creates a parser in the ground state.
func New(opts ...Option) *Parser {
	p := &Parser{
		state:   StateGround,
		params:  make([]int, 0, maxParams),
		inter:   make([]byte, 0, maxIntermediates),
		payload: make([]byte, 0, 256),
		catalog: DefaultCatalog(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State reports the current grammar state.
func (p *Parser) State() State { return p.state }

// Reset drops any partial sequence and returns to ground.
func (p *Parser) Reset() {
	p.clear()
	p.utf8Len, p.utf8Need = 0, 0
	p.state = StateGround
}

// Feed consumes data and appends the resulting actions to dst.
func (p *Parser) Feed(data []byte, dst []Action) []Action {
	p.out = dst
	for _, b := range data {
		p.step(b)
	}
	out := p.out
	p.out = nil
	return out
}

func (p *Parser) emit(a Action) {
	p.out = append(p.out, a)
}

func (p *Parser) clear() {
	p.params = p.params[:0]
	p.sub = 0
	p.cur = 0
	p.curSub = false
	p.hasParams = false
	p.marker = 0
	p.inter = p.inter[:0]
	p.payload = p.payload[:0]
}

// abort discards the sequence in progress. Malformed input is never an error.
func (p *Parser) abort(b byte) {
	debugLog.Printf("Parser: aborting sequence in %s at byte 0x%02x", p.state, b)
	p.clear()
	p.state = StateGround
}

func (p *Parser) step(b byte) {
	switch b {
	case 0x18, 0x1a: // CAN, SUB
		p.flushUTF8()
		if p.state != StateGround {
			p.abort(b)
		}
		return
	case 0x1b:
		switch p.state {
		case StateOscString:
			p.state = StateOscEscape
			return
		case StateDcsEntry:
			p.state = StateDcsEscape
			return
		case StateOscEscape:
			p.oscDispatch()
		case StateGround:
			p.flushUTF8()
		}
		p.enterEscape()
		return
	}

	switch p.state {
	case StateGround:
		p.ground(b)
	case StateEscape:
		p.escape(b)
	case StateEscapeIntermediate:
		p.escapeIntermediate(b)
	case StateCsiEntry, StateCsiParam:
		p.csiParam(b)
	case StateCsiIntermediate:
		p.csiIntermediate(b)
	case StateOscString:
		p.oscString(b)
	case StateOscEscape:
		p.oscDispatch()
		p.enterEscape()
		p.escape(b)
	case StateDcsEntry:
		p.dcsEntry(b)
	case StateDcsEscape:
		if b == '\\' {
			p.dcsDispatch()
			return
		}
		p.appendPayload(0x1b)
		p.appendPayload(b)
		p.state = StateDcsEntry
	}
}

func (p *Parser) ground(b byte) {
	if p.utf8Need > 0 {
		if b&0xc0 == 0x80 {
			p.utf8Buf[p.utf8Len] = b
			p.utf8Len++
			if p.utf8Len == p.utf8Need {
				r, _ := utf8.DecodeRune(p.utf8Buf[:p.utf8Len])
				p.utf8Len, p.utf8Need = 0, 0
				p.emit(Action{Kind: KindPrint, Rune: r})
			}
			return
		}
		p.flushUTF8()
	}

	switch {
	case b < 0x20 || b == 0x7f:
		p.execute(b)
	case b < 0x80:
		p.emit(Action{Kind: KindPrint, Rune: rune(b)})
	case b >= 0xc2 && b <= 0xdf:
		p.startUTF8(b, 2)
	case b >= 0xe0 && b <= 0xef:
		p.startUTF8(b, 3)
	case b >= 0xf0 && b <= 0xf4:
		p.startUTF8(b, 4)
	default:
		p.emit(Action{Kind: KindPrint, Rune: utf8.RuneError})
	}
}

func (p *Parser) startUTF8(b byte, need int) {
	p.utf8Buf[0] = b
	p.utf8Len = 1
	p.utf8Need = need
}

// flushUTF8 replaces an interrupted multi-byte rune with U+FFFD.
func (p *Parser) flushUTF8() {
	if p.utf8Need == 0 {
		return
	}
	p.utf8Len, p.utf8Need = 0, 0
	p.emit(Action{Kind: KindPrint, Rune: utf8.RuneError})
}

// execute handles C0 controls, which act immediately in every state that
// does not collect a string.
func (p *Parser) execute(b byte) {
	switch b {
	case 0x07:
		p.emit(Action{Kind: KindBell})
	case 0x08:
		p.emit(Action{Kind: KindBackspace})
	case 0x09:
		p.emit(Action{Kind: KindTab})
	case 0x0a, 0x0b, 0x0c:
		p.emit(Action{Kind: KindLineFeed})
	case 0x0d:
		p.emit(Action{Kind: KindCarriageReturn})
	case 0x0e:
		p.emit(Action{Kind: KindShiftOut})
	case 0x0f:
		p.emit(Action{Kind: KindShiftIn})
	}
}

func (p *Parser) enterEscape() {
	p.clear()
	p.state = StateEscape
}

func (p *Parser) escape(b byte) {
	switch {
	case b == '[':
		p.clear()
		p.state = StateCsiEntry
	case b == ']':
		p.clear()
		p.state = StateOscString
	case b == 'P':
		p.clear()
		p.state = StateDcsEntry
	case b >= 0x20 && b <= 0x2f:
		p.inter = append(p.inter, b)
		p.state = StateEscapeIntermediate
	case b < 0x20:
		p.execute(b)
	default:
		p.escDispatch(b)
		p.state = StateGround
	}
}

func (p *Parser) escDispatch(b byte) {
	switch b {
	case '7':
		p.emit(Action{Kind: KindSaveCursor})
	case '8':
		p.emit(Action{Kind: KindRestoreCursor})
	case 'D':
		p.emit(Action{Kind: KindIndex})
	case 'E':
		p.emit(Action{Kind: KindNextLine})
	case 'M':
		p.emit(Action{Kind: KindReverseIndex})
	case 'H':
		p.emit(Action{Kind: KindSetTabStop})
	case 'c':
		p.emit(Action{Kind: KindReset})
	case '\\', '=', '>':
		// Stray ST and keypad modes carry no screen state.
	default:
		debugLog.Printf("Parser: Unhandled ESC sequence: %q", b)
	}
}

func (p *Parser) escapeIntermediate(b byte) {
	switch {
	case b >= 0x20 && b <= 0x2f:
		if len(p.inter) >= maxIntermediates {
			p.abort(b)
			return
		}
		p.inter = append(p.inter, b)
	case b >= 0x30 && b <= 0x7e:
		switch p.inter[0] {
		case '(', ')', '*', '+':
			p.emit(Action{Kind: KindDesignateCharset, Marker: p.inter[0], Rune: rune(b)})
		case '#':
			if b == '8' {
				p.emit(Action{Kind: KindAlignmentTest})
			}
		}
		p.clear()
		p.state = StateGround
	case b < 0x20:
		p.execute(b)
	default:
		p.abort(b)
	}
}

func (p *Parser) csiParam(b byte) {
	switch {
	case b >= '0' && b <= '9':
		p.cur = p.cur*10 + int(b-'0')
		if p.cur > maxParamValue {
			p.cur = maxParamValue
		}
		p.hasParams = true
		p.state = StateCsiParam
	case b == ';' || b == ':':
		p.pushParam()
		p.curSub = b == ':'
		p.hasParams = true
		p.state = StateCsiParam
	case b >= '<' && b <= '?':
		if p.state != StateCsiEntry {
			p.abort(b)
			return
		}
		p.marker = b
		p.state = StateCsiParam
	case b >= 0x20 && b <= 0x2f:
		p.inter = append(p.inter, b)
		p.state = StateCsiIntermediate
	case b >= 0x40 && b <= 0x7e:
		p.csiDispatch(b)
	case b < 0x20:
		p.execute(b)
	default:
		p.abort(b)
	}
}

func (p *Parser) csiIntermediate(b byte) {
	switch {
	case b >= 0x20 && b <= 0x2f:
		if len(p.inter) >= maxIntermediates {
			p.abort(b)
			return
		}
		p.inter = append(p.inter, b)
	case b >= 0x40 && b <= 0x7e:
		p.csiDispatch(b)
	case b < 0x20:
		p.execute(b)
	default:
		p.abort(b)
	}
}

// pushParam closes the current parameter. Parameters past maxParams are
// dropped rather than treated as an error.
func (p *Parser) pushParam() {
	if len(p.params) < maxParams {
		if p.curSub {
			p.sub |= 1 << len(p.params)
		}
		p.params = append(p.params, p.cur)
	}
	p.cur = 0
	p.curSub = false
}

func (p *Parser) csiDispatch(final byte) {
	if p.hasParams {
		p.pushParam()
	}
	seq := CSISequence{
		Params:        append([]int(nil), p.params...),
		Sub:           p.sub,
		Marker:        p.marker,
		Intermediates: append([]byte(nil), p.inter...),
		Final:         final,
	}
	p.clear()
	p.state = StateGround

	h, ok := p.catalog[final]
	if !ok {
		debugLog.Printf("Parser: Unhandled CSI sequence: %q, marker: %q, params: %v", final, seq.Marker, seq.Params)
		return
	}
	if a, ok := h(seq); ok {
		p.emit(a)
	}
}

func (p *Parser) appendPayload(b byte) {
	if len(p.payload) < maxPayload {
		p.payload = append(p.payload, b)
	}
}

func (p *Parser) oscString(b byte) {
	switch {
	case b == 0x07:
		p.oscDispatch()
	case b < 0x20:
		// Other C0 bytes inside a string are ignored.
	default:
		p.appendPayload(b)
	}
}

func (p *Parser) oscDispatch() {
	data := p.payload
	p.state = StateGround

	cmdEnd := len(data)
	for i, c := range data {
		if c == ';' {
			cmdEnd = i
			break
		}
	}
	cmd, err := strconv.Atoi(string(data[:cmdEnd]))
	if err != nil {
		debugLog.Printf("Parser: Ignoring malformed OSC %q", data)
		p.clear()
		return
	}
	var value []byte
	if cmdEnd < len(data) {
		value = append([]byte(nil), data[cmdEnd+1:]...)
	}
	p.clear()

	switch cmd {
	case 0, 2:
		p.emit(Action{Kind: KindSetTitle, Payload: value})
	case 1:
		// Icon name only.
	default:
		p.emit(Action{Kind: KindOSC, Params: []int{cmd}, Payload: value})
	}
}

func (p *Parser) dcsEntry(b byte) {
	if b == 0x07 {
		p.dcsDispatch()
		return
	}
	p.appendPayload(b)
}

func (p *Parser) dcsDispatch() {
	payload := append([]byte(nil), p.payload...)
	p.clear()
	p.state = StateGround
	p.emit(Action{Kind: KindDCS, Payload: payload})
}
