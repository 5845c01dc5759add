// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: grid/grid.go
// Summary: Screen model mutated by parser actions.
// Usage: Owned by the I/O loop; every mutation goes through Apply or Resize.
// Notes: A Grid is not safe for concurrent use. The loop keeps a single
//   writer and hands renderers deep-copied snapshots instead.

package grid

import (
	"strings"
	"unicode/utf8"

	"github.com/framegrace/texelvt/parser"
)

// Buffer selects one of the two screen buffers.
type Buffer int

const (
	Primary Buffer = iota
	Alternate
)

func (b Buffer) String() string {
	if b == Alternate {
		return "alternate"
	}
	return "primary"
}

// Modes holds the terminal modes that affect the model or the input encoder.
type Modes struct {
	AutoWrap       bool // DECAWM (?7)
	Origin         bool // DECOM (?6)
	Insert         bool // IRM (4)
	NewLine        bool // LNM (20)
	AppCursor      bool // DECCKM (?1)
	BracketedPaste bool // ?2004
	CursorVisible  bool // DECTCEM (?25)
}

func defaultModes() Modes {
	return Modes{AutoWrap: true, CursorVisible: true}
}

// Scrollback receives lines scrolled off the top of the primary buffer.
// Push takes ownership of the slice.
type Scrollback interface {
	Push(line []Cell)
	Clear()
}

type savedCursor struct {
	row, col int
	pen      Pen
	origin   bool
	charsets [2]byte
	shift    int
	wrapNext bool
}

type screen struct {
	cells [][]Cell
	saved *savedCursor
}

// Grid is the in-memory terminal screen: two buffers, a cursor, a pen and the
// mode state needed to interpret actions.
type Grid struct {
	rows, cols int

	screens [2]*screen
	active  Buffer

	row, col int
	wrapNext bool
	pen      Pen

	top, bottom int
	tabs        []bool
	modes       Modes

	// charsets holds the G0/G1 designations; shift selects the one in use.
	charsets [2]byte
	shift    int

	title    string
	replies  []byte
	lastRune rune
	bell     bool
	dirty    bool

	deferredWrap bool
	scrollback   Scrollback
}

// Option configures a Grid.
type Option func(*Grid)

// WithDeferredWrap keeps the cursor on the last column after printing there
// and wraps on the next printable rune, as xterm does.
func WithDeferredWrap() Option {
	return func(g *Grid) { g.deferredWrap = true }
}

// WithScrollback installs a sink for lines leaving the primary buffer.
func WithScrollback(sb Scrollback) Option {
	return func(g *Grid) { g.scrollback = sb }
}

// New creates a rows×cols grid showing the primary buffer.
func New(rows, cols int, opts ...Option) *Grid {
	rows, cols = max(rows, 1), max(cols, 1)
	g := &Grid{rows: rows, cols: cols}
	for _, opt := range opts {
		opt(g)
	}
	g.reset()
	return g
}

func newScreen(rows, cols int) *screen {
	s := &screen{cells: make([][]Cell, rows)}
	for i := range s.cells {
		s.cells[i] = blankRow(cols, BlankCell)
	}
	return s
}

func (g *Grid) reset() {
	g.screens = [2]*screen{newScreen(g.rows, g.cols), newScreen(g.rows, g.cols)}
	g.active = Primary
	g.row, g.col, g.wrapNext = 0, 0, false
	g.pen = DefaultPen
	g.top, g.bottom = 0, g.rows-1
	g.tabs = defaultTabs(g.cols)
	g.modes = defaultModes()
	g.charsets = [2]byte{'B', 'B'}
	g.shift = 0
	g.title = ""
	g.lastRune = 0
	g.dirty = true
}

func (g *Grid) buf() *screen { return g.screens[g.active] }

func (g *Grid) line(row int) []Cell { return g.screens[g.active].cells[row] }

// blank is an erased cell carrying the current background.
func (g *Grid) blank() Cell {
	return Cell{Rune: ' ', FG: DefaultFG, BG: g.pen.BG}
}

// Apply executes one parser action against the model.
func (g *Grid) Apply(a parser.Action) {
	switch a.Kind {
	case parser.KindNone:
		return
	case parser.KindPrint:
		g.print(a.Rune)
	case parser.KindBell:
		g.bell = true
	case parser.KindBackspace:
		g.wrapNext = false
		if g.col > 0 {
			g.col--
		}
	case parser.KindTab:
		g.tabForward(1)
	case parser.KindLineFeed:
		g.lineFeed()
	case parser.KindCarriageReturn:
		g.wrapNext = false
		g.col = 0
	case parser.KindShiftOut:
		g.shift = 1
	case parser.KindShiftIn:
		g.shift = 0
	case parser.KindIndex:
		g.index()
	case parser.KindNextLine:
		g.col = 0
		g.index()
	case parser.KindReverseIndex:
		g.reverseIndex()
	case parser.KindSetTabStop:
		g.tabs[g.col] = true
	case parser.KindSaveCursor:
		g.saveCursor()
	case parser.KindRestoreCursor:
		g.restoreCursor()
	case parser.KindReset:
		g.reset()
	case parser.KindAlignmentTest:
		g.alignmentTest()
	case parser.KindDesignateCharset:
		g.designateCharset(a.Marker, a.Rune)
	case parser.KindCursorMove:
		g.moveCursor(a)
	case parser.KindEraseInDisplay:
		g.eraseInDisplay(a.Param(0, 0))
	case parser.KindEraseInLine:
		g.eraseInLine(a.Param(0, 0))
	case parser.KindEraseChars:
		g.eraseChars(a.Param(0, 1))
	case parser.KindInsertChars:
		g.insertChars(a.Param(0, 1))
	case parser.KindDeleteChars:
		g.deleteChars(a.Param(0, 1))
	case parser.KindInsertLines:
		g.insertLines(a.Param(0, 1))
	case parser.KindDeleteLines:
		g.deleteLines(a.Param(0, 1))
	case parser.KindScrollUp:
		g.scrollUp(a.Param(0, 1))
	case parser.KindScrollDown:
		g.scrollDown(a.Param(0, 1))
	case parser.KindSetAttribute:
		g.handleSGR(a)
	case parser.KindScrollRegion:
		g.setScrollRegion(a.Param(0, 1), a.Param(1, g.rows))
	case parser.KindSetMode:
		g.setModes(a.Marker, a.Params, true)
	case parser.KindResetMode:
		g.setModes(a.Marker, a.Params, false)
	case parser.KindDeviceStatus:
		g.deviceStatus(a.Marker, a.Param(0, 0))
		return
	case parser.KindDeviceAttributes:
		g.deviceAttributes(a.Marker, a.Param(0, 0))
		return
	case parser.KindClearTabStop:
		g.clearTabStop(a.Param(0, 0))
	case parser.KindTabForward:
		g.tabForward(a.Param(0, 1))
	case parser.KindTabBackward:
		g.tabBackward(a.Param(0, 1))
	case parser.KindRepeat:
		g.repeat(a.Param(0, 1))
	case parser.KindSetTitle:
		g.title = strings.ToValidUTF8(string(a.Payload), string(utf8.RuneError))
	default:
		// OSC and DCS strings carry nothing the model keeps.
		return
	}
	g.dirty = true
}

// TakeReplies returns and clears the bytes the model wants sent back to the
// child (device status and attribute reports).
func (g *Grid) TakeReplies() []byte {
	if len(g.replies) == 0 {
		return nil
	}
	out := g.replies
	g.replies = nil
	return out
}

// Size returns the grid dimensions.
func (g *Grid) Size() (rows, cols int) { return g.rows, g.cols }

// Cursor returns the zero-based cursor position.
func (g *Grid) Cursor() (row, col int) { return g.row, g.col }

// CursorVisible reports DECTCEM.
func (g *Grid) CursorVisible() bool { return g.modes.CursorVisible }

// Active reports which buffer is displayed.
func (g *Grid) Active() Buffer { return g.active }

// Modes returns the current mode record.
func (g *Grid) Modes() Modes { return g.modes }

// Pen returns the attributes applied to newly printed cells.
func (g *Grid) Pen() Pen { return g.pen }

// ScrollRegion returns the zero-based inclusive scroll margins.
func (g *Grid) ScrollRegion() (top, bottom int) { return g.top, g.bottom }

// Title returns the last title set through OSC 0 or 2.
func (g *Grid) Title() string { return g.title }

// Cell returns the cell at (row, col) of the active buffer. Out of range
// positions yield a zero Cell.
func (g *Grid) Cell(row, col int) Cell {
	if row < 0 || row >= g.rows || col < 0 || col >= g.cols {
		return Cell{}
	}
	return g.line(row)[col]
}

// Line returns the text of a row of the active buffer without trailing blanks.
func (g *Grid) Line(row int) string {
	if row < 0 || row >= g.rows {
		return ""
	}
	return lineText(g.line(row))
}

// Dirty reports whether anything changed since the last ClearDirty.
func (g *Grid) Dirty() bool { return g.dirty }

// ClearDirty resets the dirty flag and any pending bell.
func (g *Grid) ClearDirty() {
	g.dirty = false
	g.bell = false
}

// Snapshot is an immutable copy of the visible state.
type Snapshot struct {
	Rows, Cols    int
	Cells         [][]Cell
	CursorRow     int
	CursorCol     int
	CursorVisible bool
	Active        Buffer
	Modes         Modes
	Title         string
	// Bell is set when BEL was received since the last ClearDirty.
	Bell bool
}

// Line returns the text of a snapshot row without trailing blanks.
func (s Snapshot) Line(row int) string {
	if row < 0 || row >= len(s.Cells) {
		return ""
	}
	return lineText(s.Cells[row])
}

// Snapshot deep-copies the active buffer and cursor state.
func (g *Grid) Snapshot() Snapshot {
	cells := make([][]Cell, g.rows)
	flat := make([]Cell, g.rows*g.cols)
	for i, row := range g.buf().cells {
		cells[i] = flat[i*g.cols : (i+1)*g.cols : (i+1)*g.cols]
		copy(cells[i], row)
	}
	return Snapshot{
		Rows:          g.rows,
		Cols:          g.cols,
		Cells:         cells,
		CursorRow:     g.row,
		CursorCol:     g.col,
		CursorVisible: g.modes.CursorVisible,
		Active:        g.active,
		Modes:         g.modes,
		Title:         g.title,
		Bell:          g.bell,
	}
}
