package vterm

// CursorStyle determines how the cursor is rendered.
type CursorStyle int

const (
	CursorStyleBlinkingBlock CursorStyle = iota
	CursorStyleSteadyBlock
	CursorStyleBlinkingUnderline
	CursorStyleSteadyUnderline
	CursorStyleBlinkingBar
	CursorStyleSteadyBar
)

// Cursor tracks position, style, visibility, and the pending-wrap flag
// (0-based coordinates). The pending-wrap flag implements DEC's "last
// column" behavior: printing a character in the final column does not wrap
// immediately, it only arms a wrap that takes effect the next time a
// character is printed, so a cursor sitting in the last column can still be
// overwritten in place (e.g. by a backspace-then-print) without an
// intervening blank line appearing.
type Cursor struct {
	Row         int
	Col         int
	Style       CursorStyle
	Visible     bool
	PendingWrap bool
}

// NewCursor creates a cursor at (0, 0) with blinking block style, visible.
func NewCursor() *Cursor {
	return &Cursor{
		Row:     0,
		Col:     0,
		Style:   CursorStyleBlinkingBlock,
		Visible: true,
	}
}

// SavedCursor stores cursor position, pen, origin mode, and charset state
// for restoration by DECRC or on primary/alternate screen switch.
type SavedCursor struct {
	Row        int
	Col        int
	Pen        Pen
	OriginMode bool
	Charsets   CharsetState
}

// SaveCursor captures the restorable portion of terminal state.
func SaveCursor(cur *Cursor, pen Pen, originMode bool, charsets CharsetState) SavedCursor {
	return SavedCursor{
		Row:        cur.Row,
		Col:        cur.Col,
		Pen:        pen,
		OriginMode: originMode,
		Charsets:   charsets,
	}
}
