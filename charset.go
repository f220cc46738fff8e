package vterm

// CharsetSlot identifies one of the four designatable character set slots.
type CharsetSlot int

const (
	CharsetG0 CharsetSlot = iota
	CharsetG1
	CharsetG2
	CharsetG3
)

// Charset identifies which character-set mapping a slot is designated to.
type Charset int

const (
	CharsetASCII Charset = iota
	CharsetLineDrawing // DEC Special Graphics (ESC ( 0)
	CharsetUK          // ESC ( A
	CharsetDRCS        // soft font loaded via DECDLD, addressed by slot+code
)

// CharsetState tracks G0-G3 designation, the active GL/GR pointers, and a
// pending single shift (SS2/SS3), matching the invoke/designate split VT220
// terminals use: ESC ( /) /* /+ designate a charset into a slot, while SI/SO
// and the single-shift controls select which slot GL currently reads from.
type CharsetState struct {
	Slots   [4]Charset
	GL      CharsetSlot // invoked by SI/SO (locking shift)
	GR      CharsetSlot
	ss      CharsetSlot // slot of the pending single shift, meaningful only while ssArmed
	ssArmed bool
	Drcs    [4]uint32 // DRCS table id loaded into this slot, 0 if none
}

// NewCharsetState returns charset state with all slots at ASCII, GL bound
// to G0, and no single shift pending.
func NewCharsetState() CharsetState {
	return CharsetState{}
}

// Designate assigns cs to the given slot (ESC ( / ) / * / + <final>).
func (c *CharsetState) Designate(slot CharsetSlot, cs Charset) {
	c.Slots[slot] = cs
	c.Drcs[slot] = 0
}

// DesignateDrcs assigns a loaded DRCS table to the given slot.
func (c *CharsetState) DesignateDrcs(slot CharsetSlot, tableID uint32) {
	c.Slots[slot] = CharsetDRCS
	c.Drcs[slot] = tableID
}

// ShiftOut invokes G1 into GL (SO, Ctrl-N).
func (c *CharsetState) ShiftOut() { c.GL = CharsetG1 }

// ShiftIn invokes G0 into GL (SI, Ctrl-O).
func (c *CharsetState) ShiftIn() { c.GL = CharsetG0 }

// SingleShift2 arms a one-character shift to G2 (ESC N).
func (c *CharsetState) SingleShift2() { c.ss, c.ssArmed = CharsetG2, true }

// SingleShift3 arms a one-character shift to G3 (ESC O).
func (c *CharsetState) SingleShift3() { c.ss, c.ssArmed = CharsetG3, true }

// Active returns the charset that the next printed character should be
// translated through, consuming a pending single shift if one is armed.
func (c *CharsetState) Active() (Charset, uint32) {
	slot := c.GL
	if c.ssArmed {
		slot = c.ss
		c.ssArmed = false
	}
	return c.Slots[slot], c.Drcs[slot]
}

// decSpecialGraphics maps ASCII bytes 0x5f-0x7e to the DEC Special Graphics
// (line-drawing) glyph set used by ESC ( 0.
var decSpecialGraphics = map[rune]rune{
	'_': ' ', '`': '◆', 'a': '▒', 'b': '␉',
	'c': '␌', 'd': '␍', 'e': '␊', 'f': '°',
	'g': '±', 'h': '␤', 'i': '␋', 'j': '┘',
	'k': '┐', 'l': '┌', 'm': '└', 'n': '┼',
	'o': '⎺', 'p': '⎻', 'q': '─', 'r': '⎼',
	's': '⎽', 't': '├', 'u': '┤', 'v': '┴',
	'w': '┬', 'x': '│', 'y': '≤', 'z': '≥',
	'{': 'π', '|': '≠', '}': '£', '~': '·',
}

// Translate maps r through cs, returning the glyph that should actually be
// stored in the grid. CharsetLineDrawing remaps 0x5f-0x7e, CharsetUK remaps
// only 0x23 ('#' -> '£'), and every other charset passes r through unchanged.
func Translate(cs Charset, r rune) rune {
	switch cs {
	case CharsetLineDrawing:
		if g, ok := decSpecialGraphics[r]; ok {
			return g
		}
		return r
	case CharsetUK:
		if r == '#' {
			return '£'
		}
		return r
	default:
		return r
	}
}
