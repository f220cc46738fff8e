package vterm

import (
	"fmt"
	"strings"
)

// Key identifies a non-printable key the encoder turns into an escape
// sequence. Printable runes go through EncodeRune instead.
type Key int

const (
	KeyUp Key = iota
	KeyDown
	KeyRight
	KeyLeft
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyInsert
	KeyDelete
	KeyBackspace
	KeyTab
	KeyEnter
	KeyEscape
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
)

// KeyModifiers is a bitmask of modifier keys held during a key or mouse
// event, encoded the way xterm's modifyOtherKeys/CSI-u parameter does:
// Shift=1, Alt=2, Ctrl=4, Meta=8, plus one, so "no modifiers" is 1.
type KeyModifiers int

const (
	ModShift KeyModifiers = 1 << iota
	ModAlt
	ModCtrl
	ModMeta
)

// xtermParam returns the CSI modifier parameter (xterm's ";Pm" suffix
// convention: 1 + bitmask) or 0 if no modifiers are set, since xterm omits
// the parameter entirely for the unmodified case.
func (m KeyModifiers) xtermParam() int {
	if m == 0 {
		return 0
	}
	return int(m) + 1
}

// MouseButton identifies which button a mouse event pertains to.
type MouseButton int

const (
	MouseNone MouseButton = iota
	MouseLeft
	MouseMiddle
	MouseRight
	MouseWheelUp
	MouseWheelDown
)

// MouseEventType distinguishes the phase of a mouse event.
type MouseEventType int

const (
	MousePress MouseEventType = iota
	MouseRelease
	MouseMotion
)

// MouseEvent is one mouse action to encode: a button press/release/motion
// at a 0-based (Row, Col) cell position.
type MouseEvent struct {
	Button MouseButton
	Type   MouseEventType
	Row    int
	Col    int
	Mods   KeyModifiers
}

// InputEncoder turns user input (key presses, mouse events, pasted text,
// and focus changes) into the byte sequences a child process attached to
// the terminal's PTY expects on its input side, honoring whichever modes
// (DECCKM, mouse tracking, bracketed paste, focus reporting) are currently
// set on the associated Terminal.
type InputEncoder struct {
	term *Terminal
}

// NewInputEncoder creates an encoder bound to term. The encoder reads
// term's mode bits on every call, so toggling a mode (e.g. application
// cursor keys) takes effect on the next encoded event without re-creating
// the encoder.
func NewInputEncoder(term *Terminal) *InputEncoder {
	return &InputEncoder{term: term}
}

// EncodeRune encodes a single printable character, applying Ctrl and Alt
// modifiers xterm-style: Ctrl clears bits 6-7 of a letter to produce the
// control code, Alt prefixes ESC.
func (e *InputEncoder) EncodeRune(r rune, mods KeyModifiers) []byte {
	var out []byte

	if mods&ModCtrl != 0 {
		upper := r
		if upper >= 'a' && upper <= 'z' {
			upper -= 'a' - 'A'
		}
		if upper >= '@' && upper <= '_' {
			r = rune(upper & 0x1f)
		}
	}

	if mods&ModAlt != 0 {
		out = append(out, 0x1b)
	}
	return append(out, []byte(string(r))...)
}

// arrowLetter maps an arrow key to its xterm CSI/SS3 final byte.
func arrowLetter(k Key) (byte, bool) {
	switch k {
	case KeyUp:
		return 'A', true
	case KeyDown:
		return 'B', true
	case KeyRight:
		return 'C', true
	case KeyLeft:
		return 'D', true
	}
	return 0, false
}

// functionKeyCSI holds the xterm CSI-~ parameter for keys encoded as
// "ESC [ Pn ~" (Home/End historically vary by terminal; xterm itself emits
// SS3/CSI letters for them, handled separately in EncodeKey).
var functionKeyCSI = map[Key]int{
	KeyInsert:   2,
	KeyDelete:   3,
	KeyPageUp:   5,
	KeyPageDown: 6,
	KeyF5:       15,
	KeyF6:       17,
	KeyF7:       18,
	KeyF8:       19,
	KeyF9:       20,
	KeyF10:      21,
	KeyF11:      23,
	KeyF12:      24,
}

// ss3Letter holds keys xterm encodes as "ESC O letter" in the unmodified
// case (F1-F4).
var ss3Letter = map[Key]byte{
	KeyF1: 'P',
	KeyF2: 'Q',
	KeyF3: 'R',
	KeyF4: 'S',
}

// EncodeKey encodes a non-printable key press, consulting DECCKM
// (ModeCursorKeys) to choose CSI vs. SS3 form for the arrow keys and Home/
// End, and building xterm's modifier-parameter CSI form when a modifier is
// held.
func (e *InputEncoder) EncodeKey(k Key, mods KeyModifiers) []byte {
	switch k {
	case KeyBackspace:
		return []byte{0x7f}
	case KeyTab:
		if mods&ModShift != 0 {
			return []byte("\x1b[Z")
		}
		return []byte{'\t'}
	case KeyEnter:
		return []byte{'\r'}
	case KeyEscape:
		return []byte{0x1b}
	}

	if letter, ok := arrowLetter(k); ok {
		return e.encodeCursorKey(letter, mods)
	}

	switch k {
	case KeyHome:
		return e.encodeCursorKey('H', mods)
	case KeyEnd:
		return e.encodeCursorKey('F', mods)
	}

	if letter, ok := ss3Letter[k]; ok {
		// xterm always encodes unmodified F1-F4 as SS3; a modifier has no
		// slot in the SS3 form, so it forces the CSI ~-form instead.
		if mods == 0 {
			return []byte{0x1b, 'O', letter}
		}
		return e.encodeTilde(ss3AsTilde(letter), mods)
	}

	if n, ok := functionKeyCSI[k]; ok {
		return e.encodeTilde(n, mods)
	}

	return nil
}

// ss3AsTilde maps an SS3 F1-F4 letter to the CSI-~ parameter xterm falls
// back to once a modifier is present (SS3 has no modifier parameter slot).
func ss3AsTilde(letter byte) int {
	switch letter {
	case 'P':
		return 11
	case 'Q':
		return 12
	case 'R':
		return 13
	case 'S':
		return 14
	}
	return 0
}

// encodeCursorKey encodes an arrow key or Home/End. Under DECCKM the
// unmodified form uses SS3 ("ESC O letter"); otherwise, or with any
// modifier, it uses CSI ("ESC [ letter" or "ESC [ 1 ; Pm letter").
func (e *InputEncoder) encodeCursorKey(letter byte, mods KeyModifiers) []byte {
	if mods == 0 {
		if e.term.HasMode(ModeCursorKeys) {
			return []byte{0x1b, 'O', letter}
		}
		return []byte{0x1b, '[', letter}
	}
	return []byte(fmt.Sprintf("\x1b[1;%d%c", mods.xtermParam(), letter))
}

// encodeTilde encodes the "ESC [ Pn ~" and "ESC [ Pn ; Pm ~" forms used for
// Insert/Delete/PageUp/PageDown/F5-F12.
func (e *InputEncoder) encodeTilde(n int, mods KeyModifiers) []byte {
	if mods == 0 {
		return []byte(fmt.Sprintf("\x1b[%d~", n))
	}
	return []byte(fmt.Sprintf("\x1b[%d;%d~", n, mods.xtermParam()))
}

// EncodeMouse encodes a mouse event in whichever form the terminal's mouse
// modes select: no report at all if no tracking mode is set, SGR (1006) if
// ModeSGRMouse is set, otherwise the legacy X10/UTF-8 byte form. Click
// tracking (1000) only reports press/release; cell motion tracking (1002)
// additionally reports motion while a button is held; all-motion tracking
// (1003) reports every motion event regardless of button state.
func (e *InputEncoder) EncodeMouse(ev MouseEvent) []byte {
	switch ev.Type {
	case MouseMotion:
		if !e.term.HasMode(ModeReportAllMouseMotion) && !e.term.HasMode(ModeReportCellMouseMotion) {
			return nil
		}
		if e.term.HasMode(ModeReportCellMouseMotion) && !e.term.HasMode(ModeReportAllMouseMotion) && ev.Button == MouseNone {
			return nil
		}
	default:
		if !e.term.HasMode(ModeReportMouseClicks) &&
			!e.term.HasMode(ModeReportCellMouseMotion) &&
			!e.term.HasMode(ModeReportAllMouseMotion) {
			return nil
		}
	}

	code := mouseButtonCode(ev)
	if e.term.HasMode(ModeSGRMouse) {
		return encodeSGRMouse(code, ev)
	}
	return e.encodeX10Mouse(code, ev)
}

// mouseButtonCode builds xterm's button+modifier bitfield, shared between
// the X10 and SGR encodings. Bit layout: bits 0-1 select the button (3
// means release in the legacy form), bit 5 marks motion, bit 6 marks a
// wheel button, bits 2-4 carry Shift/Meta/Ctrl.
func mouseButtonCode(ev MouseEvent) int {
	var code int
	switch ev.Button {
	case MouseLeft:
		code = 0
	case MouseMiddle:
		code = 1
	case MouseRight:
		code = 2
	case MouseWheelUp:
		code = 0x40
	case MouseWheelDown:
		code = 0x41
	default:
		code = 3
	}

	if ev.Type == MouseMotion {
		code |= 0x20
	}
	if ev.Mods&ModShift != 0 {
		code |= 0x04
	}
	if ev.Mods&ModMeta != 0 {
		code |= 0x08
	}
	if ev.Mods&ModCtrl != 0 {
		code |= 0x10
	}
	return code
}

// encodeX10Mouse encodes the legacy "ESC [ M Cb Cx Cy" form, where
// coordinates are 1-based and offset by 32 to stay in the printable range.
// Release in this form has no button identity, so it always reports button
// code 3.
func (e *InputEncoder) encodeX10Mouse(code int, ev MouseEvent) []byte {
	cb := code
	if ev.Type == MouseRelease {
		cb = (cb &^ 0x03) | 0x03
	}

	cx := ev.Col + 1 + 32
	cy := ev.Row + 1 + 32

	if e.term.HasMode(ModeUTF8Mouse) {
		var b strings.Builder
		b.WriteString("\x1b[M")
		b.WriteRune(rune(cb + 32))
		b.WriteRune(rune(cx))
		b.WriteRune(rune(cy))
		return []byte(b.String())
	}

	return []byte{0x1b, '[', 'M', byte(cb + 32), clampByte(cx), clampByte(cy)}
}

func clampByte(v int) byte {
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return byte(v)
}

// encodeSGRMouse encodes the extended "ESC [ < Cb ; Cx ; Cy M/m" form
// (mode 1006), which reports coordinates as decimal numbers with no 8-bit
// ceiling and uses a trailing 'M' for press/motion and 'm' for release.
func encodeSGRMouse(code int, ev MouseEvent) []byte {
	final := byte('M')
	if ev.Type == MouseRelease {
		final = 'm'
	}
	return []byte(fmt.Sprintf("\x1b[<%d;%d;%d%c", code, ev.Col+1, ev.Row+1, final))
}

// pasteTerminator is the bracketed-paste end marker. If pasted text itself
// contains this sequence, it must be stripped or the child process would
// see the paste end early.
const pasteTerminator = "\x1b[201~"

// EncodePaste wraps data in bracketed-paste markers when ModeBracketedPaste
// is set, stripping any embedded terminator sequence first so a malicious
// or accidental copy of the marker inside the pasted text can't prematurely
// close the bracket. Without bracketed paste mode, data passes through
// unchanged.
func (e *InputEncoder) EncodePaste(data []byte) []byte {
	clean := stripPasteTerminator(data)

	if !e.term.HasMode(ModeBracketedPaste) {
		return clean
	}

	out := make([]byte, 0, len(clean)+len("\x1b[200~")+len(pasteTerminator))
	out = append(out, []byte("\x1b[200~")...)
	out = append(out, clean...)
	out = append(out, []byte(pasteTerminator)...)
	return out
}

func stripPasteTerminator(data []byte) []byte {
	s := string(data)
	if !strings.Contains(s, pasteTerminator) {
		return data
	}
	return []byte(strings.ReplaceAll(s, pasteTerminator, ""))
}

// EncodeFocus encodes a focus-in ("ESC [ I") or focus-out ("ESC [ O")
// event, or nil if ModeReportFocusInOut is not set.
func (e *InputEncoder) EncodeFocus(focused bool) []byte {
	if !e.term.HasMode(ModeReportFocusInOut) {
		return nil
	}
	if focused {
		return []byte("\x1b[I")
	}
	return []byte("\x1b[O")
}
