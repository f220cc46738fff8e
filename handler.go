package vterm

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/png"
	"os"
	"strconv"
	"strings"
)

// oscSpillThreshold is the accumulated-payload size past which an OSC 1337
// File= transfer switches from in-memory buffering to streaming its
// remaining base64 chunks to a temp file, so a multi-megabyte inline image
// doesn't have to be held twice over (once as base64 text, once decoded).
const oscSpillThreshold = 1 << 20

// Reserved negative indices into customColors for the dynamic colors
// queried/set by OSC 10/11/12 (foreground/background/cursor), which don't
// have a palette slot of their own the way OSC 4 indices do.
const (
	colorSlotForeground = -1
	colorSlotBackground = -2
	colorSlotCursor     = -3
)

// --- vtparser.Performer: text and control dispatch ---

// Print writes a character to the buffer at the cursor position, handling
// wide characters, combining marks, line wrapping, insert mode, and
// charset translation.
func (t *Terminal) Print(r rune) {
	if t.middleware != nil && t.middleware.Print != nil {
		t.middleware.Print(r, t.printInternal)
		return
	}
	t.printInternal(r)
}

func (t *Terminal) printInternal(r rune) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cs, drcsID := t.charsets.Active()
	if cs != CharsetDRCS {
		r = Translate(cs, r)
	}

	width := runeWidth(r)
	if width == 0 {
		t.addCombiningMarkLocked(r)
		return
	}

	if t.cursor.PendingWrap {
		t.cursor.PendingWrap = false
		if t.modes&ModeLineWrap != 0 {
			t.activeBuffer.SetWrapped(t.cursor.Row, true)
			t.cursor.Col = 0
			t.cursor.Row++
			t.scrollIfNeeded()
		}
	}

	if t.cursor.Col+width > t.cols {
		if t.autoResize {
			t.activeBuffer.GrowCols(t.cursor.Row, t.cursor.Col+width)
			t.cols = t.activeBuffer.Cols()
		} else if t.modes&ModeLineWrap != 0 {
			t.activeBuffer.SetWrapped(t.cursor.Row, true)
			t.cursor.Col = 0
			t.cursor.Row++
			t.scrollIfNeeded()
		} else if width == 2 {
			return
		} else {
			t.cursor.Col = t.cols - 1
		}
	}

	if t.modes&ModeInsert != 0 {
		t.activeBuffer.InsertBlanks(t.cursor.Row, t.cursor.Col, width)
	}

	if t.cursor.Row < 0 || t.cursor.Row >= t.rows || t.cursor.Col < 0 || t.cursor.Col >= t.cols {
		return
	}

	pen := t.attrs.Pen()
	cell := t.activeBuffer.Cell(t.cursor.Row, t.cursor.Col)
	if cell != nil {
		old := cell.HyperlinkID
		cell.Reset()
		pen.StampCell(cell)
		cell.Rune = r
		cell.Width = uint8(width)
		if cs == CharsetDRCS {
			cell.DrcsID = drcsID
		}
		if old != t.currentHyperlink {
			if old != 0 {
				t.links.Release(old)
			}
			if t.currentHyperlink != 0 {
				t.links.Retain(t.currentHyperlink)
			}
		}
		cell.HyperlinkID = t.currentHyperlink
		if width == 2 {
			cell.SetFlag(CellFlagWideChar)
		}
		t.activeBuffer.MarkDirty(t.cursor.Row, t.cursor.Col)
	}

	t.cursor.Col++

	if width == 2 && t.cursor.Col < t.cols {
		spacer := t.activeBuffer.Cell(t.cursor.Row, t.cursor.Col)
		if spacer != nil {
			spacer.Reset()
			pen.StampCell(spacer)
			spacer.Width = 0
			spacer.SetFlag(CellFlagWideCharSpacer)
			t.activeBuffer.MarkDirty(t.cursor.Row, t.cursor.Col)
		}
		t.cursor.Col++
	}

	if t.cursor.Col >= t.cols {
		t.cursor.Col = t.cols - 1
		if t.modes&ModeLineWrap != 0 && !t.autoResize {
			t.cursor.PendingWrap = true
		}
	}
}

// addCombiningMarkLocked attaches a zero-width rune to the most recently
// printed cell (stepping back over a wide-character spacer if needed).
// Caller must hold t.mu.
func (t *Terminal) addCombiningMarkLocked(r rune) {
	col := t.cursor.Col - 1
	if t.cursor.PendingWrap {
		// the last printed cell is the one the cursor still sits on
		col = t.cursor.Col
	}
	if col < 0 {
		return
	}
	cell := t.activeBuffer.Cell(t.cursor.Row, col)
	if cell != nil && cell.IsWideSpacer() {
		col--
		if col < 0 {
			return
		}
		cell = t.activeBuffer.Cell(t.cursor.Row, col)
	}
	if cell != nil {
		cell.AddMark(r)
		t.activeBuffer.MarkDirty(t.cursor.Row, col)
	}
}

// Execute handles a C0 control byte outside of an escape/control sequence.
func (t *Terminal) Execute(b byte) {
	switch b {
	case 0x07:
		t.Bell()
	case 0x08:
		t.Backspace()
	case 0x09:
		t.Tab(1)
	case 0x0A, 0x0B, 0x0C:
		t.LineFeed()
	case 0x0D:
		t.CarriageReturn()
	case 0x0E:
		t.mu.Lock()
		t.charsets.ShiftOut()
		t.mu.Unlock()
	case 0x0F:
		t.mu.Lock()
		t.charsets.ShiftIn()
		t.mu.Unlock()
	case 0x1A:
		t.Substitute()
	}
}

// intArg returns params[idx] if present and positive, otherwise def. Named
// distinctly from drcs.go's intParam, which serves the same role for DECDLD
// parameter parsing but lives in a different file.
func intArg(params []int, idx, def int) int {
	if idx >= len(params) || params[idx] <= 0 {
		return def
	}
	return params[idx]
}

func clearModeFromParam(p int) ClearMode {
	switch p {
	case 1:
		return ClearModeAbove
	case 2:
		return ClearModeAll
	case 3:
		return ClearModeSaved
	default:
		return ClearModeBelow
	}
}

func lineClearModeFromParam(p int) LineClearMode {
	switch p {
	case 1:
		return LineClearModeLeft
	case 2:
		return LineClearModeAll
	default:
		return LineClearModeRight
	}
}

func tabClearModeFromParam(p int) TabulationClearMode {
	if p == 3 {
		return TabulationClearModeAll
	}
	return TabulationClearModeCurrent
}

// translateMode maps a DECSET/DECRST (private) or SM/RM (ANSI) parameter to
// the corresponding TerminalMode flag.
func translateMode(param int, private bool) (TerminalMode, bool) {
	if private {
		switch param {
		case 1:
			return ModeCursorKeys, true
		case 6:
			return ModeOrigin, true
		case 7:
			return ModeLineWrap, true
		case 12:
			return ModeBlinkingCursor, true
		case 25:
			return ModeShowCursor, true
		case 66:
			return ModeKeypadApplication, true
		case 1000:
			return ModeReportMouseClicks, true
		case 1002:
			return ModeReportCellMouseMotion, true
		case 1003:
			return ModeReportAllMouseMotion, true
		case 1004:
			return ModeReportFocusInOut, true
		case 1005:
			return ModeUTF8Mouse, true
		case 1006:
			return ModeSGRMouse, true
		case 1007:
			return ModeAlternateScroll, true
		case 1042:
			return ModeUrgencyHints, true
		case 1047, 1049:
			return ModeSwapScreenAndSetRestoreCursor, true
		case 2004:
			return ModeBracketedPaste, true
		}
		return 0, false
	}

	switch param {
	case 4:
		return ModeInsert, true
	case 20:
		return ModeLineFeedNewLine, true
	}
	return 0, false
}

// CsiDispatch handles a complete CSI sequence.
func (t *Terminal) CsiDispatch(params []int, paramsTruncated bool, intermediates []byte, final byte) {
	private := len(intermediates) > 0 && intermediates[0] == '?'
	n := func() int {
		if len(params) == 0 || params[0] <= 0 {
			return 1
		}
		return params[0]
	}

	switch final {
	case '@':
		t.InsertBlank(n())
	case 'A':
		t.MoveUp(n())
	case 'B':
		t.MoveDown(n())
	case 'C':
		t.MoveForward(n())
	case 'D':
		t.MoveBackward(n())
	case 'E':
		t.MoveDownCr(n())
	case 'F':
		t.MoveUpCr(n())
	case 'G', '`':
		t.GotoCol(intArg(params, 0, 1) - 1)
	case 'H', 'f':
		t.Goto(intArg(params, 0, 1)-1, intArg(params, 1, 1)-1)
	case 'I':
		t.MoveForwardTabs(n())
	case 'J':
		t.ClearScreen(clearModeFromParam(intArg(params, 0, 0)))
	case 'K':
		t.ClearLine(lineClearModeFromParam(intArg(params, 0, 0)))
	case 'L':
		t.InsertBlankLines(n())
	case 'M':
		t.DeleteLines(n())
	case 'P':
		t.DeleteChars(n())
	case 'S':
		t.ScrollUp(n())
	case 'T':
		t.ScrollDown(n())
	case 'X':
		t.EraseChars(n())
	case 'Z':
		t.MoveBackwardTabs(n())
	case 'a':
		t.MoveForward(n())
	case 'c':
		t.IdentifyTerminal(0)
	case 'd':
		t.GotoLine(intArg(params, 0, 1) - 1)
	case 'e':
		t.MoveDown(n())
	case 'g':
		t.ClearTabs(tabClearModeFromParam(intArg(params, 0, 0)))
	case 'h':
		for _, p := range params {
			if m, ok := translateMode(p, private); ok {
				t.SetMode(m)
			}
		}
	case 'l':
		for _, p := range params {
			if m, ok := translateMode(p, private); ok {
				t.UnsetMode(m)
			}
		}
	case 'm':
		t.mu.Lock()
		t.attrs.Apply(params, nil)
		t.mu.Unlock()
	case 'n':
		t.DeviceStatus(intArg(params, 0, 0))
	case 'q':
		if len(intermediates) > 0 && intermediates[0] == ' ' {
			t.SetCursorStyle(CursorStyle(intArg(params, 0, 0)))
		}
	case 'r':
		t.SetScrollingRegion(intArg(params, 0, 1), intArg(params, 1, 0))
	case 's':
		if !private {
			t.SaveCursorPosition()
		}
	case 't':
		switch intArg(params, 0, 0) {
		case 14:
			t.TextAreaSizePixels()
		case 16:
			t.CellSizePixels()
		case 18:
			t.TextAreaSizeChars()
		}
	case 'u':
		t.RestoreCursorPosition()
	}
}

// EscDispatch handles a complete two-character (or charset-designating)
// escape sequence.
func (t *Terminal) EscDispatch(intermediates []byte, b byte) {
	if len(intermediates) > 0 {
		switch intermediates[0] {
		case '(':
			t.designateCharset(CharsetG0, b)
			return
		case ')':
			t.designateCharset(CharsetG1, b)
			return
		case '*':
			t.designateCharset(CharsetG2, b)
			return
		case '+':
			t.designateCharset(CharsetG3, b)
			return
		}
	}

	switch b {
	case '7':
		t.SaveCursorPosition()
	case '8':
		t.RestoreCursorPosition()
	case 'c':
		t.ResetState()
	case 'D':
		t.mu.Lock()
		t.cursor.Row++
		t.scrollIfNeeded()
		t.mu.Unlock()
	case 'M':
		t.ReverseIndex()
	case 'E':
		t.mu.Lock()
		t.cursor.Col = 0
		t.cursor.Row++
		t.scrollIfNeeded()
		t.mu.Unlock()
	case 'H':
		t.HorizontalTabSet()
	case '=':
		t.SetKeypadApplicationMode()
	case '>':
		t.UnsetKeypadApplicationMode()
	case 'N':
		t.mu.Lock()
		t.charsets.SingleShift2()
		t.mu.Unlock()
	case 'O':
		t.mu.Lock()
		t.charsets.SingleShift3()
		t.mu.Unlock()
	}
}

// designateCharset assigns a charset to a G0-G3 slot (ESC ( / ) / * / +).
// The '}' final byte is a convention this emulator uses to designate the
// most recently DECDLD-loaded soft font into the slot, since real terminals
// pick an arbitrary Dscs code per loaded font rather than a fixed one.
func (t *Terminal) designateCharset(slot CharsetSlot, b byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch b {
	case '0':
		t.charsets.Designate(slot, CharsetLineDrawing)
	case 'A':
		t.charsets.Designate(slot, CharsetUK)
	case '}':
		t.charsets.DesignateDrcs(slot, t.lastDrcsID)
	default:
		t.charsets.Designate(slot, CharsetASCII)
	}
}

// Hook begins a DCS payload (Sixel graphics or DECDLD soft font data).
func (t *Terminal) Hook(params []int, intermediates []byte, final byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dcsParams = append([]int(nil), params...)
	t.dcsIntermediates = append([]byte(nil), intermediates...)
	t.dcsFinal = final
	t.dcsBuf = t.dcsBuf[:0]
}

// Put accumulates one byte of DCS payload.
func (t *Terminal) Put(b byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dcsBuf = append(t.dcsBuf, b)
}

// Unhook dispatches the accumulated DCS payload based on its final byte.
func (t *Terminal) Unhook() {
	t.mu.Lock()
	final := t.dcsFinal
	params := t.dcsParams
	data := append([]byte(nil), t.dcsBuf...)
	t.dcsBuf = nil
	t.mu.Unlock()

	switch final {
	case 'q':
		t.SixelReceived(params, data)
	case '{':
		id := t.drcs.Load(params, data)
		t.mu.Lock()
		t.lastDrcsID = id
		t.mu.Unlock()
	}
}

// OscStart begins accumulation of an OSC string.
func (t *Terminal) OscStart() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.oscBuf = t.oscBuf[:0]
	t.closeOscSpillLocked()
}

// OscPut accumulates one byte of an OSC string. Once a payload is
// recognized as an OSC 1337 File= inline image and has grown past
// oscSpillThreshold, subsequent bytes are streamed to a temp file instead
// of being appended to the in-memory buffer.
func (t *Terminal) OscPut(b byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.oscSpillFile != nil {
		t.oscSpillFile.Write([]byte{b})
		return
	}

	t.oscBuf = append(t.oscBuf, b)

	if len(t.oscBuf) > oscSpillThreshold && strings.HasPrefix(string(t.oscBuf), "1337;File=") {
		f, err := os.CreateTemp("", "vterm-osc1337-*")
		if err != nil {
			return
		}
		if _, err := f.Write(t.oscBuf); err != nil {
			f.Close()
			os.Remove(f.Name())
			return
		}
		t.oscSpillFile = f
		t.oscSpillPath = f.Name()
		t.oscBuf = t.oscBuf[:0]
	}
}

// closeOscSpillLocked releases any spill file left over from an aborted OSC
// sequence. Must be called with t.mu held.
func (t *Terminal) closeOscSpillLocked() {
	if t.oscSpillFile == nil {
		return
	}
	t.oscSpillFile.Close()
	os.Remove(t.oscSpillPath)
	t.oscSpillFile = nil
	t.oscSpillPath = ""
}

// OscEnd dispatches the accumulated OSC string by its numeric code prefix.
// If the payload was spilled to a temp file, it is decoded by streaming
// from disk instead of from memory, and removed once dispatch finishes.
func (t *Terminal) OscEnd() {
	t.mu.Lock()
	spillPath := t.oscSpillPath
	spilled := t.oscSpillFile != nil
	if spilled {
		t.oscSpillFile.Close()
		t.oscSpillFile = nil
		t.oscSpillPath = ""
	}
	data := append([]byte(nil), t.oscBuf...)
	t.oscBuf = nil
	t.mu.Unlock()

	if spilled {
		defer os.Remove(spillPath)
		t.oscDispatchFromFile(spillPath)
		return
	}

	t.oscDispatch(string(data))
}

// --- OSC dispatch ---

func splitOscCode(s string) (int, string, bool) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, "", false
	}
	code, err := strconv.Atoi(s[:i])
	if err != nil {
		return 0, "", false
	}
	rest := ""
	if i < len(s) && s[i] == ';' {
		rest = s[i+1:]
	}
	return code, rest, true
}

func (t *Terminal) oscDispatch(s string) {
	code, rest, ok := splitOscCode(s)
	if !ok {
		return
	}
	switch code {
	case 0, 1, 2:
		t.SetTitle(rest)
	case 4:
		t.dispatchOscSetColor(rest)
	case 7:
		t.SetWorkingDirectory(rest)
	case 8:
		t.dispatchOscHyperlink(rest)
	case 9:
		t.DesktopNotification(&NotificationPayload{PayloadType: "body", Data: []byte(rest)})
	case 10:
		t.dispatchOscDynamicColor(colorSlotForeground, rest)
	case 11:
		t.dispatchOscDynamicColor(colorSlotBackground, rest)
	case 12:
		t.dispatchOscDynamicColor(colorSlotCursor, rest)
	case 52:
		t.dispatchOscClipboard(rest)
	case 99:
		t.dispatchOscKittyNotification(rest)
	case 104:
		t.dispatchOscResetColor(rest)
	case 110:
		t.ResetColor(colorSlotForeground)
	case 111:
		t.ResetColor(colorSlotBackground)
	case 112:
		t.ResetColor(colorSlotCursor)
	case 133:
		t.dispatchOscShellIntegration(rest)
	case 1337:
		t.dispatchOscIterm2(rest)
	}
}

func parseHexComponent(s string) (uint8, bool) {
	if len(s) == 0 {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, false
	}
	bits := len(s) * 4
	if bits > 8 {
		v >>= uint(bits - 8)
	} else if bits < 8 {
		v <<= uint(8 - bits)
	}
	return uint8(v), true
}

// parseColorSpec parses an X11-style "rgb:RRRR/GGGG/BBBB" or "#RRGGBB"
// color specification, as carried by OSC 4/10/11/12.
func parseColorSpec(spec string) (Color, bool) {
	if strings.HasPrefix(spec, "rgb:") {
		parts := strings.Split(spec[4:], "/")
		if len(parts) != 3 {
			return Color{}, false
		}
		r, ok1 := parseHexComponent(parts[0])
		g, ok2 := parseHexComponent(parts[1])
		b, ok3 := parseHexComponent(parts[2])
		if ok1 && ok2 && ok3 {
			return RGB(r, g, b), true
		}
		return Color{}, false
	}
	if strings.HasPrefix(spec, "#") && len(spec) == 7 {
		v, err := strconv.ParseUint(spec[1:], 16, 32)
		if err == nil {
			return RGB(uint8(v>>16), uint8(v>>8), uint8(v)), true
		}
	}
	return Color{}, false
}

func (t *Terminal) resolveQueryColor(c Color) (r, g, b uint8) {
	switch c.Kind {
	case ColorRGB:
		return c.R, c.G, c.B
	case ColorPalette:
		rgba := DefaultPalette[c.Index]
		return rgba.R, rgba.G, rgba.B
	default:
		return DefaultForeground.R, DefaultForeground.G, DefaultForeground.B
	}
}

func (t *Terminal) dispatchOscSetColor(rest string) {
	parts := strings.Split(rest, ";")
	for i := 0; i+1 < len(parts); i += 2 {
		idx, err := strconv.Atoi(parts[i])
		if err != nil {
			continue
		}
		spec := parts[i+1]
		if spec == "?" {
			t.mu.RLock()
			c, ok := t.customColors[idx]
			t.mu.RUnlock()
			if !ok && idx >= 0 && idx < 256 {
				c = Palette(uint8(idx))
			}
			r, g, b := t.resolveQueryColor(c)
			t.writeResponseString(fmt.Sprintf("\x1b]4;%d;rgb:%02x%02x/%02x%02x/%02x%02x\x1b\\", idx, r, r, g, g, b, b))
			continue
		}
		if c, ok := parseColorSpec(spec); ok {
			t.SetColor(idx, c)
		}
	}
}

func (t *Terminal) dispatchOscDynamicColor(slot int, spec string) {
	if spec == "?" {
		t.mu.RLock()
		c, ok := t.customColors[slot]
		t.mu.RUnlock()

		var r, g, b uint8
		if ok {
			r, g, b = t.resolveQueryColor(c)
		} else {
			var rgba color.RGBA
			switch slot {
			case colorSlotForeground:
				rgba = DefaultForeground
			case colorSlotBackground:
				rgba = DefaultBackground
			default:
				rgba = DefaultCursorColor
			}
			r, g, b = rgba.R, rgba.G, rgba.B
		}

		code := 10
		switch slot {
		case colorSlotBackground:
			code = 11
		case colorSlotCursor:
			code = 12
		}
		t.writeResponseString(fmt.Sprintf("\x1b]%d;rgb:%02x%02x/%02x%02x/%02x%02x\x1b\\", code, r, r, g, g, b, b))
		return
	}
	if c, ok := parseColorSpec(spec); ok {
		t.SetColor(slot, c)
	}
}

func (t *Terminal) dispatchOscResetColor(rest string) {
	if rest == "" {
		t.mu.Lock()
		t.customColors = make(map[int]Color)
		t.mu.Unlock()
		return
	}
	for _, p := range strings.Split(rest, ";") {
		if idx, err := strconv.Atoi(p); err == nil {
			t.ResetColor(idx)
		}
	}
}

func (t *Terminal) dispatchOscHyperlink(rest string) {
	paramStr, uri, _ := strings.Cut(rest, ";")
	if uri == "" {
		t.SetHyperlink(nil)
		return
	}
	id := ""
	for _, kv := range strings.Split(paramStr, ":") {
		if k, v, found := strings.Cut(kv, "="); found && k == "id" {
			id = v
		}
	}
	t.SetHyperlink(&Hyperlink{URI: uri, ID: id})
}

func (t *Terminal) dispatchOscClipboard(rest string) {
	sel, data, found := strings.Cut(rest, ";")
	if !found || sel == "" {
		return
	}
	clipboard := sel[0]
	if data == "?" {
		t.ClipboardLoad(clipboard, "\x1b\\")
		return
	}
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return
	}
	t.ClipboardStore(clipboard, decoded)
}

func (t *Terminal) dispatchOscShellIntegration(rest string) {
	if rest == "" {
		return
	}
	switch rest[0] {
	case 'A':
		t.ShellIntegrationMark(PromptStart, -1)
	case 'B':
		t.ShellIntegrationMark(CommandStart, -1)
	case 'C':
		t.ShellIntegrationMark(CommandExecuted, -1)
	case 'D':
		exitCode := -1
		if _, arg, found := strings.Cut(rest, ";"); found {
			if v, err := strconv.Atoi(arg); err == nil {
				exitCode = v
			}
		}
		t.ShellIntegrationMark(CommandFinished, exitCode)
	}
}

// dispatchOscKittyNotification parses an OSC 99 desktop notification:
// colon-separated "key=value" metadata, a ';', then the payload text.
func (t *Terminal) dispatchOscKittyNotification(rest string) {
	meta, payload, _ := strings.Cut(rest, ";")
	p := &NotificationPayload{Data: []byte(payload)}
	for _, kv := range strings.Split(meta, ":") {
		k, v, found := strings.Cut(kv, "=")
		if !found {
			continue
		}
		switch k {
		case "i":
			p.ID = v
		case "d":
			p.Done = v == "1"
		case "p":
			p.PayloadType = v
		case "e":
			p.Encoding = v
		case "a":
			p.Actions = strings.Split(v, ",")
		case "w":
			p.TrackClose = v == "1"
		case "o":
			p.Occasion = v
		}
	}
	if p.Encoding == "1" {
		if decoded, err := base64.StdEncoding.DecodeString(payload); err == nil {
			p.Data = decoded
		}
	}
	t.DesktopNotification(p)
}

// dispatchOscIterm2 handles the two iTerm2 proprietary OSC 1337 forms this
// emulator supports: SetUserVar and the File= inline image protocol.
func (t *Terminal) dispatchOscIterm2(rest string) {
	key, value, found := strings.Cut(rest, "=")
	if !found {
		return
	}
	switch key {
	case "SetUserVar":
		name, b64, found := strings.Cut(value, "=")
		if !found {
			return
		}
		decoded, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return
		}
		t.SetUserVar(name, string(decoded))
	case "File":
		if t.Iterm2Enabled() {
			t.handleIterm2File(value)
		}
	}
}

func parseIterm2Dimension(v string) int {
	v = strings.TrimSuffix(v, "px")
	v = strings.TrimSuffix(v, "%")
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// handleIterm2File decodes an inline image transmitted via OSC 1337 File=
// and places it at the cursor, the same way sixelReceivedInternal does for
// Sixel graphics. Only inline=1 transfers are displayed; other File=
// transfers are a download hint this headless emulator has no use for.
// Decoding uses the standard image/png package: no decoder in the retrieval
// pack covers arbitrary PNG/GIF/JPEG payloads, so this is one of the few
// ambient concerns carried on the standard library rather than a pack
// dependency (recorded in DESIGN.md).
func (t *Terminal) handleIterm2File(spec string) {
	params, data, found := strings.Cut(spec, ":")
	if !found {
		return
	}

	width, height, inline := parseIterm2Params(params)
	if !inline {
		return
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return
	}

	t.placeIterm2Image(img, width, height)
}

// parseIterm2Params parses the semicolon-separated key=value parameter list
// that precedes the ':' in an OSC 1337 File= payload.
func parseIterm2Params(params string) (width, height int, inline bool) {
	for _, kv := range strings.Split(params, ";") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		switch k {
		case "width":
			width = parseIterm2Dimension(v)
		case "height":
			height = parseIterm2Dimension(v)
		case "inline":
			inline = v == "1"
		}
	}
	return width, height, inline
}

// oscDispatchFromFile decodes an OSC 1337 File= payload that was streamed
// to a temp file because it crossed oscSpillThreshold while accumulating.
// The header (everything up to the first ':') is small and read into
// memory as usual; the base64 body is decoded straight off disk through a
// streaming base64 reader, so the whole transfer is never held in memory
// as text at once.
func (t *Terminal) oscDispatchFromFile(path string) {
	if !t.Iterm2Enabled() {
		return
	}

	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	br := bufio.NewReader(f)
	header, err := br.ReadString(':')
	if err != nil {
		return
	}
	header = strings.TrimSuffix(header, ":")

	code, rest, ok := splitOscCode(header)
	if !ok || code != 1337 {
		return
	}
	key, params, found := strings.Cut(rest, "=")
	if !found || key != "File" {
		return
	}

	width, height, inline := parseIterm2Params(params)
	if !inline {
		return
	}

	img, _, err := image.Decode(base64.NewDecoder(base64.StdEncoding, br))
	if err != nil {
		return
	}

	t.placeIterm2Image(img, width, height)
}

// placeIterm2Image stores a decoded iTerm2 inline image and places it at
// the cursor, the same way sixelReceivedInternal does for Sixel graphics.
// Decoding itself (in handleIterm2File and oscDispatchFromFile) uses the
// standard image/png package: no decoder in the retrieval pack covers
// arbitrary PNG/GIF/JPEG payloads, so this is one of the few ambient
// concerns carried on the standard library rather than a pack dependency
// (recorded in DESIGN.md).
func (t *Terminal) placeIterm2Image(img image.Image, width, height int) {
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)

	imgW := uint32(bounds.Dx())
	imgH := uint32(bounds.Dy())
	if imgW == 0 || imgH == 0 {
		return
	}
	imageID := t.images.Store(imgW, imgH, rgba.Pix)

	cellW, cellH := t.getCellSizePixels()
	cols := width
	rows := height
	if cols == 0 {
		cols = int((imgW + uint32(cellW) - 1) / uint32(cellW))
	}
	if rows == 0 {
		rows = int((imgH + uint32(cellH) - 1) / uint32(cellH))
	}

	t.mu.Lock()
	curRow, curCol := t.cursor.Row, t.cursor.Col
	t.mu.Unlock()

	placement := &ImagePlacement{
		ImageID: imageID,
		Row:     curRow,
		Col:     curCol,
		Cols:    cols,
		Rows:    rows,
		SrcW:    imgW,
		SrcH:    imgH,
	}
	placementID := t.images.Place(placement)
	t.assignImageToCellsLocked(placementID, placement)

	t.mu.Lock()
	t.cursor.Row += rows
	if t.cursor.Row >= t.rows {
		t.cursor.Row = t.rows - 1
	}
	t.mu.Unlock()
}

// --- Sixel graphics (DCS q) ---

// SixelReceived decodes a complete Sixel DCS payload and places the
// resulting image at the cursor, first scrolling the screen up if the image
// would otherwise extend past the bottom row.
func (t *Terminal) SixelReceived(params []int, data []byte) {
	if t.middleware != nil && t.middleware.SixelReceived != nil {
		t.middleware.SixelReceived(params, data, t.sixelReceivedInternal)
		return
	}
	t.sixelReceivedInternal(params, data)
}

func (t *Terminal) sixelReceivedInternal(params []int, data []byte) {
	if !t.SixelEnabled() {
		return
	}

	p := make([]int64, len(params))
	for i, v := range params {
		p[i] = int64(v)
	}

	img, err := ParseSixel(p, data)
	if err != nil || img.Width == 0 || img.Height == 0 {
		return
	}

	imageID := t.images.Store(img.Width, img.Height, img.Data)
	cellW, cellH := t.getCellSizePixels()
	cols := int((img.Width + uint32(cellW) - 1) / uint32(cellW))
	rows := int((img.Height + uint32(cellH) - 1) / uint32(cellH))

	t.mu.Lock()
	curRow, curCol := t.cursor.Row, t.cursor.Col
	if excess := curRow + rows - t.rows; excess > 0 && rows <= t.rows {
		t.activeBuffer.ScrollUp(0, t.rows, excess)
		curRow -= excess
	}
	t.mu.Unlock()

	placement := &ImagePlacement{
		ImageID: imageID,
		Row:     curRow,
		Col:     curCol,
		Cols:    cols,
		Rows:    rows,
		SrcW:    img.Width,
		SrcH:    img.Height,
	}
	placementID := t.images.Place(placement)
	t.assignImageToCellsLocked(placementID, placement)

	t.mu.Lock()
	t.cursor.Row += rows
	if t.cursor.Row >= t.rows {
		t.cursor.Row = t.rows - 1
	}
	t.mu.Unlock()
}

// getCellSizePixels returns the cell size in pixels, from the SizeProvider
// if one is set, otherwise a 10x20 default.
func (t *Terminal) getCellSizePixels() (width, height int) {
	t.mu.RLock()
	sp := t.sizeProvider
	t.mu.RUnlock()
	if sp != nil {
		w, h := sp.CellSizePixels()
		if w > 0 && h > 0 {
			return w, h
		}
	}
	return 10, 20
}

// assignImageToCellsLocked marks every cell a placement covers with the
// image placeholder glyph and the placement id, so text-only consumers see
// a stand-in instead of stale text underneath the image.
func (t *Terminal) assignImageToCellsLocked(placementID uint32, p *ImagePlacement) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for row := 0; row < p.Rows; row++ {
		for col := 0; col < p.Cols; col++ {
			cellRow := p.Row + row
			cellCol := p.Col + col
			if cellRow < 0 || cellRow >= t.rows || cellCol < 0 || cellCol >= t.cols {
				continue
			}
			cell := t.activeBuffer.Cell(cellRow, cellCol)
			if cell != nil {
				cell.Reset()
				cell.Rune = ImagePlaceholderChar
				cell.Width = 1
				cell.ImagePlacementID = placementID
				cell.MarkDirty()
			}
		}
	}
}

// --- Plain C0/control methods (not middleware-wrapped) ---

// Backspace moves the cursor left one column, stopping at column 0.
func (t *Terminal) Backspace() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cursor.PendingWrap = false
	if t.cursor.Col > 0 {
		t.cursor.Col--
	}
}

// CarriageReturn moves the cursor to column 0 of the current row.
func (t *Terminal) CarriageReturn() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cursor.PendingWrap = false
	t.cursor.Col = 0
}

// LineFeed moves the cursor down one row, scrolling if needed. If
// ModeLineFeedNewLine is set, also moves to column 0.
func (t *Terminal) LineFeed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.activeBuffer.SetWrapped(t.cursor.Row, false)
	if t.modes&ModeLineFeedNewLine != 0 {
		t.cursor.Col = 0
	}
	t.cursor.Row++
	t.scrollIfNeeded()
}

// GotoCol moves the cursor to the given column, keeping the current row.
func (t *Terminal) GotoCol(col int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cursor.Col = clamp(col, 0, t.cols-1)
}

// GotoLine moves the cursor to the given row, honoring origin mode.
func (t *Terminal) GotoLine(row int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	row = t.effectiveRow(row)
	t.cursor.Row = clamp(row, 0, t.rows-1)
}

// MoveDownCr moves the cursor down n rows and to column 0.
func (t *Terminal) MoveDownCr(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cursor.Row = clamp(t.cursor.Row+n, 0, t.rows-1)
	t.cursor.Col = 0
}

// MoveUpCr moves the cursor up n rows and to column 0.
func (t *Terminal) MoveUpCr(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cursor.Row = clamp(t.cursor.Row-n, 0, t.rows-1)
	t.cursor.Col = 0
}

// MoveForwardTabs moves the cursor right to the next n tab stops.
func (t *Terminal) MoveForwardTabs(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := 0; i < n; i++ {
		t.cursor.Col = t.activeBuffer.NextTabStop(t.cursor.Col)
	}
}

// MoveBackwardTabs moves the cursor left to the previous n tab stops.
func (t *Terminal) MoveBackwardTabs(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := 0; i < n; i++ {
		t.cursor.Col = t.activeBuffer.PrevTabStop(t.cursor.Col)
	}
}

// Decaln fills the entire screen with 'E' characters (DEC screen alignment test).
func (t *Terminal) Decaln() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.activeBuffer.FillWithE()
}

// DeviceStatus sends a device status report: ready (n=5) or cursor position (n=6).
func (t *Terminal) DeviceStatus(n int) {
	t.mu.RLock()
	row, col := t.cursor.Row, t.cursor.Col
	t.mu.RUnlock()

	switch n {
	case 5:
		t.writeResponseString("\x1b[0n")
	case 6:
		t.writeResponseString(fmt.Sprintf("\x1b[%d;%dR", row+1, col+1))
	}
}

// IdentifyTerminal sends a terminal identification response (VT220, no options).
func (t *Terminal) IdentifyTerminal(b byte) {
	t.writeResponseString("\x1b[?62;c")
}

// Substitute replaces the character at the cursor with '?' (error indicator).
func (t *Terminal) Substitute() {
	t.mu.Lock()
	defer t.mu.Unlock()
	cell := t.activeBuffer.Cell(t.cursor.Row, t.cursor.Col)
	if cell != nil {
		cell.Rune = '?'
	}
}

// TextAreaSizeChars reports the terminal size in character cells (CSI 18 t response).
func (t *Terminal) TextAreaSizeChars() {
	t.mu.RLock()
	rows, cols := t.rows, t.cols
	t.mu.RUnlock()
	t.writeResponseString(fmt.Sprintf("\x1b[8;%d;%dt", rows, cols))
}

// TextAreaSizePixels reports the terminal size in pixels (CSI 14 t response), assuming 10x20 cells.
func (t *Terminal) TextAreaSizePixels() {
	t.mu.RLock()
	rows, cols := t.rows, t.cols
	t.mu.RUnlock()
	t.writeResponseString(fmt.Sprintf("\x1b[4;%d;%dt", rows*20, cols*10))
}

// CellSizePixels reports cell dimensions in pixels (CSI 16 t response).
func (t *Terminal) CellSizePixels() {
	cellWidth, cellHeight := t.getCellSizePixels()
	t.writeResponseString(fmt.Sprintf("\x1b[6;%d;%dt", cellHeight, cellWidth))
}

// SetActiveCharset binds GL to one of the four charset slots (locking shift
// LS0-LS3). SI/SO (Execute 0x0F/0x0E) cover LS0/LS1; this covers LS2/LS3 and
// lets callers address any slot directly.
func (t *Terminal) SetActiveCharset(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch n {
	case 0:
		t.charsets.GL = CharsetG0
	case 1:
		t.charsets.GL = CharsetG1
	case 2:
		t.charsets.GL = CharsetG2
	case 3:
		t.charsets.GL = CharsetG3
	}
}

// SetKeypadApplicationMode enables application keypad mode (DECKPAM).
func (t *Terminal) SetKeypadApplicationMode() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.modes |= ModeKeypadApplication
}

// UnsetKeypadApplicationMode disables application keypad mode (DECKPNM).
func (t *Terminal) UnsetKeypadApplicationMode() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.modes &^= ModeKeypadApplication
}

// --- Middleware-wrapped methods ---

// Bell triggers the bell provider, if one is configured.
func (t *Terminal) Bell() {
	if t.middleware != nil && t.middleware.Bell != nil {
		t.middleware.Bell(t.bellInternal)
		return
	}
	t.bellInternal()
}

func (t *Terminal) bellInternal() {
	t.mu.RLock()
	provider := t.bellProvider
	t.mu.RUnlock()
	if provider != nil {
		provider.Ring()
	}
}

// Tab moves the cursor right to the next n tab stops.
func (t *Terminal) Tab(n int) {
	if t.middleware != nil && t.middleware.Tab != nil {
		t.middleware.Tab(n, t.tabInternal)
		return
	}
	t.tabInternal(n)
}

func (t *Terminal) tabInternal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := 0; i < n; i++ {
		t.cursor.Col = t.activeBuffer.NextTabStop(t.cursor.Col)
	}
}

// ClearLine clears portions of the current line.
func (t *Terminal) ClearLine(mode LineClearMode) {
	if t.middleware != nil && t.middleware.ClearLine != nil {
		t.middleware.ClearLine(mode, t.clearLineInternal)
		return
	}
	t.clearLineInternal(mode)
}

func (t *Terminal) clearLineInternal(mode LineClearMode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch mode {
	case LineClearModeRight:
		t.activeBuffer.ClearRowRange(t.cursor.Row, t.cursor.Col, t.cols)
	case LineClearModeLeft:
		t.activeBuffer.ClearRowRange(t.cursor.Row, 0, t.cursor.Col+1)
	case LineClearModeAll:
		t.activeBuffer.ClearRow(t.cursor.Row)
	}
}

// ClearScreen clears screen regions and releases any image placements the
// cleared region covered.
func (t *Terminal) ClearScreen(mode ClearMode) {
	if t.middleware != nil && t.middleware.ClearScreen != nil {
		t.middleware.ClearScreen(mode, t.clearScreenInternal)
		return
	}
	t.clearScreenInternal(mode)
}

func (t *Terminal) clearScreenInternal(mode ClearMode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch mode {
	case ClearModeBelow:
		t.activeBuffer.ClearRowRange(t.cursor.Row, t.cursor.Col, t.cols)
		for row := t.cursor.Row + 1; row < t.rows; row++ {
			t.activeBuffer.ClearRow(row)
		}
		t.images.DeletePlacementsBelow(t.cursor.Row)
	case ClearModeAbove:
		for row := 0; row < t.cursor.Row; row++ {
			t.activeBuffer.ClearRow(row)
		}
		t.activeBuffer.ClearRowRange(t.cursor.Row, 0, t.cursor.Col+1)
		t.images.DeletePlacementsAbove(t.cursor.Row)
	case ClearModeAll:
		t.activeBuffer.ClearAll()
		t.images.ClearPlacements()
	case ClearModeSaved:
		t.activeBuffer.ClearScrollback()
	}
}

// ClearTabs removes tab stops at the current column, or all of them.
func (t *Terminal) ClearTabs(mode TabulationClearMode) {
	if t.middleware != nil && t.middleware.ClearTabs != nil {
		t.middleware.ClearTabs(mode, t.clearTabsInternal)
		return
	}
	t.clearTabsInternal(mode)
}

func (t *Terminal) clearTabsInternal(mode TabulationClearMode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch mode {
	case TabulationClearModeCurrent:
		t.activeBuffer.ClearTabStop(t.cursor.Col)
	case TabulationClearModeAll:
		t.activeBuffer.ClearAllTabStops()
	}
}

// Goto moves the cursor to (row, col), adjusting for origin mode.
func (t *Terminal) Goto(row, col int) {
	if t.middleware != nil && t.middleware.Goto != nil {
		t.middleware.Goto(row, col, t.gotoInternal)
		return
	}
	t.gotoInternal(row, col)
}

func (t *Terminal) gotoInternal(row, col int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	row = t.effectiveRow(row)
	t.cursor.Row = clamp(row, 0, t.rows-1)
	t.cursor.Col = clamp(col, 0, t.cols-1)
}

// MoveUp moves the cursor up n rows, stopping at row 0.
func (t *Terminal) MoveUp(n int) {
	if t.middleware != nil && t.middleware.MoveUp != nil {
		t.middleware.MoveUp(n, t.moveUpInternal)
		return
	}
	t.moveUpInternal(n)
}

func (t *Terminal) moveUpInternal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cursor.Row = clamp(t.cursor.Row-n, 0, t.rows-1)
}

// MoveDown moves the cursor down n rows, stopping at the last row.
func (t *Terminal) MoveDown(n int) {
	if t.middleware != nil && t.middleware.MoveDown != nil {
		t.middleware.MoveDown(n, t.moveDownInternal)
		return
	}
	t.moveDownInternal(n)
}

func (t *Terminal) moveDownInternal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cursor.Row = clamp(t.cursor.Row+n, 0, t.rows-1)
}

// MoveForward moves the cursor right n columns, stopping at the last column.
func (t *Terminal) MoveForward(n int) {
	if t.middleware != nil && t.middleware.MoveForward != nil {
		t.middleware.MoveForward(n, t.moveForwardInternal)
		return
	}
	t.moveForwardInternal(n)
}

func (t *Terminal) moveForwardInternal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cursor.Col = clamp(t.cursor.Col+n, 0, t.cols-1)
}

// MoveBackward moves the cursor left n columns, stopping at column 0.
func (t *Terminal) MoveBackward(n int) {
	if t.middleware != nil && t.middleware.MoveBackward != nil {
		t.middleware.MoveBackward(n, t.moveBackwardInternal)
		return
	}
	t.moveBackwardInternal(n)
}

func (t *Terminal) moveBackwardInternal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cursor.Col = clamp(t.cursor.Col-n, 0, t.cols-1)
}

// InsertBlank inserts n blank cells at the cursor, shifting existing characters right.
func (t *Terminal) InsertBlank(n int) {
	if t.middleware != nil && t.middleware.InsertBlank != nil {
		t.middleware.InsertBlank(n, t.insertBlankInternal)
		return
	}
	t.insertBlankInternal(n)
}

func (t *Terminal) insertBlankInternal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.activeBuffer.InsertBlanks(t.cursor.Row, t.cursor.Col, n)
}

// InsertBlankLines inserts n blank lines at the cursor within the scroll region.
func (t *Terminal) InsertBlankLines(n int) {
	if t.middleware != nil && t.middleware.InsertBlankLines != nil {
		t.middleware.InsertBlankLines(n, t.insertBlankLinesInternal)
		return
	}
	t.insertBlankLinesInternal(n)
}

func (t *Terminal) insertBlankLinesInternal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cursor.Row >= t.scrollTop && t.cursor.Row < t.scrollBottom {
		t.activeBuffer.InsertLines(t.cursor.Row, n, t.scrollBottom)
	}
}

// DeleteChars removes n characters at the cursor, shifting remaining characters left.
func (t *Terminal) DeleteChars(n int) {
	if t.middleware != nil && t.middleware.DeleteChars != nil {
		t.middleware.DeleteChars(n, t.deleteCharsInternal)
		return
	}
	t.deleteCharsInternal(n)
}

func (t *Terminal) deleteCharsInternal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.activeBuffer.DeleteChars(t.cursor.Row, t.cursor.Col, n)
}

// DeleteLines removes n lines at the cursor within the scroll region.
func (t *Terminal) DeleteLines(n int) {
	if t.middleware != nil && t.middleware.DeleteLines != nil {
		t.middleware.DeleteLines(n, t.deleteLinesInternal)
		return
	}
	t.deleteLinesInternal(n)
}

func (t *Terminal) deleteLinesInternal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cursor.Row >= t.scrollTop && t.cursor.Row < t.scrollBottom {
		t.activeBuffer.DeleteLines(t.cursor.Row, n, t.scrollBottom)
	}
}

// EraseChars resets n characters at the cursor to the default blank cell, without shifting.
func (t *Terminal) EraseChars(n int) {
	if t.middleware != nil && t.middleware.EraseChars != nil {
		t.middleware.EraseChars(n, t.eraseCharsInternal)
		return
	}
	t.eraseCharsInternal(n)
}

func (t *Terminal) eraseCharsInternal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := 0; i < n && t.cursor.Col+i < t.cols; i++ {
		cell := t.activeBuffer.Cell(t.cursor.Row, t.cursor.Col+i)
		if cell != nil {
			cell.Reset()
		}
	}
}

// ScrollUp shifts lines up within the scroll region, pushing top lines to scrollback if enabled.
func (t *Terminal) ScrollUp(n int) {
	if t.middleware != nil && t.middleware.ScrollUp != nil {
		t.middleware.ScrollUp(n, t.scrollUpInternal)
		return
	}
	t.scrollUpInternal(n)
}

func (t *Terminal) scrollUpInternal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.activeBuffer.ScrollUp(t.scrollTop, t.scrollBottom, n)
}

// ScrollDown shifts lines down within the scroll region, clearing top lines.
func (t *Terminal) ScrollDown(n int) {
	if t.middleware != nil && t.middleware.ScrollDown != nil {
		t.middleware.ScrollDown(n, t.scrollDownInternal)
		return
	}
	t.scrollDownInternal(n)
}

func (t *Terminal) scrollDownInternal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.activeBuffer.ScrollDown(t.scrollTop, t.scrollBottom, n)
}

// SetScrollingRegion sets the scroll boundaries (1-based), moving the cursor to home.
func (t *Terminal) SetScrollingRegion(top, bottom int) {
	if t.middleware != nil && t.middleware.SetScrollingRegion != nil {
		t.middleware.SetScrollingRegion(top, bottom, t.setScrollingRegionInternal)
		return
	}
	t.setScrollingRegionInternal(top, bottom)
}

func (t *Terminal) setScrollingRegionInternal(top, bottom int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	top--
	if top < 0 {
		top = 0
	}
	if bottom <= 0 || bottom > t.rows {
		bottom = t.rows
	}
	if top >= bottom {
		return
	}

	t.scrollTop = top
	t.scrollBottom = bottom

	if t.modes&ModeOrigin != 0 {
		t.cursor.Row = t.scrollTop
	} else {
		t.cursor.Row = 0
	}
	t.cursor.Col = 0
}

// SetMode enables a terminal mode flag.
func (t *Terminal) SetMode(mode TerminalMode) {
	if t.middleware != nil && t.middleware.SetMode != nil {
		t.middleware.SetMode(mode, t.setModeInternal)
		return
	}
	t.setModeInternal(mode)
}

func (t *Terminal) setModeInternal(mode TerminalMode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setModeLocked(mode, true)
}

// UnsetMode disables a terminal mode flag.
func (t *Terminal) UnsetMode(mode TerminalMode) {
	if t.middleware != nil && t.middleware.UnsetMode != nil {
		t.middleware.UnsetMode(mode, t.unsetModeInternal)
		return
	}
	t.unsetModeInternal(mode)
}

func (t *Terminal) unsetModeInternal(mode TerminalMode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setModeLocked(mode, false)
}

// setModeLocked sets or unsets a terminal mode, applying any side effects
// (origin mode repositions the cursor, the alternate-screen mode swaps
// buffers and clears stale image placements). Caller must hold t.mu.
func (t *Terminal) setModeLocked(mode TerminalMode, set bool) {
	switch mode {
	case ModeOrigin:
		if set {
			t.cursor.Row = t.scrollTop
			t.cursor.Col = 0
		}
	case ModeShowCursor:
		t.cursor.Visible = set
	case ModeSwapScreenAndSetRestoreCursor:
		if set {
			t.saveCursorPositionLocked()
			t.activeBuffer = t.alternateBuffer
			t.activeBuffer.ClearAll()
			t.images.ClearPlacements()
		} else {
			t.activeBuffer = t.primaryBuffer
			t.restoreCursorPositionLocked()
			t.images.ClearPlacements()
		}
	}

	if set {
		t.modes |= mode
	} else {
		t.modes &^= mode
	}
}

// SetTitle sets the window title (OSC 0/1/2).
func (t *Terminal) SetTitle(title string) {
	if t.middleware != nil && t.middleware.SetTitle != nil {
		t.middleware.SetTitle(title, t.setTitleInternal)
		return
	}
	t.setTitleInternal(title)
}

func (t *Terminal) setTitleInternal(title string) {
	t.mu.Lock()
	t.title = title
	provider := t.titleProvider
	t.mu.Unlock()
	if provider != nil {
		provider.SetTitle(title)
	}
}

// SetCursorStyle changes the cursor rendering style.
func (t *Terminal) SetCursorStyle(style CursorStyle) {
	if t.middleware != nil && t.middleware.SetCursorStyle != nil {
		t.middleware.SetCursorStyle(style, t.setCursorStyleInternal)
		return
	}
	t.setCursorStyleInternal(style)
}

func (t *Terminal) setCursorStyleInternal(style CursorStyle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cursor.Style = style
}

// SaveCursorPosition saves cursor position, pen, origin mode, and charset state (DECSC).
func (t *Terminal) SaveCursorPosition() {
	if t.middleware != nil && t.middleware.SaveCursorPosition != nil {
		t.middleware.SaveCursorPosition(t.saveCursorPositionInternal)
		return
	}
	t.saveCursorPositionInternal()
}

func (t *Terminal) saveCursorPositionInternal() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.saveCursorPositionLocked()
}

func (t *Terminal) saveCursorPositionLocked() {
	sc := SaveCursor(t.cursor, t.attrs.Pen(), t.modes&ModeOrigin != 0, t.charsets)
	t.savedCursor = &sc
}

// RestoreCursorPosition restores cursor position, pen, origin mode, and charset state (DECRC).
func (t *Terminal) RestoreCursorPosition() {
	if t.middleware != nil && t.middleware.RestoreCursorPosition != nil {
		t.middleware.RestoreCursorPosition(t.restoreCursorPositionInternal)
		return
	}
	t.restoreCursorPositionInternal()
}

func (t *Terminal) restoreCursorPositionInternal() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.restoreCursorPositionLocked()
}

func (t *Terminal) restoreCursorPositionLocked() {
	if t.savedCursor == nil {
		return
	}
	t.cursor.Row = t.savedCursor.Row
	t.cursor.Col = t.savedCursor.Col
	t.cursor.PendingWrap = false
	t.attrs.pen = t.savedCursor.Pen
	if t.savedCursor.OriginMode {
		t.modes |= ModeOrigin
	} else {
		t.modes &^= ModeOrigin
	}
	t.charsets = t.savedCursor.Charsets
}

// ReverseIndex moves the cursor up one row, scrolling down if already at the
// top of the scroll region.
func (t *Terminal) ReverseIndex() {
	if t.middleware != nil && t.middleware.ReverseIndex != nil {
		t.middleware.ReverseIndex(t.reverseIndexInternal)
		return
	}
	t.reverseIndexInternal()
}

func (t *Terminal) reverseIndexInternal() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cursor.Row == t.scrollTop {
		t.activeBuffer.ScrollDown(t.scrollTop, t.scrollBottom, 1)
	} else if t.cursor.Row > 0 {
		t.cursor.Row--
	}
}

// ResetState clears the screen and restores default cursor, modes, and attributes (RIS).
func (t *Terminal) ResetState() {
	if t.middleware != nil && t.middleware.ResetState != nil {
		t.middleware.ResetState(t.resetStateInternal)
		return
	}
	t.resetStateInternal()
}

func (t *Terminal) resetStateInternal() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.activeBuffer = t.primaryBuffer
	t.activeBuffer.ClearAll()
	t.cursor.Row = 0
	t.cursor.Col = 0
	t.cursor.Visible = true
	t.cursor.Style = CursorStyleBlinkingBlock
	t.cursor.PendingWrap = false

	t.attrs.Reset()
	t.scrollTop = 0
	t.scrollBottom = t.rows
	t.modes = ModeLineWrap | ModeShowCursor

	t.charsets = NewCharsetState()
	t.customColors = make(map[int]Color)
	t.currentHyperlink = 0
	t.images.Clear()
	t.savedCursor = nil
}

// SetColor stores a custom color override at the given palette index or
// dynamic-color slot (OSC 4/10/11/12).
func (t *Terminal) SetColor(index int, c Color) {
	if t.middleware != nil && t.middleware.SetColor != nil {
		t.middleware.SetColor(index, c, t.setColorInternal)
		return
	}
	t.setColorInternal(index, c)
}

func (t *Terminal) setColorInternal(index int, c Color) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.customColors[index] = c
}

// ResetColor removes a custom color override, reverting to the default palette/dynamic color.
func (t *Terminal) ResetColor(i int) {
	if t.middleware != nil && t.middleware.ResetColor != nil {
		t.middleware.ResetColor(i, t.resetColorInternal)
		return
	}
	t.resetColorInternal(i)
}

func (t *Terminal) resetColorInternal(i int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.customColors, i)
}

// ClipboardLoad reads from the clipboard provider and reports the content via OSC 52.
func (t *Terminal) ClipboardLoad(clipboard byte, terminator string) {
	if t.middleware != nil && t.middleware.ClipboardLoad != nil {
		t.middleware.ClipboardLoad(clipboard, terminator, t.clipboardLoadInternal)
		return
	}
	t.clipboardLoadInternal(clipboard, terminator)
}

func (t *Terminal) clipboardLoadInternal(clipboard byte, terminator string) {
	t.mu.RLock()
	provider := t.clipboardProvider
	t.mu.RUnlock()
	if provider == nil {
		return
	}
	content := provider.Read(clipboard)
	if content == "" {
		return
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(content))
	t.writeResponseString("\x1b]52;" + string(clipboard) + ";" + encoded + terminator)
}

// ClipboardStore writes base64-decoded data to the clipboard provider (OSC 52).
func (t *Terminal) ClipboardStore(clipboard byte, data []byte) {
	if t.middleware != nil && t.middleware.ClipboardStore != nil {
		t.middleware.ClipboardStore(clipboard, data, t.clipboardStoreInternal)
		return
	}
	t.clipboardStoreInternal(clipboard, data)
}

func (t *Terminal) clipboardStoreInternal(clipboard byte, data []byte) {
	t.mu.RLock()
	provider := t.clipboardProvider
	t.mu.RUnlock()
	if provider != nil {
		provider.Write(clipboard, data)
	}
}

// SetHyperlink sets the active hyperlink for subsequently printed characters
// (OSC 8). Passing nil clears it.
func (t *Terminal) SetHyperlink(link *Hyperlink) {
	if t.middleware != nil && t.middleware.SetHyperlink != nil {
		t.middleware.SetHyperlink(link, t.setHyperlinkInternal)
		return
	}
	t.setHyperlinkInternal(link)
}

func (t *Terminal) setHyperlinkInternal(link *Hyperlink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if link == nil || link.URI == "" {
		t.currentHyperlink = 0
		return
	}
	t.currentHyperlink = t.links.Intern(*link)
}

// PushTitle saves the current title on the title stack (XTWINOPS 22).
func (t *Terminal) PushTitle() {
	if t.middleware != nil && t.middleware.PushTitle != nil {
		t.middleware.PushTitle(t.pushTitleInternal)
		return
	}
	t.pushTitleInternal()
}

func (t *Terminal) pushTitleInternal() {
	t.mu.Lock()
	t.titleStack = append(t.titleStack, t.title)
	provider := t.titleProvider
	t.mu.Unlock()
	if provider != nil {
		provider.PushTitle()
	}
}

// PopTitle restores the most recently pushed title (XTWINOPS 23).
func (t *Terminal) PopTitle() {
	if t.middleware != nil && t.middleware.PopTitle != nil {
		t.middleware.PopTitle(t.popTitleInternal)
		return
	}
	t.popTitleInternal()
}

func (t *Terminal) popTitleInternal() {
	t.mu.Lock()
	if len(t.titleStack) > 0 {
		t.title = t.titleStack[len(t.titleStack)-1]
		t.titleStack = t.titleStack[:len(t.titleStack)-1]
	}
	provider := t.titleProvider
	t.mu.Unlock()
	if provider != nil {
		provider.PopTitle()
	}
}

// HorizontalTabSet sets a tab stop at the current column.
func (t *Terminal) HorizontalTabSet() {
	if t.middleware != nil && t.middleware.HorizontalTabSet != nil {
		t.middleware.HorizontalTabSet(t.horizontalTabSetInternal)
		return
	}
	t.horizontalTabSetInternal()
}

func (t *Terminal) horizontalTabSetInternal() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.activeBuffer.SetTabStop(t.cursor.Col)
}

// ApplicationCommandReceived delegates a completed APC string to the configured provider.
func (t *Terminal) ApplicationCommandReceived(data []byte) {
	if t.middleware != nil && t.middleware.ApplicationCommandReceived != nil {
		t.middleware.ApplicationCommandReceived(data, t.applicationCommandReceivedInternal)
		return
	}
	t.applicationCommandReceivedInternal(data)
}

func (t *Terminal) applicationCommandReceivedInternal(data []byte) {
	t.mu.RLock()
	provider := t.apcProvider
	t.mu.RUnlock()
	if provider != nil {
		provider.Receive(data)
	}
}

// PrivacyMessageReceived delegates a completed PM string to the configured provider.
func (t *Terminal) PrivacyMessageReceived(data []byte) {
	if t.middleware != nil && t.middleware.PrivacyMessageReceived != nil {
		t.middleware.PrivacyMessageReceived(data, t.privacyMessageReceivedInternal)
		return
	}
	t.privacyMessageReceivedInternal(data)
}

func (t *Terminal) privacyMessageReceivedInternal(data []byte) {
	t.mu.RLock()
	provider := t.pmProvider
	t.mu.RUnlock()
	if provider != nil {
		provider.Receive(data)
	}
}

// StartOfStringReceived delegates a completed SOS string to the configured provider.
func (t *Terminal) StartOfStringReceived(data []byte) {
	if t.middleware != nil && t.middleware.StartOfStringReceived != nil {
		t.middleware.StartOfStringReceived(data, t.startOfStringReceivedInternal)
		return
	}
	t.startOfStringReceivedInternal(data)
}

func (t *Terminal) startOfStringReceivedInternal(data []byte) {
	t.mu.RLock()
	provider := t.sosProvider
	t.mu.RUnlock()
	if provider != nil {
		provider.Receive(data)
	}
}
