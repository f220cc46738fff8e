package vterm

// Pen holds the graphic rendition state that SGR (Select Graphic Rendition)
// sequences accumulate and that gets stamped onto every cell printed while
// it is active. It is the generalized form of the teacher's CellTemplate.
type Pen struct {
	Fg             Color
	Bg             Color
	UnderlineColor Color
	Flags          CellFlags
}

// NewPen returns a pen with default colors and no attributes set.
func NewPen() Pen {
	return Pen{}
}

// StampCell applies the pen's colors/flags onto a blank cell, leaving Rune
// and Width for the caller to set.
func (p Pen) StampCell(c *Cell) {
	c.Fg = p.Fg
	c.Bg = p.Bg
	c.UnderlineColor = p.UnderlineColor
	c.Flags = p.Flags
}

// underlineFlags is every flag bit that represents some underline style;
// SGR 4 (and its sub-forms) and SGR 24 operate on this whole group.
const underlineFlags = CellFlagUnderline | CellFlagDoubleUnderline |
	CellFlagCurlyUnderline | CellFlagDottedUnderline | CellFlagDashedUnderline

// AttrStack applies a sequence of SGR parameters to a Pen. It is a stack in
// name only, matching the teacher's terminology: xterm has no push/pop SGR
// stack in the base spec, only the flat parameter list CSI m carries; the
// DECSTR/RIS-triggered attribute reset is the only "stack" operation, and is
// exposed as Reset.
type AttrStack struct {
	pen Pen
}

// NewAttrStack returns an attribute stack with default pen state.
func NewAttrStack() *AttrStack {
	return &AttrStack{pen: NewPen()}
}

// Pen returns the current pen.
func (a *AttrStack) Pen() Pen { return a.pen }

// Reset returns the pen to its default (SGR 0 / RIS / DECSTR).
func (a *AttrStack) Reset() { a.pen = NewPen() }

// Apply folds one CSI `m` parameter list into the pen, including the
// colon-separated extended color/underline sub-parameter forms
// (`38:2:R:G:B`, `4:3` for curly underline, `58:5:N` for underline color).
// sub holds, for each index in params, any colon-separated sub-parameters
// that followed it (nil when none); this mirrors how a real CSI parser
// keeps ':' as a sub-parameter separator distinct from ';'.
func (a *AttrStack) Apply(params []int, sub [][]int) {
	if len(params) == 0 {
		a.Reset()
		return
	}

	i := 0
	get := func(idx int) []int {
		if idx < len(sub) {
			return sub[idx]
		}
		return nil
	}

	for i < len(params) {
		p := params[i]
		s := get(i)

		switch {
		case p == 0:
			a.Reset()
		case p == 1:
			a.pen.Flags |= CellFlagBold
		case p == 2:
			a.pen.Flags |= CellFlagDim
		case p == 3:
			a.pen.Flags |= CellFlagItalic
		case p == 4:
			a.pen.Flags &^= underlineFlags
			a.pen.Flags |= underlineStyleFlag(s)
		case p == 5:
			a.pen.Flags |= CellFlagBlinkSlow
		case p == 6:
			a.pen.Flags |= CellFlagBlinkFast
		case p == 7:
			a.pen.Flags |= CellFlagReverse
		case p == 8:
			a.pen.Flags |= CellFlagHidden
		case p == 9:
			a.pen.Flags |= CellFlagStrike
		case p == 21:
			a.pen.Flags |= CellFlagDoubleUnderline
		case p == 22:
			a.pen.Flags &^= CellFlagBold | CellFlagDim
		case p == 23:
			a.pen.Flags &^= CellFlagItalic
		case p == 24:
			a.pen.Flags &^= underlineFlags
		case p == 25:
			a.pen.Flags &^= CellFlagBlinkSlow | CellFlagBlinkFast
		case p == 27:
			a.pen.Flags &^= CellFlagReverse
		case p == 28:
			a.pen.Flags &^= CellFlagHidden
		case p == 29:
			a.pen.Flags &^= CellFlagStrike
		case p == 53:
			a.pen.Flags |= CellFlagOverline
		case p == 55:
			a.pen.Flags &^= CellFlagOverline
		case p >= 30 && p <= 37:
			a.pen.Fg = Palette(uint8(p - 30))
		case p == 38:
			n := a.applyExtendedColor(params, i, s, &a.pen.Fg)
			i += n
			continue
		case p == 39:
			a.pen.Fg = DefaultColor
		case p >= 40 && p <= 47:
			a.pen.Bg = Palette(uint8(p - 40))
		case p == 48:
			n := a.applyExtendedColor(params, i, s, &a.pen.Bg)
			i += n
			continue
		case p == 49:
			a.pen.Bg = DefaultColor
		case p == 58:
			n := a.applyExtendedColor(params, i, s, &a.pen.UnderlineColor)
			i += n
			continue
		case p == 59:
			a.pen.UnderlineColor = DefaultColor
		case p >= 90 && p <= 97:
			a.pen.Fg = Palette(uint8(p - 90 + 8))
		case p >= 100 && p <= 107:
			a.pen.Bg = Palette(uint8(p - 100 + 8))
		}
		i++
	}
}

// underlineStyleFlag maps the SGR 4 sub-parameter (colon form `4:n`) to the
// corresponding underline flag; an absent sub-parameter (the bare `4`) or an
// unknown style means a plain single underline, and `4:0` means no underline.
func underlineStyleFlag(sub []int) CellFlags {
	if len(sub) == 0 {
		return CellFlagUnderline
	}
	switch sub[0] {
	case 0:
		return 0
	case 2:
		return CellFlagDoubleUnderline
	case 3:
		return CellFlagCurlyUnderline
	case 4:
		return CellFlagDottedUnderline
	case 5:
		return CellFlagDashedUnderline
	default:
		return CellFlagUnderline
	}
}

// applyExtendedColor parses the 38/48/58 extended color forms starting at
// params[i], supporting both the semicolon form xterm accepts in practice
// (`38;2;r;g;b`, `38;5;n`) and the colon sub-parameter form the spec
// requires (`38:2::r:g:b`, `38:5:n`). It returns how many entries of params
// were consumed (including the leading 38/48/58 itself) so the caller's
// loop index can be advanced past the whole sequence.
func (a *AttrStack) applyExtendedColor(params []int, i int, sub []int, dst *Color) int {
	if len(sub) > 0 {
		switch sub[0] {
		case 5:
			if len(sub) >= 2 {
				*dst = Palette(uint8(sub[1]))
			}
		case 2:
			// colon form allows an optional colorspace id before r:g:b,
			// so the RGB triplet is always the last three entries.
			if len(sub) >= 4 {
				n := len(sub)
				*dst = RGB(uint8(sub[n-3]), uint8(sub[n-2]), uint8(sub[n-1]))
			}
		}
		return 1
	}

	if i+1 >= len(params) {
		return 1
	}
	switch params[i+1] {
	case 5:
		if i+2 < len(params) {
			*dst = Palette(uint8(params[i+2]))
			return 3
		}
		return 2
	case 2:
		if i+4 < len(params) {
			*dst = RGB(uint8(params[i+2]), uint8(params[i+3]), uint8(params[i+4]))
			return 5
		}
		return 2
	default:
		return 2
	}
}
