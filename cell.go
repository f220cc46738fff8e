package vterm

// CellFlags is a bitmask of cell rendering attributes (SGR state folded
// onto the cell at print time, plus a couple of grid-internal markers).
type CellFlags uint32

const (
	CellFlagBold CellFlags = 1 << iota
	CellFlagDim
	CellFlagItalic
	CellFlagUnderline
	CellFlagDoubleUnderline
	CellFlagCurlyUnderline
	CellFlagDottedUnderline
	CellFlagDashedUnderline
	CellFlagOverline
	CellFlagBlinkSlow
	CellFlagBlinkFast
	CellFlagReverse
	CellFlagHidden
	CellFlagStrike
	CellFlagWideChar
	CellFlagWideCharSpacer
	CellFlagDirty
)

// maxCombiningMarks bounds how many combining marks a single cell carries;
// beyond this, additional marks are dropped rather than growing the cell.
const maxCombiningMarks = 2

// Cell stores one grid position: a base rune, up to maxCombiningMarks
// combining marks, its display width, colors and SGR flags, and small
// integer references into the hyperlink and DRCS tables rather than
// pointers, so Cell stays a flat, copyable value with no heap indirection
// per character.
type Cell struct {
	Rune           rune
	Marks          [maxCombiningMarks]rune
	Width          uint8 // 0 (continuation/zero-width), 1, or 2
	Fg             Color
	Bg             Color
	UnderlineColor Color
	Flags          CellFlags
	HyperlinkID    uint32 // 0 means no hyperlink
	DrcsID         uint32 // 0 means not a DRCS glyph; otherwise loaded-table id
	ImagePlacementID uint32 // 0 means no image covers this cell; otherwise an ImageManager placement id
}

// NewCell returns a cell initialized to a single space with default colors.
func NewCell() Cell {
	return Cell{Rune: ' ', Width: 1}
}

// Reset clears c back to the default blank cell, same as NewCell but
// in-place.
func (c *Cell) Reset() {
	*c = NewCell()
}

// HasFlag reports whether flag is set.
func (c *Cell) HasFlag(flag CellFlags) bool { return c.Flags&flag != 0 }

// SetFlag sets flag without affecting others.
func (c *Cell) SetFlag(flag CellFlags) { c.Flags |= flag }

// ClearFlag clears flag without affecting others.
func (c *Cell) ClearFlag(flag CellFlags) { c.Flags &^= flag }

// IsDirty reports whether the cell was modified since the last ClearDirty.
func (c *Cell) IsDirty() bool { return c.HasFlag(CellFlagDirty) }

// MarkDirty flags the cell as modified.
func (c *Cell) MarkDirty() { c.SetFlag(CellFlagDirty) }

// ClearDirty resets the dirty flag.
func (c *Cell) ClearDirty() { c.ClearFlag(CellFlagDirty) }

// IsWide reports whether this cell holds a 2-column-wide character.
func (c *Cell) IsWide() bool { return c.HasFlag(CellFlagWideChar) }

// IsWideSpacer reports whether this is the continuation cell following a
// wide character; renderers must skip it.
func (c *Cell) IsWideSpacer() bool { return c.HasFlag(CellFlagWideCharSpacer) }

// Copy returns an independent copy of c. Cell holds no pointers, so this is
// a value copy, kept as a method since callers used to rely on deep-copy
// semantics.
func (c *Cell) Copy() Cell { return *c }

// AddMark appends a combining mark to the cell, dropping it silently once
// maxCombiningMarks is reached (matches how real terminals cap combining
// sequence length rather than growing a cell without bound).
func (c *Cell) AddMark(r rune) {
	for i, m := range c.Marks {
		if m == 0 {
			c.Marks[i] = r
			return
		}
	}
}

// HasHyperlink reports whether the cell references a hyperlink.
func (c *Cell) HasHyperlink() bool { return c.HyperlinkID != 0 }

// HasDrcs reports whether the cell's rune is a DRCS soft-font glyph.
func (c *Cell) HasDrcs() bool { return c.DrcsID != 0 }

// HasImage reports whether the cell is covered by a Sixel/iTerm2 image placement.
func (c *Cell) HasImage() bool { return c.ImagePlacementID != 0 }
