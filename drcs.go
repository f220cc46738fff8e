package vterm

// DrcsGlyph is one soft-font character loaded via DECDLD: a sixel-encoded
// bitmap stored as per-row byte strings, plus the cell size it was defined
// against.
type DrcsGlyph struct {
	Rows  [][]byte // one entry per sixel band, raw sixel bytes (0x3f-based)
	Width int
	Height int
}

// DrcsBank is one soft font loaded by a single DECDLD sequence: a character
// cell size and a sparse map from character code (Pcn-relative) to glyph.
type DrcsBank struct {
	CellWidth  int
	CellHeight int
	Glyphs     map[int]DrcsGlyph
}

// DrcsTable owns every DRCS bank loaded during the session, addressed by a
// small integer id that CharsetState.Drcs and Cell.DrcsID reference instead
// of embedding the bank itself, keeping Cell a flat value.
type DrcsTable struct {
	banks []DrcsBank // index 0 unused, same reservation convention as hyperlinkTable
}

// NewDrcsTable returns an empty DRCS table.
func NewDrcsTable() *DrcsTable {
	return &DrcsTable{banks: make([]DrcsBank, 1)}
}

// Load parses a DECDLD payload (DCS Pfn ; Pcn ; Pe ; Pcmw ; Pw ; Pt ; Pcmh ; Pcss { Dscs Sxbp1 ; Sxbp2 ; ... ST)
// and returns the id of the newly stored bank. Pfn/Pe/Pw/Pt/Pcss are accepted
// for wire compatibility but only Pcn (starting character) and Pcmw/Pcmh
// (cell size) affect storage; unset or zero values fall back to a 6x10 cell.
func (t *DrcsTable) Load(params []int, data []byte) uint32 {
	pcn := intParam(params, 1, 0)
	cellW := intParam(params, 3, 6)
	cellH := intParam(params, 6, 10)
	if cellW <= 0 {
		cellW = 6
	}
	if cellH <= 0 {
		cellH = 10
	}

	bank := DrcsBank{
		CellWidth:  cellW,
		CellHeight: cellH,
		Glyphs:     make(map[int]DrcsGlyph),
	}

	code := pcn
	var rows [][]byte
	var cur []byte
	for _, b := range data {
		switch {
		case b == ';':
			// glyph separator: advance to next character code
			rows = append(rows, cur)
			bank.Glyphs[code] = DrcsGlyph{Rows: rows, Width: cellW, Height: cellH}
			code++
			rows = nil
			cur = nil
		case b == '/':
			// sixel band separator within one glyph
			rows = append(rows, cur)
			cur = nil
		case b >= 0x3f && b <= 0x7e:
			cur = append(cur, b)
		}
	}
	if len(cur) > 0 || len(rows) > 0 {
		rows = append(rows, cur)
		bank.Glyphs[code] = DrcsGlyph{Rows: rows, Width: cellW, Height: cellH}
	}

	id := uint32(len(t.banks))
	t.banks = append(t.banks, bank)
	return id
}

// Bank returns the bank for id, or false if id is 0 or out of range.
func (t *DrcsTable) Bank(id uint32) (DrcsBank, bool) {
	if id == 0 || int(id) >= len(t.banks) {
		return DrcsBank{}, false
	}
	return t.banks[id], true
}

// Glyph looks up a single character's bitmap within bank id.
func (t *DrcsTable) Glyph(id uint32, code int) (DrcsGlyph, bool) {
	bank, ok := t.Bank(id)
	if !ok {
		return DrcsGlyph{}, false
	}
	g, ok := bank.Glyphs[code]
	return g, ok
}

// intParam returns params[idx] if present and non-empty (DECDLD allows
// omitted parameters, encoded as consecutive ';' by the caller's param
// collection), otherwise def. Kept local since it only serves DECDLD parsing.
func intParam(params []int, idx, def int) int {
	if idx < 0 || idx >= len(params) {
		return def
	}
	return params[idx]
}

