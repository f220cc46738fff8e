package vterm

import (
	"strings"
	"sync"
)

// SearchMatch is one located occurrence of a search pattern. Row is
// addressed the same way Terminal.Search and Terminal.SearchScrollback
// address rows: Row >= 0 is a screen row, Row < 0 indexes into scrollback
// with -1 the most recently scrolled-off line.
type SearchMatch struct {
	Row int
	Col int
}

// lineIndex is one scanned line's searchable text alongside a map from each
// rune position in text back to the buffer column it came from. Wide
// character spacer cells are elided from text but still occupy a column, so
// a plain rune offset cannot be used as a column without this map.
type lineIndex struct {
	text   string
	colMap []int
}

// SearchIndex is a standing search over a Terminal's screen and scrollback.
// Unlike Terminal.Search and Terminal.SearchScrollback, which rescan
// everything on every call, a SearchIndex keeps per-line text caches across
// writes: Update indexes only scrollback lines appended since the last call,
// re-reads every screen row and replaces the cached copies whose text
// changed, then recomputes the match list from the whole cache. It
// invalidates itself when the terminal resets (RIS) or swaps
// to/from the alternate screen, since both repaint content an incremental
// scan can no longer trust.
type SearchIndex struct {
	mu sync.Mutex

	term    *Terminal
	pattern []rune

	screen     map[int]lineIndex
	scrollback []lineIndex
	matches    []SearchMatch

	lastScrollbackLen int
	lastAltScreen     bool
}

// NewSearchIndex creates a standing index over term and wires invalidation
// into term's middleware so a reset or a screen swap drops stale state
// automatically. Any middleware already installed on term is preserved;
// its ResetState/SetMode/UnsetMode hooks, if present, run before ours.
func NewSearchIndex(term *Terminal) *SearchIndex {
	si := &SearchIndex{
		term:          term,
		screen:        make(map[int]lineIndex),
		lastAltScreen: term.IsAlternateScreen(),
	}
	si.hook(term)
	return si
}

func (si *SearchIndex) hook(term *Terminal) {
	prev := term.Middleware()

	var prevReset func(next func())
	var prevSetMode, prevUnsetMode func(mode TerminalMode, next func(TerminalMode))
	if prev != nil {
		prevReset = prev.ResetState
		prevSetMode = prev.SetMode
		prevUnsetMode = prev.UnsetMode
	}

	mw := &Middleware{
		ResetState: func(next func()) {
			if prevReset != nil {
				prevReset(next)
			} else {
				next()
			}
			si.Invalidate()
		},
		SetMode: func(mode TerminalMode, next func(TerminalMode)) {
			if prevSetMode != nil {
				prevSetMode(mode, next)
			} else {
				next(mode)
			}
			if mode&ModeSwapScreenAndSetRestoreCursor != 0 {
				si.Invalidate()
			}
		},
		UnsetMode: func(mode TerminalMode, next func(TerminalMode)) {
			if prevUnsetMode != nil {
				prevUnsetMode(mode, next)
			} else {
				next(mode)
			}
			if mode&ModeSwapScreenAndSetRestoreCursor != 0 {
				si.Invalidate()
			}
		},
	}

	merged := &Middleware{}
	if prev != nil {
		*merged = *prev
	}
	merged.Merge(mw)
	term.SetMiddleware(merged)
}

// Invalidate drops all cached scan state, forcing the next Update to rescan
// the whole screen and scrollback from scratch.
func (si *SearchIndex) Invalidate() {
	si.mu.Lock()
	defer si.mu.Unlock()
	si.screen = make(map[int]lineIndex)
	si.scrollback = nil
	si.matches = nil
	si.lastScrollbackLen = 0
	si.lastAltScreen = si.term.IsAlternateScreen()
}

// SetPattern replaces the search pattern and rescans everything once. An
// empty pattern clears all matches.
func (si *SearchIndex) SetPattern(pattern string) {
	si.mu.Lock()
	si.pattern = []rune(pattern)
	si.screen = make(map[int]lineIndex)
	si.scrollback = nil
	si.matches = nil
	si.lastScrollbackLen = 0
	si.mu.Unlock()
	si.Update()
}

// Update brings the index up to date with the terminal's current content.
// Call it after feeding new bytes through the terminal (typically once per
// PtyPump read). Scrollback lines already indexed are not read again; every
// screen row is read and compared with its cached copy, and matches are
// recomputed over all cached lines.
func (si *SearchIndex) Update() {
	si.mu.Lock()
	defer si.mu.Unlock()

	if len(si.pattern) == 0 {
		si.matches = nil
		return
	}

	if altScreen := si.term.IsAlternateScreen(); altScreen != si.lastAltScreen {
		si.screen = make(map[int]lineIndex)
		si.scrollback = nil
		si.lastScrollbackLen = 0
		si.lastAltScreen = altScreen
	}

	si.scanScrollback()
	si.scanScreen()
	si.rebuildMatches()
}

func (si *SearchIndex) scanScrollback() {
	n := si.term.ScrollbackLen()
	if n < si.lastScrollbackLen {
		// Scrollback was cleared or shrunk; the index back into it is no
		// longer valid, so start over.
		si.scrollback = nil
		si.lastScrollbackLen = 0
	}
	for i := si.lastScrollbackLen; i < n; i++ {
		si.scrollback = append(si.scrollback, indexCells(si.term.ScrollbackLine(i)))
	}
	si.lastScrollbackLen = n
}

func (si *SearchIndex) scanScreen() {
	rows := si.term.Rows()
	for row := 0; row < rows; row++ {
		idx := si.indexRow(row)
		if cached, ok := si.screen[row]; ok && cached.text == idx.text {
			continue
		}
		si.screen[row] = idx
	}
	for row := range si.screen {
		if row >= rows {
			delete(si.screen, row)
		}
	}
}

func (si *SearchIndex) indexRow(row int) lineIndex {
	cols := si.term.Cols()
	cells := make([]Cell, cols)
	for c := 0; c < cols; c++ {
		if cell := si.term.Cell(row, c); cell != nil {
			cells[c] = *cell
		}
	}
	return indexCells(cells)
}

// indexCells builds searchable text and its column map from a row's cells,
// trimming trailing blanks and skipping wide-character spacers the same way
// Buffer.LineContent does.
func indexCells(cells []Cell) lineIndex {
	lastNonSpace := -1
	for i := len(cells) - 1; i >= 0; i-- {
		if cells[i].Rune != ' ' && cells[i].Rune != 0 && !cells[i].IsWideSpacer() {
			lastNonSpace = i
			break
		}
	}
	if lastNonSpace < 0 {
		return lineIndex{}
	}

	var b strings.Builder
	colMap := make([]int, 0, lastNonSpace+1)
	for col := 0; col <= lastNonSpace; col++ {
		cell := cells[col]
		if cell.IsWideSpacer() {
			continue
		}
		r := cell.Rune
		if r == 0 {
			r = ' '
		}
		b.WriteRune(r)
		colMap = append(colMap, col)
	}
	return lineIndex{text: b.String(), colMap: colMap}
}

func (si *SearchIndex) rebuildMatches() {
	var matches []SearchMatch

	scrollbackLen := len(si.scrollback)
	for i, idx := range si.scrollback {
		row := -(scrollbackLen - i)
		matches = append(matches, findInLine(idx, si.pattern, row)...)
	}

	rows := si.term.Rows()
	for row := 0; row < rows; row++ {
		if idx, ok := si.screen[row]; ok {
			matches = append(matches, findInLine(idx, si.pattern, row)...)
		}
	}

	si.matches = matches
}

func findInLine(idx lineIndex, pattern []rune, row int) []SearchMatch {
	if len(pattern) == 0 || len(idx.colMap) < len(pattern) {
		return nil
	}
	runes := []rune(idx.text)
	var out []SearchMatch
	for i := 0; i <= len(runes)-len(pattern); i++ {
		match := true
		for j, pr := range pattern {
			if runes[i+j] != pr {
				match = false
				break
			}
		}
		if match {
			out = append(out, SearchMatch{Row: row, Col: idx.colMap[i]})
		}
	}
	return out
}

// Matches returns a snapshot of all matches currently in the index, ordered
// oldest scrollback line first and bottom screen row last.
func (si *SearchIndex) Matches() []SearchMatch {
	si.mu.Lock()
	defer si.mu.Unlock()
	out := make([]SearchMatch, len(si.matches))
	copy(out, si.matches)
	return out
}

// Next returns the first match strictly after from in index order, wrapping
// around to the first match if from is at or past the last one.
func (si *SearchIndex) Next(from SearchMatch) (SearchMatch, bool) {
	si.mu.Lock()
	defer si.mu.Unlock()
	if len(si.matches) == 0 {
		return SearchMatch{}, false
	}
	for _, m := range si.matches {
		if matchAfter(m, from) {
			return m, true
		}
	}
	return si.matches[0], true
}

// Prev returns the last match strictly before from in index order, wrapping
// around to the last match if from is at or before the first one.
func (si *SearchIndex) Prev(from SearchMatch) (SearchMatch, bool) {
	si.mu.Lock()
	defer si.mu.Unlock()
	if len(si.matches) == 0 {
		return SearchMatch{}, false
	}
	for i := len(si.matches) - 1; i >= 0; i-- {
		if matchBefore(si.matches[i], from) {
			return si.matches[i], true
		}
	}
	return si.matches[len(si.matches)-1], true
}

func matchAfter(a, b SearchMatch) bool {
	if a.Row != b.Row {
		return a.Row > b.Row
	}
	return a.Col > b.Col
}

func matchBefore(a, b SearchMatch) bool {
	if a.Row != b.Row {
		return a.Row < b.Row
	}
	return a.Col < b.Col
}
