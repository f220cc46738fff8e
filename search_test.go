package vterm

import "testing"

func TestSearchIndexFindsScreenMatches(t *testing.T) {
	term := New(WithSize(5, 40))
	idx := NewSearchIndex(term)

	term.WriteString("hello world\r\nhello again")
	idx.SetPattern("hello")

	matches := idx.Matches()
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d: %v", len(matches), matches)
	}
	if matches[0].Row != 0 || matches[0].Col != 0 {
		t.Errorf("expected first match at (0,0), got %+v", matches[0])
	}
	if matches[1].Row != 1 || matches[1].Col != 0 {
		t.Errorf("expected second match at (1,0), got %+v", matches[1])
	}
}

func TestSearchIndexIncrementalUpdate(t *testing.T) {
	term := New(WithSize(5, 40))
	idx := NewSearchIndex(term)
	idx.SetPattern("needle")

	if len(idx.Matches()) != 0 {
		t.Fatalf("expected no matches before write")
	}

	term.WriteString("a needle in a haystack")
	idx.Update()

	matches := idx.Matches()
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Col != 2 {
		t.Errorf("expected match at col 2, got %d", matches[0].Col)
	}
}

func TestSearchIndexInvalidatesOnReset(t *testing.T) {
	term := New(WithSize(5, 40))
	idx := NewSearchIndex(term)

	term.WriteString("needle")
	idx.SetPattern("needle")
	if len(idx.Matches()) != 1 {
		t.Fatalf("expected 1 match before reset")
	}

	term.ResetState()
	idx.Update()

	if len(idx.Matches()) != 0 {
		t.Errorf("expected reset to clear matches, got %v", idx.Matches())
	}
}

func TestSearchIndexInvalidatesOnAltScreenSwap(t *testing.T) {
	term := New(WithSize(5, 40))
	idx := NewSearchIndex(term)

	term.WriteString("needle")
	idx.SetPattern("needle")
	if len(idx.Matches()) != 1 {
		t.Fatalf("expected 1 match before alt screen swap")
	}

	term.WriteString("\x1b[?1049h")
	idx.Update()

	if len(idx.Matches()) != 0 {
		t.Errorf("expected alt screen entry to clear matches, got %v", idx.Matches())
	}
}

func TestSearchIndexScrollbackMatches(t *testing.T) {
	term := New(WithSize(2, 40))
	idx := NewSearchIndex(term)

	term.WriteString("needle one\r\nfiller\r\nfiller\r\n")
	idx.SetPattern("needle")

	var found bool
	for _, m := range idx.Matches() {
		if m.Row < 0 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a scrollback match, got %v", idx.Matches())
	}
}

func TestSearchIndexNextWraps(t *testing.T) {
	term := New(WithSize(5, 40))
	idx := NewSearchIndex(term)

	term.WriteString("ab ab ab")
	idx.SetPattern("ab")

	matches := idx.Matches()
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}

	next, ok := idx.Next(matches[2])
	if !ok {
		t.Fatalf("expected Next to succeed")
	}
	if next != matches[0] {
		t.Errorf("expected wraparound to first match, got %+v", next)
	}
}
