package vterm

// LineClearMode selects which portion of the current line EL (CSI K) erases.
type LineClearMode int

const (
	LineClearModeRight LineClearMode = iota
	LineClearModeLeft
	LineClearModeAll
)

// ClearMode selects which portion of the screen ED (CSI J) erases.
type ClearMode int

const (
	ClearModeBelow ClearMode = iota
	ClearModeAbove
	ClearModeAll
	ClearModeSaved
)

// TabulationClearMode selects which tab stops TBC (CSI g) clears.
type TabulationClearMode int

const (
	TabulationClearModeCurrent TabulationClearMode = iota
	TabulationClearModeAll
)
