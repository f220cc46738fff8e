package vterm

// Middleware intercepts handler calls, allowing custom behavior before/after execution.
// Each field wraps one handler: receive original parameters and a next function to call the default implementation.
type Middleware struct {
	// Print wraps character output
	Print func(r rune, next func(rune))

	// Bell wraps the Bell handler
	Bell func(next func())

	// Tab wraps the Tab handler
	Tab func(n int, next func(int))

	// ClearLine wraps the ClearLine handler
	ClearLine func(mode LineClearMode, next func(LineClearMode))

	// ClearScreen wraps the ClearScreen handler
	ClearScreen func(mode ClearMode, next func(ClearMode))

	// ClearTabs wraps the ClearTabs handler
	ClearTabs func(mode TabulationClearMode, next func(TabulationClearMode))

	// Goto wraps the Goto handler (CUP/HVP)
	Goto func(row, col int, next func(int, int))

	// MoveUp wraps the MoveUp handler
	MoveUp func(n int, next func(int))

	// MoveDown wraps the MoveDown handler
	MoveDown func(n int, next func(int))

	// MoveForward wraps the MoveForward handler
	MoveForward func(n int, next func(int))

	// MoveBackward wraps the MoveBackward handler
	MoveBackward func(n int, next func(int))

	// InsertBlank wraps the InsertBlank handler
	InsertBlank func(n int, next func(int))

	// InsertBlankLines wraps the InsertBlankLines handler
	InsertBlankLines func(n int, next func(int))

	// DeleteChars wraps the DeleteChars handler
	DeleteChars func(n int, next func(int))

	// DeleteLines wraps the DeleteLines handler
	DeleteLines func(n int, next func(int))

	// EraseChars wraps the EraseChars handler
	EraseChars func(n int, next func(int))

	// ScrollUp wraps the ScrollUp handler
	ScrollUp func(n int, next func(int))

	// ScrollDown wraps the ScrollDown handler
	ScrollDown func(n int, next func(int))

	// SetScrollingRegion wraps the SetScrollingRegion handler
	SetScrollingRegion func(top, bottom int, next func(int, int))

	// SetMode wraps the SetMode handler
	SetMode func(mode TerminalMode, next func(TerminalMode))

	// UnsetMode wraps the UnsetMode handler
	UnsetMode func(mode TerminalMode, next func(TerminalMode))

	// SetTitle wraps the SetTitle handler
	SetTitle func(title string, next func(string))

	// SetCursorStyle wraps the SetCursorStyle handler
	SetCursorStyle func(style CursorStyle, next func(CursorStyle))

	// SaveCursorPosition wraps the SaveCursorPosition handler (DECSC)
	SaveCursorPosition func(next func())

	// RestoreCursorPosition wraps the RestoreCursorPosition handler (DECRC)
	RestoreCursorPosition func(next func())

	// ReverseIndex wraps the ReverseIndex handler
	ReverseIndex func(next func())

	// ResetState wraps the ResetState handler (RIS)
	ResetState func(next func())

	// SetColor wraps the SetColor handler (OSC 4/10/11/12)
	SetColor func(index int, c Color, next func(int, Color))

	// ResetColor wraps the ResetColor handler
	ResetColor func(i int, next func(int))

	// ClipboardLoad wraps the ClipboardLoad handler (OSC 52 query)
	ClipboardLoad func(clipboard byte, terminator string, next func(byte, string))

	// ClipboardStore wraps the ClipboardStore handler (OSC 52 write)
	ClipboardStore func(clipboard byte, data []byte, next func(byte, []byte))

	// SetHyperlink wraps the SetHyperlink handler (OSC 8)
	SetHyperlink func(link *Hyperlink, next func(*Hyperlink))

	// PushTitle wraps the PushTitle handler
	PushTitle func(next func())

	// PopTitle wraps the PopTitle handler
	PopTitle func(next func())

	// HorizontalTabSet wraps the HorizontalTabSet handler
	HorizontalTabSet func(next func())

	// ApplicationCommandReceived wraps the APC handler
	ApplicationCommandReceived func(data []byte, next func([]byte))

	// PrivacyMessageReceived wraps the PM handler
	PrivacyMessageReceived func(data []byte, next func([]byte))

	// StartOfStringReceived wraps the SOS handler
	StartOfStringReceived func(data []byte, next func([]byte))

	// ShellIntegrationMark wraps the OSC 133 handler
	ShellIntegrationMark func(mark ShellIntegrationMarkType, exitCode int, next func(ShellIntegrationMarkType, int))

	// SetWorkingDirectory wraps the OSC 7 handler
	SetWorkingDirectory func(uri string, next func(string))

	// SixelReceived wraps the Sixel DCS handler
	SixelReceived func(params []int, data []byte, next func([]int, []byte))

	// DesktopNotification wraps the DesktopNotification handler (OSC 99)
	DesktopNotification func(payload *NotificationPayload, next func(*NotificationPayload))

	// SetUserVar wraps the SetUserVar handler (OSC 1337 SetUserVar)
	SetUserVar func(name, value string, next func(string, string))
}

// Merge copies non-nil middleware functions from other into this, overwriting existing values.
func (m *Middleware) Merge(other *Middleware) {
	if other == nil {
		return
	}

	if other.Print != nil {
		m.Print = other.Print
	}
	if other.Bell != nil {
		m.Bell = other.Bell
	}
	if other.Tab != nil {
		m.Tab = other.Tab
	}
	if other.ClearLine != nil {
		m.ClearLine = other.ClearLine
	}
	if other.ClearScreen != nil {
		m.ClearScreen = other.ClearScreen
	}
	if other.ClearTabs != nil {
		m.ClearTabs = other.ClearTabs
	}
	if other.Goto != nil {
		m.Goto = other.Goto
	}
	if other.MoveUp != nil {
		m.MoveUp = other.MoveUp
	}
	if other.MoveDown != nil {
		m.MoveDown = other.MoveDown
	}
	if other.MoveForward != nil {
		m.MoveForward = other.MoveForward
	}
	if other.MoveBackward != nil {
		m.MoveBackward = other.MoveBackward
	}
	if other.InsertBlank != nil {
		m.InsertBlank = other.InsertBlank
	}
	if other.InsertBlankLines != nil {
		m.InsertBlankLines = other.InsertBlankLines
	}
	if other.DeleteChars != nil {
		m.DeleteChars = other.DeleteChars
	}
	if other.DeleteLines != nil {
		m.DeleteLines = other.DeleteLines
	}
	if other.EraseChars != nil {
		m.EraseChars = other.EraseChars
	}
	if other.ScrollUp != nil {
		m.ScrollUp = other.ScrollUp
	}
	if other.ScrollDown != nil {
		m.ScrollDown = other.ScrollDown
	}
	if other.SetScrollingRegion != nil {
		m.SetScrollingRegion = other.SetScrollingRegion
	}
	if other.SetMode != nil {
		m.SetMode = other.SetMode
	}
	if other.UnsetMode != nil {
		m.UnsetMode = other.UnsetMode
	}
	if other.SetTitle != nil {
		m.SetTitle = other.SetTitle
	}
	if other.SetCursorStyle != nil {
		m.SetCursorStyle = other.SetCursorStyle
	}
	if other.SaveCursorPosition != nil {
		m.SaveCursorPosition = other.SaveCursorPosition
	}
	if other.RestoreCursorPosition != nil {
		m.RestoreCursorPosition = other.RestoreCursorPosition
	}
	if other.ReverseIndex != nil {
		m.ReverseIndex = other.ReverseIndex
	}
	if other.ResetState != nil {
		m.ResetState = other.ResetState
	}
	if other.SetColor != nil {
		m.SetColor = other.SetColor
	}
	if other.ResetColor != nil {
		m.ResetColor = other.ResetColor
	}
	if other.ClipboardLoad != nil {
		m.ClipboardLoad = other.ClipboardLoad
	}
	if other.ClipboardStore != nil {
		m.ClipboardStore = other.ClipboardStore
	}
	if other.SetHyperlink != nil {
		m.SetHyperlink = other.SetHyperlink
	}
	if other.PushTitle != nil {
		m.PushTitle = other.PushTitle
	}
	if other.PopTitle != nil {
		m.PopTitle = other.PopTitle
	}
	if other.HorizontalTabSet != nil {
		m.HorizontalTabSet = other.HorizontalTabSet
	}
	if other.ApplicationCommandReceived != nil {
		m.ApplicationCommandReceived = other.ApplicationCommandReceived
	}
	if other.PrivacyMessageReceived != nil {
		m.PrivacyMessageReceived = other.PrivacyMessageReceived
	}
	if other.StartOfStringReceived != nil {
		m.StartOfStringReceived = other.StartOfStringReceived
	}
	if other.ShellIntegrationMark != nil {
		m.ShellIntegrationMark = other.ShellIntegrationMark
	}
	if other.SetWorkingDirectory != nil {
		m.SetWorkingDirectory = other.SetWorkingDirectory
	}
	if other.SixelReceived != nil {
		m.SixelReceived = other.SixelReceived
	}
	if other.DesktopNotification != nil {
		m.DesktopNotification = other.DesktopNotification
	}
	if other.SetUserVar != nil {
		m.SetUserVar = other.SetUserVar
	}
}
