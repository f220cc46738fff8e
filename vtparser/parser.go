// Package vtparser implements the VT500-series escape sequence parser, the
// byte-level state machine shared by every DEC-compatible terminal emulator.
// It classifies each incoming byte against a flat (state, byte) transition
// table and drives a Performer with the resulting events. The parser never
// blocks and never allocates on its hot path: Write can be called with
// partial escape sequences split across arbitrary chunk boundaries and will
// resume correctly on the next call.
package vtparser

import "unicode/utf8"

// State identifies one node of the VT500 escape sequence state machine.
type State uint8

const (
	StateGround State = iota
	StateEscape
	StateEscapeIntermediate
	StateCsiEntry
	StateCsiParam
	StateCsiIntermediate
	StateCsiIgnore
	StateDcsEntry
	StateDcsParam
	StateDcsIntermediate
	StateDcsPassthrough
	StateDcsIgnore
	StateOscString
	StateSosPmApcString
	numStates
)

type action uint8

const (
	actNone action = iota
	actPrint
	actExecute
	actClear
	actCollect
	actParam
	actEscDispatch
	actCsiDispatch
	actHook
	actPut
	actUnhook
	actOscStart
	actOscPut
	actOscEnd
	actIgnore
)

type transition struct {
	act   action
	state State
}

var table [numStates][256]transition

// maxParams bounds the number of numeric parameters collected for a single
// CSI or DCS sequence; excess parameters are dropped, matching xterm.
const maxParams = 32

// maxIntermediates bounds the number of intermediate bytes collected before a
// final byte; this is generous relative to any real escape sequence.
const maxIntermediates = 8

// maxOscLen caps the OSC string buffer so a runaway or malicious OSC payload
// (no terminator) cannot grow memory without bound; xterm applies a similar
// cap in practice.
const maxOscLen = 1 << 20

func init() {
	// Default: every state treats C0 controls and the ground alphabet the
	// same way unless overridden below.
	for s := State(0); s < numStates; s++ {
		for b := 0; b < 256; b++ {
			table[s][b] = transition{actIgnore, s}
		}
	}

	anywhereState := func(b byte, act action, next State) {
		for s := State(0); s < numStates; s++ {
			table[s][b] = transition{act, next}
		}
	}

	// CAN and SUB abort any sequence in progress and return to ground.
	anywhereState(0x18, actExecute, StateGround)
	anywhereState(0x1a, actExecute, StateGround)
	// ESC always restarts the escape sequence, from any state.
	anywhereState(0x1b, actNone, StateEscape)

	// ---- GROUND ----
	setRange(StateGround, 0x00, 0x17, actExecute, StateGround)
	table[StateGround][0x19] = transition{actExecute, StateGround}
	setRange(StateGround, 0x1c, 0x1f, actExecute, StateGround)
	setRange(StateGround, 0x20, 0xff, actPrint, StateGround)

	// ---- ESCAPE ----
	setRange(StateEscape, 0x00, 0x17, actExecute, StateEscape)
	table[StateEscape][0x19] = transition{actExecute, StateEscape}
	setRange(StateEscape, 0x1c, 0x1f, actExecute, StateEscape)
	table[StateEscape][0x7f] = transition{actIgnore, StateEscape}
	setRange(StateEscape, 0x20, 0x2f, actCollect, StateEscapeIntermediate)
	setRange(StateEscape, 0x30, 0x4f, actEscDispatch, StateGround)
	setRange(StateEscape, 0x51, 0x57, actEscDispatch, StateGround)
	table[StateEscape][0x59] = transition{actEscDispatch, StateGround}
	table[StateEscape][0x5a] = transition{actEscDispatch, StateGround}
	table[StateEscape][0x5c] = transition{actEscDispatch, StateGround}
	setRange(StateEscape, 0x60, 0x7e, actEscDispatch, StateGround)
	table[StateEscape][0x50] = transition{actNone, StateDcsEntry}
	table[StateEscape][0x5b] = transition{actNone, StateCsiEntry}
	table[StateEscape][0x5d] = transition{actNone, StateOscString}
	table[StateEscape][0x58] = transition{actNone, StateSosPmApcString}
	table[StateEscape][0x5e] = transition{actNone, StateSosPmApcString}
	table[StateEscape][0x5f] = transition{actNone, StateSosPmApcString}

	// ---- ESCAPE_INTERMEDIATE ----
	setRange(StateEscapeIntermediate, 0x00, 0x17, actExecute, StateEscapeIntermediate)
	table[StateEscapeIntermediate][0x19] = transition{actExecute, StateEscapeIntermediate}
	setRange(StateEscapeIntermediate, 0x1c, 0x1f, actExecute, StateEscapeIntermediate)
	setRange(StateEscapeIntermediate, 0x20, 0x2f, actCollect, StateEscapeIntermediate)
	setRange(StateEscapeIntermediate, 0x30, 0x7e, actEscDispatch, StateGround)

	// ---- CSI_ENTRY ----
	setRange(StateCsiEntry, 0x00, 0x17, actExecute, StateCsiEntry)
	table[StateCsiEntry][0x19] = transition{actExecute, StateCsiEntry}
	setRange(StateCsiEntry, 0x1c, 0x1f, actExecute, StateCsiEntry)
	setRange(StateCsiEntry, 0x40, 0x7e, actCsiDispatch, StateGround)
	setRange(StateCsiEntry, 0x30, 0x39, actParam, StateCsiParam)
	table[StateCsiEntry][0x3b] = transition{actParam, StateCsiParam}
	table[StateCsiEntry][0x3a] = transition{actParam, StateCsiParam}
	setRange(StateCsiEntry, 0x3c, 0x3f, actCollect, StateCsiParam)
	setRange(StateCsiEntry, 0x20, 0x2f, actCollect, StateCsiIntermediate)

	// ---- CSI_PARAM ----
	setRange(StateCsiParam, 0x00, 0x17, actExecute, StateCsiParam)
	table[StateCsiParam][0x19] = transition{actExecute, StateCsiParam}
	setRange(StateCsiParam, 0x1c, 0x1f, actExecute, StateCsiParam)
	setRange(StateCsiParam, 0x30, 0x39, actParam, StateCsiParam)
	table[StateCsiParam][0x3b] = transition{actParam, StateCsiParam}
	table[StateCsiParam][0x3a] = transition{actParam, StateCsiParam}
	setRange(StateCsiParam, 0x3c, 0x3f, actIgnore, StateCsiIgnore)
	setRange(StateCsiParam, 0x20, 0x2f, actCollect, StateCsiIntermediate)
	setRange(StateCsiParam, 0x40, 0x7e, actCsiDispatch, StateGround)

	// ---- CSI_INTERMEDIATE ----
	setRange(StateCsiIntermediate, 0x00, 0x17, actExecute, StateCsiIntermediate)
	table[StateCsiIntermediate][0x19] = transition{actExecute, StateCsiIntermediate}
	setRange(StateCsiIntermediate, 0x1c, 0x1f, actExecute, StateCsiIntermediate)
	setRange(StateCsiIntermediate, 0x20, 0x2f, actCollect, StateCsiIntermediate)
	setRange(StateCsiIntermediate, 0x30, 0x3f, actIgnore, StateCsiIgnore)
	setRange(StateCsiIntermediate, 0x40, 0x7e, actCsiDispatch, StateGround)

	// ---- CSI_IGNORE ----
	setRange(StateCsiIgnore, 0x00, 0x17, actExecute, StateCsiIgnore)
	table[StateCsiIgnore][0x19] = transition{actExecute, StateCsiIgnore}
	setRange(StateCsiIgnore, 0x1c, 0x1f, actExecute, StateCsiIgnore)
	setRange(StateCsiIgnore, 0x20, 0x3f, actIgnore, StateCsiIgnore)
	setRange(StateCsiIgnore, 0x40, 0x7e, actNone, StateGround)

	// ---- DCS_ENTRY ----
	setRange(StateDcsEntry, 0x00, 0x17, actIgnore, StateDcsEntry)
	setRange(StateDcsEntry, 0x1c, 0x1f, actIgnore, StateDcsEntry)
	setRange(StateDcsEntry, 0x20, 0x2f, actCollect, StateDcsIntermediate)
	setRange(StateDcsEntry, 0x30, 0x39, actParam, StateDcsParam)
	table[StateDcsEntry][0x3b] = transition{actParam, StateDcsParam}
	table[StateDcsEntry][0x3a] = transition{actParam, StateDcsParam}
	setRange(StateDcsEntry, 0x3c, 0x3f, actCollect, StateDcsParam)
	setRange(StateDcsEntry, 0x40, 0x7e, actNone, StateDcsPassthrough)

	// ---- DCS_PARAM ----
	setRange(StateDcsParam, 0x00, 0x17, actIgnore, StateDcsParam)
	setRange(StateDcsParam, 0x1c, 0x1f, actIgnore, StateDcsParam)
	setRange(StateDcsParam, 0x30, 0x39, actParam, StateDcsParam)
	table[StateDcsParam][0x3b] = transition{actParam, StateDcsParam}
	table[StateDcsParam][0x3a] = transition{actParam, StateDcsParam}
	setRange(StateDcsParam, 0x3c, 0x3f, actIgnore, StateDcsIgnore)
	setRange(StateDcsParam, 0x20, 0x2f, actCollect, StateDcsIntermediate)
	setRange(StateDcsParam, 0x40, 0x7e, actNone, StateDcsPassthrough)

	// ---- DCS_INTERMEDIATE ----
	setRange(StateDcsIntermediate, 0x00, 0x17, actIgnore, StateDcsIntermediate)
	setRange(StateDcsIntermediate, 0x1c, 0x1f, actIgnore, StateDcsIntermediate)
	setRange(StateDcsIntermediate, 0x20, 0x2f, actCollect, StateDcsIntermediate)
	setRange(StateDcsIntermediate, 0x30, 0x3f, actIgnore, StateDcsIgnore)
	setRange(StateDcsIntermediate, 0x40, 0x7e, actNone, StateDcsPassthrough)

	// ---- DCS_PASSTHROUGH ---- (entry/exit handled specially by Write)
	setRange(StateDcsPassthrough, 0x00, 0x17, actPut, StateDcsPassthrough)
	setRange(StateDcsPassthrough, 0x1c, 0x1f, actPut, StateDcsPassthrough)
	setRange(StateDcsPassthrough, 0x20, 0x7e, actPut, StateDcsPassthrough)
	table[StateDcsPassthrough][0x7f] = transition{actIgnore, StateDcsPassthrough}

	// ---- DCS_IGNORE ----
	setRange(StateDcsIgnore, 0x00, 0x17, actIgnore, StateDcsIgnore)
	setRange(StateDcsIgnore, 0x1c, 0x1f, actIgnore, StateDcsIgnore)
	setRange(StateDcsIgnore, 0x20, 0x7f, actIgnore, StateDcsIgnore)

	// ---- OSC_STRING ---- (entry/exit handled specially by Write)
	setRange(StateOscString, 0x00, 0x06, actIgnore, StateOscString)
	setRange(StateOscString, 0x08, 0x17, actIgnore, StateOscString)
	setRange(StateOscString, 0x1c, 0x1f, actIgnore, StateOscString)
	setRange(StateOscString, 0x20, 0xff, actOscPut, StateOscString)

	// ---- SOS_PM_APC_STRING ----
	setRange(StateSosPmApcString, 0x00, 0x17, actIgnore, StateSosPmApcString)
	setRange(StateSosPmApcString, 0x1c, 0x1f, actIgnore, StateSosPmApcString)
	setRange(StateSosPmApcString, 0x20, 0xff, actIgnore, StateSosPmApcString)

	// BEL (0x07) terminates OSC; ST's second byte (0x5c after ESC) terminates
	// OSC/DCS/SOS-PM-APC, handled explicitly in Write since it depends on the
	// preceding ESC having already been seen (state == StateEscape).
	table[StateOscString][0x07] = transition{actOscEnd, StateGround}
}

func setRange(s State, lo, hi byte, act action, next State) {
	for b := int(lo); b <= int(hi); b++ {
		table[s][b] = transition{act, next}
	}
}

// Performer receives parsed terminal events. Implementations must not retain
// the slices passed to CsiDispatch/EscDispatch/Hook beyond the call.
type Performer interface {
	Print(r rune)
	Execute(b byte)
	CsiDispatch(params []int, paramsTruncated bool, intermediates []byte, final byte)
	EscDispatch(intermediates []byte, b byte)
	Hook(params []int, intermediates []byte, final byte)
	Put(b byte)
	Unhook()
	OscStart()
	OscPut(b byte)
	OscEnd()
}

// Parser is a resumable VT500 byte-stream parser. The zero value is not
// usable; construct with New.
type Parser struct {
	state         State
	params        []int
	paramsTrunc   bool
	curParam      int
	paramStarted  bool
	intermediates []byte
	osc           []byte
	utf8Buf       [utf8.UTFMax]byte
	utf8Have      int
	utf8Want      int
	inEscape      bool // previous byte was ESC, used to recognize ST/7-bit DCS-like exits
}

// New creates a parser ready to consume bytes starting in the ground state.
func New() *Parser {
	p := &Parser{state: StateGround}
	p.params = make([]int, 0, maxParams)
	p.intermediates = make([]byte, 0, maxIntermediates)
	return p
}

// Reset returns the parser to the ground state, discarding any in-progress
// sequence. Used after a protocol-level desync (e.g. RIS).
func (p *Parser) Reset() {
	p.state = StateGround
	p.params = p.params[:0]
	p.intermediates = p.intermediates[:0]
	p.curParam = 0
	p.paramStarted = false
	p.utf8Have = 0
	p.utf8Want = 0
}

// Write feeds bytes through the state machine, invoking perf for every event
// produced. It never returns an error: malformed input is absorbed by the
// IGNORE states, matching real terminal behavior.
func (p *Parser) Write(data []byte, perf Performer) {
	for _, b := range data {
		p.step(b, perf)
	}
}

func (p *Parser) step(b byte, perf Performer) {
	// UTF-8 continuation bytes in GROUND are consumed by the accumulator
	// before they ever reach the transition table, since the table only
	// models the 7-bit escape grammar.
	if p.state == StateGround && p.utf8Want > 0 {
		if b&0xc0 == 0x80 {
			p.utf8Buf[p.utf8Have] = b
			p.utf8Have++
			if p.utf8Have == p.utf8Want {
				r, _ := utf8.DecodeRune(p.utf8Buf[:p.utf8Have])
				perf.Print(r)
				p.utf8Have, p.utf8Want = 0, 0
			}
			return
		}
		// Invalid continuation: emit replacement and reprocess b normally.
		perf.Print(utf8.RuneError)
		p.utf8Have, p.utf8Want = 0, 0
	}

	if p.state == StateGround && b >= 0x80 {
		if n := utf8SeqLen(b); n > 1 {
			p.utf8Buf[0] = b
			p.utf8Have = 1
			p.utf8Want = n
			return
		}
		perf.Print(utf8.RuneError)
		return
	}

	// String-terminator recognition: ESC followed by 0x5c ends OSC, DCS
	// passthrough and SOS/PM/APC regardless of the generic table entry,
	// because those three states otherwise treat ESC as "ignore and wait".
	if b == 0x1b {
		switch p.state {
		case StateOscString:
			p.inEscape = true
			return
		case StateDcsPassthrough, StateSosPmApcString:
			p.inEscape = true
			return
		}
	}
	if p.inEscape {
		p.inEscape = false
		if b == 0x5c {
			switch p.state {
			case StateOscString:
				perf.OscEnd()
				p.state = StateGround
				return
			case StateDcsPassthrough:
				perf.Unhook()
				p.state = StateGround
				return
			case StateSosPmApcString:
				p.state = StateGround
				return
			}
		}
		// Not ST: the ESC starts a fresh sequence, process it as such.
		p.enterGroundExit(perf)
		p.state = StateEscape
		p.step(b, perf)
		return
	}

	tr := table[p.state][b]
	prevState := p.state

	switch tr.act {
	case actPrint:
		perf.Print(rune(b))
	case actExecute:
		perf.Execute(b)
	case actIgnore, actNone:
	case actClear:
		p.clear()
	case actCollect:
		if len(p.intermediates) < maxIntermediates {
			p.intermediates = append(p.intermediates, b)
		}
	case actParam:
		p.collectParam(b)
	case actEscDispatch:
		perf.EscDispatch(p.intermediates, b)
		p.clear()
	case actCsiDispatch:
		p.finishParam()
		perf.CsiDispatch(p.params, p.paramsTrunc, p.intermediates, b)
		p.clear()
	case actHook:
		perf.Hook(p.params, p.intermediates, b)
	case actPut:
		perf.Put(b)
	case actUnhook:
		perf.Unhook()
		p.clear()
	case actOscStart:
		perf.OscStart()
	case actOscPut:
		perf.OscPut(b)
	case actOscEnd:
		perf.OscEnd()
		p.clear()
	}

	// State-entry side effects that the generic table can't express: clearing
	// collected params/intermediates when freshly entering a collecting
	// state, and announcing OSC/DCS entry to the performer.
	if tr.state != prevState {
		switch tr.state {
		case StateCsiEntry, StateDcsEntry:
			p.clear()
		case StateOscString:
			p.clear()
			perf.OscStart()
		case StateDcsPassthrough:
			p.finishParam()
			perf.Hook(p.params, p.intermediates, b)
		}
	}

	p.state = tr.state
}

// enterGroundExit runs the cleanup a premature ESC needs when it interrupts
// an OSC/DCS/SOS-PM-APC string without a terminator byte.
func (p *Parser) enterGroundExit(perf Performer) {
	switch p.state {
	case StateDcsPassthrough:
		perf.Unhook()
	}
	p.clear()
}

func (p *Parser) clear() {
	p.params = p.params[:0]
	p.intermediates = p.intermediates[:0]
	p.curParam = 0
	p.paramStarted = false
	p.paramsTrunc = false
}

func (p *Parser) collectParam(b byte) {
	if b == ';' || b == ':' {
		p.pushParam()
		return
	}
	p.paramStarted = true
	p.curParam = p.curParam*10 + int(b-'0')
	if p.curParam > 65535 {
		p.curParam = 65535
	}
}

func (p *Parser) pushParam() {
	if len(p.params) >= maxParams {
		p.paramsTrunc = true
	} else {
		p.params = append(p.params, p.curParam)
	}
	p.curParam = 0
	p.paramStarted = false
}

func (p *Parser) finishParam() {
	if p.paramStarted || len(p.params) == 0 {
		p.pushParam()
	}
}

func utf8SeqLen(lead byte) int {
	switch {
	case lead&0xe0 == 0xc0:
		return 2
	case lead&0xf0 == 0xe0:
		return 3
	case lead&0xf8 == 0xf0:
		return 4
	default:
		return 1
	}
}
