package vterm

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/coreterm/vterm/pty"
)

// Session is one running terminal: a child process attached to a PTY, the
// Terminal that consumes its output, and the encoders/indexes built on top
// of that Terminal.
type Session struct {
	ID       uuid.UUID
	Terminal *Terminal
	Input    *InputEncoder
	Search   *SearchIndex

	pump   *pty.PtyPump
	cancel context.CancelFunc
}

// Resize changes the session's terminal size and propagates it to the
// child process's PTY.
func (s *Session) Resize(rows, cols int) error {
	s.Terminal.Resize(rows, cols)
	return s.pump.Resize(cols, rows)
}

// Send writes encoded input bytes to the child process.
func (s *Session) Send(data []byte) (int, error) {
	return s.pump.Write(data)
}

// Exited reports whether the child process has finished.
func (s *Session) Exited() bool {
	return s.pump.Exited()
}

// Done returns a channel that is closed once the child process has exited.
func (s *Session) Done() <-chan struct{} {
	return s.pump.Done()
}

// stop tears the session's PTY pump down and cancels its resize watcher,
// if any.
func (s *Session) stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.pump.Stop()
}

// Controller wires a PtyPump to a Terminal to a Snapshot for each session
// it manages, and tracks sessions by id across their lifetime.
type Controller struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewController creates an empty session controller.
func NewController() *Controller {
	return &Controller{sessions: make(map[uuid.UUID]*Session)}
}

// GetSizeFunc reports the current host terminal size, typically backed by
// golang.org/x/term.GetSize on a controlling tty's file descriptor.
type GetSizeFunc func() (cols, rows int, err error)

// StartSession spawns command as a child process attached to a new PTY of
// size rows x cols, wires its output into a new Terminal, and returns the
// running Session. If getSize is non-nil, the session also watches the
// host process's own resize signal and propagates new sizes automatically;
// pass nil for a session with no controlling terminal of its own (e.g. one
// driven entirely over a network protocol).
func (c *Controller) StartSession(command string, args []string, rows, cols int, getSize GetSizeFunc, opts ...Option) (*Session, error) {
	term := New(append([]Option{WithSize(rows, cols)}, opts...)...)

	pump, err := pty.Start(command, args, cols, rows, term)
	if err != nil {
		return nil, fmt.Errorf("vterm: start session: %w", err)
	}

	sess := &Session{
		ID:       uuid.New(),
		Terminal: term,
		Input:    NewInputEncoder(term),
		Search:   NewSearchIndex(term),
		pump:     pump,
	}

	if getSize != nil {
		ctx, cancel := context.WithCancel(context.Background())
		sess.cancel = cancel
		pump.WatchResize(ctx, func() (int, int, error) { return getSize() })
	}

	c.mu.Lock()
	c.sessions[sess.ID] = sess
	c.mu.Unlock()

	return sess, nil
}

// Session returns the session for id, or nil if no such session is running.
func (c *Controller) Session(id uuid.UUID) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[id]
}

// Sessions returns the ids of all currently tracked sessions.
func (c *Controller) Sessions() []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(c.sessions))
	for id := range c.sessions {
		ids = append(ids, id)
	}
	return ids
}

// StopSession tears a session's child process down and removes it from the
// controller. Stopping an unknown id is a no-op.
func (c *Controller) StopSession(id uuid.UUID) {
	c.mu.Lock()
	sess, ok := c.sessions[id]
	if ok {
		delete(c.sessions, id)
	}
	c.mu.Unlock()

	if ok {
		sess.stop()
	}
}

// Snapshot returns a renderer-facing snapshot of a session's terminal
// state, or nil if id is unknown.
func (c *Controller) Snapshot(id uuid.UUID, detail SnapshotDetail) *Snapshot {
	sess := c.Session(id)
	if sess == nil {
		return nil
	}
	return sess.Terminal.Snapshot(detail)
}
