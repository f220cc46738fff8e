// Package pty runs a child process attached to a pseudo-terminal and pumps
// its output into an io.Writer, mirroring the read-loop/resize/teardown
// shape of a PTY-backed terminal application.
package pty

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// KillGrace is how long Stop waits after sending SIGHUP before escalating
// to SIGKILL.
const KillGrace = 2 * time.Second

// handle is the platform-specific PTY master side. pty_unix.go implements it
// with github.com/creack/pty; pty_windows.go implements it with a ConPTY
// stub.
type handle interface {
	io.Reader
	io.Writer
	io.Closer
	Resize(cols, rows int) error
}

// PtyPump spawns a command attached to a pseudo-terminal, reads its output
// into a sink (typically a Terminal, which implements io.Writer), and
// tears the child down cleanly on Stop.
type PtyPump struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	master handle
	sink   io.Writer

	stop     chan struct{}
	stopOnce sync.Once
	readDone chan struct{}
	waitDone chan struct{}
}

// Start spawns command with args attached to a new PTY sized cols x rows,
// and begins pumping its output into sink. The TERM, COLUMNS, and LINES
// environment variables are set the way an interactive shell expects.
func Start(command string, args []string, cols, rows int, sink io.Writer) (*PtyPump, error) {
	if cols <= 0 || rows <= 0 {
		return nil, errors.New("pty: invalid size")
	}

	cmd := exec.Command(command, args...)
	cmd.Env = append(os.Environ(),
		"TERM=xterm-256color",
		envInt("COLUMNS", cols),
		envInt("LINES", rows),
	)

	master, err := startPlatform(cmd, cols, rows)
	if err != nil {
		return nil, err
	}

	p := &PtyPump{
		cmd:      cmd,
		master:   master,
		sink:     sink,
		stop:     make(chan struct{}),
		readDone: make(chan struct{}),
		waitDone: make(chan struct{}),
	}

	go p.readLoop()
	go p.waitLoop()

	return p, nil
}

func envInt(name string, v int) string {
	return name + "=" + itoa(v)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// readLoop copies PTY output into the sink until the PTY closes or Stop is
// called.
func (p *PtyPump) readLoop() {
	defer close(p.readDone)

	buf := make([]byte, 4096)
	for {
		select {
		case <-p.stop:
			return
		default:
		}

		n, err := p.master.Read(buf)
		if n > 0 {
			p.sink.Write(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// waitLoop reaps the child process so Wait's exit status is available and
// Stop's grace period can detect a clean exit.
func (p *PtyPump) waitLoop() {
	defer close(p.waitDone)
	p.cmd.Wait()
}

// Write sends input bytes (typically from an InputEncoder) to the child's
// stdin via the PTY master.
func (p *PtyPump) Write(data []byte) (int, error) {
	return p.master.Write(data)
}

// Resize propagates a new terminal size to the PTY. On Unix this also
// causes the kernel to deliver SIGWINCH to the child's foreground process
// group.
func (p *PtyPump) Resize(cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return errors.New("pty: invalid size")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.master.Resize(cols, rows)
}

// WatchResize installs a signal handler for the host process's own window
// change signal (SIGWINCH on Unix; a no-op on platforms without one) and
// calls getSize to fetch the new size and Resize to forward it, until ctx
// is canceled. getSize is typically golang.org/x/term.GetSize on the
// controlling terminal's file descriptor.
func (p *PtyPump) WatchResize(ctx context.Context, getSize func() (cols, rows int, err error)) {
	watchResize(ctx, func() {
		if cols, rows, err := getSize(); err == nil {
			p.Resize(cols, rows)
		}
	})
}

// Stop tears the child process down: SIGHUP, then up to KillGrace for it to
// exit on its own, then SIGKILL. Once the child has exited (or been killed)
// the PTY master is closed, and Stop returns after the read loop has ended.
func (p *PtyPump) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)

		if p.cmd.Process != nil {
			p.signalHangup()
		}

		select {
		case <-p.waitDone:
		case <-time.After(KillGrace):
			if p.cmd.Process != nil {
				p.cmd.Process.Kill()
			}
			<-p.waitDone
		}

		p.master.Close()
		<-p.readDone
	})
}

// Exited reports whether the child process has finished.
func (p *PtyPump) Exited() bool {
	select {
	case <-p.waitDone:
		return true
	default:
		return false
	}
}

// Done returns a channel that is closed once the child process has exited,
// so a caller can select on it instead of polling Exited.
func (p *PtyPump) Done() <-chan struct{} {
	return p.waitDone
}
