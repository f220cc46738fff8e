//go:build !windows

package pty

import (
	"context"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// unixHandle wraps the PTY master file descriptor creack/pty hands back
// from pty.Start.
type unixHandle struct {
	master *os.File
}

func (h *unixHandle) Read(p []byte) (int, error)  { return h.master.Read(p) }
func (h *unixHandle) Write(p []byte) (int, error) { return h.master.Write(p) }
func (h *unixHandle) Close() error                { return h.master.Close() }

func (h *unixHandle) Resize(cols, rows int) error {
	return pty.Setsize(h.master, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
}

func startPlatform(cmd *exec.Cmd, cols, rows int) (handle, error) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setsid = true

	master, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
	if err != nil {
		return nil, err
	}
	return &unixHandle{master: master}, nil
}

// signalHangup sends SIGHUP to the child, the first step of Stop's
// teardown sequence.
func (p *PtyPump) signalHangup() {
	p.cmd.Process.Signal(syscall.SIGHUP)
}

// watchResize listens for the host process's own SIGWINCH (delivered when
// its controlling terminal is resized) and invokes onResize for each one,
// until ctx is canceled.
func watchResize(ctx context.Context, onResize func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, unix.SIGWINCH)

	go func() {
		defer signal.Stop(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ch:
				onResize()
			}
		}
	}()
}
