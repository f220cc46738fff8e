//go:build windows

package pty

import (
	"context"
	"errors"
	"os/exec"
)

// startPlatform is an unimplemented ConPTY stub. A full implementation
// needs CreatePseudoConsole plus STARTUPINFOEX's
// PROC_THREAD_ATTRIBUTE_PSEUDOCONSOLE attribute to attach a child process
// to it, neither of which any retrieval-pack repository binds; wiring that
// up is future work, not something to fake here.
func startPlatform(cmd *exec.Cmd, cols, rows int) (handle, error) {
	return nil, errors.New("pty: ConPTY support is not implemented on windows")
}

// signalHangup has no POSIX-signal equivalent on Windows; Stop falls
// straight through to its grace period and then Kill.
func (p *PtyPump) signalHangup() {}

// watchResize has no SIGWINCH equivalent on Windows. A real implementation
// would poll GetConsoleScreenBufferInfo or handle a console control event;
// left unimplemented alongside the rest of the ConPTY stub.
func watchResize(ctx context.Context, onResize func()) {}
