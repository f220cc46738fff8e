// Command vtermd runs a command inside a real PTY, feeds its output
// through the vterm engine, and prints the final screen (and, with
// -search, any matches) once the command exits or is interrupted.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/coreterm/vterm"
)

func main() {
	rows := flag.Int("rows", 0, "terminal rows (0: use the controlling tty's size)")
	cols := flag.Int("cols", 0, "terminal cols (0: use the controlling tty's size)")
	search := flag.String("search", "", "pattern to search for in the session's output")
	snapshotJSON := flag.Bool("snapshot", false, "print a JSON snapshot of the final screen instead of plain text")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		shell := os.Getenv("SHELL")
		if shell == "" {
			shell = "/bin/sh"
		}
		args = []string{shell}
	}

	if err := run(args[0], args[1:], *rows, *cols, *search, *snapshotJSON); err != nil {
		fmt.Fprintln(os.Stderr, "vtermd:", err)
		os.Exit(1)
	}
}

func run(command string, args []string, rows, cols int, searchPattern string, snapshotJSON bool) error {
	stdinFd := int(os.Stdin.Fd())

	if cols == 0 || rows == 0 {
		if w, h, err := term.GetSize(stdinFd); err == nil {
			if cols == 0 {
				cols = w
			}
			if rows == 0 {
				rows = h
			}
		}
	}
	if cols == 0 {
		cols = vterm.DEFAULT_COLS
	}
	if rows == 0 {
		rows = vterm.DEFAULT_ROWS
	}

	controller := vterm.NewController()

	getSize := func() (int, int, error) { return term.GetSize(stdinFd) }
	sess, err := controller.StartSession(command, args, rows, cols, getSize)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer controller.StopSession(sess.ID)

	restore, rawErr := term.MakeRaw(stdinFd)
	if rawErr == nil {
		defer term.Restore(stdinFd, restore)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)

	stdinBytes := make(chan []byte)
	go copyStdin(stdinBytes)

	for {
		select {
		case <-interrupt:
			return report(sess, searchPattern, snapshotJSON)

		case <-sess.Done():
			return report(sess, searchPattern, snapshotJSON)

		case data, ok := <-stdinBytes:
			if !ok {
				return report(sess, searchPattern, snapshotJSON)
			}
			if _, err := sess.Send(data); err != nil {
				return report(sess, searchPattern, snapshotJSON)
			}
		}
	}
}

// copyStdin reads raw bytes from stdin (already in the local tty's own
// encoding, since the controlling terminal does its own key/mouse
// encoding) and forwards them to the session, mirroring a real terminal
// emulator's pass-through input path.
func copyStdin(out chan<- []byte) {
	defer close(out)
	buf := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			out <- chunk
		}
		if err != nil {
			if err != io.EOF {
				return
			}
			return
		}
	}
}

func report(sess *vterm.Session, searchPattern string, snapshotJSON bool) error {
	if searchPattern != "" {
		sess.Search.SetPattern(searchPattern)
		for _, m := range sess.Search.Matches() {
			fmt.Fprintf(os.Stderr, "match at row %d col %d\n", m.Row, m.Col)
		}
	}

	if snapshotJSON {
		snap := sess.Terminal.Snapshot(vterm.SnapshotDetailStyled)
		enc, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(enc))
		return nil
	}

	fmt.Println(strings.TrimRight(sess.Terminal.String(), "\n"))
	return nil
}
