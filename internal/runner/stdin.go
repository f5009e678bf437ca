package runner

import (
	"fmt"
	"io"
	"os"

	"github.com/burrowscan/burrow/internal/scans"
	"golang.org/x/term"
)

// startControl starts a goroutine that reads single keypresses from stdin.
// Enter or Space toggles pause; while paused, the cancel menu is offered in
// cooked mode. Ctrl+C restores the terminal and re-sends SIGINT so the
// normal signal handler chain fires. Returns a cleanup function restoring
// the terminal state; if stdin is not a terminal the control plane is
// disabled and cleanup is a no-op.
func (r *Runner) startControl() (cleanup func()) {
	fd := int(os.Stdin.Fd())

	if !term.IsTerminal(fd) {
		return func() {}
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		if !r.cfg.Quiet {
			fmt.Fprintf(os.Stderr, "[!] Could not enable raw terminal: %v\n", err)
		}
		return func() {}
	}

	// MakeRaw disables OPOST which stops \n → \r\n translation, causing
	// cursor alignment issues. Re-enable it since we only need raw input.
	fixOutputProcessing(fd)

	cleanup = func() {
		_ = term.Restore(fd, oldState)
	}

	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			if n == 0 {
				continue
			}

			switch key := buf[0]; {
			case key == 0x03: // Ctrl+C
				_ = term.Restore(fd, oldState)
				sendInterrupt()
				return

			case key == '\r' || key == '\n' || key == ' ':
				if r.pauser.IsPaused() {
					r.resumeScans()
				} else {
					r.pauseScans(fd, oldState)
				}
			}
		}
	}()

	return cleanup
}

// pauseScans halts the worker pools at their next request boundary, moves
// Running scans to Paused, and offers the cancel menu. The terminal drops to
// cooked mode for the menu's line input, then returns to raw; once the
// selection line has been processed the run resumes on its own.
func (r *Runner) pauseScans(fd int, oldState *term.State) {
	r.pauser.Pause()
	for _, s := range r.reg.List(func(s *scans.Scan) bool { return s.Status() == scans.StatusRunning }) {
		_ = r.reg.Transition(s.ID, scans.StatusPaused)
	}

	r.progress.ClearLine()
	fmt.Fprintf(os.Stderr, "\r\033[K[*] Scan PAUSED\n")

	_ = term.Restore(fd, oldState)
	r.runMenu(os.Stdin, os.Stderr)
	if _, err := term.MakeRaw(fd); err == nil {
		fixOutputProcessing(fd)
	}
}

// runMenu offers the cancel menu and resumes the run once the selection has
// been handled.
func (r *Runner) runMenu(in io.Reader, out io.Writer) {
	menu := scans.NewMenu(r.reg, in, out)
	if cancelled := menu.Run(); cancelled > 0 {
		fmt.Fprintf(out, "[*] Cancelled %d scan(s)\n", cancelled)
		r.governor.Kick()
	}
	r.resumeScans()
}

// resumeScans moves Paused scans back to Running and releases the pools.
func (r *Runner) resumeScans() {
	for _, s := range r.reg.List(func(s *scans.Scan) bool { return s.Status() == scans.StatusPaused }) {
		_ = r.reg.Transition(s.ID, scans.StatusRunning)
	}
	r.pauser.Resume()
	fmt.Fprintf(os.Stderr, "\r\033[K[*] Scan RESUMED\n")
}
