package scans

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Menu is the interactive cancellation menu shown while scanning is paused.
// Only scans discovered via recursion or extraction (non-empty ParentID) are
// offered; operator-supplied roots cannot be cancelled from here.
type Menu struct {
	reg *Registry
	in  *bufio.Reader
	out io.Writer
}

// NewMenu creates a menu reading selections from in and printing to out.
func NewMenu(reg *Registry, in io.Reader, out io.Writer) *Menu {
	return &Menu{reg: reg, in: bufio.NewReader(in), out: out}
}

// cancelable returns the scans the menu may offer, in display order.
func (m *Menu) cancelable() []*Scan {
	return m.reg.List(func(s *Scan) bool {
		return s.ParentID != "" && s.Type == TypeDirectory && s.IsActive()
	})
}

// Run displays the menu, reads one selection line, and cancels the chosen
// scans together with their non-terminal descendants. Returns the number of
// scans cancelled. Appending "-f" to the selection skips confirmation.
func (m *Menu) Run() int {
	candidates := m.cancelable()
	if len(candidates) == 0 {
		fmt.Fprintln(m.out, "[*] No cancelable scans (roots cannot be cancelled); press Enter to resume")
		_, _ = m.in.ReadString('\n')
		return 0
	}

	border := strings.Repeat("─", 46)
	fmt.Fprintln(m.out, border)
	fmt.Fprintln(m.out, " Scan Cancel Menu")
	fmt.Fprintln(m.out, border)
	for i, s := range candidates {
		fmt.Fprintf(m.out, " %3d: %-9s %s\n", i+1, s.Status(), s.URL)
	}
	fmt.Fprintln(m.out, border)
	fmt.Fprintln(m.out, " Enter a comma-separated list of indexes to cancel (ex: 2,3 or 1-4); add -f to skip confirmation")
	fmt.Fprintln(m.out, border)

	line, err := m.in.ReadString('\n')
	if err != nil && line == "" {
		return 0
	}

	force := strings.Contains(line, "-f")
	line = strings.ReplaceAll(line, "-f", "")

	cancelled := 0
	for _, idx := range ParseIndices(line) {
		if idx < 1 || idx > len(candidates) {
			fmt.Fprintf(m.out, "[!] %d is not a valid choice\n", idx)
			continue
		}
		selected := candidates[idx-1]

		if !force && !m.confirm(selected.URL) {
			fmt.Fprintln(m.out, "[*] Ok, doing nothing...")
			continue
		}

		fmt.Fprintf(m.out, "[*] Stopping %s...\n", selected.URL)
		cancelled += m.reg.CancelTree(selected.ID, "cancelled from menu")
	}

	return cancelled
}

// confirm asks the user to approve cancelling the given URL.
func (m *Menu) confirm(url string) bool {
	fmt.Fprintf(m.out, "[?] Cancel %s and its children? [y/N] ", url)
	line, err := m.in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// ParseIndices splits a comma-separated selection into unique indices.
// Ranges like "2-5" expand to every value in between. Non-numeric entries
// and zeros are skipped.
func ParseIndices(line string) []int {
	var out []int
	seen := make(map[int]struct{})

	add := func(n int) {
		if n <= 0 {
			return
		}
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}

	for _, part := range strings.Split(line, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err1 := strconv.Atoi(strings.TrimSpace(lo))
			end, err2 := strconv.Atoi(strings.TrimSpace(hi))
			if err1 != nil || err2 != nil || start > end {
				continue
			}
			for n := start; n <= end; n++ {
				add(n)
			}
			continue
		}

		n, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		add(n)
	}

	return out
}
