package output

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/burrowscan/burrow/internal/scanner"
)

// ANSI color codes.
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorCyan   = "\033[36m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
)

// TextWriter writes colored text output to a writer. Concurrent scan
// executors report through it, so result writes are serialized.
type TextWriter struct {
	mu      sync.Mutex
	w       io.Writer
	noColor bool
	quiet   bool
}

// NewTextWriter creates a text output writer. If outputFile is empty, stdout
// is used. noColor disables ANSI escape codes.
func NewTextWriter(outputFile string, noColor, quiet bool) (*TextWriter, error) {
	var w io.Writer = os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return nil, err
		}
		w = f
	}
	return &TextWriter{w: w, noColor: noColor, quiet: quiet}, nil
}

func (t *TextWriter) WriteHeader() error {
	if t.quiet {
		return nil
	}
	dim := "\033[2m"
	reset := colorReset
	if t.noColor {
		dim = ""
		reset = ""
	}
	_, err := fmt.Fprintf(t.w, "%sCode      Size  Words  Lines  URL%s\n", dim, reset)
	return err
}

func (t *TextWriter) WriteResult(resp *scanner.Response) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	color := t.colorForStatus(resp.StatusCode)
	reset := colorReset
	if t.noColor {
		color = ""
		reset = ""
	}

	redirectInfo := ""
	if resp.RedirectURL != "" {
		redirectInfo = fmt.Sprintf(" -> %s", resp.RedirectURL)
	}

	_, err := fmt.Fprintf(t.w, "%s%3d%s  %8d  %5d  %5d  %s%s\n",
		color, resp.StatusCode, reset,
		resp.ContentLength,
		resp.WordCount,
		resp.LineCount,
		resp.URL,
		redirectInfo,
	)
	return err
}

func (t *TextWriter) WriteFooter(stats Stats) error {
	if t.quiet {
		return nil
	}
	_, err := fmt.Fprintf(os.Stderr,
		"\nCompleted: %d requests | Scans: %d (%d cancelled) | Filtered: %d (%d wildcard) | Errors: %d | Duration: %s | %.1f req/s\n",
		stats.TotalRequests,
		stats.ScansRun,
		stats.ScansCancelled,
		stats.FilteredCount,
		stats.WildcardCount,
		stats.ErrorCount,
		stats.Duration.Round(time.Millisecond),
		stats.RequestsPerSec,
	)
	return err
}

func (t *TextWriter) Close() error {
	if closer, ok := t.w.(io.Closer); ok && t.w != os.Stdout {
		return closer.Close()
	}
	return nil
}

func (t *TextWriter) colorForStatus(code int) string {
	if t.noColor {
		return ""
	}
	switch {
	case code >= 200 && code < 300:
		return colorGreen
	case code >= 300 && code < 400:
		return colorCyan
	case code >= 400 && code < 500:
		return colorYellow
	case code >= 500:
		return colorRed
	default:
		return ""
	}
}
