package output

import (
	"time"

	"github.com/burrowscan/burrow/internal/scanner"
)

// Stats holds aggregate run statistics.
type Stats struct {
	TotalRequests  int
	FilteredCount  int
	WildcardCount  int
	ErrorCount     int
	ScansRun       int
	ScansCancelled int
	Duration       time.Duration
	RequestsPerSec float64
}

// Writer is implemented by each output format.
type Writer interface {
	WriteHeader() error
	WriteResult(resp *scanner.Response) error
	WriteFooter(stats Stats) error
	Close() error
}
