package output

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/burrowscan/burrow/internal/scanner"
)

// JSONWriter streams results as one JSON object per line, so output remains
// usable even if the run is interrupted. Results arrive concurrently from
// every scan's executor, so writes are serialized.
type JSONWriter struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
}

// NewJSONWriter creates a JSON-lines output writer.
func NewJSONWriter(outputFile string) (*JSONWriter, error) {
	var w io.Writer = os.Stdout
	var closer io.Closer
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return nil, err
		}
		w = f
		closer = f
	}
	return &JSONWriter{enc: json.NewEncoder(w), closer: closer}, nil
}

func (j *JSONWriter) WriteHeader() error { return nil }

func (j *JSONWriter) WriteResult(resp *scanner.Response) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.enc.Encode(resp)
}

func (j *JSONWriter) WriteFooter(stats Stats) error { return nil }

func (j *JSONWriter) Close() error {
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}
