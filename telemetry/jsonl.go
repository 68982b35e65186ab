package telemetry

import (
	"encoding/json"
	"os"
	"sync"
)

// JSONLSink appends one JSON object per Event to a file, newline-delimited.
// No SQL driver appears anywhere in the retrieval pack wired to real code,
// so this is the nearest faithful stand-in for the source's statistics
// database without fabricating a dependency (see DESIGN.md).
type JSONLSink struct {
	mu  sync.Mutex
	enc *json.Encoder
	f   *os.File
}

// NewJSONLSink opens (creating or truncating) path for line-delimited JSON
// event output.
func NewJSONLSink(path string) (*JSONLSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &JSONLSink{enc: json.NewEncoder(f), f: f}, nil
}

// Record implements Sink. Encoding errors are swallowed: telemetry is
// diagnostic, never load-bearing for assembly correctness.
func (s *JSONLSink) Record(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(e)
}

// Close flushes and closes the underlying file.
func (s *JSONLSink) Close() error {
	return s.f.Close()
}
