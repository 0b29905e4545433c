package output

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/gautamk/summer-hiking-series/internal/record"
)

// JSONWriter writes one JSON object per line, keys in record order.
type JSONWriter struct {
	mu      sync.Mutex
	writer  io.Writer
	encoder *json.Encoder
	closed  bool
}

// NewJSONWriter creates a new JSON lines writer.
func NewJSONWriter(w io.Writer) *JSONWriter {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	return &JSONWriter{
		writer:  w,
		encoder: encoder,
	}
}

// WriteRecord writes one record.
func (j *JSONWriter) WriteRecord(rec *record.Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	return j.encoder.Encode(rec)
}

// Flush flushes the writer.
func (j *JSONWriter) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if flusher, ok := j.writer.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}

// Close closes the writer.
func (j *JSONWriter) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.closed = true

	if closer, ok := j.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
