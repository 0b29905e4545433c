package output

import (
	"io"
	"strings"
	"sync"

	"github.com/gautamk/summer-hiking-series/internal/record"
)

// CSVWriter writes records as CSV with every field quoted and CRLF line
// endings. The header comes from the first record; later records are
// written in that column order, with absent columns left empty.
type CSVWriter struct {
	mu      sync.Mutex
	writer  io.Writer
	columns []string
	closed  bool
}

// NewCSVWriter creates a new CSV writer.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{writer: w}
}

// Columns returns the header, once the first record has been written.
func (c *CSVWriter) Columns() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.columns...)
}

// WriteRecord writes one record.
func (c *CSVWriter) WriteRecord(rec *record.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	if c.columns == nil {
		c.columns = rec.Keys()
		if err := c.writeRow(c.columns); err != nil {
			return err
		}
	}

	row := make([]string, len(c.columns))
	for i, col := range c.columns {
		row[i] = rec.Text(col)
	}
	return c.writeRow(row)
}

func (c *CSVWriter) writeRow(fields []string) error {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteString("\r\n")

	_, err := io.WriteString(c.writer, b.String())
	return err
}

// Flush flushes the writer.
func (c *CSVWriter) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if flusher, ok := c.writer.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}

// Close closes the writer.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true

	if closer, ok := c.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
