// Package output serializes crawl records to CSV or JSON lines.
package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gautamk/summer-hiking-series/internal/record"
)

// Formats.
const (
	FormatCSV   = "csv"
	FormatJSONL = "jsonl"
)

// Writer defines the interface for output writers.
type Writer interface {
	// WriteRecord writes one record. The first record fixes the columns.
	WriteRecord(rec *record.Record) error

	// Flush flushes any buffered output
	Flush() error

	// Close closes the writer
	Close() error
}

// NewWriter creates a writer for format.
func NewWriter(w io.Writer, format string) (Writer, error) {
	switch format {
	case FormatCSV, "":
		return NewCSVWriter(w), nil
	case FormatJSONL:
		return NewJSONWriter(w), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// Extension returns the file extension for format.
func Extension(format string) string {
	if format == FormatJSONL {
		return ".jsonl"
	}
	return ".csv"
}

// Path returns dir/<prefix>_<YYYYMMDD><ext>, dated in UTC.
func Path(dir, prefix, format string, now time.Time) string {
	name := fmt.Sprintf("%s_%s%s", prefix, now.UTC().Format("20060102"), Extension(format))
	return filepath.Join(dir, name)
}

// WriteFile writes records to their dated file under dir and returns the
// path. With no records nothing is written and the path is empty.
func WriteFile(dir, prefix, format string, now time.Time, records []*record.Record) (string, error) {
	if len(records) == 0 {
		return "", nil
	}
	if _, err := NewWriter(io.Discard, format); err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := Path(dir, prefix, format, now)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}

	buf := bufio.NewWriter(f)
	w, _ := NewWriter(buf, format)
	for _, rec := range records {
		if err := w.WriteRecord(rec); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := buf.Flush(); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return path, nil
}
