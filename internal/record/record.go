// Package record defines the extracted row type shared by every extractor
// and writer.
package record

import (
	"strconv"
	"time"

	om "github.com/wk8/go-ordered-map/v2"
)

// Provenance field names.
const (
	FieldSource    = "source"
	FieldScrapedAt = "scraped_at"
)

// Record is an ordered set of named fields. Values are string, float64,
// int, bool or nil; a field that could not be extracted is present with a
// nil value, never missing.
type Record struct {
	fields *om.OrderedMap[string, any]
}

// New creates an empty record.
func New() *Record {
	return &Record{fields: om.New[string, any]()}
}

// Set assigns a field. Re-setting a field keeps its original position.
func (r *Record) Set(name string, value any) *Record {
	r.fields.Set(name, value)
	return r
}

// Get returns a field's value.
func (r *Record) Get(name string) (any, bool) {
	return r.fields.Get(name)
}

// Keys returns field names in insertion order.
func (r *Record) Keys() []string {
	keys := make([]string, 0, r.fields.Len())
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Len returns the number of fields.
func (r *Record) Len() int {
	return r.fields.Len()
}

// Text returns the formatted value of a field, or "" when absent.
func (r *Record) Text(name string) string {
	v, _ := r.fields.Get(name)
	return Format(v)
}

// Stamp appends provenance: the source URL under urlField (kept in place if
// the extractor already set it), the source name and the scrape time.
func (r *Record) Stamp(urlField, url, source string, now time.Time) *Record {
	if _, ok := r.fields.Get(urlField); !ok {
		r.fields.Set(urlField, url)
	}
	r.fields.Set(FieldSource, source)
	r.fields.Set(FieldScrapedAt, now.UTC().Format(time.RFC3339))
	return r
}

// MarshalJSON encodes the record as an object in field order.
func (r *Record) MarshalJSON() ([]byte, error) {
	return r.fields.MarshalJSON()
}

// UnmarshalJSON decodes an object, keeping its key order. Numbers come
// back as float64.
func (r *Record) UnmarshalJSON(data []byte) error {
	if r.fields == nil {
		r.fields = om.New[string, any]()
	}
	return r.fields.UnmarshalJSON(data)
}

// Format renders a field value for tabular output.
func Format(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
