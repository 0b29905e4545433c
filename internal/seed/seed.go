// Package seed builds and validates the ordered set of URLs a crawl starts
// from.
package seed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// DefaultColumn is the seed column written by a hike detail crawl.
const DefaultColumn = "wta_url"

// Validator accepts URLs on the same registrable domain as a site.
type Validator struct {
	domain string
}

// NewValidator creates a validator for siteURL's registrable domain, so
// "https://www.wta.org" also admits "wta.org" and its other subdomains.
func NewValidator(siteURL string) (*Validator, error) {
	parsed, err := url.Parse(siteURL)
	if err != nil {
		return nil, err
	}
	domain, err := registrable(parsed.Hostname())
	if err != nil {
		return nil, fmt.Errorf("invalid site %q: %w", siteURL, err)
	}
	return &Validator{domain: domain}, nil
}

// Domain returns the registrable domain seeds must belong to.
func (v *Validator) Domain() string {
	return v.domain
}

// Check returns the normalized form of raw, or an error when it is not an
// absolute http(s) URL on the site.
func (v *Validator) Check(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("malformed seed %q: %w", raw, err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("seed %q is not an absolute http(s) url", raw)
	}
	if parsed.Hostname() == "" {
		return "", fmt.Errorf("seed %q has no host", raw)
	}

	domain, err := registrable(parsed.Hostname())
	if err != nil || domain != v.domain {
		return "", fmt.Errorf("seed %q is outside %s", raw, v.domain)
	}

	parsed.Fragment = ""
	return parsed.String(), nil
}

func registrable(host string) (string, error) {
	return publicsuffix.EffectiveTLDPlusOne(strings.ToLower(host))
}

// Set is an ordered, duplicate-free list of seeds. Rejected holds the rows
// that failed validation, in file order.
type Set struct {
	URLs     []string
	Rejected []error
}

// Len returns the number of accepted seeds.
func (s *Set) Len() int {
	return len(s.URLs)
}

func (s *Set) add(seen map[string]struct{}, u string) {
	if _, dup := seen[u]; dup {
		return
	}
	seen[u] = struct{}{}
	s.URLs = append(s.URLs, u)
}

// FromURL builds a single-seed set. An invalid URL is an error.
func FromURL(v *Validator, raw string) (*Set, error) {
	u, err := v.Check(raw)
	if err != nil {
		return nil, err
	}
	return &Set{URLs: []string{u}}, nil
}

// FromFile loads seeds from column of a CSV file with a header row, in
// file order. Blank cells are skipped and invalid ones are collected in
// Rejected.
func FromFile(v *Validator, path, column string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	return FromReader(v, f, column)
}

// FromReader is FromFile over an open reader.
func FromReader(v *Validator, r io.Reader, column string) (*Set, error) {
	if column == "" {
		column = DefaultColumn
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("seed file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read seed header: %w", err)
	}

	idx := -1
	for i, name := range header {
		if strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("seed file has no %q column", column)
	}

	set := &Set{}
	seen := make(map[string]struct{})
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read seed file: %w", err)
		}
		if idx >= len(row) || strings.TrimSpace(row[idx]) == "" {
			continue
		}

		u, err := v.Check(row[idx])
		if err != nil {
			set.Rejected = append(set.Rejected, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		set.add(seen, u)
	}

	return set, nil
}
