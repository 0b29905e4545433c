// Package extract turns rendered WTA pages into records.
//
// Each entity type is an Extractor. The crawl engine only sees the
// interface: which element proves the page is ready, which element links to
// the next page, and how to read items out of a parsed document.
package extract

import (
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/gautamk/summer-hiking-series/internal/record"
)

// Source is the provenance value stamped on every record.
const Source = "wta"

// SiteURL is the origin relative links are resolved against.
const SiteURL = "https://www.wta.org"

// ErrNoContent is returned when a page parsed but holds none of the
// elements the extractor reads.
var ErrNoContent = errors.New("page holds no extractable content")

// Page identifies the document being extracted.
type Page struct {
	// Seed is the URL the traversal started from.
	Seed string
	// URL is the page actually loaded; it differs from Seed on later pages.
	URL string
}

// Item is one extracted record. Date is the raw date text for date-ordered
// feeds and empty otherwise.
type Item struct {
	Record *record.Record
	Date   string
}

// Extractor reads one entity type.
type Extractor interface {
	// Name is the output file prefix, e.g. "wta_reports".
	Name() string
	// URLField names the record field that carries the seed URL.
	URLField() string
	// ContentMarker is the selector whose presence means the asynchronous
	// content has rendered. Empty means the page is ready on load.
	ContentMarker() string
	// NextSelector locates the next-page link. Empty means single page.
	NextSelector() string
	// Dated reports whether items carry dates for the cutoff gate.
	Dated() bool
	// Extract reads items from a parsed page.
	Extract(doc *goquery.Document, page Page) ([]Item, error)
}

// text returns the trimmed text of the first element in s.
func text(s *goquery.Selection) string {
	return strings.TrimSpace(s.First().Text())
}

// optional returns the trimmed text of the first match, or nil when nothing
// matches.
func optional(s *goquery.Selection) any {
	if s.Length() == 0 {
		return nil
	}
	return text(s)
}

// absolute resolves href against SiteURL.
func absolute(href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	base, _ := url.Parse(SiteURL)
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
