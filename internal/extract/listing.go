package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/gautamk/summer-hiking-series/internal/record"
)

// HikeListURL is the hiking guide sorted so popular hikes come first.
const HikeListURL = "https://www.wta.org/go-hiking/hikes?sort=rating"

// HikeListing reads detail-page links from the hiking guide. Its records
// hold a single wta_url field and feed a TrailDetail crawl.
type HikeListing struct{}

func (HikeListing) Name() string          { return "wta_hike_urls" }
func (HikeListing) URLField() string      { return "wta_url" }
func (HikeListing) ContentMarker() string { return "" }
func (HikeListing) NextSelector() string  { return "a[title='Next']" }
func (HikeListing) Dated() bool           { return false }

// Extract implements Extractor.
func (HikeListing) Extract(doc *goquery.Document, page Page) ([]Item, error) {
	var items []Item
	doc.Find("a.listitem-title").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || !strings.Contains(href, "/go-hiking/hikes/") {
			return
		}
		if full := absolute(href); full != "" {
			items = append(items, Item{Record: record.New().Set("wta_url", full)})
		}
	})
	return items, nil
}
