package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/gautamk/summer-hiking-series/internal/record"
)

// ReportListing reads the trip reports embedded in a trail page, five per
// page, newest first.
type ReportListing struct{}

const reportItems = "#trip-reports .item"

func (ReportListing) Name() string          { return "wta_reports" }
func (ReportListing) URLField() string      { return "trail_url" }
func (ReportListing) ContentMarker() string { return reportItems }
func (ReportListing) NextSelector() string  { return "nav.pagination li.next a" }
func (ReportListing) Dated() bool           { return true }

// Extract implements Extractor.
func (ReportListing) Extract(doc *goquery.Document, page Page) ([]Item, error) {
	reports := doc.Find(reportItems)
	if reports.Length() == 0 {
		return nil, ErrNoContent
	}

	items := make([]Item, 0, reports.Length())
	reports.Each(func(_ int, el *goquery.Selection) {
		date := reportDate(text(el.Find(".listitem-title a")))

		conditions := text(el.Find(".trail-issues"))
		conditions = strings.TrimSpace(strings.ReplaceAll(conditions, "Beware of:", ""))

		rec := record.New().
			Set("trail_url", page.Seed).
			Set("report_date", date).
			Set("author", text(el.Find(".wta-icon-headline__text"))).
			Set("conditions", conditions).
			Set("snow_level", ""). // not exposed on listings
			Set("text_summary", text(el.Find(".trip-report-full-text, .trip-report-excerpt")))

		items = append(items, Item{Record: rec, Date: date})
	})

	return items, nil
}

// reportDate takes the date from a title like "Mount Si — Feb. 12, 2026".
func reportDate(title string) string {
	if _, date, ok := strings.Cut(title, "—"); ok {
		return strings.TrimSpace(date)
	}
	return strings.TrimSpace(title)
}
