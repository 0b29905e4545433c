package extract

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/gautamk/summer-hiking-series/internal/record"
)

// TrailDetail reads one hike detail page into a single record.
type TrailDetail struct{}

func (TrailDetail) Name() string          { return "wta_hikes" }
func (TrailDetail) URLField() string      { return "wta_url" }
func (TrailDetail) ContentMarker() string { return "" }
func (TrailDetail) NextSelector() string  { return "" }
func (TrailDetail) Dated() bool           { return false }

var detailFields = []string{
	"trail_name",
	"location",
	"distance_miles",
	"elevation_gain_ft",
	"highest_point_ft",
	"difficulty",
	"trail_type",
	"required_pass",
	"dogs_allowed",
	"kid_friendly",
	"season_window",
	"highlight",
	"wta_url",
}

// Extract implements Extractor. A page without any hike content still
// yields one record, with every content field nil.
func (TrailDetail) Extract(doc *goquery.Document, page Page) ([]Item, error) {
	heading := doc.Find("h1.documentFirstHeading")
	stats := doc.Find(".hike-stat")

	rec := record.New()
	for _, f := range detailFields {
		rec.Set(f, nil)
	}
	rec.Set("wta_url", page.Seed)
	rec.Set("trail_name", optional(heading))

	stats.Each(func(_ int, stat *goquery.Selection) {
		label := strings.ToLower(text(stat.Find(".title")))
		value := text(stat.Find(".hike-stat__content, span:not(.title)"))
		applyStat(rec, label, value)
	})

	var features []string
	doc.Find(".hike-features .feature").Each(func(_ int, s *goquery.Selection) {
		features = append(features, strings.ToLower(strings.TrimSpace(s.Text())))
	})
	rec.Set("dogs_allowed", hasAny(features, "dogs allowed on leash", "dogs allowed"))
	rec.Set("kid_friendly", hasAny(features, "kid friendly", "good for kids"))

	rec.Set("location", optional(doc.Find(".hike-region a, .region-breadcrumb a")))

	if desc := doc.Find("#hike-body-text p, .hike-description p"); desc.Length() > 0 {
		rec.Set("highlight", firstSentence(text(desc)))
	}

	rec.Set("season_window", optional(doc.Find(".hike-season, .best-season")))

	return []Item{{Record: rec}}, nil
}

func applyStat(rec *record.Record, label, value string) {
	switch {
	case strings.Contains(label, "distance"):
		// "5.0 miles, roundtrip"
		parts := strings.Split(value, ",")
		miles := strings.TrimSpace(strings.Replace(parts[0], "miles", "", 1))
		if f, err := strconv.ParseFloat(miles, 64); err == nil {
			rec.Set("distance_miles", f)
		} else {
			rec.Set("distance_miles", value)
		}
		if len(parts) > 1 {
			rec.Set("trail_type", strings.TrimSpace(parts[1]))
		}
	case strings.Contains(label, "gain") || strings.Contains(label, "elevation"):
		rec.Set("elevation_gain_ft", feet(value))
	case strings.Contains(label, "highest"):
		rec.Set("highest_point_ft", feet(value))
	case strings.Contains(label, "difficulty"):
		rec.Set("difficulty", value)
	case strings.Contains(label, "pass") || strings.Contains(label, "permit"):
		rec.Set("required_pass", value)
	}
}

// feet parses "1,800 feet" as 1800, falling back to the raw text.
func feet(value string) any {
	s := strings.ReplaceAll(value, ",", "")
	s = strings.TrimSpace(strings.ReplaceAll(s, "feet", ""))
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return value
}

func firstSentence(s string) string {
	sentences := strings.Split(s, ".")
	first := strings.TrimSpace(sentences[0])
	if len(sentences) > 1 {
		return first + "."
	}
	return first
}

func hasAny(values []string, wanted ...string) bool {
	for _, v := range values {
		for _, w := range wanted {
			if v == w {
				return true
			}
		}
	}
	return false
}
