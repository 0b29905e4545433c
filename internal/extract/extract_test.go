package extract

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

// Compile-time checks.
var (
	_ Extractor = TrailDetail{}
	_ Extractor = ReportListing{}
	_ Extractor = HikeListing{}
)

// =============================================================================
// TrailDetail Tests
// =============================================================================

const mountSi = `
<html><body>
<h1 class="documentFirstHeading"> Mount Si </h1>
<div class="hike-region"><a href="/regions/snoqualmie">Snoqualmie Region</a></div>
<div class="hike-stats">
  <div class="hike-stat"><span class="title">Length</span></div>
  <div class="hike-stat"><span class="title">Distance</span><div class="hike-stat__content">8.0 miles, roundtrip</div></div>
  <div class="hike-stat"><span class="title">Elevation Gain</span><span>3,150 feet</span></div>
  <div class="hike-stat"><span class="title">Highest Point</span><span>3,900 feet</span></div>
  <div class="hike-stat"><span class="title">Calculated Difficulty</span><span>Hard</span></div>
  <div class="hike-stat"><span class="title">Parking Pass/Entry Fee</span><span>Discover Pass</span></div>
</div>
<div class="hike-features">
  <span class="feature">Dogs allowed on leash</span>
  <span class="feature">Mountain views</span>
</div>
<div id="hike-body-text"><p>A classic conditioning hike. Expect crowds on weekends.</p></div>
<div class="best-season">Year-round</div>
</body></html>`

func TestTrailDetail_Extract(t *testing.T) {
	page := Page{Seed: "https://www.wta.org/go-hiking/hikes/mount-si", URL: "https://www.wta.org/go-hiking/hikes/mount-si"}

	items, err := TrailDetail{}.Extract(parse(t, mountSi), page)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Extract() returned %d items, want 1", len(items))
	}
	rec := items[0].Record

	want := map[string]any{
		"trail_name":        "Mount Si",
		"location":          "Snoqualmie Region",
		"distance_miles":    8.0,
		"elevation_gain_ft": 3150,
		"highest_point_ft":  3900,
		"difficulty":        "Hard",
		"trail_type":        "roundtrip",
		"required_pass":     "Discover Pass",
		"dogs_allowed":      true,
		"kid_friendly":      false,
		"season_window":     "Year-round",
		"highlight":         "A classic conditioning hike.",
		"wta_url":           "https://www.wta.org/go-hiking/hikes/mount-si",
	}
	for field, v := range want {
		got, ok := rec.Get(field)
		if !ok {
			t.Errorf("field %s missing", field)
			continue
		}
		if got != v {
			t.Errorf("%s = %#v, want %#v", field, got, v)
		}
	}

	if got := rec.Keys(); !reflect.DeepEqual(got, detailFields) {
		t.Errorf("field order = %v, want %v", got, detailFields)
	}
}

func TestTrailDetail_MissingFieldsAreNil(t *testing.T) {
	html := `<h1 class="documentFirstHeading">Unnamed Loop</h1>`

	items, err := TrailDetail{}.Extract(parse(t, html), Page{Seed: "https://www.wta.org/go-hiking/hikes/x"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	rec := items[0].Record

	for _, field := range []string{"location", "distance_miles", "elevation_gain_ft", "season_window", "highlight"} {
		if v, ok := rec.Get(field); !ok || v != nil {
			t.Errorf("%s = %v (present %v), want nil", field, v, ok)
		}
	}
	if v, _ := rec.Get("dogs_allowed"); v != false {
		t.Errorf("dogs_allowed = %v, want false", v)
	}
}

func TestTrailDetail_UnparseableStats(t *testing.T) {
	html := `
<h1 class="documentFirstHeading">Odd Trail</h1>
<div class="hike-stat"><span class="title">Distance</span><span>about 4 miles</span></div>
<div class="hike-stat"><span class="title">Elevation Gain</span><span>varies</span></div>
<div class="hike-features"><span class="feature">Good for kids</span></div>
<div class="hike-description"><p>No sentence end here</p></div>`

	items, err := TrailDetail{}.Extract(parse(t, html), Page{Seed: "https://www.wta.org/go-hiking/hikes/odd"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	rec := items[0].Record

	if v, _ := rec.Get("distance_miles"); v != "about 4 miles" {
		t.Errorf("distance_miles = %#v, want raw text", v)
	}
	if v, _ := rec.Get("trail_type"); v != nil {
		t.Errorf("trail_type = %#v, want nil", v)
	}
	if v, _ := rec.Get("elevation_gain_ft"); v != "varies" {
		t.Errorf("elevation_gain_ft = %#v, want raw text", v)
	}
	if v, _ := rec.Get("kid_friendly"); v != true {
		t.Errorf("kid_friendly = %#v, want true", v)
	}
	if v, _ := rec.Get("highlight"); v != "No sentence end here" {
		t.Errorf("highlight = %#v", v)
	}
}

func TestTrailDetail_NoContent(t *testing.T) {
	seed := "https://www.wta.org/go-hiking/hikes/gone"
	items, err := TrailDetail{}.Extract(parse(t, `<p>Page not found</p>`), Page{Seed: seed, URL: seed})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Extract() returned %d items, want 1", len(items))
	}
	rec := items[0].Record

	if got := rec.Keys(); !reflect.DeepEqual(got, detailFields) {
		t.Errorf("Keys() = %v, want %v", got, detailFields)
	}
	if v, _ := rec.Get("wta_url"); v != seed {
		t.Errorf("wta_url = %#v, want %q", v, seed)
	}
	for _, f := range []string{"trail_name", "location", "distance_miles", "elevation_gain_ft", "highlight", "season_window"} {
		if v, ok := rec.Get(f); !ok || v != nil {
			t.Errorf("%s = %#v (present %v), want nil", f, v, ok)
		}
	}
	if v, _ := rec.Get("dogs_allowed"); v != false {
		t.Errorf("dogs_allowed = %#v, want false", v)
	}
}

// =============================================================================
// ReportListing Tests
// =============================================================================

const reportsPage = `
<div id="trip-reports">
  <div class="item">
    <h3 class="listitem-title"><a href="/go-hiking/trip-reports/r1">Mount Si — Feb. 12, 2026</a></h3>
    <span class="wta-icon-headline__text"> trailrunner </span>
    <div class="trail-issues">Beware of: snow, icy patches</div>
    <div class="trip-report-excerpt">Microspikes needed above 3000 ft.</div>
  </div>
  <div class="item">
    <h3 class="listitem-title"><a href="/go-hiking/trip-reports/r2">Mount Si — January 30, 2026</a></h3>
    <div class="trip-report-full-text">Clear and dry.</div>
  </div>
</div>
<nav class="pagination"><ul><li class="next"><a href="?b_start:int=5">Next</a></li></ul></nav>`

func TestReportListing_Extract(t *testing.T) {
	seed := "https://www.wta.org/go-hiking/hikes/mount-si"
	page := Page{Seed: seed, URL: seed + "/@@related_tripreport_listing?b_start:int=5"}

	items, err := ReportListing{}.Extract(parse(t, reportsPage), page)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Extract() returned %d items, want 2", len(items))
	}

	first := items[0]
	if first.Date != "Feb. 12, 2026" {
		t.Errorf("Date = %q", first.Date)
	}
	checks := map[string]string{
		"trail_url":    seed,
		"report_date":  "Feb. 12, 2026",
		"author":       "trailrunner",
		"conditions":   "snow, icy patches",
		"snow_level":   "",
		"text_summary": "Microspikes needed above 3000 ft.",
	}
	for field, want := range checks {
		if got := first.Record.Text(field); got != want {
			t.Errorf("%s = %q, want %q", field, got, want)
		}
	}

	wantOrder := []string{"trail_url", "report_date", "author", "conditions", "snow_level", "text_summary"}
	if got := first.Record.Keys(); !reflect.DeepEqual(got, wantOrder) {
		t.Errorf("field order = %v", got)
	}

	second := items[1].Record
	if second.Text("author") != "" || second.Text("text_summary") != "Clear and dry." {
		t.Errorf("second report = author %q text %q", second.Text("author"), second.Text("text_summary"))
	}
}

func TestReportListing_NoItems(t *testing.T) {
	_, err := ReportListing{}.Extract(parse(t, `<div id="trip-reports"></div>`), Page{})
	if !errors.Is(err, ErrNoContent) {
		t.Errorf("Extract() error = %v, want ErrNoContent", err)
	}
}

func TestReportDate(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Mount Si — Feb. 12, 2026", "Feb. 12, 2026"},
		{"Lake — Serene — March 1, 2026", "Serene — March 1, 2026"},
		{" Jan. 3, 2026 ", "Jan. 3, 2026"},
	}
	for _, tt := range tests {
		if got := reportDate(tt.title); got != tt.want {
			t.Errorf("reportDate(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

// =============================================================================
// HikeListing Tests
// =============================================================================

func TestHikeListing_Extract(t *testing.T) {
	html := `
<a class="listitem-title" href="/go-hiking/hikes/mount-si">Mount Si</a>
<a class="listitem-title" href="https://www.wta.org/go-hiking/hikes/rattlesnake-ledge">Rattlesnake Ledge</a>
<a class="listitem-title" href="/go-outside/seasonal-hikes">Seasonal</a>
<a class="listitem-title">No href</a>
<a title="Next" href="/go-hiking/hikes?sort=rating&b_start:int=30">Next</a>`

	items, err := HikeListing{}.Extract(parse(t, html), Page{Seed: HikeListURL, URL: HikeListURL})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	var got []string
	for _, it := range items {
		got = append(got, it.Record.Text("wta_url"))
	}
	want := []string{
		"https://www.wta.org/go-hiking/hikes/mount-si",
		"https://www.wta.org/go-hiking/hikes/rattlesnake-ledge",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("urls = %v, want %v", got, want)
	}
}

func TestExtractors_Metadata(t *testing.T) {
	tests := []struct {
		ex       Extractor
		name     string
		urlField string
		dated    bool
	}{
		{TrailDetail{}, "wta_hikes", "wta_url", false},
		{ReportListing{}, "wta_reports", "trail_url", true},
		{HikeListing{}, "wta_hike_urls", "wta_url", false},
	}
	for _, tt := range tests {
		if tt.ex.Name() != tt.name || tt.ex.URLField() != tt.urlField || tt.ex.Dated() != tt.dated {
			t.Errorf("%T metadata = %s %s %v", tt.ex, tt.ex.Name(), tt.ex.URLField(), tt.ex.Dated())
		}
	}
	if (TrailDetail{}).NextSelector() != "" || (ReportListing{}).ContentMarker() == "" {
		t.Error("unexpected selectors")
	}
}
