package cursor

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func doc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return d
}

const nextSelector = "nav.pagination li.next a"

func TestCursor_Advance(t *testing.T) {
	tests := []struct {
		name   string
		start  string
		html   string
		want   string
		wantOK bool
	}{
		{
			name:   "relative link",
			start:  "https://www.wta.org/go-hiking/hikes/mount-si",
			html:   `<nav class="pagination"><ul><li class="next"><a href="/go-hiking/hikes/mount-si/@@related_tripreport_listing?b_start:int=5">Next</a></li></ul></nav>`,
			want:   "https://www.wta.org/go-hiking/hikes/mount-si/@@related_tripreport_listing?b_start:int=5",
			wantOK: true,
		},
		{
			name:   "absolute link",
			start:  "https://www.wta.org/go-hiking/hikes?sort=rating",
			html:   `<nav class="pagination"><li class="next"><a href="https://www.wta.org/go-hiking/hikes?sort=rating&b_start:int=30">Next</a></li></nav>`,
			want:   "https://www.wta.org/go-hiking/hikes?sort=rating&b_start:int=30",
			wantOK: true,
		},
		{
			name:  "no next link",
			start: "https://www.wta.org/a",
			html:  `<nav class="pagination"><li class="previous"><a href="/b">Prev</a></li></nav>`,
		},
		{
			name:  "empty href",
			start: "https://www.wta.org/a",
			html:  `<nav class="pagination"><li class="next"><a href=" ">Next</a></li></nav>`,
		},
		{
			name:  "fragment only",
			start: "https://www.wta.org/a",
			html:  `<nav class="pagination"><li class="next"><a href="#">Next</a></li></nav>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.start, 0)
			got, ok := c.Advance(doc(t, tt.html), nextSelector)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Advance() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
			if ok {
				if c.Index() != 1 || c.Current() != tt.want {
					t.Errorf("cursor at %d %q after advance", c.Index(), c.Current())
				}
			} else if !c.Done() {
				t.Error("failed advance should terminate the cursor")
			}
		})
	}
}

func TestCursor_ResolvesAgainstLandedURL(t *testing.T) {
	c := New("https://www.wta.org/go-hiking/hikes/mount-si", 5)
	c.Landed("https://www.wta.org/go-hiking/hikes/mount-si-trail/reports/")

	next, ok := c.Advance(doc(t, `<nav class="pagination"><li class="next"><a href="?page=2">Next</a></li></nav>`), nextSelector)
	if !ok || next != "https://www.wta.org/go-hiking/hikes/mount-si-trail/reports/?page=2" {
		t.Fatalf("Advance() = %q, %v", next, ok)
	}

	// The landed URL applies to one page only
	next, ok = c.Advance(doc(t, `<nav class="pagination"><li class="next"><a href="p3">Next</a></li></nav>`), nextSelector)
	if !ok || next != "https://www.wta.org/go-hiking/hikes/mount-si-trail/reports/p3" {
		t.Errorf("Advance() = %q, %v", next, ok)
	}
}

func TestCursor_Cap(t *testing.T) {
	page := doc(t, `<nav class="pagination"><li class="next"><a href="?page=next">Next</a></li></nav>`)
	c := New("https://www.wta.org/listing", 3)

	advances := 0
	for {
		if _, ok := c.Advance(page, nextSelector); !ok {
			break
		}
		advances++
	}

	// 3 pages visited means 2 transitions
	if advances != 2 {
		t.Errorf("advanced %d times with maxPages 3, want 2", advances)
	}
	if c.Index() != 2 {
		t.Errorf("Index() = %d, want 2", c.Index())
	}
}

func TestCursor_IndexStrictlyIncreases(t *testing.T) {
	page := doc(t, `<li class="next"><a href="/p">n</a></li>`)
	c := New("https://www.wta.org/", 10)

	last := c.Index()
	for {
		if _, ok := c.Advance(page, "li.next a"); !ok {
			break
		}
		if c.Index() <= last {
			t.Fatalf("index went from %d to %d", last, c.Index())
		}
		last = c.Index()
	}
}

func TestCursor_Stop(t *testing.T) {
	page := doc(t, `<li class="next"><a href="/p">n</a></li>`)
	c := New("https://www.wta.org/", 10)
	c.Stop()

	if _, ok := c.Advance(page, "li.next a"); ok {
		t.Error("Advance() after Stop should fail")
	}
}

func TestCursor_Defaults(t *testing.T) {
	if c := New("https://www.wta.org/", -1); c.MaxPages() != DefaultMaxPages {
		t.Errorf("MaxPages() = %d, want %d", c.MaxPages(), DefaultMaxPages)
	}
	c := New("https://www.wta.org/", 1)
	if !c.AtCap() {
		t.Error("maxPages 1 should be at cap immediately")
	}
	if _, ok := c.Advance(doc(t, `<li class="next"><a href="/p">n</a></li>`), ""); ok {
		t.Error("empty selector should not advance")
	}
}
