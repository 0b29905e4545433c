// Package browsertest provides an in-memory browser.Tab backed by canned
// pages, for tests that must not launch Chrome.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/gautamk/summer-hiking-series/internal/browser"
)

// Page is a canned response for one URL.
type Page struct {
	HTML string
	// RedirectTo, when set, is where navigation lands instead of the URL.
	RedirectTo string
	// NavigateErr fails navigation to this URL.
	NavigateErr error
	// MarkerMisses is how many WaitElement calls time out before the
	// selector is reported present. The selector must still match HTML.
	MarkerMisses int
}

// Site serves Pages to any number of tabs and records navigations.
type Site struct {
	mu           sync.Mutex
	pages        map[string]Page
	visits       []string
	waits        map[string]int
	localStorage map[string]string
	tabs         int
}

// NewSite creates an empty site.
func NewSite() *Site {
	return &Site{
		pages:        make(map[string]Page),
		waits:        make(map[string]int),
		localStorage: make(map[string]string),
	}
}

// Add registers a page.
func (s *Site) Add(url string, page Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[url] = page
}

// SetLocalStorage sets the entries every tab reports.
func (s *Site) SetLocalStorage(entries map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.localStorage = entries
}

// Visits returns navigated URLs in order.
func (s *Site) Visits() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.visits...)
}

// VisitCount returns how often url was navigated to.
func (s *Site) VisitCount(url string) int {
	n := 0
	for _, v := range s.Visits() {
		if v == url {
			n++
		}
	}
	return n
}

// Tabs returns how many tabs were opened.
func (s *Site) Tabs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tabs
}

// NewTab implements browser.Opener.
func (s *Site) NewTab(ctx context.Context) (browser.Tab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tabs++
	return &Tab{site: s}, nil
}

// Tab is a browser.Tab over a Site.
type Tab struct {
	site    *Site
	current string
	page    Page
	closed  bool
}

// Navigate implements browser.Tab.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.site.mu.Lock()
	defer t.site.mu.Unlock()

	t.site.visits = append(t.site.visits, url)
	page, ok := t.site.pages[url]
	if !ok {
		return fmt.Errorf("navigation failed: net::ERR_NAME_NOT_RESOLVED %s", url)
	}
	if page.NavigateErr != nil {
		return page.NavigateErr
	}

	t.current = url
	t.page = page
	if page.RedirectTo != "" {
		t.current = page.RedirectTo
	}
	return nil
}

// WaitElement implements browser.Tab.
func (t *Tab) WaitElement(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.site.mu.Lock()
	page := t.page
	key := t.current + " " + selector
	t.site.waits[key]++
	attempt := t.site.waits[key]
	t.site.mu.Unlock()

	if attempt <= page.MarkerMisses || !matches(page.HTML, selector) {
		return context.DeadlineExceeded
	}
	return nil
}

// URL implements browser.Tab.
func (t *Tab) URL(ctx context.Context) (string, error) {
	return t.current, nil
}

// HTML implements browser.Tab. It serves the page navigation resolved to,
// even when that page redirected.
func (t *Tab) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return t.page.HTML, nil
}

// LocalStorage implements browser.Tab.
func (t *Tab) LocalStorage(ctx context.Context) (map[string]string, error) {
	t.site.mu.Lock()
	defer t.site.mu.Unlock()
	out := make(map[string]string, len(t.site.localStorage))
	for k, v := range t.site.localStorage {
		out[k] = v
	}
	return out, nil
}

// Close implements browser.Tab.
func (t *Tab) Close() error {
	t.closed = true
	return nil
}

func matches(html, selector string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	return doc.Find(selector).Length() > 0
}
