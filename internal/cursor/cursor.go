// Package cursor tracks position in a paginated listing.
package cursor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultMaxPages caps a traversal when no limit is given.
const DefaultMaxPages = 20

// Cursor walks the pages of one seed. It only moves forward.
type Cursor struct {
	current string
	// landed is where the browser ended up for current, if it redirected.
	landed   string
	index    int
	maxPages int
	done     bool
}

// New starts a cursor at start. maxPages <= 0 uses DefaultMaxPages.
func New(start string, maxPages int) *Cursor {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Cursor{current: start, maxPages: maxPages}
}

// Current returns the page URL the cursor is on.
func (c *Cursor) Current() string {
	return c.current
}

// Landed records the URL the browser actually shows for the current page.
// The next link is resolved against it, as the browser would.
func (c *Cursor) Landed(u string) {
	c.landed = u
}

// Index returns the zero-based page index.
func (c *Cursor) Index() int {
	return c.index
}

// MaxPages returns the page cap.
func (c *Cursor) MaxPages() int {
	return c.maxPages
}

// Done reports whether the traversal has terminated.
func (c *Cursor) Done() bool {
	return c.done
}

// Stop terminates the traversal.
func (c *Cursor) Stop() {
	c.done = true
}

// AtCap reports whether the next advance would exceed the page cap.
func (c *Cursor) AtCap() bool {
	return c.index+1 >= c.maxPages
}

// Advance moves to the page linked by the first element matching selector.
// It returns false and terminates when there is no such link, the link is
// empty or unresolvable, or the cap is reached.
func (c *Cursor) Advance(doc *goquery.Document, selector string) (string, bool) {
	if c.done || selector == "" || c.AtCap() {
		c.done = true
		return "", false
	}

	href, ok := doc.Find(selector).First().Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" || strings.HasPrefix(href, "#") {
		c.done = true
		return "", false
	}

	base := c.current
	if c.landed != "" {
		base = c.landed
	}
	next, err := resolve(base, href)
	if err != nil {
		c.done = true
		return "", false
	}

	c.current = next
	c.landed = ""
	c.index++
	return next, true
}

func resolve(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(ref).String(), nil
}
