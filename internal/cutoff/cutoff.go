// Package cutoff decides when a newest-first listing has paged past the
// lookback window.
package cutoff

import (
	"fmt"
	"strings"
	"time"
)

// Verdict is the outcome of evaluating an item or a finished page.
type Verdict int

const (
	// Keep retains the item, or continues to the next page.
	Keep Verdict = iota
	// Drop discards an item older than the window.
	Drop
	// SequenceExhausted stops pagination after the current page.
	SequenceExhausted
)

// String returns the verdict name.
func (v Verdict) String() string {
	switch v {
	case Keep:
		return "keep"
	case Drop:
		return "drop"
	case SequenceExhausted:
		return "sequence_exhausted"
	default:
		return "unknown"
	}
}

// Window is the inclusive lower bound on item dates for one run.
type Window struct {
	cutoff time.Time
}

// NewWindow returns the window reaching lookbackDays back from now. A
// non-positive lookback yields the zero window, which keeps everything.
func NewWindow(now time.Time, lookbackDays int) Window {
	if lookbackDays <= 0 {
		return Window{}
	}
	return Window{cutoff: now.UTC().AddDate(0, 0, -lookbackDays)}
}

// Cutoff returns the bound.
func (w Window) Cutoff() time.Time {
	return w.cutoff
}

// IsZero reports whether the window is unbounded.
func (w Window) IsZero() bool {
	return w.cutoff.IsZero()
}

var layouts = []string{
	"January 2, 2006",
	"Jan. 2, 2006",
	"Jan 2, 2006",
	"2006-01-02",
}

// ParseDate parses the date formats the site renders on report listings.
func ParseDate(raw string) (time.Time, error) {
	s := strings.Join(strings.Fields(raw), " ")
	s = strings.Replace(s, "Sept.", "Sep.", 1)

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", raw)
}

// Gate applies a window to the items of one page at a time.
type Gate struct {
	window  Window
	dropped bool
	// OnUnparseable, if set, receives dates that could not be parsed.
	OnUnparseable func(raw string, err error)
}

// NewGate creates a gate for window.
func NewGate(window Window) *Gate {
	return &Gate{window: window}
}

// Evaluate returns Drop for an item dated before the window and Keep
// otherwise. Items with missing or unparseable dates are kept.
func (g *Gate) Evaluate(raw string) Verdict {
	if g.window.IsZero() {
		return Keep
	}

	date, err := ParseDate(raw)
	if err != nil {
		if g.OnUnparseable != nil {
			g.OnUnparseable(raw, err)
		}
		return Keep
	}

	if date.Before(g.window.cutoff) {
		g.dropped = true
		return Drop
	}
	return Keep
}

// Settle closes the current page. It returns SequenceExhausted when any
// item on the page was dropped, Keep otherwise, and resets for the next
// page.
func (g *Gate) Settle() Verdict {
	dropped := g.dropped
	g.dropped = false
	if dropped {
		return SequenceExhausted
	}
	return Keep
}
