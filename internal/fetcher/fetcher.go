// Package fetcher loads a page in a tab and waits for its asynchronous
// content to render.
package fetcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/gautamk/summer-hiking-series/internal/browser"
	crawlerrors "github.com/gautamk/summer-hiking-series/internal/errors"
	"github.com/gautamk/summer-hiking-series/internal/logger"
	"github.com/gautamk/summer-hiking-series/internal/metrics"
	"github.com/gautamk/summer-hiking-series/internal/ratelimit"
)

// DefaultMarkerTimeout bounds each wait for a content marker.
const DefaultMarkerTimeout = 12 * time.Second

// Status is the outcome of a successful load.
type Status int

const (
	// StatusReady means the page loaded and its marker, if any, rendered.
	StatusReady Status = iota
	// StatusContentNotReady means the marker never appeared, even after
	// the retry. Callers stop the traversal without treating it as an error.
	StatusContentNotReady
)

// String returns the status name.
func (s Status) String() string {
	if s == StatusContentNotReady {
		return "content_not_ready"
	}
	return "ready"
}

// Fetcher navigates tabs. Each worker owns one, tied to its pacer.
type Fetcher struct {
	markerTimeout time.Duration
	retrier       *crawlerrors.Retrier
	metrics       *metrics.Collector
	log           *logger.Logger
}

// New creates a fetcher whose single content retry waits pacer's retry
// delay. markerTimeout <= 0 uses DefaultMarkerTimeout. metrics may be nil.
func New(pacer *ratelimit.Pacer, markerTimeout time.Duration, m *metrics.Collector, log *logger.Logger) *Fetcher {
	if markerTimeout <= 0 {
		markerTimeout = DefaultMarkerTimeout
	}
	if log == nil {
		log = logger.NewNop()
	}

	retry := crawlerrors.DefaultRetryConfig()
	retry.Delay = func(int) time.Duration { return pacer.Policy().Retry() }

	return &Fetcher{
		markerTimeout: markerTimeout,
		retrier:       crawlerrors.NewRetrier(retry, pacer.Sleep),
		metrics:       m,
		log:           log.WithComponent("fetcher"),
	}
}

// Load navigates tab to url and, if marker is set, waits for it. The
// returned error is a *CrawlError of type Navigation or Cancelled.
func (f *Fetcher) Load(ctx context.Context, tab browser.Tab, url, marker string) (Status, error) {
	if ctx.Err() != nil {
		return StatusReady, crawlerrors.NewCancelledError(url, "navigate")
	}

	start := time.Now()
	if err := tab.Navigate(ctx, url); err != nil {
		if ctx.Err() != nil {
			return StatusReady, crawlerrors.NewCancelledError(url, "navigate")
		}
		return StatusReady, crawlerrors.NewNavigationError(url, err)
	}

	if marker == "" {
		f.recordPage(start)
		return StatusReady, nil
	}

	attempt := 0
	result := f.retrier.Do(ctx, "wait_content", url, func(ctx context.Context) error {
		attempt++
		if attempt > 1 && f.metrics != nil {
			f.metrics.RecordRetry()
		}
		if err := tab.WaitElement(ctx, marker, f.markerTimeout); err != nil {
			if attempt == 1 {
				f.log.WithURL(url).Warn("slow load, waiting and retrying")
			}
			return crawlerrors.NewTimeoutError(url, "wait_content", err)
		}
		return nil
	})

	if result.Success {
		f.recordPage(start)
		return StatusReady, nil
	}
	if ctx.Err() != nil || crawlerrors.GetErrorType(result.LastError) == crawlerrors.Cancelled {
		return StatusReady, crawlerrors.NewCancelledError(url, "wait_content")
	}

	if f.metrics != nil {
		f.metrics.RecordContentNotReady()
	}
	f.log.WithURL(url).Warnf("content marker %q never rendered after %d attempts", marker, result.Attempts)
	return StatusContentNotReady, nil
}

func (f *Fetcher) recordPage(start time.Time) {
	if f.metrics != nil {
		f.metrics.RecordPage(time.Since(start))
	}
}

// Snapshot parses the tab's rendered document and reports the URL it was
// loaded from after redirects.
func (f *Fetcher) Snapshot(ctx context.Context, tab browser.Tab) (*goquery.Document, string, error) {
	current, err := tab.URL(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read page url: %w", err)
	}

	html, err := tab.HTML(ctx)
	if err != nil {
		return nil, current, fmt.Errorf("failed to read page html: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, current, fmt.Errorf("failed to parse page html: %w", err)
	}
	return doc, current, nil
}
