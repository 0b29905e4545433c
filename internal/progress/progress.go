// Package progress provides the status line shown while seeds are crawled.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Display manages the progress line during a crawl.
type Display struct {
	mu      sync.Mutex
	started bool
	stopped bool
	out     io.Writer
	now     func() time.Time

	// Stats
	totalSeeds  atomic.Int64
	seedsDone   atomic.Int64
	seedsFailed atomic.Int64
	pages       atomic.Int64
	records     atomic.Int64
	errors      atomic.Int64

	// Timing
	startTime time.Time
	label     string
	current   string

	// Display
	lastLine string
}

// New creates a display writing to w; nil means stderr.
func New(w io.Writer) *Display {
	if w == nil {
		w = os.Stderr
	}
	return &Display{out: w, now: time.Now}
}

// Start begins the display for a crawl over total seeds.
func (d *Display) Start(label string, total int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return
	}

	d.started = true
	d.startTime = d.now()
	d.label = label
	d.totalSeeds.Store(int64(total))
}

// SeedStarted marks url as the seed being crawled.
func (d *Display) SeedStarted(url string) {
	d.mu.Lock()
	d.current = url
	d.mu.Unlock()
	d.render()
}

// PageDone counts one loaded page and the records it kept.
func (d *Display) PageDone(records int) {
	d.pages.Add(1)
	d.records.Add(int64(records))
	d.render()
}

// Error counts a page-level error.
func (d *Display) Error() {
	d.errors.Add(1)
	d.render()
}

// SeedFinished counts a seed as done or failed.
func (d *Display) SeedFinished(failed bool) {
	if failed {
		d.seedsFailed.Add(1)
	} else {
		d.seedsDone.Add(1)
	}
	d.render()
}

func (d *Display) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started || d.stopped {
		return
	}

	finished := d.seedsDone.Load() + d.seedsFailed.Load()
	total := d.totalSeeds.Load()

	line := fmt.Sprintf("\r[%s] seed %d/%d | Pages: %d | Records: %d | Errors: %d | %s | %s",
		d.label, finished, total, d.pages.Load(), d.records.Load(), d.errors.Load(),
		formatDuration(d.now().Sub(d.startTime)), truncateURL(d.current, 60))

	// Clear previous line and print new one
	if len(line) < len(d.lastLine) {
		fmt.Fprint(d.out, "\r"+strings.Repeat(" ", len(d.lastLine)))
	}
	fmt.Fprint(d.out, line)
	d.lastLine = line
}

// Stop stops the progress display.
func (d *Display) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || !d.started {
		return
	}

	d.stopped = true
	fmt.Fprintln(d.out)
}

// PrintSummary prints a final summary after crawling.
func (d *Display) PrintSummary(outputPath string) {
	duration := d.now().Sub(d.startTime)
	if outputPath == "" {
		outputPath = "(no records, nothing written)"
	}

	fmt.Fprintln(d.out)
	fmt.Fprintf(d.out, "  Crawl:        %s\n", d.label)
	fmt.Fprintf(d.out, "  Duration:     %s\n", formatDuration(duration))
	done, failed, pages, records, errs := d.Stats()

	fmt.Fprintf(d.out, "  Seeds:        %d done, %d failed of %d\n", done, failed, d.totalSeeds.Load())
	fmt.Fprintf(d.out, "  Pages:        %d\n", pages)
	fmt.Fprintf(d.out, "  Records:      %d\n", records)
	fmt.Fprintf(d.out, "  Errors:       %d\n", errs)
	fmt.Fprintf(d.out, "  Output:       %s\n", outputPath)
	fmt.Fprintln(d.out)
}

// Stats returns current crawl statistics.
func (d *Display) Stats() (seedsDone, seedsFailed, pages, records, errors int64) {
	return d.seedsDone.Load(),
		d.seedsFailed.Load(),
		d.pages.Load(),
		d.records.Load(),
		d.errors.Load()
}

// truncateURL truncates a URL to maxLen characters.
func truncateURL(url string, maxLen int) string {
	if len(url) <= maxLen {
		return url
	}
	return url[:maxLen-3] + "..."
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
