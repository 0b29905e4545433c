// Package metrics provides run counters for the trail crawler.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector collects and aggregates metrics.
type Collector struct {
	// Counters
	pagesFetched    atomic.Int64
	contentNotReady atomic.Int64
	retriesTotal    atomic.Int64
	recordsEmitted  atomic.Int64
	itemsDropped    atomic.Int64
	seedsDone       atomic.Int64
	seedsFailed     atomic.Int64
	seedsSkipped    atomic.Int64
	errorsTotal     atomic.Int64
	pacingTotal     atomic.Int64 // nanoseconds spent in politeness delays

	// Page load tracking
	loadTimesSum atomic.Int64
	loadTimesNum atomic.Int64

	// Gauges
	activeWorkers atomic.Int64

	// Histogram of page loads in ms: <500, <1000, <2500, <5000, <10000, <20000, >=20000
	loadBuckets [7]atomic.Int64

	// Error breakdown
	errorCounts map[string]*atomic.Int64
	errorMu     sync.RWMutex

	startTime time.Time
}

// New creates a new metrics collector.
func New() *Collector {
	return &Collector{
		errorCounts: make(map[string]*atomic.Int64),
		startTime:   time.Now(),
	}
}

// RecordPage records a fetched page and how long it took to become ready.
func (c *Collector) RecordPage(load time.Duration) {
	c.pagesFetched.Add(1)

	ms := load.Milliseconds()
	c.loadTimesSum.Add(ms)
	c.loadTimesNum.Add(1)
	c.loadBuckets[bucket(ms)].Add(1)
}

func bucket(ms int64) int {
	switch {
	case ms < 500:
		return 0
	case ms < 1000:
		return 1
	case ms < 2500:
		return 2
	case ms < 5000:
		return 3
	case ms < 10000:
		return 4
	case ms < 20000:
		return 5
	default:
		return 6
	}
}

// RecordContentNotReady records a page whose content never rendered.
func (c *Collector) RecordContentNotReady() {
	c.contentNotReady.Add(1)
}

// RecordRetry records a content wait retry.
func (c *Collector) RecordRetry() {
	c.retriesTotal.Add(1)
}

// RecordRecords records emitted records.
func (c *Collector) RecordRecords(n int) {
	c.recordsEmitted.Add(int64(n))
}

// RecordDropped records items discarded by the cutoff gate.
func (c *Collector) RecordDropped(n int) {
	c.itemsDropped.Add(int64(n))
}

// RecordPacing records time spent in a politeness delay.
func (c *Collector) RecordPacing(d time.Duration) {
	c.pacingTotal.Add(int64(d))
}

// RecordSeedDone records a seed that finished normally.
func (c *Collector) RecordSeedDone() {
	c.seedsDone.Add(1)
}

// RecordSeedFailed records a seed that failed.
func (c *Collector) RecordSeedFailed() {
	c.seedsFailed.Add(1)
}

// RecordSeedSkipped records a seed restored from a checkpoint.
func (c *Collector) RecordSeedSkipped() {
	c.seedsSkipped.Add(1)
}

// RecordError records an error by type name.
func (c *Collector) RecordError(errorType string) {
	c.errorsTotal.Add(1)

	c.errorMu.Lock()
	if c.errorCounts[errorType] == nil {
		c.errorCounts[errorType] = &atomic.Int64{}
	}
	c.errorCounts[errorType].Add(1)
	c.errorMu.Unlock()
}

// WorkerStarted increments the active worker gauge.
func (c *Collector) WorkerStarted() {
	c.activeWorkers.Add(1)
}

// WorkerStopped decrements the active worker gauge.
func (c *Collector) WorkerStopped() {
	c.activeWorkers.Add(-1)
}

// AverageLoadTime returns the mean page load time.
func (c *Collector) AverageLoadTime() time.Duration {
	sum := c.loadTimesSum.Load()
	num := c.loadTimesNum.Load()
	if num == 0 {
		return 0
	}
	return time.Duration(sum/num) * time.Millisecond
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() *Snapshot {
	s := &Snapshot{
		Timestamp:       time.Now(),
		Uptime:          time.Since(c.startTime),
		PagesFetched:    c.pagesFetched.Load(),
		ContentNotReady: c.contentNotReady.Load(),
		RetriesTotal:    c.retriesTotal.Load(),
		RecordsEmitted:  c.recordsEmitted.Load(),
		ItemsDropped:    c.itemsDropped.Load(),
		SeedsDone:       c.seedsDone.Load(),
		SeedsFailed:     c.seedsFailed.Load(),
		SeedsSkipped:    c.seedsSkipped.Load(),
		ErrorsTotal:     c.errorsTotal.Load(),
		ActiveWorkers:   c.activeWorkers.Load(),
		PacingTotal:     time.Duration(c.pacingTotal.Load()),
		AverageLoadTime: c.AverageLoadTime(),
		ErrorCounts:     make(map[string]int64),
		LoadTimeHist:    make([]int64, len(c.loadBuckets)),
	}

	c.errorMu.RLock()
	for k, v := range c.errorCounts {
		s.ErrorCounts[k] = v.Load()
	}
	c.errorMu.RUnlock()

	for i := range c.loadBuckets {
		s.LoadTimeHist[i] = c.loadBuckets[i].Load()
	}

	return s
}

// Snapshot represents a point-in-time view of metrics.
type Snapshot struct {
	Timestamp       time.Time        `json:"timestamp"`
	Uptime          time.Duration    `json:"uptime"`
	PagesFetched    int64            `json:"pages_fetched"`
	ContentNotReady int64            `json:"content_not_ready"`
	RetriesTotal    int64            `json:"retries_total"`
	RecordsEmitted  int64            `json:"records_emitted"`
	ItemsDropped    int64            `json:"items_dropped"`
	SeedsDone       int64            `json:"seeds_done"`
	SeedsFailed     int64            `json:"seeds_failed"`
	SeedsSkipped    int64            `json:"seeds_skipped"`
	ErrorsTotal     int64            `json:"errors_total"`
	ActiveWorkers   int64            `json:"active_workers"`
	PacingTotal     time.Duration    `json:"pacing_total"`
	AverageLoadTime time.Duration    `json:"average_load_time"`
	ErrorCounts     map[string]int64 `json:"error_counts"`
	LoadTimeHist    []int64          `json:"load_time_histogram"`
}

// Summary returns the fields logged at the end of a run.
func (s *Snapshot) Summary() map[string]interface{} {
	return map[string]interface{}{
		"uptime":            s.Uptime.Round(time.Second).String(),
		"pages_fetched":     s.PagesFetched,
		"records":           s.RecordsEmitted,
		"dropped":           s.ItemsDropped,
		"content_not_ready": s.ContentNotReady,
		"retries":           s.RetriesTotal,
		"seeds_done":        s.SeedsDone,
		"seeds_failed":      s.SeedsFailed,
		"seeds_skipped":     s.SeedsSkipped,
		"errors":            s.ErrorsTotal,
		"avg_load_ms":       s.AverageLoadTime.Milliseconds(),
		"pacing":            s.PacingTotal.Round(time.Second).String(),
	}
}
