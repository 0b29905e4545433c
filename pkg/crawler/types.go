// Package crawler drives authenticated, paced, cutoff-aware traversals of
// WTA listing and detail pages and aggregates the extracted records.
package crawler

import (
	"time"

	"github.com/gautamk/summer-hiking-series/internal/extract"
	"github.com/gautamk/summer-hiking-series/internal/record"
)

// Job describes one crawl: which seeds to start from and how to read them.
type Job struct {
	Seeds     []string
	Extractor extract.Extractor

	// MaxPages overrides Config.MaxPages when positive.
	MaxPages int

	// LookbackDays overrides Config.LookbackDays when positive. It only
	// applies to dated extractors.
	LookbackDays int
}

// SeedStatus is the terminal state of one seed.
type SeedStatus string

const (
	SeedDone    SeedStatus = "done"
	SeedFailed  SeedStatus = "failed"
	SeedResumed SeedStatus = "resumed"
)

// Why a seed traversal stopped.
const (
	StopNoNextPage        = "no_next_page"
	StopMaxPages          = "max_pages"
	StopSequenceExhausted = "sequence_exhausted"
	StopContentNotReady   = "content_not_ready"
	StopFailed            = "failed"
)

// SeedOutcome summarizes one seed traversal.
type SeedOutcome struct {
	Seed       string     `json:"seed"`
	Status     SeedStatus `json:"status"`
	StopReason string     `json:"stop_reason"`
	Pages      int        `json:"pages"`
	Records    int        `json:"records"`
	Dropped    int        `json:"dropped"`
	// Discarded counts records from earlier pages of a failed seed.
	Discarded int `json:"discarded,omitempty"`
	// PageErrors are extraction failures the seed recovered from.
	PageErrors []string `json:"page_errors,omitempty"`
}

// SeedError records a seed that failed. Other seeds are unaffected.
type SeedError struct {
	Seed    string `json:"seed"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e SeedError) Error() string {
	return e.Type + ": " + e.Seed + ": " + e.Message
}

// Unwrap returns the underlying error.
func (e SeedError) Unwrap() error {
	return e.Err
}

// CrawlStats holds run totals.
type CrawlStats struct {
	Seeds        int           `json:"seeds"`
	SeedsDone    int           `json:"seeds_done"`
	SeedsFailed  int           `json:"seeds_failed"`
	SeedsResumed int           `json:"seeds_resumed"`
	Pages        int           `json:"pages"`
	Records      int           `json:"records"`
	Dropped      int           `json:"dropped"`
	PageErrors   int           `json:"page_errors"`
	Duration     time.Duration `json:"duration"`
}

// CrawlResult is the outcome of one Run. Records are in seed order, then
// page order, then item order.
type CrawlResult struct {
	Job         string           `json:"job"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
	Records     []*record.Record `json:"records"`
	Errors      []SeedError      `json:"errors"`
	Seeds       []SeedOutcome    `json:"seeds"`
	Stats       CrawlStats       `json:"stats"`
}

// seedRun is what one seed traversal hands back to the orchestrator.
type seedRun struct {
	started bool
	outcome SeedOutcome
	records []*record.Record
	err     *SeedError
}
