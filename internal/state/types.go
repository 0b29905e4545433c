package state

import (
	"time"

	"github.com/gautamk/summer-hiking-series/internal/record"
)

// Seed outcome statuses.
const (
	StatusDone   = "done"
	StatusFailed = "failed"
)

// Checkpoint is the saved outcome of one seed within a job.
type Checkpoint struct {
	Seed       string           `json:"seed"`
	Status     string           `json:"status"`
	StopReason string           `json:"stop_reason,omitempty"`
	Pages      int              `json:"pages"`
	Records    []*record.Record `json:"records"`
	PageErrors []string         `json:"page_errors,omitempty"`
	Error      string           `json:"error,omitempty"`
	FinishedAt time.Time        `json:"finished_at"`
}

// Done reports whether the seed finished and need not be crawled again.
func (c *Checkpoint) Done() bool {
	return c != nil && c.Status == StatusDone
}
