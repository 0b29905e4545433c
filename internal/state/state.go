// Package state keeps crawl checkpoints and URL deduplication.
package state

import (
	"fmt"
	"time"
)

// JobKey names a run for checkpointing: the same extractor over the same
// lookback on the same UTC day resumes, anything else starts fresh.
func JobKey(extractor string, lookbackDays int, now time.Time) string {
	return fmt.Sprintf("%s/%s/lookback=%d", extractor, now.UTC().Format("20060102"), lookbackDays)
}

// Manager binds a Store to one job.
type Manager struct {
	store Store
	job   string
}

// NewManager creates a manager for job. A nil store disables
// checkpointing.
func NewManager(store Store, job string) *Manager {
	return &Manager{store: store, job: job}
}

// Job returns the job key.
func (m *Manager) Job() string {
	return m.job
}

// Enabled reports whether checkpoints are persisted.
func (m *Manager) Enabled() bool {
	return m != nil && m.store != nil
}

// Resume returns the finished checkpoint for seed, if one exists.
// Failed seeds are not resumed; they are crawled again.
func (m *Manager) Resume(seed string) (*Checkpoint, bool, error) {
	if !m.Enabled() {
		return nil, false, nil
	}
	cp, err := m.store.Get(m.job, seed)
	if err != nil {
		return nil, false, err
	}
	return cp, cp.Done(), nil
}

// Save stores a seed outcome.
func (m *Manager) Save(cp *Checkpoint) error {
	if !m.Enabled() {
		return nil
	}
	return m.store.Put(m.job, cp)
}

// Finished returns how many seeds of the job completed.
func (m *Manager) Finished() (int, error) {
	if !m.Enabled() {
		return 0, nil
	}
	cps, err := m.store.List(m.job)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, cp := range cps {
		if cp.Done() {
			n++
		}
	}
	return n, nil
}
