package state

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Deduplicator handles URL deduplication using a Bloom filter.
type Deduplicator struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
	exact  map[string]struct{} // For exact matching when Bloom filter might give false positives
	order  []string
}

// NewDeduplicator creates a new deduplicator.
func NewDeduplicator(estimatedItems int) *Deduplicator {
	if estimatedItems < 1000 {
		estimatedItems = 1000
	}

	return &Deduplicator{
		filter: bloom.NewWithEstimates(uint(estimatedItems), 0.001),
		exact:  make(map[string]struct{}),
	}
}

// Add adds a URL and reports whether it was new.
func (d *Deduplicator) Add(url string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.filter.TestString(url) {
		if _, exists := d.exact[url]; exists {
			return false
		}
	}

	d.filter.AddString(url)
	d.exact[url] = struct{}{}
	d.order = append(d.order, url)
	return true
}

// HasSeen checks if a URL has been seen before.
func (d *Deduplicator) HasSeen(url string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	// Fast check with Bloom filter
	if !d.filter.TestString(url) {
		return false
	}

	// Exact check for potential false positives
	_, exists := d.exact[url]
	return exists
}

// Count returns the number of unique URLs seen.
func (d *Deduplicator) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.order)
}

// URLs returns the unique URLs in first-seen order.
func (d *Deduplicator) URLs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.order...)
}
