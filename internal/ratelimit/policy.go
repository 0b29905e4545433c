// Package ratelimit computes polite crawl delays and performs the pacing
// sleeps between page transitions.
package ratelimit

import (
	"math/rand"
	"sync"
	"time"
)

// PolicyConfig holds the delay ranges used between page transitions.
type PolicyConfig struct {
	InterMin   time.Duration `json:"inter_min" yaml:"inter_min"`
	InterMax   time.Duration `json:"inter_max" yaml:"inter_max"`
	PageMin    time.Duration `json:"page_min" yaml:"page_min"`
	PageMax    time.Duration `json:"page_max" yaml:"page_max"`
	BurstEvery int           `json:"burst_every" yaml:"burst_every"`
	BurstMin   time.Duration `json:"burst_min" yaml:"burst_min"`
	BurstMax   time.Duration `json:"burst_max" yaml:"burst_max"`
	RetryMin   time.Duration `json:"retry_min" yaml:"retry_min"`
	RetryMax   time.Duration `json:"retry_max" yaml:"retry_max"`
}

// DefaultPolicyConfig returns human-like pacing: 2-5s between entity
// requests, 1-2.5s between feed pages and a 5-10s pause every 20 pages.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		InterMin:   2 * time.Second,
		InterMax:   5 * time.Second,
		PageMin:    1 * time.Second,
		PageMax:    2500 * time.Millisecond,
		BurstEvery: 20,
		BurstMin:   5 * time.Second,
		BurstMax:   10 * time.Second,
		RetryMin:   3 * time.Second,
		RetryMax:   6 * time.Second,
	}
}

// Policy draws delays from the configured ranges. It never sleeps.
type Policy struct {
	mu     sync.Mutex
	config PolicyConfig
	rng    *rand.Rand
}

// NewPolicy creates a policy. A nil rng is seeded from the clock.
func NewPolicy(config PolicyConfig, rng *rand.Rand) *Policy {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Policy{config: config, rng: rng}
}

// Config returns the policy's ranges.
func (p *Policy) Config() PolicyConfig {
	return p.config
}

// InterRequest returns the delay before navigating to a new entity page.
func (p *Policy) InterRequest() time.Duration {
	return p.uniform(p.config.InterMin, p.config.InterMax)
}

// Pagination returns the delay before fetching feed page pageIndex
// (0-based). Every BurstEvery-th page carries an extra long pause.
func (p *Policy) Pagination(pageIndex int) time.Duration {
	d := p.uniform(p.config.PageMin, p.config.PageMax)
	if p.config.BurstEvery > 0 && pageIndex > 0 && pageIndex%p.config.BurstEvery == 0 {
		d += p.uniform(p.config.BurstMin, p.config.BurstMax)
	}
	return d
}

// Transition returns the delay before page pageIndex of a traversal:
// InterRequest for the first page, Pagination afterwards.
func (p *Policy) Transition(pageIndex int) time.Duration {
	if pageIndex == 0 {
		return p.InterRequest()
	}
	return p.Pagination(pageIndex)
}

// Retry returns the longer wait used before re-checking slow content.
func (p *Policy) Retry() time.Duration {
	return p.uniform(p.config.RetryMin, p.config.RetryMax)
}

func (p *Policy) uniform(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	p.mu.Lock()
	f := p.rng.Float64()
	p.mu.Unlock()
	return min + time.Duration(f*float64(max-min))
}
