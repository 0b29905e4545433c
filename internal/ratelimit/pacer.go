package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	crawlerrors "github.com/gautamk/summer-hiking-series/internal/errors"
)

// Sleeper performs the actual suspension. Tests substitute a recorder.
type Sleeper func(ctx context.Context, d time.Duration) error

// Pacer applies a Policy before each page transition and enforces a hard
// request-rate ceiling on top of it.
type Pacer struct {
	policy  *Policy
	limiter *rate.Limiter
	sleep   Sleeper
}

// NewPacer creates a pacer. maxRate is the ceiling in requests per second
// (<= 0 disables it); a nil sleep uses a context-aware timer.
func NewPacer(policy *Policy, maxRate float64, sleep Sleeper) *Pacer {
	if sleep == nil {
		sleep = crawlerrors.SleepContext
	}
	limit := rate.Inf
	if maxRate > 0 {
		limit = rate.Limit(maxRate)
	}
	return &Pacer{
		policy:  policy,
		limiter: rate.NewLimiter(limit, 1),
		sleep:   sleep,
	}
}

// Policy returns the underlying delay policy.
func (p *Pacer) Policy() *Policy {
	return p.policy
}

// BeforePage waits the policy delay for page pageIndex of a traversal and
// returns the delay that was applied.
func (p *Pacer) BeforePage(ctx context.Context, pageIndex int) (time.Duration, error) {
	d := p.policy.Transition(pageIndex)
	return d, p.Wait(ctx, d)
}

// Wait sleeps for d and then blocks on the rate ceiling.
func (p *Pacer) Wait(ctx context.Context, d time.Duration) error {
	if err := p.sleep(ctx, d); err != nil {
		return err
	}
	return p.limiter.Wait(ctx)
}

// Sleep is the Sleeper used for retry backoff; it skips the rate ceiling.
func (p *Pacer) Sleep(ctx context.Context, d time.Duration) error {
	return p.sleep(ctx, d)
}
