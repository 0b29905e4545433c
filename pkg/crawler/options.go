package crawler

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/gautamk/summer-hiking-series/internal/browser"
	"github.com/gautamk/summer-hiking-series/internal/logger"
	"github.com/gautamk/summer-hiking-series/internal/metrics"
	"github.com/gautamk/summer-hiking-series/internal/progress"
	"github.com/gautamk/summer-hiking-series/internal/ratelimit"
	"github.com/gautamk/summer-hiking-series/internal/state"
)

// Option is a functional option for configuring the Crawler.
type Option func(*Crawler) error

// WithConfig sets the entire configuration.
func WithConfig(config *Config) Option {
	return func(c *Crawler) error {
		if config == nil {
			return fmt.Errorf("config is nil")
		}
		c.config = config
		return nil
	}
}

// WithOpener sets where worker tabs come from, normally a launched
// *browser.Browser with the session attached.
func WithOpener(opener browser.Opener) Option {
	return func(c *Crawler) error {
		c.opener = opener
		return nil
	}
}

// WithWorkers sets the number of concurrent workers.
func WithWorkers(n int) Option {
	return func(c *Crawler) error {
		if n < 1 {
			n = 1
		}
		if n > MaxWorkers {
			n = MaxWorkers
		}
		c.config.Workers = n
		return nil
	}
}

// WithMaxPages sets the page cap per seed.
func WithMaxPages(n int) Option {
	return func(c *Crawler) error {
		c.config.MaxPages = n
		return nil
	}
}

// WithLookbackDays sets the default lookback for dated feeds.
func WithLookbackDays(days int) Option {
	return func(c *Crawler) error {
		c.config.LookbackDays = days
		return nil
	}
}

// WithPacing sets the delay ranges between page transitions.
func WithPacing(p ratelimit.PolicyConfig) Option {
	return func(c *Crawler) error {
		c.config.Pacing = p
		return nil
	}
}

// WithMaxRate sets the request ceiling in requests per second.
func WithMaxRate(rps float64) Option {
	return func(c *Crawler) error {
		c.config.MaxRate = rps
		return nil
	}
}

// WithMarkerTimeout sets the wait for each content marker.
func WithMarkerTimeout(d time.Duration) Option {
	return func(c *Crawler) error {
		c.config.MarkerTimeout = d
		return nil
	}
}

// WithSleeper replaces the pacing sleep. Tests pass a recorder so they
// never wait.
func WithSleeper(sleep ratelimit.Sleeper) Option {
	return func(c *Crawler) error {
		c.sleep = sleep
		return nil
	}
}

// WithRand seeds the delay draws.
func WithRand(rng *rand.Rand) Option {
	return func(c *Crawler) error {
		c.rng = rng
		return nil
	}
}

// WithClock sets the clock used for the cutoff window and record stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Crawler) error {
		c.now = now
		return nil
	}
}

// WithStore enables checkpointing into store. Finished seeds of the same
// job are not fetched again.
func WithStore(store state.Store) Option {
	return func(c *Crawler) error {
		c.store = store
		return nil
	}
}

// WithVerbose enables/disables verbose logging.
func WithVerbose(verbose bool) Option {
	return func(c *Crawler) error {
		c.config.Verbose = verbose
		return nil
	}
}

// WithDebug enables/disables debug mode.
func WithDebug(debug bool) Option {
	return func(c *Crawler) error {
		c.config.Debug = debug
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Crawler) error {
		c.logger = l
		return nil
	}
}

// WithMetrics sets a custom metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Crawler) error {
		c.metrics = m
		return nil
	}
}

// WithProgress shows a progress line on d.
func WithProgress(d *progress.Display) Option {
	return func(c *Crawler) error {
		c.progress = d
		return nil
	}
}
