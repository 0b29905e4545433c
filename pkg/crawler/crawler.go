package crawler

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/gautamk/summer-hiking-series/internal/browser"
	"github.com/gautamk/summer-hiking-series/internal/cursor"
	"github.com/gautamk/summer-hiking-series/internal/cutoff"
	crawlerrors "github.com/gautamk/summer-hiking-series/internal/errors"
	"github.com/gautamk/summer-hiking-series/internal/extract"
	"github.com/gautamk/summer-hiking-series/internal/fetcher"
	"github.com/gautamk/summer-hiking-series/internal/logger"
	"github.com/gautamk/summer-hiking-series/internal/metrics"
	"github.com/gautamk/summer-hiking-series/internal/progress"
	"github.com/gautamk/summer-hiking-series/internal/ratelimit"
	"github.com/gautamk/summer-hiking-series/internal/session"
	"github.com/gautamk/summer-hiking-series/internal/state"
)

// StopUnreadable ends a seed whose page could not be parsed at all, so no
// next link can be followed.
const StopUnreadable = "unreadable_page"

// Crawler is the crawl orchestrator. It runs one job at a time and probes
// the session once, before its first traversal.
type Crawler struct {
	config   *Config
	opener   browser.Opener
	store    state.Store
	logger   *logger.Logger
	metrics  *metrics.Collector
	progress *progress.Display
	sleep    ratelimit.Sleeper
	rng      *rand.Rand
	now      func() time.Time
	policy   *ratelimit.Policy

	mu      sync.Mutex
	running atomic.Bool
	probed  bool
}

// worker owns one tab and paces only its own navigations.
type worker struct {
	id      int
	tab     browser.Tab
	pacer   *ratelimit.Pacer
	fetcher *fetcher.Fetcher
	log     *logger.Logger
}

// New creates a new crawler with the given options.
func New(opts ...Option) (*Crawler, error) {
	c := &Crawler{
		config: DefaultConfig(),
		now:    time.Now,
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	// Validate config
	if err := c.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if c.opener == nil {
		return nil, fmt.Errorf("a tab opener is required")
	}

	if c.logger == nil {
		logLevel := logger.InfoLevel
		if c.config.Debug {
			logLevel = logger.DebugLevel
		} else if !c.config.Verbose {
			logLevel = logger.WarnLevel
		}
		c.logger = logger.New(logger.Config{
			Level:     logLevel,
			Pretty:    true,
			Component: "crawler",
		})
	}

	if c.metrics == nil {
		c.metrics = metrics.New()
	}

	c.policy = ratelimit.NewPolicy(c.config.Pacing, c.rng)

	return c, nil
}

// Run crawls every seed of job and aggregates the records in seed order.
//
// A failed seed is reported in CrawlResult.Errors and never stops the
// others. The returned error is non-nil only when the session probe fails
// (it matches errors.ErrSessionExpired), when tabs cannot be opened, or
// when ctx ends; in the last case the partial result is returned with it.
func (c *Crawler) Run(ctx context.Context, job Job) (*CrawlResult, error) {
	if job.Extractor == nil {
		return nil, fmt.Errorf("job has no extractor")
	}
	if !c.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("crawler is already running")
	}
	defer c.running.Store(false)

	started := c.now()

	maxPages := job.MaxPages
	if maxPages <= 0 {
		maxPages = c.config.MaxPages
	}
	lookback := 0
	window := cutoff.Window{}
	if job.Extractor.Dated() {
		lookback = job.LookbackDays
		if lookback <= 0 {
			lookback = c.config.LookbackDays
		}
		window = cutoff.NewWindow(started, lookback)
	}

	jobKey := state.JobKey(job.Extractor.Name(), lookback, started)
	checkpoints := state.NewManager(c.store, jobKey)
	log := c.logger.WithField("job", checkpoints.Job())
	if checkpoints.Enabled() {
		if finished, err := checkpoints.Finished(); err != nil {
			log.WithError(err).Warn("failed to read checkpoints")
		} else if finished > 0 {
			log.Infof("resuming: %d seeds already finished", finished)
		}
	}

	result := &CrawlResult{Job: jobKey, StartedAt: started}
	if len(job.Seeds) == 0 {
		log.Warn("no seeds to crawl")
		result.CompletedAt = c.now()
		return result, nil
	}

	workers := c.config.Workers
	if workers > len(job.Seeds) {
		workers = len(job.Seeds)
	}

	pool, err := browser.NewPool(ctx, c.opener, workers)
	if err != nil {
		return nil, fmt.Errorf("failed to open tabs: %w", err)
	}
	defer pool.Close()

	if err := c.probe(ctx, pool); err != nil {
		return nil, err
	}

	if !window.IsZero() {
		log.Infof("keeping items dated on or after %s", window.Cutoff().Format("2006-01-02"))
	}
	if c.progress != nil {
		c.progress.Start(job.Extractor.Name(), len(job.Seeds))
		defer c.progress.Stop()
	}

	runs := make([]seedRun, len(job.Seeds))
	seeds := make(chan int)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(seeds)
		for i := range job.Seeds {
			select {
			case seeds <- i:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	for id := 0; id < workers; id++ {
		id := id
		g.Go(func() error {
			w, err := c.newWorker(gctx, id, pool, workers)
			if err != nil {
				return err
			}
			defer pool.Release(w.tab)

			c.metrics.WorkerStarted()
			defer c.metrics.WorkerStopped()

			for i := range seeds {
				runs[i] = c.runSeed(gctx, w, job, i, maxPages, window, checkpoints)
			}
			return nil
		})
	}

	waitErr := g.Wait()

	for _, run := range runs {
		if !run.started {
			continue
		}
		result.Seeds = append(result.Seeds, run.outcome)
		result.Records = append(result.Records, run.records...)
		if run.err != nil {
			result.Errors = append(result.Errors, *run.err)
		}

		switch run.outcome.Status {
		case SeedDone:
			result.Stats.SeedsDone++
		case SeedFailed:
			result.Stats.SeedsFailed++
		case SeedResumed:
			result.Stats.SeedsResumed++
		}
		result.Stats.Pages += run.outcome.Pages
		result.Stats.Dropped += run.outcome.Dropped
		result.Stats.PageErrors += len(run.outcome.PageErrors)
	}
	result.Stats.Seeds = len(job.Seeds)
	result.Stats.Records = len(result.Records)
	result.CompletedAt = c.now()
	result.Stats.Duration = result.CompletedAt.Sub(result.StartedAt)

	log.StatsEvent(c.metrics.Snapshot().Summary())

	if err := ctx.Err(); err != nil {
		log.Warnf("crawl interrupted after %d of %d seeds", len(result.Seeds), len(job.Seeds))
		return result, err
	}
	if waitErr != nil {
		return result, waitErr
	}
	return result, nil
}

// Discover walks a listing of detail links and returns the detail URLs in
// first-seen order without duplicates.
func (c *Crawler) Discover(ctx context.Context, listURL string, maxPages int) ([]string, *CrawlResult, error) {
	listing := extract.HikeListing{}
	result, err := c.Run(ctx, Job{
		Seeds:     []string{listURL},
		Extractor: listing,
		MaxPages:  maxPages,
	})
	if result == nil {
		return nil, nil, err
	}

	dedup := state.NewDeduplicator(len(result.Records))
	for _, rec := range result.Records {
		if u := rec.Text(listing.URLField()); u != "" {
			dedup.Add(u)
		}
	}

	c.logger.Infof("discovered %d unique detail pages from %d links", dedup.Count(), len(result.Records))
	return dedup.URLs(), result, err
}

// probe checks the session once per Crawler. An expired session fails the
// run before any worker starts.
func (c *Crawler) probe(ctx context.Context, pool *browser.Pool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.probed {
		return nil
	}

	tab, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire probe tab: %w", err)
	}
	defer pool.Release(tab)

	probeURL := c.config.Session.ProbeURL
	valid, landed, err := session.Probe(ctx, tab, probeURL, c.config.Session.LoginMarker)
	if err != nil {
		return err
	}
	if !valid {
		c.logger.WithField("landed", landed).Error("session is not valid, the site redirected to login")
		return crawlerrors.NewSessionExpiredError(probeURL, landed)
	}

	c.probed = true
	c.logger.WithURL(probeURL).Debug("session probe passed")
	return nil
}

func (c *Crawler) newWorker(ctx context.Context, id int, pool *browser.Pool, workers int) (*worker, error) {
	tab, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("worker %d: %w", id, err)
	}

	// The ceiling is shared, so each worker gets its slice of it.
	maxRate := c.config.MaxRate
	if maxRate > 0 {
		maxRate /= float64(workers)
	}
	pacer := ratelimit.NewPacer(c.policy, maxRate, c.sleep)
	log := c.logger.WithWorker(id)

	return &worker{
		id:      id,
		tab:     tab,
		pacer:   pacer,
		fetcher: fetcher.New(pacer, c.config.MarkerTimeout, c.metrics, log),
		log:     log,
	}, nil
}

// runSeed crawls one seed, or reuses its checkpoint from an earlier run of
// the same job.
func (c *Crawler) runSeed(ctx context.Context, w *worker, job Job, index, maxPages int, window cutoff.Window, checkpoints *state.Manager) seedRun {
	seed := job.Seeds[index]
	if ctx.Err() != nil {
		return seedRun{}
	}

	run := seedRun{started: true, outcome: SeedOutcome{Seed: seed}}
	log := w.log.WithSeed(index+1, len(job.Seeds), seed)

	cp, ok, err := checkpoints.Resume(seed)
	if err != nil {
		log.WithError(err).Warn("failed to read checkpoint, crawling seed again")
	}
	if ok {
		run.outcome.Status = SeedResumed
		run.outcome.StopReason = cp.StopReason
		run.outcome.Pages = cp.Pages
		run.outcome.Records = len(cp.Records)
		run.outcome.PageErrors = cp.PageErrors
		run.records = cp.Records
		c.metrics.RecordSeedSkipped()
		if c.progress != nil {
			c.progress.SeedFinished(false)
		}
		log.Info("seed finished in an earlier run, reusing its records")
		return run
	}

	if c.progress != nil {
		c.progress.SeedStarted(seed)
	}
	log.Info("crawling seed")

	c.traverse(ctx, w, job.Extractor, seed, maxPages, window, &run, log)
	run.outcome.Records = len(run.records)

	if run.err != nil {
		c.metrics.RecordSeedFailed()
	} else {
		c.metrics.RecordSeedDone()
		log.Infof("seed done: %d pages, %d records (%s)", run.outcome.Pages, run.outcome.Records, run.outcome.StopReason)
	}
	if c.progress != nil {
		c.progress.SeedFinished(run.err != nil)
	}

	if run.err == nil || run.err.Type != crawlerrors.Cancelled.String() {
		c.checkpoint(checkpoints, &run, log)
	}
	return run
}

// traverse walks the pages of one seed until the cursor or the cutoff gate
// ends it, recording records and the outcome into run.
func (c *Crawler) traverse(ctx context.Context, w *worker, ex extract.Extractor, seed string, maxPages int, window cutoff.Window, run *seedRun, log *logger.Logger) {
	cur := cursor.New(seed, maxPages)
	gate := cutoff.NewGate(window)
	gate.OnUnparseable = func(raw string, err error) {
		log.WithError(err).Debug("keeping item with unparseable date")
	}

	consecutive := 0
	failedPages := 0
	var lastErr error

	for !cur.Done() {
		pageURL := cur.Current()

		delay, err := w.pacer.BeforePage(ctx, cur.Index())
		if err != nil {
			c.fail(run, crawlerrors.NewCancelledError(pageURL, "pace"), log)
			return
		}
		c.metrics.RecordPacing(delay)

		status, err := w.fetcher.Load(ctx, w.tab, pageURL, ex.ContentMarker())
		if err != nil {
			c.fail(run, err, log)
			return
		}
		run.outcome.Pages++

		if status == fetcher.StatusContentNotReady {
			run.outcome.Status = SeedDone
			run.outcome.StopReason = StopContentNotReady
			log.WithURL(pageURL).Info("content never rendered, treating page as empty")
			return
		}

		doc, current, err := w.fetcher.Snapshot(ctx, w.tab)
		var items []extract.Item
		if err == nil {
			cur.Landed(current)
			items, err = extractPage(ex, doc, extract.Page{Seed: seed, URL: current})
		}

		kept := 0
		if err != nil {
			cerr := crawlerrors.NewExtractionError(pageURL, err)
			run.outcome.PageErrors = append(run.outcome.PageErrors, cerr.Error())
			c.metrics.RecordError(cerr.Type.String())
			if c.progress != nil {
				c.progress.Error()
			}
			log.WithURL(pageURL).WithError(err).Warn("page extraction failed")

			consecutive++
			failedPages++
			lastErr = err
			if consecutive >= c.config.MaxConsecutiveExtractionErrors {
				c.fail(run, crawlerrors.NewCrawlError(crawlerrors.Extraction, pageURL, "extract",
					fmt.Sprintf("%d consecutive pages failed extraction", consecutive), err), log)
				return
			}
			if doc == nil {
				run.outcome.StopReason = StopUnreadable
				break
			}
		} else {
			consecutive = 0
			kept = c.keep(items, ex, seed, gate, run)
		}
		if c.progress != nil {
			c.progress.PageDone(kept)
		}
		log.PageEvent(logger.DebugLevel, pageURL, cur.Index()).
			Int("items", len(items)).
			Int("kept", kept).
			Msg("page extracted")

		if gate.Settle() == cutoff.SequenceExhausted {
			run.outcome.StopReason = StopSequenceExhausted
			log.WithURL(pageURL).Debug("page reached the cutoff, stopping after it")
			cur.Stop()
			break
		}

		atCap := cur.AtCap()
		if next, ok := cur.Advance(doc, ex.NextSelector()); ok {
			log.WithField("page", cur.Index()).Debugf("next page %s", next)
			continue
		}
		if atCap && ex.NextSelector() != "" && doc.Find(ex.NextSelector()).Length() > 0 {
			run.outcome.StopReason = StopMaxPages
			log.Infof("stopped at the %d page cap", cur.MaxPages())
		} else {
			run.outcome.StopReason = StopNoNextPage
		}
	}

	if failedPages > 0 && failedPages == run.outcome.Pages {
		c.fail(run, crawlerrors.NewCrawlError(crawlerrors.Extraction, seed, "extract",
			"every page failed extraction", lastErr), log)
		return
	}
	run.outcome.Status = SeedDone
}

// keep stamps the items that pass the gate and appends them to run.
func (c *Crawler) keep(items []extract.Item, ex extract.Extractor, seed string, gate *cutoff.Gate, run *seedRun) int {
	stamp := c.now()
	kept, dropped := 0, 0

	for _, item := range items {
		if ex.Dated() && gate.Evaluate(item.Date) == cutoff.Drop {
			dropped++
			continue
		}
		run.records = append(run.records, item.Record.Stamp(ex.URLField(), seed, extract.Source, stamp))
		kept++
	}

	run.outcome.Dropped += dropped
	c.metrics.RecordRecords(kept)
	c.metrics.RecordDropped(dropped)
	return kept
}

// fail marks the seed failed and discards the records of its earlier
// pages, so a failed seed contributes only its error.
func (c *Crawler) fail(run *seedRun, err error, log *logger.Logger) {
	cerr := crawlerrors.Categorize(err, run.outcome.Seed, "crawl")

	run.outcome.Status = SeedFailed
	run.outcome.StopReason = StopFailed
	run.outcome.Discarded = len(run.records)
	run.records = nil
	run.err = &SeedError{
		Seed:    run.outcome.Seed,
		Type:    cerr.Type.String(),
		Message: cerr.Error(),
		Err:     cerr,
	}
	c.metrics.RecordError(cerr.Type.String())

	if run.outcome.Discarded > 0 {
		log = log.WithField("discarded", run.outcome.Discarded)
	}
	if cerr.Type == crawlerrors.Cancelled {
		log.Warn("seed interrupted")
		return
	}
	log.WithError(cerr).Error("seed failed")
}

func (c *Crawler) checkpoint(checkpoints *state.Manager, run *seedRun, log *logger.Logger) {
	cp := &state.Checkpoint{
		Seed:       run.outcome.Seed,
		Status:     state.StatusDone,
		StopReason: run.outcome.StopReason,
		Pages:      run.outcome.Pages,
		Records:    run.records,
		PageErrors: run.outcome.PageErrors,
		FinishedAt: c.now(),
	}
	if run.err != nil {
		cp.Status = state.StatusFailed
		cp.Error = run.err.Message
	}

	if err := checkpoints.Save(cp); err != nil {
		log.WithError(err).Warn("failed to save checkpoint")
	}
}

// extractPage runs the extractor. A panic becomes a page error.
func extractPage(ex extract.Extractor, doc *goquery.Document, page extract.Page) (items []extract.Item, err error) {
	defer func() {
		if r := recover(); r != nil {
			items = nil
			err = fmt.Errorf("extractor %s panicked: %v", ex.Name(), r)
		}
	}()
	return ex.Extract(doc, page)
}

// Config returns the crawler's configuration.
func (c *Crawler) Config() *Config {
	return c.config
}

// Metrics returns the metrics collector.
func (c *Crawler) Metrics() *metrics.Collector {
	return c.metrics
}

// IsRunning reports whether a job is in progress.
func (c *Crawler) IsRunning() bool {
	return c.running.Load()
}
