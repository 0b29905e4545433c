package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gautamk/summer-hiking-series/internal/browser"
	crawlerrors "github.com/gautamk/summer-hiking-series/internal/errors"
	"github.com/gautamk/summer-hiking-series/internal/extract"
	"github.com/gautamk/summer-hiking-series/internal/logger"
	"github.com/gautamk/summer-hiking-series/internal/output"
	"github.com/gautamk/summer-hiking-series/internal/progress"
	"github.com/gautamk/summer-hiking-series/internal/seed"
	"github.com/gautamk/summer-hiking-series/internal/session"
	"github.com/gautamk/summer-hiking-series/internal/shutdown"
	"github.com/gautamk/summer-hiking-series/internal/state"
	"github.com/gautamk/summer-hiking-series/pkg/crawler"
)

var (
	version = "0.3.0"

	// Global flags
	configFile  string
	verbose     bool
	debug       bool
	logLevel    string
	sessionFile string
	headless    bool

	// Crawl flags
	seedURL      string
	seedFile     string
	seedColumn   string
	lookbackDays int
	maxPages     int
	workers      int
	timeout      time.Duration
	outputDir    string
	format       string
	stateFile    string
	showProgress bool

	// Login flags
	loginURL string
)

// exitSessionExpired is the exit code telling the caller to log in again.
const exitSessionExpired = 3

// exitError carries a specific process exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	rootCmd := &cobra.Command{
		Use:   "trailcrawler",
		Short: "trailcrawler - WTA trail and trip report crawler",
		Long: `trailcrawler collects hike details and trip reports from the WTA hiking guide.

It drives a real browser with a saved WTA login, paces every page like a
person reading the site, and writes one CSV (or JSON lines) file per run.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	hikesCmd := &cobra.Command{
		Use:   "hikes",
		Short: "Crawl hike detail pages",
		Long:  "Crawl hike detail pages. Without seeds, detail URLs are discovered from the hiking guide listing.",
		Args:  cobra.NoArgs,
		RunE:  runHikes,
	}

	reportsCmd := &cobra.Command{
		Use:   "reports",
		Short: "Crawl recent trip reports for trails",
		Long:  "Crawl the trip reports of each seed trail, newest first, until the lookback window is passed.",
		Args:  cobra.NoArgs,
		RunE:  runReports,
	}

	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to WTA and save the session",
		Long:  "Open a visible browser on the WTA login page and save the session once you have logged in.",
		Args:  cobra.NoArgs,
		RunE:  runLogin,
	}

	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect the saved session",
	}

	sessionCheckCmd := &cobra.Command{
		Use:   "check",
		Short: "Report cookie expiry and optionally probe the session",
		Args:  cobra.NoArgs,
		RunE:  runSessionCheck,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Debug mode")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides --verbose and --debug")
	rootCmd.PersistentFlags().StringVar(&sessionFile, "session-file", "", "Saved session (default: "+session.DefaultPath()+")")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", true, "Run the browser without a window")

	// Crawl flags
	for _, cmd := range []*cobra.Command{hikesCmd, reportsCmd} {
		cmd.Flags().StringVar(&seedURL, "seed-url", "", "Single trail URL to crawl")
		cmd.Flags().StringVar(&seedFile, "seed-file", "", "CSV file of trail URLs")
		cmd.Flags().StringVar(&seedColumn, "seed-column", seed.DefaultColumn, "Column holding URLs in the seed file")
		cmd.Flags().IntVar(&maxPages, "max-pages", 20, "Page cap per seed")
		cmd.Flags().IntVarP(&workers, "workers", "w", 1, "Concurrent tabs (1-4)")
		cmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "Stop the run after this long and write what was collected")
		cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "data/raw", "Output directory")
		cmd.Flags().StringVar(&format, "format", output.FormatCSV, "Output format (csv, jsonl)")
		cmd.Flags().StringVar(&stateFile, "state-file", "", "Checkpoint file; finished seeds are skipped when a run is repeated")
		cmd.Flags().BoolVar(&showProgress, "progress", true, "Show a progress line while crawling")
		cmd.MarkFlagsMutuallyExclusive("seed-url", "seed-file")
	}
	reportsCmd.Flags().IntVar(&lookbackDays, "lookback-days", 90, "Only keep reports from the last N days")

	loginCmd.Flags().StringVar(&loginURL, "login-url", defaultLoginURL, "Page to open for logging in")
	sessionCheckCmd.Flags().Bool("probe", false, "Open the members-only page to confirm the session still works")

	// Add commands
	sessionCmd.AddCommand(sessionCheckCmd)
	rootCmd.AddCommand(hikesCmd)
	rootCmd.AddCommand(reportsCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(sessionCmd)

	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", ee)
			os.Exit(ee.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildConfig loads the config file, if any, and applies flags the user set.
func buildConfig(cmd *cobra.Command) (*crawler.Config, error) {
	config := crawler.DefaultConfig()
	if configFile != "" {
		fileConfig, err := crawler.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		config = fileConfig
	}

	// Command-line flags take precedence
	flags := cmd.Flags()
	if flags.Changed("max-pages") {
		config.MaxPages = maxPages
	}
	if flags.Changed("workers") {
		config.Workers = workers
	}
	if flags.Changed("output-dir") {
		config.Output.Dir = outputDir
	}
	if flags.Changed("format") {
		config.Output.Format = format
	}
	if flags.Changed("state-file") {
		config.State.Enabled = stateFile != ""
		config.State.FilePath = stateFile
	}
	if flags.Changed("session-file") {
		config.Session.File = sessionFile
	}
	if flags.Changed("headless") {
		config.Browser.Headless = headless
	}
	if flags.Lookup("lookback-days") != nil && (flags.Changed("lookback-days") || config.LookbackDays == 0) {
		config.LookbackDays = lookbackDays
	}
	config.Verbose = config.Verbose || verbose
	config.Debug = config.Debug || debug

	if err := config.Validate(); err != nil {
		return nil, crawlerrors.NewCrawlError(crawlerrors.Config, configFile, "config", err.Error(), err)
	}
	return config, nil
}

func newLogger(config *crawler.Config) *logger.Logger {
	level := logger.InfoLevel
	if config.Debug {
		level = logger.DebugLevel
	} else if !config.Verbose {
		level = logger.WarnLevel
	}
	if logLevel != "" {
		parsed, err := logger.ParseLevel(logLevel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v, using %s\n", err, level)
		} else {
			level = parsed
		}
	}
	return logger.New(logger.Config{
		Level:     level,
		Pretty:    true,
		Component: "trailcrawler",
	})
}

// loadSeeds reads --seed-url or --seed-file. It returns nil when neither is
// given.
func loadSeeds(log *logger.Logger) ([]string, error) {
	if seedURL == "" && seedFile == "" {
		return nil, nil
	}

	v, err := seed.NewValidator(extract.SiteURL)
	if err != nil {
		return nil, err
	}

	var set *seed.Set
	if seedURL != "" {
		set, err = seed.FromURL(v, seedURL)
	} else {
		set, err = seed.FromFile(v, seedFile, seedColumn)
	}
	if err != nil {
		return nil, crawlerrors.NewSeedError(seedURL+seedFile, err.Error())
	}

	for _, rejected := range set.Rejected {
		log.WithError(rejected).Warn("skipping seed")
	}
	if set.Len() == 0 {
		return nil, crawlerrors.NewSeedError(seedURL+seedFile, "no usable seed URLs")
	}
	return set.URLs, nil
}

func runHikes(cmd *cobra.Command, args []string) error {
	config, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(config)

	seeds, err := loadSeeds(log)
	if err != nil {
		return err
	}

	return crawl(config, log, extract.TrailDetail{}.Name(), func(ctx context.Context, c *crawler.Crawler) (*crawler.CrawlResult, error) {
		var discovery *crawler.CrawlResult
		if seeds == nil {
			log.Infof("no seeds given, discovering hikes from %s", extract.HikeListURL)
			urls, res, err := c.Discover(ctx, extract.HikeListURL, config.MaxPages)
			if err != nil {
				return nil, err
			}
			if err := discoveryFailed(res, urls); err != nil {
				return nil, err
			}
			seeds, discovery = urls, res
		}

		result, err := c.Run(ctx, crawler.Job{Seeds: seeds, Extractor: extract.TrailDetail{}})
		return withDiscoveryErrors(result, discovery), err
	})
}

// discoveryFailed reports a listing crawl that errored without finding any
// hike.
func discoveryFailed(res *crawler.CrawlResult, urls []string) error {
	if len(urls) > 0 || res == nil || len(res.Errors) == 0 {
		return nil
	}
	return fmt.Errorf("hike discovery failed: %w", res.Errors[0])
}

// withDiscoveryErrors puts listing pages that failed in front of the
// detail crawl's errors so the summary shows them.
func withDiscoveryErrors(result, discovery *crawler.CrawlResult) *crawler.CrawlResult {
	if result == nil || discovery == nil || len(discovery.Errors) == 0 {
		return result
	}
	result.Errors = append(append([]crawler.SeedError(nil), discovery.Errors...), result.Errors...)
	return result
}

func runReports(cmd *cobra.Command, args []string) error {
	config, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(config)

	seeds, err := loadSeeds(log)
	if err != nil {
		return err
	}
	if seeds == nil {
		return fmt.Errorf("reports needs --seed-url or --seed-file")
	}

	return crawl(config, log, extract.ReportListing{}.Name(), func(ctx context.Context, c *crawler.Crawler) (*crawler.CrawlResult, error) {
		return c.Run(ctx, crawler.Job{Seeds: seeds, Extractor: extract.ReportListing{}})
	})
}

// crawl sets up the browser, session, checkpoints and signal handling,
// runs the jobs and writes whatever was collected.
func crawl(config *crawler.Config, log *logger.Logger, prefix string, run func(context.Context, *crawler.Crawler) (*crawler.CrawlResult, error)) error {
	parent := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		parent, cancel = context.WithTimeout(parent, timeout)
		defer cancel()
	}

	handler := shutdown.New(parent, shutdown.Config{
		Timeout: 15 * time.Second,
		OnSignal: func(sig os.Signal) {
			fmt.Fprintf(os.Stderr, "\nReceived %s, stopping after the current page...\n", sig)
		},
		OnForce: func() {
			fmt.Fprintln(os.Stderr, "Received second interrupt, exiting now")
			os.Exit(130)
		},
	})
	defer func() {
		for _, err := range handler.Shutdown() {
			log.WithError(err).Warn("cleanup failed")
		}
	}()
	ctx := handler.Context()

	b, err := browser.Launch(config.Browser)
	if err != nil {
		return err
	}
	handler.Register("browser", func(context.Context) error { return b.Close() })

	if _, err := session.NewManager(config.Session.File, log).Attach(ctx, b); err != nil {
		return err
	}

	opts := []crawler.Option{
		crawler.WithConfig(config),
		crawler.WithOpener(b),
		crawler.WithLogger(log.WithComponent("crawler")),
	}

	if config.State.Enabled {
		store, err := state.NewBoltStore(config.State.FilePath)
		if err != nil {
			return err
		}
		handler.Register("checkpoints", func(context.Context) error { return store.Close() })
		opts = append(opts, crawler.WithStore(store))
	}

	var display *progress.Display
	if showProgress && !config.Verbose && !config.Debug {
		display = progress.New(os.Stderr)
		handler.RegisterFunc("progress", display.Stop)
		opts = append(opts, crawler.WithProgress(display))
	}

	c, err := crawler.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create crawler: %w", err)
	}

	result, runErr := run(ctx, c)
	if errors.Is(runErr, crawlerrors.ErrSessionExpired) {
		return &exitError{
			code: exitSessionExpired,
			err:  fmt.Errorf("re-authenticate required: run trailcrawler login (%w)", runErr),
		}
	}
	if result == nil {
		return fmt.Errorf("crawl failed: %w", runErr)
	}

	path, err := output.WriteFile(config.Output.Dir, prefix, config.Output.Format, time.Now(), result.Records)
	if err != nil {
		return err
	}
	if path == "" {
		log.Warn("no records extracted, no output file written")
	} else {
		log.WithField("path", path).Infof("wrote %d records", len(result.Records))
	}

	if display != nil {
		display.PrintSummary(path)
	} else {
		printSummary(result, path)
	}

	if runErr != nil {
		if handler.Interrupted() || errors.Is(runErr, context.DeadlineExceeded) {
			return fmt.Errorf("crawl stopped early, partial results written: %w", runErr)
		}
		return fmt.Errorf("crawl failed: %w", runErr)
	}
	return nil
}

func printSummary(result *crawler.CrawlResult, path string) {
	if path == "" {
		path = "(nothing written)"
	}

	fmt.Println()
	fmt.Printf("Job:        %s\n", result.Job)
	fmt.Printf("Duration:   %v\n", result.Stats.Duration.Round(time.Second))
	fmt.Printf("Seeds:      %d done, %d failed, %d resumed of %d\n",
		result.Stats.SeedsDone, result.Stats.SeedsFailed, result.Stats.SeedsResumed, result.Stats.Seeds)
	fmt.Printf("Pages:      %d\n", result.Stats.Pages)
	fmt.Printf("Records:    %d\n", result.Stats.Records)
	fmt.Printf("Errors:     %d\n", len(result.Errors))
	fmt.Printf("Output:     %s\n", path)
	fmt.Println()

	if len(result.Errors) > 0 {
		fmt.Println("Failed seeds:")
		count := 10
		if len(result.Errors) < count {
			count = len(result.Errors)
		}
		for i := 0; i < count; i++ {
			e := result.Errors[i]
			fmt.Printf("  [%s] %s\n", e.Type, e.Seed)
		}
		if len(result.Errors) > 10 {
			fmt.Printf("  ... and %d more\n", len(result.Errors)-10)
		}
		fmt.Println()
	}
}
