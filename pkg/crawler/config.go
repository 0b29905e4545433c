package crawler

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gautamk/summer-hiking-series/internal/browser"
	"github.com/gautamk/summer-hiking-series/internal/fetcher"
	"github.com/gautamk/summer-hiking-series/internal/output"
	"github.com/gautamk/summer-hiking-series/internal/ratelimit"
	"github.com/gautamk/summer-hiking-series/internal/session"
)

// MaxWorkers bounds the worker pool. The site is crawled politely, so more
// tabs only multiply the request rate.
const MaxWorkers = 4

// Config holds all crawler configuration.
type Config struct {
	// Number of concurrent workers, each with its own tab
	Workers int `json:"workers" yaml:"workers"`

	// Page cap per seed; 0 uses the cursor default
	MaxPages int `json:"max_pages" yaml:"max_pages"`

	// How far back dated feeds are read, in days; 0 keeps everything
	LookbackDays int `json:"lookback_days" yaml:"lookback_days"`

	// Wait for each content marker before the retry
	MarkerTimeout time.Duration `json:"marker_timeout" yaml:"marker_timeout"`

	// Consecutive page extraction failures that fail a seed
	MaxConsecutiveExtractionErrors int `json:"max_consecutive_extraction_errors" yaml:"max_consecutive_extraction_errors"`

	// Pacing between page transitions
	Pacing ratelimit.PolicyConfig `json:"pacing" yaml:"pacing"`

	// Hard ceiling in requests per second across all workers
	MaxRate float64 `json:"max_rate" yaml:"max_rate"`

	// Browser configuration
	Browser browser.Config `json:"browser" yaml:"browser"`

	// Session bundle and validity probe
	Session SessionConfig `json:"session" yaml:"session"`

	// Output configuration
	Output OutputConfig `json:"output" yaml:"output"`

	// Checkpoints for resumable runs
	State StateConfig `json:"state" yaml:"state"`

	// Verbose logging
	Verbose bool `json:"verbose" yaml:"verbose"`

	// Debug mode
	Debug bool `json:"debug" yaml:"debug"`
}

// SessionConfig locates the saved session and the page used to probe it.
type SessionConfig struct {
	File        string `json:"file" yaml:"file"`
	ProbeURL    string `json:"probe_url" yaml:"probe_url"`
	LoginMarker string `json:"login_marker" yaml:"login_marker"`
}

// OutputConfig controls where records are written.
type OutputConfig struct {
	Dir    string `json:"dir" yaml:"dir"`
	Format string `json:"format" yaml:"format"`
}

// StateConfig controls checkpointing.
type StateConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	FilePath string `json:"file_path" yaml:"file_path"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Workers:                        1,
		MaxPages:                       20,
		LookbackDays:                   0,
		MarkerTimeout:                  fetcher.DefaultMarkerTimeout,
		MaxConsecutiveExtractionErrors: 3,
		Pacing:                         ratelimit.DefaultPolicyConfig(),
		MaxRate:                        1,
		Browser:                        browser.DefaultConfig(),
		Session: SessionConfig{
			File:        session.DefaultPath(),
			ProbeURL:    session.ProbeURL,
			LoginMarker: session.LoginMarker,
		},
		Output: OutputConfig{
			Dir:    "data/raw",
			Format: output.FormatCSV,
		},
		State: StateConfig{
			Enabled: false,
		},
	}
}

// LoadFromFile loads configuration from a file (JSON or YAML).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return config, nil
}

// SaveToFile saves configuration to a file.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Workers < 1 || c.Workers > MaxWorkers {
		return fmt.Errorf("workers must be between 1 and %d", MaxWorkers)
	}

	if c.MaxPages < 0 {
		return fmt.Errorf("max pages must not be negative")
	}

	if c.LookbackDays < 0 {
		return fmt.Errorf("lookback days must not be negative")
	}

	if c.MaxConsecutiveExtractionErrors < 1 {
		return fmt.Errorf("max consecutive extraction errors must be at least 1")
	}

	if c.MaxRate < 0 {
		return fmt.Errorf("max rate must not be negative")
	}

	// Zero means no deadline.
	if c.Browser.Timeout < 0 || c.MarkerTimeout < 0 {
		return fmt.Errorf("browser and marker timeouts must not be negative")
	}

	p := c.Pacing
	if p.InterMin < 0 || p.PageMin < 0 || p.BurstMin < 0 || p.RetryMin < 0 {
		return fmt.Errorf("pacing delays must not be negative")
	}
	if p.InterMax < p.InterMin || p.PageMax < p.PageMin || p.BurstMax < p.BurstMin || p.RetryMax < p.RetryMin {
		return fmt.Errorf("pacing ranges must have max >= min")
	}

	if c.Session.ProbeURL == "" || c.Session.LoginMarker == "" {
		return fmt.Errorf("session probe url and login marker are required")
	}

	switch c.Output.Format {
	case "", output.FormatCSV, output.FormatJSONL:
	default:
		return fmt.Errorf("unsupported output format: %s", c.Output.Format)
	}

	if c.State.Enabled && c.State.FilePath == "" {
		return fmt.Errorf("state file path is required when checkpointing is enabled")
	}

	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	data, _ := json.Marshal(c)
	clone := &Config{}
	json.Unmarshal(data, clone)
	return clone
}
