package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds harvester configuration shared by the listing collector
// and the abstract fetcher.
type Config struct {
	BaseURL  string
	JELCode  string
	MaxPages int

	Timeout   time.Duration
	PageDelay time.Duration

	// Fetch-level retry policy around a single detail-page request.
	MaxAttempts     int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration

	// Courtesy delay ranges; a random duration inside each range is
	// slept before the corresponding request.
	FetchDelayMin      time.Duration
	FetchDelayMax      time.Duration
	RetryFetchDelayMin time.Duration
	RetryFetchDelayMax time.Duration
	RateLimitDelayMin  time.Duration
	RateLimitDelayMax  time.Duration
	SweepDelayMin      time.Duration
	SweepDelayMax      time.Duration

	CheckpointEvery int
	SeenCacheSize   int

	OutputDir   string
	UserAgent   string
	Accept      string
	Verbose     bool
	MetricsAddr string
}

// DefaultConfig returns conservative defaults for the SSRN listing site.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:            "https://papers.ssrn.com/sol3/jweljour_results.cfm",
		JELCode:            "J14",
		MaxPages:           0,
		Timeout:            30 * time.Second,
		PageDelay:          time.Second,
		MaxAttempts:        3,
		RetryBackoff:       4 * time.Second,
		RetryBackoffMax:    10 * time.Second,
		FetchDelayMin:      45 * time.Second,
		FetchDelayMax:      50 * time.Second,
		RetryFetchDelayMin: 30 * time.Second,
		RetryFetchDelayMax: 45 * time.Second,
		RateLimitDelayMin:  30 * time.Second,
		RateLimitDelayMax:  40 * time.Second,
		SweepDelayMin:      10 * time.Second,
		SweepDelayMax:      15 * time.Second,
		CheckpointEvery:    5,
		SeenCacheSize:      4096,
		OutputDir:          "output",
		UserAgent:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		Accept:             "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		Verbose:            false,
		MetricsAddr:        "",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.MaxPages < 0 {
		return fmt.Errorf("max pages cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.PageDelay < 0 {
		return fmt.Errorf("page delay cannot be negative")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}

	ranges := []struct {
		name     string
		min, max time.Duration
	}{
		{"fetch delay", c.FetchDelayMin, c.FetchDelayMax},
		{"retry fetch delay", c.RetryFetchDelayMin, c.RetryFetchDelayMax},
		{"rate limit delay", c.RateLimitDelayMin, c.RateLimitDelayMax},
		{"sweep delay", c.SweepDelayMin, c.SweepDelayMax},
	}
	for _, r := range ranges {
		if r.min < 0 {
			return fmt.Errorf("%s min cannot be negative", r.name)
		}
		if r.max < r.min {
			return fmt.Errorf("%s max (%s) cannot be below min (%s)", r.name, r.max, r.min)
		}
	}

	if c.CheckpointEvery <= 0 {
		return fmt.Errorf("checkpoint interval must be positive")
	}
	if c.SeenCacheSize <= 0 {
		return fmt.Errorf("seen cache size must be positive")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

// EnvString reads a string environment variable, reporting presence.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// EnvInt reads an integer environment variable, reporting presence and
// surfacing parse failures to the caller.
func EnvInt(key string) (int, bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s=%q: %w", key, value, err)
	}
	return parsed, true, nil
}

// EnvDuration reads a duration environment variable (Go syntax, e.g. "45s").
func EnvDuration(key string) (time.Duration, bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return 0, false, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s=%q: %w", key, value, err)
	}
	return parsed, true, nil
}
