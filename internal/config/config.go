// Package config defines run configuration and its loading layers.
//
// Conventions:
// - New returns defaults; Load layers file, env and flags on top.
// - Durations are plain millisecond integers (suffix _ms).
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/micahco/sym/internal/domain/listing"
	"github.com/micahco/sym/internal/domain/match"
)

// Page drivers.
const (
	DriverChrome = "chrome"
	DriverHTTP   = "http"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// URLsFile lists one listing URL per line.
	URLsFile string `koanf:"urls_file"`

	// OutputFile receives the match set as JSON.
	OutputFile string `koanf:"output_file"`

	// PageLimit caps the pages read per listing.
	PageLimit int `koanf:"page_limit"`

	// MatchThreshold and ThresholdOperator select which contributors match,
	// e.g. "> 1" keeps contributors with at least two releases.
	MatchThreshold    int    `koanf:"match_threshold"`
	ThresholdOperator string `koanf:"threshold_operator"`

	// PageChangeTimeoutMS bounds each wait for the next catalog page.
	PageChangeTimeoutMS int `koanf:"page_change_timeout_ms"`

	// NavigationTimeoutMS bounds loading the first page of a listing.
	NavigationTimeoutMS int `koanf:"navigation_timeout_ms"`

	// ScoreParsePolicy is "drop" or "fail".
	ScoreParsePolicy string `koanf:"score_parse_policy"`

	// Driver selects the page driver: chrome or http.
	Driver string `koanf:"driver"`

	// Chrome driver settings.
	Headless           bool     `koanf:"headless"`
	BlockAds           bool     `koanf:"block_ads"`
	BlockedURLPatterns []string `koanf:"blocked_url_patterns"`
	ChromePath         string   `koanf:"chrome_path"`

	// UserAgent overrides the driver's user agent.
	UserAgent string `koanf:"user_agent"`

	// MetricsAddr serves /metrics and /stats while the run is going.
	MetricsAddr string `koanf:"metrics_addr"`

	// Serve keeps the status server up after the run until interrupted, so
	// /matches and /metrics can be read. Requires MetricsAddr.
	Serve bool `koanf:"serve"`

	// MetricsFile receives a Prometheus text dump when the run ends.
	MetricsFile string `koanf:"metrics_file"`
}

// New creates a Config holding the defaults. Context is accepted first to
// satisfy the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:            "info",
		URLsFile:            "urls.txt",
		OutputFile:          "matches.json",
		PageLimit:           listing.DefaultPageLimit,
		MatchThreshold:      1,
		ThresholdOperator:   string(match.GreaterThan),
		PageChangeTimeoutMS: int(listing.DefaultPageChangeTimeout / time.Millisecond),
		NavigationTimeoutMS: int(listing.DefaultNavigationTimeout / time.Millisecond),
		ScoreParsePolicy:    string(listing.PolicyDrop),
		Driver:              DriverChrome,
		Headless:            true,
		BlockAds:            true,
	}
}

// PageChangeTimeout returns PageChangeTimeoutMS as a duration.
func (c *Config) PageChangeTimeout() time.Duration {
	return time.Duration(c.PageChangeTimeoutMS) * time.Millisecond
}

// NavigationTimeout returns NavigationTimeoutMS as a duration.
func (c *Config) NavigationTimeout() time.Duration {
	return time.Duration(c.NavigationTimeoutMS) * time.Millisecond
}

// Operator returns the parsed threshold operator.
func (c *Config) Operator() (match.Operator, error) {
	return match.ParseOperator(c.ThresholdOperator)
}

// Policy returns the parsed score parse policy.
func (c *Config) Policy() (listing.ScoreParsePolicy, error) {
	return listing.ParseScoreParsePolicy(c.ScoreParsePolicy)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.URLsFile) == "":
		return invalid("urls_file must not be empty")
	case strings.TrimSpace(c.OutputFile) == "":
		return invalid("output_file must not be empty")
	case c.PageLimit < 1:
		return invalid("page_limit must be at least 1, got %d", c.PageLimit)
	case c.MatchThreshold < 0:
		return invalid("match_threshold must not be negative, got %d", c.MatchThreshold)
	case c.PageChangeTimeoutMS <= 0:
		return invalid("page_change_timeout_ms must be positive, got %d", c.PageChangeTimeoutMS)
	case c.NavigationTimeoutMS <= 0:
		return invalid("navigation_timeout_ms must be positive, got %d", c.NavigationTimeoutMS)
	case c.Serve && strings.TrimSpace(c.MetricsAddr) == "":
		return invalid("serve needs metrics_addr")
	}
	if _, err := c.Operator(); err != nil {
		return fmt.Errorf("%w: threshold_operator: %w", ErrInvalidConfig, err)
	}
	if _, err := c.Policy(); err != nil {
		return fmt.Errorf("%w: score_parse_policy: %w", ErrInvalidConfig, err)
	}
	switch strings.ToLower(c.Driver) {
	case DriverChrome, DriverHTTP:
	default:
		return invalid("driver must be %q or %q, got %q", DriverChrome, DriverHTTP, c.Driver)
	}
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return invalid("unknown log_level %q", c.LogLevel)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
