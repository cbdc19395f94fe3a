package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Config holds all bugsnag-events configuration.
type Config struct {
	Bugsnag BugsnagConfig
	Logging LoggingConfig
}

// BugsnagConfig holds Data Access API settings.
type BugsnagConfig struct {
	Token             string
	Endpoint          string
	PerPage           int
	MaxPages          int
	RequestsPerMinute int // 0 disables client-side pacing
	Timeout           time.Duration
}

// LoggingConfig holds log settings. Logs always go to stderr.
type LoggingConfig struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "text" or "json"
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		Bugsnag: BugsnagConfig{
			Token:             os.Getenv("BUGSNAG_AUTH_TOKEN"),
			Endpoint:          getenv("BUGSNAG_ENDPOINT", "https://api.bugsnag.com"),
			PerPage:           getenvInt("BUGSNAG_PER_PAGE", 100),
			MaxPages:          getenvInt("BUGSNAG_MAX_PAGES", 10000),
			RequestsPerMinute: getenvInt("BUGSNAG_REQUESTS_PER_MINUTE", 10),
			Timeout:           getenvDuration("BUGSNAG_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getenv("BUGSNAG_LOG_LEVEL", "info"),
			Format: getenv("BUGSNAG_LOG_FORMAT", "text"),
		},
	}
}

// Validate checks the configuration and reports every problem at once.
func (c Config) Validate() error {
	var errs *multierror.Error

	if c.Bugsnag.Token == "" {
		errs = multierror.Append(errs, fmt.Errorf("BUGSNAG_AUTH_TOKEN is required"))
	}
	if c.Bugsnag.Endpoint == "" {
		errs = multierror.Append(errs, fmt.Errorf("BUGSNAG_ENDPOINT must not be empty"))
	}
	if c.Bugsnag.PerPage < 1 || c.Bugsnag.PerPage > 100 {
		errs = multierror.Append(errs, fmt.Errorf("BUGSNAG_PER_PAGE must be between 1 and 100, got %d", c.Bugsnag.PerPage))
	}
	if c.Bugsnag.MaxPages <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("BUGSNAG_MAX_PAGES must be positive, got %d", c.Bugsnag.MaxPages))
	}
	if c.Bugsnag.RequestsPerMinute < 0 {
		errs = multierror.Append(errs, fmt.Errorf("BUGSNAG_REQUESTS_PER_MINUTE must not be negative, got %d", c.Bugsnag.RequestsPerMinute))
	}
	if c.Bugsnag.Timeout <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("BUGSNAG_TIMEOUT must be positive, got %v", c.Bugsnag.Timeout))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = multierror.Append(errs, fmt.Errorf("BUGSNAG_LOG_LEVEL %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = multierror.Append(errs, fmt.Errorf("BUGSNAG_LOG_FORMAT %q is not one of text, json", c.Logging.Format))
	}

	return errs.ErrorOrNil()
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getenvInt returns fallback when the variable is unset. A value that does
// not parse is returned as -1 so Validate reports it instead of silently
// using the default.
func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return -1
	}
	return n
}

// getenvDuration accepts Go durations ("45s", "2m") or a bare number of
// seconds. Unparseable values come back as 0 and fail Validate.
func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return 0
}
