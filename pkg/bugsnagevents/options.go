package bugsnagevents

import (
	"log/slog"
	"time"
)

type options struct {
	token             string
	endpoint          string
	perPage           int
	maxPages          int
	requestsPerMinute int
	timeout           time.Duration
	logger            *slog.Logger
}

// Option configures an Exporter.
type Option func(*options)

// WithToken sets the Data Access API auth token.
func WithToken(token string) Option {
	return func(o *options) {
		o.token = token
	}
}

// WithEndpoint overrides the API base URL. Default: https://api.bugsnag.com.
func WithEndpoint(url string) Option {
	return func(o *options) {
		o.endpoint = url
	}
}

// WithPerPage sets the page size requested from the API (1..100).
// Default: 100.
func WithPerPage(n int) Option {
	return func(o *options) {
		o.perPage = n
	}
}

// WithMaxPages bounds how many pages a single export may read.
func WithMaxPages(n int) Option {
	return func(o *options) {
		o.maxPages = n
	}
}

// WithRequestsPerMinute paces API calls on the client side. Default: 10.
// 0 disables pacing.
func WithRequestsPerMinute(n int) Option {
	return func(o *options) {
		o.requestsPerMinute = n
	}
}

// WithTimeout sets the per-request HTTP timeout. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func defaultOptions() options {
	return options{
		requestsPerMinute: 10,
	}
}
