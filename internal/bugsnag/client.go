// Package bugsnag retrieves error events from the Bugsnag Data Access API.
package bugsnag

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/crimson-sun/bugsnag-events/internal/apperr"
	"github.com/crimson-sun/bugsnag-events/internal/connector/httpclient"
	"github.com/crimson-sun/bugsnag-events/internal/model"
)

const (
	defaultPerPage  = 100
	maxPerPage      = 100
	defaultMaxPages = 10000
)

var (
	errCursorRepeated = errors.New("pagination cursor repeated")
	errTooManyPages   = errors.New("page limit reached")
)

type options struct {
	token     string
	endpoint  string
	perPage   int
	maxPages  int
	perMinute int
	timeout   time.Duration
	lister    Lister
	logger    *slog.Logger
}

// Option configures an ErrorEventClient.
type Option func(*options)

// WithToken sets the Data Access API auth token.
func WithToken(token string) Option {
	return func(o *options) { o.token = token }
}

// WithEndpoint overrides DefaultEndpoint.
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

// WithPerPage sets the page size. Values above 100 are capped. Default: 100.
func WithPerPage(n int) Option {
	return func(o *options) { o.perPage = n }
}

// WithMaxPages bounds how many pages one FetchAll may read. Default: 10000.
func WithMaxPages(n int) Option {
	return func(o *options) { o.maxPages = n }
}

// WithRequestsPerMinute paces API requests. 0 disables pacing.
func WithRequestsPerMinute(n int) Option {
	return func(o *options) { o.perMinute = n }
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithLister replaces the HTTP lister. Endpoint, token, timeout and pacing
// options are ignored when set.
func WithLister(l Lister) Option {
	return func(o *options) { o.lister = l }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// ErrorEventClient fetches the events of one Bugsnag error.
type ErrorEventClient struct {
	projectID string
	errorID   string
	perPage   int
	maxPages  int
	lister    Lister
	logger    *slog.Logger
}

// NewErrorEventClient validates the identifiers and builds a client. A
// missing projectID or errorID yields an *apperr.ValidationError naming
// each of them, project_id first.
func NewErrorEventClient(projectID, errorID string, opts ...Option) (*ErrorEventClient, error) {
	var missing []string
	if projectID == "" {
		missing = append(missing, "project_id")
	}
	if errorID == "" {
		missing = append(missing, "error_id")
	}
	if len(missing) > 0 {
		return nil, apperr.NewValidationError(missing...)
	}

	o := options{
		perPage:  defaultPerPage,
		maxPages: defaultMaxPages,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.perPage <= 0 {
		o.perPage = defaultPerPage
	}
	o.perPage = min(o.perPage, maxPerPage)
	if o.maxPages <= 0 {
		o.maxPages = defaultMaxPages
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.lister == nil {
		var hopts []httpclient.Option
		if o.timeout > 0 {
			hopts = append(hopts, httpclient.WithTimeout(o.timeout))
		}
		if o.perMinute > 0 {
			hopts = append(hopts, httpclient.WithRateLimit(o.perMinute))
		}
		o.lister = NewHTTPLister(o.endpoint, o.token, hopts...)
	}

	return &ErrorEventClient{
		projectID: projectID,
		errorID:   errorID,
		perPage:   o.perPage,
		maxPages:  o.maxPages,
		lister:    o.lister,
		logger:    o.logger.With("project_id", projectID),
	}, nil
}

// Pages returns the listing for errorID within [start, end] as a lazy page
// sequence. Each range over it starts again from the first page. The
// sequence ends after the page without a next cursor, or with an error if
// the upstream fails, repeats a cursor or exceeds the page limit.
func (c *ErrorEventClient) Pages(ctx context.Context, errorID string, start, end time.Time) iter.Seq2[Page, error] {
	if errorID == "" {
		errorID = c.errorID
	}
	q := ListQuery{
		ProjectID: c.projectID,
		ErrorID:   errorID,
		Start:     start,
		End:       end,
		PerPage:   c.perPage,
	}

	return func(yield func(Page, error) bool) {
		seen := make(map[string]bool)
		cursor := ""
		for n := 1; ; n++ {
			if n > c.maxPages {
				yield(Page{}, fmt.Errorf("bugsnag: %w (%d)", errTooManyPages, c.maxPages))
				return
			}

			page, err := c.lister.ListEvents(ctx, q, cursor)
			if err != nil {
				yield(Page{}, &apperr.UpstreamError{Op: "list events", Err: err})
				return
			}
			c.logger.Debug("fetched page", "error_id", errorID, "page", n, "events", len(page.Events))

			if !yield(page, nil) || page.Next == "" {
				return
			}
			if seen[page.Next] {
				yield(Page{}, fmt.Errorf("bugsnag: %w: %s", errCursorRepeated, page.Next))
				return
			}
			seen[page.Next] = true
			cursor = page.Next
		}
	}
}

// FetchAll drains Pages and returns, in upstream order, every event of
// errorID received within [start, end]. A zero bound leaves that side of
// the window open; an empty errorID means the client's own.
func (c *ErrorEventClient) FetchAll(ctx context.Context, errorID string, start, end time.Time) ([]model.ErrorEvent, error) {
	if errorID == "" {
		errorID = c.errorID
	}

	var (
		results []model.ErrorEvent
		skipped int
	)
	for page, err := range c.Pages(ctx, errorID, start, end) {
		if err != nil {
			return nil, err
		}
		for _, e := range page.Events {
			if !matches(e, errorID, start, end) {
				skipped++
				continue
			}
			results = append(results, e)
		}
	}

	c.logger.Info("fetched events", "error_id", errorID, "events", len(results), "skipped", skipped)
	return results, nil
}

func matches(e model.ErrorEvent, errorID string, start, end time.Time) bool {
	if e.ErrorID != "" && e.ErrorID != errorID {
		return false
	}
	if !start.IsZero() && e.ReceivedAt.Before(start) {
		return false
	}
	if !end.IsZero() && e.ReceivedAt.After(end) {
		return false
	}
	return true
}
