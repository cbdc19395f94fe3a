// Package command wires the event client and the CSV converter into the
// error-events export.
package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/crimson-sun/bugsnag-events/internal/apperr"
	"github.com/crimson-sun/bugsnag-events/internal/bugsnag"
	"github.com/crimson-sun/bugsnag-events/internal/converter"
	"github.com/crimson-sun/bugsnag-events/internal/model"
)

// Fetcher retrieves every event of one error within a time window.
type Fetcher interface {
	FetchAll(ctx context.Context, errorID string, start, end time.Time) ([]model.ErrorEvent, error)
}

// Converter renders events as CSV text.
type Converter interface {
	Convert(events []model.ErrorEvent) (string, error)
}

// ClientFactory builds the Fetcher. It validates its own identifiers.
type ClientFactory func(projectID, errorID string) (Fetcher, error)

// ConverterFactory builds the Converter. It validates its own path.
type ConverterFactory func(csvMapPath string) (Converter, error)

// Params are the inputs of one export.
type Params struct {
	ProjectID  string
	ErrorID    string
	CSVMapPath string
	StartDate  time.Time
	EndDate    time.Time
}

type options struct {
	clientOpts   []bugsnag.Option
	newClient    ClientFactory
	newConverter ConverterFactory
	logger       *slog.Logger
}

// Option configures an ErrorEvents command.
type Option func(*options)

// WithClientOptions passes options to the default Bugsnag client.
func WithClientOptions(opts ...bugsnag.Option) Option {
	return func(o *options) { o.clientOpts = append(o.clientOpts, opts...) }
}

// WithClientFactory replaces the default Bugsnag client constructor.
func WithClientFactory(f ClientFactory) Option {
	return func(o *options) { o.newClient = f }
}

// WithConverterFactory replaces the default CSV converter constructor.
func WithConverterFactory(f ConverterFactory) Option {
	return func(o *options) { o.newConverter = f }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// ErrorEvents exports the events of one Bugsnag error as CSV.
type ErrorEvents struct {
	params    Params
	client    Fetcher
	converter Converter
	logger    *slog.Logger
}

// New validates params and builds the client and the converter. Both are
// always attempted: when several inputs are missing the returned
// *apperr.ValidationError lists all of them. Other construction failures,
// such as an unreadable field map, are returned as they are.
func New(p Params, opts ...Option) (*ErrorEvents, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.newClient == nil {
		clientOpts := append([]bugsnag.Option{bugsnag.WithLogger(o.logger)}, o.clientOpts...)
		o.newClient = func(projectID, errorID string) (Fetcher, error) {
			c, err := bugsnag.NewErrorEventClient(projectID, errorID, clientOpts...)
			if err != nil {
				return nil, err
			}
			return c, nil
		}
	}
	if o.newConverter == nil {
		o.newConverter = func(path string) (Converter, error) {
			c, err := converter.New(path)
			if err != nil {
				return nil, err
			}
			return c, nil
		}
	}

	var merr *multierror.Error

	client, err := o.newClient(p.ProjectID, p.ErrorID)
	if err != nil {
		merr = multierror.Append(merr, err)
	}
	conv, err := o.newConverter(p.CSVMapPath)
	if err != nil {
		merr = multierror.Append(merr, err)
	}
	if err := validateWindow(p.StartDate, p.EndDate); err != nil {
		merr = multierror.Append(merr, err)
	}

	if err := apperr.Collapse(merr); err != nil {
		return nil, err
	}

	return &ErrorEvents{
		params:    p,
		client:    client,
		converter: conv,
		logger:    o.logger.With("project_id", p.ProjectID, "error_id", p.ErrorID),
	}, nil
}

func validateWindow(start, end time.Time) error {
	var attrs []string
	if start.IsZero() {
		attrs = append(attrs, "start_date")
	}
	if end.IsZero() {
		attrs = append(attrs, "end_date")
	}
	if len(attrs) == 0 && start.After(end) {
		attrs = append(attrs, "start_date", "end_date")
	}
	if len(attrs) > 0 {
		return apperr.NewValidationError(attrs...)
	}
	return nil
}

// Get fetches the events and returns the converter's CSV unchanged. Errors
// from either stage are returned as they are.
func (c *ErrorEvents) Get(ctx context.Context) (string, error) {
	c.logger.Info("fetching events",
		"start", c.params.StartDate.UTC().Format(time.RFC3339),
		"end", c.params.EndDate.UTC().Format(time.RFC3339),
	)

	events, err := c.client.FetchAll(ctx, c.params.ErrorID, c.params.StartDate, c.params.EndDate)
	if err != nil {
		c.logger.Error("fetch failed", "error", err)
		return "", err
	}

	out, err := c.converter.Convert(events)
	if err != nil {
		c.logger.Error("convert failed", "events", len(events), "error", err)
		return "", err
	}

	c.logger.Debug("converted events", "events", len(events), "bytes", len(out))
	return out, nil
}
