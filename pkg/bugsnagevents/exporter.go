package bugsnagevents

import (
	"context"
	"time"

	"github.com/crimson-sun/bugsnag-events/internal/apperr"
	"github.com/crimson-sun/bugsnag-events/internal/bugsnag"
	"github.com/crimson-sun/bugsnag-events/internal/command"
)

// ValidationError lists the request attributes that were missing or
// invalid, such as "project_id" or "csv_map_path".
type ValidationError = apperr.ValidationError

// MappingLoadError reports a field-map file that could not be read or parsed.
type MappingLoadError = apperr.MappingLoadError

// UpstreamError reports a failed call to the Bugsnag API.
type UpstreamError = apperr.UpstreamError

// Request selects the events to export.
type Request struct {
	ProjectID  string
	ErrorID    string
	CSVMapPath string
	Start      time.Time
	End        time.Time
}

// Exporter downloads and converts error events.
type Exporter struct {
	opts options
}

// New creates an Exporter. No network access happens until Export.
func New(opts ...Option) *Exporter {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Exporter{opts: o}
}

// Export fetches every event of req.ErrorID received within
// [req.Start, req.End] and returns them as a CSV document. All missing
// request fields are reported together in one *ValidationError.
func (x *Exporter) Export(ctx context.Context, req Request) (string, error) {
	clientOpts := []bugsnag.Option{
		bugsnag.WithToken(x.opts.token),
		bugsnag.WithEndpoint(x.opts.endpoint),
		bugsnag.WithPerPage(x.opts.perPage),
		bugsnag.WithMaxPages(x.opts.maxPages),
		bugsnag.WithRequestsPerMinute(x.opts.requestsPerMinute),
		bugsnag.WithTimeout(x.opts.timeout),
	}
	cmdOpts := []command.Option{command.WithClientOptions(clientOpts...)}
	if x.opts.logger != nil {
		cmdOpts = append(cmdOpts, command.WithLogger(x.opts.logger))
	}

	cmd, err := command.New(command.Params{
		ProjectID:  req.ProjectID,
		ErrorID:    req.ErrorID,
		CSVMapPath: req.CSVMapPath,
		StartDate:  req.Start,
		EndDate:    req.End,
	}, cmdOpts...)
	if err != nil {
		return "", err
	}
	return cmd.Get(ctx)
}
