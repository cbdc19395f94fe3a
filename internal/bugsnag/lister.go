package bugsnag

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/crimson-sun/bugsnag-events/internal/connector/httpclient"
	"github.com/crimson-sun/bugsnag-events/internal/model"
)

// DefaultEndpoint is the Bugsnag Data Access API base URL.
const DefaultEndpoint = "https://api.bugsnag.com"

// apiVersion is sent as X-Version on every request.
const apiVersion = "2"

// ListQuery selects the events of one error within a time window.
type ListQuery struct {
	ProjectID string
	ErrorID   string
	Start     time.Time // zero = unbounded
	End       time.Time // zero = unbounded
	PerPage   int
}

// Page is one page of an event listing. Next is the opaque cursor for the
// following page, empty on the last one.
type Page struct {
	Events []model.ErrorEvent
	Next   string
}

// Lister fetches one page of events. An empty cursor requests the first page.
type Lister interface {
	ListEvents(ctx context.Context, q ListQuery, cursor string) (Page, error)
}

// HTTPLister lists events from the Bugsnag Data Access API.
type HTTPLister struct {
	client *httpclient.Client
}

// NewHTTPLister returns a Lister backed by the Data Access API at endpoint
// (DefaultEndpoint when empty), authenticating with token.
func NewHTTPLister(endpoint, token string, opts ...httpclient.Option) *HTTPLister {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	opts = append([]httpclient.Option{
		httpclient.WithAuthScheme("token"),
		httpclient.WithHeader("X-Version", apiVersion),
	}, opts...)
	return &HTTPLister{client: httpclient.New(endpoint, token, opts...)}
}

// ListEvents fetches one page. The cursor is the rel="next" URL of the
// previous response.
func (l *HTTPLister) ListEvents(ctx context.Context, q ListQuery, cursor string) (Page, error) {
	var events []model.ErrorEvent

	target := cursor
	var query url.Values
	if target == "" {
		target = eventsPath(q.ProjectID, q.ErrorID)
		query = listQuery(q)
	}

	next, err := l.client.GetPage(ctx, target, query, &events)
	if err != nil {
		return Page{}, err
	}
	return Page{Events: events, Next: next}, nil
}

func eventsPath(projectID, errorID string) string {
	return "/projects/" + url.PathEscape(projectID) + "/errors/" + url.PathEscape(errorID) + "/events"
}

func listQuery(q ListQuery) url.Values {
	v := url.Values{}
	v.Set("full_reports", "true")
	v.Set("sort", "timestamp")
	v.Set("direction", "desc")
	if q.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(q.PerPage))
	}
	// The API filters at second precision and event.before is exclusive, so
	// the server window is widened to whole seconds; FetchAll trims it back.
	if !q.Start.IsZero() {
		v.Set("filters[event.since][0][type]", "eq")
		v.Set("filters[event.since][0][value]", q.Start.UTC().Truncate(time.Second).Format(time.RFC3339))
	}
	if !q.End.IsZero() {
		v.Set("filters[event.before][0][type]", "eq")
		v.Set("filters[event.before][0][value]", q.End.UTC().Truncate(time.Second).Add(time.Second).Format(time.RFC3339))
	}
	return v
}
