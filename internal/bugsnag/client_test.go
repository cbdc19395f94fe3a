package bugsnag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/bugsnag-events/internal/apperr"
	"github.com/crimson-sun/bugsnag-events/internal/connector/httpclient"
	"github.com/crimson-sun/bugsnag-events/internal/model"
)

var base = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

// stubLister serves pre-built pages keyed by cursor: page i is served for
// cursor "p<i>" (page 0 for ""), and links to page i+1 unless it is last.
type stubLister struct {
	pages   [][]model.ErrorEvent
	calls   []string
	queries []ListQuery
	err     error
	next    func(i int) string
}

func (s *stubLister) ListEvents(_ context.Context, q ListQuery, cursor string) (Page, error) {
	s.calls = append(s.calls, cursor)
	s.queries = append(s.queries, q)
	if s.err != nil {
		return Page{}, s.err
	}
	i := 0
	if cursor != "" {
		if _, err := fmt.Sscanf(cursor, "p%d", &i); err != nil {
			return Page{}, err
		}
	}
	page := Page{Events: s.pages[i]}
	if s.next != nil {
		page.Next = s.next(i)
	} else if i+1 < len(s.pages) {
		page.Next = fmt.Sprintf("p%d", i+1)
	}
	return page, nil
}

func event(id string, offset time.Duration) model.ErrorEvent {
	return model.ErrorEvent{ID: id, ErrorID: "err_1", ReceivedAt: base.Add(offset)}
}

func ids(events []model.ErrorEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func newClient(t *testing.T, l Lister, opts ...Option) *ErrorEventClient {
	t.Helper()
	c, err := NewErrorEventClient("proj_1", "err_1", append([]Option{WithLister(l)}, opts...)...)
	require.NoError(t, err)
	return c
}

func TestNewErrorEventClient_Validation(t *testing.T) {
	tests := []struct {
		name      string
		projectID string
		errorID   string
		want      []string
	}{
		{"missing project", "", "err_1", []string{"project_id"}},
		{"missing error", "proj_1", "", []string{"error_id"}},
		{"missing both", "", "", []string{"project_id", "error_id"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewErrorEventClient(tt.projectID, tt.errorID)
			assert.Nil(t, c)
			var verr *apperr.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.want, verr.Attributes)
		})
	}
}

func TestNewErrorEventClient_Valid(t *testing.T) {
	c, err := NewErrorEventClient("proj_1", "err_1", WithToken("tok"))
	require.NoError(t, err)
	assert.Equal(t, defaultPerPage, c.perPage)
	assert.IsType(t, &HTTPLister{}, c.lister)
}

func TestNewErrorEventClient_PerPageBounds(t *testing.T) {
	assert.Equal(t, 100, newClient(t, &stubLister{}, WithPerPage(500)).perPage)
	assert.Equal(t, 100, newClient(t, &stubLister{}, WithPerPage(0)).perPage)
	assert.Equal(t, 25, newClient(t, &stubLister{}, WithPerPage(25)).perPage)
}

func TestFetchAll_ExhaustsPagesInOrder(t *testing.T) {
	l := &stubLister{pages: [][]model.ErrorEvent{
		{event("1", time.Minute), event("2", 2*time.Minute)},
		{event("3", 3*time.Minute)},
		{},
		{event("4", 4*time.Minute), event("5", 5*time.Minute)},
	}}
	c := newClient(t, l)

	events, err := c.FetchAll(context.Background(), "err_1", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, ids(events))
	assert.Equal(t, []string{"", "p1", "p2", "p3"}, l.calls)
}

func TestFetchAll_FiltersWindowInclusive(t *testing.T) {
	l := &stubLister{pages: [][]model.ErrorEvent{
		{event("before", -time.Second), event("start", 0), event("mid", 30*time.Minute)},
		{event("end", time.Hour), event("after", time.Hour+time.Millisecond)},
	}}
	c := newClient(t, l)

	events, err := c.FetchAll(context.Background(), "err_1", base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "mid", "end"}, ids(events))
	assert.Equal(t, base, l.queries[0].Start)
	assert.Equal(t, base.Add(time.Hour), l.queries[0].End)
}

func TestFetchAll_FiltersOtherErrors(t *testing.T) {
	other := event("other", time.Minute)
	other.ErrorID = "err_2"
	blank := event("blank", time.Minute)
	blank.ErrorID = ""

	l := &stubLister{pages: [][]model.ErrorEvent{{event("mine", time.Minute), other, blank}}}
	c := newClient(t, l)

	events, err := c.FetchAll(context.Background(), "err_1", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []string{"mine", "blank"}, ids(events))
}

func TestFetchAll_EmptyErrorIDFallsBack(t *testing.T) {
	l := &stubLister{pages: [][]model.ErrorEvent{{event("1", 0)}}}
	c := newClient(t, l)

	events, err := c.FetchAll(context.Background(), "", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, "err_1", l.queries[0].ErrorID)
	assert.Equal(t, "proj_1", l.queries[0].ProjectID)
}

func TestFetchAll_UpstreamError(t *testing.T) {
	cause := &httpclient.APIError{StatusCode: 401, Body: "unauthorized"}
	c := newClient(t, &stubLister{err: cause})

	events, err := c.FetchAll(context.Background(), "err_1", time.Time{}, time.Time{})
	assert.Nil(t, events)

	var upErr *apperr.UpstreamError
	require.ErrorAs(t, err, &upErr)
	var apiErr *httpclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.StatusCode)
}

func TestFetchAll_RepeatedCursor(t *testing.T) {
	l := &stubLister{
		pages: [][]model.ErrorEvent{{event("1", 0)}, {event("2", 0)}},
		next:  func(int) string { return "p1" },
	}
	c := newClient(t, l)

	_, err := c.FetchAll(context.Background(), "err_1", time.Time{}, time.Time{})
	require.ErrorIs(t, err, errCursorRepeated)
	assert.Len(t, l.calls, 2)
}

func TestFetchAll_MaxPages(t *testing.T) {
	l := &stubLister{pages: [][]model.ErrorEvent{{}, {}, {}, {}}}
	c := newClient(t, l, WithMaxPages(2))

	_, err := c.FetchAll(context.Background(), "err_1", time.Time{}, time.Time{})
	require.ErrorIs(t, err, errTooManyPages)
	assert.Len(t, l.calls, 2)
}

func TestPages_RestartsAndStopsEarly(t *testing.T) {
	l := &stubLister{pages: [][]model.ErrorEvent{{event("1", 0)}, {event("2", 0)}, {event("3", 0)}}}
	c := newClient(t, l)
	seq := c.Pages(context.Background(), "err_1", time.Time{}, time.Time{})

	for _, err := range seq {
		require.NoError(t, err)
		break
	}
	assert.Equal(t, []string{""}, l.calls)

	var got []string
	for page, err := range seq {
		require.NoError(t, err)
		got = append(got, ids(page.Events)...)
	}
	assert.Equal(t, []string{"1", "2", "3"}, got)
	assert.Equal(t, []string{"", "", "p1", "p2"}, l.calls)
}

func TestFetchAll_HTTP(t *testing.T) {
	var calls atomic.Int32
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/projects/proj_1/errors/err_1/events" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "token secret" {
			t.Errorf("unexpected auth header: %q", got)
		}
		if got := r.Header.Get("X-Version"); got != "2" {
			t.Errorf("unexpected X-Version: %q", got)
		}

		q := r.URL.Query()
		var body []map[string]any
		switch q.Get("offset") {
		case "":
			assert.Equal(t, "true", q.Get("full_reports"))
			assert.Equal(t, "2", q.Get("per_page"))
			assert.Equal(t, "2022-01-01T00:00:00Z", q.Get("filters[event.since][0][value]"))
			assert.Equal(t, "2022-01-01T01:00:01Z", q.Get("filters[event.before][0][value]"))
			w.Header().Set("Link", fmt.Sprintf(`<%s%s?offset=2>; rel="next"`, srvURL, r.URL.Path))
			body = []map[string]any{
				{"id": "a", "error_id": "err_1", "received_at": "2022-01-01T00:10:00.000Z"},
				{"id": "b", "error_id": "err_1", "received_at": "2022-01-01T00:20:00.000Z"},
			}
		case "2":
			body = []map[string]any{
				{"id": "c", "error_id": "err_1", "received_at": "2022-01-01T00:30:00.000Z",
					"exceptions": []map[string]any{{"error_class": "NotFoundError", "message": "404"}}},
			}
		default:
			t.Errorf("unexpected offset: %q", q.Get("offset"))
		}
		json.NewEncoder(w).Encode(body)
	}))
	defer srv.Close()
	srvURL = srv.URL

	c, err := NewErrorEventClient("proj_1", "err_1",
		WithEndpoint(srv.URL), WithToken("secret"), WithPerPage(2), WithRequestsPerMinute(600))
	require.NoError(t, err)

	events, err := c.FetchAll(context.Background(), "err_1", base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(events))
	assert.Equal(t, int32(2), calls.Load())
	require.Len(t, events[2].Exceptions, 1)
	assert.Equal(t, "NotFoundError", events[2].Exceptions[0].ErrorClass)
}

func TestFetchAll_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errors":["Invalid authentication token"]}`))
	}))
	defer srv.Close()

	c, err := NewErrorEventClient("proj_1", "err_1", WithEndpoint(srv.URL), WithToken("bad"))
	require.NoError(t, err)

	_, err = c.FetchAll(context.Background(), "err_1", time.Time{}, time.Time{})
	var upErr *apperr.UpstreamError
	require.ErrorAs(t, err, &upErr)
	var apiErr *httpclient.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}
