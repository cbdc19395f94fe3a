package webhook

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	defaultTimeout = 10 * time.Second
	maxRetries     = 3
)

// Option configures a webhook Output.
type Option func(*Output)

// WithHeaders sets custom HTTP headers sent with every POST.
func WithHeaders(h map[string]string) Option {
	return func(o *Output) { o.headers = h }
}

// WithTimeout sets the HTTP client timeout. Default: 10s.
func WithTimeout(d time.Duration) Option {
	return func(o *Output) { o.client.Timeout = d }
}

// withBackoff overrides the base retry delay. Tests only.
func withBackoff(d time.Duration) Option {
	return func(o *Output) { o.backoff = d }
}

// Output buffers CSV documents and POSTs them as one text/csv body on
// Close. Retries on 5xx with exponential backoff.
type Output struct {
	client  *http.Client
	url     string
	headers map[string]string
	backoff time.Duration

	mu      sync.Mutex
	ctx     context.Context
	pending strings.Builder
	closed  bool
}

// New creates a webhook output targeting the given URL.
func New(url string, opts ...Option) *Output {
	o := &Output{
		client:  &http.Client{Timeout: defaultTimeout},
		url:     url,
		backoff: time.Second,
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Write appends csv to the body. The context of the last Write is used
// for the POST on Close.
func (o *Output) Write(ctx context.Context, csv string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return fmt.Errorf("webhook: write after close")
	}
	o.ctx = ctx
	o.pending.WriteString(csv)
	return nil
}

// Close sends the buffered body. Nothing is sent if nothing was written.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	if o.pending.Len() == 0 {
		return nil
	}
	body := o.pending.String()
	o.pending.Reset()
	return o.postWithRetry(o.ctx, body)
}

// postWithRetry sends the body via HTTP POST with retry on 5xx.
func (o *Output) postWithRetry(ctx context.Context, body string) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("webhook: %w", ctx.Err())
			case <-time.After(o.backoff << (attempt - 1)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, strings.NewReader(body))
		if err != nil {
			return fmt.Errorf("webhook: %w", err)
		}
		req.Header.Set("Content-Type", "text/csv; charset=utf-8")
		for k, v := range o.headers {
			req.Header.Set(k, v)
		}

		resp, err := o.client.Do(req)
		if err != nil {
			return fmt.Errorf("webhook: %w", err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}

		lastErr = fmt.Errorf("webhook: HTTP %d", resp.StatusCode)

		// Only retry on 5xx server errors.
		if resp.StatusCode < 500 {
			return lastErr
		}
	}
	return lastErr
}
