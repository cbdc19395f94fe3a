package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Client is an HTTP client with token auth, base URL, retry logic and
// optional request pacing.
type Client struct {
	baseURL    string
	token      string
	authScheme string
	headers    http.Header
	limiter    *rate.Limiter
	httpClient *http.Client
}

// APIError represents a non-2xx HTTP response.
type APIError struct {
	StatusCode int
	Body       string // first 512 bytes
	retryAfter string // internal: Retry-After header value for 429s
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures Client behavior.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithAuthScheme sets the Authorization scheme. Default: "Bearer".
func WithAuthScheme(scheme string) Option {
	return func(c *Client) {
		c.authScheme = scheme
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

// WithRateLimit caps outgoing requests per minute, retries included.
// perMinute <= 0 disables pacing.
func WithRateLimit(perMinute int) Option {
	return func(c *Client) {
		if perMinute <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}
}

// New creates a Client with token auth and a base URL.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		authScheme: "Bearer",
		headers:    make(http.Header),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

const maxRetries = 3

// GetPage sends a GET request and unmarshals the JSON response into dest.
// It returns the rel="next" URL from the Link header, or "" on the last page. target is either a path
// relative to the base URL or an absolute URL (a previous next link), in
// which case query is ignored.
//
// Returns *APIError for non-2xx responses. Retries on 429 (with Retry-After)
// and 5xx (with exponential backoff: 1s, 2s, 4s). Max 3 retries.
func (c *Client) GetPage(ctx context.Context, target string, query url.Values, dest any) (string, error) {
	fullURL := c.resolve(target, query)

	var lastErr *APIError
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := backoffDelay(attempt, lastErr)
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return "", ctx.Err()
			case <-t.C:
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return "", err
		}
		for k, v := range c.headers {
			req.Header[k] = v
		}
		if c.token != "" {
			req.Header.Set("Authorization", c.authScheme+" "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return "", err
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return "", err
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if err := json.Unmarshal(body, dest); err != nil {
				return "", fmt.Errorf("decode %s: %w", req.URL.Path, err)
			}
			return nextLink(resp.Header.Values("Link")), nil
		}

		bodyStr := string(body)
		if len(bodyStr) > 512 {
			bodyStr = bodyStr[:512]
		}

		apiErr := &APIError{StatusCode: resp.StatusCode, Body: bodyStr}

		if resp.StatusCode == http.StatusTooManyRequests {
			apiErr.retryAfter = resp.Header.Get("Retry-After")
			lastErr = apiErr
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = apiErr
			continue
		}

		return "", apiErr
	}

	return "", lastErr
}

func (c *Client) resolve(target string, query url.Values) string {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	fullURL := c.baseURL + target
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	return fullURL
}

// nextLink extracts the rel="next" target from RFC 8288 Link header values:
//
//	<https://api.example.com/items?offset=30>; rel="next", <...>; rel="last"
//
// Targets are read between '<' and '>' first, so commas inside a URL do not
// split it.
func nextLink(values []string) string {
	for _, v := range values {
		rest := v
		for {
			open := strings.IndexByte(rest, '<')
			if open < 0 {
				break
			}
			end := strings.IndexByte(rest[open:], '>')
			if end < 0 {
				break
			}
			target := rest[open+1 : open+end]

			var params string
			params, rest = splitParams(rest[open+end+1:])
			if hasRel(params, "next") {
				return target
			}
		}
	}
	return ""
}

// splitParams returns the link-params up to the next ',' outside a quoted
// string, and what follows it.
func splitParams(s string) (params, rest string) {
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuote = !inQuote
		case ',':
			if !inQuote {
				return s[:i], s[i+1:]
			}
		}
	}
	return s, ""
}

func hasRel(params, want string) bool {
	for _, param := range strings.Split(params, ";") {
		key, val, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "rel") {
			continue
		}
		for _, rel := range strings.Fields(strings.Trim(strings.TrimSpace(val), `"`)) {
			if strings.EqualFold(rel, want) {
				return true
			}
		}
	}
	return false
}

// backoffDelay returns the wait duration before a retry attempt.
func backoffDelay(attempt int, lastErr *APIError) time.Duration {
	if lastErr != nil && lastErr.StatusCode == http.StatusTooManyRequests && lastErr.retryAfter != "" {
		if secs, err := strconv.Atoi(lastErr.retryAfter); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	// Exponential backoff: 1s, 2s, 4s
	return time.Duration(1<<(attempt-1)) * time.Second
}
