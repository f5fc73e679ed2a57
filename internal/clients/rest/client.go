// Package rest is the JSON-over-HTTP client shared by the upstream
// integrations. GET requests are retried with exponential backoff.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ecom_ops_backend/pkg/utils"
)

// StatusError is a non-2xx answer from an upstream provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s api error %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Retryable reports whether another attempt may succeed.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// RetryPolicy controls GET retries. Delay doubles from BaseDelay up to MaxDelay.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

var DefaultRetry = RetryPolicy{Attempts: 3, BaseDelay: 250 * time.Millisecond, MaxDelay: 4 * time.Second}

// Delay returns the wait before attempt n (1-based, n >= 2).
func (p RetryPolicy) Delay(n int) time.Duration {
	d := p.BaseDelay
	for i := 2; i < n; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

type Client struct {
	provider string
	baseURL  string
	http     *http.Client
	auth     func(*http.Request)
	retry    RetryPolicy
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithAuth installs a hook that decorates every outgoing request.
func WithAuth(fn func(*http.Request)) Option {
	return func(c *Client) { c.auth = fn }
}

func WithRetry(p RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

func New(provider, baseURL string, opts ...Option) *Client {
	c := &Client{
		provider: provider,
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 30 * time.Second},
		retry:    DefaultRetry,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.Attempts < 1 {
		c.retry.Attempts = 1
	}
	return c
}

func (c *Client) Provider() string { return c.provider }

// GetJSON fetches path (relative to the base URL, or absolute) and decodes the
// body into out with json.Number for numbers.
func (c *Client) GetJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	endpoint := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		endpoint = c.baseURL + "/" + strings.TrimLeft(path, "/")
	}
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint += sep + params.Encode()
	}

	var lastErr error
	for attempt := 1; attempt <= c.retry.Attempts; attempt++ {
		if attempt > 1 {
			wait := c.retry.Delay(attempt)
			utils.LogWarn("Upstream GET retry", map[string]interface{}{
				"provider": c.provider, "attempt": attempt, "wait": wait.String(), "error": lastErr.Error(),
			})
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		body, err := c.do(ctx, endpoint)
		if err == nil {
			dec := json.NewDecoder(bytes.NewReader(body))
			dec.UseNumber()
			if err := dec.Decode(out); err != nil {
				return fmt.Errorf("%s: decoding response: %w", c.provider, err)
			}
			return nil
		}
		lastErr = err

		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.auth != nil {
		c.auth(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: reading response: %w", c.provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > 512 {
			msg = msg[:512]
		}
		return nil, &StatusError{Provider: c.provider, StatusCode: resp.StatusCode, Body: msg}
	}
	return body, nil
}
