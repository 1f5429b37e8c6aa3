// Package apiclient posts JSON to the assessment's external collaborators
// (question generator, evaluator) with bearer auth and adaptive rate
// limiting. It never retries: callers own their fallback.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultRate    = 5
	maxErrorBody   = 512
	defaultTimeout = 60 * time.Second
)

// StatusError is a non-2xx reply.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// IsStatus reports whether err carries a StatusError.
func IsStatus(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithRequestsPerSecond sets the initial request rate. Non-positive values
// keep the default.
func WithRequestsPerSecond(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = NewAdaptiveLimiter(rate.Limit(rps), max(1, int(rps)))
		}
	}
}

// Client posts JSON documents to one base URL.
type Client struct {
	name    string
	baseURL string
	key     string
	http    *http.Client
	limiter *AdaptiveLimiter
}

// New creates a Client. Name prefixes error messages.
func New(name, baseURL, key string, opts ...Option) *Client {
	c := &Client{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		http: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: NewAdaptiveLimiter(defaultRate, defaultRate),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// PostJSON sends in to {base}{path} and decodes the reply into out.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return eris.Wrapf(err, "%s: marshal request", c.name)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrapf(err, "%s: rate limiter wait", c.name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return eris.Wrapf(err, "%s: create request", c.name)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+c.key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrapf(err, "%s: send request", c.name)
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrapf(err, "%s: read response", c.name)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		c.limiter.OnRateLimit()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(respBody)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return eris.Wrapf(&StatusError{Code: resp.StatusCode, Body: snippet}, "%s: post %s", c.name, path)
	}
	c.limiter.OnSuccess()

	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrapf(err, "%s: unmarshal response", c.name)
	}
	return nil
}
