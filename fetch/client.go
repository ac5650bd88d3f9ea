// Package fetch provides the retrying HTTP GET layer that network-backed
// load functions are built on.
//
// A Client wraps one *http.Client whose transport keeps persistent per-host
// connections and is safe for concurrent use, so every worker goroutine of a
// run shares the connection pool without per-request session setup.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const (
	// DefaultTimeout bounds each individual GET request.
	DefaultTimeout = 5 * time.Second

	defaultMaxAttempts = 10
	defaultBaseBackoff = 1 * time.Second
	defaultMaxBackoff  = 10 * time.Second
)

// ErrDeclined marks a request the server declined with a 403 or 404. Such
// requests are never retried; the error short-circuits the item's pipeline
// with its report row's error column populated rather than passing through
// silently.
var ErrDeclined = errors.New("request declined by server")

// StatusError is returned for responses with an unexpected status code.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s returned status %d", e.URL, e.StatusCode)
}

// retryableError wraps errors the retry loop is allowed to recover from:
// 5xx responses and low-level connection failures.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Client issues GET requests with status-code policy and retry with
// exponential backoff. The zero value is not usable; call NewClient.
//
// The backoff fields may be tuned before first use, e.g. in tests.
type Client struct {
	// HTTPClient performs the requests. Shared safely across goroutines.
	HTTPClient *http.Client

	// MaxAttempts is the total number of tries per Get, including the first.
	MaxAttempts int

	// BaseBackoff is the wait before the first retry; it doubles per attempt
	// up to MaxBackoff.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// NewClient returns a Client with the default timeout and retry policy:
// up to 10 attempts, waiting 1s, 2s, 4s, ... capped at 10s between them.
func NewClient() *Client {
	return &Client{
		HTTPClient:  &http.Client{Timeout: DefaultTimeout},
		MaxAttempts: defaultMaxAttempts,
		BaseBackoff: defaultBaseBackoff,
		MaxBackoff:  defaultMaxBackoff,
	}
}

// DefaultClient is the client used by the package-level Get.
var DefaultClient = NewClient()

// Get fetches url with DefaultClient.
func Get(ctx context.Context, url string) ([]byte, error) {
	return DefaultClient.Get(ctx, url)
}

// Get issues a GET request for url and returns the response body.
//
// Status policy: 200 returns the body; 403 and 404 return an error wrapping
// ErrDeclined without retrying; 5xx and connection errors are retried with
// exponential backoff until MaxAttempts is exhausted, after which the last
// error is returned; any other status returns a *StatusError without
// retrying.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	wait := c.BaseBackoff
	for attempt := 1; ; attempt++ {
		body, err := c.get(ctx, url)
		if err == nil {
			return body, nil
		}

		var re *retryableError
		if !errors.As(err, &re) {
			return nil, err
		}
		if attempt >= c.MaxAttempts {
			return nil, re.err
		}

		log.Printf("Retrying %s after attempt %d: %v", url, attempt, re.err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		wait *= 2
		if wait > c.MaxBackoff {
			wait = c.MaxBackoff
		}
	}
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &retryableError{err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &retryableError{err: err}
		}
		return body, nil

	case resp.StatusCode >= 500 && resp.StatusCode < 600:
		// Transient server-side failure; let the retry loop handle it.
		return nil, &retryableError{err: &StatusError{URL: url, StatusCode: resp.StatusCode}}

	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusNotFound:
		log.Printf("Failed to fetch %s with status code %d", url, resp.StatusCode)
		return nil, fmt.Errorf("GET %s returned status %d: %w", url, resp.StatusCode, ErrDeclined)

	default:
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
}
