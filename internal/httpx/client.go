// Package httpx is the outbound HTTP layer shared by every backend client.
// It applies a per-attempt timeout, retries transient failures with a
// bounded linear-growth backoff, and refuses to retry well-formed 4xx
// application errors. A circuit breaker fronts the backend so a dead host
// fails fast instead of burning the full retry budget per call.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 500 * time.Millisecond
)

type Options struct {
	Timeout    time.Duration // per-attempt bound, DefaultTimeout if zero
	MaxRetries int           // retries after the first attempt, DefaultMaxRetries if zero
	BaseDelay  time.Duration // delay before retry n is BaseDelay*n, DefaultBaseDelay if zero
	Logger     *slog.Logger
}

type Client struct {
	http       *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	timeout    time.Duration
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name: "backend",
		// Application-level 4xx responses are a healthy backend saying no.
		IsSuccessful: func(err error) bool {
			var se *StatusError
			return err == nil || errors.As(err, &se)
		},
	})

	return &Client{
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker:    breaker,
		timeout:    opts.Timeout,
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.BaseDelay,
		logger:     opts.Logger,
	}
}

// Get fetches url and decodes the JSON response into out (skipped when nil).
func (c *Client) Get(ctx context.Context, url string, header http.Header, out any) error {
	return c.Do(ctx, http.MethodGet, url, header, nil, out)
}

// Post sends body as JSON (nil means empty body) and decodes the response.
func (c *Client) Post(ctx context.Context, url string, header http.Header, body, out any) error {
	return c.Do(ctx, http.MethodPost, url, header, body, out)
}

// PostOnce sends body as JSON in exactly one attempt: transient failures are
// returned as-is, never retried. This is the path for non-idempotent calls
// where a duplicate request could act twice server-side.
func (c *Client) PostOnce(ctx context.Context, url string, header http.Header, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
	}

	data, err := c.attempt(ctx, http.MethodPost, url, header, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("malformed response body: %w", err)
	}
	return nil
}

// Do runs one logical request. Transient failures (network error, timeout,
// 5xx, malformed body) are re-attempted up to MaxRetries times; 4xx
// application errors return a *StatusError immediately. When the retry
// budget is spent the result is an *ExhaustedError wrapping the last cause.
func (c *Client) Do(ctx context.Context, method, url string, header http.Header, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
	}

	var (
		attempts int
		lastErr  error
	)

	backoff := retry.WithMaxRetries(uint64(c.maxRetries), c.linearBackoff())
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		data, err := c.attempt(ctx, method, url, header, payload)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) {
				return err // terminal, never retried
			}
			lastErr = err
			c.logger.WarnContext(ctx, "request attempt failed",
				"method", method, "url", url, "attempt", attempts, "error", err)
			return retry.RetryableError(err)
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			lastErr = fmt.Errorf("malformed response body: %w", err)
			return retry.RetryableError(lastErr)
		}
		return nil
	})
	if err == nil {
		return nil
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se
	}
	if ctx.Err() != nil {
		// The surrounding operation was abandoned mid-retry.
		return ctx.Err()
	}
	return &ExhaustedError{Attempts: attempts, Last: lastErr}
}

// linearBackoff yields BaseDelay, 2*BaseDelay, 3*BaseDelay, ...
func (c *Client) linearBackoff() retry.Backoff {
	n := 0
	return retry.BackoffFunc(func() (time.Duration, bool) {
		n++
		return c.baseDelay * time.Duration(n), false
	})
}

func (c *Client) attempt(ctx context.Context, method, url string, header http.Header, payload []byte) ([]byte, error) {
	return c.breaker.Execute(func() ([]byte, error) {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}

		switch {
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("server error: status %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			return nil, &StatusError{Code: resp.StatusCode, Detail: errorDetail(data)}
		}
		return data, nil
	})
}

// errorDetail extracts the backend's {"detail": "..."} message, falling back
// to the raw body.
func errorDetail(data []byte) string {
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Detail != "" {
		return body.Detail
	}
	const max = 200
	if len(data) > max {
		data = data[:max]
	}
	return string(bytes.TrimSpace(data))
}
