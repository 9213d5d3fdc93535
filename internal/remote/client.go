package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/hamitb/allbadcards/pkg/abcdto"
)

// HeaderProvider allows injecting per-request headers
type HeaderProvider func() map[string]string

// Client is a small JSON-over-HTTP client for the game API and deck sources. GETs are
// retried with backoff on transport errors, 5xx and 429; writes are sent once since game
// actions are not idempotent.
type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

// WithDial replaces the dialer, e.g. with an in-memory listener in tests.
func WithDial(dial fasthttp.DialFunc) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Status int
	Body   string
	// Decoded is set when the body was an API error document.
	Decoded *abcdto.ErrorBody
}

func (e *StatusError) Error() string {
	if e.Decoded != nil && e.Decoded.Error != "" {
		return fmt.Sprintf("api error: status=%d code=%s msg=%s", e.Status, e.Decoded.Code, e.Decoded.Error)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.Status, truncate(e.Body, 512))
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == code
}

// ErrorCode returns the API error code (not_found, invalid_state, ...) carried by err, or "".
func ErrorCode(err error) string {
	var se *StatusError
	if errors.As(err, &se) && se.Decoded != nil {
		return se.Decoded.Code
	}
	return ""
}

func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, fasthttp.MethodGet, path, nil, out, true)
}

func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	return c.doJSON(ctx, fasthttp.MethodPost, path, in, out, false)
}

// Packs lists the packs a game server offers.
func (c *Client) Packs(ctx context.Context) (*abcdto.PackList, error) {
	var out abcdto.PackList
	if err := c.GetJSON(ctx, "/api/packs", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Game(ctx context.Context, gameID, guid string) (*abcdto.GameView, error) {
	var out abcdto.GameView
	if err := c.GetJSON(ctx, "/api/games/"+gameID+"?guid="+guid, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	url := c.baseURL + path
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(url)
	req.Header.SetContentType("application/json")

	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry {
		attempts = c.retryMax
		if attempts <= 0 {
			attempts = 1
		}
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		deadline := c.computeDeadline(ctx)
		err := c.http.DoDeadline(req, resp, deadline)
		if err != nil {
			if attempt == attempts || !retry {
				return fmt.Errorf("request failed: %w", err)
			}
			lastErr = err
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			err := statusError(status, resp.Body())
			if attempt == attempts || !retry || !shouldRetryStatus(status) {
				return err
			}
			lastErr = err
			wait := backoffDuration(attempt)
			if d, ok := retryAfter(resp); ok {
				wait = d
			}
			if sleepErr := sleepWithContext(ctx, wait); sleepErr != nil {
				return lastErr
			}
			continue
		}

		if out != nil {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func statusError(status int, body []byte) *StatusError {
	se := &StatusError{Status: status, Body: string(body)}
	var eb abcdto.ErrorBody
	if json.Unmarshal(body, &eb) == nil && eb.Error != "" {
		se.Decoded = &eb
	}
	return se
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		clientDL := time.Now().Add(c.defaultTimeout)
		if dl.Before(clientDL) {
			return dl
		}
		return clientDL
	}
	return time.Now().Add(c.defaultTimeout)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base // 100ms, 200ms ...
}

// shouldRetryStatus keeps 4xx final: a 409 means the game moved on and the caller needs a
// fresh view, not a resend.
func shouldRetryStatus(code int) bool {
	switch code {
	case fasthttp.StatusTooManyRequests,
		fasthttp.StatusInternalServerError,
		fasthttp.StatusBadGateway,
		fasthttp.StatusServiceUnavailable,
		fasthttp.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

const maxRetryAfter = 5 * time.Second

// retryAfter reads a Retry-After header given in seconds, capped at maxRetryAfter.
func retryAfter(resp *fasthttp.Response) (time.Duration, bool) {
	raw := strings.TrimSpace(string(resp.Header.Peek(fasthttp.HeaderRetryAfter)))
	if raw == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return 0, false
	}
	return min(time.Duration(secs)*time.Second, maxRetryAfter), true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
