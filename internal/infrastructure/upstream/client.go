package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"demand_service/internal/infrastructure/breaker"
)

const maxErrorBody = 512

// Recorder receives one observation per outbound call.
type Recorder interface {
	UpstreamCall(upstream, outcome string, d time.Duration)
}

// StatusError is returned for non-2xx upstream responses.
type StatusError struct {
	Upstream string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Upstream, e.Code)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Upstream, e.Code, e.Body)
}

// CallerFault reports 4xx answers other than 429: the upstream is healthy and
// rejected this particular request.
func (e *StatusError) CallerFault() bool {
	return e.Code >= 400 && e.Code < 500 && e.Code != http.StatusTooManyRequests
}

// Client is the JSON-over-HTTP transport shared by the upstream adapters.
// Calls go through the circuit breaker when one is configured.
type Client struct {
	name      string
	http      *http.Client
	brk       *breaker.Breaker
	rec       Recorder
	userAgent string
}

func New(name string, httpClient *http.Client, brk *breaker.Breaker, rec Recorder) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 8 * time.Second}
	}
	return &Client{name: name, http: httpClient, brk: brk, rec: rec}
}

// WithUserAgent returns a copy of the client sending the given User-Agent.
func (c *Client) WithUserAgent(ua string) *Client {
	cp := *c
	cp.userAgent = ua
	return &cp
}

func (c *Client) Name() string { return c.name }

func (c *Client) HTTPClient() *http.Client { return c.http }

// Guard runs op under the breaker and records its outcome.
func (c *Client) Guard(ctx context.Context, op func(ctx context.Context) error) error {
	start := time.Now()
	var err error
	if c.brk != nil {
		err = c.brk.Execute(ctx, op)
	} else {
		err = op(ctx)
	}

	if c.rec != nil {
		outcome := "ok"
		switch {
		case errors.Is(err, breaker.ErrOpen):
			outcome = "open"
		case err != nil:
			outcome = "error"
		}
		c.rec.UpstreamCall(c.name, outcome, time.Since(start))
	}
	return err
}

func (c *Client) GetJSON(ctx context.Context, url string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", c.name, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	return c.DoJSON(req, out)
}

// DoJSON sends req and decodes a 2xx JSON body into out.
func (c *Client) DoJSON(req *http.Request, out any) error {
	return c.Guard(req.Context(), func(ctx context.Context) error {
		resp, err := c.do(req.WithContext(ctx))
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s: decode response: %w", c.name, err)
		}
		return nil
	})
}

// GetText fetches url and returns at most limit bytes of the body.
func (c *Client) GetText(ctx context.Context, url string, limit int64) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%s: build request: %w", c.name, err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	var body string
	err = c.Guard(ctx, func(ctx context.Context) error {
		resp, err := c.do(req.WithContext(ctx))
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, limit))
		if err != nil {
			return fmt.Errorf("%s: read body: %w", c.name, err)
		}
		body = string(raw)
		return nil
	})
	return body, err
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", c.name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, &StatusError{Upstream: c.name, Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return resp, nil
}
