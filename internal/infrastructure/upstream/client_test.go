package upstream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"demand_service/internal/infrastructure/breaker"
)

type callLog struct{ outcomes []string }

func (c *callLog) UpstreamCall(_ string, outcome string, _ time.Duration) {
	c.outcomes = append(c.outcomes, outcome)
}

func TestGetJSONDecodesAndSendsUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "demand-test" {
			t.Errorf("unexpected user agent %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"name":"Rimini"}`)
	}))
	defer srv.Close()

	rec := &callLog{}
	c := New("test", srv.Client(), nil, rec).WithUserAgent("demand-test")

	var out struct{ Name string }
	if err := c.GetJSON(context.Background(), srv.URL, nil, &out); err != nil {
		t.Fatalf("GetJSON error: %v", err)
	}
	if out.Name != "Rimini" {
		t.Fatalf("unexpected body: %+v", out)
	}
	if len(rec.outcomes) != 1 || rec.outcomes[0] != "ok" {
		t.Fatalf("unexpected outcomes: %v", rec.outcomes)
	}
}

func TestGetJSONReportsStatusAndOpensBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	brk := breaker.New("test", breaker.Config{MaxFailures: 1, ResetTimeout: time.Hour}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec := &callLog{}
	c := New("test", srv.Client(), brk, rec)

	var out map[string]any
	err := c.GetJSON(context.Background(), srv.URL, nil, &out)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusTooManyRequests {
		t.Fatalf("expected StatusError 429, got %v", err)
	}

	err = c.GetJSON(context.Background(), srv.URL, nil, &out)
	if !errors.Is(err, breaker.ErrOpen) {
		t.Fatalf("expected breaker to be open, got %v", err)
	}
	if len(rec.outcomes) != 2 || rec.outcomes[1] != "open" {
		t.Fatalf("unexpected outcomes: %v", rec.outcomes)
	}
}

func TestGetTextLimitsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>0123456789</html>")
	}))
	defer srv.Close()

	c := New("pages", srv.Client(), nil, nil)
	body, err := c.GetText(context.Background(), srv.URL, 10)
	if err != nil {
		t.Fatalf("GetText error: %v", err)
	}
	if body != "<html>0123" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestClientErrorsLeaveBreakerClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ZZ" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	brk := breaker.New("nager", breaker.Config{MaxFailures: 5, ResetTimeout: time.Hour}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c := New("nager", srv.Client(), brk, nil)

	var out []any
	for i := 0; i < 5; i++ {
		err := c.GetJSON(context.Background(), srv.URL+"/ZZ", nil, &out)
		var se *StatusError
		if !errors.As(err, &se) || se.Code != http.StatusNotFound {
			t.Fatalf("attempt %d: expected 404, got %v", i, err)
		}
	}
	if err := c.GetJSON(context.Background(), srv.URL+"/IT", nil, &out); err != nil {
		t.Fatalf("valid lookup after rejected ones should pass, got %v (state %s)", err, brk.State())
	}
	if brk.State() != breaker.Closed {
		t.Fatalf("expected closed breaker, got %s", brk.State())
	}
}

func TestStatusErrorCallerFault(t *testing.T) {
	cases := map[int]bool{400: true, 404: true, 422: true, 429: false, 500: false, 503: false}
	for code, want := range cases {
		if got := (&StatusError{Code: code}).CallerFault(); got != want {
			t.Fatalf("status %d: CallerFault = %v, want %v", code, got, want)
		}
	}
}
