package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"demand_service/internal/core"
	"demand_service/internal/observability"
)

func newTestRouter(t *testing.T) (http.Handler, *observability.Metrics) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetrics()
	svc := core.NewDemandService(core.Dependencies{Observer: metrics}, core.Options{
		DefaultCountry: "IT",
		Now:            func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) },
	}, logger)
	return NewRouter(NewHandler(svc, logger), metrics, logger), metrics
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := get(t, h, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected a request id header")
	}
}

func TestADRDemoTaormina(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := get(t, h, "/api/adr?location=Taormina&rating=9.5")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "public, max-age=3600" {
		t.Fatalf("unexpected cache hint %q", cc)
	}

	var body struct {
		Mode    string  `json:"mode"`
		Context string  `json:"context"`
		ADR     [12]int `json:"adr"`
	}
	decode(t, rec, &body)
	if body.Mode != "demo" || body.Context != "sea" || body.ADR[6] != 144 {
		t.Fatalf("unexpected report %+v", body)
	}
}

func TestBadRequests(t *testing.T) {
	h, _ := newTestRouter(t)
	cases := []string{
		"/api/adr",
		"/api/adr?location=Rimini&rating=high",
		"/api/competitors?lat=41.9",
		"/api/competitors?lat=120&lng=12",
		"/api/competitors/recon?url=ftp://example.com",
		"/api/pricing?location=Rimini&checkin=tomorrow",
		"/api/weather",
		"/api/estimates/recent?limit=ten",
		"/api/adr?location=Taormina&rating=NaN",
		"/api/adr?location=Taormina&rating=Inf",
		"/api/overview?location=Taormina&rating=-Inf",
		"/api/overview?lat=NaN&lng=1",
		"/api/competitors?lat=37.8&lng=%2BInf",
		"/api/competitors/recon?url=http://127.0.0.1/",
		"/api/competitors/recon?url=http://169.254.169.254/latest/meta-data/",
		"/api/competitors/recon?url=http://localhost:9090/metrics",
	}
	for _, target := range cases {
		rec := get(t, h, target)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rec.Code)
		}
		var body errorResponse
		decode(t, rec, &body)
		if body.Error == "" {
			t.Fatalf("%s: expected an error message", target)
		}
	}
}

func TestWriteJSONUnencodableIsInternalError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]float64{"adr": math.NaN()})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body errorResponse
	decode(t, rec, &body)
	if body.Error == "" {
		t.Fatalf("expected an error message, got %q", rec.Body.String())
	}
}

func TestCompetitorsDemoSet(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := get(t, h, "/api/competitors?lat=37.8516&lng=15.2853&prices=true")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Mode  string `json:"mode"`
		Items []struct {
			Name       string          `json:"name"`
			PricesDemo json.RawMessage `json:"prices_demo"`
		} `json:"items"`
	}
	decode(t, rec, &body)
	if body.Mode != "demo" || len(body.Items) != 6 {
		t.Fatalf("expected 6 demo competitors, got %+v", body)
	}
	if len(body.Items[0].PricesDemo) == 0 {
		t.Fatalf("expected price bands when prices=true")
	}
}

func TestUnknownRouteAndMethod(t *testing.T) {
	h, _ := newTestRouter(t)
	if rec := get(t, h, "/api/nope"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/adr?location=Rimini", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestADRExportIsWorkbook(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := get(t, h, "/api/adr/export.xlsx?location=Rimini")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "PK") {
		t.Fatalf("expected a zip container")
	}
}

func TestRecentEstimatesWithoutJournal(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := get(t, h, "/api/estimates/recent")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty list, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestMetricsExposeRequestsAndDegradations(t *testing.T) {
	h, _ := newTestRouter(t)
	get(t, h, "/api/holidays?country=IT&year=2025")

	rec := get(t, h, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	out := rec.Body.String()
	for _, want := range []string{`http_requests_total{route="/api/holidays",status="200"} 1`, `degraded_responses_total{component="holidays"} 1`} {
		if !strings.Contains(out, want) {
			t.Fatalf("metrics missing %s", want)
		}
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	h, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "abc-123" {
		t.Fatalf("expected propagated id, got %q", got)
	}
}
