package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics()
	m.CacheHit("geocode")
	m.CacheMiss("weather")
	m.Degraded("competitors")
	m.UpstreamCall("nominatim", "ok", 20*time.Millisecond)
	m.SetCircuitBreakerState("amadeus", 2)

	h := m.WrapHandler("/api/adr", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/adr", nil))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)

	for _, want := range []string{
		`cache_hits_total{cache="geocode"} 1`,
		`cache_misses_total{cache="weather"} 1`,
		`degraded_responses_total{component="competitors"} 1`,
		`upstream_requests_total{outcome="ok",upstream="nominatim"} 1`,
		`cb_state{target="amadeus"} 2`,
		`http_requests_total{route="/api/adr",status="400"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.CacheHit("x")
	m.Degraded("x")
	m.UpstreamCall("x", "ok", time.Second)
	m.SetCircuitBreakerState("x", 0)
}

func TestTwoInstancesDoNotCollide(t *testing.T) {
	_ = NewMetrics()
	_ = NewMetrics()
}
