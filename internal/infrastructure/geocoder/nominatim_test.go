package geocoder

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"demand_service/internal/cache"
	"demand_service/internal/domain/model"
	"demand_service/internal/infrastructure/upstream"
)

func TestGeocodeParsesAndCaches(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Path != "/search" || r.URL.Query().Get("q") != "Rimini" || r.URL.Query().Get("format") != "json" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		_, _ = io.WriteString(w, `[{"lat":"44.0575","lon":"12.5653","display_name":"Rimini, Emilia-Romagna, Italia"}]`)
	}))
	defer srv.Close()

	g := NewNominatim(srv.URL+"/", upstream.New("nominatim", srv.Client(), nil, nil), cache.New[model.Coordinates]("geocode", time.Hour, nil))
	g.pacer.interval = 0

	for i := 0; i < 2; i++ {
		c, err := g.Geocode(context.Background(), "Rimini")
		if err != nil {
			t.Fatalf("Geocode error: %v", err)
		}
		if c.Lat != 44.0575 || c.Lng != 12.5653 {
			t.Fatalf("unexpected coordinates %+v", c)
		}
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("second lookup should be served from cache, upstream hits=%d", hits)
	}
}

func TestGeocodeNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	g := NewNominatim(srv.URL, upstream.New("nominatim", srv.Client(), nil, nil), nil)
	g.pacer.interval = 0
	if _, err := g.Geocode(context.Background(), "Sconosciuta123"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPacerHonoursContext(t *testing.T) {
	p := &pacer{interval: time.Hour, lastCall: time.Now()}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := p.wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
