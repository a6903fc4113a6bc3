package weather

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"demand_service/internal/domain/model"
	"demand_service/internal/infrastructure/upstream"
)

func TestDailyForecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/forecast" || r.URL.Query().Get("forecast_days") != "7" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		_, _ = io.WriteString(w, `{"daily":{"time":["2025-07-01","2025-07-02"],
			"temperature_2m_max":[31.2,30.4],"temperature_2m_min":[22.1,21.8],"precipitation_sum":[0,1.2]}}`)
	}))
	defer srv.Close()

	o := NewOpenMeteo(srv.URL, upstream.New("open-meteo", srv.Client(), nil, nil), nil)
	days, err := o.DailyForecast(context.Background(), model.Coordinates{Lat: 44.06, Lng: 12.57})
	if err != nil {
		t.Fatalf("DailyForecast error: %v", err)
	}
	if len(days) != 2 || days[1].PrecipitationMM != 1.2 || days[0].TempMax != 31.2 {
		t.Fatalf("unexpected days %+v", days)
	}
}

func TestDailyForecastMismatchedSeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"daily":{"time":["2025-07-01"],"temperature_2m_max":[],"temperature_2m_min":[],"precipitation_sum":[]}}`)
	}))
	defer srv.Close()

	o := NewOpenMeteo(srv.URL, upstream.New("open-meteo", srv.Client(), nil, nil), nil)
	if _, err := o.DailyForecast(context.Background(), model.Coordinates{}); err == nil {
		t.Fatalf("expected error for mismatched series")
	}
}
