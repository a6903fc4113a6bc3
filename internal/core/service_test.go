package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"demand_service/internal/domain/model"
)

var fixedNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type stubOffers struct {
	prices []float64
	err    error
}

func (s stubOffers) NightlyPrices(_ context.Context, _ model.Coordinates, checkIn time.Time) ([]model.PriceSample, int, error) {
	if s.err != nil {
		return nil, 4, s.err
	}
	out := make([]model.PriceSample, 0, len(s.prices))
	for i, p := range s.prices {
		out = append(out, model.PriceSample{HotelID: string(rune('A' + i)), Nightly: p, Currency: "EUR", CheckIn: checkIn.Format("2006-01-02")})
	}
	return out, 1, nil
}

type stubTrends struct{ points []model.TrendPoint }

func (s stubTrends) InterestOverTime(context.Context, string, string) ([]model.TrendPoint, error) {
	return s.points, nil
}

type stubHolidays struct{ err error }

func (s stubHolidays) PublicHolidays(_ context.Context, year int, country string) ([]model.Holiday, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []model.Holiday{{Date: "2025-08-15", Name: "Assumption Day", Country: country}}, nil
}

type stubWeather struct{}

func (stubWeather) DailyForecast(context.Context, model.Coordinates) ([]model.WeatherDay, error) {
	return []model.WeatherDay{{Date: "2025-03-10", TempMax: 18, TempMin: 9}}, nil
}

type stubPages struct {
	html string
	err  error
}

func (s stubPages) Fetch(context.Context, string) (string, error) { return s.html, s.err }

type memJournal struct {
	mu      sync.Mutex
	records []model.EstimateRecord
}

func (j *memJournal) Record(_ context.Context, rec model.EstimateRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, rec)
	return nil
}

func (j *memJournal) Recent(_ context.Context, limit int) ([]model.EstimateRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.records) < limit {
		limit = len(j.records)
	}
	return append([]model.EstimateRecord(nil), j.records[:limit]...), nil
}

type memEvents struct {
	mu   sync.Mutex
	keys []string
}

func (e *memEvents) Publish(_ context.Context, key string, _ []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.keys = append(e.keys, key)
	return nil
}

type countingObserver struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *countingObserver) Degraded(component string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = map[string]int{}
	}
	o.counts[component]++
}

type countingGeocoder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (g *countingGeocoder) Geocode(context.Context, string) (model.Coordinates, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return model.Coordinates{}, g.err
}

func newTestService(deps Dependencies) *DemandService {
	return NewDemandService(deps, Options{
		DefaultCountry: "it",
		FallbackCenter: model.Coordinates{Lat: 41.9028, Lng: 12.4964},
		Now:            func() time.Time { return fixedNow },
	}, discardLogger())
}

func TestEstimateADRRequiresInput(t *testing.T) {
	svc := newTestService(Dependencies{})
	if _, err := svc.EstimateADR(context.Background(), ADRQuery{Location: "  "}); !errors.Is(err, ErrMissingLocation) {
		t.Fatalf("expected ErrMissingLocation, got %v", err)
	}
}

func TestEstimateADRDefaultBaselineIsDemo(t *testing.T) {
	obs := &countingObserver{}
	svc := newTestService(Dependencies{Observer: obs})

	report, err := svc.EstimateADR(context.Background(), ADRQuery{Location: "Taormina", Rating: ptr(9.5)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Mode != model.ModeDemo || report.BaselineSource != "default" {
		t.Fatalf("expected demo default baseline, got %s/%s", report.Mode, report.BaselineSource)
	}
	if report.ADR[6] != 144 {
		t.Fatalf("taormina july: got %d want 144", report.ADR[6])
	}
	if report.Context != model.ContextSea {
		t.Fatalf("expected sea context, got %s", report.Context)
	}
	if len(report.Notes) == 0 {
		t.Fatalf("expected notes explaining the fallback")
	}
	if obs.counts["adr"] != 1 {
		t.Fatalf("expected one adr degradation, got %v", obs.counts)
	}
}

func TestEstimateADRUsesOfferMedian(t *testing.T) {
	journal := &memJournal{}
	events := &memEvents{}
	svc := newTestService(Dependencies{
		Offers:  stubOffers{prices: []float64{100, 160, 120}},
		Journal: journal,
		Events:  events,
	})

	report, err := svc.EstimateADR(context.Background(), ADRQuery{Location: "Sconosciuta", Center: &taormina})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Mode != model.ModeLive || report.BaselineSource != "offers" || report.Baseline != 120 {
		t.Fatalf("unexpected baseline: %+v", report)
	}
	if report.ADR[6] != 120 {
		t.Fatalf("generic july should equal the baseline, got %d", report.ADR[6])
	}
	if len(journal.records) != 1 || journal.records[0].Kind != "adr" {
		t.Fatalf("expected one journaled adr estimate, got %+v", journal.records)
	}
	if len(events.keys) != 1 || events.keys[0] != journal.records[0].ID {
		t.Fatalf("expected event keyed by record id, got %v", events.keys)
	}
}

func TestCompetitorsWithoutSourceIsDemo(t *testing.T) {
	svc := newTestService(Dependencies{})
	report, err := svc.Competitors(context.Background(), CompetitorQuery{Center: &taormina})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Mode != model.ModeDemo || len(report.Items) != 6 {
		t.Fatalf("expected 6 demo items, got %s/%d", report.Mode, len(report.Items))
	}
	if _, err := svc.Competitors(context.Background(), CompetitorQuery{}); !errors.Is(err, ErrMissingLocation) {
		t.Fatalf("expected ErrMissingLocation, got %v", err)
	}
}

func TestDemandSources(t *testing.T) {
	var points []model.TrendPoint
	for i := 0; i < 12; i++ {
		points = append(points, model.TrendPoint{Time: time.Date(2024, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC), Value: float64(20 + i)})
	}
	svc := newTestService(Dependencies{Trends: stubTrends{points: points}, Holidays: stubHolidays{}})

	report, err := svc.Demand(context.Background(), DemandQuery{Location: "Rimini"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Mode != model.ModeLive {
		t.Fatalf("expected live demand, notes %v", report.Notes)
	}
	if report.Sources["trends"] != model.ModeLive || report.Sources["holidays"] != model.ModeLive {
		t.Fatalf("unexpected sources: %v", report.Sources)
	}
	if report.Momentum != 1 {
		t.Fatalf("expected momentum 1, got %f", report.Momentum)
	}
	if len(report.Weights) != 3 {
		t.Fatalf("expected three weights, got %v", report.Weights)
	}
}

func TestDemandDegradesPerSource(t *testing.T) {
	svc := newTestService(Dependencies{Holidays: stubHolidays{err: errors.New("down")}})
	report, err := svc.Demand(context.Background(), DemandQuery{Location: "Rimini", Country: "xx"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Mode != model.ModeDemo || len(report.Notes) != 2 {
		t.Fatalf("expected two degradation notes, got %s %v", report.Mode, report.Notes)
	}
}

func TestHolidaysDemoUsesRequestedYear(t *testing.T) {
	svc := newTestService(Dependencies{})
	report := svc.Holidays(context.Background(), "", 2026)
	if report.Mode != model.ModeDemo || report.Country != "IT" || report.Year != 2026 {
		t.Fatalf("unexpected report header: %+v", report)
	}
	if report.Holidays[0].Date != "2026-01-01" {
		t.Fatalf("unexpected first holiday: %+v", report.Holidays[0])
	}
}

func TestHolidaysRejectsMalformedCountry(t *testing.T) {
	svc := newTestService(Dependencies{Holidays: stubHolidays{}})
	for _, in := range []string{"..", "1A", "z", "ITA", "../v3"} {
		report := svc.Holidays(context.Background(), in, 2025)
		if report.Country != "IT" {
			t.Fatalf("%q should fall back to IT, got %q", in, report.Country)
		}
	}
	if report := svc.Holidays(context.Background(), " fr ", 2025); report.Country != "FR" || report.Holidays[0].Country != "FR" {
		t.Fatalf("expected normalized FR, got %+v", report)
	}
}

func TestWeatherDemoHasSevenDays(t *testing.T) {
	svc := newTestService(Dependencies{})
	report := svc.Weather(context.Background(), taormina)
	if report.Mode != model.ModeDemo || len(report.Days) != 7 {
		t.Fatalf("expected 7 demo days, got %s/%d", report.Mode, len(report.Days))
	}
	if report.Days[0].Date != "2025-03-10" {
		t.Fatalf("demo days should start today, got %s", report.Days[0].Date)
	}
}

func TestRecon(t *testing.T) {
	svc := newTestService(Dependencies{Pages: stubPages{html: `<a href="https://hotels.cloudbeds.com/reservation/x">Book now</a>`}})

	for _, bad := range []string{"", "ftp://example.com", "not a url", "https://"} {
		if _, err := svc.Recon(context.Background(), bad); !errors.Is(err, ErrInvalidURL) {
			t.Fatalf("%q: expected ErrInvalidURL, got %v", bad, err)
		}
	}

	report, err := svc.Recon(context.Background(), "https://hotel.example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Mode != model.ModeLive || len(report.Engines) != 1 || report.Engines[0].Engine != "Cloudbeds" || !report.DirectBooking {
		t.Fatalf("unexpected recon report: %+v", report)
	}

	failing := newTestService(Dependencies{Pages: stubPages{err: errors.New("timeout")}})
	report, err = failing.Recon(context.Background(), "https://hotel.example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Mode != model.ModeDemo || len(report.Engines) != 0 || len(report.Notes) != 1 {
		t.Fatalf("expected degraded recon, got %+v", report)
	}
}

func TestReconRefusesNonPublicHosts(t *testing.T) {
	svc := newTestService(Dependencies{Pages: stubPages{html: `<a href="https://hotels.cloudbeds.com/reservation/x">Book now</a>`}})
	for _, target := range []string{
		"http://127.0.0.1/",
		"http://localhost:8080/",
		"http://169.254.169.254/latest/meta-data/",
		"http://[::1]/",
		"http://10.0.0.5/",
		"http://192.168.1.1/admin",
		"http://0.0.0.0/",
		"http://metadata.google.internal/",
		"http://[::ffff:127.0.0.1]/",
	} {
		report, err := svc.Recon(context.Background(), target)
		if !errors.Is(err, ErrForbiddenHost) {
			t.Fatalf("%s: expected ErrForbiddenHost, got %v (%+v)", target, err, report)
		}
	}
	if _, err := svc.Recon(context.Background(), "https://93.184.215.14/"); err != nil {
		t.Fatalf("public address should be allowed, got %v", err)
	}
}

func TestOverviewAllLive(t *testing.T) {
	places := &stubPlaces{candidates: []model.Candidate{
		candidateAt("A", 0, 1, ptr(4.7)),
		candidateAt("B", 90, 2, ptr(4.4)),
		candidateAt("C", 180, 3, ptr(4.1)),
	}}
	journal := &memJournal{}
	svc := newTestService(Dependencies{
		Places:   places,
		Geocoder: stubGeocoder{at: taormina},
		Trends:   stubTrends{points: demoTrends(fixedNow)},
		Weather:  stubWeather{},
		Holidays: stubHolidays{},
		Offers:   stubOffers{prices: []float64{180, 200, 220}},
		Journal:  journal,
	})

	report, err := svc.Overview(context.Background(), OverviewQuery{Location: "Taormina", Rating: ptr(9.5)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Mode != model.ModeLive {
		t.Fatalf("expected live overview, notes adr=%v comp=%v pricing=%v demand=%v weather=%v",
			report.ADR.Notes, report.Competitors.Notes, report.Pricing.Notes, report.Demand.Notes, report.Weather.Notes)
	}
	if report.Center != taormina {
		t.Fatalf("expected geocoded center, got %+v", report.Center)
	}
	if report.ADR.BaselineSource != "offers" || report.ADR.Baseline != 200 {
		t.Fatalf("expected offer baseline 200, got %s %.0f", report.ADR.BaselineSource, report.ADR.Baseline)
	}
	if len(report.Competitors.Items) != 3 || report.Competitors.Items[0].PricesDemo == nil {
		t.Fatalf("expected priced competitors, got %+v", report.Competitors.Items)
	}
	if report.Pricing.Median != 200 || report.Pricing.Attempts != 1 {
		t.Fatalf("unexpected pricing: %+v", report.Pricing)
	}

	recent, err := svc.RecentEstimates(context.Background(), 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 1 || recent[0].Kind != "overview" {
		t.Fatalf("expected the overview to be journaled, got %+v", recent)
	}
}

func TestOverviewWithoutUpstreams(t *testing.T) {
	svc := newTestService(Dependencies{})
	report, err := svc.Overview(context.Background(), OverviewQuery{Location: "Cortina"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Mode != model.ModeDemo {
		t.Fatalf("expected demo overview")
	}
	if len(report.Competitors.Items) != 6 {
		t.Fatalf("expected 6 demo competitors, got %d", len(report.Competitors.Items))
	}
	if report.ADR.BaselineSource != "default" || report.ADR.Context != model.ContextMountain {
		t.Fatalf("unexpected adr: %+v", report.ADR)
	}
	if recent, _ := svc.RecentEstimates(context.Background(), 5); len(recent) != 0 {
		t.Fatalf("no journal configured, expected empty list")
	}
}

func TestOverviewGeocodesOnce(t *testing.T) {
	geo := &countingGeocoder{err: errors.New("no match")}
	places := &stubPlaces{candidates: []model.Candidate{candidateAt("A", 0, 1, ptr(4.5))}}
	svc := newTestService(Dependencies{Geocoder: geo, Places: places})

	report, err := svc.Overview(context.Background(), OverviewQuery{Location: "Atlantide"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if geo.calls != 1 {
		t.Fatalf("expected a single geocode, got %d", geo.calls)
	}
	if places.calls != 0 {
		t.Fatalf("search around a fallback center should be skipped, got %d calls", places.calls)
	}
	if len(report.Competitors.Items) != 6 || report.Competitors.Mode != model.ModeDemo {
		t.Fatalf("expected 6 demo competitors, got %s/%d", report.Competitors.Mode, len(report.Competitors.Items))
	}
	if len(report.Competitors.Notes) != 1 || report.Competitors.Notes[0] != "geocoding failed: no match" {
		t.Fatalf("expected the geocoding reason, got %v", report.Competitors.Notes)
	}
	if report.Center != report.Competitors.Center {
		t.Fatalf("competitors should use the overview center, got %+v vs %+v", report.Competitors.Center, report.Center)
	}
}
