package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"demand_service/internal/domain/model"
)

var (
	ErrMissingLocation = errors.New("location or coordinates required")
	ErrInvalidURL      = errors.New("a valid http or https url is required")
	ErrForbiddenHost   = errors.New("url host is not publicly reachable")
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 200
	sideEffectTimeout  = 3 * time.Second
)

// Dependencies are the upstream collaborators of DemandService.
// Any of them may be nil; the affected operations then serve demo data.
type Dependencies struct {
	Places   PlaceSource
	Geocoder Geocoder
	Trends   TrendSource
	Weather  WeatherSource
	Holidays HolidaySource
	Offers   OfferSource
	Pages    PageFetcher
	Journal  EstimateJournal
	Events   EventPublisher
	Observer DegradationObserver
}

type Options struct {
	DefaultCountry string
	FallbackCenter model.Coordinates
	Now            func() time.Time
}

type DemandService struct {
	deps        Dependencies
	competitors *CompetitorAggregator
	country     string
	fallback    model.Coordinates
	now         func() time.Time
	logger      *slog.Logger
}

func NewDemandService(deps Dependencies, opts Options, logger *slog.Logger) *DemandService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DefaultCountry == "" {
		opts.DefaultCountry = "IT"
	}
	return &DemandService{
		deps:        deps,
		competitors: NewCompetitorAggregator(deps.Places, deps.Geocoder, opts.FallbackCenter, logger),
		country:     strings.ToUpper(opts.DefaultCountry),
		fallback:    opts.FallbackCenter,
		now:         opts.Now,
		logger:      logger.With("component", "service"),
	}
}

type ADRQuery struct {
	Location string
	Rating   *float64
	Center   *model.Coordinates
}

type ADRReport struct {
	Mode           model.Mode             `json:"mode"`
	Location       string                 `json:"location"`
	Context        model.LocationContext  `json:"context"`
	Rating         *float64               `json:"rating,omitempty"`
	RatingFactor   float64                `json:"rating_factor"`
	Baseline       float64                `json:"baseline"`
	BaselineSource string                 `json:"baseline_source"`
	ADR            model.ADRMonthlySeries `json:"adr"`
	Notes          []string               `json:"notes"`
}

type CompetitorReport struct {
	Mode     model.Mode         `json:"mode"`
	Center   model.Coordinates  `json:"center"`
	RadiusKm float64            `json:"radius_km"`
	Limit    int                `json:"limit"`
	Category string             `json:"category"`
	Items    []model.Competitor `json:"items"`
	Notes    []string           `json:"notes"`
}

type DemandQuery struct {
	Location string
	Center   *model.Coordinates
	Country  string
}

type DemandReport struct {
	Mode     model.Mode            `json:"mode"`
	Index    [12]int               `json:"index"`
	Weights  map[string]float64    `json:"weights"`
	Momentum float64               `json:"momentum"`
	Sources  map[string]model.Mode `json:"sources"`
	Notes    []string              `json:"notes"`
}

type PricingQuery struct {
	Location string
	Center   *model.Coordinates
	CheckIn  time.Time
}

type PricingReport struct {
	Mode     model.Mode          `json:"mode"`
	Samples  []model.PriceSample `json:"samples"`
	Median   float64             `json:"median"`
	Attempts int                 `json:"attempts"`
	Notes    []string            `json:"notes"`
}

type WeatherReport struct {
	Mode  model.Mode         `json:"mode"`
	Days  []model.WeatherDay `json:"days"`
	Notes []string           `json:"notes"`
}

type HolidayReport struct {
	Mode     model.Mode      `json:"mode"`
	Country  string          `json:"country"`
	Year     int             `json:"year"`
	Holidays []model.Holiday `json:"holidays"`
	Notes    []string        `json:"notes"`
}

type ReconReport struct {
	Mode          model.Mode               `json:"mode"`
	URL           string                   `json:"url"`
	Engines       []model.BookingEngineHit `json:"engines"`
	DirectBooking bool                     `json:"direct_booking"`
	Notes         []string                 `json:"notes"`
}

type OverviewQuery struct {
	Location string
	Rating   *float64
	Center   *model.Coordinates
	Category string
	Country  string
}

type OverviewReport struct {
	Mode        model.Mode        `json:"mode"`
	Location    string            `json:"location"`
	Center      model.Coordinates `json:"center"`
	ADR         ADRReport         `json:"adr"`
	Competitors CompetitorReport  `json:"competitors"`
	Pricing     PricingReport     `json:"pricing"`
	Demand      DemandReport      `json:"demand"`
	Weather     WeatherReport     `json:"weather"`
	Notes       []string          `json:"notes"`
}

func hasInput(location string, center *model.Coordinates) bool {
	return strings.TrimSpace(location) != "" || (center != nil && center.Valid())
}

// EstimateADR anchors the seasonal curve to live offer prices when they are available.
func (s *DemandService) EstimateADR(ctx context.Context, q ADRQuery) (ADRReport, error) {
	if !hasInput(q.Location, q.Center) {
		return ADRReport{}, ErrMissingLocation
	}

	center, reason := s.resolveCenter(ctx, q.Location, q.Center)
	pricing := model.Degraded([]model.PriceSample{}, reason)
	if reason == "" {
		pricing = s.offers(ctx, center, s.defaultCheckIn())
	}

	report := s.buildADR(q.Location, q.Rating, model.Degraded([]model.Competitor{}, "competitors not consulted"), pricing)
	if !pricing.Live() {
		report.Notes = append(pricing.Notes(), report.Notes...)
	}

	s.record(ctx, "adr", q.Location, center, report.Mode, report)
	return report, nil
}

func (s *DemandService) buildADR(location string, rating *float64, competitors model.Outcome[[]model.Competitor], pricing model.Outcome[[]model.PriceSample]) ADRReport {
	level, source := Baseline(competitors, pricing)

	report := ADRReport{
		Mode:           model.ModeLive,
		Location:       location,
		Context:        Classify(location),
		Rating:         rating,
		RatingFactor:   roundTo(RatingFactor(rating), 4),
		Baseline:       level,
		BaselineSource: source,
		ADR:            EstimateADRWithBaseline(location, rating, level),
		Notes:          []string{},
	}
	if source == "default" {
		report.Mode = model.ModeDemo
		report.Notes = append(report.Notes, fmt.Sprintf("baseline %.0f is the national default", level))
		s.degraded("adr")
	}
	return report
}

func (s *DemandService) Competitors(ctx context.Context, q CompetitorQuery) (CompetitorReport, error) {
	if !hasInput(q.Location, q.Center) {
		return CompetitorReport{}, ErrMissingLocation
	}
	return s.competitorReport(s.competitors.Find(ctx, q)), nil
}

func (s *DemandService) competitorReport(res CompetitorResult) CompetitorReport {
	if !res.Competitors.Live() {
		s.degraded("competitors")
	}
	return CompetitorReport{
		Mode:     res.Competitors.Mode,
		Center:   res.Center,
		RadiusKm: res.RadiusKm,
		Limit:    res.Limit,
		Category: res.Category,
		Items:    res.Competitors.Value,
		Notes:    res.Competitors.Notes(),
	}
}

func (s *DemandService) Demand(ctx context.Context, q DemandQuery) (DemandReport, error) {
	if !hasInput(q.Location, q.Center) {
		return DemandReport{}, ErrMissingLocation
	}
	report := s.demand(ctx, q)

	var center model.Coordinates
	if q.Center != nil {
		center = *q.Center
	}
	s.record(ctx, "demand", q.Location, center, report.Mode, report)
	return report, nil
}

func (s *DemandService) demand(ctx context.Context, q DemandQuery) DemandReport {
	country := s.countryOr(q.Country)
	now := s.now()

	trends := s.trendPoints(ctx, q.Location, country)
	holidays := s.holidays(ctx, country, now.Year())

	seasonality := NormalizeTo100(Seasonality())
	signals := DemandSignals{Seasonality: &seasonality}
	if curve, ok := TrendCurve(trends.Value); ok {
		signals.Trends = &curve
	}
	if curve, ok := HolidayCurve(holidays.Value); ok {
		signals.Holidays = &curve
	}
	blend := BlendDemand(signals)

	report := DemandReport{
		Mode:     model.ModeLive,
		Index:    blend.Index,
		Weights:  blend.Weights,
		Momentum: Momentum(trends.Value),
		Sources: map[string]model.Mode{
			"seasonality": model.ModeLive,
			"trends":      trends.Mode,
			"holidays":    holidays.Mode,
		},
		Notes: []string{},
	}
	if !trends.Live() {
		report.Notes = append(report.Notes, trends.Reason)
	}
	if !holidays.Live() {
		report.Notes = append(report.Notes, holidays.Reason)
	}
	if len(report.Notes) > 0 {
		report.Mode = model.ModeDemo
		s.degraded("demand")
	}
	return report
}

func (s *DemandService) trendPoints(ctx context.Context, location, country string) model.Outcome[[]model.TrendPoint] {
	fallback := demoTrends(s.now())
	if s.deps.Trends == nil {
		return model.Degraded(fallback, "no trends source configured")
	}
	if strings.TrimSpace(location) == "" {
		return model.Degraded(fallback, "trends need a location name")
	}
	points, err := s.deps.Trends.InterestOverTime(ctx, location, country)
	if err != nil {
		s.logger.Warn("trends lookup failed", "location", location, "error", err)
		return model.Degraded(fallback, fmt.Sprintf("trends lookup failed: %v", err))
	}
	if len(points) == 0 {
		return model.Degraded(fallback, "trends returned no data")
	}
	return model.Ok(points)
}

func (s *DemandService) Pricing(ctx context.Context, q PricingQuery) (PricingReport, error) {
	if !hasInput(q.Location, q.Center) {
		return PricingReport{}, ErrMissingLocation
	}
	center, reason := s.resolveCenter(ctx, q.Location, q.Center)
	if reason != "" {
		return s.pricingReport(model.Degraded([]model.PriceSample{}, reason), 0), nil
	}

	checkIn := q.CheckIn
	if checkIn.IsZero() {
		checkIn = s.defaultCheckIn()
	}
	samples, attempts := s.offersWithAttempts(ctx, center, checkIn)
	return s.pricingReport(samples, attempts), nil
}

func (s *DemandService) pricingReport(samples model.Outcome[[]model.PriceSample], attempts int) PricingReport {
	prices := make([]float64, 0, len(samples.Value))
	for _, p := range samples.Value {
		prices = append(prices, p.Nightly)
	}
	if !samples.Live() {
		s.degraded("pricing")
	}
	return PricingReport{
		Mode:     samples.Mode,
		Samples:  samples.Value,
		Median:   roundTo(median(prices), 2),
		Attempts: attempts,
		Notes:    samples.Notes(),
	}
}

func (s *DemandService) offers(ctx context.Context, center model.Coordinates, checkIn time.Time) model.Outcome[[]model.PriceSample] {
	out, _ := s.offersWithAttempts(ctx, center, checkIn)
	return out
}

func (s *DemandService) offersWithAttempts(ctx context.Context, center model.Coordinates, checkIn time.Time) (model.Outcome[[]model.PriceSample], int) {
	empty := []model.PriceSample{}
	if s.deps.Offers == nil {
		return model.Degraded(empty, "no offer source configured"), 0
	}
	samples, attempts, err := s.deps.Offers.NightlyPrices(ctx, center, checkIn)
	if err != nil {
		s.logger.Warn("offer lookup failed", "lat", center.Lat, "lng", center.Lng, "error", err)
		return model.Degraded(empty, fmt.Sprintf("offer lookup failed: %v", err)), attempts
	}
	if len(samples) == 0 {
		return model.Degraded(empty, "no offers found near location"), attempts
	}
	return model.Ok(samples), attempts
}

func (s *DemandService) Weather(ctx context.Context, at model.Coordinates) WeatherReport {
	days := s.weather(ctx, at)
	if !days.Live() {
		s.degraded("weather")
	}
	return WeatherReport{Mode: days.Mode, Days: days.Value, Notes: days.Notes()}
}

func (s *DemandService) weather(ctx context.Context, at model.Coordinates) model.Outcome[[]model.WeatherDay] {
	fallback := demoWeather(s.now())
	if s.deps.Weather == nil {
		return model.Degraded(fallback, "no weather source configured")
	}
	days, err := s.deps.Weather.DailyForecast(ctx, at)
	if err != nil {
		s.logger.Warn("weather lookup failed", "lat", at.Lat, "lng", at.Lng, "error", err)
		return model.Degraded(fallback, fmt.Sprintf("weather lookup failed: %v", err))
	}
	if len(days) == 0 {
		return model.Degraded(fallback, "weather returned no days")
	}
	return model.Ok(days)
}

func (s *DemandService) Holidays(ctx context.Context, country string, year int) HolidayReport {
	country = s.countryOr(country)
	if year <= 0 {
		year = s.now().Year()
	}
	list := s.holidays(ctx, country, year)
	if !list.Live() {
		s.degraded("holidays")
	}
	return HolidayReport{Mode: list.Mode, Country: country, Year: year, Holidays: list.Value, Notes: list.Notes()}
}

func (s *DemandService) holidays(ctx context.Context, country string, year int) model.Outcome[[]model.Holiday] {
	fallback := demoHolidays(country, year)
	if s.deps.Holidays == nil {
		return model.Degraded(fallback, "no holiday source configured")
	}
	list, err := s.deps.Holidays.PublicHolidays(ctx, year, country)
	if err != nil {
		s.logger.Warn("holiday lookup failed", "country", country, "year", year, "error", err)
		return model.Degraded(fallback, fmt.Sprintf("holiday lookup failed: %v", err))
	}
	if len(list) == 0 {
		return model.Degraded(fallback, "no holidays returned")
	}
	return model.Ok(list)
}

// Recon fetches a competitor page and reports which booking engines it embeds.
func (s *DemandService) Recon(ctx context.Context, rawURL string) (ReconReport, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ReconReport{}, ErrInvalidURL
	}
	if !publicHost(u.Hostname()) {
		return ReconReport{}, ErrForbiddenHost
	}

	report := ReconReport{
		Mode:    model.ModeLive,
		URL:     u.String(),
		Engines: []model.BookingEngineHit{},
		Notes:   []string{},
	}
	if s.deps.Pages == nil {
		report.Mode = model.ModeDemo
		report.Notes = append(report.Notes, "no page fetcher configured")
		s.degraded("recon")
		return report, nil
	}

	html, err := s.deps.Pages.Fetch(ctx, report.URL)
	if err != nil {
		s.logger.Warn("recon fetch failed", "url", report.URL, "error", err)
		report.Mode = model.ModeDemo
		report.Notes = append(report.Notes, fmt.Sprintf("page fetch failed: %v", err))
		s.degraded("recon")
		return report, nil
	}

	report.Engines = DetectBookingEngines(html)
	report.DirectBooking = HasDirectBooking(html)
	return report, nil
}

// Overview runs the independent lookups concurrently, then anchors the ADR curve
// on whatever empirical baseline they produced.
func (s *DemandService) Overview(ctx context.Context, q OverviewQuery) (OverviewReport, error) {
	if !hasInput(q.Location, q.Center) {
		return OverviewReport{}, ErrMissingLocation
	}

	center, reason := s.resolveCenter(ctx, q.Location, q.Center)
	report := OverviewReport{
		Mode:     model.ModeLive,
		Location: q.Location,
		Center:   center,
		Notes:    []string{},
	}
	if reason != "" {
		report.Notes = append(report.Notes, reason)
	}

	var (
		competitors CompetitorResult
		pricing     model.Outcome[[]model.PriceSample]
		attempts    int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cq := CompetitorQuery{Location: q.Location, Center: &center, Category: q.Category, WithPrices: true, Unresolved: reason}
		competitors = s.competitors.Find(gctx, cq)
		return nil
	})
	g.Go(func() error {
		if reason != "" {
			pricing = model.Degraded([]model.PriceSample{}, reason)
			return nil
		}
		pricing, attempts = s.offersWithAttempts(gctx, center, s.defaultCheckIn())
		return nil
	})
	g.Go(func() error {
		report.Demand = s.demand(gctx, DemandQuery{Location: q.Location, Center: &center, Country: q.Country})
		return nil
	})
	g.Go(func() error {
		report.Weather = s.Weather(gctx, center)
		return nil
	})
	if err := g.Wait(); err != nil {
		return OverviewReport{}, fmt.Errorf("overview: %w", err)
	}

	report.Competitors = s.competitorReport(competitors)
	report.Pricing = s.pricingReport(pricing, attempts)
	report.ADR = s.buildADR(q.Location, q.Rating, competitors.Competitors, pricing)

	for _, m := range []model.Mode{report.ADR.Mode, report.Competitors.Mode, report.Pricing.Mode, report.Demand.Mode, report.Weather.Mode} {
		if !m.IsLive() {
			report.Mode = model.ModeDemo
			break
		}
	}

	s.record(ctx, "overview", q.Location, center, report.Mode, report)
	return report, nil
}

func (s *DemandService) RecentEstimates(ctx context.Context, limit int) ([]model.EstimateRecord, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	if s.deps.Journal == nil {
		return []model.EstimateRecord{}, nil
	}
	records, err := s.deps.Journal.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return records, nil
}

// resolveCenter prefers explicit coordinates, then geocodes the location text.
// A non-empty reason means the fallback center was returned.
func (s *DemandService) resolveCenter(ctx context.Context, location string, center *model.Coordinates) (model.Coordinates, string) {
	if center != nil && center.Valid() {
		return *center, ""
	}
	if s.deps.Geocoder == nil {
		return s.fallback, "no geocoder configured"
	}
	c, err := s.deps.Geocoder.Geocode(ctx, location)
	if err != nil {
		s.logger.Warn("geocoding failed", "location", location, "error", err)
		return s.fallback, fmt.Sprintf("geocoding failed: %v", err)
	}
	return c, ""
}

func (s *DemandService) defaultCheckIn() time.Time {
	return s.now().AddDate(0, 0, 1)
}

func (s *DemandService) countryOr(country string) string {
	country = strings.ToUpper(strings.TrimSpace(country))
	if len(country) != 2 || !isUpperASCII(country[0]) || !isUpperASCII(country[1]) {
		return s.country
	}
	return country
}

func isUpperASCII(b byte) bool {
	return b >= 'A' && b <= 'Z'
}

func (s *DemandService) degraded(component string) {
	if s.deps.Observer != nil {
		s.deps.Observer.Degraded(component)
	}
}

// record journals and publishes a computed report. Failures are logged only.
func (s *DemandService) record(ctx context.Context, kind, location string, at model.Coordinates, mode model.Mode, report any) {
	if s.deps.Journal == nil && s.deps.Events == nil {
		return
	}

	payload, err := json.Marshal(report)
	if err != nil {
		s.logger.Error("encode estimate", "kind", kind, "error", err)
		return
	}
	rec := model.EstimateRecord{
		ID:         uuid.NewString(),
		Kind:       kind,
		Location:   location,
		Lat:        roundTo(at.Lat, 6),
		Lng:        roundTo(at.Lng, 6),
		Mode:       mode,
		Payload:    string(payload),
		RecordedAt: s.now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if s.deps.Journal != nil {
		if err := s.deps.Journal.Record(ctx, rec); err != nil {
			s.logger.Warn("journal write failed", "id", rec.ID, "kind", kind, "error", err)
		}
	}
	if s.deps.Events != nil {
		event, err := json.Marshal(rec)
		if err != nil {
			s.logger.Error("encode estimate event", "id", rec.ID, "error", err)
			return
		}
		if err := s.deps.Events.Publish(ctx, rec.ID, event); err != nil {
			s.logger.Warn("estimate event publish failed", "id", rec.ID, "kind", kind, "error", err)
		}
	}
}
