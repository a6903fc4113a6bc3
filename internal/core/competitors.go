package core

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"demand_service/internal/domain/model"
)

const (
	MinRadiusKm     = 1.0
	MaxRadiusKm     = 60.0
	DefaultRadiusKm = 10.0
	MinLimit        = 3
	MaxLimit        = 20
	DefaultLimit    = 10
	DefaultCategory = "hotel"

	demoCompetitorCount = 6
	demoPriceNote       = "demo estimate anchored on rating"
)

type CompetitorQuery struct {
	Location   string
	Center     *model.Coordinates
	Category   string
	RadiusKm   float64
	Limit      int
	WithPrices bool
	// Unresolved carries the reason Center is a fallback; the search is then skipped.
	Unresolved string
}

type CompetitorResult struct {
	Center      model.Coordinates
	RadiusKm    float64
	Limit       int
	Category    string
	Competitors model.Outcome[[]model.Competitor]
}

// CompetitorAggregator finds nearby comparable properties and never fails:
// any upstream problem degrades to a labelled demo set.
type CompetitorAggregator struct {
	places         PlaceSource
	geocoder       Geocoder
	fallbackCenter model.Coordinates
	logger         *slog.Logger
}

func NewCompetitorAggregator(places PlaceSource, geocoder Geocoder, fallbackCenter model.Coordinates, logger *slog.Logger) *CompetitorAggregator {
	return &CompetitorAggregator{
		places:         places,
		geocoder:       geocoder,
		fallbackCenter: fallbackCenter,
		logger:         logger.With("component", "competitors"),
	}
}

func ClampRadius(r float64) float64 {
	if r <= 0 || math.IsNaN(r) {
		return DefaultRadiusKm
	}
	return math.Min(MaxRadiusKm, math.Max(MinRadiusKm, r))
}

func ClampLimit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	if n < MinLimit {
		return MinLimit
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

func (a *CompetitorAggregator) Find(ctx context.Context, q CompetitorQuery) CompetitorResult {
	res := CompetitorResult{
		RadiusKm: ClampRadius(q.RadiusKm),
		Limit:    ClampLimit(q.Limit),
		Category: strings.TrimSpace(strings.ToLower(q.Category)),
	}
	if res.Category == "" {
		res.Category = DefaultCategory
	}

	center, reason := a.resolveCenter(ctx, q)
	res.Center = center
	if reason != "" {
		res.Competitors = a.demo(res, q.WithPrices, reason)
		return res
	}

	if a.places == nil {
		res.Competitors = a.demo(res, q.WithPrices, "no competitor source configured")
		return res
	}

	candidates, err := a.places.SearchPlaces(ctx, center, res.Category, res.RadiusKm)
	if err != nil {
		a.logger.Warn("competitor search failed", "category", res.Category, "error", err)
		res.Competitors = a.demo(res, q.WithPrices, fmt.Sprintf("competitor search failed: %v", err))
		return res
	}

	items := rankCompetitors(center, candidates, res.RadiusKm, res.Limit, q.WithPrices)
	if len(items) == 0 {
		res.Competitors = a.demo(res, q.WithPrices, fmt.Sprintf("no %s found within %.0f km", res.Category, res.RadiusKm))
		return res
	}

	res.Competitors = model.Ok(items)
	return res
}

func (a *CompetitorAggregator) resolveCenter(ctx context.Context, q CompetitorQuery) (model.Coordinates, string) {
	if q.Unresolved != "" {
		if q.Center != nil && q.Center.Valid() {
			return *q.Center, q.Unresolved
		}
		return a.fallbackCenter, q.Unresolved
	}
	if q.Center != nil && q.Center.Valid() {
		return *q.Center, ""
	}
	location := strings.TrimSpace(q.Location)
	if location == "" {
		return a.fallbackCenter, "no location given"
	}
	if a.geocoder == nil {
		return a.fallbackCenter, "no geocoder configured"
	}
	center, err := a.geocoder.Geocode(ctx, location)
	if err != nil {
		a.logger.Warn("geocoding failed", "location", location, "error", err)
		return a.fallbackCenter, fmt.Sprintf("geocoding failed: %v", err)
	}
	return center, ""
}

// rankCompetitors computes distances, drops candidates outside the radius,
// sorts nearest first and truncates to limit.
func rankCompetitors(center model.Coordinates, candidates []model.Candidate, radiusKm float64, limit int, withPrices bool) []model.Competitor {
	items := make([]model.Competitor, 0, len(candidates))
	for _, c := range candidates {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		dist := roundTo(DistanceKm(center, model.Coordinates{Lat: c.Lat, Lng: c.Lng}), 2)
		if dist > radiusKm {
			continue
		}
		item := model.Competitor{
			Name:       c.Name,
			Lat:        c.Lat,
			Lng:        c.Lng,
			Address:    c.Address,
			Rating:     c.Rating,
			Reviews:    c.Reviews,
			Website:    c.Website,
			Source:     c.Source,
			DistanceKm: dist,
		}
		if withPrices {
			band := PriceBandFor(c.Rating)
			item.PricesDemo = &band
		}
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].DistanceKm < items[j].DistanceKm
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

// PriceBandFor derives a low/mid/high nightly band from a 0-5 rating.
func PriceBandFor(rating *float64) model.PriceBand {
	anchor := 110
	if rating != nil {
		switch {
		case *rating >= 4.6:
			anchor = 150
		case *rating >= 4.3:
			anchor = 130
		}
	}
	low := anchor - 25
	if low < 70 {
		low = 70
	}
	return model.PriceBand{Low: low, Mid: anchor, High: anchor + 40, Note: demoPriceNote}
}

var (
	demoRatings   = [demoCompetitorCount]float64{4.7, 4.5, 4.4, 4.6, 4.2, 4.3}
	demoReviews   = [demoCompetitorCount]int{412, 268, 190, 335, 97, 151}
	demoFractions = [demoCompetitorCount]float64{0.12, 0.25, 0.38, 0.52, 0.66, 0.8}
)

// demo synthesizes a deterministic set of competitors spread around the center.
func (a *CompetitorAggregator) demo(res CompetitorResult, withPrices bool, reason string) model.Outcome[[]model.Competitor] {
	first, size := utf8.DecodeRuneInString(res.Category)
	label := string(unicode.ToUpper(first)) + res.Category[size:]

	items := make([]model.Competitor, 0, demoCompetitorCount)
	for i := 0; i < demoCompetitorCount; i++ {
		pos := destination(res.Center, float64(i)*60, res.RadiusKm*demoFractions[i])
		rating := demoRatings[i]
		reviews := demoReviews[i]
		item := model.Competitor{
			Name:       fmt.Sprintf("%s demo %d", label, i+1),
			Lat:        roundTo(pos.Lat, 6),
			Lng:        roundTo(pos.Lng, 6),
			Address:    "estimated location",
			Rating:     &rating,
			Reviews:    &reviews,
			Source:     "demo",
			DistanceKm: roundTo(DistanceKm(res.Center, pos), 2),
		}
		if withPrices {
			band := PriceBandFor(&rating)
			item.PricesDemo = &band
		}
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].DistanceKm < items[j].DistanceKm
	})
	if len(items) > res.Limit {
		items = items[:res.Limit]
	}

	a.logger.Info("serving demo competitors", "reason", reason, "count", len(items))
	return model.Degraded(items, reason)
}

// Baseline derives the nightly anchor for ADR estimation: live offer prices first,
// then the rating bands of live competitors, else BaselineADR.
func Baseline(competitors model.Outcome[[]model.Competitor], samples model.Outcome[[]model.PriceSample]) (float64, string) {
	if samples.Live() && len(samples.Value) > 0 {
		prices := make([]float64, 0, len(samples.Value))
		for _, s := range samples.Value {
			if s.Nightly > 0 {
				prices = append(prices, s.Nightly)
			}
		}
		if len(prices) > 0 {
			return math.Round(median(prices)), "offers"
		}
	}

	if competitors.Live() && len(competitors.Value) > 0 {
		mids := make([]float64, 0, len(competitors.Value))
		for _, c := range competitors.Value {
			mids = append(mids, float64(PriceBandFor(c.Rating).Mid))
		}
		return math.Round(median(mids)), "competitors"
	}

	return BaselineADR, "default"
}
