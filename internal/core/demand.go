package core

import (
	"math"
	"sort"
	"time"

	"demand_service/internal/domain/model"
)

const (
	weightSeasonality = 0.50
	weightTrends      = 0.35
	weightHolidays    = 0.15

	momentumWindow = 8
)

// DemandSignals are the monthly curves fed into BlendDemand. Nil curves are treated as missing.
type DemandSignals struct {
	Seasonality *model.NormalizedCurve
	Trends      *model.NormalizedCurve
	Holidays    *model.NormalizedCurve
}

type DemandIndex struct {
	Index   [12]int            `json:"index"`
	Weights map[string]float64 `json:"weights"`
}

// BlendDemand combines the available monthly signals into a single 0..100 index.
// Weights of missing signals are redistributed over the remaining ones.
func BlendDemand(s DemandSignals) DemandIndex {
	type signal struct {
		name   string
		weight float64
		curve  *model.NormalizedCurve
	}
	signals := []signal{
		{"seasonality", weightSeasonality, s.Seasonality},
		{"trends", weightTrends, s.Trends},
		{"holidays", weightHolidays, s.Holidays},
	}

	total := 0.0
	for _, sig := range signals {
		if sig.curve != nil {
			total += sig.weight
		}
	}

	out := DemandIndex{Weights: make(map[string]float64, len(signals))}
	if total == 0 {
		return out
	}

	var blended [12]float64
	for _, sig := range signals {
		if sig.curve == nil {
			continue
		}
		w := sig.weight / total
		out.Weights[sig.name] = roundTo(w, 4)
		for i, v := range sig.curve {
			blended[i] += v * w
		}
	}

	for i, v := range blended {
		out.Index[i] = int(math.Round(math.Min(100, math.Max(0, v))))
	}
	return out
}

// TrendCurve averages trend points per calendar month and rescales to 0..100.
// It reports false when no month has data.
func TrendCurve(points []model.TrendPoint) (model.NormalizedCurve, bool) {
	var sums model.SeasonalityCurve
	var counts [12]int
	for _, p := range points {
		if p.Time.IsZero() || p.Value < 0 {
			continue
		}
		m := int(p.Time.Month()) - 1
		sums[m] += p.Value
		counts[m]++
	}

	seen := false
	var means model.SeasonalityCurve
	for i := range sums {
		if counts[i] > 0 {
			means[i] = sums[i] / float64(counts[i])
			seen = true
		}
	}
	if !seen {
		return model.NormalizedCurve{}, false
	}
	return NormalizeTo100(means), true
}

// HolidayCurve counts holidays per month and rescales to 0..100.
func HolidayCurve(holidays []model.Holiday) (model.NormalizedCurve, bool) {
	var counts model.SeasonalityCurve
	seen := false
	for _, h := range holidays {
		d, err := time.Parse("2006-01-02", h.Date)
		if err != nil {
			continue
		}
		counts[d.Month()-1]++
		seen = true
	}
	if !seen {
		return model.NormalizedCurve{}, false
	}
	return NormalizeTo100(counts), true
}

// Momentum is the least-squares slope of the most recent trend points,
// in index points per sample. Fewer than two points give 0.
func Momentum(points []model.TrendPoint) float64 {
	sorted := append([]model.TrendPoint(nil), points...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})
	if len(sorted) > momentumWindow {
		sorted = sorted[len(sorted)-momentumWindow:]
	}

	n := float64(len(sorted))
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, p := range sorted {
		x := float64(i)
		sumX += x
		sumY += p.Value
		sumXY += x * p.Value
		sumXX += x * x
	}
	den := n*sumXX - sumX*sumX
	if den == 0 {
		return 0
	}
	return roundTo((n*sumXY-sumX*sumY)/den, 3)
}
