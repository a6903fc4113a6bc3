package core

import (
	"math"

	"demand_service/internal/domain/model"
)

// BaselineADR is the nightly anchor used when no empirical baseline is available.
const BaselineADR = 110.0

// EstimateADR produces twelve monthly nightly-rate estimates anchored to BaselineADR.
func EstimateADR(location string, rating *float64) model.ADRMonthlySeries {
	return EstimateADRWithBaseline(location, rating, BaselineADR)
}

// EstimateADRWithBaseline is EstimateADR with an explicit anchor level.
// Non-positive levels fall back to BaselineADR.
func EstimateADRWithBaseline(location string, rating *float64, level float64) model.ADRMonthlySeries {
	if level <= 0 || math.IsNaN(level) || math.IsInf(level, 0) {
		level = BaselineADR
	}

	base := NormalizeTo100(Seasonality())
	k := RatingFactor(rating) * contextMultiplier(Classify(location))

	var out model.ADRMonthlySeries
	for i := range base {
		out[i] = int(math.Round(level * (base[i] / 100) * k))
	}
	return out
}
