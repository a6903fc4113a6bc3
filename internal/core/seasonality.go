package core

import (
	"math"

	"demand_service/internal/domain/model"
)

// nationalSeasonality is the monthly overnight-stay profile (millions of nights)
// used as the reference demand curve. July is the peak month.
var nationalSeasonality = model.SeasonalityCurve{
	21.4, 23.1, 29.6, 37.8, 42.5, 53.9, 64.2, 62.7, 47.3, 34.6, 23.0, 27.5,
}

func Seasonality() model.SeasonalityCurve {
	return nationalSeasonality
}

// NormalizeTo100 rescales the curve relative to its own maximum.
// A curve whose maximum is not positive maps to all zeros.
func NormalizeTo100(curve model.SeasonalityCurve) model.NormalizedCurve {
	var out model.NormalizedCurve

	max := curve[0]
	for _, v := range curve[1:] {
		if v > max {
			max = v
		}
	}
	if max <= 0 {
		return out
	}

	for i, v := range curve {
		out[i] = math.Round(v * 100 / max)
	}
	return out
}
