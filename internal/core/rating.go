package core

import "math"

const (
	minRatingFactor = 0.9
	ratingSpan      = 0.35
)

// RatingFactor maps a 0-10 reputation score to a price multiplier in [0.90, 1.25].
// A missing or non-finite rating is neutral.
func RatingFactor(rating *float64) float64 {
	if rating == nil || math.IsNaN(*rating) || math.IsInf(*rating, 0) {
		return 1
	}
	return minRatingFactor + clamp01((*rating-7)/2.5)*ratingSpan
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
