package usecase

import (
	"math"
	"time"

	"review-pulse/internal/domain/location"
	"review-pulse/internal/repository"
)

// ComputeRollup rebuilds the location rollup from current annotation
// counts. Always a full recomputation; the negative percentage is
// derived as the remainder so the three always sum to exactly 100.
func ComputeRollup(src repository.RollupSource, now time.Time) location.OverallSentiment {
	total := src.Total()
	if total == 0 {
		return location.OverallSentiment{LastCalculated: &now}
	}

	positive := round1(float64(src.Positive) / float64(total) * 100)
	neutral := round1(float64(src.Neutral) / float64(total) * 100)
	negative := round1(100 - positive - neutral)

	return location.OverallSentiment{
		PositivePct:    positive,
		NeutralPct:     neutral,
		NegativePct:    negative,
		AverageRating:  round1(src.AverageRating),
		TotalReviews:   total,
		LastCalculated: &now,
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
