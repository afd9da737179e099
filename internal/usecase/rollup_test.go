package usecase

import (
	"math"
	"testing"
	"time"

	"review-pulse/internal/repository"
)

func TestComputeRollupPercentagesSumTo100(t *testing.T) {
	cases := []repository.RollupSource{
		{Positive: 1, Neutral: 1, Negative: 1},
		{Positive: 2, Neutral: 1, Negative: 0},
		{Positive: 33, Neutral: 33, Negative: 34},
		{Positive: 7, Neutral: 11, Negative: 13},
		{Positive: 999, Neutral: 1, Negative: 0},
		{Positive: 1, Neutral: 0, Negative: 0},
	}

	now := time.Now().UTC()
	for _, src := range cases {
		rollup := ComputeRollup(src, now)
		sum := rollup.PositivePct + rollup.NeutralPct + rollup.NegativePct
		if math.Abs(sum-100) > 0.1 {
			t.Errorf("src=%+v: percentages sum to %v, want 100 +/- 0.1", src, sum)
		}
		if rollup.TotalReviews != src.Total() {
			t.Errorf("src=%+v: totalReviews=%d, want %d", src, rollup.TotalReviews, src.Total())
		}
	}
}

func TestComputeRollupValues(t *testing.T) {
	now := time.Now().UTC()
	rollup := ComputeRollup(repository.RollupSource{Positive: 6, Neutral: 3, Negative: 1, AverageRating: 4.23}, now)

	if rollup.PositivePct != 60 || rollup.NeutralPct != 30 || rollup.NegativePct != 10 {
		t.Fatalf("pcts = %v/%v/%v, want 60/30/10", rollup.PositivePct, rollup.NeutralPct, rollup.NegativePct)
	}
	if rollup.AverageRating != 4.2 {
		t.Fatalf("averageRating = %v, want 4.2", rollup.AverageRating)
	}
	if rollup.TotalReviews != 10 {
		t.Fatalf("totalReviews = %d, want 10", rollup.TotalReviews)
	}
	if rollup.LastCalculated == nil || !rollup.LastCalculated.Equal(now) {
		t.Fatalf("lastCalculated = %v, want %v", rollup.LastCalculated, now)
	}
}

func TestComputeRollupEmpty(t *testing.T) {
	now := time.Now().UTC()
	rollup := ComputeRollup(repository.RollupSource{}, now)
	if rollup.PositivePct != 0 || rollup.NeutralPct != 0 || rollup.NegativePct != 0 || rollup.TotalReviews != 0 {
		t.Fatalf("empty source produced %+v", rollup)
	}
	if rollup.LastCalculated == nil {
		t.Fatal("lastCalculated not set")
	}
}

func TestComputeRollupIsIdempotent(t *testing.T) {
	now := time.Now().UTC()
	src := repository.RollupSource{Positive: 17, Neutral: 5, Negative: 3, AverageRating: 3.8}

	first := ComputeRollup(src, now)
	second := ComputeRollup(src, now)
	if first.PositivePct != second.PositivePct ||
		first.NeutralPct != second.NeutralPct ||
		first.NegativePct != second.NegativePct ||
		first.AverageRating != second.AverageRating ||
		first.TotalReviews != second.TotalReviews {
		t.Fatalf("recomputation diverged: %+v vs %+v", first, second)
	}
}
