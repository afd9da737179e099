package usecase

import (
	"context"
	"errors"
	"log"
	"time"

	"review-pulse/internal/domain/location"
	"review-pulse/internal/pkg/ids"
	"review-pulse/internal/repository"
)

const rollupCacheTTL = 60 * time.Second

// RollupResult is the read model for a location's sentiment rollup.
type RollupResult struct {
	LocationID      string                    `json:"locationId"`
	LocationName    string                    `json:"locationName"`
	Sentiment       location.OverallSentiment `json:"sentiment"`
	ScrapedReviews  int                       `json:"scrapedReviews"`
	AnalyzedReviews int                       `json:"analyzedReviews"`
}

type RollupUsecase interface {
	Rollup(ctx context.Context, locationID, ownerID string) (RollupResult, error)
}

type RollupQuery struct {
	locations repository.LocationRepository
	cache     Cache
	logger    *log.Logger
}

func NewRollupUsecase(locations repository.LocationRepository, cache Cache, logger *log.Logger) *RollupQuery {
	return &RollupQuery{locations: locations, cache: cache, logger: logger}
}

// Rollup returns the stored aggregate; it never recomputes. The
// aggregate is refreshed as a side effect of analysis runs.
func (u *RollupQuery) Rollup(ctx context.Context, locationID, ownerID string) (RollupResult, error) {
	if !ids.IsValid(locationID) {
		return RollupResult{}, ErrInvalidInput
	}

	key := "rollup:" + locationID + ":" + ownerID
	if u.cache != nil {
		var cached RollupResult
		if hit, err := u.cache.GetJSON(ctx, key, &cached); err == nil && hit {
			return cached, nil
		}
	}

	loc, err := u.locations.FindByIDForOwner(ctx, locationID, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrLocationNotFound) {
			return RollupResult{}, ErrNotFound
		}
		return RollupResult{}, ErrInternal
	}

	out := RollupResult{
		LocationID:      loc.ID,
		LocationName:    loc.Name,
		Sentiment:       loc.OverallSentiment,
		ScrapedReviews:  loc.ScrapedReviewCount,
		AnalyzedReviews: loc.AnalyzedReviewCount,
	}
	if u.cache != nil {
		_ = u.cache.SetJSON(ctx, key, out, rollupCacheTTL)
	}
	return out, nil
}
