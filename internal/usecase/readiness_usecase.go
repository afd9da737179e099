package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"review-pulse/internal/pkg/ids"
	"review-pulse/internal/repository"
)

const maxReadinessBatch = 50

type ReadinessState string

const (
	ReadinessNotFound          ReadinessState = "not_found"
	ReadinessNoReviews         ReadinessState = "no_reviews"
	ReadinessNotAnalyzed       ReadinessState = "not_analyzed"
	ReadinessPartiallyAnalyzed ReadinessState = "partially_analyzed"
	ReadinessReady             ReadinessState = "ready"
)

type ReadinessStats struct {
	TotalReviews           int     `json:"totalReviews"`
	AnalyzedReviews        int     `json:"analyzedReviews"`
	PendingAnalysis        int     `json:"pendingAnalysis"`
	AnalysisCompletionRate float64 `json:"analysisCompletionRate"`
}

// Readiness reports whether a location has enough analyzed data to
// answer questions about it. "Not ready" carries a reason and the
// action that would fix it, so callers surface it instead of silently
// dropping the location.
type Readiness struct {
	LocationID   string         `json:"locationId"`
	LocationName string         `json:"locationName,omitempty"`
	PlaceID      string         `json:"placeId,omitempty"`
	Status       ReadinessState `json:"status"`
	Ready        bool           `json:"ready"`
	Message      string         `json:"message"`
	Action       string         `json:"action,omitempty"`
	Stats        ReadinessStats `json:"stats"`
}

type ReadinessSummary struct {
	Total      int  `json:"total"`
	Ready      int  `json:"ready"`
	NotReady   int  `json:"notReady"`
	CanProceed bool `json:"canProceed"`
	AllReady   bool `json:"allReady"`
}

type ReadinessBatch struct {
	Summary   ReadinessSummary `json:"summary"`
	Locations []Readiness      `json:"locations"`
}

type ReadinessUsecase interface {
	CheckLocation(ctx context.Context, locationID, ownerID string) (Readiness, error)
	CheckLocations(ctx context.Context, locationIDs []string, ownerID string) (ReadinessBatch, error)
}

type ReadinessCheck struct {
	locations   repository.LocationRepository
	reviews     repository.ReviewRepository
	annotations repository.AnnotationRepository
	cache       Cache
	logger      *log.Logger
}

func NewReadinessUsecase(
	locations repository.LocationRepository,
	reviews repository.ReviewRepository,
	annotations repository.AnnotationRepository,
	cache Cache,
	logger *log.Logger,
) *ReadinessCheck {
	return &ReadinessCheck{
		locations:   locations,
		reviews:     reviews,
		annotations: annotations,
		cache:       cache,
		logger:      logger,
	}
}

func (u *ReadinessCheck) CheckLocation(ctx context.Context, locationID, ownerID string) (Readiness, error) {
	if ids.Normalize(locationID) == "" {
		return Readiness{}, ErrInvalidInput
	}
	locationID = ids.Normalize(locationID)

	// Owner-scoped key: two owners asking about the same id must never
	// see each other's payload.
	cacheKey := "readiness:" + locationID + ":" + ownerID
	if u.cache != nil {
		var cached Readiness
		if hit, err := u.cache.GetJSON(ctx, cacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	r := u.check(ctx, locationID, ownerID)
	if u.cache != nil && r.Status != ReadinessNotFound {
		_ = u.cache.SetJSON(ctx, cacheKey, r, 60*time.Second)
	}
	return r, nil
}

func (u *ReadinessCheck) CheckLocations(ctx context.Context, locationIDs []string, ownerID string) (ReadinessBatch, error) {
	if len(locationIDs) > maxReadinessBatch {
		return ReadinessBatch{}, ErrInvalidInput
	}
	valid := ids.NormalizeAll(locationIDs)
	if len(valid) == 0 {
		return ReadinessBatch{}, ErrInvalidInput
	}

	batch := ReadinessBatch{Locations: make([]Readiness, 0, len(valid))}
	for _, id := range valid {
		r, err := u.CheckLocation(ctx, id, ownerID)
		if err != nil {
			return ReadinessBatch{}, err
		}
		batch.Locations = append(batch.Locations, r)
		if r.Ready {
			batch.Summary.Ready++
		} else {
			batch.Summary.NotReady++
		}
	}
	batch.Summary.Total = len(valid)
	batch.Summary.CanProceed = batch.Summary.Ready > 0
	batch.Summary.AllReady = batch.Summary.Ready == len(valid)
	return batch, nil
}

func (u *ReadinessCheck) check(ctx context.Context, locationID, ownerID string) Readiness {
	loc, err := u.locations.FindByIDForOwner(ctx, locationID, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrLocationNotFound) {
			return Readiness{
				LocationID: locationID,
				Status:     ReadinessNotFound,
				Message:    "Location not found",
			}
		}
		return Readiness{
			LocationID: locationID,
			Status:     ReadinessNotFound,
			Message:    "Error checking location",
		}
	}

	total, err := u.reviews.CountByLocation(ctx, locationID, ownerID, repository.ReviewFilter{})
	if err != nil {
		total = loc.ScrapedReviewCount
	}
	analyzed, err := u.annotations.CountByLocation(ctx, locationID, ownerID)
	if err != nil {
		analyzed = loc.AnalyzedReviewCount
	}

	r := Readiness{
		LocationID:   locationID,
		LocationName: loc.Name,
		PlaceID:      loc.PlaceID,
		Stats: ReadinessStats{
			TotalReviews:    total,
			AnalyzedReviews: analyzed,
			PendingAnalysis: total - analyzed,
		},
	}
	if total > 0 {
		r.Stats.AnalysisCompletionRate = math.Round(float64(analyzed)/float64(total)*1000) / 10
	}

	switch {
	case total == 0:
		r.Status = ReadinessNoReviews
		r.Message = "No reviews scraped yet. Please scrape reviews first."
		r.Action = "scrape_reviews"
	case analyzed == 0:
		r.Status = ReadinessNotAnalyzed
		r.Message = fmt.Sprintf("%d reviews scraped but not analyzed yet.", total)
		r.Action = "analyze_reviews"
	case analyzed < total:
		r.Status = ReadinessPartiallyAnalyzed
		r.Ready = true
		r.Message = fmt.Sprintf("%d of %d reviews analyzed. Some reviews need analysis.", analyzed, total)
		r.Action = "analyze_remaining"
	default:
		r.Status = ReadinessReady
		r.Ready = true
		r.Message = fmt.Sprintf("Ready. %d reviews analyzed and available.", analyzed)
	}
	return r
}
