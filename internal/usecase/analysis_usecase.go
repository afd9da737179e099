package usecase

import (
	"context"
	"errors"
	"log"
	"time"

	"review-pulse/internal/domain/review"
	"review-pulse/internal/repository"
	"review-pulse/internal/sentiment"
)

// AnalysisReport is the batch summary returned by analyze and
// reanalyze.
type AnalysisReport struct {
	TotalReviews    int `json:"totalReviews"`
	AlreadyAnalyzed int `json:"alreadyAnalyzed"`
	NewlyAnalyzed   int `json:"newlyAnalyzed"`
	FailedAnalysis  int `json:"failedAnalysis"`
}

type AnalysisUsecase interface {
	Analyze(ctx context.Context, locationID, ownerID string) (AnalysisReport, error)
	Reanalyze(ctx context.Context, locationID, ownerID string) (AnalysisReport, error)
}

type batchProcessor interface {
	Process(ctx context.Context, reviews []review.Review) sentiment.Outcome
}

type cacheInvalidator interface {
	InvalidateLocation(ctx context.Context, locationID string) error
}

type Analysis struct {
	locations   repository.LocationRepository
	reviews     repository.ReviewRepository
	annotations repository.AnnotationRepository
	processor   batchProcessor
	cache       cacheInvalidator
	logger      *log.Logger
}

func NewAnalysisUsecase(
	locations repository.LocationRepository,
	reviews repository.ReviewRepository,
	annotations repository.AnnotationRepository,
	processor batchProcessor,
	cache cacheInvalidator,
	logger *log.Logger,
) *Analysis {
	return &Analysis{
		locations:   locations,
		reviews:     reviews,
		annotations: annotations,
		processor:   processor,
		cache:       cache,
		logger:      logger,
	}
}

// Analyze classifies every review for the location that has no
// annotation yet. Per-review failures are counted and skipped; the
// batch itself only fails on storage errors.
func (u *Analysis) Analyze(ctx context.Context, locationID, ownerID string) (AnalysisReport, error) {
	if _, err := u.locations.FindByIDForOwner(ctx, locationID, ownerID); err != nil {
		if errors.Is(err, repository.ErrLocationNotFound) {
			return AnalysisReport{}, ErrNotFound
		}
		return AnalysisReport{}, ErrInternal
	}

	total, err := u.reviews.CountByLocation(ctx, locationID, ownerID, repository.ReviewFilter{})
	if err != nil {
		return AnalysisReport{}, ErrInternal
	}
	if total == 0 {
		return AnalysisReport{}, ErrNotReady
	}

	pending, err := u.reviews.FindUnannotated(ctx, locationID, ownerID)
	if err != nil {
		return AnalysisReport{}, ErrInternal
	}

	report := AnalysisReport{
		TotalReviews:    total,
		AlreadyAnalyzed: total - len(pending),
	}
	if len(pending) == 0 {
		return report, nil
	}

	return u.runBatch(ctx, locationID, ownerID, report, pending)
}

// Reanalyze wipes every annotation for the location and classifies the
// full review set from scratch. No incremental patching: the result is
// always a clean, fully consistent set.
func (u *Analysis) Reanalyze(ctx context.Context, locationID, ownerID string) (AnalysisReport, error) {
	if _, err := u.locations.FindByIDForOwner(ctx, locationID, ownerID); err != nil {
		if errors.Is(err, repository.ErrLocationNotFound) {
			return AnalysisReport{}, ErrNotFound
		}
		return AnalysisReport{}, ErrInternal
	}

	all, err := u.reviews.FindAllByLocation(ctx, locationID, ownerID)
	if err != nil {
		return AnalysisReport{}, ErrInternal
	}
	if len(all) == 0 {
		return AnalysisReport{}, ErrNotReady
	}

	if _, err := u.annotations.DeleteByLocation(ctx, locationID, ownerID); err != nil {
		return AnalysisReport{}, ErrInternal
	}

	report := AnalysisReport{TotalReviews: len(all)}
	return u.runBatch(ctx, locationID, ownerID, report, all)
}

func (u *Analysis) runBatch(ctx context.Context, locationID, ownerID string, report AnalysisReport, pending []review.Review) (AnalysisReport, error) {
	started := time.Now()
	outcome := u.processor.Process(ctx, pending)
	report.FailedAnalysis = outcome.Failed

	inserted, err := u.annotations.InsertBatch(ctx, outcome.Annotations)
	if err != nil {
		return AnalysisReport{}, ErrInternal
	}
	report.NewlyAnalyzed = inserted

	if err := u.refreshRollup(ctx, locationID, ownerID); err != nil {
		return AnalysisReport{}, err
	}

	if u.cache != nil {
		_ = u.cache.InvalidateLocation(ctx, locationID)
	}
	if u.logger != nil {
		u.logger.Printf("[Analysis] location=%s analyzed=%d failed=%d took=%s",
			locationID, report.NewlyAnalyzed, report.FailedAnalysis, time.Since(started).Round(time.Millisecond))
	}
	return report, nil
}

func (u *Analysis) refreshRollup(ctx context.Context, locationID, ownerID string) error {
	src, err := u.annotations.AggregateByLocation(ctx, locationID, ownerID)
	if err != nil {
		return ErrInternal
	}
	rollup := ComputeRollup(src, time.Now().UTC())
	if err := u.locations.UpdateRollup(ctx, locationID, rollup, src.Total()); err != nil {
		return ErrInternal
	}
	return nil
}
