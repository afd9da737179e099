package usecase

import (
	"context"
	"errors"
	"testing"

	"review-pulse/internal/domain/location"
)

func TestReadiness_States(t *testing.T) {
	locations := newMockLocationRepo(
		&location.Location{ID: locA, OwnerID: ownerA, Name: "Cafe"},
		&location.Location{ID: locB, OwnerID: ownerA, Name: "Bar"},
	)
	reviews := newMockReviewRepo()
	annotations := newMockAnnotationRepo()

	uc := NewReadinessUsecase(locations, reviews, annotations, nil, nil)

	// No reviews at all.
	r, err := uc.CheckLocation(context.Background(), locA, ownerA)
	if err != nil {
		t.Fatalf("CheckLocation: %v", err)
	}
	if r.Status != ReadinessNoReviews || r.Ready {
		t.Fatalf("status = %s ready=%v, want no_reviews/false", r.Status, r.Ready)
	}
	if r.Action != "scrape_reviews" {
		t.Fatalf("action = %s", r.Action)
	}

	// Scraped but unanalyzed.
	seedReviews(reviews, locA, 10)
	r, _ = uc.CheckLocation(context.Background(), locA, ownerA)
	if r.Status != ReadinessNotAnalyzed || r.Ready {
		t.Fatalf("status = %s ready=%v, want not_analyzed/false", r.Status, r.Ready)
	}

	// Partially analyzed counts as ready.
	seedAnnotations(annotations, locA, 4, 0, 0)
	r, _ = uc.CheckLocation(context.Background(), locA, ownerA)
	if r.Status != ReadinessPartiallyAnalyzed || !r.Ready {
		t.Fatalf("status = %s ready=%v, want partially_analyzed/true", r.Status, r.Ready)
	}
	if r.Stats.PendingAnalysis != 6 {
		t.Fatalf("pendingAnalysis = %d, want 6", r.Stats.PendingAnalysis)
	}

	// Fully analyzed.
	seedAnnotations(annotations, locA, 6, 0, 0)
	r, _ = uc.CheckLocation(context.Background(), locA, ownerA)
	if r.Status != ReadinessReady || !r.Ready {
		t.Fatalf("status = %s ready=%v, want ready/true", r.Status, r.Ready)
	}
}

func TestReadiness_UnknownLocationIsNotFoundNotError(t *testing.T) {
	uc := NewReadinessUsecase(newMockLocationRepo(), newMockReviewRepo(), newMockAnnotationRepo(), nil, nil)

	r, err := uc.CheckLocation(context.Background(), locA, ownerA)
	if err != nil {
		t.Fatalf("CheckLocation: %v", err)
	}
	if r.Status != ReadinessNotFound || r.Ready {
		t.Fatalf("status = %s ready=%v, want not_found/false", r.Status, r.Ready)
	}
}

func TestReadiness_RejectsMalformedID(t *testing.T) {
	uc := NewReadinessUsecase(newMockLocationRepo(), newMockReviewRepo(), newMockAnnotationRepo(), nil, nil)

	if _, err := uc.CheckLocation(context.Background(), "not-an-id", ownerA); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestReadiness_BatchSummary(t *testing.T) {
	locations := newMockLocationRepo(
		&location.Location{ID: locA, OwnerID: ownerA, Name: "Cafe"},
		&location.Location{ID: locB, OwnerID: ownerA, Name: "Bar"},
	)
	reviews := newMockReviewRepo()
	annotations := newMockAnnotationRepo()
	seedReviews(reviews, locA, 5)
	seedAnnotations(annotations, locA, 5, 0, 0)

	uc := NewReadinessUsecase(locations, reviews, annotations, nil, nil)

	batch, err := uc.CheckLocations(context.Background(), []string{locA, locB}, ownerA)
	if err != nil {
		t.Fatalf("CheckLocations: %v", err)
	}
	s := batch.Summary
	if s.Total != 2 || s.Ready != 1 || s.NotReady != 1 {
		t.Fatalf("summary = %+v", s)
	}
	if !s.CanProceed || s.AllReady {
		t.Fatalf("canProceed=%v allReady=%v, want true/false", s.CanProceed, s.AllReady)
	}
}

func TestReadiness_BatchRejectsEmptyAndOversized(t *testing.T) {
	uc := NewReadinessUsecase(newMockLocationRepo(), newMockReviewRepo(), newMockAnnotationRepo(), nil, nil)

	if _, err := uc.CheckLocations(context.Background(), nil, ownerA); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty batch err = %v, want ErrInvalidInput", err)
	}

	big := make([]string, maxReadinessBatch+1)
	for i := range big {
		big[i] = ids24(i + 1)
	}
	if _, err := uc.CheckLocations(context.Background(), big, ownerA); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("oversized batch err = %v, want ErrInvalidInput", err)
	}
}

func TestReadiness_CachesResults(t *testing.T) {
	locations := newMockLocationRepo(&location.Location{ID: locA, OwnerID: ownerA, Name: "Cafe"})
	reviews := newMockReviewRepo()
	seedReviews(reviews, locA, 3)
	cache := newMockCache()

	uc := NewReadinessUsecase(locations, reviews, newMockAnnotationRepo(), cache, nil)

	if _, err := uc.CheckLocation(context.Background(), locA, ownerA); err != nil {
		t.Fatalf("CheckLocation: %v", err)
	}
	if _, err := uc.CheckLocation(context.Background(), locA, ownerA); err != nil {
		t.Fatalf("CheckLocation: %v", err)
	}
	if cache.hits == 0 {
		t.Fatal("second check did not hit the cache")
	}
}

func TestReadiness_CacheIsOwnerScoped(t *testing.T) {
	locations := newMockLocationRepo(&location.Location{ID: locA, OwnerID: ownerA, Name: "Cafe"})
	reviews := newMockReviewRepo()
	annotations := newMockAnnotationRepo()
	seedReviews(reviews, locA, 4)
	seedAnnotations(annotations, locA, 4, 0, 0)
	cache := newMockCache()

	uc := NewReadinessUsecase(locations, reviews, annotations, cache, nil)

	// First owner warms the cache with a ready payload.
	r, err := uc.CheckLocation(context.Background(), locA, ownerA)
	if err != nil {
		t.Fatalf("CheckLocation: %v", err)
	}
	if r.Status != ReadinessReady {
		t.Fatalf("status = %s, want ready", r.Status)
	}

	// A different owner asking about the same id must not be served
	// the first owner's cached entry.
	r, err = uc.CheckLocation(context.Background(), locA, ownerB)
	if err != nil {
		t.Fatalf("CheckLocation: %v", err)
	}
	if r.Status != ReadinessNotFound || r.Ready {
		t.Fatalf("status = %s ready=%v, want not_found/false", r.Status, r.Ready)
	}
	if r.LocationName != "" {
		t.Fatalf("leaked location name %q to another owner", r.LocationName)
	}
}
