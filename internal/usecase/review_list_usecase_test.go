package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"review-pulse/internal/domain/location"
	"review-pulse/internal/domain/review"
)

func seedAnnotations(annotations *mockAnnotationRepo, locationID string, positive, neutral, negative int) {
	add := func(label review.Sentiment, n int, offset int) {
		for i := 0; i < n; i++ {
			annotations.byLocation[locationID] = append(annotations.byLocation[locationID], review.Annotation{
				ID:          ids24(offset + i),
				ReviewID:    ids24(1000 + offset + i),
				OwnerID:     ownerA,
				LocationID:  locationID,
				Sentiment:   label,
				ProcessedAt: time.Now().UTC(),
			})
		}
	}
	add(review.SentimentPositive, positive, 0)
	add(review.SentimentNeutral, neutral, 100)
	add(review.SentimentNegative, negative, 200)
}

func ids24(n int) string {
	const hex = "0123456789abcdef"
	b := make([]byte, 24)
	for i := 23; i >= 0; i-- {
		b[i] = hex[n%16]
		n /= 16
	}
	return string(b)
}

func TestReviewList_SentimentFilterNeverFallsBackToRaw(t *testing.T) {
	locations := newMockLocationRepo(&location.Location{ID: locA, OwnerID: ownerA})
	reviews := newMockReviewRepo()
	annotations := newMockAnnotationRepo()
	// Raw reviews exist, nothing analyzed yet.
	seedReviews(reviews, locA, 30)

	uc := NewReviewListUsecase(locations, reviews, annotations, nil, nil)

	page, err := uc.ListReviews(context.Background(), locA, ownerA, ReviewListParams{Sentiment: "positive"})
	if err != nil {
		t.Fatalf("ListReviews: %v", err)
	}
	if len(page.Reviews) != 0 {
		t.Fatalf("got %d reviews for sentiment filter on unanalyzed location, want empty page", len(page.Reviews))
	}
	if page.Source != "annotated" {
		t.Fatalf("source = %s, want annotated", page.Source)
	}
	if page.Pagination.TotalItems != 0 {
		t.Fatalf("totalItems = %d, want 0", page.Pagination.TotalItems)
	}
}

func TestReviewList_SentimentFilterServesAnnotated(t *testing.T) {
	locations := newMockLocationRepo(&location.Location{ID: locA, OwnerID: ownerA})
	reviews := newMockReviewRepo()
	annotations := newMockAnnotationRepo()
	seedAnnotations(annotations, locA, 6, 3, 1)

	uc := NewReviewListUsecase(locations, reviews, annotations, nil, nil)

	page, err := uc.ListReviews(context.Background(), locA, ownerA, ReviewListParams{Sentiment: "positive"})
	if err != nil {
		t.Fatalf("ListReviews: %v", err)
	}
	if len(page.Reviews) != 6 {
		t.Fatalf("got %d reviews, want 6 positive", len(page.Reviews))
	}
	for _, rv := range page.Reviews {
		if rv.Annotation == nil || rv.Annotation.Sentiment != review.SentimentPositive {
			t.Fatalf("non-positive review leaked into filtered page: %+v", rv)
		}
	}
}

func TestReviewList_NoFilterServesRawWithOptionalAnnotations(t *testing.T) {
	locations := newMockLocationRepo(&location.Location{ID: locA, OwnerID: ownerA})
	reviews := newMockReviewRepo()
	annotations := newMockAnnotationRepo()
	seedReviews(reviews, locA, 5)

	uc := NewReviewListUsecase(locations, reviews, annotations, nil, nil)

	page, err := uc.ListReviews(context.Background(), locA, ownerA, ReviewListParams{Sentiment: "all"})
	if err != nil {
		t.Fatalf("ListReviews: %v", err)
	}
	if page.Source != "raw" {
		t.Fatalf("source = %s, want raw", page.Source)
	}
	if len(page.Reviews) != 5 {
		t.Fatalf("got %d reviews, want 5", len(page.Reviews))
	}
}

func TestReviewList_RejectsUnknownSentiment(t *testing.T) {
	uc := NewReviewListUsecase(newMockLocationRepo(), newMockReviewRepo(), newMockAnnotationRepo(), nil, nil)

	_, err := uc.ListReviews(context.Background(), locA, ownerA, ReviewListParams{Sentiment: "angry"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestReviewList_UnknownLocation(t *testing.T) {
	uc := NewReviewListUsecase(newMockLocationRepo(), newMockReviewRepo(), newMockAnnotationRepo(), nil, nil)

	_, err := uc.ListReviews(context.Background(), locA, ownerA, ReviewListParams{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestReviewList_PaginationClampAndMath(t *testing.T) {
	locations := newMockLocationRepo(&location.Location{ID: locA, OwnerID: ownerA})
	reviews := newMockReviewRepo()
	seedReviews(reviews, locA, 45)

	uc := NewReviewListUsecase(locations, reviews, newMockAnnotationRepo(), nil, nil)

	page, err := uc.ListReviews(context.Background(), locA, ownerA, ReviewListParams{Page: 2, Limit: 20})
	if err != nil {
		t.Fatalf("ListReviews: %v", err)
	}
	p := page.Pagination
	if p.CurrentPage != 2 || p.TotalPages != 3 || p.TotalItems != 45 {
		t.Fatalf("pagination = %+v", p)
	}
	if !p.HasNext || !p.HasPrev {
		t.Fatalf("hasNext/hasPrev = %v/%v, want true/true", p.HasNext, p.HasPrev)
	}

	// Out-of-range values are clamped, not rejected.
	page, err = uc.ListReviews(context.Background(), locA, ownerA, ReviewListParams{Page: -3, Limit: 500})
	if err != nil {
		t.Fatalf("ListReviews: %v", err)
	}
	if page.Pagination.CurrentPage != 1 {
		t.Fatalf("clamped page = %d, want 1", page.Pagination.CurrentPage)
	}
}

func TestReviewList_CachesPages(t *testing.T) {
	locations := newMockLocationRepo(&location.Location{ID: locA, OwnerID: ownerA})
	reviews := newMockReviewRepo()
	seedReviews(reviews, locA, 10)
	cache := newMockCache()

	uc := NewReviewListUsecase(locations, reviews, newMockAnnotationRepo(), cache, nil)

	if _, err := uc.ListReviews(context.Background(), locA, ownerA, ReviewListParams{}); err != nil {
		t.Fatalf("first ListReviews: %v", err)
	}
	if cache.sets == 0 {
		t.Fatal("page never cached")
	}
	if _, err := uc.ListReviews(context.Background(), locA, ownerA, ReviewListParams{}); err != nil {
		t.Fatalf("second ListReviews: %v", err)
	}
	if cache.hits == 0 {
		t.Fatal("second identical request did not hit the cache")
	}
}
