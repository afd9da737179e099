package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"review-pulse/internal/domain/review"
	"review-pulse/internal/pkg/sanitize"
	"review-pulse/internal/repository"
)

type ReviewListParams struct {
	Page      int
	Limit     int
	Sentiment string
	Rating    int
	Search    string
	SortBy    string
	SortOrder string
}

type PageInfo struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalItems  int  `json:"totalItems"`
	HasNext     bool `json:"hasNext"`
	HasPrev     bool `json:"hasPrev"`
}

type ReviewPage struct {
	Reviews    []review.Annotated `json:"reviews"`
	Pagination PageInfo           `json:"pagination"`
	// Source reports which store served the page: "annotated" or "raw".
	Source string `json:"source"`
}

type ReviewListUsecase interface {
	ListReviews(ctx context.Context, locationID, ownerID string, params ReviewListParams) (ReviewPage, error)
}

type ReviewList struct {
	locations   repository.LocationRepository
	reviews     repository.ReviewRepository
	annotations repository.AnnotationRepository
	cache       Cache
	logger      *log.Logger
}

func NewReviewListUsecase(
	locations repository.LocationRepository,
	reviews repository.ReviewRepository,
	annotations repository.AnnotationRepository,
	cache Cache,
	logger *log.Logger,
) *ReviewList {
	return &ReviewList{
		locations:   locations,
		reviews:     reviews,
		annotations: annotations,
		cache:       cache,
		logger:      logger,
	}
}

// ListReviews serves one page. A sentiment filter pins the query to
// the annotated source; raw reviews carry no sentiment and are never
// substituted for it, even when the annotated set is empty.
func (u *ReviewList) ListReviews(ctx context.Context, locationID, ownerID string, params ReviewListParams) (ReviewPage, error) {
	sentimentFilter, err := normalizeSentimentFilter(params.Sentiment)
	if err != nil {
		return ReviewPage{}, err
	}
	page, limit := sanitize.Pagination(params.Page, params.Limit)
	params.Page = page
	params.Limit = limit
	offset := (page - 1) * limit

	if _, err := u.locations.FindByIDForOwner(ctx, locationID, ownerID); err != nil {
		if errors.Is(err, repository.ErrLocationNotFound) {
			return ReviewPage{}, ErrNotFound
		}
		return ReviewPage{}, ErrInternal
	}

	cacheKey := reviewPageCacheKey(locationID, ownerID, params)
	if u.cache != nil {
		var cached ReviewPage
		if hit, err := u.cache.GetJSON(ctx, cacheKey, &cached); err == nil && hit {
			if u.logger != nil {
				u.logger.Printf("[Reviews] Cache HIT: %s", cacheKey)
			}
			return cached, nil
		}
	}

	filter := repository.ReviewFilter{Rating: params.Rating, Search: params.Search}
	sort := repository.ReviewSort{By: params.SortBy, Order: params.SortOrder}

	var out ReviewPage
	if sentimentFilter != "" {
		out, err = u.listAnnotated(ctx, locationID, ownerID, review.Sentiment(sentimentFilter), filter, sort, page, limit, offset)
	} else {
		out, err = u.listRaw(ctx, locationID, ownerID, filter, sort, page, limit, offset)
	}
	if err != nil {
		return ReviewPage{}, err
	}

	if u.cache != nil {
		_ = u.cache.SetJSON(ctx, cacheKey, out, 0)
	}
	return out, nil
}

func (u *ReviewList) listAnnotated(ctx context.Context, locationID, ownerID string, sentiment review.Sentiment, filter repository.ReviewFilter, sort repository.ReviewSort, page, limit, offset int) (ReviewPage, error) {
	total, err := u.annotations.CountAnnotated(ctx, locationID, ownerID, sentiment, filter)
	if err != nil {
		return ReviewPage{}, ErrInternal
	}
	items, err := u.annotations.PageAnnotated(ctx, locationID, ownerID, sentiment, filter, sort, limit, offset)
	if err != nil {
		return ReviewPage{}, ErrInternal
	}
	return ReviewPage{
		Reviews:    items,
		Pagination: pageInfo(page, limit, total),
		Source:     "annotated",
	}, nil
}

func (u *ReviewList) listRaw(ctx context.Context, locationID, ownerID string, filter repository.ReviewFilter, sort repository.ReviewSort, page, limit, offset int) (ReviewPage, error) {
	total, err := u.reviews.CountByLocation(ctx, locationID, ownerID, filter)
	if err != nil {
		return ReviewPage{}, ErrInternal
	}
	items, err := u.reviews.PageWithAnnotations(ctx, locationID, ownerID, filter, sort, limit, offset)
	if err != nil {
		return ReviewPage{}, ErrInternal
	}
	return ReviewPage{
		Reviews:    items,
		Pagination: pageInfo(page, limit, total),
		Source:     "raw",
	}, nil
}

// normalizeSentimentFilter maps "all" and empty to no filter and
// rejects anything outside the known labels.
func normalizeSentimentFilter(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" || s == "all" {
		return "", nil
	}
	if !review.ValidSentiment(s) {
		return "", ErrInvalidInput
	}
	return s, nil
}

func pageInfo(page, limit, total int) PageInfo {
	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return PageInfo{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalItems:  total,
		HasNext:     page < totalPages,
		HasPrev:     page > 1 && total > 0,
	}
}

func reviewPageCacheKey(locationID, ownerID string, p ReviewListParams) string {
	sentiment := strings.ToLower(strings.TrimSpace(p.Sentiment))
	if sentiment == "" {
		sentiment = "all"
	}
	return fmt.Sprintf("reviews:page:%s:%s:%d:%d:%s:%d:%s:%s:%s",
		locationID, ownerID, p.Page, p.Limit, sentiment, p.Rating,
		strings.ToLower(strings.TrimSpace(p.Search)), p.SortBy, strings.ToLower(p.SortOrder))
}
