package handler

import (
	"errors"

	"review-pulse/internal/delivery/http/middleware"
	"review-pulse/internal/pkg/response"
	"review-pulse/internal/usecase"

	"github.com/gofiber/fiber/v3"
)

type ReviewHandler struct {
	list     usecase.ReviewListUsecase
	analysis usecase.AnalysisUsecase
}

func NewReviewHandler(list usecase.ReviewListUsecase, analysis usecase.AnalysisUsecase) *ReviewHandler {
	return &ReviewHandler{list: list, analysis: analysis}
}

func (h *ReviewHandler) RegisterRoutes(r fiber.Router, limiter *middleware.RateLimiter) {
	if r == nil {
		return
	}

	r.Get("/location/:locationId", h.List, limiter.Limit(middleware.ClassRead))
	r.Post("/analyze-location/:locationId", h.Analyze, limiter.Limit(middleware.ClassBatch))
	r.Post("/reanalyze-location/:locationId", h.Reanalyze, limiter.Limit(middleware.ClassBatch))
}

func (h *ReviewHandler) List(c fiber.Ctx) error {
	ownerID := middleware.OwnerID(c)

	page, err := parseQueryIntStrict(c, "page", 1)
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}
	limit, err := parseQueryIntStrict(c, "limit", 20)
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}
	rating, err := parseQueryIntStrict(c, "rating", 0)
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}

	out, err := h.list.ListReviews(c.Context(), c.Params("locationId"), ownerID, usecase.ReviewListParams{
		Page:      page,
		Limit:     limit,
		Sentiment: c.Query("sentiment"),
		Rating:    rating,
		Search:    c.Query("search"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	})
	if err != nil {
		return mapReviewUsecaseError(err)
	}

	return response.Success(c, fiber.StatusOK, response.MessageOK, out)
}

// Analyze classifies every not yet annotated review for the location.
func (h *ReviewHandler) Analyze(c fiber.Ctx) error {
	ownerID := middleware.OwnerID(c)

	report, err := h.analysis.Analyze(c.Context(), c.Params("locationId"), ownerID)
	if err != nil {
		return mapReviewUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, "Analysis completed", report)
}

// Reanalyze wipes existing annotations first and classifies the full
// review set from scratch.
func (h *ReviewHandler) Reanalyze(c fiber.Ctx) error {
	ownerID := middleware.OwnerID(c)

	report, err := h.analysis.Reanalyze(c.Context(), c.Params("locationId"), ownerID)
	if err != nil {
		return mapReviewUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, "Reanalysis completed", report)
}

func mapReviewUsecaseError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, usecase.ErrInvalidInput):
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	case errors.Is(err, usecase.ErrNotFound):
		return middleware.NewAppError(fiber.StatusNotFound, "Location not found", nil, err)
	case errors.Is(err, usecase.ErrNotReady):
		return middleware.NewAppError(fiber.StatusConflict, "Location has no reviews to analyze", nil, err)
	case errors.Is(err, usecase.ErrExternal):
		return middleware.NewAppError(fiber.StatusBadGateway, "Sentiment service unavailable", nil, err)
	default:
		return middleware.NewAppError(fiber.StatusInternalServerError, response.MessageInternalServerError, nil, err)
	}
}
