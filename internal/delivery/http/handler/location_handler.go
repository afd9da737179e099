package handler

import (
	"review-pulse/internal/delivery/http/middleware"
	"review-pulse/internal/pkg/response"
	"review-pulse/internal/usecase"

	"github.com/gofiber/fiber/v3"
)

type LocationHandler struct {
	readiness usecase.ReadinessUsecase
	rollup    usecase.RollupUsecase
}

type readinessBatchRequest struct {
	LocationIDs []string `json:"locationIds"`
}

func NewLocationHandler(readiness usecase.ReadinessUsecase, rollup usecase.RollupUsecase) *LocationHandler {
	return &LocationHandler{readiness: readiness, rollup: rollup}
}

func (h *LocationHandler) RegisterRoutes(r fiber.Router, limiter *middleware.RateLimiter) {
	if r == nil {
		return
	}

	r.Get("/:locationId/readiness", h.Readiness, limiter.Limit(middleware.ClassReadiness))
	r.Post("/readiness", h.ReadinessBatch, limiter.Limit(middleware.ClassReadiness))
	r.Get("/:locationId/sentiment", h.Sentiment, limiter.Limit(middleware.ClassSentiment))
}

// Readiness reports whether a location can serve chat and sentiment
// queries. An unknown location is a not_found status, not an error.
func (h *LocationHandler) Readiness(c fiber.Ctx) error {
	ownerID := middleware.OwnerID(c)

	out, err := h.readiness.CheckLocation(c.Context(), c.Params("locationId"), ownerID)
	if err != nil {
		return mapReviewUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, out)
}

func (h *LocationHandler) ReadinessBatch(c fiber.Ctx) error {
	ownerID := middleware.OwnerID(c)

	var req readinessBatchRequest
	if err := c.Bind().Body(&req); err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}

	out, err := h.readiness.CheckLocations(c.Context(), req.LocationIDs, ownerID)
	if err != nil {
		return mapReviewUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, out)
}

func (h *LocationHandler) Sentiment(c fiber.Ctx) error {
	ownerID := middleware.OwnerID(c)

	out, err := h.rollup.Rollup(c.Context(), c.Params("locationId"), ownerID)
	if err != nil {
		return mapReviewUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, out)
}
