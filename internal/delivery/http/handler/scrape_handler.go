package handler

import (
	"bufio"
	"encoding/json"
	"errors"
	"log"

	"review-pulse/internal/delivery/http/middleware"
	"review-pulse/internal/pkg/ids"
	"review-pulse/internal/pkg/response"
	"review-pulse/internal/repository"
	"review-pulse/internal/scrape"

	"github.com/gofiber/fiber/v3"
)

type ScrapeHandler struct {
	coordinator *scrape.Coordinator
	hub         *scrape.Hub
	logger      *log.Logger
}

type startScrapeRequest struct {
	LocationID string `json:"locationId"`
}

func NewScrapeHandler(coordinator *scrape.Coordinator, hub *scrape.Hub, logger *log.Logger) *ScrapeHandler {
	return &ScrapeHandler{coordinator: coordinator, hub: hub, logger: logger}
}

func (h *ScrapeHandler) RegisterRoutes(r fiber.Router, limiter *middleware.RateLimiter) {
	if r == nil {
		return
	}

	r.Post("/start", h.Start, limiter.Limit(middleware.ClassBatch))
	r.Get("/progress/:jobId", h.Progress, limiter.Limit(middleware.ClassRead))
	r.Get("/status/:jobId", h.Status, limiter.Limit(middleware.ClassRead))
}

// Start kicks off a scrape job for a location. Starting against a
// location with a live job returns that job, so retries and double
// clicks are harmless.
func (h *ScrapeHandler) Start(c fiber.Ctx) error {
	ownerID := middleware.OwnerID(c)

	var req startScrapeRequest
	if err := c.Bind().Body(&req); err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}
	if !ids.IsValid(req.LocationID) {
		return middleware.NewAppError(fiber.StatusBadRequest, "locationId must be a valid location id", nil, nil)
	}

	job, created, err := h.coordinator.Start(c.Context(), req.LocationID, ownerID)
	if err != nil {
		return mapScrapeError(err)
	}

	data := map[string]any{
		"jobId":      job.ID,
		"locationId": job.LocationID,
		"status":     job.Status,
	}
	if created {
		return response.Success(c, fiber.StatusCreated, "Scraping job started", data)
	}
	return response.Success(c, fiber.StatusOK, "Scraping already in progress", data)
}

func (h *ScrapeHandler) Status(c fiber.Ctx) error {
	job, err := h.coordinator.Status(c.Params("jobId"))
	if err != nil {
		return mapScrapeError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, job)
}

// Progress streams job events as SSE until the job reaches a terminal
// state or the client goes away.
func (h *ScrapeHandler) Progress(c fiber.Ctx) error {
	jobID := c.Params("jobId")
	if _, err := h.coordinator.Status(jobID); err != nil {
		return mapScrapeError(err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	sub := h.hub.Subscribe(jobID)

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer sub.Unsubscribe()

		for evt := range sub.C {
			payload, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			if _, err := w.WriteString("data: " + string(payload) + "\n\n"); err != nil {
				return
			}
			// Flush failure means the client hung up.
			if err := w.Flush(); err != nil {
				return
			}
		}
	})
}

func mapScrapeError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, scrape.ErrNoSource):
		return middleware.NewAppError(fiber.StatusBadRequest, "Location has no review source configured", nil, err)
	case errors.Is(err, scrape.ErrJobNotFound):
		return middleware.NewAppError(fiber.StatusNotFound, "Job not found", nil, err)
	case errors.Is(err, repository.ErrLocationNotFound):
		return middleware.NewAppError(fiber.StatusNotFound, "Location not found", nil, err)
	default:
		return middleware.NewAppError(fiber.StatusInternalServerError, response.MessageInternalServerError, nil, err)
	}
}
