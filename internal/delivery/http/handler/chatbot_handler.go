package handler

import (
	"errors"

	"review-pulse/internal/delivery/http/middleware"
	"review-pulse/internal/pkg/response"
	"review-pulse/internal/pkg/sanitize"
	"review-pulse/internal/usecase"

	"github.com/gofiber/fiber/v3"
)

type ChatbotHandler struct {
	uc usecase.ChatUsecase
}

type chatRequest struct {
	Message             string                 `json:"message"`
	LocationIDs         []string               `json:"locationIds"`
	SessionID           string                 `json:"sessionId"`
	ConversationHistory []sanitize.HistoryEntry `json:"conversationHistory"`
}

func NewChatbotHandler(uc usecase.ChatUsecase) *ChatbotHandler {
	return &ChatbotHandler{uc: uc}
}

func (h *ChatbotHandler) RegisterRoutes(r fiber.Router, limiter *middleware.RateLimiter) {
	if r == nil {
		return
	}

	r.Post("/chat", h.Chat, limiter.Limit(middleware.ClassChatbot))
	r.Get("/conversation/:sessionId", h.Conversation, limiter.Limit(middleware.ClassRead))
}

func (h *ChatbotHandler) Chat(c fiber.Ctx) error {
	ownerID := middleware.OwnerID(c)

	var req chatRequest
	if err := c.Bind().Body(&req); err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}

	out, err := h.uc.Chat(c.Context(), ownerID, usecase.ChatParams{
		Message:             req.Message,
		LocationIDs:         req.LocationIDs,
		SessionID:           req.SessionID,
		ConversationHistory: req.ConversationHistory,
	})
	if err != nil {
		return mapChatUsecaseError(err, out)
	}

	return response.Success(c, fiber.StatusOK, response.MessageOK, out)
}

func (h *ChatbotHandler) Conversation(c fiber.Ctx) error {
	ownerID := middleware.OwnerID(c)

	conv, err := h.uc.History(c.Context(), c.Params("sessionId"), ownerID)
	if err != nil {
		return mapChatUsecaseError(err, usecase.ChatResult{})
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, conv)
}

func mapChatUsecaseError(err error, res usecase.ChatResult) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, usecase.ErrInvalidInput):
		return middleware.NewAppError(fiber.StatusBadRequest, err.Error(), nil, err)
	case errors.Is(err, usecase.ErrNotFound):
		return middleware.NewAppError(fiber.StatusNotFound, "Conversation not found", nil, err)
	case errors.Is(err, usecase.ErrNotReady):
		// Excluded locations explain what the caller must do first.
		return middleware.NewAppError(fiber.StatusConflict, "None of the selected locations are ready for chat", map[string]any{
			"excludedLocations": res.ExcludedLocations,
		}, err)
	case errors.Is(err, usecase.ErrExternal):
		return middleware.NewAppError(fiber.StatusBadGateway, "Chat service unavailable", nil, err)
	default:
		return middleware.NewAppError(fiber.StatusInternalServerError, response.MessageInternalServerError, nil, err)
	}
}
