package sentiment

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"review-pulse/internal/config"

	"github.com/go-resty/resty/v2"
)

type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatModel answers free-form questions against the same
// OpenAI-compatible backend the classifier uses.
type ChatModel interface {
	Complete(ctx context.Context, system string, turns []ChatTurn) (string, error)
}

type LLMChatModel struct {
	client *resty.Client
	model  string
	logger *log.Logger
}

func NewLLMChatModel(cfg config.LLMConfig, logger *log.Logger) *LLMChatModel {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(cfg.APIKey).
		SetTimeout(90 * time.Second)

	return &LLMChatModel{client: client, model: cfg.Model, logger: logger}
}

func (m *LLMChatModel) Complete(ctx context.Context, system string, turns []ChatTurn) (string, error) {
	if m.client.BaseURL == "" {
		return "", ErrNotConfigured
	}

	messages := make([]chatMessage, 0, len(turns)+1)
	messages = append(messages, chatMessage{Role: "system", Content: system})
	for _, t := range turns {
		messages = append(messages, chatMessage{Role: t.Role, Content: t.Content})
	}

	reqBody := chatRequest{
		Model:       m.model,
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   1200,
	}

	var respBody chatResponse
	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(reqBody).
		SetResult(&respBody).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}
	if resp.IsError() {
		msg := resp.Status()
		if respBody.Error != nil && respBody.Error.Message != "" {
			msg = respBody.Error.Message
		}
		return "", fmt.Errorf("%w: %s", ErrUpstreamFailure, msg)
	}
	if len(respBody.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrUpstreamFailure)
	}
	return strings.TrimSpace(respBody.Choices[0].Message.Content), nil
}
