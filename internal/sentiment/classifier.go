package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"review-pulse/internal/config"
	"review-pulse/internal/domain/review"

	"github.com/go-resty/resty/v2"
)

var (
	ErrEmptyText       = errors.New("review text is empty")
	ErrNotConfigured   = errors.New("sentiment backend not configured")
	ErrInvalidVerdict  = errors.New("classifier returned an invalid sentiment label")
	ErrUpstreamFailure = errors.New("sentiment backend request failed")
)

// Classification is the model's verdict for one review.
type Classification struct {
	Sentiment  review.Sentiment
	Score      float64
	Confidence float64
	Keywords   []string
	Topics     []string
	Summary    string
}

type Classifier interface {
	Classify(ctx context.Context, rv review.Review) (Classification, error)
}

const systemPrompt = `You are an expert sentiment analyzer for customer reviews. Analyze the given review text and respond ONLY with valid JSON (no markdown, no backticks):
{
  "sentiment": "positive" | "negative" | "neutral",
  "sentiment_score": <number between -1 and 1>,
  "confidence": <number between 0 and 1>,
  "sentiment_keywords": ["keyword1", "keyword2", ...],
  "contextual_topics": ["topic1", "topic2", ...],
  "summary": "brief summary of the sentiment and key points"
}

Where:
- sentiment: overall sentiment classification
- sentiment_score: -1 (very negative) to 1 (very positive)
- confidence: how confident the analysis is (0-1)
- sentiment_keywords: important words/phrases that influenced the sentiment (5-10 keywords)
- contextual_topics: main topics/themes discussed in the review (3-5 topics like "service quality", "pricing", "cleanliness")
- summary: a brief explanation of the sentiment and main points`

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type verdictPayload struct {
	Sentiment string   `json:"sentiment"`
	Score     float64  `json:"sentiment_score"`
	Conf      float64  `json:"confidence"`
	Keywords  []string `json:"sentiment_keywords"`
	Topics    []string `json:"contextual_topics"`
	Summary   string   `json:"summary"`
}

// LLMClassifier calls an OpenAI-compatible chat completion endpoint.
type LLMClassifier struct {
	client *resty.Client
	model  string
	logger *log.Logger
}

func NewLLMClassifier(cfg config.LLMConfig, logger *log.Logger) *LLMClassifier {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(cfg.APIKey).
		SetTimeout(60 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second)

	return &LLMClassifier{
		client: client,
		model:  cfg.Model,
		logger: logger,
	}
}

func (c *LLMClassifier) Classify(ctx context.Context, rv review.Review) (Classification, error) {
	text := strings.TrimSpace(rv.Text)
	if text == "" {
		return Classification{}, ErrEmptyText
	}
	if c.client.BaseURL == "" {
		return Classification{}, ErrNotConfigured
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("Review Rating: %d/5\nReview Text: %s", rv.Rating, text)},
		},
		Temperature: 0.3,
		MaxTokens:   600,
	}

	var respBody chatResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(reqBody).
		SetResult(&respBody).
		Post("/chat/completions")
	if err != nil {
		return Classification{}, fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}
	if resp.IsError() {
		msg := resp.Status()
		if respBody.Error != nil && respBody.Error.Message != "" {
			msg = respBody.Error.Message
		}
		return Classification{}, fmt.Errorf("%w: %s", ErrUpstreamFailure, msg)
	}
	if len(respBody.Choices) == 0 {
		return Classification{}, fmt.Errorf("%w: empty response", ErrUpstreamFailure)
	}

	return parseVerdict(respBody.Choices[0].Message.Content)
}

// parseVerdict decodes the model output, tolerating the markdown fence
// some backends wrap JSON in despite instructions.
func parseVerdict(content string) (Classification, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var v verdictPayload
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return Classification{}, fmt.Errorf("decode classifier output: %w", err)
	}

	label := strings.ToLower(strings.TrimSpace(v.Sentiment))
	if !review.ValidSentiment(label) {
		return Classification{}, fmt.Errorf("%w: %q", ErrInvalidVerdict, v.Sentiment)
	}

	return Classification{
		Sentiment:  review.Sentiment(label),
		Score:      clamp(v.Score, -1, 1),
		Confidence: clamp(v.Conf, 0, 1),
		Keywords:   v.Keywords,
		Topics:     v.Topics,
		Summary:    strings.TrimSpace(v.Summary),
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
