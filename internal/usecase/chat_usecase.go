package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"review-pulse/internal/domain/conversation"
	"review-pulse/internal/pkg/sanitize"
	"review-pulse/internal/repository"
	"review-pulse/internal/sentiment"

	"github.com/google/uuid"
)

const (
	chatContextSampleSize = 5
	chatContextCacheTTL   = 5 * time.Minute
)

type ChatParams struct {
	Message             string
	LocationIDs         []string
	SessionID           string
	ConversationHistory []sanitize.HistoryEntry
}

type ExcludedLocation struct {
	LocationID   string `json:"locationId"`
	LocationName string `json:"locationName,omitempty"`
	Reason       string `json:"reason"`
	Action       string `json:"action,omitempty"`
}

type ChatMetadata struct {
	LocationsRequested int   `json:"locationsRequested"`
	LocationsUsed      int   `json:"locationsUsed"`
	ResponseTimeMs     int64 `json:"responseTimeMs"`
}

type ChatResult struct {
	Response          string                          `json:"response"`
	SessionID         string                          `json:"sessionId"`
	AttachedLocations []conversation.AttachedLocation `json:"attachedLocations"`
	ExcludedLocations []ExcludedLocation              `json:"excludedLocations,omitempty"`
	Metadata          ChatMetadata                    `json:"metadata"`
}

type ChatUsecase interface {
	Chat(ctx context.Context, ownerID string, params ChatParams) (ChatResult, error)
	History(ctx context.Context, sessionID, ownerID string) (*conversation.Conversation, error)
}

type readinessChecker interface {
	CheckLocations(ctx context.Context, locationIDs []string, ownerID string) (ReadinessBatch, error)
}

type Chat struct {
	readiness     readinessChecker
	locations     repository.LocationRepository
	annotations   repository.AnnotationRepository
	conversations repository.ConversationRepository
	model         sentiment.ChatModel
	cache         Cache
	logger        *log.Logger
}

func NewChatUsecase(
	readiness readinessChecker,
	locations repository.LocationRepository,
	annotations repository.AnnotationRepository,
	conversations repository.ConversationRepository,
	model sentiment.ChatModel,
	cache Cache,
	logger *log.Logger,
) *Chat {
	return &Chat{
		readiness:     readiness,
		locations:     locations,
		annotations:   annotations,
		conversations: conversations,
		model:         model,
		cache:         cache,
		logger:        logger,
	}
}

// Chat answers a question grounded in the attached locations' review
// data. Locations that are not ready are reported back with a reason,
// never silently dropped; the call fails only when none are usable.
func (u *Chat) Chat(ctx context.Context, ownerID string, params ChatParams) (ChatResult, error) {
	started := time.Now()

	req, verrs := sanitize.ValidateChatRequest(params.Message, params.LocationIDs, params.SessionID, params.ConversationHistory)
	if len(verrs) > 0 {
		return ChatResult{}, fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(verrs, "; "))
	}

	batch, err := u.readiness.CheckLocations(ctx, req.LocationIDs, ownerID)
	if err != nil {
		return ChatResult{}, err
	}

	var ready []Readiness
	var excluded []ExcludedLocation
	for _, r := range batch.Locations {
		if r.Ready {
			ready = append(ready, r)
			continue
		}
		excluded = append(excluded, ExcludedLocation{
			LocationID:   r.LocationID,
			LocationName: r.LocationName,
			Reason:       r.Message,
			Action:       r.Action,
		})
	}
	if len(ready) == 0 {
		return ChatResult{ExcludedLocations: excluded}, ErrNotReady
	}

	contextBlock, attached, err := u.buildContext(ctx, ownerID, ready)
	if err != nil {
		return ChatResult{}, err
	}

	turns := make([]sentiment.ChatTurn, 0, len(req.ConversationHistory)+1)
	for _, h := range req.ConversationHistory {
		turns = append(turns, sentiment.ChatTurn{Role: h.Role, Content: h.Content})
	}
	turns = append(turns, sentiment.ChatTurn{Role: "user", Content: req.Message})

	answer, err := u.model.Complete(ctx, chatSystemPrompt(contextBlock), turns)
	if err != nil {
		return ChatResult{}, ErrExternal
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if err := u.persistConversation(ctx, sessionID, ownerID, req.Message, answer, attached); err != nil && u.logger != nil {
		u.logger.Printf("[Chat] persist conversation session=%s: %v", sessionID, err)
	}

	return ChatResult{
		Response:          answer,
		SessionID:         sessionID,
		AttachedLocations: attached,
		ExcludedLocations: excluded,
		Metadata: ChatMetadata{
			LocationsRequested: len(req.LocationIDs),
			LocationsUsed:      len(attached),
			ResponseTimeMs:     time.Since(started).Milliseconds(),
		},
	}, nil
}

type locationContext struct {
	Name     string             `json:"name"`
	Rollup   string             `json:"rollup"`
	Samples  []string           `json:"samples"`
	Attached conversation.AttachedLocation `json:"attached"`
}

// buildContext assembles one bounded prompt block per ready location:
// the sentiment rollup plus a small sample of recent annotated
// reviews. Per-location fragments are cached and invalidated whenever
// the location's reviews change.
func (u *Chat) buildContext(ctx context.Context, ownerID string, ready []Readiness) (string, []conversation.AttachedLocation, error) {
	var sb strings.Builder
	attached := make([]conversation.AttachedLocation, 0, len(ready))

	for _, r := range ready {
		cacheKey := fmt.Sprintf("chat:context:%s:%s:v1", ownerID, r.LocationID)

		var lc locationContext
		hit := false
		if u.cache != nil {
			if ok, err := u.cache.GetJSON(ctx, cacheKey, &lc); err == nil && ok {
				hit = true
			}
		}
		if !hit {
			built, err := u.buildLocationContext(ctx, ownerID, r)
			if err != nil {
				if errors.Is(err, repository.ErrLocationNotFound) {
					continue
				}
				return "", nil, ErrInternal
			}
			lc = built
			if u.cache != nil {
				_ = u.cache.SetJSON(ctx, cacheKey, lc, chatContextCacheTTL)
			}
		}

		fmt.Fprintf(&sb, "## %s\n%s\n", lc.Name, lc.Rollup)
		for _, s := range lc.Samples {
			sb.WriteString("- " + s + "\n")
		}
		sb.WriteString("\n")
		attached = append(attached, lc.Attached)
	}

	if len(attached) == 0 {
		return "", nil, ErrNotReady
	}
	return sb.String(), attached, nil
}

func (u *Chat) buildLocationContext(ctx context.Context, ownerID string, r Readiness) (locationContext, error) {
	loc, err := u.locations.FindByIDForOwner(ctx, r.LocationID, ownerID)
	if err != nil {
		return locationContext{}, err
	}

	samples, err := u.annotations.SampleAnnotated(ctx, r.LocationID, ownerID, chatContextSampleSize)
	if err != nil {
		return locationContext{}, err
	}

	lc := locationContext{
		Name: loc.Name,
		Rollup: fmt.Sprintf(
			"Sentiment: %.1f%% positive, %.1f%% neutral, %.1f%% negative across %d analyzed reviews. Average rating %.1f/5.",
			loc.OverallSentiment.PositivePct, loc.OverallSentiment.NeutralPct, loc.OverallSentiment.NegativePct,
			loc.OverallSentiment.TotalReviews, loc.OverallSentiment.AverageRating,
		),
		Attached: conversation.AttachedLocation{
			LocationID:   loc.ID,
			Name:         loc.Name,
			TotalReviews: r.Stats.TotalReviews,
		},
	}
	for _, s := range samples {
		summary := s.Text
		if s.Annotation != nil && s.Annotation.Summary != "" {
			summary = s.Annotation.Summary
		}
		label := ""
		if s.Annotation != nil {
			label = string(s.Annotation.Sentiment)
		}
		lc.Samples = append(lc.Samples, fmt.Sprintf("[%s, %d/5] %s", label, s.Rating, sanitize.Text(summary, 300)))
	}
	return lc, nil
}

func (u *Chat) persistConversation(ctx context.Context, sessionID, ownerID, question, answer string, attached []conversation.AttachedLocation) error {
	now := time.Now().UTC()

	conv, err := u.conversations.FindBySession(ctx, sessionID, ownerID)
	if err != nil {
		if !errors.Is(err, repository.ErrConversationNotFound) {
			return err
		}
		conv = &conversation.Conversation{
			SessionID: sessionID,
			OwnerID:   ownerID,
			CreatedAt: now,
		}
	}

	conv.Messages = append(conv.Messages,
		conversation.Message{Role: "user", Content: question, Timestamp: now},
		conversation.Message{Role: "assistant", Content: answer, Timestamp: now},
	)
	conv.Locations = attached
	conv.LastActivity = now

	return u.conversations.Upsert(ctx, *conv)
}

func chatSystemPrompt(contextBlock string) string {
	return "You are a helpful assistant that answers questions about customer reviews for tracked business locations. " +
		"Ground every answer strictly in the review data below. If the data does not cover the question, say so.\n\n" +
		"# Review data\n\n" + contextBlock
}

// History returns the stored transcript for a session. Expired
// sessions read the same as unknown ones since the sweeper deletes
// them outright.
func (u *Chat) History(ctx context.Context, sessionID, ownerID string) (*conversation.Conversation, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidInput
	}
	conv, err := u.conversations.FindBySession(ctx, sessionID, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			return nil, ErrNotFound
		}
		return nil, ErrInternal
	}
	return conv, nil
}
