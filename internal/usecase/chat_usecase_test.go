package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"review-pulse/internal/domain/location"
	"review-pulse/internal/pkg/sanitize"
)

func chatFixture(t *testing.T) (*Chat, *mockConversationRepo, *mockChatModel) {
	t.Helper()

	locations := newMockLocationRepo(
		&location.Location{
			ID: locA, OwnerID: ownerA, Name: "Cafe",
			OverallSentiment: location.OverallSentiment{PositivePct: 70, NeutralPct: 20, NegativePct: 10, AverageRating: 4.2, TotalReviews: 10},
		},
		&location.Location{ID: locB, OwnerID: ownerA, Name: "Bar"},
	)
	reviews := newMockReviewRepo()
	annotations := newMockAnnotationRepo()
	// locA is fully analyzed; locB has nothing.
	seedReviews(reviews, locA, 10)
	seedAnnotations(annotations, locA, 7, 2, 1)

	readiness := NewReadinessUsecase(locations, reviews, annotations, nil, nil)
	conversations := newMockConversationRepo()
	model := &mockChatModel{}

	uc := NewChatUsecase(readiness, locations, annotations, conversations, model, nil, nil)
	return uc, conversations, model
}

func TestChat_AnswersWithReadyLocation(t *testing.T) {
	uc, conversations, model := chatFixture(t)

	res, err := uc.Chat(context.Background(), ownerA, ChatParams{
		Message:     "How is the coffee?",
		LocationIDs: []string{locA},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if res.Response == "" || res.SessionID == "" {
		t.Fatalf("result = %+v", res)
	}
	if len(res.AttachedLocations) != 1 || res.AttachedLocations[0].LocationID != locA {
		t.Fatalf("attachedLocations = %+v", res.AttachedLocations)
	}
	if !strings.Contains(model.lastSystem, "Cafe") {
		t.Fatal("location context missing from system prompt")
	}
	if conversations.upserts != 1 {
		t.Fatalf("conversation upserts = %d, want 1", conversations.upserts)
	}
}

func TestChat_NotReadyLocationsAreSurfacedNotDropped(t *testing.T) {
	uc, _, _ := chatFixture(t)

	res, err := uc.Chat(context.Background(), ownerA, ChatParams{
		Message:     "Compare these two places",
		LocationIDs: []string{locA, locB},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(res.AttachedLocations) != 1 {
		t.Fatalf("attachedLocations = %+v, want only the ready one", res.AttachedLocations)
	}
	if len(res.ExcludedLocations) != 1 || res.ExcludedLocations[0].LocationID != locB {
		t.Fatalf("excludedLocations = %+v, want locB with a reason", res.ExcludedLocations)
	}
	if res.ExcludedLocations[0].Reason == "" {
		t.Fatal("excluded location carries no reason")
	}
	if res.Metadata.LocationsRequested != 2 || res.Metadata.LocationsUsed != 1 {
		t.Fatalf("metadata = %+v", res.Metadata)
	}
}

func TestChat_AllLocationsUnreadyFails(t *testing.T) {
	uc, _, _ := chatFixture(t)

	_, err := uc.Chat(context.Background(), ownerA, ChatParams{
		Message:     "Anything?",
		LocationIDs: []string{locB},
	})
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}
}

func TestChat_RejectsElevenLocations(t *testing.T) {
	uc, _, model := chatFixture(t)

	ids := make([]string, 11)
	for i := range ids {
		ids[i] = ids24(i + 1)
	}
	_, err := uc.Chat(context.Background(), ownerA, ChatParams{Message: "hi", LocationIDs: ids})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if model.lastSystem != "" {
		t.Fatal("context was built despite validation failure")
	}
}

func TestChat_RejectsEmptyAndMaliciousMessages(t *testing.T) {
	uc, _, _ := chatFixture(t)

	if _, err := uc.Chat(context.Background(), ownerA, ChatParams{Message: "  ", LocationIDs: []string{locA}}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty message err = %v, want ErrInvalidInput", err)
	}
	if _, err := uc.Chat(context.Background(), ownerA, ChatParams{Message: "<script>alert(1)</script>", LocationIDs: []string{locA}}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("malicious message err = %v, want ErrInvalidInput", err)
	}
}

func TestChat_ContinuesExistingSession(t *testing.T) {
	uc, conversations, _ := chatFixture(t)

	first, err := uc.Chat(context.Background(), ownerA, ChatParams{
		Message:     "How is the coffee?",
		LocationIDs: []string{locA},
	})
	if err != nil {
		t.Fatalf("first Chat: %v", err)
	}

	second, err := uc.Chat(context.Background(), ownerA, ChatParams{
		Message:     "And the service?",
		LocationIDs: []string{locA},
		SessionID:   first.SessionID,
		ConversationHistory: []sanitize.HistoryEntry{
			{Role: "user", Content: "How is the coffee?"},
			{Role: "assistant", Content: first.Response},
		},
	})
	if err != nil {
		t.Fatalf("second Chat: %v", err)
	}
	if second.SessionID != first.SessionID {
		t.Fatalf("sessionID changed: %s vs %s", second.SessionID, first.SessionID)
	}

	conv, err := conversations.FindBySession(context.Background(), first.SessionID, ownerA)
	if err != nil {
		t.Fatalf("FindBySession: %v", err)
	}
	if len(conv.Messages) != 4 {
		t.Fatalf("conversation has %d messages, want 4", len(conv.Messages))
	}
}

func TestChat_ModelFailureIsExternalError(t *testing.T) {
	uc, _, model := chatFixture(t)
	model.err = errors.New("upstream down")

	_, err := uc.Chat(context.Background(), ownerA, ChatParams{
		Message:     "hello",
		LocationIDs: []string{locA},
	})
	if !errors.Is(err, ErrExternal) {
		t.Fatalf("err = %v, want ErrExternal", err)
	}
}
