package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"review-pulse/internal/domain/conversation"
	"review-pulse/internal/domain/location"
	"review-pulse/internal/domain/review"
	"review-pulse/internal/repository"
	"review-pulse/internal/sentiment"
)

const (
	ownerA = "64a1b2c3d4e5f60718293a01"
	ownerB = "64a1b2c3d4e5f60718293a04"
	locA   = "64a1b2c3d4e5f60718293a02"
	locB   = "64a1b2c3d4e5f60718293a03"
)

type mockLocationRepo struct {
	locations map[string]*location.Location
	rollups   map[string]location.OverallSentiment
	analyzed  map[string]int
	err       error
}

func newMockLocationRepo(locs ...*location.Location) *mockLocationRepo {
	m := &mockLocationRepo{
		locations: make(map[string]*location.Location),
		rollups:   make(map[string]location.OverallSentiment),
		analyzed:  make(map[string]int),
	}
	for _, l := range locs {
		m.locations[l.ID] = l
	}
	return m
}

func (m *mockLocationRepo) FindByID(ctx context.Context, id string) (*location.Location, error) {
	return m.FindByIDForOwner(ctx, id, "")
}

func (m *mockLocationRepo) FindByIDForOwner(ctx context.Context, id, ownerID string) (*location.Location, error) {
	if m.err != nil {
		return nil, m.err
	}
	l, ok := m.locations[id]
	if !ok {
		return nil, repository.ErrLocationNotFound
	}
	if ownerID != "" && l.OwnerID != ownerID {
		return nil, repository.ErrLocationNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *mockLocationRepo) UpdateScrapeStatus(context.Context, string, location.ScrapeStatus, string) error {
	return nil
}

func (m *mockLocationRepo) MarkScrapeCompleted(context.Context, string, time.Time, *time.Time, int) error {
	return nil
}

func (m *mockLocationRepo) UpdateRollup(ctx context.Context, id string, rollup location.OverallSentiment, analyzedCount int) error {
	m.rollups[id] = rollup
	m.analyzed[id] = analyzedCount
	return nil
}

func (m *mockLocationRepo) ListAutoScrapeDue(context.Context, time.Time, int) ([]location.Location, error) {
	return nil, nil
}

type mockReviewRepo struct {
	byLocation map[string][]review.Review
	annotated  map[string]bool // review id -> has annotation
}

func newMockReviewRepo() *mockReviewRepo {
	return &mockReviewRepo{
		byLocation: make(map[string][]review.Review),
		annotated:  make(map[string]bool),
	}
}

func (m *mockReviewRepo) UpsertBatch(ctx context.Context, reviews []review.Review) (int, error) {
	inserted := 0
	for _, rv := range reviews {
		dup := false
		for _, existing := range m.byLocation[rv.LocationID] {
			if existing.OwnerID == rv.OwnerID && existing.ExternalReviewID == rv.ExternalReviewID {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		m.byLocation[rv.LocationID] = append(m.byLocation[rv.LocationID], rv)
		inserted++
	}
	return inserted, nil
}

func (m *mockReviewRepo) CountByLocation(ctx context.Context, locationID, ownerID string, f repository.ReviewFilter) (int, error) {
	return len(m.byLocation[locationID]), nil
}

func (m *mockReviewRepo) PageByLocation(ctx context.Context, locationID, ownerID string, f repository.ReviewFilter, s repository.ReviewSort, limit, offset int) ([]review.Review, error) {
	all := m.byLocation[locationID]
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *mockReviewRepo) PageWithAnnotations(ctx context.Context, locationID, ownerID string, f repository.ReviewFilter, s repository.ReviewSort, limit, offset int) ([]review.Annotated, error) {
	page, err := m.PageByLocation(ctx, locationID, ownerID, f, s, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]review.Annotated, 0, len(page))
	for _, rv := range page {
		out = append(out, review.Annotated{Review: rv})
	}
	return out, nil
}

func (m *mockReviewRepo) FindUnannotated(ctx context.Context, locationID, ownerID string) ([]review.Review, error) {
	var out []review.Review
	for _, rv := range m.byLocation[locationID] {
		if !m.annotated[rv.ID] {
			out = append(out, rv)
		}
	}
	return out, nil
}

func (m *mockReviewRepo) FindAllByLocation(ctx context.Context, locationID, ownerID string) ([]review.Review, error) {
	return m.byLocation[locationID], nil
}

type mockAnnotationRepo struct {
	byLocation map[string][]review.Annotation
}

func newMockAnnotationRepo() *mockAnnotationRepo {
	return &mockAnnotationRepo{byLocation: make(map[string][]review.Annotation)}
}

func (m *mockAnnotationRepo) InsertBatch(ctx context.Context, annotations []review.Annotation) (int, error) {
	inserted := 0
	for _, a := range annotations {
		dup := false
		for _, existing := range m.byLocation[a.LocationID] {
			if existing.ReviewID == a.ReviewID {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		m.byLocation[a.LocationID] = append(m.byLocation[a.LocationID], a)
		inserted++
	}
	return inserted, nil
}

func (m *mockAnnotationRepo) DeleteByLocation(ctx context.Context, locationID, ownerID string) (int64, error) {
	n := int64(len(m.byLocation[locationID]))
	delete(m.byLocation, locationID)
	return n, nil
}

func (m *mockAnnotationRepo) CountByLocation(ctx context.Context, locationID, ownerID string) (int, error) {
	return len(m.byLocation[locationID]), nil
}

func (m *mockAnnotationRepo) CountAnnotated(ctx context.Context, locationID, ownerID string, s review.Sentiment, f repository.ReviewFilter) (int, error) {
	n := 0
	for _, a := range m.byLocation[locationID] {
		if s == "" || a.Sentiment == s {
			n++
		}
	}
	return n, nil
}

func (m *mockAnnotationRepo) PageAnnotated(ctx context.Context, locationID, ownerID string, s review.Sentiment, f repository.ReviewFilter, srt repository.ReviewSort, limit, offset int) ([]review.Annotated, error) {
	var out []review.Annotated
	for _, a := range m.byLocation[locationID] {
		if s != "" && a.Sentiment != s {
			continue
		}
		ann := a
		out = append(out, review.Annotated{
			Review:     review.Review{ID: a.ReviewID, OwnerID: a.OwnerID, LocationID: a.LocationID},
			Annotation: &ann,
		})
	}
	if offset >= len(out) {
		return []review.Annotated{}, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

func (m *mockAnnotationRepo) SampleAnnotated(ctx context.Context, locationID, ownerID string, limit int) ([]review.Annotated, error) {
	return m.PageAnnotated(ctx, locationID, ownerID, "", repository.ReviewFilter{}, repository.ReviewSort{}, limit, 0)
}

func (m *mockAnnotationRepo) AggregateByLocation(ctx context.Context, locationID, ownerID string) (repository.RollupSource, error) {
	src := repository.RollupSource{}
	for _, a := range m.byLocation[locationID] {
		switch a.Sentiment {
		case review.SentimentPositive:
			src.Positive++
		case review.SentimentNeutral:
			src.Neutral++
		case review.SentimentNegative:
			src.Negative++
		}
	}
	return src, nil
}

type mockConversationRepo struct {
	mu      sync.Mutex
	byID    map[string]conversation.Conversation
	upserts int
}

func newMockConversationRepo() *mockConversationRepo {
	return &mockConversationRepo{byID: make(map[string]conversation.Conversation)}
}

func (m *mockConversationRepo) FindBySession(ctx context.Context, sessionID, ownerID string) (*conversation.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.byID[sessionID]
	if !ok || conv.OwnerID != ownerID {
		return nil, repository.ErrConversationNotFound
	}
	cp := conv
	return &cp, nil
}

func (m *mockConversationRepo) Upsert(ctx context.Context, conv conversation.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[conv.SessionID] = conv
	m.upserts++
	return nil
}

func (m *mockConversationRepo) DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, conv := range m.byID {
		if conv.LastActivity.Before(cutoff) {
			delete(m.byID, id)
			n++
		}
	}
	return n, nil
}

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	hits int
	sets int
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	if !ok {
		return false, nil
	}
	m.hits++
	return true, json.Unmarshal(b, out)
}

func (m *mockCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = b
	m.sets++
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *mockCache) SetIfNotExists(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = []byte(value)
	return true, nil
}

func (m *mockCache) InvalidateLocation(ctx context.Context, locationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.data {
		delete(m.data, k)
	}
	return nil
}

type mockProcessor struct {
	failEvery int
	calls     int
}

func (m *mockProcessor) Process(ctx context.Context, reviews []review.Review) sentiment.Outcome {
	out := sentiment.Outcome{}
	for i, rv := range reviews {
		m.calls++
		if m.failEvery > 0 && (i+1)%m.failEvery == 0 {
			out.Failed++
			continue
		}
		label := review.SentimentPositive
		if rv.Rating <= 2 {
			label = review.SentimentNegative
		} else if rv.Rating == 3 {
			label = review.SentimentNeutral
		}
		out.Succeeded++
		out.Annotations = append(out.Annotations, review.Annotation{
			ID:          "a" + rv.ID[1:],
			ReviewID:    rv.ID,
			OwnerID:     rv.OwnerID,
			LocationID:  rv.LocationID,
			Sentiment:   label,
			Score:       0.5,
			Confidence:  0.9,
			ProcessedAt: time.Now().UTC(),
		})
	}
	return out
}

type mockChatModel struct {
	lastSystem string
	lastTurns  []sentiment.ChatTurn
	response   string
	err        error
}

func (m *mockChatModel) Complete(ctx context.Context, system string, turns []sentiment.ChatTurn) (string, error) {
	m.lastSystem = system
	m.lastTurns = turns
	if m.err != nil {
		return "", m.err
	}
	if m.response == "" {
		return "Here is what the reviews say.", nil
	}
	return m.response, nil
}
