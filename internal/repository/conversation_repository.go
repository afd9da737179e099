package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"review-pulse/internal/database"
	"review-pulse/internal/domain/conversation"
)

var ErrConversationNotFound = errors.New("conversation not found")

type ConversationRepository interface {
	FindBySession(ctx context.Context, sessionID, ownerID string) (*conversation.Conversation, error)
	Upsert(ctx context.Context, conv conversation.Conversation) error
	// DeleteIdleBefore implements the 30-day retention sweep.
	DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type PostgresConversationRepository struct {
	db database.DB
}

func NewPostgresConversationRepository(db database.DB) *PostgresConversationRepository {
	return &PostgresConversationRepository{db: db}
}

func (r *PostgresConversationRepository) FindBySession(ctx context.Context, sessionID, ownerID string) (*conversation.Conversation, error) {
	row := r.db.QueryRow(ctx,
		`SELECT session_id, owner_id, messages, locations, last_activity, created_at
		 FROM conversations
		 WHERE session_id = $1 AND owner_id = $2`,
		sessionID, ownerID,
	)

	var conv conversation.Conversation
	var messages, locations []byte
	if err := row.Scan(&conv.SessionID, &conv.OwnerID, &messages, &locations, &conv.LastActivity, &conv.CreatedAt); err != nil {
		if isNoRows(err) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(messages, &conv.Messages); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(locations, &conv.Locations); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *PostgresConversationRepository) Upsert(ctx context.Context, conv conversation.Conversation) error {
	messages, err := json.Marshal(conv.Messages)
	if err != nil {
		return err
	}
	locations, err := json.Marshal(conv.Locations)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO conversations (session_id, owner_id, messages, locations, last_activity, created_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 ON CONFLICT (session_id) DO UPDATE
		 SET messages = EXCLUDED.messages,
		     locations = EXCLUDED.locations,
		     last_activity = EXCLUDED.last_activity`,
		conv.SessionID, conv.OwnerID, messages, locations, conv.LastActivity,
	)
	return err
}

func (r *PostgresConversationRepository) DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.db.Exec(ctx, `DELETE FROM conversations WHERE last_activity < $1`, cutoff)
}
