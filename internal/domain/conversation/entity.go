package conversation

import "time"

type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type AttachedLocation struct {
	LocationID   string `json:"locationId"`
	Name         string `json:"name"`
	TotalReviews int    `json:"totalReviews"`
}

// Conversation is the persisted chat session. Records idle for more
// than RetentionPeriod are swept by the storage lifecycle job.
type Conversation struct {
	SessionID    string             `json:"sessionId"`
	OwnerID      string             `json:"ownerId"`
	Messages     []Message          `json:"messages"`
	Locations    []AttachedLocation `json:"locations"`
	LastActivity time.Time          `json:"lastActivity"`
	CreatedAt    time.Time          `json:"createdAt"`
}

const RetentionPeriod = 30 * 24 * time.Hour
