package scrape

import "time"

type EventType string

const (
	EventConnected EventType = "connected"
	EventProgress  EventType = "progress"
	EventComplete  EventType = "complete"
	EventFailed    EventType = "failed"
)

func (t EventType) Terminal() bool {
	return t == EventComplete || t == EventFailed
}

// Progress is the transient per-job snapshot. Percentage never
// decreases over the life of a job.
type Progress struct {
	Current                int       `json:"current"`
	Total                  int       `json:"total"`
	Percentage             int       `json:"percentage"`
	EstimatedTimeRemaining string    `json:"estimatedTimeRemaining,omitempty"`
	StartedAt              time.Time `json:"startedAt"`
	Message                string    `json:"message,omitempty"`
}

// Summary is the final result carried by a complete event.
type Summary struct {
	LocationID     string `json:"locationId"`
	ReviewsScraped int    `json:"reviewsScraped"`
	NewReviews     int    `json:"newReviews"`
	Message        string `json:"message"`
}

type Event struct {
	Type       EventType `json:"type"`
	JobID      string    `json:"jobId"`
	LocationID string    `json:"locationId,omitempty"`
	Progress   *Progress `json:"progress,omitempty"`
	Result     *Summary  `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
	Message    string    `json:"message,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
