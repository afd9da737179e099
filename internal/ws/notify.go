package ws

import (
	"encoding/json"
	"log"
	"time"

	"review-pulse/internal/domain/location"
)

// ScrapeStatusEvent is pushed to every connected client when a scrape
// job reaches a terminal state.
type ScrapeStatusEvent struct {
	Type       string `json:"type"`
	LocationID string `json:"locationId"`
	JobID      string `json:"jobId"`
	Status     string `json:"status"`
	Timestamp  string `json:"timestamp"`
}

// StatusNotifier fans terminal scrape outcomes out over the websocket
// hub.
type StatusNotifier struct {
	hub    *Hub
	logger *log.Logger
}

func NewStatusNotifier(hub *Hub, logger *log.Logger) *StatusNotifier {
	return &StatusNotifier{hub: hub, logger: logger}
}

func (n *StatusNotifier) NotifyScrapeStatus(locationID string, status location.ScrapeStatus, jobID string) {
	if n == nil || n.hub == nil {
		return
	}

	evt := ScrapeStatusEvent{
		Type:       "scrape_status",
		LocationID: locationID,
		JobID:      jobID,
		Status:     string(status),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	b, err := json.Marshal(evt)
	if err != nil {
		return
	}

	n.hub.Broadcast(b)
	if n.logger != nil {
		n.logger.Printf("WS scrape status | location=%s job=%s status=%s", locationID, jobID, status)
	}
}
