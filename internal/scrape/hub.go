package scrape

import (
	"log"
	"sync"
	"time"
)

const subscriberBuffer = 16

// Subscriber is one read side of a job's progress stream. Events
// arrive on C; the channel is closed by the hub after the terminal
// event, or by Unsubscribe.
type Subscriber struct {
	C chan Event

	hub   *Hub
	jobID string
	once  sync.Once
}

func (s *Subscriber) Unsubscribe() {
	if s == nil || s.hub == nil {
		return
	}
	s.hub.unsubscribe(s)
}

// Hub fans job events out to any number of subscribers. One writer
// per job (the worker goroutine), N readers, bounded per-subscriber
// buffers with drop-oldest on slow consumers so the worker never
// blocks. Late subscribers receive connected plus whatever comes next;
// past progress is not replayed. Terminal events are remembered until
// Forget so late subscribers to a finished job still learn the
// outcome.
type Hub struct {
	mu       sync.Mutex
	subs     map[string]map[*Subscriber]struct{}
	terminal map[string]Event
	logger   *log.Logger
}

func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		subs:     make(map[string]map[*Subscriber]struct{}),
		terminal: make(map[string]Event),
		logger:   logger,
	}
}

// Subscribe registers for a job's events. The connected event is
// queued immediately; if the job already ended, its terminal event
// follows and the channel is closed.
func (h *Hub) Subscribe(jobID string) *Subscriber {
	sub := &Subscriber{
		C:     make(chan Event, subscriberBuffer),
		hub:   h,
		jobID: jobID,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	sub.C <- Event{Type: EventConnected, JobID: jobID, Message: "progress stream connected", Timestamp: time.Now().UTC()}

	if term, ok := h.terminal[jobID]; ok {
		sub.C <- term
		close(sub.C)
		return sub
	}

	set, ok := h.subs[jobID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.subs[jobID] = set
	}
	set[sub] = struct{}{}
	return sub
}

func (h *Hub) unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[sub.jobID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.jobID)
	}
	sub.once.Do(func() { close(sub.C) })
}

// Publish delivers an event to every subscriber of the job. A terminal
// event is recorded, delivered, and closes all subscriber channels.
func (h *Hub) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if evt.Type.Terminal() {
		h.terminal[evt.JobID] = evt
	}

	set := h.subs[evt.JobID]
	for sub := range set {
		deliver(sub.C, evt)
	}

	if evt.Type.Terminal() {
		for sub := range set {
			sub.once.Do(func() { close(sub.C) })
		}
		delete(h.subs, evt.JobID)
		if h.logger != nil {
			h.logger.Printf("[Hub] job=%s terminal=%s subscribers=%d", evt.JobID, evt.Type, len(set))
		}
	}
}

// deliver pushes with drop-oldest semantics: a full buffer sheds its
// oldest event rather than blocking the publishing worker.
func deliver(ch chan Event, evt Event) {
	for {
		select {
		case ch <- evt:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

// Forget drops the remembered terminal event once the job record is
// swept.
func (h *Hub) Forget(jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.terminal, jobID)
}

func (h *Hub) SubscriberCount(jobID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[jobID])
}
