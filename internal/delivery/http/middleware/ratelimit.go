package middleware

import (
	"log"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
)

// Rate limit classes. Each logical endpoint class gets an independent
// fixed 60-second window per client address.
const (
	ClassSentiment = "sentiment"
	ClassBatch     = "batch"
	ClassChatbot   = "chatbot"
	ClassReadiness = "readiness"
	ClassStrict    = "strict"
	ClassRead      = "read"
	ClassGeneral   = "general"
)

const rateWindow = 60 * time.Second

var classLimits = map[string]int{
	ClassSentiment: 100,
	ClassBatch:     5,
	ClassChatbot:   10,
	ClassReadiness: 50,
	ClassStrict:    5,
	ClassRead:      100,
	ClassGeneral:   200,
}

type window struct {
	count   int
	resetAt time.Time
}

// RateLimiter rejects excess traffic before any downstream work
// begins. Counters are in-memory and per-process; this is
// backpressure, not distributed quota accounting.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	logger  *log.Logger
	now     func() time.Time
}

func NewRateLimiter(logger *log.Logger) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*window),
		logger:  logger,
		now:     time.Now,
	}
}

// Allow counts one request against the class window for the key and
// reports whether it is admitted.
func (r *RateLimiter) Allow(class, key string) bool {
	limit, ok := classLimits[class]
	if !ok {
		limit = classLimits[ClassGeneral]
	}

	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	wkey := class + ":" + key
	w, ok := r.windows[wkey]
	if !ok || now.After(w.resetAt) {
		r.windows[wkey] = &window{count: 1, resetAt: now.Add(rateWindow)}
		return true
	}
	if w.count >= limit {
		return false
	}
	w.count++
	return true
}

// Limit returns a middleware enforcing the class limit for the
// request's client address.
func (r *RateLimiter) Limit(class string) fiber.Handler {
	return func(c fiber.Ctx) error {
		if r.Allow(class, c.IP()) {
			return c.Next()
		}
		if r.logger != nil {
			r.logger.Printf("[RateLimit] class=%s ip=%s rejected", class, c.IP())
		}
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":      "Too many requests. Please try again later.",
			"retryAfter": 60,
		})
	}
}

// Sweep drops expired windows. Called periodically so idle clients do
// not accumulate.
func (r *RateLimiter) Sweep() {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, w := range r.windows {
		if now.After(w.resetAt) {
			delete(r.windows, key)
		}
	}
}

// StartSweeper sweeps on an interval until stop is closed.
func (r *RateLimiter) StartSweeper(stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(rateWindow)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				r.Sweep()
			}
		}
	}()
}
