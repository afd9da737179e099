package scrape

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"review-pulse/internal/domain/location"
	"review-pulse/internal/domain/review"
	"review-pulse/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrNoSource    = errors.New("location has no source url configured")
	ErrJobNotFound = errors.New("scrape job not found")
)

// Source fetches the raw review feed for a location. Implementations
// report progress through onProgress as pages arrive.
type Source interface {
	Fetch(ctx context.Context, loc location.Location, onProgress func(current, total int, message string)) ([]review.Review, error)
}

// Invalidator drops cached artifacts once a location's reviews change.
type Invalidator interface {
	InvalidateLocation(ctx context.Context, locationID string) error
}

// Notifier receives terminal job outcomes for out-of-band delivery
// (websocket status broadcasts). May be nil.
type Notifier interface {
	NotifyScrapeStatus(locationID string, status location.ScrapeStatus, jobID string)
}

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobScraping  JobStatus = "scraping"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job is the in-memory record of one scrape run. Terminal jobs linger
// for a retention window so late status polls and progress subscribers
// still resolve, then get swept.
type Job struct {
	ID         string     `json:"jobId"`
	LocationID string     `json:"locationId"`
	OwnerID    string     `json:"ownerId"`
	Status     JobStatus  `json:"status"`
	Progress   Progress   `json:"progress"`
	Result     *Summary   `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

type CoordinatorConfig struct {
	JobTimeout        time.Duration
	TerminalRetention time.Duration
}

// Coordinator owns the scrape job state machine. One active job per
// location at a time; starting against a busy location returns the
// existing job instead of erroring, so clients can treat start as
// idempotent.
type Coordinator struct {
	locations repository.LocationRepository
	reviews   repository.ReviewRepository
	source    Source
	hub       *Hub
	cache     Invalidator
	notifier  Notifier
	logger    *log.Logger
	cfg       CoordinatorConfig

	mu         sync.Mutex
	jobs       map[string]*Job
	byLocation map[string]string

	wg sync.WaitGroup
}

func NewCoordinator(
	locations repository.LocationRepository,
	reviews repository.ReviewRepository,
	source Source,
	hub *Hub,
	cache Invalidator,
	notifier Notifier,
	logger *log.Logger,
	cfg CoordinatorConfig,
) *Coordinator {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 15 * time.Minute
	}
	if cfg.TerminalRetention <= 0 {
		cfg.TerminalRetention = 5 * time.Minute
	}
	return &Coordinator{
		locations:  locations,
		reviews:    reviews,
		source:     source,
		hub:        hub,
		cache:      cache,
		notifier:   notifier,
		logger:     logger,
		cfg:        cfg,
		jobs:       make(map[string]*Job),
		byLocation: make(map[string]string),
	}
}

// Start launches a scrape for the location, or returns the already
// running job. The bool reports whether a new job was created.
func (c *Coordinator) Start(ctx context.Context, locationID, ownerID string) (Job, bool, error) {
	loc, err := c.locations.FindByIDForOwner(ctx, locationID, ownerID)
	if err != nil {
		return Job{}, false, err
	}
	if loc.SourceURL == "" {
		return Job{}, false, ErrNoSource
	}

	c.mu.Lock()
	if jobID, ok := c.byLocation[locationID]; ok {
		existing := c.jobs[jobID]
		snapshot := *existing
		c.mu.Unlock()
		return snapshot, false, nil
	}

	job := &Job{
		ID:         uuid.NewString(),
		LocationID: locationID,
		OwnerID:    ownerID,
		Status:     JobPending,
		StartedAt:  time.Now().UTC(),
	}
	job.Progress = Progress{StartedAt: job.StartedAt, Message: "queued"}
	c.jobs[job.ID] = job
	c.byLocation[locationID] = job.ID
	snapshot := *job
	c.mu.Unlock()

	if err := c.locations.UpdateScrapeStatus(ctx, locationID, location.StatusPending, ""); err != nil {
		c.mu.Lock()
		delete(c.jobs, job.ID)
		delete(c.byLocation, locationID)
		c.mu.Unlock()
		return Job{}, false, err
	}

	c.wg.Add(1)
	go c.run(job.ID, *loc)

	return snapshot, true, nil
}

// Status returns a snapshot of the job.
func (c *Coordinator) Status(jobID string) (Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[jobID]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return *job, nil
}

// ActiveForLocation returns the running job for a location, if any.
func (c *Coordinator) ActiveForLocation(locationID string) (Job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	jobID, ok := c.byLocation[locationID]
	if !ok {
		return Job{}, false
	}
	return *c.jobs[jobID], true
}

// Wait blocks until every in-flight job has finished. Used on
// shutdown.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) run(jobID string, loc location.Location) {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.JobTimeout)
	defer cancel()

	onProgress := func(current, total int, message string) {
		c.advance(ctx, jobID, loc.ID, current, total, message)
	}

	fetched, err := c.source.Fetch(ctx, loc, onProgress)
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("scrape timed out after %s: %w", c.cfg.JobTimeout, err)
		}
		c.fail(jobID, loc.ID, err)
		return
	}

	persistCtx, persistCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer persistCancel()

	inserted, err := c.reviews.UpsertBatch(persistCtx, fetched)
	if err != nil {
		c.fail(jobID, loc.ID, fmt.Errorf("persist reviews: %w", err))
		return
	}

	total, err := c.reviews.CountByLocation(persistCtx, loc.ID, loc.OwnerID, repository.ReviewFilter{})
	if err != nil {
		total = loc.ScrapedReviewCount + inserted
	}

	now := time.Now().UTC()
	next := nextScheduled(loc, now)
	if err := c.locations.MarkScrapeCompleted(persistCtx, loc.ID, now, next, total); err != nil {
		c.fail(jobID, loc.ID, fmt.Errorf("finalize scrape: %w", err))
		return
	}

	if c.cache != nil {
		_ = c.cache.InvalidateLocation(persistCtx, loc.ID)
	}

	summary := Summary{
		LocationID:     loc.ID,
		ReviewsScraped: len(fetched),
		NewReviews:     inserted,
		Message:        fmt.Sprintf("scraped %d reviews, %d new", len(fetched), inserted),
	}
	c.complete(jobID, loc.ID, summary)
}

// advance records forward progress. Percentage is clamped so it never
// decreases even if the source reports out of order.
func (c *Coordinator) advance(ctx context.Context, jobID, locationID string, current, total int, message string) {
	pct := 0
	if total > 0 {
		pct = current * 100 / total
	}
	if pct > 100 {
		pct = 100
	}

	c.mu.Lock()
	job, ok := c.jobs[jobID]
	if !ok || job.Status.Terminal() {
		c.mu.Unlock()
		return
	}
	firstProgress := job.Status == JobPending
	if firstProgress {
		job.Status = JobScraping
	}
	if pct < job.Progress.Percentage {
		pct = job.Progress.Percentage
	}
	job.Progress.Current = current
	job.Progress.Total = total
	job.Progress.Percentage = pct
	job.Progress.Message = message
	job.Progress.EstimatedTimeRemaining = estimateRemaining(job.Progress, time.Now().UTC())
	progress := job.Progress
	c.mu.Unlock()

	if firstProgress {
		// Best effort; the in-memory job is authoritative for streams.
		_ = c.locations.UpdateScrapeStatus(ctx, locationID, location.StatusScraping, "")
	}

	c.hub.Publish(Event{
		Type:       EventProgress,
		JobID:      jobID,
		LocationID: locationID,
		Progress:   &progress,
	})
}

func (c *Coordinator) complete(jobID, locationID string, summary Summary) {
	c.mu.Lock()
	job, ok := c.jobs[jobID]
	if !ok {
		c.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	job.Status = JobCompleted
	job.Result = &summary
	job.FinishedAt = &now
	job.Progress.Percentage = 100
	job.Progress.Message = summary.Message
	delete(c.byLocation, locationID)
	c.mu.Unlock()

	c.hub.Publish(Event{
		Type:       EventComplete,
		JobID:      jobID,
		LocationID: locationID,
		Result:     &summary,
		Message:    summary.Message,
	})
	if c.notifier != nil {
		c.notifier.NotifyScrapeStatus(locationID, location.StatusCompleted, jobID)
	}
	if c.logger != nil {
		c.logger.Printf("[Scrape] job=%s location=%s completed scraped=%d new=%d",
			jobID, locationID, summary.ReviewsScraped, summary.NewReviews)
	}
	c.sweepLater(jobID)
}

func (c *Coordinator) fail(jobID, locationID string, cause error) {
	statusCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = c.locations.UpdateScrapeStatus(statusCtx, locationID, location.StatusFailed, cause.Error())

	c.mu.Lock()
	job, ok := c.jobs[jobID]
	if !ok {
		c.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	job.Status = JobFailed
	job.Error = cause.Error()
	job.FinishedAt = &now
	delete(c.byLocation, locationID)
	c.mu.Unlock()

	c.hub.Publish(Event{
		Type:       EventFailed,
		JobID:      jobID,
		LocationID: locationID,
		Error:      cause.Error(),
	})
	if c.notifier != nil {
		c.notifier.NotifyScrapeStatus(locationID, location.StatusFailed, jobID)
	}
	if c.logger != nil {
		c.logger.Printf("[Scrape] job=%s location=%s failed: %v", jobID, locationID, cause)
	}
	c.sweepLater(jobID)
}

func (c *Coordinator) sweepLater(jobID string) {
	time.AfterFunc(c.cfg.TerminalRetention, func() {
		c.mu.Lock()
		delete(c.jobs, jobID)
		c.mu.Unlock()
		c.hub.Forget(jobID)
	})
}

func estimateRemaining(p Progress, now time.Time) string {
	if p.Current <= 0 || p.Total <= 0 || p.Current >= p.Total {
		return ""
	}
	elapsed := now.Sub(p.StartedAt)
	if elapsed <= 0 {
		return ""
	}
	perItem := elapsed / time.Duration(p.Current)
	remaining := perItem * time.Duration(p.Total-p.Current)
	return remaining.Round(time.Second).String()
}

func nextScheduled(loc location.Location, from time.Time) *time.Time {
	if !loc.ScrapeConfig.AutoScrape {
		return nil
	}
	var next time.Time
	switch loc.ScrapeConfig.Frequency {
	case location.FrequencyDaily:
		next = from.Add(24 * time.Hour)
	case location.FrequencyWeekly:
		next = from.Add(7 * 24 * time.Hour)
	default:
		return nil
	}
	return &next
}
