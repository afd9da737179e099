package scrape

import (
	"context"
	"log"
	"time"

	"review-pulse/internal/domain/conversation"
	"review-pulse/internal/repository"

	"github.com/robfig/cron/v3"
)

const (
	defaultScheduleSpec = "@every 1h"
	sweepBatchLimit     = 25
)

// Scheduler drives the background cadence: launching auto-scrape runs
// for due locations and expiring idle conversations.
type Scheduler struct {
	coordinator   *Coordinator
	locations     repository.LocationRepository
	conversations repository.ConversationRepository
	logger        *log.Logger
	cron          *cron.Cron
}

func NewScheduler(
	coordinator *Coordinator,
	locations repository.LocationRepository,
	conversations repository.ConversationRepository,
	logger *log.Logger,
) *Scheduler {
	return &Scheduler{
		coordinator:   coordinator,
		locations:     locations,
		conversations: conversations,
		logger:        logger,
		cron:          cron.New(),
	}
}

func (s *Scheduler) Start(spec string) error {
	if spec == "" {
		spec = defaultScheduleSpec
	}
	if _, err := s.cron.AddFunc(spec, s.runAutoScrape); err != nil {
		return err
	}
	// Conversation retention is coarse; a daily sweep is enough.
	if _, err := s.cron.AddFunc("@every 24h", s.sweepConversations); err != nil {
		return err
	}
	s.cron.Start()
	if s.logger != nil {
		s.logger.Printf("[Scheduler] started spec=%s", spec)
	}
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runAutoScrape() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	due, err := s.locations.ListAutoScrapeDue(ctx, time.Now().UTC(), sweepBatchLimit)
	if err != nil {
		if s.logger != nil {
			s.logger.Printf("[Scheduler] list due locations: %v", err)
		}
		return
	}

	for _, loc := range due {
		job, started, err := s.coordinator.Start(ctx, loc.ID, loc.OwnerID)
		if err != nil {
			if s.logger != nil {
				s.logger.Printf("[Scheduler] auto-scrape location=%s: %v", loc.ID, err)
			}
			continue
		}
		if started && s.logger != nil {
			s.logger.Printf("[Scheduler] auto-scrape location=%s job=%s", loc.ID, job.ID)
		}
	}
}

func (s *Scheduler) sweepConversations() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().Add(-conversation.RetentionPeriod)
	deleted, err := s.conversations.DeleteIdleBefore(ctx, cutoff)
	if err != nil {
		if s.logger != nil {
			s.logger.Printf("[Scheduler] conversation sweep: %v", err)
		}
		return
	}
	if deleted > 0 && s.logger != nil {
		s.logger.Printf("[Scheduler] expired %d idle conversations", deleted)
	}
}
