package main

import (
	"context"
	"flag"
	"log"
	"time"

	"review-pulse/internal/app"
	"review-pulse/internal/config"
	"review-pulse/internal/pkg/ids"
	"review-pulse/internal/scrape"
)

// One-shot scrape runner for operations. Bypasses HTTP and streams
// progress to stdout.
func main() {
	locationID := flag.String("location", "", "location id (24 hex chars)")
	ownerID := flag.String("owner", "", "owner id (24 hex chars)")
	timeout := flag.Duration("timeout", 20*time.Minute, "overall run timeout")
	flag.Parse()

	if !ids.IsValid(*locationID) || !ids.IsValid(*ownerID) {
		log.Fatalf("provide -location and -owner as 24-char hex ids")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	c, err := app.NewContainer(cfg, log.Default())
	if err != nil {
		log.Fatalf("failed to init container: %v", err)
	}
	defer func() {
		_ = c.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	job, created, err := c.Coordinator.Start(ctx, *locationID, *ownerID)
	if err != nil {
		log.Fatalf("start scrape failed: %v", err)
	}
	if !created {
		log.Printf("scrape already running job=%s", job.ID)
	}

	sub := c.Hub.Subscribe(job.ID)
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			log.Fatalf("timed out waiting for job %s", job.ID)
		case evt, ok := <-sub.C:
			if !ok {
				return
			}
			switch evt.Type {
			case scrape.EventProgress:
				if evt.Progress != nil {
					log.Printf("progress %d%% (%d/%d) %s", evt.Progress.Percentage, evt.Progress.Current, evt.Progress.Total, evt.Progress.Message)
				}
			case scrape.EventComplete:
				if evt.Result != nil {
					log.Printf("completed: %d scraped, %d new", evt.Result.ReviewsScraped, evt.Result.NewReviews)
				}
				return
			case scrape.EventFailed:
				log.Fatalf("job failed: %s", evt.Error)
			}
		}
	}
}
