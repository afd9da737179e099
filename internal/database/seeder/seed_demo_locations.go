package seeder

import (
	"context"
	"fmt"
	"time"

	"review-pulse/internal/database"
	"review-pulse/internal/database/schema"
)

// DemoOwnerID is the owner every demo row belongs to. Tokens minted
// for it in development resolve real data without any signup flow.
const DemoOwnerID = "64b000000000000000000001"

type DemoLocationsSeeder struct{}

func (DemoLocationsSeeder) Name() string { return "demo_locations" }

// Run inserts a demo owner's locations plus a handful of reviews so a
// fresh environment has something to list, analyze, and chat about.
func (DemoLocationsSeeder) Run(ctx context.Context, db database.DB) error {
	if err := schema.EnsureTableColumns(ctx, db, "locations", "id", "owner_id", "name", "source_url", "scrape_status"); err != nil {
		return err
	}
	if err := schema.EnsureTableColumns(ctx, db, "reviews", "id", "owner_id", "location_id", "external_review_id", "rating"); err != nil {
		return err
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(context.Background())
	}()

	locations := []struct {
		ID        string
		Name      string
		PlaceID   string
		SourceURL string
	}{
		{ID: "64b000000000000000000101", Name: "Kopi Senja", PlaceID: "demo-kopi-senja", SourceURL: "https://reviews.example.com/feeds/kopi-senja"},
		{ID: "64b000000000000000000102", Name: "Warung Laut", PlaceID: "demo-warung-laut", SourceURL: "https://reviews.example.com/feeds/warung-laut"},
	}
	for _, l := range locations {
		_, err := tx.Exec(
			ctx,
			`INSERT INTO locations (id, owner_id, name, place_id, source_url) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`,
			l.ID, DemoOwnerID, l.Name, l.PlaceID, l.SourceURL,
		)
		if err != nil {
			return err
		}
	}

	reviews := []struct {
		ID       string
		Location string
		External string
		Author   string
		Rating   int
		Text     string
	}{
		{ID: "64b000000000000000000201", Location: "64b000000000000000000101", External: "demo-r1", Author: "Dina", Rating: 5, Text: "Best pour-over in the neighborhood, staff remembers your order."},
		{ID: "64b000000000000000000202", Location: "64b000000000000000000101", External: "demo-r2", Author: "Raka", Rating: 2, Text: "Waited twenty minutes for a latte, tables were sticky."},
		{ID: "64b000000000000000000203", Location: "64b000000000000000000101", External: "demo-r3", Author: "Sari", Rating: 4, Text: "Good pastries, wifi drops during peak hours."},
		{ID: "64b000000000000000000204", Location: "64b000000000000000000102", External: "demo-r4", Author: "Budi", Rating: 5, Text: "Grilled fish was outstanding, generous portions."},
	}
	for _, r := range reviews {
		_, err := tx.Exec(
			ctx,
			`INSERT INTO reviews (id, owner_id, location_id, external_review_id, author, rating, text, published_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (owner_id, external_review_id) DO NOTHING`,
			r.ID, DemoOwnerID, r.Location, r.External, r.Author, r.Rating, r.Text, time.Now().UTC().Add(-30*24*time.Hour),
		)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
