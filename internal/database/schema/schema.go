package schema

import (
	"context"
	"fmt"
	"log"
	"strings"

	"review-pulse/internal/database"
)

var ddl = []string{
	`CREATE TABLE IF NOT EXISTS locations (
		id CHAR(24) PRIMARY KEY,
		owner_id CHAR(24) NOT NULL,
		name TEXT NOT NULL,
		place_id TEXT NOT NULL DEFAULT '',
		source_url TEXT NOT NULL DEFAULT '',
		scrape_status TEXT NOT NULL DEFAULT 'idle',
		last_scrape_error TEXT NOT NULL DEFAULT '',
		auto_scrape BOOLEAN NOT NULL DEFAULT FALSE,
		scrape_frequency TEXT NOT NULL DEFAULT 'manual',
		last_scraped TIMESTAMPTZ,
		next_scheduled TIMESTAMPTZ,
		scraped_review_count INTEGER NOT NULL DEFAULT 0,
		analyzed_review_count INTEGER NOT NULL DEFAULT 0,
		positive_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
		neutral_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
		negative_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
		average_rating DOUBLE PRECISION NOT NULL DEFAULT 0,
		rollup_total_reviews INTEGER NOT NULL DEFAULT 0,
		rollup_calculated_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_locations_owner ON locations (owner_id)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id CHAR(24) PRIMARY KEY,
		owner_id CHAR(24) NOT NULL,
		location_id CHAR(24) NOT NULL REFERENCES locations(id),
		external_review_id TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT 'Anonymous',
		rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
		text TEXT NOT NULL DEFAULT '',
		published_at TIMESTAMPTZ NOT NULL,
		scraped_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reviews_location ON reviews (location_id, published_at DESC)`,
	`CREATE TABLE IF NOT EXISTS review_annotations (
		id CHAR(24) PRIMARY KEY,
		review_id CHAR(24) NOT NULL REFERENCES reviews(id) ON DELETE CASCADE,
		owner_id CHAR(24) NOT NULL,
		location_id CHAR(24) NOT NULL,
		sentiment TEXT NOT NULL CHECK (sentiment IN ('positive','neutral','negative')),
		score DOUBLE PRECISION NOT NULL DEFAULT 0,
		confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
		keywords TEXT[] NOT NULL DEFAULT '{}',
		topics TEXT[] NOT NULL DEFAULT '{}',
		summary TEXT NOT NULL DEFAULT '',
		processed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (review_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_annotations_location ON review_annotations (location_id, sentiment)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		session_id TEXT PRIMARY KEY,
		owner_id CHAR(24) NOT NULL,
		messages JSONB NOT NULL DEFAULT '[]',
		locations JSONB NOT NULL DEFAULT '[]',
		last_activity TIMESTAMPTZ NOT NULL DEFAULT now(),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_activity ON conversations (last_activity)`,
}

// criticalColumns are the columns the repositories cannot run without.
// Checked after DDL so a renamed or externally altered column fails the
// boot instead of surfacing as scan errors later.
var criticalColumns = map[string][]string{
	"locations":          {"id", "owner_id", "name", "source_url", "scrape_status", "scraped_review_count", "analyzed_review_count"},
	"reviews":            {"id", "owner_id", "location_id", "external_review_id", "rating", "published_at"},
	"review_annotations": {"id", "review_id", "owner_id", "location_id", "sentiment"},
	"conversations":      {"session_id", "owner_id", "messages", "last_activity"},
}

// Ensure creates missing tables, runs the review-uniqueness migration,
// and verifies the critical columns exist. Safe to run on every
// startup.
func Ensure(ctx context.Context, db database.DB, logger *log.Logger) error {
	if db == nil {
		return fmt.Errorf("nil db")
	}
	for _, stmt := range ddl {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}
	if err := migrateReviewUniqueness(ctx, db, logger); err != nil {
		return err
	}
	for table, cols := range criticalColumns {
		if err := EnsureTableColumns(ctx, db, table, cols...); err != nil {
			return err
		}
	}
	return nil
}

// migrateReviewUniqueness replaces the legacy global unique index on
// external_review_id with the compound (owner_id, external_review_id)
// one. The global constraint silently dropped the second owner's copy
// of a shared review. Both steps tolerate already-exists / not-found
// outcomes so the migration is re-runnable.
func migrateReviewUniqueness(ctx context.Context, db database.DB, logger *log.Logger) error {
	if _, err := db.Exec(ctx, `DROP INDEX IF EXISTS uq_reviews_external_review_id`); err != nil {
		if !benignMigrationError(err) {
			return fmt.Errorf("drop legacy review index: %w", err)
		}
		if logger != nil {
			logger.Printf("schema: legacy review index already gone: %v", err)
		}
	}

	if _, err := db.Exec(ctx,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_reviews_owner_external
		 ON reviews (owner_id, external_review_id)`,
	); err != nil {
		if !benignMigrationError(err) {
			return fmt.Errorf("create compound review index: %w", err)
		}
		if logger != nil {
			logger.Printf("schema: compound review index already present: %v", err)
		}
	}
	return nil
}

func benignMigrationError(err error) bool {
	if err == nil {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "does not exist")
}

// EnsureTableColumns guards against drift between the code and an
// externally managed database.
func EnsureTableColumns(ctx context.Context, db database.DB, table string, columns ...string) error {
	if db == nil {
		return fmt.Errorf("nil db")
	}
	if table == "" {
		return fmt.Errorf("empty table")
	}

	rows, err := db.Query(
		ctx,
		`SELECT column_name FROM information_schema.columns WHERE table_schema='public' AND table_name=$1`,
		table,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	existing := map[string]struct{}{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return err
		}
		existing[c] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, col := range columns {
		if _, ok := existing[col]; !ok {
			return fmt.Errorf("schema mismatch: missing column %s.%s", table, col)
		}
	}
	return nil
}
