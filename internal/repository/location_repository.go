package repository

import (
	"context"
	"errors"
	"time"

	"review-pulse/internal/database"
	"review-pulse/internal/domain/location"
)

var ErrLocationNotFound = errors.New("location not found")

type LocationRepository interface {
	FindByID(ctx context.Context, id string) (*location.Location, error)
	FindByIDForOwner(ctx context.Context, id, ownerID string) (*location.Location, error)
	UpdateScrapeStatus(ctx context.Context, id string, status location.ScrapeStatus, scrapeErr string) error
	MarkScrapeCompleted(ctx context.Context, id string, lastScraped time.Time, nextScheduled *time.Time, scrapedCount int) error
	UpdateRollup(ctx context.Context, id string, rollup location.OverallSentiment, analyzedCount int) error
	ListAutoScrapeDue(ctx context.Context, now time.Time, limit int) ([]location.Location, error)
}

type PostgresLocationRepository struct {
	db database.DB
}

func NewPostgresLocationRepository(db database.DB) *PostgresLocationRepository {
	return &PostgresLocationRepository{db: db}
}

const locationColumns = `id, owner_id, name, place_id, source_url, scrape_status, last_scrape_error,
	auto_scrape, scrape_frequency, last_scraped, next_scheduled,
	scraped_review_count, analyzed_review_count,
	positive_pct, neutral_pct, negative_pct, average_rating, rollup_total_reviews, rollup_calculated_at,
	created_at, updated_at`

func scanLocation(row database.Row) (*location.Location, error) {
	var l location.Location
	var status, frequency string
	if err := row.Scan(
		&l.ID, &l.OwnerID, &l.Name, &l.PlaceID, &l.SourceURL, &status, &l.LastScrapeError,
		&l.ScrapeConfig.AutoScrape, &frequency, &l.ScrapeConfig.LastScraped, &l.ScrapeConfig.NextScheduled,
		&l.ScrapedReviewCount, &l.AnalyzedReviewCount,
		&l.OverallSentiment.PositivePct, &l.OverallSentiment.NeutralPct, &l.OverallSentiment.NegativePct,
		&l.OverallSentiment.AverageRating, &l.OverallSentiment.TotalReviews, &l.OverallSentiment.LastCalculated,
		&l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	l.ScrapeStatus = location.ScrapeStatus(status)
	l.ScrapeConfig.Frequency = location.ScrapeFrequency(frequency)
	return &l, nil
}

func (r *PostgresLocationRepository) FindByID(ctx context.Context, id string) (*location.Location, error) {
	row := r.db.QueryRow(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = $1`, id)
	l, err := scanLocation(row)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrLocationNotFound
		}
		return nil, err
	}
	return l, nil
}

func (r *PostgresLocationRepository) FindByIDForOwner(ctx context.Context, id, ownerID string) (*location.Location, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+locationColumns+` FROM locations WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	)
	l, err := scanLocation(row)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrLocationNotFound
		}
		return nil, err
	}
	return l, nil
}

func (r *PostgresLocationRepository) UpdateScrapeStatus(ctx context.Context, id string, status location.ScrapeStatus, scrapeErr string) error {
	n, err := r.db.Exec(ctx,
		`UPDATE locations
		 SET scrape_status = $2, last_scrape_error = $3, updated_at = now()
		 WHERE id = $1`,
		id, string(status), scrapeErr,
	)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLocationNotFound
	}
	return nil
}

func (r *PostgresLocationRepository) MarkScrapeCompleted(ctx context.Context, id string, lastScraped time.Time, nextScheduled *time.Time, scrapedCount int) error {
	n, err := r.db.Exec(ctx,
		`UPDATE locations
		 SET scrape_status = 'completed',
		     last_scrape_error = '',
		     last_scraped = $2,
		     next_scheduled = $3,
		     scraped_review_count = $4,
		     updated_at = now()
		 WHERE id = $1`,
		id, lastScraped, nextScheduled, scrapedCount,
	)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLocationNotFound
	}
	return nil
}

func (r *PostgresLocationRepository) UpdateRollup(ctx context.Context, id string, rollup location.OverallSentiment, analyzedCount int) error {
	n, err := r.db.Exec(ctx,
		`UPDATE locations
		 SET positive_pct = $2, neutral_pct = $3, negative_pct = $4,
		     average_rating = $5, rollup_total_reviews = $6, rollup_calculated_at = $7,
		     analyzed_review_count = $8,
		     updated_at = now()
		 WHERE id = $1`,
		id, rollup.PositivePct, rollup.NeutralPct, rollup.NegativePct,
		rollup.AverageRating, rollup.TotalReviews, rollup.LastCalculated,
		analyzedCount,
	)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLocationNotFound
	}
	return nil
}

func (r *PostgresLocationRepository) ListAutoScrapeDue(ctx context.Context, now time.Time, limit int) ([]location.Location, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+locationColumns+`
		 FROM locations
		 WHERE auto_scrape = TRUE
		   AND source_url <> ''
		   AND scrape_status NOT IN ('pending','scraping')
		   AND (next_scheduled IS NULL OR next_scheduled <= $1)
		 ORDER BY next_scheduled NULLS FIRST
		 LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]location.Location, 0)
	for rows.Next() {
		l, err := scanLocation(rowsAsRow{rows})
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// rowsAsRow lets the shared scan helper work over both QueryRow and
// iterated Query results.
type rowsAsRow struct {
	rows database.Rows
}

func (r rowsAsRow) Scan(dest ...any) error {
	return r.rows.Scan(dest...)
}
