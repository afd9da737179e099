package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"review-pulse/internal/database"
	"review-pulse/internal/domain/review"
)

// ReviewFilter narrows listing queries over whichever source is in
// effect. Zero values mean "no filter".
type ReviewFilter struct {
	Rating int
	Search string
}

type ReviewSort struct {
	By    string // published_at | rating | scraped_at
	Order string // asc | desc
}

type ReviewRepository interface {
	// UpsertBatch inserts new reviews and silently no-ops on
	// (owner_id, external_review_id) collisions, making re-scrapes
	// idempotent. Returns the number of newly inserted rows.
	UpsertBatch(ctx context.Context, reviews []review.Review) (int, error)
	CountByLocation(ctx context.Context, locationID, ownerID string, f ReviewFilter) (int, error)
	PageByLocation(ctx context.Context, locationID, ownerID string, f ReviewFilter, s ReviewSort, limit, offset int) ([]review.Review, error)
	// PageWithAnnotations serves the raw source with each review's
	// annotation attached when one exists, nil otherwise.
	PageWithAnnotations(ctx context.Context, locationID, ownerID string, f ReviewFilter, s ReviewSort, limit, offset int) ([]review.Annotated, error)
	FindUnannotated(ctx context.Context, locationID, ownerID string) ([]review.Review, error)
	FindAllByLocation(ctx context.Context, locationID, ownerID string) ([]review.Review, error)
}

type PostgresReviewRepository struct {
	db database.DB
}

func NewPostgresReviewRepository(db database.DB) *PostgresReviewRepository {
	return &PostgresReviewRepository{db: db}
}

const reviewColumns = `id, owner_id, location_id, external_review_id, author, rating, text, published_at, scraped_at`

func (r *PostgresReviewRepository) UpsertBatch(ctx context.Context, reviews []review.Review) (int, error) {
	if len(reviews) == 0 {
		return 0, nil
	}

	inserted := 0
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, rv := range reviews {
		n, err := tx.Exec(ctx,
			`INSERT INTO reviews (id, owner_id, location_id, external_review_id, author, rating, text, published_at, scraped_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (owner_id, external_review_id) DO NOTHING`,
			rv.ID, rv.OwnerID, rv.LocationID, rv.ExternalReviewID,
			rv.Author, rv.Rating, rv.Text, rv.PublishedAt, rv.ScrapedAt,
		)
		if err != nil {
			return 0, err
		}
		inserted += int(n)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}

func reviewFilterClauses(f ReviewFilter, args []any) (string, []any) {
	var sb strings.Builder
	if f.Rating >= 1 && f.Rating <= 5 {
		args = append(args, f.Rating)
		fmt.Fprintf(&sb, " AND rating = $%d", len(args))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+s+"%")
		fmt.Fprintf(&sb, " AND (text ILIKE $%d OR author ILIKE $%d)", len(args), len(args))
	}
	return sb.String(), args
}

var reviewSortColumns = map[string]string{
	"publishedAt":  "published_at",
	"published_at": "published_at",
	"rating":       "rating",
	"scrapedAt":    "scraped_at",
	"scraped_at":   "scraped_at",
}

func (s ReviewSort) clause() string {
	col, ok := reviewSortColumns[s.By]
	if !ok {
		col = "published_at"
	}
	dir := "DESC"
	if strings.EqualFold(s.Order, "asc") {
		dir = "ASC"
	}
	// Secondary sort keeps pagination stable across pages.
	return fmt.Sprintf("ORDER BY %s %s, id DESC", col, dir)
}

func (r *PostgresReviewRepository) CountByLocation(ctx context.Context, locationID, ownerID string, f ReviewFilter) (int, error) {
	args := []any{locationID, ownerID}
	clauses, args := reviewFilterClauses(f, args)

	var c int
	row := r.db.QueryRow(ctx,
		`SELECT COUNT(1) FROM reviews WHERE location_id = $1 AND owner_id = $2`+clauses,
		args...,
	)
	if err := row.Scan(&c); err != nil {
		return 0, err
	}
	return c, nil
}

func (r *PostgresReviewRepository) PageByLocation(ctx context.Context, locationID, ownerID string, f ReviewFilter, s ReviewSort, limit, offset int) ([]review.Review, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	args := []any{locationID, ownerID}
	clauses, args := reviewFilterClauses(f, args)
	args = append(args, limit, offset)

	query := fmt.Sprintf(
		`SELECT %s FROM reviews WHERE location_id = $1 AND owner_id = $2%s %s LIMIT $%d OFFSET $%d`,
		reviewColumns, clauses, s.clause(), len(args)-1, len(args),
	)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReviews(rows)
}

func (r *PostgresReviewRepository) PageWithAnnotations(ctx context.Context, locationID, ownerID string, f ReviewFilter, s ReviewSort, limit, offset int) ([]review.Annotated, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	args := []any{locationID, ownerID}
	clauses, args := reviewFilterClauses(f, args)
	args = append(args, limit, offset)

	col, ok := reviewSortColumns[s.By]
	if !ok {
		col = "published_at"
	}
	dir := "DESC"
	if strings.EqualFold(s.Order, "asc") {
		dir = "ASC"
	}

	query := fmt.Sprintf(
		`SELECT rv.id, rv.owner_id, rv.location_id, rv.external_review_id, rv.author, rv.rating, rv.text, rv.published_at, rv.scraped_at,
		        a.id, a.sentiment, a.score, a.confidence, a.keywords, a.topics, a.summary, a.processed_at
		 FROM reviews rv
		 LEFT JOIN review_annotations a ON a.review_id = rv.id
		 WHERE rv.location_id = $1 AND rv.owner_id = $2%s
		 ORDER BY rv.%s %s, rv.id DESC
		 LIMIT $%d OFFSET $%d`,
		clauses, col, dir, len(args)-1, len(args),
	)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]review.Annotated, 0)
	for rows.Next() {
		var rv review.Review
		var annID, annSentiment, annSummary *string
		var annScore, annConfidence *float64
		var annKeywords, annTopics []string
		var annProcessedAt *time.Time
		if err := rows.Scan(
			&rv.ID, &rv.OwnerID, &rv.LocationID, &rv.ExternalReviewID,
			&rv.Author, &rv.Rating, &rv.Text, &rv.PublishedAt, &rv.ScrapedAt,
			&annID, &annSentiment, &annScore, &annConfidence, &annKeywords, &annTopics, &annSummary, &annProcessedAt,
		); err != nil {
			return nil, err
		}
		item := review.Annotated{Review: rv}
		if annID != nil {
			ann := review.Annotation{
				ID:         *annID,
				ReviewID:   rv.ID,
				OwnerID:    rv.OwnerID,
				LocationID: rv.LocationID,
				Keywords:   annKeywords,
				Topics:     annTopics,
			}
			if annSentiment != nil {
				ann.Sentiment = review.Sentiment(*annSentiment)
			}
			if annScore != nil {
				ann.Score = *annScore
			}
			if annConfidence != nil {
				ann.Confidence = *annConfidence
			}
			if annSummary != nil {
				ann.Summary = *annSummary
			}
			if annProcessedAt != nil {
				ann.ProcessedAt = *annProcessedAt
			}
			item.Annotation = &ann
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresReviewRepository) FindUnannotated(ctx context.Context, locationID, ownerID string) ([]review.Review, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+reviewColumns+`
		 FROM reviews rv
		 WHERE rv.location_id = $1 AND rv.owner_id = $2
		   AND NOT EXISTS (
		     SELECT 1 FROM review_annotations a WHERE a.review_id = rv.id
		   )
		 ORDER BY rv.published_at DESC`,
		locationID, ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReviews(rows)
}

func (r *PostgresReviewRepository) FindAllByLocation(ctx context.Context, locationID, ownerID string) ([]review.Review, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+reviewColumns+`
		 FROM reviews
		 WHERE location_id = $1 AND owner_id = $2
		 ORDER BY published_at DESC`,
		locationID, ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReviews(rows)
}

func scanReviews(rows database.Rows) ([]review.Review, error) {
	out := make([]review.Review, 0)
	for rows.Next() {
		var rv review.Review
		if err := rows.Scan(
			&rv.ID, &rv.OwnerID, &rv.LocationID, &rv.ExternalReviewID,
			&rv.Author, &rv.Rating, &rv.Text, &rv.PublishedAt, &rv.ScrapedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
