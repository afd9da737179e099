package repository

import (
	"context"
	"fmt"
	"strings"

	"review-pulse/internal/database"
	"review-pulse/internal/domain/review"
)

// RollupSource is the raw material the sentiment aggregator recomputes
// from: current annotation counts per label and the average rating of
// annotated reviews.
type RollupSource struct {
	Positive      int
	Neutral       int
	Negative      int
	AverageRating float64
}

func (r RollupSource) Total() int {
	return r.Positive + r.Neutral + r.Negative
}

type AnnotationRepository interface {
	InsertBatch(ctx context.Context, annotations []review.Annotation) (int, error)
	// DeleteByLocation removes every annotation for the location so a
	// reanalysis starts from a clean slate.
	DeleteByLocation(ctx context.Context, locationID, ownerID string) (int64, error)
	CountByLocation(ctx context.Context, locationID, ownerID string) (int, error)
	CountAnnotated(ctx context.Context, locationID, ownerID string, sentiment review.Sentiment, f ReviewFilter) (int, error)
	PageAnnotated(ctx context.Context, locationID, ownerID string, sentiment review.Sentiment, f ReviewFilter, s ReviewSort, limit, offset int) ([]review.Annotated, error)
	SampleAnnotated(ctx context.Context, locationID, ownerID string, limit int) ([]review.Annotated, error)
	AggregateByLocation(ctx context.Context, locationID, ownerID string) (RollupSource, error)
}

type PostgresAnnotationRepository struct {
	db database.DB
}

func NewPostgresAnnotationRepository(db database.DB) *PostgresAnnotationRepository {
	return &PostgresAnnotationRepository{db: db}
}

func (r *PostgresAnnotationRepository) InsertBatch(ctx context.Context, annotations []review.Annotation) (int, error) {
	if len(annotations) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inserted := 0
	for _, a := range annotations {
		n, err := tx.Exec(ctx,
			`INSERT INTO review_annotations
			   (id, review_id, owner_id, location_id, sentiment, score, confidence, keywords, topics, summary, processed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 ON CONFLICT (review_id) DO NOTHING`,
			a.ID, a.ReviewID, a.OwnerID, a.LocationID, string(a.Sentiment),
			a.Score, a.Confidence, a.Keywords, a.Topics, a.Summary, a.ProcessedAt,
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

func (r *PostgresAnnotationRepository) DeleteByLocation(ctx context.Context, locationID, ownerID string) (int64, error) {
	return r.db.Exec(ctx,
		`DELETE FROM review_annotations WHERE location_id = $1 AND owner_id = $2`,
		locationID, ownerID,
	)
}

func (r *PostgresAnnotationRepository) CountByLocation(ctx context.Context, locationID, ownerID string) (int, error) {
	var c int
	row := r.db.QueryRow(ctx,
		`SELECT COUNT(1) FROM review_annotations WHERE location_id = $1 AND owner_id = $2`,
		locationID, ownerID,
	)
	if err := row.Scan(&c); err != nil {
		return 0, err
	}
	return c, nil
}

func annotatedFilterClauses(sentiment review.Sentiment, f ReviewFilter, args []any) (string, []any) {
	var sb strings.Builder
	if sentiment != "" {
		args = append(args, string(sentiment))
		fmt.Fprintf(&sb, " AND a.sentiment = $%d", len(args))
	}
	if f.Rating >= 1 && f.Rating <= 5 {
		args = append(args, f.Rating)
		fmt.Fprintf(&sb, " AND rv.rating = $%d", len(args))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+s+"%")
		fmt.Fprintf(&sb, " AND (rv.text ILIKE $%d OR rv.author ILIKE $%d)", len(args), len(args))
	}
	return sb.String(), args
}

func (r *PostgresAnnotationRepository) CountAnnotated(ctx context.Context, locationID, ownerID string, sentiment review.Sentiment, f ReviewFilter) (int, error) {
	args := []any{locationID, ownerID}
	clauses, args := annotatedFilterClauses(sentiment, f, args)

	var c int
	row := r.db.QueryRow(ctx,
		`SELECT COUNT(1)
		 FROM review_annotations a
		 JOIN reviews rv ON rv.id = a.review_id
		 WHERE a.location_id = $1 AND a.owner_id = $2`+clauses,
		args...,
	)
	if err := row.Scan(&c); err != nil {
		return 0, err
	}
	return c, nil
}

const annotatedColumns = `rv.id, rv.owner_id, rv.location_id, rv.external_review_id, rv.author, rv.rating, rv.text, rv.published_at, rv.scraped_at,
	a.id, a.sentiment, a.score, a.confidence, a.keywords, a.topics, a.summary, a.processed_at`

func (r *PostgresAnnotationRepository) PageAnnotated(ctx context.Context, locationID, ownerID string, sentiment review.Sentiment, f ReviewFilter, s ReviewSort, limit, offset int) ([]review.Annotated, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	args := []any{locationID, ownerID}
	clauses, args := annotatedFilterClauses(sentiment, f, args)
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
		`SELECT %s
		 FROM review_annotations a
		 JOIN reviews rv ON rv.id = a.review_id
		 WHERE a.location_id = $1 AND a.owner_id = $2%s
		 ORDER BY rv.%s %s, rv.id DESC
		 LIMIT $%d OFFSET $%d`,
		annotatedColumns, clauses, col, dir, len(args)-1, len(args),
	)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAnnotated(rows)
}

func (r *PostgresAnnotationRepository) SampleAnnotated(ctx context.Context, locationID, ownerID string, limit int) ([]review.Annotated, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+annotatedColumns+`
		 FROM review_annotations a
		 JOIN reviews rv ON rv.id = a.review_id
		 WHERE a.location_id = $1 AND a.owner_id = $2
		 ORDER BY rv.published_at DESC
		 LIMIT $3`,
		locationID, ownerID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAnnotated(rows)
}

func (r *PostgresAnnotationRepository) AggregateByLocation(ctx context.Context, locationID, ownerID string) (RollupSource, error) {
	var src RollupSource
	row := r.db.QueryRow(ctx,
		`SELECT
		   COUNT(1) FILTER (WHERE a.sentiment = 'positive'),
		   COUNT(1) FILTER (WHERE a.sentiment = 'neutral'),
		   COUNT(1) FILTER (WHERE a.sentiment = 'negative'),
		   COALESCE(AVG(rv.rating), 0)
		 FROM review_annotations a
		 JOIN reviews rv ON rv.id = a.review_id
		 WHERE a.location_id = $1 AND a.owner_id = $2`,
		locationID, ownerID,
	)
	if err := row.Scan(&src.Positive, &src.Neutral, &src.Negative, &src.AverageRating); err != nil {
		return RollupSource{}, err
	}
	return src, nil
}

func scanAnnotated(rows database.Rows) ([]review.Annotated, error) {
	out := make([]review.Annotated, 0)
	for rows.Next() {
		var rv review.Review
		var a review.Annotation
		var sentiment string
		if err := rows.Scan(
			&rv.ID, &rv.OwnerID, &rv.LocationID, &rv.ExternalReviewID,
			&rv.Author, &rv.Rating, &rv.Text, &rv.PublishedAt, &rv.ScrapedAt,
			&a.ID, &sentiment, &a.Score, &a.Confidence, &a.Keywords, &a.Topics, &a.Summary, &a.ProcessedAt,
		); err != nil {
			return nil, err
		}
		a.ReviewID = rv.ID
		a.OwnerID = rv.OwnerID
		a.LocationID = rv.LocationID
		a.Sentiment = review.Sentiment(sentiment)
		ann := a
		out = append(out, review.Annotated{Review: rv, Annotation: &ann})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
