package seeder

import (
	"context"

	"review-pulse/internal/database"
)

type Seeder interface {
	Name() string
	Run(ctx context.Context, db database.DB) error
}
