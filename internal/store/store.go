package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/rajasatyajit/CommentIntel/internal/models"
)

// Store defines the interface for comment and analysis run storage.
// Lookups of missing records return nil without an error.
type Store interface {
	UpsertComments(ctx context.Context, comments []models.Comment) error
	QueryComments(ctx context.Context, q models.CommentQuery) ([]models.Comment, error)
	GetComment(ctx context.Context, id string) (*models.Comment, error)
	SaveRun(ctx context.Context, run *models.AnalysisRun) error
	GetRun(ctx context.Context, id string) (*models.AnalysisRun, error)
	LatestRun(ctx context.Context, source string) (*models.AnalysisRun, error)
	Health(ctx context.Context) error
}

// Database interface for dependency injection
type Database interface {
	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Health(ctx context.Context) error
	IsConfigured() bool
}

// Open picks the backend: Postgres when db is configured, SQLite when sqlitePath is
// set, memory otherwise.
func Open(ctx context.Context, db Database, sqlitePath string) (Store, error) {
	if db != nil && db.IsConfigured() {
		s := NewPostgresStore(db)
		if err := s.Migrate(ctx); err != nil {
			return nil, err
		}
		return s, nil
	}
	if sqlitePath != "" {
		s, err := NewSQLiteStore(ctx, sqlitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return NewInMemoryStore(), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
