package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5"
)

type cfgDB struct{ configured bool }

func (d *cfgDB) Exec(ctx context.Context, sql string, args ...any) error { return nil }
func (d *cfgDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (d *cfgDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (d *cfgDB) Health(ctx context.Context) error                             { return nil }
func (d *cfgDB) IsConfigured() bool                                           { return d.configured }

func TestOpen_SelectsBackend(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, &cfgDB{configured: true}, "")
	if err != nil {
		t.Fatalf("Open postgres: %v", err)
	}
	if _, ok := s.(*PostgresStore); !ok {
		t.Errorf("expected PostgresStore, got %T", s)
	}

	s, err = Open(ctx, &cfgDB{}, filepath.Join(t.TempDir(), "comments.db"))
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	sq, ok := s.(*SQLiteStore)
	if !ok {
		t.Fatalf("expected SQLiteStore, got %T", s)
	}
	sq.Close()

	s, err = Open(ctx, nil, "")
	if err != nil {
		t.Fatalf("Open memory: %v", err)
	}
	if _, ok := s.(*InMemoryStore); !ok {
		t.Errorf("expected InMemoryStore, got %T", s)
	}
}
