package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rajasatyajit/CommentIntel/internal/models"
)

//go:embed schema/postgres.sql
var postgresSchema string

const commentColumns = `id, source, user_name, text, date, seller, ingested_at`

const runColumns = `id, source, taxonomy_fingerprint, total_comments, relevant_comments,
	top_category, top_score, started_at, finished_at, aggregate::text, analysis::text`

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db  Database
	now func() time.Time
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(db Database) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// Migrate creates the tables when they do not exist yet
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if err := s.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// UpsertComments inserts or updates comments in the database
func (s *PostgresStore) UpsertComments(ctx context.Context, comments []models.Comment) error {
	if len(comments) == 0 {
		return nil
	}

	// ingested_at keeps the first sighting
	query := `
		INSERT INTO comments (` + commentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			source = EXCLUDED.source,
			user_name = EXCLUDED.user_name,
			text = EXCLUDED.text,
			date = EXCLUDED.date,
			seller = EXCLUDED.seller,
			updated_at = NOW()
	`

	now := s.now().UTC()
	for _, c := range comments {
		c.EnsureID()
		if c.IngestedAt.IsZero() {
			c.IngestedAt = now
		}
		err := s.db.Exec(ctx, query, c.ID, c.Source, c.User, c.Text, c.Date, c.Seller, c.IngestedAt)
		if err != nil {
			return fmt.Errorf("upsert comment %s: %w", c.ID, err)
		}
	}

	return nil
}

// QueryComments retrieves comments based on query parameters
func (s *PostgresStore) QueryComments(ctx context.Context, q models.CommentQuery) ([]models.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments WHERE 1=1`

	var args []any
	argIndex := 1

	// Build WHERE conditions
	for _, f := range []struct {
		column string
		values []string
	}{
		{"id", q.IDs},
		{"source", q.Sources},
		{"seller", q.Sellers},
		{"user_name", q.Users},
	} {
		if len(f.values) == 0 {
			continue
		}
		query += fmt.Sprintf(" AND %s = ANY($%d)", f.column, argIndex)
		args = append(args, f.values)
		argIndex++
	}

	if q.Text != "" {
		query += fmt.Sprintf(" AND text ILIKE '%%' || $%d || '%%'", argIndex)
		args = append(args, q.Text)
		argIndex++
	}

	if !q.Since.IsZero() {
		query += fmt.Sprintf(" AND ingested_at >= $%d", argIndex)
		args = append(args, q.Since)
		argIndex++
	}

	if !q.Until.IsZero() {
		query += fmt.Sprintf(" AND ingested_at <= $%d", argIndex)
		args = append(args, q.Until)
		argIndex++
	}

	query += " ORDER BY ingested_at DESC, id"

	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, q.Limit)
		argIndex++
	}

	if q.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, q.Offset)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	comments := []models.Comment{}
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.Source, &c.User, &c.Text, &c.Date, &c.Seller, &c.IngestedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}

	return comments, nil
}

// GetComment retrieves a single comment by ID
func (s *PostgresStore) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	row := s.db.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id)

	var c models.Comment
	err := row.Scan(&c.ID, &c.Source, &c.User, &c.Text, &c.Date, &c.Seller, &c.IngestedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan comment: %w", err)
	}

	return &c, nil
}

// SaveRun inserts or replaces an analysis run
func (s *PostgresStore) SaveRun(ctx context.Context, run *models.AnalysisRun) error {
	query := `
		INSERT INTO analysis_runs (
			id, source, taxonomy_fingerprint, total_comments, relevant_comments,
			top_category, top_score, started_at, finished_at, aggregate, analysis
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11::jsonb
		)
		ON CONFLICT (id) DO UPDATE SET
			total_comments = EXCLUDED.total_comments,
			relevant_comments = EXCLUDED.relevant_comments,
			top_category = EXCLUDED.top_category,
			top_score = EXCLUDED.top_score,
			finished_at = EXCLUDED.finished_at,
			aggregate = EXCLUDED.aggregate,
			analysis = EXCLUDED.analysis
	`

	err := s.db.Exec(ctx, query,
		run.ID, run.Source, run.TaxonomyFingerprint, run.TotalComments, run.RelevantComments,
		run.TopCategory, run.TopScore, run.StartedAt, run.FinishedAt,
		jsonText(run.Aggregate), jsonText(run.Analysis),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun retrieves an analysis run by ID
func (s *PostgresStore) GetRun(ctx context.Context, id string) (*models.AnalysisRun, error) {
	row := s.db.QueryRow(ctx, `SELECT `+runColumns+` FROM analysis_runs WHERE id = $1`, id)
	return scanRun(row)
}

// LatestRun returns the most recently finished run, optionally for one source
func (s *PostgresStore) LatestRun(ctx context.Context, source string) (*models.AnalysisRun, error) {
	query := `SELECT ` + runColumns + ` FROM analysis_runs`
	var args []any
	if source != "" {
		query += ` WHERE source = $1`
		args = append(args, source)
	}
	query += ` ORDER BY finished_at DESC, id DESC LIMIT 1`

	return scanRun(s.db.QueryRow(ctx, query, args...))
}

// Health checks the database connection
func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.Health(ctx)
}

func scanRun(row pgx.Row) (*models.AnalysisRun, error) {
	var (
		run                 models.AnalysisRun
		aggregate, analysis string
	)
	err := row.Scan(
		&run.ID, &run.Source, &run.TaxonomyFingerprint, &run.TotalComments, &run.RelevantComments,
		&run.TopCategory, &run.TopScore, &run.StartedAt, &run.FinishedAt, &aggregate, &analysis,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.Aggregate = json.RawMessage(aggregate)
	run.Analysis = json.RawMessage(analysis)
	return &run, nil
}

func jsonText(doc json.RawMessage) string {
	if len(doc) == 0 {
		return "{}"
	}
	return string(doc)
}
