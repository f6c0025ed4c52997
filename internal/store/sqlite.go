package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/rajasatyajit/CommentIntel/internal/metrics"
	"github.com/rajasatyajit/CommentIntel/internal/models"
)

//go:embed schema/sqlite.sql
var sqliteSchema string

const sqliteDriver = "sqlite3_commentintel"

// Fixed width so that text ordering equals time ordering
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func init() {
	sql.Register(sqliteDriver, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			// SQLite's LOWER only folds ASCII
			return conn.RegisterFunc("fold", strings.ToLower, true)
		},
	})
}

// SQLiteStore implements Store on an embedded SQLite file
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open(sqliteDriver, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; also keeps ":memory:" on a single connection
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close releases the database handle
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertComments inserts or updates comments in one transaction
func (s *SQLiteStore) UpsertComments(ctx context.Context, comments []models.Comment) (err error) {
	if len(comments) == 0 {
		return nil
	}
	defer func() { recordQuery("exec", err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO comments (`+commentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			source = excluded.source,
			user_name = excluded.user_name,
			text = excluded.text,
			date = excluded.date,
			seller = excluded.seller
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := s.now()
	for _, c := range comments {
		c.EnsureID()
		if c.IngestedAt.IsZero() {
			c.IngestedAt = now
		}
		if _, err = stmt.ExecContext(ctx, c.ID, c.Source, c.User, c.Text, c.Date, c.Seller, formatTime(c.IngestedAt)); err != nil {
			return fmt.Errorf("upsert comment %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// QueryComments retrieves comments based on query parameters
func (s *SQLiteStore) QueryComments(ctx context.Context, q models.CommentQuery) (_ []models.Comment, err error) {
	defer func() { recordQuery("query", err) }()

	query := `SELECT ` + commentColumns + ` FROM comments WHERE 1=1`
	var args []any

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
		query += fmt.Sprintf(" AND %s IN (%s)", f.column, placeholders(len(f.values)))
		for _, v := range f.values {
			args = append(args, v)
		}
	}

	if q.Text != "" {
		query += " AND instr(fold(text), fold(?)) > 0"
		args = append(args, q.Text)
	}
	if !q.Since.IsZero() {
		query += " AND ingested_at >= ?"
		args = append(args, formatTime(q.Since))
	}
	if !q.Until.IsZero() {
		query += " AND ingested_at <= ?"
		args = append(args, formatTime(q.Until))
	}

	query += " ORDER BY ingested_at DESC, id"
	if q.Limit > 0 || q.Offset > 0 {
		limit := q.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	comments := []models.Comment{}
	for rows.Next() {
		c, err := scanSQLiteComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, *c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	return comments, nil
}

// GetComment retrieves a single comment by ID
func (s *SQLiteStore) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = ?`, id)
	c, err := scanSQLiteComment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// SaveRun inserts or replaces an analysis run
func (s *SQLiteStore) SaveRun(ctx context.Context, run *models.AnalysisRun) (err error) {
	defer func() { recordQuery("exec", err) }()

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO analysis_runs (
			id, source, taxonomy_fingerprint, total_comments, relevant_comments,
			top_category, top_score, started_at, finished_at, aggregate, analysis
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.TaxonomyFingerprint, run.TotalComments, run.RelevantComments,
		run.TopCategory, run.TopScore, formatTime(run.StartedAt), formatTime(run.FinishedAt),
		jsonText(run.Aggregate), jsonText(run.Analysis),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun retrieves an analysis run by ID
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*models.AnalysisRun, error) {
	return s.scanRun(s.db.QueryRowContext(ctx, `SELECT `+sqliteRunColumns+` FROM analysis_runs WHERE id = ?`, id))
}

// LatestRun returns the most recently finished run, optionally for one source
func (s *SQLiteStore) LatestRun(ctx context.Context, source string) (*models.AnalysisRun, error) {
	query := `SELECT ` + sqliteRunColumns + ` FROM analysis_runs`
	var args []any
	if source != "" {
		query += ` WHERE source = ?`
		args = append(args, source)
	}
	query += ` ORDER BY finished_at DESC, id DESC LIMIT 1`
	return s.scanRun(s.db.QueryRowContext(ctx, query, args...))
}

// Health pings the database file
func (s *SQLiteStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const sqliteRunColumns = `id, source, taxonomy_fingerprint, total_comments, relevant_comments,
	top_category, top_score, started_at, finished_at, aggregate, analysis`

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteComment(row scanner) (*models.Comment, error) {
	var (
		c        models.Comment
		ingested string
	)
	if err := row.Scan(&c.ID, &c.Source, &c.User, &c.Text, &c.Date, &c.Seller, &ingested); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan comment: %w", err)
	}
	t, err := time.Parse(sqliteTimeLayout, ingested)
	if err != nil {
		return nil, fmt.Errorf("parse ingested_at %q: %w", ingested, err)
	}
	c.IngestedAt = t
	return &c, nil
}

func (s *SQLiteStore) scanRun(row scanner) (*models.AnalysisRun, error) {
	var (
		run                 models.AnalysisRun
		started, finished   string
		aggregate, analysis string
	)
	err := row.Scan(
		&run.ID, &run.Source, &run.TaxonomyFingerprint, &run.TotalComments, &run.RelevantComments,
		&run.TopCategory, &run.TopScore, &started, &finished, &aggregate, &analysis,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if run.StartedAt, err = time.Parse(sqliteTimeLayout, started); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if run.FinishedAt, err = time.Parse(sqliteTimeLayout, finished); err != nil {
		return nil, fmt.Errorf("parse finished_at: %w", err)
	}
	run.Aggregate = json.RawMessage(aggregate)
	run.Analysis = json.RawMessage(analysis)
	return &run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func recordQuery(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordDBQuery(operation, status)
}
