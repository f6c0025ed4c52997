package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rajasatyajit/CommentIntel/internal/logger"
	"github.com/rajasatyajit/CommentIntel/internal/models"
	"github.com/rajasatyajit/CommentIntel/pkg/utils"
)

// ErrNoCommentColumn is returned when a CSV header has no comment text column
var ErrNoCommentColumn = errors.New("csv header has no comment column")

// Header names accepted for each column, compared case-insensitively
var columnAliases = map[string][]string{
	"user":    {"user", "username", "user_name", "author", "kullanici", "kullanıcı"},
	"comment": {"comment", "text", "review", "yorum"},
	"date":    {"date", "tarih", "created_at"},
	"seller":  {"seller", "store", "satici", "satıcı", "magaza", "mağaza"},
}

const utf8BOM = "\ufeff"

// CSVSource polls a comment export with user, comment, date and seller columns
type CSVSource struct {
	name     string
	path     string
	interval time.Duration
}

// NewCSVSource creates a new CSV source
func NewCSVSource(name, path string, interval time.Duration) *CSVSource {
	return &CSVSource{
		name:     name,
		path:     path,
		interval: interval,
	}
}

// Name returns the source name
func (s *CSVSource) Name() string {
	return s.name
}

// Interval returns the polling interval
func (s *CSVSource) Interval() time.Duration {
	return s.interval
}

// Fetch reads every comment in the file
func (s *CSVSource) Fetch(ctx context.Context) ([]models.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	comments, err := ReadCSV(f, s.name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	logger.Debug("Fetched comments from CSV", "source", s.name, "path", s.path, "count", len(comments))
	return comments, nil
}

// ReadCSV parses a comment export. Columns are matched by header name; unknown
// columns are ignored and rows without comment text are skipped.
func ReadCSV(r io.Reader, source string) ([]models.Comment, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return []models.Comment{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := headerIndex(header)
	if _, ok := index["comment"]; !ok {
		return nil, ErrNoCommentColumn
	}

	comments := []models.Comment{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		c := models.Comment{
			Source: source,
			User:   field(record, index, "user"),
			Text:   field(record, index, "comment"),
			Date:   field(record, index, "date"),
			Seller: field(record, index, "seller"),
		}
		if utils.IsBlank(c.Text) {
			continue
		}
		c.EnsureID()
		comments = append(comments, c)
	}
	return comments, nil
}

func headerIndex(header []string) map[string]int {
	index := make(map[string]int)
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, utf8BOM)))
		for column, aliases := range columnAliases {
			if _, seen := index[column]; seen {
				continue
			}
			for _, alias := range aliases {
				if h == alias {
					index[column] = i
				}
			}
		}
	}
	return index
}

func field(record []string, index map[string]int, column string) string {
	i, ok := index[column]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
