package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rajasatyajit/CommentIntel/internal/models"
)

// InMemoryStore implements Store using in-memory storage
type InMemoryStore struct {
	mu       sync.RWMutex
	comments map[string]models.Comment
	runs     map[string]models.AnalysisRun
}

// NewInMemoryStore creates a new in-memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		comments: make(map[string]models.Comment),
		runs:     make(map[string]models.AnalysisRun),
	}
}

// UpsertComments stores comments in memory
func (s *InMemoryStore) UpsertComments(ctx context.Context, comments []models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range comments {
		c.EnsureID()
		if existing, ok := s.comments[c.ID]; ok {
			c.IngestedAt = existing.IngestedAt
		} else if c.IngestedAt.IsZero() {
			c.IngestedAt = time.Now().UTC()
		}
		s.comments[c.ID] = c
	}

	return nil
}

// QueryComments retrieves comments from memory based on query parameters
func (s *InMemoryStore) QueryComments(ctx context.Context, q models.CommentQuery) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []models.Comment{}
	for _, c := range s.comments {
		if q.Matches(c) {
			result = append(result, c)
		}
	}

	// Newest first, id breaks ties so paging is stable
	sort.Slice(result, func(i, j int) bool {
		if !result[i].IngestedAt.Equal(result[j].IngestedAt) {
			return result[i].IngestedAt.After(result[j].IngestedAt)
		}
		return result[i].ID < result[j].ID
	})

	return page(result, q.Limit, q.Offset), nil
}

// GetComment retrieves a single comment by ID
func (s *InMemoryStore) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, exists := s.comments[id]; exists {
		return &c, nil
	}

	return nil, nil
}

// SaveRun stores an analysis run
func (s *InMemoryStore) SaveRun(ctx context.Context, run *models.AnalysisRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = *run
	return nil
}

// GetRun retrieves an analysis run by ID
func (s *InMemoryStore) GetRun(ctx context.Context, id string) (*models.AnalysisRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if run, exists := s.runs[id]; exists {
		return &run, nil
	}

	return nil, nil
}

// LatestRun returns the most recently finished run, optionally for one source
func (s *InMemoryStore) LatestRun(ctx context.Context, source string) (*models.AnalysisRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.AnalysisRun
	for _, run := range s.runs {
		if source != "" && run.Source != source {
			continue
		}
		if latest == nil || run.FinishedAt.After(latest.FinishedAt) ||
			(run.FinishedAt.Equal(latest.FinishedAt) && run.ID > latest.ID) {
			r := run
			latest = &r
		}
	}
	return latest, nil
}

// Health always returns nil for in-memory store
func (s *InMemoryStore) Health(ctx context.Context) error {
	return nil
}
