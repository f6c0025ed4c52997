package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rajasatyajit/CommentIntel/pkg/utils"
)

// Comment represents a customer comment on a product
type Comment struct {
	ID         string    `json:"id" db:"id"`
	Source     string    `json:"source" db:"source"`
	User       string    `json:"user" db:"user_name"`
	Text       string    `json:"comment" db:"text"`
	Date       string    `json:"date" db:"date"`
	Seller     string    `json:"seller,omitempty" db:"seller"`
	IngestedAt time.Time `json:"ingested_at" db:"ingested_at"`
}

// EnsureID derives a stable id from the comment content when none was supplied
func (c *Comment) EnsureID() string {
	if c.ID == "" {
		c.ID = utils.HashParts(c.Source, c.User, c.Date, c.Seller, c.Text)
	}
	return c.ID
}

// CommentQuery represents query parameters for filtering comments
type CommentQuery struct {
	IDs     []string  `json:"ids"`
	Sources []string  `json:"sources"`
	Sellers []string  `json:"sellers"`
	Users   []string  `json:"users"`
	Text    string    `json:"text"`
	Since   time.Time `json:"since"`
	Until   time.Time `json:"until"`
	Limit   int       `json:"limit"`
	Offset  int       `json:"offset"`
}

// Matches checks if a comment matches the query criteria
func (q CommentQuery) Matches(c Comment) bool {
	if len(q.IDs) > 0 && !contains(q.IDs, c.ID) {
		return false
	}
	if len(q.Sources) > 0 && !contains(q.Sources, c.Source) {
		return false
	}
	if len(q.Sellers) > 0 && !contains(q.Sellers, c.Seller) {
		return false
	}
	if len(q.Users) > 0 && !contains(q.Users, c.User) {
		return false
	}
	if q.Text != "" && !strings.Contains(strings.ToLower(c.Text), strings.ToLower(q.Text)) {
		return false
	}
	if !q.Since.IsZero() && c.IngestedAt.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && c.IngestedAt.After(q.Until) {
		return false
	}
	return true
}

// AnalysisRun is a persisted classification and prioritisation pass over a set of comments.
// Aggregate and Analysis hold the JSON documents returned by the API.
type AnalysisRun struct {
	ID                  string          `json:"id" db:"id"`
	Source              string          `json:"source" db:"source"`
	TaxonomyFingerprint string          `json:"taxonomy_fingerprint" db:"taxonomy_fingerprint"`
	TotalComments       int             `json:"total_comments" db:"total_comments"`
	RelevantComments    int             `json:"relevant_comments" db:"relevant_comments"`
	TopCategory         string          `json:"top_category,omitempty" db:"top_category"`
	TopScore            float64         `json:"top_score" db:"top_score"`
	StartedAt           time.Time       `json:"started_at" db:"started_at"`
	FinishedAt          time.Time       `json:"finished_at" db:"finished_at"`
	Aggregate           json.RawMessage `json:"aggregate" db:"aggregate"`
	Analysis            json.RawMessage `json:"analysis" db:"analysis"`
}

// Duration returns how long the run took
func (r AnalysisRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
