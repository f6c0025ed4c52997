package models

import (
	"testing"
	"time"
)

func TestCommentQuery_Matches(t *testing.T) {
	comment := Comment{
		ID:         "c-1",
		Source:     "trendyol",
		User:       "ayse",
		Text:       "Kargo çok geç geldi",
		Date:       "12 Ocak 2024",
		Seller:     "magaza-1",
		IngestedAt: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name     string
		query    CommentQuery
		expected bool
	}{
		{"Empty query matches all", CommentQuery{}, true},
		{"ID filter matches", CommentQuery{IDs: []string{"c-1"}}, true},
		{"ID filter doesn't match", CommentQuery{IDs: []string{"c-2"}}, false},
		{"Source filter matches", CommentQuery{Sources: []string{"trendyol", "hepsiburada"}}, true},
		{"Source filter doesn't match", CommentQuery{Sources: []string{"hepsiburada"}}, false},
		{"Seller filter doesn't match", CommentQuery{Sellers: []string{"magaza-2"}}, false},
		{"User filter matches", CommentQuery{Users: []string{"ayse"}}, true},
		{"Text filter is case insensitive", CommentQuery{Text: "KARGO"}, true},
		{"Text filter doesn't match", CommentQuery{Text: "iade"}, false},
		{"Since before ingestion", CommentQuery{Since: time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC)}, true},
		{"Since after ingestion", CommentQuery{Since: time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)}, false},
		{"Until before ingestion", CommentQuery{Until: time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.query.Matches(comment); got != tt.expected {
				t.Errorf("Matches() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestComment_EnsureID(t *testing.T) {
	a := Comment{Source: "csv", User: "u", Text: "kargo geç"}
	b := Comment{Source: "csv", User: "u", Text: "kargo geç"}
	if a.EnsureID() == "" || a.EnsureID() != b.EnsureID() {
		t.Errorf("equal content should produce equal ids: %q vs %q", a.ID, b.ID)
	}

	c := Comment{Source: "csv", User: "u", Text: "kargo hızlı"}
	if c.EnsureID() == a.ID {
		t.Error("different content should produce different ids")
	}

	d := Comment{ID: "fixed", Text: "x"}
	if d.EnsureID() != "fixed" {
		t.Error("existing id must be kept")
	}
}

func TestAnalysisRun_Duration(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := AnalysisRun{StartedAt: start, FinishedAt: start.Add(1500 * time.Millisecond)}
	if r.Duration() != 1500*time.Millisecond {
		t.Errorf("Duration() = %v", r.Duration())
	}
}
