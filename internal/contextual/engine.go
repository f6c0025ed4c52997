// Package contextual decides whether a keyword hit in a comment is a genuine topical
// signal for a category or a false positive, using the category's context patterns.
package contextual

import (
	"github.com/rajasatyajit/CommentIntel/internal/taxonomy"
	"github.com/rajasatyajit/CommentIntel/pkg/utils"
)

// Scoring weights.
const (
	negativeMatchPoints = 2
	positiveMatchPoints = 1

	negativeConfidencePerPoint = 20
	positiveConfidencePerPoint = 15
	keywordConfidencePerHit    = 10

	maxNegativeConfidence = 100
	maxPositiveConfidence = 80
	maxKeywordConfidence  = 50
)

// PatternMatch records one negative-context pattern that fired.
type PatternMatch struct {
	Group   string   `json:"type"`
	Pattern string   `json:"pattern"`
	Matches []string `json:"matches"`
}

// Verdict is the contextual decision for one comment and one category.
type Verdict struct {
	Category          string         `json:"category"`
	Valid             bool           `json:"is_valid_category"`
	ContextScore      int            `json:"context_score"`
	Confidence        int            `json:"confidence"`
	Keywords          []string       `json:"found_keywords"`
	PatternMatches    []PatternMatch `json:"pattern_matches,omitempty"`
	ExcludedPatterns  []string       `json:"excluded_patterns,omitempty"`
	NegativeContext   bool           `json:"negative_context"`
	PositiveContext   bool           `json:"positive_context"`
	ExcludedByContext bool           `json:"excluded_by_context"`
}

// BestMatch is the strongest valid category of an evaluation.
type BestMatch struct {
	Category   string   `json:"category"`
	Score      int      `json:"score"`
	Confidence int      `json:"confidence"`
	Keywords   []string `json:"keywords"`
}

// Evaluation holds the verdicts of every configured category for one comment.
type Evaluation struct {
	Verdicts           map[string]Verdict `json:"all_results"`
	Order              []string           `json:"-"`
	Best               *BestMatch         `json:"best_match"`
	ExcludedCategories []string           `json:"excluded_categories"`
	ValidCategories    int                `json:"total_valid_categories"`
}

// Excluded reports whether category was ruled out by an excluded-context pattern.
func (e *Evaluation) Excluded(category string) bool {
	return e.Verdicts[category].ExcludedByContext
}

// Engine evaluates comments against a taxonomy. It holds no mutable state and is
// safe for concurrent use.
type Engine struct {
	tax *taxonomy.Taxonomy
}

// New creates an engine bound to tax.
func New(tax *taxonomy.Taxonomy) *Engine {
	return &Engine{tax: tax}
}

// Taxonomy returns the configuration the engine evaluates against.
func (e *Engine) Taxonomy() *taxonomy.Taxonomy {
	return e.tax
}

// Evaluate returns the verdict for text against the category with the given id.
// An unknown category yields an invalid verdict.
func (e *Engine) Evaluate(text, category string) Verdict {
	c, ok := e.tax.Category(category)
	if !ok {
		return Verdict{Category: category, Keywords: []string{}}
	}
	return e.evaluate(e.tax.Normalize(text), c)
}

// EvaluateAll evaluates text against every category in configuration order.
func (e *Engine) EvaluateAll(text string) *Evaluation {
	folded := e.tax.Normalize(text)
	ev := &Evaluation{
		Verdicts:           make(map[string]Verdict, len(e.tax.Categories)),
		Order:              e.tax.IDs(),
		ExcludedCategories: []string{},
	}

	for _, c := range e.tax.Categories {
		v := e.evaluate(folded, c)
		ev.Verdicts[c.ID] = v
		if v.ExcludedByContext {
			ev.ExcludedCategories = append(ev.ExcludedCategories, c.ID)
		}
		if !v.Valid || v.ContextScore <= 0 {
			continue
		}
		ev.ValidCategories++
		// strictly greater keeps the first category on ties
		if ev.Best == nil || v.ContextScore > ev.Best.Score {
			ev.Best = &BestMatch{
				Category:   c.ID,
				Score:      v.ContextScore,
				Confidence: v.Confidence,
				Keywords:   v.Keywords,
			}
		}
	}
	return ev
}

func (e *Engine) evaluate(folded string, c *taxonomy.Category) Verdict {
	v := Verdict{Category: c.ID, Keywords: []string{}}

	for _, p := range c.Excluded() {
		if p.MatchString(folded) {
			v.ExcludedByContext = true
			v.ExcludedPatterns = append(v.ExcludedPatterns, p.Source)
			return v
		}
	}

	v.Keywords = utils.AppendUnique(v.Keywords, utils.MatchKeywords(folded, c.Primary())...)

	negative := 0
	for _, g := range c.NegativeGroups() {
		for _, p := range g.Patterns {
			matches := p.FindAll(folded)
			if len(matches) == 0 {
				continue
			}
			negative += len(matches) * negativeMatchPoints
			v.PatternMatches = append(v.PatternMatches, PatternMatch{
				Group:   g.Name,
				Pattern: p.Source,
				Matches: matches,
			})
		}
	}
	v.NegativeContext = negative > 0

	positive := 0
	for _, p := range e.tax.Positive() {
		if p.MatchString(folded) {
			positive += positiveMatchPoints
		}
	}
	v.PositiveContext = positive > 0

	found := len(v.Keywords)
	switch {
	case negative > 0 && found > 0:
		v.Valid = true
		v.ContextScore = negative
		v.Confidence = min(negative*negativeConfidencePerPoint, maxNegativeConfidence)
	case found > 0 && positive > 0:
		v.Valid = true
		v.ContextScore = positive
		v.Confidence = min(positive*positiveConfidencePerPoint, maxPositiveConfidence)
	case found > 0:
		v.Valid = true
		v.ContextScore = found
		v.Confidence = min(found*keywordConfidencePerHit, maxKeywordConfidence)
	}
	return v
}
