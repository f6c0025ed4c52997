package classifier

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rajasatyajit/CommentIntel/internal/contextual"
	"github.com/rajasatyajit/CommentIntel/internal/logger"
	"github.com/rajasatyajit/CommentIntel/internal/metrics"
	"github.com/rajasatyajit/CommentIntel/internal/models"
	"github.com/rajasatyajit/CommentIntel/internal/taxonomy"
	"github.com/rajasatyajit/CommentIntel/pkg/utils"
)

// Sentiment of a relevant comment within one category
type Sentiment string

const (
	Positive Sentiment = "positive"
	Negative Sentiment = "negative"
	Neutral  Sentiment = "neutral"
)

// Sentiments lists every sentiment in bucket order
var Sentiments = []Sentiment{Positive, Negative, Neutral}

// ParseSentiment validates a sentiment name. An empty name is accepted and means "all".
func ParseSentiment(s string) (Sentiment, error) {
	switch Sentiment(s) {
	case "", Positive, Negative, Neutral:
		return Sentiment(s), nil
	}
	return "", fmt.Errorf("unknown sentiment %q", s)
}

const exclusionReason = "false positive keyword detected by context"

// Result is the classification of one comment for one category
type Result struct {
	Relevant          bool      `json:"relevant"`
	Sentiment         Sentiment `json:"sentiment"`
	Keywords          []string  `json:"keywords_found"`
	Confidence        float64   `json:"confidence"`
	ContextualBoost   float64   `json:"contextual_boost,omitempty"`
	ExcludedByContext bool      `json:"excluded_by_context"`
	ExclusionReason   string    `json:"exclusion_reason,omitempty"`
}

// Classifier assigns categories and sentiment to comments
type Classifier struct {
	engine *contextual.Engine
	tax    *taxonomy.Taxonomy
}

// New creates a new classifier backed by the contextual engine
func New(engine *contextual.Engine) *Classifier {
	return &Classifier{engine: engine, tax: engine.Taxonomy()}
}

// Taxonomy returns the category configuration
func (c *Classifier) Taxonomy() *taxonomy.Taxonomy {
	return c.tax
}

// Classify returns one result per configured category
func (c *Classifier) Classify(text string) map[string]Result {
	ev := c.engine.EvaluateAll(text)
	folded := c.tax.Normalize(text)

	results := make(map[string]Result, len(c.tax.Categories))
	for _, cat := range c.tax.Categories {
		results[cat.ID] = c.classifyCategory(folded, cat, ev.Verdicts[cat.ID])
	}
	return results
}

func (c *Classifier) classifyCategory(folded string, cat *taxonomy.Category, v contextual.Verdict) Result {
	if v.ExcludedByContext {
		return Result{
			Sentiment:         Neutral,
			Keywords:          []string{},
			ExcludedByContext: true,
			ExclusionReason:   exclusionReason,
		}
	}

	keywords := utils.MatchKeywords(folded, cat.Keywords)
	if v.Valid && v.ContextScore > 0 {
		keywords = utils.AppendUnique(keywords, v.Keywords...)
	}
	if len(keywords) == 0 {
		return Result{Sentiment: Neutral, Keywords: []string{}}
	}

	positive := len(utils.MatchKeywords(folded, cat.Positive))
	negative := len(utils.MatchKeywords(folded, cat.Negative))
	sentiment := Neutral
	switch {
	case positive > negative:
		sentiment = Positive
	case negative > 0:
		sentiment = Negative
	}

	var boost float64
	if v.Valid {
		boost = float64(v.Confidence) / 100
	}
	base := min(float64(len(keywords))/2, 1.0)

	return Result{
		Relevant:        true,
		Sentiment:       sentiment,
		Keywords:        keywords,
		Confidence:      min(base+boost, 1.0),
		ContextualBoost: boost,
	}
}

// BatchOptions controls batch classification
type BatchOptions struct {
	// Workers bounds parallel classification; zero uses GOMAXPROCS.
	Workers int
	// Progress is called after each comment with the number processed so far.
	// Calls are serialized.
	Progress func(done, total int)
}

// ClassifyBatch classifies comments sequentially
func (c *Classifier) ClassifyBatch(comments []models.Comment) *AggregateResult {
	agg, _ := c.ClassifyBatchContext(context.Background(), comments, BatchOptions{Workers: 1})
	return agg
}

// ClassifyBatchContext classifies comments on a bounded worker pool and assembles the
// aggregate in input order. Blank comments are skipped; a comment whose classification
// panics is logged and skipped. The only error returned is the context's.
func (c *Classifier) ClassifyBatchContext(ctx context.Context, comments []models.Comment, opts BatchOptions) (*AggregateResult, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]map[string]Result, len(comments))
	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range comments {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = c.classifyComment(i, comments[i])
			if opts.Progress != nil {
				mu.Lock()
				done++
				opts.Progress(done, len(comments))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	agg := newAggregate(c.tax.IDs(), len(comments))
	for i, res := range results {
		if res == nil {
			agg.SkippedComments++
			continue
		}
		relevant := false
		for _, id := range agg.Categories {
			r, ok := res[id]
			if !ok || !r.Relevant {
				continue
			}
			relevant = true
			agg.add(id, AnalyzedComment{
				Index:    i,
				ID:       comments[i].ID,
				Comment:  comments[i].Text,
				User:     comments[i].User,
				Date:     comments[i].Date,
				Seller:   comments[i].Seller,
				Analysis: r,
			})
			metrics.RecordCommentClassified(id, string(r.Sentiment))
		}
		if relevant {
			agg.RelevantComments++
		}
	}
	return agg, nil
}

func (c *Classifier) classifyComment(i int, comment models.Comment) (res map[string]Result) {
	if utils.IsBlank(comment.Text) {
		metrics.RecordCommentSkipped("empty")
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Comment classification failed", "index", i, "id", comment.ID, "panic", r)
			metrics.RecordCommentSkipped("error")
			res = nil
		}
	}()
	return c.Classify(comment.Text)
}
