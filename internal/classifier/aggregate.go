package classifier

// AnalyzedComment is a relevant comment with its classification for one category.
// Index is the comment's position in the batch.
type AnalyzedComment struct {
	Index    int    `json:"index"`
	ID       string `json:"id,omitempty"`
	Comment  string `json:"comment"`
	User     string `json:"user"`
	Date     string `json:"date"`
	Seller   string `json:"seller,omitempty"`
	Analysis Result `json:"analysis"`
}

// SentimentBuckets groups comments by sentiment in input order
type SentimentBuckets struct {
	Positive []AnalyzedComment `json:"positive"`
	Negative []AnalyzedComment `json:"negative"`
	Neutral  []AnalyzedComment `json:"neutral"`
}

func newBuckets() *SentimentBuckets {
	return &SentimentBuckets{
		Positive: []AnalyzedComment{},
		Negative: []AnalyzedComment{},
		Neutral:  []AnalyzedComment{},
	}
}

// Bucket returns the comments with sentiment s
func (b *SentimentBuckets) Bucket(s Sentiment) []AnalyzedComment {
	switch s {
	case Positive:
		return b.Positive
	case Negative:
		return b.Negative
	case Neutral:
		return b.Neutral
	}
	return nil
}

// All returns positive, negative then neutral comments
func (b *SentimentBuckets) All() []AnalyzedComment {
	out := make([]AnalyzedComment, 0, len(b.Positive)+len(b.Negative)+len(b.Neutral))
	out = append(out, b.Positive...)
	out = append(out, b.Negative...)
	return append(out, b.Neutral...)
}

func (b *SentimentBuckets) add(c AnalyzedComment) {
	switch c.Analysis.Sentiment {
	case Positive:
		b.Positive = append(b.Positive, c)
	case Negative:
		b.Negative = append(b.Negative, c)
	default:
		b.Neutral = append(b.Neutral, c)
	}
}

// CategoryAnalysis holds the mentions of one category
type CategoryAnalysis struct {
	TotalMentions int `json:"total_mentions"`
	SentimentBuckets
}

// AggregateResult is the outcome of a batch classification
type AggregateResult struct {
	TotalComments    int                          `json:"total_comments"`
	RelevantComments int                          `json:"relevant_comments"`
	SkippedComments  int                          `json:"skipped_comments"`
	Categories       []string                     `json:"categories"`
	CategoryAnalysis map[string]*CategoryAnalysis `json:"category_analysis"`
	FilteredComments map[string]*SentimentBuckets `json:"filtered_comments"`
}

func newAggregate(categories []string, total int) *AggregateResult {
	agg := &AggregateResult{
		TotalComments:    total,
		Categories:       categories,
		CategoryAnalysis: make(map[string]*CategoryAnalysis, len(categories)),
		FilteredComments: make(map[string]*SentimentBuckets, len(categories)),
	}
	for _, id := range categories {
		agg.CategoryAnalysis[id] = &CategoryAnalysis{SentimentBuckets: *newBuckets()}
		agg.FilteredComments[id] = newBuckets()
	}
	return agg
}

func (a *AggregateResult) add(category string, c AnalyzedComment) {
	ca := a.CategoryAnalysis[category]
	ca.TotalMentions++
	ca.add(c)
	a.FilteredComments[category].add(c)
}

// Filter returns the comments of category with the given sentiment, or all of the
// category's comments when sentiment is empty. Unknown categories yield nothing.
func (a *AggregateResult) Filter(category string, sentiment Sentiment) []AnalyzedComment {
	b, ok := a.FilteredComments[category]
	if !ok {
		return []AnalyzedComment{}
	}
	if sentiment == "" {
		return b.All()
	}
	out := b.Bucket(sentiment)
	if out == nil {
		return []AnalyzedComment{}
	}
	return out
}

// Negative returns the negative comments of category
func (a *AggregateResult) Negative(category string) []AnalyzedComment {
	ca, ok := a.CategoryAnalysis[category]
	if !ok {
		return nil
	}
	return ca.Negative
}
