// Package priority turns classified negative comments into ranked, department-routed
// action items.
package priority

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rajasatyajit/CommentIntel/internal/classifier"
	apperrors "github.com/rajasatyajit/CommentIntel/internal/errors"
	"github.com/rajasatyajit/CommentIntel/internal/taxonomy"
	"github.com/rajasatyajit/CommentIntel/pkg/utils"
)

// Scoring parameters.
const (
	businessWeight   = 0.4
	negativityWeight = 0.6

	HighVolumeThreshold = 10
	volumeMultiplier    = 1.3
	timeMultiplier      = 1.2

	DefaultRecentWindow = 7 * 24 * time.Hour

	maxIssueDetails = 5
	maxIssueRunes   = 200
	nothingCritical = "no critical issues detected"
	genericAction   = "General improvement recommendations required"
)

// PriorityRecord is the score of one category and the factors behind it
type PriorityRecord struct {
	Category          string  `json:"category"`
	PriorityScore     float64 `json:"priority_score"`
	BusinessImpact    int     `json:"business_impact"`
	NegativityImpact  float64 `json:"negativity_impact"`
	UrgencyMultiplier float64 `json:"urgency_multiplier"`
	VolumeMultiplier  float64 `json:"volume_multiplier"`
	TimeMultiplier    float64 `json:"time_multiplier"`
	CommentCount      int     `json:"comment_count"`
	RecentCount       int     `json:"recent_count"`
	Department        string  `json:"department"`
	Description       string  `json:"description"`
}

// IssueDetail is a representative negative comment of a category
type IssueDetail struct {
	Index            int                  `json:"index"`
	Comment          string               `json:"comment"`
	User             string               `json:"user"`
	Date             string               `json:"date"`
	Negativity       NegativityAssessment `json:"negativity_data"`
	CriticalKeywords []string             `json:"critical_keywords"`
	IsRecent         bool                 `json:"is_recent"`
}

// CriticalIssue is the prioritised view of one category with negative comments
type CriticalIssue struct {
	Category                string             `json:"category"`
	PriorityScore           float64            `json:"priority_score"`
	Priority                PriorityRecord     `json:"priority_details"`
	TotalNegativeComments   int                `json:"total_negative_comments"`
	AverageNegativity       float64            `json:"average_negativity"`
	CriticalKeywordMentions int                `json:"critical_keyword_mentions"`
	RecentComplaints        int                `json:"recent_complaints"`
	IssueDetails            []IssueDetail      `json:"issue_details"`
	CategoryInfo            *taxonomy.Category `json:"category_info"`
}

// CategoryScore is a summary line
type CategoryScore struct {
	Category     string  `json:"category"`
	Score        float64 `json:"score"`
	CommentCount int     `json:"comment_count"`
}

// HighestPriority names the top category
type HighestPriority struct {
	Category    string  `json:"category"`
	Score       float64 `json:"score"`
	Description string  `json:"description"`
}

// Summary groups scored categories by urgency. When nothing is critical only
// NothingCritical and Message are set.
type Summary struct {
	NothingCritical         bool             `json:"nothing_critical,omitempty"`
	Message                 string           `json:"message,omitempty"`
	TotalCriticalCategories int              `json:"total_critical_categories"`
	HighestPriority         *HighestPriority `json:"highest_priority,omitempty"`
	UrgentCategories        []CategoryScore  `json:"urgent_categories"`
	ModerateCategories      []CategoryScore  `json:"moderate_categories"`
	LowPriorityCategories   []CategoryScore  `json:"low_priority_categories"`
}

// ActionItem is one entry of the action plan
type ActionItem struct {
	Category         string     `json:"category"`
	PriorityScore    float64    `json:"priority_score"`
	Tier             Tier       `json:"tier"`
	Urgency          string     `json:"urgency"`
	ActionType       string     `json:"action_type"`
	Department       string     `json:"responsible_department"`
	Description      string     `json:"description"`
	ProblemCount     int        `json:"problem_count"`
	SuggestedActions []string   `json:"suggested_actions"`
	KeyIssues        [][]string `json:"key_issues"`
}

// Analysis is the output of a prioritisation pass. CriticalIssues and ActionPlan are
// sorted by descending priority score.
type Analysis struct {
	CriticalIssues []CriticalIssue `json:"critical_issues"`
	Summary        Summary         `json:"summary"`
	ActionPlan     []ActionItem    `json:"action_plan"`
}

// Top returns the highest priority issue, or nil when nothing is critical
func (a *Analysis) Top() *CriticalIssue {
	if len(a.CriticalIssues) == 0 {
		return nil
	}
	return &a.CriticalIssues[0]
}

// Option configures an Engine
type Option func(*Engine)

// WithClock sets the time source used for recency
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRecentWindow sets how far back a complaint counts as recent
func WithRecentWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.window = d
		}
	}
}

// Engine scores categories and builds action plans. It is stateless between calls.
type Engine struct {
	tax    *taxonomy.Taxonomy
	now    func() time.Time
	window time.Duration
}

// New creates a priority engine for tax
func New(tax *taxonomy.Taxonomy, opts ...Option) *Engine {
	e := &Engine{tax: tax, now: time.Now, window: DefaultRecentWindow}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ScoreCategory computes the priority record of a category from the negativity scores
// of its negative comments.
func (e *Engine) ScoreCategory(category string, negativityScores []int, commentCount, recentCount int) (PriorityRecord, error) {
	c, ok := e.tax.Category(category)
	if !ok {
		return PriorityRecord{}, fmt.Errorf("%w: %s", apperrors.ErrUnknownCategory, category)
	}
	return scoreCategory(c, mean(negativityScores), commentCount, recentCount), nil
}

func scoreCategory(c *taxonomy.Category, negativity float64, commentCount, recentCount int) PriorityRecord {
	volume := 1.0
	if commentCount >= HighVolumeThreshold {
		volume = volumeMultiplier
	}
	recent := 1.0
	if recentCount > 0 {
		recent = timeMultiplier
	}

	raw := (float64(c.BusinessImpact)*businessWeight + negativity*negativityWeight) *
		c.UrgencyMultiplier * volume * recent * 10

	return PriorityRecord{
		Category:          c.ID,
		PriorityScore:     round1(math.Max(0, math.Min(raw, 100))),
		BusinessImpact:    c.BusinessImpact,
		NegativityImpact:  negativity,
		UrgencyMultiplier: c.UrgencyMultiplier,
		VolumeMultiplier:  volume,
		TimeMultiplier:    recent,
		CommentCount:      commentCount,
		RecentCount:       recentCount,
		Department:        c.Department,
		Description:       c.Description,
	}
}

// Analyze prioritises every category of agg that has negative comments. Categories
// unknown to the taxonomy are skipped.
func (e *Engine) Analyze(agg *classifier.AggregateResult) *Analysis {
	now := e.now()
	out := &Analysis{
		CriticalIssues: []CriticalIssue{},
		ActionPlan:     []ActionItem{},
	}

	if agg != nil {
		for _, id := range e.tax.IDs() {
			negative := agg.Negative(id)
			if len(negative) == 0 {
				continue
			}
			c, _ := e.tax.Category(id)
			out.CriticalIssues = append(out.CriticalIssues, e.assessCategory(c, negative, now))
		}
	}

	sort.SliceStable(out.CriticalIssues, func(i, j int) bool {
		return out.CriticalIssues[i].PriorityScore > out.CriticalIssues[j].PriorityScore
	})

	out.Summary = summarize(out.CriticalIssues)
	for _, issue := range out.CriticalIssues {
		out.ActionPlan = append(out.ActionPlan, actionFor(issue))
	}
	return out
}

func (e *Engine) assessCategory(c *taxonomy.Category, negative []classifier.AnalyzedComment, now time.Time) CriticalIssue {
	var (
		scores   = make([]int, 0, len(negative))
		details  = make([]IssueDetail, 0, len(negative))
		critical int
		recent   int
	)

	for _, nc := range negative {
		neg := e.AssessNegativity(nc.Comment)
		scores = append(scores, neg.Score)

		keywords := utils.MatchKeywords(e.tax.Normalize(nc.Comment), c.CriticalKeywords)
		if keywords == nil {
			keywords = []string{}
		}
		critical += len(keywords)

		isRecent := utils.WithinWindow(nc.Date, now, e.window)
		if isRecent {
			recent++
		}

		details = append(details, IssueDetail{
			Index:            nc.Index,
			Comment:          utils.Truncate(nc.Comment, maxIssueRunes, "..."),
			User:             nc.User,
			Date:             nc.Date,
			Negativity:       neg,
			CriticalKeywords: keywords,
			IsRecent:         isRecent,
		})
	}

	avg := mean(scores)
	record := scoreCategory(c, avg, len(negative), recent)
	if len(details) > maxIssueDetails {
		details = details[:maxIssueDetails]
	}

	return CriticalIssue{
		Category:                c.ID,
		PriorityScore:           record.PriorityScore,
		Priority:                record,
		TotalNegativeComments:   len(negative),
		AverageNegativity:       round1(avg),
		CriticalKeywordMentions: critical,
		RecentComplaints:        recent,
		IssueDetails:            details,
		CategoryInfo:            c,
	}
}

func summarize(issues []CriticalIssue) Summary {
	if len(issues) == 0 {
		return Summary{NothingCritical: true, Message: nothingCritical}
	}

	s := Summary{
		TotalCriticalCategories: len(issues),
		HighestPriority: &HighestPriority{
			Category:    issues[0].Category,
			Score:       issues[0].PriorityScore,
			Description: issues[0].CategoryInfo.Description,
		},
		UrgentCategories:      []CategoryScore{},
		ModerateCategories:    []CategoryScore{},
		LowPriorityCategories: []CategoryScore{},
	}
	for _, issue := range issues {
		line := CategoryScore{
			Category:     issue.Category,
			Score:        issue.PriorityScore,
			CommentCount: issue.TotalNegativeComments,
		}
		switch {
		case issue.PriorityScore >= UrgentThreshold:
			s.UrgentCategories = append(s.UrgentCategories, line)
		case issue.PriorityScore >= ModerateThreshold:
			s.ModerateCategories = append(s.ModerateCategories, line)
		default:
			s.LowPriorityCategories = append(s.LowPriorityCategories, line)
		}
	}
	return s
}

func actionFor(issue CriticalIssue) ActionItem {
	tier := TierFor(issue.PriorityScore)

	actions := issue.CategoryInfo.Actions
	if len(actions) == 0 {
		actions = []string{genericAction}
	}

	keyIssues := [][]string{}
	for _, d := range issue.IssueDetails {
		if len(d.CriticalKeywords) > 0 {
			keyIssues = append(keyIssues, d.CriticalKeywords)
		}
	}

	return ActionItem{
		Category:         issue.Category,
		PriorityScore:    issue.PriorityScore,
		Tier:             tier,
		Urgency:          tier.Urgency(),
		ActionType:       tier.ActionType(),
		Department:       issue.CategoryInfo.Department,
		Description:      issue.CategoryInfo.Description,
		ProblemCount:     issue.TotalNegativeComments,
		SuggestedActions: append([]string(nil), actions...),
		KeyIssues:        keyIssues,
	}
}

func mean(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
