// Package report renders classification and priority results as plain text.
// Output is deterministic: the same input always renders the same bytes.
package report

import (
	"fmt"
	"strings"

	"github.com/rajasatyajit/CommentIntel/internal/classifier"
	"github.com/rajasatyajit/CommentIntel/internal/priority"
	"github.com/rajasatyajit/CommentIntel/pkg/utils"
)

const (
	wideRule   = 80
	narrowRule = 50

	exampleIssues   = 3
	exampleActions  = 3
	exampleRunes    = 100
	truncatedSuffix = "..."
)

// CategoryReport lists mention and sentiment counts of every mentioned category in
// configuration order.
func CategoryReport(agg *classifier.AggregateResult) string {
	var b strings.Builder
	b.WriteString("TOPIC SENTIMENT ANALYSIS\n")
	b.WriteString(strings.Repeat("=", narrowRule) + "\n")
	fmt.Fprintf(&b, "Total comments: %d\n", agg.TotalComments)

	for _, id := range agg.Categories {
		ca := agg.CategoryAnalysis[id]
		if ca == nil || ca.TotalMentions == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s: %d mentions\n", strings.ToUpper(id), ca.TotalMentions)
		fmt.Fprintf(&b, "   Positive: %d\n", len(ca.Positive))
		fmt.Fprintf(&b, "   Negative: %d\n", len(ca.Negative))
		fmt.Fprintf(&b, "   Neutral: %d\n", len(ca.Neutral))
	}
	return b.String()
}

// FilteredReport lists the comments of one category, optionally narrowed to a sentiment.
// It returns an empty string when nothing matches.
func FilteredReport(agg *classifier.AggregateResult, category string, sentiment classifier.Sentiment) string {
	comments := agg.Filter(category, sentiment)
	if len(comments) == 0 {
		return ""
	}

	label := "ALL"
	if sentiment != "" {
		label = strings.ToUpper(string(sentiment))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s - %s\n", strings.ToUpper(category), label)
	b.WriteString(strings.Repeat("=", 40) + "\n")
	for i, c := range comments {
		user := c.User
		if user == "" {
			user = "anonymous"
		}
		fmt.Fprintf(&b, "\n%d. %s: %s\n", i+1, user, utils.Truncate(c.Comment, exampleRunes, truncatedSuffix))
	}
	return b.String()
}

// PriorityReport renders the summary, the per-category details and the action plan.
// Categories appear in the order of a.CriticalIssues.
func PriorityReport(a *priority.Analysis) string {
	var b strings.Builder
	rule := strings.Repeat("=", wideRule)

	b.WriteString("NEGATIVITY AND PRIORITY REPORT\n")
	b.WriteString(rule + "\n")

	s := a.Summary
	if s.NothingCritical {
		fmt.Fprintf(&b, "\n%s\n", s.Message)
		return b.String()
	}

	b.WriteString("\nSUMMARY\n")
	fmt.Fprintf(&b, "   Critical categories: %d\n", s.TotalCriticalCategories)

	if h := s.HighestPriority; h != nil {
		b.WriteString("\nHIGHEST PRIORITY\n")
		fmt.Fprintf(&b, "   Category: %s\n", strings.ToUpper(h.Category))
		fmt.Fprintf(&b, "   Priority score: %s/100\n", formatScore(h.Score))
		fmt.Fprintf(&b, "   Description: %s\n", h.Description)
	}

	writeBucket(&b, "URGENT CATEGORIES (80+)", "[!]", s.UrgentCategories)
	writeBucket(&b, "HIGH PRIORITY CATEGORIES (60-79)", "[*]", s.ModerateCategories)
	writeBucket(&b, "LOW PRIORITY CATEGORIES (<60)", "[-]", s.LowPriorityCategories)

	b.WriteString("\n" + rule + "\n")
	b.WriteString("ISSUE DETAILS\n")
	b.WriteString(rule + "\n")

	for _, issue := range a.CriticalIssues {
		fmt.Fprintf(&b, "\n%s %s - %s PRIORITY\n", marker(issue.PriorityScore), strings.ToUpper(issue.Category), strings.ToUpper(string(priority.TierFor(issue.PriorityScore))))
		fmt.Fprintf(&b, "   Priority score: %s/100\n", formatScore(issue.PriorityScore))
		fmt.Fprintf(&b, "   Department: %s\n", issue.Priority.Department)
		fmt.Fprintf(&b, "   Negative comments: %d\n", issue.TotalNegativeComments)
		fmt.Fprintf(&b, "   Average negativity: %s/10\n", formatScore(issue.AverageNegativity))
		fmt.Fprintf(&b, "   Critical keyword mentions: %d\n", issue.CriticalKeywordMentions)
		fmt.Fprintf(&b, "   Complaints in the last 7 days: %d\n", issue.RecentComplaints)

		if len(issue.IssueDetails) > 0 {
			b.WriteString("   Example problems:\n")
			for i, d := range issue.IssueDetails {
				if i == exampleIssues {
					break
				}
				fmt.Fprintf(&b, "      %d. %q\n", i+1, utils.Truncate(d.Comment, exampleRunes, truncatedSuffix))
				if len(d.CriticalKeywords) > 0 {
					fmt.Fprintf(&b, "         Critical: %s\n", strings.Join(d.CriticalKeywords, ", "))
				}
			}
		}
	}

	b.WriteString("\n" + rule + "\n")
	b.WriteString("PRIORITISED ACTION PLAN\n")
	b.WriteString(rule + "\n")

	for i, item := range a.ActionPlan {
		fmt.Fprintf(&b, "\n%s ACTION %d: %s\n", marker(item.PriorityScore), i+1, strings.ToUpper(item.Category))
		fmt.Fprintf(&b, "   Urgency: %s\n", item.Urgency)
		fmt.Fprintf(&b, "   Action type: %s\n", item.ActionType)
		fmt.Fprintf(&b, "   Responsible: %s\n", item.Department)
		fmt.Fprintf(&b, "   Problem count: %d\n", item.ProblemCount)
		b.WriteString("   Suggested actions:\n")
		for j, action := range item.SuggestedActions {
			if j == exampleActions {
				break
			}
			fmt.Fprintf(&b, "      %d. %s\n", j+1, action)
		}
	}
	return b.String()
}

func writeBucket(b *strings.Builder, title, mark string, lines []priority.CategoryScore) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s\n", title)
	for _, l := range lines {
		fmt.Fprintf(b, "   %s %s: %s/100 (%d complaints)\n", mark, strings.ToUpper(l.Category), formatScore(l.Score), l.CommentCount)
	}
}

func marker(score float64) string {
	switch {
	case score >= priority.UrgentThreshold:
		return "[!]"
	case score >= priority.ModerateThreshold:
		return "[*]"
	default:
		return "[-]"
	}
}

func formatScore(v float64) string {
	return fmt.Sprintf("%.1f", v)
}
