// Package notify posts run alerts to Slack.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/rajasatyajit/CommentIntel/config"
	apperrors "github.com/rajasatyajit/CommentIntel/internal/errors"
	"github.com/rajasatyajit/CommentIntel/internal/logger"
	"github.com/rajasatyajit/CommentIntel/internal/models"
	"github.com/rajasatyajit/CommentIntel/internal/priority"
)

// maxActions bounds the action plan lines included in one alert
const maxActions = 5

// Slack posts a message when a run's top issue reaches the configured tier
type Slack struct {
	client  *slack.Client
	channel string
	minTier priority.Tier
}

// NewSlack creates a Slack notifier from alerting config. Extra options are
// passed to the Slack client.
func NewSlack(cfg config.AlertingConfig, opts ...slack.Option) (*Slack, error) {
	if !cfg.Enabled() {
		return nil, &apperrors.ConfigError{Source: "alerting", Err: fmt.Errorf("slack token and channel are required")}
	}
	minTier := priority.TierUrgent
	if cfg.MinTier != "" {
		t, ok := priority.ParseTier(cfg.MinTier)
		if !ok {
			return nil, &apperrors.ConfigError{Source: "alerting", Err: fmt.Errorf("unknown tier %q", cfg.MinTier)}
		}
		minTier = t
	}
	return &Slack{
		client:  slack.New(cfg.SlackToken, opts...),
		channel: cfg.SlackChannel,
		minTier: minTier,
	}, nil
}

// NotifyRun posts an alert for run when its top issue is at or above the minimum tier
func (s *Slack) NotifyRun(ctx context.Context, run *models.AnalysisRun, analysis *priority.Analysis) error {
	if run == nil || analysis == nil {
		return nil
	}
	top := analysis.Top()
	if top == nil || priority.TierFor(top.PriorityScore).Rank() < s.minTier.Rank() {
		return nil
	}

	text := s.message(run, analysis)
	_, _, err := s.client.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(
			slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, "Customer comment alert", false, false)),
			slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil),
		),
	)
	if err != nil {
		return fmt.Errorf("post slack alert: %w", err)
	}

	logger.WithContext(ctx).Info("Posted Slack alert",
		"run_id", run.ID,
		"channel", s.channel,
		"category", top.Category,
		"score", top.PriorityScore,
	)
	return nil
}

func (s *Slack) message(run *models.AnalysisRun, analysis *priority.Analysis) string {
	top := analysis.Top()
	tier := priority.TierFor(top.PriorityScore)

	var b strings.Builder
	fmt.Fprintf(&b, "*%s* issue in `%s`: *%s* scored %.1f (%s)\n",
		strings.ToUpper(string(tier)), run.Source, top.Category, top.PriorityScore, tier.Urgency())
	fmt.Fprintf(&b, "%d of %d comments relevant, %d negative in top category\n",
		run.RelevantComments, run.TotalComments, top.TotalNegativeComments)

	n := 0
	for _, item := range analysis.ActionPlan {
		if item.Tier.Rank() < s.minTier.Rank() || n == maxActions {
			break
		}
		fmt.Fprintf(&b, "• %s → %s: %s\n", item.Category, item.Department, item.ActionType)
		n++
	}
	fmt.Fprintf(&b, "Run `%s`", run.ID)
	return b.String()
}
