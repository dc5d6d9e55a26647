package slackbot

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"salescomposer/internal/domain"
)

const maxQuotedFeedback = 500

// Notifier posts newly captured sales feedback to a Slack channel.
type Notifier struct {
	api     *slack.Client
	channel string
	log     *zap.Logger
}

// NewNotifier returns nil when token or channel is empty, which callers treat
// as notifications disabled.
func NewNotifier(token, channel string, log *zap.Logger, opts ...slack.Option) *Notifier {
	if strings.TrimSpace(token) == "" || strings.TrimSpace(channel) == "" {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{api: slack.New(token, opts...), channel: channel, log: log}
}

func (n *Notifier) FeedbackSaved(ctx context.Context, e domain.FeedbackEntry) error {
	if n == nil {
		return nil
	}
	_, ts, err := n.api.PostMessageContext(ctx, n.channel,
		slack.MsgOptionText(fallbackText(e), false),
		slack.MsgOptionBlocks(feedbackBlocks(e)...),
	)
	if err != nil {
		return fmt.Errorf("post feedback %s to slack: %w", e.ID, err)
	}
	n.log.Debug("feedback posted to slack", zap.String("feedback_id", e.ID), zap.String("ts", ts))
	return nil
}

func fallbackText(e domain.FeedbackEntry) string {
	return fmt.Sprintf("New sales feedback %s (%s): %s", e.ID, e.Priority, quote(e.UserFeedback))
}

func feedbackBlocks(e domain.FeedbackEntry) []slack.Block {
	blocks := []slack.Block{
		slack.NewHeaderBlock(
			slack.NewTextBlockObject(slack.PlainTextType,
				fmt.Sprintf("New sales feedback [%s]", strings.ToUpper(string(e.Priority))),
				false, false,
			),
		),
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, "> "+quote(e.UserFeedback), false, false),
			nil, nil,
		),
	}

	if len(e.AppliedRules) > 0 {
		var b strings.Builder
		b.WriteString("*Rules extracted*")
		for _, r := range e.AppliedRules {
			b.WriteString("\n• ")
			b.WriteString(r)
		}
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, b.String(), false, false),
			nil, nil,
		))
	}

	scenarios := "none"
	if len(e.AppliesToScenarios) > 0 {
		scenarios = strings.Join(e.AppliesToScenarios, ", ")
	}
	blocks = append(blocks, slack.NewContextBlock("",
		slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("`%s` · scenarios: %s · input %s", e.ID, scenarios, e.InputHash),
			false, false,
		),
	))
	return blocks
}

func quote(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	if r := []rune(s); len(r) > maxQuotedFeedback {
		return string(r[:maxQuotedFeedback]) + "..."
	}
	return s
}
