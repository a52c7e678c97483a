package notifier

import (
	"context"
	"fmt"
	"time"

	goslack "github.com/slack-go/slack"
	"go.uber.org/zap"
)

// Slack posts one message per terminal job failure to an incoming
// webhook, per NotifierConfig's webhook_url/channel fields.
type Slack struct {
	webhookURL string
	channel    string
	timeout    time.Duration
	logger     *zap.Logger
}

// NewSlack returns a Slack notifier. timeout bounds the webhook POST so a
// stalled Slack endpoint never blocks a Runner worker goroutine.
func NewSlack(webhookURL, channel string, timeout time.Duration, logger *zap.Logger) *Slack {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Slack{
		webhookURL: webhookURL,
		channel:    channel,
		timeout:    timeout,
		logger:     logger,
	}
}

// Notify posts a single Block Kit message per spec.md §4.12's
// `notify(title, body, severity)` contract — used both for terminal job
// failures (severity "critical") and for handler-raised opportunity
// alerts such as an at-capacity account signal. Errors are returned to
// the caller (the Runner or a Handler), which logs and discards them —
// Notify itself performs no retry.
func (s *Slack) Notify(ctx context.Context, title, body, severity string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text := fmt.Sprintf("%s *%s*\n%s", severityEmoji(severity), title, body)
	msg := &goslack.WebhookMessage{
		Channel: s.channel,
		Blocks: &goslack.Blocks{
			BlockSet: []goslack.Block{
				goslack.NewSectionBlock(
					goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false),
					nil, nil,
				),
			},
		},
	}

	if err := goslack.PostWebhookContext(ctx, s.webhookURL, msg); err != nil {
		return fmt.Errorf("notifier: post webhook: %w", err)
	}
	return nil
}

func severityEmoji(severity string) string {
	switch severity {
	case "critical":
		return ":rotating_light:"
	case "warning":
		return ":warning:"
	default:
		return ":information_source:"
	}
}

// Noop discards every notification; used when no Slack webhook/token is
// configured so the Runner can always dereference a non-nil Notifier.
type Noop struct{}

func (Noop) Notify(context.Context, string, string, string) error { return nil }
