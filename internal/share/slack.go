package share

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	slackapi "github.com/slack-go/slack"
)

// maxRetries is the max number of retries for rate-limited posts.
const maxRetries = 3

// webhookPoster abstracts slack.PostWebhookContext for tests.
type webhookPoster func(ctx context.Context, url string, msg *slackapi.WebhookMessage) error

// Slack posts cards to a Slack incoming webhook.
type Slack struct {
	url  string
	post webhookPoster
}

// NewSlack returns a Slack publisher for an incoming-webhook URL.
func NewSlack(webhookURL string) (*Slack, error) {
	if webhookURL == "" {
		return nil, fmt.Errorf("slack: webhook url is required")
	}
	if !strings.HasPrefix(webhookURL, "https://") && !strings.HasPrefix(webhookURL, "http://") {
		return nil, fmt.Errorf("slack: webhook url %q is not an http(s) url", webhookURL)
	}
	return &Slack{url: webhookURL, post: slackapi.PostWebhookContext}, nil
}

// Name implements Publisher.
func (s *Slack) Name() string { return "slack" }

// Publish implements Publisher.
func (s *Slack) Publish(ctx context.Context, card Card) error {
	msg := &slackapi.WebhookMessage{
		Text:        card.Title,
		Attachments: []slackapi.Attachment{cardToAttachment(card)},
	}
	err := retryOnRateLimit(ctx, func() error {
		return s.post(ctx, s.url, msg)
	})
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	return nil
}

func cardToAttachment(card Card) slackapi.Attachment {
	att := slackapi.Attachment{
		Title:    card.Title,
		Text:     card.Body,
		Color:    card.Color,
		Fallback: card.Text(),
		Footer:   card.Footer,
	}
	for _, f := range card.Fields {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: f.Inline,
		})
	}
	return att
}

// retryOnRateLimit calls fn and retries on Slack rate limit errors, honoring
// RetryAfter when Slack sends one.
func retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) || attempt == maxRetries {
			return err
		}

		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * time.Second
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
