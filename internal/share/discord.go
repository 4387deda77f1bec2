package share

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cenkalti/backoff/v5"
)

// webhookExecutor abstracts the discordgo.Session method we use, enabling
// test mocks.
type webhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts cards to a Discord channel webhook.
type Discord struct {
	sess      webhookExecutor
	webhookID string
	token     string
	username  string
	retryWait time.Duration
}

// DiscordOpts holds parameters for creating a Discord publisher.
type DiscordOpts struct {
	WebhookURL string // https://discord.com/api/webhooks/{id}/{token}
	Username   string // display name override, optional
	// For testing: inject a mock session instead of the real Discord API.
	Session webhookExecutor
}

// NewDiscord returns a Discord publisher.
func NewDiscord(opts DiscordOpts) (*Discord, error) {
	id, token, err := ParseDiscordWebhook(opts.WebhookURL)
	if err != nil {
		return nil, err
	}
	d := &Discord{
		sess:      opts.Session,
		webhookID: id,
		token:     token,
		username:  opts.Username,
		retryWait: time.Second,
	}
	if d.sess == nil {
		// Webhook execution needs no bot token.
		dg, err := discordgo.New("")
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		d.sess = dg
	}
	return d, nil
}

// ParseDiscordWebhook extracts the webhook id and token from a webhook URL.
func ParseDiscordWebhook(raw string) (id, token string, err error) {
	if raw == "" {
		return "", "", fmt.Errorf("discord: webhook url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("discord: parse webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] != "webhooks" {
			continue
		}
		id, token = parts[i+1], parts[i+2]
		if _, err := strconv.ParseUint(id, 10, 64); err != nil {
			return "", "", fmt.Errorf("discord: webhook id %q is not numeric", id)
		}
		if token == "" {
			break
		}
		return id, token, nil
	}
	return "", "", fmt.Errorf("discord: %q is not a webhook url", raw)
}

// Name implements Publisher.
func (d *Discord) Name() string { return "discord" }

// Publish implements Publisher.
func (d *Discord) Publish(ctx context.Context, card Card) error {
	params := &discordgo.WebhookParams{
		Username: d.username,
		Embeds:   []*discordgo.MessageEmbed{cardToEmbed(card)},
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.retryWait
	b.Multiplier = 2
	b.RandomizationFactor = 0

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		_, err := d.sess.WebhookExecute(d.webhookID, d.token, true, params, discordgo.WithContext(ctx))
		if err != nil && !isRateLimited(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(maxRetries+1))
	if err != nil {
		return fmt.Errorf("discord: execute webhook: %w", err)
	}
	return nil
}

func isRateLimited(err error) bool {
	var rest *discordgo.RESTError
	return errors.As(err, &rest) && rest.Response != nil && rest.Response.StatusCode == http.StatusTooManyRequests
}

func cardToEmbed(card Card) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       card.Title,
		Description: card.Body,
		Color:       hexColor(card.Color),
	}
	for _, f := range card.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	if card.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: card.Footer}
	}
	return embed
}

// hexColor converts "#rrggbb" to Discord's integer color. Invalid input is 0.
func hexColor(s string) int {
	n, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 16, 32)
	if err != nil {
		return 0
	}
	return int(n)
}
