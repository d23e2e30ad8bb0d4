package notification

import (
	"context"
	"fmt"
	"net/http"

	"sentinel/internals/modules/alert"
)

// ChatDeliverer posts to Slack and Discord incoming webhooks.
type ChatDeliverer struct {
	client *http.Client
}

type slackMessage struct {
	Text    string `json:"text"`
	Channel string `json:"channel,omitempty"`
}

type discordMessage struct {
	Content  string `json:"content"`
	Username string `json:"username,omitempty"`
}

func (d *ChatDeliverer) Deliver(ctx context.Context, a alert.Alert, cfg ChannelConfig) error {
	var (
		url     string
		payload any
	)
	switch c := cfg.(type) {
	case SlackConfig:
		url = c.WebhookURL
		payload = slackMessage{Text: fmt.Sprintf("*%s*\n%s", title(a), a.Message), Channel: c.Channel}
	case DiscordConfig:
		url = c.WebhookURL
		payload = discordMessage{Content: fmt.Sprintf("**%s**\n%s", title(a), a.Message), Username: c.Username}
	default:
		return mismatch(ChannelSlack, cfg)
	}

	body, err := encode(payload)
	if err != nil {
		return err
	}
	return postJSON(ctx, d.client, url, body, nil)
}
