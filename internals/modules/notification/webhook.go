package notification

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"sentinel/internals/modules/alert"
)

const (
	HeaderSignature = "X-Sentinel-Signature"
	HeaderEvent     = "X-Sentinel-Event"
)

type WebhookDeliverer struct {
	client *http.Client
}

func (d *WebhookDeliverer) Deliver(ctx context.Context, a alert.Alert, cfg ChannelConfig) error {
	c, ok := cfg.(WebhookConfig)
	if !ok {
		return mismatch(ChannelWebhook, cfg)
	}

	body, err := encode(newAlertPayload(a))
	if err != nil {
		return err
	}

	headers := make(map[string]string, len(c.Headers)+2)
	for k, v := range c.Headers {
		headers[k] = v
	}
	headers[HeaderEvent] = string(a.Type)
	if c.Secret != "" {
		headers[HeaderSignature] = Sign(c.Secret, body)
	}
	return postJSON(ctx, d.client, c.URL, body, headers)
}

// Sign returns the signature header value for body: "sha256=" + hex HMAC.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
