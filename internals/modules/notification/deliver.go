package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"sentinel/internals/modules/alert"
)

const userAgent = "sentinel-notifier/1.0"

// Deliverer sends one alert through one channel type.
type Deliverer interface {
	Deliver(ctx context.Context, a alert.Alert, cfg ChannelConfig) error
}

// PermanentError marks a delivery failure that a retry cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

func permanent(err error) error {
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err should not be retried.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// NewDeliverers returns the deliverer of every channel type.
func NewDeliverers(client *http.Client) map[ChannelType]Deliverer {
	chat := &ChatDeliverer{client: client}
	twilio := &TwilioDeliverer{client: client}
	return map[ChannelType]Deliverer{
		ChannelWebhook: &WebhookDeliverer{client: client},
		ChannelSlack:   chat,
		ChannelDiscord: chat,
		ChannelEmail:   &EmailDeliverer{},
		ChannelSMS:     twilio,
		ChannelVoice:   twilio,
	}
}

func title(a alert.Alert) string {
	switch a.Type {
	case alert.TypeFailure:
		return "Monitor DOWN"
	case alert.TypeRecovery:
		return "Monitor RECOVERED"
	case alert.TypeSSLCritical:
		return "SSL certificate CRITICAL"
	case alert.TypeSSLWarning:
		return "SSL certificate WARNING"
	default:
		return string(a.Type)
	}
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("unexpected status code %d", e.code)
	}
	return fmt.Sprintf("unexpected status code %d: %s", e.code, e.body)
}

// checkResponse drains resp and turns a non-2xx status into an error.
// Client errors other than 408 and 429 are permanent.
func checkResponse(resp *http.Response) error {
	defer resp.Body.Close()
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	err := &statusError{code: resp.StatusCode, body: string(bytes.TrimSpace(snippet))}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 &&
		resp.StatusCode != http.StatusRequestTimeout && resp.StatusCode != http.StatusTooManyRequests {
		return permanent(err)
	}
	return err
}

func postJSON(ctx context.Context, client *http.Client, url string, body []byte, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	return checkResponse(resp)
}

type alertPayload struct {
	Event               string     `json:"event"`
	AlertID             string     `json:"alert_id"`
	TenantID            string     `json:"tenant_id"`
	MonitorID           string     `json:"monitor_id"`
	Type                alert.Type `json:"type"`
	Title               string     `json:"title"`
	Message             string     `json:"message"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	TriggeredAt         time.Time  `json:"triggered_at"`
	ResolvedAt          *time.Time `json:"resolved_at,omitempty"`
}

func newAlertPayload(a alert.Alert) alertPayload {
	return alertPayload{
		Event:               "alert." + string(a.Type),
		AlertID:             a.ID.String(),
		TenantID:            a.TenantID.String(),
		MonitorID:           a.MonitorID.String(),
		Type:                a.Type,
		Title:               title(a),
		Message:             a.Message,
		ConsecutiveFailures: a.ConsecutiveFailures,
		TriggeredAt:         a.TriggeredAt,
		ResolvedAt:          a.ResolvedAt,
	}
}

func mismatch(want ChannelType, cfg ChannelConfig) error {
	got := "nil"
	if cfg != nil {
		got = string(cfg.ChannelType())
	}
	return permanent(fmt.Errorf("config of type %s given to %s deliverer", got, want))
}

func encode(v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, permanent(err)
	}
	return body, nil
}
