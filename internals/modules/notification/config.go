package notification

import (
	"bytes"
	"encoding/json"
	"fmt"

	"sentinel/pkg/apperror"
	"sentinel/pkg/validation"
)

// ChannelConfig is the typed configuration of one channel type.
type ChannelConfig interface {
	ChannelType() ChannelType
}

type EmailConfig struct {
	Host     string   `json:"host" validate:"required,hostname|ip"`
	Port     int      `json:"port" validate:"required,gt=0,lt=65536"`
	Username string   `json:"username"`
	Password string   `json:"password" validate:"required_with=Username"`
	From     string   `json:"from" validate:"required,email"`
	To       []string `json:"to" validate:"required,min=1,dive,email"`
	StartTLS bool     `json:"starttls"`
}

type WebhookConfig struct {
	URL     string            `json:"url" validate:"required,http_url"`
	Headers map[string]string `json:"headers"`
	// Secret signs the body with HMAC-SHA256 when set.
	Secret string `json:"secret"`
}

type SlackConfig struct {
	WebhookURL string `json:"webhook_url" validate:"required,http_url"`
	Channel    string `json:"channel"`
}

type DiscordConfig struct {
	WebhookURL string `json:"webhook_url" validate:"required,http_url"`
	Username   string `json:"username"`
}

// TwilioConfig is shared by the sms and voice channels.
type TwilioConfig struct {
	AccountSID string   `json:"account_sid" validate:"required"`
	AuthToken  string   `json:"auth_token" validate:"required"`
	From       string   `json:"from" validate:"required,e164"`
	To         []string `json:"to" validate:"required,min=1,dive,e164"`
	BaseURL    string   `json:"base_url" validate:"omitempty,http_url"`
}

type SMSConfig TwilioConfig

type VoiceConfig TwilioConfig

func (EmailConfig) ChannelType() ChannelType   { return ChannelEmail }
func (WebhookConfig) ChannelType() ChannelType { return ChannelWebhook }
func (SlackConfig) ChannelType() ChannelType   { return ChannelSlack }
func (DiscordConfig) ChannelType() ChannelType { return ChannelDiscord }
func (SMSConfig) ChannelType() ChannelType     { return ChannelSMS }
func (VoiceConfig) ChannelType() ChannelType   { return ChannelVoice }

func newConfig(typ ChannelType) (ChannelConfig, error) {
	switch typ {
	case ChannelEmail:
		return &EmailConfig{}, nil
	case ChannelWebhook:
		return &WebhookConfig{}, nil
	case ChannelSlack:
		return &SlackConfig{}, nil
	case ChannelDiscord:
		return &DiscordConfig{}, nil
	case ChannelSMS:
		return &SMSConfig{}, nil
	case ChannelVoice:
		return &VoiceConfig{}, nil
	default:
		return nil, fmt.Errorf("unknown channel type %q", typ)
	}
}

// DecodeConfig parses raw into the config struct of typ and validates it.
func DecodeConfig(v *validation.Validator, typ ChannelType, raw json.RawMessage) (ChannelConfig, error) {
	const op = "notification.config.decode"

	cfg, err := newConfig(typ)
	if err != nil {
		return nil, &apperror.Error{
			Kind:    apperror.InvalidInput,
			Op:      op,
			Err:     err,
			Message: "unsupported channel type",
			Fields:  []apperror.FieldError{{Field: "type", Message: "must be one of [email webhook slack discord sms voice]", Code: "oneof"}},
		}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, &apperror.Error{
			Kind:    apperror.InvalidInput,
			Op:      op,
			Err:     err,
			Message: "malformed channel config",
			Fields:  []apperror.FieldError{{Field: "config", Message: err.Error(), Code: "json"}},
		}
	}

	res := v.Validate(cfg)
	if !res.IsValid {
		// field paths are reported relative to the request body
		for i := range res.Errors {
			res.Errors[i].Field = "config." + res.Errors[i].Field
		}
		return nil, res.Err(op)
	}
	return deref(cfg), nil
}

// deref stores configs by value so type switches stay simple.
func deref(cfg ChannelConfig) ChannelConfig {
	switch c := cfg.(type) {
	case *EmailConfig:
		return *c
	case *WebhookConfig:
		return *c
	case *SlackConfig:
		return *c
	case *DiscordConfig:
		return *c
	case *SMSConfig:
		return *c
	case *VoiceConfig:
		return *c
	default:
		return cfg
	}
}
