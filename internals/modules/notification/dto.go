package notification

import (
	"encoding/json"
	"time"
)

type CreateChannelRequest struct {
	Name    string          `json:"name" validate:"required,max=200"`
	Type    ChannelType     `json:"type" validate:"required,oneof=email webhook slack discord sms voice"`
	Config  json.RawMessage `json:"config" validate:"required"`
	Enabled *bool           `json:"enabled"`
}

type SetEnabledRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// ChannelResponse never carries the decrypted config.
type ChannelResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Type      ChannelType `json:"type"`
	Enabled   bool        `json:"enabled"`
	CreatedAt time.Time   `json:"created_at"`
}

type ListChannelsResponse struct {
	TenantID string            `json:"tenant_id"`
	Channels []ChannelResponse `json:"channels"`
}

func toChannelResponse(ch Channel) ChannelResponse {
	return ChannelResponse{
		ID:        ch.ID.String(),
		Name:      ch.Name,
		Type:      ch.Type,
		Enabled:   ch.Enabled,
		CreatedAt: ch.CreatedAt,
	}
}
