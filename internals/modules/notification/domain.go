package notification

import (
	"context"
	"time"

	"sentinel/internals/modules/alert"

	"github.com/google/uuid"
)

type ChannelType string

const (
	ChannelEmail   ChannelType = "email"
	ChannelWebhook ChannelType = "webhook"
	ChannelSlack   ChannelType = "slack"
	ChannelDiscord ChannelType = "discord"
	ChannelSMS     ChannelType = "sms"
	ChannelVoice   ChannelType = "voice"
)

// ChannelDisabledMessage is the error message of every delivery to a disabled channel.
const ChannelDisabledMessage = "Channel is disabled"

type Channel struct {
	ID        uuid.UUID     `json:"id"`
	TenantID  uuid.UUID     `json:"tenant_id"`
	Name      string        `json:"name"`
	Type      ChannelType   `json:"type"`
	Config    ChannelConfig `json:"-"`
	Enabled   bool          `json:"enabled"`
	CreatedAt time.Time     `json:"created_at"`
}

func (c Channel) OwnerTenantID() uuid.UUID { return c.TenantID }

// Result is the outcome of one delivery attempt.
type Result struct {
	ChannelID    uuid.UUID  `json:"channel_id"`
	Success      bool       `json:"success"`
	ErrorMessage string     `json:"error_message,omitempty"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
}

type RetryItem struct {
	AlertID    uuid.UUID `json:"alert_id"`
	ChannelID  uuid.UUID `json:"channel_id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	RetryCount int       `json:"retry_count"`
	DueAt      time.Time `json:"due_at"`
}

// Key identifies the item in the queue. One alert/channel pair holds at most one slot.
func (r RetryItem) Key() string {
	return r.AlertID.String() + ":" + r.ChannelID.String()
}

type QueueStats struct {
	TotalQueued   int64 `json:"total_queued"`
	ReadyForRetry int64 `json:"ready_for_retry"`
	PendingRetry  int64 `json:"pending_retry"`
	InFlight      int64 `json:"in_flight"`
}

// RetryQueue is a time-ordered queue of failed deliveries. Claimed items
// stay invisible for the visibility timeout; unacked ones are reclaimed.
type RetryQueue interface {
	Enqueue(ctx context.Context, item RetryItem) error
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]RetryItem, error)
	Ack(ctx context.Context, item RetryItem) error
	Remove(ctx context.Context, item RetryItem) error
	Reclaim(ctx context.Context, now time.Time, limit int) (int, error)
	Stats(ctx context.Context, now time.Time) (QueueStats, error)
}

type DeliveryRecord struct {
	ID           uuid.UUID `json:"id"`
	TenantID     uuid.UUID `json:"tenant_id"`
	AlertID      uuid.UUID `json:"alert_id"`
	ChannelID    uuid.UUID `json:"channel_id"`
	Attempt      int       `json:"attempt"`
	Success      bool      `json:"success"`
	Terminal     bool      `json:"terminal"`
	ErrorMessage string    `json:"error_message,omitempty"`
	AttemptedAt  time.Time `json:"attempted_at"`
}

// ChannelStore persists channels with their config sealed for the owning tenant.
type ChannelStore interface {
	Create(ctx context.Context, ch Channel) (Channel, error)
	Get(ctx context.Context, tenantID, channelID uuid.UUID) (Channel, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]Channel, error)
	SetEnabled(ctx context.Context, tenantID, channelID uuid.UUID, enabled bool) (Channel, error)
	Delete(ctx context.Context, tenantID, channelID uuid.UUID) error
}

type DeliveryStore interface {
	Record(ctx context.Context, rec DeliveryRecord) error
	ListByAlert(ctx context.Context, tenantID, alertID uuid.UUID) ([]DeliveryRecord, error)
}

// AlertStore is the slice of the alert store the dispatcher needs.
type AlertStore interface {
	Load(ctx context.Context, alertID uuid.UUID) (alert.Alert, error)
	SetNotificationStatus(ctx context.Context, alertID uuid.UUID, channelID string, st alert.DeliveryStatus) error
}
