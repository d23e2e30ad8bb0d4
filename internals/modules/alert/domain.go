package alert

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeFailure     Type = "FAILURE"
	TypeRecovery    Type = "RECOVERY"
	TypeSSLWarning  Type = "SSL_WARNING"
	TypeSSLCritical Type = "SSL_CRITICAL"
)

// Delivery outcomes recorded per channel on an alert.
const (
	DeliveryDelivered = "delivered"
	DeliveryRetrying  = "retrying"
	DeliveryFailed    = "failed"
	DeliveryDisabled  = "disabled"
	DeliveryAbandoned = "abandoned"
)

type DeliveryStatus struct {
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Alert struct {
	ID                  uuid.UUID                 `json:"id"`
	TenantID            uuid.UUID                 `json:"tenant_id"`
	MonitorID           uuid.UUID                 `json:"monitor_id"`
	Type                Type                      `json:"type"`
	TriggeredAt         time.Time                 `json:"triggered_at"`
	ResolvedAt          *time.Time                `json:"resolved_at,omitempty"`
	ConsecutiveFailures int                       `json:"consecutive_failures"`
	Message             string                    `json:"message"`
	NotificationStatus  map[string]DeliveryStatus `json:"notification_status"`
}

func (a Alert) OwnerTenantID() uuid.UUID { return a.TenantID }

func (a Alert) Unresolved() bool { return a.ResolvedAt == nil }

type SSLSeverity string

const (
	SSLNone     SSLSeverity = "none"
	SSLWarning  SSLSeverity = "warning"
	SSLCritical SSLSeverity = "critical"
)

// State is the per-monitor alert state. Treat it as a value: Transition
// returns a new State rather than mutating its input.
type State struct {
	ConsecutiveFailures int                       `json:"consecutive_failures"`
	LastHealthy         *bool                     `json:"last_healthy,omitempty"`
	SSLSeverity         SSLSeverity               `json:"ssl_severity"`
	SSLAlertedAt        map[SSLSeverity]time.Time `json:"ssl_alerted_at,omitempty"`

	// Revision is the store revision this State was read at. Put only lands
	// while the stored revision is unchanged.
	Revision int64 `json:"-"`
}

func (s State) clone() State {
	out := s
	if s.LastHealthy != nil {
		v := *s.LastHealthy
		out.LastHealthy = &v
	}
	if s.SSLSeverity == "" {
		out.SSLSeverity = SSLNone
	}
	out.SSLAlertedAt = make(map[SSLSeverity]time.Time, len(s.SSLAlertedAt))
	for k, v := range s.SSLAlertedAt {
		out.SSLAlertedAt[k] = v
	}
	return out
}

// StateStore is a keyed store of alert state. A missing key reads as the zero
// State at revision 0. Put is compare-and-set on Revision and fails with
// apperror.Conflict when another writer got there first.
type StateStore interface {
	Get(ctx context.Context, monitorID uuid.UUID) (State, error)
	Put(ctx context.Context, monitorID uuid.UUID, s State) error
	Delete(ctx context.Context, monitorID uuid.UUID) error
}

type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

type ListQuery struct {
	TenantID  uuid.UUID
	MonitorID *uuid.UUID
	Order     Order
	Limit     int
}

// Store is the durable alert store. *Repository implements it.
type Store interface {
	Create(ctx context.Context, a Alert) error
	Resolve(ctx context.Context, alertID uuid.UUID, resolvedAt time.Time) error
	// ResolveAndRecover resolves the open FAILURE at recovery.TriggeredAt and
	// stores recovery, atomically.
	ResolveAndRecover(ctx context.Context, failureID uuid.UUID, recovery Alert) error
	ActiveFailure(ctx context.Context, monitorID uuid.UUID) (*Alert, error)
	ActiveByMonitor(ctx context.Context, monitorID uuid.UUID) ([]Alert, error)
	Load(ctx context.Context, alertID uuid.UUID) (Alert, error)
	GetByID(ctx context.Context, tenantID, alertID uuid.UUID) (Alert, error)
	List(ctx context.Context, q ListQuery) ([]Alert, error)
	SetNotificationStatus(ctx context.Context, alertID uuid.UUID, channelID string, st DeliveryStatus) error
}
