package probe

import (
	"context"
	"time"

	"sentinel/internals/modules/monitor"

	"github.com/google/uuid"
)

// Error classes prefixed to the message of a failed network probe.
const (
	ErrClassTimeout           = "TIMEOUT"
	ErrClassDNS               = "DNS_FAILURE"
	ErrClassTLS               = "TLS_ERROR"
	ErrClassConnectionRefused = "CONNECTION_REFUSED"
	ErrClassNetwork           = "NETWORK_ERROR"
	ErrClassInvalidRequest    = "INVALID_REQUEST"
	ErrClassUnknown           = "UNKNOWN_ERROR"
)

type TLSInfo struct {
	Issuer          string    `json:"issuer"`
	Subject         string    `json:"subject"`
	ExpiresAt       time.Time `json:"expires_at"`
	DaysUntilExpiry int       `json:"days_until_expiry"`
}

// CheckResult is one probe outcome. Append-only.
type CheckResult struct {
	ID             uuid.UUID        `json:"id"`
	MonitorID      uuid.UUID        `json:"monitor_id"`
	Location       monitor.Location `json:"location"`
	CheckedAt      time.Time        `json:"checked_at"`
	Success        bool             `json:"success"`
	ResponseTimeMs *int64           `json:"response_time_ms,omitempty"`
	StatusCode     *int             `json:"status_code,omitempty"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	TLS            *TLSInfo         `json:"tls,omitempty"`
}

type AggregatedStatus struct {
	MonitorID        uuid.UUID          `json:"monitor_id"`
	IsHealthy        bool               `json:"is_healthy"`
	HealthyLocations []monitor.Location `json:"healthy_locations"`
	FailedLocations  []monitor.Location `json:"failed_locations"`
	CheckedAt        time.Time          `json:"checked_at"`
}

// ResultStore persists every probe outcome.
type ResultStore interface {
	SaveResult(ctx context.Context, r CheckResult) error
}

// StatusStore keeps the latest result per location plus a short-lived
// aggregated verdict.
type StatusStore interface {
	SetLatest(ctx context.Context, r CheckResult) error
	Latest(ctx context.Context, monitorID uuid.UUID) (map[monitor.Location]CheckResult, error)
	GetAggregated(ctx context.Context, monitorID uuid.UUID) (AggregatedStatus, bool, error)
	SetAggregated(ctx context.Context, s AggregatedStatus, ttl time.Duration) error
	InvalidateAggregated(ctx context.Context, monitorID uuid.UUID) error
	Clear(ctx context.Context, monitorID uuid.UUID) error
}
