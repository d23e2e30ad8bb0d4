package monitor

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

type Location string

const (
	LocationUSEast      Location = "us-east"
	LocationUSWest      Location = "us-west"
	LocationEUWest      Location = "eu-west"
	LocationEUCentral   Location = "eu-central"
	LocationAPSoutheast Location = "ap-southeast"
)

type Monitor struct {
	ID                  uuid.UUID     `json:"id"`
	TenantID            uuid.UUID     `json:"tenant_id"`
	Name                string        `json:"name"`
	URL                 string        `json:"url"`
	Interval            time.Duration `json:"interval"`
	Timeout             time.Duration `json:"timeout"`
	ExpectedStatusCodes []int         `json:"expected_status_codes"`
	Locations           []Location    `json:"locations"`
	FailureThreshold    int           `json:"failure_threshold"`
	Enabled             bool          `json:"enabled"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

func (m Monitor) OwnerTenantID() uuid.UUID { return m.TenantID }

// AcceptsStatus reports whether code counts as a healthy response.
func (m Monitor) AcceptsStatus(code int) bool {
	return slices.Contains(m.ExpectedStatusCodes, code)
}

type CreateMonitorCmd struct {
	TenantID            uuid.UUID
	Name                string
	URL                 string
	Interval            time.Duration
	Timeout             time.Duration
	ExpectedStatusCodes []int
	Locations           []Location
	FailureThreshold    int
}

type UpdateMonitorCmd struct {
	Name                string
	URL                 string
	Interval            time.Duration
	Timeout             time.Duration
	ExpectedStatusCodes []int
	Locations           []Location
	FailureThreshold    int
	Enabled             bool
}
