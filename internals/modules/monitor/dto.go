package monitor

import (
	"time"
)

type CreateMonitorRequest struct {
	Name                string   `json:"name" validate:"required,max=200"`
	URL                 string   `json:"url" validate:"required,http_url"`
	IntervalSec         int      `json:"interval_sec" validate:"required,monitor_interval"`
	TimeoutSec          int      `json:"timeout_sec" validate:"required,gt=0,ltefield=IntervalSec"`
	ExpectedStatusCodes []int    `json:"expected_status_codes" validate:"required,min=1,unique,dive,http_status"`
	Locations           []string `json:"locations" validate:"required,min=1,max=3,unique,dive,probe_location"`
	FailureThreshold    int      `json:"failure_threshold" validate:"required,gte=1,lte=100"`
}

// UpdateMonitorRequest replaces the mutable configuration of a monitor.
type UpdateMonitorRequest struct {
	Name                string   `json:"name" validate:"required,max=200"`
	URL                 string   `json:"url" validate:"required,http_url"`
	IntervalSec         int      `json:"interval_sec" validate:"required,monitor_interval"`
	TimeoutSec          int      `json:"timeout_sec" validate:"required,gt=0,ltefield=IntervalSec"`
	ExpectedStatusCodes []int    `json:"expected_status_codes" validate:"required,min=1,unique,dive,http_status"`
	Locations           []string `json:"locations" validate:"required,min=1,max=3,unique,dive,probe_location"`
	FailureThreshold    int      `json:"failure_threshold" validate:"required,gte=1,lte=100"`
	Enabled             *bool    `json:"enabled"`
}

type GetMonitorResponse struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	URL                 string    `json:"url"`
	IntervalSec         int       `json:"interval_sec"`
	TimeoutSec          int       `json:"timeout_sec"`
	ExpectedStatusCodes []int     `json:"expected_status_codes"`
	Locations           []string  `json:"locations"`
	FailureThreshold    int       `json:"failure_threshold"`
	Enabled             bool      `json:"enabled"`
	CreatedAt           time.Time `json:"created_at"`
}

type GetAllMonitorsResponse struct {
	TenantID string               `json:"tenant_id"`
	Limit    int32                `json:"limit"`
	Offset   int32                `json:"offset"`
	Monitors []GetMonitorResponse `json:"monitors"`
}

func toResponse(m Monitor) GetMonitorResponse {
	locs := make([]string, 0, len(m.Locations))
	for _, l := range m.Locations {
		locs = append(locs, string(l))
	}
	return GetMonitorResponse{
		ID:                  m.ID.String(),
		Name:                m.Name,
		URL:                 m.URL,
		IntervalSec:         int(m.Interval / time.Second),
		TimeoutSec:          int(m.Timeout / time.Second),
		ExpectedStatusCodes: m.ExpectedStatusCodes,
		Locations:           locs,
		FailureThreshold:    m.FailureThreshold,
		Enabled:             m.Enabled,
		CreatedAt:           m.CreatedAt,
	}
}

func toLocations(in []string) []Location {
	out := make([]Location, 0, len(in))
	for _, l := range in {
		out = append(out, Location(l))
	}
	return out
}
