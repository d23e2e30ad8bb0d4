package result

import (
	"context"
	"time"

	"sentinel/internals/modules/alert"
	"sentinel/internals/modules/monitor"
	"sentinel/internals/modules/probe"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type MonitorGetter interface {
	GetMonitor(ctx context.Context, tenantID, monitorID uuid.UUID) (monitor.Monitor, error)
}

type StatusReader interface {
	GetAggregatedStatus(ctx context.Context, m monitor.Monitor) (probe.AggregatedStatus, error)
}

type AlertReader interface {
	ListAlerts(ctx context.Context, q alert.ListQuery) ([]alert.Alert, error)
	ActiveAlerts(ctx context.Context, monitorID uuid.UUID) ([]alert.Alert, error)
}

// uptime windows reported with a monitor's status
var windows = []struct {
	label string
	span  time.Duration
}{
	{"24h", 24 * time.Hour},
	{"7d", 7 * 24 * time.Hour},
	{"30d", 30 * 24 * time.Hour},
}

const recentChecks = 10

type MonitorStatus struct {
	MonitorID    uuid.UUID              `json:"monitor_id"`
	Status       probe.AggregatedStatus `json:"status"`
	Uptime       []Uptime               `json:"uptime"`
	ActiveAlerts []alert.Alert          `json:"active_alerts"`
	RecentChecks []probe.CheckResult    `json:"recent_checks"`
}

// Service is the read side of check results for the dashboard API.
type Service struct {
	monitors MonitorGetter
	status   StatusReader
	recorder Recorder
	alerts   AlertReader
	now      func() time.Time
	logger   *zerolog.Logger
}

func NewService(monitors MonitorGetter, status StatusReader, recorder Recorder, alerts AlertReader, logger *zerolog.Logger) *Service {
	return &Service{
		monitors: monitors,
		status:   status,
		recorder: recorder,
		alerts:   alerts,
		now:      time.Now,
		logger:   logger,
	}
}

// GetUptime reports the share of successful checks since now-window.
func (s *Service) GetUptime(ctx context.Context, monitorID uuid.UUID, label string, window time.Duration) (Uptime, error) {
	successful, total, err := s.recorder.CountChecks(ctx, monitorID, s.now().Add(-window))
	if err != nil {
		return Uptime{}, err
	}
	return Uptime{
		Window:     label,
		Successful: successful,
		Total:      total,
		Percentage: CalculateUptime(successful, total),
	}, nil
}

// GetStatus returns the aggregated verdict, uptime and open alerts of a
// monitor owned by tenantID.
func (s *Service) GetStatus(ctx context.Context, tenantID, monitorID uuid.UUID) (MonitorStatus, error) {
	m, err := s.monitors.GetMonitor(ctx, tenantID, monitorID)
	if err != nil {
		return MonitorStatus{}, err
	}

	agg, err := s.status.GetAggregatedStatus(ctx, m)
	if err != nil {
		return MonitorStatus{}, err
	}

	out := MonitorStatus{MonitorID: m.ID, Status: agg, Uptime: make([]Uptime, 0, len(windows))}
	for _, w := range windows {
		u, err := s.GetUptime(ctx, m.ID, w.label, w.span)
		if err != nil {
			return MonitorStatus{}, err
		}
		out.Uptime = append(out.Uptime, u)
	}

	if out.ActiveAlerts, err = s.alerts.ActiveAlerts(ctx, m.ID); err != nil {
		return MonitorStatus{}, err
	}
	if out.RecentChecks, err = s.recorder.ListRecent(ctx, m.ID, recentChecks); err != nil {
		return MonitorStatus{}, err
	}
	return out, nil
}

// GetMonitorAlerts lists the alert history of one monitor after checking ownership.
func (s *Service) GetMonitorAlerts(ctx context.Context, tenantID, monitorID uuid.UUID, q alert.ListQuery) ([]alert.Alert, error) {
	m, err := s.monitors.GetMonitor(ctx, tenantID, monitorID)
	if err != nil {
		return nil, err
	}
	q.TenantID = tenantID
	q.MonitorID = &m.ID
	return s.alerts.ListAlerts(ctx, q)
}
