package result

import (
	"context"
	"time"

	"sentinel/internals/modules/alert"
	"sentinel/internals/modules/monitor"
	"sentinel/internals/modules/probe"

	"github.com/google/uuid"
)

// Recorder is the durable append-only log of check results.
type Recorder interface {
	Insert(ctx context.Context, r probe.CheckResult) error
	CountChecks(ctx context.Context, monitorID uuid.UUID, since time.Time) (successful, total int64, err error)
	ListRecent(ctx context.Context, monitorID uuid.UUID, limit int32) ([]probe.CheckResult, error)
}

// MonitorLoader resolves the monitor a scheduler tick refers to.
type MonitorLoader interface {
	LoadMonitor(ctx context.Context, monitorID uuid.UUID) (monitor.Monitor, error)
}

type MultiChecker interface {
	ExecuteMultiLocationCheck(ctx context.Context, m monitor.Monitor) []probe.CheckResult
}

type Evaluator interface {
	Evaluate(ctx context.Context, m monitor.Monitor, results []probe.CheckResult) ([]alert.Alert, error)
}

// AlertPublisher hands freshly raised alerts to the notification transport.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, a alert.Alert) error
}

type Uptime struct {
	Window     string  `json:"window"`
	Successful int64   `json:"successful_checks"`
	Total      int64   `json:"total_checks"`
	Percentage float64 `json:"percentage"`
}

// CalculateUptime returns successful/total as a percentage in [0,100]. 0/0 is 0.
func CalculateUptime(successful, total int64) float64 {
	if total <= 0 || successful <= 0 {
		return 0
	}
	if successful >= total {
		return 100
	}
	return float64(successful) / float64(total) * 100
}
