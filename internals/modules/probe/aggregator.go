package probe

import (
	"context"
	"time"

	"sentinel/internals/modules/monitor"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Checker runs one probe. *Executor implements it.
type Checker interface {
	ExecuteCheck(ctx context.Context, m monitor.Monitor, loc monitor.Location) CheckResult
}

type Aggregator struct {
	checker  Checker
	status   StatusStore
	cacheTTL time.Duration
	now      func() time.Time
	logger   *zerolog.Logger
}

func NewAggregator(checker Checker, status StatusStore, cacheTTL time.Duration, logger *zerolog.Logger) *Aggregator {
	return &Aggregator{
		checker:  checker,
		status:   status,
		cacheTTL: cacheTTL,
		now:      time.Now,
		logger:   logger,
	}
}

// ExecuteMultiLocationCheck probes every configured location in parallel and
// returns one result per location, in configured order.
func (a *Aggregator) ExecuteMultiLocationCheck(ctx context.Context, m monitor.Monitor) []CheckResult {
	results := make([]CheckResult, len(m.Locations))

	// probes never fail, so the group is only used for fan-out and join
	var g errgroup.Group
	for i, loc := range m.Locations {
		g.Go(func() error {
			results[i] = a.checker.ExecuteCheck(ctx, m, loc)
			return nil
		})
	}
	_ = g.Wait()

	if err := a.status.InvalidateAggregated(ctx, m.ID); err != nil {
		a.logger.Warn().Err(err).Str("monitor_id", m.ID.String()).Msg("failed to invalidate aggregated status")
	}

	return results
}

// GetAggregatedStatus reduces the latest per-location results to one verdict.
func (a *Aggregator) GetAggregatedStatus(ctx context.Context, m monitor.Monitor) (AggregatedStatus, error) {
	if cached, ok, err := a.status.GetAggregated(ctx, m.ID); err == nil && ok {
		return cached, nil
	}

	latest, err := a.status.Latest(ctx, m.ID)
	if err != nil {
		return AggregatedStatus{}, err
	}

	s := Aggregate(m, latest, a.now())
	if err := a.status.SetAggregated(ctx, s, a.cacheTTL); err != nil {
		a.logger.Warn().Err(err).Str("monitor_id", m.ID.String()).Msg("failed to cache aggregated status")
	}
	return s, nil
}

// InvalidateStatus drops the cached verdict so the next read recomputes it
// from the monitor's current locations.
func (a *Aggregator) InvalidateStatus(ctx context.Context, monitorID uuid.UUID) error {
	return a.status.InvalidateAggregated(ctx, monitorID)
}

// Forget drops the latest results and cached verdict of a monitor.
func (a *Aggregator) Forget(ctx context.Context, monitorID uuid.UUID) error {
	return a.status.Clear(ctx, monitorID)
}

// Aggregate computes the OR verdict over m's configured locations. A location
// without a result counts as failed.
func Aggregate(m monitor.Monitor, latest map[monitor.Location]CheckResult, now time.Time) AggregatedStatus {
	s := AggregatedStatus{
		MonitorID:        m.ID,
		HealthyLocations: make([]monitor.Location, 0, len(m.Locations)),
		FailedLocations:  make([]monitor.Location, 0, len(m.Locations)),
		CheckedAt:        now,
	}

	var newest time.Time
	for _, loc := range m.Locations {
		r, ok := latest[loc]
		if ok && r.Success {
			s.HealthyLocations = append(s.HealthyLocations, loc)
		} else {
			s.FailedLocations = append(s.FailedLocations, loc)
		}
		if ok && r.CheckedAt.After(newest) {
			newest = r.CheckedAt
		}
	}
	if !newest.IsZero() {
		s.CheckedAt = newest
	}
	s.IsHealthy = len(s.HealthyLocations) > 0
	return s
}
