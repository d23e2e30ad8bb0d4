package monitor

import (
	"context"
	"sentinel/internals/security"
	"sentinel/pkg/validation"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store is the durable monitor store. *Repository implements it.
type Store interface {
	Create(ctx context.Context, cmd CreateMonitorCmd) (Monitor, error)
	GetByID(ctx context.Context, monitorID uuid.UUID) (Monitor, error)
	Get(ctx context.Context, tenantID, monitorID uuid.UUID) (Monitor, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int32) ([]Monitor, error)
	ListEnabled(ctx context.Context) ([]Monitor, error)
	Update(ctx context.Context, tenantID, monitorID uuid.UUID, cmd UpdateMonitorCmd) (Monitor, error)
	Delete(ctx context.Context, tenantID, monitorID uuid.UUID) error
}

type Scheduler interface {
	ScheduleCheck(monitorID uuid.UUID, interval time.Duration) error
	UpdateSchedule(monitorID uuid.UUID, interval time.Duration) error
	CancelCheck(monitorID uuid.UUID)
}

// Cleaner drops state derived from a monitor (alert state, latest status)
// once the monitor is deleted or disabled.
type Cleaner interface {
	Forget(ctx context.Context, monitorID uuid.UUID) error
}

// StatusInvalidator drops a cached status verdict computed from an older
// location set.
type StatusInvalidator interface {
	InvalidateStatus(ctx context.Context, monitorID uuid.UUID) error
}

type Service struct {
	monitorRepo  Store
	cache        Cache
	scheduler    Scheduler
	cleaners     []Cleaner
	invalidators []StatusInvalidator
	validator    *validation.Validator
	logger       *zerolog.Logger
}

func NewService(monitorRepo Store, cache Cache, v *validation.Validator, logger *zerolog.Logger) *Service {
	if cache == nil {
		cache = NoopCache{}
	}
	return &Service{
		monitorRepo: monitorRepo,
		cache:       cache,
		validator:   v,
		logger:      logger,
	}
}

// AttachScheduler wires the scheduler after construction; the scheduler's
// trigger itself depends on this service.
func (s *Service) AttachScheduler(sc Scheduler) {
	s.scheduler = sc
}

func (s *Service) AddCleaner(c ...Cleaner) {
	s.cleaners = append(s.cleaners, c...)
}

func (s *Service) AddStatusInvalidator(i ...StatusInvalidator) {
	s.invalidators = append(s.invalidators, i...)
}

func (s *Service) CreateMonitor(ctx context.Context, tenantID uuid.UUID, req CreateMonitorRequest) (Monitor, error) {
	const op = "service.monitor.create"

	// reject before anything is persisted or scheduled
	if err := s.validator.Validate(req).Err(op); err != nil {
		return Monitor{}, err
	}

	m, err := s.monitorRepo.Create(ctx, CreateMonitorCmd{
		TenantID:            tenantID,
		Name:                req.Name,
		URL:                 req.URL,
		Interval:            time.Duration(req.IntervalSec) * time.Second,
		Timeout:             time.Duration(req.TimeoutSec) * time.Second,
		ExpectedStatusCodes: req.ExpectedStatusCodes,
		Locations:           toLocations(req.Locations),
		FailureThreshold:    req.FailureThreshold,
	})
	if err != nil {
		return Monitor{}, err
	}

	if s.scheduler != nil {
		if err := s.scheduler.ScheduleCheck(m.ID, m.Interval); err != nil {
			return Monitor{}, err
		}
	}

	s.logger.Info().
		Str("monitor_id", m.ID.String()).
		Str("tenant_id", tenantID.String()).
		Dur("interval", m.Interval).
		Msg("monitor created")

	return m, nil
}

func (s *Service) GetMonitor(ctx context.Context, tenantID, monitorID uuid.UUID) (Monitor, error) {
	const op = "service.monitor.get"

	m, err := s.LoadMonitor(ctx, monitorID)
	if err != nil {
		return Monitor{}, err
	}
	if err := security.RequireOwnership(op, m.TenantID, tenantID); err != nil {
		s.logger.Warn().
			Str("monitor_id", monitorID.String()).
			Str("tenant_id", tenantID.String()).
			Msg("cross-tenant monitor access rejected")
		return Monitor{}, err
	}
	return m, nil
}

// LoadMonitor reads through the cache. Engine callers only; no tenant check.
func (s *Service) LoadMonitor(ctx context.Context, monitorID uuid.UUID) (Monitor, error) {
	if m, ok := s.cache.GetMonitor(ctx, monitorID); ok {
		return m, nil
	}

	m, err := s.monitorRepo.GetByID(ctx, monitorID)
	if err != nil {
		return Monitor{}, err
	}
	if err := s.cache.SetMonitor(ctx, m); err != nil {
		s.logger.Debug().Err(err).Str("monitor_id", monitorID.String()).Msg("monitor cache set failed")
	}
	return m, nil
}

func (s *Service) GetAllMonitors(ctx context.Context, tenantID uuid.UUID, limit, offset int32) ([]Monitor, error) {
	monitors, err := s.monitorRepo.ListByTenant(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	return security.FilterByTenant(monitors, tenantID), nil
}

func (s *Service) UpdateMonitor(ctx context.Context, tenantID, monitorID uuid.UUID, req UpdateMonitorRequest) (Monitor, error) {
	const op = "service.monitor.update"

	if err := s.validator.Validate(req).Err(op); err != nil {
		return Monitor{}, err
	}

	current, err := s.GetMonitor(ctx, tenantID, monitorID)
	if err != nil {
		return Monitor{}, err
	}

	enabled := current.Enabled
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	updated, err := s.monitorRepo.Update(ctx, tenantID, monitorID, UpdateMonitorCmd{
		Name:                req.Name,
		URL:                 req.URL,
		Interval:            time.Duration(req.IntervalSec) * time.Second,
		Timeout:             time.Duration(req.TimeoutSec) * time.Second,
		ExpectedStatusCodes: req.ExpectedStatusCodes,
		Locations:           toLocations(req.Locations),
		FailureThreshold:    req.FailureThreshold,
		Enabled:             enabled,
	})
	if err != nil {
		return Monitor{}, err
	}
	_ = s.cache.DelMonitor(ctx, monitorID)
	if !sameLocations(current.Locations, updated.Locations) {
		s.invalidateStatus(ctx, monitorID)
	}

	if s.scheduler != nil {
		switch {
		case updated.Enabled && !current.Enabled:
			err = s.scheduler.ScheduleCheck(monitorID, updated.Interval)
		case updated.Enabled && updated.Interval != current.Interval:
			err = s.scheduler.UpdateSchedule(monitorID, updated.Interval)
		case !updated.Enabled && current.Enabled:
			s.scheduler.CancelCheck(monitorID)
			s.forget(ctx, monitorID)
		}
		if err != nil {
			return Monitor{}, err
		}
	}

	s.logger.Info().
		Str("monitor_id", monitorID.String()).
		Bool("enabled", updated.Enabled).
		Dur("interval", updated.Interval).
		Msg("monitor updated")

	return updated, nil
}

// DeleteMonitor removes the monitor and cascades to its schedule and derived state.
func (s *Service) DeleteMonitor(ctx context.Context, tenantID, monitorID uuid.UUID) error {
	if _, err := s.GetMonitor(ctx, tenantID, monitorID); err != nil {
		return err
	}

	if s.scheduler != nil {
		s.scheduler.CancelCheck(monitorID)
	}
	if err := s.monitorRepo.Delete(ctx, tenantID, monitorID); err != nil {
		return err
	}
	_ = s.cache.DelMonitor(ctx, monitorID)
	s.forget(ctx, monitorID)

	s.logger.Info().Str("monitor_id", monitorID.String()).Msg("monitor deleted")
	return nil
}

// ScheduleAll registers every enabled monitor with the scheduler.
func (s *Service) ScheduleAll(ctx context.Context) (int, error) {
	monitors, err := s.monitorRepo.ListEnabled(ctx)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, m := range monitors {
		if err := s.scheduler.ScheduleCheck(m.ID, m.Interval); err != nil {
			s.logger.Error().Err(err).Str("monitor_id", m.ID.String()).Msg("failed to schedule monitor")
			continue
		}
		n++
	}
	return n, nil
}

func (s *Service) invalidateStatus(ctx context.Context, monitorID uuid.UUID) {
	for _, i := range s.invalidators {
		if err := i.InvalidateStatus(ctx, monitorID); err != nil {
			s.logger.Warn().Err(err).Str("monitor_id", monitorID.String()).Msg("failed to invalidate monitor status")
		}
	}
}

// sameLocations compares as sets; order does not change the verdict.
func sameLocations(a, b []Location) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[Location]bool, len(a))
	for _, l := range a {
		seen[l] = true
	}
	for _, l := range b {
		if !seen[l] {
			return false
		}
	}
	return true
}

func (s *Service) forget(ctx context.Context, monitorID uuid.UUID) {
	for _, c := range s.cleaners {
		if err := c.Forget(ctx, monitorID); err != nil {
			s.logger.Warn().Err(err).Str("monitor_id", monitorID.String()).Msg("failed to clear monitor state")
		}
	}
}
