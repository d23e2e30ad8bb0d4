package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"sentinel/pkg/apperror"
	"sentinel/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Trigger runs one check of a monitor. Errors and panics are logged, never propagated.
type Trigger func(ctx context.Context, monitorID uuid.UUID) error

type ScheduledCheck struct {
	MonitorID uuid.UUID     `json:"monitor_id"`
	Interval  time.Duration `json:"interval"`
	Running   bool          `json:"running"`
	LastRunAt *time.Time    `json:"last_run_at,omitempty"`
	NextRunAt time.Time     `json:"next_run_at"`
}

type Stats struct {
	Scheduled     int   `json:"scheduled"`
	Running       int64 `json:"running"`
	Waiting       int64 `json:"waiting"`
	Started       bool  `json:"started"`
	MaxConcurrent int64 `json:"max_concurrent"`
}

type entry struct {
	monitorID uuid.UUID
	ticker    *time.Ticker
	stop      chan struct{}

	mu       sync.Mutex
	interval time.Duration
	nextRun  time.Time
	lastRun  time.Time

	// survives interval updates, so a reschedule never allows overlap
	running atomic.Bool
}

// Scheduler owns one ticker per monitor. Ticks fire at a fixed cadence; a
// tick whose previous run is still active is skipped, and a weighted
// semaphore bounds concurrent runs across all monitors.
type Scheduler struct {
	ctx     context.Context
	cancel  context.CancelFunc
	trigger Trigger
	sem     *semaphore.Weighted
	max     int64
	now     func() time.Time
	logger  *zerolog.Logger

	mu      sync.Mutex
	entries map[uuid.UUID]*entry
	started bool
	stopped bool

	running atomic.Int64
	waiting atomic.Int64
	wg      sync.WaitGroup
}

func NewScheduler(trigger Trigger, maxConcurrent int64, logger *zerolog.Logger) *Scheduler {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		ctx:     ctx,
		cancel:  cancel,
		trigger: trigger,
		sem:     semaphore.NewWeighted(maxConcurrent),
		max:     maxConcurrent,
		now:     time.Now,
		logger:  logger,
		entries: make(map[uuid.UUID]*entry),
	}
}

// Start begins dispatching ticks. Checks scheduled before Start are held until then.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	for _, e := range s.entries {
		s.runLoop(e)
	}
	s.logger.Info().Int("scheduled", len(s.entries)).Msg("scheduler started")
}

// Stop cancels every ticker and waits for in-flight checks until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	for id, e := range s.entries {
		s.stopEntry(e)
		delete(s.entries, id)
	}
	metrics.SchedulerScheduled.Set(0)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	defer s.cancel()
	select {
	case <-done:
		s.logger.Info().Msg("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

func (s *Scheduler) ScheduleCheck(monitorID uuid.UUID, interval time.Duration) error {
	const op = "scheduler.schedule_check"

	if interval <= 0 {
		return &apperror.Error{Kind: apperror.InvalidInput, Op: op, Message: "interval must be positive"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return &apperror.Error{Kind: apperror.Conflict, Op: op, Message: "scheduler is stopped"}
	}
	if e, ok := s.entries[monitorID]; ok {
		s.reset(e, interval)
		return nil
	}

	e := &entry{
		monitorID: monitorID,
		interval:  interval,
		nextRun:   s.now().Add(interval),
		stop:      make(chan struct{}),
	}
	s.entries[monitorID] = e
	metrics.SchedulerScheduled.Set(float64(len(s.entries)))

	if s.started {
		s.runLoop(e)
	}

	s.logger.Debug().Str("monitor_id", monitorID.String()).Dur("interval", interval).Msg("check scheduled")
	return nil
}

// UpdateSchedule changes the cadence of an existing schedule in place.
// In-flight work is left alone and the new interval applies from the next tick.
func (s *Scheduler) UpdateSchedule(monitorID uuid.UUID, interval time.Duration) error {
	const op = "scheduler.update_schedule"

	if interval <= 0 {
		return &apperror.Error{Kind: apperror.InvalidInput, Op: op, Message: "interval must be positive"}
	}

	s.mu.Lock()
	e, ok := s.entries[monitorID]
	if ok {
		s.reset(e, interval)
	}
	s.mu.Unlock()

	if !ok {
		return s.ScheduleCheck(monitorID, interval)
	}
	s.logger.Debug().Str("monitor_id", monitorID.String()).Dur("interval", interval).Msg("schedule updated")
	return nil
}

// CancelCheck stops future ticks. A check already running finishes.
func (s *Scheduler) CancelCheck(monitorID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[monitorID]
	if !ok {
		return
	}
	s.stopEntry(e)
	delete(s.entries, monitorID)
	metrics.SchedulerScheduled.Set(float64(len(s.entries)))

	s.logger.Debug().Str("monitor_id", monitorID.String()).Msg("check cancelled")
}

func (s *Scheduler) GetScheduledChecks() []ScheduledCheck {
	s.mu.Lock()
	out := make([]ScheduledCheck, 0, len(s.entries))
	for _, e := range s.entries {
		e.mu.Lock()
		sc := ScheduledCheck{
			MonitorID: e.monitorID,
			Interval:  e.interval,
			Running:   e.running.Load(),
			NextRunAt: e.nextRun,
		}
		if !e.lastRun.IsZero() {
			last := e.lastRun
			sc.LastRunAt = &last
		}
		e.mu.Unlock()
		out = append(out, sc)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].MonitorID.String() < out[j].MonitorID.String()
	})
	return out
}

func (s *Scheduler) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Scheduled:     len(s.entries),
		Running:       s.running.Load(),
		Waiting:       s.waiting.Load(),
		Started:       s.started && !s.stopped,
		MaxConcurrent: s.max,
	}
}

// IsScheduled reports whether monitorID has an active schedule.
func (s *Scheduler) IsScheduled(monitorID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[monitorID]
	return ok
}

// caller holds s.mu
func (s *Scheduler) reset(e *entry, interval time.Duration) {
	e.mu.Lock()
	e.interval = interval
	e.nextRun = s.now().Add(interval)
	if e.ticker != nil {
		e.ticker.Reset(interval)
	}
	e.mu.Unlock()
}

// caller holds s.mu
func (s *Scheduler) stopEntry(e *entry) {
	e.mu.Lock()
	if e.ticker != nil {
		e.ticker.Stop()
	}
	e.mu.Unlock()
	close(e.stop)
}

// caller holds s.mu
func (s *Scheduler) runLoop(e *entry) {
	e.mu.Lock()
	e.ticker = time.NewTicker(e.interval)
	e.nextRun = s.now().Add(e.interval)
	ticks := e.ticker.C
	e.mu.Unlock()

	go func() {
		for {
			select {
			case <-e.stop:
				return
			case <-s.ctx.Done():
				return
			case <-ticks:
				s.onTick(e)
			}
		}
	}()
}

func (s *Scheduler) onTick(e *entry) {
	now := s.now()
	e.mu.Lock()
	e.nextRun = now.Add(e.interval)
	e.mu.Unlock()

	// wg.Add must not race with the Wait in Stop
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}

	// overlap prevention
	if !e.running.CompareAndSwap(false, true) {
		s.mu.Unlock()
		metrics.SchedulerTicksSkipped.Inc()
		s.logger.Debug().Str("monitor_id", e.monitorID.String()).Msg("previous check still running, tick skipped")
		return
	}

	s.wg.Add(1)
	s.mu.Unlock()
	go s.dispatch(e)
}

func (s *Scheduler) dispatch(e *entry) {
	defer s.wg.Done()
	defer e.running.Store(false)

	// deferred, not dropped: wait for a slot under the global cap
	s.waiting.Add(1)
	err := s.sem.Acquire(s.ctx, 1)
	s.waiting.Add(-1)
	if err != nil {
		return
	}
	defer s.sem.Release(1)

	s.running.Add(1)
	metrics.SchedulerRunning.Inc()
	defer func() {
		s.running.Add(-1)
		metrics.SchedulerRunning.Dec()
	}()

	e.mu.Lock()
	e.lastRun = s.now()
	e.mu.Unlock()

	s.invoke(e.monitorID)
}

func (s *Scheduler) invoke(monitorID uuid.UUID) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("monitor_id", monitorID.String()).
				Interface("panic", r).
				Msg("check trigger panicked")
		}
	}()

	start := time.Now()
	if err := s.trigger(s.ctx, monitorID); err != nil {
		s.logger.Error().
			Err(err).
			Str("monitor_id", monitorID.String()).
			Dur("duration", time.Since(start)).
			Msg("check trigger failed")
	}
}
