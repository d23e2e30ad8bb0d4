package alert

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sentinel/internals/modules/monitor"
	"sentinel/internals/modules/probe"
	"sentinel/pkg/apperror"
	"sentinel/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allLocations = []monitor.Location{
	monitor.LocationUSEast, monitor.LocationUSWest, monitor.LocationEUWest,
	monitor.LocationEUCentral, monitor.LocationAPSoutheast,
}

func newTestMonitor(threshold, locations int) monitor.Monitor {
	return monitor.Monitor{
		ID:                  uuid.New(),
		TenantID:            uuid.New(),
		Name:                "api",
		URL:                 "https://api.example.com/health",
		Interval:            time.Minute,
		Timeout:             5 * time.Second,
		ExpectedStatusCodes: []int{200},
		Locations:           allLocations[:locations],
		FailureThreshold:    threshold,
		Enabled:             true,
	}
}

// tick builds one result per location; the first healthy locations succeed.
func tick(m monitor.Monitor, healthy int) []probe.CheckResult {
	out := make([]probe.CheckResult, 0, len(m.Locations))
	for i, loc := range m.Locations {
		r := probe.CheckResult{ID: uuid.New(), MonitorID: m.ID, Location: loc, CheckedAt: time.Now(), Success: i < healthy}
		if !r.Success {
			r.ErrorMessage = "TIMEOUT: context deadline exceeded"
		}
		out = append(out, r)
	}
	return out
}

func withTLS(results []probe.CheckResult, days ...int) []probe.CheckResult {
	for i := range results {
		d := days[i%len(days)]
		results[i].TLS = &probe.TLSInfo{Issuer: "Test CA", Subject: "api.example.com", DaysUntilExpiry: d}
	}
	return results
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestEngine() (*Engine, *MemoryRepository, *clock) {
	repo := NewMemoryRepository()
	e := NewEngine(repo, NewMemoryStateStore(), DefaultRules(), logger.Nop())
	c := &clock{now: t0}
	e.now = c.Now
	return e, repo, c
}

func countByType(t *testing.T, repo *MemoryRepository, m monitor.Monitor, typ Type) (total, unresolved int) {
	t.Helper()
	all, err := repo.List(context.Background(), ListQuery{TenantID: m.TenantID, MonitorID: &m.ID, Order: OrderAsc})
	require.NoError(t, err)
	for _, a := range all {
		if a.Type != typ {
			continue
		}
		total++
		if a.Unresolved() {
			unresolved++
		}
	}
	return total, unresolved
}

func TestEvaluateFailureThresholdAcrossLocations(t *testing.T) {
	ctx := context.Background()
	for _, threshold := range []int{1, 2, 4} {
		for locations := 1; locations <= 3; locations++ {
			e, repo, _ := newTestEngine()
			m := newTestMonitor(threshold, locations)

			for range threshold - 1 {
				_, err := e.Evaluate(ctx, m, tick(m, 0))
				require.NoError(t, err)
			}
			total, _ := countByType(t, repo, m, TypeFailure)
			assert.Zero(t, total, "T=%d L=%d: T-1 failing ticks raise nothing", threshold, locations)

			alerts, err := e.Evaluate(ctx, m, tick(m, 0))
			require.NoError(t, err)
			require.Len(t, alerts, 1)
			assert.Equal(t, TypeFailure, alerts[0].Type)
			assert.Equal(t, threshold, alerts[0].ConsecutiveFailures)
			assert.Contains(t, alerts[0].Message, "DOWN")

			// further failing ticks are deduplicated
			for range 3 {
				alerts, err := e.Evaluate(ctx, m, tick(m, 0))
				require.NoError(t, err)
				assert.Empty(t, alerts)
			}
			total, unresolved := countByType(t, repo, m, TypeFailure)
			assert.Equal(t, 1, total, "T=%d L=%d", threshold, locations)
			assert.Equal(t, 1, unresolved)

			count, err := e.EvaluateFailureConditions(ctx, m.ID)
			require.NoError(t, err)
			assert.Equal(t, threshold+3, count)
		}
	}
}

func TestEvaluateRecoveryResolvesAndEmitsOnce(t *testing.T) {
	ctx := context.Background()
	e, repo, c := newTestEngine()
	m := newTestMonitor(2, 3)

	for range 3 {
		_, err := e.Evaluate(ctx, m, tick(m, 0))
		require.NoError(t, err)
	}
	c.now = c.now.Add(10 * time.Minute)

	// one location is enough
	alerts, err := e.Evaluate(ctx, m, tick(m, 1))
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	rec := alerts[0]
	assert.Equal(t, TypeRecovery, rec.Type)
	assert.Zero(t, rec.ConsecutiveFailures)
	require.NotNil(t, rec.ResolvedAt)
	assert.Equal(t, rec.TriggeredAt, *rec.ResolvedAt)
	assert.Contains(t, rec.Message, "RECOVERED")

	for range 5 {
		alerts, err := e.Evaluate(ctx, m, tick(m, 3))
		require.NoError(t, err)
		assert.Empty(t, alerts)
	}

	failures, openFailures := countByType(t, repo, m, TypeFailure)
	recoveries, _ := countByType(t, repo, m, TypeRecovery)
	assert.Equal(t, 1, failures)
	assert.Zero(t, openFailures)
	assert.Equal(t, 1, recoveries)

	count, err := e.EvaluateFailureConditions(ctx, m.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	active, err := repo.ActiveByMonitor(ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestEvaluateNewCycleAfterRecovery(t *testing.T) {
	ctx := context.Background()
	e, repo, _ := newTestEngine()
	m := newTestMonitor(1, 2)

	for _, healthy := range []int{0, 2, 0, 1} {
		_, err := e.Evaluate(ctx, m, tick(m, healthy))
		require.NoError(t, err)
	}

	failures, open := countByType(t, repo, m, TypeFailure)
	recoveries, _ := countByType(t, repo, m, TypeRecovery)
	assert.Equal(t, 2, failures)
	assert.Zero(t, open)
	assert.Equal(t, 2, recoveries)
}

func TestEvaluatePartialOutageNeverAlerts(t *testing.T) {
	ctx := context.Background()
	e, repo, _ := newTestEngine()
	m := newTestMonitor(1, 3)

	for i := range 30 {
		// a rotating strict subset fails
		_, err := e.Evaluate(ctx, m, tick(m, 1+i%2))
		require.NoError(t, err)
	}

	total, _ := countByType(t, repo, m, TypeFailure)
	assert.Zero(t, total)
}

func TestEvaluateSSLAlerts(t *testing.T) {
	tests := []struct {
		name     string
		days     []int
		wantType Type
		marker   string
	}{
		{name: "critical", days: []int{5}, wantType: TypeSSLCritical, marker: "CRITICAL"},
		{name: "critical wins over warning", days: []int{20, 3}, wantType: TypeSSLCritical, marker: "CRITICAL"},
		{name: "warning", days: []int{15}, wantType: TypeSSLWarning, marker: "WARNING"},
		{name: "none", days: []int{90}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			e, repo, c := newTestEngine()
			m := newTestMonitor(3, 2)

			var raised []Alert
			for range 10 {
				alerts, err := e.Evaluate(ctx, m, withTLS(tick(m, 2), tt.days...))
				require.NoError(t, err)
				raised = append(raised, alerts...)
				c.now = c.now.Add(time.Hour)
			}

			if tt.wantType == "" {
				assert.Empty(t, raised)
				return
			}
			require.Len(t, raised, 1)
			assert.Equal(t, tt.wantType, raised[0].Type)
			assert.Contains(t, raised[0].Message, tt.marker)
			assert.True(t, strings.Contains(raised[0].Message, "SSL certificate"))

			warnings, _ := countByType(t, repo, m, TypeSSLWarning)
			if tt.wantType == TypeSSLCritical {
				assert.Zero(t, warnings)
			}
		})
	}
}

func TestEvaluateSSLDedupWindowElapses(t *testing.T) {
	ctx := context.Background()
	e, _, c := newTestEngine()
	m := newTestMonitor(3, 1)

	alerts, err := e.Evaluate(ctx, m, withTLS(tick(m, 1), 6))
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	c.now = c.now.Add(23 * time.Hour)
	alerts, err = e.Evaluate(ctx, m, withTLS(tick(m, 1), 6))
	require.NoError(t, err)
	assert.Empty(t, alerts)

	c.now = c.now.Add(time.Hour)
	alerts, err = e.Evaluate(ctx, m, withTLS(tick(m, 1), 6))
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestEvaluateExpiredCertificateMessage(t *testing.T) {
	e, _, _ := newTestEngine()
	m := newTestMonitor(3, 1)

	alerts, err := e.Evaluate(context.Background(), m, withTLS(tick(m, 0), -2))
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, TypeSSLCritical, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "has expired")
}

func TestEvaluateEmptyResultsIsNoop(t *testing.T) {
	e, _, _ := newTestEngine()
	m := newTestMonitor(1, 1)

	alerts, err := e.Evaluate(context.Background(), m, nil)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	s, err := e.State(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Nil(t, s.LastHealthy)
}

// failingCreate rejects every Create so the tick has to be replayed.
type failingCreate struct {
	*MemoryRepository
	fail bool
}

func (f *failingCreate) Create(ctx context.Context, a Alert) error {
	if f.fail {
		return errors.New("store unavailable")
	}
	return f.MemoryRepository.Create(ctx, a)
}

func TestEvaluateStateNotSavedWhenAlertWriteFails(t *testing.T) {
	ctx := context.Background()
	repo := &failingCreate{MemoryRepository: NewMemoryRepository(), fail: true}
	e := NewEngine(repo, NewMemoryStateStore(), DefaultRules(), logger.Nop())
	m := newTestMonitor(1, 1)

	_, err := e.Evaluate(ctx, m, tick(m, 0))
	require.Error(t, err)

	count, err := e.EvaluateFailureConditions(ctx, m.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	repo.fail = false
	alerts, err := e.Evaluate(ctx, m, tick(m, 0))
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, TypeFailure, alerts[0].Type)
}

// flakyRecovery fails the first recovery write.
type flakyRecovery struct {
	*MemoryRepository
	failures int
}

func (f *flakyRecovery) ResolveAndRecover(ctx context.Context, failureID uuid.UUID, recovery Alert) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("store unavailable")
	}
	return f.MemoryRepository.ResolveAndRecover(ctx, failureID, recovery)
}

func TestEvaluateRecoveryRetriedAfterFailedWrite(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryRepository()
	repo := &flakyRecovery{MemoryRepository: mem, failures: 1}
	e := NewEngine(repo, NewMemoryStateStore(), DefaultRules(), logger.Nop())
	m := newTestMonitor(2, 1)

	for range 2 {
		_, err := e.Evaluate(ctx, m, tick(m, 0))
		require.NoError(t, err)
	}

	_, err := e.Evaluate(ctx, m, tick(m, 1))
	require.Error(t, err)

	// the failure is still open, so the next healthy tick recovers it
	open, err := mem.ActiveFailure(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, open)

	var raised []Alert
	for range 3 {
		alerts, err := e.Evaluate(ctx, m, tick(m, 1))
		require.NoError(t, err)
		raised = append(raised, alerts...)
	}
	require.Len(t, raised, 1)
	assert.Equal(t, TypeRecovery, raised[0].Type)

	recoveries, _ := countByType(t, mem, m, TypeRecovery)
	_, openFailures := countByType(t, mem, m, TypeFailure)
	assert.Equal(t, 1, recoveries)
	assert.Zero(t, openFailures)
}

func TestMemoryResolveAndRecoverIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	mon := uuid.New()

	failure := Alert{ID: uuid.New(), MonitorID: mon, Type: TypeFailure, TriggeredAt: t0}
	require.NoError(t, repo.Create(ctx, failure))
	taken := Alert{ID: uuid.New(), MonitorID: mon, Type: TypeSSLWarning, TriggeredAt: t0}
	require.NoError(t, repo.Create(ctx, taken))

	// recovery id collides, nothing is applied
	later := t0.Add(time.Hour)
	err := repo.ResolveAndRecover(ctx, failure.ID, Alert{ID: taken.ID, MonitorID: mon, Type: TypeRecovery, TriggeredAt: later})
	require.Error(t, err)
	open, err := repo.ActiveFailure(ctx, mon)
	require.NoError(t, err)
	require.NotNil(t, open)

	rec := Alert{ID: uuid.New(), MonitorID: mon, Type: TypeRecovery, TriggeredAt: later, ResolvedAt: &later}
	require.NoError(t, repo.ResolveAndRecover(ctx, failure.ID, rec))
	open, err = repo.ActiveFailure(ctx, mon)
	require.NoError(t, err)
	assert.Nil(t, open)

	got, err := repo.Load(ctx, failure.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ResolvedAt)
	assert.Equal(t, later, *got.ResolvedAt)
}

// flakyStates fails the next n Puts.
type flakyStates struct {
	*MemoryStateStore
	failures int
}

func (f *flakyStates) Put(ctx context.Context, monitorID uuid.UUID, s State) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("state store unavailable")
	}
	return f.MemoryStateStore.Put(ctx, monitorID, s)
}

func TestEvaluateReplaysTickAfterFailedStateWrite(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	states := &flakyStates{MemoryStateStore: NewMemoryStateStore()}
	e := NewEngine(repo, states, DefaultRules(), logger.Nop())
	m := newTestMonitor(1, 1)

	// FAILURE is written once even when its state write is lost
	states.failures = 1
	alerts, err := e.Evaluate(ctx, m, tick(m, 0))
	require.Error(t, err)
	require.Len(t, alerts, 1, "a stored alert is handed back for notification")
	alerts, err = e.Evaluate(ctx, m, tick(m, 0))
	require.NoError(t, err)
	assert.Empty(t, alerts)
	failures, open := countByType(t, repo, m, TypeFailure)
	assert.Equal(t, 1, failures)
	assert.Equal(t, 1, open)

	// SSL alerts are at-least-once: the lost dedup timestamp raises again
	states.failures = 1
	_, err = e.Evaluate(ctx, m, withTLS(tick(m, 1), 10))
	require.Error(t, err)
	alerts, err = e.Evaluate(ctx, m, withTLS(tick(m, 1), 10))
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, TypeSSLWarning, alerts[0].Type)

	alerts, err = e.Evaluate(ctx, m, withTLS(tick(m, 1), 10))
	require.NoError(t, err)
	assert.Empty(t, alerts)

	recoveries, _ := countByType(t, repo, m, TypeRecovery)
	warnings, _ := countByType(t, repo, m, TypeSSLWarning)
	assert.Equal(t, 1, recoveries)
	assert.Equal(t, 2, warnings)
}

func TestEvaluateConcurrentTicksOneFailure(t *testing.T) {
	ctx := context.Background()
	e, repo, _ := newTestEngine()
	m := newTestMonitor(1, 2)

	done := make(chan struct{})
	for range 8 {
		go func() {
			defer func() { done <- struct{}{} }()
			_, _ = e.Evaluate(ctx, m, tick(m, 0))
		}()
	}
	for range 8 {
		<-done
	}

	total, _ := countByType(t, repo, m, TypeFailure)
	assert.Equal(t, 1, total)
	count, err := e.EvaluateFailureConditions(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, count)
}

func TestMemoryStatePutRejectsStaleRevision(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStateStore()
	mon := uuid.New()

	a, err := s.Get(ctx, mon)
	require.NoError(t, err)
	b, err := s.Get(ctx, mon)
	require.NoError(t, err)

	a.ConsecutiveFailures = 1
	require.NoError(t, s.Put(ctx, mon, a))

	b.ConsecutiveFailures = 1
	err = s.Put(ctx, mon, b)
	assert.True(t, apperror.IsKind(err, apperror.Conflict))

	got, err := s.Get(ctx, mon)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ConsecutiveFailures)
	assert.Equal(t, int64(1), got.Revision)
}

// Engines in separate processes only share the stores; the counter must
// match the ticks that actually landed.
func TestEnginesSharingStateNeverLoseAnIncrement(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	states := NewMemoryStateStore()
	m := newTestMonitor(100, 1)

	var landed atomic.Int64
	var wg sync.WaitGroup
	for range 8 {
		e := NewEngine(repo, states, DefaultRules(), logger.Nop())
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				if _, err := e.Evaluate(ctx, m, tick(m, 0)); err == nil {
					landed.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	st, err := states.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int(landed.Load()), st.ConsecutiveFailures)
	assert.Positive(t, landed.Load())
}

func TestForgetDropsState(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine()
	m := newTestMonitor(5, 1)

	_, err := e.Evaluate(ctx, m, tick(m, 0))
	require.NoError(t, err)
	require.NoError(t, e.Forget(ctx, m.ID))

	count, err := e.EvaluateFailureConditions(ctx, m.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMemoryRepositoryListOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	tenant := uuid.New()
	mon := uuid.New()

	for i := range 5 {
		require.NoError(t, repo.Create(ctx, Alert{
			ID: uuid.New(), TenantID: tenant, MonitorID: mon, Type: TypeSSLWarning,
			TriggeredAt: t0.Add(time.Duration(i) * time.Minute),
		}))
	}
	// another tenant's alert never leaks
	require.NoError(t, repo.Create(ctx, Alert{ID: uuid.New(), TenantID: uuid.New(), MonitorID: mon, Type: TypeSSLWarning, TriggeredAt: t0}))

	asc, err := repo.List(ctx, ListQuery{TenantID: tenant, Order: OrderAsc, Limit: 3})
	require.NoError(t, err)
	require.Len(t, asc, 3)
	assert.True(t, asc[0].TriggeredAt.Before(asc[1].TriggeredAt))

	desc, err := repo.List(ctx, ListQuery{TenantID: tenant, Order: OrderDesc})
	require.NoError(t, err)
	require.Len(t, desc, 5)
	assert.Equal(t, t0.Add(4*time.Minute), desc[0].TriggeredAt)
}

func TestMemoryRepositorySingleOpenFailure(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	mon := uuid.New()

	require.NoError(t, repo.Create(ctx, Alert{ID: uuid.New(), MonitorID: mon, Type: TypeFailure, TriggeredAt: t0}))
	err := repo.Create(ctx, Alert{ID: uuid.New(), MonitorID: mon, Type: TypeFailure, TriggeredAt: t0})
	require.Error(t, err)
}

func TestSetNotificationStatusMerges(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	a := Alert{ID: uuid.New(), TenantID: uuid.New(), MonitorID: uuid.New(), Type: TypeFailure, TriggeredAt: t0}
	require.NoError(t, repo.Create(ctx, a))

	require.NoError(t, repo.SetNotificationStatus(ctx, a.ID, "c1", DeliveryStatus{Status: DeliveryDelivered, Attempts: 1}))
	require.NoError(t, repo.SetNotificationStatus(ctx, a.ID, "c2", DeliveryStatus{Status: DeliveryRetrying, Attempts: 1}))

	got, err := repo.GetByID(ctx, a.TenantID, a.ID)
	require.NoError(t, err)
	assert.Len(t, got.NotificationStatus, 2)
	assert.Equal(t, DeliveryRetrying, got.NotificationStatus["c2"].Status)

	_, err = repo.GetByID(ctx, uuid.New(), a.ID)
	assert.Error(t, err)
}
