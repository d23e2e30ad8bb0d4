package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sentinel/internals/modules/monitor"
	"sentinel/internals/modules/probe"
	"sentinel/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Engine turns each tick's check results into FAILURE, RECOVERY and SSL alerts.
type Engine struct {
	repo   Store
	states StateStore
	rules  Rules
	now    func() time.Time
	logger *zerolog.Logger

	// one lock per monitor; different monitors never contend
	locks sync.Map
}

func NewEngine(repo Store, states StateStore, rules Rules, logger *zerolog.Logger) *Engine {
	return &Engine{
		repo:   repo,
		states: states,
		rules:  rules,
		now:    time.Now,
		logger: logger,
	}
}

func (e *Engine) lockFor(monitorID uuid.UUID) *sync.Mutex {
	l, _ := e.locks.LoadOrStore(monitorID, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// Evaluate applies one tick's results to the monitor's state and persists
// any alerts it produces. The new state is saved only after every alert is
// stored, so a failed write is retried by the next tick. On error the alerts
// already stored are still returned so they can be notified.
func (e *Engine) Evaluate(ctx context.Context, m monitor.Monitor, results []probe.CheckResult) ([]Alert, error) {
	if len(results) == 0 {
		return nil, nil
	}

	l := e.lockFor(m.ID)
	l.Lock()
	defer l.Unlock()

	state, err := e.states.Get(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	open, err := e.repo.ActiveFailure(ctx, m.ID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	in := summarise(results, m.FailureThreshold, now)
	in.HasOpenFailure = open != nil

	next, decisions := Transition(state, in, e.rules)

	alerts := make([]Alert, 0, len(decisions))
	for _, d := range decisions {
		switch d.Kind {
		case OpenFailure:
			a := e.newAlert(m, TypeFailure, now, failureMessage(m, d.ConsecutiveFailures, results))
			a.ConsecutiveFailures = d.ConsecutiveFailures
			if err := e.repo.Create(ctx, a); err != nil {
				return alerts, err
			}
			alerts = append(alerts, a)

		case ResolveAndRecover:
			a := e.newAlert(m, TypeRecovery, now, recoveryMessage(m, open.TriggeredAt, now))
			// a recovery is resolved the moment it is raised
			a.ResolvedAt = &now
			if err := e.repo.ResolveAndRecover(ctx, open.ID, a); err != nil {
				return alerts, err
			}
			alerts = append(alerts, a)

		case RaiseSSL:
			typ := TypeSSLWarning
			if d.Severity == SSLCritical {
				typ = TypeSSLCritical
			}
			a := e.newAlert(m, typ, now, sslMessage(m, d))
			if err := e.repo.Create(ctx, a); err != nil {
				return alerts, err
			}
			alerts = append(alerts, a)
		}
	}

	// Alerts and state live in different stores. A failed Put replays the
	// tick: FAILURE and RECOVERY are guarded by the open-failure lookup, SSL
	// alerts are at-least-once and may repeat inside the dedup window. A
	// Conflict means another evaluator applied a tick since the Get.
	putErr := e.states.Put(ctx, m.ID, next)
	if putErr != nil {
		e.logger.Warn().Err(putErr).
			Str("monitor_id", m.ID.String()).
			Int("alerts", len(alerts)).
			Msg("alert state not saved, tick will be replayed")
	}

	for _, a := range alerts {
		metrics.AlertsEmitted.WithLabelValues(string(a.Type)).Inc()
		e.logger.Info().
			Str("alert_id", a.ID.String()).
			Str("monitor_id", m.ID.String()).
			Str("type", string(a.Type)).
			Int("consecutive_failures", a.ConsecutiveFailures).
			Msg("alert raised")
	}

	return alerts, putErr
}

// EvaluateFailureConditions returns the current consecutive-failure count without mutating state.
func (e *Engine) EvaluateFailureConditions(ctx context.Context, monitorID uuid.UUID) (int, error) {
	s, err := e.states.Get(ctx, monitorID)
	if err != nil {
		return 0, err
	}
	return s.ConsecutiveFailures, nil
}

// State returns a copy of the monitor's alert state.
func (e *Engine) State(ctx context.Context, monitorID uuid.UUID) (State, error) {
	s, err := e.states.Get(ctx, monitorID)
	if err != nil {
		return State{}, err
	}
	return s.clone(), nil
}

// Forget drops the monitor's alert state.
func (e *Engine) Forget(ctx context.Context, monitorID uuid.UUID) error {
	l := e.lockFor(monitorID)
	l.Lock()
	defer l.Unlock()
	defer e.locks.Delete(monitorID)

	return e.states.Delete(ctx, monitorID)
}

func (e *Engine) newAlert(m monitor.Monitor, typ Type, now time.Time, msg string) Alert {
	return Alert{
		ID:                 uuid.New(),
		TenantID:           m.TenantID,
		MonitorID:          m.ID,
		Type:               typ,
		TriggeredAt:        now,
		Message:            msg,
		NotificationStatus: map[string]DeliveryStatus{},
	}
}

func summarise(results []probe.CheckResult, threshold int, now time.Time) TickInput {
	in := TickInput{FailureThreshold: threshold, Now: now, AllFailed: true}
	for _, r := range results {
		if r.Success {
			in.AnySuccess = true
			in.AllFailed = false
		}
		if r.TLS != nil {
			d := r.TLS.DaysUntilExpiry
			if in.MinTLSDays == nil || d < *in.MinTLSDays {
				in.MinTLSDays = &d
			}
		}
	}
	return in
}

func failureMessage(m monitor.Monitor, count int, results []probe.CheckResult) string {
	msg := fmt.Sprintf("Monitor %q (%s) is DOWN: all %d locations failed for %d consecutive checks",
		m.Name, m.URL, len(results), count)
	for _, r := range results {
		if r.ErrorMessage != "" {
			msg += fmt.Sprintf("; %s: %s", r.Location, r.ErrorMessage)
			break
		}
	}
	return msg
}

func recoveryMessage(m monitor.Monitor, since, now time.Time) string {
	return fmt.Sprintf("Monitor %q (%s) has RECOVERED after %s of downtime",
		m.Name, m.URL, now.Sub(since).Round(time.Second))
}

func sslMessage(m monitor.Monitor, d Decision) string {
	label := "WARNING"
	if d.Severity == SSLCritical {
		label = "CRITICAL"
	}
	if d.DaysUntilExpiry <= 0 {
		return fmt.Sprintf("%s: SSL certificate for %q (%s) has expired", label, m.Name, m.URL)
	}
	return fmt.Sprintf("%s: SSL certificate for %q (%s) expires in %d days", label, m.Name, m.URL, d.DaysUntilExpiry)
}
