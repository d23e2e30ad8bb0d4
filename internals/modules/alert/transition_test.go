package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func failTick(threshold int, open bool) TickInput {
	return TickInput{AllFailed: true, FailureThreshold: threshold, HasOpenFailure: open, Now: t0}
}

func okTick(open bool) TickInput {
	return TickInput{AnySuccess: true, FailureThreshold: 3, HasOpenFailure: open, Now: t0}
}

func tlsTick(days int, now time.Time) TickInput {
	return TickInput{AnySuccess: true, FailureThreshold: 3, MinTLSDays: &days, Now: now}
}

func TestTransitionOpensFailureExactlyAtThreshold(t *testing.T) {
	for _, threshold := range []int{1, 2, 3, 5, 10} {
		s := State{}
		open := false
		opened := 0

		for i := 1; i <= threshold+3; i++ {
			var d []Decision
			s, d = Transition(s, failTick(threshold, open), DefaultRules())
			assert.Equal(t, i, s.ConsecutiveFailures)
			for _, dec := range d {
				if dec.Kind == OpenFailure {
					opened++
					open = true
					assert.Equal(t, threshold, i, "failure opened at the wrong tick")
					assert.Equal(t, threshold, dec.ConsecutiveFailures)
				}
			}
			if i == threshold-1 {
				assert.Zero(t, opened, "threshold %d: no failure before T ticks", threshold)
			}
		}
		assert.Equal(t, 1, opened, "threshold %d", threshold)
	}
}

func TestTransitionRecoveryOncePerCycle(t *testing.T) {
	s := State{ConsecutiveFailures: 4}

	s, d := Transition(s, okTick(true), DefaultRules())
	require.Len(t, d, 1)
	assert.Equal(t, ResolveAndRecover, d[0].Kind)
	assert.Zero(t, s.ConsecutiveFailures)
	require.NotNil(t, s.LastHealthy)
	assert.True(t, *s.LastHealthy)

	// once resolved there is no open failure left to recover from
	for range 3 {
		s, d = Transition(s, okTick(false), DefaultRules())
		assert.Empty(t, d)
	}
}

func TestTransitionPartialOutageNeverFails(t *testing.T) {
	s := State{}
	for range 20 {
		var d []Decision
		// at least one location succeeded
		s, d = Transition(s, TickInput{AnySuccess: true, FailureThreshold: 1, Now: t0}, DefaultRules())
		assert.Empty(t, d)
		assert.Zero(t, s.ConsecutiveFailures)
	}
}

func TestTransitionDoesNotMutateInput(t *testing.T) {
	in := State{ConsecutiveFailures: 1, SSLAlertedAt: map[SSLSeverity]time.Time{}}
	_, _ = Transition(in, tlsTick(5, t0), DefaultRules())

	assert.Equal(t, 1, in.ConsecutiveFailures)
	assert.Empty(t, in.SSLAlertedAt)
}

func TestTransitionSSLSeverityWindows(t *testing.T) {
	tests := []struct {
		name string
		days int
		want []SSLSeverity
	}{
		{name: "expired", days: 0, want: []SSLSeverity{SSLCritical}},
		{name: "one day", days: 1, want: []SSLSeverity{SSLCritical}},
		{name: "critical edge", days: 7, want: []SSLSeverity{SSLCritical}},
		{name: "warning edge", days: 8, want: []SSLSeverity{SSLWarning}},
		{name: "warning", days: 20, want: []SSLSeverity{SSLWarning}},
		{name: "warning upper", days: 30, want: []SSLSeverity{SSLWarning}},
		{name: "healthy", days: 31, want: nil},
		{name: "far", days: 365, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, d := Transition(State{}, tlsTick(tt.days, t0), DefaultRules())

			var got []SSLSeverity
			for _, dec := range d {
				require.Equal(t, RaiseSSL, dec.Kind)
				got = append(got, dec.Severity)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTransitionSSLDedupWithinWindow(t *testing.T) {
	s := State{}
	raised := 0
	for i := range 48 {
		var d []Decision
		// hourly checks over 47 hours
		s, d = Transition(s, tlsTick(5, t0.Add(time.Duration(i)*time.Hour)), DefaultRules())
		raised += len(d)
	}
	// raised at hour 0 and again at hour 24
	assert.Equal(t, 2, raised)
	assert.Equal(t, SSLCritical, s.SSLSeverity)
}

func TestTransitionSSLResetClearsDedup(t *testing.T) {
	s, d := Transition(State{}, tlsTick(20, t0), DefaultRules())
	require.Len(t, d, 1)

	// certificate renewed
	s, d = Transition(s, tlsTick(90, t0.Add(time.Hour)), DefaultRules())
	assert.Empty(t, d)
	assert.Equal(t, SSLNone, s.SSLSeverity)
	assert.Empty(t, s.SSLAlertedAt)

	// a fresh cycle warns again without waiting out the window
	_, d = Transition(s, tlsTick(20, t0.Add(2*time.Hour)), DefaultRules())
	assert.Len(t, d, 1)
}

func TestTransitionSSLEscalationIsSeparateSeverity(t *testing.T) {
	s, d := Transition(State{}, tlsTick(10, t0), DefaultRules())
	require.Len(t, d, 1)
	assert.Equal(t, SSLWarning, d[0].Severity)

	_, d = Transition(s, tlsTick(6, t0.Add(time.Hour)), DefaultRules())
	require.Len(t, d, 1)
	assert.Equal(t, SSLCritical, d[0].Severity)
}

func TestSeverityForCustomRules(t *testing.T) {
	r := Rules{SSLWarningDays: 14, SSLCriticalDays: 3, SSLDedupWindow: time.Hour}
	assert.Equal(t, SSLCritical, r.SeverityFor(3))
	assert.Equal(t, SSLWarning, r.SeverityFor(4))
	assert.Equal(t, SSLNone, r.SeverityFor(15))
}
