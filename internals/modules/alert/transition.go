package alert

import "time"

type Rules struct {
	SSLWarningDays  int
	SSLCriticalDays int
	SSLDedupWindow  time.Duration
}

func DefaultRules() Rules {
	return Rules{SSLWarningDays: 30, SSLCriticalDays: 7, SSLDedupWindow: 24 * time.Hour}
}

// TickInput summarises one tick's results for a monitor.
type TickInput struct {
	AllFailed        bool
	AnySuccess       bool
	HasOpenFailure   bool
	FailureThreshold int
	// MinTLSDays is the smallest days-until-expiry seen this tick, nil without TLS data.
	MinTLSDays *int
	Now        time.Time
}

type DecisionKind int

const (
	OpenFailure DecisionKind = iota + 1
	ResolveAndRecover
	RaiseSSL
)

type Decision struct {
	Kind                DecisionKind
	ConsecutiveFailures int
	Severity            SSLSeverity
	DaysUntilExpiry     int
}

// SeverityFor classifies days-until-expiry. Critical wins over warning.
func (r Rules) SeverityFor(days int) SSLSeverity {
	switch {
	case days <= r.SSLCriticalDays:
		return SSLCritical
	case days <= r.SSLWarningDays:
		return SSLWarning
	default:
		return SSLNone
	}
}

// Transition is the alert state machine. It is pure: the same state and
// input always give the same next state and decisions.
func Transition(s State, in TickInput, r Rules) (State, []Decision) {
	next := s.clone()
	var out []Decision

	switch {
	case in.AnySuccess:
		next.ConsecutiveFailures = 0
		if in.HasOpenFailure {
			out = append(out, Decision{Kind: ResolveAndRecover})
		}
	case in.AllFailed:
		next.ConsecutiveFailures++
		if next.ConsecutiveFailures >= in.FailureThreshold && !in.HasOpenFailure {
			out = append(out, Decision{Kind: OpenFailure, ConsecutiveFailures: next.ConsecutiveFailures})
		}
	}
	if in.AnySuccess || in.AllFailed {
		healthy := in.AnySuccess
		next.LastHealthy = &healthy
	}

	if in.MinTLSDays != nil {
		sev := r.SeverityFor(*in.MinTLSDays)
		if sev == SSLNone {
			next.SSLSeverity = SSLNone
			next.SSLAlertedAt = map[SSLSeverity]time.Time{}
		} else {
			last, seen := next.SSLAlertedAt[sev]
			if !seen || in.Now.Sub(last) >= r.SSLDedupWindow {
				out = append(out, Decision{Kind: RaiseSSL, Severity: sev, DaysUntilExpiry: *in.MinTLSDays})
				next.SSLAlertedAt[sev] = in.Now
			}
			next.SSLSeverity = sev
		}
	}

	return next, out
}
