package alert

import (
	"context"
	"sort"
	"sync"
	"time"

	"sentinel/pkg/apperror"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Store used by tests and local tooling.
type MemoryRepository struct {
	mu     sync.RWMutex
	alerts map[uuid.UUID]Alert
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{alerts: make(map[uuid.UUID]Alert)}
}

func copyAlert(a Alert) Alert {
	out := a
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		out.ResolvedAt = &t
	}
	out.NotificationStatus = make(map[string]DeliveryStatus, len(a.NotificationStatus))
	for k, v := range a.NotificationStatus {
		out.NotificationStatus[k] = v
	}
	return out
}

func (r *MemoryRepository) Create(_ context.Context, a Alert) error {
	const op = "repo.alert_memory.create"

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.alerts[a.ID]; ok {
		return &apperror.Error{Kind: apperror.AlreadyExists, Op: op, Message: "alert already exists"}
	}
	// mirrors the partial unique index on open FAILURE alerts
	if a.Type == TypeFailure && a.Unresolved() {
		for _, existing := range r.alerts {
			if existing.MonitorID == a.MonitorID && existing.Type == TypeFailure && existing.Unresolved() {
				return &apperror.Error{Kind: apperror.Conflict, Op: op, Message: "monitor already has an open failure alert"}
			}
		}
	}
	r.alerts[a.ID] = copyAlert(a)
	return nil
}

func (r *MemoryRepository) Resolve(_ context.Context, alertID uuid.UUID, resolvedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.alerts[alertID]
	if !ok {
		return &apperror.Error{Kind: apperror.NotFound, Op: "repo.alert_memory.resolve", Message: "alert not found"}
	}
	if a.ResolvedAt == nil {
		t := resolvedAt
		a.ResolvedAt = &t
		r.alerts[alertID] = a
	}
	return nil
}

func (r *MemoryRepository) ResolveAndRecover(_ context.Context, failureID uuid.UUID, recovery Alert) error {
	const op = "repo.alert_memory.resolve_and_recover"

	r.mu.Lock()
	defer r.mu.Unlock()

	// validate both writes before applying either
	failure, ok := r.alerts[failureID]
	if !ok {
		return &apperror.Error{Kind: apperror.NotFound, Op: op, Message: "alert not found"}
	}
	if _, ok := r.alerts[recovery.ID]; ok {
		return &apperror.Error{Kind: apperror.AlreadyExists, Op: op, Message: "alert already exists"}
	}

	if failure.ResolvedAt == nil {
		t := recovery.TriggeredAt
		failure.ResolvedAt = &t
		r.alerts[failureID] = failure
	}
	r.alerts[recovery.ID] = copyAlert(recovery)
	return nil
}

func (r *MemoryRepository) ActiveFailure(_ context.Context, monitorID uuid.UUID) (*Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.alerts {
		if a.MonitorID == monitorID && a.Type == TypeFailure && a.Unresolved() {
			out := copyAlert(a)
			return &out, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) ActiveByMonitor(_ context.Context, monitorID uuid.UUID) ([]Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Alert, 0)
	for _, a := range r.alerts {
		if a.MonitorID == monitorID && a.Unresolved() {
			out = append(out, copyAlert(a))
		}
	}
	sortAlerts(out, OrderDesc)
	return out, nil
}

func (r *MemoryRepository) Load(_ context.Context, alertID uuid.UUID) (Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.alerts[alertID]
	if !ok {
		return Alert{}, &apperror.Error{Kind: apperror.NotFound, Op: "repo.alert_memory.load", Message: "alert not found"}
	}
	return copyAlert(a), nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, tenantID, alertID uuid.UUID) (Alert, error) {
	a, err := r.Load(ctx, alertID)
	if err != nil {
		return Alert{}, err
	}
	if a.TenantID != tenantID {
		return Alert{}, &apperror.Error{Kind: apperror.NotFound, Op: "repo.alert_memory.get", Message: "alert not found"}
	}
	return a, nil
}

func (r *MemoryRepository) List(_ context.Context, q ListQuery) ([]Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Alert, 0)
	for _, a := range r.alerts {
		if a.TenantID != q.TenantID {
			continue
		}
		if q.MonitorID != nil && a.MonitorID != *q.MonitorID {
			continue
		}
		out = append(out, copyAlert(a))
	}
	sortAlerts(out, q.Order)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r *MemoryRepository) SetNotificationStatus(_ context.Context, alertID uuid.UUID, channelID string, st DeliveryStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.alerts[alertID]
	if !ok {
		return &apperror.Error{Kind: apperror.NotFound, Op: "repo.alert_memory.set_notification_status", Message: "alert not found"}
	}
	if a.NotificationStatus == nil {
		a.NotificationStatus = map[string]DeliveryStatus{}
	}
	a.NotificationStatus[channelID] = st
	r.alerts[alertID] = a
	return nil
}

func sortAlerts(alerts []Alert, order Order) {
	sort.SliceStable(alerts, func(i, j int) bool {
		ti, tj := alerts[i].TriggeredAt, alerts[j].TriggeredAt
		if ti.Equal(tj) {
			return alerts[i].ID.String() < alerts[j].ID.String()
		}
		if order == OrderAsc {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})
}
