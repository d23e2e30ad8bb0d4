package alert

import (
	"context"

	"sentinel/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Service is the read side of alert history.
type Service struct {
	repo   Store
	logger *zerolog.Logger
}

func NewService(repo Store, logger *zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// ParseOrder maps a query value to an Order, defaulting to newest first.
func ParseOrder(s string) (Order, error) {
	switch Order(s) {
	case "", OrderDesc:
		return OrderDesc, nil
	case OrderAsc:
		return OrderAsc, nil
	default:
		return "", &apperror.Error{
			Kind:    apperror.InvalidInput,
			Op:      "service.alert.parse_order",
			Message: "order must be asc or desc",
			Fields:  []apperror.FieldError{{Field: "order", Message: "must be one of [asc desc]", Code: "oneof"}},
		}
	}
}

func (s *Service) ListAlerts(ctx context.Context, q ListQuery) ([]Alert, error) {
	if q.Order == "" {
		q.Order = OrderDesc
	}
	if q.Limit <= 0 {
		q.Limit = DefaultListLimit
	}
	if q.Limit > MaxListLimit {
		q.Limit = MaxListLimit
	}
	return s.repo.List(ctx, q)
}

func (s *Service) GetAlert(ctx context.Context, tenantID, alertID uuid.UUID) (Alert, error) {
	return s.repo.GetByID(ctx, tenantID, alertID)
}

// ActiveAlerts returns the unresolved alerts of a monitor the caller already owns.
func (s *Service) ActiveAlerts(ctx context.Context, monitorID uuid.UUID) ([]Alert, error) {
	return s.repo.ActiveByMonitor(ctx, monitorID)
}
