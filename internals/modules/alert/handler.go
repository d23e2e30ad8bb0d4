package alert

import (
	"net/http"
	middle "sentinel/internals/middleware"
	"sentinel/pkg/apperror"
	"sentinel/pkg/utils"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
	}
}

type ListAlertsResponse struct {
	TenantID string  `json:"tenant_id"`
	Order    Order   `json:"order"`
	Limit    int     `json:"limit"`
	Alerts   []Alert `json:"alerts"`
}

// /alerts?monitor_id=&order=asc&limit=20
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tenant, ok := middle.TenantFromContext(ctx)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, reqID, apperror.Unauthorised, "")
		return
	}

	q, err := ParseListQuery(r, tenant.TenantID)
	if err != nil {
		utils.FromAppError(w, reqID, err)
		return
	}

	alerts, err := h.service.ListAlerts(ctx, q)
	if err != nil {
		utils.FromAppError(w, reqID, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, reqID, "", ListAlertsResponse{
		TenantID: tenant.TenantID.String(),
		Order:    q.Order,
		Limit:    q.Limit,
		Alerts:   alerts,
	})
}

func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tenant, ok := middle.TenantFromContext(ctx)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, reqID, apperror.Unauthorised, "")
		return
	}

	alertID, err := uuid.Parse(chi.URLParam(r, "alertID"))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, reqID, apperror.InvalidInput, "invalid alert id")
		return
	}

	a, err := h.service.GetAlert(ctx, tenant.TenantID, alertID)
	if err != nil {
		utils.FromAppError(w, reqID, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, reqID, "alert retrieved", a)
}

// ParseListQuery reads monitor_id, order and limit from the query string.
func ParseListQuery(r *http.Request, tenantID uuid.UUID) (ListQuery, error) {
	const op = "handler.alert.list_query"

	q := ListQuery{TenantID: tenantID}
	values := r.URL.Query()

	order, err := ParseOrder(values.Get("order"))
	if err != nil {
		return ListQuery{}, err
	}
	q.Order = order

	if s := values.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return ListQuery{}, &apperror.Error{
				Kind:    apperror.InvalidInput,
				Op:      op,
				Message: "invalid limit",
				Fields:  []apperror.FieldError{{Field: "limit", Message: "must be a positive integer", Code: "gt"}},
			}
		}
		q.Limit = n
	}

	if s := values.Get("monitor_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			return ListQuery{}, &apperror.Error{
				Kind:    apperror.InvalidInput,
				Op:      op,
				Message: "invalid monitor id",
				Fields:  []apperror.FieldError{{Field: "monitor_id", Message: "must be a UUID", Code: "uuid"}},
			}
		}
		q.MonitorID = &id
	}
	return q, nil
}
