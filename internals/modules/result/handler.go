package result

import (
	"net/http"
	middle "sentinel/internals/middleware"
	"sentinel/internals/modules/alert"
	"sentinel/pkg/apperror"
	"sentinel/pkg/utils"

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

// MonitorRoutes registers the per-monitor read endpoints on the monitor router.
func (h *Handler) MonitorRoutes(r chi.Router) {
	r.Get("/{monitorID}/status", h.GetStatus)
	r.Get("/{monitorID}/alerts", h.GetMonitorAlerts)
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tenant, ok := middle.TenantFromContext(ctx)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, reqID, apperror.Unauthorised, "")
		return
	}

	monitorID, err := uuid.Parse(chi.URLParam(r, "monitorID"))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, reqID, apperror.InvalidInput, "invalid monitor id")
		return
	}

	status, err := h.service.GetStatus(ctx, tenant.TenantID, monitorID)
	if err != nil {
		utils.FromAppError(w, reqID, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, reqID, "", status)
}

// /monitors/{monitorID}/alerts?order=desc&limit=20
func (h *Handler) GetMonitorAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tenant, ok := middle.TenantFromContext(ctx)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, reqID, apperror.Unauthorised, "")
		return
	}

	monitorID, err := uuid.Parse(chi.URLParam(r, "monitorID"))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, reqID, apperror.InvalidInput, "invalid monitor id")
		return
	}

	q, err := alert.ParseListQuery(r, tenant.TenantID)
	if err != nil {
		utils.FromAppError(w, reqID, err)
		return
	}

	alerts, err := h.service.GetMonitorAlerts(ctx, tenant.TenantID, monitorID, q)
	if err != nil {
		utils.FromAppError(w, reqID, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, reqID, "", alerts)
}
