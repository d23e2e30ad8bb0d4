package monitor

import (
	"encoding/json"
	"net/http"
	middle "sentinel/internals/middleware"
	"sentinel/pkg/apperror"
	"sentinel/pkg/utils"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
	}
}

func (h *Handler) CreateMonitor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tenant, ok := middle.TenantFromContext(ctx)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, reqID, apperror.Unauthorised, "")
		return
	}

	// decode request body
	var req CreateMonitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, reqID, apperror.InvalidInput, "malformed request body")
		return
	}

	m, err := h.service.CreateMonitor(ctx, tenant.TenantID, req)
	if err != nil {
		utils.FromAppError(w, reqID, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, reqID, "monitor created successfully", toResponse(m))
}

func (h *Handler) GetMonitor(w http.ResponseWriter, r *http.Request) {
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

	m, err := h.service.GetMonitor(ctx, tenant.TenantID, monitorID)
	if err != nil {
		utils.FromAppError(w, reqID, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, reqID, "monitor retrieved", toResponse(m))
}

// /monitors?offset=3&limit=10
func (h *Handler) GetAllMonitors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tenant, ok := middle.TenantFromContext(ctx)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, reqID, apperror.Unauthorised, "")
		return
	}

	limit, offset, ok := pagination(r)
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, reqID, apperror.InvalidInput, "invalid limit or offset")
		return
	}

	monitors, err := h.service.GetAllMonitors(ctx, tenant.TenantID, limit, offset)
	if err != nil {
		utils.FromAppError(w, reqID, err)
		return
	}
	m := make([]GetMonitorResponse, 0, len(monitors))
	for i := range monitors {
		m = append(m, toResponse(monitors[i]))
	}

	resp := GetAllMonitorsResponse{
		TenantID: tenant.TenantID.String(),
		Limit:    limit,
		Offset:   offset,
		Monitors: m,
	}

	utils.WriteJSON(w, http.StatusOK, reqID, "", resp)
}

// PUT /monitors/{monitorID}
func (h *Handler) UpdateMonitor(w http.ResponseWriter, r *http.Request) {
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

	var req UpdateMonitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, reqID, apperror.InvalidInput, "malformed request body")
		return
	}

	m, err := h.service.UpdateMonitor(ctx, tenant.TenantID, monitorID, req)
	if err != nil {
		utils.FromAppError(w, reqID, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, reqID, "monitor updated", toResponse(m))
}

func (h *Handler) DeleteMonitor(w http.ResponseWriter, r *http.Request) {
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

	if err := h.service.DeleteMonitor(ctx, tenant.TenantID, monitorID); err != nil {
		utils.FromAppError(w, reqID, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, reqID, "monitor deleted", map[string]string{"id": monitorID.String()})
}

func pagination(r *http.Request) (int32, int32, bool) {
	limit, offset := int64(defaultLimit), int64(0)
	var err error

	if s := r.URL.Query().Get("limit"); s != "" {
		if limit, err = strconv.ParseInt(s, 10, 32); err != nil || limit <= 0 {
			return 0, 0, false
		}
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		if offset, err = strconv.ParseInt(s, 10, 32); err != nil || offset < 0 {
			return 0, 0, false
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return int32(limit), int32(offset), true
}
