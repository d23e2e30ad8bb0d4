package tenant

import (
	"encoding/json"
	"net/http"
	middle "sentinel/internals/middleware"
	"sentinel/pkg/apperror"
	"sentinel/pkg/utils"

	"github.com/go-chi/chi/v5/middleware"
)

const apiKeyHeader = "X-API-Key"

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
	}
}

// IssueToken trades an API key, from the header or the body, for a bearer token.
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	key := r.Header.Get(apiKeyHeader)
	if key == "" {
		var req TokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.WriteError(w, http.StatusBadRequest, reqID, apperror.InvalidInput, "malformed request body")
			return
		}
		key = req.APIKey
	}
	if key == "" {
		utils.WriteError(w, http.StatusUnauthorized, reqID, apperror.Unauthorised, "api key is required")
		return
	}

	token, err := h.service.IssueToken(ctx, key)
	if err != nil {
		utils.FromAppError(w, reqID, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, reqID, "token issued", TokenResponse{AccessToken: token, TokenType: "Bearer"})
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	caller, ok := middle.TenantFromContext(ctx)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, reqID, apperror.Unauthorised, "")
		return
	}

	t, err := h.service.Get(ctx, caller.TenantID)
	if err != nil {
		utils.FromAppError(w, reqID, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, reqID, "profile retrieved", ProfileResponse{
		ID:        t.ID.String(),
		Name:      t.Name,
		CreatedAt: t.CreatedAt,
	})
}

func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	caller, ok := middle.TenantFromContext(ctx)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, reqID, apperror.Unauthorised, "")
		return
	}

	cfg, err := h.service.GetConfig(ctx, caller.TenantID)
	if err != nil {
		utils.FromAppError(w, reqID, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, reqID, "config retrieved", ConfigResponse{TenantID: caller.TenantID.String(), Config: cfg})
}

func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	caller, ok := middle.TenantFromContext(ctx)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, reqID, apperror.Unauthorised, "")
		return
	}

	var cfg map[string]any
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		utils.WriteError(w, http.StatusBadRequest, reqID, apperror.InvalidInput, "config must be a JSON object")
		return
	}
	if err := h.service.UpdateConfig(ctx, caller.TenantID, cfg); err != nil {
		utils.FromAppError(w, reqID, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, reqID, "config updated", ConfigResponse{TenantID: caller.TenantID.String(), Config: cfg})
}

func (h *Handler) RotateAPIKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	caller, ok := middle.TenantFromContext(ctx)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, reqID, apperror.Unauthorised, "")
		return
	}

	key, err := h.service.RotateAPIKey(ctx, caller.TenantID)
	if err != nil {
		utils.FromAppError(w, reqID, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, reqID, "api key rotated", RotateKeyResponse{APIKey: key})
}
