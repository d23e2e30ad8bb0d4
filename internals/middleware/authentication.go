package middle

/**
- Work of this file -> tenant authentication:
	- Accepts a Bearer JWT or an X-API-Key header
	- Resolves the calling tenant
	- Stores it in context
	- Exposes a helper to retrieve it
**/

import (
	"context"
	"errors"
	"net/http"
	"sentinel/internals/security"
	"sentinel/pkg/apperror"
	"sentinel/pkg/utils"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const apiKeyHeader = "X-API-Key"

type tenantCtxKeyType struct{}

var tenantCtxKey = tenantCtxKeyType{}

type AuthenticatedTenant struct {
	TenantID uuid.UUID
	Name     string
}

// APIKeyVerifier resolves a raw tenant API key.
type APIKeyVerifier interface {
	VerifyAPIKey(ctx context.Context, key string) (tenantID uuid.UUID, name string, err error)
}

type AuthMiddleware struct {
	tokenSvc *security.TokenService
	keys     APIKeyVerifier
}

func NewAuthMiddleware(tokenSvc *security.TokenService, keys APIKeyVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		tokenSvc: tokenSvc,
		keys:     keys,
	}
}

func (a *AuthMiddleware) Handle(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		reqID := middleware.GetReqID(ctx)

		var (
			tenant *AuthenticatedTenant
			err    error
		)
		if key := r.Header.Get(apiKeyHeader); key != "" && a.keys != nil {
			tenant, err = a.fromAPIKey(ctx, key)
		} else {
			tenant, err = a.fromBearer(r)
		}
		if err != nil {
			var appErr *apperror.Error
			if errors.As(err, &appErr) {
				utils.FromAppError(w, reqID, err)
				return
			}
			utils.WriteError(w, http.StatusUnauthorized, reqID, apperror.Unauthorised, err.Error())
			return
		}

		newCtx := WithTenant(ctx, tenant)
		next.ServeHTTP(w, r.WithContext(newCtx))
	}

	return http.HandlerFunc(fn)
}

func (a *AuthMiddleware) fromBearer(r *http.Request) (*AuthenticatedTenant, error) {
	token, err := extractBearerToken(r)
	if err != nil {
		return nil, err
	}

	id, err := a.tokenSvc.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}
	return &AuthenticatedTenant{TenantID: id.TenantID, Name: id.Name}, nil
}

func (a *AuthMiddleware) fromAPIKey(ctx context.Context, key string) (*AuthenticatedTenant, error) {
	tenantID, name, err := a.keys.VerifyAPIKey(ctx, key)
	if err != nil {
		return nil, err
	}
	return &AuthenticatedTenant{TenantID: tenantID, Name: name}, nil
}

func extractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")

	if authHeader == "" {
		return "", errors.New("missing Authorization header")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("invalid Authorization header")
	}

	return parts[1], nil
}

// WithTenant stores the authenticated tenant in ctx.
func WithTenant(ctx context.Context, t *AuthenticatedTenant) context.Context {
	return context.WithValue(ctx, tenantCtxKey, t)
}

func TenantFromContext(ctx context.Context) (*AuthenticatedTenant, bool) {
	tenant, ok := ctx.Value(tenantCtxKey).(*AuthenticatedTenant)
	return tenant, ok
}
