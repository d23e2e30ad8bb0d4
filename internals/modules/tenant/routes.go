package tenant

import (
	middle "sentinel/internals/middleware"

	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, authMW *middle.AuthMiddleware) chi.Router {
	r := chi.NewRouter()

	r.Post("/token", h.IssueToken)

	r.Group(func(r chi.Router) {
		r.Use(authMW.Handle)
		r.Get("/me", h.GetProfile)
		r.Get("/me/config", h.GetConfig)
		r.Put("/me/config", h.UpdateConfig)
		r.Post("/me/api-key", h.RotateAPIKey)
	})

	return r
}

/*
- POST: /tenants/token -> exchange an api key for a bearer token
	req auth : X-API-Key header or body
	body : TokenRequest
	resp : TokenResponse

- GET: /tenants/me -> tenant profile
	req auth : true
	resp : ProfileResponse

- GET: /tenants/me/config -> decrypted tenant config
	req auth : true
	resp : ConfigResponse

- PUT: /tenants/me/config -> replace tenant config
	req auth : true
	body : JSON object
	resp : ConfigResponse

- POST: /tenants/me/api-key -> rotate the api key
	req auth : true
	resp : RotateKeyResponse
*/
