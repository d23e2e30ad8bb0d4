package tenant

import "time"

type TokenRequest struct {
	APIKey string `json:"api_key"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type ProfileResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type ConfigResponse struct {
	TenantID string         `json:"tenant_id"`
	Config   map[string]any `json:"config"`
}

type RotateKeyResponse struct {
	APIKey string `json:"api_key"`
}
