package security

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "sentinel"

// TenantClaims is the JWT body. The tenant id travels as the registered "sub".
type TenantClaims struct {
	TenantName string `json:"name"`
	jwt.RegisteredClaims
}

// TenantIdentity is what a verified access token proves.
type TenantIdentity struct {
	TenantID uuid.UUID
	Name     string
}
