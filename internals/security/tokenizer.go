package security

import (
	"time"

	"sentinel/config"
	"sentinel/pkg/apperror"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenService issues and verifies the short-lived tenant access tokens that
// API keys are exchanged for.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(authCfg *config.AuthConfig) *TokenService {
	return &TokenService{
		secret: []byte(authCfg.Secret),
		ttl:    time.Duration(authCfg.ExpiryMin) * time.Minute,
		now:    time.Now,
	}
}

func (ts *TokenService) IssueTenantToken(tenantID uuid.UUID, name string) (string, error) {
	const op string = "service.token.issue"

	if tenantID == uuid.Nil {
		return "", &apperror.Error{Kind: apperror.InvalidInput, Op: op, Message: "token needs a tenant"}
	}

	now := ts.now()
	claims := TenantClaims{
		TenantName: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   tenantID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ts.secret)
	if err != nil {
		return "", apperror.New(apperror.Internal, op, err)
	}
	return signed, nil
}

// ValidateAccessToken checks signature, issuer and expiry, and only accepts a
// subject that is a real tenant id.
func (ts *TokenService) ValidateAccessToken(accessToken string) (TenantIdentity, error) {
	const op string = "service.token.validate_access_token"

	denied := &apperror.Error{Kind: apperror.Unauthorised, Op: op, Message: "invalid token"}

	claims := &TenantClaims{}
	token, err := jwt.ParseWithClaims(
		accessToken,
		claims,
		func(t *jwt.Token) (any, error) {
			return ts.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.now),
	)
	if err != nil || !token.Valid {
		return TenantIdentity{}, denied
	}

	tenantID, err := uuid.Parse(claims.Subject)
	if err != nil || tenantID == uuid.Nil {
		return TenantIdentity{}, denied
	}
	return TenantIdentity{TenantID: tenantID, Name: claims.TenantName}, nil
}
