package tenant

import (
	"context"
	"strings"

	"sentinel/internals/security"
	"sentinel/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Service struct {
	store  Store
	cipher *security.Cipher
	tokens *security.TokenService
	logger *zerolog.Logger
}

func NewService(store Store, cipher *security.Cipher, tokens *security.TokenService, logger *zerolog.Logger) *Service {
	return &Service{
		store:  store,
		cipher: cipher,
		tokens: tokens,
		logger: logger,
	}
}

// Create provisions a tenant. The returned API key is shown once; only its
// hash is stored.
func (s *Service) Create(ctx context.Context, name string, config map[string]any) (Tenant, string, error) {
	const op = "service.tenant.create"

	name = strings.TrimSpace(name)
	if name == "" {
		return Tenant{}, "", &apperror.Error{
			Kind:    apperror.InvalidInput,
			Op:      op,
			Message: "validation failed",
			Fields:  []apperror.FieldError{{Field: "name", Message: "is required", Code: "required"}},
		}
	}
	if config == nil {
		config = map[string]any{}
	}

	id := security.NewUUID()
	blob, err := s.cipher.ForTenant(id).EncryptObject(config)
	if err != nil {
		return Tenant{}, "", err
	}
	key, hash, err := newAPIKey(id)
	if err != nil {
		return Tenant{}, "", apperror.New(apperror.Internal, op, err)
	}

	rec, err := s.store.Create(ctx, Record{ID: id, Name: name, ConfigBlob: blob, APIKeyHash: hash})
	if err != nil {
		return Tenant{}, "", err
	}

	s.logger.Info().Str("tenant_id", id.String()).Str("tenant_name", name).Msg("tenant created")
	return Tenant{ID: rec.ID, Name: rec.Name, Config: config, CreatedAt: rec.CreatedAt}, key, nil
}

func (s *Service) Get(ctx context.Context, tenantID uuid.UUID) (Tenant, error) {
	rec, err := s.store.Get(ctx, tenantID)
	if err != nil {
		return Tenant{}, err
	}
	cfg, err := s.open(rec)
	if err != nil {
		return Tenant{}, err
	}
	return Tenant{ID: rec.ID, Name: rec.Name, Config: cfg, CreatedAt: rec.CreatedAt}, nil
}

func (s *Service) GetConfig(ctx context.Context, tenantID uuid.UUID) (map[string]any, error) {
	t, err := s.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return t.Config, nil
}

func (s *Service) UpdateConfig(ctx context.Context, tenantID uuid.UUID, config map[string]any) error {
	if config == nil {
		config = map[string]any{}
	}
	blob, err := s.cipher.ForTenant(tenantID).EncryptObject(config)
	if err != nil {
		return err
	}
	return s.store.UpdateConfig(ctx, tenantID, blob)
}

// RotateAPIKey replaces the tenant's API key. The old key stops working at once.
func (s *Service) RotateAPIKey(ctx context.Context, tenantID uuid.UUID) (string, error) {
	key, hash, err := newAPIKey(tenantID)
	if err != nil {
		return "", apperror.New(apperror.Internal, "service.tenant.rotate_api_key", err)
	}
	if err := s.store.UpdateAPIKeyHash(ctx, tenantID, hash); err != nil {
		return "", err
	}
	s.logger.Info().Str("tenant_id", tenantID.String()).Msg("tenant api key rotated")
	return key, nil
}

// VerifyAPIKey resolves a key of the form "<tenantID>.<secret>".
func (s *Service) VerifyAPIKey(ctx context.Context, key string) (uuid.UUID, string, error) {
	const op = "service.tenant.verify_api_key"

	denied := &apperror.Error{Kind: apperror.Unauthorised, Op: op, Message: "invalid api key"}

	rawID, secret, ok := strings.Cut(key, ".")
	if !ok || secret == "" {
		return uuid.Nil, "", denied
	}
	tenantID, err := uuid.Parse(rawID)
	if err != nil {
		return uuid.Nil, "", denied
	}

	rec, err := s.store.Get(ctx, tenantID)
	if err != nil {
		if apperror.IsKind(err, apperror.NotFound) {
			return uuid.Nil, "", denied
		}
		return uuid.Nil, "", err
	}
	if rec.APIKeyHash == "" {
		return uuid.Nil, "", denied
	}

	match, err := security.ComparePassword(secret, rec.APIKeyHash)
	if err != nil || !match {
		return uuid.Nil, "", denied
	}
	return rec.ID, rec.Name, nil
}

// IssueToken exchanges an API key for a short-lived access token.
func (s *Service) IssueToken(ctx context.Context, key string) (string, error) {
	tenantID, name, err := s.VerifyAPIKey(ctx, key)
	if err != nil {
		return "", err
	}
	return s.tokens.IssueTenantToken(tenantID, name)
}

func (s *Service) open(rec Record) (map[string]any, error) {
	cfg := map[string]any{}
	if rec.ConfigBlob == "" {
		return cfg, nil
	}
	if err := s.cipher.ForTenant(rec.ID).DecryptObject(rec.ConfigBlob, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newAPIKey(tenantID uuid.UUID) (key, hash string, err error) {
	secret, err := security.NewAPISecret()
	if err != nil {
		return "", "", err
	}
	hash, err = security.HashPassword(secret)
	if err != nil {
		return "", "", err
	}
	return tenantID.String() + "." + secret, hash, nil
}
