package notification

import (
	"context"

	"sentinel/pkg/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ChannelService manages a tenant's notification channels.
type ChannelService struct {
	store      ChannelStore
	deliveries DeliveryStore
	validator  *validation.Validator
	logger     *zerolog.Logger
}

func NewChannelService(store ChannelStore, deliveries DeliveryStore, v *validation.Validator, logger *zerolog.Logger) *ChannelService {
	return &ChannelService{
		store:      store,
		deliveries: deliveries,
		validator:  v,
		logger:     logger,
	}
}

func (s *ChannelService) CreateChannel(ctx context.Context, tenantID uuid.UUID, req CreateChannelRequest) (Channel, error) {
	const op = "service.channel.create"

	// nothing is stored or dialed until the request and its config validate
	if err := s.validator.Validate(req).Err(op); err != nil {
		return Channel{}, err
	}
	cfg, err := DecodeConfig(s.validator, req.Type, req.Config)
	if err != nil {
		return Channel{}, err
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	ch, err := s.store.Create(ctx, Channel{
		ID:       uuid.New(),
		TenantID: tenantID,
		Name:     req.Name,
		Type:     req.Type,
		Config:   cfg,
		Enabled:  enabled,
	})
	if err != nil {
		return Channel{}, err
	}

	s.logger.Info().
		Str("tenant_id", tenantID.String()).
		Str("channel_id", ch.ID.String()).
		Str("channel_type", string(ch.Type)).
		Msg("notification channel created")
	return ch, nil
}

func (s *ChannelService) GetChannel(ctx context.Context, tenantID, channelID uuid.UUID) (Channel, error) {
	return s.store.Get(ctx, tenantID, channelID)
}

func (s *ChannelService) ListChannels(ctx context.Context, tenantID uuid.UUID) ([]Channel, error) {
	return s.store.ListByTenant(ctx, tenantID)
}

func (s *ChannelService) SetEnabled(ctx context.Context, tenantID, channelID uuid.UUID, req SetEnabledRequest) (Channel, error) {
	const op = "service.channel.set_enabled"

	if err := s.validator.Validate(req).Err(op); err != nil {
		return Channel{}, err
	}
	return s.store.SetEnabled(ctx, tenantID, channelID, *req.Enabled)
}

func (s *ChannelService) DeleteChannel(ctx context.Context, tenantID, channelID uuid.UUID) error {
	return s.store.Delete(ctx, tenantID, channelID)
}

// Deliveries returns the delivery history of one alert.
func (s *ChannelService) Deliveries(ctx context.Context, tenantID, alertID uuid.UUID) ([]DeliveryRecord, error) {
	return s.deliveries.ListByAlert(ctx, tenantID, alertID)
}
