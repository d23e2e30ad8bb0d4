package notification

import (
	"context"
	"errors"
	"time"

	"sentinel/config"
	"sentinel/internals/modules/alert"
	"sentinel/pkg/apperror"
	"sentinel/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/iter"
)

type Options struct {
	DeliveryTimeout time.Duration
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
}

func OptionsFromConfig(n *config.NotificationConfig, r *config.RetryConfig) Options {
	return Options{
		DeliveryTimeout: n.DeliveryTimeout,
		MaxRetries:      r.MaxRetries,
		BaseDelay:       r.BaseDelay,
		MaxDelay:        r.MaxDelay,
	}
}

// Dispatcher fans alerts out to a tenant's channels and queues failed
// deliveries for retry.
type Dispatcher struct {
	deliverers map[ChannelType]Deliverer
	channels   ChannelStore
	alerts     AlertStore
	deliveries DeliveryStore
	queue      RetryQueue
	opts       Options
	now        func() time.Time
	logger     *zerolog.Logger
}

func NewDispatcher(
	deliverers map[ChannelType]Deliverer,
	channels ChannelStore,
	alerts AlertStore,
	deliveries DeliveryStore,
	queue RetryQueue,
	opts Options,
	logger *zerolog.Logger,
) *Dispatcher {
	return &Dispatcher{
		deliverers: deliverers,
		channels:   channels,
		alerts:     alerts,
		deliveries: deliveries,
		queue:      queue,
		opts:       opts,
		now:        time.Now,
		logger:     logger,
	}
}

// SendNotification delivers a through ch once. Disabled channels fail
// without any I/O.
func (d *Dispatcher) SendNotification(ctx context.Context, a alert.Alert, ch Channel) Result {
	res, _ := d.send(ctx, a, ch)
	return res
}

// SendToMultipleChannels delivers concurrently and returns one result per
// channel, in input order.
func (d *Dispatcher) SendToMultipleChannels(ctx context.Context, a alert.Alert, channels []Channel) []Result {
	return iter.Map(channels, func(ch *Channel) Result {
		return d.SendNotification(ctx, a, *ch)
	})
}

type outcome struct {
	res Result
	err error
}

// DispatchAlert sends a to every channel of its tenant, records the outcome
// per channel, and queues a first retry for each transient failure.
func (d *Dispatcher) DispatchAlert(ctx context.Context, a alert.Alert) ([]Result, error) {
	channels, err := d.channels.ListByTenant(ctx, a.TenantID)
	if err != nil {
		return nil, err
	}

	outcomes := iter.Map(channels, func(ch *Channel) outcome {
		res, err := d.send(ctx, a, *ch)
		return outcome{res: res, err: err}
	})

	results := make([]Result, 0, len(outcomes))
	for i, o := range outcomes {
		ch := channels[i]
		results = append(results, o.res)

		switch {
		case o.res.Success:
			d.record(ctx, a, ch, 1, o.res, alert.DeliveryDelivered, false)
		case !ch.Enabled:
			d.setStatus(ctx, a.ID, ch.ID, alert.DeliveryStatus{Status: alert.DeliveryDisabled, LastError: o.res.ErrorMessage, UpdatedAt: d.now()})
		case IsPermanent(o.err):
			d.record(ctx, a, ch, 1, o.res, alert.DeliveryFailed, true)
		default:
			queued, qerr := d.QueueForRetry(ctx, a, ch, 0)
			if qerr != nil {
				d.logger.Error().Err(qerr).
					Str("alert_id", a.ID.String()).
					Str("channel_id", ch.ID.String()).
					Msg("failed to queue notification retry")
			}
			if queued {
				d.record(ctx, a, ch, 1, o.res, alert.DeliveryRetrying, false)
			} else {
				d.record(ctx, a, ch, 1, o.res, alert.DeliveryAbandoned, true)
			}
		}
	}

	d.logger.Info().
		Str("alert_id", a.ID.String()).
		Str("tenant_id", a.TenantID.String()).
		Int("channels", len(channels)).
		Msg("alert dispatched")

	return results, nil
}

// QueueForRetry schedules another attempt after Backoff(retryCount). At or
// past the retry ceiling nothing is queued and false is returned.
func (d *Dispatcher) QueueForRetry(ctx context.Context, a alert.Alert, ch Channel, retryCount int) (bool, error) {
	if retryCount < 0 || retryCount >= d.opts.MaxRetries {
		return false, nil
	}
	item := RetryItem{
		AlertID:    a.ID,
		ChannelID:  ch.ID,
		TenantID:   a.TenantID,
		RetryCount: retryCount,
		DueAt:      d.now().Add(d.Backoff(retryCount)),
	}
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return false, err
	}
	return true, nil
}

func (d *Dispatcher) Backoff(retryCount int) time.Duration {
	return Backoff(retryCount, d.opts.BaseDelay, d.opts.MaxDelay)
}

func (d *Dispatcher) send(ctx context.Context, a alert.Alert, ch Channel) (Result, error) {
	res := Result{ChannelID: ch.ID}

	if !ch.Enabled {
		res.ErrorMessage = ChannelDisabledMessage
		metrics.RecordNotification(string(ch.Type), "disabled")
		return res, permanent(errors.New(ChannelDisabledMessage))
	}

	deliverer, ok := d.deliverers[ch.Type]
	if !ok {
		err := permanent(errors.New("unsupported channel type " + string(ch.Type)))
		res.ErrorMessage = err.Error()
		metrics.RecordNotification(string(ch.Type), "failure")
		return res, err
	}

	if d.opts.DeliveryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.DeliveryTimeout)
		defer cancel()
	}

	if err := deliverer.Deliver(ctx, a, ch.Config); err != nil {
		res.ErrorMessage = err.Error()
		metrics.RecordNotification(string(ch.Type), "failure")
		d.logger.Warn().Err(err).
			Str("alert_id", a.ID.String()).
			Str("channel_id", ch.ID.String()).
			Str("channel_type", string(ch.Type)).
			Msg("notification delivery failed")
		return res, err
	}

	now := d.now()
	res.Success = true
	res.DeliveredAt = &now
	metrics.RecordNotification(string(ch.Type), "success")
	return res, nil
}

// record writes the attempt to delivery history and the alert's status map.
// Both are best effort; the delivery itself already happened.
func (d *Dispatcher) record(ctx context.Context, a alert.Alert, ch Channel, attempt int, res Result, status string, terminal bool) {
	now := d.now()
	if d.deliveries != nil {
		rec := DeliveryRecord{
			ID:           uuid.New(),
			TenantID:     a.TenantID,
			AlertID:      a.ID,
			ChannelID:    ch.ID,
			Attempt:      attempt,
			Success:      res.Success,
			Terminal:     terminal,
			ErrorMessage: res.ErrorMessage,
			AttemptedAt:  now,
		}
		if err := d.deliveries.Record(ctx, rec); err != nil {
			d.logger.Error().Err(err).
				Str("alert_id", a.ID.String()).
				Str("channel_id", ch.ID.String()).
				Msg("failed to record delivery")
		}
	}
	d.setStatus(ctx, a.ID, ch.ID, alert.DeliveryStatus{
		Status:    status,
		Attempts:  attempt,
		LastError: res.ErrorMessage,
		UpdatedAt: now,
	})
}

func (d *Dispatcher) setStatus(ctx context.Context, alertID, channelID uuid.UUID, st alert.DeliveryStatus) {
	if d.alerts == nil {
		return
	}
	err := d.alerts.SetNotificationStatus(ctx, alertID, channelID.String(), st)
	if err != nil && !apperror.IsKind(err, apperror.NotFound) {
		d.logger.Error().Err(err).
			Str("alert_id", alertID.String()).
			Str("channel_id", channelID.String()).
			Msg("failed to update notification status")
	}
}
