package notification

import (
	"context"
	"time"

	"sentinel/internals/modules/alert"
	"sentinel/pkg/apperror"
	"sentinel/pkg/metrics"

	"github.com/rs/zerolog"
)

// RetryWorker polls the retry queue and re-delivers due items. It runs
// independently of the scheduler.
type RetryWorker struct {
	dispatcher   *Dispatcher
	queue        RetryQueue
	pollInterval time.Duration
	batchSize    int
	logger       *zerolog.Logger
}

func NewRetryWorker(d *Dispatcher, queue RetryQueue, pollInterval time.Duration, batchSize int, logger *zerolog.Logger) *RetryWorker {
	return &RetryWorker{
		dispatcher:   d,
		queue:        queue,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Run polls until ctx is cancelled.
func (w *RetryWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info().Dur("poll_interval", w.pollInterval).Msg("retry worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("retry worker stopped")
			return
		case <-ticker.C:
			if _, err := w.Poll(ctx); err != nil {
				w.logger.Error().Err(err).Msg("retry poll failed")
			}
		}
	}
}

// Poll claims one batch of due items and processes it. It returns how many
// items were claimed.
func (w *RetryWorker) Poll(ctx context.Context) (int, error) {
	now := w.dispatcher.now()
	items, err := w.queue.ClaimDue(ctx, now, w.batchSize)
	if err != nil {
		return 0, err
	}

	for _, item := range items {
		if ackable := w.retry(ctx, item); !ackable {
			// left in flight; the reclaimer brings it back
			continue
		}
		if err := w.queue.Ack(ctx, item); err != nil {
			w.logger.Error().Err(err).Str("alert_id", item.AlertID.String()).Msg("failed to ack retry item")
		}
	}

	if stats, err := w.queue.Stats(ctx, w.dispatcher.now()); err == nil {
		metrics.RecordRetryQueue(stats.ReadyForRetry, stats.PendingRetry)
	}
	return len(items), nil
}

// retry re-delivers one item. It reports false when a store error leaves
// the outcome unknown.
func (w *RetryWorker) retry(ctx context.Context, item RetryItem) bool {
	d := w.dispatcher
	log := w.logger.With().
		Str("alert_id", item.AlertID.String()).
		Str("channel_id", item.ChannelID.String()).
		Int("retry_count", item.RetryCount).
		Logger()

	a, err := d.alerts.Load(ctx, item.AlertID)
	if err != nil {
		if apperror.IsKind(err, apperror.NotFound) {
			log.Info().Msg("alert gone, dropping retry")
			return true
		}
		log.Error().Err(err).Msg("failed to load alert for retry")
		return false
	}

	ch, err := d.channels.Get(ctx, item.TenantID, item.ChannelID)
	if err != nil {
		if apperror.IsKind(err, apperror.NotFound) {
			log.Info().Msg("channel deleted, dropping retry")
			return true
		}
		log.Error().Err(err).Msg("failed to load channel for retry")
		return false
	}
	if !ch.Enabled {
		log.Info().Msg("channel disabled, dropping retry")
		d.setStatus(ctx, a.ID, ch.ID, alert.DeliveryStatus{Status: alert.DeliveryDisabled, Attempts: item.RetryCount + 1, LastError: ChannelDisabledMessage, UpdatedAt: d.now()})
		return true
	}

	// the first attempt came from DispatchAlert
	attempt := item.RetryCount + 2
	res, err := d.send(ctx, a, ch)
	switch {
	case res.Success:
		d.record(ctx, a, ch, attempt, res, alert.DeliveryDelivered, false)
		log.Info().Int("attempt", attempt).Msg("notification delivered on retry")
	case IsPermanent(err):
		d.record(ctx, a, ch, attempt, res, alert.DeliveryFailed, true)
	default:
		queued, qerr := d.QueueForRetry(ctx, a, ch, item.RetryCount+1)
		if qerr != nil {
			log.Error().Err(qerr).Msg("failed to requeue notification")
			return false
		}
		if queued {
			d.record(ctx, a, ch, attempt, res, alert.DeliveryRetrying, false)
			return true
		}
		d.record(ctx, a, ch, attempt, res, alert.DeliveryAbandoned, true)
		log.Warn().Int("attempt", attempt).Msg("retry ceiling reached, notification abandoned")
	}
	return true
}

// Reclaimer returns stale in-flight retry items to the queue.
type Reclaimer struct {
	queue     RetryQueue
	interval  time.Duration
	batchSize int
	logger    *zerolog.Logger
}

func NewReclaimer(queue RetryQueue, interval time.Duration, batchSize int, logger *zerolog.Logger) *Reclaimer {
	return &Reclaimer{queue: queue, interval: interval, batchSize: batchSize, logger: logger}
}

func (r *Reclaimer) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.queue.Reclaim(ctx, time.Now(), r.batchSize)
			if err != nil {
				r.logger.Error().Err(err).Msg("retry reclaim failed")
				continue
			}
			if n > 0 {
				r.logger.Warn().Int("count", n).Msg("reclaimed stale retry items")
			}
		}
	}
}
