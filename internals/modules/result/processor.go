package result

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Processor runs one scheduler tick for a monitor: probe every location,
// evaluate the alert state machine, then publish what it raised.
type Processor struct {
	monitors  MonitorLoader
	checker   MultiChecker
	evaluator Evaluator
	publisher AlertPublisher
	logger    *zerolog.Logger
}

func NewProcessor(monitors MonitorLoader, checker MultiChecker, evaluator Evaluator, publisher AlertPublisher, logger *zerolog.Logger) *Processor {
	return &Processor{
		monitors:  monitors,
		checker:   checker,
		evaluator: evaluator,
		publisher: publisher,
		logger:    logger,
	}
}

// RunCheck is the scheduler trigger.
func (p *Processor) RunCheck(ctx context.Context, monitorID uuid.UUID) error {
	m, err := p.monitors.LoadMonitor(ctx, monitorID)
	if err != nil {
		return err
	}
	if !m.Enabled {
		p.logger.Debug().Str("monitor_id", monitorID.String()).Msg("monitor disabled, skipping tick")
		return nil
	}

	results := p.checker.ExecuteMultiLocationCheck(ctx, m)

	// stored alerts are published even when evaluation failed part way
	alerts, evalErr := p.evaluator.Evaluate(ctx, m, results)

	for _, a := range alerts {
		if p.publisher == nil {
			break
		}
		// the alert is already stored; a lost publish only skips notification
		if err := p.publisher.PublishAlert(ctx, a); err != nil {
			p.logger.Error().Err(err).
				Str("alert_id", a.ID.String()).
				Str("monitor_id", monitorID.String()).
				Msg("failed to publish alert")
		}
	}
	if evalErr != nil {
		return evalErr
	}

	healthy := 0
	for _, r := range results {
		if r.Success {
			healthy++
		}
	}
	p.logger.Debug().
		Str("monitor_id", monitorID.String()).
		Int("locations", len(results)).
		Int("healthy", healthy).
		Int("alerts", len(alerts)).
		Msg("check completed")

	return nil
}
