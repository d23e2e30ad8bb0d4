package result

import (
	"context"

	"sentinel/internals/modules/probe"

	"github.com/rs/zerolog"
)

// Store is the probe.ResultStore of the check pipeline: it appends the result
// to the durable log, then records it as the latest for its location.
type Store struct {
	recorder Recorder
	status   probe.StatusStore
	logger   *zerolog.Logger
}

func NewStore(recorder Recorder, status probe.StatusStore, logger *zerolog.Logger) *Store {
	return &Store{recorder: recorder, status: status, logger: logger}
}

func (s *Store) SaveResult(ctx context.Context, r probe.CheckResult) error {
	if err := s.recorder.Insert(ctx, r); err != nil {
		// the latest view is still updated so the verdict does not go stale
		if serr := s.status.SetLatest(ctx, r); serr != nil {
			s.logger.Warn().Err(serr).Str("monitor_id", r.MonitorID.String()).Msg("failed to update latest status")
		}
		return err
	}
	return s.status.SetLatest(ctx, r)
}
