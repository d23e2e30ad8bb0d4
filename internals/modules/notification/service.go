package notification

import (
	"context"
	"errors"
	"sync"

	"sentinel/internals/modules/alert"

	"github.com/rs/zerolog"
)

var ErrServiceClosed = errors.New("notification service is closed")

// AlertDispatcher is implemented by *Dispatcher.
type AlertDispatcher interface {
	DispatchAlert(ctx context.Context, a alert.Alert) ([]Result, error)
}

// Service is the in-process alert transport: a worker pool reading alerts
// off a buffered channel and dispatching each one.
type Service struct {
	// lifecycle
	workerCount int
	workerWG    sync.WaitGroup
	mu          sync.RWMutex
	closed      bool

	// channels
	alertChan chan alert.Alert

	dispatcher AlertDispatcher
	logger     *zerolog.Logger
}

func NewService(workerCount, channelSize int, dispatcher AlertDispatcher, logger *zerolog.Logger) *Service {
	return &Service{
		workerCount: workerCount,
		alertChan:   make(chan alert.Alert, channelSize),
		dispatcher:  dispatcher,
		logger:      logger,
	}
}

// Start starts the workers. They stop once Close drains the channel.
func (s *Service) Start(ctx context.Context) {
	s.workerWG.Add(s.workerCount)

	for range s.workerCount {
		go s.handleAlerts(ctx)
	}
}

func (s *Service) handleAlerts(ctx context.Context) {
	defer s.workerWG.Done()

	for a := range s.alertChan {
		if _, err := s.dispatcher.DispatchAlert(ctx, a); err != nil {
			s.logger.Error().Err(err).
				Str("alert_id", a.ID.String()).
				Str("tenant_id", a.TenantID.String()).
				Msg("failed to dispatch alert")
		}
	}
}

// PublishAlert queues a for dispatch, blocking while the buffer is full.
func (s *Service) PublishAlert(ctx context.Context, a alert.Alert) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrServiceClosed
	}
	select {
	case s.alertChan <- a:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting alerts; queued ones are still dispatched.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.alertChan)
	}
}

// WorkerClosingWait waits for the workers to finish after Close.
func (s *Service) WorkerClosingWait() {
	s.workerWG.Wait()
}
