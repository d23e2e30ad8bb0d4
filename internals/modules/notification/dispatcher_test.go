package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sentinel/internals/modules/alert"
	"sentinel/pkg/apperror"
	"sentinel/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDeliverer answers by webhook URL and counts calls.
type stubDeliverer struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error
}

func newStubDeliverer() *stubDeliverer {
	return &stubDeliverer{calls: map[string]int{}, fail: map[string]error{}}
}

func (s *stubDeliverer) Deliver(_ context.Context, _ alert.Alert, cfg ChannelConfig) error {
	c := cfg.(WebhookConfig)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[c.URL]++
	return s.fail[c.URL]
}

func (s *stubDeliverer) setFail(url string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, url)
		return
	}
	s.fail[url] = err
}

func (s *stubDeliverer) count(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[url]
}

var testOpts = Options{
	DeliveryTimeout: time.Second,
	MaxRetries:      3,
	BaseDelay:       30 * time.Second,
	MaxDelay:        30 * time.Minute,
}

type fixture struct {
	d          *Dispatcher
	stub       *stubDeliverer
	channels   *MemoryChannelStore
	alerts     *alert.MemoryRepository
	deliveries *MemoryDeliveryStore
	queue      *MemoryRetryQueue
	tenantID   uuid.UUID
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		stub:       newStubDeliverer(),
		channels:   NewMemoryChannelStore(),
		alerts:     alert.NewMemoryRepository(),
		deliveries: NewMemoryDeliveryStore(),
		queue:      NewMemoryRetryQueue(2 * time.Minute),
		tenantID:   uuid.New(),
		now:        time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.d = NewDispatcher(
		map[ChannelType]Deliverer{ChannelWebhook: f.stub},
		f.channels, f.alerts, f.deliveries, f.queue, testOpts, logger.Nop(),
	)
	f.d.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) addChannel(t *testing.T, url string, enabled bool) Channel {
	t.Helper()
	ch, err := f.channels.Create(context.Background(), Channel{
		TenantID:  f.tenantID,
		Name:      url,
		Type:      ChannelWebhook,
		Config:    WebhookConfig{URL: url},
		Enabled:   enabled,
		CreatedAt: f.now.Add(time.Duration(len(url)) * time.Millisecond),
	})
	require.NoError(t, err)
	return ch
}

func (f *fixture) newAlert(t *testing.T) alert.Alert {
	t.Helper()
	a := alert.Alert{
		ID:                  uuid.New(),
		TenantID:            f.tenantID,
		MonitorID:           uuid.New(),
		Type:                alert.TypeFailure,
		TriggeredAt:         f.now,
		ConsecutiveFailures: 3,
		Message:             "down",
		NotificationStatus:  map[string]alert.DeliveryStatus{},
	}
	require.NoError(t, f.alerts.Create(context.Background(), a))
	return a
}

func (f *fixture) status(t *testing.T, a alert.Alert, ch Channel) alert.DeliveryStatus {
	t.Helper()
	got, err := f.alerts.Load(context.Background(), a.ID)
	require.NoError(t, err)
	st, ok := got.NotificationStatus[ch.ID.String()]
	require.True(t, ok, "no status for channel %s", ch.Name)
	return st
}

func TestSendToMultipleChannelsKeepsOrderAndSkipsDisabled(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		disabled int
	}{
		{"all enabled", 4, 0},
		{"some disabled", 5, 2},
		{"all disabled", 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			a := testAlert()

			channels := make([]Channel, 0, tt.total)
			for i := range tt.total {
				channels = append(channels, Channel{
					ID:      uuid.New(),
					Type:    ChannelWebhook,
					Config:  WebhookConfig{URL: "stub://" + string(rune('a'+i))},
					Enabled: i >= tt.disabled,
				})
			}

			results := f.d.SendToMultipleChannels(context.Background(), a, channels)
			require.Len(t, results, tt.total)

			disabled := 0
			for i, res := range results {
				assert.Equal(t, channels[i].ID, res.ChannelID)
				if res.ErrorMessage == ChannelDisabledMessage {
					disabled++
					assert.False(t, res.Success)
					assert.Nil(t, res.DeliveredAt)
					assert.Zero(t, f.stub.count(channels[i].Config.(WebhookConfig).URL))
					continue
				}
				assert.True(t, res.Success)
				require.NotNil(t, res.DeliveredAt)
				assert.Equal(t, f.now, *res.DeliveredAt)
			}
			assert.Equal(t, tt.disabled, disabled)
		})
	}
}

func TestSendToMultipleChannelsEmpty(t *testing.T) {
	f := newFixture(t)
	assert.Empty(t, f.d.SendToMultipleChannels(context.Background(), testAlert(), nil))
}

func TestSendUnsupportedChannelType(t *testing.T) {
	f := newFixture(t)
	res := f.d.SendNotification(context.Background(), testAlert(), Channel{ID: uuid.New(), Type: ChannelSMS, Enabled: true})
	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "unsupported channel type")
}

func TestDispatchAlertOutcomes(t *testing.T) {
	f := newFixture(t)
	ok := f.addChannel(t, "stub://ok", true)
	flaky := f.addChannel(t, "stub://flaky", true)
	broken := f.addChannel(t, "stub://broken", true)
	off := f.addChannel(t, "stub://off", false)
	f.stub.setFail("stub://flaky", errors.New("connection reset"))
	f.stub.setFail("stub://broken", permanent(errors.New("410 gone")))

	a := f.newAlert(t)
	results, err := f.d.DispatchAlert(context.Background(), a)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, alert.DeliveryDelivered, f.status(t, a, ok).Status)
	assert.Equal(t, alert.DeliveryRetrying, f.status(t, a, flaky).Status)
	assert.Equal(t, alert.DeliveryFailed, f.status(t, a, broken).Status)
	offStatus := f.status(t, a, off)
	assert.Equal(t, alert.DeliveryDisabled, offStatus.Status)
	assert.Equal(t, ChannelDisabledMessage, offStatus.LastError)

	// only the transient failure is queued, due after the first backoff
	stats, err := f.queue.Stats(context.Background(), f.now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalQueued)
	assert.Equal(t, int64(1), stats.PendingRetry)

	due, err := f.queue.ClaimDue(context.Background(), f.now.Add(testOpts.BaseDelay), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, flaky.ID, due[0].ChannelID)
	assert.Equal(t, 0, due[0].RetryCount)
	assert.Equal(t, f.now.Add(testOpts.BaseDelay), due[0].DueAt)

	records, err := f.deliveries.ListByAlert(context.Background(), f.tenantID, a.ID)
	require.NoError(t, err)
	assert.Len(t, records, 3, "disabled channels leave no delivery record")
	for _, r := range records {
		assert.Equal(t, 1, r.Attempt)
		assert.Equal(t, r.ChannelID == broken.ID, r.Terminal)
	}
}

func TestDispatchAlertWithoutChannels(t *testing.T) {
	f := newFixture(t)
	results, err := f.d.DispatchAlert(context.Background(), f.newAlert(t))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDispatchAlertIgnoresOtherTenantsChannels(t *testing.T) {
	f := newFixture(t)
	_, err := f.channels.Create(context.Background(), Channel{
		TenantID: uuid.New(), Type: ChannelWebhook, Config: WebhookConfig{URL: "stub://foreign"}, Enabled: true,
	})
	require.NoError(t, err)

	results, err := f.d.DispatchAlert(context.Background(), f.newAlert(t))
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, f.stub.count("stub://foreign"))
}

func TestQueueForRetryCeiling(t *testing.T) {
	f := newFixture(t)
	a := f.newAlert(t)
	ch := f.addChannel(t, "stub://x", true)

	for _, k := range []int{-1, testOpts.MaxRetries, testOpts.MaxRetries + 1} {
		queued, err := f.d.QueueForRetry(context.Background(), a, ch, k)
		require.NoError(t, err)
		assert.False(t, queued, "retryCount %d", k)
	}
	stats, _ := f.queue.Stats(context.Background(), f.now)
	assert.Zero(t, stats.TotalQueued)

	queued, err := f.d.QueueForRetry(context.Background(), a, ch, testOpts.MaxRetries-1)
	require.NoError(t, err)
	assert.True(t, queued)

	items, _ := f.queue.ClaimDue(context.Background(), f.now.Add(testOpts.MaxDelay), 0)
	require.Len(t, items, 1)
	assert.Equal(t, f.now.Add(f.d.Backoff(testOpts.MaxRetries-1)), items[0].DueAt)
}

func TestDispatcherBackoff(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, 30*time.Second, f.d.Backoff(0))
	assert.Equal(t, 60*time.Second, f.d.Backoff(1))
	assert.Equal(t, 120*time.Second, f.d.Backoff(2))
	assert.Equal(t, 30*time.Minute, f.d.Backoff(20))
	assert.LessOrEqual(t, f.d.Backoff(6), f.d.Backoff(7))
}

type failingAlertStore struct {
	AlertStore
}

func (failingAlertStore) SetNotificationStatus(context.Context, uuid.UUID, string, alert.DeliveryStatus) error {
	return apperror.New(apperror.Internal, "test", errors.New("db down"))
}

func TestDispatchSurvivesStatusWriteFailure(t *testing.T) {
	f := newFixture(t)
	f.addChannel(t, "stub://ok", true)
	a := f.newAlert(t)
	f.d.alerts = failingAlertStore{AlertStore: f.alerts}

	results, err := f.d.DispatchAlert(context.Background(), a)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
}
