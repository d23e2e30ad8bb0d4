package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"sentinel/internals/modules/alert"
	"sentinel/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func retryItem(due time.Time) RetryItem {
	return RetryItem{AlertID: uuid.New(), ChannelID: uuid.New(), TenantID: uuid.New(), DueAt: due}
}

func TestMemoryQueueStats(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	q := NewMemoryRetryQueue(time.Minute)

	for _, offset := range []time.Duration{-time.Minute, 0, time.Second, time.Hour} {
		require.NoError(t, q.Enqueue(ctx, retryItem(now.Add(offset))))
	}

	stats, err := q.Stats(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, QueueStats{TotalQueued: 4, ReadyForRetry: 2, PendingRetry: 2}, stats)
	assert.Equal(t, stats.TotalQueued, stats.ReadyForRetry+stats.PendingRetry)

	later, _ := q.Stats(ctx, now.Add(2*time.Hour))
	assert.Equal(t, int64(4), later.ReadyForRetry)
	assert.Zero(t, later.PendingRetry)
}

func TestMemoryQueueClaimsInDueOrder(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	q := NewMemoryRetryQueue(time.Minute)

	late, early, future := retryItem(now.Add(-time.Second)), retryItem(now.Add(-time.Hour)), retryItem(now.Add(time.Hour))
	for _, it := range []RetryItem{late, future, early} {
		require.NoError(t, q.Enqueue(ctx, it))
	}

	first, err := q.ClaimDue(ctx, now, 1)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, early.Key(), first[0].Key())

	rest, err := q.ClaimDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, late.Key(), rest[0].Key())

	stats, _ := q.Stats(ctx, now)
	assert.Equal(t, QueueStats{TotalQueued: 1, PendingRetry: 1, InFlight: 2}, stats)
}

func TestMemoryQueueEnqueueReplacesSameKey(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	q := NewMemoryRetryQueue(time.Minute)

	it := retryItem(now.Add(time.Hour))
	require.NoError(t, q.Enqueue(ctx, it))
	it.RetryCount = 2
	it.DueAt = now.Add(-time.Second)
	require.NoError(t, q.Enqueue(ctx, it))

	claimed, _ := q.ClaimDue(ctx, now, 0)
	require.Len(t, claimed, 1)
	assert.Equal(t, 2, claimed[0].RetryCount)
}

func TestMemoryQueueAckAfterRequeueKeepsItem(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	q := NewMemoryRetryQueue(time.Minute)

	it := retryItem(now)
	require.NoError(t, q.Enqueue(ctx, it))
	claimed, _ := q.ClaimDue(ctx, now, 0)
	require.Len(t, claimed, 1)

	next := claimed[0]
	next.RetryCount++
	next.DueAt = now.Add(time.Minute)
	require.NoError(t, q.Enqueue(ctx, next))
	require.NoError(t, q.Ack(ctx, claimed[0]))

	stats, _ := q.Stats(ctx, now)
	assert.Equal(t, QueueStats{TotalQueued: 1, PendingRetry: 1}, stats)
}

func TestMemoryQueueRemove(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	q := NewMemoryRetryQueue(time.Minute)

	a, b := retryItem(now), retryItem(now)
	require.NoError(t, q.Enqueue(ctx, a))
	require.NoError(t, q.Enqueue(ctx, b))
	_, _ = q.ClaimDue(ctx, now, 1)

	require.NoError(t, q.Remove(ctx, a))
	require.NoError(t, q.Remove(ctx, b))

	stats, _ := q.Stats(ctx, now)
	assert.Equal(t, QueueStats{}, stats)
}

func TestMemoryQueueReclaim(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	q := NewMemoryRetryQueue(time.Minute)

	it := retryItem(now)
	require.NoError(t, q.Enqueue(ctx, it))
	_, _ = q.ClaimDue(ctx, now, 0)

	n, err := q.Reclaim(ctx, now.Add(30*time.Second), 0)
	require.NoError(t, err)
	assert.Zero(t, n, "claim still within visibility timeout")

	reclaimAt := now.Add(time.Minute)
	n, err = q.Reclaim(ctx, reclaimAt, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	again, _ := q.ClaimDue(ctx, reclaimAt, 0)
	require.Len(t, again, 1)
	assert.Equal(t, it.Key(), again[0].Key())
	assert.Equal(t, reclaimAt, again[0].DueAt)
}

func newTestWorker(f *fixture) *RetryWorker {
	return NewRetryWorker(f.d, f.queue, time.Second, 10, logger.Nop())
}

func TestRetryWorkerRecovers(t *testing.T) {
	f := newFixture(t)
	ch := f.addChannel(t, "stub://flaky", true)
	f.stub.setFail("stub://flaky", errors.New("timeout"))
	a := f.newAlert(t)
	ctx := context.Background()

	_, err := f.d.DispatchAlert(ctx, a)
	require.NoError(t, err)

	w := newTestWorker(f)
	n, err := w.Poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing is due before the backoff elapses")

	f.now = f.now.Add(testOpts.BaseDelay)
	f.stub.setFail("stub://flaky", nil)
	n, err = w.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	st := f.status(t, a, ch)
	assert.Equal(t, alert.DeliveryDelivered, st.Status)
	assert.Equal(t, 2, st.Attempts)
	assert.Equal(t, 2, f.stub.count("stub://flaky"))

	stats, _ := f.queue.Stats(ctx, f.now)
	assert.Equal(t, QueueStats{}, stats)
}

func TestRetryWorkerAbandonsAtCeiling(t *testing.T) {
	f := newFixture(t)
	ch := f.addChannel(t, "stub://dead", true)
	f.stub.setFail("stub://dead", errors.New("503"))
	a := f.newAlert(t)
	ctx := context.Background()

	_, err := f.d.DispatchAlert(ctx, a)
	require.NoError(t, err)

	w := newTestWorker(f)
	for k := range testOpts.MaxRetries {
		f.now = f.now.Add(testOpts.MaxDelay)
		n, err := w.Poll(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, n, "poll %d", k)
	}

	st := f.status(t, a, ch)
	assert.Equal(t, alert.DeliveryAbandoned, st.Status)
	assert.Equal(t, testOpts.MaxRetries+1, st.Attempts)
	assert.Equal(t, testOpts.MaxRetries+1, f.stub.count("stub://dead"))

	f.now = f.now.Add(testOpts.MaxDelay)
	n, err := w.Poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	records, _ := f.deliveries.ListByAlert(ctx, f.tenantID, a.ID)
	require.Len(t, records, testOpts.MaxRetries+1)
	last := records[len(records)-1]
	assert.True(t, last.Terminal)
	assert.Equal(t, testOpts.MaxRetries+1, last.Attempt)
}

func TestRetryWorkerStopsOnPermanentError(t *testing.T) {
	f := newFixture(t)
	ch := f.addChannel(t, "stub://x", true)
	f.stub.setFail("stub://x", errors.New("502"))
	a := f.newAlert(t)
	ctx := context.Background()
	_, _ = f.d.DispatchAlert(ctx, a)

	f.stub.setFail("stub://x", permanent(errors.New("401 unauthorized")))
	f.now = f.now.Add(testOpts.MaxDelay)
	_, err := newTestWorker(f).Poll(ctx)
	require.NoError(t, err)

	assert.Equal(t, alert.DeliveryFailed, f.status(t, a, ch).Status)
	stats, _ := f.queue.Stats(ctx, f.now.Add(time.Hour))
	assert.Zero(t, stats.TotalQueued)
}

func TestRetryWorkerDropsDeletedAndDisabledChannels(t *testing.T) {
	f := newFixture(t)
	gone := f.addChannel(t, "stub://gone", true)
	muted := f.addChannel(t, "stub://muted", true)
	f.stub.setFail("stub://gone", errors.New("x"))
	f.stub.setFail("stub://muted", errors.New("x"))
	a := f.newAlert(t)
	ctx := context.Background()
	_, _ = f.d.DispatchAlert(ctx, a)

	require.NoError(t, f.channels.Delete(ctx, f.tenantID, gone.ID))
	_, err := f.channels.SetEnabled(ctx, f.tenantID, muted.ID, false)
	require.NoError(t, err)

	f.now = f.now.Add(testOpts.MaxDelay)
	n, err := newTestWorker(f).Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, 1, f.stub.count("stub://gone"))
	assert.Equal(t, 1, f.stub.count("stub://muted"))
	assert.Equal(t, alert.DeliveryDisabled, f.status(t, a, muted).Status)

	stats, _ := f.queue.Stats(ctx, f.now)
	assert.Equal(t, QueueStats{}, stats)
}

func TestRetryWorkerDropsMissingAlert(t *testing.T) {
	f := newFixture(t)
	ch := f.addChannel(t, "stub://x", true)
	ctx := context.Background()
	require.NoError(t, f.queue.Enqueue(ctx, RetryItem{AlertID: uuid.New(), ChannelID: ch.ID, TenantID: f.tenantID, DueAt: f.now}))

	n, err := newTestWorker(f).Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, f.stub.count("stub://x"))

	stats, _ := f.queue.Stats(ctx, f.now)
	assert.Equal(t, QueueStats{}, stats)
}

type brokenChannelStore struct {
	ChannelStore
}

func (brokenChannelStore) Get(context.Context, uuid.UUID, uuid.UUID) (Channel, error) {
	return Channel{}, errors.New("connection refused")
}

func TestRetryWorkerLeavesItemInFlightOnStoreError(t *testing.T) {
	f := newFixture(t)
	ch := f.addChannel(t, "stub://x", true)
	f.stub.setFail("stub://x", errors.New("x"))
	a := f.newAlert(t)
	ctx := context.Background()
	_, _ = f.d.DispatchAlert(ctx, a)

	f.d.channels = brokenChannelStore{ChannelStore: f.channels}
	f.now = f.now.Add(testOpts.MaxDelay)
	_, err := newTestWorker(f).Poll(ctx)
	require.NoError(t, err)

	stats, _ := f.queue.Stats(ctx, f.now)
	assert.Equal(t, int64(1), stats.InFlight)

	// once visible again the item is retried
	n, err := f.queue.Reclaim(ctx, f.now.Add(2*time.Minute), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f.d.channels = f.channels
	f.stub.setFail("stub://x", nil)
	f.now = f.now.Add(2 * time.Minute)
	n, err = newTestWorker(f).Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, alert.DeliveryDelivered, f.status(t, a, ch).Status)
}

func TestRetryWorkerRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	w := NewRetryWorker(f.d, f.queue, 5*time.Millisecond, 10, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("retry worker did not stop")
	}
}
