package notification

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

type queued struct {
	item  RetryItem
	index int
}

// retryHeap is a min-heap on DueAt.
type retryHeap []*queued

func (h retryHeap) Len() int { return len(h) }

func (h retryHeap) Less(i, j int) bool {
	if h[i].item.DueAt.Equal(h[j].item.DueAt) {
		return h[i].item.Key() < h[j].item.Key()
	}
	return h[i].item.DueAt.Before(h[j].item.DueAt)
}

func (h retryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *retryHeap) Push(x any) {
	q := x.(*queued)
	q.index = len(*h)
	*h = append(*h, q)
}

func (h *retryHeap) Pop() any {
	old := *h
	n := len(old)
	q := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	q.index = -1
	return q
}

type claimed struct {
	item      RetryItem
	visibleAt time.Time
}

// MemoryRetryQueue is the in-process RetryQueue.
type MemoryRetryQueue struct {
	mu         sync.Mutex
	heap       retryHeap
	byKey      map[string]*queued
	inflight   map[string]claimed
	visibility time.Duration
}

func NewMemoryRetryQueue(visibility time.Duration) *MemoryRetryQueue {
	return &MemoryRetryQueue{
		byKey:      make(map[string]*queued),
		inflight:   make(map[string]claimed),
		visibility: visibility,
	}
}

func (q *MemoryRetryQueue) Enqueue(_ context.Context, item RetryItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.push(item)
	return nil
}

func (q *MemoryRetryQueue) push(item RetryItem) {
	if existing, ok := q.byKey[item.Key()]; ok {
		existing.item = item
		heap.Fix(&q.heap, existing.index)
		return
	}
	e := &queued{item: item}
	heap.Push(&q.heap, e)
	q.byKey[item.Key()] = e
}

func (q *MemoryRetryQueue) ClaimDue(_ context.Context, now time.Time, limit int) ([]RetryItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]RetryItem, 0)
	for q.heap.Len() > 0 && (limit <= 0 || len(out) < limit) {
		top := q.heap[0]
		if top.item.DueAt.After(now) {
			break
		}
		heap.Pop(&q.heap)
		delete(q.byKey, top.item.Key())
		q.inflight[top.item.Key()] = claimed{item: top.item, visibleAt: now.Add(q.visibility)}
		out = append(out, top.item)
	}
	return out, nil
}

func (q *MemoryRetryQueue) Ack(_ context.Context, item RetryItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inflight, item.Key())
	return nil
}

func (q *MemoryRetryQueue) Remove(_ context.Context, item RetryItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := item.Key()
	delete(q.inflight, key)
	if e, ok := q.byKey[key]; ok {
		heap.Remove(&q.heap, e.index)
		delete(q.byKey, key)
	}
	return nil
}

// Reclaim returns claims older than the visibility timeout to the queue, due now.
func (q *MemoryRetryQueue) Reclaim(_ context.Context, now time.Time, limit int) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for key, c := range q.inflight {
		if limit > 0 && n >= limit {
			break
		}
		if c.visibleAt.After(now) {
			continue
		}
		delete(q.inflight, key)
		if _, requeued := q.byKey[key]; !requeued {
			item := c.item
			item.DueAt = now
			q.push(item)
		}
		n++
	}
	return n, nil
}

func (q *MemoryRetryQueue) Stats(_ context.Context, now time.Time) (QueueStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := QueueStats{TotalQueued: int64(q.heap.Len()), InFlight: int64(len(q.inflight))}
	for _, e := range q.heap {
		if !e.item.DueAt.After(now) {
			s.ReadyForRetry++
		}
	}
	s.PendingRetry = s.TotalQueued - s.ReadyForRetry
	return s, nil
}
