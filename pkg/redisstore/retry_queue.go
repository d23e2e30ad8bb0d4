package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"sentinel/internals/modules/notification"

	"github.com/redis/go-redis/v9"
)

const (
	retryQueueKey    = "notify:retry"
	retryInflightKey = "notify:retry:inflight"
	retryItemsKey    = "notify:retry:items"
)

// claimScript moves due members to the inflight set and returns
// payload, score pairs.
// KEYS queue, inflight, items; ARGV now, limit, visibility (all millis).
var claimScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local due = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", now, "WITHSCORES", "LIMIT", 0, tonumber(ARGV[2]))
local out = {}
for i = 1, #due, 2 do
	local member = due[i]
	redis.call("ZREM", KEYS[1], member)
	redis.call("ZADD", KEYS[2], now + tonumber(ARGV[3]), member)
	local payload = redis.call("HGET", KEYS[3], member)
	if payload then
		table.insert(out, payload)
		table.insert(out, due[i + 1])
	end
end
return out
`)

// ackScript drops the inflight claim; the payload goes too unless the
// member was queued again in the meantime.
// KEYS queue, inflight, items; ARGV member.
var ackScript = redis.NewScript(`
redis.call("ZREM", KEYS[2], ARGV[1])
if not redis.call("ZSCORE", KEYS[1], ARGV[1]) then
	redis.call("HDEL", KEYS[3], ARGV[1])
end
return 1
`)

// reclaimScript returns expired claims to the queue, due now.
// KEYS inflight, queue; ARGV now, limit.
var reclaimScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local stale = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", now, "LIMIT", 0, tonumber(ARGV[2]))
for _, member in ipairs(stale) do
	redis.call("ZREM", KEYS[1], member)
	if not redis.call("ZSCORE", KEYS[2], member) then
		redis.call("ZADD", KEYS[2], now, member)
	end
end
return #stale
`)

// RetryQueue implements notification.RetryQueue on two sorted sets scored in
// unix millis plus a hash of item payloads.
type RetryQueue struct {
	c          *Client
	visibility time.Duration
}

func NewRetryQueue(c *Client, visibility time.Duration) *RetryQueue {
	return &RetryQueue{c: c, visibility: visibility}
}

func (q *RetryQueue) Enqueue(ctx context.Context, item notification.RetryItem) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}
	key := item.Key()

	return retry(ctx, 3, func() error {
		_, err := q.c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, retryItemsKey, key, payload)
			p.ZAdd(ctx, retryQueueKey, redis.Z{Score: float64(item.DueAt.UnixMilli()), Member: key})
			return nil
		})
		return err
	})
}

func (q *RetryQueue) ClaimDue(ctx context.Context, now time.Time, limit int) ([]notification.RetryItem, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}
	res, err := claimScript.Run(ctx, q.c.rdb,
		[]string{retryQueueKey, retryInflightKey, retryItemsKey},
		now.UnixMilli(), limit, q.visibility.Milliseconds(),
	).StringSlice()
	if err != nil {
		return nil, err
	}

	items := make([]notification.RetryItem, 0, len(res)/2)
	for i := 0; i+1 < len(res); i += 2 {
		var item notification.RetryItem
		if err := json.Unmarshal([]byte(res[i]), &item); err != nil {
			return items, fmt.Errorf("decode retry item: %w", err)
		}
		// the score wins: a reclaimed item is due when it was reclaimed
		if ms, err := strconv.ParseFloat(res[i+1], 64); err == nil {
			item.DueAt = time.UnixMilli(int64(ms)).UTC()
		}
		items = append(items, item)
	}
	return items, nil
}

func (q *RetryQueue) Ack(ctx context.Context, item notification.RetryItem) error {
	return retry(ctx, 2, func() error {
		return ackScript.Run(ctx, q.c.rdb,
			[]string{retryQueueKey, retryInflightKey, retryItemsKey}, item.Key()).Err()
	})
}

func (q *RetryQueue) Remove(ctx context.Context, item notification.RetryItem) error {
	key := item.Key()
	_, err := q.c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRem(ctx, retryQueueKey, key)
		p.ZRem(ctx, retryInflightKey, key)
		p.HDel(ctx, retryItemsKey, key)
		return nil
	})
	return err
}

func (q *RetryQueue) Reclaim(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}
	n, err := reclaimScript.Run(ctx, q.c.rdb,
		[]string{retryInflightKey, retryQueueKey}, now.UnixMilli(), limit).Int()
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (q *RetryQueue) Stats(ctx context.Context, now time.Time) (notification.QueueStats, error) {
	var total, ready, inflight *redis.IntCmd
	_, err := q.c.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		total = p.ZCard(ctx, retryQueueKey)
		ready = p.ZCount(ctx, retryQueueKey, "-inf", strconv.FormatInt(now.UnixMilli(), 10))
		inflight = p.ZCard(ctx, retryInflightKey)
		return nil
	})
	if err != nil {
		return notification.QueueStats{}, err
	}

	s := notification.QueueStats{
		TotalQueued:   total.Val(),
		ReadyForRetry: ready.Val(),
		InFlight:      inflight.Val(),
	}
	s.PendingRetry = s.TotalQueued - s.ReadyForRetry
	return s, nil
}
