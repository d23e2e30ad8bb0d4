package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"sentinel/internals/modules/monitor"
	"sentinel/internals/modules/probe"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	latestTTL = 24 * time.Hour
	tsSuffix  = ":ts"
)

// setLatestScript writes a location's result unless a newer one is already stored.
// KEYS[1] status hash; ARGV location, checked_at (unix micros), payload, ttl millis.
var setLatestScript = redis.NewScript(`
local prev = redis.call("HGET", KEYS[1], ARGV[1] .. ":ts")
if prev and tonumber(prev) > tonumber(ARGV[2]) then
	return 0
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[3], ARGV[1] .. ":ts", ARGV[2])
redis.call("PEXPIRE", KEYS[1], ARGV[4])
return 1
`)

// StatusStore implements probe.StatusStore.
type StatusStore struct {
	c *Client
}

func NewStatusStore(c *Client) *StatusStore {
	return &StatusStore{c: c}
}

func statusKey(monitorID uuid.UUID) string {
	return fmt.Sprintf("monitor:status:%v", monitorID)
}

func aggregatedKey(monitorID uuid.UUID) string {
	return fmt.Sprintf("monitor:aggregated:%v", monitorID)
}

func (s *StatusStore) SetLatest(ctx context.Context, r probe.CheckResult) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return retry(ctx, 2, func() error {
		return setLatestScript.Run(ctx, s.c.rdb, []string{statusKey(r.MonitorID)},
			string(r.Location), r.CheckedAt.UnixMicro(), payload, latestTTL.Milliseconds(),
		).Err()
	})
}

func (s *StatusStore) Latest(ctx context.Context, monitorID uuid.UUID) (map[monitor.Location]probe.CheckResult, error) {
	res, err := s.c.rdb.HGetAll(ctx, statusKey(monitorID)).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[monitor.Location]probe.CheckResult, len(res)/2)
	for field, raw := range res {
		if strings.HasSuffix(field, tsSuffix) {
			continue
		}
		var r probe.CheckResult
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("decode status %s: %w", field, err)
		}
		out[monitor.Location(field)] = r
	}
	return out, nil
}

func (s *StatusStore) GetAggregated(ctx context.Context, monitorID uuid.UUID) (probe.AggregatedStatus, bool, error) {
	raw, err := s.c.rdb.Get(ctx, aggregatedKey(monitorID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return probe.AggregatedStatus{}, false, nil
	}
	if err != nil {
		return probe.AggregatedStatus{}, false, err
	}

	var st probe.AggregatedStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		// a corrupt entry is a miss; the next read recomputes it
		return probe.AggregatedStatus{}, false, nil
	}
	return st, true, nil
}

func (s *StatusStore) SetAggregated(ctx context.Context, st probe.AggregatedStatus, ttl time.Duration) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.c.rdb.Set(ctx, aggregatedKey(st.MonitorID), payload, ttl).Err()
}

func (s *StatusStore) InvalidateAggregated(ctx context.Context, monitorID uuid.UUID) error {
	return retry(ctx, 2, func() error {
		return s.c.rdb.Del(ctx, aggregatedKey(monitorID)).Err()
	})
}

func (s *StatusStore) Clear(ctx context.Context, monitorID uuid.UUID) error {
	return retry(ctx, 2, func() error {
		return s.c.rdb.Del(ctx, statusKey(monitorID), aggregatedKey(monitorID)).Err()
	})
}
