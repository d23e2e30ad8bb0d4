package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sentinel/internals/modules/monitor"

	"github.com/google/uuid"
)

const defaultMonitorCacheTTL = 24 * time.Hour

// MonitorCache implements monitor.Cache.
type MonitorCache struct {
	c   *Client
	ttl time.Duration
}

func NewMonitorCache(c *Client, ttl time.Duration) *MonitorCache {
	if ttl <= 0 {
		ttl = defaultMonitorCacheTTL
	}
	return &MonitorCache{c: c, ttl: ttl}
}

func monitorKey(id uuid.UUID) string {
	return fmt.Sprintf("monitor:%v", id.String())
}

func (m *MonitorCache) SetMonitor(ctx context.Context, mon monitor.Monitor) error {
	jsonM, err := json.Marshal(mon)
	if err != nil {
		return err
	}
	return m.c.rdb.Set(ctx, monitorKey(mon.ID), jsonM, m.ttl).Err()
}

// GetMonitor treats every failure as a miss; the caller falls back to postgres.
func (m *MonitorCache) GetMonitor(ctx context.Context, id uuid.UUID) (monitor.Monitor, bool) {
	res, err := m.c.rdb.Get(ctx, monitorKey(id)).Bytes()
	if err != nil {
		return monitor.Monitor{}, false
	}
	var mon monitor.Monitor
	if err := json.Unmarshal(res, &mon); err != nil {
		return monitor.Monitor{}, false
	}

	return mon, true
}

func (m *MonitorCache) DelMonitor(ctx context.Context, id uuid.UUID) error {
	return m.c.rdb.Del(ctx, monitorKey(id)).Err()
}
