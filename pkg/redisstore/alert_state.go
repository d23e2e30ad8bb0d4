package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"sentinel/internals/modules/alert"
	"sentinel/pkg/apperror"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// alert state hash fields
const (
	fieldFailures     = "failures"
	fieldLastHealthy  = "last_healthy"
	fieldSSLSeverity  = "ssl_severity"
	fieldSSLAlertedAt = "ssl_alerted_at"
	fieldRevision     = "rev"
)

// putStateScript writes the state only if the hash is still at the revision
// the caller read, then bumps the revision. Returns the new revision or -1.
// KEYS state; ARGV expected rev, failures, last_healthy, ssl_severity, ssl_alerted_at.
var putStateScript = redis.NewScript(`
local rev = tonumber(redis.call("HGET", KEYS[1], "rev") or "0")
if rev ~= tonumber(ARGV[1]) then
	return -1
end
redis.call("HSET", KEYS[1], "failures", ARGV[2], "last_healthy", ARGV[3], "ssl_severity", ARGV[4], "ssl_alerted_at", ARGV[5])
return redis.call("HINCRBY", KEYS[1], "rev", 1)
`)

// AlertStateStore implements alert.StateStore with one hash per monitor. The
// failure counter and the SSL fields move together under a revision check, so
// two evaluators of the same monitor can never both apply a tick.
type AlertStateStore struct {
	c *Client
}

func NewAlertStateStore(c *Client) *AlertStateStore {
	return &AlertStateStore{c: c}
}

func alertStateKey(monitorID uuid.UUID) string {
	return fmt.Sprintf("alert:state:%v", monitorID)
}

func (s *AlertStateStore) Get(ctx context.Context, monitorID uuid.UUID) (alert.State, error) {
	var fields map[string]string
	err := retry(ctx, 2, func() error {
		var err error
		fields, err = s.c.rdb.HGetAll(ctx, alertStateKey(monitorID)).Result()
		return err
	})
	if err != nil {
		return alert.State{}, err
	}
	return decodeAlertState(fields)
}

func (s *AlertStateStore) Put(ctx context.Context, monitorID uuid.UUID, st alert.State) error {
	const op = "repo.alert_state.put"

	alertedAt := ""
	if len(st.SSLAlertedAt) > 0 {
		raw, err := json.Marshal(st.SSLAlertedAt)
		if err != nil {
			return err
		}
		alertedAt = string(raw)
	}
	lastHealthy := ""
	if st.LastHealthy != nil {
		lastHealthy = strconv.FormatBool(*st.LastHealthy)
	}

	var rev int64
	err := retry(ctx, 3, func() error {
		var err error
		rev, err = putStateScript.Run(ctx, s.c.rdb,
			[]string{alertStateKey(monitorID)},
			st.Revision, st.ConsecutiveFailures, lastHealthy, string(st.SSLSeverity), alertedAt,
		).Int64()
		return err
	})
	if err != nil {
		return err
	}
	if rev < 0 {
		return &apperror.Error{Kind: apperror.Conflict, Op: op, Message: "alert state changed since it was read"}
	}
	return nil
}

func (s *AlertStateStore) Delete(ctx context.Context, monitorID uuid.UUID) error {
	return retry(ctx, 2, func() error {
		return s.c.rdb.Del(ctx, alertStateKey(monitorID)).Err()
	})
}

func decodeAlertState(fields map[string]string) (alert.State, error) {
	st := alert.State{SSLSeverity: alert.SSLNone}
	if len(fields) == 0 {
		return st, nil
	}

	var err error
	if v := fields[fieldFailures]; v != "" {
		if st.ConsecutiveFailures, err = strconv.Atoi(v); err != nil {
			return alert.State{}, fmt.Errorf("decode alert state failures: %w", err)
		}
	}
	if v := fields[fieldRevision]; v != "" {
		if st.Revision, err = strconv.ParseInt(v, 10, 64); err != nil {
			return alert.State{}, fmt.Errorf("decode alert state revision: %w", err)
		}
	}
	if v := fields[fieldLastHealthy]; v != "" {
		healthy, err := strconv.ParseBool(v)
		if err != nil {
			return alert.State{}, fmt.Errorf("decode alert state last_healthy: %w", err)
		}
		st.LastHealthy = &healthy
	}
	if v := fields[fieldSSLSeverity]; v != "" {
		st.SSLSeverity = alert.SSLSeverity(v)
	}
	if v := fields[fieldSSLAlertedAt]; v != "" {
		st.SSLAlertedAt = make(map[alert.SSLSeverity]time.Time)
		if err := json.Unmarshal([]byte(v), &st.SSLAlertedAt); err != nil {
			return alert.State{}, fmt.Errorf("decode alert state ssl_alerted_at: %w", err)
		}
	}
	return st, nil
}
