package redisstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	retryBaseDelay = 25 * time.Millisecond
	retryMaxDelay  = 200 * time.Millisecond
)

// retry runs fn up to attempts times, doubling the pause between tries. It
// gives up at once on errors a second try cannot fix.
func retry(ctx context.Context, attempts int, fn func() error) error {
	var err error
	delay := retryBaseDelay

	for i := range attempts {
		err = fn()
		if err == nil || !retryable(err) || i == attempts-1 {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, retryMaxDelay)
	}

	return err
}

// retryable is true for transport failures and for the server replies that
// mean "not now": a replica still loading, a busy script, a cluster
// failover in progress.
func retryable(err error) bool {
	if errors.Is(err, redis.Nil) || errors.Is(err, redis.ErrClosed) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var reply redis.Error
	if errors.As(err, &reply) {
		msg := reply.Error()
		for _, prefix := range []string{"LOADING", "BUSY", "TRYAGAIN", "MASTERDOWN"} {
			if strings.HasPrefix(msg, prefix) {
				return true
			}
		}
		return false
	}
	return true
}
