package notification

import "time"

// Backoff returns min(base*2^k, max). It never decreases as k grows.
func Backoff(k int, base, max time.Duration) time.Duration {
	if k < 0 {
		k = 0
	}
	d := base
	for range k {
		if d >= max/2 {
			return max
		}
		d *= 2
	}
	if d > max {
		return max
	}
	return d
}
