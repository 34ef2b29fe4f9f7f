package infra

import (
	"time"
)

const (
	// Defaults shared by the quote-stream reconnect loop.
	baseDelay = 500 * time.Millisecond
	maxDelay  = 30 * time.Second
)

// BackoffFrom doubles base for each retry, capped at maxDelay. Retry 0
// (and any negative count) waits one base interval.
func BackoffFrom(base time.Duration, retry int) time.Duration {
	if base <= 0 {
		base = baseDelay
	}
	if retry <= 0 {
		return base
	}
	// Past 30 doublings the shift would overflow long before the cap
	// matters.
	if retry > 30 {
		return maxDelay
	}
	d := base << uint(retry)
	if d > maxDelay {
		return maxDelay
	}
	return d
}

// CalculateBackoff is BackoffFrom with the shared reconnect base.
func CalculateBackoff(retry int) time.Duration {
	return BackoffFrom(baseDelay, retry)
}
