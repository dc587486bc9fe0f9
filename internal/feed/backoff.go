package feed

import "time"

const (
	// baseReconnectDelay is the delay before the first reconnect attempt.
	baseReconnectDelay = time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 30 * time.Second
)

// Backoff returns the delay before reconnect attempt n (zero-based). Delays
// double from one second and cap at thirty seconds.
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return maxReconnectDelay
	}
	return baseReconnectDelay << uint(attempt)
}
