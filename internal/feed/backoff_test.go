package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDoublesAndCaps(t *testing.T) {
	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for attempt, d := range want {
		assert.Equal(t, d, Backoff(attempt), "attempt %d", attempt)
	}
}

func TestBackoffNegativeAttemptUsesBase(t *testing.T) {
	assert.Equal(t, time.Second, Backoff(-1))
}

func TestBackoffLargeAttemptStaysCapped(t *testing.T) {
	assert.Equal(t, 30*time.Second, Backoff(100))
}
