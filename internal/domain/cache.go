package domain

import (
	"context"
	"time"
)

// TickCache shares the most recent price tick across processes (for example
// when several API nodes consume one ingest node's feed).
type TickCache interface {
	SetTick(ctx context.Context, tick PriceTick) error
	GetTick(ctx context.Context) (PriceTick, error)
}

// StreamMessage is one durable message read back from a signal stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus is the pub/sub fabric between the ingest services and the
// WebSocket hub. Publish/Subscribe carry ephemeral fan-out; the stream
// methods add durable, ordered delivery used to replay recent payment
// events after a restart. Payloads are opaque JSON envelopes.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe returns a channel that emits raw payloads until the context
	// is cancelled, at which point the channel is closed.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	// StreamRead reads up to count messages after lastID; "0" reads from the
	// beginning. An empty result is not an error.
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
	// StreamTail returns the newest count messages in ascending ID order.
	StreamTail(ctx context.Context, stream string, count int) ([]StreamMessage, error)
}

// LockManager hands out distributed locks so only one ingest node writes the
// shared caches at a time.
type LockManager interface {
	// Acquire obtains the lock for key, returning an unlock function. It
	// returns ErrLockHeld when another holder owns the lock.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RateLimiter gates inbound API requests per client.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}
