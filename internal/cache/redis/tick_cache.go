package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ledgerpulse/ledgerpulse/internal/domain"
)

// tickKey holds the most recent price tick as a JSON blob. A single key is
// enough: the dashboard tracks one asset.
const tickKey = "tick:latest"

// TickCache implements domain.TickCache on Redis. The ingest node writes
// every accepted tick; API nodes read it to serve the price snapshot without
// holding their own stream connection.
type TickCache struct {
	rdb *redis.Client
}

// NewTickCache creates a TickCache backed by the given Client.
func NewTickCache(c *Client) *TickCache {
	return &TickCache{rdb: c.Underlying()}
}

// SetTick stores the latest tick.
func (tc *TickCache) SetTick(ctx context.Context, tick domain.PriceTick) error {
	data, err := json.Marshal(tick)
	if err != nil {
		return fmt.Errorf("redis: marshal tick: %w", err)
	}
	if err := tc.rdb.Set(ctx, tickKey, data, 0).Err(); err != nil {
		return fmt.Errorf("redis: set tick: %w", err)
	}
	return nil
}

// GetTick retrieves the latest tick. It returns domain.ErrNotFound when no
// tick has been written yet.
func (tc *TickCache) GetTick(ctx context.Context) (domain.PriceTick, error) {
	data, err := tc.rdb.Get(ctx, tickKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.PriceTick{}, domain.ErrNotFound
		}
		return domain.PriceTick{}, fmt.Errorf("redis: get tick: %w", err)
	}

	var tick domain.PriceTick
	if err := json.Unmarshal(data, &tick); err != nil {
		return domain.PriceTick{}, fmt.Errorf("redis: unmarshal tick: %w", err)
	}
	return tick, nil
}

// Compile-time interface check.
var _ domain.TickCache = (*TickCache)(nil)
