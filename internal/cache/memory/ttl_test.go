package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheFreshHitSkipsFetch(t *testing.T) {
	clock := time.Unix(1000, 0)
	c := NewWithClock[int](func() time.Time { return clock })

	calls := 0
	fetch := func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	}

	v, fr, err := c.Get(context.Background(), "k", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, Fresh, fr)
	assert.Equal(t, 1, calls)

	clock = clock.Add(30 * time.Second)
	v, fr, err = c.Get(context.Background(), "k", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, Fresh, fr)
	assert.Equal(t, 1, calls, "fetch must not run inside the TTL window")
}

func TestCacheExpiredEntryRefetches(t *testing.T) {
	clock := time.Unix(1000, 0)
	c := NewWithClock[string](func() time.Time { return clock })

	vals := []string{"first", "second"}
	calls := 0
	fetch := func(ctx context.Context) (string, error) {
		v := vals[calls]
		calls++
		return v, nil
	}

	v, _, err := c.Get(context.Background(), "k", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, "first", v)

	clock = clock.Add(2 * time.Minute)
	v, fr, err := c.Get(context.Background(), "k", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, "second", v)
	assert.Equal(t, Fresh, fr)
	assert.Equal(t, 2, calls)
}

func TestCacheServesStaleOnFetchFailure(t *testing.T) {
	clock := time.Unix(1000, 0)
	c := NewWithClock[float64](func() time.Time { return clock })

	_, _, err := c.Get(context.Background(), "k", time.Minute, func(ctx context.Context) (float64, error) {
		return 3.14, nil
	})
	require.NoError(t, err)

	clock = clock.Add(time.Hour)
	v, fr, err := c.Get(context.Background(), "k", time.Minute, func(ctx context.Context) (float64, error) {
		return 0, errors.New("upstream down")
	})
	require.NoError(t, err, "stale serve must suppress the fetch error")
	assert.Equal(t, 3.14, v)
	assert.Equal(t, Stale, fr)
}

func TestCacheMissWithFailedFetchReturnsError(t *testing.T) {
	c := New[int]()

	sentinel := errors.New("boom")
	v, fr, err := c.Get(context.Background(), "missing", time.Minute, func(ctx context.Context) (int, error) {
		return 0, sentinel
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Zero(t, v)
	assert.Equal(t, Fresh, fr, "nothing stale exists to serve on a first-fetch failure")
}

func TestCacheKeysAreIndependent(t *testing.T) {
	c := New[int]()

	calls := 0
	for i, key := range []string{"a", "b", "c"} {
		i := i
		v, _, err := c.Get(context.Background(), key, time.Minute, func(ctx context.Context) (int, error) {
			calls++
			return i, nil
		})
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}

	v, _, err := c.Get(context.Background(), "b", time.Minute, func(ctx context.Context) (int, error) {
		calls++
		return -1, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, v, "each key keeps its own entry")
	assert.Equal(t, 3, calls)
}
