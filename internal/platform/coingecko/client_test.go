package coingecko

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const coinBody = `{
	"id": "ripple",
	"symbol": "xrp",
	"name": "XRP",
	"market_data": {
		"current_price": {"usd": 0.62},
		"high_24h": {"usd": 0.65},
		"low_24h": {"usd": 0.60},
		"total_volume": {"usd": 1200000000},
		"price_change_percentage_24h": -1.2,
		"price_change_percentage_7d": 4.5,
		"price_change_percentage_30d": -8.9
	},
	"tickers": [
		{
			"base": "XRP",
			"target": "USDT",
			"market": {"name": "Binance"},
			"last": 0.6201,
			"converted_volume": {"usd": 900000000}
		}
	]
}`

func TestFetchExtended(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/ripple", r.URL.Path)
		assert.Equal(t, "false", r.URL.Query().Get("tickers"))
		w.Write([]byte(coinBody))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "ripple")
	snap, err := c.FetchExtended(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0.62, snap.Price)
	assert.Equal(t, -1.2, snap.Change24h)
	assert.Equal(t, 4.5, snap.Change7d)
	assert.Equal(t, -8.9, snap.Change30d)
	assert.Equal(t, 0.65, snap.High24h)
	assert.Equal(t, 0.60, snap.Low24h)
	assert.Equal(t, 1.2e9, snap.Volume24h)
}

func TestFetchMarket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("tickers"))
		w.Write([]byte(coinBody))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "ripple")
	market, err := c.FetchMarket(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "XRP", market.Coin)
	assert.Equal(t, 0.62, market.Price)
	require.Len(t, market.Tickers, 1)
	assert.Equal(t, "Binance", market.Tickers[0].Exchange)
	assert.Equal(t, "XRP/USDT", market.Tickers[0].Pair)
	assert.Equal(t, 0.6201, market.Tickers[0].Price)
}

func TestFetchOHLC(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/ripple/ohlc", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("days"))
		w.Write([]byte(`[[1700000000000, 0.60, 0.63, 0.59, 0.62], [1700003600000, 0.62, 0.64, 0.61, 0.63]]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "ripple")
	candles, err := c.FetchOHLC(context.Background(), 7)
	require.NoError(t, err)

	require.Len(t, candles, 2)
	assert.Equal(t, int64(1700000000000), candles[0].Timestamp)
	assert.Equal(t, 0.60, candles[0].Open)
	assert.Equal(t, 0.63, candles[0].High)
	assert.Equal(t, 0.59, candles[0].Low)
	assert.Equal(t, 0.62, candles[0].Close)
}

type fakeLimiter struct {
	waitKeys []string
	waitErr  error
}

func (l *fakeLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return true, nil
}

func (l *fakeLimiter) Wait(ctx context.Context, key string) error {
	l.waitKeys = append(l.waitKeys, key)
	return l.waitErr
}

func TestClientWaitsForUpstreamSlot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(coinBody))
	}))
	defer srv.Close()

	limiter := &fakeLimiter{}
	c := NewClient(srv.URL, "ripple").WithLimiter(limiter)

	_, err := c.FetchExtended(context.Background())
	require.NoError(t, err)
	_, err = c.FetchMarket(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{upstreamKey, upstreamKey}, limiter.waitKeys,
		"every call draws from the shared upstream budget")
}

func TestClientLimiterErrorShortCircuits(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(coinBody))
	}))
	defer srv.Close()

	limiter := &fakeLimiter{waitErr: errors.New("context cancelled")}
	c := NewClient(srv.URL, "ripple").WithLimiter(limiter)

	_, err := c.FetchExtended(context.Background())
	require.Error(t, err)
	assert.Zero(t, calls, "a cancelled wait must not reach the upstream")
}

func TestFetchExtendedUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "ripple")
	_, err := c.FetchExtended(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
