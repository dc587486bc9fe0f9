// Package coingecko is the REST client for the CoinGecko API, the source of
// the extended snapshot, aggregated market tickers, and OHLC candles.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ledgerpulse/ledgerpulse/internal/domain"
)

// upstreamKey identifies this upstream in the shared rate limiter, so every
// node pacing CoinGecko calls draws from one budget.
const upstreamKey = "upstream:coingecko"

// Client is a CoinGecko REST client scoped to one coin.
type Client struct {
	baseURL    string
	coinID     string
	httpClient *http.Client
	limiter    domain.RateLimiter
}

// NewClient creates a client for the given coin.
//
// baseURL is the API root, e.g. "https://api.coingecko.com/api/v3".
// coinID is the CoinGecko coin identifier, e.g. "ripple".
func NewClient(baseURL, coinID string) *Client {
	return &Client{
		baseURL: baseURL,
		coinID:  coinID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithLimiter paces requests through the given limiter. The free CoinGecko
// tier throttles hard, so every call waits for an upstream slot first.
func (c *Client) WithLimiter(limiter domain.RateLimiter) *Client {
	c.limiter = limiter
	return c
}

// FetchExtended returns the extended price snapshot (multi-window change
// percentages plus 24h range and volume).
func (c *Client) FetchExtended(ctx context.Context) (domain.ExtendedSnapshot, error) {
	path := fmt.Sprintf("/coins/%s?localization=false&tickers=false&community_data=false&developer_data=false", url.PathEscape(c.coinID))

	body, err := c.doGet(ctx, path)
	if err != nil {
		return domain.ExtendedSnapshot{}, fmt.Errorf("coingecko: fetch extended: %w", err)
	}

	var coin APICoin
	if err := json.Unmarshal(body, &coin); err != nil {
		return domain.ExtendedSnapshot{}, fmt.Errorf("coingecko: decode coin: %w", err)
	}

	return coin.ToDomainExtended(), nil
}

// FetchMarket returns the aggregated market view: current price plus
// per-exchange tickers.
func (c *Client) FetchMarket(ctx context.Context) (domain.MarketData, error) {
	path := fmt.Sprintf("/coins/%s?localization=false&tickers=true&community_data=false&developer_data=false", url.PathEscape(c.coinID))

	body, err := c.doGet(ctx, path)
	if err != nil {
		return domain.MarketData{}, fmt.Errorf("coingecko: fetch market: %w", err)
	}

	var coin APICoin
	if err := json.Unmarshal(body, &coin); err != nil {
		return domain.MarketData{}, fmt.Errorf("coingecko: decode coin: %w", err)
	}

	return coin.ToDomainMarket(), nil
}

// FetchOHLC returns candles for the given day window. CoinGecko accepts
// 1, 7, 14, 30, 90, 180 and 365; other values are rejected upstream.
func (c *Client) FetchOHLC(ctx context.Context, days int) ([]domain.Candle, error) {
	params := url.Values{}
	params.Set("vs_currency", "usd")
	params.Set("days", fmt.Sprintf("%d", days))
	path := fmt.Sprintf("/coins/%s/ohlc?%s", url.PathEscape(c.coinID), params.Encode())

	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("coingecko: fetch ohlc: %w", err)
	}

	// Candles arrive as [timestamp, open, high, low, close] rows; the
	// domain type carries the matching array codec.
	var candles []domain.Candle
	if err := json.Unmarshal(body, &candles); err != nil {
		return nil, fmt.Errorf("coingecko: decode ohlc: %w", err)
	}

	return candles, nil
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, upstreamKey); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
