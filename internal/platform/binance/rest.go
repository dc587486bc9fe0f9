package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ledgerpulse/ledgerpulse/internal/domain"
)

var errMalformedTicker = errors.New("malformed ticker payload")

// RESTClient is the client for the Binance spot REST API. Only the public
// market-data endpoints are used; no API key is required.
type RESTClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRESTClient creates a REST client.
//
// baseURL is the API root, e.g. "https://api.binance.com".
func NewRESTClient(baseURL string) *RESTClient {
	return &RESTClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FetchTicker24h returns the rolling 24hr ticker for a symbol. Used as the
// one-shot bootstrap while the stream connects.
func (c *RESTClient) FetchTicker24h(ctx context.Context, symbol string) (domain.PriceTick, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.doGet(ctx, "/api/v3/ticker/24hr?"+params.Encode())
	if err != nil {
		return domain.PriceTick{}, fmt.Errorf("binance/rest: ticker 24hr: %w", err)
	}

	var ticker APITicker24h
	if err := json.Unmarshal(body, &ticker); err != nil {
		return domain.PriceTick{}, fmt.Errorf("binance/rest: decode ticker: %w", err)
	}

	tick, err := ticker.ToDomainTick()
	if err != nil {
		return domain.PriceTick{}, fmt.Errorf("binance/rest: ticker %s: %w", symbol, err)
	}
	return tick, nil
}

func (c *RESTClient) doGet(ctx context.Context, path string) ([]byte, error) {
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
