package domain

import (
	"encoding/json"
	"fmt"
)

// Snapshot is the minimal price payload served by the basic price endpoint.
// On total upstream failure it degrades to the zero value rather than an
// error, so presentation layers never crash on missing data.
type Snapshot struct {
	Price     float64 `json:"price"`
	Change24h float64 `json:"change_24h"`
}

// ExtendedSnapshot carries the slower-moving aggregate fields fetched from
// the markets API on a multi-minute cadence.
type ExtendedSnapshot struct {
	Price     float64 `json:"price"`
	Change24h float64 `json:"change_24h"`
	Change7d  float64 `json:"change_7d"`
	Change30d float64 `json:"change_30d"`
	High24h   float64 `json:"high_24h"`
	Low24h    float64 `json:"low_24h"`
	Volume24h float64 `json:"volume_24h"`
}

// MarketTicker is a single exchange listing inside the aggregated market
// payload.
type MarketTicker struct {
	Exchange string  `json:"exchange"`
	Pair     string  `json:"pair"`
	Price    float64 `json:"price"`
	Volume   float64 `json:"volume"`
}

// MarketData is the aggregated cross-exchange market payload.
type MarketData struct {
	Price   float64        `json:"price"`
	Coin    string         `json:"coin"`
	Tickers []MarketTicker `json:"tickers"`
}

// Candle is one OHLC bar. It serializes as the compact array form
// [timestamp, open, high, low, close] that charting consumers expect.
type Candle struct {
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
}

// MarshalJSON encodes the candle as a five-element array.
func (c Candle) MarshalJSON() ([]byte, error) {
	return json.Marshal([5]float64{float64(c.Timestamp), c.Open, c.High, c.Low, c.Close})
}

// UnmarshalJSON decodes the five-element array form.
func (c *Candle) UnmarshalJSON(data []byte) error {
	var arr [5]float64
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("candle: %w", err)
	}
	c.Timestamp = int64(arr[0])
	c.Open, c.High, c.Low, c.Close = arr[1], arr[2], arr[3], arr[4]
	return nil
}
