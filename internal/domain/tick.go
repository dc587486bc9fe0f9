package domain

import "time"

// PriceTick is one normalized price update derived from a stream message.
// A new tick replaces the previous one; ticks are never mutated after
// construction.
type PriceTick struct {
	Price          float64   `json:"price"`
	Change24h      float64   `json:"change_24h"`
	High24h        float64   `json:"high_24h"`
	Low24h         float64   `json:"low_24h"`
	Volume24h      float64   `json:"volume_24h"`
	QuoteVolume24h float64   `json:"quote_volume_24h"`
	ObservedAt     time.Time `json:"observed_at"`
}

// Trade is a single executed trade from the market stream, used by the
// trade-tape consumers.
type Trade struct {
	Price           float64   `json:"price"`
	Quantity        float64   `json:"quantity"`
	Timestamp       time.Time `json:"timestamp"`
	SellerInitiated bool      `json:"seller_initiated"`
}

// ConnectionState describes the lifecycle of a streaming connection.
type ConnectionState int32

const (
	StateConnecting ConnectionState = iota
	StateOpen
	StateClosed
	StateReconnectScheduled
)

// String returns the lowercase name used in logs and the health endpoint.
func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateReconnectScheduled:
		return "reconnect_scheduled"
	default:
		return "unknown"
	}
}

// FlashDirection tags the transient price-flash signal emitted when a new
// tick's price differs from the previous one. It is a UI affordance, not a
// data guarantee.
type FlashDirection string

const (
	FlashNone FlashDirection = ""
	FlashUp   FlashDirection = "up"
	FlashDown FlashDirection = "down"
)
