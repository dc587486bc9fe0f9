package binance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransportStreamURLs(t *testing.T) {
	ticker := NewWSTransport("wss://stream.binance.com:9443", "XRPUSDT")
	assert.Equal(t, "wss://stream.binance.com:9443/ws/xrpusdt@ticker", ticker.url)

	trades := NewTradeTransport("wss://stream.binance.com:9443", "XRPUSDT")
	assert.Equal(t, "wss://stream.binance.com:9443/ws/xrpusdt@trade", trades.url)
}
