package binance

import (
	"strconv"
	"time"

	"github.com/ledgerpulse/ledgerpulse/internal/domain"
)

// tickerMessage is one frame of the 24hr rolling window ticker stream
// (<symbol>@ticker). Numeric fields arrive as strings.
type tickerMessage struct {
	EventType      string `json:"e"`
	EventTime      int64  `json:"E"`
	Symbol         string `json:"s"`
	LastPrice      string `json:"c"`
	PriceChangePct string `json:"P"`
	HighPrice      string `json:"h"`
	LowPrice       string `json:"l"`
	Volume         string `json:"v"`
	QuoteVolume    string `json:"q"`
}

func (m *tickerMessage) toDomainTick() (domain.PriceTick, bool) {
	price, err := strconv.ParseFloat(m.LastPrice, 64)
	if err != nil {
		return domain.PriceTick{}, false
	}
	change, err := strconv.ParseFloat(m.PriceChangePct, 64)
	if err != nil {
		return domain.PriceTick{}, false
	}
	high, _ := strconv.ParseFloat(m.HighPrice, 64)
	low, _ := strconv.ParseFloat(m.LowPrice, 64)
	vol, _ := strconv.ParseFloat(m.Volume, 64)
	quoteVol, _ := strconv.ParseFloat(m.QuoteVolume, 64)

	observed := time.Now()
	if m.EventTime > 0 {
		observed = time.UnixMilli(m.EventTime)
	}

	return domain.PriceTick{
		Price:          price,
		Change24h:      change,
		High24h:        high,
		Low24h:         low,
		Volume24h:      vol,
		QuoteVolume24h: quoteVol,
		ObservedAt:     observed,
	}, true
}

// APITicker24h is the REST 24hr ticker response (/api/v3/ticker/24hr).
type APITicker24h struct {
	Symbol         string `json:"symbol"`
	LastPrice      string `json:"lastPrice"`
	PriceChangePct string `json:"priceChangePercent"`
	HighPrice      string `json:"highPrice"`
	LowPrice       string `json:"lowPrice"`
	Volume         string `json:"volume"`
	QuoteVolume    string `json:"quoteVolume"`
	CloseTime      int64  `json:"closeTime"`
}

// ToDomainTick converts the REST ticker to a PriceTick.
func (t *APITicker24h) ToDomainTick() (domain.PriceTick, error) {
	msg := tickerMessage{
		EventTime:      t.CloseTime,
		LastPrice:      t.LastPrice,
		PriceChangePct: t.PriceChangePct,
		HighPrice:      t.HighPrice,
		LowPrice:       t.LowPrice,
		Volume:         t.Volume,
		QuoteVolume:    t.QuoteVolume,
	}
	tick, ok := msg.toDomainTick()
	if !ok {
		return domain.PriceTick{}, errMalformedTicker
	}
	return tick, nil
}

// tradeMessage is one frame of the trade stream (<symbol>@trade).
type tradeMessage struct {
	EventType    string `json:"e"`
	TradeTime    int64  `json:"T"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	IsBuyerMaker bool   `json:"m"`
}

func (m *tradeMessage) toDomainTrade() (domain.Trade, bool) {
	price, err := strconv.ParseFloat(m.Price, 64)
	if err != nil {
		return domain.Trade{}, false
	}
	qty, err := strconv.ParseFloat(m.Quantity, 64)
	if err != nil {
		return domain.Trade{}, false
	}
	return domain.Trade{
		Price:           price,
		Quantity:        qty,
		Timestamp:       time.UnixMilli(m.TradeTime),
		SellerInitiated: m.IsBuyerMaker,
	}, true
}
