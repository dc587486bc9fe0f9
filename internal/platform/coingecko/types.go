package coingecko

import "github.com/ledgerpulse/ledgerpulse/internal/domain"

// APICoin is the subset of the /coins/{id} response the dashboard uses.
type APICoin struct {
	ID         string `json:"id"`
	Symbol     string `json:"symbol"`
	Name       string `json:"name"`
	MarketData struct {
		CurrentPrice struct {
			USD float64 `json:"usd"`
		} `json:"current_price"`
		High24h struct {
			USD float64 `json:"usd"`
		} `json:"high_24h"`
		Low24h struct {
			USD float64 `json:"usd"`
		} `json:"low_24h"`
		TotalVolume struct {
			USD float64 `json:"usd"`
		} `json:"total_volume"`
		PriceChangePct24h float64 `json:"price_change_percentage_24h"`
		PriceChangePct7d  float64 `json:"price_change_percentage_7d"`
		PriceChangePct30d float64 `json:"price_change_percentage_30d"`
	} `json:"market_data"`
	Tickers []APITicker `json:"tickers"`
}

// APITicker is one exchange listing inside /coins/{id} or /coins/{id}/tickers.
type APITicker struct {
	Base   string `json:"base"`
	Target string `json:"target"`
	Market struct {
		Name string `json:"name"`
	} `json:"market"`
	Last            float64 `json:"last"`
	ConvertedVolume struct {
		USD float64 `json:"usd"`
	} `json:"converted_volume"`
}

// ToDomainExtended converts the coin response to an extended snapshot.
func (c *APICoin) ToDomainExtended() domain.ExtendedSnapshot {
	md := c.MarketData
	return domain.ExtendedSnapshot{
		Price:     md.CurrentPrice.USD,
		Change24h: md.PriceChangePct24h,
		Change7d:  md.PriceChangePct7d,
		Change30d: md.PriceChangePct30d,
		High24h:   md.High24h.USD,
		Low24h:    md.Low24h.USD,
		Volume24h: md.TotalVolume.USD,
	}
}

// ToDomainMarket converts the coin response to aggregated market data.
func (c *APICoin) ToDomainMarket() domain.MarketData {
	tickers := make([]domain.MarketTicker, 0, len(c.Tickers))
	for _, t := range c.Tickers {
		tickers = append(tickers, domain.MarketTicker{
			Exchange: t.Market.Name,
			Pair:     t.Base + "/" + t.Target,
			Price:    t.Last,
			Volume:   t.ConvertedVolume.USD,
		})
	}
	return domain.MarketData{
		Price:   c.MarketData.CurrentPrice.USD,
		Coin:    c.Name,
		Tickers: tickers,
	}
}
