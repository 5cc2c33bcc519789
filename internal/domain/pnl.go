package domain

// CurrencyTotals holds a PnL total split by unit.
type CurrencyTotals struct {
	BTC float64 `json:"btc"`
	USD float64 `json:"usd"`
}

// CumulativePnL is the portfolio-level PnL derived from all trades.
// It is recomputed on every change and never persisted.
type CumulativePnL struct {
	Unrealized CurrencyTotals `json:"unrealized"`
	Realized   CurrencyTotals `json:"realized"`
}

// Summary is the dashboard view: current price, cumulative PnL and trade counts.
type Summary struct {
	Price        *PriceQuote   `json:"price"`
	Cumulative   CumulativePnL `json:"cumulativePnL"`
	OpenTrades   int           `json:"openTrades"`
	ClosedTrades int           `json:"closedTrades"`
}
