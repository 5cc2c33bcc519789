package domain

import "time"

// PriceQuote is a BTC/USD price observation from a price source.
type PriceQuote struct {
	Price     float64   `json:"price"`     // USD per BTC
	Change24h *float64  `json:"change24h"` // 24h change in percent, nil when the source omits it
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetchedAt"`
}
