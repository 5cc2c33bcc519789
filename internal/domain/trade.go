package domain

import "time"

// PnL is a profit-and-loss value together with its unit.
type PnL struct {
	Value float64 `json:"value"`
	Unit  PnLUnit `json:"unit"`
}

// Trade represents a recorded Buy or Sell position against BTC/USD.
type Trade struct {
	ID            int64       `json:"id"`                  // Creation-time derived identifier
	Side          TradeSide   `json:"type"`                // Buy or Sell, immutable
	EntryTime     time.Time   `json:"entryDate"`           // When the position was entered, immutable
	EntryPrice    float64     `json:"entryPrice"`          // USD per BTC at entry, immutable
	Amount        float64     `json:"amount"`              // BTC currently held under this trade
	Status        TradeStatus `json:"status"`              // Open or Closed
	UnrealizedPnL *PnL        `json:"unrealizedPnL"`       // Mark-to-market PnL, nil once closed or before a price is known
	RealizedPnL   *PnL        `json:"realizedPnL"`         // PnL of the most recent close, nil until the first close
	CashValue     *float64    `json:"cashValue,omitempty"` // Sell only: EntryPrice * Amount at creation
}

// IsOpen checks if the trade status is open.
func (t *Trade) IsOpen() bool {
	return t.Status == StatusOpen
}

// Clone returns a deep copy of the trade.
func (t *Trade) Clone() *Trade {
	c := *t
	if t.UnrealizedPnL != nil {
		u := *t.UnrealizedPnL
		c.UnrealizedPnL = &u
	}
	if t.RealizedPnL != nil {
		r := *t.RealizedPnL
		c.RealizedPnL = &r
	}
	if t.CashValue != nil {
		v := *t.CashValue
		c.CashValue = &v
	}
	return &c
}

// TradeUpdate holds the mutable fields of a trade written on close or price refresh.
type TradeUpdate struct {
	Amount        float64
	Status        TradeStatus
	RealizedPnL   *PnL
	UnrealizedPnL *PnL
}

// UpdateFrom builds the patch for the mutable fields of t.
func UpdateFrom(t *Trade) TradeUpdate {
	return TradeUpdate{
		Amount:        t.Amount,
		Status:        t.Status,
		RealizedPnL:   t.RealizedPnL,
		UnrealizedPnL: t.UnrealizedPnL,
	}
}

// NewTrade is a user submission for opening a trade.
type NewTrade struct {
	Side   TradeSide
	Price  float64
	Amount float64
}

// CloseRequest describes a close. A nil Price closes at the latest quote and a
// nil Amount closes everything that is left.
type CloseRequest struct {
	Price  *float64
	Amount *float64
}
