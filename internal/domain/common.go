package domain

// TradeSide represents the side of a trade (Buy or Sell).
type TradeSide string

const (
	Buy  TradeSide = "Buy"
	Sell TradeSide = "Sell"
)

// Valid reports whether the side is one of the known sides.
func (s TradeSide) Valid() bool {
	return s == Buy || s == Sell
}

// TradeStatus represents the status of a trade.
type TradeStatus string

const (
	StatusOpen   TradeStatus = "Open"
	StatusClosed TradeStatus = "Closed"
)

// PnLUnit is the currency a PnL value is denominated in.
// Buy trades report PnL in USD, Sell trades in BTC.
type PnLUnit string

const (
	UnitUSD PnLUnit = "USD"
	UnitBTC PnLUnit = "BTC"
)

// UnitForSide returns the PnL unit used by trades of the given side.
func UnitForSide(side TradeSide) PnLUnit {
	if side == Sell {
		return UnitBTC
	}
	return UnitUSD
}
