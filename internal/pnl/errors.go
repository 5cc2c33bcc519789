package pnl

import (
	"fmt"

	"tradeTracker/internal/ports"
)

// Validation errors returned by the engine. All of them wrap ports.ErrInvalidRequest.
var (
	ErrInvalidPrice       = fmt.Errorf("%w: price must be a positive finite number", ports.ErrInvalidRequest)
	ErrInvalidAmount      = fmt.Errorf("%w: amount must be a positive finite number", ports.ErrInvalidRequest)
	ErrInvalidSide        = fmt.Errorf("%w: side must be Buy or Sell", ports.ErrInvalidRequest)
	ErrInvalidCloseAmount = fmt.Errorf("%w: close amount must be a positive finite number", ports.ErrInvalidRequest)
	ErrCloseAmountExceeds = fmt.Errorf("%w: close amount exceeds remaining trade amount", ports.ErrInvalidRequest)
	ErrTradeNotOpen       = fmt.Errorf("%w: trade is not open", ports.ErrInvalidRequest)
	ErrInvalidTrade       = fmt.Errorf("%w: malformed trade", ports.ErrInvalidRequest)
)
