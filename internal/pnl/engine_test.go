package pnl

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeTracker/internal/domain"
	"tradeTracker/internal/ports"
)

func openTrade(side domain.TradeSide, entryPrice, amount float64) *domain.Trade {
	return &domain.Trade{
		ID:         1,
		Side:       side,
		EntryTime:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		EntryPrice: entryPrice,
		Amount:     amount,
		Status:     domain.StatusOpen,
	}
}

func TestComputeUnrealized(t *testing.T) {
	tests := []struct {
		name      string
		trade     *domain.Trade
		price     float64
		wantValue float64
		wantUnit  domain.PnLUnit
		wantErr   error
	}{
		{
			name:      "buy in profit",
			trade:     openTrade(domain.Buy, 50000, 2),
			price:     60000,
			wantValue: 20000,
			wantUnit:  domain.UnitUSD,
		},
		{
			name:      "buy in loss",
			trade:     openTrade(domain.Buy, 50000, 0.5),
			price:     48000,
			wantValue: -1000,
			wantUnit:  domain.UnitUSD,
		},
		{
			name:      "sell price dropped",
			trade:     openTrade(domain.Sell, 50000, 1),
			price:     40000,
			wantValue: 0.25,
			wantUnit:  domain.UnitBTC,
		},
		{
			name:      "sell price rose",
			trade:     openTrade(domain.Sell, 50000, 2),
			price:     62500,
			wantValue: -0.4,
			wantUnit:  domain.UnitBTC,
		},
		{
			name:    "zero price is not loaded",
			trade:   openTrade(domain.Sell, 50000, 1),
			price:   0,
			wantErr: ErrInvalidPrice,
		},
		{
			name:    "negative price",
			trade:   openTrade(domain.Buy, 50000, 1),
			price:   -1,
			wantErr: ErrInvalidPrice,
		},
		{
			name:    "nan price",
			trade:   openTrade(domain.Sell, 50000, 1),
			price:   math.NaN(),
			wantErr: ErrInvalidPrice,
		},
		{
			name: "closed trade",
			trade: func() *domain.Trade {
				tr := openTrade(domain.Buy, 50000, 0)
				tr.Status = domain.StatusClosed
				return tr
			}(),
			price:   60000,
			wantErr: ErrTradeNotOpen,
		},
		{
			name:    "nil trade",
			price:   60000,
			wantErr: ErrInvalidTrade,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeUnrealized(tt.trade, tt.price)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "unexpected error: %v", err)
				assert.True(t, errors.Is(err, ports.ErrInvalidRequest))
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.wantValue, got.Value, 1e-9)
			assert.Equal(t, tt.wantUnit, got.Unit)
		})
	}
}

func TestComputeUnrealized_FormulaHoldsAcrossPrices(t *testing.T) {
	buy := openTrade(domain.Buy, 43210.5, 0.37)
	sell := openTrade(domain.Sell, 43210.5, 0.37)

	for _, p := range []float64{1, 999.99, 43210.5, 51234.75, 250000} {
		b, err := ComputeUnrealized(buy, p)
		require.NoError(t, err)
		assert.Equal(t, (p-buy.EntryPrice)*buy.Amount, b.Value)
		assert.Equal(t, domain.UnitUSD, b.Unit)

		s, err := ComputeUnrealized(sell, p)
		require.NoError(t, err)
		assert.Equal(t, sell.Amount*((sell.EntryPrice-p)/p), s.Value)
		assert.Equal(t, domain.UnitBTC, s.Unit)
	}
}

func TestComputeRealized(t *testing.T) {
	tests := []struct {
		name        string
		trade       *domain.Trade
		closePrice  float64
		closeAmount float64
		wantValue   float64
		wantUnit    domain.PnLUnit
		wantErr     error
	}{
		{
			name:        "buy partial close",
			trade:       openTrade(domain.Buy, 50000, 2),
			closePrice:  55000,
			closeAmount: 1,
			wantValue:   5000,
			wantUnit:    domain.UnitUSD,
		},
		{
			name:        "sell full close",
			trade:       openTrade(domain.Sell, 50000, 1),
			closePrice:  40000,
			closeAmount: 1,
			wantValue:   0.25,
			wantUnit:    domain.UnitBTC,
		},
		{
			name:        "zero close amount",
			trade:       openTrade(domain.Buy, 50000, 2),
			closePrice:  55000,
			closeAmount: 0,
			wantErr:     ErrInvalidCloseAmount,
		},
		{
			name:        "negative close amount",
			trade:       openTrade(domain.Buy, 50000, 2),
			closePrice:  55000,
			closeAmount: -0.5,
			wantErr:     ErrInvalidCloseAmount,
		},
		{
			name:        "close amount exceeds trade",
			trade:       openTrade(domain.Buy, 50000, 2),
			closePrice:  55000,
			closeAmount: 2.0000001,
			wantErr:     ErrCloseAmountExceeds,
		},
		{
			name:        "zero close price",
			trade:       openTrade(domain.Sell, 50000, 2),
			closePrice:  0,
			closeAmount: 1,
			wantErr:     ErrInvalidPrice,
		},
		{
			name:        "infinite close price",
			trade:       openTrade(domain.Sell, 50000, 2),
			closePrice:  math.Inf(1),
			closeAmount: 1,
			wantErr:     ErrInvalidPrice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeRealized(tt.trade, tt.closePrice, tt.closeAmount)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.wantValue, got.Value, 1e-9)
			assert.Equal(t, tt.wantUnit, got.Unit)
		})
	}
}

func TestApplyClose_PartialThenFull(t *testing.T) {
	trade := openTrade(domain.Buy, 50000, 2)

	// Partial close of 1 BTC at 55000 while the market trades at 52000.
	partial, err := ApplyClose(trade, 55000, 1, 52000)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, partial.Status)
	assert.Equal(t, 1.0, partial.Amount)
	require.NotNil(t, partial.RealizedPnL)
	assert.Equal(t, domain.PnL{Value: 5000, Unit: domain.UnitUSD}, *partial.RealizedPnL)
	require.NotNil(t, partial.UnrealizedPnL)
	assert.Equal(t, domain.PnL{Value: 2000, Unit: domain.UnitUSD}, *partial.UnrealizedPnL)

	// The input trade is untouched.
	assert.Equal(t, 2.0, trade.Amount)
	assert.Nil(t, trade.RealizedPnL)

	full, err := ApplyClose(partial, 45000, 1, 52000)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, full.Status)
	assert.Equal(t, 0.0, full.Amount)
	assert.Nil(t, full.UnrealizedPnL)
	require.NotNil(t, full.RealizedPnL)
	assert.Equal(t, domain.PnL{Value: -5000, Unit: domain.UnitUSD}, *full.RealizedPnL)
	assert.Equal(t, trade.ID, full.ID)
	assert.Equal(t, trade.EntryPrice, full.EntryPrice)
	assert.Equal(t, trade.Side, full.Side)
}

func TestApplyClose_DecimalRemainder(t *testing.T) {
	trade := openTrade(domain.Sell, 30000, 0.3)

	partial, err := ApplyClose(trade, 30000, 0.1, 30000)
	require.NoError(t, err)
	assert.Equal(t, 0.2, partial.Amount)
	assert.Equal(t, domain.StatusOpen, partial.Status)

	full, err := ApplyClose(partial, 30000, 0.2, 30000)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, full.Status)
	assert.Equal(t, 0.0, full.Amount)
}

func TestApplyClose_PartialWithoutPrice(t *testing.T) {
	trade := openTrade(domain.Buy, 50000, 2)
	trade.UnrealizedPnL = &domain.PnL{Value: 100, Unit: domain.UnitUSD}

	partial, err := ApplyClose(trade, 51000, 0.5, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.5, partial.Amount)
	assert.Nil(t, partial.UnrealizedPnL)
}

func TestApplyClose_OverwritesRealized(t *testing.T) {
	trade := openTrade(domain.Sell, 50000, 3)

	first, err := ApplyClose(trade, 40000, 1, 40000)
	require.NoError(t, err)
	require.NotNil(t, first.RealizedPnL)
	assert.InDelta(t, 0.25, first.RealizedPnL.Value, 1e-12)

	second, err := ApplyClose(first, 50000, 1, 40000)
	require.NoError(t, err)
	require.NotNil(t, second.RealizedPnL)
	assert.Equal(t, 0.0, second.RealizedPnL.Value)
	assert.Equal(t, domain.UnitBTC, second.RealizedPnL.Unit)
}

func TestApplyClose_RejectsWithoutMutation(t *testing.T) {
	tests := []struct {
		name        string
		closePrice  float64
		closeAmount float64
	}{
		{name: "zero amount", closePrice: 50000, closeAmount: 0},
		{name: "amount too large", closePrice: 50000, closeAmount: 3},
		{name: "zero price", closePrice: 0, closeAmount: 1},
		{name: "negative price", closePrice: -10, closeAmount: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trade := openTrade(domain.Buy, 50000, 2)
			before := *trade

			next, err := ApplyClose(trade, tt.closePrice, tt.closeAmount, 50000)
			require.Error(t, err)
			assert.ErrorIs(t, err, ports.ErrInvalidRequest)
			assert.Nil(t, next)
			assert.Equal(t, before, *trade)
		})
	}
}

func TestRefreshUnrealized(t *testing.T) {
	buy := openTrade(domain.Buy, 50000, 2)
	sell := openTrade(domain.Sell, 50000, 1)
	closed := openTrade(domain.Buy, 50000, 0)
	closed.Status = domain.StatusClosed
	closed.UnrealizedPnL = &domain.PnL{Value: 1, Unit: domain.UnitUSD}

	trades := []*domain.Trade{buy, sell, closed, nil}

	assert.Equal(t, 0, RefreshUnrealized(trades, 0))
	assert.Nil(t, buy.UnrealizedPnL)
	assert.NotNil(t, closed.UnrealizedPnL)

	assert.Equal(t, 2, RefreshUnrealized(trades, 40000))
	require.NotNil(t, buy.UnrealizedPnL)
	assert.Equal(t, -20000.0, buy.UnrealizedPnL.Value)
	require.NotNil(t, sell.UnrealizedPnL)
	assert.Equal(t, 0.25, sell.UnrealizedPnL.Value)
	assert.Nil(t, closed.UnrealizedPnL)
}

func TestOpenTrade(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 30, 0, 0, time.FixedZone("CET", 3600))

	t.Run("sell captures cash value and unrealized", func(t *testing.T) {
		trade, err := OpenTrade(domain.NewTrade{Side: domain.Sell, Price: 50000, Amount: 0.1}, 42, now, 40000)
		require.NoError(t, err)
		assert.Equal(t, int64(42), trade.ID)
		assert.Equal(t, domain.StatusOpen, trade.Status)
		assert.Equal(t, time.UTC, trade.EntryTime.Location())
		require.NotNil(t, trade.CashValue)
		assert.Equal(t, 5000.0, *trade.CashValue)
		require.NotNil(t, trade.UnrealizedPnL)
		assert.Equal(t, domain.UnitBTC, trade.UnrealizedPnL.Unit)
		assert.Nil(t, trade.RealizedPnL)
	})

	t.Run("buy without price has no unrealized", func(t *testing.T) {
		trade, err := OpenTrade(domain.NewTrade{Side: domain.Buy, Price: 50000, Amount: 1}, 7, now, 0)
		require.NoError(t, err)
		assert.Nil(t, trade.CashValue)
		assert.Nil(t, trade.UnrealizedPnL)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := OpenTrade(domain.NewTrade{Side: "Hold", Price: 1, Amount: 1}, 1, now, 0)
		assert.ErrorIs(t, err, ErrInvalidSide)
		_, err = OpenTrade(domain.NewTrade{Side: domain.Buy, Price: 0, Amount: 1}, 1, now, 0)
		assert.ErrorIs(t, err, ErrInvalidPrice)
		_, err = OpenTrade(domain.NewTrade{Side: domain.Buy, Price: 1, Amount: 0}, 1, now, 0)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestEngine_RejectsNonFiniteResults(t *testing.T) {
	t.Run("sell close at a subnormal price", func(t *testing.T) {
		_, err := ComputeRealized(openTrade(domain.Sell, 50000, 1), 1e-310, 1)
		assert.ErrorIs(t, err, ErrInvalidPrice)
		assert.ErrorIs(t, err, ports.ErrInvalidRequest)
	})

	t.Run("buy unrealized overflow", func(t *testing.T) {
		_, err := ComputeUnrealized(openTrade(domain.Buy, 1, 1e300), 1e300)
		assert.ErrorIs(t, err, ErrInvalidPrice)
	})

	t.Run("sell cash value overflow", func(t *testing.T) {
		trade, err := OpenTrade(domain.NewTrade{Side: domain.Sell, Price: 1e300, Amount: 1e300}, 1, time.Now(), 0)
		assert.ErrorIs(t, err, ErrInvalidAmount)
		assert.Nil(t, trade)
	})

	t.Run("buy opened against a price that overflows unrealized", func(t *testing.T) {
		_, err := OpenTrade(domain.NewTrade{Side: domain.Buy, Price: 1, Amount: 1e300}, 1, time.Now(), 1e300)
		assert.ErrorIs(t, err, ErrInvalidPrice)
	})

	t.Run("partial close whose remaining unrealized overflows", func(t *testing.T) {
		trade := openTrade(domain.Buy, 1, 1e300)
		next, err := ApplyClose(trade, 2, 1, 1e300)
		assert.ErrorIs(t, err, ErrInvalidPrice)
		assert.Nil(t, next)
		assert.Equal(t, 1e300, trade.Amount)
		assert.Nil(t, trade.RealizedPnL)
	})

	t.Run("refresh skips trades that overflow", func(t *testing.T) {
		huge := openTrade(domain.Buy, 1, 1e300)
		normal := openTrade(domain.Buy, 40000, 1)
		n := RefreshUnrealized([]*domain.Trade{huge, normal}, 1e300)
		assert.Equal(t, 1, n)
		assert.Nil(t, huge.UnrealizedPnL)
		require.NotNil(t, normal.UnrealizedPnL)

		n = RefreshUnrealized([]*domain.Trade{huge, normal}, 50000)
		assert.Equal(t, 2, n)
	})
}

func TestValidateTrade(t *testing.T) {
	cash := 5000.0
	valid := func() *domain.Trade {
		tr := openTrade(domain.Sell, 50000, 0.1)
		tr.CashValue = &cash
		tr.UnrealizedPnL = &domain.PnL{Value: 0.01, Unit: domain.UnitBTC}
		return tr
	}

	require.NoError(t, ValidateTrade(valid()))

	closed := openTrade(domain.Buy, 40000, 0)
	closed.Status = domain.StatusClosed
	closed.RealizedPnL = &domain.PnL{Value: -5000, Unit: domain.UnitUSD}
	require.NoError(t, ValidateTrade(closed))

	tests := []struct {
		name    string
		mutate  func(*domain.Trade)
		wantErr error
	}{
		{name: "unknown side", mutate: func(tr *domain.Trade) { tr.Side = "Hold" }, wantErr: ErrInvalidSide},
		{name: "negative entry price", mutate: func(tr *domain.Trade) { tr.EntryPrice = -5 }, wantErr: ErrInvalidPrice},
		{name: "open with zero amount", mutate: func(tr *domain.Trade) { tr.Amount = 0 }, wantErr: ErrInvalidAmount},
		{name: "closed with amount left", mutate: func(tr *domain.Trade) { tr.Status = domain.StatusClosed; tr.UnrealizedPnL = nil }, wantErr: ErrInvalidAmount},
		{name: "closed with unrealized", mutate: func(tr *domain.Trade) { tr.Status = domain.StatusClosed; tr.Amount = 0 }, wantErr: ErrInvalidTrade},
		{name: "unknown status", mutate: func(tr *domain.Trade) { tr.Status = "Pending" }, wantErr: ErrInvalidTrade},
		{name: "realized in the wrong unit", mutate: func(tr *domain.Trade) { tr.RealizedPnL = &domain.PnL{Value: 7, Unit: domain.UnitUSD} }, wantErr: ErrInvalidTrade},
		{name: "infinite unrealized", mutate: func(tr *domain.Trade) { tr.UnrealizedPnL.Value = math.Inf(1) }, wantErr: ErrInvalidTrade},
		{name: "cash value on a buy", mutate: func(tr *domain.Trade) { tr.Side = domain.Buy; tr.UnrealizedPnL = nil }, wantErr: ErrInvalidTrade},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := valid()
			tt.mutate(tr)
			err := ValidateTrade(tr)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ports.ErrInvalidRequest)
		})
	}
	assert.ErrorIs(t, ValidateTrade(nil), ErrInvalidTrade)
}
