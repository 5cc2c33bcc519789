package gormstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tradeTracker/internal/adapters/storeformat"
	"tradeTracker/internal/domain"
)

// tradeRow is the persisted shape of a trade.
type tradeRow struct {
	ID            int64               `gorm:"column:id;primaryKey;autoIncrement:false"`
	Type          string              `gorm:"column:type;size:8;not null"`
	EntryDate     time.Time           `gorm:"column:entry_date;not null;index"`
	EntryPrice    decimal.Decimal     `gorm:"column:entry_price;type:numeric;not null"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric;not null"`
	Status        string              `gorm:"column:status;size:8;not null"`
	RealizedPnL   sql.NullString      `gorm:"column:realized_pnl"`
	UnrealizedPnL sql.NullString      `gorm:"column:unrealized_pnl"`
	CashValue     decimal.NullDecimal `gorm:"column:cash_value;type:numeric"`
}

// TableName keeps the table name stable across drivers.
func (tradeRow) TableName() string {
	return "trades"
}

func toRow(t *domain.Trade) (tradeRow, error) {
	row := tradeRow{
		ID:        t.ID,
		Type:      string(t.Side),
		EntryDate: t.EntryTime.UTC(),
		Status:    string(t.Status),
	}
	var err error
	if row.EntryPrice, err = storeformat.NewDecimal(t.EntryPrice); err != nil {
		return row, fmt.Errorf("trade %d entry price: %w", t.ID, err)
	}
	if row.Amount, err = storeformat.NewDecimal(t.Amount); err != nil {
		return row, fmt.Errorf("trade %d amount: %w", t.ID, err)
	}
	if row.RealizedPnL, err = storeformat.EncodePnL(t.RealizedPnL); err != nil {
		return row, fmt.Errorf("trade %d realized %w", t.ID, err)
	}
	if row.UnrealizedPnL, err = storeformat.EncodePnL(t.UnrealizedPnL); err != nil {
		return row, fmt.Errorf("trade %d unrealized %w", t.ID, err)
	}
	if t.CashValue != nil {
		cash, err := storeformat.NewDecimal(*t.CashValue)
		if err != nil {
			return row, fmt.Errorf("trade %d cash value: %w", t.ID, err)
		}
		row.CashValue = decimal.NewNullDecimal(cash)
	}
	return row, nil
}

func (r tradeRow) toDomain() (*domain.Trade, error) {
	realized, err := storeformat.DecodePnL(r.RealizedPnL)
	if err != nil {
		return nil, fmt.Errorf("trade %d: %w", r.ID, err)
	}
	unrealized, err := storeformat.DecodePnL(r.UnrealizedPnL)
	if err != nil {
		return nil, fmt.Errorf("trade %d: %w", r.ID, err)
	}
	t := &domain.Trade{
		ID:            r.ID,
		Side:          domain.TradeSide(r.Type),
		EntryTime:     r.EntryDate.UTC(),
		EntryPrice:    r.EntryPrice.InexactFloat64(),
		Amount:        r.Amount.InexactFloat64(),
		Status:        domain.TradeStatus(r.Status),
		RealizedPnL:   realized,
		UnrealizedPnL: unrealized,
	}
	if r.CashValue.Valid {
		v := r.CashValue.Decimal.InexactFloat64()
		t.CashValue = &v
	}
	return t, nil
}
