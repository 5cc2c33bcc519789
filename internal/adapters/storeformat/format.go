// Package storeformat holds the external representation of trades shared by the
// trade store adapters: decimal strings for prices and amounts, RFC 3339 entry
// times and PnL as a nullable JSON object.
package storeformat

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"tradeTracker/internal/domain"
	"tradeTracker/internal/ports"
)

// NewDecimal converts f to an exact decimal. NaN and infinities have no
// decimal form and are rejected.
func NewDecimal(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Decimal{}, fmt.Errorf("value %v is not a finite number: %w", f, ports.ErrInvalidRequest)
	}
	return decimal.NewFromFloat(f), nil
}

// FormatDecimal renders f as a plain decimal string without exponent.
func FormatDecimal(f float64) (string, error) {
	d, err := NewDecimal(f)
	if err != nil {
		return "", err
	}
	return d.String(), nil
}

// ParseDecimal parses a decimal string produced by FormatDecimal.
func ParseDecimal(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return d.InexactFloat64(), nil
}

// FormatOptionalDecimal renders a nullable decimal.
func FormatOptionalDecimal(f *float64) (sql.NullString, error) {
	if f == nil {
		return sql.NullString{}, nil
	}
	v, err := FormatDecimal(*f)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: v, Valid: true}, nil
}

// ParseOptionalDecimal parses a nullable decimal.
func ParseOptionalDecimal(s sql.NullString) (*float64, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	f, err := ParseDecimal(s.String)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// TimeLayout is ISO-8601 in UTC with fixed millisecond precision, so stored
// values sort lexicographically in time order.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a time produced by FormatTime.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid entry time %q: %w", s, err)
	}
	return t.UTC(), nil
}

type pnlJSON struct {
	Value json.Number    `json:"value"`
	Unit  domain.PnLUnit `json:"unit"`
}

// EncodePnL renders a PnL as {"value":"..","unit":".."} or NULL.
func EncodePnL(p *domain.PnL) (sql.NullString, error) {
	if p == nil {
		return sql.NullString{}, nil
	}
	v, err := FormatDecimal(p.Value)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("pnl: %w", err)
	}
	b, err := json.Marshal(pnlJSON{Value: json.Number(v), Unit: p.Unit})
	if err != nil {
		return sql.NullString{}, fmt.Errorf("pnl: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// DecodePnL parses the output of EncodePnL.
func DecodePnL(s sql.NullString) (*domain.PnL, error) {
	if !s.Valid || s.String == "" || s.String == "null" {
		return nil, nil
	}
	var raw pnlJSON
	if err := json.Unmarshal([]byte(s.String), &raw); err != nil {
		return nil, fmt.Errorf("invalid pnl %q: %w", s.String, err)
	}
	v, err := ParseDecimal(raw.Value.String())
	if err != nil {
		return nil, err
	}
	if raw.Unit != domain.UnitUSD && raw.Unit != domain.UnitBTC {
		return nil, fmt.Errorf("invalid pnl unit %q", raw.Unit)
	}
	return &domain.PnL{Value: v, Unit: raw.Unit}, nil
}
