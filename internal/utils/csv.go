package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"tradeTracker/internal/adapters/storeformat"
	"tradeTracker/internal/domain"
	"tradeTracker/internal/pnl"
)

var tradeCSVHeader = []string{
	"id", "type", "entry_date", "entry_price", "amount", "status",
	"unrealized_pnl", "unrealized_unit", "realized_pnl", "realized_unit", "cash_value",
}

// WriteTradesToCSV writes trades to filename, replacing any existing file.
func WriteTradesToCSV(trades []*domain.Trade, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return WriteTradesCSV(file, trades)
}

// WriteTradesCSV writes a header row and one row per trade.
func WriteTradesCSV(w io.Writer, trades []*domain.Trade) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(tradeCSVHeader); err != nil {
		return err
	}
	for _, t := range trades {
		row, err := tradeRecord(t)
		if err != nil {
			return fmt.Errorf("trade %d: %w", t.ID, err)
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func tradeRecord(t *domain.Trade) ([]string, error) {
	entryPrice, err := storeformat.FormatDecimal(t.EntryPrice)
	if err != nil {
		return nil, err
	}
	amount, err := storeformat.FormatDecimal(t.Amount)
	if err != nil {
		return nil, err
	}
	uValue, uUnit, err := pnlColumns(t.UnrealizedPnL)
	if err != nil {
		return nil, err
	}
	rValue, rUnit, err := pnlColumns(t.RealizedPnL)
	if err != nil {
		return nil, err
	}
	cash := ""
	if t.CashValue != nil {
		if cash, err = storeformat.FormatDecimal(*t.CashValue); err != nil {
			return nil, err
		}
	}
	return []string{
		strconv.FormatInt(t.ID, 10),
		string(t.Side),
		storeformat.FormatTime(t.EntryTime),
		entryPrice,
		amount,
		string(t.Status),
		uValue, uUnit,
		rValue, rUnit,
		cash,
	}, nil
}

// ReadTradesFromCSV reads trades written by WriteTradesToCSV.
func ReadTradesFromCSV(filename string) ([]*domain.Trade, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ReadTradesCSV(file)
}

// ReadTradesCSV parses trades from r. The first row must be the header and
// every trade row must describe a consistent Open or Closed trade.
func ReadTradesCSV(r io.Reader) ([]*domain.Trade, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(tradeCSVHeader)

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("missing header row")
	}
	for i, col := range tradeCSVHeader {
		if records[0][i] != col {
			return nil, fmt.Errorf("unexpected column %q at position %d, want %q", records[0][i], i, col)
		}
	}

	trades := make([]*domain.Trade, 0, len(records)-1)
	for n, rec := range records[1:] {
		t, err := parseTradeRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n+2, err)
		}
		trades = append(trades, t)
	}
	return trades, nil
}

func parseTradeRecord(rec []string) (*domain.Trade, error) {
	var (
		t   domain.Trade
		err error
	)
	if t.ID, err = strconv.ParseInt(rec[0], 10, 64); err != nil {
		return nil, fmt.Errorf("invalid id: %w", err)
	}
	t.Side = domain.TradeSide(rec[1])
	if !t.Side.Valid() {
		return nil, fmt.Errorf("invalid type %q", rec[1])
	}
	if t.EntryTime, err = storeformat.ParseTime(rec[2]); err != nil {
		return nil, err
	}
	if t.EntryPrice, err = storeformat.ParseDecimal(rec[3]); err != nil {
		return nil, err
	}
	if t.Amount, err = storeformat.ParseDecimal(rec[4]); err != nil {
		return nil, err
	}
	t.Status = domain.TradeStatus(rec[5])
	if t.Status != domain.StatusOpen && t.Status != domain.StatusClosed {
		return nil, fmt.Errorf("invalid status %q", rec[5])
	}
	if t.UnrealizedPnL, err = parsePnLColumns(rec[6], rec[7]); err != nil {
		return nil, err
	}
	if t.RealizedPnL, err = parsePnLColumns(rec[8], rec[9]); err != nil {
		return nil, err
	}
	if rec[10] != "" {
		cash, err := storeformat.ParseDecimal(rec[10])
		if err != nil {
			return nil, err
		}
		t.CashValue = &cash
	}
	if err := pnl.ValidateTrade(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

func pnlColumns(p *domain.PnL) (string, string, error) {
	if p == nil {
		return "", "", nil
	}
	v, err := storeformat.FormatDecimal(p.Value)
	if err != nil {
		return "", "", err
	}
	return v, string(p.Unit), nil
}

func parsePnLColumns(value, unit string) (*domain.PnL, error) {
	if value == "" {
		return nil, nil
	}
	v, err := storeformat.ParseDecimal(value)
	if err != nil {
		return nil, err
	}
	u := domain.PnLUnit(unit)
	if u != domain.UnitUSD && u != domain.UnitBTC {
		return nil, fmt.Errorf("invalid pnl unit %q", unit)
	}
	return &domain.PnL{Value: v, Unit: u}, nil
}
