package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"tradeTracker/internal/adapters/storeformat"
	"tradeTracker/internal/domain"
	"tradeTracker/internal/ports"
)

func parseSide(s string) (domain.TradeSide, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return domain.Buy, nil
	case "sell":
		return domain.Sell, nil
	default:
		return "", fmt.Errorf("--side %q must be Buy or Sell: %w", s, ports.ErrInvalidRequest)
	}
}

// formatNumber renders f as a plain decimal, falling back to Go's float
// formatting for values without a decimal form.
func formatNumber(f float64) string {
	s, err := storeformat.FormatDecimal(f)
	if err != nil {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return s
}

func formatPnL(p *domain.PnL) string {
	if p == nil {
		return "-"
	}
	return formatNumber(p.Value) + " " + string(p.Unit)
}

// printTrades renders trades as an aligned table.
func printTrades(out io.Writer, trades []*domain.Trade) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tENTRY\tPRICE\tAMOUNT\tSTATUS\tUNREALIZED\tREALIZED\t")
	for _, t := range trades {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			t.ID,
			t.Side,
			storeformat.FormatTime(t.EntryTime),
			formatNumber(t.EntryPrice),
			formatNumber(t.Amount),
			t.Status,
			formatPnL(t.UnrealizedPnL),
			formatPnL(t.RealizedPnL),
		)
	}
	return w.Flush()
}

// printSummary renders the price line followed by per-currency totals.
func printSummary(out io.Writer, s domain.Summary) error {
	if s.Price != nil {
		change := "n/a"
		if s.Price.Change24h != nil {
			change = fmt.Sprintf("%+.2f%%", *s.Price.Change24h)
		}
		fmt.Fprintf(out, "BTC/USD %s (24h %s, %s)\n", formatNumber(s.Price.Price), change, s.Price.Source)
	} else {
		fmt.Fprintln(out, "BTC/USD not loaded")
	}
	fmt.Fprintf(out, "Open trades: %d  Closed trades: %d\n\n", s.OpenTrades, s.ClosedTrades)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PNL\tUSD\tBTC\t")
	fmt.Fprintf(w, "Unrealized\t%s\t%s\t\n",
		formatNumber(s.Cumulative.Unrealized.USD),
		formatNumber(s.Cumulative.Unrealized.BTC))
	fmt.Fprintf(w, "Realized\t%s\t%s\t\n",
		formatNumber(s.Cumulative.Realized.USD),
		formatNumber(s.Cumulative.Realized.BTC))
	return w.Flush()
}
