package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"tradeTracker/internal/adapters/logger"
	"tradeTracker/internal/domain"
	"tradeTracker/internal/ports"
)

const maxBodyBytes = 1 << 16

// createTradeRequest accepts prices and amounts as decimal strings or numbers.
// An omitted price opens at the current BTC price.
type createTradeRequest struct {
	Side   string              `json:"side"`
	Price  decimal.NullDecimal `json:"price"`
	Amount decimal.Decimal     `json:"amount"`
}

// closeTradeRequest fields are optional: the close defaults to the current
// price and the whole remaining amount.
type closeTradeRequest struct {
	ClosePrice  decimal.NullDecimal `json:"closePrice"`
	CloseAmount decimal.NullDecimal `json:"closeAmount"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	id, _ := r.Context().Value(logger.RequestIDKey).(string)
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error(), RequestID: id})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("malformed request body: %w: %w", ports.ErrInvalidRequest, err)
	}
	return nil
}

func parseSide(s string) (domain.TradeSide, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return domain.Buy, nil
	case "sell":
		return domain.Sell, nil
	default:
		return "", fmt.Errorf("side %q must be Buy or Sell: %w", s, ports.ErrInvalidRequest)
	}
}

func parseID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid trade id %q: %w", raw, ports.ErrInvalidRequest)
	}
	return id, nil
}

// entryPrice returns the submitted price, or the latest quote when it was omitted.
func (s *Server) entryPrice(d decimal.NullDecimal) (float64, error) {
	if d.Valid {
		return d.Decimal.InexactFloat64(), nil
	}
	if q := s.tracker.Summary().Price; q != nil {
		return q.Price, nil
	}
	return 0, fmt.Errorf("no price given and none loaded: %w", ports.ErrPriceNotLoaded)
}

func optionalFloat(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	f := d.Decimal.InexactFloat64()
	return &f
}

func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Trades())
}

func (s *Server) handleCreateTrade(w http.ResponseWriter, r *http.Request) {
	var req createTradeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	side, err := parseSide(req.Side)
	if err != nil {
		writeError(w, r, err)
		return
	}
	price, err := s.entryPrice(req.Price)
	if err != nil {
		writeError(w, r, err)
		return
	}
	trade, err := s.tracker.CreateTrade(r.Context(), domain.NewTrade{
		Side:   side,
		Price:  price,
		Amount: req.Amount.InexactFloat64(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, trade)
}

func (s *Server) handleCloseTrade(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req closeTradeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	trade, err := s.tracker.Close(r.Context(), id, domain.CloseRequest{
		Price:  optionalFloat(req.ClosePrice),
		Amount: optionalFloat(req.CloseAmount),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trade)
}

func (s *Server) handleDeleteTrade(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.tracker.DeleteTrade(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Summary())
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	summary := s.tracker.Summary()
	if summary.Price == nil {
		writeError(w, r, ports.ErrPriceNotLoaded)
		return
	}
	writeJSON(w, http.StatusOK, summary.Price)
}

func (s *Server) handleRefreshPrice(w http.ResponseWriter, r *http.Request) {
	quote, err := s.tracker.RefreshPrice(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	s.hub.serve(w, r, s.tracker.Summary())
}
