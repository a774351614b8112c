package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/kjannette/trahn-dca/internal/models"
	"github.com/kjannette/trahn-dca/internal/repository"
)

type tradeJSON struct {
	T            int64   `json:"t"`
	ID           string  `json:"id"`
	Kind         string  `json:"kind"`
	AmountIn     float64 `json:"amountIn"`
	AmountOut    float64 `json:"amountOut"`
	DCALevel     *int    `json:"dcaLevel,omitempty"`
	Ref          *string `json:"ref,omitempty"`
	IsPaperTrade *bool   `json:"isPaperTrade,omitempty"`
}

func fromRow(t models.TradeRow) tradeJSON {
	paper := t.IsPaperTrade
	return tradeJSON{
		T: t.Timestamp.UnixMilli(), ID: t.RecordID, Kind: t.Kind,
		AmountIn: t.AmountIn, AmountOut: t.AmountOut,
		DCALevel: t.DCALevel, Ref: t.ExecutionRef,
		IsPaperTrade: &paper,
	}
}

func fromRecord(t models.Trade) tradeJSON {
	out := tradeJSON{
		T: t.Timestamp.UnixMilli(), ID: t.ID, Kind: t.Kind.String(),
		AmountIn: t.AmountIn, AmountOut: t.AmountOut,
	}
	if t.DCALevel != nil {
		l := int(*t.DCALevel)
		out.DCALevel = &l
	}
	if t.Ref != "" {
		ref := t.Ref
		out.Ref = &ref
	}
	return out
}

// parseTradeMode extracts the ?mode= query parameter.
// Returns a *bool: nil = all, true = paper, false = live.
func parseTradeMode(r *http.Request) (*bool, error) {
	v := r.URL.Query().Get("mode")
	switch v {
	case "", "all":
		return nil, nil
	case "paper":
		b := true
		return &b, nil
	case "live":
		b := false
		return &b, nil
	default:
		return nil, fmt.Errorf("invalid mode %q, expected paper|live|all", v)
	}
}

// handleLedgerTrades serves the newest ledger records, newest first.
// ?open=true limits the result to the open position.
func (s *Server) handleLedgerTrades(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		writeError(w, http.StatusServiceUnavailable, "ledger not available")
		return
	}
	limit := parseLimit(r, 100)

	trades := s.ledger.Trades()
	if r.URL.Query().Get("open") == "true" {
		trades = openSuffix(trades)
	}

	out := make([]tradeJSON, 0, limit)
	for i := len(trades) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, fromRecord(trades[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func openSuffix(trades []models.Trade) []models.Trade {
	for i := len(trades) - 1; i >= 0; i-- {
		if trades[i].Kind == models.Sell {
			return trades[i+1:]
		}
	}
	return trades
}

func (s *Server) handleTradesToday(w http.ResponseWriter, r *http.Request) {
	s.serveTradesByDay(w, r, repository.TradingDay(time.Now()))
}

func (s *Server) handleTradesByDay(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if !validateDate(date) {
		writeError(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
		return
	}
	s.serveTradesByDay(w, r, date)
}

func (s *Server) serveTradesByDay(w http.ResponseWriter, r *http.Request, day string) {
	mode, err := parseTradeMode(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	trades, err := s.tradeRepo.GetByDay(r.Context(), day, mode)
	if err != nil {
		s.logger.Error().Err(err).Str("day", day).Msg("fetch trades")
		writeError(w, http.StatusInternalServerError, "failed to fetch trades")
		return
	}

	out := make([]tradeJSON, len(trades))
	for i, t := range trades {
		out[i] = fromRow(t)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAllTrades(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 100)

	mode, err := parseTradeMode(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	trades, err := s.tradeRepo.GetAll(r.Context(), limit, mode)
	if err != nil {
		s.logger.Error().Err(err).Msg("fetch all trades")
		writeError(w, http.StatusInternalServerError, "failed to fetch trades")
		return
	}
	if trades == nil {
		trades = []models.TradeRow{}
	}
	writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleTradeStats(w http.ResponseWriter, r *http.Request) {
	mode, err := parseTradeMode(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := s.tradeRepo.GetStats(r.Context(), mode)
	if err != nil {
		s.logger.Error().Err(err).Msg("fetch trade stats")
		writeError(w, http.StatusInternalServerError, "failed to fetch trade stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
