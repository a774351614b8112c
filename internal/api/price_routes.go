package api

import (
	"net/http"
	"time"

	"github.com/kjannette/trahn-dca/internal/repository"
)

type priceJSON struct {
	T      int64   `json:"t"`
	P      float64 `json:"p"`
	Symbol string  `json:"symbol,omitempty"`
}

func (s *Server) handlePricesToday(w http.ResponseWriter, r *http.Request) {
	s.servePricesByDay(w, r, repository.TradingDay(time.Now()))
}

func (s *Server) handlePricesByDay(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if !validateDate(date) {
		writeError(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
		return
	}
	s.servePricesByDay(w, r, date)
}

func (s *Server) servePricesByDay(w http.ResponseWriter, r *http.Request, day string) {
	prices, err := s.priceRepo.GetByDay(r.Context(), day)
	if err != nil {
		s.logger.Error().Err(err).Str("day", day).Msg("fetch prices")
		writeError(w, http.StatusInternalServerError, "failed to fetch prices")
		return
	}

	out := make([]priceJSON, len(prices))
	for i, p := range prices {
		out[i] = priceJSON{T: p.Timestamp.UnixMilli(), P: p.Price}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAvailableDays(w http.ResponseWriter, r *http.Request) {
	days, err := s.priceRepo.GetAvailableDays(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("fetch available days")
		writeError(w, http.StatusInternalServerError, "failed to fetch available days")
		return
	}
	if days == nil {
		days = []string{}
	}
	writeJSON(w, http.StatusOK, days)
}

func (s *Server) handleLatestPrice(w http.ResponseWriter, r *http.Request) {
	price, err := s.priceRepo.GetLatest(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("fetch latest price")
		writeError(w, http.StatusInternalServerError, "failed to fetch latest price")
		return
	}
	if price == nil {
		writeError(w, http.StatusNotFound, "no price data available")
		return
	}
	writeJSON(w, http.StatusOK, priceJSON{T: price.Timestamp.UnixMilli(), P: price.Price, Symbol: price.Symbol})
}
