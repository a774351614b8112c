package api

import (
	"errors"
	"net/http"

	"github.com/kjannette/trahn-dca/internal/engine"
	"github.com/kjannette/trahn-dca/internal/strategy"
)

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		writeError(w, http.StatusServiceUnavailable, "engine not running")
		return
	}
	st, err := s.status.Status()
	if errors.Is(err, engine.ErrNotRunning) {
		writeError(w, http.StatusServiceUnavailable, "engine not running")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("fetch position")
		writeError(w, http.StatusInternalServerError, "failed to fetch position")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type marketJSON struct {
	Summary string `json:"summary"`
}

func (s *Server) handleMarketStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		writeError(w, http.StatusServiceUnavailable, "engine not running")
		return
	}
	msg, err := s.status.MarketStatus(r.Context())
	if errors.Is(err, engine.ErrNotRunning) {
		writeError(w, http.StatusServiceUnavailable, "engine not running")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("build market status")
		writeError(w, http.StatusBadGateway, "failed to quote position")
		return
	}
	writeJSON(w, http.StatusOK, marketJSON{Summary: msg})
}

type ladderJSON struct {
	Rungs []strategy.Rung `json:"rungs"`
}

// handleLadder projects the next average-down buys. ?limit caps the rungs.
func (s *Server) handleLadder(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		writeError(w, http.StatusServiceUnavailable, "engine not running")
		return
	}
	rungs, err := s.status.Ladder(r.Context(), parseLimit(r, 5))
	if errors.Is(err, engine.ErrNotRunning) {
		writeError(w, http.StatusServiceUnavailable, "engine not running")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("project ladder")
		writeError(w, http.StatusBadGateway, "failed to project ladder")
		return
	}
	if rungs == nil {
		rungs = []strategy.Rung{}
	}
	writeJSON(w, http.StatusOK, ladderJSON{Rungs: rungs})
}
