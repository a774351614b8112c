package api

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status      string         `json:"status"`
	Timestamp   string         `json:"timestamp"`
	LastCycleAt *time.Time     `json:"lastCycleAt,omitempty"`
	LastError   string         `json:"lastError,omitempty"`
	Services    healthServices `json:"services"`
}

type healthServices struct {
	Database string `json:"database"`
	Engine   string `json:"engine"`
}

// handleHealth reports "degraded" when the engine is not running or the
// mirror database is unreachable. It always answers 200.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  healthServices{Database: "disabled", Engine: "stopped"},
	}

	if s.pool != nil {
		resp.Services.Database = "connected"
		if err := s.pool.Ping(r.Context()); err != nil {
			resp.Services.Database = "disconnected"
			resp.Status = "degraded"
		}
	}

	if s.status != nil {
		if st, err := s.status.Status(); err == nil {
			resp.Services.Engine = "running"
			if !st.TradingEnabled {
				resp.Services.Engine = "paused"
			}
			resp.LastCycleAt = st.LastCycleAt
			resp.LastError = st.LastError
		}
	}
	if resp.Services.Engine == "stopped" {
		resp.Status = "degraded"
	}

	writeJSON(w, http.StatusOK, resp)
}
