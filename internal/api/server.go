package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/kjannette/trahn-dca/internal/engine"
	"github.com/kjannette/trahn-dca/internal/models"
	"github.com/kjannette/trahn-dca/internal/repository"
	"github.com/kjannette/trahn-dca/internal/strategy"
)

const maxQueryLimit = 1000

var dateRegexp = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// StatusProvider exposes the running engine's read-only views.
type StatusProvider interface {
	Status() (engine.Status, error)
	MarketStatus(ctx context.Context) (string, error)
	Ladder(ctx context.Context, n int) ([]strategy.Rung, error)
}

// LedgerReader returns ledger records in insertion order.
type LedgerReader interface {
	Trades() []models.Trade
}

type Options struct {
	Port       int
	APIKey     string
	CORSOrigin string
	Pool       *pgxpool.Pool // nil disables the mirror routes
	Status     StatusProvider
	Ledger     LedgerReader
	Source     string
}

type Server struct {
	pool       *pgxpool.Pool
	priceRepo  *repository.PriceRepo
	tradeRepo  *repository.TradeRepo
	status     StatusProvider
	ledger     LedgerReader
	httpServer *http.Server
	apiKey     string
	logger     zerolog.Logger
}

func NewServer(opts Options, logger zerolog.Logger) *Server {
	s := &Server{
		pool:   opts.Pool,
		status: opts.Status,
		ledger: opts.Ledger,
		apiKey: opts.APIKey,
		logger: logger.With().Str("component", "api").Logger(),
	}

	mux := http.NewServeMux()

	// Engine routes
	mux.HandleFunc("GET /v1/position", s.handlePosition)
	mux.HandleFunc("GET /v1/position/market", s.handleMarketStatus)
	mux.HandleFunc("GET /v1/position/ladder", s.handleLadder)
	mux.HandleFunc("GET /v1/trades", s.handleLedgerTrades)

	// Mirror routes
	if opts.Pool != nil {
		s.priceRepo = repository.NewPriceRepo(opts.Pool, opts.Source)
		s.tradeRepo = repository.NewTradeRepo(opts.Pool)

		mux.HandleFunc("GET /v1/prices/today", s.handlePricesToday)
		mux.HandleFunc("GET /v1/prices/day/{date}", s.handlePricesByDay)
		mux.HandleFunc("GET /v1/prices/days", s.handleAvailableDays)
		mux.HandleFunc("GET /v1/prices/latest", s.handleLatestPrice)

		mux.HandleFunc("GET /v1/trades/today", s.handleTradesToday)
		mux.HandleFunc("GET /v1/trades/day/{date}", s.handleTradesByDay)
		mux.HandleFunc("GET /v1/trades/all", s.handleAllTrades)
		mux.HandleFunc("GET /v1/trades/stats", s.handleTradeStats)
	}

	// Health check (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)

	// CORS runs first so browser preflights never need credentials.
	handler := corsMiddleware(s.accessLog(s.authMiddleware(mux)), opts.CORSOrigin)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.logger.Info().
		Str("addr", s.httpServer.Addr).
		Bool("auth", s.apiKey != "").
		Bool("mirror", s.pool != nil).
		Msg("REST API server started")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- middleware ---

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing Authorization header")
			return
		}

		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		ev := s.logger.Debug()
		if rec.status >= 500 {
			ev = s.logger.Warn()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func corsMiddleware(next http.Handler, allowOrigin string) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- validation helpers ---

func validateDate(date string) bool {
	if !dateRegexp.MatchString(date) {
		return false
	}
	_, err := time.Parse("2006-01-02", date)
	return err == nil
}

func parseLimit(r *http.Request, defaultLimit int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultLimit
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxQueryLimit {
		return maxQueryLimit
	}
	return n
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
