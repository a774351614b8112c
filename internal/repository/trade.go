package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kjannette/trahn-dca/internal/models"
)

const tradeColumns = `id, record_id, timestamp, trading_day, pair, kind, amount_in, amount_out,
	dca_level, execution_ref, is_paper_trade, created_at`

// TradeRepo mirrors committed ledger records into Postgres for the API.
type TradeRepo struct {
	pool *pgxpool.Pool
}

func NewTradeRepo(pool *pgxpool.Pool) *TradeRepo {
	return &TradeRepo{pool: pool}
}

// RecordTrade inserts t. Records are keyed by ledger id so replays are no-ops.
func (r *TradeRepo) RecordTrade(ctx context.Context, pair string, t models.Trade, paper bool) error {
	ts := t.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	var level *int
	if t.DCALevel != nil {
		l := int(*t.DCALevel)
		level = &l
	}
	var ref *string
	if t.Ref != "" {
		ref = &t.Ref
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO trade_history
		 (record_id, timestamp, trading_day, pair, kind, amount_in, amount_out,
		  dca_level, execution_ref, is_paper_trade)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		 ON CONFLICT (record_id) DO NOTHING`,
		t.ID, ts, TradingDay(ts), pair, t.Kind.String(), t.AmountIn, t.AmountOut,
		level, ref, paper,
	)
	if err != nil {
		return fmt.Errorf("insert trade %s: %w", t.ID, err)
	}
	return nil
}

// GetByDay returns trades for a given trading day.
// If paperMode is non-nil, filters by is_paper_trade.
func (r *TradeRepo) GetByDay(ctx context.Context, tradingDay string, paperMode *bool) ([]models.TradeRow, error) {
	query, args := buildFilteredQuery(
		`SELECT `+tradeColumns+` FROM trade_history WHERE trading_day = $1`,
		[]any{tradingDay},
		paperMode,
	)
	query += " ORDER BY timestamp ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTrades(rows)
}

// GetAll returns the most recent trades, newest first.
// If paperMode is non-nil, filters by is_paper_trade.
func (r *TradeRepo) GetAll(ctx context.Context, limit int, paperMode *bool) ([]models.TradeRow, error) {
	query, args := buildFilteredQuery(
		`SELECT `+tradeColumns+` FROM trade_history WHERE 1=1`,
		nil,
		paperMode,
	)
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTrades(rows)
}

// GetStats returns aggregate trade statistics.
// If paperMode is non-nil, filters by is_paper_trade.
func (r *TradeRepo) GetStats(ctx context.Context, paperMode *bool) (*models.TradeStats, error) {
	query, args := buildFilteredQuery(
		`SELECT
			COUNT(*),
			COUNT(CASE WHEN kind = 'buy' THEN 1 END),
			COUNT(CASE WHEN kind = 'sell' THEN 1 END),
			SUM(CASE WHEN kind = 'buy' THEN amount_in END),
			SUM(CASE WHEN kind = 'sell' THEN amount_out END),
			MIN(timestamp),
			MAX(timestamp)
		 FROM trade_history WHERE 1=1`,
		nil,
		paperMode,
	)

	var s models.TradeStats
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&s.TotalTrades, &s.BuyCount, &s.SellCount,
		&s.QuoteSpent, &s.QuoteEarned, &s.FirstTrade, &s.LastTrade,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// buildFilteredQuery appends an is_paper_trade clause when paperMode is non-nil.
func buildFilteredQuery(baseQuery string, baseArgs []any, paperMode *bool) (string, []any) {
	if paperMode == nil {
		return baseQuery, baseArgs
	}
	args := append(baseArgs, *paperMode)
	return baseQuery + fmt.Sprintf(" AND is_paper_trade = $%d", len(args)), args
}

// --- scan helpers ---

func collectTrades(rows rowsIter) ([]models.TradeRow, error) {
	var out []models.TradeRow
	for rows.Next() {
		var t models.TradeRow
		var td time.Time
		if err := rows.Scan(
			&t.ID, &t.RecordID, &t.Timestamp, &td, &t.Pair, &t.Kind,
			&t.AmountIn, &t.AmountOut, &t.DCALevel, &t.ExecutionRef,
			&t.IsPaperTrade, &t.CreatedAt,
		); err != nil {
			return nil, err
		}
		t.TradingDay = td.Format("2006-01-02")
		out = append(out, t)
	}
	return out, rows.Err()
}
