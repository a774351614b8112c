package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied idempotently on startup. The mirror tables are
// read models; the JSONL ledger stays authoritative.
const schema = `
CREATE TABLE IF NOT EXISTS trade_history (
	id              BIGSERIAL PRIMARY KEY,
	record_id       TEXT NOT NULL UNIQUE,
	timestamp       TIMESTAMPTZ NOT NULL,
	trading_day     DATE NOT NULL,
	pair            TEXT NOT NULL,
	kind            TEXT NOT NULL CHECK (kind IN ('buy', 'sell')),
	amount_in       DOUBLE PRECISION NOT NULL,
	amount_out      DOUBLE PRECISION NOT NULL,
	dca_level       INTEGER,
	execution_ref   TEXT,
	is_paper_trade  BOOLEAN NOT NULL DEFAULT FALSE,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS trade_history_timestamp_idx ON trade_history (timestamp);
CREATE INDEX IF NOT EXISTS trade_history_pair_idx ON trade_history (pair);

CREATE TABLE IF NOT EXISTS price_history (
	id           BIGSERIAL PRIMARY KEY,
	timestamp    TIMESTAMPTZ NOT NULL,
	symbol       TEXT NOT NULL,
	price        DOUBLE PRECISION NOT NULL,
	samples      INTEGER NOT NULL DEFAULT 0,
	trading_day  DATE NOT NULL,
	source       TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS price_history_timestamp_idx ON price_history (timestamp);
`

func Migrate(ctx context.Context, p *pgxpool.Pool) error {
	if _, err := p.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
