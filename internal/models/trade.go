package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// TradeKind is the direction of a ledger record relative to the base asset.
type TradeKind int

const (
	Buy TradeKind = iota + 1
	Sell
)

func (k TradeKind) String() string {
	switch k {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return fmt.Sprintf("TradeKind(%d)", int(k))
	}
}

func ParseTradeKind(s string) (TradeKind, error) {
	switch s {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	default:
		return 0, fmt.Errorf("unknown trade kind %q", s)
	}
}

func (k TradeKind) MarshalJSON() ([]byte, error) {
	switch k {
	case Buy, Sell:
		return json.Marshal(k.String())
	default:
		return nil, fmt.Errorf("cannot marshal %s", k)
	}
}

func (k *TradeKind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTradeKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Trade is one immutable ledger record.
// For a Buy, AmountIn is quote spent and AmountOut is base received.
// For a Sell, AmountIn is base sold and AmountOut is quote received.
type Trade struct {
	ID        string    `json:"id,omitempty"`
	Kind      TradeKind `json:"kind"`
	AmountIn  float64   `json:"amountIn"`
	AmountOut float64   `json:"amountOut"`
	Timestamp time.Time `json:"timestamp"`
	DCALevel  *uint32   `json:"dcaLevel,omitempty"`
	Ref       string    `json:"ref,omitempty"`
}

// Level returns the DCA level tag, or 0 when the record carries none.
func (t Trade) Level() uint32 {
	if t.DCALevel == nil {
		return 0
	}
	return *t.DCALevel
}

// Counters are the two persisted per-pair scalars.
type Counters struct {
	HoldingValue float64 `json:"holdingValue"`
	DCALevel     uint32  `json:"dcaLevel"`
}

// Holding reports whether a position is open.
func (c Counters) Holding() bool {
	return c.HoldingValue != 0
}

// TradeRow is the Postgres mirror of a ledger record.
type TradeRow struct {
	ID           int64     `json:"id"`
	RecordID     string    `json:"recordId"`
	Timestamp    time.Time `json:"timestamp"`
	TradingDay   string    `json:"tradingDay"`
	Pair         string    `json:"pair"`
	Kind         string    `json:"kind"`
	AmountIn     float64   `json:"amountIn"`
	AmountOut    float64   `json:"amountOut"`
	DCALevel     *int      `json:"dcaLevel,omitempty"`
	ExecutionRef *string   `json:"executionRef,omitempty"`
	IsPaperTrade bool      `json:"isPaperTrade"`
	CreatedAt    time.Time `json:"createdAt"`
}

type TradeStats struct {
	TotalTrades int64      `json:"totalTrades"`
	BuyCount    int64      `json:"buyCount"`
	SellCount   int64      `json:"sellCount"`
	QuoteSpent  *float64   `json:"quoteSpent"`
	QuoteEarned *float64   `json:"quoteEarned"`
	FirstTrade  *time.Time `json:"firstTrade"`
	LastTrade   *time.Time `json:"lastTrade"`
}
