package swap

import (
	"context"
	"errors"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrMissingField        = errors.New("missing expected field in swap response")
)

// Asset identifies one side of the pair. Address is unused in paper mode.
type Asset struct {
	Symbol   string
	Address  string
	Decimals int
}

// Intent is a swap of Amount units of Input (human units) into Output.
type Intent struct {
	Input  Asset
	Output Asset
	Amount float64
}

type Quote struct {
	ExpectedOut float64
}

// Result of a filled swap. Ref is an opaque execution reference such as a
// transaction hash.
type Result struct {
	Received float64
	Ref      string
}

type Quoter interface {
	Quote(ctx context.Context, in Intent, slippageBps int) (Quote, error)
}

type Executor interface {
	Execute(ctx context.Context, in Intent, slippageBps int) (Result, error)
}

type Balances interface {
	BalanceOf(ctx context.Context, asset Asset) (float64, error)
}

// Venue is everything the strategy needs from a swap backend.
type Venue interface {
	Quoter
	Executor
	Balances
}
