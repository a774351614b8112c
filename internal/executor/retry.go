package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kjannette/trahn-dca/internal/swap"
)

// ErrBudgetExhausted means every attempt in the budget failed.
var ErrBudgetExhausted = errors.New("swap attempt budget exhausted")

// Policy parameterizes retries. Slippage starts at StartSlippageBps and grows
// by StepBps after each failure, capped at MaxSlippageBps.
type Policy struct {
	AttemptBudget    int
	StartSlippageBps int
	StepBps          int
	MaxSlippageBps   int
	Delay            time.Duration
}

var DefaultPolicy = Policy{
	AttemptBudget:    200,
	StartSlippageBps: 1,
	StepBps:          1,
	MaxSlippageBps:   5,
	Delay:            2 * time.Second,
}

// Outcome describes a filled swap.
type Outcome struct {
	swap.Result
	Attempts    int
	SlippageBps int
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type RetryExecutor struct {
	policy Policy
	exec   swap.Executor
	sleep  Sleeper
	logger zerolog.Logger
}

func New(policy Policy, exec swap.Executor, logger zerolog.Logger) *RetryExecutor {
	if policy.AttemptBudget < 1 {
		policy.AttemptBudget = 1
	}
	if policy.StepBps < 0 {
		policy.StepBps = 0
	}
	if policy.StartSlippageBps > policy.MaxSlippageBps {
		policy.StartSlippageBps = policy.MaxSlippageBps
	}
	return &RetryExecutor{
		policy: policy,
		exec:   exec,
		sleep:  sleepCtx,
		logger: logger.With().Str("component", "executor").Logger(),
	}
}

// WithSleeper replaces the delay function. Used by tests.
func (r *RetryExecutor) WithSleeper(s Sleeper) *RetryExecutor {
	r.sleep = s
	return r
}

func (r *RetryExecutor) Policy() Policy {
	return r.policy
}

// Run attempts the swap until it fills or the budget is spent. Permanent
// errors abort immediately and are returned as-is; running out of attempts
// returns an error wrapping ErrBudgetExhausted and the last failure.
func (r *RetryExecutor) Run(ctx context.Context, in swap.Intent) (Outcome, error) {
	slippage := r.policy.StartSlippageBps
	var lastErr error

	for attempt := 1; attempt <= r.policy.AttemptBudget; attempt++ {
		res, err := r.exec.Execute(ctx, in, slippage)
		if err == nil {
			r.logger.Info().
				Str("in", in.Input.Symbol).
				Str("out", in.Output.Symbol).
				Float64("amount", in.Amount).
				Float64("received", res.Received).
				Int("attempt", attempt).
				Int("slippage_bps", slippage).
				Str("ref", res.Ref).
				Msg("swap filled")
			return Outcome{Result: res, Attempts: attempt, SlippageBps: slippage}, nil
		}
		lastErr = err

		if IsPermanent(err) || ctx.Err() != nil {
			r.logger.Error().Err(err).Int("attempt", attempt).Msg("swap aborted")
			return Outcome{Attempts: attempt, SlippageBps: slippage}, err
		}

		r.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("remaining", r.policy.AttemptBudget-attempt).
			Int("slippage_bps", slippage).
			Msg("swap attempt failed")

		if attempt == r.policy.AttemptBudget {
			break
		}

		slippage += r.policy.StepBps
		if slippage > r.policy.MaxSlippageBps {
			slippage = r.policy.MaxSlippageBps
		}

		if err := r.sleep(ctx, r.policy.Delay); err != nil {
			return Outcome{Attempts: attempt, SlippageBps: slippage}, err
		}
	}

	return Outcome{Attempts: r.policy.AttemptBudget, SlippageBps: slippage},
		fmt.Errorf("%w after %d attempts: %w", ErrBudgetExhausted, r.policy.AttemptBudget, lastErr)
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err should abort the retry loop.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p) ||
		errors.Is(err, swap.ErrInsufficientBalance) ||
		errors.Is(err, swap.ErrMissingField)
}
