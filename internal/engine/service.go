package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kjannette/trahn-dca/internal/strategy"
)

var ErrNotRunning = errors.New("engine not running")

// Service owns the lifecycle of one Engine run loop.
type Service struct {
	mu     sync.Mutex
	engine *Engine
	done   chan struct{}
	logger zerolog.Logger
}

func NewService(logger zerolog.Logger) *Service {
	return &Service{logger: logger.With().Str("component", "service").Logger()}
}

// Start initializes e and runs it in the background until ctx is cancelled
// or Stop is called.
func (s *Service) Start(ctx context.Context, e *Engine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine != nil {
		s.logger.Info().Msg("already running")
		return nil
	}

	if err := e.Init(ctx); err != nil {
		return fmt.Errorf("engine init: %w", err)
	}
	s.engine = e
	s.done = make(chan struct{})

	done := s.done
	go func() {
		defer close(done)
		e.Run(ctx)
		s.logger.Info().Msg("run loop exited")
	}()

	s.logger.Info().Str("pair", e.p.Pair).Msg("started")
	return nil
}

// Stop asks the engine to exit after its current cycle and waits for it.
func (s *Service) Stop() {
	s.mu.Lock()
	e, done := s.engine, s.done
	s.engine, s.done = nil, nil
	s.mu.Unlock()

	if e == nil {
		return
	}
	e.Shutdown()
	<-done
	s.logger.Info().Msg("stopped")
}

// Done is closed when the run loop exits. Nil when not started.
func (s *Service) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Service) Status() (Status, error) {
	s.mu.Lock()
	e := s.engine
	s.mu.Unlock()
	if e == nil {
		return Status{}, ErrNotRunning
	}
	return e.Status(), nil
}

func (s *Service) MarketStatus(ctx context.Context) (string, error) {
	s.mu.Lock()
	e := s.engine
	s.mu.Unlock()
	if e == nil {
		return "", ErrNotRunning
	}
	return e.MarketStatus(ctx)
}

func (s *Service) Ladder(ctx context.Context, n int) ([]strategy.Rung, error) {
	s.mu.Lock()
	e := s.engine
	s.mu.Unlock()
	if e == nil {
		return nil, ErrNotRunning
	}
	return e.Ladder(ctx, n)
}

func (s *Service) LadderSummary(ctx context.Context) (string, error) {
	s.mu.Lock()
	e := s.engine
	s.mu.Unlock()
	if e == nil {
		return "", ErrNotRunning
	}
	return e.LadderSummary(ctx)
}
