package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kjannette/trahn-dca/internal/notifications"
)

// Reporter produces the text of a periodic status report.
type Reporter interface {
	MarketStatus(ctx context.Context) (string, error)
}

type ReportSchedulerConfig struct {
	Interval time.Duration // e.g. 1*time.Hour
	Timeout  time.Duration
	Title    string
}

// ReportScheduler pushes the market status summary to a notifier on a
// fixed interval.
type ReportScheduler struct {
	reporter Reporter
	notify   notifications.Notifier
	cfg      ReportSchedulerConfig
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	last    time.Time
}

func NewReportScheduler(reporter Reporter, notify notifications.Notifier, cfg ReportSchedulerConfig, logger zerolog.Logger) *ReportScheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 1 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &ReportScheduler{
		reporter: reporter,
		notify:   notify,
		cfg:      cfg,
		logger:   logger.With().Str("component", "report-scheduler").Logger(),
	}
}

func (s *ReportScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Info().Msg("already running")
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stop := s.stopCh
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
				if err := s.ReportNow(ctx); err != nil {
					s.logger.Warn().Err(err).Msg("status report failed")
				}
				cancel()
			}
		}
	}()

	s.logger.Info().Dur("interval", s.cfg.Interval).Msg("started")
}

func (s *ReportScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	close(s.stopCh)
	s.running = false
	s.logger.Info().Msg("stopped")
}

func (s *ReportScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastReport is the time of the last successful report, zero if none.
func (s *ReportScheduler) LastReport() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// ReportNow builds and sends a report outside the normal schedule.
func (s *ReportScheduler) ReportNow(ctx context.Context) error {
	body, err := s.reporter.MarketStatus(ctx)
	if err != nil {
		return fmt.Errorf("build status report: %w", err)
	}

	msg := body
	if s.cfg.Title != "" {
		msg = s.cfg.Title + "\n" + body
	}
	s.notify.Notify(ctx, msg)

	s.mu.Lock()
	s.last = time.Now()
	s.mu.Unlock()
	return nil
}
