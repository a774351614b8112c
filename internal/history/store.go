package history

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Feed supplies the most recent closes for a symbol, oldest first.
type Feed interface {
	FetchRecentCloses(ctx context.Context, symbol string, timeframeMinutes, limit int) ([]float64, error)
}

// Store is a bounded, most-recent-N sequence of close prices for one pair.
// Every refresh replaces the whole sequence.
type Store struct {
	mu       sync.RWMutex
	limit    int
	samples  []float64
	snapshot string
}

// NewStore returns a store holding at most limit samples. When snapshotPath
// is non-empty, each Replace also rewrites that file (one close per line).
func NewStore(limit int, snapshotPath string) *Store {
	if limit <= 0 {
		limit = 1000
	}
	return &Store{limit: limit, snapshot: snapshotPath}
}

// Replace overwrites the stored samples. Only the newest limit values are kept.
func (s *Store) Replace(closes []float64) error {
	if len(closes) > s.limit {
		closes = closes[len(closes)-s.limit:]
	}
	cp := make([]float64, len(closes))
	copy(cp, closes)

	s.mu.Lock()
	s.samples = cp
	s.mu.Unlock()

	if s.snapshot != "" {
		if err := writeSnapshot(s.snapshot, cp); err != nil {
			return fmt.Errorf("write price snapshot: %w", err)
		}
	}
	return nil
}

// Refresh pulls from feed and replaces the stored samples.
func (s *Store) Refresh(ctx context.Context, feed Feed, symbol string, timeframeMinutes int) error {
	closes, err := feed.FetchRecentCloses(ctx, symbol, timeframeMinutes, s.limit)
	if err != nil {
		return fmt.Errorf("fetch closes for %s: %w", symbol, err)
	}
	if len(closes) == 0 {
		return fmt.Errorf("fetch closes for %s: feed returned no samples", symbol)
	}
	return s.Replace(closes)
}

// Samples returns a copy of the stored closes, oldest first.
func (s *Store) Samples() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]float64, len(s.samples))
	copy(out, s.samples)
	return out
}

// Latest returns the newest close, or false when the store is empty.
func (s *Store) Latest() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.samples) == 0 {
		return 0, false
	}
	return s.samples[len(s.samples)-1], true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples)
}

// LoadSnapshot reads a snapshot previously written by Replace. A missing
// file yields an empty store; unparseable lines are skipped.
func (s *Store) LoadSnapshot() error {
	if s.snapshot == "" {
		return nil
	}
	f, err := os.Open(s.snapshot)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	var closes []float64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		v, err := strconv.ParseFloat(strings.TrimSpace(sc.Text()), 64)
		if err != nil {
			continue
		}
		closes = append(closes, v)
	}
	if err := sc.Err(); err != nil {
		return err
	}

	if len(closes) > s.limit {
		closes = closes[len(closes)-s.limit:]
	}
	s.mu.Lock()
	s.samples = closes
	s.mu.Unlock()
	return nil
}

func writeSnapshot(path string, closes []float64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var b strings.Builder
	for _, c := range closes {
		b.WriteString(strconv.FormatFloat(c, 'f', -1, 64))
		b.WriteByte('\n')
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
