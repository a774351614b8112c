package ledger

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kjannette/trahn-dca/internal/models"
)

// Ledger is the append-only trade history for one pair, backed by a file
// holding one JSON record per line.
type Ledger struct {
	mu     sync.RWMutex
	path   string
	now    func() time.Time
	trades []models.Trade
}

// Open loads the ledger at path, creating an empty file when none exists.
func Open(path string) (*Ledger, error) {
	l := &Ledger{path: path, now: time.Now}
	if err := l.Load(); err != nil {
		return nil, err
	}
	return l, nil
}

// SetClock replaces the clock used to stamp records and to find the start
// of the current UTC day.
func (l *Ledger) SetClock(now func() time.Time) {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
}

func (l *Ledger) clock() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.now().UTC()
}

// Load rebuilds the in-memory sequence from disk. Lines that fail to parse,
// such as a partially written final record, are skipped.
func (l *Ledger) Load() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger %s: %w", l.path, err)
	}
	defer f.Close()

	trades, err := decode(f)
	if err != nil {
		return fmt.Errorf("read ledger %s: %w", l.path, err)
	}

	l.mu.Lock()
	l.trades = trades
	l.mu.Unlock()
	return nil
}

// ReadFile parses a ledger file without taking ownership of it. A missing
// file reads as empty. Used by out-of-process status readers.
func ReadFile(path string) ([]models.Trade, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decode(f)
}

func decode(r io.Reader) ([]models.Trade, error) {
	var trades []models.Trade
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var t models.Trade
		if err := json.Unmarshal(line, &t); err != nil {
			continue
		}
		trades = append(trades, t)
	}
	return trades, sc.Err()
}

// Append durably writes t and then adds it to the in-memory sequence.
// An ID and timestamp are assigned when missing.
func (l *Ledger) Append(t models.Trade) (models.Trade, error) {
	if t.Kind != models.Buy && t.Kind != models.Sell {
		return t, fmt.Errorf("append: invalid trade kind %s", t.Kind)
	}
	if t.ID == "" {
		t.ID = ulid.Make().String()
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = l.clock()
	}

	line, err := json.Marshal(t)
	if err != nil {
		return t, fmt.Errorf("encode trade: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return t, fmt.Errorf("open ledger for append: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return t, fmt.Errorf("append trade: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return t, fmt.Errorf("sync ledger: %w", err)
	}
	if err := f.Close(); err != nil {
		return t, fmt.Errorf("close ledger: %w", err)
	}

	l.trades = append(l.trades, t)
	return t, nil
}

func (l *Ledger) Path() string {
	return l.path
}

// Trades returns a copy of every record in insertion order.
func (l *Ledger) Trades() []models.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.trades)
}

// Last returns the most recent record.
func (l *Ledger) Last() (models.Trade, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.trades) == 0 {
		return models.Trade{}, false
	}
	return l.trades[len(l.trades)-1], true
}

// OpenPosition returns the records after the last Sell, or all records when
// no Sell exists.
func (l *Ledger) OpenPosition() []models.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return OpenPosition(l.trades)
}

// CostBasis is the sum of AmountIn over the open position.
func (l *Ledger) CostBasis() float64 {
	return CostBasis(l.OpenPosition())
}

// Derive computes the counters implied by the ledger.
func (l *Ledger) Derive() models.Counters {
	return Derive(l.OpenPosition())
}

// CountBuysSince counts Buy records at or after since.
func (l *Ledger) CountBuysSince(since time.Time) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for i := len(l.trades) - 1; i >= 0; i-- {
		t := l.trades[i]
		if t.Timestamp.Before(since) {
			break
		}
		if t.Kind == models.Buy {
			n++
		}
	}
	return n
}

// CountBuysToday counts buys since midnight UTC.
func (l *Ledger) CountBuysToday(_ context.Context) (int, error) {
	now := l.clock()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return l.CountBuysSince(midnight), nil
}

// --- pure views over a record sequence ---

func OpenPosition(trades []models.Trade) []models.Trade {
	start := 0
	for i := len(trades) - 1; i >= 0; i-- {
		if trades[i].Kind == models.Sell {
			start = i + 1
			break
		}
	}
	out := make([]models.Trade, len(trades)-start)
	copy(out, trades[start:])
	return out
}

func CostBasis(open []models.Trade) float64 {
	var sum float64
	for _, t := range open {
		sum += t.AmountIn
	}
	return sum
}

// Derive returns the holding (base received across open buys) and the
// highest DCA level tagged in the open position.
func Derive(open []models.Trade) models.Counters {
	var c models.Counters
	for _, t := range open {
		if t.Kind != models.Buy {
			continue
		}
		c.HoldingValue += t.AmountOut
		if lvl := t.Level(); lvl > c.DCALevel {
			c.DCALevel = lvl
		}
	}
	return c
}
