package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/kjannette/trahn-dca/internal/models"
)

// FileStore keeps each counter in its own plain-text file: the holding value
// as decimal text and the DCA level as integer text.
type FileStore struct {
	mu          sync.Mutex
	holdingPath string
	levelPath   string
}

func NewFileStore(dir, pairKey string) *FileStore {
	return &FileStore{
		holdingPath: filepath.Join(dir, pairKey+"_holding.txt"),
		levelPath:   filepath.Join(dir, pairKey+"_dca_level.txt"),
	}
}

func (s *FileStore) HoldingPath() string { return s.holdingPath }
func (s *FileStore) LevelPath() string   { return s.levelPath }

// Load reads both counters. Missing files are created as zero and malformed
// content reads as zero.
func (s *FileStore) Load(_ context.Context) (models.Counters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ensureFile(s.holdingPath, "0"); err != nil {
		return models.Counters{}, err
	}
	if err := ensureFile(s.levelPath, "0"); err != nil {
		return models.Counters{}, err
	}

	return models.Counters{
		HoldingValue: ReadHolding(s.holdingPath),
		DCALevel:     ReadLevel(s.levelPath),
	}, nil
}

// Save writes both counters to temp files and renames them into place.
func (s *FileStore) Save(_ context.Context, c models.Counters) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	holdingTmp, err := writeTemp(s.holdingPath, strconv.FormatFloat(c.HoldingValue, 'f', -1, 64))
	if err != nil {
		return fmt.Errorf("write holding value: %w", err)
	}
	levelTmp, err := writeTemp(s.levelPath, strconv.FormatUint(uint64(c.DCALevel), 10))
	if err != nil {
		os.Remove(holdingTmp)
		return fmt.Errorf("write dca level: %w", err)
	}

	if err := os.Rename(levelTmp, s.levelPath); err != nil {
		os.Remove(holdingTmp)
		os.Remove(levelTmp)
		return fmt.Errorf("commit dca level: %w", err)
	}
	if err := os.Rename(holdingTmp, s.holdingPath); err != nil {
		os.Remove(holdingTmp)
		return fmt.Errorf("commit holding value: %w", err)
	}
	return nil
}

// ReadHolding parses a holding-value file, returning 0 when the file is
// missing or does not hold a number.
func ReadHolding(path string) float64 {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	if err != nil {
		return 0
	}
	return v
}

// ReadLevel parses a DCA-level file, returning 0 when missing or malformed.
func ReadLevel(path string) uint32 {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(b)), 10, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}

func ensureFile(path, initial string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if os.IsExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	_, err = f.WriteString(initial)
	return err
}

func writeTemp(path, content string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
