package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFeed struct {
	closes    []float64
	err       error
	gotLimit  int
	gotSymbol string
}

func (f *fakeFeed) FetchRecentCloses(_ context.Context, symbol string, _ int, limit int) ([]float64, error) {
	f.gotSymbol = symbol
	f.gotLimit = limit
	return f.closes, f.err
}

func TestReplaceKeepsNewest(t *testing.T) {
	s := NewStore(3, "")
	require.NoError(t, s.Replace([]float64{1, 2, 3, 4, 5}))

	assert.Equal(t, []float64{3, 4, 5}, s.Samples())
	latest, ok := s.Latest()
	assert.True(t, ok)
	assert.Equal(t, 5.0, latest)
}

func TestReplaceOverwritesWholesale(t *testing.T) {
	s := NewStore(10, "")
	require.NoError(t, s.Replace([]float64{1, 2, 3}))
	require.NoError(t, s.Replace([]float64{9}))
	assert.Equal(t, []float64{9}, s.Samples())
}

func TestLatestEmpty(t *testing.T) {
	s := NewStore(10, "")
	_, ok := s.Latest()
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestRefresh(t *testing.T) {
	s := NewStore(500, "")
	feed := &fakeFeed{closes: []float64{10, 11}}

	require.NoError(t, s.Refresh(context.Background(), feed, "ETHUSDT", 4))
	assert.Equal(t, "ETHUSDT", feed.gotSymbol)
	assert.Equal(t, 500, feed.gotLimit)
	assert.Equal(t, 2, s.Len())
}

func TestRefreshErrorKeepsPrevious(t *testing.T) {
	s := NewStore(10, "")
	require.NoError(t, s.Replace([]float64{1, 2}))

	err := s.Refresh(context.Background(), &fakeFeed{err: errors.New("boom")}, "ETHUSDT", 4)
	assert.Error(t, err)
	assert.Equal(t, []float64{1, 2}, s.Samples())

	err = s.Refresh(context.Background(), &fakeFeed{}, "ETHUSDT", 4)
	assert.Error(t, err)
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices", "weth_usdc.txt")

	s := NewStore(10, path)
	require.NoError(t, s.Replace([]float64{100.5, 101.25}))

	reloaded := NewStore(10, path)
	require.NoError(t, reloaded.LoadSnapshot())
	assert.Equal(t, []float64{100.5, 101.25}, reloaded.Samples())
}

func TestLoadSnapshotSkipsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.txt")
	require.NoError(t, os.WriteFile(path, []byte("1.5\nnope\n2.5\n"), 0o644))

	s := NewStore(10, path)
	require.NoError(t, s.LoadSnapshot())
	assert.Equal(t, []float64{1.5, 2.5}, s.Samples())

	missing := NewStore(10, filepath.Join(t.TempDir(), "none.txt"))
	assert.NoError(t, missing.LoadSnapshot())
	assert.Equal(t, 0, missing.Len())
}
