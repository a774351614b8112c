package control

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/trahn-dca/internal/notifications"
)

func TestGateToggle(t *testing.T) {
	g := NewGate(false)
	assert.False(t, g.Enabled())

	assert.True(t, g.Start())
	assert.True(t, g.Enabled())
	assert.False(t, g.Start(), "second start is a no-op")

	select {
	case <-g.Changed():
	default:
		t.Fatal("expected change signal after Start")
	}

	assert.True(t, g.Stop())
	assert.False(t, g.Enabled())
	assert.False(t, g.Stop())
}

func TestGateConcurrentAccess(t *testing.T) {
	g := NewGate(true)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); g.Stop(); g.Start() }()
		go func() { defer wg.Done(); _ = g.Enabled() }()
	}
	wg.Wait()
}

type stubReporter struct {
	summary string
	ladder  string
	err     error
}

func (s stubReporter) MarketStatus(context.Context) (string, error) { return s.summary, s.err }

func (s stubReporter) LadderSummary(context.Context) (string, error) { return s.ladder, s.err }

func TestHandleCommands(t *testing.T) {
	g := NewGate(false)
	l := NewListener(nil, g, stubReporter{summary: "holding 2.0", ladder: "DCA LADDER"}, "42", zerolog.Nop())
	ctx := context.Background()

	reply, ok := l.Handle(ctx, "/status")
	require.True(t, ok)
	assert.Contains(t, reply, "Offline")

	reply, _ = l.Handle(ctx, "/start_trading")
	assert.Contains(t, reply, "Trading Started")
	assert.True(t, g.Enabled())

	reply, _ = l.Handle(ctx, "/status@TrahnDCABot")
	assert.Contains(t, reply, "Online")

	reply, _ = l.Handle(ctx, "/stop_trading")
	assert.Contains(t, reply, "Safe Stop")
	reply, _ = l.Handle(ctx, "/stop_trading")
	assert.Contains(t, reply, "already stopped")

	reply, _ = l.Handle(ctx, "/market_status")
	assert.Equal(t, "holding 2.0", reply)
	reply, ok = l.Handle(ctx, "/ladder")
	require.True(t, ok)
	assert.Equal(t, "DCA LADDER", reply)

	_, ok = l.Handle(ctx, "hello")
	assert.False(t, ok)
}

func TestHandleMarketStatusError(t *testing.T) {
	l := NewListener(nil, NewGate(true), stubReporter{err: errors.New("quote failed")}, "42", zerolog.Nop())
	reply, ok := l.Handle(context.Background(), "/market_status")
	require.True(t, ok)
	assert.Contains(t, reply, "quote failed")
}

type fakeUpdater struct {
	mu      sync.Mutex
	batches [][]notifications.Update
	offsets []int64
	sent    []string
}

func (f *fakeUpdater) GetUpdates(_ context.Context, offset int64, _ time.Duration) ([]notifications.Update, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offsets = append(f.offsets, offset)
	if len(f.batches) == 0 {
		return nil, nil
	}
	b := f.batches[0]
	f.batches = f.batches[1:]
	return b, nil
}

func (f *fakeUpdater) SendMessage(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func msg(id int64, chat int64, text string) notifications.Update {
	m := &notifications.Message{Text: text}
	m.Chat.ID = chat
	return notifications.Update{UpdateID: id, Message: m}
}

func TestListenerRunIgnoresOtherChats(t *testing.T) {
	up := &fakeUpdater{batches: [][]notifications.Update{
		{msg(5, 99, "/start_trading"), msg(6, 42, "/start_trading")},
	}}
	g := NewGate(false)
	l := NewListener(up, g, stubReporter{}, "42", zerolog.Nop())
	l.pollDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { l.Run(ctx); close(done) }()

	require.Eventually(t, func() bool {
		up.mu.Lock()
		defer up.mu.Unlock()
		return len(up.offsets) >= 2
	}, time.Second, time.Millisecond)
	cancel()
	<-done

	assert.True(t, g.Enabled())
	up.mu.Lock()
	defer up.mu.Unlock()
	assert.Equal(t, []string{"✅ Trading Started"}, up.sent)
	assert.Equal(t, int64(7), up.offsets[1])
}
