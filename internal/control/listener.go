package control

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kjannette/trahn-dca/internal/notifications"
)

const (
	CmdStatus       = "/status"
	CmdStartTrading = "/start_trading"
	CmdStopTrading  = "/stop_trading"
	CmdMarketStatus = "/market_status"
	CmdLadder       = "/ladder"
)

// Updater is the chat transport the listener polls and replies through.
type Updater interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]notifications.Update, error)
	SendMessage(ctx context.Context, text string) error
}

// MarketReporter produces the read-only market summary and DCA ladder.
type MarketReporter interface {
	MarketStatus(ctx context.Context) (string, error)
	LadderSummary(ctx context.Context) (string, error)
}

// Listener answers remote-control commands from a single authorized chat.
// It only reads state or toggles the gate.
type Listener struct {
	updater   Updater
	gate      *Gate
	reporter  MarketReporter
	chatID    string
	pollDelay time.Duration
	logger    zerolog.Logger
}

func NewListener(updater Updater, gate *Gate, reporter MarketReporter, chatID string, logger zerolog.Logger) *Listener {
	return &Listener{
		updater:   updater,
		gate:      gate,
		reporter:  reporter,
		chatID:    chatID,
		pollDelay: 2 * time.Second,
		logger:    logger.With().Str("component", "control").Logger(),
	}
}

// Run polls for commands until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) {
	l.logger.Info().Msg("remote control listener started")
	var offset int64

	for {
		updates, err := l.updater.GetUpdates(ctx, offset, 10*time.Second)
		if err != nil && ctx.Err() == nil {
			l.logger.Warn().Err(err).Msg("error checking updates")
		}

		for _, u := range updates {
			offset = u.UpdateID + 1
			if u.Message == nil || strconv.FormatInt(u.Message.Chat.ID, 10) != l.chatID {
				continue
			}
			reply, ok := l.Handle(ctx, u.Message.Text)
			if !ok {
				continue
			}
			if err := l.updater.SendMessage(ctx, reply); err != nil {
				l.logger.Error().Err(err).Msg("failed to send reply")
			}
		}

		select {
		case <-ctx.Done():
			l.logger.Info().Msg("remote control listener stopped")
			return
		case <-time.After(l.pollDelay):
		}
	}
}

// Handle maps one command to its reply. Unknown text yields ok=false.
func (l *Listener) Handle(ctx context.Context, text string) (reply string, ok bool) {
	cmd := strings.TrimSpace(text)
	// "/status@SomeBot" is how groups address a specific bot
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case CmdStatus:
		if l.gate.Enabled() {
			return "🟢 Bot is Online", true
		}
		return "🔴 Bot is Offline", true

	case CmdStartTrading:
		if l.gate.Start() {
			l.logger.Info().Msg("trading enabled by remote command")
			return "✅ Trading Started", true
		}
		return "ℹ️ Trading already running.", true

	case CmdStopTrading:
		if l.gate.Stop() {
			l.logger.Info().Msg("trading disabled by remote command")
			return "🛑 Safe Stop Triggered", true
		}
		return "⚠️ Trading already stopped.", true

	case CmdMarketStatus:
		summary, err := l.reporter.MarketStatus(ctx)
		if err != nil {
			return "❌ Failed to get market status: " + err.Error(), true
		}
		return summary, true

	case CmdLadder:
		summary, err := l.reporter.LadderSummary(ctx)
		if err != nil {
			return "❌ Failed to project DCA ladder: " + err.Error(), true
		}
		return summary, true
	}
	return "", false
}
