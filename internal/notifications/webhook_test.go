package notifications

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestNotify_NoWebhook(t *testing.T) {
	s := NewSender("", "TestBot", zerolog.Nop())
	if s.Enabled() {
		t.Fatal("should not be enabled with empty URL")
	}
	s.Notify(context.Background(), "hello from test")
}

func TestNotify_SlackFormat(t *testing.T) {
	var received map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSender(srv.URL, "TestBot", zerolog.Nop())
	if !s.Enabled() {
		t.Fatal("should be enabled")
	}

	s.Notify(context.Background(), "entry bought")

	if received["username"] != "TestBot" {
		t.Fatalf("username: got %s", received["username"])
	}
	if received["text"] != "`[TestBot] entry bought`" {
		t.Fatalf("text: got %q", received["text"])
	}
}

func TestNotify_DiscordFormat(t *testing.T) {
	var received map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// URL containing "discord" triggers Discord format
	s := NewSender(srv.URL+"/discord/webhook", "TrahnBot", zerolog.Nop())
	s.Notify(context.Background(), "sold 0.04 WETH for 103.00 USDC")

	if received["content"] == "" {
		t.Fatal("content should not be empty for Discord")
	}
	if _, hasText := received["text"]; hasText {
		t.Fatal("Discord payload should not have 'text' field")
	}
}

func TestNotify_WebhookError(t *testing.T) {
	s := NewSender("http://localhost:1/bogus", "TestBot", zerolog.Nop())
	s.retry.BaseDelay = 0
	s.Notify(context.Background(), "this will fail gracefully")
}

func TestDefaultBotName(t *testing.T) {
	s := NewSender("", "", zerolog.Nop())
	if s.botName != defaultBotName {
		t.Fatalf("expected default bot name, got %s", s.botName)
	}
}

type recorder struct{ msgs []string }

func (r *recorder) Notify(_ context.Context, msg string) { r.msgs = append(r.msgs, msg) }

func TestMulti(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Multi{a, nil, b, Nop{}}.Notify(context.Background(), "x")
	if len(a.msgs) != 1 || len(b.msgs) != 1 {
		t.Fatalf("expected fan-out to both recorders, got %d and %d", len(a.msgs), len(b.msgs))
	}
}
