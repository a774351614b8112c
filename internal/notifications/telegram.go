package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kjannette/trahn-dca/internal/httputil"
)

const telegramBaseURL = "https://api.telegram.org"

// Telegram talks to the Bot API: sendMessage for notifications and
// getUpdates for the remote-control listener.
type Telegram struct {
	baseURL    string
	token      string
	chatID     string
	httpClient *http.Client
	retry      httputil.RetryConfig
	logger     zerolog.Logger
}

type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

type Message struct {
	Text string `json:"text"`
	Chat struct {
		ID int64 `json:"id"`
	} `json:"chat"`
}

func NewTelegram(baseURL, token, chatID string, logger zerolog.Logger) *Telegram {
	if baseURL == "" {
		baseURL = telegramBaseURL
	}
	return &Telegram{
		baseURL:    baseURL,
		token:      token,
		chatID:     chatID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    5 * time.Second,
		},
		logger: logger.With().Str("component", "telegram").Logger(),
	}
}

func (t *Telegram) Enabled() bool {
	return t.token != "" && t.chatID != ""
}

func (t *Telegram) ChatID() string {
	return t.chatID
}

func (t *Telegram) Notify(ctx context.Context, msg string) {
	if !t.Enabled() {
		return
	}
	if err := t.SendMessage(ctx, msg); err != nil {
		t.logger.Error().Err(err).Msg("telegram send failed")
	}
}

func (t *Telegram) SendMessage(ctx context.Context, text string) error {
	form := url.Values{}
	form.Set("chat_id", t.chatID)
	form.Set("text", text)
	encoded := form.Encode()

	resp, err := httputil.Do(t.logger.WithContext(ctx), t.httpClient, t.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.methodURL("sendMessage"), strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("sendMessage: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sendMessage: HTTP %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// GetUpdates long-polls for updates with id >= offset.
func (t *Telegram) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	q := url.Values{}
	q.Set("offset", strconv.FormatInt(offset, 10))
	q.Set("timeout", strconv.Itoa(int(timeout.Seconds())))

	var body struct {
		OK     bool            `json:"ok"`
		Result json.RawMessage `json:"result"`
	}
	if err := httputil.GetJSON(t.logger.WithContext(ctx), t.httpClient, t.retry, t.methodURL("getUpdates")+"?"+q.Encode(), &body); err != nil {
		return nil, fmt.Errorf("getUpdates: %w", err)
	}
	if !body.OK {
		return nil, fmt.Errorf("getUpdates: telegram returned ok=false")
	}

	var updates []Update
	if err := json.Unmarshal(body.Result, &updates); err != nil {
		return nil, fmt.Errorf("getUpdates result: %w", err)
	}
	return updates, nil
}

func (t *Telegram) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.token, method)
}
