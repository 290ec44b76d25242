package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/newthinker/momentum/internal/notifier"
)

const defaultBaseURL = "https://api.telegram.org"

// Telegram implements the Notifier interface for Telegram Bot API
type Telegram struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
}

// New creates a new Telegram notifier
func New(cfg notifier.TelegramConfig) (*Telegram, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram: bot_token is required")
	}
	if cfg.ChatID == "" {
		return nil, fmt.Errorf("telegram: chat_id is required")
	}
	return &Telegram{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		baseURL:  defaultBaseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// WithBaseURL points the notifier at another Bot API endpoint.
func (t *Telegram) WithBaseURL(url string) *Telegram {
	t.baseURL = strings.TrimSuffix(url, "/")
	return t
}

func (t *Telegram) Name() string {
	return "telegram"
}

func (t *Telegram) Notify(ctx context.Context, e notifier.Event) error {
	return t.sendMessage(ctx, formatEvent(e))
}

func formatEvent(e notifier.Event) string {
	var sb strings.Builder

	if e.Status == notifier.StatusCompleted {
		sb.WriteString(fmt.Sprintf("✅ *Optimization completed* - %s %s\n", e.Symbol, e.Timeframe))
	} else {
		sb.WriteString(fmt.Sprintf("❌ *Optimization %s* - %s %s\n", e.Status, e.Symbol, e.Timeframe))
	}
	sb.WriteString(fmt.Sprintf("🔢 Combinations: %d\n", e.Evaluated))

	if e.Score != nil {
		sb.WriteString(fmt.Sprintf("🎯 Best %s: %.4f\n", e.Metric, *e.Score))
	}
	if len(e.Best) > 0 {
		names := make([]string, 0, len(e.Best))
		for name := range e.Best {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, len(names))
		for i, name := range names {
			parts[i] = fmt.Sprintf("%s=%g", name, e.Best[name])
		}
		sb.WriteString(fmt.Sprintf("⚙️ Parameters: %s\n", strings.Join(parts, ", ")))
	}
	if e.Error != "" {
		sb.WriteString(fmt.Sprintf("💡 Error: %s\n", e.Error))
	}

	sb.WriteString(fmt.Sprintf("⏰ Time: %s", e.FinishedAt.Format("2006-01-02 15:04:05")))

	return sb.String()
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)

	payload := map[string]any{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var result map[string]any
		json.NewDecoder(resp.Body).Decode(&result)
		return fmt.Errorf("telegram: API error (status %d): %v", resp.StatusCode, result)
	}

	return nil
}
