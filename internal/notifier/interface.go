package notifier

import (
	"context"
	"time"
)

// Config selects the notification channels. A channel with empty
// credentials is disabled.
type Config struct {
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// WebhookConfig configures HTTP webhook delivery.
type WebhookConfig struct {
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

// TelegramConfig configures Telegram Bot API delivery.
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// Event statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Event reports a finished optimization run.
type Event struct {
	RunID      string             `json:"run_id"`
	Symbol     string             `json:"symbol"`
	Timeframe  string             `json:"timeframe"`
	Status     string             `json:"status"`
	Metric     string             `json:"metric,omitempty"`
	Evaluated  int                `json:"evaluated"`
	Best       map[string]float64 `json:"best,omitempty"` // winning grid values
	Score      *float64           `json:"score,omitempty"`
	Error      string             `json:"error,omitempty"`
	FinishedAt time.Time          `json:"finished_at"`
}

// Notifier delivers run events to one channel.
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Notify sends a single event
	Notify(ctx context.Context, e Event) error
}
