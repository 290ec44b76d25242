package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newthinker/momentum/internal/notifier"
)

func TestWebhook_ImplementsNotifier(t *testing.T) {
	var _ notifier.Notifier = (*Webhook)(nil)
}

func TestWebhook_RequiresURL(t *testing.T) {
	if _, err := New(notifier.WebhookConfig{}); err == nil {
		t.Error("expected error for missing URL")
	}
}

func TestWebhook_Notify(t *testing.T) {
	var receivedPayload map[string]any
	var receivedHeader string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedHeader = r.Header.Get("X-Token")
		json.NewDecoder(r.Body).Decode(&receivedPayload)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	w, err := New(notifier.WebhookConfig{URL: server.URL, Headers: map[string]string{"X-Token": "secret"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Name() != "webhook" {
		t.Errorf("expected 'webhook', got %s", w.Name())
	}

	score := 12.5
	err = w.Notify(context.Background(), notifier.Event{
		RunID:      "run-1",
		Symbol:     "BTC/USDT",
		Timeframe:  "1h",
		Status:     notifier.StatusCompleted,
		Metric:     "total_return_pct",
		Evaluated:  4,
		Best:       map[string]float64{"rsi_period": 14},
		Score:      &score,
		FinishedAt: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if receivedHeader != "secret" {
		t.Errorf("expected custom header, got %q", receivedHeader)
	}
	if receivedPayload["type"] != "optimization" {
		t.Errorf("expected type optimization, got %v", receivedPayload["type"])
	}
	event, ok := receivedPayload["event"].(map[string]any)
	if !ok {
		t.Fatalf("expected event object, got %T", receivedPayload["event"])
	}
	if event["symbol"] != "BTC/USDT" {
		t.Errorf("expected symbol BTC/USDT, got %v", event["symbol"])
	}
	if event["score"] != 12.5 {
		t.Errorf("expected score 12.5, got %v", event["score"])
	}
}

func TestWebhook_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	w, _ := New(notifier.WebhookConfig{URL: server.URL})
	if err := w.Notify(context.Background(), notifier.Event{}); err == nil {
		t.Error("expected error for server error response")
	}
}
