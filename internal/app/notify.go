package app

import (
	"context"
	"time"

	"github.com/newthinker/momentum/internal/notifier"
	"github.com/newthinker/momentum/internal/notifier/telegram"
	"github.com/newthinker/momentum/internal/notifier/webhook"
	"github.com/newthinker/momentum/internal/optimizer"
	"go.uber.org/zap"
)

// notifyTimeout bounds delivery to all channels for one event.
const notifyTimeout = 30 * time.Second

func (a *App) registerNotifiers() error {
	cfg := a.cfg.Notify

	if cfg.Webhook.URL != "" {
		w, err := webhook.New(cfg.Webhook)
		if err != nil {
			return err
		}
		if err := a.notifiers.Register(w); err != nil {
			return err
		}
	}
	if cfg.Telegram.BotToken != "" {
		t, err := telegram.New(cfg.Telegram)
		if err != nil {
			return err
		}
		if err := a.notifiers.Register(t); err != nil {
			return err
		}
	}
	for _, n := range a.extraNotifiers {
		if err := a.notifiers.Register(n); err != nil {
			return err
		}
	}
	return nil
}

// Notifiers returns the names of the configured completion channels.
func (a *App) Notifiers() []string {
	return a.notifiers.Names()
}

// NotifyOptimization reports a finished grid search to every configured
// channel. Delivery failures are logged and never affect the run.
func (a *App) NotifyOptimization(ctx context.Context, runID string, req DataRequest, res *optimizer.Result, runErr error) {
	if len(a.notifiers.Names()) == 0 {
		return
	}
	req = a.Resolve(req)

	e := notifier.Event{
		RunID:      runID,
		Symbol:     req.Symbol,
		Timeframe:  req.Timeframe,
		Status:     notifier.StatusCompleted,
		FinishedAt: a.now().UTC(),
	}
	if runErr != nil {
		e.Status = notifier.StatusFailed
		e.Error = runErr.Error()
	}
	if res != nil {
		e.Metric = res.Metric
		e.Evaluated = len(res.Evaluations)
		if res.Best != nil {
			score := res.Best.Score
			e.Score = &score
			e.Best = res.Best.Values
		}
	}

	// the run's own context may already be cancelled
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	for name, err := range a.notifiers.NotifyAll(ctx, e) {
		a.logger.Warn("notification failed",
			zap.String("notifier", name),
			zap.String("run_id", runID),
			zap.Error(err),
		)
	}
}
