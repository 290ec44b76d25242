package main

import (
	"context"
	"fmt"
	"time"

	"github.com/newthinker/momentum/internal/api"
	"github.com/newthinker/momentum/internal/app"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the backtest API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		cfg := a.Config()
		log := a.Logger()

		metricsPath := ""
		if cfg.Metrics.Enabled {
			metricsPath = cfg.Metrics.Path
		}

		server, err := api.NewServer(api.Config{
			Host:        cfg.Server.Host,
			Port:        cfg.Server.Port,
			APIKey:      cfg.Server.APIKey,
			MaxJobs:     cfg.Server.MaxJobs,
			JobTTL:      cfg.Server.JobTTL(),
			MetricsPath: metricsPath,
		}, api.Dependencies{App: a}, log)
		if err != nil {
			return fmt.Errorf("creating server: %w", err)
		}

		log.Info("starting momentum server",
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.Strings("sources", a.Sources()),
			zap.Bool("auth", cfg.Server.APIKey != ""),
		)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		// Graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})
}
