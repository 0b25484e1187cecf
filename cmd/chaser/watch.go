package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Veraticus/invoice-chaser/internal/common"
	"github.com/Veraticus/invoice-chaser/internal/metrics"
	"github.com/Veraticus/invoice-chaser/internal/scheduler"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run cycles and reminders on a schedule",
		Long: `Run a reconciliation cycle every cycle.poll_interval and a reminder pass
once a day at reminders.time_of_day, until interrupted.

Drafted replies are queued, never sent: approve them with 'chaser queue review'.
Set metrics.addr (for example ":9090") to serve Prometheus metrics at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schedConfig, err := schedulerConfig()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			sched, err := scheduler.New(a.engine, schedConfig, slog.Default())
			if err != nil {
				return err
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return sched.Run(ctx)
			})
			if addr := viper.GetString("metrics.addr"); addr != "" {
				g.Go(func() error {
					return serveMetrics(ctx, addr, a.metrics)
				})
			}

			return g.Wait()
		},
	}
}

func schedulerConfig() (scheduler.Config, error) {
	cfg := scheduler.DefaultConfig()

	if v := viper.GetDuration("cycle.poll_interval"); v > 0 {
		cfg.PollInterval = v
	}
	if v := viper.GetString("reminders.time_of_day"); v != "" {
		at, err := scheduler.ParseTimeOfDay(v)
		if err != nil {
			return cfg, err
		}
		cfg.ReminderAt = at
	}
	if v := viper.GetString("reminders.time_zone"); v != "" {
		loc, err := time.LoadLocation(v)
		if err != nil {
			return cfg, fmt.Errorf("%w: time zone %q: %w", common.ErrInvalidConfig, v, err)
		}
		cfg.Location = loc
	}

	return cfg, nil
}

// serveMetrics exposes the recorder until ctx ends.
func serveMetrics(ctx context.Context, addr string, recorder *metrics.Recorder) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Failed to stop metrics server", "error", err)
		}
	}()

	slog.Info("Serving metrics", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
