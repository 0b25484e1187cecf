// Package scheduler drives the engine unattended: a reconciliation cycle on
// a fixed poll interval and a reminder pass once a day.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/invoice-chaser/internal/common"
	"github.com/Veraticus/invoice-chaser/internal/engine"
	"github.com/Veraticus/invoice-chaser/internal/model"
)

// Runner is the part of the engine the scheduler drives.
type Runner interface {
	RunCycle(ctx context.Context) ([]model.ReportItem, error)
	RunRemindersWhenFree(ctx context.Context) ([]engine.ReminderResult, error)
}

// Config holds the scheduling cadence.
type Config struct {
	Location     *time.Location
	PollInterval time.Duration
	ReminderAt   TimeOfDay
}

// DefaultConfig polls every ten minutes and reminds at 09:00 local time.
func DefaultConfig() Config {
	return Config{
		PollInterval: 10 * time.Minute,
		ReminderAt:   TimeOfDay{Hour: 9},
		Location:     time.Local,
	}
}

// Scheduler runs the poll and reminder loops until its context ends.
type Scheduler struct {
	runner Runner
	logger *slog.Logger
	now    func() time.Time
	config Config
}

// New creates a scheduler.
func New(runner Runner, config Config, logger *slog.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, fmt.Errorf("%w: scheduler needs an engine", common.ErrMissingConfig)
	}
	if config.PollInterval <= 0 {
		return nil, fmt.Errorf("%w: poll interval must be positive", common.ErrInvalidConfig)
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{runner: runner, config: config, logger: logger, now: time.Now}, nil
}

// Run blocks until ctx is canceled. A failed cycle or reminder pass is
// logged and the loops carry on.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Scheduler started",
		"poll_interval", s.config.PollInterval,
		"reminder_at", s.config.ReminderAt.String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.pollLoop(gctx) })
	g.Go(func() error { return s.reminderLoop(gctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.logger.Info("Scheduler stopped")
		return nil
	}
	return err
}

func (s *Scheduler) pollLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		s.cycle(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) cycle(ctx context.Context) {
	items, err := s.runner.RunCycle(ctx)
	switch {
	case errors.Is(err, common.ErrCycleInFlight):
		s.logger.Debug("Skipping poll, a cycle is already running")
		return
	case errors.Is(err, context.Canceled):
		return
	case err != nil:
		s.logger.Error("Scheduled cycle failed", "error", err)
		return
	}

	awaiting := 0
	for _, item := range items {
		if item.Status == model.ItemPending {
			awaiting++
		}
	}
	s.logger.Info("Scheduled cycle finished", "items", len(items), "awaiting_operator", awaiting)
}

func (s *Scheduler) reminderLoop(ctx context.Context) error {
	for {
		now := s.now().In(s.config.Location)
		next := s.config.ReminderAt.Next(now)
		s.logger.Debug("Next reminder pass scheduled", "at", next)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		results, err := s.runner.RunRemindersWhenFree(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			s.logger.Error("Reminder pass failed", "error", err)
			continue
		}

		sent := 0
		for _, r := range results {
			if r.Err != nil {
				s.logger.Warn("Reminder failed", "sender", r.Sender, "error", r.Err)
				continue
			}
			if r.Sent {
				sent++
			}
		}
		s.logger.Info("Reminder pass finished", "due", len(results), "sent", sent)
	}
}
