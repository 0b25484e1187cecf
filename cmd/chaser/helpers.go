package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/invoice-chaser/internal/config"
	"github.com/Veraticus/invoice-chaser/internal/convert"
	"github.com/Veraticus/invoice-chaser/internal/engine"
	"github.com/Veraticus/invoice-chaser/internal/gmail"
	"github.com/Veraticus/invoice-chaser/internal/googleauth"
	"github.com/Veraticus/invoice-chaser/internal/llm"
	"github.com/Veraticus/invoice-chaser/internal/metrics"
	"github.com/Veraticus/invoice-chaser/internal/storage"
	"github.com/spf13/viper"
)

// initStorage opens the ledger and brings its schema up to date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(config.DatabasePath())
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// app bundles an engine with the resources it owns.
type app struct {
	engine    *engine.Engine
	store     *storage.SQLiteStorage
	assistant *llm.Assistant
	metrics   *metrics.Recorder
}

// newApp wires the full engine: ledger, Gmail, page renderer and model.
// Configuration problems surface here, before anything touches the mailbox.
func newApp(ctx context.Context) (*app, error) {
	store, err := initStorage(ctx)
	if err != nil {
		return nil, err
	}

	assistant, err := createAssistant()
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	client, err := googleauth.HTTPClient(ctx, config.LoadGoogleAuthConfig())
	if err != nil {
		assistant.Close()
		_ = store.Close()
		return nil, err
	}

	transport, err := gmail.NewTransport(ctx, client, config.LoadGmailConfig(), slog.Default())
	if err != nil {
		assistant.Close()
		_ = store.Close()
		return nil, err
	}

	converter := convert.NewPdftoppm(convert.Config{
		BinPath:  viper.GetString("convert.pdftoppm_path"),
		DPI:      viper.GetInt("convert.dpi"),
		MaxPages: viper.GetInt("convert.max_pages"),
	}, slog.Default())

	recorder := metrics.New()

	eng, err := engine.New(engine.Deps{
		Transport: transport,
		Converter: converter,
		Extractor: assistant,
		Drafter:   assistant,
		Store:     store,
		Items:     store,
		Metrics:   recorder,
	}, engineConfig(), slog.Default())
	if err != nil {
		assistant.Close()
		_ = store.Close()
		return nil, err
	}

	return &app{engine: eng, store: store, assistant: assistant, metrics: recorder}, nil
}

func (a *app) Close() {
	a.assistant.Close()
	if err := a.store.Close(); err != nil {
		slog.Warn("Failed to close database", "error", err)
	}
}

func engineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	if v := viper.GetInt("cycle.fetch_limit"); v > 0 {
		cfg.FetchLimit = v
	}
	if v := viper.GetDuration("reminders.cadence"); v > 0 {
		cfg.Cadence = v
	}
	if v := viper.GetString("outreach.kickoff_subject"); v != "" {
		cfg.KickoffSubject = v
	}
	if v := viper.GetString("outreach.reminder_subject"); v != "" {
		cfg.ReminderSubject = v
	}
	if v := viper.GetString("outreach.reply_subject"); v != "" {
		cfg.ReplySubject = v
	}
	return cfg
}
