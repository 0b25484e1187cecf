// Package engine implements the reconciliation cycle: it turns a batch of
// inbound messages into per-sender report items, applies approved items, and
// drives kickoff and reminder outreach.
package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/invoice-chaser/internal/common"
	"github.com/Veraticus/invoice-chaser/internal/reminder"
	"github.com/Veraticus/invoice-chaser/internal/service"
)

// Engine orchestrates reconciliation cycles against a set of collaborators.
// Every public entry point runs under a single guard, so a cycle, an approval,
// a kickoff and a reminder run never overlap.
type Engine struct {
	transport service.Transport
	converter service.Converter
	extractor service.Extractor
	drafter   service.Drafter
	store     service.Store
	items     ItemStore
	metrics   Recorder
	guard     *Guard
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
	config    Config
}

// Config holds configuration options for the engine.
type Config struct {
	Retry           service.RetryOptions
	KickoffSubject  string
	ReminderSubject string
	ReplySubject    string // used when an approved item has no thread
	FetchLimit      int
	Cadence         time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		FetchLimit:      5,
		Cadence:         reminder.DefaultCadence,
		KickoffSubject:  "Invoice Reconciliation",
		ReminderSubject: "Reminder: Invoice Reconciliation",
		ReplySubject:    "Re: Invoice Reconciliation",
		Retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// Deps are the collaborators an engine is built from. Metrics, Guard, Now and
// NewID are optional.
type Deps struct {
	Transport service.Transport
	Converter service.Converter
	Extractor service.Extractor
	Drafter   service.Drafter
	Store     service.Store
	Items     ItemStore
	Metrics   Recorder
	Guard     *Guard
	Now       func() time.Time
	NewID     func() string
}

// New creates an engine. A nil logger falls back to slog.Default.
func New(deps Deps, config Config, logger *slog.Logger) (*Engine, error) {
	required := []struct {
		dep  any
		name string
	}{
		{deps.Transport, "transport"},
		{deps.Converter, "converter"},
		{deps.Extractor, "extractor"},
		{deps.Drafter, "drafter"},
		{deps.Store, "store"},
		{deps.Items, "items"},
	}
	for _, r := range required {
		if r.dep == nil {
			return nil, fmt.Errorf("%w: engine %s", common.ErrMissingConfig, r.name)
		}
	}

	if config.FetchLimit <= 0 {
		return nil, fmt.Errorf("%w: fetch limit must be positive, got %d", common.ErrInvalidConfig, config.FetchLimit)
	}
	if config.Cadence < 0 {
		return nil, fmt.Errorf("%w: reminder cadence cannot be negative", common.ErrInvalidConfig)
	}

	defaults := DefaultConfig()
	if config.KickoffSubject == "" {
		config.KickoffSubject = defaults.KickoffSubject
	}
	if config.ReminderSubject == "" {
		config.ReminderSubject = defaults.ReminderSubject
	}
	if config.ReplySubject == "" {
		config.ReplySubject = defaults.ReplySubject
	}

	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		transport: deps.Transport,
		converter: deps.Converter,
		extractor: deps.Extractor,
		drafter:   deps.Drafter,
		store:     deps.Store,
		items:     deps.Items,
		metrics:   deps.Metrics,
		guard:     deps.Guard,
		logger:    logger,
		now:       deps.Now,
		newID:     deps.NewID,
		config:    config,
	}
	if e.metrics == nil {
		e.metrics = nopRecorder{}
	}
	if e.guard == nil {
		e.guard = NewGuard()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = newItemID
	}

	return e, nil
}

// Config returns the engine's effective configuration.
func (e *Engine) Config() Config {
	return e.config
}
