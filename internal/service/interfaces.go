// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/invoice-chaser/internal/analytics"
	"github.com/Veraticus/invoice-chaser/internal/model"
)

// Transport fetches inbound messages and sends outbound ones.
type Transport interface {
	FetchUnread(ctx context.Context, limit int) ([]model.InboundMessage, error)
	Reply(ctx context.Context, threadID, to, body string) error
	SendNew(ctx context.Context, to, subject, body string) (threadID string, err error)
	// MarkConsumed flags a message so it is not fetched again.
	MarkConsumed(ctx context.Context, messageID string) error
}

// Converter turns a document into page images. Failures yield an empty list.
type Converter interface {
	ToImages(ctx context.Context, documentPath string) []string
}

// Extractor reads structured fields out of document images.
// Failures yield empty fields rather than an error.
type Extractor interface {
	Extract(ctx context.Context, contextText string, imagePaths []string) model.ExtractedFields
}

// Drafter composes reply and request text for an operator to approve.
type Drafter interface {
	Draft(ctx context.Context, sender string, missing, matched []string, contextText string) (string, error)
}

// Store is the persistent ledger of expected records.
type Store interface {
	RecordsAwaiting(ctx context.Context, sender string) ([]model.ExpectedRecord, error)
	AllRecords(ctx context.Context) ([]model.ExpectedRecord, error)
	Add(ctx context.Context, record *model.ExpectedRecord) error
	MarkSatisfied(ctx context.Context, identifier, filename, threadID string) error
	TouchReminder(ctx context.Context, sender string) error
	SendersDue(ctx context.Context, cadence time.Duration) ([]string, error)
	SetThread(ctx context.Context, sender, threadID string) error
}

// ReportWriter publishes the ledger and its summary, returning where it went.
type ReportWriter interface {
	Write(ctx context.Context, records []model.ExpectedRecord, summary analytics.Summary) (string, error)
}

// RecordFilter narrows a ledger listing.
type RecordFilter struct {
	Sender string
	Status model.RecordStatus
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// WithDefaults fills unset fields with the standard backoff settings.
func (o RetryOptions) WithDefaults() RetryOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = 100 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.Multiplier <= 0 {
		o.Multiplier = 2.0
	}
	return o
}
