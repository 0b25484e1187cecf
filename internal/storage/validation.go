// Package storage provides the data persistence layer for the ledger of
// expected records and the approval queue.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/invoice-chaser/internal/model"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrInvalidStatus    = errors.New("invalid record status")
	ErrInvalidRecord    = errors.New("invalid record")
	ErrInvalidItem      = errors.New("invalid report item")
	ErrNegativeDuration = errors.New("duration cannot be negative")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateRecord(r *model.ExpectedRecord) error {
	if r == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if strings.TrimSpace(r.Identifier) == "" {
		return fmt.Errorf("%w: missing identifier", ErrInvalidRecord)
	}
	if strings.TrimSpace(r.Sender) == "" {
		return fmt.Errorf("%w: missing sender", ErrInvalidRecord)
	}
	if r.Status != "" && !r.Status.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, r.Status)
	}
	if r.Amount.IsNegative() {
		return fmt.Errorf("%w: negative amount", ErrInvalidRecord)
	}
	if r.Status == model.StatusSatisfied && r.LastReminderAt != nil {
		return fmt.Errorf("%w: satisfied record cannot carry a reminder stamp", ErrInvalidRecord)
	}
	return nil
}

func validateItem(item *model.ReportItem) error {
	if item == nil {
		return fmt.Errorf("%w: item", ErrNilParameter)
	}
	if strings.TrimSpace(item.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidItem)
	}
	switch item.Kind {
	case model.ItemDraft, model.ItemManualReview, model.ItemLog:
	default:
		return fmt.Errorf("%w: kind %q", ErrInvalidItem, item.Kind)
	}
	return nil
}
