// Package model defines the core domain models used throughout the application.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordStatus tracks whether an expected document has arrived.
type RecordStatus string

// Record status constants.
const (
	StatusAwaiting  RecordStatus = "AWAITING"
	StatusSatisfied RecordStatus = "SATISFIED"
)

// Valid reports whether s is a known status.
func (s RecordStatus) Valid() bool {
	return s == StatusAwaiting || s == StatusSatisfied
}

// Tags are descriptive labels carried on a record for reporting only.
type Tags struct {
	Issuer string // e.g. hotel or vendor name printed on the document
	TaxID  string
	Client string // internal workspace or client the document belongs to
}

// ExpectedRecord is a document we expect to receive from a sender.
type ExpectedRecord struct {
	LastReminderAt *time.Time
	SatisfiedAt    *time.Time
	Tags           Tags
	Identifier     string
	Sender         string
	Status         RecordStatus
	ThreadID       string
	Filename       string
	Amount         decimal.Decimal
	ID             int64
}

// IsAwaiting reports whether the record still counts as outstanding.
func (r *ExpectedRecord) IsAwaiting() bool {
	return r.Status == StatusAwaiting
}

// Identifiers returns the identifiers of records in their given order.
func Identifiers(records []ExpectedRecord) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.Identifier
	}
	return ids
}
