// Package reminder decides which senders are owed a nudge about documents
// they still have not sent.
package reminder

import (
	"time"

	"github.com/Veraticus/invoice-chaser/internal/model"
)

// DefaultCadence is the minimum gap between two reminders to the same sender.
const DefaultCadence = 48 * time.Hour

// IsDue reports whether a single awaiting record makes its sender due at now.
// A record that was never reminded is always due.
func IsDue(now time.Time, cadence time.Duration, r model.ExpectedRecord) bool {
	if r.Status != model.StatusAwaiting {
		return false
	}
	if r.LastReminderAt == nil {
		return true
	}
	return r.LastReminderAt.Before(now.Add(-cadence))
}

// DueSenders returns the senders that have at least one awaiting record due
// for a reminder, in the order they first appear in records.
func DueSenders(now time.Time, cadence time.Duration, records []model.ExpectedRecord) []string {
	seen := make(map[string]bool)
	due := []string{}

	for _, r := range records {
		if seen[r.Sender] || !IsDue(now, cadence, r) {
			continue
		}
		seen[r.Sender] = true
		due = append(due, r.Sender)
	}

	return due
}

// Apply returns a copy of records in which every awaiting record of sender
// has its last reminder set to now. Other records are copied unchanged.
func Apply(now time.Time, sender string, records []model.ExpectedRecord) []model.ExpectedRecord {
	out := make([]model.ExpectedRecord, len(records))
	copy(out, records)

	for i := range out {
		if out[i].Sender != sender || out[i].Status != model.StatusAwaiting {
			continue
		}
		stamp := now
		out[i].LastReminderAt = &stamp
	}

	return out
}

// Outstanding groups awaiting records by sender, preserving first-seen order
// of senders and the record order within each sender.
func Outstanding(records []model.ExpectedRecord) (senders []string, bySender map[string][]model.ExpectedRecord) {
	bySender = make(map[string][]model.ExpectedRecord)
	for _, r := range records {
		if r.Status != model.StatusAwaiting {
			continue
		}
		if _, ok := bySender[r.Sender]; !ok {
			senders = append(senders, r.Sender)
		}
		bySender[r.Sender] = append(bySender[r.Sender], r)
	}
	return senders, bySender
}
