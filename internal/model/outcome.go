package model

import "time"

// RecordUpdate is an instruction to move one expected record to a new status.
type RecordUpdate struct {
	Identifier string
	Status     RecordStatus
}

// Outcome is the result of reconciling one sender's expected records against
// the identifiers extracted from their documents.
type Outcome struct {
	Matched []string // expected identifiers, in discovery order
	Missing []string // expected identifiers, in original order
	Updates []RecordUpdate
}

// Complete reports whether nothing is left outstanding.
func (o Outcome) Complete() bool {
	return len(o.Missing) == 0
}

// MessageState is the per-message position in a reconciliation cycle.
type MessageState string

// Message states, in the order a message normally moves through them.
const (
	StateReceived         MessageState = "RECEIVED"
	StateClassified       MessageState = "CLASSIFIED"
	StateExtracted        MessageState = "EXTRACTED"
	StateArchiveFlagged   MessageState = "ARCHIVE_FLAGGED"
	StateUnreadable       MessageState = "UNREADABLE"
	StateResolved         MessageState = "RESOLVED"
	StateAwaitingApproval MessageState = "AWAITING_APPROVAL"
	StateApplied          MessageState = "APPLIED"
)

// ItemKind distinguishes what a report item asks of the operator.
type ItemKind string

// Report item kinds.
const (
	ItemDraft        ItemKind = "DRAFT"
	ItemManualReview ItemKind = "MANUAL_REVIEW"
	ItemLog          ItemKind = "LOG"
)

// ItemStatus is the lifecycle of a report item after the cycle produced it.
type ItemStatus string

// Report item statuses.
const (
	ItemPending   ItemStatus = "PENDING"
	ItemApplied   ItemStatus = "APPLIED"
	ItemDismissed ItemStatus = "DISMISSED"
	ItemFailed    ItemStatus = "FAILED"
)

// ReportItem is one entry in the approval queue produced by a cycle.
type ReportItem struct {
	CreatedAt   time.Time
	ID          string
	Kind        ItemKind
	Status      ItemStatus
	State       MessageState
	Sender      string
	ThreadID    string
	Draft       string
	ContactNote string
	ArchiveNote string
	Reason      string // why the item needs a human, for manual review and log items
	Error       string
	MessageIDs  []string
	Matched     []string
	Missing     []string
	Updates     []RecordUpdate
	Filenames   map[string]string // matched identifier -> attachment filename
}

// NeedsApproval reports whether the item carries a draft to approve.
func (i *ReportItem) NeedsApproval() bool {
	return i.Kind == ItemDraft && i.Status == ItemPending
}
