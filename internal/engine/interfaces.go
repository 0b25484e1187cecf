package engine

import (
	"context"
	"time"

	"github.com/Veraticus/invoice-chaser/internal/model"
)

// ItemStore persists the approval queue between a cycle and the operator's
// decision on each item.
type ItemStore interface {
	SaveItem(ctx context.Context, item *model.ReportItem) error
	GetItem(ctx context.Context, id string) (*model.ReportItem, error)
	PendingItems(ctx context.Context) ([]model.ReportItem, error)
	PendingMessageIDs(ctx context.Context) (map[string]bool, error)
}

// Recorder receives engine events for metrics.
type Recorder interface {
	CycleFinished(elapsed time.Duration, err error)
	MessagesFetched(n int)
	ItemQueued(kind model.ItemKind, status model.ItemStatus)
	ExtractionFailed()
	RecordsSatisfied(n int)
	ReminderSent()
}

type nopRecorder struct{}

func (nopRecorder) CycleFinished(time.Duration, error)          {}
func (nopRecorder) MessagesFetched(int)                         {}
func (nopRecorder) ItemQueued(model.ItemKind, model.ItemStatus) {}
func (nopRecorder) ExtractionFailed()                           {}
func (nopRecorder) RecordsSatisfied(int)                        {}
func (nopRecorder) ReminderSent()                               {}
