package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/invoice-chaser/internal/common"
	"github.com/Veraticus/invoice-chaser/internal/model"
)

// PendingItems returns the approval queue, oldest first.
func (e *Engine) PendingItems(ctx context.Context) ([]model.ReportItem, error) {
	return e.items.PendingItems(ctx)
}

// Approve sends an item's draft, or body when it is not blank, on the item's
// thread, commits its record updates one at a time, and only then marks the
// source messages consumed. A failed send leaves the item pending; a failed
// commit leaves the messages unread so the next cycle sees them again.
func (e *Engine) Approve(ctx context.Context, itemID, body string) (*model.ReportItem, error) {
	var item *model.ReportItem
	err := e.guard.Do(func() error {
		var err error
		item, err = e.approve(ctx, itemID, body)
		return err
	})
	return item, err
}

func (e *Engine) approve(ctx context.Context, itemID, body string) (*model.ReportItem, error) {
	item, err := e.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !item.NeedsApproval() {
		return item, fmt.Errorf("%w: %s is %s %s", common.ErrNotApprovable, item.ID, item.Status, item.Kind)
	}

	log := e.logger.With("item_id", item.ID, "sender", item.Sender, "thread_id", item.ThreadID)

	if strings.TrimSpace(body) == "" {
		body = item.Draft
	}
	if strings.TrimSpace(body) == "" {
		return item, fmt.Errorf("%w: %s has an empty draft", common.ErrNotApprovable, item.ID)
	}

	threadID, err := e.send(ctx, item.Sender, item.ThreadID, body)
	if err != nil {
		log.Error("Failed to send reply", "error", err)
		item.Error = fmt.Sprintf("failed to send reply: %v", err)
		e.save(ctx, item)
		return item, fmt.Errorf("failed to send reply to %s: %w", item.Sender, err)
	}
	item.Draft = body
	if item.ThreadID == "" && threadID != "" {
		item.ThreadID = threadID
		if err := e.store.SetThread(ctx, item.Sender, threadID); err != nil {
			log.Warn("Failed to record reply thread", "thread_id", threadID, "error", err)
		}
	}

	satisfied := 0
	for _, u := range item.Updates {
		if u.Status != model.StatusSatisfied {
			continue
		}
		err := e.store.MarkSatisfied(ctx, u.Identifier, item.Filenames[u.Identifier], item.ThreadID)
		switch {
		case errors.Is(err, common.ErrAlreadySatisfied):
			log.Info("Record already satisfied", "identifier", u.Identifier)
		case err != nil:
			log.Error("Failed to commit record update", "identifier", u.Identifier, "error", err)
			e.metrics.RecordsSatisfied(satisfied)
			item.Status = model.ItemFailed
			item.State = model.StateResolved
			item.Error = fmt.Sprintf("reply sent but update of %s failed: %v", u.Identifier, err)
			e.save(ctx, item)
			return item, fmt.Errorf("failed to commit update for %s: %w", u.Identifier, err)
		default:
			satisfied++
			log.Info("Record satisfied", "identifier", u.Identifier)
		}
	}
	e.metrics.RecordsSatisfied(satisfied)

	item.Status = model.ItemApplied
	item.State = model.StateApplied
	item.Error = ""
	if err := e.consume(ctx, item.MessageIDs); err != nil {
		item.Error = err.Error()
	}
	e.save(ctx, item)

	log.Info("Report item applied", "satisfied", satisfied, "missing", len(item.Missing))
	return item, nil
}

// Dismiss resolves a pending item without sending anything or touching the
// ledger. Its source messages are marked consumed.
func (e *Engine) Dismiss(ctx context.Context, itemID string) (*model.ReportItem, error) {
	var item *model.ReportItem
	err := e.guard.Do(func() error {
		var err error
		item, err = e.items.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if item.Status != model.ItemPending {
			return fmt.Errorf("%w: %s is %s", common.ErrNotApprovable, item.ID, item.Status)
		}

		item.Status = model.ItemDismissed
		if err := e.consume(ctx, item.MessageIDs); err != nil {
			item.Error = err.Error()
		}
		e.save(ctx, item)

		e.logger.Info("Report item dismissed", "item_id", item.ID, "sender", item.Sender, "kind", item.Kind)
		return nil
	})
	return item, err
}

// send replies on threadID, or starts a new conversation when there is none.
// It returns the thread the message went out on.
func (e *Engine) send(ctx context.Context, to, threadID, body string) (string, error) {
	if threadID == "" {
		return common.WithRetryValue(ctx, func() (string, error) {
			return e.transport.SendNew(ctx, to, e.config.ReplySubject, body)
		}, e.config.Retry)
	}
	err := common.WithRetry(ctx, func() error {
		return e.transport.Reply(ctx, threadID, to, body)
	}, e.config.Retry)
	return threadID, err
}

// consume marks every message consumed, continuing past failures. A message
// left unread is fetched again by a later cycle.
func (e *Engine) consume(ctx context.Context, messageIDs []string) error {
	var failed []string
	for _, id := range messageIDs {
		err := common.WithRetry(ctx, func() error {
			return e.transport.MarkConsumed(ctx, id)
		}, e.config.Retry)
		if err != nil {
			e.logger.Warn("Failed to mark message consumed", "message_id", id, "error", err)
			failed = append(failed, id)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%w: could not mark %s consumed", common.ErrTransport, strings.Join(failed, ", "))
	}
	return nil
}

func (e *Engine) save(ctx context.Context, item *model.ReportItem) {
	if err := e.items.SaveItem(ctx, item); err != nil {
		e.logger.Error("Failed to save report item", "item_id", item.ID, "error", err)
	}
}
