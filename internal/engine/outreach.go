package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/Veraticus/invoice-chaser/internal/common"
	"github.com/Veraticus/invoice-chaser/internal/model"
	"github.com/Veraticus/invoice-chaser/internal/reminder"
)

// KickoffResult describes what a kickoff did.
type KickoffResult struct {
	Sender      string
	ThreadID    string
	Identifiers []string
	Sent        bool
}

// ReminderResult describes one sender's reminder.
type ReminderResult struct {
	Err         error
	Sender      string
	ThreadID    string
	Identifiers []string
	Sent        bool
}

// Kickoff opens a conversation with sender listing every identifier still
// awaited from them, and records the new thread on those records. With
// nothing outstanding it sends nothing.
func (e *Engine) Kickoff(ctx context.Context, sender string) (*KickoffResult, error) {
	var result *KickoffResult
	err := e.guard.Do(func() error {
		var err error
		result, err = e.kickoff(ctx, sender)
		return err
	})
	return result, err
}

func (e *Engine) kickoff(ctx context.Context, sender string) (*KickoffResult, error) {
	sender = SenderAddress(sender)
	result := &KickoffResult{Sender: sender}

	awaiting, err := e.store.RecordsAwaiting(ctx, sender)
	if err != nil {
		return nil, fmt.Errorf("failed to load awaiting records: %w", err)
	}
	if len(awaiting) == 0 {
		e.logger.Info("Nothing pending for sender", "sender", sender)
		return result, nil
	}

	result.Identifiers = model.Identifiers(awaiting)
	threadID, err := common.WithRetryValue(ctx, func() (string, error) {
		return e.transport.SendNew(ctx, sender, e.config.KickoffSubject, kickoffBody(result.Identifiers))
	}, e.config.Retry)
	if err != nil {
		return nil, fmt.Errorf("failed to send kickoff to %s: %w", sender, err)
	}
	result.Sent = true
	result.ThreadID = threadID

	if threadID != "" {
		if err := e.store.SetThread(ctx, sender, threadID); err != nil {
			return result, fmt.Errorf("kickoff sent but thread was not recorded: %w", err)
		}
	}

	e.logger.Info("Kickoff sent",
		"sender", sender,
		"thread_id", threadID,
		"outstanding", len(result.Identifiers))
	return result, nil
}

// RunReminders nudges every sender due under the configured cadence, on
// their existing thread when one is known. A sender is stamped only after
// their reminder went out. With dryRun nothing is sent or stamped.
func (e *Engine) RunReminders(ctx context.Context, dryRun bool) ([]ReminderResult, error) {
	var results []ReminderResult
	err := e.guard.Do(func() error {
		var err error
		results, err = e.runReminders(ctx, dryRun)
		return err
	})
	return results, err
}

// RunRemindersWhenFree is RunReminders that waits for an in-flight operation
// instead of failing.
func (e *Engine) RunRemindersWhenFree(ctx context.Context) ([]ReminderResult, error) {
	var results []ReminderResult
	err := e.guard.Wait(ctx, func() error {
		var err error
		results, err = e.runReminders(ctx, false)
		return err
	})
	return results, err
}

func (e *Engine) runReminders(ctx context.Context, dryRun bool) ([]ReminderResult, error) {
	due, err := e.store.SendersDue(ctx, e.config.Cadence)
	if err != nil {
		return nil, fmt.Errorf("failed to find senders due: %w", err)
	}
	results := []ReminderResult{}
	if len(due) == 0 {
		e.logger.Info("No reminders due")
		return results, nil
	}

	all, err := e.store.AllRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	_, outstanding := reminder.Outstanding(all)

	for _, sender := range due {
		records := outstanding[sender]
		result := ReminderResult{
			Sender:      sender,
			Identifiers: model.Identifiers(records),
			ThreadID:    knownThread(records),
		}
		log := e.logger.With("sender", sender, "thread_id", result.ThreadID)

		if dryRun {
			log.Info("Reminder due", "outstanding", len(result.Identifiers))
			results = append(results, result)
			continue
		}

		if err := e.sendReminder(ctx, &result); err != nil {
			log.Error("Failed to send reminder", "error", err)
			result.Err = err
			results = append(results, result)
			continue
		}
		result.Sent = true
		e.metrics.ReminderSent()

		if err := e.store.TouchReminder(ctx, sender); err != nil {
			log.Error("Reminder sent but not stamped", "error", err)
			result.Err = err
		}

		log.Info("Reminder sent", "outstanding", len(result.Identifiers))
		results = append(results, result)
	}

	return results, nil
}

func (e *Engine) sendReminder(ctx context.Context, result *ReminderResult) error {
	body := reminderBody(result.Identifiers)

	if result.ThreadID != "" {
		return common.WithRetry(ctx, func() error {
			return e.transport.Reply(ctx, result.ThreadID, result.Sender, body)
		}, e.config.Retry)
	}

	threadID, err := common.WithRetryValue(ctx, func() (string, error) {
		return e.transport.SendNew(ctx, result.Sender, e.config.ReminderSubject, body)
	}, e.config.Retry)
	if err != nil {
		return err
	}
	result.ThreadID = threadID
	if threadID != "" {
		if err := e.store.SetThread(ctx, result.Sender, threadID); err != nil {
			e.logger.Warn("Failed to record reminder thread", "sender", result.Sender, "error", err)
		}
	}
	return nil
}

func knownThread(records []model.ExpectedRecord) string {
	for _, r := range records {
		if r.ThreadID != "" {
			return r.ThreadID
		}
	}
	return ""
}

func kickoffBody(identifiers []string) string {
	var b strings.Builder
	b.WriteString("Hello,\n\n")
	b.WriteString("We are reconciling our records and have not yet received the following invoices:\n\n")
	writeList(&b, identifiers)
	b.WriteString("\nPlease reply to this message with copies attached.\n\nThank you.")
	return b.String()
}

func reminderBody(identifiers []string) string {
	var b strings.Builder
	b.WriteString("Hello,\n\n")
	b.WriteString("This is a reminder that the following invoices are still outstanding:\n\n")
	writeList(&b, identifiers)
	b.WriteString("\nPlease reply with copies attached at your earliest convenience.\n\nThank you.")
	return b.String()
}

func writeList(b *strings.Builder, identifiers []string) {
	for _, id := range identifiers {
		b.WriteString("- ")
		b.WriteString(id)
		b.WriteString("\n")
	}
}
