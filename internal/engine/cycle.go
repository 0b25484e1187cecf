package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/invoice-chaser/internal/common"
	"github.com/Veraticus/invoice-chaser/internal/matcher"
	"github.com/Veraticus/invoice-chaser/internal/model"
	"github.com/Veraticus/invoice-chaser/internal/reconcile"
	"github.com/google/uuid"
)

// senderBatch is one sender's share of a cycle's messages.
type senderBatch struct {
	sender   string
	messages []model.InboundMessage
}

// extraction is what a message's readable documents yielded.
type extraction struct {
	files        map[string]string // extracted identifier -> attachment filename
	identifiers  []string
	contactNotes []string
	readable     int
}

// RunCycle fetches unread messages, reconciles them per sender, and queues
// one report item per sender plus a manual-review item for every message
// that cannot be read automatically. Nothing is sent and no record changes
// until an item is approved.
func (e *Engine) RunCycle(ctx context.Context) ([]model.ReportItem, error) {
	var items []model.ReportItem
	err := e.guard.Do(func() error {
		var err error
		items, err = e.runCycle(ctx)
		return err
	})
	return items, err
}

func (e *Engine) runCycle(ctx context.Context) (items []model.ReportItem, err error) {
	start := e.now()
	defer func() { e.metrics.CycleFinished(e.now().Sub(start), err) }()

	queued, err := e.items.PendingMessageIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load queued messages: %w", err)
	}

	// Queued messages stay unread until their item is resolved, so fetch
	// enough to see past them.
	limit := e.config.FetchLimit + len(queued)
	messages, err := common.WithRetryValue(ctx, func() ([]model.InboundMessage, error) {
		return e.transport.FetchUnread(ctx, limit)
	}, e.config.Retry)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	fresh := make([]model.InboundMessage, 0, len(messages))
	for _, msg := range messages {
		if queued[msg.ID] {
			e.logger.Debug("Message already queued", "message_id", msg.ID)
			continue
		}
		if len(fresh) == e.config.FetchLimit {
			break
		}
		fresh = append(fresh, msg)
	}
	e.metrics.MessagesFetched(len(fresh))

	items = []model.ReportItem{}
	if len(fresh) == 0 {
		e.logger.Info("No new messages")
		return items, nil
	}

	e.logger.Info("Starting reconciliation cycle", "messages", len(fresh))

	for _, batch := range groupBySender(fresh) {
		if err := ctx.Err(); err != nil {
			return items, err
		}

		for _, item := range e.processSender(ctx, batch) {
			if err := e.items.SaveItem(ctx, &item); err != nil {
				e.logger.Error("Failed to save report item",
					"sender", item.Sender,
					"kind", item.Kind,
					"error", err)
				item.Status = model.ItemFailed
				item.Error = err.Error()
			}
			e.metrics.ItemQueued(item.Kind, item.Status)
			items = append(items, item)
		}
	}

	e.logger.Info("Reconciliation cycle complete", "items", len(items))
	return items, nil
}

func groupBySender(messages []model.InboundMessage) []senderBatch {
	var batches []senderBatch
	index := make(map[string]int)

	for _, msg := range messages {
		sender := SenderAddress(msg.Sender)
		i, ok := index[sender]
		if !ok {
			i = len(batches)
			index[sender] = i
			batches = append(batches, senderBatch{sender: sender})
		}
		batches[i].messages = append(batches[i].messages, msg)
	}

	return batches
}

func (e *Engine) processSender(ctx context.Context, batch senderBatch) []model.ReportItem {
	log := e.logger.With("sender", batch.sender)

	awaiting, err := e.store.RecordsAwaiting(ctx, batch.sender)
	if err != nil {
		log.Error("Failed to load awaiting records", "error", err)
		item := e.newItem(model.ItemLog, batch.sender, batch.messages[0].ThreadID, batch.messages)
		item.Status = model.ItemFailed
		item.State = model.StateReceived
		item.Error = fmt.Sprintf("failed to load awaiting records: %v", err)
		return []model.ReportItem{item}
	}

	if len(awaiting) == 0 {
		log.Info("No pending records for sender", "messages", len(batch.messages))
		item := e.newItem(model.ItemLog, batch.sender, batch.messages[0].ThreadID, batch.messages)
		item.Reason = "no pending records for sender"
		item.Status = model.ItemApplied
		item.State = model.StateApplied
		if err := e.consume(ctx, item.MessageIDs); err != nil {
			item.Status = model.ItemFailed
			item.Error = err.Error()
		}
		return []model.ReportItem{item}
	}

	var (
		items        []model.ReportItem
		eligible     []model.InboundMessage
		identifiers  []string
		contactNotes []string
		archiveNotes []string
		threadID     string
	)
	files := make(map[string]string)

	for _, msg := range batch.messages {
		mlog := log.With("message_id", msg.ID)
		set := classifyMessage(msg)

		switch {
		case len(set.documents) == 0 && len(set.archives) > 0:
			mlog.Warn("Archive attachment needs manual review", "archives", filenames(set.archives))
			item := e.newItem(model.ItemManualReview, batch.sender, msg.ThreadID, []model.InboundMessage{msg})
			item.State = model.StateArchiveFlagged
			item.Reason = "archive attachment needs manual extraction: " + strings.Join(filenames(set.archives), ", ")
			items = append(items, item)
			continue

		case len(set.documents) == 0 && len(set.others) > 0:
			mlog.Warn("No readable document attached", "attachments", filenames(set.others))
			item := e.newItem(model.ItemManualReview, batch.sender, msg.ThreadID, []model.InboundMessage{msg})
			item.State = model.StateUnreadable
			item.Reason = "no readable document attached: " + strings.Join(filenames(set.others), ", ")
			items = append(items, item)
			continue
		}

		if len(set.documents) > 0 {
			ext := e.extractMessage(ctx, mlog, msg, set.documents)
			if ext.readable == 0 {
				item := e.newItem(model.ItemManualReview, batch.sender, msg.ThreadID, []model.InboundMessage{msg})
				item.State = model.StateUnreadable
				item.Reason = "could not convert any document: " + strings.Join(filenames(set.documents), ", ")
				items = append(items, item)
				continue
			}

			identifiers = append(identifiers, ext.identifiers...)
			contactNotes = append(contactNotes, ext.contactNotes...)
			for id, name := range ext.files {
				if _, ok := files[id]; !ok {
					files[id] = name
				}
			}
			if threadID == "" && len(ext.identifiers) > 0 {
				threadID = msg.ThreadID
			}
		}

		if len(set.archives) > 0 {
			archiveNotes = append(archiveNotes, "archives not opened: "+strings.Join(filenames(set.archives), ", "))
		}
		eligible = append(eligible, msg)
	}

	if len(eligible) == 0 {
		return items
	}
	if threadID == "" {
		threadID = eligible[0].ThreadID
	}

	outcome, claimedBy := reconcile.ReconcileWith(matcher.Matches, awaiting, identifiers)

	item := e.newItem(model.ItemDraft, batch.sender, threadID, eligible)
	item.State = model.StateAwaitingApproval
	item.Matched = outcome.Matched
	item.Missing = outcome.Missing
	item.Updates = outcome.Updates
	item.ContactNote = strings.Join(contactNotes, "; ")
	item.ArchiveNote = strings.Join(archiveNotes, "; ")
	item.Filenames = make(map[string]string, len(outcome.Matched))
	for _, id := range outcome.Matched {
		extracted := claimedBy[id]
		item.Filenames[id] = files[extracted]
		log.Debug("Matched identifier",
			"identifier", id,
			"extracted", extracted,
			"stage", matcher.Explain(id, extracted).Stage)
	}

	if item.ContactNote != "" {
		log.Warn("Sender reported a contact change", "note", item.ContactNote)
	}
	log.Info("Reconciled sender",
		"identifiers", len(identifiers),
		"matched", len(outcome.Matched),
		"missing", len(outcome.Missing))

	draft, err := common.WithRetryValue(ctx, func() (string, error) {
		return e.drafter.Draft(ctx, batch.sender, outcome.Missing, outcome.Matched, draftContext(eligible))
	}, e.config.Retry)
	if err != nil {
		log.Error("Failed to draft reply", "error", err)
		item.Status = model.ItemFailed
		item.State = model.StateResolved
		item.Error = fmt.Sprintf("failed to draft reply: %v", err)
	} else {
		item.Draft = draft
	}

	return append(items, item)
}

// extractMessage runs every document of msg through conversion and
// extraction. A document counts as readable once it converts to images; one
// that yields no identifiers simply contributes nothing.
func (e *Engine) extractMessage(ctx context.Context, log *slog.Logger, msg model.InboundMessage, documents []model.Attachment) extraction {
	ext := extraction{files: make(map[string]string)}
	text := messageContext(msg)

	for _, doc := range documents {
		images := e.converter.ToImages(ctx, doc.Path)
		if len(images) == 0 {
			log.Warn("Document produced no images", "filename", doc.Filename)
			e.metrics.ExtractionFailed()
			continue
		}

		ext.readable++

		fields := e.extractor.Extract(ctx, text, images)
		if fields.ContactChanged {
			note := strings.TrimSpace(fields.ContactNote)
			if note == "" {
				note = "contact change detected in " + doc.Filename
			}
			ext.contactNotes = append(ext.contactNotes, note)
		}

		if len(fields.Identifiers) == 0 {
			log.Info("No identifiers in document", "filename", doc.Filename)
			continue
		}

		log.Debug("Extracted identifiers", "filename", doc.Filename, "identifiers", fields.Identifiers)
		for _, id := range fields.Identifiers {
			ext.identifiers = append(ext.identifiers, id)
			if _, ok := ext.files[id]; !ok {
				ext.files[id] = doc.Filename
			}
		}
	}

	return ext
}

func (e *Engine) newItem(kind model.ItemKind, sender, threadID string, messages []model.InboundMessage) model.ReportItem {
	ids := make([]string, len(messages))
	for i, m := range messages {
		ids[i] = m.ID
	}
	return model.ReportItem{
		ID:         e.newID(),
		CreatedAt:  e.now().UTC(),
		Kind:       kind,
		Status:     model.ItemPending,
		State:      model.StateResolved,
		Sender:     sender,
		ThreadID:   threadID,
		MessageIDs: ids,
	}
}

func messageContext(msg model.InboundMessage) string {
	return strings.TrimSpace(msg.Subject + "\n" + msg.Snippet)
}

func draftContext(messages []model.InboundMessage) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		if text := messageContext(m); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n---\n")
}

func newItemID() string {
	return uuid.NewString()
}
