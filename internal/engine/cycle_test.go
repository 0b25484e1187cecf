package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/Veraticus/invoice-chaser/internal/common"
	"github.com/Veraticus/invoice-chaser/internal/model"
	"github.com/Veraticus/invoice-chaser/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCycle_PartitionsSenderRecords(t *testing.T) {
	h := newHarness(t,
		testutil.Record("INV-A", "billing@hotel.example", "100"),
		testutil.Record("INV-B", "billing@hotel.example", "200"),
		testutil.Record("INV-C", "billing@hotel.example", "300"),
	)
	ctx := context.Background()

	h.transport.Deliver(message("m1", "Grand Hotel <billing@hotel.example>", "t1", "march.pdf"))
	h.extractor.On("m1/march.pdf", "INV-C", "INV-A")

	items, err := h.engine.RunCycle(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, model.ItemDraft, item.Kind)
	assert.Equal(t, model.ItemPending, item.Status)
	assert.Equal(t, model.StateAwaitingApproval, item.State)
	assert.Equal(t, "billing@hotel.example", item.Sender)
	assert.Equal(t, "t1", item.ThreadID)
	assert.Equal(t, []string{"m1"}, item.MessageIDs)
	assert.Equal(t, []string{"INV-C", "INV-A"}, item.Matched)
	assert.Equal(t, []string{"INV-B"}, item.Missing)
	assert.Equal(t, []model.RecordUpdate{
		{Identifier: "INV-C", Status: model.StatusSatisfied},
		{Identifier: "INV-A", Status: model.StatusSatisfied},
	}, item.Updates)
	assert.Equal(t, map[string]string{"INV-A": "march.pdf", "INV-C": "march.pdf"}, item.Filenames)
	assert.Equal(t, "To billing@hotel.example: received [INV-C, INV-A], missing [INV-B]", item.Draft)

	// Nothing is sent or committed before approval.
	assert.Empty(t, h.transport.Replies)
	assert.Empty(t, h.transport.Consumed)
	assert.Equal(t, model.StatusAwaiting, h.db.MustRecord("INV-A").Status)

	require.Len(t, h.extractor.Calls, 1)
	assert.Equal(t, "Invoices\nPlease find attached.", h.extractor.Calls[0].ContextText)

	pending, err := h.engine.PendingItems(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, item.ID, pending[0].ID)
}

func TestRunCycle_FuzzyIdentifiers(t *testing.T) {
	h := newHarness(t,
		testutil.Record("HOTEL-2024-00123", "a@x", "100"),
		testutil.Record("INV-1001", "a@x", "100"),
	)
	h.transport.Deliver(message("m1", "a@x", "t1", "scan.jpg"))
	h.extractor.On("m1/scan.jpg", "H0TEL 2024 00123", "INV1001")

	items, err := h.engine.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, []string{"HOTEL-2024-00123", "INV-1001"}, items[0].Matched)
	assert.Empty(t, items[0].Missing)
}

func TestRunCycle_GroupsMessagesBySender(t *testing.T) {
	h := newHarness(t,
		testutil.Record("INV-A", "a@x", "100"),
		testutil.Record("INV-B", "a@x", "100"),
		testutil.Record("INV-Z", "z@y", "100"),
	)
	h.transport.Deliver(
		message("m1", "Alice <a@x>", "t1", "one.txt"),
		message("m2", "z@y", "t9", "z.pdf"),
		message("m3", "Accounts <a@x>", "t2", "b.pdf"),
		message("m4", "a@x", "t3", "a.pdf"),
	)
	h.extractor.On("m3/b.pdf", "INV-B")
	h.extractor.On("m4/a.pdf", "INV-A")
	h.extractor.On("m2/z.pdf", "INV-Q")

	items, err := h.engine.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)

	// a@x: the text-only attachment is unreadable, the rest share one draft.
	assert.Equal(t, model.ItemManualReview, items[0].Kind)
	assert.Equal(t, model.StateUnreadable, items[0].State)
	assert.Equal(t, []string{"m1"}, items[0].MessageIDs)

	assert.Equal(t, model.ItemDraft, items[1].Kind)
	assert.Equal(t, "a@x", items[1].Sender)
	assert.Equal(t, "t2", items[1].ThreadID, "thread of the first message that produced identifiers")
	assert.Equal(t, []string{"m3", "m4"}, items[1].MessageIDs)
	assert.Equal(t, []string{"INV-B", "INV-A"}, items[1].Matched)
	assert.Empty(t, items[1].Missing)
	assert.Equal(t, map[string]string{"INV-A": "a.pdf", "INV-B": "b.pdf"}, items[1].Filenames)

	assert.Equal(t, model.ItemDraft, items[2].Kind)
	assert.Equal(t, "z@y", items[2].Sender)
	assert.Empty(t, items[2].Matched)
	assert.Equal(t, []string{"INV-Z"}, items[2].Missing)
}

func TestRunCycle_AttachmentRouting(t *testing.T) {
	tests := []struct {
		setup       func(h *harness)
		name        string
		wantKind    model.ItemKind
		wantState   model.MessageState
		wantReason  string
		wantArchive string
		extractions int
	}{
		{
			name: "archive only is flagged for manual review",
			setup: func(h *harness) {
				h.transport.Deliver(message("m1", "a@x", "t1", "march.zip", "april.rar"))
			},
			wantKind:    model.ItemManualReview,
			wantState:   model.StateArchiveFlagged,
			wantReason:  "archive attachment needs manual extraction: march.zip, april.rar",
			extractions: 0,
		},
		{
			name: "documents with an archive are processed and the archive noted",
			setup: func(h *harness) {
				h.transport.Deliver(message("m1", "a@x", "t1", "a.pdf", "rest.zip"))
				h.extractor.On("m1/a.pdf", "INV-A")
			},
			wantKind:    model.ItemDraft,
			wantState:   model.StateAwaitingApproval,
			wantArchive: "archives not opened: rest.zip",
			extractions: 1,
		},
		{
			name: "only other attachments are unreadable",
			setup: func(h *harness) {
				h.transport.Deliver(message("m1", "a@x", "t1", "notes.docx"))
			},
			wantKind:    model.ItemManualReview,
			wantState:   model.StateUnreadable,
			wantReason:  "no readable document attached: notes.docx",
			extractions: 0,
		},
		{
			name: "documents that all fail conversion are unreadable",
			setup: func(h *harness) {
				h.converter.Unreadable["m1/a.pdf"] = true
				h.converter.Unreadable["m1/b.pdf"] = true
				h.transport.Deliver(message("m1", "a@x", "t1", "a.pdf", "b.pdf"))
			},
			wantKind:    model.ItemManualReview,
			wantState:   model.StateUnreadable,
			wantReason:  "could not convert any document: a.pdf, b.pdf",
			extractions: 0,
		},
		{
			name: "one convertible document is enough",
			setup: func(h *harness) {
				h.converter.Unreadable["m1/a.pdf"] = true
				h.transport.Deliver(message("m1", "a@x", "t1", "a.pdf", "b.pdf"))
				h.extractor.On("m1/b.pdf", "INV-A")
			},
			wantKind:    model.ItemDraft,
			wantState:   model.StateAwaitingApproval,
			extractions: 1,
		},
		{
			name: "a document without identifiers still gets a draft",
			setup: func(h *harness) {
				h.transport.Deliver(message("m1", "a@x", "t1", "cover.pdf"))
			},
			wantKind:    model.ItemDraft,
			wantState:   model.StateAwaitingApproval,
			extractions: 1,
		},
		{
			name: "a message without attachments still gets a draft",
			setup: func(h *harness) {
				h.transport.Deliver(message("m1", "a@x", "t1"))
			},
			wantKind:    model.ItemDraft,
			wantState:   model.StateAwaitingApproval,
			extractions: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testutil.Record("INV-A", "a@x", "100"))
			tt.setup(h)

			items, err := h.engine.RunCycle(context.Background())
			require.NoError(t, err)
			require.Len(t, items, 1)

			item := items[0]
			assert.Equal(t, tt.wantKind, item.Kind)
			assert.Equal(t, tt.wantState, item.State)
			assert.Equal(t, tt.wantReason, item.Reason)
			assert.Equal(t, tt.wantArchive, item.ArchiveNote)
			assert.Equal(t, model.ItemPending, item.Status)
			assert.Equal(t, "t1", item.ThreadID)
			assert.Len(t, h.extractor.Calls, tt.extractions)
			assert.Empty(t, h.transport.Consumed)
		})
	}
}

func TestRunCycle_DocumentsWithoutIdentifiers(t *testing.T) {
	tests := []struct {
		name        string
		attachments []string
		identifiers map[string][]string
		wantMatched []string
		wantMissing []string
	}{
		{
			name:        "cover letter alone",
			attachments: []string{"cover.pdf"},
			wantMissing: []string{"INV-A", "INV-B"},
		},
		{
			name:        "cover letter next to an invoice",
			attachments: []string{"cover.pdf", "invoice.pdf"},
			identifiers: map[string][]string{"m1/invoice.pdf": {"INV-B"}},
			wantMatched: []string{"INV-B"},
			wantMissing: []string{"INV-A"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t,
				testutil.Record("INV-A", "a@x", "100"),
				testutil.Record("INV-B", "a@x", "200"),
			)
			h.transport.Deliver(message("m1", "a@x", "t1", tt.attachments...))
			for path, ids := range tt.identifiers {
				h.extractor.On(path, ids...)
			}

			items, err := h.engine.RunCycle(context.Background())
			require.NoError(t, err)
			require.Len(t, items, 1)

			item := items[0]
			assert.Equal(t, model.ItemDraft, item.Kind)
			assert.Equal(t, model.StateAwaitingApproval, item.State)
			assert.Empty(t, item.Reason)
			assert.ElementsMatch(t, tt.wantMatched, item.Matched)
			assert.Equal(t, tt.wantMissing, item.Missing)
			assert.NotEmpty(t, item.Draft)
			assert.Len(t, h.extractor.Calls, len(tt.attachments))
			assert.Zero(t, h.metrics.ExtractionFailures())
		})
	}
}

func TestRunCycle_SenderWithNothingPending(t *testing.T) {
	h := newHarness(t, testutil.Record("INV-A", "a@x", "100"))
	h.transport.Deliver(message("m1", "Stranger <s@y>", "t1", "a.pdf"))

	items, err := h.engine.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, model.ItemLog, item.Kind)
	assert.Equal(t, model.ItemApplied, item.Status)
	assert.Equal(t, "no pending records for sender", item.Reason)
	assert.Equal(t, []string{"m1"}, h.transport.Consumed)
	assert.Empty(t, h.extractor.Calls)
	assert.Zero(t, h.drafter.Calls)
}

func TestRunCycle_ContactChange(t *testing.T) {
	h := newHarness(t, testutil.Record("INV-A", "a@x", "100"))
	h.transport.Deliver(message("m1", "a@x", "t1", "a.pdf"))
	h.extractor.Fields["m1/a.pdf"] = model.ExtractedFields{
		Identifiers:    []string{"INV-A"},
		ContactChanged: true,
		ContactNote:    "Send future invoices to accounts@x",
	}

	items, err := h.engine.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Send future invoices to accounts@x", items[0].ContactNote)
	assert.Equal(t, []string{"INV-A"}, items[0].Matched)
}

func TestRunCycle_SkipsQueuedMessages(t *testing.T) {
	h := newHarness(t,
		testutil.Record("INV-A", "a@x", "100"),
		testutil.Record("INV-B", "b@y", "100"),
	)
	ctx := context.Background()

	h.transport.Deliver(message("m1", "a@x", "t1", "a.pdf"))
	h.extractor.On("m1/a.pdf", "INV-A")

	first, err := h.engine.RunCycle(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	h.transport.Deliver(message("m2", "b@y", "t2", "b.pdf"))
	h.extractor.On("m2/b.pdf", "INV-B")

	second, err := h.engine.RunCycle(ctx)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "b@y", second[0].Sender)

	assert.Equal(t, []int{5, 6}, h.transport.FetchLimits)

	third, err := h.engine.RunCycle(ctx)
	require.NoError(t, err)
	assert.Empty(t, third)
}

func TestRunCycle_FetchLimit(t *testing.T) {
	h := newHarness(t, testutil.Record("INV-A", "a@x", "100"))
	for _, id := range []string{"m1", "m2", "m3", "m4", "m5", "m6", "m7"} {
		h.transport.Deliver(message(id, "a@x", "t-"+id))
	}

	items, err := h.engine.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, []string{"m1", "m2", "m3", "m4", "m5"}, items[0].MessageIDs)
}

func TestRunCycle_FetchFailure(t *testing.T) {
	h := newHarness(t, testutil.Record("INV-A", "a@x", "100"))
	h.transport.FetchErr = errors.New("connection reset")

	items, err := h.engine.RunCycle(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMaxRetries)
	assert.Nil(t, items)
	assert.Len(t, h.transport.FetchLimits, 2, "fetch is retried")
}

func TestRunCycle_DraftFailureIsReprocessed(t *testing.T) {
	h := newHarness(t, testutil.Record("INV-A", "a@x", "100"))
	ctx := context.Background()

	h.transport.Deliver(message("m1", "a@x", "t1", "a.pdf"))
	h.extractor.On("m1/a.pdf", "INV-A")
	h.drafter.DraftFunc = func(string, []string, []string) (string, error) {
		return "", errors.New("model overloaded")
	}

	items, err := h.engine.RunCycle(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, model.ItemFailed, items[0].Status)
	assert.Contains(t, items[0].Error, "model overloaded")
	assert.Equal(t, 2, h.drafter.Calls)

	pending, err := h.engine.PendingItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	h.drafter.DraftFunc = nil
	retry, err := h.engine.RunCycle(ctx)
	require.NoError(t, err)
	require.Len(t, retry, 1)
	assert.Equal(t, model.ItemPending, retry[0].Status)
	assert.Equal(t, []string{"m1"}, retry[0].MessageIDs)
}

func TestRunCycle_NoMessages(t *testing.T) {
	h := newHarness(t, testutil.Record("INV-A", "a@x", "100"))

	items, err := h.engine.RunCycle(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}
