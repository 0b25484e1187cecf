package storage

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/invoice-chaser/internal/common"
	"github.com/Veraticus/invoice-chaser/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStorage_ReportItems(t *testing.T) {
	store, clock := createTestStorage(t)
	ctx := context.Background()

	draft := &model.ReportItem{
		ID:         "item-1",
		Kind:       model.ItemDraft,
		Status:     model.ItemPending,
		State:      model.StateAwaitingApproval,
		Sender:     "a@x",
		ThreadID:   "thread-1",
		Draft:      "Thanks for INV-A.",
		MessageIDs: []string{"m1", "m2"},
		Matched:    []string{"INV-A"},
		Missing:    []string{"INV-B"},
		Updates:    []model.RecordUpdate{{Identifier: "INV-A", Status: model.StatusSatisfied}},
		Filenames:  map[string]string{"INV-A": "a.pdf"},
	}
	require.NoError(t, store.SaveItem(ctx, draft))

	clock.now = testEpoch.Add(time.Minute)
	review := &model.ReportItem{
		ID:         "item-2",
		Kind:       model.ItemManualReview,
		Status:     model.ItemPending,
		State:      model.StateArchiveFlagged,
		Sender:     "b@y",
		MessageIDs: []string{"m3"},
		Reason:     "archive attachment",
	}
	require.NoError(t, store.SaveItem(ctx, review))

	got, err := store.GetItem(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, draft.Draft, got.Draft)
	assert.Equal(t, draft.Updates, got.Updates)
	assert.Equal(t, draft.Filenames, got.Filenames)

	pending, err := store.PendingItems(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "item-1", pending[0].ID)
	assert.Equal(t, "item-2", pending[1].ID)

	ids, err := store.PendingMessageIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"m1": true, "m2": true, "m3": true}, ids)

	// Resolving an item drops it and its messages from the pending views.
	draft.Status = model.ItemApplied
	draft.State = model.StateApplied
	require.NoError(t, store.SaveItem(ctx, draft))

	pending, err = store.PendingItems(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "item-2", pending[0].ID)

	ids, err = store.PendingMessageIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"m3": true}, ids)

	_, err = store.GetItem(ctx, "item-404")
	assert.ErrorIs(t, err, common.ErrItemNotFound)
}

func TestSQLiteStorage_SaveItemValidation(t *testing.T) {
	store, _ := createTestStorage(t)
	ctx := context.Background()

	assert.ErrorIs(t, store.SaveItem(ctx, nil), ErrNilParameter)
	assert.ErrorIs(t, store.SaveItem(ctx, &model.ReportItem{Kind: model.ItemLog}), ErrInvalidItem)
	assert.ErrorIs(t, store.SaveItem(ctx, &model.ReportItem{ID: "x", Kind: "BOGUS"}), ErrInvalidItem)
}
