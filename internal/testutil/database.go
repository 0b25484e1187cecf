// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/invoice-chaser/internal/model"
	"github.com/Veraticus/invoice-chaser/internal/storage"
	"github.com/shopspring/decimal"
)

// TestDB is an in-memory ledger with a controllable clock.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
	now     time.Time
}

// SetupTestDB creates a migrated in-memory database seeded with records.
// The store clock starts at a fixed instant and only moves through Advance.
//
// Example:
//
//	db := testutil.SetupTestDB(t,
//		testutil.Record("INV-A", "billing@hotel.example", "120.50"),
//	)
func SetupTestDB(t *testing.T, records ...model.ExpectedRecord) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	db := &TestDB{
		Storage: store,
		t:       t,
		now:     time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC),
	}
	store.SetClock(db.Now)

	for i := range records {
		if err := store.Add(ctx, &records[i]); err != nil {
			t.Fatalf("failed to seed record %q: %v", records[i].Identifier, err)
		}
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return db
}

// Now returns the store's current time.
func (db *TestDB) Now() time.Time {
	return db.now
}

// Advance moves the store clock forward.
func (db *TestDB) Advance(d time.Duration) {
	db.now = db.now.Add(d)
}

// MustRecord loads a record or fails the test.
func (db *TestDB) MustRecord(identifier string) *model.ExpectedRecord {
	db.t.Helper()
	r, err := db.Storage.GetRecord(context.Background(), identifier)
	if err != nil {
		db.t.Fatalf("failed to load record %q: %v", identifier, err)
	}
	return r
}

// Record builds an awaiting record for seeding.
func Record(identifier, sender, amount string) model.ExpectedRecord {
	return model.ExpectedRecord{
		Identifier: identifier,
		Sender:     sender,
		Amount:     decimal.RequireFromString(amount),
		Status:     model.StatusAwaiting,
	}
}
