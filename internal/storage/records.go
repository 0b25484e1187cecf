package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/invoice-chaser/internal/common"
	"github.com/Veraticus/invoice-chaser/internal/model"
	"github.com/Veraticus/invoice-chaser/internal/reminder"
	"github.com/Veraticus/invoice-chaser/internal/service"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

const recordColumns = `id, identifier, sender, amount, status, issuer, client_tag, tax_id,
	thread_id, filename, last_reminder_at, satisfied_at`

// Add inserts a new expected record. Status defaults to AWAITING.
func (s *SQLiteStorage) Add(ctx context.Context, record *model.ExpectedRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRecord(record); err != nil {
		return err
	}
	if record.Status == "" {
		record.Status = model.StatusAwaiting
	}

	return s.addTx(ctx, s.db, record)
}

// AddAll inserts records in a single transaction. Records whose identifier
// already exists are skipped and reported back.
func (s *SQLiteStorage) AddAll(ctx context.Context, records []model.ExpectedRecord) (added int, skipped []string, err error) {
	if err := validateContext(ctx); err != nil {
		return 0, nil, err
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		for i := range records {
			r := &records[i]
			if err := validateRecord(r); err != nil {
				return fmt.Errorf("record at index %d: %w", i, err)
			}
			if r.Status == "" {
				r.Status = model.StatusAwaiting
			}
			if err := s.addTx(ctx, tx, r); err != nil {
				if errors.Is(err, common.ErrDuplicateEntry) {
					skipped = append(skipped, r.Identifier)
					continue
				}
				return err
			}
			added++
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}

	return added, skipped, nil
}

func (s *SQLiteStorage) addTx(ctx context.Context, q queryable, record *model.ExpectedRecord) error {
	res, err := q.ExecContext(ctx, `
		INSERT INTO records (identifier, sender, amount, status, issuer, client_tag, tax_id,
			thread_id, filename, last_reminder_at, satisfied_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, record.Identifier, record.Sender, record.Amount.String(), string(record.Status),
		record.Tags.Issuer, record.Tags.Client, record.Tags.TaxID,
		record.ThreadID, record.Filename, nullTime(record.LastReminderAt), nullTime(record.SatisfiedAt))
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("%w: identifier %s", common.ErrDuplicateEntry, record.Identifier)
		}
		return fmt.Errorf("failed to insert record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read record id: %w", err)
	}
	record.ID = id

	return nil
}

// RecordsAwaiting returns a sender's outstanding records in insertion order.
func (s *SQLiteStorage) RecordsAwaiting(ctx context.Context, sender string) ([]model.ExpectedRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(sender, "sender"); err != nil {
		return nil, err
	}

	return s.ListRecords(ctx, service.RecordFilter{Sender: sender, Status: model.StatusAwaiting})
}

// AllRecords returns the whole ledger in insertion order.
func (s *SQLiteStorage) AllRecords(ctx context.Context) ([]model.ExpectedRecord, error) {
	return s.ListRecords(ctx, service.RecordFilter{})
}

// ListRecords returns records matching filter in insertion order.
func (s *SQLiteStorage) ListRecords(ctx context.Context, filter service.RecordFilter) ([]model.ExpectedRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, filter.Status)
	}

	var (
		where []string
		args  []any
	)
	if filter.Sender != "" {
		where = append(where, "sender = ?")
		args = append(args, filter.Sender)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := "SELECT " + recordColumns + " FROM records"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []model.ExpectedRecord{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

// GetRecord looks a record up by identifier.
func (s *SQLiteStorage) GetRecord(ctx context.Context, identifier string) (*model.ExpectedRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(identifier, "identifier"); err != nil {
		return nil, err
	}

	return s.getRecordTx(ctx, s.db, identifier)
}

func (s *SQLiteStorage) getRecordTx(ctx context.Context, q queryable, identifier string) (*model.ExpectedRecord, error) {
	row := q.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM records WHERE identifier = ?", identifier)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: record %s", common.ErrNotFound, identifier)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// MarkSatisfied flips an awaiting record to SATISFIED, stamping the
// satisfaction time and, when given, the filename and thread it arrived on.
// A record that is already satisfied is left untouched.
func (s *SQLiteStorage) MarkSatisfied(ctx context.Context, identifier, filename, threadID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(identifier, "identifier"); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE records SET
				status = 'SATISFIED',
				satisfied_at = ?,
				filename = CASE WHEN ? = '' THEN filename ELSE ? END,
				thread_id = CASE WHEN ? = '' THEN thread_id ELSE ? END
			WHERE identifier = ? AND status = 'AWAITING'
		`, s.now(), filename, filename, threadID, threadID, identifier)
		if err != nil {
			return fmt.Errorf("failed to mark record satisfied: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if n == 1 {
			return nil
		}

		existing, err := s.getRecordTx(ctx, tx, identifier)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: %s (%s)", common.ErrAlreadySatisfied, identifier, existing.Status)
	})
}

// TouchReminder stamps every awaiting record of sender with the current time.
func (s *SQLiteStorage) TouchReminder(ctx context.Context, sender string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(sender, "sender"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE records SET last_reminder_at = ?
		WHERE sender = ? AND status = 'AWAITING'
	`, s.now(), sender)
	if err != nil {
		return fmt.Errorf("failed to stamp reminder: %w", err)
	}
	return nil
}

// SendersDue returns the senders owed a reminder under cadence.
func (s *SQLiteStorage) SendersDue(ctx context.Context, cadence time.Duration) ([]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if cadence < 0 {
		return nil, fmt.Errorf("%w: cadence", ErrNegativeDuration)
	}

	awaiting, err := s.ListRecords(ctx, service.RecordFilter{Status: model.StatusAwaiting})
	if err != nil {
		return nil, err
	}

	return reminder.DueSenders(s.now(), cadence, awaiting), nil
}

// SetThread records the conversation thread for a sender's awaiting records.
func (s *SQLiteStorage) SetThread(ctx context.Context, sender, threadID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(sender, "sender"); err != nil {
		return err
	}
	if err := validateString(threadID, "threadID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE records SET thread_id = ?
		WHERE sender = ? AND status = 'AWAITING'
	`, threadID, sender)
	if err != nil {
		return fmt.Errorf("failed to set thread: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (model.ExpectedRecord, error) {
	var (
		r         model.ExpectedRecord
		amount    string
		status    string
		reminded  sql.NullTime
		satisfied sql.NullTime
	)

	err := row.Scan(
		&r.ID,
		&r.Identifier,
		&r.Sender,
		&amount,
		&status,
		&r.Tags.Issuer,
		&r.Tags.Client,
		&r.Tags.TaxID,
		&r.ThreadID,
		&r.Filename,
		&reminded,
		&satisfied,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return r, err
	}
	if err != nil {
		return r, fmt.Errorf("failed to scan record: %w", err)
	}

	r.Status = model.RecordStatus(status)
	r.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return r, fmt.Errorf("invalid amount %q for %s: %w", amount, r.Identifier, err)
	}
	if reminded.Valid {
		t := reminded.Time
		r.LastReminderAt = &t
	}
	if satisfied.Valid {
		t := satisfied.Time
		r.SatisfiedAt = &t
	}

	return r, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
