package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Veraticus/invoice-chaser/internal/common"
	"github.com/Veraticus/invoice-chaser/internal/model"
)

// SaveItem inserts or replaces a report item and the message ids it covers.
func (s *SQLiteStorage) SaveItem(ctx context.Context, item *model.ReportItem) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateItem(item); err != nil {
		return err
	}

	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode report item: %w", err)
	}

	created := item.CreatedAt
	if created.IsZero() {
		created = s.now()
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO report_items (id, kind, status, sender, thread_id, payload, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				status = excluded.status,
				thread_id = excluded.thread_id,
				payload = excluded.payload,
				updated_at = excluded.updated_at
		`, item.ID, string(item.Kind), string(item.Status), item.Sender, item.ThreadID,
			string(payload), created.UTC(), s.now())
		if err != nil {
			return fmt.Errorf("failed to save report item: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM report_item_messages WHERE item_id = ?`, item.ID); err != nil {
			return fmt.Errorf("failed to reset item messages: %w", err)
		}
		for _, msgID := range item.MessageIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO report_item_messages (item_id, message_id) VALUES (?, ?)
			`, item.ID, msgID); err != nil {
				return fmt.Errorf("failed to link message %s: %w", msgID, err)
			}
		}
		return nil
	})
}

// GetItem loads a report item by id.
func (s *SQLiteStorage) GetItem(ctx context.Context, id string) (*model.ReportItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM report_items WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", common.ErrItemNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report item: %w", err)
	}

	return decodeItem(payload)
}

// PendingItems returns items still waiting on the operator, oldest first.
func (s *SQLiteStorage) PendingItems(ctx context.Context) ([]model.ReportItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM report_items
		WHERE status = ?
		ORDER BY created_at, id
	`, string(model.ItemPending))
	if err != nil {
		return nil, fmt.Errorf("failed to query report items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []model.ReportItem{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan report item: %w", err)
		}
		item, err := decodeItem(payload)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating report items: %w", err)
	}

	return items, nil
}

// PendingMessageIDs returns the ids of messages already covered by a pending
// report item, so a later cycle does not queue them twice.
func (s *SQLiteStorage) PendingMessageIDs(ctx context.Context) (map[string]bool, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.message_id
		FROM report_item_messages m
		JOIN report_items i ON i.id = m.item_id
		WHERE i.status = ?
	`, string(model.ItemPending))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan message id: %w", err)
		}
		ids[id] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending messages: %w", err)
	}

	return ids, nil
}

func decodeItem(payload string) (*model.ReportItem, error) {
	var item model.ReportItem
	if err := json.Unmarshal([]byte(payload), &item); err != nil {
		return nil, fmt.Errorf("failed to decode report item: %w", err)
	}
	return &item, nil
}
