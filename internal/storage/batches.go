package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ledgersift/ledgersift/internal/common"
	"github.com/ledgersift/ledgersift/internal/model"
)

// CreateBatch persists a new batch with all its items in one database
// transaction. TotalItems is fixed here and never changes afterward.
func (s *SQLiteStorage) CreateBatch(ctx context.Context, filename string, items []model.Payload) (*model.UploadBatch, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: items", ErrEmptySlice)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	result, err := tx.ExecContext(ctx, `
		INSERT INTO upload_batches (filename, total_items, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		filename, len(items), model.BatchPending, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert batch: %w", err)
	}

	batchID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get batch ID: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO upload_items (batch_id, payload, created_at) VALUES (?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, payload := range items {
		payloadJSON, marshalErr := json.Marshal(payload)
		if marshalErr != nil {
			return nil, fmt.Errorf("failed to encode payload %d: %w", i, marshalErr)
		}
		if _, err := stmt.ExecContext(ctx, batchID, string(payloadJSON), now); err != nil {
			return nil, fmt.Errorf("failed to insert item %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit batch: %w", err)
	}

	return &model.UploadBatch{
		ID:            batchID,
		Filename:      filename,
		TotalItems:    len(items),
		Status:        model.BatchPending,
		LowConfidence: []model.ClassificationResult{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// GetBatch returns a point-in-time snapshot of one batch, or
// common.ErrBatchNotFound. The read never blocks the pipeline: it is a
// single-row select against counters the owning worker updates atomically.
func (s *SQLiteStorage) GetBatch(ctx context.Context, id int64) (*model.UploadBatch, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, batchSelect+` WHERE id = ?`, id)
	batch, err := scanBatch(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: batch %d", common.ErrBatchNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query batch: %w", err)
	}
	return batch, nil
}

// ListBatches returns batch history, most recent first.
func (s *SQLiteStorage) ListBatches(ctx context.Context, limit int) ([]model.UploadBatch, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, batchSelect+` ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var batches []model.UploadBatch
	for rows.Next() {
		batch, scanErr := scanBatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", scanErr)
		}
		batches = append(batches, *batch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating batches: %w", err)
	}
	return batches, nil
}

// GetBatchItems returns all items of a batch in insertion order.
func (s *SQLiteStorage) GetBatchItems(ctx context.Context, batchID int64) ([]model.UploadItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, batch_id, payload, processed, saved, error, created_at
		FROM upload_items
		WHERE batch_id = ?
		ORDER BY id`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.UploadItem
	for rows.Next() {
		var (
			item        model.UploadItem
			payloadJSON string
		)
		if err := rows.Scan(
			&item.ID,
			&item.BatchID,
			&payloadJSON,
			&item.Processed,
			&item.Saved,
			&item.Error,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		if err := json.Unmarshal([]byte(payloadJSON), &item.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode payload for item %d: %w", item.ID, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	return items, nil
}

// SetBatchStatus moves a batch forward in its lifecycle. Terminal states
// are never overwritten, which keeps transitions one-directional.
func (s *SQLiteStorage) SetBatchStatus(ctx context.Context, id int64, status model.BatchStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE upload_batches
		SET status = ?, updated_at = ?
		WHERE id = ? AND status NOT IN (?, ?)`,
		status, time.Now(), id, model.BatchCompleted, model.BatchFailed)
	if err != nil {
		return fmt.Errorf("failed to update batch status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count updated rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: batch %d", common.ErrBatchNotFound, id)
	}
	return nil
}

// SetBatchProgress updates the monotonically non-decreasing counters.
func (s *SQLiteStorage) SetBatchProgress(ctx context.Context, id int64, processed, saved int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCounters(processed, saved); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE upload_batches SET processed = ?, saved = ?, updated_at = ? WHERE id = ?`,
		processed, saved, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update batch progress: %w", err)
	}
	return nil
}

// CompleteBatch sets the final counters, status, and low-confidence list in
// one atomic update.
func (s *SQLiteStorage) CompleteBatch(ctx context.Context, id int64, processed, saved int, lowConfidence []model.ClassificationResult) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCounters(processed, saved); err != nil {
		return err
	}
	if lowConfidence == nil {
		lowConfidence = []model.ClassificationResult{}
	}

	lowJSON, err := json.Marshal(lowConfidence)
	if err != nil {
		return fmt.Errorf("failed to encode low-confidence results: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE upload_batches
		SET processed = ?, saved = ?, status = ?, low_confidence = ?, updated_at = ?
		WHERE id = ?`,
		processed, saved, model.BatchCompleted, string(lowJSON), time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to complete batch: %w", err)
	}
	return nil
}

// MarkItemProcessed marks one item processed with an optional error string.
// An empty string clears a previous error; the saved flag is left alone so
// it can be set later by MarkItemsSaved.
func (s *SQLiteStorage) MarkItemProcessed(ctx context.Context, itemID int64, itemErr string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE upload_items SET processed = 1, error = ? WHERE id = ?`,
		itemErr, itemID)
	if err != nil {
		return fmt.Errorf("failed to mark item processed: %w", err)
	}
	return nil
}

// MarkItemsSaved flags items whose transactions have been committed.
func (s *SQLiteStorage) MarkItemsSaved(ctx context.Context, itemIDs []int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(itemIDs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `UPDATE upload_items SET saved = 1, processed = 1 WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, id := range itemIDs {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("failed to mark item %d saved: %w", id, err)
		}
	}

	return tx.Commit()
}

const batchSelect = `
	SELECT id, filename, total_items, processed, saved, status, low_confidence, created_at, updated_at
	FROM upload_batches`

func scanBatch(row rowScanner) (*model.UploadBatch, error) {
	var (
		batch   model.UploadBatch
		lowJSON string
	)
	if err := row.Scan(
		&batch.ID,
		&batch.Filename,
		&batch.TotalItems,
		&batch.Processed,
		&batch.Saved,
		&batch.Status,
		&lowJSON,
		&batch.CreatedAt,
		&batch.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(lowJSON), &batch.LowConfidence); err != nil {
		return nil, fmt.Errorf("failed to decode low-confidence results: %w", err)
	}
	return &batch, nil
}
