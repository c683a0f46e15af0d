package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ledgersift/ledgersift/internal/common"
	"github.com/ledgersift/ledgersift/internal/model"
	"github.com/ledgersift/ledgersift/internal/service"
)

// SaveTransactions inserts multiple transactions in one database
// transaction, satisfying the bulk-insert-in-one-round-trip contract.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (
			description, amount, date, user_label,
			predicted_category, predicted_score, entities, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now()
	for i := range transactions {
		txn := &transactions[i]
		entitiesJSON, marshalErr := marshalEntities(txn.Entities)
		if marshalErr != nil {
			return marshalErr
		}

		createdAt := txn.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}

		if _, err := stmt.ExecContext(ctx,
			txn.Description,
			txn.Amount,
			nullableTime(txn.Date),
			txn.UserLabel,
			txn.PredictedCategory,
			txn.PredictedScore,
			entitiesJSON,
			createdAt,
		); err != nil {
			return fmt.Errorf("failed to insert transaction %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// CreateTransaction inserts a single transaction and fills in its ID.
func (s *SQLiteStorage) CreateTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}

	entitiesJSON, err := marshalEntities(txn.Entities)
	if err != nil {
		return err
	}

	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (
			description, amount, date, user_label,
			predicted_category, predicted_score, entities, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.Description,
		txn.Amount,
		nullableTime(txn.Date),
		txn.UserLabel,
		txn.PredictedCategory,
		txn.PredictedScore,
		entitiesJSON,
		txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get transaction ID: %w", err)
	}
	txn.ID = id
	return nil
}

// GetTransactionByID returns one transaction or common.ErrNotFound.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id int64) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, transactionSelect+` WHERE id = ?`, id)
	txn, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: transaction %d", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction: %w", err)
	}
	return txn, nil
}

// GetTransactions lists transactions, most recent first.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		transactionSelect+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

// GetTransactionsByDescription returns all transactions whose description
// matches exactly.
func (s *SQLiteStorage) GetTransactionsByDescription(ctx context.Context, description string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		transactionSelect+` WHERE description = ? ORDER BY created_at DESC, id DESC`,
		description)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

// SetUserLabelByDescription sets the user label on every transaction with a
// matching description, leaving predicted fields untouched. Returns the
// number of rows updated.
func (s *SQLiteStorage) SetUserLabelByDescription(ctx context.Context, description, label string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(label, "label"); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET user_label = ? WHERE description = ?`,
		label, description)
	if err != nil {
		return 0, fmt.Errorf("failed to update user labels: %w", err)
	}

	updated, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count updated rows: %w", err)
	}
	return updated, nil
}

// DeleteTransaction removes one transaction.
func (s *SQLiteStorage) DeleteTransaction(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count deleted rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: transaction %d", common.ErrNotFound, id)
	}
	return nil
}

const transactionSelect = `
	SELECT id, description, amount, date, user_label,
	       predicted_category, predicted_score, entities, created_at
	FROM transactions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var (
		txn          model.Transaction
		amount       sql.NullFloat64
		date         sql.NullTime
		entitiesJSON string
	)
	if err := row.Scan(
		&txn.ID,
		&txn.Description,
		&amount,
		&date,
		&txn.UserLabel,
		&txn.PredictedCategory,
		&txn.PredictedScore,
		&entitiesJSON,
		&txn.CreatedAt,
	); err != nil {
		return nil, err
	}

	if amount.Valid {
		txn.Amount = &amount.Float64
	}
	if date.Valid {
		txn.Date = &date.Time
	}
	if err := json.Unmarshal([]byte(entitiesJSON), &txn.Entities); err != nil {
		return nil, fmt.Errorf("failed to decode entities: %w", err)
	}
	return &txn, nil
}

func scanTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

func marshalEntities(entities []model.Entity) (string, error) {
	if entities == nil {
		entities = []model.Entity{}
	}
	data, err := json.Marshal(entities)
	if err != nil {
		return "", fmt.Errorf("failed to encode entities: %w", err)
	}
	return string(data), nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
