package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ledgersift/ledgersift/internal/model"
)

// GetCategories returns every category with its examples, ordered by
// insertion (category id, then example position). Centroids are not
// persisted; callers recompute them from the texts.
func (s *SQLiteStorage) GetCategories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	index := make(map[int64]int)
	for rows.Next() {
		var cat model.Category
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		index[cat.ID] = len(categories)
		categories = append(categories, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	exRows, err := s.db.QueryContext(ctx,
		`SELECT category_id, example FROM category_examples ORDER BY category_id, position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query category examples: %w", err)
	}
	defer func() { _ = exRows.Close() }()

	for exRows.Next() {
		var (
			categoryID int64
			example    string
		)
		if err := exRows.Scan(&categoryID, &example); err != nil {
			return nil, fmt.Errorf("failed to scan category example: %w", err)
		}
		if i, ok := index[categoryID]; ok {
			categories[i].Examples = append(categories[i].Examples, example)
		}
	}
	if err := exRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category examples: %w", err)
	}

	return categories, nil
}

// SaveCategory upserts a category by name (case-insensitive) and replaces
// its example list in one transaction. The category's ID is filled in.
func (s *SQLiteStorage) SaveCategory(ctx context.Context, category *model.Category) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCategory(category); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM categories WHERE name = ? COLLATE NOCASE`,
		category.Name).Scan(&id)
	switch {
	case err == nil:
		// existing category keeps its row; only examples change
	case err == sql.ErrNoRows:
		result, insertErr := tx.ExecContext(ctx,
			`INSERT INTO categories (name, created_at) VALUES (?, ?)`,
			category.Name, time.Now())
		if insertErr != nil {
			return fmt.Errorf("failed to insert category: %w", insertErr)
		}
		id, insertErr = result.LastInsertId()
		if insertErr != nil {
			return fmt.Errorf("failed to get category ID: %w", insertErr)
		}
	default:
		return fmt.Errorf("failed to look up category: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM category_examples WHERE category_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear category examples: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO category_examples (category_id, position, example) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for pos, example := range category.Examples {
		if _, err := stmt.ExecContext(ctx, id, pos, example); err != nil {
			return fmt.Errorf("failed to insert example %d: %w", pos, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit category: %w", err)
	}

	category.ID = id
	return nil
}
