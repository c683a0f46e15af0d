package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
const ExpectedSchemaVersion = 2

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS transactions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					description TEXT NOT NULL DEFAULT '',
					amount REAL,
					date DATETIME,
					user_label TEXT NOT NULL DEFAULT '',
					predicted_category TEXT NOT NULL DEFAULT '',
					predicted_score REAL NOT NULL DEFAULT 0,
					entities TEXT NOT NULL DEFAULT '[]',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transactions_description ON transactions(description)`,
				`CREATE INDEX idx_transactions_created_at ON transactions(created_at)`,

				`CREATE TABLE IF NOT EXISTS categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL UNIQUE COLLATE NOCASE,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS category_examples (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					category_id INTEGER NOT NULL,
					position INTEGER NOT NULL,
					example TEXT NOT NULL,
					FOREIGN KEY (category_id) REFERENCES categories(id) ON DELETE CASCADE
				)`,
				`CREATE INDEX idx_category_examples_category_id ON category_examples(category_id)`,

				`CREATE TABLE IF NOT EXISTS upload_batches (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					filename TEXT NOT NULL DEFAULT '',
					total_items INTEGER NOT NULL DEFAULT 0,
					processed INTEGER NOT NULL DEFAULT 0,
					saved INTEGER NOT NULL DEFAULT 0,
					status TEXT NOT NULL DEFAULT 'PENDING',
					low_confidence TEXT NOT NULL DEFAULT '[]',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS upload_items (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					batch_id INTEGER NOT NULL,
					payload TEXT NOT NULL DEFAULT '{}',
					processed INTEGER NOT NULL DEFAULT 0,
					saved INTEGER NOT NULL DEFAULT 0,
					error TEXT NOT NULL DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (batch_id) REFERENCES upload_batches(id) ON DELETE CASCADE
				)`,
				`CREATE INDEX idx_upload_items_batch_id ON upload_items(batch_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Seed default taxonomy",
		Up: func(tx *sql.Tx) error {
			var count int
			if err := tx.QueryRow(`SELECT COUNT(*) FROM categories`).Scan(&count); err != nil {
				return fmt.Errorf("failed to count categories: %w", err)
			}
			if count > 0 {
				return nil
			}

			seed := []struct {
				name     string
				examples []string
			}{
				{"Food & Drink", []string{"coffee", "restaurant", "cafe", "lunch"}},
				{"Groceries", []string{"supermarket", "grocery", "daily essentials"}},
				{"Transport", []string{"uber", "taxi", "bus", "fuel"}},
				{"Utilities", []string{"internet", "electricity", "water"}},
				{"Salary", []string{"salary", "payroll"}},
			}

			for _, cat := range seed {
				result, err := tx.Exec(`INSERT INTO categories (name) VALUES (?)`, cat.name)
				if err != nil {
					return fmt.Errorf("failed to seed category %q: %w", cat.name, err)
				}
				id, err := result.LastInsertId()
				if err != nil {
					return fmt.Errorf("failed to get category ID: %w", err)
				}
				for pos, example := range cat.examples {
					if _, err := tx.Exec(
						`INSERT INTO category_examples (category_id, position, example) VALUES (?, ?, ?)`,
						id, pos, example,
					); err != nil {
						return fmt.Errorf("failed to seed example for %q: %w", cat.name, err)
					}
				}
			}
			return nil
		},
	},
}

// Migrate brings the database schema up to the expected version.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if currentVersion >= ExpectedSchemaVersion {
		return nil
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Description, err)
		}

		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to set schema version %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		slog.Info("applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	return nil
}
