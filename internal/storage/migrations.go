package storage

import (
	"context"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the schema version this build reads and writes.
const ExpectedSchemaVersion = 2

// Migration is one schema step. Its statements run in a single transaction
// together with the user_version bump.
type Migration struct {
	Description string
	Statements  []string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial ledger schema",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS accounts (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				type TEXT NOT NULL,
				unit TEXT NOT NULL DEFAULT 'USD',
				parent_id TEXT REFERENCES accounts(id),
				created_at TEXT NOT NULL
			)`,

			`CREATE TABLE IF NOT EXISTS transactions (
				id TEXT PRIMARY KEY,
				date TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				reference TEXT NOT NULL DEFAULT '',
				notes TEXT NOT NULL DEFAULT '',
				is_balanced BOOLEAN NOT NULL DEFAULT 1,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,

			`CREATE TABLE IF NOT EXISTS entries (
				id TEXT PRIMARY KEY,
				transaction_id TEXT NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
				account_id TEXT NOT NULL REFERENCES accounts(id),
				amount TEXT NOT NULL,
				entry_type TEXT NOT NULL CHECK (entry_type IN ('debit', 'credit')),
				unit TEXT NOT NULL DEFAULT 'USD',
				description TEXT NOT NULL DEFAULT '',
				generated_kind TEXT,
				position INTEGER NOT NULL DEFAULT 0
			)`,

			`CREATE TABLE IF NOT EXISTS rules (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				kind TEXT NOT NULL CHECK (kind IN ('edit', 'merge', 'complementary')),
				pattern TEXT NOT NULL DEFAULT '',
				entry_type TEXT NOT NULL DEFAULT 'both',
				source_accounts TEXT NOT NULL DEFAULT '[]',
				payload TEXT NOT NULL DEFAULT '{}',
				auto_apply BOOLEAN NOT NULL DEFAULT 0,
				priority INTEGER NOT NULL DEFAULT 0,
				is_enabled BOOLEAN NOT NULL DEFAULT 1,
				is_invalid BOOLEAN NOT NULL DEFAULT 0,
				invalid_reason TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
		},
	},
	{
		Version:     2,
		Description: "Add lookup indexes for balancing queries",
		Statements: []string{
			`CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date)`,
			`CREATE INDEX IF NOT EXISTS idx_transactions_balanced_date ON transactions(is_balanced, date)`,
			`CREATE INDEX IF NOT EXISTS idx_entries_transaction ON entries(transaction_id, position)`,
			`CREATE INDEX IF NOT EXISTS idx_entries_account ON entries(account_id)`,
			`CREATE INDEX IF NOT EXISTS idx_rules_enabled_priority ON rules(is_enabled, is_invalid, priority DESC, id)`,
		},
	},
}

// Migrate brings the schema up to ExpectedSchemaVersion. Steps at or below
// the stored user_version are skipped.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if s.tx != nil {
		return fmt.Errorf("migrations cannot be run within a transaction")
	}

	current, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return err
		}
		slog.Info("Applied migration", "version", m.Version, "description", m.Description)
	}

	final, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}
	if final != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, final)
	}
	return nil
}

func (s *SQLiteStorage) schemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func (s *SQLiteStorage) applyMigration(ctx context.Context, m Migration) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i, stmt := range m.Statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d statement %d: %w", m.Version, i+1, err)
		}
	}
	// PRAGMA does not accept bound parameters.
	if _, err = tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
		return fmt.Errorf("failed to record schema version %d: %w", m.Version, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
	}
	return nil
}
