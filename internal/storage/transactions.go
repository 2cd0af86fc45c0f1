package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/ledger"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const transactionColumns = `id, date, description, reference, notes, is_balanced, created_at, updated_at`

const entryColumns = `id, transaction_id, account_id, amount, entry_type, unit, description, generated_kind, position`

// SaveTransaction inserts or replaces a transaction together with its entries.
// Missing ids are assigned, entry positions follow slice order and IsBalanced
// is recomputed from the entries; a caller-supplied value is ignored.
func (s *SQLiteStorage) SaveTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}

	now := time.Now().UTC()
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = now
	}
	txn.UpdatedAt = now
	txn.IsBalanced = ledger.Evaluate(txn.Entries).IsBalanced

	for i := range txn.Entries {
		e := &txn.Entries[i]
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		e.TransactionID = txn.ID
		e.Position = i
		if e.Unit == "" {
			e.Unit = model.DefaultUnit
		}
		if e.Description == "" {
			e.Description = txn.Description
		}
	}

	return s.runTx(ctx, func(tx *SQLiteStorage) error {
		_, err := tx.q().ExecContext(ctx, `
			INSERT INTO transactions (`+transactionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				date = excluded.date,
				description = excluded.description,
				reference = excluded.reference,
				notes = excluded.notes,
				is_balanced = excluded.is_balanced,
				updated_at = excluded.updated_at`,
			txn.ID, formatTime(txn.Date), txn.Description, txn.Reference, txn.Notes,
			txn.IsBalanced, formatTime(txn.CreatedAt), formatTime(txn.UpdatedAt))
		if err != nil {
			return fmt.Errorf("failed to save transaction: %w", err)
		}

		if _, err := tx.q().ExecContext(ctx, `DELETE FROM entries WHERE transaction_id = ?`, txn.ID); err != nil {
			return fmt.Errorf("failed to clear entries: %w", err)
		}

		for _, e := range txn.Entries {
			var kind sql.NullString
			if e.Generated != nil {
				kind = sql.NullString{String: string(e.Generated.Kind), Valid: true}
			}
			_, err := tx.q().ExecContext(ctx, `
				INSERT INTO entries (`+entryColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				e.ID, e.TransactionID, e.AccountID, e.Amount.String(), string(e.Type),
				e.Unit, e.Description, kind, e.Position)
			if err != nil {
				if isConstraint(err) {
					return common.Validationf("entry %s: unknown account %q or duplicate id", e.ID, e.AccountID)
				}
				return fmt.Errorf("failed to save entry: %w", err)
			}
		}
		return nil
	})
}

// GetTransaction retrieves a transaction with its entries.
func (s *SQLiteStorage) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.q().QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NotFoundf("transaction %q", id)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	entries, err := s.queryEntries(ctx, `WHERE transaction_id = ?`, id)
	if err != nil {
		return nil, err
	}
	txn.Entries = entries[txn.ID]
	return txn, nil
}

// FindTransactions returns transactions matching filter ordered by date then id.
func (s *SQLiteStorage) FindTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateDateRange(filter.StartDate, filter.EndDate); err != nil {
		return nil, err
	}

	where, args := buildTransactionWhere(filter)
	query := `SELECT ` + transactionColumns + ` FROM transactions ` + where + ` ORDER BY date, id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.q().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txns []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	if len(txns) == 0 {
		return nil, nil
	}

	entries, err := s.queryEntries(ctx, `WHERE transaction_id IN (SELECT id FROM (`+query+`))`, args...)
	if err != nil {
		return nil, err
	}
	for i := range txns {
		txns[i].Entries = entries[txns[i].ID]
	}
	return txns, nil
}

// DeleteTransaction removes a transaction and every entry it owns.
func (s *SQLiteStorage) DeleteTransaction(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	return s.runTx(ctx, func(tx *SQLiteStorage) error {
		if _, err := tx.q().ExecContext(ctx, `DELETE FROM entries WHERE transaction_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete entries: %w", err)
		}
		result, err := tx.q().ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete transaction: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return common.NotFoundf("transaction %q", id)
		}
		return nil
	})
}

// GetEntry retrieves a single entry by id.
func (s *SQLiteStorage) GetEntry(ctx context.Context, id string) (*model.Entry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.q().QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NotFoundf("entry %q", id)
		}
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return entry, nil
}

// MoveEntries reassigns entries to another transaction, appending them after
// its existing entries. Balance flags are not touched; callers re-save both
// sides afterwards.
func (s *SQLiteStorage) MoveEntries(ctx context.Context, entryIDs []string, toTransactionID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(entryIDs) == 0 {
		return nil
	}

	return s.runTx(ctx, func(tx *SQLiteStorage) error {
		var maxPosition sql.NullInt64
		err := tx.q().QueryRowContext(ctx,
			`SELECT MAX(position) FROM entries WHERE transaction_id = ?`, toTransactionID).Scan(&maxPosition)
		if err != nil {
			return fmt.Errorf("failed to read entry positions: %w", err)
		}
		var exists int
		if err := tx.q().QueryRowContext(ctx,
			`SELECT COUNT(*) FROM transactions WHERE id = ?`, toTransactionID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check transaction: %w", err)
		}
		if exists == 0 {
			return common.NotFoundf("transaction %q", toTransactionID)
		}

		next := 0
		if maxPosition.Valid {
			next = int(maxPosition.Int64) + 1
		}
		for _, id := range entryIDs {
			result, err := tx.q().ExecContext(ctx,
				`UPDATE entries SET transaction_id = ?, position = ? WHERE id = ?`, toTransactionID, next, id)
			if err != nil {
				return fmt.Errorf("failed to move entry: %w", err)
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			if affected == 0 {
				return common.NotFoundf("entry %q", id)
			}
			next++
		}
		return nil
	})
}

func buildTransactionWhere(filter service.TransactionFilter) (string, []any) {
	var clauses []string
	var args []any

	if filter.StartDate != nil {
		clauses = append(clauses, "date >= ?")
		args = append(args, formatTime(*filter.StartDate))
	}
	if filter.EndDate != nil {
		clauses = append(clauses, "date <= ?")
		args = append(args, formatTime(*filter.EndDate))
	}
	if filter.IsBalanced != nil {
		clauses = append(clauses, "is_balanced = ?")
		args = append(args, *filter.IsBalanced)
	}
	if filter.ExcludeID != "" {
		clauses = append(clauses, "id <> ?")
		args = append(args, filter.ExcludeID)
	}
	if len(filter.AccountIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.AccountIDs)), ",")
		clauses = append(clauses,
			"EXISTS (SELECT 1 FROM entries e WHERE e.transaction_id = transactions.id AND e.account_id IN ("+placeholders+"))")
		for _, id := range filter.AccountIDs {
			args = append(args, id)
		}
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

// queryEntries loads entries matching where, grouped by transaction id.
func (s *SQLiteStorage) queryEntries(ctx context.Context, where string, args ...any) (map[string][]model.Entry, error) {
	rows, err := s.q().QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entries `+where+` ORDER BY transaction_id, position`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	grouped := make(map[string][]model.Entry)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		grouped[entry.TransactionID] = append(grouped[entry.TransactionID], *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}
	return grouped, nil
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var txn model.Transaction
	var date, createdAt, updatedAt string
	if err := row.Scan(&txn.ID, &date, &txn.Description, &txn.Reference, &txn.Notes,
		&txn.IsBalanced, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if txn.Date, err = parseTime(date); err != nil {
		return nil, err
	}
	if txn.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if txn.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &txn, nil
}

func scanEntry(row rowScanner) (*model.Entry, error) {
	var e model.Entry
	var amount, entryType string
	var kind sql.NullString
	if err := row.Scan(&e.ID, &e.TransactionID, &e.AccountID, &amount, &entryType,
		&e.Unit, &e.Description, &kind, &e.Position); err != nil {
		return nil, err
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored amount %q: %w", amount, err)
	}
	e.Amount = d
	e.Type = model.EntryType(entryType)
	if kind.Valid {
		e.Generated = &model.Generated{Kind: model.GeneratedKind(kind.String)}
	}
	return &e, nil
}
