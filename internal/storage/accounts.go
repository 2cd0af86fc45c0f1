package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
)

// CreateAccount inserts a new account. The parent, when set, must exist.
func (s *SQLiteStorage) CreateAccount(ctx context.Context, account *model.Account) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAccount(account); err != nil {
		return err
	}
	if account.Unit == "" {
		account.Unit = model.DefaultUnit
	}

	if account.ParentID != nil {
		if _, err := s.GetAccount(ctx, *account.ParentID); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return common.Validationf("parent account %q does not exist", *account.ParentID)
			}
			return err
		}
	}

	account.CreatedAt = time.Now().UTC()
	_, err := s.q().ExecContext(ctx,
		`INSERT INTO accounts (id, name, type, unit, parent_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		account.ID, account.Name, string(account.Type), account.Unit, account.ParentID, formatTime(account.CreatedAt))
	if err != nil {
		if isConstraint(err) {
			return common.Validationf("account %q already exists", account.ID)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetAccount retrieves an account by id.
func (s *SQLiteStorage) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.q().QueryRowContext(ctx,
		`SELECT id, name, type, unit, parent_id, created_at FROM accounts WHERE id = ?`, id)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NotFoundf("account %q", id)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// ListAccounts returns every account ordered by id.
func (s *SQLiteStorage) ListAccounts(ctx context.Context) ([]model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.q().QueryContext(ctx,
		`SELECT id, name, type, unit, parent_id, created_at FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []model.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}

// DeleteAccount removes an account that no entry or child account references,
// and marks every rule that referenced it invalid.
func (s *SQLiteStorage) DeleteAccount(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	return s.runTx(ctx, func(tx *SQLiteStorage) error {
		if _, err := tx.GetAccount(ctx, id); err != nil {
			return err
		}

		var entryCount, childCount int
		if err := tx.q().QueryRowContext(ctx,
			`SELECT COUNT(*) FROM entries WHERE account_id = ?`, id).Scan(&entryCount); err != nil {
			return fmt.Errorf("failed to count account entries: %w", err)
		}
		if entryCount > 0 {
			return common.Validationf("account %q still has %d entries", id, entryCount)
		}
		if err := tx.q().QueryRowContext(ctx,
			`SELECT COUNT(*) FROM accounts WHERE parent_id = ?`, id).Scan(&childCount); err != nil {
			return fmt.Errorf("failed to count child accounts: %w", err)
		}
		if childCount > 0 {
			return common.Validationf("account %q still has %d child accounts", id, childCount)
		}

		if _, err := tx.q().ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete account: %w", err)
		}

		return tx.invalidateRulesReferencing(ctx, id, fmt.Sprintf("account %s was deleted", id))
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*model.Account, error) {
	var account model.Account
	var accountType, createdAt string
	var parentID sql.NullString
	if err := row.Scan(&account.ID, &account.Name, &accountType, &account.Unit, &parentID, &createdAt); err != nil {
		return nil, err
	}
	account.Type = model.AccountType(accountType)
	if parentID.Valid {
		account.ParentID = &parentID.String
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	account.CreatedAt = t
	return &account, nil
}
