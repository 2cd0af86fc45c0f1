// Package storage provides the SQLite persistence layer for the bookkeeping engine.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrInvalidDateRange = errors.New("start date must be before end date")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %w: %s", common.ErrValidation, ErrEmptyString, paramName)
	}
	return nil
}

// validateDateRange ensures end is not before start when both are set.
func validateDateRange(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return fmt.Errorf("%w: %w: end date %v is before start date %v",
			common.ErrValidation, ErrInvalidDateRange, *end, *start)
	}
	return nil
}

// validateAccount validates an account before insert.
func validateAccount(account *model.Account) error {
	if account == nil {
		return fmt.Errorf("%w: %w: account", common.ErrValidation, ErrNilParameter)
	}
	if strings.TrimSpace(account.ID) == "" {
		return common.Validationf("account id is required")
	}
	if strings.TrimSpace(account.Name) == "" {
		return common.Validationf("account name is required")
	}
	if !account.Type.IsValid() {
		return common.Validationf("invalid account type %q", account.Type)
	}
	if account.ParentID != nil && *account.ParentID == account.ID {
		return common.Validationf("account %q cannot be its own parent", account.ID)
	}
	return nil
}

// validateTransaction validates a transaction and its entries before save.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: %w: transaction", common.ErrValidation, ErrNilParameter)
	}
	if txn.Date.IsZero() {
		return common.Validationf("transaction date is required")
	}
	for i, e := range txn.Entries {
		if strings.TrimSpace(e.AccountID) == "" {
			return common.Validationf("entry %d: account id is required", i)
		}
		if !e.Type.IsValid() {
			return common.Validationf("entry %d: type must be debit or credit, got %q", i, e.Type)
		}
		if !e.Amount.IsPositive() {
			return common.Validationf("entry %d: amount must be positive, got %s", i, e.Amount)
		}
	}
	return nil
}
