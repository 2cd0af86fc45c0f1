// Package testutil provides database fixtures shared by package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/Veraticus/the-books-must-balance/internal/storage"
	"github.com/shopspring/decimal"
)

// Account ids seeded by SetupTestDB.
const (
	Checking  = "checking"
	Card      = "card"
	Groceries = "groceries"
	Dining    = "dining"
	Salary    = "salary"
	Travel    = "travel"
)

// DefaultAccounts is the chart of accounts every test database starts with.
// Travel is booked in EUR; everything else uses the default unit.
var DefaultAccounts = []model.Account{
	{ID: Checking, Name: "Checking", Type: model.AccountTypeAsset},
	{ID: Card, Name: "Credit Card", Type: model.AccountTypeLiability},
	{ID: Groceries, Name: "Groceries", Type: model.AccountTypeExpense},
	{ID: Dining, Name: "Dining", Type: model.AccountTypeExpense},
	{ID: Salary, Name: "Salary", Type: model.AccountTypeIncome},
	{ID: Travel, Name: "Travel", Type: model.AccountTypeExpense, Unit: "EUR"},
}

// TestDB is a migrated in-memory database seeded with DefaultAccounts.
type TestDB struct {
	Storage service.Storage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database. Migrations run and
// cleanup is registered automatically.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	for _, account := range DefaultAccounts {
		if err := store.CreateAccount(ctx, &account); err != nil {
			t.Fatalf("failed to seed account %q: %v", account.ID, err)
		}
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}

// Day returns midnight UTC of the given day in May 2024.
func Day(d int) time.Time {
	return time.Date(2024, 5, d, 0, 0, 0, 0, time.UTC)
}

// Amount parses a decimal literal, panicking on malformed input.
func Amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Debit builds a user-entered debit entry.
func Debit(account, amount string) model.Entry {
	return model.Entry{AccountID: account, Type: model.Debit, Amount: Amount(amount)}
}

// Credit builds a user-entered credit entry.
func Credit(account, amount string) model.Entry {
	return model.Entry{AccountID: account, Type: model.Credit, Amount: Amount(amount)}
}

// MustTransaction saves a transaction and returns it with ids assigned.
func (db *TestDB) MustTransaction(date time.Time, description string, entries ...model.Entry) *model.Transaction {
	db.t.Helper()
	txn := &model.Transaction{Date: date, Description: description, Entries: entries}
	if err := db.Storage.SaveTransaction(context.Background(), txn); err != nil {
		db.t.Fatalf("failed to save transaction %q: %v", description, err)
	}
	return txn
}

// MustRule creates a rule, enabling it.
func (db *TestDB) MustRule(rule model.Rule) *model.Rule {
	db.t.Helper()
	rule.IsEnabled = true
	if err := db.Storage.CreateRule(context.Background(), &rule); err != nil {
		db.t.Fatalf("failed to create rule %q: %v", rule.Name, err)
	}
	return &rule
}

// MustGet reloads a transaction.
func (db *TestDB) MustGet(id string) *model.Transaction {
	db.t.Helper()
	txn, err := db.Storage.GetTransaction(context.Background(), id)
	if err != nil {
		db.t.Fatalf("failed to get transaction %q: %v", id, err)
	}
	return txn
}
