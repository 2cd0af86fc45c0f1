// Package service defines the collaborator contracts the engine depends on.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
// Zero values disable a filter.
type TransactionFilter struct {
	StartDate  *time.Time
	EndDate    *time.Time
	IsBalanced *bool
	ExcludeID  string
	AccountIDs []string
	Limit      int
}

// Store is the set of reads and writes the engine performs. Every method is
// also available inside a unit of work started with Storage.WithTx.
type Store interface {
	GetAccount(ctx context.Context, id string) (*model.Account, error)

	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	FindTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	SaveTransaction(ctx context.Context, txn *model.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error

	GetEntry(ctx context.Context, id string) (*model.Entry, error)
	MoveEntries(ctx context.Context, entryIDs []string, toTransactionID string) error

	GetRule(ctx context.Context, id int64) (*model.Rule, error)
	GetEnabledRules(ctx context.Context) ([]model.Rule, error)
}

// Storage defines the contract for the persistence layer.
type Storage interface {
	Store

	// Account operations
	CreateAccount(ctx context.Context, account *model.Account) error
	ListAccounts(ctx context.Context) ([]model.Account, error)
	DeleteAccount(ctx context.Context, id string) error

	// Rule operations
	CreateRule(ctx context.Context, rule *model.Rule) error
	UpdateRule(ctx context.Context, rule *model.Rule) error
	DeleteRule(ctx context.Context, id int64) error
	ListRules(ctx context.Context) ([]model.Rule, error)

	// WithTx runs fn inside one atomic unit of work. Any error returned by fn
	// rolls back every write made through the Store it was given.
	WithTx(ctx context.Context, fn func(Store) error) error

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// Progress is a snapshot of a long-running batch.
type Progress struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Matched   int `json:"matched"`
	Modified  int `json:"modified"`
}

// ProgressReporter receives snapshots while a batch runs.
type ProgressReporter interface {
	Report(p Progress)
	Done()
}

// NopReporter discards progress.
type NopReporter struct{}

// Report implements ProgressReporter.
func (NopReporter) Report(Progress) {}

// Done implements ProgressReporter.
func (NopReporter) Done() {}
