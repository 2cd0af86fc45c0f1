// Package engine implements rule application, complementary matching,
// transaction merging and mass edits on top of the storage collaborator.
package engine

import (
	"context"
	"fmt"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/ledger"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/pattern"
	"github.com/Veraticus/the-books-must-balance/internal/service"
)

// Engine orchestrates every balancing operation. It holds no rule state of its
// own; rules are read from storage on each call.
type Engine struct {
	storage service.Storage
	matcher *pattern.Matcher
	config  Config
}

// Config holds configuration options for the engine.
type Config struct {
	NotesSeparator  string
	MatchWindowDays int
	MaxMatchResults int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MatchWindowDays: 15,
		MaxMatchResults: 10,
		NotesSeparator:  "\n",
	}
}

// New creates an engine with the default configuration.
func New(storage service.Storage) *Engine {
	return NewWithConfig(storage, DefaultConfig())
}

// NewWithConfig creates an engine with custom configuration. Non-positive
// values fall back to the defaults.
func NewWithConfig(storage service.Storage, config Config) *Engine {
	defaults := DefaultConfig()
	if config.MatchWindowDays <= 0 {
		config.MatchWindowDays = defaults.MatchWindowDays
	}
	if config.MaxMatchResults <= 0 {
		config.MaxMatchResults = defaults.MaxMatchResults
	}
	if config.NotesSeparator == "" {
		config.NotesSeparator = defaults.NotesSeparator
	}
	return &Engine{
		storage: storage,
		matcher: pattern.NewMatcher(),
		config:  config,
	}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Evaluate recomputes the balance of the stored transaction.
func (e *Engine) Evaluate(ctx context.Context, txnID string) (ledger.Balance, error) {
	txn, err := e.storage.GetTransaction(ctx, txnID)
	if err != nil {
		return ledger.Balance{}, classify("evaluate", err)
	}
	return ledger.Evaluate(txn.Entries), nil
}

// generatedEntries turns split allocations into complementary entries posted
// opposite to sourceType. Units come from each destination account.
func generatedEntries(ctx context.Context, store service.Store, allocations []ledger.Allocation,
	sourceType model.EntryType, description string) ([]model.Entry, error) {
	entries := make([]model.Entry, 0, len(allocations))
	for _, a := range allocations {
		account, err := store.GetAccount(ctx, a.AccountID)
		if err != nil {
			return nil, fmt.Errorf("failed to load destination account %q: %w", a.AccountID, err)
		}
		entries = append(entries, model.Entry{
			AccountID:   a.AccountID,
			Amount:      a.Amount,
			Type:        sourceType.Opposite(),
			Unit:        account.UnitOrDefault(),
			Description: description,
			Generated:   &model.Generated{Kind: model.GeneratedComplementary},
		})
	}
	return entries, nil
}

// classify wraps unclassified failures as internal errors of op.
func classify(op string, err error) error {
	return common.Internal(op, err)
}

// checkCanceled returns ctx.Err() when the context is done.
func checkCanceled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
