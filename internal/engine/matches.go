package engine

import (
	"context"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/ledger"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/shopspring/decimal"
)

// MatchOptions bounds a complementary search. Zero values use the engine config.
type MatchOptions struct {
	WindowDays int
	MaxResults int
}

func (e *Engine) matchOptions(opts MatchOptions) MatchOptions {
	if opts.WindowDays <= 0 {
		opts.WindowDays = e.config.MatchWindowDays
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = e.config.MaxMatchResults
	}
	return opts
}

// FindMatches returns entries of unbalanced transactions, dated within the
// window around the target entry's transaction, that have the opposite type
// and exactly the same amount. The target's own transaction is excluded.
func (e *Engine) FindMatches(ctx context.Context, entryID string, opts MatchOptions) ([]model.Entry, error) {
	target, err := e.storage.GetEntry(ctx, entryID)
	if err != nil {
		return nil, classify("find matches", err)
	}
	owner, err := e.storage.GetTransaction(ctx, target.TransactionID)
	if err != nil {
		return nil, classify("find matches", err)
	}

	opts = e.matchOptions(opts)
	candidates, err := e.candidatesAround(ctx, owner, opts.WindowDays)
	if err != nil {
		return nil, err
	}
	return MatchEntries(*target, candidates, opts.MaxResults), nil
}

// FindTransactionMatches returns unbalanced transactions within the window
// whose net imbalance exactly cancels the target transaction's. A balanced
// target has no matches.
func (e *Engine) FindTransactionMatches(ctx context.Context, txnID string, opts MatchOptions) ([]model.Transaction, error) {
	target, err := e.storage.GetTransaction(ctx, txnID)
	if err != nil {
		return nil, classify("find transaction matches", err)
	}
	balance := ledger.Evaluate(target.Entries)
	if balance.IsBalanced {
		return []model.Transaction{}, nil
	}

	opts = e.matchOptions(opts)
	candidates, err := e.candidatesAround(ctx, target, opts.WindowDays)
	if err != nil {
		return nil, err
	}
	return MatchTransactions(balance.NetBalance, candidates, opts.MaxResults), nil
}

func (e *Engine) candidatesAround(ctx context.Context, txn *model.Transaction, windowDays int) ([]model.Transaction, error) {
	window := time.Duration(windowDays) * 24 * time.Hour
	start := txn.Date.Add(-window)
	end := txn.Date.Add(window)
	unbalanced := false

	candidates, err := e.storage.FindTransactions(ctx, service.TransactionFilter{
		StartDate:  &start,
		EndDate:    &end,
		IsBalanced: &unbalanced,
		ExcludeID:  txn.ID,
	})
	if err != nil {
		return nil, classify("find matches", err)
	}
	return candidates, nil
}

// MatchEntries selects entries of candidates with the type opposite to
// target's and an equal amount, in candidate order, up to maxResults.
func MatchEntries(target model.Entry, candidates []model.Transaction, maxResults int) []model.Entry {
	want := target.Type.Opposite()
	matches := []model.Entry{}
	for _, txn := range candidates {
		if txn.ID == target.TransactionID {
			continue
		}
		for _, entry := range txn.Entries {
			if entry.Type != want || !entry.Amount.Equal(target.Amount) {
				continue
			}
			matches = append(matches, entry)
			if maxResults > 0 && len(matches) >= maxResults {
				return matches
			}
		}
	}
	return matches
}

// MatchTransactions selects unbalanced candidates whose net balance is exactly
// -net, up to maxResults.
func MatchTransactions(net decimal.Decimal, candidates []model.Transaction, maxResults int) []model.Transaction {
	want := net.Neg()
	matches := []model.Transaction{}
	for _, txn := range candidates {
		balance := ledger.Evaluate(txn.Entries)
		if balance.IsBalanced || !balance.NetBalance.Equal(want) {
			continue
		}
		matches = append(matches, txn)
		if maxResults > 0 && len(matches) >= maxResults {
			break
		}
	}
	return matches
}
