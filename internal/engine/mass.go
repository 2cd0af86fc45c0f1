package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/ledger"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/pattern"
	"github.com/Veraticus/the-books-must-balance/internal/service"
)

// MassPreview counts what a mass action would touch.
type MassPreview struct {
	TotalCandidates int `json:"total_candidates"`
	EligibleCount   int `json:"eligible_count"`
}

// MassResult reports a mass apply. Failed transactions are listed in Details
// and do not stop the batch.
type MassResult struct {
	Details   []BulkDetail `json:"details"`
	Processed int          `json:"processed"`
	Eligible  int          `json:"eligible"`
	Modified  int          `json:"modified"`
	Failed    int          `json:"failed"`
}

// IsEligible reports whether action would change txn.
//   - complementary add: the transaction is fully unbalanced
//   - edit fields: at least one supplied field differs
//   - merge into: fully unbalanced, or carrying replaceable generated entries
func IsEligible(action model.MassAction, txn *model.Transaction) bool {
	switch action.Type {
	case model.MassComplementaryAdd:
		return ledger.Evaluate(txn.Entries).IsFullyUnbalanced()
	case model.MassEditFields:
		return action.Fields != nil && fieldsDiffer(*action.Fields, txn)
	case model.MassMergeInto:
		return ledger.Evaluate(txn.Entries).IsFullyUnbalanced() ||
			txn.HasGeneratedEntries(model.GeneratedComplementary)
	}
	return false
}

func fieldsDiffer(f model.FieldEdits, txn *model.Transaction) bool {
	switch {
	case f.Description != nil && *f.Description != txn.Description:
		return true
	case f.Reference != nil && *f.Reference != txn.Reference:
		return true
	case f.Notes != nil && *f.Notes != txn.Notes:
		return true
	case f.Date != nil && !f.Date.Equal(txn.Date):
		return true
	}
	return false
}

// PreviewMass counts the transactions matching query and how many of them the
// action would change. Nothing is written.
func (e *Engine) PreviewMass(ctx context.Context, query model.MassQuery, action model.MassAction) (*MassPreview, error) {
	candidates, err := e.massCandidates(ctx, query, action)
	if err != nil {
		return nil, err
	}

	preview := &MassPreview{TotalCandidates: len(candidates)}
	for i := range candidates {
		if IsEligible(action, &candidates[i]) {
			preview.EligibleCount++
		}
	}
	return preview, nil
}

// ApplyMass applies action to every eligible transaction matching query. Each
// transaction is re-read and re-checked inside its own unit of work; a failure
// is recorded and the batch continues. Cancellation stops between
// transactions and returns the partial result with ctx.Err().
func (e *Engine) ApplyMass(ctx context.Context, query model.MassQuery, action model.MassAction,
	reporter service.ProgressReporter) (*MassResult, error) {
	if reporter == nil {
		reporter = service.NopReporter{}
	}
	defer reporter.Done()

	candidates, err := e.massCandidates(ctx, query, action)
	if err != nil {
		return nil, err
	}

	result := &MassResult{Details: []BulkDetail{}}
	progress := service.Progress{Total: len(candidates)}

	for i := range candidates {
		if err := checkCanceled(ctx); err != nil {
			return result, err
		}

		txn := candidates[i]
		result.Processed++
		progress.Processed++
		if !IsEligible(action, &txn) {
			reporter.Report(progress)
			continue
		}
		result.Eligible++
		progress.Matched++

		detail := BulkDetail{TransactionID: txn.ID, Description: txn.Description}
		var modified bool
		err := e.storage.WithTx(ctx, func(store service.Store) error {
			fresh, err := store.GetTransaction(ctx, txn.ID)
			if err != nil {
				return err
			}
			if !IsEligible(action, fresh) {
				return nil
			}
			modified, err = e.applyMassAction(ctx, store, action, fresh)
			return err
		})

		switch {
		case err != nil:
			err = classify("mass apply", err)
			common.LogError(ctx, err, "Mass action failed for transaction", common.Fields{
				"transaction_id": txn.ID,
				"action":         string(action.Type),
			})
			detail.Error = common.Message(err)
			result.Failed++
		case modified:
			detail.Success = true
			result.Modified++
			progress.Modified++
		default:
			detail.Message = "no change"
		}
		result.Details = append(result.Details, detail)
		reporter.Report(progress)
	}

	slog.Info("Mass action complete",
		"action", action.Type,
		"processed", result.Processed,
		"eligible", result.Eligible,
		"modified", result.Modified,
		"failed", result.Failed)
	return result, nil
}

// massCandidates validates the request and loads every transaction matching
// the query, before anything is written.
func (e *Engine) massCandidates(ctx context.Context, query model.MassQuery, action model.MassAction) ([]model.Transaction, error) {
	if err := pattern.ValidateMassQuery(query); err != nil {
		return nil, err
	}
	if err := pattern.ValidateMassAction(action); err != nil {
		return nil, err
	}

	for _, d := range action.Destinations {
		if _, err := e.storage.GetAccount(ctx, d.AccountID); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return nil, common.Validationf("destination account %q does not exist", d.AccountID)
			}
			return nil, classify("mass query", err)
		}
	}
	if action.Type == model.MassMergeInto && action.TargetTransactionID != "" {
		if _, err := e.storage.GetTransaction(ctx, action.TargetTransactionID); err != nil {
			return nil, classify("mass query", err)
		}
	}

	start, end := query.StartDate, query.EndDate
	txns, err := e.storage.FindTransactions(ctx, service.TransactionFilter{
		StartDate:  &start,
		EndDate:    &end,
		AccountIDs: query.SourceAccounts,
		ExcludeID:  action.TargetTransactionID,
	})
	if err != nil {
		return nil, classify("mass query", fmt.Errorf("failed to load transactions: %w", err))
	}

	criteria := query.Criteria()
	matched := make([]model.Transaction, 0, len(txns))
	for i := range txns {
		if e.matcher.Matches(criteria, &txns[i]) {
			matched = append(matched, txns[i])
		}
	}
	return matched, nil
}

// applyMassAction mutates one eligible transaction through store and reports
// whether anything changed.
func (e *Engine) applyMassAction(ctx context.Context, store service.Store, action model.MassAction,
	txn *model.Transaction) (bool, error) {
	switch action.Type {
	case model.MassComplementaryAdd:
		sourceType, amount, ok := ledger.Evaluate(txn.Entries).OneSided()
		if !ok {
			return false, nil
		}
		allocations := ledger.ComputeDestinationEntries(amount, action.Destinations)
		if len(allocations) == 0 {
			return false, nil
		}
		entries, err := generatedEntries(ctx, store, allocations, sourceType, txn.Description)
		if err != nil {
			return false, err
		}
		txn.Entries = append(txn.Entries, entries...)
		return true, store.SaveTransaction(ctx, txn)

	case model.MassEditFields:
		f := action.Fields
		if f.Description != nil {
			txn.Description = *f.Description
		}
		if f.Reference != nil {
			txn.Reference = *f.Reference
		}
		if f.Notes != nil {
			txn.Notes = *f.Notes
		}
		if f.Date != nil {
			txn.Date = *f.Date
		}
		return true, store.SaveTransaction(ctx, txn)

	case model.MassMergeInto:
		return e.mergeInto(ctx, store, action.TargetTransactionID, txn)
	}
	return false, common.Validationf("unknown mass action type %q", action.Type)
}

// mergeInto strips previously generated complementary entries from txn and,
// when a target is named and the remaining imbalance opposes the target's,
// merges txn into it.
func (e *Engine) mergeInto(ctx context.Context, store service.Store, targetID string, txn *model.Transaction) (bool, error) {
	kept := make([]model.Entry, 0, len(txn.Entries))
	for _, entry := range txn.Entries {
		if !entry.IsGenerated(model.GeneratedComplementary) {
			kept = append(kept, entry)
		}
	}
	stripped := len(kept) != len(txn.Entries)
	txn.Entries = kept

	if stripped {
		if len(txn.Entries) == 0 {
			return true, store.DeleteTransaction(ctx, txn.ID)
		}
		if err := store.SaveTransaction(ctx, txn); err != nil {
			return false, err
		}
	}
	if targetID == "" {
		return stripped, nil
	}

	target, err := store.GetTransaction(ctx, targetID)
	if err != nil {
		return false, err
	}
	if CheckMergeable(target, txn) != nil {
		return stripped, nil
	}
	if _, err := e.mergeIn(ctx, store, target, txn); err != nil {
		return false, err
	}
	return true, nil
}
