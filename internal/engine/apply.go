package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/ledger"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/pattern"
	"github.com/Veraticus/the-books-must-balance/internal/service"
)

// Outcome messages for expected negative results.
const (
	MsgAlreadyBalanced = "already balanced"
	MsgNoApplicable    = "No applicable rule found"
)

// ApplyResult reports what applying rules did to one transaction. A false
// Success with a Message is an expected outcome, not a failure.
type ApplyResult struct {
	AppliedRule    *model.Rule   `json:"applied_rule,omitempty"`
	TransactionID  string        `json:"transaction_id"`
	Message        string        `json:"message,omitempty"`
	CreatedEntries []model.Entry `json:"created_entries,omitempty"`
	Success        bool          `json:"success"`
	IsNowBalanced  bool          `json:"is_now_balanced"`
}

// Plan is the change the first applicable rule would make to a transaction.
type Plan struct {
	Rule           *model.Rule
	Source         *model.Entry
	NewDescription string
	Allocations    []ledger.Allocation
}

// FirstApplicable scans rules in the order given and returns the plan of the
// first one that applies to txn, or nil. Callers pass rules already sorted by
// priority. Disabled, invalid and merge rules are skipped; merge rules only
// run through ApplyMergeRule.
func FirstApplicable(m *pattern.Matcher, rules []model.Rule, txn *model.Transaction) *Plan {
	for i := range rules {
		rule := &rules[i]
		if !rule.Usable() || !m.Matches(rule.Criteria, txn) {
			continue
		}

		switch rule.Kind {
		case model.RuleKindEdit:
			if rule.Edit == nil || rule.Edit.NewDescription == txn.Description {
				continue
			}
			return &Plan{Rule: rule, NewDescription: rule.Edit.NewDescription}

		case model.RuleKindComplementary:
			if rule.Complementary == nil {
				continue
			}
			source := m.SourceEntry(rule.Criteria, txn)
			if source == nil {
				continue
			}
			allocations := ledger.ComputeDestinationEntries(source.Amount, rule.Complementary.Destinations)
			if len(allocations) == 0 {
				continue
			}
			return &Plan{Rule: rule, Source: source, Allocations: allocations}
		}
	}
	return nil
}

// ApplyRules applies the first matching enabled rule to one transaction.
// Reading the rules, planning and saving happen in one unit of work.
func (e *Engine) ApplyRules(ctx context.Context, txnID string) (*ApplyResult, error) {
	var result *ApplyResult
	err := e.storage.WithTx(ctx, func(store service.Store) error {
		txn, err := store.GetTransaction(ctx, txnID)
		if err != nil {
			return err
		}
		rules, err := store.GetEnabledRules(ctx)
		if err != nil {
			return fmt.Errorf("failed to load rules: %w", err)
		}
		result, err = e.applyTo(ctx, store, txn, rules)
		return err
	})
	if err != nil {
		err = classify("apply rules", err)
		if common.KindOf(err) == common.KindInternal {
			common.LogError(ctx, err, "Failed to apply rules", common.Fields{"transaction_id": txnID})
		}
		return nil, err
	}
	return result, nil
}

// applyTo runs the single-transaction algorithm against an already loaded
// transaction and rule list, saving any change through store.
func (e *Engine) applyTo(ctx context.Context, store service.Store, txn *model.Transaction,
	rules []model.Rule) (*ApplyResult, error) {
	if ledger.Evaluate(txn.Entries).IsBalanced {
		return &ApplyResult{
			TransactionID: txn.ID,
			Success:       true,
			Message:       MsgAlreadyBalanced,
			IsNowBalanced: true,
		}, nil
	}

	plan := FirstApplicable(e.matcher, rules, txn)
	if plan == nil {
		return &ApplyResult{TransactionID: txn.ID, Message: MsgNoApplicable}, nil
	}

	var created []model.Entry
	switch plan.Rule.Kind {
	case model.RuleKindEdit:
		txn.Description = plan.NewDescription
	case model.RuleKindComplementary:
		entries, err := generatedEntries(ctx, store, plan.Allocations, plan.Source.Type, txn.Description)
		if err != nil {
			return nil, err
		}
		txn.Entries = append(txn.Entries, entries...)
	}

	if err := store.SaveTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}
	if plan.Rule.Kind == model.RuleKindComplementary {
		created = txn.Entries[len(txn.Entries)-len(plan.Allocations):]
	}

	common.LogDebug(ctx, "Applied rule", common.Fields{
		"rule_id":         plan.Rule.ID,
		"rule":            plan.Rule.Name,
		"transaction_id":  txn.ID,
		"created_entries": len(created),
		"balanced":        txn.IsBalanced,
	})

	return &ApplyResult{
		TransactionID:  txn.ID,
		Success:        true,
		AppliedRule:    plan.Rule,
		CreatedEntries: created,
		IsNowBalanced:  txn.IsBalanced,
	}, nil
}

// BulkDetail is the per-transaction line of a bulk report.
type BulkDetail struct {
	TransactionID string `json:"transaction_id"`
	Description   string `json:"description,omitempty"`
	RuleName      string `json:"rule_name,omitempty"`
	Message       string `json:"message,omitempty"`
	Error         string `json:"error,omitempty"`
	Success       bool   `json:"success"`
}

// BulkResult aggregates a batch. Failed counts both errors and transactions
// no rule applied to.
type BulkResult struct {
	Details    []BulkDetail `json:"details"`
	Total      int          `json:"total"`
	Successful int          `json:"successful"`
	Failed     int          `json:"failed"`
}

func (r *BulkResult) record(d BulkDetail) {
	r.Details = append(r.Details, d)
	if d.Success {
		r.Successful++
	} else {
		r.Failed++
	}
}

// ApplyToAll applies rules to every unbalanced transaction. A failure on one
// transaction is recorded and the batch continues. Cancellation stops between
// transactions and returns the partial report with ctx.Err().
func (e *Engine) ApplyToAll(ctx context.Context, reporter service.ProgressReporter) (*BulkResult, error) {
	rules, err := e.storage.GetEnabledRules(ctx)
	if err != nil {
		return nil, classify("apply to all", fmt.Errorf("failed to load rules: %w", err))
	}
	return e.applyToUnbalanced(ctx, rules, nil, reporter)
}

// ApplyAutoRules applies only auto-apply rules to the given transactions.
func (e *Engine) ApplyAutoRules(ctx context.Context, txnIDs []string, reporter service.ProgressReporter) (*BulkResult, error) {
	rules, err := e.storage.GetEnabledRules(ctx)
	if err != nil {
		return nil, classify("apply auto rules", fmt.Errorf("failed to load rules: %w", err))
	}
	auto := rules[:0]
	for _, rule := range rules {
		if rule.AutoApply {
			auto = append(auto, rule)
		}
	}
	if txnIDs == nil {
		txnIDs = []string{}
	}
	return e.applyToUnbalanced(ctx, auto, txnIDs, reporter)
}

// applyToUnbalanced runs applyTo for each unbalanced transaction, each in its
// own unit of work. A non-nil only restricts the batch to those ids.
func (e *Engine) applyToUnbalanced(ctx context.Context, rules []model.Rule, only []string,
	reporter service.ProgressReporter) (*BulkResult, error) {
	if reporter == nil {
		reporter = service.NopReporter{}
	}
	defer reporter.Done()

	unbalanced := false
	candidates, err := e.storage.FindTransactions(ctx, service.TransactionFilter{IsBalanced: &unbalanced})
	if err != nil {
		return nil, classify("apply rules in bulk", fmt.Errorf("failed to load unbalanced transactions: %w", err))
	}
	if only != nil {
		candidates = filterByID(candidates, only)
	}

	result := &BulkResult{Total: len(candidates), Details: []BulkDetail{}}
	progress := service.Progress{Total: len(candidates)}

	for i := range candidates {
		if err := checkCanceled(ctx); err != nil {
			return result, err
		}

		txn := candidates[i]
		detail := BulkDetail{TransactionID: txn.ID, Description: txn.Description}

		var applied *ApplyResult
		err := e.storage.WithTx(ctx, func(store service.Store) error {
			fresh, err := store.GetTransaction(ctx, txn.ID)
			if err != nil {
				return err
			}
			applied, err = e.applyTo(ctx, store, fresh, rules)
			return err
		})

		switch {
		case err != nil:
			err = classify("apply rules in bulk", err)
			common.LogError(ctx, err, "Failed to apply rules to transaction", common.Fields{
				"transaction_id": txn.ID,
			})
			detail.Error = common.Message(err)
		case applied.AppliedRule != nil:
			detail.Success = true
			detail.RuleName = applied.AppliedRule.Name
			progress.Matched++
			progress.Modified++
		default:
			detail.Success = applied.Success
			detail.Message = applied.Message
		}

		result.record(detail)
		progress.Processed++
		reporter.Report(progress)
	}

	slog.Info("Bulk rule application complete",
		"total", result.Total,
		"successful", result.Successful,
		"failed", result.Failed)
	return result, nil
}

func filterByID(txns []model.Transaction, ids []string) []model.Transaction {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	kept := txns[:0]
	for _, txn := range txns {
		if wanted[txn.ID] {
			kept = append(kept, txn)
		}
	}
	return kept
}
