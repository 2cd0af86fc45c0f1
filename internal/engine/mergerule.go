package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/ledger"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
)

// ApplyMergeRule merges every unbalanced transaction matching a merge rule
// with the closest-dated unbalanced transaction whose imbalance exactly
// cancels it, within the rule's date difference. A transaction takes part in
// at most one merge per run and pair failures do not stop the batch.
func (e *Engine) ApplyMergeRule(ctx context.Context, ruleID int64, reporter service.ProgressReporter) (*BulkResult, error) {
	if reporter == nil {
		reporter = service.NopReporter{}
	}
	defer reporter.Done()

	rule, err := e.storage.GetRule(ctx, ruleID)
	if err != nil {
		return nil, classify("apply merge rule", err)
	}
	if rule.Kind != model.RuleKindMerge || rule.Merge == nil {
		return nil, common.Validationf("rule %d is a %s rule, not a merge rule", rule.ID, rule.Kind)
	}
	if !rule.Usable() {
		return nil, common.Validationf("rule %d is disabled or invalid", rule.ID)
	}

	unbalanced := false
	txns, err := e.storage.FindTransactions(ctx, service.TransactionFilter{IsBalanced: &unbalanced})
	if err != nil {
		return nil, classify("apply merge rule", fmt.Errorf("failed to load unbalanced transactions: %w", err))
	}

	var sources []int
	for i := range txns {
		if e.matcher.Matches(rule.Criteria, &txns[i]) {
			sources = append(sources, i)
		}
	}

	maxDiff := time.Duration(rule.Merge.MaxDateDifference) * 24 * time.Hour
	used := make(map[string]bool)
	// Sources already absorbed as a partner get no line of their own, so
	// Total counts reported sources rather than matches.
	result := &BulkResult{Details: []BulkDetail{}}
	record := func(d BulkDetail) {
		result.record(d)
		result.Total++
	}
	progress := service.Progress{Total: len(sources)}

	for _, i := range sources {
		if err := checkCanceled(ctx); err != nil {
			return result, err
		}

		source := txns[i]
		progress.Processed++
		if used[source.ID] {
			reporter.Report(progress)
			continue
		}

		detail := BulkDetail{TransactionID: source.ID, Description: source.Description, RuleName: rule.Name}
		partner := findMergePartner(&source, txns, used, maxDiff)
		if partner == nil {
			detail.Message = "no complementary transaction found"
			record(detail)
			reporter.Report(progress)
			continue
		}
		progress.Matched++

		err := e.storage.WithTx(ctx, func(store service.Store) error {
			fresh, err := store.GetTransaction(ctx, source.ID)
			if err != nil {
				return err
			}
			other, err := store.GetTransaction(ctx, partner.ID)
			if err != nil {
				return err
			}
			_, err = e.mergeIn(ctx, store, fresh, other)
			return err
		})
		if err != nil {
			err = classify("apply merge rule", err)
			common.LogError(ctx, err, "Failed to merge transaction pair", common.Fields{
				"rule_id":   rule.ID,
				"source_id": source.ID,
				"target_id": partner.ID,
			})
			detail.Error = common.Message(err)
		} else {
			used[source.ID] = true
			used[partner.ID] = true
			detail.Success = true
			detail.Message = "merged with " + partner.ID
			progress.Modified++
		}
		record(detail)
		reporter.Report(progress)
	}

	slog.Info("Merge rule applied",
		"rule_id", rule.ID,
		"total", result.Total,
		"successful", result.Successful,
		"failed", result.Failed)
	return result, nil
}

// findMergePartner returns the unused candidate closest in date whose net
// balance exactly cancels source's.
func findMergePartner(source *model.Transaction, candidates []model.Transaction, used map[string]bool,
	maxDiff time.Duration) *model.Transaction {
	want := ledger.Evaluate(source.Entries).NetBalance.Neg()

	var best *model.Transaction
	var bestDiff time.Duration
	for i := range candidates {
		c := &candidates[i]
		if c.ID == source.ID || used[c.ID] {
			continue
		}
		diff := c.Date.Sub(source.Date)
		if diff < 0 {
			diff = -diff
		}
		if diff > maxDiff {
			continue
		}
		balance := ledger.Evaluate(c.Entries)
		if balance.IsBalanced || !balance.NetBalance.Equal(want) {
			continue
		}
		if best == nil || diff < bestDiff {
			best = c
			bestDiff = diff
		}
	}
	return best
}
