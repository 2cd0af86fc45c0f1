// Package ledger holds the pure double-entry arithmetic: balance evaluation
// and destination splits.
package ledger

import (
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/shopspring/decimal"
)

var (
	// BalanceTolerance bounds |debits - credits| for a transaction to count as balanced.
	// Every isBalanced computation uses it.
	BalanceTolerance = decimal.RequireFromString("0.01")

	// ZeroTolerance is the bound under which one side of a transaction counts as
	// absent, and the allowed drift of a ratio sum from 1.
	ZeroTolerance = decimal.RequireFromString("0.0001")
)

// Balance is the result of evaluating a list of entries.
type Balance struct {
	TotalDebits  decimal.Decimal `json:"total_debits"`
	TotalCredits decimal.Decimal `json:"total_credits"`
	NetBalance   decimal.Decimal `json:"net_balance"`
	IsBalanced   bool            `json:"is_balanced"`
}

// Evaluate computes totals with the default BalanceTolerance.
func Evaluate(entries []model.Entry) Balance {
	return EvaluateWithTolerance(entries, BalanceTolerance)
}

// EvaluateWithTolerance computes totals and NetBalance = debits - credits.
// An empty list is balanced.
func EvaluateWithTolerance(entries []model.Entry, tolerance decimal.Decimal) Balance {
	debits := decimal.Zero
	credits := decimal.Zero
	for _, e := range entries {
		switch e.Type {
		case model.Debit:
			debits = debits.Add(e.Amount)
		case model.Credit:
			credits = credits.Add(e.Amount)
		}
	}

	net := debits.Sub(credits)
	return Balance{
		TotalDebits:  debits,
		TotalCredits: credits,
		NetBalance:   net,
		IsBalanced:   net.Abs().LessThan(tolerance),
	}
}

// Direction returns the side carrying the surplus: Debit for a positive net,
// Credit for a negative one, and "" when balanced.
func (b Balance) Direction() model.EntryType {
	if b.IsBalanced {
		return ""
	}
	if b.NetBalance.IsPositive() {
		return model.Debit
	}
	return model.Credit
}

// IsFullyUnbalanced reports whether one side is absent (below ZeroTolerance)
// while the other is strictly positive.
func (b Balance) IsFullyUnbalanced() bool {
	_, _, ok := b.OneSided()
	return ok
}

// OneSided returns the only side present and its total when the transaction
// is fully unbalanced. It does not consult BalanceTolerance, so a sub-cent
// one-sided transaction still reports its side.
func (b Balance) OneSided() (model.EntryType, decimal.Decimal, bool) {
	debitsZero := b.TotalDebits.LessThan(ZeroTolerance)
	creditsZero := b.TotalCredits.LessThan(ZeroTolerance)
	switch {
	case debitsZero && !creditsZero:
		return model.Credit, b.TotalCredits, true
	case creditsZero && !debitsZero:
		return model.Debit, b.TotalDebits, true
	}
	return "", decimal.Zero, false
}

// Complement returns the entry that would exactly offset the imbalance, or
// false when already balanced.
func (b Balance) Complement(accountID, unit string) (model.Entry, bool) {
	dir := b.Direction()
	if dir == "" {
		return model.Entry{}, false
	}
	return model.Entry{
		AccountID: accountID,
		Amount:    b.NetBalance.Abs(),
		Type:      dir.Opposite(),
		Unit:      unit,
	}, true
}
