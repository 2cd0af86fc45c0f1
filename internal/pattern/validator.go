package pattern

import (
	"strings"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/ledger"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/shopspring/decimal"
)

// Merge rule date window bounds, in days.
const (
	MinMergeDateDifference = 1
	MaxMergeDateDifference = 15
)

// MaxMassQueryDays is the longest date span a mass query may cover.
const MaxMassQueryDays = 366

// ValidateRule checks a rule before it is stored. Every failure is a validation error.
func ValidateRule(rule *model.Rule) error {
	if rule == nil {
		return common.Validationf("rule is required")
	}
	if strings.TrimSpace(rule.Name) == "" {
		return common.Validationf("rule name is required")
	}
	if err := ValidateCriteria(rule.Criteria); err != nil {
		return err
	}

	switch rule.Kind {
	case model.RuleKindEdit:
		if rule.Edit == nil || strings.TrimSpace(rule.Edit.NewDescription) == "" {
			return common.Validationf("edit rule %q requires a new description", rule.Name)
		}
	case model.RuleKindMerge:
		if rule.Merge == nil {
			return common.Validationf("merge rule %q requires a max date difference", rule.Name)
		}
		if d := rule.Merge.MaxDateDifference; d < MinMergeDateDifference || d > MaxMergeDateDifference {
			return common.Validationf("merge rule %q: max date difference must be between %d and %d days, got %d",
				rule.Name, MinMergeDateDifference, MaxMergeDateDifference, d)
		}
	case model.RuleKindComplementary:
		if rule.Complementary == nil {
			return common.Validationf("complementary rule %q requires destination accounts", rule.Name)
		}
		if err := ValidateDestinations(rule.Complementary.Destinations); err != nil {
			return err
		}
	default:
		return common.Validationf("unknown rule type %q", rule.Kind)
	}
	return nil
}

// ValidateCriteria checks the shared match predicate.
func ValidateCriteria(c model.Criteria) error {
	if _, err := common.CompilePattern(c.Pattern); err != nil {
		return err
	}
	switch c.EntryType {
	case model.EntryFilterDebit, model.EntryFilterCredit, model.EntryFilterBoth, "":
	default:
		return common.Validationf("entry type must be debit, credit or both, got %q", c.EntryType)
	}
	for _, id := range c.SourceAccounts {
		if strings.TrimSpace(id) == "" {
			return common.Validationf("source account ids cannot be empty")
		}
	}
	return nil
}

// ValidateDestinations checks a complementary split. At least one destination
// is required, amounts cannot be negative, each destination must resolve to a
// positive share, and when any ratio is given all ratios must sum to 1.
func ValidateDestinations(destinations []model.Destination) error {
	if len(destinations) == 0 {
		return common.Validationf("at least one destination account is required")
	}
	for i, d := range destinations {
		if strings.TrimSpace(d.AccountID) == "" {
			return common.Validationf("destination %d: account id is required", i)
		}
		if d.RatioOrZero().IsNegative() || d.AbsoluteOrZero().IsNegative() {
			return common.Validationf("destination %d: ratio and amount cannot be negative", i)
		}
		if !d.RatioOrZero().IsPositive() && !d.AbsoluteOrZero().IsPositive() {
			return common.Validationf("destination %d: a positive ratio or absolute amount is required", i)
		}
	}

	if sum, found := ledger.RatioSum(destinations); found {
		if sum.Sub(decimal.NewFromInt(1)).Abs().GreaterThan(ledger.ZeroTolerance) {
			return common.Validationf("destination ratios must sum to 1, got %s", sum)
		}
	}
	return nil
}

// ValidateMassQuery checks the date window and pattern of a mass query.
func ValidateMassQuery(q model.MassQuery) error {
	if q.StartDate.IsZero() || q.EndDate.IsZero() {
		return common.Validationf("start and end dates are required")
	}
	if q.EndDate.Before(q.StartDate) {
		return common.Validationf("end date %s is before start date %s",
			q.EndDate.Format("2006-01-02"), q.StartDate.Format("2006-01-02"))
	}
	if q.EndDate.Sub(q.StartDate) > MaxMassQueryDays*24*time.Hour {
		return common.Validationf("date range cannot exceed %d days", MaxMassQueryDays)
	}
	return ValidateCriteria(q.Criteria())
}

// ValidateMassAction checks the action-specific payload.
func ValidateMassAction(a model.MassAction) error {
	switch a.Type {
	case model.MassComplementaryAdd:
		return ValidateDestinations(a.Destinations)
	case model.MassEditFields:
		if a.Fields == nil || a.Fields.IsEmpty() {
			return common.Validationf("edit fields action requires at least one field")
		}
		if a.Fields.Description != nil && strings.TrimSpace(*a.Fields.Description) == "" {
			return common.Validationf("description cannot be blank")
		}
	case model.MassMergeInto:
	default:
		return common.Validationf("unknown mass action type %q", a.Type)
	}
	return nil
}
