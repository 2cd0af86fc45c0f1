package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RuleKind is the discriminator selecting a rule variant.
type RuleKind string

// Rule variants.
const (
	RuleKindEdit          RuleKind = "edit"
	RuleKindMerge         RuleKind = "merge"
	RuleKindComplementary RuleKind = "complementary"
)

// IsValid reports whether k names a known variant.
func (k RuleKind) IsValid() bool {
	switch k {
	case RuleKindEdit, RuleKindMerge, RuleKindComplementary:
		return true
	}
	return false
}

// EntryFilter restricts which entries a rule considers.
type EntryFilter string

// Entry filter constants.
const (
	EntryFilterDebit  EntryFilter = "debit"
	EntryFilterCredit EntryFilter = "credit"
	EntryFilterBoth   EntryFilter = "both"
)

// Accepts reports whether an entry of type t passes the filter.
// An empty filter behaves like EntryFilterBoth.
func (f EntryFilter) Accepts(t EntryType) bool {
	switch f {
	case EntryFilterBoth, "":
		return true
	default:
		return string(f) == string(t)
	}
}

// Criteria is the match predicate shared by stored rules and ad-hoc mass queries.
type Criteria struct {
	Pattern        string      `json:"pattern" yaml:"pattern"`
	EntryType      EntryFilter `json:"entry_type" yaml:"entry_type"`
	SourceAccounts []string    `json:"source_accounts,omitempty" yaml:"source_accounts,omitempty"`
}

// AcceptsEntry reports whether a single entry passes the account and type filters.
func (c Criteria) AcceptsEntry(e Entry) bool {
	if !c.EntryType.Accepts(e.Type) {
		return false
	}
	if len(c.SourceAccounts) == 0 {
		return true
	}
	for _, id := range c.SourceAccounts {
		if e.AccountID == id {
			return true
		}
	}
	return false
}

// Destination is one target of a complementary split. Either Ratio or
// AbsoluteAmount is set; AbsoluteAmount wins when both are positive.
type Destination struct {
	Ratio          *decimal.Decimal `json:"ratio,omitempty" yaml:"ratio,omitempty"`
	AbsoluteAmount *decimal.Decimal `json:"absolute_amount,omitempty" yaml:"absolute_amount,omitempty"`
	AccountID      string           `json:"account_id" yaml:"account_id"`
}

// RatioOrZero returns the ratio, treating a missing one as zero.
func (d Destination) RatioOrZero() decimal.Decimal {
	if d.Ratio == nil {
		return decimal.Zero
	}
	return *d.Ratio
}

// AbsoluteOrZero returns the fixed amount, treating a missing one as zero.
func (d Destination) AbsoluteOrZero() decimal.Decimal {
	if d.AbsoluteAmount == nil {
		return decimal.Zero
	}
	return *d.AbsoluteAmount
}

// EditPayload replaces the transaction description on match.
type EditPayload struct {
	NewDescription string `json:"new_description" yaml:"new_description"`
}

// MergePayload bounds how far apart two mergeable transactions may be dated.
type MergePayload struct {
	MaxDateDifference int `json:"max_date_difference" yaml:"max_date_difference"`
}

// ComplementaryPayload lists where offsetting entries are generated.
type ComplementaryPayload struct {
	Destinations []Destination `json:"destination_accounts" yaml:"destination_accounts"`
}

// Rule is a stored categorization or balancing rule. Kind selects which of
// the payload pointers is populated.
type Rule struct {
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
	Edit          *EditPayload          `json:"edit,omitempty"`
	Merge         *MergePayload         `json:"merge,omitempty"`
	Complementary *ComplementaryPayload `json:"complementary,omitempty"`
	Name          string                `json:"name"`
	Kind          RuleKind              `json:"type"`
	InvalidReason string                `json:"invalid_reason,omitempty"`
	Criteria
	ID        int64 `json:"id"`
	Priority  int   `json:"priority"`
	AutoApply bool  `json:"auto_apply"`
	IsEnabled bool  `json:"is_enabled"`
	IsInvalid bool  `json:"is_invalid"`
}

// Usable reports whether the rule may be applied at all.
func (r *Rule) Usable() bool {
	return r.IsEnabled && !r.IsInvalid
}

// DropOtherPayloads clears the payloads that do not belong to Kind, so a rule
// whose kind changed carries no leftover settings.
func (r *Rule) DropOtherPayloads() {
	if r.Kind != RuleKindEdit {
		r.Edit = nil
	}
	if r.Kind != RuleKindMerge {
		r.Merge = nil
	}
	if r.Kind != RuleKindComplementary {
		r.Complementary = nil
	}
}

// ReferencedAccounts returns every account id the rule depends on.
func (r *Rule) ReferencedAccounts() []string {
	ids := append([]string(nil), r.SourceAccounts...)
	if r.Kind == RuleKindComplementary && r.Complementary != nil {
		for _, d := range r.Complementary.Destinations {
			ids = append(ids, d.AccountID)
		}
	}
	return ids
}
