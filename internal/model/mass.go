package model

import "time"

// MassActionType is the discriminator of an ad-hoc mass action.
type MassActionType string

// Mass action variants.
const (
	MassComplementaryAdd MassActionType = "complementary_add"
	MassEditFields       MassActionType = "edit_fields"
	MassMergeInto        MassActionType = "merge_into"
)

// MassQuery scopes a mass action. StartDate and EndDate are mandatory.
type MassQuery struct {
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	Pattern        string    `json:"pattern,omitempty"`
	SourceAccounts []string  `json:"source_accounts,omitempty"`
}

// Criteria converts the query into the shared match predicate.
func (q MassQuery) Criteria() Criteria {
	return Criteria{
		Pattern:        q.Pattern,
		EntryType:      EntryFilterBoth,
		SourceAccounts: q.SourceAccounts,
	}
}

// FieldEdits lists the transaction fields an EditFields action assigns.
// Nil pointers are left untouched.
type FieldEdits struct {
	Description *string    `json:"description,omitempty"`
	Reference   *string    `json:"reference,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
	Date        *time.Time `json:"date,omitempty"`
}

// IsEmpty reports whether no field is supplied.
func (f FieldEdits) IsEmpty() bool {
	return f.Description == nil && f.Reference == nil && f.Notes == nil && f.Date == nil
}

// MassAction is one ad-hoc operation applied across a query. It is never persisted.
type MassAction struct {
	Fields              *FieldEdits    `json:"fields,omitempty"`
	Type                MassActionType `json:"type"`
	TargetTransactionID string         `json:"target_transaction_id,omitempty"`
	Destinations        []Destination  `json:"destination,omitempty"`
}
