package model

import (
	"github.com/shopspring/decimal"
)

// EntryType is the direction of a ledger entry.
type EntryType string

// Entry direction constants.
const (
	Debit  EntryType = "debit"
	Credit EntryType = "credit"
)

// Opposite returns the complementary direction.
func (t EntryType) Opposite() EntryType {
	if t == Debit {
		return Credit
	}
	return Debit
}

// IsValid reports whether t is debit or credit.
func (t EntryType) IsValid() bool {
	return t == Debit || t == Credit
}

// GeneratedKind identifies which engine operation produced an entry.
type GeneratedKind string

// GeneratedComplementary marks entries appended to offset an imbalance.
const GeneratedComplementary GeneratedKind = "complementary"

// Generated is the provenance annotation carried by engine-produced entries.
// User-entered entries never carry one.
type Generated struct {
	Kind GeneratedKind `json:"kind"`
}

// Entry is one line item of a transaction. Amount is always positive;
// direction lives in Type.
type Entry struct {
	Generated     *Generated      `json:"generated,omitempty"`
	ID            string          `json:"id"`
	TransactionID string          `json:"transaction_id"`
	AccountID     string          `json:"account_id"`
	Type          EntryType       `json:"type"`
	Unit          string          `json:"unit"`
	Description   string          `json:"description,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Position      int             `json:"position"`
}

// IsGenerated reports whether the entry was produced by the engine with the given kind.
func (e Entry) IsGenerated(kind GeneratedKind) bool {
	return e.Generated != nil && e.Generated.Kind == kind
}
