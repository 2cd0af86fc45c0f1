// Package model defines the core data structures for the bookkeeping engine.
package model

import "time"

// AccountType classifies an account in the chart of accounts.
type AccountType string

// Account type constants.
const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeIncome    AccountType = "income"
	AccountTypeExpense   AccountType = "expense"
	AccountTypeEquity    AccountType = "equity"
)

// DefaultUnit is the unit assumed for accounts that do not configure one.
const DefaultUnit = "USD"

// Account is a node in the chart of accounts. The engine only reads accounts.
type Account struct {
	CreatedAt time.Time   `json:"created_at"`
	ParentID  *string     `json:"parent_id,omitempty"`
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Type      AccountType `json:"type"`
	Unit      string      `json:"unit"`
}

// UnitOrDefault returns the configured unit, falling back to DefaultUnit.
func (a *Account) UnitOrDefault() string {
	if a == nil || a.Unit == "" {
		return DefaultUnit
	}
	return a.Unit
}

// IsValid reports whether t is a known account type.
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeIncome, AccountTypeExpense, AccountTypeEquity:
		return true
	}
	return false
}
