package model

import (
	"time"
)

// Transaction is the aggregate root owning an ordered list of entries.
// IsBalanced is a cached value recomputed by the engine on every mutation.
type Transaction struct {
	Date        time.Time `json:"date"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Reference   string    `json:"reference,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	Entries     []Entry   `json:"entries"`
	IsBalanced  bool      `json:"is_balanced"`
}

// HasGeneratedEntries reports whether any entry carries the given provenance kind.
func (t *Transaction) HasGeneratedEntries(kind GeneratedKind) bool {
	for _, e := range t.Entries {
		if e.IsGenerated(kind) {
			return true
		}
	}
	return false
}
