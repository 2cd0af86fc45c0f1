// Package pattern implements rule-to-transaction matching and rule validation.
package pattern

import (
	"regexp"
	"sync"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
)

// Matcher evaluates criteria against transactions, caching compiled patterns.
// It is the only matching implementation; every applicator goes through it.
type Matcher struct {
	compiled map[string]*regexp.Regexp
	mu       sync.RWMutex
}

// NewMatcher creates a matcher with an empty pattern cache.
func NewMatcher() *Matcher {
	return &Matcher{compiled: make(map[string]*regexp.Regexp)}
}

// Matches reports whether txn satisfies c:
//  1. the pattern matches the description case-insensitively, then
//  2. with no account filter and entry type "both" the match succeeds, else
//  3. at least one entry passes both the entry type and account filters.
//
// An uncompilable pattern never matches.
func (m *Matcher) Matches(c model.Criteria, txn *model.Transaction) bool {
	re, err := m.regex(c.Pattern)
	if err != nil {
		return false
	}
	if !re.MatchString(txn.Description) {
		return false
	}

	if (c.EntryType == model.EntryFilterBoth || c.EntryType == "") && len(c.SourceAccounts) == 0 {
		return true
	}

	for _, e := range txn.Entries {
		if c.AcceptsEntry(e) {
			return true
		}
	}
	return false
}

// SourceEntry returns the first entry with a positive amount that passes the
// criteria's entry filters, or nil.
func (m *Matcher) SourceEntry(c model.Criteria, txn *model.Transaction) *model.Entry {
	for i := range txn.Entries {
		e := &txn.Entries[i]
		if e.Amount.IsPositive() && c.AcceptsEntry(*e) {
			return e
		}
	}
	return nil
}

func (m *Matcher) regex(pattern string) (*regexp.Regexp, error) {
	m.mu.RLock()
	re, ok := m.compiled[pattern]
	m.mu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := common.CompilePattern(pattern)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.compiled[pattern] = re
	m.mu.Unlock()
	return re, nil
}

var defaultMatcher = NewMatcher()

// Matches evaluates c against txn using the shared package-level matcher.
func Matches(c model.Criteria, txn *model.Transaction) bool {
	return defaultMatcher.Matches(c, txn)
}
