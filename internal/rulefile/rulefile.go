// Package rulefile reads and writes rule definitions as YAML so rule sets can
// be versioned and moved between databases.
package rulefile

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/pattern"
	"gopkg.in/yaml.v3"
)

// Document is the top-level shape of a rule file.
type Document struct {
	Rules []RuleDef `yaml:"rules"`
}

// RuleDef is one rule as written in a file. Only the payload fields that
// belong to Type are read.
type RuleDef struct {
	Name              string              `yaml:"name"`
	Type              model.RuleKind      `yaml:"type"`
	Criteria          model.Criteria      `yaml:",inline"`
	NewDescription    string              `yaml:"new_description,omitempty"`
	Destinations      []model.Destination `yaml:"destination_accounts,omitempty"`
	MaxDateDifference int                 `yaml:"max_date_difference,omitempty"`
	Priority          int                 `yaml:"priority,omitempty"`
	AutoApply         bool                `yaml:"auto_apply,omitempty"`
	Enabled           *bool               `yaml:"enabled,omitempty"`
}

// RuleCreator is the slice of storage that Import needs.
type RuleCreator interface {
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	CreateRule(ctx context.Context, rule *model.Rule) error
}

// Decode parses a rule file and validates every rule in it. Unknown keys are
// rejected so typos do not silently drop settings.
func Decode(r io.Reader) ([]model.Rule, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return []model.Rule{}, nil
		}
		return nil, common.Validationf("invalid rule file: %v", err)
	}

	rules := make([]model.Rule, 0, len(doc.Rules))
	for i, def := range doc.Rules {
		rule := def.toRule()
		if err := pattern.ValidateRule(&rule); err != nil {
			return nil, common.Validationf("rule %d: %s", i+1, common.Message(err))
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// Encode writes rules as a rule file. Ids, timestamps and invalid flags are
// database state and are not exported.
func Encode(w io.Writer, rules []model.Rule) error {
	doc := Document{Rules: make([]RuleDef, 0, len(rules))}
	for i := range rules {
		doc.Rules = append(doc.Rules, fromRule(&rules[i]))
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to flush rules: %w", err)
	}
	return nil
}

// Import stores rules in order. Every referenced account is checked before
// the first rule is written, so a bad file creates nothing.
func Import(ctx context.Context, store RuleCreator, rules []model.Rule) (int, error) {
	for i := range rules {
		for _, id := range rules[i].ReferencedAccounts() {
			if _, err := store.GetAccount(ctx, id); err != nil {
				if errors.Is(err, common.ErrNotFound) {
					return 0, common.Validationf("rule %q references unknown account %q", rules[i].Name, id)
				}
				return 0, err
			}
		}
	}

	for i := range rules {
		if err := store.CreateRule(ctx, &rules[i]); err != nil {
			return i, fmt.Errorf("failed to import rule %q: %w", rules[i].Name, err)
		}
	}

	common.LogInfo(ctx, "Imported rules", common.Fields{"count": len(rules)})
	return len(rules), nil
}

func (d RuleDef) toRule() model.Rule {
	rule := model.Rule{
		Name:      d.Name,
		Kind:      d.Type,
		Criteria:  d.Criteria,
		Priority:  d.Priority,
		AutoApply: d.AutoApply,
		IsEnabled: d.Enabled == nil || *d.Enabled,
	}
	if rule.EntryType == "" {
		rule.EntryType = model.EntryFilterBoth
	}

	switch d.Type {
	case model.RuleKindEdit:
		rule.Edit = &model.EditPayload{NewDescription: d.NewDescription}
	case model.RuleKindMerge:
		rule.Merge = &model.MergePayload{MaxDateDifference: d.MaxDateDifference}
	case model.RuleKindComplementary:
		rule.Complementary = &model.ComplementaryPayload{Destinations: d.Destinations}
	}
	return rule
}

func fromRule(rule *model.Rule) RuleDef {
	def := RuleDef{
		Name:      rule.Name,
		Type:      rule.Kind,
		Criteria:  rule.Criteria,
		Priority:  rule.Priority,
		AutoApply: rule.AutoApply,
	}
	if !rule.IsEnabled {
		disabled := false
		def.Enabled = &disabled
	}

	switch {
	case rule.Edit != nil:
		def.NewDescription = rule.Edit.NewDescription
	case rule.Merge != nil:
		def.MaxDateDifference = rule.Merge.MaxDateDifference
	case rule.Complementary != nil:
		def.Destinations = rule.Complementary.Destinations
	}
	return def
}
