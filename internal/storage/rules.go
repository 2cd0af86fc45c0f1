package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/pattern"
)

const ruleColumns = `id, name, kind, pattern, entry_type, source_accounts, payload,
	auto_apply, priority, is_enabled, is_invalid, invalid_reason, created_at, updated_at`

// CreateRule validates and inserts a rule. Every referenced account must exist.
func (s *SQLiteStorage) CreateRule(ctx context.Context, rule *model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := s.validateRule(ctx, rule); err != nil {
		return err
	}

	sources, payload, err := encodeRule(rule)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	result, err := s.q().ExecContext(ctx, `
		INSERT INTO rules (
			name, kind, pattern, entry_type, source_accounts, payload,
			auto_apply, priority, is_enabled, is_invalid, invalid_reason, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, '', ?, ?)`,
		rule.Name, string(rule.Kind), rule.Pattern, string(rule.EntryType), sources, payload,
		rule.AutoApply, rule.Priority, rule.IsEnabled, formatTime(now), formatTime(now))
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get rule ID: %w", err)
	}

	rule.ID = id
	rule.IsInvalid = false
	rule.InvalidReason = ""
	rule.CreatedAt = now
	rule.UpdatedAt = now
	return nil
}

// UpdateRule replaces a stored rule. Saving a rule whose accounts all exist
// clears any previous invalid flag.
func (s *SQLiteStorage) UpdateRule(ctx context.Context, rule *model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := s.validateRule(ctx, rule); err != nil {
		return err
	}

	sources, payload, err := encodeRule(rule)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	result, err := s.q().ExecContext(ctx, `
		UPDATE rules SET
			name = ?, kind = ?, pattern = ?, entry_type = ?, source_accounts = ?, payload = ?,
			auto_apply = ?, priority = ?, is_enabled = ?, is_invalid = 0, invalid_reason = '', updated_at = ?
		WHERE id = ?`,
		rule.Name, string(rule.Kind), rule.Pattern, string(rule.EntryType), sources, payload,
		rule.AutoApply, rule.Priority, rule.IsEnabled, formatTime(now), rule.ID)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return common.NotFoundf("rule %d", rule.ID)
	}

	rule.IsInvalid = false
	rule.InvalidReason = ""
	rule.UpdatedAt = now
	return nil
}

// DeleteRule deletes a rule.
func (s *SQLiteStorage) DeleteRule(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.q().ExecContext(ctx, "DELETE FROM rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return common.NotFoundf("rule %d", id)
	}
	return nil
}

// GetRule retrieves a rule by id.
func (s *SQLiteStorage) GetRule(ctx context.Context, id int64) (*model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.q().QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM rules WHERE id = ?`, id)
	rule, err := scanRule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NotFoundf("rule %d", id)
		}
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

// GetEnabledRules returns enabled, valid rules by priority descending, then
// insertion order.
func (s *SQLiteStorage) GetEnabledRules(ctx context.Context) ([]model.Rule, error) {
	return s.queryRules(ctx, `WHERE is_enabled = 1 AND is_invalid = 0`)
}

// ListRules returns every rule by priority descending, then insertion order.
func (s *SQLiteStorage) ListRules(ctx context.Context) ([]model.Rule, error) {
	return s.queryRules(ctx, "")
}

func (s *SQLiteStorage) queryRules(ctx context.Context, where string) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.q().QueryContext(ctx, `SELECT `+ruleColumns+` FROM rules `+where+` ORDER BY priority DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}
	return rules, nil
}

// invalidateRulesReferencing flags every rule that names accountID.
func (s *SQLiteStorage) invalidateRulesReferencing(ctx context.Context, accountID, reason string) error {
	rules, err := s.ListRules(ctx)
	if err != nil {
		return err
	}

	now := formatTime(time.Now().UTC())
	for _, rule := range rules {
		referenced := false
		for _, id := range rule.ReferencedAccounts() {
			if id == accountID {
				referenced = true
				break
			}
		}
		if !referenced {
			continue
		}
		if _, err := s.q().ExecContext(ctx,
			`UPDATE rules SET is_invalid = 1, invalid_reason = ?, updated_at = ? WHERE id = ?`,
			reason, now, rule.ID); err != nil {
			return fmt.Errorf("failed to invalidate rule %d: %w", rule.ID, err)
		}
	}
	return nil
}

func (s *SQLiteStorage) validateRule(ctx context.Context, rule *model.Rule) error {
	if rule != nil {
		rule.DropOtherPayloads()
		if rule.EntryType == "" {
			rule.EntryType = model.EntryFilterBoth
		}
	}
	if err := pattern.ValidateRule(rule); err != nil {
		return err
	}
	for _, id := range rule.ReferencedAccounts() {
		if _, err := s.GetAccount(ctx, id); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return common.Validationf("rule %q references unknown account %q", rule.Name, id)
			}
			return err
		}
	}
	return nil
}

// encodeRule serializes the source account list and the variant payload.
func encodeRule(rule *model.Rule) (string, string, error) {
	sources := rule.SourceAccounts
	if sources == nil {
		sources = []string{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode source accounts: %w", err)
	}

	var payload any
	switch rule.Kind {
	case model.RuleKindEdit:
		payload = rule.Edit
	case model.RuleKindMerge:
		payload = rule.Merge
	case model.RuleKindComplementary:
		payload = rule.Complementary
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode rule payload: %w", err)
	}
	return string(sourcesJSON), string(payloadJSON), nil
}

func scanRule(row rowScanner) (*model.Rule, error) {
	var rule model.Rule
	var kind, entryType, sources, payload, createdAt, updatedAt string
	if err := row.Scan(&rule.ID, &rule.Name, &kind, &rule.Pattern, &entryType, &sources, &payload,
		&rule.AutoApply, &rule.Priority, &rule.IsEnabled, &rule.IsInvalid, &rule.InvalidReason,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}

	rule.Kind = model.RuleKind(kind)
	rule.EntryType = model.EntryFilter(entryType)
	if err := json.Unmarshal([]byte(sources), &rule.SourceAccounts); err != nil {
		return nil, fmt.Errorf("failed to decode source accounts of rule %d: %w", rule.ID, err)
	}
	if len(rule.SourceAccounts) == 0 {
		rule.SourceAccounts = nil
	}

	var target any
	switch rule.Kind {
	case model.RuleKindEdit:
		rule.Edit = &model.EditPayload{}
		target = rule.Edit
	case model.RuleKindMerge:
		rule.Merge = &model.MergePayload{}
		target = rule.Merge
	case model.RuleKindComplementary:
		rule.Complementary = &model.ComplementaryPayload{}
		target = rule.Complementary
	default:
		return nil, fmt.Errorf("rule %d has unknown kind %q", rule.ID, kind)
	}
	if err := json.Unmarshal([]byte(payload), target); err != nil {
		return nil, fmt.Errorf("failed to decode payload of rule %d: %w", rule.ID, err)
	}

	var err error
	if rule.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if rule.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &rule, nil
}
