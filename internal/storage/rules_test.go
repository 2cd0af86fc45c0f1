package storage

import (
	"context"
	"testing"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRules_CRUD(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	sixty, forty := decimal.RequireFromString("0.6"), decimal.RequireFromString("0.4")
	complementary := &model.Rule{
		Name:      "split groceries",
		Kind:      model.RuleKindComplementary,
		Criteria:  model.Criteria{Pattern: "market", EntryType: model.EntryFilterCredit, SourceAccounts: []string{"checking"}},
		Priority:  5,
		IsEnabled: true,
		AutoApply: true,
		Complementary: &model.ComplementaryPayload{Destinations: []model.Destination{
			{AccountID: "groceries", Ratio: &sixty},
			{AccountID: "dining", Ratio: &forty},
		}},
	}
	edit := &model.Rule{
		Name:      "rename",
		Kind:      model.RuleKindEdit,
		Criteria:  model.Criteria{Pattern: "AMZN"},
		Priority:  5,
		IsEnabled: true,
		Edit:      &model.EditPayload{NewDescription: "Amazon"},
	}
	merge := &model.Rule{
		Name:      "transfers",
		Kind:      model.RuleKindMerge,
		Criteria:  model.Criteria{Pattern: "transfer", EntryType: model.EntryFilterBoth},
		Priority:  9,
		IsEnabled: false,
		Merge:     &model.MergePayload{MaxDateDifference: 3},
	}
	for _, r := range []*model.Rule{complementary, edit, merge} {
		require.NoError(t, store.CreateRule(ctx, r))
		assert.NotZero(t, r.ID)
	}
	assert.Equal(t, model.EntryFilterBoth, edit.EntryType)

	got, err := store.GetRule(ctx, complementary.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RuleKindComplementary, got.Kind)
	assert.Equal(t, []string{"checking"}, got.SourceAccounts)
	assert.True(t, got.AutoApply)
	require.NotNil(t, got.Complementary)
	require.Len(t, got.Complementary.Destinations, 2)
	assert.True(t, got.Complementary.Destinations[0].RatioOrZero().Equal(sixty))

	all, err := store.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, merge.ID, all[0].ID)
	// Equal priorities keep insertion order.
	assert.Equal(t, complementary.ID, all[1].ID)
	assert.Equal(t, edit.ID, all[2].ID)

	enabled, err := store.GetEnabledRules(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 2)
	assert.Equal(t, complementary.ID, enabled[0].ID)

	edit.Edit.NewDescription = "Amazon.com"
	edit.Priority = 50
	require.NoError(t, store.UpdateRule(ctx, edit))
	enabled, err = store.GetEnabledRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, edit.ID, enabled[0].ID)
	assert.Equal(t, "Amazon.com", enabled[0].Edit.NewDescription)

	require.NoError(t, store.DeleteRule(ctx, edit.ID))
	_, err = store.GetRule(ctx, edit.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, store.DeleteRule(ctx, edit.ID), common.ErrNotFound)
}

func TestCreateRule_Validation(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	one := decimal.NewFromInt(1)
	tests := []struct {
		rule *model.Rule
		name string
	}{
		{name: "bad pattern", rule: &model.Rule{Name: "x", Kind: model.RuleKindEdit,
			Criteria: model.Criteria{Pattern: "(["}, Edit: &model.EditPayload{NewDescription: "y"}}},
		{name: "unknown source account", rule: &model.Rule{Name: "x", Kind: model.RuleKindEdit,
			Criteria: model.Criteria{Pattern: "a", SourceAccounts: []string{"ghost"}}, Edit: &model.EditPayload{NewDescription: "y"}}},
		{name: "unknown destination account", rule: &model.Rule{Name: "x", Kind: model.RuleKindComplementary,
			Criteria:      model.Criteria{Pattern: "a"},
			Complementary: &model.ComplementaryPayload{Destinations: []model.Destination{{AccountID: "ghost", Ratio: &one}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, store.CreateRule(ctx, tt.rule), common.ErrValidation)
		})
	}

	rules, err := store.ListRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestUpdateRule_KindChangeDropsOldPayload(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	one := decimal.NewFromInt(1)
	rule := &model.Rule{
		Name:      "trips",
		Kind:      model.RuleKindComplementary,
		Criteria:  model.Criteria{Pattern: "rail"},
		IsEnabled: true,
		Complementary: &model.ComplementaryPayload{Destinations: []model.Destination{
			{AccountID: "dining", Ratio: &one},
		}},
	}
	require.NoError(t, store.CreateRule(ctx, rule))
	require.NoError(t, store.DeleteAccount(ctx, "dining"))

	rule.Kind = model.RuleKindEdit
	rule.Edit = &model.EditPayload{NewDescription: "Rail travel"}
	require.NoError(t, store.UpdateRule(ctx, rule))
	assert.Nil(t, rule.Complementary)

	got, err := store.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RuleKindEdit, got.Kind)
	assert.Nil(t, got.Complementary)
	assert.False(t, got.IsInvalid)
	require.NotNil(t, got.Edit)
	assert.Equal(t, "Rail travel", got.Edit.NewDescription)
}
