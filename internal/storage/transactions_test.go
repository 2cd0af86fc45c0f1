package storage

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2024, 5, d, 0, 0, 0, 0, time.UTC)
}

func boolPtr(b bool) *bool { return &b }

func TestSaveTransaction_RoundTrip(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	txn := &model.Transaction{
		Date:        day(3),
		Description: "Farmers market",
		Reference:   "REF-1",
		Notes:       "weekly",
		IsBalanced:  true, // ignored, recomputed from entries
		Entries: []model.Entry{
			{AccountID: "checking", Type: model.Credit, Amount: amount("42.10")},
			{AccountID: "groceries", Type: model.Debit, Amount: amount("40"), Description: "produce",
				Generated: &model.Generated{Kind: model.GeneratedComplementary}},
		},
	}
	require.NoError(t, store.SaveTransaction(ctx, txn))
	require.NotEmpty(t, txn.ID)
	assert.False(t, txn.IsBalanced)

	got, err := store.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, "Farmers market", got.Description)
	assert.Equal(t, "REF-1", got.Reference)
	assert.Equal(t, "weekly", got.Notes)
	assert.True(t, got.Date.Equal(day(3)))
	assert.False(t, got.IsBalanced)
	require.Len(t, got.Entries, 2)

	assert.Equal(t, "checking", got.Entries[0].AccountID)
	assert.True(t, got.Entries[0].Amount.Equal(amount("42.1")))
	assert.Equal(t, "Farmers market", got.Entries[0].Description)
	assert.Equal(t, model.DefaultUnit, got.Entries[0].Unit)
	assert.Nil(t, got.Entries[0].Generated)

	assert.Equal(t, "produce", got.Entries[1].Description)
	assert.True(t, got.Entries[1].IsGenerated(model.GeneratedComplementary))
	assert.Equal(t, 1, got.Entries[1].Position)

	got.Entries = append(got.Entries, model.Entry{AccountID: "groceries", Type: model.Debit, Amount: amount("2.10")})
	require.NoError(t, store.SaveTransaction(ctx, got))

	reloaded, err := store.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsBalanced)
	assert.Len(t, reloaded.Entries, 3)
}

func TestSaveTransaction_Validation(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	tests := []struct {
		txn  *model.Transaction
		name string
	}{
		{name: "nil", txn: nil},
		{name: "missing date", txn: &model.Transaction{}},
		{name: "zero amount", txn: &model.Transaction{Date: day(1),
			Entries: []model.Entry{{AccountID: "checking", Type: model.Debit, Amount: amount("0")}}}},
		{name: "negative amount", txn: &model.Transaction{Date: day(1),
			Entries: []model.Entry{{AccountID: "checking", Type: model.Debit, Amount: amount("-3")}}}},
		{name: "bad type", txn: &model.Transaction{Date: day(1),
			Entries: []model.Entry{{AccountID: "checking", Type: "up", Amount: amount("3")}}}},
		{name: "unknown account", txn: &model.Transaction{Date: day(1),
			Entries: []model.Entry{{AccountID: "nope", Type: model.Debit, Amount: amount("3")}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, store.SaveTransaction(ctx, tt.txn), common.ErrValidation)
		})
	}
}

func TestFindTransactions(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	seed := []*model.Transaction{
		{Date: day(1), Description: "a", Entries: []model.Entry{{AccountID: "checking", Type: model.Debit, Amount: amount("1")}}},
		{Date: day(5), Description: "b", Entries: []model.Entry{
			{AccountID: "checking", Type: model.Debit, Amount: amount("2")},
			{AccountID: "groceries", Type: model.Credit, Amount: amount("2")},
		}},
		{Date: day(9), Description: "c", Entries: []model.Entry{{AccountID: "dining", Type: model.Credit, Amount: amount("3")}}},
	}
	for _, txn := range seed {
		require.NoError(t, store.SaveTransaction(ctx, txn))
	}

	start, end := day(2), day(9)
	tests := []struct {
		name   string
		filter service.TransactionFilter
		want   []string
	}{
		{name: "all", want: []string{"a", "b", "c"}},
		{name: "date window", filter: service.TransactionFilter{StartDate: &start, EndDate: &end}, want: []string{"b", "c"}},
		{name: "unbalanced only", filter: service.TransactionFilter{IsBalanced: boolPtr(false)}, want: []string{"a", "c"}},
		{name: "account membership", filter: service.TransactionFilter{AccountIDs: []string{"groceries", "dining"}}, want: []string{"b", "c"}},
		{name: "exclude id", filter: service.TransactionFilter{ExcludeID: seed[0].ID}, want: []string{"b", "c"}},
		{name: "limit", filter: service.TransactionFilter{Limit: 1}, want: []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.FindTransactions(ctx, tt.filter)
			require.NoError(t, err)
			var descriptions []string
			for _, txn := range got {
				descriptions = append(descriptions, txn.Description)
				assert.NotEmpty(t, txn.Entries)
			}
			assert.Equal(t, tt.want, descriptions)
		})
	}

	_, err := store.FindTransactions(ctx, service.TransactionFilter{StartDate: &end, EndDate: &start})
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}

func TestMoveEntriesAndDelete(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	from := &model.Transaction{Date: day(1), Entries: []model.Entry{
		{AccountID: "checking", Type: model.Debit, Amount: amount("7")},
		{AccountID: "checking", Type: model.Debit, Amount: amount("8")},
	}}
	to := &model.Transaction{Date: day(2), Entries: []model.Entry{
		{AccountID: "groceries", Type: model.Credit, Amount: amount("7")},
	}}
	require.NoError(t, store.SaveTransaction(ctx, from))
	require.NoError(t, store.SaveTransaction(ctx, to))

	moved := from.Entries[0].ID
	require.NoError(t, store.MoveEntries(ctx, []string{moved}, to.ID))

	entry, err := store.GetEntry(ctx, moved)
	require.NoError(t, err)
	assert.Equal(t, to.ID, entry.TransactionID)
	assert.Equal(t, 1, entry.Position)

	err = store.MoveEntries(ctx, []string{"ghost"}, to.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	err = store.MoveEntries(ctx, []string{moved}, "ghost")
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, store.DeleteTransaction(ctx, from.ID))
	_, err = store.GetTransaction(ctx, from.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = store.GetEntry(ctx, from.Entries[1].ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	assert.ErrorIs(t, store.DeleteTransaction(ctx, from.ID), common.ErrNotFound)
}
