package main

import (
	"bytes"
	"testing"

	"github.com/Veraticus/the-books-must-balance/internal/engine"
	"github.com/Veraticus/the-books-must-balance/internal/ledger"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/testutil"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntry(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		want    model.Entry
		wantErr bool
	}{
		{name: "debit", spec: "checking:debit:42.50", want: testutil.Debit("checking", "42.50")},
		{name: "upper case type", spec: "card:CREDIT:7", want: testutil.Credit("card", "7")},
		{name: "missing amount", spec: "checking:debit", wantErr: true},
		{name: "bad amount", spec: "checking:debit:abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseEntry(tt.spec)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.AccountID, got.AccountID)
			assert.Equal(t, tt.want.Type, got.Type)
			assert.True(t, tt.want.Amount.Equal(got.Amount))
		})
	}
}

func TestParseDestination(t *testing.T) {
	ratio, err := parseDestination("groceries=0.6")
	require.NoError(t, err)
	assert.Equal(t, "groceries", ratio.AccountID)
	require.NotNil(t, ratio.Ratio)
	assert.True(t, ratio.Ratio.Equal(testutil.Amount("0.6")))
	assert.Nil(t, ratio.AbsoluteAmount)

	fixed, err := parseDestination("dining=@12.5")
	require.NoError(t, err)
	require.NotNil(t, fixed.AbsoluteAmount)
	assert.True(t, fixed.AbsoluteAmount.Equal(testutil.Amount("12.5")))
	assert.Nil(t, fixed.Ratio)

	for _, bad := range []string{"groceries", "=0.5", "groceries=", "groceries=half"} {
		_, err := parseDestination(bad)
		assert.Error(t, err, bad)
	}
}

func TestDateFlag(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().String("from", "", "")
	cmd.Flags().String("to", "", "")
	require.NoError(t, cmd.Flags().Set("from", "2024-05-02"))
	require.NoError(t, cmd.Flags().Set("to", "May 3"))

	from, err := dateFlag(cmd, "from")
	require.NoError(t, err)
	require.NotNil(t, from)
	assert.True(t, from.Equal(testutil.Day(2)))

	_, err = dateFlag(cmd, "to")
	assert.ErrorContains(t, err, "--to")

	cmd.Flags().String("unset", "", "")
	none, err := dateFlag(cmd, "unset")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestPrintApplyResult(t *testing.T) {
	rule := &model.Rule{Name: "split groceries"}

	tests := []struct {
		result      *engine.ApplyResult
		name        string
		wantOutput  string
		wantChanged bool
	}{
		{
			name: "rule applied",
			result: &engine.ApplyResult{
				Success: true, AppliedRule: rule,
				CreatedEntries: []model.Entry{testutil.Credit(testutil.Groceries, "1")},
			},
			wantOutput:  "Applied rule split groceries, created 1 entry",
			wantChanged: true,
		},
		{
			name:       "already balanced",
			result:     &engine.ApplyResult{Success: true, Message: engine.MsgAlreadyBalanced},
			wantOutput: engine.MsgAlreadyBalanced,
		},
		{
			name:       "no rule",
			result:     &engine.ApplyResult{Message: engine.MsgNoApplicable},
			wantOutput: engine.MsgNoApplicable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			assert.Equal(t, tt.wantChanged, printApplyResult(&buf, tt.result))
			assert.Contains(t, buf.String(), tt.wantOutput)
		})
	}
}

func TestWithOffset(t *testing.T) {
	entries := []model.Entry{
		testutil.Debit(testutil.Groceries, "60"),
		testutil.Debit(testutil.Dining, "15.25"),
	}

	got := withOffset(entries, testutil.Checking)
	require.Len(t, got, 3)
	offset := got[2]
	assert.Equal(t, testutil.Checking, offset.AccountID)
	assert.Equal(t, model.Credit, offset.Type)
	assert.True(t, offset.Amount.Equal(testutil.Amount("75.25")))
	assert.True(t, ledger.Evaluate(got).IsBalanced)

	balanced := []model.Entry{testutil.Debit(testutil.Groceries, "5"), testutil.Credit(testutil.Checking, "5")}
	assert.Len(t, withOffset(balanced, testutil.Card), 2)
}
