package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/pattern"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/Veraticus/the-books-must-balance/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ratio(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func splitRule(name string, priority int) model.Rule {
	return model.Rule{
		Name:     name,
		Kind:     model.RuleKindComplementary,
		Priority: priority,
		Criteria: model.Criteria{
			Pattern:        "grocery",
			EntryType:      model.EntryFilterDebit,
			SourceAccounts: []string{testutil.Checking},
		},
		Complementary: &model.ComplementaryPayload{Destinations: []model.Destination{
			{AccountID: testutil.Groceries, Ratio: ratio("0.6")},
			{AccountID: testutil.Dining, Ratio: ratio("0.4")},
		}},
	}
}

func TestApplyRules_ComplementarySplit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	e := New(db.Storage)
	ctx := context.Background()

	rule := db.MustRule(splitRule("split groceries", 0))
	txn := db.MustTransaction(testutil.Day(3), "Grocery run", testutil.Debit(testutil.Checking, "100"))

	result, err := e.ApplyRules(ctx, txn.ID)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.NotNil(t, result.AppliedRule)
	assert.Equal(t, rule.ID, result.AppliedRule.ID)
	assert.True(t, result.IsNowBalanced)
	require.Len(t, result.CreatedEntries, 2)

	got := db.MustGet(txn.ID)
	assert.True(t, got.IsBalanced)
	require.Len(t, got.Entries, 3)

	want := map[string]string{testutil.Groceries: "60", testutil.Dining: "40"}
	for _, entry := range got.Entries[1:] {
		assert.Equal(t, model.Credit, entry.Type)
		assert.True(t, entry.IsGenerated(model.GeneratedComplementary))
		assert.True(t, entry.Amount.Equal(testutil.Amount(want[entry.AccountID])),
			"account %s got %s", entry.AccountID, entry.Amount)
	}
	assert.Nil(t, got.Entries[0].Generated)
}

func TestApplyRules_DestinationUnit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	e := New(db.Storage)

	rule := splitRule("travel", 0)
	rule.Complementary.Destinations = []model.Destination{{AccountID: testutil.Travel, Ratio: ratio("1")}}
	db.MustRule(rule)
	txn := db.MustTransaction(testutil.Day(3), "grocery abroad", testutil.Debit(testutil.Checking, "12.50"))

	result, err := e.ApplyRules(context.Background(), txn.ID)
	require.NoError(t, err)
	require.Len(t, result.CreatedEntries, 1)
	assert.Equal(t, "EUR", result.CreatedEntries[0].Unit)
}

func TestApplyRules_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	e := New(db.Storage)
	ctx := context.Background()

	db.MustRule(splitRule("split groceries", 0))
	txn := db.MustTransaction(testutil.Day(3), "Grocery run", testutil.Debit(testutil.Checking, "100"))

	_, err := e.ApplyRules(ctx, txn.ID)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		result, err := e.ApplyRules(ctx, txn.ID)
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, MsgAlreadyBalanced, result.Message)
		assert.Nil(t, result.AppliedRule)
		assert.Len(t, db.MustGet(txn.ID).Entries, 3)
	}
}

func TestApplyRules_NoApplicableRule(t *testing.T) {
	db := testutil.SetupTestDB(t)
	e := New(db.Storage)

	db.MustRule(splitRule("split groceries", 0))
	txn := db.MustTransaction(testutil.Day(3), "Hardware store", testutil.Debit(testutil.Checking, "100"))

	result, err := e.ApplyRules(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, MsgNoApplicable, result.Message)
	assert.Len(t, db.MustGet(txn.ID).Entries, 1)
}

func TestApplyRules_PriorityOrder(t *testing.T) {
	db := testutil.SetupTestDB(t)
	e := New(db.Storage)

	db.MustRule(splitRule("low", 1))
	high := splitRule("high", 10)
	high.Complementary.Destinations = []model.Destination{{AccountID: testutil.Dining, Ratio: ratio("1")}}
	db.MustRule(high)
	tie := splitRule("tie", 10)
	tie.Complementary.Destinations = []model.Destination{{AccountID: testutil.Groceries, Ratio: ratio("1")}}
	db.MustRule(tie)

	txn := db.MustTransaction(testutil.Day(3), "grocery", testutil.Debit(testutil.Checking, "20"))
	result, err := e.ApplyRules(context.Background(), txn.ID)
	require.NoError(t, err)
	require.NotNil(t, result.AppliedRule)
	assert.Equal(t, "high", result.AppliedRule.Name)
	require.Len(t, result.CreatedEntries, 1)
	assert.Equal(t, testutil.Dining, result.CreatedEntries[0].AccountID)
}

func TestApplyRules_SkipsDisabledAndMergeRules(t *testing.T) {
	db := testutil.SetupTestDB(t)
	e := New(db.Storage)
	ctx := context.Background()

	disabled := splitRule("disabled", 5)
	require.NoError(t, db.Storage.CreateRule(ctx, &disabled))
	db.MustRule(model.Rule{
		Name:     "merge",
		Kind:     model.RuleKindMerge,
		Priority: 9,
		Criteria: model.Criteria{Pattern: "grocery", EntryType: model.EntryFilterBoth},
		Merge:    &model.MergePayload{MaxDateDifference: 3},
	})

	txn := db.MustTransaction(testutil.Day(3), "grocery", testutil.Debit(testutil.Checking, "20"))
	result, err := e.ApplyRules(ctx, txn.ID)
	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestApplyRules_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	_, err := New(db.Storage).ApplyRules(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestFirstApplicable_EditRule(t *testing.T) {
	m := pattern.NewMatcher()
	rules := []model.Rule{{
		Name:      "rename",
		Kind:      model.RuleKindEdit,
		IsEnabled: true,
		Criteria:  model.Criteria{Pattern: "bulk|edited", EntryType: model.EntryFilterBoth},
		Edit:      &model.EditPayload{NewDescription: "EDITED"},
	}}

	plan := FirstApplicable(m, rules, &model.Transaction{Description: "Bulk Transaction 1"})
	require.NotNil(t, plan)
	assert.Equal(t, "EDITED", plan.NewDescription)

	assert.Nil(t, FirstApplicable(m, rules, &model.Transaction{Description: "EDITED"}),
		"re-applying an edit that changes nothing is not an application")
	assert.Nil(t, FirstApplicable(m, rules, &model.Transaction{Description: "Other Transaction"}))
}

func TestApplyToAll_EditRule(t *testing.T) {
	db := testutil.SetupTestDB(t)
	e := New(db.Storage)

	db.MustRule(model.Rule{
		Name:     "bulk rename",
		Kind:     model.RuleKindEdit,
		Criteria: model.Criteria{Pattern: "Bulk", EntryType: model.EntryFilterBoth},
		Edit:     &model.EditPayload{NewDescription: "EDITED"},
	})
	one := db.MustTransaction(testutil.Day(1), "Bulk Transaction 1", testutil.Debit(testutil.Checking, "10"))
	two := db.MustTransaction(testutil.Day(2), "Bulk Transaction 2", testutil.Credit(testutil.Checking, "20"))
	other := db.MustTransaction(testutil.Day(3), "Other Transaction", testutil.Debit(testutil.Checking, "30"))

	result, err := e.ApplyToAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	assert.GreaterOrEqual(t, result.Successful, 2)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, result.Details, 3)

	assert.Equal(t, "EDITED", db.MustGet(one.ID).Description)
	assert.Equal(t, "EDITED", db.MustGet(two.ID).Description)
	assert.Equal(t, "Other Transaction", db.MustGet(other.ID).Description)
}

// flakyStorage fails every read of one transaction inside a unit of work.
type flakyStorage struct {
	service.Storage
	failID string
}

type flakyStore struct {
	service.Store
	failID string
}

func (f *flakyStorage) WithTx(ctx context.Context, fn func(service.Store) error) error {
	return f.Storage.WithTx(ctx, func(store service.Store) error {
		return fn(&flakyStore{Store: store, failID: f.failID})
	})
}

func (f *flakyStore) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	if id == f.failID {
		return nil, errors.New("disk on fire")
	}
	return f.Store.GetTransaction(ctx, id)
}

func TestApplyToAll_IsolatesFailures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	db.MustRule(splitRule("split groceries", 0))
	first := db.MustTransaction(testutil.Day(1), "grocery 1", testutil.Debit(testutil.Checking, "10"))
	broken := db.MustTransaction(testutil.Day(2), "grocery 2", testutil.Debit(testutil.Checking, "20"))
	last := db.MustTransaction(testutil.Day(3), "grocery 3", testutil.Debit(testutil.Checking, "30"))

	e := New(&flakyStorage{Storage: db.Storage, failID: broken.ID})
	reporter := &recordingReporter{}
	result, err := e.ApplyToAll(context.Background(), reporter)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 1, result.Failed)
	assert.Contains(t, result.Details[1].Error, "disk on fire")

	assert.True(t, db.MustGet(first.ID).IsBalanced)
	assert.False(t, db.MustGet(broken.ID).IsBalanced)
	assert.True(t, db.MustGet(last.ID).IsBalanced)

	require.Len(t, reporter.snapshots, 3)
	assert.Equal(t, service.Progress{Total: 3, Processed: 3, Matched: 2, Modified: 2}, reporter.snapshots[2])
	assert.True(t, reporter.done)
}

// cancelingReporter cancels the batch after the first snapshot.
type cancelingReporter struct {
	cancel context.CancelFunc
	recordingReporter
}

func (r *cancelingReporter) Report(p service.Progress) {
	r.recordingReporter.Report(p)
	r.cancel()
}

func TestApplyToAll_Canceled(t *testing.T) {
	db := testutil.SetupTestDB(t)
	db.MustRule(splitRule("split groceries", 0))
	first := db.MustTransaction(testutil.Day(1), "grocery", testutil.Debit(testutil.Checking, "10"))
	second := db.MustTransaction(testutil.Day(2), "grocery", testutil.Debit(testutil.Checking, "10"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reporter := &cancelingReporter{cancel: cancel}

	result, err := New(db.Storage).ApplyToAll(ctx, reporter)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Equal(t, 2, result.Total)
	assert.Len(t, result.Details, 1)
	assert.True(t, reporter.done)

	assert.True(t, db.MustGet(first.ID).IsBalanced)
	assert.False(t, db.MustGet(second.ID).IsBalanced)
}

func TestApplyAutoRules(t *testing.T) {
	db := testutil.SetupTestDB(t)
	manual := splitRule("manual", 5)
	db.MustRule(manual)
	auto := splitRule("auto", 1)
	auto.AutoApply = true
	auto.Complementary.Destinations = []model.Destination{{AccountID: testutil.Dining, Ratio: ratio("1")}}
	db.MustRule(auto)

	imported := db.MustTransaction(testutil.Day(1), "grocery", testutil.Debit(testutil.Checking, "10"))
	untouched := db.MustTransaction(testutil.Day(1), "grocery", testutil.Debit(testutil.Checking, "10"))

	result, err := New(db.Storage).ApplyAutoRules(context.Background(), []string{imported.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	require.Len(t, result.Details, 1)
	assert.Equal(t, "auto", result.Details[0].RuleName)

	got := db.MustGet(imported.ID)
	require.Len(t, got.Entries, 2)
	assert.Equal(t, testutil.Dining, got.Entries[1].AccountID)
	assert.Len(t, db.MustGet(untouched.ID).Entries, 1)
}

// Mass queries and single-transaction matching select the same transactions
// for the same criteria.
func TestMatcherConsistency(t *testing.T) {
	db := testutil.SetupTestDB(t)
	e := New(db.Storage)
	ctx := context.Background()

	db.MustTransaction(testutil.Day(1), "Grocery A", testutil.Debit(testutil.Checking, "10"))
	db.MustTransaction(testutil.Day(2), "grocery b", testutil.Debit(testutil.Card, "10"))
	db.MustTransaction(testutil.Day(3), "Cinema", testutil.Debit(testutil.Checking, "10"))

	criteria := model.Criteria{Pattern: "grocery", EntryType: model.EntryFilterBoth, SourceAccounts: []string{testutil.Checking}}
	query := model.MassQuery{StartDate: testutil.Day(1), EndDate: testutil.Day(30), Pattern: criteria.Pattern,
		SourceAccounts: criteria.SourceAccounts}
	action := model.MassAction{Type: model.MassEditFields, Fields: &model.FieldEdits{Notes: strPtr("x")}}

	preview, err := e.PreviewMass(ctx, query, action)
	require.NoError(t, err)

	all, err := db.Storage.FindTransactions(ctx, service.TransactionFilter{})
	require.NoError(t, err)
	single := 0
	for i := range all {
		if pattern.Matches(criteria, &all[i]) {
			single++
		}
	}
	assert.Equal(t, single, preview.TotalCandidates)
	assert.Equal(t, 1, single)
}

type recordingReporter struct {
	snapshots []service.Progress
	done      bool
}

func (r *recordingReporter) Report(p service.Progress) { r.snapshots = append(r.snapshots, p) }
func (r *recordingReporter) Done()                     { r.done = true }

func strPtr(s string) *string { return &s }

func TestEvaluate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	txn := db.MustTransaction(testutil.Day(1), "x",
		testutil.Debit(testutil.Checking, "10"), testutil.Credit(testutil.Groceries, "4"))

	balance, err := New(db.Storage).Evaluate(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.True(t, balance.NetBalance.Equal(testutil.Amount("6")))
	assert.False(t, balance.IsBalanced)
	assert.Equal(t, model.Debit, balance.Direction())
}
