package ledger

import (
	"testing"

	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestComputeDestinationEntries(t *testing.T) {
	tests := []struct {
		name         string
		source       string
		destinations []model.Destination
		want         []Allocation
	}{
		{
			name:   "sixty forty split",
			source: "100",
			destinations: []model.Destination{
				{AccountID: "X", Ratio: dec("0.6")},
				{AccountID: "Y", Ratio: dec("0.4")},
			},
			want: []Allocation{
				{AccountID: "X", Amount: decimal.RequireFromString("60")},
				{AccountID: "Y", Amount: decimal.RequireFromString("40")},
			},
		},
		{
			name:   "thirds absorb remainder on last share",
			source: "100",
			destinations: []model.Destination{
				{AccountID: "A", Ratio: dec("0.3333")},
				{AccountID: "B", Ratio: dec("0.3333")},
				{AccountID: "C", Ratio: dec("0.3334")},
			},
			want: []Allocation{
				{AccountID: "A", Amount: decimal.RequireFromString("33.33")},
				{AccountID: "B", Amount: decimal.RequireFromString("33.33")},
				{AccountID: "C", Amount: decimal.RequireFromString("33.34")},
			},
		},
		{
			name:   "absolute amount wins over ratio",
			source: "80",
			destinations: []model.Destination{
				{AccountID: "fixed", AbsoluteAmount: dec("15")},
				{AccountID: "rest", Ratio: dec("1")},
			},
			want: []Allocation{
				{AccountID: "fixed", Amount: decimal.RequireFromString("15")},
				{AccountID: "rest", Amount: decimal.RequireFromString("80")},
			},
		},
		{
			name:   "zero destinations are dropped",
			source: "50",
			destinations: []model.Destination{
				{AccountID: "empty"},
				{AccountID: "zero", Ratio: dec("0")},
				{AccountID: "all", Ratio: dec("1")},
			},
			want: []Allocation{
				{AccountID: "all", Amount: decimal.RequireFromString("50")},
			},
		},
		{
			name:         "non-positive source yields nothing",
			source:       "0",
			destinations: []model.Destination{{AccountID: "X", Ratio: dec("1")}},
			want:         nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeDestinationEntries(decimal.RequireFromString(tt.source), tt.destinations)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.Equal(t, tt.want[i].AccountID, got[i].AccountID)
				assert.True(t, tt.want[i].Amount.Equal(got[i].Amount), "share %d = %s", i, got[i].Amount)
			}
		})
	}
}

func TestComputeDestinationEntries_Conservation(t *testing.T) {
	sources := []string{"100", "0.07", "1234.56", "19.99", "3", "0.015"}
	splits := [][]string{
		{"0.5", "0.5"},
		{"0.6", "0.4"},
		{"0.1", "0.2", "0.3", "0.4"},
		{"0.3333", "0.3333", "0.3334"},
		{"0.25", "0.25", "0.25", "0.25"},
		{"1"},
	}
	tolerance := decimal.RequireFromString("0.000001")

	for _, src := range sources {
		for _, ratios := range splits {
			dests := make([]model.Destination, len(ratios))
			for i, r := range ratios {
				dests[i] = model.Destination{AccountID: "acc", Ratio: dec(r)}
			}
			amount := decimal.RequireFromString(src)

			total := decimal.Zero
			for _, a := range ComputeDestinationEntries(amount, dests) {
				assert.True(t, a.Amount.IsPositive())
				total = total.Add(a.Amount)
			}
			assert.True(t, total.Sub(amount).Abs().LessThan(tolerance),
				"source %s ratios %v summed to %s", src, ratios, total)
		}
	}
}

func TestRatioSum(t *testing.T) {
	sum, found := RatioSum([]model.Destination{{Ratio: dec("0.6")}, {Ratio: dec("0.4")}, {AbsoluteAmount: dec("3")}})
	assert.True(t, found)
	assert.True(t, sum.Equal(decimal.NewFromInt(1)))

	_, found = RatioSum([]model.Destination{{AbsoluteAmount: dec("3")}})
	assert.False(t, found)
}
