package ledger

import (
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/shopspring/decimal"
)

// Allocation is one computed share of a split. Amount is always positive.
type Allocation struct {
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// minSplitPlaces is the precision ratio shares are rounded to.
const minSplitPlaces = 2

// ComputeDestinationEntries converts sourceAmount and destinations into
// concrete allocations. A positive AbsoluteAmount is used as-is; otherwise a
// positive ratio yields (ratio/totalRatio) * sourceAmount. Destinations that
// resolve to zero are dropped.
//
// Ratio shares are rounded to cents (or to the source precision when finer)
// and the last ratio share absorbs the rounding remainder, so shares of a full
// ratio set always sum to sourceAmount exactly.
func ComputeDestinationEntries(sourceAmount decimal.Decimal, destinations []model.Destination) []Allocation {
	if !sourceAmount.IsPositive() {
		return nil
	}

	totalRatio := decimal.Zero
	for _, d := range destinations {
		if r := d.RatioOrZero(); r.IsPositive() {
			totalRatio = totalRatio.Add(r)
		}
	}

	places := int32(minSplitPlaces)
	if exp := -sourceAmount.Exponent(); exp > places {
		places = exp
	}

	out := make([]Allocation, 0, len(destinations))
	lastRatio := -1
	usedRatio := decimal.Zero
	allocated := decimal.Zero

	for _, d := range destinations {
		if abs := d.AbsoluteOrZero(); abs.IsPositive() {
			out = append(out, Allocation{AccountID: d.AccountID, Amount: abs})
			continue
		}
		r := d.RatioOrZero()
		if !r.IsPositive() || !totalRatio.IsPositive() {
			continue
		}
		share := sourceAmount.Mul(r).Div(totalRatio).Round(places)
		usedRatio = usedRatio.Add(r)
		allocated = allocated.Add(share)
		out = append(out, Allocation{AccountID: d.AccountID, Amount: share})
		lastRatio = len(out) - 1
	}

	if lastRatio >= 0 {
		target := sourceAmount.Mul(usedRatio).Div(totalRatio).Round(places)
		out[lastRatio].Amount = out[lastRatio].Amount.Add(target.Sub(allocated))
	}

	// Rounding adjustments can only push a share to zero when the source is
	// smaller than one unit of precision per destination.
	kept := out[:0]
	for _, a := range out {
		if a.Amount.IsPositive() {
			kept = append(kept, a)
		}
	}
	return kept
}

// RatioSum returns the sum of every destination's ratio and whether any
// destination specified one.
func RatioSum(destinations []model.Destination) (decimal.Decimal, bool) {
	sum := decimal.Zero
	found := false
	for _, d := range destinations {
		if d.Ratio != nil {
			found = true
			sum = sum.Add(*d.Ratio)
		}
	}
	return sum, found
}
