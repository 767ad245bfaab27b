package billing

import (
	"fmt"
	"math"
)

// DefaultAmountTolerance is the relative tolerance used for the
// amount = rate x quantity check and for amount matching during dedup.
const DefaultAmountTolerance = 0.01

// Validator applies the post-extraction cleanup pass: per-item sanity
// checks, the arithmetic consistency check, and cross-page deduplication.
// It is pure (no I/O) and idempotent: validating its own output again
// yields the same result.
type Validator struct {
	tolerance float64
	warnings  []string
}

// NewValidator creates a Validator with the given relative amount
// tolerance. Non-positive tolerance selects the default.
func NewValidator(tolerance float64) *Validator {
	if tolerance <= 0 {
		tolerance = DefaultAmountTolerance
	}
	return &Validator{tolerance: tolerance}
}

// Validate cleans the aggregated page results and returns the surviving
// pages together with the total surviving item count.
//
// Items are dropped (never corrected) when:
//   - the name is empty, amount or rate is negative, or quantity is not
//     positive
//   - rate and quantity are both nonzero and amount differs from
//     rate x quantity by more than the tolerance
//   - an item with the same normalized name and a matching amount was
//     already seen on an earlier page (first occurrence wins)
//
// Items with matching names but materially different amounts are kept as
// distinct line items. Pages that had items but lose all of them are
// removed; pages that legitimately contained no items are retained.
func (v *Validator) Validate(pages []PageItems) ([]PageItems, int) {
	v.warnings = nil

	type seenItem struct {
		amount float64
		pageNo string
	}
	seen := make(map[string][]seenItem)

	out := make([]PageItems, 0, len(pages))
	total := 0

	for _, page := range pages {
		kept := make([]BillItem, 0, len(page.BillItems))

		for _, item := range page.BillItems {
			if reason := v.checkItem(item); reason != "" {
				v.warnf("dropping %q on page %s: %s", item.ItemName, page.PageNo, reason)
				continue
			}

			name := item.NormalizedName()
			dup := false
			for _, prev := range seen[name] {
				if withinTolerance(item.ItemAmount, prev.amount, v.tolerance) {
					v.warnf("dropping duplicate %q on page %s (first seen on page %s)",
						item.ItemName, page.PageNo, prev.pageNo)
					dup = true
					break
				}
			}
			if dup {
				continue
			}

			seen[name] = append(seen[name], seenItem{amount: item.ItemAmount, pageNo: page.PageNo})
			kept = append(kept, item)
		}

		// A page emptied by validation carries no signal; a page that was
		// empty to begin with is a real (itemless) page result.
		if len(kept) == 0 && len(page.BillItems) > 0 {
			continue
		}

		page.BillItems = kept
		out = append(out, page)
		total += len(kept)
	}

	return out, total
}

// Warnings returns the reasons recorded during the last Validate call.
func (v *Validator) Warnings() []string {
	return v.warnings
}

// TotalAmount sums item amounts across all pages, rounded to 2 decimals.
func TotalAmount(pages []PageItems) float64 {
	var total float64
	for _, page := range pages {
		for _, item := range page.BillItems {
			total += item.ItemAmount
		}
	}
	return math.Round(total*100) / 100
}

// checkItem returns a non-empty reason if the item must be dropped.
func (v *Validator) checkItem(item BillItem) string {
	if item.NormalizedName() == "" {
		return "empty item name"
	}
	if item.ItemAmount < 0 {
		return fmt.Sprintf("negative amount %.2f", item.ItemAmount)
	}
	if item.ItemRate < 0 {
		return fmt.Sprintf("negative rate %.2f", item.ItemRate)
	}
	if item.ItemQuantity <= 0 {
		return fmt.Sprintf("non-positive quantity %.2f", item.ItemQuantity)
	}

	if item.ItemRate != 0 && item.ItemQuantity != 0 {
		expected := item.ItemRate * item.ItemQuantity
		if !withinTolerance(item.ItemAmount, expected, v.tolerance) {
			return fmt.Sprintf("amount %.2f does not match rate %.2f x quantity %.2f (expected %.2f)",
				item.ItemAmount, item.ItemRate, item.ItemQuantity, expected)
		}
	}
	return ""
}

func (v *Validator) warnf(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

// withinTolerance reports whether a and b agree within the given relative
// tolerance. The larger magnitude is used as the reference; two zeros match.
func withinTolerance(a, b, tolerance float64) bool {
	diff := math.Abs(a - b)
	ref := math.Max(math.Abs(a), math.Abs(b))
	if ref == 0 {
		return true
	}
	return diff/ref <= tolerance
}
