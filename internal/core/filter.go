package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Filter is a boolean mask over a record set, built from UI query parameters.
// Zero-value fields mean "no constraint"; an empty Filter matches everything.
type Filter struct {
	Categories    []string
	Subcategories []string
	Products      []string
	Months        []int // 1-12

	DateFrom Date
	DateTo   Date

	AmountMin   *decimal.Decimal
	AmountMax   *decimal.Decimal
	QuantityMin *int64
	QuantityMax *int64

	// Search is a case-insensitive substring match on the product name.
	Search string
}

// IsZero reports whether the filter has no constraints at all.
func (f Filter) IsZero() bool {
	return len(f.Categories) == 0 &&
		len(f.Subcategories) == 0 &&
		len(f.Products) == 0 &&
		len(f.Months) == 0 &&
		f.DateFrom.IsZero() && f.DateTo.IsZero() &&
		f.AmountMin == nil && f.AmountMax == nil &&
		f.QuantityMin == nil && f.QuantityMax == nil &&
		strings.TrimSpace(f.Search) == ""
}

// Match reports whether a single record passes all constraints.
func (f Filter) Match(r Record) bool {
	if len(f.Categories) > 0 && !containsFold(f.Categories, r.Category) {
		return false
	}
	if len(f.Subcategories) > 0 && !containsFold(f.Subcategories, r.Subcategory) {
		return false
	}
	if len(f.Products) > 0 && !containsFold(f.Products, r.Product) {
		return false
	}
	if len(f.Months) > 0 && !containsInt(f.Months, r.Date.Month()) {
		return false
	}
	if !f.DateFrom.IsZero() && r.Date.Before(f.DateFrom.Time) {
		return false
	}
	if !f.DateTo.IsZero() && r.Date.After(f.DateTo.Time) {
		return false
	}
	if f.AmountMin != nil && r.Amount.LessThan(*f.AmountMin) {
		return false
	}
	if f.AmountMax != nil && r.Amount.GreaterThan(*f.AmountMax) {
		return false
	}
	if f.QuantityMin != nil && r.Quantity < *f.QuantityMin {
		return false
	}
	if f.QuantityMax != nil && r.Quantity > *f.QuantityMax {
		return false
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		if !strings.Contains(strings.ToLower(r.Product), strings.ToLower(s)) {
			return false
		}
	}
	return true
}

// Apply returns the records matching the filter, preserving input order.
// The fast path returns the input slice unchanged for an empty filter.
func (f Filter) Apply(records []Record) []Record {
	if f.IsZero() {
		return records
	}
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

func containsFold(haystack []string, needle string) bool {
	for _, v := range haystack {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(needle)) {
			return true
		}
	}
	return false
}

func containsInt(haystack []int, needle int) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}
