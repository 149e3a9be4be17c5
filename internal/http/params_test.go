package http

import (
	"net/url"
	"testing"
)

func TestParseFilter(t *testing.T) {
	q, err := url.ParseQuery("category=Beverage&category=Food&subcategory=Coffee&month=2&month=13&from=2024-01-01&to=2024-03-31&amount_min=5&amount_max=100.50&qty_min=1&qty_max=20&q=latte")
	if err != nil {
		t.Fatalf("parse query: %v", err)
	}

	f := ParseFilter(q)

	if len(f.Categories) != 2 || f.Categories[0] != "Beverage" {
		t.Fatalf("categories = %v", f.Categories)
	}
	if len(f.Subcategories) != 1 || f.Subcategories[0] != "Coffee" {
		t.Fatalf("subcategories = %v", f.Subcategories)
	}
	if len(f.Months) != 1 || f.Months[0] != 2 {
		t.Fatalf("months = %v (out-of-range month should be dropped)", f.Months)
	}
	if f.DateFrom.IsZero() || f.DateTo.IsZero() {
		t.Fatal("date bounds not parsed")
	}
	if f.AmountMin == nil || f.AmountMin.String() != "5" {
		t.Fatalf("amount_min = %v", f.AmountMin)
	}
	if f.AmountMax == nil || f.AmountMax.String() != "100.5" {
		t.Fatalf("amount_max = %v", f.AmountMax)
	}
	if f.QuantityMin == nil || *f.QuantityMin != 1 {
		t.Fatalf("qty_min = %v", f.QuantityMin)
	}
	if f.QuantityMax == nil || *f.QuantityMax != 20 {
		t.Fatalf("qty_max = %v", f.QuantityMax)
	}
	if f.Search != "latte" {
		t.Fatalf("search = %q", f.Search)
	}
}

func TestParseFilter_IgnoresMalformedValues(t *testing.T) {
	q := url.Values{
		"month":      {"abc"},
		"from":       {"not-a-date"},
		"amount_min": {"NaN-ish"},
		"qty_max":    {"12.5"},
	}

	f := ParseFilter(q)

	if !f.IsZero() {
		t.Fatalf("malformed values should leave filter empty, got %+v", f)
	}
}

func TestParseFilter_EmptyQuery(t *testing.T) {
	if f := ParseFilter(url.Values{}); !f.IsZero() {
		t.Fatalf("empty query should produce zero filter, got %+v", f)
	}
}

func TestSanitizeInput(t *testing.T) {
	got := sanitizeInput("  latte\x00\x01 art  ")
	if got != "latte art" {
		t.Fatalf("sanitizeInput = %q", got)
	}
}
