// Package http provides the dashboard's HTTP server and handlers.
//
// This file parses filter, measure and cohort parameters from query strings
// and form values so every handler interprets them the same way.

package http

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"salesdash/internal/core"
)

const filterDateLayout = "2006-01-02"

// ParseFilter builds a record filter from request values. Unknown or
// malformed values are ignored so a bad query never breaks the page.
func ParseFilter(query map[string][]string) core.Filter {
	var f core.Filter

	f.Categories = cleanValues(query["category"])
	f.Subcategories = cleanValues(query["subcategory"])
	f.Products = cleanValues(query["product"])

	for _, v := range cleanValues(query["month"]) {
		if m, err := strconv.Atoi(v); err == nil && m >= 1 && m <= 12 {
			f.Months = append(f.Months, m)
		}
	}

	if v := first(query, "from"); v != "" {
		if t, err := time.Parse(filterDateLayout, v); err == nil {
			f.DateFrom = core.Date{Time: t}
		}
	}
	if v := first(query, "to"); v != "" {
		if t, err := time.Parse(filterDateLayout, v); err == nil {
			f.DateTo = core.Date{Time: t}
		}
	}

	if d := parseDecimalParam(first(query, "amount_min")); d != nil {
		f.AmountMin = d
	}
	if d := parseDecimalParam(first(query, "amount_max")); d != nil {
		f.AmountMax = d
	}
	if n := parseIntParam(first(query, "qty_min")); n != nil {
		f.QuantityMin = n
	}
	if n := parseIntParam(first(query, "qty_max")); n != nil {
		f.QuantityMax = n
	}

	f.Search = sanitizeInput(first(query, "q"))

	return f
}

func first(query map[string][]string, key string) string {
	if vs := query[key]; len(vs) > 0 {
		return strings.TrimSpace(vs[0])
	}
	return ""
}

func cleanValues(vs []string) []string {
	var out []string
	for _, v := range vs {
		if v = sanitizeInput(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseDecimalParam(v string) *decimal.Decimal {
	if v == "" {
		return nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil
	}
	return &d
}

func parseIntParam(v string) *int64 {
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// sanitizeInput removes control characters and trims whitespace
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
