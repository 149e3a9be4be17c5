// Package ingest parses uploaded spreadsheets into sales records.
//
// Rows are read from the sheet named "Monthly" for Excel workbooks, or from
// the whole file for CSV. Header matching is case-insensitive and tolerant of
// naming variants ("sub-category", "qty", ...). Rows that fail to parse are
// skipped and counted rather than failing the whole import.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"salesdash/internal/core"
)

// SheetName is the workbook sheet records are imported from.
const SheetName = "Monthly"

// Summary reports what an import did with the source rows.
type Summary struct {
	Imported int
	Skipped  int
}

// Parse reads records from r, choosing the format from the file extension.
func Parse(filename string, r io.Reader) ([]core.Record, Summary, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return ParseXLSX(r)
	case ".csv":
		return ParseCSV(r)
	default:
		return nil, Summary{}, fmt.Errorf("unsupported file type %q (want .xlsx or .csv)", filepath.Ext(filename))
	}
}

// ParseXLSX reads the "Monthly" sheet of an Excel workbook.
func ParseXLSX(r io.Reader) ([]core.Record, Summary, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("read sheet %q: %w", SheetName, err)
	}
	return MapRows(rows)
}

// ParseCSV reads a comma-separated file with a header row.
func ParseCSV(r io.Reader) ([]core.Record, Summary, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, Summary{}, fmt.Errorf("read csv: %w", err)
	}
	return MapRows(rows)
}

// columns maps logical fields to header indexes.
type columns struct {
	date, product, category, subcategory, quantity, amount int
}

// MapRows converts a header row plus data rows into records. It is shared by
// the xlsx, csv and remote-sheet readers, which all produce string matrices.
func MapRows(rows [][]string) ([]core.Record, Summary, error) {
	if len(rows) < 2 {
		return nil, Summary{}, fmt.Errorf("sheet has no data rows")
	}

	cols, err := mapHeader(rows[0])
	if err != nil {
		return nil, Summary{}, err
	}

	var (
		out     []core.Record
		summary Summary
	)
	for _, row := range rows[1:] {
		rec, ok := mapRow(row, cols)
		if !ok {
			summary.Skipped++
			continue
		}
		out = append(out, rec)
		summary.Imported++
	}
	if summary.Imported == 0 {
		return nil, summary, fmt.Errorf("no usable rows (skipped %d)", summary.Skipped)
	}
	return out, summary, nil
}

func mapHeader(header []string) (columns, error) {
	cols := columns{date: -1, product: -1, category: -1, subcategory: -1, quantity: -1, amount: -1}
	for i, raw := range header {
		h := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case cols.date == -1 && strings.Contains(h, "date"):
			cols.date = i
		case cols.product == -1 && (strings.Contains(h, "product") || strings.Contains(h, "item")):
			cols.product = i
		// "sub-category" also contains "category", so match it first.
		case cols.subcategory == -1 && strings.Contains(h, "sub"):
			cols.subcategory = i
		case cols.category == -1 && strings.Contains(h, "categor"):
			cols.category = i
		case cols.quantity == -1 && (strings.Contains(h, "quantity") || h == "qty" || strings.Contains(h, "units")):
			cols.quantity = i
		case cols.amount == -1 && (strings.Contains(h, "amount") || strings.Contains(h, "total") || strings.Contains(h, "sales")):
			cols.amount = i
		}
	}

	var missing []string
	for _, c := range []struct {
		idx  int
		name string
	}{
		{cols.date, "date"},
		{cols.product, "product"},
		{cols.category, "category"},
		{cols.subcategory, "sub-category"},
		{cols.quantity, "quantity"},
		{cols.amount, "amount"},
	} {
		if c.idx == -1 {
			missing = append(missing, c.name)
		}
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

func mapRow(row []string, cols columns) (core.Record, bool) {
	date, ok := parseDate(cell(row, cols.date))
	if !ok {
		return core.Record{}, false
	}
	amount, err := parseAmount(cell(row, cols.amount))
	if err != nil {
		return core.Record{}, false
	}
	quantity, err := parseQuantity(cell(row, cols.quantity))
	if err != nil {
		return core.Record{}, false
	}

	rec := core.Record{
		Date:        date,
		Product:     cell(row, cols.product),
		Category:    cell(row, cols.category),
		Subcategory: cell(row, cols.subcategory),
		Quantity:    quantity,
		Amount:      amount,
	}
	if err := rec.Validate(); err != nil {
		return core.Record{}, false
	}
	return rec, true
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
	"02-01-2006",
	"2006-01-02 15:04:05",
	"01-02-06",
	"2 Jan 2006",
}

// parseDate accepts common date layouts plus Excel serial day numbers,
// which excelize returns for unformatted date cells.
func parseDate(s string) (core.Date, bool) {
	if s == "" {
		return core.Date{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.Date{Time: t.UTC()}, true
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 59 && serial < 200000 {
		epoch := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
		days := int(math.Floor(serial))
		return core.Date{Time: epoch.AddDate(0, 0, days)}, true
	}
	return core.Date{}, false
}

func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(strings.TrimPrefix(s, "$"))
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	return decimal.NewFromString(s)
}

func parseQuantity(s string) (int64, error) {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, fmt.Errorf("empty quantity")
	}
	// Some exports store quantities as floats ("3.0").
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(math.Round(f)), nil
	}
	return strconv.ParseInt(s, 10, 64)
}
