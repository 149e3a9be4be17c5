package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	Date struct {
		time.Time
	}

	// Record is a single sales line from the imported spreadsheet.
	Record struct {
		Date        Date
		Product     string
		Category    string
		Subcategory string
		Quantity    int64
		Amount      decimal.Decimal
	}

	// Dataset is a full record set imported in one upload. Datasets have no
	// identity beyond their UUID; a new upload replaces the active one.
	Dataset struct {
		ID         string
		Name       string // original file name or source label
		UploadedAt time.Time
		Records    []Record
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrEmptyProduct     = errors.New("empty product")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptySubcategory = errors.New("empty subcategory")
)

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month as 1-12
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

func (r Record) Validate() error {
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(r.Product)) == 0 {
		return ErrEmptyProduct
	}
	if len(r.Product) > 200 {
		return errors.New("product name too long (max 200 characters)")
	}
	if strings.TrimSpace(r.Category) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(r.Subcategory) == "" {
		return ErrEmptySubcategory
	}
	if r.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if r.Amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (ds Dataset) Validate() error {
	if strings.TrimSpace(ds.ID) == "" {
		return errors.New("empty dataset id")
	}
	if len(ds.Records) == 0 {
		return errors.New("dataset has no records")
	}
	return nil
}

// MonthLabel returns the short month name for a 1-12 month index.
func MonthLabel(month int) string {
	if month < 1 || month > 12 {
		return "?"
	}
	return time.Month(month).String()[:3]
}
