// Package reports maps the dashboard's chart kinds onto aggregations and
// renderers. The HTTP chart endpoints and the snapshot worker both go through
// RenderChart so the two always produce the same set of images.
package reports

import (
	"fmt"

	"salesdash/internal/charts"
	"salesdash/internal/core"
)

// TopN is the cohort size of the best/worst seller report.
const TopN = 25

// Kind identifies one chart projection of the record set.
type Kind string

const (
	KindCategory          Kind = "category"
	KindSubcategory       Kind = "subcategory"
	KindMonth             Kind = "month"
	KindTopCategory       Kind = "top-category"
	KindTopSubcategory    Kind = "top-subcategory"
	KindTopCategoryBar    Kind = "top-category-bar"
	KindTopSubcategoryBar Kind = "top-subcategory-bar"
	KindHierarchy         Kind = "hierarchy"
)

// Kinds lists every chart projection, in snapshot rendering order.
func Kinds() []Kind {
	return []Kind{
		KindCategory, KindSubcategory, KindMonth,
		KindTopCategory, KindTopSubcategory,
		KindTopCategoryBar, KindTopSubcategoryBar,
		KindHierarchy,
	}
}

// ParseKind validates a chart kind from a URL path segment.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown chart kind %q", s)
}

// Cohort selects the best or worst sellers for the top-N charts.
type Cohort string

const (
	CohortTop    Cohort = "top"
	CohortBottom Cohort = "bottom"
)

// ParseCohort maps a query parameter to a Cohort, defaulting to top.
func ParseCohort(s string) Cohort {
	if Cohort(s) == CohortBottom {
		return CohortBottom
	}
	return CohortTop
}

// CohortRecords returns the top or bottom TopN records by quantity.
func CohortRecords(records []core.Record, c Cohort) []core.Record {
	if c == CohortBottom {
		return core.BottomByQuantity(records, TopN)
	}
	return core.TopByQuantity(records, TopN)
}

// RenderChart renders one chart kind over already-filtered records.
// The cohort only applies to the top-N kinds.
func RenderChart(records []core.Record, kind Kind, m core.Measure, cohort Cohort) ([]byte, error) {
	switch kind {
	case KindCategory:
		return charts.BarPNG(title("By Category", m), core.SumByCategory(records, m), m)
	case KindSubcategory:
		return charts.BarPNG(title("By Sub-Category", m), core.SumBySubcategory(records, m), m)
	case KindMonth:
		return charts.BarPNG(title("Monthly", m), core.SumByMonth(records), m)
	case KindTopCategory:
		sub := CohortRecords(records, cohort)
		return charts.PiePNG(cohortTitle("Category Share", cohort), core.SumByCategory(sub, core.MeasureQuantity), core.MeasureQuantity)
	case KindTopSubcategory:
		sub := CohortRecords(records, cohort)
		return charts.PiePNG(cohortTitle("Sub-Category Share", cohort), core.SumBySubcategory(sub, core.MeasureQuantity), core.MeasureQuantity)
	case KindTopCategoryBar:
		sub := CohortRecords(records, cohort)
		return charts.BarPNG(cohortTitle("Quantity by Category", cohort), core.SumByCategory(sub, core.MeasureQuantity), core.MeasureQuantity)
	case KindTopSubcategoryBar:
		sub := CohortRecords(records, cohort)
		return charts.BarPNG(cohortTitle("Quantity by Sub-Category", cohort), core.SumBySubcategory(sub, core.MeasureQuantity), core.MeasureQuantity)
	case KindHierarchy:
		return charts.StackedMonthPNG(title("Monthly Mix", m), core.Rollup(records), m)
	default:
		return nil, fmt.Errorf("unknown chart kind %q", kind)
	}
}

// SnapshotSpec is one file of the static report snapshot.
type SnapshotSpec struct {
	FileName string
	Kind     Kind
	Measure  core.Measure
	Cohort   Cohort
}

// SnapshotSpecs lists every chart the snapshot worker renders per dataset:
// the three group-by charts and the stacked monthly mix for each measure,
// plus the pie and bar pair for each top/bottom cohort.
func SnapshotSpecs() []SnapshotSpec {
	var specs []SnapshotSpec
	for _, m := range []core.Measure{core.MeasureAmount, core.MeasureQuantity} {
		for _, k := range []Kind{KindCategory, KindSubcategory, KindMonth, KindHierarchy} {
			specs = append(specs, SnapshotSpec{
				FileName: fmt.Sprintf("%s_%s.png", k, m),
				Kind:     k,
				Measure:  m,
			})
		}
	}
	for _, c := range []Cohort{CohortTop, CohortBottom} {
		for _, k := range []Kind{KindTopCategory, KindTopSubcategory, KindTopCategoryBar, KindTopSubcategoryBar} {
			specs = append(specs, SnapshotSpec{
				FileName: fmt.Sprintf("%s_%s.png", k, c),
				Kind:     k,
				Measure:  core.MeasureQuantity,
				Cohort:   c,
			})
		}
	}
	return specs
}

func title(base string, m core.Measure) string {
	if m == core.MeasureQuantity {
		return base + " (Quantity)"
	}
	return base + " (Amount)"
}

func cohortTitle(base string, c Cohort) string {
	if c == CohortBottom {
		return fmt.Sprintf("Bottom %d %s", TopN, base)
	}
	return fmt.Sprintf("Top %d %s", TopN, base)
}
