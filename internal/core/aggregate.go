package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Measure selects which column a chart or rollup is weighted by.
type Measure string

const (
	MeasureAmount   Measure = "amount"
	MeasureQuantity Measure = "quantity"
)

// ParseMeasure maps a query parameter to a Measure, defaulting to amount.
func ParseMeasure(s string) Measure {
	if Measure(s) == MeasureQuantity {
		return MeasureQuantity
	}
	return MeasureAmount
}

// GroupTotal is one group-by-sum row keyed by a dimension value.
type GroupTotal struct {
	Key      string
	Quantity int64
	Amount   decimal.Decimal
}

// Value returns the selected measure as a float for chart rendering.
func (g GroupTotal) Value(m Measure) float64 {
	if m == MeasureQuantity {
		return float64(g.Quantity)
	}
	return g.Amount.InexactFloat64()
}

// Overview holds the headline totals shown next to the record table.
type Overview struct {
	TotalAmount   decimal.Decimal
	TotalQuantity int64
	Count         int
}

// Summarize computes the headline totals for a record set.
func Summarize(records []Record) Overview {
	ov := Overview{TotalAmount: decimal.Zero, Count: len(records)}
	for _, r := range records {
		ov.TotalAmount = ov.TotalAmount.Add(r.Amount)
		ov.TotalQuantity += r.Quantity
	}
	return ov
}

// SumByCategory groups records by category and sums both measures.
// Rows come back sorted ascending by the given measure, matching the
// bottom-to-top ordering of the horizontal report charts.
func SumByCategory(records []Record, m Measure) []GroupTotal {
	return sumBy(records, m, func(r Record) string { return r.Category })
}

// SumBySubcategory groups records by subcategory and sums both measures.
func SumBySubcategory(records []Record, m Measure) []GroupTotal {
	return sumBy(records, m, func(r Record) string { return r.Subcategory })
}

func sumBy(records []Record, m Measure, key func(Record) string) []GroupTotal {
	idx := map[string]int{}
	var out []GroupTotal
	for _, r := range records {
		k := key(r)
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, GroupTotal{Key: k, Amount: decimal.Zero})
		}
		out[i].Quantity += r.Quantity
		out[i].Amount = out[i].Amount.Add(r.Amount)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return less(out[i], out[j], m)
	})
	return out
}

// SumByMonth groups records by calendar month. Unlike the category sums the
// rows stay in calendar order (Jan..Dec); months without data are omitted.
func SumByMonth(records []Record) []GroupTotal {
	var totals [13]GroupTotal
	present := [13]bool{}
	for _, r := range records {
		mo := r.Date.Month()
		if mo < 1 || mo > 12 {
			continue
		}
		if !present[mo] {
			totals[mo] = GroupTotal{Key: MonthLabel(mo), Amount: decimal.Zero}
			present[mo] = true
		}
		totals[mo].Quantity += r.Quantity
		totals[mo].Amount = totals[mo].Amount.Add(r.Amount)
	}
	var out []GroupTotal
	for mo := 1; mo <= 12; mo++ {
		if present[mo] {
			out = append(out, totals[mo])
		}
	}
	return out
}

func less(a, b GroupTotal, m Measure) bool {
	if m == MeasureQuantity {
		return a.Quantity < b.Quantity
	}
	return a.Amount.LessThan(b.Amount)
}

// TopByQuantity returns the n records with the largest quantity. Ties at the
// boundary keep first-seen order (stable sort).
func TopByQuantity(records []Record, n int) []Record {
	return rankByQuantity(records, n, true)
}

// BottomByQuantity returns the n records with the smallest quantity.
func BottomByQuantity(records []Record, n int) []Record {
	return rankByQuantity(records, n, false)
}

func rankByQuantity(records []Record, n int, desc bool) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return out[i].Quantity > out[j].Quantity
		}
		return out[i].Quantity < out[j].Quantity
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// HierarchyNode is one level of the month > category > subcategory rollup
// that backs the drill-down report.
type HierarchyNode struct {
	Label    string
	Quantity int64
	Amount   decimal.Decimal
	Children []*HierarchyNode
}

// Value returns the node weight for the selected measure.
func (n *HierarchyNode) Value(m Measure) float64 {
	if m == MeasureQuantity {
		return float64(n.Quantity)
	}
	return n.Amount.InexactFloat64()
}

// Rollup builds the three-level hierarchy month > category > subcategory.
// The root carries grand totals; each level is sorted by calendar order for
// months and first-seen order below that.
func Rollup(records []Record) *HierarchyNode {
	root := &HierarchyNode{Label: "All", Amount: decimal.Zero}
	byMonth := map[int]*HierarchyNode{}
	type catKey struct {
		month int
		cat   string
	}
	byCat := map[catKey]*HierarchyNode{}
	type subKey struct {
		month int
		cat   string
		sub   string
	}
	bySub := map[subKey]*HierarchyNode{}

	for _, r := range records {
		mo := r.Date.Month()

		mn := byMonth[mo]
		if mn == nil {
			mn = &HierarchyNode{Label: MonthLabel(mo), Amount: decimal.Zero}
			byMonth[mo] = mn
		}
		cn := byCat[catKey{mo, r.Category}]
		if cn == nil {
			cn = &HierarchyNode{Label: r.Category, Amount: decimal.Zero}
			byCat[catKey{mo, r.Category}] = cn
			mn.Children = append(mn.Children, cn)
		}
		sn := bySub[subKey{mo, r.Category, r.Subcategory}]
		if sn == nil {
			sn = &HierarchyNode{Label: r.Subcategory, Amount: decimal.Zero}
			bySub[subKey{mo, r.Category, r.Subcategory}] = sn
			cn.Children = append(cn.Children, sn)
		}

		for _, n := range []*HierarchyNode{root, mn, cn, sn} {
			n.Quantity += r.Quantity
			n.Amount = n.Amount.Add(r.Amount)
		}
	}

	for mo := 1; mo <= 12; mo++ {
		if n, ok := byMonth[mo]; ok {
			root.Children = append(root.Children, n)
		}
	}
	return root
}
