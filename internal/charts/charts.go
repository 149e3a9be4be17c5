// Package charts renders report charts to PNG using go-chart.
package charts

import (
	"bytes"
	"fmt"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"salesdash/internal/core"
)

const (
	defaultWidth  = 640
	defaultHeight = 420
)

// brandColor is the single hue used for the report bar charts.
var brandColor = drawing.ColorFromHex("0083B8")

// palette colors multi-series charts (pie slices, stacked segments).
var palette = []drawing.Color{
	drawing.ColorFromHex("4F46E5"),
	drawing.ColorFromHex("10B981"),
	drawing.ColorFromHex("F59E0B"),
	drawing.ColorFromHex("EF4444"),
	drawing.ColorFromHex("8B5CF6"),
	drawing.ColorFromHex("06B6D4"),
	drawing.ColorFromHex("EC4899"),
	drawing.ColorFromHex("84CC16"),
	drawing.ColorFromHex("F97316"),
	drawing.ColorFromHex("6366F1"),
}

// BarPNG renders a group-by-sum as a single-hue bar chart.
func BarPNG(title string, groups []core.GroupTotal, m core.Measure) ([]byte, error) {
	if len(groups) == 0 {
		return nil, fmt.Errorf("bar chart %q: no data", title)
	}

	bars := make([]chart.Value, 0, len(groups))
	for _, g := range groups {
		bars = append(bars, chart.Value{
			Label: trimLabel(g.Key),
			Value: g.Value(m),
			Style: chart.Style{FillColor: brandColor, StrokeColor: brandColor},
		})
	}

	graph := chart.BarChart{
		Title:      title,
		Width:      defaultWidth,
		Height:     defaultHeight,
		BarWidth:   barWidth(len(bars)),
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		Bars:       bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render bar chart %q: %w", title, err)
	}
	return buf.Bytes(), nil
}

// PiePNG renders the share of each group as a pie chart. Groups with a
// non-positive value are dropped; a pie slice cannot be zero-sized.
func PiePNG(title string, groups []core.GroupTotal, m core.Measure) ([]byte, error) {
	values := make([]chart.Value, 0, len(groups))
	for i, g := range groups {
		v := g.Value(m)
		if v <= 0 {
			continue
		}
		c := palette[i%len(palette)]
		values = append(values, chart.Value{
			Label: trimLabel(g.Key),
			Value: v,
			Style: chart.Style{FillColor: c, StrokeColor: c},
		})
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("pie chart %q: no data", title)
	}

	graph := chart.PieChart{
		Title:  title,
		Width:  defaultHeight,
		Height: defaultHeight,
		Values: values,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render pie chart %q: %w", title, err)
	}
	return buf.Bytes(), nil
}

// StackedMonthPNG projects the month > category rollup as a stacked bar
// chart, one bar per month, one segment per category.
func StackedMonthPNG(title string, root *core.HierarchyNode, m core.Measure) ([]byte, error) {
	if root == nil || len(root.Children) == 0 {
		return nil, fmt.Errorf("stacked chart %q: no data", title)
	}

	// Stable color per category label across all months.
	colorIdx := map[string]int{}
	colorOf := func(label string) drawing.Color {
		i, ok := colorIdx[label]
		if !ok {
			i = len(colorIdx)
			colorIdx[label] = i
		}
		return palette[i%len(palette)]
	}

	bars := make([]chart.StackedBar, 0, len(root.Children))
	for _, monthNode := range root.Children {
		values := make([]chart.Value, 0, len(monthNode.Children))
		for _, catNode := range monthNode.Children {
			v := catNode.Value(m)
			if v <= 0 {
				continue
			}
			c := colorOf(catNode.Label)
			values = append(values, chart.Value{
				Label: trimLabel(catNode.Label),
				Value: v,
				Style: chart.Style{FillColor: c, StrokeColor: c},
			})
		}
		if len(values) == 0 {
			continue
		}
		bars = append(bars, chart.StackedBar{
			Name:   monthNode.Label,
			Values: values,
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("stacked chart %q: no data", title)
	}

	graph := chart.StackedBarChart{
		Title:      title,
		Width:      defaultWidth,
		Height:     defaultHeight,
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		Bars:       bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render stacked chart %q: %w", title, err)
	}
	return buf.Bytes(), nil
}

// barWidth keeps bars readable regardless of group count.
func barWidth(n int) int {
	w := (defaultWidth - 80) / n
	if w > 60 {
		return 60
	}
	if w < 8 {
		return 8
	}
	return w
}

func trimLabel(s string) string {
	const max = 18
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
