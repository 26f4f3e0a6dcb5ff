package compare

import (
	"math"
	"sort"
)

// Palette holds one color per comparison slot, in selection order.
var Palette = [MaxColleges]string{"#3b82f6", "#ef4444", "#10b981"}

// EmptyChartText is shown when no series has a plottable point.
const EmptyChartText = "No trend data available"

// ChartOptions sets the drawing surface. Margin is applied on every side.
type ChartOptions struct {
	Width  float64
	Height float64
	Margin float64
}

// DefaultChartOptions matches the web chart's 600x300 canvas.
func DefaultChartOptions() ChartOptions {
	return ChartOptions{Width: 600, Height: 300, Margin: 40}
}

func (o ChartOptions) plotArea() (left, top, width, height float64) {
	if o.Width <= 0 || o.Height <= 0 {
		o = DefaultChartOptions()
	}
	margin := o.Margin
	if margin < 0 || 2*margin >= o.Width || 2*margin >= o.Height {
		margin = 0
	}
	return margin, margin, o.Width - 2*margin, o.Height - 2*margin
}

// PlotPoint is a trend point projected onto the drawing surface.
type PlotPoint struct {
	Year  int
	Value float64
	X     float64
	Y     float64
}

// SeriesGeometry is one college's projected line.
type SeriesGeometry struct {
	Code   string
	Name   string
	Color  string
	Slot   int
	Points []PlotPoint
	// Line is false when the series has fewer than two points.
	Line bool
	// NoData marks a college present in the result without plottable points.
	NoData bool
}

// Chart is the layout of a trend chart, independent of any renderer.
type Chart struct {
	Years  []int
	Min    float64
	Max    float64
	Range  float64
	Series []SeriesGeometry
	Empty  bool
	Note   string

	opts ChartOptions
}

// BuildChart lays out result on the surface described by opts. order is
// the selection order used to pick colors; colleges absent from it take
// the next free slot by result position.
func BuildChart(result *ComparisonResult, order []string, opts ChartOptions) Chart {
	chart := Chart{opts: opts}
	if result == nil {
		chart.Empty = true
		chart.Note = EmptyChartText
		return chart
	}

	yearSet := map[int]struct{}{}
	first := true
	valid := make([][]TrendPoint, len(result.Colleges))
	for i, c := range result.Colleges {
		valid[i] = ValidPoints(c.Trend)
		for _, p := range valid[i] {
			yearSet[p.Year] = struct{}{}
			if first {
				chart.Min, chart.Max = p.Value, p.Value
				first = false
				continue
			}
			chart.Min = math.Min(chart.Min, p.Value)
			chart.Max = math.Max(chart.Max, p.Value)
		}
	}

	if len(yearSet) == 0 {
		chart.Empty = true
		chart.Note = EmptyChartText
		chart.Min, chart.Max = 0, 0
		return chart
	}

	for y := range yearSet {
		chart.Years = append(chart.Years, y)
	}
	sort.Ints(chart.Years)
	yearIndex := make(map[int]int, len(chart.Years))
	for i, y := range chart.Years {
		yearIndex[y] = i
	}

	chart.Range = chart.Max - chart.Min
	if chart.Range == 0 {
		chart.Range = 1
	}

	slots := assignSlots(result.Colleges, order)
	for i, c := range result.Colleges {
		sg := SeriesGeometry{
			Code:  c.Code,
			Name:  c.DisplayName(),
			Slot:  slots[i],
			Color: Palette[slots[i]%len(Palette)],
		}
		for _, p := range valid[i] {
			sg.Points = append(sg.Points, PlotPoint{
				Year:  p.Year,
				Value: p.Value,
				X:     chart.xAt(yearIndex[p.Year]),
				Y:     chart.YFor(p.Value),
			})
		}
		sg.Line = len(sg.Points) >= 2
		sg.NoData = len(sg.Points) == 0
		chart.Series = append(chart.Series, sg)
	}
	return chart
}

func assignSlots(colleges []CollegeSeries, order []string) []int {
	slots := make([]int, len(colleges))
	used := map[int]bool{}
	pending := []int{}
	for i, c := range colleges {
		slots[i] = -1
		for j, code := range order {
			if code == c.Code && !used[j] {
				slots[i] = j
				used[j] = true
				break
			}
		}
		if slots[i] < 0 {
			pending = append(pending, i)
		}
	}

	next := 0
	for _, i := range pending {
		for used[next] {
			next++
		}
		slots[i] = next
		used[next] = true
	}
	return slots
}

func (c Chart) xAt(idx int) float64 {
	left, _, width, _ := c.opts.plotArea()
	if len(c.Years) <= 1 {
		return left + width/2
	}
	return left + width*float64(idx)/float64(len(c.Years)-1)
}

// XFor returns the horizontal position of year, or false if the year is
// not in the chart's domain.
func (c Chart) XFor(year int) (float64, bool) {
	for i, y := range c.Years {
		if y == year {
			return c.xAt(i), true
		}
	}
	return 0, false
}

// YFor returns the vertical position of value. Larger values sit higher.
func (c Chart) YFor(value float64) float64 {
	_, top, _, height := c.opts.plotArea()
	rng := c.Range
	if rng == 0 {
		rng = 1
	}
	return top + (1-(value-c.Min)/rng)*height
}

// Bounds returns the plot area as left, top, right, bottom.
func (c Chart) Bounds() (left, top, right, bottom float64) {
	l, t, w, h := c.opts.plotArea()
	return l, t, l + w, t + h
}
