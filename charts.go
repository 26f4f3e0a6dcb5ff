package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"cetcompare/internal/compare"
)

const (
	markerRune = '●'
	lineRune   = '·'
	axisColor  = lipgloss.Color("240")
)

// cell is one character of the plot grid. slot is -1 for blank cells.
type cell struct {
	r    rune
	slot int
}

// RenderTrendChart draws the comparison as a character line chart of the
// given size, followed by year labels and a legend.
func RenderTrendChart(result *compare.ComparisonResult, order []string, width, height int) string {
	if width < 20 {
		width = 20
	}
	if height < 5 {
		height = 5
	}

	// The plot grid leaves room for the y axis labels.
	const labelWidth = 9
	plotWidth := width - labelWidth - 1
	opts := compare.ChartOptions{Width: float64(plotWidth - 1), Height: float64(height - 1)}
	chart := compare.BuildChart(result, order, opts)

	if chart.Empty {
		return lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(axisColor).
			Foreground(axisColor).
			Width(width-2).
			Align(lipgloss.Center).
			Padding(1, 0).
			Render(chart.Note)
	}

	grid := make([][]cell, height)
	for i := range grid {
		grid[i] = make([]cell, plotWidth)
		for j := range grid[i] {
			grid[i][j] = cell{r: ' ', slot: -1}
		}
	}

	put := func(x, y float64, r rune, slot int) {
		col, row := int(math.Round(x)), int(math.Round(y))
		if row < 0 || row >= height || col < 0 || col >= plotWidth {
			return
		}
		if r == lineRune && grid[row][col].r == markerRune {
			return
		}
		grid[row][col] = cell{r: r, slot: slot}
	}

	for _, s := range chart.Series {
		if s.Line {
			for i := 1; i < len(s.Points); i++ {
				a, b := s.Points[i-1], s.Points[i]
				steps := int(math.Max(math.Abs(b.X-a.X), math.Abs(b.Y-a.Y)))
				for k := 1; k < steps; k++ {
					t := float64(k) / float64(steps)
					put(a.X+(b.X-a.X)*t, a.Y+(b.Y-a.Y)*t, lineRune, s.Slot)
				}
			}
		}
		for _, p := range s.Points {
			put(p.X, p.Y, markerRune, s.Slot)
		}
	}

	labelStyle := lipgloss.NewStyle().Foreground(axisColor).Width(labelWidth).Align(lipgloss.Right)
	var b strings.Builder
	for row := 0; row < height; row++ {
		label := ""
		switch row {
		case 0:
			label = formatAxis(chart.Max)
		case height - 1:
			label = formatAxis(chart.Min)
		}
		b.WriteString(labelStyle.Render(label))
		b.WriteString(lipgloss.NewStyle().Foreground(axisColor).Render("│"))
		for _, c := range grid[row] {
			if c.slot < 0 {
				b.WriteRune(c.r)
				continue
			}
			b.WriteString(slotStyle(c.slot).Render(string(c.r)))
		}
		b.WriteString("\n")
	}

	b.WriteString(strings.Repeat(" ", labelWidth))
	b.WriteString(lipgloss.NewStyle().Foreground(axisColor).Render("└" + strings.Repeat("─", plotWidth)))
	b.WriteString("\n")
	b.WriteString(strings.Repeat(" ", labelWidth+1))
	b.WriteString(yearAxis(chart, plotWidth))
	b.WriteString("\n\n")
	b.WriteString(Legend(chart))
	return b.String()
}

// yearAxis places each year label under its column, skipping labels that
// would overlap the previous one.
func yearAxis(chart compare.Chart, plotWidth int) string {
	line := []rune(strings.Repeat(" ", plotWidth+4))
	next := 0
	for _, y := range chart.Years {
		x, ok := chart.XFor(y)
		if !ok {
			continue
		}
		label := []rune(fmt.Sprint(y))
		start := int(math.Round(x)) - len(label)/2
		if start < next {
			continue
		}
		if start+len(label) > len(line) {
			start = len(line) - len(label)
		}
		copy(line[start:], label)
		next = start + len(label) + 1
	}
	return strings.TrimRight(string(line), " ")
}

// Legend lists every series with its color, marking colleges without data.
func Legend(chart compare.Chart) string {
	var parts []string
	for _, s := range chart.Series {
		entry := slotStyle(s.Slot).Render(string(markerRune)) + " " + s.Name
		if s.NoData {
			entry += lipgloss.NewStyle().Foreground(axisColor).Render(" (no data)")
		}
		parts = append(parts, entry)
	}
	return strings.Join(parts, "   ")
}

// StatsPanel renders one card per college with start, end, change and
// average, plus a sparkline of the trend.
func StatsPanel(result *compare.ComparisonResult, order []string) string {
	if result == nil || len(result.Colleges) == 0 {
		return ""
	}
	chart := compare.BuildChart(result, order, compare.DefaultChartOptions())

	cards := make([]string, 0, len(result.Colleges))
	for i, c := range result.Colleges {
		stats := compare.ComputeStats(c.Trend)
		color := lipgloss.Color(compare.Palette[i%len(compare.Palette)])
		if i < len(chart.Series) {
			color = lipgloss.Color(chart.Series[i].Color)
		}

		var values []float64
		for _, p := range compare.ValidPoints(c.Trend) {
			values = append(values, p.Value)
		}
		spark := Sparkline(values)
		if spark == "" {
			spark = compare.NotAvailable
		}

		body := lipgloss.NewStyle().Bold(true).Foreground(color).Render(truncate(c.DisplayName(), 28)) + "\n" +
			statLine("Start", stats.StartText()) +
			statLine("Current", stats.EndText()) +
			statLine("Change", stats.DeltaText()+" "+directionArrow(stats)) +
			statLine("Average", stats.AverageText()) +
			spark

		cards = append(cards, lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(color).
			Padding(0, 1).
			Width(32).
			Render(body))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func statLine(label, value string) string {
	labelStyle := lipgloss.NewStyle().Foreground(axisColor).Width(10)
	return labelStyle.Render(label) + value + "\n"
}

func directionArrow(s compare.Stats) string {
	switch s.Direction() {
	case compare.Increasing:
		return "▲"
	case compare.Decreasing:
		return "▼"
	}
	if !s.Available {
		return ""
	}
	return "="
}

// CurrentBars compares the latest value of each college as horizontal bars
// scaled between the chart's minimum and maximum.
func CurrentBars(result *compare.ComparisonResult, order []string, width int) string {
	chart := compare.BuildChart(result, order, compare.DefaultChartOptions())
	if chart.Empty {
		return ""
	}

	var lines []string
	for i, c := range result.Colleges {
		stats := compare.ComputeStats(c.Trend)
		label := fmt.Sprintf("%-20s", truncate(c.DisplayName(), 20))
		if !stats.Available {
			lines = append(lines, label+" "+compare.NotAvailable)
			continue
		}
		lines = append(lines, BarChart(label, stats.End-chart.Min, chart.Range, width,
			lipgloss.Color(chart.Series[i].Color), stats.EndText()))
	}
	return strings.Join(lines, "\n")
}

// BarChart creates a horizontal bar chart
func BarChart(label string, value, max float64, width int, color lipgloss.Color, caption string) string {
	if max == 0 {
		max = value
	}

	fraction := 1.0
	if max != 0 {
		fraction = value / max
	}
	fraction = math.Max(0, math.Min(1, fraction))

	filledWidth := int(float64(width) * fraction)
	if filledWidth == 0 && width > 0 {
		filledWidth = 1
	}

	filled := strings.Repeat("█", filledWidth)
	empty := strings.Repeat("░", width-filledWidth)

	barStyle := lipgloss.NewStyle().Foreground(color)
	emptyStyle := lipgloss.NewStyle().Foreground(axisColor)

	return fmt.Sprintf("%s %s%s %s",
		label,
		barStyle.Render(filled),
		emptyStyle.Render(empty),
		caption,
	)
}

// Sparkline creates a simple sparkline from values
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}

	min, max := values[0], values[0]
	for _, v := range values {
		min = math.Min(min, v)
		max = math.Max(max, v)
	}

	// Sparkline characters from bottom to top
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	var result strings.Builder
	for _, v := range values {
		idx := len(chars) / 2
		if max != min {
			idx = int((v - min) / (max - min) * float64(len(chars)-1))
		}
		result.WriteRune(chars[idx])
	}
	return result.String()
}

// InfoBox creates a styled info box with a value
func InfoBox(label string, value string, color lipgloss.Color) string {
	labelStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(axisColor).
		Width(14).
		Align(lipgloss.Left)

	valueStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(color).
		Width(20).
		Align(lipgloss.Right)

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1)

	return boxStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value)))
}

func slotStyle(slot int) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(compare.Palette[slot%len(compare.Palette)]))
}

func formatAxis(v float64) string {
	if math.Abs(v) >= 1000 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

// RenderComparison is the full text view of a result: header, chart,
// current values, stats and insights.
func RenderComparison(result *compare.ComparisonResult, order []string, width int) string {
	if result == nil {
		return ""
	}
	accent := lipgloss.Color("62")
	title := lipgloss.NewStyle().Bold(true).Foreground(accent)

	var b strings.Builder
	b.WriteString(title.Render(fmt.Sprintf("%s (%s)", result.BranchName, result.BranchCode)))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		InfoBox("Category", string(result.Category), accent),
		InfoBox("Metric", result.Metric.Label(), accent)))
	b.WriteString("\n\n")
	b.WriteString(RenderTrendChart(result, order, width, 12))
	b.WriteString("\n\n")
	if bars := CurrentBars(result, order, 30); bars != "" {
		b.WriteString(bars)
		b.WriteString("\n\n")
	}
	b.WriteString(StatsPanel(result, order))
	if len(result.Insights) > 0 {
		b.WriteString("\n\n")
		b.WriteString(title.Render("Insights"))
		for _, in := range result.Insights {
			b.WriteString("\n  " + in)
		}
	}
	return b.String()
}
