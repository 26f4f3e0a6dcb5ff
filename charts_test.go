package main

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"

	"cetcompare/internal/compare"
)

func chartResult() *compare.ComparisonResult {
	return &compare.ComparisonResult{
		BranchCode: "CS",
		BranchName: "Computer Engineering",
		Category:   compare.CategoryOpen,
		Metric:     compare.MetricPercentile,
		Colleges: []compare.CollegeSeries{
			series(stubCOEP, 99.3, 99.6, 99.7),
			series(stubPICT, 98.8, 99.0),
		},
		Insights: []string{"🏆 COEP Technological University has the highest current cutoff at 99.7%"},
	}
}

func TestRenderTrendChart(t *testing.T) {
	out := RenderTrendChart(chartResult(), []string{"6006", "6271"}, 70, 10)

	for _, want := range []string{"2021", "2022", "2023", "99.70", "98.80", "COEP Technological University", "Pune Institute of Computer Technology"} {
		assert.Contains(t, out, want)
	}
	assert.Contains(t, out, string(markerRune))
	assert.Contains(t, out, string(lineRune))
	assert.NotContains(t, out, "(no data)")
}

func TestRenderTrendChartEmpty(t *testing.T) {
	empty := &compare.ComparisonResult{
		BranchCode: "CS",
		Colleges: []compare.CollegeSeries{
			{College: stubCOEP, Trend: []compare.TrendPoint{{Year: 2021}}},
		},
	}
	out := RenderTrendChart(empty, nil, 50, 8)
	assert.Contains(t, out, compare.EmptyChartText)
	assert.NotContains(t, out, string(markerRune))

	assert.Contains(t, RenderTrendChart(nil, nil, 50, 8), compare.EmptyChartText)
}

func TestLegendMarksMissingData(t *testing.T) {
	result := chartResult()
	result.Colleges = append(result.Colleges, compare.CollegeSeries{College: stubVJTI})

	chart := compare.BuildChart(result, nil, compare.DefaultChartOptions())
	legend := Legend(chart)
	assert.Contains(t, legend, "Veermata Jijabai Technological Institute (no data)")
	assert.NotContains(t, legend, "COEP Technological University (no data)")
}

func TestStatsPanel(t *testing.T) {
	result := chartResult()
	result.Colleges = append(result.Colleges, compare.CollegeSeries{College: stubVJTI})

	out := StatsPanel(result, nil)
	assert.Contains(t, out, "99.30")
	assert.Contains(t, out, "+0.40")
	assert.Contains(t, out, "▲")
	assert.Contains(t, out, compare.NotAvailable)

	assert.Empty(t, StatsPanel(nil, nil))
}

func TestStatsPanelWithoutPoints(t *testing.T) {
	result := &compare.ComparisonResult{Colleges: []compare.CollegeSeries{{College: stubCOEP}}}
	assert.Contains(t, StatsPanel(result, nil), compare.NotAvailable)
}

func TestSparkline(t *testing.T) {
	testCases := []struct {
		name   string
		values []float64
		want   string
	}{
		{"Empty", nil, ""},
		{"Rising", []float64{1, 2, 3}, "▁▄█"},
		{"Flat", []float64{5, 5}, "▅▅"},
		{"Falling", []float64{3000, 1000}, "█▁"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Sparkline(tc.values))
		})
	}
}

func TestBarChart(t *testing.T) {
	out := BarChart("COEP", 5, 10, 10, lipgloss.Color("1"), "99.70")
	assert.Equal(t, 5, strings.Count(out, "█"))
	assert.Equal(t, 5, strings.Count(out, "░"))
	assert.True(t, strings.HasSuffix(out, "99.70"))

	// The lowest value still shows a sliver.
	out = BarChart("PICT", 0, 10, 10, lipgloss.Color("1"), "98.80")
	assert.Equal(t, 1, strings.Count(out, "█"))
}

func TestCurrentBars(t *testing.T) {
	result := chartResult()
	result.Colleges = append(result.Colleges, compare.CollegeSeries{College: stubVJTI})

	out := CurrentBars(result, nil, 20)
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], "99.70")
	assert.Contains(t, lines[2], compare.NotAvailable)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "COEP", truncate("COEP", 10))
	assert.Equal(t, "Veerm…", truncate("Veermata Jijabai", 6))
	assert.Equal(t, "V", truncate("Veermata", 1))
}

func TestFormatAxis(t *testing.T) {
	assert.Equal(t, "99.70", formatAxis(99.7))
	assert.Equal(t, "12500", formatAxis(12500))
}

func TestRenderComparison(t *testing.T) {
	out := RenderComparison(chartResult(), []string{"6006", "6271"}, 80)

	assert.Contains(t, out, "Computer Engineering (CS)")
	assert.Contains(t, out, "Closing Percentile")
	assert.Contains(t, out, "Insights")
	assert.Contains(t, out, "highest current cutoff")

	assert.Empty(t, RenderComparison(nil, nil, 80))
}
