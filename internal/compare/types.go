package compare

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// College is a CET participating institute.
type College struct {
	Code string `json:"college_code"`
	Name string `json:"college_name"`
	City string `json:"city"`
	Type string `json:"type"`
}

// DisplayName returns the name with the code as a fallback.
func (c College) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return "College " + c.Code
}

// Branch is an academic program offered by a college.
type Branch struct {
	Code string `json:"branch_code"`
	Name string `json:"branch_name"`
}

// DisplayName returns the branch name with the code as a fallback.
func (b Branch) DisplayName() string {
	if b.Name != "" {
		return b.Name
	}
	return b.Code
}

// Metric selects which cutoff field a trend series represents.
type Metric string

const (
	MetricPercentile Metric = "closing_percentile"
	MetricRank       Metric = "closing_rank"
)

// ParseMetric accepts the wire names plus the short forms "percentile" and "rank".
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "closing_percentile", "percentile":
		return MetricPercentile, nil
	case "closing_rank", "rank":
		return MetricRank, nil
	}
	return "", fmt.Errorf("unknown metric %q (want closing_percentile or closing_rank)", s)
}

// Label is the human readable axis label.
func (m Metric) Label() string {
	if m == MetricRank {
		return "Closing Rank"
	}
	return "Closing Percentile"
}

// HigherIsMoreCompetitive reports whether a larger value means a harder admission.
func (m Metric) HigherIsMoreCompetitive() bool {
	return m != MetricRank
}

// Direction describes how a series moved between its first and last year.
type Direction string

const (
	Increasing Direction = "increasing"
	Decreasing Direction = "decreasing"
	Stable     Direction = "stable"
)

// DirectionOf classifies a signed change.
func DirectionOf(change float64) Direction {
	switch {
	case change > 0:
		return Increasing
	case change < 0:
		return Decreasing
	}
	return Stable
}

// TrendPoint is one year of a cutoff series. Valid is false when the
// year or value could not be read as a finite number.
type TrendPoint struct {
	Year  int
	Value float64
	Valid bool
}

// Point builds a valid trend point.
func Point(year int, value float64) TrendPoint {
	return TrendPoint{Year: year, Value: value, Valid: true}
}

type trendPointJSON struct {
	Year  json.RawMessage `json:"year"`
	Value json.RawMessage `json:"value"`
}

// UnmarshalJSON never fails on bad field contents; it marks the point invalid instead.
func (p *TrendPoint) UnmarshalJSON(data []byte) error {
	*p = TrendPoint{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}

	var raw trendPointJSON
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil
	}

	year, okYear := parseNumber(raw.Year)
	if okYear && year != math.Trunc(year) {
		okYear = false
	}
	value, okValue := parseNumber(raw.Value)

	if okYear {
		p.Year = int(year)
	}
	if okValue {
		p.Value = value
	}
	p.Valid = okYear && okValue
	return nil
}

// MarshalJSON writes invalid values as null.
func (p TrendPoint) MarshalJSON() ([]byte, error) {
	out := struct {
		Year  int      `json:"year"`
		Value *float64 `json:"value"`
	}{Year: p.Year}
	if p.Valid {
		v := p.Value
		out.Value = &v
	}
	return json.Marshal(out)
}

func parseNumber(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, isFinite(f)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, isFinite(f)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ValidPoints drops invalid points and returns the rest sorted by year.
func ValidPoints(points []TrendPoint) []TrendPoint {
	out := make([]TrendPoint, 0, len(points))
	for _, p := range points {
		if p.Valid && isFinite(p.Value) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// Analysis is the per-college summary the server may attach to a series.
type Analysis struct {
	FirstYear  int       `json:"first_year"`
	LastYear   int       `json:"last_year"`
	StartValue float64   `json:"start_value"`
	EndValue   float64   `json:"end_value"`
	Change     float64   `json:"change"`
	Average    float64   `json:"average"`
	Direction  Direction `json:"trend_direction"`
}

// CollegeSeries is one college's trend for the compared branch and category.
type CollegeSeries struct {
	College
	Trend []TrendPoint `json:"trend"`
	Stats *Analysis    `json:"stats,omitempty"`
}

// ComparisonResult is the payload of a successful comparison.
type ComparisonResult struct {
	BranchCode string          `json:"branch_code"`
	BranchName string          `json:"branch_name"`
	Category   Category        `json:"category,omitempty"`
	Metric     Metric          `json:"metric,omitempty"`
	Colleges   []CollegeSeries `json:"comparison"`
	Insights   []string        `json:"insights,omitempty"`
}

// Request is the body of a comparison request.
type Request struct {
	CollegeCodes []string `json:"college_codes"`
	BranchCode   string   `json:"branch_code"`
	Category     Category `json:"category,omitempty"`
	Metric       Metric   `json:"metric,omitempty"`
}

// Normalize returns a copy of result with invalid points removed, series
// sorted by year, missing names filled in, and the request's axes recorded
// where the server left them out.
func Normalize(result *ComparisonResult, req Request) *ComparisonResult {
	if result == nil {
		return nil
	}

	out := *result
	if out.BranchCode == "" {
		out.BranchCode = req.BranchCode
	}
	if out.BranchName == "" {
		out.BranchName = out.BranchCode
	}
	if out.Category == "" {
		out.Category = req.Category
	}
	if out.Metric == "" {
		out.Metric = req.Metric
	}
	if out.Metric == "" {
		out.Metric = MetricPercentile
	}

	out.Colleges = make([]CollegeSeries, 0, len(result.Colleges))
	for _, c := range result.Colleges {
		series := c
		if series.Name == "" {
			series.Name = "College " + series.Code
		}
		series.Trend = ValidPoints(c.Trend)
		if c.Stats != nil {
			stats := *c.Stats
			series.Stats = &stats
		}
		out.Colleges = append(out.Colleges, series)
	}
	out.Insights = append([]string(nil), result.Insights...)
	return &out
}
