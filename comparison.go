package main

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"cetcompare/internal/compare"
)

// ErrNoData means no selected college has cutoffs for the branch and category.
var ErrNoData = errors.New("No data found for the selected colleges and branch")

// ValidationError is a rejected request. Title goes in "error", Detail in "message".
type ValidationError struct {
	Title  string
	Detail string
}

func (e *ValidationError) Error() string {
	return e.Title + ": " + e.Detail
}

// CutoffStore is the query side of the cutoff database.
type CutoffStore interface {
	SearchColleges(query string, limit int) ([]compare.College, error)
	BranchesForColleges(codes []string) ([]compare.Branch, error)
	CutoffSeries(codes []string, branch string, category compare.Category, metric compare.Metric) ([]cutoffRow, error)
}

// ComparisonService answers the comparison endpoints.
type ComparisonService struct {
	store CutoffStore
}

func NewComparisonService(store CutoffStore) *ComparisonService {
	return &ComparisonService{store: store}
}

// Search lists colleges matching query.
func (s *ComparisonService) Search(query string) ([]compare.College, error) {
	return s.store.SearchColleges(query, searchLimit)
}

// Branches lists branches offered across the colleges.
func (s *ComparisonService) Branches(codes []string) ([]compare.Branch, error) {
	cleaned := cleanCodes(codes)
	if len(cleaned) == 0 {
		return nil, &ValidationError{Title: "Invalid college_codes", Detail: "college_codes must be a non-empty list"}
	}
	return s.store.BranchesForColleges(cleaned)
}

// compareInput is the raw request body. Nil pointers mark missing fields.
type compareInput struct {
	CollegeCodes *[]string
	BranchCode   *string
	Category     string
	Metric       string
}

// validate applies the request rules in the order clients see them.
func (in compareInput) validate() (compare.Request, error) {
	if in.CollegeCodes == nil || in.BranchCode == nil {
		return compare.Request{}, &ValidationError{
			Title:  "Missing required fields",
			Detail: "Both college_codes and branch_code are required",
		}
	}

	codes := cleanCodes(*in.CollegeCodes)
	if len(codes) < compare.MinColleges {
		return compare.Request{}, &ValidationError{
			Title:  "Insufficient colleges",
			Detail: "Please select at least 2 colleges to compare",
		}
	}
	if len(codes) > compare.MaxColleges {
		return compare.Request{}, &ValidationError{
			Title:  "Too many colleges",
			Detail: "Maximum 3 colleges can be compared at once",
		}
	}

	branch := strings.TrimSpace(*in.BranchCode)
	if branch == "" {
		return compare.Request{}, &ValidationError{
			Title:  "Invalid branch_code",
			Detail: "branch_code must be a non-empty string",
		}
	}

	category, err := compare.ParseCategory(in.Category)
	if err != nil {
		return compare.Request{}, &ValidationError{Title: "Invalid category", Detail: err.Error()}
	}
	metric, err := compare.ParseMetric(in.Metric)
	if err != nil {
		return compare.Request{}, &ValidationError{Title: "Invalid metric", Detail: err.Error()}
	}

	return compare.Request{
		CollegeCodes: codes,
		BranchCode:   branch,
		Category:     category,
		Metric:       metric,
	}, nil
}

// cleanCodes trims codes and drops blanks and repeats, keeping order.
func cleanCodes(codes []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// Compare builds the trend of every requested college that has data, in
// request order, with per-college stats and overall insights.
func (s *ComparisonService) Compare(req compare.Request) (*compare.ComparisonResult, error) {
	rows, err := s.store.CutoffSeries(req.CollegeCodes, req.BranchCode, req.Category, req.Metric)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoData
	}

	byCollege := map[string][]cutoffRow{}
	for _, r := range rows {
		byCollege[r.College.Code] = append(byCollege[r.College.Code], r)
	}

	result := &compare.ComparisonResult{
		BranchCode: req.BranchCode,
		BranchName: req.BranchCode,
		Category:   req.Category,
		Metric:     req.Metric,
		Colleges:   []compare.CollegeSeries{},
	}

	for _, code := range req.CollegeCodes {
		series, ok := byCollege[code]
		if !ok {
			if logger != nil {
				logger.Info("No cutoffs for college", zap.String("college", code), zap.String("branch", req.BranchCode))
			}
			continue
		}

		trend := make([]compare.TrendPoint, 0, len(series))
		for _, r := range series {
			trend = append(trend, compare.Point(r.Year, round2(r.Value)))
		}
		if result.BranchName == req.BranchCode && series[0].BranchName != "" {
			result.BranchName = series[0].BranchName
		}

		result.Colleges = append(result.Colleges, compare.CollegeSeries{
			College: series[0].College,
			Trend:   trend,
			Stats:   compare.ComputeStats(trend).Analysis(),
		})
	}

	if len(result.Colleges) == 0 {
		return nil, ErrNoData
	}
	result.Insights = generateInsights(result.Colleges, req.Metric)
	return result, nil
}

// generateInsights writes short observations about the compared series.
func generateInsights(colleges []compare.CollegeSeries, metric compare.Metric) []string {
	var withStats []compare.CollegeSeries
	for _, c := range colleges {
		if c.Stats != nil {
			withStats = append(withStats, c)
		}
	}
	if len(withStats) == 0 {
		return []string{}
	}

	insights := []string{}

	top := withStats[0]
	for _, c := range withStats[1:] {
		if moreCompetitive(c.Stats.EndValue, top.Stats.EndValue, metric) {
			top = c
		}
	}
	if metric == compare.MetricRank {
		insights = append(insights, fmt.Sprintf("🏆 %s is the most competitive with a closing rank of %s",
			top.Name, formatValue(top.Stats.EndValue)))
	} else {
		insights = append(insights, fmt.Sprintf("🏆 %s has the highest current cutoff at %s%%",
			top.Name, formatValue(top.Stats.EndValue)))
	}

	if len(withStats) > 1 {
		biggest := withStats[0]
		for _, c := range withStats[1:] {
			if math.Abs(c.Stats.Change) > math.Abs(biggest.Stats.Change) {
				biggest = c
			}
		}
		if math.Abs(biggest.Stats.Change) > significantChange(metric) {
			direction := "increased"
			if biggest.Stats.Change < 0 {
				direction = "decreased"
			}
			unit := "%"
			if metric == compare.MetricRank {
				unit = " ranks"
			}
			insights = append(insights, fmt.Sprintf("📈 %s showed the biggest change, %s by %s%s",
				biggest.Name, direction, formatValue(math.Abs(biggest.Stats.Change)), unit))
		}
	}

	var increasing, decreasing int
	for _, c := range withStats {
		switch c.Stats.Direction {
		case compare.Increasing:
			increasing++
		case compare.Decreasing:
			decreasing++
		}
	}
	switch {
	case increasing == len(withStats) && metric == compare.MetricRank:
		insights = append(insights, "📊 All selected colleges show rising closing ranks, indicating easing competition")
	case increasing == len(withStats):
		insights = append(insights, "📊 All selected colleges show increasing cutoff trends, indicating growing competition")
	case decreasing == len(withStats):
		insights = append(insights, "📊 All selected colleges show decreasing cutoff trends")
	default:
		insights = append(insights, fmt.Sprintf("📊 %d increasing, %d decreasing trends among selected colleges", increasing, decreasing))
	}
	return insights
}

func moreCompetitive(a, b float64, metric compare.Metric) bool {
	if metric.HigherIsMoreCompetitive() {
		return a > b
	}
	return a < b
}

// significantChange is the smallest change worth calling out.
func significantChange(metric compare.Metric) float64 {
	if metric == compare.MetricRank {
		return 100
	}
	return 0.5
}

func formatValue(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
