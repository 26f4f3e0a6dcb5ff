package main

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cetcompare/internal/api"
	"cetcompare/internal/compare"
)

type stubStore struct {
	colleges []compare.College
	branches []compare.Branch
	rows     []cutoffRow
	err      error

	gotCodes []string
}

func (s *stubStore) SearchColleges(query string, limit int) ([]compare.College, error) {
	return s.colleges, s.err
}

func (s *stubStore) BranchesForColleges(codes []string) ([]compare.Branch, error) {
	s.gotCodes = codes
	return s.branches, s.err
}

func (s *stubStore) CutoffSeries(codes []string, branch string, category compare.Category, metric compare.Metric) ([]cutoffRow, error) {
	s.gotCodes = codes
	return s.rows, s.err
}

var (
	stubCOEP = compare.College{Code: "6006", Name: "COEP Technological University", City: "Pune", Type: "Government"}
	stubPICT = compare.College{Code: "6271", Name: "Pune Institute of Computer Technology", City: "Pune", Type: "Un-Aided"}
	stubVJTI = compare.College{Code: "3012", Name: "Veermata Jijabai Technological Institute", City: "Mumbai", Type: "Autonomous"}
)

func row(c compare.College, year int, value float64) cutoffRow {
	return cutoffRow{College: c, BranchName: "Computer Engineering", Year: year, Value: value}
}

func strPtr(s string) *string { return &s }

func codesPtr(codes ...string) *[]string { return &codes }

func TestCompareInputValidate(t *testing.T) {
	testCases := []struct {
		name      string
		in        compareInput
		wantTitle string
	}{
		{"Nothing", compareInput{}, "Missing required fields"},
		{"No branch", compareInput{CollegeCodes: codesPtr("1", "2")}, "Missing required fields"},
		{"No codes", compareInput{BranchCode: strPtr("CS")}, "Missing required fields"},
		{"One code", compareInput{CollegeCodes: codesPtr("1"), BranchCode: strPtr("CS")}, "Insufficient colleges"},
		{"Blank codes dropped", compareInput{CollegeCodes: codesPtr("1", " ", ""), BranchCode: strPtr("CS")}, "Insufficient colleges"},
		{"Four codes", compareInput{CollegeCodes: codesPtr("1", "2", "3", "4"), BranchCode: strPtr("CS")}, "Too many colleges"},
		// The count check comes before the branch check.
		{"Four codes and blank branch", compareInput{CollegeCodes: codesPtr("1", "2", "3", "4"), BranchCode: strPtr("")}, "Too many colleges"},
		{"Blank branch", compareInput{CollegeCodes: codesPtr("1", "2"), BranchCode: strPtr(" ")}, "Invalid branch_code"},
		{"Bad category", compareInput{CollegeCodes: codesPtr("1", "2"), BranchCode: strPtr("CS"), Category: "NRI"}, "Invalid category"},
		{"Bad metric", compareInput{CollegeCodes: codesPtr("1", "2"), BranchCode: strPtr("CS"), Metric: "seats"}, "Invalid metric"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.in.validate()
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.wantTitle, verr.Title)
		})
	}
}

func TestCompareInputValidateNormalizes(t *testing.T) {
	in := compareInput{
		CollegeCodes: codesPtr(" 6006", "6271", "6006", "3012"),
		BranchCode:   strPtr(" CS "),
		Category:     "gobcs",
		Metric:       "rank",
	}
	req, err := in.validate()
	require.NoError(t, err)
	assert.Equal(t, compare.Request{
		CollegeCodes: []string{"6006", "6271", "3012"},
		BranchCode:   "CS",
		Category:     compare.CategoryOBC,
		Metric:       compare.MetricRank,
	}, req)

	in = compareInput{CollegeCodes: codesPtr("1", "2"), BranchCode: strPtr("CS")}
	req, err = in.validate()
	require.NoError(t, err)
	assert.Equal(t, compare.CategoryOpen, req.Category)
	assert.Equal(t, compare.MetricPercentile, req.Metric)
}

func TestServiceBranches(t *testing.T) {
	store := &stubStore{branches: []compare.Branch{{Code: "CS", Name: "Computer Engineering"}}}
	svc := NewComparisonService(store)

	branches, err := svc.Branches([]string{"6006", " 6006 ", "6271"})
	require.NoError(t, err)
	assert.Len(t, branches, 1)
	assert.Equal(t, []string{"6006", "6271"}, store.gotCodes)

	_, err = svc.Branches([]string{" "})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Invalid college_codes", verr.Title)
}

func TestServiceCompareOrdersByRequest(t *testing.T) {
	store := &stubStore{rows: []cutoffRow{
		row(stubCOEP, 2021, 99.3),
		row(stubCOEP, 2023, 99.7),
		row(stubVJTI, 2021, 99.6),
		row(stubVJTI, 2023, 99.8),
	}}
	svc := NewComparisonService(store)

	result, err := svc.Compare(compare.Request{
		CollegeCodes: []string{"3012", "6271", "6006"},
		BranchCode:   "CS",
		Category:     compare.CategoryOpen,
		Metric:       compare.MetricPercentile,
	})
	require.NoError(t, err)

	require.Len(t, result.Colleges, 2)
	assert.Equal(t, "3012", result.Colleges[0].Code)
	assert.Equal(t, "6006", result.Colleges[1].Code)
	assert.Equal(t, "Computer Engineering", result.BranchName)
	assert.Equal(t, &compare.Analysis{
		FirstYear:  2021,
		LastYear:   2023,
		StartValue: 99.6,
		EndValue:   99.8,
		Change:     0.2,
		Average:    99.7,
		Direction:  compare.Increasing,
	}, result.Colleges[0].Stats)
}

func TestServiceCompareRoundsValues(t *testing.T) {
	store := &stubStore{rows: []cutoffRow{
		row(stubCOEP, 2021, 99.12345),
		row(stubPICT, 2021, 98.987),
	}}
	result, err := NewComparisonService(store).Compare(compare.Request{
		CollegeCodes: []string{"6006", "6271"},
		BranchCode:   "CS",
		Metric:       compare.MetricPercentile,
	})
	require.NoError(t, err)
	assert.Equal(t, 99.12, result.Colleges[0].Trend[0].Value)
	assert.Equal(t, 98.99, result.Colleges[1].Trend[0].Value)
}

func TestServiceCompareNoData(t *testing.T) {
	svc := NewComparisonService(&stubStore{})
	_, err := svc.Compare(compare.Request{CollegeCodes: []string{"1", "2"}, BranchCode: "CS"})
	assert.ErrorIs(t, err, ErrNoData)

	// Rows for colleges outside the request do not count.
	svc = NewComparisonService(&stubStore{rows: []cutoffRow{row(stubCOEP, 2021, 99)}})
	_, err = svc.Compare(compare.Request{CollegeCodes: []string{"1", "2"}, BranchCode: "CS"})
	assert.ErrorIs(t, err, ErrNoData)

	boom := errors.New("boom")
	svc = NewComparisonService(&stubStore{err: boom})
	_, err = svc.Compare(compare.Request{CollegeCodes: []string{"1", "2"}, BranchCode: "CS"})
	assert.ErrorIs(t, err, boom)
}

func series(c compare.College, values ...float64) compare.CollegeSeries {
	trend := make([]compare.TrendPoint, 0, len(values))
	for i, v := range values {
		trend = append(trend, compare.Point(2021+i, v))
	}
	return compare.CollegeSeries{College: c, Trend: trend, Stats: compare.ComputeStats(trend).Analysis()}
}

func TestGenerateInsights(t *testing.T) {
	testCases := []struct {
		name     string
		colleges []compare.CollegeSeries
		metric   compare.Metric
		want     []string
	}{
		{
			name:     "Percentile with a big mover",
			colleges: []compare.CollegeSeries{series(stubCOEP, 99.1, 99.7), series(stubPICT, 97.0, 98.5)},
			metric:   compare.MetricPercentile,
			want: []string{
				"🏆 COEP Technological University has the highest current cutoff at 99.7%",
				"📈 Pune Institute of Computer Technology showed the biggest change, increased by 1.5%",
				"📊 All selected colleges show increasing cutoff trends, indicating growing competition",
			},
		},
		{
			name:     "Rank picks the lowest closing rank",
			colleges: []compare.CollegeSeries{series(stubCOEP, 1500, 1000), series(stubPICT, 3500, 3000)},
			metric:   compare.MetricRank,
			want: []string{
				"🏆 COEP Technological University is the most competitive with a closing rank of 1000",
				"📈 COEP Technological University showed the biggest change, decreased by 500 ranks",
				"📊 All selected colleges show decreasing cutoff trends",
			},
		},
		{
			name:     "Rising ranks",
			colleges: []compare.CollegeSeries{series(stubCOEP, 1000, 1050), series(stubPICT, 3000, 3080)},
			metric:   compare.MetricRank,
			want: []string{
				"🏆 COEP Technological University is the most competitive with a closing rank of 1050",
				"📊 All selected colleges show rising closing ranks, indicating easing competition",
			},
		},
		{
			name:     "Mixed trends",
			colleges: []compare.CollegeSeries{series(stubCOEP, 99.5, 99.6), series(stubPICT, 98.8, 98.6), series(stubVJTI, 99.0, 99.0)},
			metric:   compare.MetricPercentile,
			want: []string{
				"🏆 COEP Technological University has the highest current cutoff at 99.6%",
				"📊 1 increasing, 1 decreasing trends among selected colleges",
			},
		},
		{
			name:     "Single year series",
			colleges: []compare.CollegeSeries{series(stubVJTI, 99.8)},
			metric:   compare.MetricPercentile,
			want: []string{
				"🏆 Veermata Jijabai Technological Institute has the highest current cutoff at 99.8%",
				"📊 0 increasing, 0 decreasing trends among selected colleges",
			},
		},
		{
			name:     "No stats",
			colleges: []compare.CollegeSeries{{College: stubCOEP}},
			metric:   compare.MetricPercentile,
			want:     []string{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, generateInsights(tc.colleges, tc.metric))
		})
	}
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "1000", formatValue(1000))
	assert.Equal(t, "99.7", formatValue(99.7))
	assert.Equal(t, "99.25", formatValue(99.25))
	assert.Equal(t, "0.5", formatValue(0.5))
}

func TestLocalBackend(t *testing.T) {
	db, cleanup := SetupTestDB(t)
	defer cleanup()

	backend := &localBackend{service: NewComparisonService(db)}
	ctx := context.Background()

	colleges, err := backend.SearchColleges(ctx, "mumbai")
	require.NoError(t, err)
	require.Len(t, colleges, 1)
	assert.Equal(t, "3012", colleges[0].Code)

	branches, err := backend.Branches(ctx, []string{"6006"})
	require.NoError(t, err)
	assert.Len(t, branches, 2)

	result, err := backend.Compare(ctx, compare.Request{CollegeCodes: []string{"6006", "6271"}, BranchCode: "CS"})
	require.NoError(t, err)
	assert.Len(t, result.Colleges, 2)

	_, err = backend.Compare(ctx, compare.Request{CollegeCodes: []string{"6006"}, BranchCode: "CS"})
	var serr *api.ServerError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusBadRequest, serr.Status)
	assert.Equal(t, "Please select at least 2 colleges to compare", serr.Message)

	_, err = backend.Compare(ctx, compare.Request{CollegeCodes: []string{"9998", "9999"}, BranchCode: "CS"})
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusNotFound, serr.Status)

	_, err = backend.Branches(ctx, nil)
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusBadRequest, serr.Status)
}

func TestAsServerError(t *testing.T) {
	assert.NoError(t, asServerError("compare", nil))

	plain := errors.New("disk full")
	assert.Same(t, plain, asServerError("compare", plain))
}
