package compare

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type userError struct{ msg string }

func (e *userError) Error() string       { return "server: " + e.msg }
func (e *userError) UserMessage() string { return e.msg }

type fakeBackend struct {
	mu           sync.Mutex
	colleges     []College
	branches     []Branch
	branchErr    error
	result       *ComparisonResult
	compareErr   error
	branchCalls  [][]string
	compareCalls []Request
}

func (f *fakeBackend) SearchColleges(ctx context.Context, query string) ([]College, error) {
	return f.colleges, nil
}

func (f *fakeBackend) Branches(ctx context.Context, codes []string) ([]Branch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.branchCalls = append(f.branchCalls, codes)
	return f.branches, f.branchErr
}

func (f *fakeBackend) Compare(ctx context.Context, req Request) (*ComparisonResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.compareCalls = append(f.compareCalls, req)
	return f.result, f.compareErr
}

var (
	coep  = College{Code: "6006", Name: "COEP Technological University", City: "Pune"}
	pict  = College{Code: "6271", Name: "Pune Institute of Computer Technology", City: "Pune"}
	vjti  = College{Code: "3012", Name: "Veermata Jijabai Technological Institute", City: "Mumbai"}
	spit  = College{Code: "3199", Name: "Sardar Patel Institute of Technology", City: "Mumbai"}
	csBr  = Branch{Code: "CS", Name: "Computer Engineering"}
	itBr  = Branch{Code: "IT", Name: "Information Technology"}
	twoCS = &ComparisonResult{
		BranchCode: "CS",
		BranchName: "Computer Engineering",
		Colleges: []CollegeSeries{
			{College: coep, Trend: []TrendPoint{Point(2022, 99.8), Point(2021, 99.5)}},
			{College: pict, Trend: []TrendPoint{Point(2021, 99.1), {Year: 2022}}},
		},
	}
)

func TestSelectCollegeResolvesBranchesAtTwo(t *testing.T) {
	backend := &fakeBackend{branches: []Branch{csBr, itBr}}
	s := NewSession(backend)

	assert.Nil(t, s.SelectCollege(coep), "one college should not resolve branches")

	task := s.SelectCollege(pict)
	require.NotNil(t, task)
	assert.True(t, s.Snapshot().Loading.Branches)

	Run(context.Background(), task)

	st := s.Snapshot()
	assert.False(t, st.Loading.Branches)
	assert.Equal(t, []string{"6006", "6271"}, backend.branchCalls[0])
	assert.Equal(t, []Branch{csBr, itBr}, st.Branches)
	assert.Equal(t, "CS", st.SelectedBranch, "first branch is auto-selected")
}

func TestSelectCollegeRejectsDuplicatesAndFourth(t *testing.T) {
	backend := &fakeBackend{branches: []Branch{csBr}}
	s := NewSession(backend)

	Run(context.Background(), s.SelectCollege(coep))
	assert.Nil(t, s.SelectCollege(coep))
	st := s.Snapshot()
	assert.Len(t, st.Selected, 1)
	assert.Equal(t, "COEP Technological University is already selected", st.Message)

	Run(context.Background(), s.SelectCollege(pict))
	Run(context.Background(), s.SelectCollege(vjti))
	assert.Nil(t, s.SelectCollege(spit))

	st = s.Snapshot()
	assert.Len(t, st.Selected, 3)
	assert.Equal(t, "You can compare up to 3 colleges", st.Message)
	assert.Equal(t, []string{"6006", "6271", "3012"}, st.SelectedCodes())
}

func TestRemoveCollegeBelowTwoClearsBranches(t *testing.T) {
	backend := &fakeBackend{branches: []Branch{csBr}}
	s := NewSession(backend)
	Run(context.Background(), s.SelectCollege(coep))
	Run(context.Background(), s.SelectCollege(pict))
	require.Equal(t, "CS", s.Snapshot().SelectedBranch)

	assert.Nil(t, s.RemoveCollege("6271"))

	st := s.Snapshot()
	assert.Equal(t, []string{"6006"}, st.SelectedCodes())
	assert.Empty(t, st.Branches)
	assert.Empty(t, st.SelectedBranch)
	assert.Nil(t, s.RemoveCollege("9999"), "unknown code is a no-op")
}

func TestRemoveCollegeReResolvesWithRemaining(t *testing.T) {
	backend := &fakeBackend{branches: []Branch{csBr}}
	s := NewSession(backend)
	for _, c := range []College{coep, pict, vjti} {
		Run(context.Background(), s.SelectCollege(c))
	}

	task := s.RemoveCollege("6271")
	require.NotNil(t, task)
	assert.Empty(t, s.Snapshot().SelectedBranch, "branch choice is invalidated")
	Run(context.Background(), task)

	last := backend.branchCalls[len(backend.branchCalls)-1]
	assert.Equal(t, []string{"6006", "3012"}, last)
	assert.Equal(t, "CS", s.Snapshot().SelectedBranch)
}

func TestBranchFailureKeepsPriorList(t *testing.T) {
	backend := &fakeBackend{branches: []Branch{csBr, itBr}}
	s := NewSession(backend)
	Run(context.Background(), s.SelectCollege(coep))
	Run(context.Background(), s.SelectCollege(pict))

	backend.branchErr = errors.New("boom")
	Run(context.Background(), s.SelectCollege(vjti))

	st := s.Snapshot()
	assert.Equal(t, "Failed to load branches", st.Error)
	assert.Equal(t, []Branch{csBr, itBr}, st.Branches)
	assert.False(t, st.Loading.Branches)
}

func TestCompareValidation(t *testing.T) {
	backend := &fakeBackend{}
	s := NewSession(backend)

	assert.Nil(t, s.Compare())
	assert.Equal(t, "Please select at least 2 colleges to compare", s.Snapshot().Message)

	Run(context.Background(), s.SelectCollege(coep))
	Run(context.Background(), s.SelectCollege(pict))
	assert.Nil(t, s.Compare())
	assert.Equal(t, "Please select a branch", s.Snapshot().Message)
	assert.Empty(t, backend.compareCalls, "no request leaves the session")
}

func TestCompareSuccessNormalizesResult(t *testing.T) {
	backend := &fakeBackend{branches: []Branch{csBr}, result: twoCS}
	s := NewSession(backend)
	Run(context.Background(), s.SelectCollege(coep))
	Run(context.Background(), s.SelectCollege(pict))
	s.SetMetric(MetricRank)

	Run(context.Background(), s.Compare())

	require.Len(t, backend.compareCalls, 1)
	assert.Equal(t, Request{
		CollegeCodes: []string{"6006", "6271"},
		BranchCode:   "CS",
		Category:     CategoryOpen,
		Metric:       MetricRank,
	}, backend.compareCalls[0])

	st := s.Snapshot()
	require.NotNil(t, st.Result)
	assert.Equal(t, []TrendPoint{Point(2021, 99.5), Point(2022, 99.8)}, st.Result.Colleges[0].Trend)
	assert.Equal(t, []TrendPoint{Point(2021, 99.1)}, st.Result.Colleges[1].Trend)
	assert.Equal(t, MetricRank, st.Result.Metric)
	assert.False(t, st.Loading.Compare)
}

func TestCompareServerErrorClearsResult(t *testing.T) {
	backend := &fakeBackend{branches: []Branch{csBr}, result: twoCS}
	s := NewSession(backend)
	Run(context.Background(), s.SelectCollege(coep))
	Run(context.Background(), s.SelectCollege(pict))
	Run(context.Background(), s.Compare())
	require.NotNil(t, s.Snapshot().Result)

	backend.compareErr = &userError{msg: "no data"}
	Run(context.Background(), s.Compare())

	st := s.Snapshot()
	assert.Nil(t, st.Result)
	assert.Equal(t, "no data", st.Error)

	backend.compareErr = errors.New("opaque")
	Run(context.Background(), s.Compare())
	assert.Equal(t, "Failed to compare colleges", s.Snapshot().Error)
}

func TestAxisChangesClearResult(t *testing.T) {
	tests := []struct {
		name   string
		change func(s *Session)
	}{
		{"category", func(s *Session) { s.SetCategory(CategoryOBC) }},
		{"metric", func(s *Session) { s.SetMetric(MetricRank) }},
		{"branch", func(s *Session) { s.SetBranch("IT") }},
		{"cycle branch", func(s *Session) { s.CycleBranch() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{branches: []Branch{csBr, itBr}, result: twoCS}
			s := NewSession(backend)
			Run(context.Background(), s.SelectCollege(coep))
			Run(context.Background(), s.SelectCollege(pict))
			Run(context.Background(), s.Compare())
			require.NotNil(t, s.Snapshot().Result)

			tt.change(s)
			assert.Nil(t, s.Snapshot().Result)
		})
	}
}

func TestSettingSameAxisKeepsResult(t *testing.T) {
	backend := &fakeBackend{branches: []Branch{csBr}, result: twoCS}
	s := NewSession(backend)
	Run(context.Background(), s.SelectCollege(coep))
	Run(context.Background(), s.SelectCollege(pict))
	Run(context.Background(), s.Compare())

	s.SetCategory(CategoryOpen)
	s.SetMetric(MetricPercentile)
	s.SetBranch("CS")
	assert.NotNil(t, s.Snapshot().Result)
}

func TestStaleCompareResponseIsDiscarded(t *testing.T) {
	backend := &fakeBackend{branches: []Branch{csBr}, result: twoCS}
	s := NewSession(backend)
	Run(context.Background(), s.SelectCollege(coep))
	Run(context.Background(), s.SelectCollege(pict))

	first := s.Compare()
	s.SetCategory(CategorySC)
	Run(context.Background(), first)

	st := s.Snapshot()
	assert.Nil(t, st.Result, "response for the old category must not be shown")
	assert.False(t, st.Loading.Compare)
}

func TestStaleBranchResponseIsDiscarded(t *testing.T) {
	backend := &fakeBackend{branches: []Branch{csBr}}
	s := NewSession(backend)
	Run(context.Background(), s.SelectCollege(coep))
	older := s.SelectCollege(pict)
	newer := s.SelectCollege(vjti)

	backend.branches = []Branch{itBr}
	Run(context.Background(), newer)
	backend.branches = []Branch{csBr}
	Run(context.Background(), older)

	st := s.Snapshot()
	assert.Equal(t, []Branch{itBr}, st.Branches)
	assert.Equal(t, "IT", st.SelectedBranch)
}

func TestInitLoadsColleges(t *testing.T) {
	backend := &fakeBackend{colleges: []College{coep, pict}}
	changed := 0
	s := NewSession(backend, WithOnChange(func() { changed++ }))

	task := s.Init()
	assert.True(t, s.Snapshot().Loading.Initial)
	Run(context.Background(), task)

	st := s.Snapshot()
	assert.False(t, st.Loading.Any())
	assert.Equal(t, []College{coep, pict}, st.Colleges)
	assert.Equal(t, 1, changed)
}

func TestConcurrentTasksDoNotRace(t *testing.T) {
	backend := &fakeBackend{branches: []Branch{csBr}, result: twoCS, colleges: []College{coep}}
	s := NewSession(backend)
	Run(context.Background(), s.SelectCollege(coep))
	Run(context.Background(), s.SelectCollege(pict))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		tasks := []Task{s.Compare(), s.Search("pune")}
		for _, task := range tasks {
			wg.Add(1)
			go func(task Task) {
				defer wg.Done()
				Run(context.Background(), task)
			}(task)
		}
	}
	wg.Wait()

	st := s.Snapshot()
	assert.False(t, st.Loading.Compare)
	assert.NotNil(t, st.Result)
}

func TestDismiss(t *testing.T) {
	s := NewSession(&fakeBackend{})
	s.Compare()
	require.NotEmpty(t, s.Snapshot().Message)
	s.Dismiss()
	assert.Empty(t, s.Snapshot().Message)
	assert.Empty(t, s.Snapshot().Error)
}
