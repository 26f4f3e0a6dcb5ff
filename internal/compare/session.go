package compare

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

const (
	// MaxColleges is the most colleges a comparison can hold.
	MaxColleges = 3
	// MinColleges is the fewest colleges a comparison needs.
	MinColleges = 2
)

// User facing messages.
const (
	msgTooMany        = "You can compare up to 3 colleges"
	msgNeedTwo        = "Please select at least 2 colleges to compare"
	msgNeedBranch     = "Please select a branch"
	msgBranchesFailed = "Failed to load branches"
	msgSearchFailed   = "Failed to search colleges"
	msgCompareFailed  = "Failed to compare colleges"
)

// Backend is the comparison service a Session talks to.
type Backend interface {
	SearchColleges(ctx context.Context, query string) ([]College, error)
	Branches(ctx context.Context, collegeCodes []string) ([]Branch, error)
	Compare(ctx context.Context, req Request) (*ComparisonResult, error)
}

// Task is deferred backend work produced by a Session operation. The
// caller decides where it runs (a goroutine, a tea.Cmd, inline).
type Task func(ctx context.Context)

// Run executes t when it is non-nil.
func Run(ctx context.Context, t Task) {
	if t != nil {
		t(ctx)
	}
}

// Loading tracks which request kinds are in flight.
type Loading struct {
	Initial  bool
	Search   bool
	Branches bool
	Compare  bool
}

// Any reports whether anything is loading.
func (l Loading) Any() bool {
	return l.Initial || l.Search || l.Branches || l.Compare
}

// State is a point in time copy of a Session.
type State struct {
	Colleges       []College
	Selected       []College
	Branches       []Branch
	SelectedBranch string
	Category       Category
	Metric         Metric
	Result         *ComparisonResult
	Loading        Loading
	Message        string
	Error          string
}

// SelectedCodes returns the selected college codes in selection order.
func (s State) SelectedCodes() []string {
	codes := make([]string, len(s.Selected))
	for i, c := range s.Selected {
		codes[i] = c.Code
	}
	return codes
}

// Branch returns the selected branch, if it is in the resolved list.
func (s State) Branch() (Branch, bool) {
	for _, b := range s.Branches {
		if b.Code == s.SelectedBranch {
			return b, true
		}
	}
	return Branch{}, false
}

// Session holds the selection state of one comparison screen. All
// methods are safe for concurrent use. Backend responses are applied
// only if no newer request of the same kind was issued meanwhile.
type Session struct {
	backend Backend
	logger  *zap.Logger

	mu         sync.Mutex
	state      State
	searchSeq  uint64
	branchSeq  uint64
	compareSeq uint64
	onChange   func()
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *zap.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithOnChange registers a callback run after every applied backend response.
func WithOnChange(fn func()) SessionOption {
	return func(s *Session) {
		s.onChange = fn
	}
}

// NewSession returns an empty session using OPEN and closing percentile.
func NewSession(backend Backend, opts ...SessionOption) *Session {
	s := &Session{
		backend: backend,
		logger:  zap.NewNop(),
		state: State{
			Category: CategoryOpen,
			Metric:   MetricPercentile,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state
	st.Colleges = append([]College(nil), s.state.Colleges...)
	st.Selected = append([]College(nil), s.state.Selected...)
	st.Branches = append([]Branch(nil), s.state.Branches...)
	return st
}

// Init loads the initial college list.
func (s *Session) Init() Task {
	return s.search("", true)
}

// Search looks up colleges by name or city.
func (s *Session) Search(query string) Task {
	return s.search(query, false)
}

func (s *Session) search(query string, initial bool) Task {
	s.mu.Lock()
	s.searchSeq++
	ticket := s.searchSeq
	s.state.Loading.Initial = initial
	s.state.Loading.Search = !initial
	s.mu.Unlock()

	return func(ctx context.Context) {
		colleges, err := s.backend.SearchColleges(ctx, query)

		s.mu.Lock()
		defer s.notify()
		defer s.mu.Unlock()
		if ticket != s.searchSeq {
			s.logger.Debug("discarding stale search response", zap.String("query", query))
			return
		}
		s.state.Loading.Initial = false
		s.state.Loading.Search = false
		if err != nil {
			s.logger.Warn("college search failed", zap.String("query", query), zap.Error(err))
			s.state.Error = messageFor(err, msgSearchFailed)
			return
		}
		s.state.Colleges = colleges
	}
}

// SelectCollege appends c to the selection. Duplicates and a fourth
// college are rejected with a message. Once two or more colleges are
// selected the returned task resolves their branches.
func (s *Session) SelectCollege(c College) Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Message = ""
	for _, sel := range s.state.Selected {
		if sel.Code == c.Code {
			s.state.Message = fmt.Sprintf("%s is already selected", c.DisplayName())
			return nil
		}
	}
	if len(s.state.Selected) >= MaxColleges {
		s.state.Message = msgTooMany
		return nil
	}

	s.state.Selected = append(s.state.Selected, c)
	return s.selectionChangedLocked()
}

// RemoveCollege drops the college with the given code from the selection.
func (s *Session) RemoveCollege(code string) Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, sel := range s.state.Selected {
		if sel.Code == code {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	s.state.Message = ""
	s.state.Selected = append(s.state.Selected[:idx:idx], s.state.Selected[idx+1:]...)
	return s.selectionChangedLocked()
}

func (s *Session) selectionChangedLocked() Task {
	s.state.SelectedBranch = ""
	s.invalidateResultLocked()

	if len(s.state.Selected) < MinColleges {
		s.branchSeq++
		s.state.Branches = nil
		s.state.Loading.Branches = false
		return nil
	}
	return s.resolveBranchesLocked()
}

func (s *Session) resolveBranchesLocked() Task {
	s.branchSeq++
	ticket := s.branchSeq
	codes := s.state.SelectedCodes()
	s.state.Loading.Branches = true

	return func(ctx context.Context) {
		branches, err := s.backend.Branches(ctx, codes)

		s.mu.Lock()
		defer s.notify()
		defer s.mu.Unlock()
		if ticket != s.branchSeq {
			s.logger.Debug("discarding stale branch response", zap.Strings("colleges", codes))
			return
		}
		s.state.Loading.Branches = false
		if err != nil {
			s.logger.Warn("branch resolution failed", zap.Strings("colleges", codes), zap.Error(err))
			s.state.Error = msgBranchesFailed
			return
		}

		s.state.Branches = branches
		next := ""
		if len(branches) > 0 {
			next = branches[0].Code
		}
		if next != s.state.SelectedBranch {
			s.state.SelectedBranch = next
			s.invalidateResultLocked()
		}
	}
}

// SetBranch changes the branch and clears any displayed result.
func (s *Session) SetBranch(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code == s.state.SelectedBranch {
		return
	}
	s.state.SelectedBranch = code
	s.invalidateResultLocked()
}

// CycleBranch moves the selection to the next resolved branch.
func (s *Session) CycleBranch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.state.Branches) == 0 {
		return
	}
	next := 0
	for i, b := range s.state.Branches {
		if b.Code == s.state.SelectedBranch {
			next = (i + 1) % len(s.state.Branches)
			break
		}
	}
	if s.state.Branches[next].Code != s.state.SelectedBranch {
		s.state.SelectedBranch = s.state.Branches[next].Code
		s.invalidateResultLocked()
	}
}

// SetCategory changes the category and clears any displayed result.
func (s *Session) SetCategory(c Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c == s.state.Category {
		return
	}
	s.state.Category = c
	s.invalidateResultLocked()
}

// SetMetric changes the metric and clears any displayed result.
func (s *Session) SetMetric(m Metric) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m == s.state.Metric {
		return
	}
	s.state.Metric = m
	s.invalidateResultLocked()
}

// Compare validates the selection and returns the comparison request
// task, or nil with a message when the selection is incomplete.
func (s *Session) Compare() Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Message = ""
	if len(s.state.Selected) < MinColleges {
		s.state.Message = msgNeedTwo
		return nil
	}
	if s.state.SelectedBranch == "" {
		s.state.Message = msgNeedBranch
		return nil
	}

	s.compareSeq++
	ticket := s.compareSeq
	req := Request{
		CollegeCodes: s.state.SelectedCodes(),
		BranchCode:   s.state.SelectedBranch,
		Category:     s.state.Category,
		Metric:       s.state.Metric,
	}
	s.state.Loading.Compare = true
	s.state.Error = ""

	return func(ctx context.Context) {
		result, err := s.backend.Compare(ctx, req)

		s.mu.Lock()
		defer s.notify()
		defer s.mu.Unlock()
		if ticket != s.compareSeq {
			s.logger.Debug("discarding stale comparison response", zap.Strings("colleges", req.CollegeCodes))
			return
		}
		s.state.Loading.Compare = false
		if err != nil {
			s.logger.Warn("comparison failed", zap.Strings("colleges", req.CollegeCodes),
				zap.String("branch", req.BranchCode), zap.Error(err))
			s.state.Result = nil
			s.state.Error = messageFor(err, msgCompareFailed)
			return
		}
		s.state.Result = Normalize(result, req)
	}
}

// Dismiss clears the visible message and error.
func (s *Session) Dismiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Message = ""
	s.state.Error = ""
}

func (s *Session) invalidateResultLocked() {
	s.compareSeq++
	s.state.Result = nil
	s.state.Loading.Compare = false
}

func (s *Session) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}

// messageFor prefers the text an error carries for users over fallback.
func messageFor(err error, fallback string) string {
	var um interface{ UserMessage() string }
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}
	return fallback
}
