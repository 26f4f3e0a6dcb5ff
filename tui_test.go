package main

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cetcompare/internal/api"
	"cetcompare/internal/chat"
	"cetcompare/internal/compare"
)

// newTestModel builds a model over the fixture database with the
// initial college list already loaded.
func newTestModel(t *testing.T, widget *chat.Widget) model {
	t.Helper()
	db, cleanup := SetupTestDB(t)
	t.Cleanup(cleanup)

	ctx := context.Background()
	session := compare.NewSession(&localBackend{service: NewComparisonService(db)})
	m := initialModel(ctx, session, widget)
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	return runCmd(t, m, runTask(ctx, session.Init()))
}

func update(t *testing.T, m model, msg tea.Msg) model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(model)
}

func press(t *testing.T, m model, key tea.KeyType) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(tea.KeyMsg{Type: key})
	return next.(model), cmd
}

// runCmd executes cmd synchronously and feeds its message back.
func runCmd(t *testing.T, m model, cmd tea.Cmd) model {
	t.Helper()
	if cmd == nil {
		return m
	}
	return update(t, m, cmd())
}

func TestInitialModel(t *testing.T) {
	session := compare.NewSession(&stubBackend{})
	m := initialModel(context.Background(), session, nil)

	assert.Equal(t, compareView, m.currentView)
	assert.True(t, m.searchInput.Focused())
	assert.False(t, m.chatInput.Focused())
	assert.Empty(t, m.list.Items())
	assert.Empty(t, m.notice)
	assert.NotNil(t, m.Init())
}

func TestInitialCollegeList(t *testing.T) {
	m := newTestModel(t, nil)

	items := m.list.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "COEP Technological University", items[0].(collegeItem).Title())
	assert.Equal(t, "6006 · Pune · Government", items[0].(collegeItem).Description())
}

func TestSearchOnEnter(t *testing.T) {
	m := newTestModel(t, nil)

	m.searchInput.SetValue("mumbai")
	m, cmd := press(t, m, tea.KeyEnter)
	require.NotNil(t, cmd)
	m = runCmd(t, m, cmd)

	items := m.list.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "3012", items[0].(collegeItem).college.Code)
}

func TestCompareFlow(t *testing.T) {
	m := newTestModel(t, nil)

	// Move focus to the list and select the first two colleges.
	m, _ = press(t, m, tea.KeyTab)
	require.False(t, m.searchInput.Focused())

	m, cmd := press(t, m, tea.KeyEnter)
	assert.Nil(t, cmd, "one college does not resolve branches")
	assert.Equal(t, "[1] COEP Technological University", m.list.Items()[0].(collegeItem).Title())

	m.list.Select(1)
	m, cmd = press(t, m, tea.KeyEnter)
	require.NotNil(t, cmd)
	m = runCmd(t, m, cmd)

	st := m.session.Snapshot()
	require.Len(t, st.Branches, 2)
	assert.Equal(t, "CS", st.SelectedBranch)
	assert.Contains(t, m.View(), "Selected (2/3)")
	assert.Contains(t, m.View(), "Computer Engineering (2 available)")

	m, cmd = press(t, m, tea.KeyCtrlR)
	require.NotNil(t, cmd)
	m = runCmd(t, m, cmd)

	st = m.session.Snapshot()
	require.NotNil(t, st.Result)
	assert.Len(t, st.Result.Colleges, 2)
	assert.Contains(t, m.viewport.View(), "Computer Engineering (CS)")

	// Changing an axis clears the result.
	m, _ = press(t, m, tea.KeyCtrlG)
	st = m.session.Snapshot()
	assert.Equal(t, compare.CategoryOBC, st.Category)
	assert.Nil(t, st.Result)

	m, _ = press(t, m, tea.KeyCtrlT)
	assert.Equal(t, compare.MetricRank, m.session.Snapshot().Metric)

	m, _ = press(t, m, tea.KeyCtrlB)
	assert.Equal(t, "IT", m.session.Snapshot().SelectedBranch)

	// Enter on a selected college removes it.
	m, _ = press(t, m, tea.KeyEnter)
	st = m.session.Snapshot()
	require.Len(t, st.Selected, 1)
	assert.Equal(t, "6006", st.Selected[0].Code)
	assert.Equal(t, "Pune Institute of Computer Technology", m.list.Items()[1].(collegeItem).Title())
}

func TestKeysIgnoredWhileRequestInFlight(t *testing.T) {
	m := newTestModel(t, nil)

	m.searchInput.SetValue("pune")
	m, search := press(t, m, tea.KeyEnter)
	require.NotNil(t, search)
	require.True(t, m.session.Snapshot().Loading.Search)

	m, cmd := press(t, m, tea.KeyEnter)
	assert.Nil(t, cmd, "search already in flight")
	m = runCmd(t, m, search)
	assert.Len(t, m.list.Items(), 2)

	m, _ = press(t, m, tea.KeyTab)
	m, _ = press(t, m, tea.KeyEnter)
	m.list.Select(1)
	m, cmd = press(t, m, tea.KeyEnter)
	m = runCmd(t, m, cmd)

	m, compareCmd := press(t, m, tea.KeyCtrlR)
	require.NotNil(t, compareCmd)
	require.True(t, m.session.Snapshot().Loading.Compare)

	m, cmd = press(t, m, tea.KeyCtrlR)
	assert.Nil(t, cmd, "comparison already in flight")

	m = runCmd(t, m, compareCmd)
	st := m.session.Snapshot()
	assert.False(t, st.Loading.Compare)
	require.NotNil(t, st.Result)

	// Once the response lands Ctrl+R works again.
	_, cmd = press(t, m, tea.KeyCtrlR)
	assert.NotNil(t, cmd)
}

func TestEscDismissesThenQuits(t *testing.T) {
	m := newTestModel(t, nil)

	m, cmd := press(t, m, tea.KeyCtrlR)
	assert.Nil(t, cmd)
	assert.NotEmpty(t, m.session.Snapshot().Message)
	assert.Contains(t, m.View(), m.session.Snapshot().Message)

	m, cmd = press(t, m, tea.KeyEsc)
	assert.Nil(t, cmd)
	assert.Empty(t, m.session.Snapshot().Message)

	_, cmd = press(t, m, tea.KeyEsc)
	require.NotNil(t, cmd)
	_, quit := cmd().(tea.QuitMsg)
	assert.True(t, quit)
}

func TestChatRequiresWidget(t *testing.T) {
	m := newTestModel(t, nil)

	m, cmd := press(t, m, tea.KeyCtrlL)
	assert.Nil(t, cmd)
	assert.Equal(t, compareView, m.currentView)
}

type stubBackend struct{}

func (stubBackend) SearchColleges(ctx context.Context, query string) ([]compare.College, error) {
	return nil, nil
}

func (stubBackend) Branches(ctx context.Context, codes []string) ([]compare.Branch, error) {
	return nil, nil
}

func (stubBackend) Compare(ctx context.Context, req compare.Request) (*compare.ComparisonResult, error) {
	return nil, ErrNoData
}

type stubChatBackend struct {
	sent []string
}

func (b *stubChatBackend) Health(ctx context.Context) (*api.Health, error) {
	return &api.Health{Status: "healthy", ChatAvailable: true}, nil
}

func (b *stubChatBackend) ChatStatus(ctx context.Context) (*api.ChatStatus, error) {
	return &api.ChatStatus{Success: true, Available: true, Service: "gemini"}, nil
}

func (b *stubChatBackend) Chat(ctx context.Context, req api.ChatRequest) (*api.ChatResponse, error) {
	b.sent = append(b.sent, req.Message)
	return &api.ChatResponse{Success: true, Response: "**COEP** is in Pune.", Service: "gemini"}, nil
}

func (b *stubChatBackend) ClearChat(ctx context.Context, conversationID string) error {
	return nil
}

func TestChatView(t *testing.T) {
	backend := &stubChatBackend{}
	widget := chat.NewWidget(backend, nil)
	m := newTestModel(t, widget)

	m, _ = press(t, m, tea.KeyCtrlL)
	require.Equal(t, chatView, m.currentView)
	assert.True(t, m.chatInput.Focused())
	assert.False(t, m.searchInput.Focused())
	assert.Contains(t, m.View(), "Admissions Assistant")

	m, cmd := press(t, m, tea.KeyCtrlS)
	m = runCmd(t, m, cmd)
	assert.Equal(t, chat.StatusConnected, widget.Snapshot().Status)

	// Blank input sends nothing.
	m, cmd = press(t, m, tea.KeyEnter)
	assert.Nil(t, cmd)

	m.chatInput.SetValue("Where is COEP?")
	m, cmd = press(t, m, tea.KeyEnter)
	require.NotNil(t, cmd)
	assert.Empty(t, m.chatInput.Value())
	m = runCmd(t, m, cmd)

	assert.Equal(t, []string{"Where is COEP?"}, backend.sent)
	require.Len(t, widget.Snapshot().Messages, 2)
	assert.Contains(t, m.viewport.View(), "Where is COEP?")
	assert.Contains(t, m.viewport.View(), "Pune")

	m, cmd = press(t, m, tea.KeyCtrlX)
	m = runCmd(t, m, cmd)
	assert.Empty(t, widget.Snapshot().Messages)

	m, _ = press(t, m, tea.KeyEsc)
	assert.Equal(t, compareView, m.currentView)
	assert.True(t, m.searchInput.Focused())
}

func TestLoadingText(t *testing.T) {
	assert.Equal(t, "searching colleges...", loadingText(compare.Loading{Initial: true}))
	assert.Equal(t, "loading branches, comparing...", loadingText(compare.Loading{Branches: true, Compare: true}))
}

func TestCollegeItem(t *testing.T) {
	item := collegeItem{college: compare.College{Code: "9999"}}
	assert.Equal(t, "College 9999", item.Title())
	assert.Equal(t, "", item.FilterValue())

	item.selected = 3
	assert.True(t, strings.HasPrefix(item.Title(), "[3] "))
}
