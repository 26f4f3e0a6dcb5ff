package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"cetcompare/internal/chat"
	"cetcompare/internal/compare"
)

type view int

const (
	compareView view = iota
	chatView
)

type model struct {
	ctx     context.Context
	session *compare.Session
	widget  *chat.Widget

	currentView view
	searchInput textinput.Model
	chatInput   textinput.Model
	list        list.Model
	viewport    viewport.Model
	spinner     spinner.Model
	width       int
	height      int
	notice      string
	chatErr     error
}

type collegeItem struct {
	college  compare.College
	selected int
}

func (i collegeItem) Title() string {
	if i.selected > 0 {
		return fmt.Sprintf("[%d] %s", i.selected, i.college.DisplayName())
	}
	return i.college.DisplayName()
}

func (i collegeItem) Description() string {
	return fmt.Sprintf("%s · %s · %s", i.college.Code, i.college.City, i.college.Type)
}

func (i collegeItem) FilterValue() string {
	return i.college.Name
}

// sessionMsg reports that a session task finished and state may have changed.
type sessionMsg struct{}

type chatReplyMsg struct {
	err error
}

type chatStatusMsg struct {
	status chat.Status
}

type chatClearedMsg struct {
	err error
}

// runTask runs a session task off the update loop.
func runTask(ctx context.Context, t compare.Task) tea.Cmd {
	if t == nil {
		return nil
	}
	return func() tea.Msg {
		t(ctx)
		return sessionMsg{}
	}
}

func checkChatStatus(ctx context.Context, w *chat.Widget) tea.Cmd {
	return func() tea.Msg {
		return chatStatusMsg{status: w.CheckStatus(ctx)}
	}
}

func sendChat(ctx context.Context, w *chat.Widget, text string) tea.Cmd {
	return func() tea.Msg {
		_, err := w.Send(ctx, text)
		return chatReplyMsg{err: err}
	}
}

func clearChat(ctx context.Context, w *chat.Widget) tea.Cmd {
	return func() tea.Msg {
		return chatClearedMsg{err: w.Clear(ctx)}
	}
}

func initialModel(ctx context.Context, session *compare.Session, widget *chat.Widget) model {
	ti := textinput.New()
	ti.Placeholder = "Search colleges by name or city..."
	ti.Focus()
	ti.CharLimit = 100
	ti.Width = 60

	ci := textinput.New()
	ci.Placeholder = "Ask about cutoffs, colleges or admissions..."
	ci.CharLimit = 500
	ci.Width = 70

	delegate := list.NewDefaultDelegate()
	delegate.SetHeight(2)

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "CET College Compare"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(false)
	l.Styles.Title = lipgloss.NewStyle().
		Background(lipgloss.Color("62")).
		Foreground(lipgloss.Color("230")).
		Padding(0, 1)

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return model{
		ctx:         ctx,
		session:     session,
		widget:      widget,
		currentView: compareView,
		searchInput: ti,
		chatInput:   ci,
		list:        l,
		viewport:    vp,
		spinner:     sp,
	}
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick, runTask(m.ctx, m.session.Init())}
	if m.widget != nil {
		cmds = append(cmds, checkChatStatus(m.ctx, m.widget))
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width/2-2, msg.Height/2)
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height/2 - 4
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		if m.currentView == chatView {
			return m.handleChatKeys(msg)
		}
		return m.handleCompareKeys(msg)

	case sessionMsg:
		st := m.session.Snapshot()
		m.setCollegeItems(st)
		m.refreshViewport()
		if logger != nil && st.Error != "" {
			logger.Warn("Comparison screen error", zap.String("error", st.Error))
		}
		return m, nil

	case chatStatusMsg:
		m.refreshViewport()
		return m, nil

	case chatReplyMsg:
		m.chatErr = msg.err
		m.refreshViewport()
		m.viewport.GotoBottom()
		return m, nil

	case chatClearedMsg:
		m.chatErr = msg.err
		m.refreshViewport()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *model) setCollegeItems(st compare.State) {
	position := map[string]int{}
	for i, c := range st.Selected {
		position[c.Code] = i + 1
	}
	items := make([]list.Item, len(st.Colleges))
	for i, c := range st.Colleges {
		items[i] = collegeItem{college: c, selected: position[c.Code]}
	}
	m.list.SetItems(items)
}

// refreshViewport re-renders the scrollable area for the current view.
func (m *model) refreshViewport() {
	width := m.width
	if width <= 0 {
		width = 80
	}
	if m.currentView == chatView {
		m.viewport.SetContent(m.chatTranscript(width))
		return
	}
	st := m.session.Snapshot()
	if st.Result == nil {
		m.viewport.SetContent("")
		return
	}
	m.viewport.SetContent(RenderComparison(st.Result, st.SelectedCodes(), width-2))
}

func (m model) handleCompareKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyEsc:
		st := m.session.Snapshot()
		if st.Message != "" || st.Error != "" || m.notice != "" {
			m.session.Dismiss()
			m.notice = ""
			return m, nil
		}
		return m, tea.Quit

	case tea.KeyEnter:
		if m.searchInput.Focused() {
			if m.session.Snapshot().Loading.Search {
				return m, nil
			}
			return m, runTask(m.ctx, m.session.Search(m.searchInput.Value()))
		}
		item, ok := m.list.SelectedItem().(collegeItem)
		if !ok {
			return m, nil
		}
		if item.selected > 0 {
			return m.afterSelectionChange(m.session.RemoveCollege(item.college.Code))
		}
		return m.afterSelectionChange(m.session.SelectCollege(item.college))

	case tea.KeyTab:
		if m.searchInput.Focused() {
			m.searchInput.Blur()
		} else {
			m.searchInput.Focus()
		}
		return m, textinput.Blink

	case tea.KeyCtrlB:
		m.session.CycleBranch()
		m.refreshViewport()
		return m, nil

	case tea.KeyCtrlG:
		m.session.SetCategory(m.session.Snapshot().Category.Next())
		m.refreshViewport()
		return m, nil

	case tea.KeyCtrlT:
		metric := compare.MetricRank
		if m.session.Snapshot().Metric == compare.MetricRank {
			metric = compare.MetricPercentile
		}
		m.session.SetMetric(metric)
		m.refreshViewport()
		return m, nil

	case tea.KeyCtrlR:
		if m.session.Snapshot().Loading.Compare {
			return m, nil
		}
		return m, runTask(m.ctx, m.session.Compare())

	case tea.KeyCtrlY:
		if item, ok := m.list.SelectedItem().(collegeItem); ok {
			if err := clipboard.WriteAll(item.college.Code); err != nil {
				m.notice = "Clipboard unavailable"
			} else {
				m.notice = fmt.Sprintf("Copied %s", item.college.Code)
			}
		}
		return m, nil

	case tea.KeyCtrlL:
		if m.widget == nil {
			return m, nil
		}
		m.currentView = chatView
		m.searchInput.Blur()
		m.chatInput.Focus()
		m.refreshViewport()
		return m, textinput.Blink

	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	if m.searchInput.Focused() {
		m.searchInput, cmd = m.searchInput.Update(msg)
	} else {
		m.list, cmd = m.list.Update(msg)
	}
	return m, cmd
}

func (m model) afterSelectionChange(t compare.Task) (tea.Model, tea.Cmd) {
	m.setCollegeItems(m.session.Snapshot())
	m.refreshViewport()
	return m, runTask(m.ctx, t)
}

func (m model) handleChatKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyEsc, tea.KeyCtrlL:
		m.currentView = compareView
		m.chatInput.Blur()
		m.searchInput.Focus()
		m.refreshViewport()
		return m, textinput.Blink

	case tea.KeyEnter:
		text := strings.TrimSpace(m.chatInput.Value())
		if text == "" || m.widget.Snapshot().Sending {
			return m, nil
		}
		m.chatInput.SetValue("")
		m.chatErr = nil
		cmd := sendChat(m.ctx, m.widget, text)
		return m, cmd

	case tea.KeyCtrlX:
		return m, clearChat(m.ctx, m.widget)

	case tea.KeyCtrlS:
		return m, checkChatStatus(m.ctx, m.widget)

	case tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.chatInput, cmd = m.chatInput.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if m.currentView == chatView {
		return m.chatViewRender()
	}
	return m.compareViewRender()
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62")).MarginBottom(1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	inputStyle  = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

func (m model) compareViewRender() string {
	st := m.session.Snapshot()
	var b strings.Builder

	b.WriteString(headerStyle.Render("🎓 Compare CET Cutoffs"))
	b.WriteString("\n")
	b.WriteString(inputStyle.Render(m.searchInput.View()))
	b.WriteString("\n")

	side := m.selectionPanel(st)
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, m.list.View(), "  ", side))
	b.WriteString("\n")

	if st.Loading.Any() {
		b.WriteString(m.spinner.View() + " " + mutedStyle.Render(loadingText(st.Loading)) + "\n")
	}
	if st.Message != "" {
		b.WriteString(noticeStyle.Render(st.Message) + "\n")
	}
	if st.Error != "" {
		b.WriteString(errorStyle.Render("Error: "+st.Error) + "\n")
	}
	if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice) + "\n")
	}

	if st.Result != nil {
		b.WriteString(m.viewport.View())
		b.WriteString("\n")
	}

	help := "Enter: Search/Select | Tab: Switch focus | Ctrl+B: Branch | Ctrl+G: Category | Ctrl+T: Metric | Ctrl+R: Compare | Ctrl+Y: Copy code | Ctrl+L: Chat | Esc: Quit"
	b.WriteString(mutedStyle.Render(help))
	return b.String()
}

func (m model) selectionPanel(st compare.State) string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("Selected (%d/%d)", len(st.Selected), compare.MaxColleges)))
	b.WriteString("\n")
	if len(st.Selected) == 0 {
		b.WriteString(mutedStyle.Render("Pick 2 or 3 colleges from the list"))
		b.WriteString("\n")
	}
	for i, c := range st.Selected {
		dot := slotStyle(i).Render(string(markerRune))
		b.WriteString(fmt.Sprintf("%s %s\n", dot, truncate(c.DisplayName(), 36)))
	}
	b.WriteString("\n")

	branch := mutedStyle.Render("none")
	if br, ok := st.Branch(); ok {
		branch = br.DisplayName()
	} else if len(st.Selected) < compare.MinColleges {
		branch = mutedStyle.Render("select at least 2 colleges")
	}
	b.WriteString(fmt.Sprintf("Branch:   %s (%d available)\n", branch, len(st.Branches)))
	b.WriteString(fmt.Sprintf("Category: %s\n", st.Category))
	b.WriteString(fmt.Sprintf("Metric:   %s\n", st.Metric.Label()))

	if m.widget != nil {
		cs := m.widget.Snapshot()
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render("Assistant: " + cs.Status.Label()))
	}
	return b.String()
}

func loadingText(l compare.Loading) string {
	var parts []string
	if l.Initial || l.Search {
		parts = append(parts, "searching colleges")
	}
	if l.Branches {
		parts = append(parts, "loading branches")
	}
	if l.Compare {
		parts = append(parts, "comparing")
	}
	return strings.Join(parts, ", ") + "..."
}

func (m model) chatTranscript(width int) string {
	if m.widget == nil {
		return ""
	}
	st := m.widget.Snapshot()
	if len(st.Messages) == 0 {
		return mutedStyle.Render("Ask the admissions assistant anything about Maharashtra CET colleges.")
	}

	userStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	botStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("201"))

	var b strings.Builder
	for _, msg := range st.Messages {
		if msg.Role == chat.RoleUser {
			b.WriteString(userStyle.Render("You") + mutedStyle.Render(" "+msg.At.Format("15:04")) + "\n")
			b.WriteString(msg.Text + "\n\n")
			continue
		}
		b.WriteString(botStyle.Render("Assistant") + mutedStyle.Render(" "+msg.At.Format("15:04")) + "\n")
		if msg.Failed {
			b.WriteString(errorStyle.Render(msg.Text) + "\n\n")
			continue
		}
		rendered, err := renderMarkdown(msg.Text, width)
		if err != nil {
			rendered = msg.Text + "\n"
		}
		b.WriteString(rendered + "\n")
	}
	if st.Sending {
		b.WriteString(mutedStyle.Render("Assistant is typing..."))
	}
	return b.String()
}

func (m model) chatViewRender() string {
	st := m.widget.Snapshot()
	var b strings.Builder

	status := st.Status.Label()
	if st.Service != "" {
		status += " · " + st.Service
	}
	b.WriteString(headerStyle.Render("💬 Admissions Assistant") + "  " + mutedStyle.Render(status))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if st.Sending {
		b.WriteString(m.spinner.View() + " ")
	}
	b.WriteString(inputStyle.Render(m.chatInput.View()))
	b.WriteString("\n")
	if m.chatErr != nil && !strings.Contains(m.chatErr.Error(), chat.ErrEmptyMessage.Error()) {
		b.WriteString(errorStyle.Render(m.chatErr.Error()) + "\n")
	}
	b.WriteString(mutedStyle.Render("Enter: Send | Ctrl+X: Clear | Ctrl+S: Check status | Esc: Back | Ctrl+C: Quit"))
	return b.String()
}
