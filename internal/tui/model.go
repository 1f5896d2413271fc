package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"newsrec/internal/client"
	"newsrec/internal/domain"
)

// API is the TUI-facing subset of the HTTP client.
type API interface {
	Articles(ctx context.Context) ([]client.Article, error)
	Recommend(ctx context.Context, articleIdx int) ([]domain.Recommendation, error)
	Like(ctx context.Context, user string, articleIdx int) error
}

type focus int

const (
	focusList focus = iota
	focusInput
)

type articlesMsg struct {
	articles []client.Article
	err      error
}

type recommendMsg struct {
	idx  int
	recs []domain.Recommendation
	err  error
}

type likeMsg struct {
	idx int
	err error
}

// Model is the Bubble Tea model for the terminal client.
type Model struct {
	api      API
	user     string
	timeout  time.Duration
	input    textinput.Model
	viewport viewport.Model

	articles []client.Article
	visible  []int // corpus indices that pass the filter
	filter   string
	cursor   int

	recs    []domain.Recommendation
	recsFor int // -1 when the panel is closed

	focus  focus
	status string
	ready  bool
	width  int
}

// New creates a new TUI model. Articles are fetched by Init.
func New(api API, user string, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "Filter by title or summary, Enter to apply"
	ti.CharLimit = 0
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return Model{
		api:      api,
		user:     user,
		timeout:  timeout,
		input:    ti,
		viewport: viewport.New(0, 0),
		recsFor:  -1,
		status:   "Loading articles...",
	}
}

// Init starts the first article fetch.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadArticles())
}

// Update handles key, window and API result messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		_, lh := listBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 1 + 1 + ih + 1 // header, count, input box, status
		vh := msg.Height - reserved - lh
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh)
		m.refresh()
		return m, nil

	case articlesMsg:
		if msg.err != nil {
			m.status = "Failed to load articles: " + msg.err.Error()
			return m, nil
		}
		m.articles = msg.articles
		m.applyFilter()
		m.status = fmt.Sprintf("%d articles loaded", len(m.articles))
		m.refresh()
		return m, nil

	case recommendMsg:
		if msg.err != nil {
			m.status = "Recommend failed: " + msg.err.Error()
			return m, nil
		}
		m.recs = msg.recs
		m.recsFor = msg.idx
		m.status = fmt.Sprintf("%d recommendations for #%d", len(msg.recs), msg.idx)
		m.refresh()
		return m, nil

	case likeMsg:
		if msg.err != nil {
			m.status = "Feedback not saved: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("Thanks, feedback saved for #%d", msg.idx)
		}
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyTab {
			m.toggleFocus()
			return m, nil
		}
		if m.focus == focusInput {
			return m.updateInput(msg)
		}
		return m.updateList(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.filter = strings.TrimSpace(m.input.Value())
		if m.filter == "" {
			// an empty filter reloads, as the refresh key does
			m.applyFilter()
			m.status = "Reloading articles..."
			m.refresh()
			return m, m.loadArticles()
		}
		m.applyFilter()
		m.status = fmt.Sprintf("%d of %d articles match %q", len(m.visible), len(m.articles), m.filter)
		m.refresh()
		return m, nil
	case tea.KeyEsc:
		m.toggleFocus()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "/":
		m.toggleFocus()
		return m, nil
	case "down", "j":
		if len(m.visible) > 0 {
			m.cursor = (m.cursor + 1) % len(m.visible)
			m.refresh()
		}
		return m, nil
	case "up", "k":
		if len(m.visible) > 0 {
			m.cursor = (m.cursor - 1 + len(m.visible)) % len(m.visible)
			m.refresh()
		}
		return m, nil
	case "s", "enter":
		if idx, ok := m.selected(); ok {
			m.status = "Fetching recommendations..."
			return m, m.recommend(idx)
		}
		return m, nil
	case "d":
		if len(m.articles) > 0 {
			return m, m.recommend(0)
		}
		return m, nil
	case "l":
		if idx, ok := m.selected(); ok {
			return m, m.like(idx)
		}
		return m, nil
	case "r":
		m.status = "Reloading articles..."
		return m, m.loadArticles()
	case "esc":
		m.recs = nil
		m.recsFor = -1
		m.refresh()
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) toggleFocus() {
	if m.focus == focusInput {
		m.focus = focusList
		m.input.Blur()
		return
	}
	m.focus = focusInput
	m.input.Focus()
}

// selected returns the corpus index under the cursor.
func (m Model) selected() (int, bool) {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return 0, false
	}
	return m.visible[m.cursor], true
}

func (m *Model) applyFilter() {
	q := strings.ToLower(m.filter)
	visible := make([]int, 0, len(m.articles))
	for i, a := range m.articles {
		if q == "" || strings.Contains(strings.ToLower(a.Title+" "+a.Summary), q) {
			visible = append(visible, i)
		}
	}
	m.visible = visible
	if m.cursor >= len(m.visible) {
		m.cursor = 0
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderBody())
}

func (m Model) loadArticles() tea.Cmd {
	api, timeout := m.api, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		articles, err := api.Articles(ctx)
		return articlesMsg{articles: articles, err: err}
	}
}

func (m Model) recommend(idx int) tea.Cmd {
	api, timeout := m.api, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		recs, err := api.Recommend(ctx, idx)
		return recommendMsg{idx: idx, recs: recs, err: err}
	}
}

func (m Model) like(idx int) tea.Cmd {
	api, user, timeout := m.api, m.user, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return likeMsg{idx: idx, err: api.Like(ctx, user, idx)}
	}
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("News Recommender")
	count := mutedStyle.Render(fmt.Sprintf("%d articles shown  tab: focus  s: similar  l: like  r: refresh  esc: close  q: quit", len(m.visible)))
	body := listBoxStyle.Render(m.viewport.View())
	inputStyle := inputBoxStyle
	if m.focus == focusInput {
		inputStyle = inputStyle.BorderForeground(lipgloss.Color("12"))
	}
	input := inputStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + count + "\n" + body + "\n" + input + "\n" + status
}

func (m Model) renderBody() string {
	if len(m.articles) == 0 {
		return "No articles yet."
	}
	var b strings.Builder
	if len(m.visible) == 0 {
		b.WriteString(mutedStyle.Render("No articles match."))
	}
	for pos, idx := range m.visible {
		a := m.articles[idx]
		line := fmt.Sprintf("%4d  %s", idx, titleOr(a.Title))
		if pos == m.cursor {
			line = cursorStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteByte('\n')
		if pos == m.cursor {
			meta := strings.TrimSpace(strings.Join([]string{a.Source, a.URL}, "  "))
			b.WriteString("        " + mutedStyle.Render(meta) + "\n")
			if a.Summary != "" {
				b.WriteString("        " + highlightTerms(a.Summary, m.filter) + "\n")
			}
		}
	}
	if m.recsFor >= 0 {
		b.WriteString("\n")
		title := fmt.Sprintf("#%d", m.recsFor)
		if m.recsFor < len(m.articles) {
			title = titleOr(m.articles[m.recsFor].Title)
		}
		b.WriteString(panelTitleStyle.Render("Recommendations for: " + title))
		b.WriteByte('\n')
		if len(m.recs) == 0 {
			b.WriteString(mutedStyle.Render("No recommendations."))
		}
		for i, r := range m.recs {
			fmt.Fprintf(&b, "%2d. %s\n    %s\n", i+1, titleOr(r.Title), mutedStyle.Render(r.URL))
		}
	}
	return b.String()
}

func titleOr(t string) string {
	if t == "" {
		return "Untitled"
	}
	return t
}

var (
	headerStyle     = lipgloss.NewStyle().Bold(true)
	listBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	mutedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	cursorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	panelTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	highlightStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe   = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
)

// highlightTerms emphasizes words of text that also occur in query.
func highlightTerms(text, query string) string {
	terms := toTokenSet(query)
	if len(terms) == 0 {
		return text
	}
	return unicodeWordRe.ReplaceAllStringFunc(text, func(w string) string {
		if _, ok := terms[strings.ToLower(w)]; ok {
			return highlightStyle.Render(w)
		}
		return w
	})
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}
