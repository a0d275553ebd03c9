package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docqa/internal/domain"
	"docqa/internal/service"
	"docqa/internal/textutil"
)

// QueryPort is the TUI-facing subset of the pipeline.
type QueryPort interface {
	Query(ctx context.Context, text string, topK int) (*service.QueryResult, error)
}

// Model is the Bubble Tea model for the query console.
type Model struct {
	service   QueryPort
	topK      int
	timeout   time.Duration
	input     textinput.Model
	viewport  viewport.Model
	answer    string
	sources   []domain.Record
	header    string
	status    string
	cursor    int
	ready     bool
	busy      bool
	lastQuery string
}

// queryResultMsg carries a finished query back into Update.
type queryResultMsg struct {
	query string
	res   *service.QueryResult
	err   error
}

// New creates a new TUI model. header is shown above the answer, typically
// the index size.
func New(service QueryPort, topK int, header string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		service:  service,
		topK:     topK,
		timeout:  2 * time.Minute,
		input:    ti,
		viewport: vp,
		header:   header,
		status:   "Loaded. Type a question.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around the source and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + answerLines + 1 + qh + 1 // header, answer, status, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrentSource())
		return m, nil
	case queryResultMsg:
		m.busy = false
		return m.applyResult(msg), nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			if m.busy {
				return m, nil
			}
			q := strings.TrimSpace(m.input.Value())
			if q != "" {
				m.busy = true
				m.status = fmt.Sprintf("Searching for %q...", q)
				return m, m.queryCmd(q)
			}
		case "down":
			if len(m.sources) > 0 {
				m.cursor = (m.cursor + 1) % len(m.sources)
				m.viewport.SetContent(m.renderCurrentSource())
				return m, nil
			}
		case "up":
			if len(m.sources) > 0 {
				m.cursor = (m.cursor - 1 + len(m.sources)) % len(m.sources)
				m.viewport.SetContent(m.renderCurrentSource())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// queryCmd runs the query off the event loop and reports back with a
// queryResultMsg.
func (m Model) queryCmd(q string) tea.Cmd {
	port, topK, timeout := m.service, m.topK, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		res, err := port.Query(ctx, q, topK)
		return queryResultMsg{query: q, res: res, err: err}
	}
}

func (m Model) applyResult(msg queryResultMsg) Model {
	res, q := msg.res, msg.query
	if msg.err != nil {
		m.status = "Error: " + msg.err.Error()
		m.answer = ""
		m.sources = nil
	} else {
		m.status = fmt.Sprintf("%d sources for %q", len(res.Sources), q)
		m.answer = res.Answer
		m.sources = res.Sources
		m.cursor = 0
		m.lastQuery = q
	}
	m.viewport.SetContent(m.renderCurrentSource())
	return m
}

// View renders the console layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	title := lipgloss.NewStyle().Bold(true).Render("docqa")
	header := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.header)
	answer := answerStyle.Width(max(20, m.viewport.Width-2)).Render(m.answer)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	sources := resultBoxStyle.Render(m.viewport.View())
	return title + "  " + header + "\n" + answer + "\n" + sources + "\n" + input + "\n" + status
}

func (m Model) renderCurrentSource() string {
	if len(m.sources) == 0 {
		return "No sources yet."
	}
	r := m.sources[m.cursor]
	title := fmt.Sprintf("Source %d/%d", m.cursor+1, len(m.sources))
	if r.DocumentID != "" {
		title += "  doc=" + r.DocumentID
	}
	if r.Page != nil {
		title += fmt.Sprintf("  page=%d", *r.Page)
	}
	return title + "\n\n" + highlightBestSentence(r.Text, m.lastQuery)
}

const answerLines = 4

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	answerStyle    = lipgloss.NewStyle().MaxHeight(answerLines).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := textutil.Sentences(text)
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	sentences[bestIdx] = highlightStyle.Render(sentences[bestIdx])
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := textutil.Tokens(s)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	seen := map[string]struct{}{}
	for _, t := range textutil.Tokens(sentence) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
