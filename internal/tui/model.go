// Package tui is the interactive question-answering session over the library.
package tui

import (
	"context"
	"fmt"
	"iter"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"bookrag/internal/domain"
)

// Searcher is the TUI-facing subset of the retrieval engine.
type Searcher interface {
	Process(ctx context.Context, query string) domain.QueryResult
	SearchByBook(ctx context.Context, title, query string, topK int) ([]domain.SearchResult, error)
	SearchByAuthor(ctx context.Context, author, query string, topK int) ([]domain.SearchResult, error)
	Statistics(ctx context.Context) (domain.LibraryStats, error)
}

// Answerer turns a processed query into an answer.
type Answerer interface {
	Respond(ctx context.Context, qr domain.QueryResult) (string, error)
	Stream(ctx context.Context, qr domain.QueryResult) iter.Seq2[string, error]
}

const (
	answerSources       = 3
	DefaultSummaryChars = 500
)

type view int

const (
	viewText view = iota
	viewAnswer
	viewResults
)

type (
	answerMsg struct {
		qr   domain.QueryResult
		text string
		err  error
	}
	resultsMsg struct {
		qr domain.QueryResult
	}
	statsMsg struct {
		stats domain.LibraryStats
		err   error
	}
	streamStartMsg struct {
		qr     domain.QueryResult
		stream *pulled
	}
	fragmentMsg struct {
		text string
		err  error
		done bool
	}
)

// pulled adapts a push stream to the one-message-per-fragment update loop.
type pulled struct {
	next func() (string, error, bool)
	stop func()
}

// Model is the Bubble Tea model for the interactive session.
type Model struct {
	ctx          context.Context
	searcher     Searcher
	answerer     Answerer
	summaryChars int

	input    textinput.Model
	viewport viewport.Model
	header   string
	status   string
	ready    bool
	busy     bool

	view      view
	text      string
	answer    strings.Builder
	qr        domain.QueryResult
	cursor    int
	lastQuery string
	stream    *pulled
}

// New creates a session model. summary is shown under the title.
func New(ctx context.Context, searcher Searcher, answerer Answerer, summary string, summaryChars int) *Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your library (help for commands)"
	ti.Focus()
	ti.CharLimit = 0
	if summaryChars <= 0 {
		summaryChars = DefaultSummaryChars
	}
	return &Model{
		ctx:          ctx,
		searcher:     searcher,
		answerer:     answerer,
		summaryChars: summaryChars,
		input:        ti,
		viewport:     viewport.New(0, 0),
		header:       summary,
		status:       "Ready. Type a question.",
		text:         helpText,
	}
}

// Init initializes the model (text input cursor blink).
func (m *Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and result events.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header + summary, status, input box, spacer
		vh := max(3, msg.Height-reserved)
		m.viewport.Width = max(20, msg.Width-4)
		m.viewport.Height = max(3, vh-rh)
		m.refresh()
		return m, nil

	case answerMsg:
		m.busy = false
		m.qr = msg.qr
		m.view = viewAnswer
		m.answer.Reset()
		m.answer.WriteString(msg.text)
		m.status = m.queryStatus(msg.qr)
		if msg.err != nil {
			m.status = "Generation failed: " + msg.err.Error()
		}
		m.refresh()
		return m, nil

	case resultsMsg:
		m.busy = false
		m.qr = msg.qr
		m.cursor = 0
		m.view = viewResults
		m.status = m.queryStatus(msg.qr)
		m.refresh()
		return m, nil

	case statsMsg:
		m.busy = false
		m.view = viewText
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.text = "Statistics unavailable."
		} else {
			m.status = "Library statistics"
			m.text = FormatStats(msg.stats)
		}
		m.refresh()
		return m, nil

	case streamStartMsg:
		m.qr = msg.qr
		m.view = viewAnswer
		m.answer.Reset()
		m.stream = msg.stream
		m.status = "Streaming answer..."
		m.refresh()
		return m, m.nextFragment()

	case fragmentMsg:
		if msg.err != nil {
			m.endStream()
			m.status = "Stream failed: " + msg.err.Error()
			m.refresh()
			return m, nil
		}
		if msg.done {
			m.endStream()
			m.status = m.queryStatus(m.qr)
			m.refresh()
			return m, nil
		}
		m.answer.WriteString(msg.text)
		m.refresh()
		m.viewport.GotoBottom()
		return m, m.nextFragment()

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			m.endStream()
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			if m.busy {
				return m, nil
			}
			cmd := m.run(Parse(m.input.Value()))
			m.input.Reset()
			return m, cmd
		case "down":
			if m.view == viewResults && len(m.qr.Results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.qr.Results)
				m.refresh()
				return m, nil
			}
		case "up":
			if m.view == viewResults && len(m.qr.Results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.qr.Results)) % len(m.qr.Results)
				m.refresh()
				return m, nil
			}
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// run starts the work for a command and returns the command producing its result.
func (m *Model) run(c Command) tea.Cmd {
	switch c.Kind {
	case KindEmpty:
		return nil
	case KindQuit:
		return tea.Quit
	case KindHelp:
		m.view, m.text, m.status = viewText, helpText, "Help"
		m.refresh()
		return nil
	case KindInvalid:
		m.status = "Invalid command. Scoped searches look like book:<title> - <question>."
		return nil
	}

	m.busy = true
	m.lastQuery = c.Query
	ctx := m.ctx
	switch c.Kind {
	case KindStats:
		m.status = "Computing statistics..."
		return func() tea.Msg {
			stats, err := m.searcher.Statistics(ctx)
			return statsMsg{stats: stats, err: err}
		}
	case KindSources:
		m.status = "Searching..."
		return func() tea.Msg {
			return resultsMsg{qr: m.searcher.Process(ctx, c.Query)}
		}
	case KindBook, KindAuthor:
		m.status = "Searching..."
		return func() tea.Msg {
			search := m.searcher.SearchByBook
			if c.Kind == KindAuthor {
				search = m.searcher.SearchByAuthor
			}
			results, err := search(ctx, c.Scope, c.Query, 0)
			return resultsMsg{qr: domain.QueryResult{
				Query:        c.Query,
				Results:      results,
				TotalResults: len(results),
				Err:          err,
			}}
		}
	case KindStream:
		m.status = "Searching..."
		return func() tea.Msg {
			qr := m.searcher.Process(ctx, c.Query)
			next, stop := iter.Pull2(m.answerer.Stream(ctx, qr))
			return streamStartMsg{qr: qr, stream: &pulled{next: next, stop: stop}}
		}
	default:
		m.status = "Thinking..."
		return func() tea.Msg {
			qr := m.searcher.Process(ctx, c.Query)
			text, err := m.answerer.Respond(ctx, qr)
			return answerMsg{qr: qr, text: text, err: err}
		}
	}
}

func (m *Model) nextFragment() tea.Cmd {
	s := m.stream
	if s == nil {
		return nil
	}
	return func() tea.Msg {
		text, err, ok := s.next()
		return fragmentMsg{text: text, err: err, done: !ok}
	}
}

func (m *Model) endStream() {
	if m.stream != nil {
		m.stream.stop()
		m.stream = nil
	}
	m.busy = false
}

func (m *Model) queryStatus(qr domain.QueryResult) string {
	if qr.Unavailable() {
		return "Search unavailable: " + qr.Err.Error()
	}
	return fmt.Sprintf("%d results for %q in %s", qr.TotalResults, qr.Query, qr.ProcessingTime.Round(1e6))
}

// View renders the layout.
func (m *Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Book Library Assistant")
	summary := dimStyle.Render(m.header)
	results := resultBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	content := lipgloss.NewStyle().Width(m.viewport.Width).Render(m.content())
	m.viewport.SetContent(content)
}

func (m *Model) content() string {
	switch m.view {
	case viewAnswer:
		return renderAnswer(m.answer.String(), m.qr)
	case viewResults:
		return m.renderCurrentResult()
	default:
		return m.text
	}
}

func renderAnswer(text string, qr domain.QueryResult) string {
	var b strings.Builder
	b.WriteString(text)
	if len(qr.Results) == 0 {
		return b.String()
	}
	b.WriteString("\n\n")
	b.WriteString(titleStyle.Render("Sources"))
	for i, r := range qr.Results[:min(answerSources, len(qr.Results))] {
		fmt.Fprintf(&b, "\n%d. %s by %s, p.%d (score %.3f)", i+1, r.Title, r.Author, r.PageNumber, r.Score)
	}
	return b.String()
}

func (m *Model) renderCurrentResult() string {
	if m.qr.Unavailable() {
		return "Search is unavailable right now."
	}
	if len(m.qr.Results) == 0 {
		return "No relevant passages found."
	}
	r := m.qr.Results[m.cursor]
	title := titleStyle.Render(fmt.Sprintf("Result %d/%d  score=%.3f", m.cursor+1, len(m.qr.Results), r.Score))
	source := fmt.Sprintf("%s by %s, p.%d", r.Title, r.Author, r.PageNumber)
	body := highlightBestSentence(r.Text, m.lastQuery)
	summary := dimStyle.Render("Summary: " + m.qr.ContextText(m.summaryChars))
	return title + "\n" + source + "\n\n" + body + "\n\n" + summary
}

// FormatStats renders library statistics as plain lines.
func FormatStats(s domain.LibraryStats) string {
	lines := []string{
		fmt.Sprintf("Chunks:  %d", s.TotalChunks),
		fmt.Sprintf("Books:   %d", s.UniqueBooks),
		fmt.Sprintf("Authors: %d", s.UniqueAuthors),
		fmt.Sprintf("Vectors: %d", s.VectorCount),
		fmt.Sprintf("Status:  %s", s.CollectionStatus),
	}
	if !s.Complete {
		lines = append(lines, "(enumeration stopped early; counts are lower bounds)")
	}
	return strings.Join(lines, "\n")
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// highlightBestSentence emphasizes the sentence sharing the most words with query.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx, bestScore := 0, -1
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore, bestIdx = score, i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sent = highlightStyle.Render(sent)
		}
		sentences[i] = sent
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	seen := map[string]struct{}{}
	for _, t := range unicodeWordRe.FindAllString(strings.ToLower(sentence), -1) {
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

// Run starts the full-screen session and blocks until the user quits or ctx ends.
func Run(ctx context.Context, m *Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
