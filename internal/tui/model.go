package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"

	"prdraft/internal/draft"
	"prdraft/internal/panels"
	"prdraft/internal/reducers"
	"prdraft/internal/store"
)

// payloadMsg is one message from the host.
type payloadMsg []byte

// closedMsg reports that the channel to the host is gone.
type closedMsg struct{ err error }

type sentMsg struct{ err error }

// Sender delivers an action to the host.
type Sender func(a store.Action) error

type model struct {
	key  string
	kind string
	send Sender

	width  int
	height int
	ready  bool

	vp      viewport.Model
	preview panels.PreviewState
	raw     json.RawMessage
	hasData bool

	status string
	err    error
	closed bool
}

func newModel(kind, key string, send Sender) model {
	return model{key: key, kind: kind, send: send, status: "connecting…"}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		h := m.bodyHeight()
		if !m.ready {
			m.vp = viewport.New(msg.Width, h)
			m.ready = true
		} else {
			m.vp.Width, m.vp.Height = msg.Width, h
		}
		m.refreshBody()
		return m, nil

	case payloadMsg:
		m.hasData = true
		m.err = nil
		if m.kind == panels.KindPreview {
			var p panels.PreviewState
			if err := json.Unmarshal(msg, &p); err != nil {
				m.err = fmt.Errorf("decode: %w", err)
				return m, nil
			}
			m.preview = p
		} else {
			m.raw = json.RawMessage(msg)
		}
		m.status = ""
		m.refreshBody()
		return m, nil

	case closedMsg:
		m.closed = true
		m.err = msg.err
		m.status = "disconnected"
		return m, nil

	case sentMsg:
		if msg.err != nil {
			m.err = msg.err
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "c":
			if m.kind != panels.KindPreview || m.closed || m.preview.NewPR.Status == reducers.StatusRequested {
				return m, nil
			}
			return m, m.dispatch(reducers.CreatePRAction(m.key))
		case "x":
			if m.kind != panels.KindPreview || m.closed {
				return m, nil
			}
			return m, m.dispatch(store.NewAction(reducers.ResetNewPR, nil))
		}
	}

	var cmd tea.Cmd
	if m.ready {
		m.vp, cmd = m.vp.Update(msg)
	}
	return m, cmd
}

func (m model) dispatch(a store.Action) tea.Cmd {
	send := m.send
	return func() tea.Msg {
		if send == nil {
			return sentMsg{}
		}
		return sentMsg{err: send(a)}
	}
}

const headerLines = 4

func (m model) bodyHeight() int {
	h := m.height - headerLines - 2
	if h < 1 {
		h = 1
	}
	return h
}

func (m *model) refreshBody() {
	if !m.ready {
		return
	}
	m.vp.SetContent(m.body())
}

func (m model) body() string {
	if !m.hasData {
		return mutedStyle.Render("waiting for the host…")
	}
	if m.kind != panels.KindPreview {
		var v any
		if err := json.Unmarshal(m.raw, &v); err != nil {
			return string(m.raw)
		}
		b, _ := json.MarshalIndent(v, "", "  ")
		return string(b)
	}
	if m.preview.Draft == nil {
		return mutedStyle.Render("No draft loaded for " + m.key)
	}
	body := renderMarkdown(m.preview.Draft.Content, m.width-2)
	if body == "" {
		return mutedStyle.Render("(no description)")
	}
	return body
}

func (m model) header() []string {
	if m.kind != panels.KindPreview {
		return []string{titleStyle.Render("State (" + m.key + ")"), "", "", ""}
	}
	d := m.preview.Draft
	if d == nil {
		return []string{titleStyle.Render("PR Preview"), mutedStyle.Render(m.key), "", ""}
	}
	title := d.Title
	if strings.TrimSpace(title) == "" {
		title = "(untitled)"
	}
	head := draft.Str(d.Head)
	if head == "" {
		head = draft.Str(d.Branch)
	}
	branches := fmt.Sprintf("%s → %s", orQ(head), orQ(draft.Str(d.Base)))
	repo := ""
	if name := draft.Str(d.Remote); name != "" {
		repo = name
		if r, ok := m.preview.GitHubRemotes.Find(name); ok {
			repo = r.Owner + "/" + r.Repo
		}
	}
	return []string{titleStyle.Render(title), accentStyle.Render(branches), mutedStyle.Render(repo), ""}
}

func orQ(s string) string {
	if s == "" {
		return "?"
	}
	return s
}

func (m model) footer() string {
	var parts []string
	if m.kind == panels.KindPreview {
		pr := m.preview.NewPR
		switch pr.Status {
		case reducers.StatusRequested:
			parts = append(parts, accentStyle.Render("creating pull request…"))
		case reducers.StatusCreated:
			parts = append(parts, okStyle.Render("created "+pr.URL))
		case reducers.StatusFailed:
			parts = append(parts, errorStyle.Render("failed: "+pr.Error))
		}
	}
	if m.status != "" {
		parts = append(parts, mutedStyle.Render(m.status))
	}
	if m.err != nil {
		parts = append(parts, errorStyle.Render(m.err.Error()))
	}
	help := "↑/↓ scroll  q quit"
	if m.kind == panels.KindPreview {
		help = "c create PR  x reset  " + help
	}
	parts = append(parts, mutedStyle.Render(help))
	return strings.Join(parts, "  ")
}

func (m model) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	lines := m.header()
	for i, ln := range lines {
		lines[i] = xansi.Truncate(ln, width, "…")
	}
	rule := ruleStyle.Render(strings.Repeat("─", width))
	body := m.body()
	if m.ready {
		body = m.vp.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		strings.Join(lines, "\n"),
		rule,
		body,
		rule,
		xansi.Truncate(m.footer(), width, "…"),
	)
}
