package statustui

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/azure/walinuxagent-go/internal/paths"
)

const (
	defaultRefreshInterval = 5 * time.Second
	listPaneWidth          = 26
)

// viewMode controls what the right panel displays.
type viewMode int

const (
	viewDetail viewMode = iota // handler state/last status/heartbeat summary
	viewLog                    // CommandExecution.log tail
)

// Config holds configuration for the TUI.
type Config struct {
	Paths           paths.Paths
	RefreshInterval time.Duration
}

// Model is the bubbletea model for the extension status monitor.
type Model struct {
	paths           paths.Paths
	rows            []ExtensionRow
	selected        int
	lastUpdate      time.Time
	refreshInterval time.Duration
	err             error
	width           int
	height          int
	detailViewport  viewport.Model
	viewMode        viewMode
	filterQuery     string
	filtering       bool
	ready           bool
}

type refreshMsg time.Time
type scanMsg []ExtensionRow

// statusPalette bundles the styles and state glyphs used to render the
// extension list and its panes. Building it from a small color table keeps
// the render code free of repeated lipgloss.NewStyle() chains.
type statusPalette struct {
	heading  lipgloss.Style
	current  lipgloss.Style
	muted    lipgloss.Style
	alert    lipgloss.Style
	frame    lipgloss.Style
	glyphFor map[string]string
}

func newStatusPalette() statusPalette {
	const (
		accent = lipgloss.Color("12")
		bright = lipgloss.Color("15")
		faint  = lipgloss.Color("8")
		ok     = lipgloss.Color("10")
		bad    = lipgloss.Color("9")
		warn   = lipgloss.Color("11")
	)
	pal := statusPalette{
		heading: lipgloss.NewStyle().Bold(true).Foreground(accent),
		current: lipgloss.NewStyle().Bold(true).Foreground(bright),
		muted:   lipgloss.NewStyle().Foreground(faint),
		alert:   lipgloss.NewStyle().Foreground(bad),
		frame:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(faint),
	}
	pal.glyphFor = map[string]string{
		"enabled":     lipgloss.NewStyle().Foreground(ok).Render("●"),
		"uninstalled": lipgloss.NewStyle().Foreground(bad).Render("✕"),
		"":            lipgloss.NewStyle().Foreground(warn).Render("○"),
	}
	return pal
}

// glyph returns the indicator glyph for a handler state, falling back to
// the pending marker for anything not explicitly mapped.
func (p statusPalette) glyph(state string) string {
	if g, ok := p.glyphFor[state]; ok {
		return g
	}
	return p.glyphFor[""]
}

// New creates a new TUI model.
func New(cfg Config) Model {
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = defaultRefreshInterval
	}
	vp := viewport.New(0, 0)
	return Model{
		paths:           cfg.Paths,
		refreshInterval: cfg.RefreshInterval,
		detailViewport:  vp,
		viewMode:        viewDetail,
	}
}

// Run starts the bubbletea program.
func Run(cfg Config) error {
	m := New(cfg)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(scan(m.paths), scheduleRescan(m.refreshInterval))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.filtering {
			return m.handleFilterInput(msg)
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
				m.updateViewportContent()
			}
		case "down", "j":
			if m.selected < len(m.rows)-1 {
				m.selected++
				m.updateViewportContent()
			}
		case "r":
			cmds = append(cmds, scan(m.paths))
		case "l":
			if m.viewMode == viewDetail {
				m.viewMode = viewLog
			} else {
				m.viewMode = viewDetail
			}
			m.updateViewportContent()
		case "f":
			m.filtering = true
			m.filterQuery = ""
		case "esc":
			m.filterQuery = ""
			m.updateViewportContent()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.detailViewport.Width = msg.Width - listPaneWidth - 3
		m.detailViewport.Height = msg.Height - 4
		m.ready = true

	case refreshMsg:
		cmds = append(cmds, scan(m.paths), scheduleRescan(m.refreshInterval))

	case scanMsg:
		m.rows = []ExtensionRow(msg)
		m.lastUpdate = time.Now()
		if m.selected >= len(m.rows) {
			m.selected = len(m.rows) - 1
		}
		if m.selected < 0 {
			m.selected = 0
		}
		m.updateViewportContent()
	}

	var vpCmd tea.Cmd
	m.detailViewport, vpCmd = m.detailViewport.Update(msg)
	cmds = append(cmds, vpCmd)

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	pal := newStatusPalette()

	lastUpdateStr := "never"
	if !m.lastUpdate.IsZero() {
		ago := time.Since(m.lastUpdate).Truncate(time.Second)
		lastUpdateStr = fmt.Sprintf("↻ %s ago", ago)
	}
	modeLabel := "detail"
	if m.viewMode == viewLog {
		modeLabel = "log"
	}
	header := pal.heading.Render("Extension Lifecycle Monitor") +
		pal.muted.Render(fmt.Sprintf("  %s  [%s]  %s", m.paths.LibDir, modeLabel, lastUpdateStr))

	var leftLines []string
	leftLines = append(leftLines, pal.heading.Render("EXTENSIONS"), "")

	for i, row := range m.filteredRows() {
		indicator := pal.glyph(string(row.HandlerState))

		name := row.Name
		if len(name) > 14 {
			name = name[:14]
		}

		statusText := string(row.HandlerState)
		if statusText == "" {
			statusText = "unknown"
		}

		line := fmt.Sprintf(" %s %-14s %s", indicator, name, pal.muted.Render(statusText))
		if i == m.selected {
			line = pal.current.Render(fmt.Sprintf("▸%s %-14s", indicator, name)) + " " + pal.muted.Render(statusText)
		}
		leftLines = append(leftLines, line)
	}

	rows := m.filteredRows()
	if m.selected < len(rows) {
		row := rows[m.selected]
		leftLines = append(leftLines, "")
		leftLines = append(leftLines, pal.muted.Render("Version:  "+row.Version))
		if row.Heartbeat != nil {
			leftLines = append(leftLines, pal.muted.Render("Heartbeat: "+row.Heartbeat.Status))
		}
	}

	contentHeight := m.height - 4
	for len(leftLines) < contentHeight {
		leftLines = append(leftLines, "")
	}

	leftPanel := pal.frame.Width(listPaneWidth).Height(contentHeight).
		Render(strings.Join(leftLines, "\n"))

	rightHeader := ""
	if m.selected < len(rows) {
		row := rows[m.selected]
		rightHeader = pal.heading.Render(fmt.Sprintf("%s-%s", row.Name, row.Version))
	}
	rightContent := rightHeader + "\n" + m.detailViewport.View()
	rightPanel := pal.frame.Width(m.width - listPaneWidth - 3).Height(contentHeight).
		Render(rightContent)

	footerText := "q: quit  ↑/↓: select  r: refresh  l: toggle detail/log  f: filter"
	if m.filtering {
		footerText = fmt.Sprintf("filter: %s█  (esc to cancel)", m.filterQuery)
	}
	if m.err != nil {
		footerText = pal.alert.Render(fmt.Sprintf("Error: %v", m.err)) + "  " + footerText
	}
	footer := pal.muted.Render(footerText)

	body := lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, rightPanel)
	return header + "\n" + body + "\n" + footer
}

func (m Model) filteredRows() []ExtensionRow {
	if m.filterQuery == "" {
		return m.rows
	}
	var out []ExtensionRow
	for _, r := range m.rows {
		if strings.Contains(strings.ToLower(r.Name), strings.ToLower(m.filterQuery)) {
			out = append(out, r)
		}
	}
	return out
}

func (m *Model) updateViewportContent() {
	rows := m.filteredRows()
	if m.selected >= len(rows) {
		m.detailViewport.SetContent("")
		return
	}
	row := rows[m.selected]

	var content string
	switch m.viewMode {
	case viewDetail:
		content = m.renderDetail(row)
	case viewLog:
		content = strings.Join(row.CommandLog, "\n")
		if content == "" {
			content = "(no command log yet)"
		}
	}
	m.detailViewport.SetContent(content)
	m.detailViewport.GotoBottom()
}

func (m Model) renderDetail(row ExtensionRow) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	redStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	var lines []string
	lines = append(lines, titleStyle.Render("Handler state"))
	lines = append(lines, fmt.Sprintf("  %s", row.HandlerState))
	if row.ScanErr != nil {
		lines = append(lines, redStyle.Render(fmt.Sprintf("  error: %v", row.ScanErr)))
	}
	lines = append(lines, "")

	lines = append(lines, titleStyle.Render("Last status"))
	if row.LastStatusErr != nil {
		lines = append(lines, redStyle.Render(fmt.Sprintf("  %v", row.LastStatusErr)))
	} else if row.LastStatus != nil {
		st := row.LastStatus
		lines = append(lines, fmt.Sprintf("  operation: %s", st.Operation))
		lines = append(lines, fmt.Sprintf("  status:    %s", st.Status))
		lines = append(lines, fmt.Sprintf("  code:      %d", st.Code))
		if st.FormattedMessage.Message != "" {
			lines = append(lines, fmt.Sprintf("  message:   %s", st.FormattedMessage.Message))
		}
	} else {
		lines = append(lines, dimStyle.Render("  (no status file yet)"))
	}
	lines = append(lines, "")

	lines = append(lines, titleStyle.Render("Heartbeat"))
	if row.HeartbeatErr != nil {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("  %v", row.HeartbeatErr)))
	} else if row.Heartbeat != nil {
		lines = append(lines, fmt.Sprintf("  status:  %s", row.Heartbeat.Status))
		lines = append(lines, fmt.Sprintf("  code:    %d", row.Heartbeat.Code))
		lines = append(lines, fmt.Sprintf("  message: %s", row.Heartbeat.Message))
	} else {
		lines = append(lines, dimStyle.Render("  (not reported by this handler)"))
	}

	return strings.Join(lines, "\n")
}

// handleFilterInput dispatches a keystroke typed while the extension-name
// filter box has focus, committing or abandoning the query as appropriate.
func (m Model) handleFilterInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	closeFilter := func(keepQuery bool) {
		m.filtering = false
		if !keepQuery {
			m.filterQuery = ""
		}
		m.updateViewportContent()
	}

	switch {
	case key == "esc":
		closeFilter(false)
	case key == "enter":
		closeFilter(true)
	case key == "backspace" || key == "ctrl+h":
		runes := []rune(m.filterQuery)
		if n := len(runes); n > 0 {
			m.filterQuery = string(runes[:n-1])
		}
		m.updateViewportContent()
	case key == "ctrl+u":
		m.filterQuery = ""
		m.updateViewportContent()
	case utf8.RuneCountInString(key) == 1:
		m.filterQuery += key
		m.updateViewportContent()
	}

	return m, nil
}

// scheduleRescan arms a one-shot timer that, once it fires, delivers a
// refreshMsg telling Update to kick off another directory scan.
func scheduleRescan(after time.Duration) tea.Cmd {
	return tea.Tick(after, func(firedAt time.Time) tea.Msg {
		return refreshMsg(firedAt)
	})
}

func scan(p paths.Paths) tea.Cmd {
	return func() tea.Msg {
		return scanMsg(Scan(p))
	}
}
