// Package statsui provides the Bubble Tea stats interface.
package statsui

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/versetype/internal/model"
	"github.com/verte-zerg/versetype/internal/stats"
)

const (
	tabDailyLog = iota
	tabProgress
)

const (
	plotHeight = 10
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Model implements the Bubble Tea stats UI.
type Model struct {
	source stats.Source
	cfg    model.ChartConfig
	now    func() time.Time

	report stats.Report
	errMsg string

	tabs       []string
	activeTab  int
	progress   viewport.Model
	dailyTable table.Model

	width  int
	height int

	userMode  bool
	userInput textinput.Model
	userError string
}

// NewModel constructs a stats UI model.
func NewModel(src stats.Source, cfg model.ChartConfig) *Model {
	m := &Model{
		source:   src,
		cfg:      cfg,
		now:      time.Now,
		tabs:     []string{"Daily Log", "Progress"},
		progress: viewport.New(0, 0),
	}
	m.userInput = textinput.New()
	m.userInput.Prompt = "User: "
	m.userInput.Cursor.SetMode(cursor.CursorBlink)
	m.dailyTable = buildDailyTable(nil, 0, 1)
	m.refreshReport()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderProgress()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.userMode {
			return m.updateUserInput(msg)
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "r":
			m.cfg.Range = cycle(model.TimeRanges, m.cfg.Range)
			m.refreshReport()
			return m, nil
		case "i":
			m.cfg.Interval = cycle(model.Intervals, m.cfg.Interval)
			m.refreshReport()
			return m, nil
		case "s":
			m.cfg.Source = cycle([]model.ChartSource{model.SourceDaily, model.SourceVerses}, m.cfg.Source)
			m.refreshReport()
			return m, nil
		case "/":
			m.userMode = true
			m.userError = ""
			m.userInput.SetValue(m.cfg.UserID)
			return m, m.userInput.Focus()
		case "g", "home":
			if m.activeTab == tabDailyLog {
				m.dailyTable.GotoTop()
			} else {
				m.progress.GotoTop()
			}
			return m, nil
		case "G", "end":
			if m.activeTab == tabDailyLog {
				m.dailyTable.GotoBottom()
			} else {
				m.progress.GotoBottom()
			}
			return m, nil
		default:
			var cmd tea.Cmd
			if m.activeTab == tabDailyLog {
				m.dailyTable, cmd = m.dailyTable.Update(msg)
			} else {
				m.progress, cmd = m.progress.Update(msg)
			}
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := max(lipgloss.Height(activeNavStyle.Render("X")), 1)
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if !m.userMode && m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = max(m.height-headerHeight-footerHeight, 1)
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.progress.Width = m.width
	m.progress.Height = bodyHeight
	m.dailyTable.SetWidth(m.width)
	m.dailyTable.SetHeight(max(1, bodyHeight-1))
	m.userInput.Width = max(10, m.width-lipgloss.Width(m.userInput.Prompt)-2)
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	m.activeTab = (m.activeTab + delta + count) % count
	if m.activeTab == tabDailyLog {
		m.dailyTable.Focus()
	} else {
		m.dailyTable.Blur()
	}
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	summary := fmt.Sprintf("Settings: user=%s  range=%s  interval=%s  source=%s", m.cfg.UserID, m.cfg.Range, m.cfg.Interval, m.cfg.Source)
	return tabs + "\n" + padLines(headerStyle.Render(truncateLine(summary, m.width)), m.width)
}

func (m *Model) renderFooter() string {
	if m.userMode {
		return headerStyle.Render("enter: apply  esc: cancel  quit: ctrl+c")
	}
	help := headerStyle.Render("Nav: left/right  Scroll: up/down/pgup/pgdn  Range: r  Interval: i  Source: s  User: /  Quit: q")
	if m.errMsg != "" {
		return help + "\n" + errorStyle.Render(m.errMsg)
	}
	return help
}

func (m *Model) renderBody(height int) string {
	if m.userMode {
		lines := []string{"Switch user (enter to apply, esc to cancel)", m.userInput.View()}
		if m.userError != "" {
			lines = append(lines, errorStyle.Render(m.userError))
		}
		return fitLines(strings.Join(lines, "\n"), m.width, height)
	}
	if m.activeTab == tabDailyLog {
		if len(m.report.Rows) == 0 {
			return fitLines("No activity found.", m.width, height)
		}
		return fitLines(tableMutedStyle.Render(m.dailyTable.View()), m.width, height)
	}
	return fitLines(m.progress.View(), m.width, height)
}

func (m *Model) updateUserInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.userMode = false
		m.userInput.Blur()
		return m, nil
	case tea.KeyEnter:
		user := strings.TrimSpace(m.userInput.Value())
		if user == "" {
			m.userError = "user id is required"
			return m, nil
		}
		m.cfg.UserID = user
		m.userMode = false
		m.userInput.Blur()
		m.refreshReport()
		m.updateLayout()
		return m, nil
	}
	var cmd tea.Cmd
	m.userInput, cmd = m.userInput.Update(msg)
	return m, cmd
}

func (m *Model) refreshReport() {
	report, err := stats.BuildReport(context.Background(), m.source, m.cfg, m.now())
	if err != nil {
		m.errMsg = err.Error()
		m.progress.SetContent("Failed to load stats.")
		return
	}
	m.errMsg = ""
	m.report = report
	_, rows := dailyTableData(report.Rows)
	m.dailyTable.SetRows(rows)
	m.renderProgress()
}

func (m *Model) renderProgress() {
	if m.errMsg != "" {
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.progress.SetContent(renderProgress(m.report, width))
}

func renderProgress(report stats.Report, width int) string {
	cards := renderSummaryCards(report.Buckets, width)
	var buf bytes.Buffer
	plotWidth := stats.PlotWidthFor(width, 6)
	if err := stats.RenderChart(&buf, report, plotWidth, plotHeight, true); err != nil {
		return fmt.Sprintf("Failed to render chart: %v", err)
	}
	if err := stats.RenderBuckets(&buf, report.Buckets); err != nil {
		return fmt.Sprintf("Failed to render buckets: %v", err)
	}
	return strings.TrimRight(cards+"\n\n"+buf.String(), "\n")
}

// renderSummaryCards summarizes the visible range, weighting each bucket by
// its verse count.
func renderSummaryCards(buckets []model.AggregatedStats, width int) string {
	verses, active, best := 0, 0, 0
	var wpm, acc float64
	for _, b := range buckets {
		if b.AverageWPM == nil || b.AverageAccuracy == nil {
			continue
		}
		active++
		verses += b.VersesWithData
		wpm += float64(*b.AverageWPM * b.VersesWithData)
		acc += float64(*b.AverageAccuracy * b.VersesWithData)
		best = max(best, *b.AverageWPM)
	}
	avgWPM, avgAcc := "-", "-"
	if verses > 0 {
		avgWPM = fmt.Sprintf("%.0f", math.Round(wpm/float64(verses)))
		avgAcc = fmt.Sprintf("%.0f%%", math.Round(acc/float64(verses)))
	}
	cards := []string{
		metricCard("Verses", fmt.Sprintf("%d", verses)),
		metricCard("Active periods", fmt.Sprintf("%d/%d", active, len(buckets))),
		metricCard("Avg WPM", avgWPM),
		metricCard("Best WPM", fmt.Sprintf("%d", best)),
		metricCard("Avg Acc", avgAcc),
	}
	if width < 80 {
		return strings.Join(cards, "\n")
	}
	row1 := lipgloss.JoinHorizontal(lipgloss.Top, cards[0], cards[1], cards[2])
	row2 := lipgloss.JoinHorizontal(lipgloss.Top, cards[3], cards[4])
	return lipgloss.JoinVertical(lipgloss.Left, row1, row2)
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func dailyTableData(rows []model.DailyActivityRow) ([]table.Column, []table.Row) {
	headers, cells := stats.DailyLogTable(rows)
	widths := []int{10, 6, 10, 4, 8, 9, 40}
	columns := make([]table.Column, len(headers))
	for i, h := range headers {
		columns[i] = table.Column{Title: h, Width: widths[i]}
	}
	out := make([]table.Row, len(cells))
	for i, c := range cells {
		out[i] = table.Row(c)
	}
	return columns, out
}

func buildDailyTable(rows []model.DailyActivityRow, width, height int) table.Model {
	columns, tableRows := dailyTableData(rows)
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(tableRows),
		table.WithHeight(max(1, height-1)),
		table.WithFocused(true),
	)
	t.SetWidth(width)
	t.SetStyles(dailyTableStyles())
	return t
}

func dailyTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func cycle[T comparable](values []T, current T) T {
	for i, v := range values {
		if v == current {
			return values[(i+1)%len(values)]
		}
	}
	return values[0]
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
