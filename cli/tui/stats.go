package tui

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/rawzeo/metrics"
)

// StatsModel is a Bubble Tea model for stats views.
type StatsModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(viewType string, data any) StatsModel {
	return StatsModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "stats_session":
		content = m.renderStatsSession()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func snapshotOf(data any) (metrics.Snapshot, bool) {
	switch s := data.(type) {
	case metrics.Snapshot:
		return s, true
	case *metrics.Snapshot:
		if s == nil {
			return metrics.Snapshot{}, false
		}
		return *s, true
	}
	return metrics.Snapshot{}, false
}

func (m StatsModel) renderStatsSession() string {
	s, ok := snapshotOf(m.data)
	if !ok {
		return "Invalid data type for stats_session"
	}

	var b strings.Builder
	title := "Session Statistics"
	if s.Profile != "" {
		title += " (" + s.Profile + ")"
	}
	b.WriteString(TitleStyle.Render(title))
	b.WriteString("\n\n")

	b.WriteString(SectionStyle.Render("Bytes"))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderStatBox("Read", s.BytesRead, highlightColor),
		m.renderStatBox("Skipped", s.BytesSkipped, warningColor),
		m.renderStatBox("Dropped", s.BytesDropped, errorColor),
	))
	b.WriteString("\n")

	b.WriteString(SectionStyle.Render("Frames"))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderStatBox("Accepted", s.FramesAccepted, successColor),
		m.renderStatBox("Rejected", s.FramesRejected, errorColor),
		m.renderStatBox("Sequence gaps", s.SequenceGaps, warningColor),
		m.renderStatBox("Clock resets", s.ClockResets, mutedColor),
	))
	b.WriteString("\n")

	if len(s.RejectedByReason) > 0 {
		b.WriteString(SectionStyle.Render("Rejections"))
		b.WriteString("\n")
		boxes := make([]string, 0, len(s.RejectedByReason))
		for _, reason := range slices.Sorted(maps.Keys(s.RejectedByReason)) {
			boxes = append(boxes, m.renderStatBox(reason, s.RejectedByReason[reason], ReasonColor(reason)))
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
		b.WriteString("\n")
	}

	if len(s.RecordsByKind) > 0 {
		b.WriteString(SectionStyle.Render("Records"))
		b.WriteString("\n")
		var rows strings.Builder
		for _, kind := range slices.Sorted(maps.Keys(s.RecordsByKind)) {
			rows.WriteString(fmt.Sprintf("%s %s\n",
				LabelStyle.Render(kind+":"),
				ValueStyle.Render(fmt.Sprintf("%d", s.RecordsByKind[kind]))))
		}
		b.WriteString(BoxStyle.Render(strings.TrimSuffix(rows.String(), "\n")))
	}

	return b.String()
}

func (m StatsModel) renderStatBox(label string, value int64, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}

// RunStatsTUI runs the stats TUI.
func RunStatsTUI(viewType string, data any) error {
	model := NewStatsModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatsStatic renders stats data without full TUI (for fallback).
func RenderStatsStatic(viewType string, data any) string {
	model := NewStatsModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
