package tui

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// InspectModel is a Bubble Tea model for inspect views. Stored records are
// shown in a scrollable table; a metrics summary as a label/value box.
type InspectModel struct {
	viewType string
	data     any
	table    table.Model
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(viewType string, data any) InspectModel {
	m := InspectModel{
		viewType: viewType,
		data:     data,
	}
	if rows, ok := data.([]map[string]any); ok && viewType == "inspect_records" {
		m.table = newRecordTable(rows)
	}
	return m
}

var recordColumns = []table.Column{
	{Title: "Offset", Width: 10},
	{Title: "Kind", Width: 16},
	{Title: "Tag", Width: 4},
	{Title: "Seq", Width: 4},
	{Title: "Data", Width: 48},
}

func newRecordTable(records []map[string]any) table.Model {
	rows := make([]table.Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, table.Row{
			fmt.Sprint(rec["offset"]),
			fmt.Sprint(rec["kind"]),
			fmt.Sprint(rec["tag"]),
			fmt.Sprint(rec["sequence"]),
			formatFields(rec["data"]),
		})
	}

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(mutedColor).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(textColor).
		Background(primaryColor)

	return table.New(
		table.WithColumns(recordColumns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(min(len(rows)+1, 20)),
		table.WithStyles(styles),
	)
}

// formatFields renders a stored data map as sorted key=value pairs.
func formatFields(v any) string {
	data, ok := v.(map[string]any)
	if !ok {
		return fmt.Sprint(v)
	}
	parts := make([]string, 0, len(data))
	for _, k := range slices.Sorted(maps.Keys(data)) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, data[k]))
	}
	return strings.Join(parts, " ")
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.viewType == "inspect_records" && msg.Height > 6 {
			m.table.SetHeight(msg.Height - 6)
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	if m.viewType == "inspect_records" {
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	help := "Press q or Ctrl+C to quit"
	switch m.viewType {
	case "inspect_records":
		content = m.renderInspectRecords()
		help = "↑/↓ to scroll, q to quit"
	case "inspect_metrics":
		content = m.renderInspectMetrics()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	return content + "\n" + HelpStyle.Render(help)
}

func (m InspectModel) renderInspectRecords() string {
	rows, ok := m.data.([]map[string]any)
	if !ok {
		return "Invalid data type for inspect_records"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Stored Records (%d)", len(rows))))
	b.WriteString("\n")
	if len(rows) == 0 {
		b.WriteString(ValueStyle.Render("(no results)"))
		return b.String()
	}
	b.WriteString(BoxStyle.Padding(0, 1).Render(m.table.View()))
	return b.String()
}

// metricsFields is the display order of a stored metrics summary.
var metricsFields = []struct{ key, label string }{
	{"session_id", "Session ID"},
	{"device", "Device"},
	{"profile", "Profile"},
	{"policy", "Policy"},
	{"completed_at", "Completed At"},
	{"bytes_read", "Bytes read"},
	{"bytes_skipped", "Bytes skipped"},
	{"bytes_dropped", "Bytes dropped"},
	{"frames_accepted", "Frames accepted"},
	{"frames_rejected", "Frames rejected"},
	{"sequence_gaps", "Sequence gaps"},
	{"clock_resets", "Clock resets"},
	{"records_persisted", "Records persisted"},
}

func (m InspectModel) renderInspectMetrics() string {
	data, ok := m.data.(map[string]any)
	if !ok {
		return "Invalid data type for inspect_metrics"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Session Metrics"))
	b.WriteString("\n\n")

	for _, f := range metricsFields {
		v, ok := data[f.key]
		if !ok {
			continue
		}
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render(f.label+":"),
			ValueStyle.Render(fmt.Sprint(v))))
	}
	for _, section := range []struct{ key, label string }{
		{"records_by_kind", "Records"},
		{"rejected_by_reason", "Rejections"},
	} {
		counts, ok := data[section.key].(map[string]any)
		if !ok || len(counts) == 0 {
			continue
		}
		b.WriteString("\n")
		b.WriteString(SectionStyle.Render(section.label))
		b.WriteString("\n")
		for _, k := range slices.Sorted(maps.Keys(counts)) {
			b.WriteString(fmt.Sprintf("%s %s\n",
				LabelStyle.Render("  "+k+":"),
				ValueStyle.Render(fmt.Sprint(counts[k]))))
		}
	}

	return BoxStyle.Render(strings.TrimSuffix(b.String(), "\n"))
}

// RunInspectTUI runs the inspect TUI.
func RunInspectTUI(viewType string, data any) error {
	model := NewInspectModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderInspectStatic renders inspect data without full TUI (for fallback).
func RenderInspectStatic(viewType string, data any) string {
	model := NewInspectModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
