package shell

import "github.com/charmbracelet/lipgloss"

type uiTheme struct {
	root        lipgloss.Style
	header      lipgloss.Style
	tabActive   lipgloss.Style
	tabInactive lipgloss.Style
	panel       lipgloss.Style
	panelTitle  lipgloss.Style
	cursor      lipgloss.Style
	muted       lipgloss.Style
	footer      lipgloss.Style
	success     lipgloss.Style
	errorStatus lipgloss.Style
	blocking    lipgloss.Style
	prompt      lipgloss.Style
	status      map[string]lipgloss.Style
}

func newTheme() uiTheme {
	amber := lipgloss.Color("#ffb000")
	teal := lipgloss.Color("#2ec4b6")
	red := lipgloss.Color("#e63946")
	text := lipgloss.Color("#f1faee")
	muted := lipgloss.Color("#8d99ae")
	panelBg := lipgloss.Color("#1d2330")

	return uiTheme{
		root: lipgloss.NewStyle().
			Foreground(text).
			Padding(0, 1),
		header: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(amber).
			Padding(0, 1),
		tabActive: lipgloss.NewStyle().
			Background(amber).
			Foreground(lipgloss.Color("#1d2330")).
			Bold(true).
			Padding(0, 1),
		tabInactive: lipgloss.NewStyle().
			Background(panelBg).
			Foreground(muted).
			Padding(0, 1),
		panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(teal).
			Padding(0, 1),
		panelTitle:  lipgloss.NewStyle().Foreground(teal).Bold(true),
		cursor:      lipgloss.NewStyle().Foreground(amber).Bold(true),
		muted:       lipgloss.NewStyle().Foreground(muted),
		footer:      lipgloss.NewStyle().Foreground(muted).Padding(0, 1),
		success:     lipgloss.NewStyle().Foreground(teal).Bold(true),
		errorStatus: lipgloss.NewStyle().Foreground(red).Bold(true),
		blocking: lipgloss.NewStyle().
			Foreground(text).
			Background(red).
			Bold(true).
			Padding(0, 1),
		prompt: lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(amber).
			Padding(0, 1),
		status: map[string]lipgloss.Style{
			"Completed":   lipgloss.NewStyle().Foreground(teal),
			"Overdue":     lipgloss.NewStyle().Foreground(red),
			"In Progress": lipgloss.NewStyle().Foreground(amber),
			"Active":      lipgloss.NewStyle().Foreground(amber).Bold(true),
			"Pending":     lipgloss.NewStyle().Foreground(muted),
			"init":        lipgloss.NewStyle().Foreground(muted),
			"in_progress": lipgloss.NewStyle().Foreground(amber),
			"completed":   lipgloss.NewStyle().Foreground(teal),
			"ASSIGNED":    lipgloss.NewStyle().Foreground(amber),
			"STANDBY":     lipgloss.NewStyle().Foreground(muted),
		},
	}
}

func (t uiTheme) badge(label string) string {
	if s, ok := t.status[label]; ok {
		return s.Render(label)
	}
	return label
}
