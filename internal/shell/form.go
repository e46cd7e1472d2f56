package shell

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

type formField struct {
	label string
	// stop ends the form early when left blank.
	stop  bool
	value string
}

// form collects a few values one textinput line at a time.
type form struct {
	title  string
	fields []formField
	values []string
	submit func(values []string) tea.Cmd
	cancel func()
}

func (f *form) current() formField {
	return f.fields[len(f.values)]
}

// advance records v and reports whether the form is complete.
func (f *form) advance(v string) bool {
	v = strings.TrimSpace(v)
	field := f.current()
	if v == "" && field.stop {
		return true
	}
	f.values = append(f.values, v)
	return len(f.values) == len(f.fields)
}

func (f *form) value(i int) string {
	if i < len(f.values) {
		return f.values[i]
	}
	return ""
}

type confirmation struct {
	prompt string
	run    tea.Cmd
}
