package shell

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spyagency/internal/console"
	agencysdk "spyagency/sdk/go"
)

func TestFormStopsOnBlankOptionalField(t *testing.T) {
	f := &form{fields: []formField{{label: "a"}, {label: "b", stop: true}, {label: "c"}}}
	assert.False(t, f.advance(" first "))
	assert.Equal(t, "b", f.current().label)
	assert.True(t, f.advance(""))
	assert.Equal(t, []string{"first"}, f.values)
	assert.Equal(t, "", f.value(2))
}

func TestNextStatus(t *testing.T) {
	next, ok := nextStatus(agencysdk.TargetInit)
	assert.True(t, ok)
	assert.Equal(t, agencysdk.TargetInProgress, next)
	next, ok = nextStatus(agencysdk.TargetInProgress)
	assert.True(t, ok)
	assert.Equal(t, agencysdk.TargetCompleted, next)
	_, ok = nextStatus(agencysdk.TargetCompleted)
	assert.False(t, ok)
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("")
	require.NoError(t, err)
	assert.Nil(t, d)
	d, err = parseDate("2025-03-01")
	require.NoError(t, err)
	assert.Equal(t, 2025, d.Year())
	_, err = parseDate("March 1st")
	assert.Error(t, err)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModelTabNavigation(t *testing.T) {
	// Navigation never reaches the gateway, so an unroutable client is fine.
	api := agencysdk.New("http://127.0.0.1:1/api/v1")
	m := New(context.Background(), Views{
		Registry:  console.NewRegistry(api, console.Options{}),
		Roster:    console.NewRoster(api, console.Options{}),
		Dashboard: console.NewDashboard(api, console.Options{}),
	})

	step := func(k string) {
		next, _ := m.Update(key(k))
		m = next.(Model)
	}
	step("2")
	assert.Equal(t, SubTabMissions, m.nav.SubTab())
	step("tab")
	assert.Equal(t, TabSpyCats, m.nav.Tab())
	step("tab")
	assert.Equal(t, TabAgency, m.nav.Tab())
	assert.Equal(t, SubTabAgents, m.nav.SubTab())

	step("n")
	require.NotNil(t, m.form)
	assert.Equal(t, "Recruit spy cat", m.form.title)
	step("esc")
	assert.Nil(t, m.form)
	assert.Contains(t, m.View(), "SPY CAT AGENCY")
}
