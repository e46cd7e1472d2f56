package shell

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNavDefaults(t *testing.T) {
	n := NewNav()
	assert.Equal(t, TabAgency, n.Tab())
	assert.Equal(t, SubTabAgents, n.SubTab())
	_, ok := n.SelectedAgent()
	assert.False(t, ok)
}

func TestSwitchingToAgencyResetsSubTab(t *testing.T) {
	n := NewNav()
	n.SwitchSubTab(SubTabMissions)
	assert.Equal(t, SubTabMissions, n.SubTab())

	n.SwitchTab(TabSpyCats)
	n.SwitchTab(TabAgency)
	assert.Equal(t, SubTabAgents, n.SubTab())
}

func TestLeavingSpyCatsClearsSelection(t *testing.T) {
	n := NewNav()
	assert.False(t, n.SelectAgent(3), "selection only applies on the Spy Cats tab")

	n.SwitchTab(TabSpyCats)
	assert.True(t, n.SelectAgent(3))
	assert.False(t, n.SelectAgent(3))
	assert.True(t, n.SelectAgent(4))
	id, ok := n.SelectedAgent()
	assert.True(t, ok)
	assert.Equal(t, int64(4), id)

	assert.True(t, n.SwitchTab(TabAgency))
	_, ok = n.SelectedAgent()
	assert.False(t, ok)
}

func TestCycle(t *testing.T) {
	n := NewNav()
	n.Cycle()
	assert.Equal(t, SubTabMissions, n.SubTab())
	n.Cycle()
	assert.Equal(t, TabSpyCats, n.Tab())
	n.SelectAgent(1)
	assert.True(t, n.Cycle())
	assert.Equal(t, TabAgency, n.Tab())
	assert.Equal(t, SubTabAgents, n.SubTab())
}
