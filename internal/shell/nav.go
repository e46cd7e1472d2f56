// Package shell hosts the console's navigation state and terminal UI.
package shell

// Tab is a top-level console section.
type Tab int

const (
	TabAgency Tab = iota
	TabSpyCats
)

func (t Tab) String() string {
	if t == TabSpyCats {
		return "Spy Cats"
	}
	return "Agency"
}

// SubTab is a section of the Agency tab.
type SubTab int

const (
	SubTabAgents SubTab = iota
	SubTabMissions
)

func (s SubTab) String() string {
	if s == SubTabMissions {
		return "Missions"
	}
	return "Agents"
}

// Nav tracks the active tab, the Agency sub-tab and the agent picked on the
// Spy Cats tab.
type Nav struct {
	tab      Tab
	sub      SubTab
	agentID  int64
	selected bool
}

func NewNav() Nav { return Nav{} }

func (n Nav) Tab() Tab       { return n.tab }
func (n Nav) SubTab() SubTab { return n.sub }

// SelectedAgent returns the agent picked on the Spy Cats tab.
func (n Nav) SelectedAgent() (int64, bool) { return n.agentID, n.selected }

// SwitchTab moves to t. Entering Agency starts on Agents; leaving Spy Cats
// drops the agent selection. It reports whether a selection was dropped.
func (n *Nav) SwitchTab(t Tab) bool {
	if t == n.tab {
		return false
	}
	cleared := false
	if n.tab == TabSpyCats {
		cleared = n.selected
		n.agentID, n.selected = 0, false
	}
	if t == TabAgency {
		n.sub = SubTabAgents
	}
	n.tab = t
	return cleared
}

// SwitchSubTab moves to s, switching to the Agency tab if needed.
func (n *Nav) SwitchSubTab(s SubTab) bool {
	cleared := n.SwitchTab(TabAgency)
	n.sub = s
	return cleared
}

// SelectAgent picks an agent on the Spy Cats tab. It reports whether the
// selection changed.
func (n *Nav) SelectAgent(id int64) bool {
	if n.tab != TabSpyCats {
		return false
	}
	changed := !n.selected || n.agentID != id
	n.agentID, n.selected = id, true
	return changed
}

// ClearAgent returns the Spy Cats tab to its agent list.
func (n *Nav) ClearAgent() {
	n.agentID, n.selected = 0, false
}

// Cycle advances Agents, Missions, Spy Cats and wraps around.
func (n *Nav) Cycle() bool {
	switch {
	case n.tab == TabAgency && n.sub == SubTabAgents:
		n.sub = SubTabMissions
		return false
	case n.tab == TabAgency:
		return n.SwitchTab(TabSpyCats)
	default:
		return n.SwitchTab(TabAgency)
	}
}
