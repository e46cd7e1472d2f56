package shell

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"spyagency/internal/console"
	agencysdk "spyagency/sdk/go"
)

const refreshInterval = 250 * time.Millisecond

// Views are the view-models the terminal UI drives.
type Views struct {
	Registry  *console.Registry
	Roster    *console.Roster
	Dashboard *console.Dashboard
	Now       func() time.Time
}

// Model is the bubbletea model of the console.
type Model struct {
	ctx     context.Context
	views   Views
	nav     Nav
	theme   uiTheme
	spinner spinner.Model
	input   textinput.Model

	form    *form
	confirm *confirmation

	agentCursor   int
	missionCursor int
	targetCursor  int
	dialogCursor  int

	inflight int
	status   string
	width    int
	height   int
}

type opStartMsg struct {
	label string
}

type opDoneMsg struct {
	label string
	err   error
}

type statusMsg string

type tickMsg time.Time

// New builds the console UI over views.
func New(ctx context.Context, views Views) Model {
	if views.Now == nil {
		views.Now = time.Now
	}
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 500

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb000"))

	return Model{
		ctx:     ctx,
		views:   views,
		nav:     NewNav(),
		theme:   newTheme(),
		spinner: sp,
		input:   input,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.run("load agents", m.views.Registry.Load),
		m.run("load missions", m.views.Roster.Load),
		tickEvery(refreshInterval),
	)
}

func tickEvery(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// run wraps a view-model operation as a command. The view-model records the
// outcome itself; the messages only drive the spinner and a redraw.
func (m Model) run(label string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return tea.Sequence(
		func() tea.Msg { return opStartMsg{label: label} },
		func() tea.Msg { return opDoneMsg{label: label, err: fn(ctx)} },
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case opStartMsg:
		m.inflight++
		m.status = msg.label + "..."
		return m, nil
	case statusMsg:
		m.status = string(msg)
		return m, nil
	case opDoneMsg:
		if m.inflight > 0 {
			m.inflight--
		}
		if msg.err != nil {
			m.status = msg.label + " failed"
		} else {
			m.status = ""
		}
		return m, nil
	case tickMsg:
		return m, tickEvery(refreshInterval)
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.form != nil {
			return m.updateForm(msg)
		}
		if m.confirm != nil {
			return m.updateConfirm(msg)
		}
		return m.updateKey(msg)
	}
	return m, nil
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		if m.form.cancel != nil {
			m.form.cancel()
		}
		m.form = nil
		m.input.Blur()
		m.status = "cancelled"
		return m, nil
	case "enter":
		f := m.form
		if !f.advance(m.input.Value()) {
			m.input.SetValue(f.current().value)
			return m, nil
		}
		m.form = nil
		m.input.Blur()
		m.input.SetValue("")
		return m, f.submit(f.values)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y", "enter":
		run := m.confirm.run
		m.confirm = nil
		return m, run
	case "n", "N", "esc":
		m.confirm = nil
		m.status = "cancelled"
	}
	return m, nil
}

func (m *Model) openForm(f *form) tea.Cmd {
	m.form = f
	m.input.SetValue(f.current().value)
	return m.input.Focus()
}

func (m Model) withForm(f *form) (tea.Model, tea.Cmd) {
	cmd := m.openForm(f)
	return m, cmd
}

func (m *Model) ask(prompt string, run tea.Cmd) {
	m.confirm = &confirmation{prompt: prompt, run: run}
}

func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "tab":
		if m.nav.Cycle() {
			m.views.Dashboard.ReturnToStandby()
		}
		return m, nil
	case "1":
		if m.nav.SwitchSubTab(SubTabAgents) {
			m.views.Dashboard.ReturnToStandby()
		}
		return m, nil
	case "2":
		if m.nav.SwitchSubTab(SubTabMissions) {
			m.views.Dashboard.ReturnToStandby()
		}
		return m, nil
	case "3":
		m.nav.SwitchTab(TabSpyCats)
		return m, nil
	}

	if m.nav.Tab() == TabSpyCats {
		return m.updateSpyCats(msg)
	}
	if m.nav.SubTab() == SubTabMissions {
		return m.updateMissions(msg)
	}
	return m.updateAgents(msg)
}

func moveCursor(key string, cursor, n int) int {
	switch key {
	case "up", "k":
		cursor--
	case "down", "j":
		cursor++
	}
	if cursor >= n {
		cursor = n - 1
	}
	if cursor < 0 {
		cursor = 0
	}
	return cursor
}

func (m Model) updateAgents(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	reg := m.views.Registry
	snap := reg.Snapshot()
	key := msg.String()
	m.agentCursor = moveCursor(key, m.agentCursor, len(snap.Agents))
	var current *agencysdk.Agent
	if m.agentCursor < len(snap.Agents) {
		current = &snap.Agents[m.agentCursor]
	}

	switch key {
	case "r":
		return m, m.run("load agents", reg.Load)
	case "esc":
		reg.DismissNotice()
	case "n":
		breedHint := strings.Join(snap.Breeds, ", ")
		return m.withForm(&form{
			title:  "Recruit spy cat",
			fields: []formField{{label: "Name"}, {label: "Breed (" + breedHint + ")"}, {label: "Years of experience"}, {label: "Salary"}},
			submit: func(v []string) tea.Cmd {
				years, err := strconv.Atoi(v[2])
				if err != nil {
					return status("years of experience must be a whole number")
				}
				salary, err := strconv.ParseFloat(v[3], 64)
				if err != nil {
					return status("salary must be a number")
				}
				reg.SetDraft(console.AgentDraft{Name: v[0], Breed: v[1], YearsOfExperience: years, Salary: salary})
				return m.run("recruit", func(ctx context.Context) error {
					_, err := reg.Create(ctx)
					return err
				})
			},
		})
	case "e":
		if current == nil {
			return m, nil
		}
		if err := reg.BeginSalaryEdit(current.ID); err != nil {
			m.status = err.Error()
			return m, nil
		}
		return m.withForm(&form{
			title:  fmt.Sprintf("Salary for %s", current.Name),
			fields: []formField{{label: "New salary", value: strconv.FormatFloat(current.Salary, 'f', -1, 64)}},
			submit: func(v []string) tea.Cmd {
				salary, err := strconv.ParseFloat(v[0], 64)
				if err != nil {
					reg.CancelSalaryEdit()
					return status("salary must be a number")
				}
				if err := reg.SetSalaryDraft(salary); err != nil {
					return status(err.Error())
				}
				return m.run("update salary", func(ctx context.Context) error {
					_, err := reg.CommitSalary(ctx)
					return err
				})
			},
			cancel: reg.CancelSalaryEdit,
		})
	case "d":
		if current == nil {
			return m, nil
		}
		id := current.ID
		m.ask(fmt.Sprintf("Are you sure you want to terminate spy cat %q?", current.Name),
			m.run("terminate", func(ctx context.Context) error {
				return reg.Delete(ctx, id, console.AlwaysConfirm)
			}))
	}
	return m, nil
}

func (m Model) updateMissions(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	roster := m.views.Roster
	snap := roster.Snapshot()
	key := msg.String()

	if d := snap.Dialog; d != nil {
		m.dialogCursor = moveCursor(key, m.dialogCursor, len(d.FreeAgents))
		switch key {
		case "esc":
			roster.CloseAssign()
			return m, nil
		case "up", "k", "down", "j":
			if m.dialogCursor < len(d.FreeAgents) {
				_ = roster.SelectAgent(d.FreeAgents[m.dialogCursor].ID)
			}
		case "enter":
			return m, m.run("assign", func(ctx context.Context) error {
				if _, err := roster.Assign(ctx); err != nil {
					return err
				}
				// The agent list shows the new mission id.
				return m.views.Registry.Load(ctx)
			})
		}
		return m, nil
	}

	m.missionCursor = moveCursor(key, m.missionCursor, len(snap.Missions))
	var current *agencysdk.Mission
	if m.missionCursor < len(snap.Missions) {
		current = &snap.Missions[m.missionCursor]
	}

	switch key {
	case "r":
		return m, m.run("load missions", roster.Load)
	case "esc":
		roster.DismissNotice()
	case "n":
		return m.withForm(m.missionForm())
	case "d":
		if current == nil {
			return m, nil
		}
		id := current.ID
		if current.Assigned() {
			// The roster raises the blocking notice itself.
			return m, m.run("delete mission", func(ctx context.Context) error {
				return roster.Delete(ctx, id, console.AlwaysConfirm)
			})
		}
		m.ask(fmt.Sprintf("Delete mission %q?", current.Name),
			m.run("delete mission", func(ctx context.Context) error {
				return roster.Delete(ctx, id, console.AlwaysConfirm)
			}))
	case "a":
		if current == nil {
			return m, nil
		}
		id := current.ID
		m.dialogCursor = 0
		return m, m.run("load free agents", func(ctx context.Context) error {
			if err := roster.OpenAssign(ctx, id); err != nil {
				return err
			}
			if d := roster.Snapshot().Dialog; d != nil && len(d.FreeAgents) > 0 {
				return roster.SelectAgent(d.FreeAgents[0].ID)
			}
			return nil
		})
	case "t":
		if current != nil {
			roster.ToggleTargets(current.ID)
		}
	case "o":
		if current != nil {
			for _, t := range current.Targets {
				roster.ToggleNotes(t.ID)
			}
		}
	case "+":
		if current == nil {
			return m, nil
		}
		id := current.ID
		return m.withForm(&form{
			title:  fmt.Sprintf("Add target to %s", current.Name),
			fields: []formField{{label: "Target name"}, {label: "Country"}},
			submit: func(v []string) tea.Cmd {
				roster.SetTargetInput(id, v[0], v[1])
				return m.run("add target", func(ctx context.Context) error {
					_, err := roster.AddTarget(ctx, id)
					return err
				})
			},
		})
	case "-":
		if current == nil {
			return m, nil
		}
		mission := *current
		return m.withForm(&form{
			title:  fmt.Sprintf("Remove target from %s", mission.Name),
			fields: []formField{{label: "Target name"}},
			submit: func(v []string) tea.Cmd {
				for _, t := range mission.Targets {
					if strings.EqualFold(t.Name, v[0]) {
						targetID := t.ID
						return m.run("delete target", func(ctx context.Context) error {
							return roster.DeleteTarget(ctx, mission.ID, targetID, console.AlwaysConfirm)
						})
					}
				}
				return status(fmt.Sprintf("no target named %q", v[0]))
			},
		})
	}
	return m, nil
}

func (m *Model) missionForm() *form {
	roster := m.views.Roster
	fields := []formField{
		{label: "Mission name"},
		{label: "Description"},
		{label: "Start date (YYYY-MM-DD, blank for none)"},
		{label: "End date (YYYY-MM-DD, blank for none)"},
	}
	for i := 1; i <= agencysdk.MaxTargets; i++ {
		fields = append(fields,
			formField{label: fmt.Sprintf("Target %d name", i), stop: i > agencysdk.MinTargets},
			formField{label: fmt.Sprintf("Target %d country", i)})
	}
	return &form{
		title:  "New mission",
		fields: fields,
		submit: func(v []string) tea.Cmd {
			f := &form{values: v}
			start, err := parseDate(f.value(2))
			if err != nil {
				return status("start date must look like 2025-01-31")
			}
			end, err := parseDate(f.value(3))
			if err != nil {
				return status("end date must look like 2025-01-31")
			}
			if !roster.Snapshot().FormOpen {
				roster.ToggleCreateForm()
			}
			roster.SetDraftDetails(f.value(0), f.value(1), start, end)
			for i := 4; i+1 < len(v); i += 2 {
				roster.SetDraftTargetInput(v[i], v[i+1])
				roster.AddDraftTarget()
			}
			return m.run("create mission", func(ctx context.Context) error {
				_, err := roster.Create(ctx)
				return err
			})
		},
	}
}

func parseDate(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (m Model) updateSpyCats(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	dash := m.views.Dashboard
	key := msg.String()

	if _, selected := m.nav.SelectedAgent(); !selected {
		agents := m.views.Registry.Snapshot().Agents
		m.agentCursor = moveCursor(key, m.agentCursor, len(agents))
		switch key {
		case "r":
			return m, m.run("load agents", m.views.Registry.Load)
		case "enter":
			if m.agentCursor < len(agents) {
				id := agents[m.agentCursor].ID
				m.nav.SelectAgent(id)
				m.targetCursor = 0
				return m, m.run("load mission", func(ctx context.Context) error {
					return dash.Select(ctx, id)
				})
			}
		}
		return m, nil
	}

	snap := dash.Snapshot()
	var targets []agencysdk.Target
	if snap.Mission != nil {
		targets = snap.Mission.Targets
	}
	m.targetCursor = moveCursor(key, m.targetCursor, len(targets))
	var current *agencysdk.Target
	if m.targetCursor < len(targets) {
		current = &targets[m.targetCursor]
	}

	switch key {
	case "esc":
		if snap.Notice.Text != "" {
			dash.DismissNotice()
			return m, nil
		}
		m.nav.ClearAgent()
		dash.ReturnToStandby()
	case "r":
		return m, m.run("reload mission", dash.Reload)
	case "b":
		dash.ReturnToStandby()
	case "s":
		if current == nil {
			return m, nil
		}
		next, ok := nextStatus(current.Status)
		if !ok {
			m.status = "target is completed"
			return m, nil
		}
		targetID := current.ID
		return m, m.run("update status", func(ctx context.Context) error {
			_, err := dash.UpdateTargetStatus(ctx, targetID, next)
			return err
		})
	case "n":
		if current == nil {
			return m, nil
		}
		if current.IsFinal() {
			m.status = "target is completed"
			return m, nil
		}
		targetID := current.ID
		return m.withForm(&form{
			title:  fmt.Sprintf("Notes on %s", current.Name),
			fields: []formField{{label: "Notes", value: current.NotesText()}},
			submit: func(v []string) tea.Cmd {
				if err := dash.SetNotesDraft(targetID, v[0]); err != nil {
					return status(err.Error())
				}
				return m.run("save notes", func(ctx context.Context) error {
					_, err := dash.CommitNotes(ctx, targetID)
					return err
				})
			},
		})
	}
	return m, nil
}

func nextStatus(s agencysdk.TargetStatus) (agencysdk.TargetStatus, bool) {
	switch s {
	case agencysdk.TargetInit:
		return agencysdk.TargetInProgress, true
	case agencysdk.TargetInProgress:
		return agencysdk.TargetCompleted, true
	}
	return "", false
}

func status(text string) tea.Cmd {
	return func() tea.Msg { return statusMsg(text) }
}

// View

func (m Model) View() string {
	header := m.renderHeader()
	var body string
	switch {
	case m.nav.Tab() == TabSpyCats:
		body = m.renderSpyCats()
	case m.nav.SubTab() == SubTabMissions:
		body = m.renderMissions()
	default:
		body = m.renderAgents()
	}
	parts := []string{header, m.theme.panel.Render(body)}
	if p := m.renderPrompt(); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, m.renderFooter())
	return m.theme.root.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) renderHeader() string {
	tab := func(label string, active bool) string {
		if active {
			return m.theme.tabActive.Render(label)
		}
		return m.theme.tabInactive.Render(label)
	}
	agency := m.nav.Tab() == TabAgency
	row := lipgloss.JoinHorizontal(lipgloss.Top,
		tab("1 Agents", agency && m.nav.SubTab() == SubTabAgents), " ",
		tab("2 Missions", agency && m.nav.SubTab() == SubTabMissions), " ",
		tab("3 Spy Cats", !agency),
	)
	title := m.theme.panelTitle.Render("SPY CAT AGENCY")
	if m.inflight > 0 {
		title += " " + m.spinner.View() + " " + m.theme.muted.Render(m.status)
	} else if m.status != "" {
		title += " " + m.theme.muted.Render(m.status)
	}
	return m.theme.header.Render(title + "\n" + row)
}

func (m Model) renderNotice(n console.Notice) string {
	if !n.Visible(m.views.Now()) {
		return ""
	}
	switch n.Kind {
	case console.NoticeSuccess:
		return m.theme.success.Render(n.Text)
	case console.NoticeBlocking:
		return m.theme.blocking.Render(n.Text) + m.theme.muted.Render("  (esc to dismiss)")
	default:
		return m.theme.errorStatus.Render(n.Text)
	}
}

func (m Model) line(active bool, text string) string {
	if active {
		return m.theme.cursor.Render("> ") + text
	}
	return "  " + text
}

func (m Model) renderAgents() string {
	snap := m.views.Registry.Snapshot()
	var b strings.Builder
	b.WriteString(m.theme.panelTitle.Render("Agents") + "\n")
	if n := m.renderNotice(snap.Notice); n != "" {
		b.WriteString(n + "\n")
	}
	switch snap.State {
	case console.Loading, console.LoadIdle:
		b.WriteString(m.theme.muted.Render("Loading spy cats...") + "\n")
		return b.String()
	case console.LoadFailed:
		b.WriteString(m.theme.muted.Render("press r to retry") + "\n")
		return b.String()
	}
	if len(snap.Agents) == 0 {
		b.WriteString(m.theme.muted.Render("No spy cats recruited yet.") + "\n")
	}
	for i, a := range snap.Agents {
		salary := "$" + humanize.Commaf(a.Salary)
		if snap.Edit != nil && snap.Edit.AgentID == a.ID {
			salary = fmt.Sprintf("$%s (editing, %s)", humanize.Commaf(snap.Edit.Draft), snap.Edit.State)
		}
		row := fmt.Sprintf("#%-3d %-16s %-18s %2dy  %-22s %s", a.ID, a.Name, a.Breed, a.YearsOfExperience, salary, m.theme.badge(a.StatusLabel()))
		if snap.Deletes[a.ID] == console.RequestPending {
			row += m.theme.muted.Render("  terminating...")
		}
		b.WriteString(m.line(i == m.agentCursor, row) + "\n")
	}
	if len(snap.DraftProblems) > 0 && snap.Draft != (console.AgentDraft{}) {
		b.WriteString(m.theme.muted.Render("draft: "+strings.Join(snap.DraftProblems, "; ")) + "\n")
	}
	return b.String()
}

func (m Model) renderMissions() string {
	snap := m.views.Roster.Snapshot()
	var b strings.Builder
	b.WriteString(m.theme.panelTitle.Render("Missions") + "\n")
	if n := m.renderNotice(snap.Notice); n != "" {
		b.WriteString(n + "\n")
	}
	switch snap.State {
	case console.Loading, console.LoadIdle:
		b.WriteString(m.theme.muted.Render("Loading missions...") + "\n")
		return b.String()
	case console.LoadFailed:
		b.WriteString(m.theme.muted.Render("press r to retry") + "\n")
		return b.String()
	}
	if len(snap.Missions) == 0 {
		b.WriteString(m.theme.muted.Render("No missions yet.") + "\n")
	}
	for i, ms := range snap.Missions {
		agent := "unassigned"
		if ms.Agent != nil {
			agent = ms.Agent.Name
		}
		row := fmt.Sprintf("#%-3d %-28s %-12s %-12s %d/%d targets",
			ms.ID, ms.Name, m.theme.badge(string(snap.Statuses[ms.ID])), agent, len(ms.Targets), agencysdk.MaxTargets)
		b.WriteString(m.line(i == m.missionCursor, row) + "\n")
		if !snap.ManageTargets[ms.ID] {
			continue
		}
		for _, t := range ms.Targets {
			b.WriteString(fmt.Sprintf("      - %-20s %-14s %s\n", t.Name, t.Country, m.theme.badge(string(t.Status))))
			if snap.NotesOpen[t.ID] {
				notes := t.NotesText()
				if notes == "" {
					notes = "(no notes)"
				}
				b.WriteString(m.theme.muted.Render("          "+notes) + "\n")
			}
		}
	}
	if d := snap.Dialog; d != nil {
		b.WriteString("\n" + m.theme.panelTitle.Render("Assign spy cat") + "\n")
		switch {
		case d.State == console.Loading:
			b.WriteString(m.theme.muted.Render("Loading available spy cats...") + "\n")
		case len(d.FreeAgents) == 0:
			b.WriteString(m.theme.muted.Render("No spy cats on standby.") + "\n")
		}
		for i, a := range d.FreeAgents {
			row := fmt.Sprintf("%s (%s, %dy)", a.Name, a.Breed, a.YearsOfExperience)
			if a.ID == d.SelectedAgent {
				row += " *"
			}
			b.WriteString(m.line(i == m.dialogCursor, row) + "\n")
		}
		if d.Submitting {
			b.WriteString(m.theme.muted.Render("Assigning...") + "\n")
		}
	}
	return b.String()
}

func (m Model) renderSpyCats() string {
	var b strings.Builder
	agentID, selected := m.nav.SelectedAgent()
	if !selected {
		b.WriteString(m.theme.panelTitle.Render("Choose a spy cat") + "\n")
		for i, a := range m.views.Registry.Snapshot().Agents {
			b.WriteString(m.line(i == m.agentCursor, fmt.Sprintf("%s  %s", a.Name, m.theme.badge(a.StatusLabel()))) + "\n")
		}
		return b.String()
	}

	snap := m.views.Dashboard.Snapshot()
	b.WriteString(m.theme.panelTitle.Render(fmt.Sprintf("Field dashboard: agent #%d", agentID)) + "\n")
	if n := m.renderNotice(snap.Notice); n != "" {
		b.WriteString(n + "\n")
	}
	switch snap.State {
	case console.DashboardLoading, console.DashboardIdle:
		b.WriteString(m.theme.muted.Render("Loading mission...") + "\n")
		return b.String()
	case console.DashboardLoadFailed:
		b.WriteString(m.theme.muted.Render("press r to retry") + "\n")
		return b.String()
	case console.DashboardNoMission:
		b.WriteString("On standby. No active mission.\n")
		return b.String()
	}
	ms := snap.Mission
	b.WriteString(fmt.Sprintf("%s  %s\n%s\n", ms.Name, m.theme.badge(string(snap.Status)), m.theme.muted.Render(ms.Description)))
	if ms.EndDate != nil {
		b.WriteString(m.theme.muted.Render("due "+humanize.Time(*ms.EndDate)) + "\n")
	}
	if snap.State == console.DashboardMissionCompleted {
		b.WriteString(m.theme.success.Render("Mission accomplished.") + "\n")
	}
	for i, t := range ms.Targets {
		row := fmt.Sprintf("%-20s %-14s %s", t.Name, t.Country, m.theme.badge(string(t.Status)))
		if snap.Updates[t.ID] == console.RequestPending {
			row += m.theme.muted.Render("  saving...")
		}
		b.WriteString(m.line(i == m.targetCursor, row) + "\n")
		if notes := t.NotesText(); notes != "" {
			b.WriteString(m.theme.muted.Render("    "+notes) + "\n")
		}
	}
	if snap.ReloadScheduled {
		b.WriteString(m.theme.muted.Render("All targets completed, confirming with HQ...") + "\n")
	}
	return b.String()
}

func (m Model) renderPrompt() string {
	switch {
	case m.form != nil:
		f := m.form
		return m.theme.prompt.Render(fmt.Sprintf("%s\n%s\n%s", m.theme.panelTitle.Render(f.title), f.current().label, m.input.View()))
	case m.confirm != nil:
		return m.theme.prompt.Render(m.confirm.prompt + "  [y/n]")
	}
	return ""
}

func (m Model) renderFooter() string {
	var keys string
	switch {
	case m.form != nil:
		keys = "enter next · esc cancel"
	case m.nav.Tab() == TabSpyCats:
		if _, ok := m.nav.SelectedAgent(); ok {
			keys = "s advance status · n notes · r reload · b standby · esc back"
		} else {
			keys = "enter select · r reload"
		}
	case m.nav.SubTab() == SubTabMissions:
		keys = "n new · d delete · a assign · t targets · o notes · + add target · - remove target · r reload"
	default:
		keys = "n recruit · e salary · d terminate · r reload"
	}
	return m.theme.footer.Render(keys + " · tab switch · q quit")
}
