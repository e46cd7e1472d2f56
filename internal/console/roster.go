package console

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	agencysdk "spyagency/sdk/go"
)

const (
	msgMissionsLoadFailed  = "Failed to load missions. Please try again."
	msgMissionCreateFailed = "Failed to create mission. Please try again."
	msgMissionDeleteFailed = "Failed to delete mission. Please try again."
	msgMissionAssigned     = "Cannot delete mission with assigned agent. Please unassign the agent first."
	msgFreeAgentsFailed    = "Failed to load available cats."
	msgAssignFailed        = "Failed to assign cat to mission. Please try again."
	msgTargetAddFailed     = "Failed to add target. Please try again."
	msgTargetDeleteFailed  = "Failed to delete target. Please try again."
	msgTargetNotDeletable  = `Only targets in "init" status can be deleted.`
)

// MissionDraft is the mission creation form.
type MissionDraft struct {
	Name        string
	Description string
	StartDate   *time.Time
	EndDate     *time.Time
	Targets     []agencysdk.TargetDraft
}

// Ready reports whether the draft may be submitted.
func (d MissionDraft) Ready() bool {
	return strings.TrimSpace(d.Name) != "" &&
		strings.TrimSpace(d.Description) != "" &&
		len(d.Targets) >= agencysdk.MinTargets &&
		len(d.Targets) <= agencysdk.MaxTargets
}

func (d MissionDraft) request() agencysdk.CreateMissionRequest {
	return agencysdk.CreateMissionRequest{
		Name:        strings.TrimSpace(d.Name),
		Description: strings.TrimSpace(d.Description),
		StartDate:   d.StartDate,
		EndDate:     d.EndDate,
		Targets:     append([]agencysdk.TargetDraft(nil), d.Targets...),
	}
}

// TargetInput is a pending name/country pair typed into a target form.
type TargetInput struct {
	Name    string
	Country string
}

func (in TargetInput) complete() bool {
	return strings.TrimSpace(in.Name) != "" && strings.TrimSpace(in.Country) != ""
}

func (in TargetInput) trimmed() agencysdk.TargetDraft {
	return agencysdk.TargetDraft{Name: strings.TrimSpace(in.Name), Country: strings.TrimSpace(in.Country)}
}

// AssignDialog is the agent picker for one mission.
type AssignDialog struct {
	MissionID     int64
	State         LoadState
	FreeAgents    []agencysdk.Agent
	SelectedAgent int64
	Submitting    bool
}

// RosterSnapshot is a copy of the roster's state for rendering.
type RosterSnapshot struct {
	State         LoadState
	Missions      []agencysdk.Mission
	Statuses      map[int64]agencysdk.MissionStatus
	FormOpen      bool
	Draft         MissionDraft
	DraftInput    TargetInput
	CanSubmit     bool
	Creating      bool
	Deletes       map[int64]RequestState
	Dialog        *AssignDialog
	ManageTargets map[int64]bool
	TargetInputs  map[int64]TargetInput
	TargetAdds    map[int64]RequestState
	TargetDeletes map[int64]RequestState
	NotesOpen     map[int64]bool
	Notice        Notice
}

// Roster is the mission list view-model.
type Roster struct {
	gw   MissionGateway
	opts Options

	mu         sync.Mutex
	closed     bool
	state      LoadState
	missions   []agencysdk.Mission
	formOpen   bool
	draft      MissionDraft
	draftInput TargetInput
	creating   bool
	deletes    RequestTable
	dialog     *AssignDialog
	dialogSeq  uint64
	manage     map[int64]bool
	inputs     map[int64]TargetInput
	adds       RequestTable
	tdeletes   RequestTable
	notesOpen  map[int64]bool
	notice     Notice
	// loadNotice is the last load failure, cleared by the next good load
	// while it is still the notice shown.
	loadNotice Notice
}

func NewRoster(gw MissionGateway, opts Options) *Roster {
	return &Roster{
		gw:        gw,
		opts:      opts,
		manage:    map[int64]bool{},
		inputs:    map[int64]TargetInput{},
		notesOpen: map[int64]bool{},
	}
}

func (r *Roster) Load(ctx context.Context) error {
	r.mu.Lock()
	r.state = Loading
	r.mu.Unlock()

	missions, err := r.gw.ListMissions(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	if err != nil {
		r.state = LoadFailed
		r.missions = nil
		r.notice = errorNotice(DisplayMessage(err, msgMissionsLoadFailed))
		r.loadNotice = r.notice
		return err
	}
	if r.notice == r.loadNotice {
		r.notice = Notice{}
	}
	r.loadNotice = Notice{}
	r.state = Loaded
	r.missions = missions
	return nil
}

// ToggleCreateForm opens or closes the creation form. Closing discards the draft.
func (r *Roster) ToggleCreateForm() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formOpen = !r.formOpen
	if !r.formOpen {
		r.draft = MissionDraft{}
		r.draftInput = TargetInput{}
		if r.notice.Kind == NoticeError {
			r.notice = Notice{}
		}
	}
}

func (r *Roster) SetDraftDetails(name, description string, start, end *time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draft.Name = name
	r.draft.Description = description
	r.draft.StartDate = start
	r.draft.EndDate = end
}

func (r *Roster) SetDraftTargetInput(name, country string) {
	r.mu.Lock()
	r.draftInput = TargetInput{Name: name, Country: country}
	r.mu.Unlock()
}

// AddDraftTarget moves the pending target input into the draft. It is a
// no-op returning false when the input is incomplete or the draft is full.
func (r *Roster) AddDraftTarget() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.draftInput.complete() || len(r.draft.Targets) >= agencysdk.MaxTargets {
		return false
	}
	r.draft.Targets = append(r.draft.Targets, r.draftInput.trimmed())
	r.draftInput = TargetInput{}
	return true
}

func (r *Roster) RemoveDraftTarget(i int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i < 0 || i >= len(r.draft.Targets) {
		return false
	}
	r.draft.Targets = append(r.draft.Targets[:i:i], r.draft.Targets[i+1:]...)
	return true
}

func (r *Roster) CanSubmit() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draft.Ready() && !r.creating
}

// Create submits the draft. Success appends the mission, clears the draft and
// closes the form; failure keeps the draft for correction.
func (r *Roster) Create(ctx context.Context) (agencysdk.Mission, error) {
	r.mu.Lock()
	if !r.draft.Ready() {
		r.mu.Unlock()
		return agencysdk.Mission{}, ErrDraftIncomplete
	}
	if r.creating {
		r.mu.Unlock()
		return agencysdk.Mission{}, ErrBusy
	}
	r.creating = true
	req := r.draft.request()
	r.mu.Unlock()

	m, err := r.gw.CreateMission(ctx, req)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.creating = false
	if r.closed {
		return m, err
	}
	if err != nil {
		r.notice = errorNotice(DisplayMessage(err, msgMissionCreateFailed))
		return agencysdk.Mission{}, err
	}
	r.missions = append(r.missions, m)
	r.draft = MissionDraft{}
	r.draftInput = TargetInput{}
	r.formOpen = false
	r.notice = successNotice(fmt.Sprintf("Mission %q has been created.", m.Name), r.opts.now(), r.opts.noticeTTL())
	return m, nil
}

// Delete removes a mission after confirmation. Missions with an assigned
// agent are refused locally.
func (r *Roster) Delete(ctx context.Context, id int64, confirm ConfirmFunc) error {
	r.mu.Lock()
	i := r.indexLocked(id)
	if i < 0 {
		r.mu.Unlock()
		return ErrUnknownMission
	}
	m := r.missions[i]
	if m.Assigned() {
		r.notice = blockingNotice(msgMissionAssigned)
		r.mu.Unlock()
		return ErrMissionAssigned
	}
	r.mu.Unlock()

	if !confirmed(confirm, fmt.Sprintf("Are you sure you want to delete mission %q?", m.Name)) {
		return ErrNotConfirmed
	}

	r.mu.Lock()
	if !r.deletes.Begin(id) {
		r.mu.Unlock()
		return ErrBusy
	}
	r.mu.Unlock()

	err := r.gw.DeleteMission(ctx, id)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return err
	}
	if err != nil {
		r.deletes.Fail(id)
		r.notice = errorNotice(DisplayMessage(err, msgMissionDeleteFailed))
		return err
	}
	r.deletes.Succeed(id)
	if i := r.indexLocked(id); i >= 0 {
		r.missions = append(r.missions[:i:i], r.missions[i+1:]...)
	}
	delete(r.manage, id)
	delete(r.inputs, id)
	return nil
}

// OpenAssign opens the agent picker for a mission and fetches the agents
// without a mission. The list is fetched fresh on every open.
func (r *Roster) OpenAssign(ctx context.Context, missionID int64) error {
	r.mu.Lock()
	if r.indexLocked(missionID) < 0 {
		r.mu.Unlock()
		return ErrUnknownMission
	}
	r.dialogSeq++
	seq := r.dialogSeq
	r.dialog = &AssignDialog{MissionID: missionID, State: Loading}
	r.mu.Unlock()

	agents, err := r.gw.ListFreeAgents(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.dialog == nil || r.dialogSeq != seq {
		return err
	}
	if err != nil {
		r.dialog.State = LoadFailed
		r.notice = errorNotice(DisplayMessage(err, msgFreeAgentsFailed))
		return err
	}
	r.dialog.State = Loaded
	r.dialog.FreeAgents = agents
	return nil
}

// SelectAgent picks one of the free agents in the open dialog.
func (r *Roster) SelectAgent(agentID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dialog == nil {
		return ErrDialogClosed
	}
	for _, a := range r.dialog.FreeAgents {
		if a.ID == agentID {
			r.dialog.SelectedAgent = agentID
			return nil
		}
	}
	return ErrUnknownAgent
}

// Assign sends the selected agent. Success replaces the mission and closes
// the dialog; failure leaves the dialog open.
func (r *Roster) Assign(ctx context.Context) (agencysdk.Mission, error) {
	r.mu.Lock()
	d := r.dialog
	if d == nil {
		r.mu.Unlock()
		return agencysdk.Mission{}, ErrDialogClosed
	}
	if d.SelectedAgent == 0 {
		r.mu.Unlock()
		return agencysdk.Mission{}, ErrNoAgentChosen
	}
	if d.Submitting {
		r.mu.Unlock()
		return agencysdk.Mission{}, ErrBusy
	}
	d.Submitting = true
	missionID, agentID := d.MissionID, d.SelectedAgent
	r.mu.Unlock()

	m, err := r.gw.AssignAgent(ctx, missionID, agentID)

	r.mu.Lock()
	defer r.mu.Unlock()
	d.Submitting = false
	if r.closed {
		return m, err
	}
	if err != nil {
		r.notice = errorNotice(DisplayMessage(err, msgAssignFailed))
		return agencysdk.Mission{}, err
	}
	if i := r.indexLocked(m.ID); i >= 0 {
		r.missions[i] = m
	}
	if r.dialog == d {
		r.closeAssignLocked()
	}
	return m, nil
}

func (r *Roster) CloseAssign() {
	r.mu.Lock()
	r.closeAssignLocked()
	r.mu.Unlock()
}

func (r *Roster) closeAssignLocked() {
	r.dialog = nil
	r.dialogSeq++
}

// StatusOf derives a mission's status label at the current time.
func (r *Roster) StatusOf(id int64) (agencysdk.MissionStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexLocked(id)
	if i < 0 {
		return "", false
	}
	return r.missions[i].StatusAt(r.opts.now()), true
}

func (r *Roster) ToggleTargets(missionID int64) {
	r.mu.Lock()
	r.manage[missionID] = !r.manage[missionID]
	r.mu.Unlock()
}

func (r *Roster) SetTargetInput(missionID int64, name, country string) {
	r.mu.Lock()
	r.inputs[missionID] = TargetInput{Name: name, Country: country}
	r.mu.Unlock()
}

// CanAddTarget reports whether the mission's target input may be submitted.
func (r *Roster) CanAddTarget(missionID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addTargetErrLocked(missionID) == nil
}

func (r *Roster) addTargetErrLocked(missionID int64) error {
	i := r.indexLocked(missionID)
	switch {
	case i < 0:
		return ErrUnknownMission
	case !r.missions[i].CanAddTarget():
		return ErrTargetLimit
	case !r.inputs[missionID].complete():
		return ErrTargetInputIncomplete
	case r.adds.Pending(missionID):
		return ErrBusy
	}
	return nil
}

// AddTarget appends a target to an existing mission from its target input.
func (r *Roster) AddTarget(ctx context.Context, missionID int64) (agencysdk.Target, error) {
	r.mu.Lock()
	if err := r.addTargetErrLocked(missionID); err != nil {
		r.mu.Unlock()
		return agencysdk.Target{}, err
	}
	r.adds.Begin(missionID)
	in := r.inputs[missionID].trimmed()
	r.mu.Unlock()

	t, err := r.gw.AddTarget(ctx, missionID, agencysdk.AddTargetRequest{Name: in.Name, Country: in.Country})

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return t, err
	}
	if err != nil {
		r.adds.Fail(missionID)
		r.notice = errorNotice(DisplayMessage(err, msgTargetAddFailed))
		return agencysdk.Target{}, err
	}
	r.adds.Succeed(missionID)
	if i := r.indexLocked(missionID); i >= 0 {
		r.missions[i].Targets = append(append([]agencysdk.Target(nil), r.missions[i].Targets...), t)
	}
	r.inputs[missionID] = TargetInput{}
	return t, nil
}

// DeleteTarget removes a target still in init status after confirmation.
func (r *Roster) DeleteTarget(ctx context.Context, missionID, targetID int64, confirm ConfirmFunc) error {
	r.mu.Lock()
	i := r.indexLocked(missionID)
	if i < 0 {
		r.mu.Unlock()
		return ErrUnknownMission
	}
	t, ok := findTarget(r.missions[i].Targets, targetID)
	if !ok {
		r.mu.Unlock()
		return ErrUnknownTarget
	}
	if t.Status != agencysdk.TargetInit {
		r.notice = blockingNotice(msgTargetNotDeletable)
		r.mu.Unlock()
		return ErrTargetNotDeletable
	}
	r.mu.Unlock()

	if !confirmed(confirm, fmt.Sprintf("Are you sure you want to delete target %q?", t.Name)) {
		return ErrNotConfirmed
	}

	r.mu.Lock()
	if !r.tdeletes.Begin(targetID) {
		r.mu.Unlock()
		return ErrBusy
	}
	r.mu.Unlock()

	err := r.gw.DeleteTarget(ctx, missionID, targetID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return err
	}
	if err != nil {
		r.tdeletes.Fail(targetID)
		r.notice = errorNotice(DisplayMessage(err, msgTargetDeleteFailed))
		return err
	}
	r.tdeletes.Succeed(targetID)
	if i := r.indexLocked(missionID); i >= 0 {
		kept := make([]agencysdk.Target, 0, len(r.missions[i].Targets))
		for _, x := range r.missions[i].Targets {
			if x.ID != targetID {
				kept = append(kept, x)
			}
		}
		r.missions[i].Targets = kept
	}
	delete(r.notesOpen, targetID)
	return nil
}

// ToggleNotes expands or collapses a target's notes.
func (r *Roster) ToggleNotes(targetID int64) {
	r.mu.Lock()
	r.notesOpen[targetID] = !r.notesOpen[targetID]
	r.mu.Unlock()
}

func (r *Roster) DismissNotice() {
	r.mu.Lock()
	r.notice = Notice{}
	r.mu.Unlock()
}

func (r *Roster) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

func (r *Roster) Snapshot() RosterSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.opts.now()
	s := RosterSnapshot{
		State:         r.state,
		Missions:      make([]agencysdk.Mission, len(r.missions)),
		Statuses:      make(map[int64]agencysdk.MissionStatus, len(r.missions)),
		FormOpen:      r.formOpen,
		Draft:         r.draft,
		DraftInput:    r.draftInput,
		CanSubmit:     r.draft.Ready() && !r.creating,
		Creating:      r.creating,
		Deletes:       r.deletes.Snapshot(),
		ManageTargets: copyMap(r.manage),
		TargetInputs:  copyMap(r.inputs),
		TargetAdds:    r.adds.Snapshot(),
		TargetDeletes: r.tdeletes.Snapshot(),
		NotesOpen:     copyMap(r.notesOpen),
		Notice:        r.notice.at(now),
	}
	s.Draft.Targets = append([]agencysdk.TargetDraft(nil), r.draft.Targets...)
	for i, m := range r.missions {
		s.Missions[i] = copyMission(m)
		s.Statuses[m.ID] = m.StatusAt(now)
	}
	if r.dialog != nil {
		d := *r.dialog
		d.FreeAgents = append([]agencysdk.Agent(nil), r.dialog.FreeAgents...)
		s.Dialog = &d
	}
	return s
}

func (r *Roster) indexLocked(id int64) int {
	for i := range r.missions {
		if r.missions[i].ID == id {
			return i
		}
	}
	return -1
}

func findTarget(targets []agencysdk.Target, id int64) (agencysdk.Target, bool) {
	for _, t := range targets {
		if t.ID == id {
			return t, true
		}
	}
	return agencysdk.Target{}, false
}

func copyMission(m agencysdk.Mission) agencysdk.Mission {
	m.Targets = append([]agencysdk.Target(nil), m.Targets...)
	return m
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
