package console

import (
	"context"
	"errors"
	"sync"
	"time"

	agencysdk "spyagency/sdk/go"
)

const (
	msgMissionLoadFailed = "Failed to load mission data. Please try again."
	msgStatusFailed      = "Failed to update target status. Please try again."
	msgNotesFailed       = "Failed to update target notes. Please try again."
)

// DashboardState is the load state of the selected agent's mission.
type DashboardState int

const (
	DashboardIdle DashboardState = iota
	DashboardLoading
	DashboardNoMission
	DashboardMissionActive
	DashboardMissionCompleted
	DashboardLoadFailed
)

func (s DashboardState) String() string {
	switch s {
	case DashboardLoading:
		return "loading"
	case DashboardNoMission:
		return "no_mission"
	case DashboardMissionActive:
		return "mission_active"
	case DashboardMissionCompleted:
		return "mission_completed"
	case DashboardLoadFailed:
		return "load_failed"
	default:
		return "idle"
	}
}

// DashboardSnapshot is a copy of the dashboard's state for rendering.
type DashboardSnapshot struct {
	AgentID         int64
	State           DashboardState
	Mission         *agencysdk.Mission
	Status          agencysdk.MissionStatus
	Updates         map[int64]RequestState
	NotesDrafts     map[int64]string
	ReloadScheduled bool
	Notice          Notice
}

// Dashboard is the field view of one agent's current mission.
//
// Every Select starts a new generation; results settling for an older
// generation are dropped. When an update leaves every target completed, a
// reload is scheduled after the completion delay so the backend's completion
// flag is picked up.
type Dashboard struct {
	gw   FieldGateway
	opts Options

	mu       sync.Mutex
	closed   bool
	selected bool
	agentID  int64
	gen      uint64
	state    DashboardState
	mission  *agencysdk.Mission
	updates  RequestTable
	drafts   map[int64]string
	notice   Notice
	// loadNotice marks notice as a load failure, cleared by the next good load.
	loadNotice bool
	reload     *time.Timer
	reloads    sync.WaitGroup
}

func NewDashboard(gw FieldGateway, opts Options) *Dashboard {
	return &Dashboard{gw: gw, opts: opts, drafts: map[int64]string{}}
}

// Select switches the dashboard to agentID and loads its mission.
func (d *Dashboard) Select(ctx context.Context, agentID int64) error {
	d.mu.Lock()
	d.gen++
	d.selected = true
	d.agentID = agentID
	d.mission = nil
	d.state = DashboardIdle
	d.updates.Reset()
	d.drafts = map[int64]string{}
	d.notice = Notice{}
	d.loadNotice = false
	d.cancelReloadLocked()
	d.mu.Unlock()
	return d.Reload(ctx)
}

// Reload fetches the selected agent's mission. 204 means no mission.
func (d *Dashboard) Reload(ctx context.Context) error {
	d.mu.Lock()
	if !d.selected {
		d.mu.Unlock()
		return ErrNoAgentSelected
	}
	gen, agentID := d.gen, d.agentID
	d.state = DashboardLoading
	d.mu.Unlock()

	m, err := d.gw.GetAgentMission(ctx, agentID)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || gen != d.gen {
		return nil
	}
	if err != nil {
		d.state = DashboardLoadFailed
		d.mission = nil
		d.notice = errorNotice(DisplayMessage(err, msgMissionLoadFailed))
		d.loadNotice = true
		return err
	}
	if d.loadNotice {
		d.notice = Notice{}
		d.loadNotice = false
	}
	d.mission = m
	switch {
	case m == nil:
		d.state = DashboardNoMission
	case m.IsCompleted:
		d.state = DashboardMissionCompleted
	default:
		d.state = DashboardMissionActive
	}
	return nil
}

// UpdateTargetStatus sends a status change for one target. Completed targets
// and targets with an update in flight are refused without a request. A
// failed update always triggers a reload to resync with the backend.
func (d *Dashboard) UpdateTargetStatus(ctx context.Context, targetID int64, status agencysdk.TargetStatus) (agencysdk.Target, error) {
	return d.updateTarget(ctx, targetID, msgStatusFailed, func(agentID int64) (agencysdk.Target, error) {
		return d.gw.UpdateTargetStatus(ctx, agentID, targetID, status)
	})
}

// UpdateTargetNotes replaces a target's notes.
func (d *Dashboard) UpdateTargetNotes(ctx context.Context, targetID int64, notes string) (agencysdk.Target, error) {
	return d.updateTarget(ctx, targetID, msgNotesFailed, func(agentID int64) (agencysdk.Target, error) {
		return d.gw.UpdateTargetNotes(ctx, agentID, targetID, notes)
	})
}

func (d *Dashboard) updateTarget(ctx context.Context, targetID int64, fallback string, call func(agentID int64) (agencysdk.Target, error)) (agencysdk.Target, error) {
	d.mu.Lock()
	t, err := d.targetLocked(targetID)
	if err != nil {
		d.mu.Unlock()
		return agencysdk.Target{}, err
	}
	if t.IsFinal() {
		d.mu.Unlock()
		return agencysdk.Target{}, ErrTargetFinal
	}
	if !d.updates.Begin(targetID) {
		d.mu.Unlock()
		return agencysdk.Target{}, ErrUpdateInFlight
	}
	gen, agentID := d.gen, d.agentID
	if d.notice.Kind == NoticeError {
		d.notice = Notice{}
		d.loadNotice = false
	}
	d.mu.Unlock()

	updated, err := call(agentID)

	d.mu.Lock()
	if d.closed || gen != d.gen {
		d.mu.Unlock()
		return updated, err
	}
	if err != nil {
		d.updates.Fail(targetID)
		d.notice = errorNotice(DisplayMessage(err, fallback))
		d.loadNotice = false
		d.mu.Unlock()
		if rerr := d.Reload(ctx); rerr != nil {
			d.opts.logger().Warn("reload after failed update", "agent_id", agentID, "error", rerr)
		}
		return agencysdk.Target{}, err
	}
	d.updates.Succeed(targetID)
	merged := d.mergeLocked(targetID, updated)
	if d.mission != nil && d.mission.AllTargetsCompleted() && !d.mission.IsCompleted {
		d.scheduleReloadLocked()
	}
	d.mu.Unlock()
	return merged, nil
}

// SetNotesDraft stages notes for a target until CommitNotes.
func (d *Dashboard) SetNotesDraft(targetID int64, notes string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.targetLocked(targetID)
	if err != nil {
		return err
	}
	if t.IsFinal() {
		return ErrTargetFinal
	}
	d.drafts[targetID] = notes
	return nil
}

// CommitNotes sends the staged notes. Without a staged change it returns the
// current target and sends nothing.
func (d *Dashboard) CommitNotes(ctx context.Context, targetID int64) (agencysdk.Target, error) {
	d.mu.Lock()
	t, err := d.targetLocked(targetID)
	if err != nil {
		d.mu.Unlock()
		return agencysdk.Target{}, err
	}
	draft, ok := d.drafts[targetID]
	if !ok || draft == t.NotesText() {
		delete(d.drafts, targetID)
		d.mu.Unlock()
		return t, nil
	}
	d.mu.Unlock()

	updated, err := d.UpdateTargetNotes(ctx, targetID, draft)
	if !errors.Is(err, ErrUpdateInFlight) {
		d.mu.Lock()
		delete(d.drafts, targetID)
		d.mu.Unlock()
	}
	return updated, err
}

// ReturnToStandby drops the loaded mission locally. Nothing is sent and
// results still in flight are discarded.
func (d *Dashboard) ReturnToStandby() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	d.cancelReloadLocked()
	d.updates.Reset()
	d.mission = nil
	d.drafts = map[int64]string{}
	if d.selected {
		d.state = DashboardNoMission
	}
}

func (d *Dashboard) DismissNotice() {
	d.mu.Lock()
	d.notice = Notice{}
	d.mu.Unlock()
}

// Close detaches the dashboard and cancels a pending completion reload.
func (d *Dashboard) Close() {
	d.mu.Lock()
	d.closed = true
	d.cancelReloadLocked()
	d.mu.Unlock()
}

// Wait blocks until any scheduled completion reload has run or been cancelled.
// Call it only after the update calls that may schedule a reload have
// returned; a reload scheduled while Wait is blocked is not waited for.
func (d *Dashboard) Wait() {
	d.reloads.Wait()
}

func (d *Dashboard) Snapshot() DashboardSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := DashboardSnapshot{
		AgentID:         d.agentID,
		State:           d.state,
		Updates:         d.updates.Snapshot(),
		NotesDrafts:     copyMap(d.drafts),
		ReloadScheduled: d.reload != nil,
		Notice:          d.notice.at(d.opts.now()),
	}
	if d.mission != nil {
		m := copyMission(*d.mission)
		s.Mission = &m
		s.Status = m.StatusAt(d.opts.now())
	}
	return s
}

func (d *Dashboard) targetLocked(targetID int64) (agencysdk.Target, error) {
	if d.mission == nil {
		return agencysdk.Target{}, ErrNoMission
	}
	t, ok := findTarget(d.mission.Targets, targetID)
	if !ok {
		return agencysdk.Target{}, ErrUnknownTarget
	}
	return t, nil
}

func (d *Dashboard) mergeLocked(targetID int64, src agencysdk.Target) agencysdk.Target {
	if d.mission == nil {
		return src
	}
	targets := append([]agencysdk.Target(nil), d.mission.Targets...)
	for i := range targets {
		if targets[i].ID == targetID {
			mergeTarget(&targets[i], src)
			d.mission.Targets = targets
			return targets[i]
		}
	}
	return src
}

// mergeTarget overlays the non-zero fields of src onto dst. dst keeps its id.
func mergeTarget(dst *agencysdk.Target, src agencysdk.Target) {
	if src.MissionID != 0 {
		dst.MissionID = src.MissionID
	}
	if src.Name != "" {
		dst.Name = src.Name
	}
	if src.Country != "" {
		dst.Country = src.Country
	}
	if src.Notes != nil {
		dst.Notes = src.Notes
	}
	if src.Status != "" {
		dst.Status = src.Status
	}
	if !src.CreatedAt.IsZero() {
		dst.CreatedAt = src.CreatedAt
	}
	if !src.UpdatedAt.IsZero() {
		dst.UpdatedAt = src.UpdatedAt
	}
}

func (d *Dashboard) scheduleReloadLocked() {
	if d.reload != nil {
		return
	}
	gen := d.gen
	d.reloads.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(d.opts.reloadDelay(), func() {
		defer d.reloads.Done()
		d.mu.Lock()
		stale := d.closed || gen != d.gen || d.reload != timer
		if d.reload == timer {
			d.reload = nil
		}
		d.mu.Unlock()
		if stale {
			return
		}
		if err := d.Reload(context.Background()); err != nil {
			d.opts.logger().Warn("completion reload failed", "error", err)
		}
	})
	d.reload = timer
}

func (d *Dashboard) cancelReloadLocked() {
	if d.reload == nil {
		return
	}
	if d.reload.Stop() {
		d.reloads.Done()
	}
	d.reload = nil
}
