package console

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agencysdk "spyagency/sdk/go"
)

// missionStore is a tiny backend for dashboard tests: it applies status
// updates and completes the mission once every target is completed.
type missionStore struct {
	mu      sync.Mutex
	mission *agencysdk.Mission
}

func newMissionStore(statuses ...agencysdk.TargetStatus) *missionStore {
	m := &agencysdk.Mission{ID: 1, Name: "Operation Goldfish", Description: "Retrieve the goldfish", CatID: ptr(int64(1))}
	for i, s := range statuses {
		m.Targets = append(m.Targets, agencysdk.Target{ID: int64(i + 1), MissionID: 1, Name: "t", Country: "FR", Status: s})
	}
	return &missionStore{mission: m}
}

func (s *missionStore) get(int64) (*agencysdk.Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mission == nil {
		return nil, nil
	}
	m := copyMission(*s.mission)
	return &m, nil
}

func (s *missionStore) setStatus(_, targetID int64, status agencysdk.TargetStatus) (agencysdk.Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.mission.Targets {
		if s.mission.Targets[i].ID == targetID {
			s.mission.Targets[i].Status = status
			if s.mission.AllTargetsCompleted() {
				s.mission.IsCompleted = true
			}
			return agencysdk.Target{ID: targetID, Status: status}, nil
		}
	}
	return agencysdk.Target{}, &agencysdk.APIError{StatusCode: 404, Code: "Not Found", Details: "target not found"}
}

func newStoreDashboard(t *testing.T, store *missionStore, delay time.Duration) (*Dashboard, *fakeGateway) {
	t.Helper()
	gw := &fakeGateway{agentMission: store.get, updateStatus: store.setStatus}
	d := NewDashboard(gw, Options{CompletionReloadDelay: delay})
	t.Cleanup(d.Close)
	require.NoError(t, d.Select(context.Background(), 1))
	return d, gw
}

func TestDashboardNoMission(t *testing.T) {
	gw := &fakeGateway{}
	d := NewDashboard(gw, Options{})

	assert.ErrorIs(t, d.Reload(context.Background()), ErrNoAgentSelected)
	require.NoError(t, d.Select(context.Background(), 4))
	snap := d.Snapshot()
	assert.Equal(t, DashboardNoMission, snap.State)
	assert.Nil(t, snap.Mission)

	_, err := d.UpdateTargetStatus(context.Background(), 1, agencysdk.TargetInProgress)
	assert.ErrorIs(t, err, ErrNoMission)
}

func TestDashboardLoadFailure(t *testing.T) {
	fail := true
	gw := &fakeGateway{agentMission: func(int64) (*agencysdk.Mission, error) {
		if fail {
			return nil, errors.New("connection reset")
		}
		return nil, nil
	}}
	d := NewDashboard(gw, Options{})

	require.Error(t, d.Select(context.Background(), 1))
	snap := d.Snapshot()
	assert.Equal(t, DashboardLoadFailed, snap.State)
	assert.Equal(t, msgMissionLoadFailed, snap.Notice.Text)

	fail = false
	require.NoError(t, d.Reload(context.Background()))
	snap = d.Snapshot()
	assert.Equal(t, DashboardNoMission, snap.State)
	assert.Empty(t, snap.Notice.Text)
}

func TestDashboardCompletedTargetIsFinal(t *testing.T) {
	store := newMissionStore(agencysdk.TargetCompleted, agencysdk.TargetInit)
	d, gw := newStoreDashboard(t, store, time.Millisecond)

	_, err := d.UpdateTargetStatus(context.Background(), 1, agencysdk.TargetInProgress)
	assert.ErrorIs(t, err, ErrTargetFinal)
	assert.ErrorIs(t, d.SetNotesDraft(1, "late intel"), ErrTargetFinal)
	_, err = d.UpdateTargetStatus(context.Background(), 9, agencysdk.TargetInProgress)
	assert.ErrorIs(t, err, ErrUnknownTarget)
	_, err = d.UpdateTargetNotes(context.Background(), 1, "x")
	assert.ErrorIs(t, err, ErrTargetFinal)
	assert.Zero(t, gw.count("UpdateTargetStatus"))
	assert.Zero(t, gw.count("UpdateTargetNotes"))
}

func TestDashboardSingleUpdateInFlightPerTarget(t *testing.T) {
	store := newMissionStore(agencysdk.TargetInit, agencysdk.TargetInit)
	started := make(chan struct{})
	release := make(chan struct{})
	d, gw := newStoreDashboard(t, store, time.Millisecond)
	gw.updateStatus = func(agentID, targetID int64, status agencysdk.TargetStatus) (agencysdk.Target, error) {
		if targetID == 1 {
			close(started)
			<-release
		}
		return store.setStatus(agentID, targetID, status)
	}

	done := make(chan error, 1)
	go func() {
		_, err := d.UpdateTargetStatus(context.Background(), 1, agencysdk.TargetInProgress)
		done <- err
	}()
	<-started

	_, err := d.UpdateTargetStatus(context.Background(), 1, agencysdk.TargetCompleted)
	assert.ErrorIs(t, err, ErrUpdateInFlight)
	assert.Equal(t, RequestPending, d.Snapshot().Updates[1])

	_, err = d.UpdateTargetStatus(context.Background(), 2, agencysdk.TargetInProgress)
	require.NoError(t, err)

	close(release)
	require.NoError(t, <-done)
	snap := d.Snapshot()
	assert.Equal(t, agencysdk.TargetInProgress, snap.Mission.Targets[0].Status)
	assert.Equal(t, "t", snap.Mission.Targets[0].Name)
	assert.Empty(t, snap.Updates)
	assert.Equal(t, 2, gw.count("UpdateTargetStatus"))
}

func TestDashboardFailedUpdateReloads(t *testing.T) {
	store := newMissionStore(agencysdk.TargetInit)
	d, gw := newStoreDashboard(t, store, time.Millisecond)
	gw.updateStatus = func(int64, int64, agencysdk.TargetStatus) (agencysdk.Target, error) {
		return agencysdk.Target{}, badRequest("invalid status transition")
	}

	_, err := d.UpdateTargetStatus(context.Background(), 1, agencysdk.TargetCompleted)
	require.Error(t, err)
	assert.Equal(t, ValidationRejected, Classify(err))
	assert.Equal(t, 2, gw.count("GetAgentMission"))

	snap := d.Snapshot()
	assert.Equal(t, DashboardMissionActive, snap.State)
	assert.Equal(t, "invalid status transition", snap.Notice.Text)
	assert.Equal(t, RequestFailed, snap.Updates[1])
	assert.Equal(t, agencysdk.TargetInit, snap.Mission.Targets[0].Status)
}

func TestDashboardCompletionSchedulesReload(t *testing.T) {
	store := newMissionStore(agencysdk.TargetInProgress, agencysdk.TargetCompleted, agencysdk.TargetCompleted)
	d, gw := newStoreDashboard(t, store, 10*time.Millisecond)
	assert.Equal(t, DashboardMissionActive, d.Snapshot().State)

	_, err := d.UpdateTargetStatus(context.Background(), 1, agencysdk.TargetCompleted)
	require.NoError(t, err)
	snap := d.Snapshot()
	assert.True(t, snap.ReloadScheduled)
	assert.False(t, snap.Mission.IsCompleted)

	d.Wait()
	snap = d.Snapshot()
	assert.Equal(t, DashboardMissionCompleted, snap.State)
	assert.True(t, snap.Mission.IsCompleted)
	assert.False(t, snap.ReloadScheduled)
	assert.Equal(t, 2, gw.count("GetAgentMission"))
}

func TestDashboardCompletionReloadCancelledOnStandby(t *testing.T) {
	store := newMissionStore(agencysdk.TargetInProgress)
	d, gw := newStoreDashboard(t, store, time.Hour)

	_, err := d.UpdateTargetStatus(context.Background(), 1, agencysdk.TargetCompleted)
	require.NoError(t, err)
	d.ReturnToStandby()
	d.Wait()

	snap := d.Snapshot()
	assert.Equal(t, DashboardNoMission, snap.State)
	assert.Nil(t, snap.Mission)
	assert.Equal(t, 1, gw.count("GetAgentMission"))
}

func TestDashboardSelectDropsStaleResults(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	gw := &fakeGateway{agentMission: func(agentID int64) (*agencysdk.Mission, error) {
		if agentID == 1 {
			close(started)
			<-release
			return &agencysdk.Mission{ID: 1, Name: "Operation Goldfish"}, nil
		}
		return nil, nil
	}}
	d := NewDashboard(gw, Options{})

	done := make(chan error, 1)
	go func() { done <- d.Select(context.Background(), 1) }()
	<-started
	require.NoError(t, d.Select(context.Background(), 4))
	close(release)
	require.NoError(t, <-done)

	snap := d.Snapshot()
	assert.Equal(t, int64(4), snap.AgentID)
	assert.Equal(t, DashboardNoMission, snap.State)
	assert.Nil(t, snap.Mission)
}

func TestDashboardNotes(t *testing.T) {
	store := newMissionStore(agencysdk.TargetInProgress)
	d, gw := newStoreDashboard(t, store, time.Millisecond)
	gw.updateNotes = func(_, targetID int64, notes string) (agencysdk.Target, error) {
		return agencysdk.Target{ID: targetID, Notes: &notes}, nil
	}

	_, err := d.CommitNotes(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, gw.count("UpdateTargetNotes"))

	require.NoError(t, d.SetNotesDraft(1, "seen near the docks"))
	assert.Equal(t, "seen near the docks", d.Snapshot().NotesDrafts[1])
	updated, err := d.CommitNotes(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "seen near the docks", updated.NotesText())
	assert.Equal(t, agencysdk.TargetInProgress, updated.Status)

	snap := d.Snapshot()
	assert.Empty(t, snap.NotesDrafts)
	assert.Equal(t, "seen near the docks", snap.Mission.Targets[0].NotesText())
	assert.Equal(t, 1, gw.count("UpdateTargetNotes"))
}
