package console

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spyagency/internal/app"
	"spyagency/internal/engine"
	"spyagency/internal/server"
	agencysdk "spyagency/sdk/go"
)

// newSandbox serves a fresh sandbox API on a loopback port and returns a
// gateway client for it.
func newSandbox(t *testing.T) *agencysdk.Client {
	t.Helper()
	conn, err := app.OpenWorkspace(t.TempDir())
	require.NoError(t, err)
	e := engine.New(conn, []string{"Abyssinian", "Bengal", "Maine Coon", "Persian", "Siamese"})
	handler, err := server.New(server.Config{Engine: e})
	require.NoError(t, err)
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		conn.Close()
	})
	return agencysdk.New("http://" + ln.Addr().String() + "/api/v1")
}

func TestSandboxRecruitAndDeleteConflict(t *testing.T) {
	api := newSandbox(t)
	ctx := context.Background()
	clock := newFakeClock()
	reg := NewRegistry(api, Options{Now: clock.Now, NoticeTTL: 5 * time.Second})
	t.Cleanup(reg.Close)

	require.NoError(t, reg.Load(ctx))
	assert.Equal(t, Loaded, reg.Snapshot().State)
	assert.Contains(t, reg.Snapshot().Breeds, "Siamese")

	reg.SetDraft(AgentDraft{Name: "Whiskers", Breed: "Siamese", YearsOfExperience: 3, Salary: 50000})
	whiskers, err := reg.Create(ctx)
	require.NoError(t, err)
	snap := reg.Snapshot()
	require.NotEmpty(t, snap.Agents)
	assert.Equal(t, "Whiskers", snap.Agents[0].Name)
	assert.Equal(t, NoticeSuccess, snap.Notice.Kind)
	assert.Contains(t, snap.Notice.Text, "Whiskers")

	m, err := api.CreateMission(ctx, agencysdk.CreateMissionRequest{
		Name: "Operation Goldfish", Description: "Retrieve the goldfish",
		Targets: []agencysdk.TargetDraft{{Name: "Bubbles", Country: "France"}},
	})
	require.NoError(t, err)
	_, err = api.AssignAgent(ctx, m.ID, whiskers.ID)
	require.NoError(t, err)

	err = reg.Delete(ctx, whiskers.ID, AlwaysConfirm)
	require.Error(t, err)
	assert.Equal(t, ConflictRejected, Classify(err))
	snap = reg.Snapshot()
	assert.Equal(t, "This spy cat is currently assigned to a mission. Please unassign the cat from the mission before deletion.", snap.Notice.Text)
	assert.Equal(t, RequestFailed, snap.Deletes[whiskers.ID])
	assert.Len(t, snap.Agents, 1)
}

func TestSandboxCompletingAllTargetsCompletesMission(t *testing.T) {
	api := newSandbox(t)
	ctx := context.Background()

	cat, err := api.CreateAgent(ctx, agencysdk.CreateAgentRequest{Name: "Mittens", Breed: "Siamese", YearsOfExperience: 7, Salary: 85000})
	require.NoError(t, err)
	roster := NewRoster(api, Options{})
	t.Cleanup(roster.Close)
	require.NoError(t, roster.Load(ctx))

	roster.ToggleCreateForm()
	roster.SetDraftDetails("Project Yarn Ball", "Unravel the plot", nil, nil)
	for _, name := range []string{"Red", "Blue", "Green"} {
		roster.SetDraftTargetInput(name, "Japan")
		require.True(t, roster.AddDraftTarget())
	}
	m, err := roster.Create(ctx)
	require.NoError(t, err)
	require.Len(t, m.Targets, 3)

	require.NoError(t, roster.OpenAssign(ctx, m.ID))
	require.NoError(t, roster.SelectAgent(cat.ID))
	_, err = roster.Assign(ctx)
	require.NoError(t, err)

	dash := NewDashboard(api, Options{CompletionReloadDelay: 10 * time.Millisecond})
	t.Cleanup(dash.Close)
	require.NoError(t, dash.Select(ctx, cat.ID))
	assert.Equal(t, DashboardMissionActive, dash.Snapshot().State)

	for _, target := range m.Targets {
		_, err := dash.UpdateTargetStatus(ctx, target.ID, agencysdk.TargetCompleted)
		require.NoError(t, err)
	}
	assert.True(t, dash.Snapshot().ReloadScheduled)
	dash.Wait()

	snap := dash.Snapshot()
	assert.Equal(t, DashboardMissionCompleted, snap.State)
	require.NotNil(t, snap.Mission)
	assert.True(t, snap.Mission.IsCompleted)
	assert.NotNil(t, snap.Mission.CompletedAt)
	assert.False(t, snap.ReloadScheduled)
	for _, target := range snap.Mission.Targets {
		assert.Equal(t, agencysdk.TargetCompleted, target.Status)
	}

	_, err = dash.UpdateTargetStatus(ctx, m.Targets[0].ID, agencysdk.TargetInProgress)
	assert.ErrorIs(t, err, ErrTargetFinal)
}

func TestSandboxAgentWithoutMission(t *testing.T) {
	api := newSandbox(t)
	ctx := context.Background()

	cat, err := api.CreateAgent(ctx, agencysdk.CreateAgentRequest{Name: "Luna", Breed: "Persian", YearsOfExperience: 2, Salary: 55000})
	require.NoError(t, err)

	dash := NewDashboard(api, Options{})
	t.Cleanup(dash.Close)
	require.NoError(t, dash.Select(ctx, cat.ID))
	snap := dash.Snapshot()
	assert.Equal(t, DashboardNoMission, snap.State)
	assert.Nil(t, snap.Mission)
	assert.Empty(t, snap.Notice.Text)
}
