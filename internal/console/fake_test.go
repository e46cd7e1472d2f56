package console

import (
	"context"
	"sync"
	"time"

	agencysdk "spyagency/sdk/go"
)

// fakeGateway records calls and answers from per-method hooks. A nil hook
// returns zero values.
type fakeGateway struct {
	mu    sync.Mutex
	calls []string

	listAgents   func() (agencysdk.AgentList, error)
	listBreeds   func() ([]string, error)
	createAgent  func(agencysdk.CreateAgentRequest) (agencysdk.Agent, error)
	updateSalary func(id int64, salary float64) (agencysdk.Agent, error)
	deleteAgent  func(id int64) error

	listMissions   func() ([]agencysdk.Mission, error)
	createMission  func(agencysdk.CreateMissionRequest) (agencysdk.Mission, error)
	deleteMission  func(id int64) error
	assignAgent    func(missionID, agentID int64) (agencysdk.Mission, error)
	listFreeAgents func() ([]agencysdk.Agent, error)
	addTarget      func(missionID int64, req agencysdk.AddTargetRequest) (agencysdk.Target, error)
	deleteTarget   func(missionID, targetID int64) error

	agentMission func(agentID int64) (*agencysdk.Mission, error)
	updateStatus func(agentID, targetID int64, status agencysdk.TargetStatus) (agencysdk.Target, error)
	updateNotes  func(agentID, targetID int64, notes string) (agencysdk.Target, error)
}

func (f *fakeGateway) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeGateway) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeGateway) ListAgents(ctx context.Context, opts agencysdk.ListOptions) (agencysdk.AgentList, error) {
	f.record("ListAgents")
	if f.listAgents == nil {
		return agencysdk.AgentList{}, nil
	}
	return f.listAgents()
}

func (f *fakeGateway) ListBreeds(ctx context.Context) ([]string, error) {
	f.record("ListBreeds")
	if f.listBreeds == nil {
		return nil, nil
	}
	return f.listBreeds()
}

func (f *fakeGateway) CreateAgent(ctx context.Context, req agencysdk.CreateAgentRequest) (agencysdk.Agent, error) {
	f.record("CreateAgent")
	if f.createAgent == nil {
		return agencysdk.Agent{}, nil
	}
	return f.createAgent(req)
}

func (f *fakeGateway) UpdateAgentSalary(ctx context.Context, id int64, salary float64) (agencysdk.Agent, error) {
	f.record("UpdateAgentSalary")
	if f.updateSalary == nil {
		return agencysdk.Agent{}, nil
	}
	return f.updateSalary(id, salary)
}

func (f *fakeGateway) DeleteAgent(ctx context.Context, id int64) error {
	f.record("DeleteAgent")
	if f.deleteAgent == nil {
		return nil
	}
	return f.deleteAgent(id)
}

func (f *fakeGateway) ListMissions(ctx context.Context) ([]agencysdk.Mission, error) {
	f.record("ListMissions")
	if f.listMissions == nil {
		return nil, nil
	}
	return f.listMissions()
}

func (f *fakeGateway) CreateMission(ctx context.Context, req agencysdk.CreateMissionRequest) (agencysdk.Mission, error) {
	f.record("CreateMission")
	if f.createMission == nil {
		return agencysdk.Mission{}, nil
	}
	return f.createMission(req)
}

func (f *fakeGateway) DeleteMission(ctx context.Context, id int64) error {
	f.record("DeleteMission")
	if f.deleteMission == nil {
		return nil
	}
	return f.deleteMission(id)
}

func (f *fakeGateway) AssignAgent(ctx context.Context, missionID, agentID int64) (agencysdk.Mission, error) {
	f.record("AssignAgent")
	if f.assignAgent == nil {
		return agencysdk.Mission{}, nil
	}
	return f.assignAgent(missionID, agentID)
}

func (f *fakeGateway) ListFreeAgents(ctx context.Context) ([]agencysdk.Agent, error) {
	f.record("ListFreeAgents")
	if f.listFreeAgents == nil {
		return nil, nil
	}
	return f.listFreeAgents()
}

func (f *fakeGateway) AddTarget(ctx context.Context, missionID int64, req agencysdk.AddTargetRequest) (agencysdk.Target, error) {
	f.record("AddTarget")
	if f.addTarget == nil {
		return agencysdk.Target{}, nil
	}
	return f.addTarget(missionID, req)
}

func (f *fakeGateway) DeleteTarget(ctx context.Context, missionID, targetID int64) error {
	f.record("DeleteTarget")
	if f.deleteTarget == nil {
		return nil
	}
	return f.deleteTarget(missionID, targetID)
}

func (f *fakeGateway) GetAgentMission(ctx context.Context, agentID int64) (*agencysdk.Mission, error) {
	f.record("GetAgentMission")
	if f.agentMission == nil {
		return nil, nil
	}
	return f.agentMission(agentID)
}

func (f *fakeGateway) UpdateTargetStatus(ctx context.Context, agentID, targetID int64, status agencysdk.TargetStatus) (agencysdk.Target, error) {
	f.record("UpdateTargetStatus")
	if f.updateStatus == nil {
		return agencysdk.Target{}, nil
	}
	return f.updateStatus(agentID, targetID, status)
}

func (f *fakeGateway) UpdateTargetNotes(ctx context.Context, agentID, targetID int64, notes string) (agencysdk.Target, error) {
	f.record("UpdateTargetNotes")
	if f.updateNotes == nil {
		return agencysdk.Target{}, nil
	}
	return f.updateNotes(agentID, targetID, notes)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func conflict(details string) error {
	return &agencysdk.APIError{StatusCode: 409, Code: "Conflict", Details: details}
}

func badRequest(details string) error {
	return &agencysdk.APIError{StatusCode: 400, Code: "Bad Request", Details: details}
}

func ptr[T any](v T) *T { return &v }

func never(string) bool { return false }
