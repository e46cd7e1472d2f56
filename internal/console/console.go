// Package console holds the view-models behind the agency console: the agent
// registry, the mission roster and the per-agent mission dashboard.
//
// View-models keep a disposable copy of backend state. They mutate it only
// from settled gateway results (optimistic patch) and fall back to a fresh
// authoritative fetch after failures or terminal transitions.
package console

import (
	"context"
	"log/slog"
	"time"

	agencysdk "spyagency/sdk/go"
)

// AgentGateway is the slice of the agency API the registry uses.
type AgentGateway interface {
	ListAgents(ctx context.Context, opts agencysdk.ListOptions) (agencysdk.AgentList, error)
	ListBreeds(ctx context.Context) ([]string, error)
	CreateAgent(ctx context.Context, req agencysdk.CreateAgentRequest) (agencysdk.Agent, error)
	UpdateAgentSalary(ctx context.Context, id int64, salary float64) (agencysdk.Agent, error)
	DeleteAgent(ctx context.Context, id int64) error
}

// MissionGateway is the slice of the agency API the roster uses.
type MissionGateway interface {
	ListMissions(ctx context.Context) ([]agencysdk.Mission, error)
	CreateMission(ctx context.Context, req agencysdk.CreateMissionRequest) (agencysdk.Mission, error)
	DeleteMission(ctx context.Context, id int64) error
	AssignAgent(ctx context.Context, missionID, agentID int64) (agencysdk.Mission, error)
	ListFreeAgents(ctx context.Context) ([]agencysdk.Agent, error)
	AddTarget(ctx context.Context, missionID int64, req agencysdk.AddTargetRequest) (agencysdk.Target, error)
	DeleteTarget(ctx context.Context, missionID, targetID int64) error
}

// FieldGateway is the slice of the agency API an agent's dashboard uses.
type FieldGateway interface {
	GetAgentMission(ctx context.Context, agentID int64) (*agencysdk.Mission, error)
	UpdateTargetStatus(ctx context.Context, agentID, targetID int64, status agencysdk.TargetStatus) (agencysdk.Target, error)
	UpdateTargetNotes(ctx context.Context, agentID, targetID int64, notes string) (agencysdk.Target, error)
}

// Gateway is the whole agency API.
type Gateway interface {
	AgentGateway
	MissionGateway
	FieldGateway
}

var _ Gateway = (*agencysdk.Client)(nil)

// ConfirmFunc asks the operator to confirm a destructive action.
type ConfirmFunc func(prompt string) bool

// AlwaysConfirm confirms every prompt.
func AlwaysConfirm(string) bool { return true }

func confirmed(confirm ConfirmFunc, prompt string) bool {
	return confirm != nil && confirm(prompt)
}

// Options tune view-model timing and logging. Zero values use defaults.
type Options struct {
	Now                   func() time.Time
	Logger                *slog.Logger
	NoticeTTL             time.Duration
	CompletionReloadDelay time.Duration
}

const (
	defaultNoticeTTL   = 5 * time.Second
	defaultReloadDelay = time.Second
)

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o Options) noticeTTL() time.Duration {
	if o.NoticeTTL > 0 {
		return o.NoticeTTL
	}
	return defaultNoticeTTL
}

func (o Options) reloadDelay() time.Duration {
	if o.CompletionReloadDelay > 0 {
		return o.CompletionReloadDelay
	}
	return defaultReloadDelay
}

// LoadState tracks a list fetch.
type LoadState int

const (
	LoadIdle LoadState = iota
	Loading
	Loaded
	LoadFailed
)

func (s LoadState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case LoadFailed:
		return "load_failed"
	default:
		return "idle"
	}
}
