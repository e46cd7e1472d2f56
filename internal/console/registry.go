package console

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	agencysdk "spyagency/sdk/go"
)

const (
	msgAgentsLoadFailed  = "Failed to load spy cats. Check if the backend is running."
	msgAgentCreateFailed = "Failed to recruit spy cat. Please try again."
	msgSalaryFailed      = "Failed to update salary. Please try again."
	msgAgentDeleteFailed = "Failed to terminate spy cat. Please try again."
	msgSalaryUpdated     = "Salary updated successfully!"
)

// AgentDraft is the recruitment form.
type AgentDraft struct {
	Name              string
	Breed             string
	YearsOfExperience int
	Salary            float64
}

// Problems lists advisory validation hints. They do not block submission;
// the backend has the final word.
func (d AgentDraft) Problems() []string {
	var out []string
	if n := len([]rune(strings.TrimSpace(d.Name))); n < 2 || n > 100 {
		out = append(out, "name must be 2-100 characters")
	}
	if strings.TrimSpace(d.Breed) == "" {
		out = append(out, "breed is required")
	}
	if d.YearsOfExperience < 0 || d.YearsOfExperience > 50 {
		out = append(out, "years of experience must be between 0 and 50")
	}
	if d.Salary < 0 {
		out = append(out, "salary must not be negative")
	}
	return out
}

func (d AgentDraft) request() agencysdk.CreateAgentRequest {
	return agencysdk.CreateAgentRequest{
		Name:              strings.TrimSpace(d.Name),
		Breed:             strings.TrimSpace(d.Breed),
		YearsOfExperience: d.YearsOfExperience,
		Salary:            d.Salary,
	}
}

// SalaryEdit is the single inline salary edit slot.
type SalaryEdit struct {
	AgentID int64
	Draft   float64
	State   RequestState
}

// RegistrySnapshot is a copy of the registry's state for rendering.
type RegistrySnapshot struct {
	State         LoadState
	Agents        []agencysdk.Agent
	Breeds        []string
	Draft         AgentDraft
	DraftProblems []string
	Submitting    bool
	Edit          *SalaryEdit
	Deletes       map[int64]RequestState
	Notice        Notice
}

// Registry is the agent list view-model.
type Registry struct {
	gw   AgentGateway
	opts Options

	mu         sync.Mutex
	closed     bool
	state      LoadState
	agents     []agencysdk.Agent
	breeds     []string
	draft      AgentDraft
	submitting bool
	edit       *SalaryEdit
	deletes    RequestTable
	notice     Notice
	// loadNotice is the last load failure, cleared by the next good load
	// while it is still the notice shown.
	loadNotice Notice
}

func NewRegistry(gw AgentGateway, opts Options) *Registry {
	return &Registry{gw: gw, opts: opts}
}

// Load fetches agents and the breed catalog concurrently. A breed catalog
// failure falls back to the breeds embedded in the agent list.
func (r *Registry) Load(ctx context.Context) error {
	r.mu.Lock()
	r.state = Loading
	r.mu.Unlock()

	var (
		list   agencysdk.AgentList
		breeds []string
	)
	var g errgroup.Group
	g.Go(func() error {
		var err error
		list, err = r.gw.ListAgents(ctx, agencysdk.ListOptions{})
		return err
	})
	g.Go(func() error {
		b, err := r.gw.ListBreeds(ctx)
		if err != nil {
			r.opts.logger().Warn("breed catalog unavailable", "error", err)
			return nil
		}
		breeds = b
		return nil
	})
	err := g.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	if len(breeds) == 0 {
		breeds = list.Breeds
	}
	r.breeds = breeds
	if err != nil {
		r.state = LoadFailed
		r.agents = nil
		r.notice = errorNotice(msgAgentsLoadFailed)
		r.loadNotice = r.notice
		return err
	}
	if r.notice == r.loadNotice {
		r.notice = Notice{}
	}
	r.loadNotice = Notice{}
	r.state = Loaded
	r.agents = list.Agents
	return nil
}

// SetDraft replaces the recruitment form.
func (r *Registry) SetDraft(d AgentDraft) {
	r.mu.Lock()
	r.draft = d
	r.mu.Unlock()
}

// Create submits the current draft. On success the new agent is prepended
// and the draft reset; on failure the draft is kept.
func (r *Registry) Create(ctx context.Context) (agencysdk.Agent, error) {
	r.mu.Lock()
	if r.submitting {
		r.mu.Unlock()
		return agencysdk.Agent{}, ErrBusy
	}
	r.submitting = true
	draft := r.draft
	r.mu.Unlock()

	if p := draft.Problems(); len(p) > 0 {
		r.opts.logger().Debug("submitting agent with local warnings", "problems", p)
	}
	agent, err := r.gw.CreateAgent(ctx, draft.request())

	r.mu.Lock()
	defer r.mu.Unlock()
	r.submitting = false
	if r.closed {
		return agent, err
	}
	if err != nil {
		r.notice = errorNotice(DisplayMessage(err, msgAgentCreateFailed))
		return agencysdk.Agent{}, err
	}
	r.agents = append([]agencysdk.Agent{agent}, r.agents...)
	r.draft = AgentDraft{}
	r.notice = successNotice(fmt.Sprintf("Spy cat %q has been recruited successfully!", agent.Name), r.opts.now(), r.opts.noticeTTL())
	return agent, nil
}

// BeginSalaryEdit opens the salary editor for id, replacing any idle edit.
func (r *Registry) BeginSalaryEdit(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.edit != nil && r.edit.State == RequestPending {
		return ErrBusy
	}
	i := r.indexLocked(id)
	if i < 0 {
		return ErrUnknownAgent
	}
	r.edit = &SalaryEdit{AgentID: id, Draft: r.agents[i].Salary}
	return nil
}

func (r *Registry) SetSalaryDraft(v float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.edit == nil {
		return ErrNotEditing
	}
	r.edit.Draft = v
	return nil
}

// CancelSalaryEdit drops an idle or failed edit. A pending edit stays.
func (r *Registry) CancelSalaryEdit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.edit != nil && r.edit.State != RequestPending {
		r.edit = nil
	}
}

// CommitSalary sends the edited salary. The row changes only on success.
func (r *Registry) CommitSalary(ctx context.Context) (agencysdk.Agent, error) {
	r.mu.Lock()
	if r.edit == nil {
		r.mu.Unlock()
		return agencysdk.Agent{}, ErrNotEditing
	}
	if r.edit.State == RequestPending {
		r.mu.Unlock()
		return agencysdk.Agent{}, ErrBusy
	}
	if r.edit.Draft < 0 {
		r.notice = errorNotice("Salary must not be negative.")
		r.mu.Unlock()
		return agencysdk.Agent{}, ErrNegativeSalary
	}
	edit := r.edit
	edit.State = RequestPending
	id, salary := edit.AgentID, edit.Draft
	r.mu.Unlock()

	agent, err := r.gw.UpdateAgentSalary(ctx, id, salary)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return agent, err
	}
	if err != nil {
		edit.State = RequestFailed
		r.notice = errorNotice(DisplayMessage(err, msgSalaryFailed))
		return agencysdk.Agent{}, err
	}
	if i := r.indexLocked(id); i >= 0 {
		r.agents[i] = agent
	}
	if r.edit == edit {
		r.edit = nil
	}
	r.notice = successNotice(msgSalaryUpdated, r.opts.now(), r.opts.noticeTTL())
	return agent, nil
}

// CanDelete is advisory: assigned agents are expected to be refused by the
// backend, but Delete still asks.
func (r *Registry) CanDelete(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexLocked(id)
	return i >= 0 && !r.agents[i].Assigned() && !r.deletes.Pending(id)
}

// Delete removes an agent after confirmation. Backend refusals are surfaced
// verbatim and leave the list untouched.
func (r *Registry) Delete(ctx context.Context, id int64, confirm ConfirmFunc) error {
	r.mu.Lock()
	i := r.indexLocked(id)
	if i < 0 {
		r.mu.Unlock()
		return ErrUnknownAgent
	}
	name := r.agents[i].Name
	r.mu.Unlock()

	if !confirmed(confirm, fmt.Sprintf("Are you sure you want to terminate spy cat %q?", name)) {
		return ErrNotConfirmed
	}

	r.mu.Lock()
	if !r.deletes.Begin(id) {
		r.mu.Unlock()
		return ErrBusy
	}
	r.mu.Unlock()

	err := r.gw.DeleteAgent(ctx, id)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return err
	}
	if err != nil {
		r.deletes.Fail(id)
		r.notice = errorNotice(DisplayMessage(err, msgAgentDeleteFailed))
		return err
	}
	r.deletes.Succeed(id)
	if i := r.indexLocked(id); i >= 0 {
		r.agents = append(r.agents[:i:i], r.agents[i+1:]...)
	}
	r.notice = successNotice(fmt.Sprintf("Spy cat %q has been terminated.", name), r.opts.now(), r.opts.noticeTTL())
	return nil
}

func (r *Registry) DismissNotice() {
	r.mu.Lock()
	r.notice = Notice{}
	r.mu.Unlock()
}

// Close detaches the registry; later settlements no longer touch its state.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

func (r *Registry) Snapshot() RegistrySnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := RegistrySnapshot{
		State:         r.state,
		Agents:        append([]agencysdk.Agent(nil), r.agents...),
		Breeds:        append([]string(nil), r.breeds...),
		Draft:         r.draft,
		DraftProblems: r.draft.Problems(),
		Submitting:    r.submitting,
		Deletes:       r.deletes.Snapshot(),
		Notice:        r.notice.at(r.opts.now()),
	}
	if r.edit != nil {
		e := *r.edit
		s.Edit = &e
	}
	return s
}

func (r *Registry) indexLocked(id int64) int {
	for i := range r.agents {
		if r.agents[i].ID == id {
			return i
		}
	}
	return -1
}
