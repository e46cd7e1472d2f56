package engine

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"spyagency/internal/domain"
	"spyagency/internal/events"
	"spyagency/internal/repo"
)

const (
	msgAgentAssigned = "This spy cat is currently assigned to a mission. Please unassign the cat from the mission before deletion."
	msgMissionActive = "This mission has an assigned spy cat. Please unassign the cat before deleting the mission."
)

// Engine applies the agency rules on top of the sandbox store.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Breeds []string
	Now    func() time.Time
}

func New(db *sql.DB, breeds []string) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{},
		Breeds: breeds,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

// inTx runs fn in a transaction with a tx-bound repo and an event writer
// sharing the engine clock.
func (e Engine) inTx(ctx context.Context, fn func(r repo.Repo, tx *sql.Tx) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(e.Repo.Tx(tx), tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) events() events.Writer {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w
}

// AgentPage is one page of agents plus the breed catalog.
type AgentPage struct {
	Agents []domain.Agent
	Breeds []string
	Total  int64
	Limit  int
	Offset int
}

func (e Engine) ListAgents(ctx context.Context, limit, offset int) (AgentPage, error) {
	if limit < 0 || offset < 0 {
		return AgentPage{}, invalid("limit and offset must not be negative")
	}
	agents, total, err := e.Repo.ListAgents(ctx, limit, offset)
	if err != nil {
		return AgentPage{}, err
	}
	return AgentPage{Agents: agents, Breeds: e.BreedCatalog(), Total: total, Limit: limit, Offset: offset}, nil
}

// BreedCatalog returns a copy of the accepted breeds.
func (e Engine) BreedCatalog() []string {
	return append([]string{}, e.Breeds...)
}

func (e Engine) GetAgent(ctx context.Context, id int64) (domain.Agent, error) {
	a, err := e.Repo.GetAgent(ctx, id)
	return a, notFound(err, "spy cat", id)
}

func (e Engine) ListFreeAgents(ctx context.Context) ([]domain.Agent, error) {
	return e.Repo.ListFreeAgents(ctx)
}

// AgentInput is a recruitment request.
type AgentInput struct {
	Name              string
	YearsOfExperience int
	Breed             string
	Salary            float64
}

func (e Engine) validateAgent(in AgentInput) (AgentInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Breed = strings.TrimSpace(in.Breed)
	if err := checkName("name", in.Name); err != nil {
		return in, err
	}
	if in.YearsOfExperience < 0 {
		return in, invalid("years of experience must not be negative")
	}
	if in.Salary < 0 {
		return in, invalid("salary must not be negative")
	}
	if in.Breed == "" {
		return in, invalid("breed is required")
	}
	if !e.knownBreed(in.Breed) {
		return in, invalid("breed %q is not a recognized cat breed", in.Breed)
	}
	return in, nil
}

func (e Engine) knownBreed(breed string) bool {
	if len(e.Breeds) == 0 {
		return true
	}
	for _, b := range e.Breeds {
		if strings.EqualFold(b, breed) {
			return true
		}
	}
	return false
}

func (e Engine) CreateAgent(ctx context.Context, in AgentInput) (domain.Agent, error) {
	in, err := e.validateAgent(in)
	if err != nil {
		return domain.Agent{}, err
	}
	now := e.stamp()
	var id int64
	err = e.inTx(ctx, func(r repo.Repo, tx *sql.Tx) error {
		var err error
		id, err = r.InsertAgent(ctx, domain.Agent{
			Name: in.Name, YearsOfExperience: in.YearsOfExperience, Breed: in.Breed, Salary: in.Salary,
			CreatedAt: now, UpdatedAt: now,
		})
		if err != nil {
			return err
		}
		return e.events().Append(ctx, tx, "agent.created", "agent", id, events.Payload{"name": in.Name, "breed": in.Breed})
	})
	if err != nil {
		return domain.Agent{}, err
	}
	return e.GetAgent(ctx, id)
}

func (e Engine) UpdateAgentSalary(ctx context.Context, id int64, salary float64) (domain.Agent, error) {
	if salary < 0 {
		return domain.Agent{}, invalid("salary must not be negative")
	}
	err := e.inTx(ctx, func(r repo.Repo, tx *sql.Tx) error {
		prev, err := r.GetAgent(ctx, id)
		if err != nil {
			return notFound(err, "spy cat", id)
		}
		if err := r.UpdateAgentSalary(ctx, id, salary, e.stamp()); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, "agent.salary_updated", "agent", id, events.Payload{"from": prev.Salary, "to": salary})
	})
	if err != nil {
		return domain.Agent{}, err
	}
	return e.GetAgent(ctx, id)
}

// DeleteAgent refuses agents that are on an active mission.
func (e Engine) DeleteAgent(ctx context.Context, id int64) error {
	return e.inTx(ctx, func(r repo.Repo, tx *sql.Tx) error {
		a, err := r.GetAgent(ctx, id)
		if err != nil {
			return notFound(err, "spy cat", id)
		}
		if a.MissionID != nil {
			return ConflictError{Summary: "Cannot delete spy cat", Reason: msgAgentAssigned}
		}
		if err := r.DeleteAgent(ctx, id); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, "agent.deleted", "agent", id, events.Payload{"name": a.Name})
	})
}

func (e Engine) ListMissions(ctx context.Context) ([]domain.Mission, error) {
	return e.Repo.ListMissions(ctx)
}

func (e Engine) GetMission(ctx context.Context, id int64) (domain.Mission, error) {
	m, err := e.Repo.GetMission(ctx, id)
	return m, notFound(err, "mission", id)
}

// TargetInput names a target.
type TargetInput struct {
	Name    string
	Country string
	Notes   *string
}

// MissionInput is a mission creation request.
type MissionInput struct {
	Name        string
	Description string
	StartDate   *time.Time
	EndDate     *time.Time
	Targets     []TargetInput
}

func (e Engine) CreateMission(ctx context.Context, in MissionInput) (domain.Mission, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := checkName("mission name", in.Name); err != nil {
		return domain.Mission{}, err
	}
	if in.Description == "" {
		return domain.Mission{}, invalid("description is required")
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return domain.Mission{}, invalid("end date must not be before start date")
	}
	if n := len(in.Targets); n < domain.MinTargets || n > domain.MaxTargets {
		return domain.Mission{}, invalid("mission must have between %d and %d targets", domain.MinTargets, domain.MaxTargets)
	}
	seen := map[string]bool{}
	for i := range in.Targets {
		t, err := cleanTarget(in.Targets[i])
		if err != nil {
			return domain.Mission{}, err
		}
		key := strings.ToLower(t.Name)
		if seen[key] {
			return domain.Mission{}, invalid("target names must be unique within a mission")
		}
		seen[key] = true
		in.Targets[i] = t
	}

	now := e.stamp()
	var id int64
	err := e.inTx(ctx, func(r repo.Repo, tx *sql.Tx) error {
		var err error
		id, err = r.InsertMission(ctx, domain.Mission{
			Name: in.Name, Description: in.Description,
			StartDate: formatDate(in.StartDate), EndDate: formatDate(in.EndDate),
			CreatedAt: now, UpdatedAt: now,
		})
		if err != nil {
			return err
		}
		for _, t := range in.Targets {
			if _, err := r.InsertTarget(ctx, domain.Target{
				MissionID: id, Name: t.Name, Country: t.Country, Notes: t.Notes,
				Status: domain.TargetInit, CreatedAt: now, UpdatedAt: now,
			}); err != nil {
				return err
			}
		}
		return e.events().Append(ctx, tx, "mission.created", "mission", id, events.Payload{"name": in.Name, "targets": len(in.Targets)})
	})
	if err != nil {
		return domain.Mission{}, err
	}
	return e.GetMission(ctx, id)
}

// DeleteMission refuses missions with an agent still on them.
func (e Engine) DeleteMission(ctx context.Context, id int64) error {
	return e.inTx(ctx, func(r repo.Repo, tx *sql.Tx) error {
		m, err := r.GetMission(ctx, id)
		if err != nil {
			return notFound(err, "mission", id)
		}
		if m.Active() {
			return ConflictError{Summary: "Cannot delete mission", Reason: msgMissionActive}
		}
		if err := r.DeleteMission(ctx, id); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, "mission.deleted", "mission", id, events.Payload{"name": m.Name})
	})
}

// AssignAgent puts a free agent on an unassigned, uncompleted mission.
func (e Engine) AssignAgent(ctx context.Context, missionID, agentID int64) (domain.Mission, error) {
	if agentID <= 0 {
		return domain.Mission{}, invalid("cat_id is required")
	}
	err := e.inTx(ctx, func(r repo.Repo, tx *sql.Tx) error {
		m, err := r.GetMission(ctx, missionID)
		if err != nil {
			return notFound(err, "mission", missionID)
		}
		if m.IsCompleted {
			return ConflictError{Summary: "Cannot assign spy cat", Reason: "mission is already completed"}
		}
		if m.CatID != nil {
			return ConflictError{Summary: "Cannot assign spy cat", Reason: "mission already has an assigned cat"}
		}
		a, err := r.GetAgent(ctx, agentID)
		if err != nil {
			return notFound(err, "spy cat", agentID)
		}
		if a.MissionID != nil {
			return ConflictError{Summary: "Cannot assign spy cat", Reason: "cat is already assigned to another mission"}
		}
		if err := r.AssignAgent(ctx, missionID, agentID, e.stamp()); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, "mission.assigned", "mission", missionID, events.Payload{"cat_id": agentID})
	})
	if err != nil {
		return domain.Mission{}, err
	}
	return e.GetMission(ctx, missionID)
}

// AddTarget appends a target to a mission below the target limit.
func (e Engine) AddTarget(ctx context.Context, missionID int64, in TargetInput) (domain.Target, error) {
	in, err := cleanTarget(in)
	if err != nil {
		return domain.Target{}, err
	}
	var id int64
	err = e.inTx(ctx, func(r repo.Repo, tx *sql.Tx) error {
		m, err := r.GetMission(ctx, missionID)
		if err != nil {
			return notFound(err, "mission", missionID)
		}
		if m.IsCompleted {
			return ConflictError{Summary: "Cannot add target", Reason: "cannot add targets to a completed mission"}
		}
		if len(m.Targets) >= domain.MaxTargets {
			return invalid("mission already has the maximum number of targets")
		}
		for _, t := range m.Targets {
			if strings.EqualFold(t.Name, in.Name) {
				return invalid("a target with this name already exists in the mission")
			}
		}
		now := e.stamp()
		id, err = r.InsertTarget(ctx, domain.Target{
			MissionID: missionID, Name: in.Name, Country: in.Country, Notes: in.Notes,
			Status: domain.TargetInit, CreatedAt: now, UpdatedAt: now,
		})
		if err != nil {
			return err
		}
		return e.events().Append(ctx, tx, "target.added", "target", id, events.Payload{"mission_id": missionID, "name": in.Name})
	})
	if err != nil {
		return domain.Target{}, err
	}
	t, err := e.Repo.GetTarget(ctx, id)
	return t, notFound(err, "target", id)
}

// DeleteTarget removes an init target, keeping at least one per mission.
func (e Engine) DeleteTarget(ctx context.Context, missionID, targetID int64) error {
	return e.inTx(ctx, func(r repo.Repo, tx *sql.Tx) error {
		t, err := r.GetTarget(ctx, targetID)
		if err != nil || t.MissionID != missionID {
			return NotFoundError{Kind: "target", ID: targetID}
		}
		if t.Status != domain.TargetInit {
			return invalid("only targets in 'init' status can be deleted")
		}
		targets, err := r.ListTargets(ctx, missionID)
		if err != nil {
			return err
		}
		if len(targets) <= domain.MinTargets {
			return invalid("mission must have at least %d target", domain.MinTargets)
		}
		if err := r.DeleteTarget(ctx, targetID); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, "target.deleted", "target", targetID, events.Payload{"mission_id": missionID, "name": t.Name})
	})
}

// AgentMission returns the agent's mission, nil when it has none.
func (e Engine) AgentMission(ctx context.Context, agentID int64) (*domain.Mission, error) {
	if _, err := e.GetAgent(ctx, agentID); err != nil {
		return nil, err
	}
	m, err := e.Repo.AgentMission(ctx, agentID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateTargetStatus changes a target on the agent's active mission. When
// every target ends up completed the mission is completed and the agent
// released.
func (e Engine) UpdateTargetStatus(ctx context.Context, agentID, targetID int64, status string) (domain.Target, error) {
	if !domain.ValidTargetStatus(status) {
		return domain.Target{}, invalid("status must be one of init, in_progress, completed")
	}
	return e.updateFieldTarget(ctx, agentID, targetID, "target status is final and cannot be changed",
		func(r repo.Repo, tx *sql.Tx, m domain.Mission, t *domain.Target) error {
			from := t.Status
			t.Status = status
			t.UpdatedAt = e.stamp()
			if err := r.UpdateTarget(ctx, *t); err != nil {
				return err
			}
			if err := e.events().Append(ctx, tx, "target.status_updated", "target", t.ID, events.Payload{"from": from, "to": status}); err != nil {
				return err
			}
			for i := range m.Targets {
				if m.Targets[i].ID == t.ID {
					m.Targets[i].Status = status
				}
			}
			if !m.AllTargetsCompleted() {
				return nil
			}
			if err := r.CompleteMission(ctx, m.ID, e.stamp()); err != nil {
				return err
			}
			return e.events().Append(ctx, tx, "mission.completed", "mission", m.ID, events.Payload{"cat_id": agentID})
		})
}

func (e Engine) UpdateTargetNotes(ctx context.Context, agentID, targetID int64, notes string) (domain.Target, error) {
	return e.updateFieldTarget(ctx, agentID, targetID, "target is final and cannot be modified",
		func(r repo.Repo, tx *sql.Tx, _ domain.Mission, t *domain.Target) error {
			t.Notes = &notes
			t.UpdatedAt = e.stamp()
			if err := r.UpdateTarget(ctx, *t); err != nil {
				return err
			}
			return e.events().Append(ctx, tx, "target.notes_updated", "target", t.ID, events.Payload{"length": len(notes)})
		})
}

func (e Engine) updateFieldTarget(ctx context.Context, agentID, targetID int64, finalMsg string,
	apply func(r repo.Repo, tx *sql.Tx, m domain.Mission, t *domain.Target) error) (domain.Target, error) {
	err := e.inTx(ctx, func(r repo.Repo, tx *sql.Tx) error {
		a, err := r.GetAgent(ctx, agentID)
		if err != nil {
			return notFound(err, "spy cat", agentID)
		}
		if a.MissionID == nil {
			return invalid("spy cat has no active mission")
		}
		m, err := r.GetMission(ctx, *a.MissionID)
		if err != nil {
			return err
		}
		var target *domain.Target
		for i := range m.Targets {
			if m.Targets[i].ID == targetID {
				target = &m.Targets[i]
			}
		}
		if target == nil {
			return invalid("target does not belong to the cat's mission")
		}
		if target.Status == domain.TargetCompleted {
			return invalid("%s", finalMsg)
		}
		t := *target
		return apply(r, tx, m, &t)
	})
	if err != nil {
		return domain.Target{}, err
	}
	t, err := e.Repo.GetTarget(ctx, targetID)
	return t, notFound(err, "target", targetID)
}

func (e Engine) ListEvents(ctx context.Context, afterID int64, limit int) ([]domain.Event, error) {
	return e.Repo.ListEvents(ctx, afterID, limit)
}

func checkName(field, v string) error {
	if v == "" {
		return invalid("%s is required", field)
	}
	if len([]rune(v)) > domain.MaxNameLength {
		return invalid("%s must be at most %d characters", field, domain.MaxNameLength)
	}
	return nil
}

func cleanTarget(in TargetInput) (TargetInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Country = strings.TrimSpace(in.Country)
	if err := checkName("target name", in.Name); err != nil {
		return in, err
	}
	if err := checkName("target country", in.Country); err != nil {
		return in, err
	}
	return in, nil
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
