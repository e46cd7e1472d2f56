package agencysdk

import "time"

// Mission target cardinality, enforced at creation and on later edits.
const (
	MinTargets = 1
	MaxTargets = 3
)

// TargetStatus is the lifecycle state of a mission target.
type TargetStatus string

const (
	TargetInit       TargetStatus = "init"
	TargetInProgress TargetStatus = "in_progress"
	TargetCompleted  TargetStatus = "completed"
)

// Valid reports whether s is one of the three known statuses.
func (s TargetStatus) Valid() bool {
	switch s {
	case TargetInit, TargetInProgress, TargetCompleted:
		return true
	}
	return false
}

// Agent is a spy cat as returned by the agency API.
type Agent struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	YearsOfExperience int       `json:"years_of_experience"`
	Breed             string    `json:"breed"`
	Salary            float64   `json:"salary"`
	MissionID         *int64    `json:"mission_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Assigned reports whether the agent carries a mission reference.
func (a Agent) Assigned() bool { return a.MissionID != nil }

// StatusLabel is ASSIGNED for agents on a mission and STANDBY otherwise.
func (a Agent) StatusLabel() string {
	if a.Assigned() {
		return "ASSIGNED"
	}
	return "STANDBY"
}

// AgentList is the paged envelope of GET /cats.
type AgentList struct {
	Agents []Agent  `json:"cats"`
	Breeds []string `json:"breeds"`
	Total  int64    `json:"total"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
}

// Target is a mission objective.
type Target struct {
	ID        int64        `json:"id"`
	MissionID int64        `json:"mission_id"`
	Name      string       `json:"name"`
	Country   string       `json:"country"`
	Notes     *string      `json:"notes"`
	Status    TargetStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// IsFinal reports whether the target is completed; status and notes are then immutable.
func (t Target) IsFinal() bool { return t.Status == TargetCompleted }

// NotesText returns the notes or "" when unset.
func (t Target) NotesText() string {
	if t.Notes == nil {
		return ""
	}
	return *t.Notes
}

// Mission is a task with 1-3 targets, optionally assigned to one agent.
type Mission struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	CatID       *int64     `json:"cat_id"`
	IsCompleted bool       `json:"is_completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Agent       *Agent     `json:"cat,omitempty"`
	Targets     []Target   `json:"targets,omitempty"`
}

// AllTargetsCompleted is true when the mission has targets and every one is completed.
func (m Mission) AllTargetsCompleted() bool {
	if len(m.Targets) == 0 {
		return false
	}
	for _, t := range m.Targets {
		if t.Status != TargetCompleted {
			return false
		}
	}
	return true
}

// Assigned reports whether an agent is currently on the mission. A completed
// mission keeps its agent reference as history only.
func (m Mission) Assigned() bool {
	return !m.IsCompleted && (m.CatID != nil || m.Agent != nil)
}

// CanAddTarget reports whether the target list is below the upper bound.
func (m Mission) CanAddTarget() bool { return len(m.Targets) < MaxTargets }

// StatusAt derives the mission status at now.
func (m Mission) StatusAt(now time.Time) MissionStatus {
	return DeriveMissionStatus(m.IsCompleted, m.StartDate, m.EndDate, now)
}

// MissionStatus is derived from mission fields and the wall clock; it is never stored.
type MissionStatus string

const (
	MissionCompleted  MissionStatus = "Completed"
	MissionOverdue    MissionStatus = "Overdue"
	MissionInProgress MissionStatus = "In Progress"
	MissionPending    MissionStatus = "Pending"
	MissionActive     MissionStatus = "Active"
)

// DeriveMissionStatus is a pure function of the completion flag, the optional
// date window and now. A mission with no end date is In Progress.
func DeriveMissionStatus(completed bool, start, end *time.Time, now time.Time) MissionStatus {
	if completed {
		return MissionCompleted
	}
	if end == nil {
		return MissionInProgress
	}
	if end.Before(now) {
		return MissionOverdue
	}
	if start == nil {
		return MissionPending
	}
	if !start.After(now) {
		return MissionActive
	}
	return MissionPending
}

// CreateAgentRequest is the body of POST /agency/cats.
type CreateAgentRequest struct {
	Name              string  `json:"name"`
	YearsOfExperience int     `json:"years_of_experience"`
	Breed             string  `json:"breed"`
	Salary            float64 `json:"salary"`
}

// TargetDraft names a target for mission creation.
type TargetDraft struct {
	Name    string `json:"name"`
	Country string `json:"country"`
}

// CreateMissionRequest is the body of POST /agency/missions.
type CreateMissionRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	StartDate   *time.Time    `json:"start_date,omitempty"`
	EndDate     *time.Time    `json:"end_date,omitempty"`
	Targets     []TargetDraft `json:"targets"`
}

// AddTargetRequest is the body of POST /agency/missions/{id}/targets.
type AddTargetRequest struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	Notes   *string `json:"notes,omitempty"`
}

// ListOptions pages GET /cats. Zero values leave paging to the server.
type ListOptions struct {
	Limit  int
	Offset int
}
