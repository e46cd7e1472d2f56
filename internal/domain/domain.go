package domain

// Target statuses. completed is final.
const (
	TargetInit       = "init"
	TargetInProgress = "in_progress"
	TargetCompleted  = "completed"
)

const (
	MinTargets    = 1
	MaxTargets    = 3
	MaxNameLength = 100
)

// ValidTargetStatus reports whether s is a known target status.
func ValidTargetStatus(s string) bool {
	switch s {
	case TargetInit, TargetInProgress, TargetCompleted:
		return true
	}
	return false
}

type Agent struct {
	ID                int64   `json:"id"`
	Name              string  `json:"name"`
	YearsOfExperience int     `json:"years_of_experience"`
	Breed             string  `json:"breed"`
	Salary            float64 `json:"salary"`
	MissionID         *int64  `json:"mission_id,omitempty"`
	CreatedAt         string  `json:"created_at" format:"date-time"`
	UpdatedAt         string  `json:"updated_at" format:"date-time"`
}

type Target struct {
	ID        int64   `json:"id"`
	MissionID int64   `json:"mission_id"`
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Notes     *string `json:"notes"`
	Status    string  `json:"status" enum:"init,in_progress,completed"`
	CreatedAt string  `json:"created_at" format:"date-time"`
	UpdatedAt string  `json:"updated_at" format:"date-time"`
}

type Mission struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	StartDate   *string  `json:"start_date,omitempty" format:"date-time"`
	EndDate     *string  `json:"end_date,omitempty" format:"date-time"`
	CatID       *int64   `json:"cat_id"`
	IsCompleted bool     `json:"is_completed"`
	CompletedAt *string  `json:"completed_at,omitempty" format:"date-time"`
	CreatedAt   string   `json:"created_at" format:"date-time"`
	UpdatedAt   string   `json:"updated_at" format:"date-time"`
	Cat         *Agent   `json:"cat,omitempty"`
	Targets     []Target `json:"targets"`
}

// Active reports whether the mission still holds its agent.
func (m Mission) Active() bool { return m.CatID != nil && !m.IsCompleted }

// AllTargetsCompleted is false for a mission without targets.
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

type Event struct {
	ID          int64  `json:"id"`
	TS          string `json:"ts" format:"date-time"`
	Type        string `json:"type"`
	EntityKind  string `json:"entity_kind" enum:"agent,mission,target"`
	EntityID    *int64 `json:"entity_id,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
	PayloadJSON string `json:"payload_json"`
}
