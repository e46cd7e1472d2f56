package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"spyagency/internal/domain"
)

// Repo reads and writes sandbox rows. The zero tx runs on DB; Tx binds a
// copy to a transaction.
type Repo struct {
	DB *sql.DB
	tx *sql.Tx
}

var ErrNotFound = errors.New("not found")

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx returns a Repo running on tx.
func (r Repo) Tx(tx *sql.Tx) Repo {
	return Repo{DB: r.DB, tx: tx}
}

func (r Repo) q() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.DB
}

const agentColumns = `a.id,a.name,a.years_of_experience,a.breed,a.salary,a.created_at,a.updated_at,
(SELECT m.id FROM missions m WHERE m.cat_id=a.id AND m.is_completed=0 ORDER BY m.id LIMIT 1) AS mission_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanAgent(s scanner) (domain.Agent, error) {
	var a domain.Agent
	var missionID sql.NullInt64
	err := s.Scan(&a.ID, &a.Name, &a.YearsOfExperience, &a.Breed, &a.Salary, &a.CreatedAt, &a.UpdatedAt, &missionID)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if missionID.Valid {
		a.MissionID = &missionID.Int64
	}
	return a, err
}

func (r Repo) InsertAgent(ctx context.Context, a domain.Agent) (int64, error) {
	res, err := r.q().ExecContext(ctx, `INSERT INTO agents(name,years_of_experience,breed,salary,created_at,updated_at) VALUES (?,?,?,?,?,?)`,
		a.Name, a.YearsOfExperience, a.Breed, a.Salary, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetAgent(ctx context.Context, id int64) (domain.Agent, error) {
	return scanAgent(r.q().QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents a WHERE a.id=?`, id))
}

// ListAgents returns newest agents first. A non-positive limit returns all.
func (r Repo) ListAgents(ctx context.Context, limit, offset int) ([]domain.Agent, int64, error) {
	var total int64
	if err := r.q().QueryRowContext(ctx, `SELECT COUNT(*) FROM agents`).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + agentColumns + ` FROM agents a ORDER BY a.id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}
	items, err := r.queryAgents(ctx, query, args...)
	return items, total, err
}

// ListFreeAgents returns agents without an active mission.
func (r Repo) ListFreeAgents(ctx context.Context) ([]domain.Agent, error) {
	return r.queryAgents(ctx, `SELECT `+agentColumns+` FROM agents a
WHERE NOT EXISTS (SELECT 1 FROM missions m WHERE m.cat_id=a.id AND m.is_completed=0)
ORDER BY a.name`)
}

func (r Repo) queryAgents(ctx context.Context, query string, args ...any) ([]domain.Agent, error) {
	rows, err := r.q().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Agent{}
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) UpdateAgentSalary(ctx context.Context, id int64, salary float64, now string) error {
	return expectOne(r.q().ExecContext(ctx, `UPDATE agents SET salary=?, updated_at=? WHERE id=?`, salary, now, id))
}

func (r Repo) DeleteAgent(ctx context.Context, id int64) error {
	return expectOne(r.q().ExecContext(ctx, `DELETE FROM agents WHERE id=?`, id))
}

const missionColumns = `id,name,description,start_date,end_date,cat_id,is_completed,completed_at,created_at,updated_at`

func scanMission(s scanner) (domain.Mission, error) {
	var m domain.Mission
	var start, end, completedAt sql.NullString
	var catID sql.NullInt64
	err := s.Scan(&m.ID, &m.Name, &m.Description, &start, &end, &catID, &m.IsCompleted, &completedAt, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	m.StartDate = nullString(start)
	m.EndDate = nullString(end)
	m.CompletedAt = nullString(completedAt)
	if catID.Valid {
		m.CatID = &catID.Int64
	}
	return m, nil
}

func (r Repo) InsertMission(ctx context.Context, m domain.Mission) (int64, error) {
	res, err := r.q().ExecContext(ctx, `INSERT INTO missions(name,description,start_date,end_date,cat_id,is_completed,completed_at,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		m.Name, m.Description, nullableStringPtr(m.StartDate), nullableStringPtr(m.EndDate), nullableInt64Ptr(m.CatID),
		m.IsCompleted, nullableStringPtr(m.CompletedAt), m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetMission loads a mission with its agent summary and targets.
func (r Repo) GetMission(ctx context.Context, id int64) (domain.Mission, error) {
	m, err := scanMission(r.q().QueryRowContext(ctx, `SELECT `+missionColumns+` FROM missions WHERE id=?`, id))
	if err != nil {
		return m, err
	}
	return m, r.hydrate(ctx, &m)
}

func (r Repo) ListMissions(ctx context.Context) ([]domain.Mission, error) {
	rows, err := r.q().QueryContext(ctx, `SELECT `+missionColumns+` FROM missions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	res := []domain.Mission{}
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		res = append(res, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		if err := r.hydrate(ctx, &res[i]); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// AgentMission returns the agent's active mission, else its most recently
// completed one.
func (r Repo) AgentMission(ctx context.Context, agentID int64) (domain.Mission, error) {
	m, err := scanMission(r.q().QueryRowContext(ctx, `SELECT `+missionColumns+` FROM missions WHERE cat_id=?
ORDER BY is_completed ASC, COALESCE(completed_at,'') DESC, id DESC LIMIT 1`, agentID))
	if err != nil {
		return m, err
	}
	return m, r.hydrate(ctx, &m)
}

func (r Repo) hydrate(ctx context.Context, m *domain.Mission) error {
	if m.CatID != nil {
		a, err := r.GetAgent(ctx, *m.CatID)
		switch {
		case err == nil:
			m.Cat = &a
		case !errors.Is(err, ErrNotFound):
			return err
		}
	}
	targets, err := r.ListTargets(ctx, m.ID)
	if err != nil {
		return err
	}
	m.Targets = targets
	return nil
}

func (r Repo) AssignAgent(ctx context.Context, missionID, agentID int64, now string) error {
	return expectOne(r.q().ExecContext(ctx, `UPDATE missions SET cat_id=?, updated_at=? WHERE id=?`, agentID, now, missionID))
}

// CompleteMission marks the mission completed and fills a missing end date.
func (r Repo) CompleteMission(ctx context.Context, id int64, now string) error {
	return expectOne(r.q().ExecContext(ctx, `UPDATE missions SET is_completed=1, completed_at=?, end_date=COALESCE(end_date, ?), updated_at=? WHERE id=?`,
		now, now, now, id))
}

func (r Repo) DeleteMission(ctx context.Context, id int64) error {
	return expectOne(r.q().ExecContext(ctx, `DELETE FROM missions WHERE id=?`, id))
}

const targetColumns = `id,mission_id,name,country,notes,status,created_at,updated_at`

func scanTarget(s scanner) (domain.Target, error) {
	var t domain.Target
	var notes sql.NullString
	err := s.Scan(&t.ID, &t.MissionID, &t.Name, &t.Country, &notes, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if notes.Valid {
		t.Notes = &notes.String
	}
	return t, err
}

func (r Repo) InsertTarget(ctx context.Context, t domain.Target) (int64, error) {
	res, err := r.q().ExecContext(ctx, `INSERT INTO targets(mission_id,name,country,notes,status,created_at,updated_at) VALUES (?,?,?,?,?,?,?)`,
		t.MissionID, t.Name, t.Country, nullableStringPtr(t.Notes), t.Status, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetTarget(ctx context.Context, id int64) (domain.Target, error) {
	return scanTarget(r.q().QueryRowContext(ctx, `SELECT `+targetColumns+` FROM targets WHERE id=?`, id))
}

func (r Repo) ListTargets(ctx context.Context, missionID int64) ([]domain.Target, error) {
	rows, err := r.q().QueryContext(ctx, `SELECT `+targetColumns+` FROM targets WHERE mission_id=? ORDER BY id`, missionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Target{}
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// UpdateTarget writes status and notes.
func (r Repo) UpdateTarget(ctx context.Context, t domain.Target) error {
	return expectOne(r.q().ExecContext(ctx, `UPDATE targets SET status=?, notes=?, updated_at=? WHERE id=?`,
		t.Status, nullableStringPtr(t.Notes), t.UpdatedAt, t.ID))
}

func (r Repo) DeleteTarget(ctx context.Context, id int64) error {
	return expectOne(r.q().ExecContext(ctx, `DELETE FROM targets WHERE id=?`, id))
}

// ListEvents returns events with id greater than afterID, oldest first.
func (r Repo) ListEvents(ctx context.Context, afterID int64, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.q().QueryContext(ctx, `SELECT id,ts,type,entity_kind,entity_id,COALESCE(request_id,''),payload_json FROM events WHERE id>? ORDER BY id LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Event{}
	for rows.Next() {
		var evt domain.Event
		var entityID sql.NullInt64
		if err := rows.Scan(&evt.ID, &evt.TS, &evt.Type, &evt.EntityKind, &entityID, &evt.RequestID, &evt.PayloadJSON); err != nil {
			return nil, err
		}
		if entityID.Valid {
			evt.EntityID = &entityID.Int64
		}
		res = append(res, evt)
	}
	return res, rows.Err()
}

// Wipe deletes every sandbox row and resets id sequences.
func (r Repo) Wipe(ctx context.Context) error {
	for _, table := range []string{"targets", "missions", "agents", "events"} {
		if _, err := r.q().ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, table)); err != nil {
			return fmt.Errorf("wipe %s: %w", table, err)
		}
	}
	_, err := r.q().ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name IN ('targets','missions','agents','events')`)
	return err
}

func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt64Ptr(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
