package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"spyagency/internal/db"
	"spyagency/internal/domain"
	"spyagency/internal/engine"
	"spyagency/internal/migrate"
)

// OpenWorkspace opens the sandbox database under workspace and brings the
// schema up to date.
func OpenWorkspace(workspace string) (*sql.DB, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, fmt.Errorf("open sandbox db: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate sandbox db: %w", err)
	}
	return conn, nil
}

// SeedSummary counts what Seed inserted.
type SeedSummary struct {
	Agents   int
	Missions int
	Targets  int
}

type seedMission struct {
	input    engine.MissionInput
	agent    string
	statuses []string
}

// Seed wipes the sandbox and loads the demo roster: five agents and four
// missions covering the active, pending and completed states.
func Seed(ctx context.Context, e engine.Engine, now time.Time) (SeedSummary, error) {
	var sum SeedSummary
	if err := e.Repo.Wipe(ctx); err != nil {
		return sum, err
	}
	agents := []engine.AgentInput{
		{Name: "Jane", Breed: "Abyssinian", YearsOfExperience: 5, Salary: 75000},
		{Name: "Kvas", Breed: "Maine Coon", YearsOfExperience: 3, Salary: 65000},
		{Name: "Mittens", Breed: "Siamese", YearsOfExperience: 7, Salary: 85000},
		{Name: "Luna", Breed: "Persian", YearsOfExperience: 2, Salary: 55000},
		{Name: "Felix", Breed: "Bengal", YearsOfExperience: 4, Salary: 70000},
	}
	ids := map[string]int64{}
	for _, in := range agents {
		a, err := e.CreateAgent(ctx, in)
		if err != nil {
			return sum, fmt.Errorf("seed agent %s: %w", in.Name, err)
		}
		ids[a.Name] = a.ID
		sum.Agents++
	}

	day := 24 * time.Hour
	at := func(d time.Duration) *time.Time {
		t := now.Add(d).UTC().Truncate(time.Second)
		return &t
	}
	missions := []seedMission{
		{
			input: engine.MissionInput{
				Name:        "Operation Goldfish",
				Description: "Recover the stolen goldfish from the aquarium district.",
				StartDate:   at(-3 * day),
				EndDate:     at(11 * day),
				Targets: []engine.TargetInput{
					{Name: "Bubbles", Country: "France"},
					{Name: "Finnegan", Country: "Ireland"},
				},
			},
			agent:    "Jane",
			statuses: []string{domain.TargetInProgress, domain.TargetInit},
		},
		{
			input: engine.MissionInput{
				Name:        "Mission Catnip Cartel",
				Description: "Infiltrate the catnip smuggling ring.",
				StartDate:   at(7 * day),
				EndDate:     at(30 * day),
				Targets: []engine.TargetInput{
					{Name: "Don Whiskerleone", Country: "Italy"},
					{Name: "The Nip Courier", Country: "Colombia"},
					{Name: "Greenhouse Keeper", Country: "Netherlands"},
				},
			},
		},
		{
			input: engine.MissionInput{
				Name:        "Operation Mouse Hunt",
				Description: "Track down the mouse that escaped from the lab.",
				StartDate:   at(-20 * day),
				EndDate:     at(-5 * day),
				Targets: []engine.TargetInput{
					{Name: "Subject 42", Country: "Germany"},
				},
			},
			agent:    "Kvas",
			statuses: []string{domain.TargetCompleted},
		},
		{
			input: engine.MissionInput{
				Name:        "Project Yarn Ball",
				Description: "Find out who keeps unravelling the embassy's yarn.",
				StartDate:   at(-1 * day),
				Targets: []engine.TargetInput{
					{Name: "Red Thread", Country: "Japan"},
					{Name: "Blue Thread", Country: "Canada"},
				},
			},
			agent:    "Mittens",
			statuses: []string{domain.TargetInit, domain.TargetInProgress},
		},
	}
	for _, sm := range missions {
		m, err := e.CreateMission(ctx, sm.input)
		if err != nil {
			return sum, fmt.Errorf("seed mission %s: %w", sm.input.Name, err)
		}
		sum.Missions++
		sum.Targets += len(m.Targets)
		if sm.agent == "" {
			continue
		}
		agentID := ids[sm.agent]
		if _, err := e.AssignAgent(ctx, m.ID, agentID); err != nil {
			return sum, fmt.Errorf("seed assign %s: %w", sm.agent, err)
		}
		for i, status := range sm.statuses {
			if status == domain.TargetInit {
				continue
			}
			if _, err := e.UpdateTargetStatus(ctx, agentID, m.Targets[i].ID, status); err != nil {
				return sum, fmt.Errorf("seed target %s: %w", m.Targets[i].Name, err)
			}
		}
	}
	return sum, nil
}
