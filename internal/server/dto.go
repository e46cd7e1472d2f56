package server

import (
	"time"

	"spyagency/internal/domain"
	"spyagency/internal/engine"
)

// Request payloads

type CreateAgentRequest struct {
	Name              string  `json:"name" example:"Whiskers"`
	YearsOfExperience int     `json:"years_of_experience"`
	Breed             string  `json:"breed" example:"Siamese"`
	Salary            float64 `json:"salary"`
}

type SalaryRequest struct {
	Salary float64 `json:"salary"`
}

type TargetRequest struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	Notes   *string `json:"notes,omitempty"`
}

type CreateMissionRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	StartDate   *time.Time      `json:"start_date,omitempty"`
	EndDate     *time.Time      `json:"end_date,omitempty"`
	Targets     []TargetRequest `json:"targets"`
}

type AssignRequest struct {
	CatID int64 `json:"cat_id"`
}

type StatusRequest struct {
	Status string `json:"status" example:"in_progress"`
}

type NotesRequest struct {
	Notes string `json:"notes"`
}

// Response payloads

type AgentListResponse struct {
	Cats   []domain.Agent `json:"cats"`
	Breeds []string       `json:"breeds"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

type BreedsResponse struct {
	Breeds []string `json:"breeds"`
}

func agentListResponse(p engine.AgentPage) AgentListResponse {
	return AgentListResponse{
		Cats:   nonNilSlice(p.Agents),
		Breeds: nonNilSlice(p.Breeds),
		Total:  p.Total,
		Limit:  p.Limit,
		Offset: p.Offset,
	}
}

func missionInput(req CreateMissionRequest) engine.MissionInput {
	in := engine.MissionInput{
		Name:        req.Name,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	}
	for _, t := range req.Targets {
		in.Targets = append(in.Targets, engine.TargetInput{Name: t.Name, Country: t.Country, Notes: t.Notes})
	}
	return in
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
