package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"spyagency/internal/domain"
	"spyagency/internal/engine"
	"spyagency/internal/events"
)

// Config for the sandbox HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	Logger   *slog.Logger
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// apiError is the {error, details} envelope every failure is rendered as.
type apiError struct {
	status  int
	Message string `json:"error" example:"Cannot delete spy cat"`
	Details string `json:"details,omitempty" example:"This spy cat is currently assigned to a mission."`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

func newAPIError(status int, message, details string) huma.StatusError {
	if message == "" {
		message = http.StatusText(status)
	}
	return &apiError{status: status, Message: message, Details: details}
}

// New returns an HTTP handler exposing the agency API under BasePath.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, msg, joinErrors(errs))
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			// Schema and body decoding failures are plain bad requests here.
			status = http.StatusBadRequest
		}
		return newAPIError(status, msg, joinErrors(errs))
	}

	log := cfg.logger()
	router := chi.NewRouter()
	router.Use(requestLogger(log))
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Spy Cat Agency API", "1.0.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "/docs"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	h := handlers{e: cfg.Engine, log: log}
	registerHealth(group)
	h.registerAgents(group)
	h.registerMissions(group)
	h.registerField(group)
	h.registerEvents(group)
	return router, nil
}

// requestLogger tags each request with an id (the caller's X-Request-Id when
// present) and logs it once served.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get("X-Request-Id"))
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-Id", id)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r.WithContext(events.WithRequestID(r.Context(), id)))
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"request_id", id,
				"duration", time.Since(start))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

type handlers struct {
	e   engine.Engine
	log *slog.Logger
}

// fail maps engine errors onto the envelope.
func (h handlers) fail(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ve engine.ValidationError
	var ce engine.ConflictError
	var nf engine.NotFoundError
	switch {
	case errors.As(err, &ve):
		h.log.Debug("request rejected", "reason", ve.Reason)
		return newAPIError(http.StatusBadRequest, "Invalid request", ve.Reason)
	case errors.As(err, &ce):
		h.log.Debug("request conflicts", "summary", ce.Summary, "reason", ce.Reason)
		return newAPIError(http.StatusConflict, ce.Summary, ce.Reason)
	case errors.As(err, &nf):
		return newAPIError(http.StatusNotFound, "Not found", nf.Error())
	case errors.Is(err, engine.ErrNotFound):
		return newAPIError(http.StatusNotFound, "Not found", "")
	default:
		h.log.Error("internal error", "error", err)
		return newAPIError(http.StatusInternalServerError, "Internal server error", "")
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

type agentPath struct {
	ID int64 `path:"id"`
}

type agentBody struct {
	Body domain.Agent `json:"body"`
}

func (h handlers) registerAgents(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-cats",
		Method:      http.MethodGet,
		Path:        "/cats",
		Summary:     "List spy cats",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Limit  int `query:"limit" minimum:"0"`
		Offset int `query:"offset" minimum:"0"`
	}) (*struct {
		Body AgentListResponse `json:"body"`
	}, error) {
		page, err := h.e.ListAgents(ctx, input.Limit, input.Offset)
		if err != nil {
			return nil, h.fail(err)
		}
		return &struct {
			Body AgentListResponse `json:"body"`
		}{Body: agentListResponse(page)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-breeds",
		Method:      http.MethodGet,
		Path:        "/cats/breeds",
		Summary:     "Breed catalog",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body BreedsResponse `json:"body"`
	}, error) {
		return &struct {
			Body BreedsResponse `json:"body"`
		}{Body: BreedsResponse{Breeds: h.e.BreedCatalog()}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-cat",
		Method:      http.MethodGet,
		Path:        "/cats/{id}",
		Summary:     "Get spy cat",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *agentPath) (*agentBody, error) {
		a, err := h.e.GetAgent(ctx, input.ID)
		if err != nil {
			return nil, h.fail(err)
		}
		return &agentBody{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-cat",
		Method:        http.MethodPost,
		Path:          "/agency/cats",
		Summary:       "Recruit spy cat",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateAgentRequest `json:"body"`
	}) (*agentBody, error) {
		a, err := h.e.CreateAgent(ctx, engine.AgentInput{
			Name:              input.Body.Name,
			YearsOfExperience: input.Body.YearsOfExperience,
			Breed:             input.Body.Breed,
			Salary:            input.Body.Salary,
		})
		if err != nil {
			return nil, h.fail(err)
		}
		return &agentBody{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-cat-salary",
		Method:      http.MethodPut,
		Path:        "/agency/cats/{id}/salary",
		Summary:     "Update salary",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   int64         `path:"id"`
		Body SalaryRequest `json:"body"`
	}) (*agentBody, error) {
		a, err := h.e.UpdateAgentSalary(ctx, input.ID, input.Body.Salary)
		if err != nil {
			return nil, h.fail(err)
		}
		return &agentBody{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-cat",
		Method:      http.MethodDelete,
		Path:        "/agency/cats/{id}",
		Summary:     "Terminate spy cat",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *agentPath) (*struct{}, error) {
		if err := h.e.DeleteAgent(ctx, input.ID); err != nil {
			return nil, h.fail(err)
		}
		return &struct{}{}, nil
	})
}

type missionPath struct {
	ID int64 `path:"id"`
}

type missionBody struct {
	Body domain.Mission `json:"body"`
}

func (h handlers) registerMissions(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-missions",
		Method:      http.MethodGet,
		Path:        "/agency/missions",
		Summary:     "List missions",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Mission `json:"body"`
	}, error) {
		items, err := h.e.ListMissions(ctx)
		if err != nil {
			return nil, h.fail(err)
		}
		return &struct {
			Body []domain.Mission `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-free-cats",
		Method:      http.MethodGet,
		Path:        "/agency/missions/free-cats",
		Summary:     "Spy cats without a mission",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Agent `json:"body"`
	}, error) {
		items, err := h.e.ListFreeAgents(ctx)
		if err != nil {
			return nil, h.fail(err)
		}
		return &struct {
			Body []domain.Agent `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-mission",
		Method:      http.MethodGet,
		Path:        "/agency/missions/{id}",
		Summary:     "Get mission",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *missionPath) (*missionBody, error) {
		m, err := h.e.GetMission(ctx, input.ID)
		if err != nil {
			return nil, h.fail(err)
		}
		return &missionBody{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-mission",
		Method:        http.MethodPost,
		Path:          "/agency/missions",
		Summary:       "Create mission",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateMissionRequest `json:"body"`
	}) (*missionBody, error) {
		m, err := h.e.CreateMission(ctx, missionInput(input.Body))
		if err != nil {
			return nil, h.fail(err)
		}
		return &missionBody{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-mission",
		Method:      http.MethodDelete,
		Path:        "/agency/missions/{id}",
		Summary:     "Delete mission",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *missionPath) (*struct{}, error) {
		if err := h.e.DeleteMission(ctx, input.ID); err != nil {
			return nil, h.fail(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-cat",
		Method:      http.MethodPost,
		Path:        "/agency/missions/{id}/assign",
		Summary:     "Assign spy cat",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   int64         `path:"id"`
		Body AssignRequest `json:"body"`
	}) (*missionBody, error) {
		m, err := h.e.AssignAgent(ctx, input.ID, input.Body.CatID)
		if err != nil {
			return nil, h.fail(err)
		}
		return &missionBody{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-target",
		Method:        http.MethodPost,
		Path:          "/agency/missions/{id}/targets",
		Summary:       "Add target",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   int64         `path:"id"`
		Body TargetRequest `json:"body"`
	}) (*struct {
		Body domain.Target `json:"body"`
	}, error) {
		t, err := h.e.AddTarget(ctx, input.ID, engine.TargetInput{Name: input.Body.Name, Country: input.Body.Country, Notes: input.Body.Notes})
		if err != nil {
			return nil, h.fail(err)
		}
		return &struct {
			Body domain.Target `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-target",
		Method:      http.MethodDelete,
		Path:        "/agency/missions/{id}/targets/{target_id}",
		Summary:     "Delete target",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID       int64 `path:"id"`
		TargetID int64 `path:"target_id"`
	}) (*struct{}, error) {
		if err := h.e.DeleteTarget(ctx, input.ID, input.TargetID); err != nil {
			return nil, h.fail(err)
		}
		return &struct{}{}, nil
	})
}

type targetBody struct {
	Body domain.Target `json:"body"`
}

func (h handlers) registerField(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-cat-mission",
		Method:      http.MethodGet,
		Path:        "/spy-cats/{id}/mission",
		Summary:     "Spy cat's current mission (204 when none)",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *agentPath) (*struct {
		Status      int
		ContentType string `header:"Content-Type"`
		Body        []byte
	}, error) {
		m, err := h.e.AgentMission(ctx, input.ID)
		if err != nil {
			return nil, h.fail(err)
		}
		out := &struct {
			Status      int
			ContentType string `header:"Content-Type"`
			Body        []byte
		}{Status: http.StatusNoContent}
		if m == nil {
			return out, nil
		}
		data, err := json.Marshal(m)
		if err != nil {
			return nil, h.fail(err)
		}
		out.Status = http.StatusOK
		out.ContentType = "application/json"
		out.Body = data
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-target-status",
		Method:      http.MethodPut,
		Path:        "/spy-cats/{id}/mission/targets/{target_id}/status",
		Summary:     "Update target status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID       int64         `path:"id"`
		TargetID int64         `path:"target_id"`
		Body     StatusRequest `json:"body"`
	}) (*targetBody, error) {
		t, err := h.e.UpdateTargetStatus(ctx, input.ID, input.TargetID, input.Body.Status)
		if err != nil {
			return nil, h.fail(err)
		}
		return &targetBody{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-target-notes",
		Method:      http.MethodPut,
		Path:        "/spy-cats/{id}/mission/targets/{target_id}/notes",
		Summary:     "Update target notes",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID       int64        `path:"id"`
		TargetID int64        `path:"target_id"`
		Body     NotesRequest `json:"body"`
	}) (*targetBody, error) {
		t, err := h.e.UpdateTargetNotes(ctx, input.ID, input.TargetID, input.Body.Notes)
		if err != nil {
			return nil, h.fail(err)
		}
		return &targetBody{Body: t}, nil
	})
}

func (h handlers) registerEvents(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Audit log",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		After int64 `query:"after" minimum:"0"`
		Limit int   `query:"limit" default:"50" minimum:"1" maximum:"200"`
	}) (*struct {
		Body []domain.Event `json:"body"`
	}, error) {
		items, err := h.e.ListEvents(ctx, input.After, input.Limit)
		if err != nil {
			return nil, h.fail(err)
		}
		return &struct {
			Body []domain.Event `json:"body"`
		}{Body: items}, nil
	})
}

func joinErrors(errs []error) string {
	var parts []string
	for _, err := range errs {
		if err != nil {
			parts = append(parts, err.Error())
		}
	}
	return strings.Join(parts, "; ")
}
