package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"spyagency/internal/db"
	"spyagency/internal/domain"
	"spyagency/internal/engine"
	"spyagency/internal/migrate"
	agencysdk "spyagency/sdk/go"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

// API returns an SDK client pointed at the test server.
func (s *testServer) API() *agencysdk.Client {
	return agencysdk.New(s.URL + "/api/v1")
}

func newTestServer(t *testing.T, auth AuthConfig) *testServer {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, []string{"Abyssinian", "Bengal", "Maine Coon", "Siamese"})
	handler, err := New(Config{Engine: e, Auth: auth})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(testSrv.Close)
	return testSrv
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	reader := bytes.NewReader(nil)
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func decodeEnvelope(t *testing.T, data []byte) (string, string) {
	t.Helper()
	var env struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode envelope %s: %v", string(data), err)
	}
	return env.Error, env.Details
}

func TestAgentLifecycle(t *testing.T) {
	srv := newTestServer(t, AuthConfig{})
	client := srv.Client()
	base := srv.URL + "/api/v1"

	res, data := doJSON(t, client, http.MethodPost, base+"/agency/cats", map[string]any{
		"name":                "Whiskers",
		"years_of_experience": 3,
		"breed":               "Siamese",
		"salary":              50000,
	}, map[string]string{"X-Request-Id": "req-1"})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create cat status %d: %s", res.StatusCode, string(data))
	}
	if res.Header.Get("X-Request-Id") != "req-1" {
		t.Fatalf("request id not echoed: %q", res.Header.Get("X-Request-Id"))
	}
	var created domain.Agent
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal agent: %v", err)
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/agency/cats", map[string]any{
		"name": "Rex", "years_of_experience": 1, "breed": "Dragon", "salary": 1,
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown breed, got %d %s", res.StatusCode, string(data))
	}
	if msg, details := decodeEnvelope(t, data); msg != "Invalid request" || details == "" {
		t.Fatalf("unexpected envelope %q %q", msg, details)
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/cats?limit=10", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list cats status %d: %s", res.StatusCode, string(data))
	}
	var list AgentListResponse
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if list.Total != 1 || len(list.Cats) != 1 || len(list.Breeds) != 4 || list.Limit != 10 {
		t.Fatalf("unexpected list %+v", list)
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/cats/breeds", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("breeds status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPut, base+"/agency/cats/999/salary", map[string]any{"salary": 10}, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/events?limit=5", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events status %d: %s", res.StatusCode, string(data))
	}
	var evts []domain.Event
	if err := json.Unmarshal(data, &evts); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(evts) != 1 || evts[0].RequestID != "req-1" {
		t.Fatalf("unexpected events %+v", evts)
	}
}

func TestMissionFlowThroughSDK(t *testing.T) {
	srv := newTestServer(t, AuthConfig{})
	api := srv.API()
	ctx := context.Background()

	cat, err := api.CreateAgent(ctx, agencysdk.CreateAgentRequest{Name: "Jane", Breed: "Abyssinian", YearsOfExperience: 5, Salary: 75000})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	m, err := api.CreateMission(ctx, agencysdk.CreateMissionRequest{
		Name:        "Operation Goldfish",
		Description: "Retrieve the goldfish",
		Targets: []agencysdk.TargetDraft{
			{Name: "Bubbles", Country: "France"},
			{Name: "Finn", Country: "Spain"},
		},
	})
	if err != nil {
		t.Fatalf("create mission: %v", err)
	}

	none, err := api.GetAgentMission(ctx, cat.ID)
	if err != nil || none != nil {
		t.Fatalf("expected no mission, got %+v %v", none, err)
	}

	free, err := api.ListFreeAgents(ctx)
	if err != nil || len(free) != 1 {
		t.Fatalf("free agents: %+v %v", free, err)
	}
	assigned, err := api.AssignAgent(ctx, m.ID, cat.ID)
	if err != nil || !assigned.Assigned() {
		t.Fatalf("assign: %+v %v", assigned, err)
	}

	err = api.DeleteAgent(ctx, cat.ID)
	var apiErr *agencysdk.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if apiErr.Code != "Cannot delete spy cat" || apiErr.Details != "This spy cat is currently assigned to a mission. Please unassign the cat from the mission before deletion." {
		t.Fatalf("unexpected envelope %+v", apiErr)
	}

	if _, err := api.UpdateTargetNotes(ctx, cat.ID, m.Targets[0].ID, "near the pond"); err != nil {
		t.Fatalf("notes: %v", err)
	}
	for _, target := range m.Targets {
		if _, err := api.UpdateTargetStatus(ctx, cat.ID, target.ID, agencysdk.TargetCompleted); err != nil {
			t.Fatalf("complete target %d: %v", target.ID, err)
		}
	}
	done, err := api.GetAgentMission(ctx, cat.ID)
	if err != nil || done == nil {
		t.Fatalf("agent mission: %+v %v", done, err)
	}
	if !done.IsCompleted || done.Targets[0].NotesText() != "near the pond" {
		t.Fatalf("mission not completed: %+v", done)
	}

	_, err = api.UpdateTargetStatus(ctx, cat.ID, m.Targets[0].ID, agencysdk.TargetInProgress)
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 on final target, got %v", err)
	}
	if err := api.DeleteAgent(ctx, cat.ID); err != nil {
		t.Fatalf("delete released agent: %v", err)
	}
	if _, err := api.GetAgentMission(ctx, cat.ID); !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for deleted agent, got %v", err)
	}
}

func TestFieldTargetUpdates(t *testing.T) {
	srv := newTestServer(t, AuthConfig{})
	api := srv.API()
	client := srv.Client()
	base := srv.URL + "/api/v1"
	ctx := context.Background()

	cat, err := api.CreateAgent(ctx, agencysdk.CreateAgentRequest{Name: "Kvas", Breed: "Bengal", YearsOfExperience: 3, Salary: 65000})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	other, err := api.CreateAgent(ctx, agencysdk.CreateAgentRequest{Name: "Luna", Breed: "Siamese", YearsOfExperience: 2, Salary: 55000})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	m, err := api.CreateMission(ctx, agencysdk.CreateMissionRequest{
		Name:        "Operation Yarn",
		Description: "Untangle the yarn ring",
		Targets:     []agencysdk.TargetDraft{{Name: "Knots", Country: "Peru"}, {Name: "Loops", Country: "Chile"}},
	})
	if err != nil {
		t.Fatalf("create mission: %v", err)
	}
	if _, err := api.AssignAgent(ctx, m.ID, cat.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	target := m.Targets[0]
	statusURL := base + "/spy-cats/" + strconv.FormatInt(cat.ID, 10) + "/mission/targets/" + strconv.FormatInt(target.ID, 10) + "/status"
	notesURL := base + "/spy-cats/" + strconv.FormatInt(cat.ID, 10) + "/mission/targets/" + strconv.FormatInt(target.ID, 10) + "/notes"

	res, data := doJSON(t, client, http.MethodPut, statusURL, map[string]any{"status": "in_progress"}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status update %d: %s", res.StatusCode, string(data))
	}
	var updated domain.Target
	if err := json.Unmarshal(data, &updated); err != nil {
		t.Fatalf("unmarshal target: %v", err)
	}
	if updated.ID != target.ID || updated.Status != domain.TargetInProgress {
		t.Fatalf("unexpected target %+v", updated)
	}

	res, data = doJSON(t, client, http.MethodPut, notesURL, map[string]any{"notes": "seen at the market"}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("notes update %d: %s", res.StatusCode, string(data))
	}
	updated = domain.Target{}
	if err := json.Unmarshal(data, &updated); err != nil {
		t.Fatalf("unmarshal target: %v", err)
	}
	if updated.Notes == nil || *updated.Notes != "seen at the market" || updated.Status != domain.TargetInProgress {
		t.Fatalf("unexpected target %+v", updated)
	}

	res, data = doJSON(t, client, http.MethodPut, statusURL, map[string]any{"status": "done"}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d %s", res.StatusCode, string(data))
	}

	foreign := base + "/spy-cats/" + strconv.FormatInt(other.ID, 10) + "/mission/targets/" + strconv.FormatInt(target.ID, 10) + "/notes"
	res, data = doJSON(t, client, http.MethodPut, foreign, map[string]any{"notes": "x"}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for another agent's target, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPut, statusURL, map[string]any{"status": "completed"}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("complete %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPut, notesURL, map[string]any{"notes": "too late"}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 on completed target notes, got %d %s", res.StatusCode, string(data))
	}
}

func TestTargetManagementRules(t *testing.T) {
	srv := newTestServer(t, AuthConfig{})
	api := srv.API()
	ctx := context.Background()

	m, err := api.CreateMission(ctx, agencysdk.CreateMissionRequest{
		Name:        "Project Yarn Ball",
		Description: "Unravel it",
		Targets:     []agencysdk.TargetDraft{{Name: "Red", Country: "Italy"}},
	})
	if err != nil {
		t.Fatalf("create mission: %v", err)
	}
	var apiErr *agencysdk.APIError
	if err := api.DeleteTarget(ctx, m.ID, m.Targets[0].ID); !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected last target rejection, got %v", err)
	}
	added, err := api.AddTarget(ctx, m.ID, agencysdk.AddTargetRequest{Name: "Blue", Country: "Chile"})
	if err != nil || added.Status != agencysdk.TargetInit {
		t.Fatalf("add target: %+v %v", added, err)
	}
	if err := api.DeleteTarget(ctx, m.ID, added.ID); err != nil {
		t.Fatalf("delete target: %v", err)
	}
	if err := api.DeleteMission(ctx, m.ID); err != nil {
		t.Fatalf("delete mission: %v", err)
	}
	missions, err := api.ListMissions(ctx)
	if err != nil || len(missions) != 0 {
		t.Fatalf("missions: %+v %v", missions, err)
	}
}

func TestAuthRequiresToken(t *testing.T) {
	const secret = "sandbox-secret"
	srv := newTestServer(t, AuthConfig{JWTSecret: secret})
	client := srv.Client()
	base := srv.URL + "/api/v1"

	res, data := doJSON(t, client, http.MethodGet, base+"/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, base+"/cats", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d %s", res.StatusCode, string(data))
	}
	if msg, _ := decodeEnvelope(t, data); msg != "Unauthorized" {
		t.Fatalf("unexpected error %q", msg)
	}

	bad, err := SignToken("other-secret", "ops", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	res, _ = doJSON(t, client, http.MethodGet, base+"/cats", nil, map[string]string{"Authorization": "Bearer " + bad})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for foreign token, got %d", res.StatusCode)
	}

	token, err := SignToken(secret, "ops", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	api := srv.API()
	api.BearerToken = token
	if _, err := api.ListAgents(context.Background(), agencysdk.ListOptions{}); err != nil {
		t.Fatalf("list with token: %v", err)
	}

	bearer := map[string]string{"Authorization": "Bearer " + token}
	res, data = doJSON(t, client, http.MethodPost, base+"/agency/cats", map[string]any{
		"name": "Tom", "years_of_experience": 2, "breed": "Bengal", "salary": 100,
	}, bearer)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create with token %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, base+"/events", nil, bearer)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events status %d: %s", res.StatusCode, string(data))
	}
	var evts []domain.Event
	if err := json.Unmarshal(data, &evts); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(evts) != 1 {
		t.Fatalf("expected one event, got %+v", evts)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(evts[0].PayloadJSON), &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["operator"] != "ops" {
		t.Fatalf("operator not recorded: %v", payload)
	}
}
