package agencysdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client is a Spy Cat Agency HTTP API client. Every call is a single request:
// no retries, no caching.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
	Logger      *slog.Logger
}

// New creates a client with sane defaults. baseURL includes the API prefix,
// e.g. http://localhost:3001/api/v1.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// ErrEmptyResponse is returned when a response that should carry a body has none.
var ErrEmptyResponse = errors.New("empty response body")

// APIError wraps non-2xx responses. Code and Details come from the
// {error, details} envelope when the server sent one.
type APIError struct {
	StatusCode int
	Code       string
	Details    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("api error: status=%d error=%s details=%s", e.StatusCode, e.Code, e.Details)
	}
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d error=%s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// ListAgents returns a page of agents with the breed catalog.
func (c *Client) ListAgents(ctx context.Context, opts ListOptions) (AgentList, error) {
	endpoint := "cats"
	q := url.Values{}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp AgentList
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetAgent fetches one agent.
func (c *Client) GetAgent(ctx context.Context, id int64) (Agent, error) {
	var resp Agent
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("cats/%d", id), nil, &resp)
	return resp, err
}

// ListBreeds returns the breed catalog.
func (c *Client) ListBreeds(ctx context.Context) ([]string, error) {
	var resp struct {
		Breeds []string `json:"breeds"`
	}
	err := c.do(ctx, http.MethodGet, "cats/breeds", nil, &resp)
	return resp.Breeds, err
}

// CreateAgent registers an agent.
func (c *Client) CreateAgent(ctx context.Context, req CreateAgentRequest) (Agent, error) {
	var resp Agent
	err := c.do(ctx, http.MethodPost, "agency/cats", req, &resp)
	return resp, err
}

// UpdateAgentSalary sets an agent's salary and returns the updated agent.
func (c *Client) UpdateAgentSalary(ctx context.Context, id int64, salary float64) (Agent, error) {
	body := map[string]any{"salary": salary}
	var resp Agent
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("agency/cats/%d/salary", id), body, &resp)
	return resp, err
}

// DeleteAgent removes an agent.
func (c *Client) DeleteAgent(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("agency/cats/%d", id), nil, nil)
}

// ListMissions returns all missions.
func (c *Client) ListMissions(ctx context.Context) ([]Mission, error) {
	var resp []Mission
	err := c.do(ctx, http.MethodGet, "agency/missions", nil, &resp)
	return resp, err
}

// GetMission fetches one mission.
func (c *Client) GetMission(ctx context.Context, id int64) (Mission, error) {
	var resp Mission
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("agency/missions/%d", id), nil, &resp)
	return resp, err
}

// CreateMission creates a mission with its initial targets.
func (c *Client) CreateMission(ctx context.Context, req CreateMissionRequest) (Mission, error) {
	var resp Mission
	err := c.do(ctx, http.MethodPost, "agency/missions", req, &resp)
	return resp, err
}

// DeleteMission removes a mission.
func (c *Client) DeleteMission(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("agency/missions/%d", id), nil, nil)
}

// AssignAgent assigns an agent to a mission and returns the updated mission.
func (c *Client) AssignAgent(ctx context.Context, missionID, agentID int64) (Mission, error) {
	body := map[string]any{"cat_id": agentID}
	var resp Mission
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("agency/missions/%d/assign", missionID), body, &resp)
	return resp, err
}

// ListFreeAgents returns agents with no current mission.
func (c *Client) ListFreeAgents(ctx context.Context) ([]Agent, error) {
	var resp []Agent
	err := c.do(ctx, http.MethodGet, "agency/missions/free-cats", nil, &resp)
	return resp, err
}

// AddTarget appends a target to a mission.
func (c *Client) AddTarget(ctx context.Context, missionID int64, req AddTargetRequest) (Target, error) {
	var resp Target
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("agency/missions/%d/targets", missionID), req, &resp)
	return resp, err
}

// DeleteTarget removes a target from a mission.
func (c *Client) DeleteTarget(ctx context.Context, missionID, targetID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("agency/missions/%d/targets/%d", missionID, targetID), nil, nil)
}

// GetAgentMission returns the agent's current mission. A nil mission with a
// nil error means no mission is assigned.
func (c *Client) GetAgentMission(ctx context.Context, agentID int64) (*Mission, error) {
	var resp Mission
	present, err := c.send(ctx, http.MethodGet, fmt.Sprintf("spy-cats/%d/mission", agentID), nil, &resp)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	return &resp, nil
}

// UpdateTargetStatus moves a target of the agent's mission to status.
func (c *Client) UpdateTargetStatus(ctx context.Context, agentID, targetID int64, status TargetStatus) (Target, error) {
	body := map[string]any{"status": status}
	var resp Target
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("spy-cats/%d/mission/targets/%d/status", agentID, targetID), body, &resp)
	return resp, err
}

// UpdateTargetNotes replaces the notes of a target of the agent's mission.
func (c *Client) UpdateTargetNotes(ctx context.Context, agentID, targetID int64, notes string) (Target, error) {
	body := map[string]any{"notes": notes}
	var resp Target
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("spy-cats/%d/mission/targets/%d/notes", agentID, targetID), body, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	present, err := c.send(ctx, method, endpoint, body, out)
	if err != nil {
		return err
	}
	if out != nil && !present {
		return fmt.Errorf("%s %s: %w", method, endpoint, ErrEmptyResponse)
	}
	return nil
}

// send performs the request and decodes a 2xx body into out. It reports
// whether the response carried content; 204 and blank bodies do not.
func (c *Client) send(ctx context.Context, method, endpoint string, body any, out any) (bool, error) {
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return false, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return false, err
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		c.logger().Debug("agency request failed", "method", method, "path", endpoint, "request_id", requestID, "err", err)
		return false, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("%s %s: read body: %w", method, endpoint, err)
	}
	c.logger().Debug("agency request",
		"method", method,
		"path", endpoint,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, newAPIError(resp.StatusCode, data)
	}
	trimmed := bytes.TrimSpace(data)
	if resp.StatusCode == http.StatusNoContent || len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return false, nil
	}
	if out != nil {
		if err := json.Unmarshal(trimmed, out); err != nil {
			return true, fmt.Errorf("%s %s: decode response: %w", method, endpoint, err)
		}
	}
	return true, nil
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}
	var envelope struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		apiErr.Code = envelope.Error
		apiErr.Details = envelope.Details
	}
	return apiErr
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
