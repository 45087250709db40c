package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the production IS57 backend.
const DefaultBaseURL = "https://back.is57.ru"

const invalidTokenBody = "invalid token"

// ErrInvalidToken is returned when the backend rejects the API token.
var ErrInvalidToken = errors.New("scoring API rejected the token")

// APIError is returned for non-200 responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("scoring API request failed with status %d: %s", e.StatusCode, e.Body)
}

// Client is an IS57 scoring API client. All endpoints are GET requests;
// mutating endpoints take the API token as a query parameter.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return NewClientWithHTTP(baseURL, &http.Client{Timeout: timeout})
}

// NewClientWithHTTP creates a client that sends requests through httpClient.
// An empty baseURL selects DefaultBaseURL.
func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// get performs a GET request. JSON bodies are decoded into result when it is
// non-nil; a plain-text "invalid token" body maps to ErrInvalidToken.
func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		if strings.TrimSpace(string(body)) == invalidTokenBody {
			return ErrInvalidToken
		}
		return nil
	}

	var envelope struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error == invalidTokenBody {
		return ErrInvalidToken
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// GetTeams returns all teams.
func (c *Client) GetTeams(ctx context.Context) ([]Team, error) {
	var teams []Team
	if err := c.get(ctx, "/teams", nil, &teams); err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	return teams, nil
}

// GetTasks returns all tasks.
func (c *Client) GetTasks(ctx context.Context) ([]Task, error) {
	var tasks []Task
	if err := c.get(ctx, "/tasks", nil, &tasks); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// GetResults returns the full results structure.
func (c *Client) GetResults(ctx context.Context) (Results, error) {
	results := Results{}
	if err := c.get(ctx, "/results", nil, &results); err != nil {
		return nil, fmt.Errorf("failed to get results: %w", err)
	}
	return results, nil
}

// AddTeam creates a team in a building.
func (c *Client) AddTeam(ctx context.Context, token string, building int, name string) error {
	params := url.Values{
		"token":    {token},
		"building": {strconv.Itoa(building)},
		"name":     {name},
	}
	if err := c.get(ctx, "/teams/add", params, nil); err != nil {
		return fmt.Errorf("failed to add team: %w", err)
	}
	return nil
}

// RemoveTeam deletes a team by ID.
func (c *Client) RemoveTeam(ctx context.Context, token string, teamID int64) error {
	params := url.Values{
		"token": {token},
		"id":    {strconv.FormatInt(teamID, 10)},
	}
	if err := c.get(ctx, "/teams/del", params, nil); err != nil {
		return fmt.Errorf("failed to remove team: %w", err)
	}
	return nil
}

// AddTask creates a task for a subject.
func (c *Client) AddTask(ctx context.Context, token, subject, name string) error {
	params := url.Values{
		"token":   {token},
		"subject": {subject},
		"name":    {name},
	}
	if err := c.get(ctx, "/tasks/add", params, nil); err != nil {
		return fmt.Errorf("failed to add task: %w", err)
	}
	return nil
}

// RemoveTask deletes a task by ID.
func (c *Client) RemoveTask(ctx context.Context, token string, taskID int64) error {
	params := url.Values{
		"token": {token},
		"id":    {strconv.FormatInt(taskID, 10)},
	}
	if err := c.get(ctx, "/tasks/del", params, nil); err != nil {
		return fmt.Errorf("failed to remove task: %w", err)
	}
	return nil
}

// SetResult records a team's points for a task.
func (c *Client) SetResult(ctx context.Context, token string, teamID, taskID int64, value int) error {
	params := url.Values{
		"token":   {token},
		"team_id": {strconv.FormatInt(teamID, 10)},
		"task_id": {strconv.FormatInt(taskID, 10)},
		"value":   {strconv.Itoa(value)},
	}
	if err := c.get(ctx, "/results/set", params, nil); err != nil {
		return fmt.Errorf("failed to set result: %w", err)
	}
	return nil
}

// SetDate sets the competition date shown by the backend.
func (c *Client) SetDate(ctx context.Context, token, value string) error {
	params := url.Values{
		"token": {token},
		"value": {value},
	}
	if err := c.get(ctx, "/date/set", params, nil); err != nil {
		return fmt.Errorf("failed to set date: %w", err)
	}
	return nil
}
