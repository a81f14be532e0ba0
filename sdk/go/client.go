package sitelinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Siteline HTTP API client aimed at field apps.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

// Task represents the API task model (partial).
type Task struct {
	ID          string   `json:"id"`
	SubObjectID string   `json:"sub_object_id"`
	ProjectID   string   `json:"project_id"`
	Title       string   `json:"title"`
	Type        string   `json:"type"`
	Index       int      `json:"index"`
	Status      string   `json:"status"`
	Assignees   []string `json:"assignees"`
}

type ChecklistItem struct {
	ID              string  `json:"id"`
	Description     string  `json:"description"`
	IsPhotoRequired bool    `json:"is_photo_required"`
	Methodology     *string `json:"methodology,omitempty"`
	IsCompleted     bool    `json:"is_completed"`
	OrderIndex      int     `json:"order_index"`
}

type Checklist struct {
	TaskID string          `json:"task_id"`
	Items  []ChecklistItem `json:"items"`
}

type Review struct {
	ActorID    string `json:"actor_id"`
	Role       string `json:"role"`
	Approve    bool   `json:"approve"`
	Comment    string `json:"comment,omitempty"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	CreatedAt  string `json:"created_at"`
}

// TaskDetail is a task with its checklist and review history.
type TaskDetail struct {
	Task      Task      `json:"task"`
	Checklist Checklist `json:"checklist"`
	Reviews   []Review  `json:"reviews"`
}

type Answer struct {
	ChecklistItemID string `json:"checklist_item_id"`
	Completed       bool   `json:"completed"`
}

type Photo struct {
	ChecklistItemID string `json:"checklist_item_id"`
	Ref             string `json:"ref"`
}

// Report is the body of a submission.
type Report struct {
	Comment string   `json:"comment,omitempty"`
	Answers []Answer `json:"answers,omitempty"`
	Photos  []Photo  `json:"photos,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id"`
	EntityID   string `json:"entity_id"`
	EntityKind string `json:"entity_kind"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor *int64  `json:"next_cursor"`
}

// APIError wraps non-2xx responses. Code and Message are filled from the
// error envelope when the body carries one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]any
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// DevLogin exchanges an actor id for a bearer token and stores it on c.
// It only works against servers with dev login enabled.
func (c *Client) DevLogin(ctx context.Context, actorID string) error {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "auth/dev/login", map[string]string{"actor_id": actorID}, &resp); err != nil {
		return err
	}
	c.BearerToken = resp.Token
	return nil
}

// MyTasks lists tasks assigned to the caller.
func (c *Client) MyTasks(ctx context.Context) ([]Task, error) {
	var resp []Task
	err := c.do(ctx, http.MethodGet, "me/tasks", nil, &resp)
	return resp, err
}

// ReviewQueue lists tasks waiting at the caller's review tier.
func (c *Client) ReviewQueue(ctx context.Context, projectID string) ([]Task, error) {
	endpoint := "review-queue"
	if projectID != "" {
		endpoint += "?project_id=" + url.QueryEscape(projectID)
	}
	var resp []Task
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) Task(ctx context.Context, taskID string) (TaskDetail, error) {
	var resp TaskDetail
	err := c.do(ctx, http.MethodGet, taskPath(taskID, ""), nil, &resp)
	return resp, err
}

// ToggleItem marks a checklist item done or not done.
func (c *Client) ToggleItem(ctx context.Context, taskID, itemID string, completed bool) (ChecklistItem, error) {
	var resp ChecklistItem
	endpoint := taskPath(taskID, fmt.Sprintf("checklist/items/%s/toggle", url.PathEscape(itemID)))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]bool{"completed": completed}, &resp)
	return resp, err
}

// UploadPhoto stores a photo and returns the ref to put in a Report.
func (c *Client) UploadPhoto(ctx context.Context, taskID, filename string, r io.Reader) (string, error) {
	endpoint := taskPath(taskID, "evidence") + "?filename=" + url.QueryEscape(filename)
	var resp struct {
		Ref string `json:"ref"`
	}
	err := c.send(ctx, http.MethodPost, endpoint, "application/octet-stream", r, &resp)
	return resp.Ref, err
}

// Submit sends a report for foreman review.
func (c *Client) Submit(ctx context.Context, taskID string, rep Report) (TaskDetail, error) {
	var resp TaskDetail
	err := c.do(ctx, http.MethodPost, taskPath(taskID, "submit"), rep, &resp)
	return resp, err
}

// Approve approves a task under review.
func (c *Client) Approve(ctx context.Context, taskID, comment string) (Task, error) {
	return c.decide(ctx, taskID, "approve", comment)
}

// Reject sends a task back for rework; comment must not be blank.
func (c *Client) Reject(ctx context.Context, taskID, comment string) (Task, error) {
	return c.decide(ctx, taskID, "reject", comment)
}

func (c *Client) decide(ctx context.Context, taskID, decision, comment string) (Task, error) {
	var resp Task
	body := map[string]string{"decision": decision, "comment": comment}
	err := c.do(ctx, http.MethodPost, taskPath(taskID, "decision"), body, &resp)
	return resp, err
}

// EventsPage returns events older than before (0 for the newest).
func (c *Client) EventsPage(ctx context.Context, limit int, before int64) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if before > 0 {
		q.Set("before", fmt.Sprint(before))
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	return c.send(ctx, method, endpoint, "application/json", &buf, out)
}

func (c *Client) send(ctx context.Context, method, endpoint, contentType string, body io.Reader, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(endpoint), body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string         `json:"code"`
				Message string         `json:"message"`
				Details map[string]any `json:"details"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Details = env.Error.Details
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func taskPath(taskID, p string) string {
	base := "tasks/" + url.PathEscape(taskID)
	if p == "" {
		return base
	}
	return base + "/" + strings.TrimLeft(p, "/")
}

func (c *Client) url(endpoint string) string {
	base := strings.TrimRight(c.BaseURL, "/")
	if bp := strings.Trim(c.BasePath, "/"); bp != "" {
		base += "/" + bp
	}
	return base + "/" + strings.TrimLeft(endpoint, "/")
}
