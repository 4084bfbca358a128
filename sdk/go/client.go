package remindlinesdk

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

// Client is a minimal remindline HTTP API client, meant for the chat gateway.
type Client struct {
	BaseURL     string
	BearerToken string
	// UserID is sent as X-User-Id when no bearer token is set. The server only
	// honours it with allow_user_header enabled.
	UserID     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// As returns a copy of the client acting for another user.
func (c *Client) As(userID string) *Client {
	cp := *c
	cp.UserID = userID
	cp.BearerToken = ""
	return &cp
}

// Task represents the API task model.
type Task struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Description    string     `json:"description"`
	Deadline       *time.Time `json:"deadline,omitempty"`
	Status         string     `json:"status"`
	NextReminderAt *time.Time `json:"next_reminder_at,omitempty"`
	DelayMinutes   int        `json:"delay_minutes"`
	AssignedBy     *string    `json:"assigned_by,omitempty"`
}

type User struct {
	ID         string `json:"id"`
	FullName   string `json:"full_name"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
	Active     bool   `json:"active"`
}

// Event represents a task history entry.
type Event struct {
	ID      int64          `json:"id"`
	TaskID  string         `json:"task_id"`
	Kind    string         `json:"kind"`
	At      time.Time      `json:"at"`
	ActorID string         `json:"actor_id,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

type CreateResult struct {
	Task     Task   `json:"task"`
	Managers []User `json:"managers"`
}

type ReplyResult struct {
	Task      Task   `json:"task"`
	Forwarded []User `json:"forwarded"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateTask creates a task. An empty owner means the caller.
func (c *Client) CreateTask(ctx context.Context, ownerID, description, deadline string) (CreateResult, error) {
	body := map[string]any{
		"description": description,
	}
	if ownerID != "" {
		body["owner_id"] = ownerID
	}
	if deadline != "" {
		body["deadline"] = deadline
	}
	var resp CreateResult
	err := c.do(ctx, http.MethodPost, "tasks", body, &resp)
	return resp, err
}

// Tasks lists the tasks the caller may see.
func (c *Client) Tasks(ctx context.Context, userID string, openOnly bool) ([]Task, error) {
	q := url.Values{}
	if userID != "" {
		q.Set("user_id", userID)
	}
	if openOnly {
		q.Set("open", "true")
	}
	endpoint := "tasks"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp []Task
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) Task(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, taskPath(id, ""), nil, &resp)
	return resp, err
}

func (c *Client) Start(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, taskPath(id, "start"), nil, &resp)
	return resp, err
}

// Complete is the "done" quick action.
func (c *Client) Complete(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, taskPath(id, "complete"), nil, &resp)
	return resp, err
}

func (c *Client) Postpone(ctx context.Context, id, deadline, reason string) (Task, error) {
	body := map[string]any{"deadline": deadline}
	if reason != "" {
		body["reason"] = reason
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, taskPath(id, "postpone"), body, &resp)
	return resp, err
}

// Snooze is the "+N minutes" quick action.
func (c *Client) Snooze(ctx context.Context, id string, minutes int) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, taskPath(id, "snooze"), map[string]any{"minutes": minutes}, &resp)
	return resp, err
}

// SnoozeUntil is the "enter time" quick action.
func (c *Client) SnoozeUntil(ctx context.Context, id, when string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, taskPath(id, "snooze"), map[string]any{"until": when}, &resp)
	return resp, err
}

func (c *Client) Events(ctx context.Context, id string) ([]Event, error) {
	var resp []Event
	err := c.do(ctx, http.MethodGet, taskPath(id, "events"), nil, &resp)
	return resp, err
}

// EnsureUser registers the caller (or, for admins, anyone) on first contact.
func (c *Client) EnsureUser(ctx context.Context, id, fullName string) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodPost, "users", map[string]any{"id": id, "full_name": fullName}, &resp)
	return resp, err
}

// Reply forwards a reply on a reminder message to the owner's managers.
func (c *Client) Reply(ctx context.Context, messageID, text string) (ReplyResult, error) {
	var resp ReplyResult
	err := c.do(ctx, http.MethodPost, "replies", map[string]any{"message_id": messageID, "text": text}, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/v0/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.UserID != "":
		req.Header.Set("X-User-Id", c.UserID)
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
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func taskPath(id, action string) string {
	p := "tasks/" + url.PathEscape(id)
	if action != "" {
		p += "/" + action
	}
	return p
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
