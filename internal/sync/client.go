package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const DefaultAPIBase = "https://api.ticktick.com/open/v1"

// APIError is a non-2xx response from the remote service.
type APIError struct {
	Status int
	Method string
	URL    string
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote api: %s %s: status %d: %s", e.Method, e.URL, e.Status, e.Body)
}

// Project is a remote list container.
type Project struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Kind   string `json:"kind,omitempty"`
	Closed bool   `json:"closed,omitempty"`
}

// Column is a remote section within a project.
type Column struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RemoteTask is the wire form of a task on the remote service. Status is
// 0 for incomplete and 2 for completed; CompletedTime is unix milliseconds.
type RemoteTask struct {
	ID            string   `json:"id,omitempty"`
	ProjectID     string   `json:"projectId,omitempty"`
	Title         string   `json:"title"`
	Content       string   `json:"content,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	DueDate       string   `json:"dueDate,omitempty"`
	TimeZone      string   `json:"timeZone,omitempty"`
	IsAllDay      bool     `json:"isAllDay,omitempty"`
	RepeatFlag    string   `json:"repeatFlag,omitempty"`
	Status        int      `json:"status"`
	CompletedTime int64    `json:"completedTime,omitempty"`
	Etag          string   `json:"etag,omitempty"`
	ColumnID      string   `json:"columnId,omitempty"`
}

// ProjectData is a project plus its tasks and columns.
type ProjectData struct {
	Project Project      `json:"project"`
	Tasks   []RemoteTask `json:"tasks"`
	Columns []Column     `json:"columns,omitempty"`
}

// Client is a thin REST client for the remote task service.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIBase
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Projects lists open task projects. Note projects and closed ones are
// filtered out.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var all []Project
	if err := c.do(ctx, http.MethodGet, "/project", nil, &all); err != nil {
		return nil, err
	}
	out := make([]Project, 0, len(all))
	for _, p := range all {
		if p.Kind == "TASK" && !p.Closed {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *Client) CreateProject(ctx context.Context, name string) (Project, error) {
	var p Project
	err := c.do(ctx, http.MethodPost, "/project", map[string]string{"name": name}, &p)
	return p, err
}

// GetProjectData fetches a project with all its tasks.
func (c *Client) GetProjectData(ctx context.Context, projectID string) (ProjectData, error) {
	var pd ProjectData
	err := c.do(ctx, http.MethodGet, "/project/"+projectID+"/data", nil, &pd)
	return pd, err
}

func (c *Client) GetTask(ctx context.Context, projectID, taskID string) (RemoteTask, error) {
	var t RemoteTask
	err := c.do(ctx, http.MethodGet, "/project/"+projectID+"/task/"+taskID, nil, &t)
	return t, err
}

func (c *Client) CreateTask(ctx context.Context, task RemoteTask) (RemoteTask, error) {
	var created RemoteTask
	err := c.do(ctx, http.MethodPost, "/task", task, &created)
	return created, err
}

func (c *Client) UpdateTask(ctx context.Context, taskID string, task RemoteTask) (RemoteTask, error) {
	var updated RemoteTask
	err := c.do(ctx, http.MethodPost, "/task/"+taskID, task, &updated)
	return updated, err
}

func (c *Client) CompleteTask(ctx context.Context, projectID, taskID string) error {
	return c.do(ctx, http.MethodPost, "/project/"+projectID+"/task/"+taskID+"/complete", nil, nil)
}

func (c *Client) DeleteTask(ctx context.Context, projectID, taskID string) error {
	return c.do(ctx, http.MethodDelete, "/project/"+projectID+"/task/"+taskID, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			Status: resp.StatusCode,
			Method: method,
			URL:    c.baseURL + path,
			Body:   string(respBody),
		}
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("remote api: decode %s %s: %w", method, path, err)
		}
	}
	return nil
}
