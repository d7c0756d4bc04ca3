package cutroomsdk

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

// Client is a minimal Cutroom HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Project represents the API project model (partial).
type Project struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	ClientID         string  `json:"client_id"`
	AssignedEditorID *string `json:"assigned_editor_id,omitempty"`
	AssignedQCID     *string `json:"assigned_qc_id,omitempty"`
	Status           string  `json:"status"`
	Priority         string  `json:"priority"`
	Progress         int     `json:"progress"`
	MaxRevisions     int     `json:"max_revisions"`
	Feedback         *string `json:"feedback,omitempty"`
	CompletedAt      *string `json:"completed_at,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

// Revision represents a client change request.
type Revision struct {
	ID               string   `json:"id"`
	ProjectID        string   `json:"project_id"`
	RequestedByID    string   `json:"requested_by_id"`
	Description      string   `json:"description"`
	Priority         string   `json:"priority"`
	Category         string   `json:"category,omitempty"`
	TimestampSeconds *float64 `json:"timestamp_seconds,omitempty"`
	Status           string   `json:"status"`
	ResolvedByID     *string  `json:"resolved_by_id,omitempty"`
	ResolvedAt       *string  `json:"resolved_at,omitempty"`
	CreatedAt        string   `json:"created_at"`
}

// Notification represents an in-app message.
type Notification struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	Type      string  `json:"type"`
	Title     string  `json:"title"`
	Message   string  `json:"message,omitempty"`
	ProjectID *string `json:"project_id,omitempty"`
	Read      bool    `json:"read"`
	CreatedAt string  `json:"created_at"`
}

// WhoAmI describes the authenticated principal.
type WhoAmI struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Source string `json:"source"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedProjects wraps project listings with a cursor.
type PaginatedProjects struct {
	Items      []Project `json:"items"`
	NextCursor string    `json:"next_cursor"`
}

// PaginatedRevisions wraps revision listings with a cursor.
type PaginatedRevisions struct {
	Items      []Revision `json:"items"`
	NextCursor string     `json:"next_cursor"`
}

// PaginatedNotifications wraps notification listings with a cursor.
type PaginatedNotifications struct {
	Items      []Notification `json:"items"`
	NextCursor string         `json:"next_cursor"`
}

// CreateProject opens a new project for a client.
func (c *Client) CreateProject(ctx context.Context, title, description, clientID, priority string) (Project, error) {
	body := map[string]any{
		"title":       title,
		"description": description,
		"priority":    priority,
	}
	if clientID != "" {
		body["client_id"] = clientID
	}
	var resp Project
	err := c.do(ctx, http.MethodPost, "v1/projects", body, &resp)
	return resp, err
}

// GetProject fetches a project by id.
func (c *Client) GetProject(ctx context.Context, id string) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodGet, "v1/projects/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Projects returns a page of projects visible to the caller.
func (c *Client) Projects(ctx context.Context, status string, limit int, cursor string) (PaginatedProjects, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "v1/projects"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedProjects
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// AssignProject staffs a project with an editor and optional QC reviewer.
func (c *Client) AssignProject(ctx context.Context, projectID, editorID, qcID string) (Project, error) {
	body := map[string]any{"editor_id": editorID}
	if qcID != "" {
		body["qc_id"] = qcID
	}
	var resp Project
	endpoint := fmt.Sprintf("v1/projects/%s/assign", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// UpdateStatus moves a project to an adjacent lifecycle status. Progress may
// be nil to leave it unchanged.
func (c *Client) UpdateStatus(ctx context.Context, projectID, status string, progress *int) (Project, error) {
	body := map[string]any{}
	if status != "" {
		body["status"] = status
	}
	if progress != nil {
		body["progress"] = *progress
	}
	var resp Project
	endpoint := fmt.Sprintf("v1/projects/%s/status", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodPatch, endpoint, body, &resp)
	return resp, err
}

// Review delivers the client's approve/reject verdict.
func (c *Client) Review(ctx context.Context, projectID, action, feedback string) (Project, error) {
	body := map[string]any{"action": action}
	if feedback != "" {
		body["feedback"] = feedback
	}
	var resp Project
	endpoint := fmt.Sprintf("v1/projects/%s/review", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// RequestRevision files a change request against a project in client_review.
func (c *Client) RequestRevision(ctx context.Context, projectID, description, priority, category string, timestampSeconds *float64) (Revision, error) {
	body := map[string]any{
		"description": description,
	}
	if priority != "" {
		body["priority"] = priority
	}
	if category != "" {
		body["category"] = category
	}
	if timestampSeconds != nil {
		body["timestamp_seconds"] = *timestampSeconds
	}
	var resp Revision
	endpoint := fmt.Sprintf("v1/projects/%s/revisions", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Revisions returns revisions for a project.
func (c *Client) Revisions(ctx context.Context, projectID string) ([]Revision, error) {
	var resp PaginatedRevisions
	endpoint := fmt.Sprintf("v1/projects/%s/revisions", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// ResolveRevision marks a revision completed or rejected.
func (c *Client) ResolveRevision(ctx context.Context, revisionID, status string) (Revision, error) {
	body := map[string]any{"status": status}
	var resp Revision
	endpoint := fmt.Sprintf("v1/revisions/%s/resolve", url.PathEscape(revisionID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Notifications returns the caller's notifications, optionally unread only.
func (c *Client) Notifications(ctx context.Context, unreadOnly bool, limit int, cursor string) (PaginatedNotifications, error) {
	q := url.Values{}
	if unreadOnly {
		q.Set("unread", "true")
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "v1/notifications"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedNotifications
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// MarkNotificationRead marks one notification read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	endpoint := fmt.Sprintf("v1/notifications/%s/read", url.PathEscape(id))
	return c.do(ctx, http.MethodPost, endpoint, nil, nil)
}

// Me returns the authenticated principal.
func (c *Client) Me(ctx context.Context) (WhoAmI, error) {
	var resp WhoAmI
	err := c.do(ctx, http.MethodGet, "v1/me", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
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
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
