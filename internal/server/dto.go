package server

import (
	"cutroom/internal/domain"
)

// Request payloads

type CreateUserRequest struct {
	ID    *string `json:"id,omitempty"`
	Email string  `json:"email"`
	Name  string  `json:"name"`
	Role  string  `json:"role" enum:"admin,employee,editor,qc,client"`
	Plan  *string `json:"plan,omitempty"`
}

type CreateProjectRequest struct {
	ID          *string `json:"id,omitempty"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	ClientID    *string `json:"client_id,omitempty"`
	Priority    *string `json:"priority,omitempty" enum:"low,medium,high,urgent"`
	Notes       *string `json:"notes,omitempty"`
}

type UpdateProjectRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

type AssignProjectRequest struct {
	EditorID string  `json:"editor_id"`
	QCID     *string `json:"qc_id,omitempty"`
	Priority *string `json:"priority,omitempty" enum:"low,medium,high,urgent"`
}

type UpdateStatusRequest struct {
	Status   *string `json:"status,omitempty" enum:"pending,assigned,in_progress,qc_review,client_review,completed,cancelled"`
	Progress *int    `json:"progress,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}

type ReviewRequest struct {
	Action   string  `json:"action" enum:"approve,reject"`
	Feedback *string `json:"feedback,omitempty"`
}

type CreateRevisionRequest struct {
	Description      string   `json:"description"`
	Priority         *string  `json:"priority,omitempty" enum:"low,medium,high,urgent"`
	Category         *string  `json:"category,omitempty"`
	TimestampSeconds *float64 `json:"timestamp_seconds,omitempty"`
}

type ResolveRevisionRequest struct {
	Status string `json:"status" enum:"completed,rejected"`
}

type CreateAPIKeyRequest struct {
	UserID string  `json:"user_id"`
	Name   *string `json:"name,omitempty"`
}

type DevLoginRequest struct {
	UserID string `json:"user_id"`
}

// Response payloads

type UserResponse struct {
	ID                string `json:"id"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	Role              string `json:"role" enum:"admin,employee,qc,client"`
	Plan              string `json:"plan,omitempty"`
	CompletedProjects int    `json:"completed_projects"`
	CreatedAt         string `json:"created_at" format:"date-time"`
}

type ProjectResponse struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	Description      string  `json:"description,omitempty"`
	ClientID         string  `json:"client_id"`
	AssignedEditorID *string `json:"assigned_editor_id,omitempty"`
	AssignedQCID     *string `json:"assigned_qc_id,omitempty"`
	Status           string  `json:"status" enum:"pending,assigned,in_progress,qc_review,client_review,completed,cancelled,rejected"`
	Priority         string  `json:"priority" enum:"low,medium,high,urgent"`
	Progress         int     `json:"progress"`
	MaxRevisions     int     `json:"max_revisions"`
	Notes            string  `json:"notes,omitempty"`
	Feedback         *string `json:"feedback,omitempty"`
	CompletedAt      *string `json:"completed_at,omitempty" format:"date-time"`
	CreatedAt        string  `json:"created_at" format:"date-time"`
	UpdatedAt        string  `json:"updated_at" format:"date-time"`
}

type RevisionResponse struct {
	ID               string   `json:"id"`
	ProjectID        string   `json:"project_id"`
	RequestedByID    string   `json:"requested_by_id"`
	Description      string   `json:"description"`
	Priority         string   `json:"priority" enum:"low,medium,high,urgent"`
	Category         string   `json:"category,omitempty"`
	TimestampSeconds *float64 `json:"timestamp_seconds,omitempty"`
	Status           string   `json:"status" enum:"pending,in_progress,completed,rejected"`
	ResolvedByID     *string  `json:"resolved_by_id,omitempty"`
	ResolvedAt       *string  `json:"resolved_at,omitempty" format:"date-time"`
	CreatedAt        string   `json:"created_at" format:"date-time"`
}

type NotificationResponse struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Title     string  `json:"title"`
	Message   string  `json:"message,omitempty"`
	ProjectID *string `json:"project_id,omitempty"`
	Read      bool    `json:"read"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

type ActivityResponse struct {
	ID        int64          `json:"id"`
	TS        string         `json:"ts" format:"date-time"`
	Type      string         `json:"type"`
	ProjectID string         `json:"project_id"`
	ActorID   string         `json:"actor_id"`
	Payload   map[string]any `json:"payload,omitempty"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	Key       string `json:"key,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type WhoAmIResponse struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Source string `json:"source"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type paginatedProjects struct {
	Items      []ProjectResponse `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

type paginatedRevisions struct {
	Items      []RevisionResponse `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

type paginatedNotifications struct {
	Items      []NotificationResponse `json:"items"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}

// Converters

func userResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:                u.ID,
		Email:             u.Email,
		Name:              u.Name,
		Role:              u.Role,
		Plan:              u.Plan,
		CompletedProjects: u.CompletedProjects,
		CreatedAt:         u.CreatedAt,
	}
}

func projectResponse(p domain.Project) ProjectResponse {
	return ProjectResponse{
		ID:               p.ID,
		Title:            p.Title,
		Description:      p.Description,
		ClientID:         p.ClientID,
		AssignedEditorID: p.AssignedEditorID,
		AssignedQCID:     p.AssignedQCID,
		Status:           p.Status,
		Priority:         p.Priority,
		Progress:         p.Progress,
		MaxRevisions:     p.MaxRevisions,
		Notes:            p.Notes,
		Feedback:         p.Feedback,
		CompletedAt:      p.CompletedAt,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func revisionResponse(r domain.Revision) RevisionResponse {
	return RevisionResponse{
		ID:               r.ID,
		ProjectID:        r.ProjectID,
		RequestedByID:    r.RequestedByID,
		Description:      r.Description,
		Priority:         r.Priority,
		Category:         r.Category,
		TimestampSeconds: r.TimestampSeconds,
		Status:           r.Status,
		ResolvedByID:     r.ResolvedByID,
		ResolvedAt:       r.ResolvedAt,
		CreatedAt:        r.CreatedAt,
	}
}

func notificationResponse(n domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		ProjectID: n.ProjectID,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

func mapProjects(items []domain.Project) []ProjectResponse {
	res := make([]ProjectResponse, 0, len(items))
	for _, p := range items {
		res = append(res, projectResponse(p))
	}
	return res
}

func mapRevisions(items []domain.Revision) []RevisionResponse {
	res := make([]RevisionResponse, 0, len(items))
	for _, r := range items {
		res = append(res, revisionResponse(r))
	}
	return res
}

func mapNotifications(items []domain.Notification) []NotificationResponse {
	res := make([]NotificationResponse, 0, len(items))
	for _, n := range items {
		res = append(res, notificationResponse(n))
	}
	return res
}
