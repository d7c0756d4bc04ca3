package domain

type User struct {
	ID                string `json:"id"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	Role              string `json:"role" enum:"admin,employee,qc,client"`
	Plan              string `json:"plan,omitempty"`
	CompletedProjects int    `json:"completed_projects"`
	CreatedAt         string `json:"created_at" format:"date-time"`
}

type Project struct {
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
	FrameioProjectID *string `json:"frameio_project_id,omitempty"`
	CompletedAt      *string `json:"completed_at,omitempty" format:"date-time"`
	CreatedAt        string  `json:"created_at" format:"date-time"`
	UpdatedAt        string  `json:"updated_at" format:"date-time"`
}

type Revision struct {
	ID               string   `json:"id"`
	ProjectID        string   `json:"project_id"`
	RequestedByID    string   `json:"requested_by_id"`
	Description      string   `json:"description"`
	Priority         string   `json:"priority" enum:"low,medium,high,urgent"`
	Category         string   `json:"category,omitempty"`
	TimestampSeconds *float64 `json:"timestamp_seconds,omitempty"`
	Status           string   `json:"status" enum:"pending,in_progress,completed,rejected"`
	FrameioCommentID *string  `json:"frameio_comment_id,omitempty"`
	ResolvedByID     *string  `json:"resolved_by_id,omitempty"`
	ResolvedAt       *string  `json:"resolved_at,omitempty" format:"date-time"`
	CreatedAt        string   `json:"created_at" format:"date-time"`
}

type Notification struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	Type      string  `json:"type"`
	Title     string  `json:"title"`
	Message   string  `json:"message,omitempty"`
	ProjectID *string `json:"project_id,omitempty"`
	Read      bool    `json:"read"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

type Activity struct {
	ID        int64  `json:"id"`
	TS        string `json:"ts" format:"date-time"`
	Type      string `json:"type"`
	ProjectID string `json:"project_id"`
	ActorID   string `json:"actor_id"`
	Payload   string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
