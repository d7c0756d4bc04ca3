package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"cutroom/internal/activity"
	"cutroom/internal/config"
	"cutroom/internal/domain"
	"cutroom/internal/repo"
)

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Activity activity.Writer
	Config   *config.Config
	Now      func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Activity: activity.Writer{DB: db},
		Config:   cfg,
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// ActingUser identifies who performs an operation. Every mutating call takes
// it explicitly so permission checks never depend on ambient request state.
type ActingUser struct {
	ID   string
	Role string
}

func (a ActingUser) isAdmin() bool { return a.Role == "admin" }

// ensureProjectTransition allows only the edges of the project lifecycle.
// completed and cancelled are terminal. rejected is written by Review and has
// no outgoing edges here.
func ensureProjectTransition(oldStatus, newStatus string) error {
	switch oldStatus {
	case "pending":
		if newStatus == "assigned" || newStatus == "cancelled" {
			return nil
		}
	case "assigned":
		if newStatus == "in_progress" || newStatus == "cancelled" {
			return nil
		}
	case "in_progress":
		if newStatus == "qc_review" || newStatus == "client_review" || newStatus == "cancelled" {
			return nil
		}
	case "qc_review":
		if newStatus == "in_progress" || newStatus == "client_review" || newStatus == "completed" || newStatus == "cancelled" {
			return nil
		}
	case "client_review":
		if newStatus == "in_progress" || newStatus == "completed" {
			return nil
		}
	}
	return InvalidTransitionError{Current: oldStatus, Attempted: newStatus}
}

// ensureProjectActor is the permission guard shared by lifecycle operations:
// admins always pass, everyone else must hold the matching role on this
// specific project.
func ensureProjectActor(p domain.Project, actor ActingUser) error {
	if actor.isAdmin() {
		return nil
	}
	switch actor.Role {
	case "employee":
		if p.AssignedEditorID != nil && *p.AssignedEditorID == actor.ID {
			return nil
		}
	case "qc":
		if p.AssignedQCID != nil && *p.AssignedQCID == actor.ID {
			return nil
		}
	case "client":
		if p.ClientID == actor.ID {
			return nil
		}
	}
	return ForbiddenError{Reason: fmt.Sprintf("role %s has no access to project %s", actor.Role, p.ID)}
}

func clampProgress(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// UserCreateOptions are parameters for registering a user.
type UserCreateOptions struct {
	ID    string
	Email string
	Name  string
	Role  string
	Plan  string
}

func (e Engine) CreateUser(ctx context.Context, opts UserCreateOptions) (domain.User, error) {
	if e.Config == nil {
		return domain.User{}, errors.New("config not loaded")
	}
	if opts.Email == "" {
		return domain.User{}, ValidationError{Field: "email", Reason: "is required"}
	}
	if opts.Name == "" {
		return domain.User{}, ValidationError{Field: "name", Reason: "is required"}
	}
	role := repo.NormalizeRole(opts.Role)
	if role == "" {
		return domain.User{}, ValidationError{Field: "role", Reason: "must be admin, employee, qc or client"}
	}
	plan := opts.Plan
	if role == "client" && plan == "" {
		plan = e.Config.Plans.Default
	}
	if plan != "" {
		if _, ok := e.Config.Plans.Catalog[plan]; !ok {
			return domain.User{}, ValidationError{Field: "plan", Reason: fmt.Sprintf("unknown plan %s", plan)}
		}
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	u := domain.User{
		ID:        id,
		Email:     opts.Email,
		Name:      opts.Name,
		Role:      role,
		Plan:      plan,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertUser(ctx, u); err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// ProjectCreateOptions are parameters for opening a project.
type ProjectCreateOptions struct {
	ID          string
	Title       string
	Description string
	ClientID    string
	Priority    string
	Notes       string
}

// CreateProject opens a new project in pending. Clients open projects for
// themselves; admins may open one on behalf of any client. The revision cap
// is frozen from the client's plan at creation time.
func (e Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions, actor ActingUser) (domain.Project, error) {
	if e.Config == nil {
		return domain.Project{}, errors.New("config not loaded")
	}
	if opts.Title == "" {
		return domain.Project{}, ValidationError{Field: "title", Reason: "is required"}
	}
	clientID := opts.ClientID
	switch {
	case actor.isAdmin():
		if clientID == "" {
			return domain.Project{}, ValidationError{Field: "client_id", Reason: "is required"}
		}
	case actor.Role == "client":
		if clientID != "" && clientID != actor.ID {
			return domain.Project{}, ForbiddenError{Reason: "clients can only open their own projects"}
		}
		clientID = actor.ID
	default:
		return domain.Project{}, ForbiddenError{Reason: "only admins and clients can open projects"}
	}
	client, err := e.Repo.GetUser(ctx, clientID)
	if err != nil {
		return domain.Project{}, err
	}
	if client.Role != "client" {
		return domain.Project{}, ValidationError{Field: "client_id", Reason: "user is not a client"}
	}
	priority := opts.Priority
	if priority == "" {
		priority = "medium"
	}
	id := opts.ID
	now := e.now().UTC().Format(time.RFC3339)
	if id == "" {
		id = uuid.New().String()
	}
	p := domain.Project{
		ID:           id,
		Title:        opts.Title,
		Description:  opts.Description,
		ClientID:     clientID,
		Status:       "pending",
		Priority:     priority,
		Progress:     0,
		MaxRevisions: e.Config.MaxRevisionsFor(client.Plan),
		Notes:        opts.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertProject(ctx, tx, p); err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	if err := e.Activity.Append(ctx, tx, "project.created", p.ID, actor.ID, activity.Payload{
		"title":  p.Title,
		"status": p.Status,
	}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// UpdateProjectOptions are parameters for editing project fields outside the
// lifecycle. Nil fields are left untouched.
type UpdateProjectOptions struct {
	ProjectID   string
	Title       *string
	Description *string
}

// UpdateProject edits title and description. Admins may edit at any time;
// the owning client only while the project is still pending.
func (e Engine) UpdateProject(ctx context.Context, opts UpdateProjectOptions, actor ActingUser) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, opts.ProjectID)
	if err != nil {
		return p, err
	}
	switch {
	case actor.isAdmin():
	case actor.Role == "client" && p.ClientID == actor.ID:
		if p.Status != "pending" {
			return p, ForbiddenError{Reason: "clients can only edit a project before it is staffed"}
		}
	default:
		return p, ForbiddenError{Reason: "only admins and the owning client can edit a project"}
	}
	if opts.Title != nil {
		if *opts.Title == "" {
			return p, ValidationError{Field: "title", Reason: "is required"}
		}
		p.Title = *opts.Title
	}
	if opts.Description != nil {
		p.Description = *opts.Description
	}
	p.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return p, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateProject(ctx, tx, p); err != nil {
		return p, err
	}
	if err := e.Activity.Append(ctx, tx, "project.updated", p.ID, actor.ID, activity.Payload{
		"title":       p.Title,
		"description": p.Description,
	}); err != nil {
		return p, err
	}
	if err := tx.Commit(); err != nil {
		return p, err
	}
	return p, nil
}

// AssignOptions are parameters for staffing a project.
type AssignOptions struct {
	ProjectID string
	EditorID  string
	QCID      string
	Priority  string
}

// AssignProject staffs a pending project with an editor (and optionally a QC
// reviewer) and moves it to assigned. Admin only.
func (e Engine) AssignProject(ctx context.Context, opts AssignOptions, actor ActingUser) (domain.Project, error) {
	if !actor.isAdmin() {
		return domain.Project{}, ForbiddenError{Reason: "only admins can assign projects"}
	}
	if opts.EditorID == "" {
		return domain.Project{}, ValidationError{Field: "editor_id", Reason: "is required"}
	}
	p, err := e.Repo.GetProject(ctx, opts.ProjectID)
	if err != nil {
		return p, err
	}
	if err := ensureProjectTransition(p.Status, "assigned"); err != nil {
		return p, err
	}
	editor, err := e.Repo.GetUser(ctx, opts.EditorID)
	if err != nil {
		return p, err
	}
	if editor.Role != "employee" {
		return p, ValidationError{Field: "editor_id", Reason: "user is not an editor"}
	}
	if opts.QCID != "" {
		qc, err := e.Repo.GetUser(ctx, opts.QCID)
		if err != nil {
			return p, err
		}
		if qc.Role != "qc" {
			return p, ValidationError{Field: "qc_id", Reason: "user is not a qc reviewer"}
		}
		p.AssignedQCID = &opts.QCID
	}
	if opts.Priority != "" {
		p.Priority = opts.Priority
	}
	oldStatus := p.Status
	p.AssignedEditorID = &opts.EditorID
	p.Status = "assigned"
	p.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return p, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateProject(ctx, tx, p); err != nil {
		return p, err
	}
	if err := e.Activity.Append(ctx, tx, "project.assigned", p.ID, actor.ID, activity.Payload{
		"from_status": oldStatus,
		"to_status":   p.Status,
		"editor_id":   opts.EditorID,
		"qc_id":       opts.QCID,
	}); err != nil {
		return p, err
	}
	if err := tx.Commit(); err != nil {
		return p, err
	}
	e.notify(ctx, opts.EditorID, "assignment", "New project assigned",
		fmt.Sprintf("You have been assigned to %q.", p.Title), p.ID)
	return p, nil
}

// StatusUpdateOptions are parameters for moving a project through its
// lifecycle. Zero-value fields are left untouched.
type StatusUpdateOptions struct {
	ProjectID string
	Status    string
	Progress  *int
	Notes     *string
}

// UpdateStatus applies a lifecycle transition and/or progress update. The
// target status must be adjacent to the current one; progress is clamped to
// [0,100] rather than rejected.
func (e Engine) UpdateStatus(ctx context.Context, opts StatusUpdateOptions, actor ActingUser) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, opts.ProjectID)
	if err != nil {
		return p, err
	}
	if err := ensureProjectActor(p, actor); err != nil {
		return p, err
	}
	oldStatus := p.Status
	if opts.Status != "" {
		if err := ensureProjectTransition(p.Status, opts.Status); err != nil {
			return p, err
		}
		p.Status = opts.Status
		if opts.Status == "completed" {
			now := e.now().UTC().Format(time.RFC3339)
			p.CompletedAt = &now
			p.Progress = 100
		}
	}
	if opts.Progress != nil {
		p.Progress = clampProgress(*opts.Progress)
	}
	if opts.Notes != nil {
		p.Notes = *opts.Notes
	}
	p.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return p, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateProject(ctx, tx, p); err != nil {
		return p, err
	}
	if err := e.Activity.Append(ctx, tx, "project.status", p.ID, actor.ID, activity.Payload{
		"from_status": oldStatus,
		"to_status":   p.Status,
		"progress":    p.Progress,
		"notes":       p.Notes,
	}); err != nil {
		return p, err
	}
	if err := tx.Commit(); err != nil {
		return p, err
	}
	if p.Status != oldStatus {
		e.dispatchStatusNotifications(ctx, p, actor)
	}
	return p, nil
}

// dispatchStatusNotifications maps a newly entered status to its recipients.
// Writes are best-effort: a failed insert is logged and never bubbles up.
func (e Engine) dispatchStatusNotifications(ctx context.Context, p domain.Project, actor ActingUser) {
	switch p.Status {
	case "qc_review":
		if p.AssignedQCID != nil {
			e.notify(ctx, *p.AssignedQCID, "review_required", "Review required",
				fmt.Sprintf("%q is ready for QC review.", p.Title), p.ID)
		}
	case "client_review":
		e.notify(ctx, p.ClientID, "ready_for_review", "Ready for review",
			fmt.Sprintf("%q is ready for your review.", p.Title), p.ID)
	case "completed":
		e.notify(ctx, p.ClientID, "project_completed", "Project completed",
			fmt.Sprintf("%q is completed and ready for download.", p.Title), p.ID)
	case "in_progress":
		if actor.Role != "employee" && p.AssignedEditorID != nil {
			e.notify(ctx, *p.AssignedEditorID, "requires_attention", "Project requires attention",
				fmt.Sprintf("%q was sent back and requires your attention.", p.Title), p.ID)
		}
	}
}

func (e Engine) notify(ctx context.Context, userID, kind, title, message, projectID string) {
	if e.Config != nil && !e.Config.Notifications.Enabled {
		return
	}
	n := domain.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      kind,
		Title:     title,
		Message:   message,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	if projectID != "" {
		n.ProjectID = &projectID
	}
	if err := e.Repo.InsertNotification(ctx, n); err != nil {
		log.Printf("warn: notification write failed for user %s: %v", userID, err)
	}
}

// RevisionRequestOptions are parameters for a client revision request.
type RevisionRequestOptions struct {
	ProjectID        string
	Description      string
	Priority         string
	Category         string
	TimestampSeconds *float64
}

// RequestRevision records a client revision against a project in
// client_review and sends it back to in_progress. The plan cap counts only
// completed revisions; -1 means unlimited.
func (e Engine) RequestRevision(ctx context.Context, opts RevisionRequestOptions, actor ActingUser) (domain.Revision, error) {
	if opts.Description == "" {
		return domain.Revision{}, ValidationError{Field: "description", Reason: "is required"}
	}
	p, err := e.Repo.GetProject(ctx, opts.ProjectID)
	if err != nil {
		return domain.Revision{}, err
	}
	if actor.Role != "client" || p.ClientID != actor.ID {
		return domain.Revision{}, ForbiddenError{Reason: "only the owning client can request revisions"}
	}
	if p.Status != "client_review" {
		return domain.Revision{}, InvalidTransitionError{Current: p.Status, Attempted: "in_progress"}
	}
	used, err := e.Repo.CountCompletedRevisions(ctx, p.ID)
	if err != nil {
		return domain.Revision{}, err
	}
	if p.MaxRevisions != -1 && used >= p.MaxRevisions {
		return domain.Revision{}, RevisionLimitError{Used: used, Allowed: p.MaxRevisions}
	}
	priority := opts.Priority
	if priority == "" {
		priority = "medium"
	}
	now := e.now().UTC().Format(time.RFC3339)
	rev := domain.Revision{
		ID:               uuid.New().String(),
		ProjectID:        p.ID,
		RequestedByID:    actor.ID,
		Description:      opts.Description,
		Priority:         priority,
		Category:         opts.Category,
		TimestampSeconds: opts.TimestampSeconds,
		Status:           "pending",
		CreatedAt:        now,
	}
	oldStatus := p.Status
	p.Status = "in_progress"
	p.UpdatedAt = now

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return rev, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertRevision(ctx, tx, rev); err != nil {
		return rev, fmt.Errorf("insert revision: %w", err)
	}
	if err := e.Repo.UpdateProject(ctx, tx, p); err != nil {
		return rev, err
	}
	if err := e.Activity.Append(ctx, tx, "revision.requested", p.ID, actor.ID, activity.Payload{
		"revision_id": rev.ID,
		"from_status": oldStatus,
		"to_status":   p.Status,
		"used":        used + 1,
		"allowed":     p.MaxRevisions,
	}); err != nil {
		return rev, err
	}
	if err := tx.Commit(); err != nil {
		return rev, err
	}
	if p.AssignedEditorID != nil {
		e.notify(ctx, *p.AssignedEditorID, "revision_request", "Revision requested",
			fmt.Sprintf("%q has a new revision request.", p.Title), p.ID)
	}
	return rev, nil
}

// ResolveRevision marks a revision completed or rejected. Only the project's
// assigned editor, its QC reviewer or an admin may resolve.
func (e Engine) ResolveRevision(ctx context.Context, revisionID, status string, actor ActingUser) (domain.Revision, error) {
	if status != "completed" && status != "rejected" {
		return domain.Revision{}, ValidationError{Field: "status", Reason: "must be completed or rejected"}
	}
	rev, err := e.Repo.GetRevision(ctx, revisionID)
	if err != nil {
		return rev, err
	}
	if rev.Status == "completed" || rev.Status == "rejected" {
		return rev, ValidationError{Field: "status", Reason: "revision already resolved"}
	}
	p, err := e.Repo.GetProject(ctx, rev.ProjectID)
	if err != nil {
		return rev, err
	}
	if err := ensureProjectActor(p, actor); err != nil {
		return rev, err
	}
	if actor.Role == "client" {
		return rev, ForbiddenError{Reason: "clients cannot resolve revisions"}
	}
	now := e.now().UTC().Format(time.RFC3339)
	rev.Status = status
	rev.ResolvedByID = &actor.ID
	rev.ResolvedAt = &now

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return rev, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateRevision(ctx, tx, rev); err != nil {
		return rev, err
	}
	if err := e.Activity.Append(ctx, tx, "revision.resolved", p.ID, actor.ID, activity.Payload{
		"revision_id": rev.ID,
		"status":      rev.Status,
	}); err != nil {
		return rev, err
	}
	if err := tx.Commit(); err != nil {
		return rev, err
	}
	e.notify(ctx, rev.RequestedByID, "revision_resolved", "Revision resolved",
		fmt.Sprintf("Your revision on %q was marked %s.", p.Title, rev.Status), p.ID)
	return rev, nil
}

// ReviewOptions are parameters for the client's final verdict.
type ReviewOptions struct {
	ProjectID string
	Action    string
	Feedback  string
}

// Review handles the owning client's approve/reject verdict on a project in
// client_review. Approve completes the project and credits the editor;
// reject requires a reason and parks the project in rejected.
func (e Engine) Review(ctx context.Context, opts ReviewOptions, actor ActingUser) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, opts.ProjectID)
	if err != nil {
		return p, err
	}
	if actor.Role != "client" || p.ClientID != actor.ID {
		return p, ForbiddenError{Reason: "only the owning client can review"}
	}
	if p.Status != "client_review" {
		return p, InvalidTransitionError{Current: p.Status, Attempted: "completed"}
	}
	now := e.now().UTC().Format(time.RFC3339)
	oldStatus := p.Status
	var entryType, title, message string
	switch opts.Action {
	case "approve":
		p.Status = "completed"
		p.Progress = 100
		p.CompletedAt = &now
		if opts.Feedback != "" {
			p.Feedback = &opts.Feedback
		}
		entryType = "project.approved"
		title = "Project approved"
		message = fmt.Sprintf("%q was approved by the client.", p.Title)
	case "reject":
		if opts.Feedback == "" {
			return p, ValidationError{Field: "feedback", Reason: "a reason is required to reject"}
		}
		p.Status = "rejected"
		p.Feedback = &opts.Feedback
		entryType = "project.rejected"
		title = "Project rejected"
		message = fmt.Sprintf("%q was rejected by the client.", p.Title)
	default:
		return p, ValidationError{Field: "action", Reason: "must be approve or reject"}
	}
	p.UpdatedAt = now

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return p, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateProject(ctx, tx, p); err != nil {
		return p, err
	}
	if opts.Action == "approve" && p.AssignedEditorID != nil {
		if err := e.Repo.IncrementCompletedProjects(ctx, tx, *p.AssignedEditorID); err != nil {
			return p, err
		}
	}
	if err := e.Activity.Append(ctx, tx, entryType, p.ID, actor.ID, activity.Payload{
		"from_status": oldStatus,
		"to_status":   p.Status,
		"feedback":    opts.Feedback,
	}); err != nil {
		return p, err
	}
	if err := tx.Commit(); err != nil {
		return p, err
	}
	for _, uid := range e.reviewAudience(ctx, p) {
		e.notify(ctx, uid, entryType, title, message, p.ID)
	}
	return p, nil
}

// reviewAudience is the editor, QC reviewer and every admin, deduplicated.
func (e Engine) reviewAudience(ctx context.Context, p domain.Project) []string {
	seen := map[string]bool{}
	var out []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	if p.AssignedEditorID != nil {
		add(*p.AssignedEditorID)
	}
	if p.AssignedQCID != nil {
		add(*p.AssignedQCID)
	}
	admins, err := e.Repo.AdminIDs(ctx)
	if err != nil {
		log.Printf("warn: listing admins for notification failed: %v", err)
		return out
	}
	for _, id := range admins {
		add(id)
	}
	return out
}

// MarkNotificationRead flips a notification owned by the actor.
func (e Engine) MarkNotificationRead(ctx context.Context, id string, actor ActingUser) error {
	return e.Repo.MarkNotificationRead(ctx, id, actor.ID)
}
