package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cutroom/internal/config"
	"cutroom/internal/db"
	"cutroom/internal/engine"
	"cutroom/internal/migrate"
	"cutroom/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context

	Admin  engine.ActingUser
	Editor engine.ActingUser
	QC     engine.ActingUser
	Client engine.ActingUser
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	env := testEnv{Engine: eng, Ctx: ctx}
	seed := []struct {
		actor *engine.ActingUser
		opts  engine.UserCreateOptions
	}{
		{&env.Admin, engine.UserCreateOptions{ID: "u-admin", Email: "admin@cutroom.test", Name: "Admin", Role: "admin"}},
		{&env.Editor, engine.UserCreateOptions{ID: "u-editor", Email: "editor@cutroom.test", Name: "Editor", Role: "employee"}},
		{&env.QC, engine.UserCreateOptions{ID: "u-qc", Email: "qc@cutroom.test", Name: "QC", Role: "qc"}},
		{&env.Client, engine.UserCreateOptions{ID: "u-client", Email: "client@cutroom.test", Name: "Client", Role: "client", Plan: "basic"}},
	}
	for _, s := range seed {
		u, err := eng.CreateUser(ctx, s.opts)
		if err != nil {
			t.Fatalf("seed user %s: %v", s.opts.Email, err)
		}
		*s.actor = engine.ActingUser{ID: u.ID, Role: u.Role}
	}
	return env
}

// newProject creates a project for the env client and walks it to the given
// status via admin transitions.
func (env testEnv) newProject(t *testing.T, target string) string {
	t.Helper()
	p, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{Title: "Launch video"}, env.Client)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if target == "pending" {
		return p.ID
	}
	if _, err := env.Engine.AssignProject(env.Ctx, engine.AssignOptions{ProjectID: p.ID, EditorID: env.Editor.ID, QCID: env.QC.ID}, env.Admin); err != nil {
		t.Fatalf("assign: %v", err)
	}
	path := map[string][]string{
		"assigned":      nil,
		"in_progress":   {"in_progress"},
		"qc_review":     {"in_progress", "qc_review"},
		"client_review": {"in_progress", "qc_review", "client_review"},
		"completed":     {"in_progress", "qc_review", "client_review", "completed"},
	}
	steps, ok := path[target]
	if !ok {
		t.Fatalf("unknown target status %s", target)
	}
	for _, s := range steps {
		if _, err := env.Engine.UpdateStatus(env.Ctx, engine.StatusUpdateOptions{ProjectID: p.ID, Status: s}, env.Admin); err != nil {
			t.Fatalf("walk to %s: %v", s, err)
		}
	}
	return p.ID
}

func TestProjectLifecyclePath(t *testing.T) {
	env := newTestEnv(t)
	id := env.newProject(t, "pending")

	p, err := env.Engine.AssignProject(env.Ctx, engine.AssignOptions{ProjectID: id, EditorID: env.Editor.ID}, env.Admin)
	if err != nil || p.Status != "assigned" {
		t.Fatalf("assign: %v (status %s)", err, p.Status)
	}
	p, err = env.Engine.UpdateStatus(env.Ctx, engine.StatusUpdateOptions{ProjectID: id, Status: "in_progress"}, env.Editor)
	if err != nil || p.Status != "in_progress" {
		t.Fatalf("to in_progress: %v", err)
	}
	p, err = env.Engine.UpdateStatus(env.Ctx, engine.StatusUpdateOptions{ProjectID: id, Status: "qc_review"}, env.Editor)
	if err != nil || p.Status != "qc_review" {
		t.Fatalf("to qc_review: %v", err)
	}
	// revision loop back to the editor
	p, err = env.Engine.UpdateStatus(env.Ctx, engine.StatusUpdateOptions{ProjectID: id, Status: "in_progress"}, env.QC)
	if err != nil || p.Status != "in_progress" {
		t.Fatalf("qc sendback: %v", err)
	}
	p, err = env.Engine.UpdateStatus(env.Ctx, engine.StatusUpdateOptions{ProjectID: id, Status: "qc_review"}, env.Editor)
	if err != nil {
		t.Fatalf("back to qc_review: %v", err)
	}
	p, err = env.Engine.UpdateStatus(env.Ctx, engine.StatusUpdateOptions{ProjectID: id, Status: "client_review"}, env.QC)
	if err != nil || p.Status != "client_review" {
		t.Fatalf("to client_review: %v", err)
	}
	p, err = env.Engine.UpdateStatus(env.Ctx, engine.StatusUpdateOptions{ProjectID: id, Status: "completed"}, env.Client)
	if err != nil || p.Status != "completed" {
		t.Fatalf("to completed: %v", err)
	}
	if p.CompletedAt == nil {
		t.Fatalf("expected completed_at stamp")
	}
}

func TestInvalidTransitionsRejected(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		from, to string
	}{
		{"pending", "in_progress"},
		{"pending", "completed"},
		{"assigned", "qc_review"},
		{"in_progress", "completed"},
		{"client_review", "cancelled"},
		{"client_review", "qc_review"},
	}
	for _, c := range cases {
		id := env.newProject(t, c.from)
		_, err := env.Engine.UpdateStatus(env.Ctx, engine.StatusUpdateOptions{ProjectID: id, Status: c.to}, env.Admin)
		var tErr engine.InvalidTransitionError
		if !errors.As(err, &tErr) {
			t.Fatalf("%s -> %s: expected InvalidTransitionError, got %v", c.from, c.to, err)
		}
		if tErr.Current != c.from || tErr.Attempted != c.to {
			t.Fatalf("error reports %s -> %s", tErr.Current, tErr.Attempted)
		}
		// project must be untouched after a refused transition
		p, err := env.Engine.Repo.GetProject(env.Ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if p.Status != c.from {
			t.Fatalf("status mutated to %s after refused transition", p.Status)
		}
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	env := newTestEnv(t)
	id := env.newProject(t, "completed")
	for _, target := range []string{"pending", "assigned", "in_progress", "qc_review", "client_review", "cancelled", "completed"} {
		_, err := env.Engine.UpdateStatus(env.Ctx, engine.StatusUpdateOptions{ProjectID: id, Status: target}, env.Admin)
		var tErr engine.InvalidTransitionError
		if !errors.As(err, &tErr) {
			t.Fatalf("completed -> %s: expected InvalidTransitionError, got %v", target, err)
		}
	}

	id = env.newProject(t, "pending")
	if _, err := env.Engine.UpdateStatus(env.Ctx, engine.StatusUpdateOptions{ProjectID: id, Status: "cancelled"}, env.Admin); err != nil {
		t.Fatalf("cancel pending: %v", err)
	}
	_, err := env.Engine.UpdateStatus(env.Ctx, engine.StatusUpdateOptions{ProjectID: id, Status: "pending"}, env.Admin)
	if err == nil {
		t.Fatalf("expected cancelled to be terminal")
	}
}

func TestReissuingSameStatusFails(t *testing.T) {
	env := newTestEnv(t)
	id := env.newProject(t, "in_progress")
	_, err := env.Engine.UpdateStatus(env.Ctx, engine.StatusUpdateOptions{ProjectID: id, Status: "in_progress"}, env.Editor)
	var tErr engine.InvalidTransitionError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected InvalidTransitionError on re-issued status, got %v", err)
	}
}

func TestProgressClamped(t *testing.T) {
	env := newTestEnv(t)
	id := env.newProject(t, "in_progress")

	over := 150
	p, err := env.Engine.UpdateStatus(env.Ctx, engine.StatusUpdateOptions{ProjectID: id, Progress: &over}, env.Editor)
	if err != nil {
		t.Fatalf("progress 150: %v", err)
	}
	if p.Progress != 100 {
		t.Fatalf("expected clamp to 100, got %d", p.Progress)
	}
	under := -10
	p, err = env.Engine.UpdateStatus(env.Ctx, engine.StatusUpdateOptions{ProjectID: id, Progress: &under}, env.Editor)
	if err != nil {
		t.Fatalf("progress -10: %v", err)
	}
	if p.Progress != 0 {
		t.Fatalf("expected clamp to 0, got %d", p.Progress)
	}
}

func TestPermissionGuard(t *testing.T) {
	env := newTestEnv(t)
	id := env.newProject(t, "in_progress")

	// a second editor who is not assigned to this project
	stranger, err := env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{Email: "other@cutroom.test", Name: "Other", Role: "employee"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.UpdateStatus(env.Ctx, engine.StatusUpdateOptions{ProjectID: id, Status: "qc_review"},
		engine.ActingUser{ID: stranger.ID, Role: stranger.Role})
	var fErr engine.ForbiddenError
	if !errors.As(err, &fErr) {
		t.Fatalf("expected ForbiddenError for unassigned editor, got %v", err)
	}

	// a client who does not own the project
	otherClient, err := env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{Email: "c2@cutroom.test", Name: "C2", Role: "client", Plan: "basic"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.UpdateStatus(env.Ctx, engine.StatusUpdateOptions{ProjectID: id, Status: "qc_review"},
		engine.ActingUser{ID: otherClient.ID, Role: otherClient.Role})
	if !errors.As(err, &fErr) {
		t.Fatalf("expected ForbiddenError for non-owning client, got %v", err)
	}

	// assigned editor passes
	if _, err := env.Engine.UpdateStatus(env.Ctx, engine.StatusUpdateOptions{ProjectID: id, Status: "qc_review"}, env.Editor); err != nil {
		t.Fatalf("assigned editor refused: %v", err)
	}
}

func TestAssignRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	id := env.newProject(t, "pending")
	_, err := env.Engine.AssignProject(env.Ctx, engine.AssignOptions{ProjectID: id, EditorID: env.Editor.ID}, env.Editor)
	var fErr engine.ForbiddenError
	if !errors.As(err, &fErr) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
}

func TestStatusNotifications(t *testing.T) {
	env := newTestEnv(t)
	id := env.newProject(t, "in_progress")

	if _, err := env.Engine.UpdateStatus(env.Ctx, engine.StatusUpdateOptions{ProjectID: id, Status: "qc_review"}, env.Editor); err != nil {
		t.Fatal(err)
	}
	notifs, err := env.Engine.Repo.ListNotifications(env.Ctx, repo.NotificationFilters{UserID: env.QC.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(notifs) == 0 || notifs[0].Type != "review_required" {
		t.Fatalf("expected review_required notification for QC, got %+v", notifs)
	}

	// QC sends the project back: the editor is told it needs attention
	if _, err := env.Engine.UpdateStatus(env.Ctx, engine.StatusUpdateOptions{ProjectID: id, Status: "in_progress"}, env.QC); err != nil {
		t.Fatal(err)
	}
	notifs, err = env.Engine.Repo.ListNotifications(env.Ctx, repo.NotificationFilters{UserID: env.Editor.ID})
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, n := range notifs {
		if n.Type == "requires_attention" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected requires_attention notification for editor, got %+v", notifs)
	}

	// editor re-entering in_progress notifies nobody new
	if _, err := env.Engine.UpdateStatus(env.Ctx, engine.StatusUpdateOptions{ProjectID: id, Status: "qc_review"}, env.Editor); err != nil {
		t.Fatal(err)
	}
	before, _ := env.Engine.Repo.ListNotifications(env.Ctx, repo.NotificationFilters{UserID: env.Editor.ID})
	if _, err := env.Engine.UpdateStatus(env.Ctx, engine.StatusUpdateOptions{ProjectID: id, Status: "in_progress"}, env.Editor); err != nil {
		t.Fatal(err)
	}
	after, _ := env.Engine.Repo.ListNotifications(env.Ctx, repo.NotificationFilters{UserID: env.Editor.ID})
	if len(after) != len(before) {
		t.Fatalf("editor should not be notified about their own sendback")
	}

	// client review and completion notify the owning client
	if _, err := env.Engine.UpdateStatus(env.Ctx, engine.StatusUpdateOptions{ProjectID: id, Status: "client_review"}, env.Editor); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.UpdateStatus(env.Ctx, engine.StatusUpdateOptions{ProjectID: id, Status: "completed"}, env.Client); err != nil {
		t.Fatal(err)
	}
	notifs, err = env.Engine.Repo.ListNotifications(env.Ctx, repo.NotificationFilters{UserID: env.Client.ID})
	if err != nil {
		t.Fatal(err)
	}
	types := map[string]bool{}
	for _, n := range notifs {
		types[n.Type] = true
	}
	if !types["ready_for_review"] || !types["project_completed"] {
		t.Fatalf("expected client notifications, got %+v", notifs)
	}
}

func TestRevisionLimitBasicPlan(t *testing.T) {
	env := newTestEnv(t)
	id := env.newProject(t, "client_review")

	// first revision request passes (basic plan allows 1)
	rev, err := env.Engine.RequestRevision(env.Ctx, engine.RevisionRequestOptions{ProjectID: id, Description: "tighten the intro"}, env.Client)
	if err != nil {
		t.Fatalf("first revision: %v", err)
	}
	if rev.Status != "pending" {
		t.Fatalf("expected pending revision, got %s", rev.Status)
	}
	p, _ := env.Engine.Repo.GetProject(env.Ctx, id)
	if p.Status != "in_progress" {
		t.Fatalf("expected project forced to in_progress, got %s", p.Status)
	}

	// the editor completes the revision and delivers again
	if _, err := env.Engine.ResolveRevision(env.Ctx, rev.ID, "completed", env.Editor); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for _, s := range []string{"qc_review", "client_review"} {
		if _, err := env.Engine.UpdateStatus(env.Ctx, engine.StatusUpdateOptions{ProjectID: id, Status: s}, env.Editor); err != nil {
			t.Fatal(err)
		}
	}

	// second request exceeds the basic cap
	_, err = env.Engine.RequestRevision(env.Ctx, engine.RevisionRequestOptions{ProjectID: id, Description: "one more pass"}, env.Client)
	var lErr engine.RevisionLimitError
	if !errors.As(err, &lErr) {
		t.Fatalf("expected RevisionLimitError, got %v", err)
	}
	if lErr.Used != 1 || lErr.Allowed != 1 {
		t.Fatalf("expected used=1 allowed=1, got %+v", lErr)
	}
}

func TestRevisionUnlimitedPlan(t *testing.T) {
	env := newTestEnv(t)
	ultimate, err := env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{Email: "vip@cutroom.test", Name: "VIP", Role: "client", Plan: "ultimate"})
	if err != nil {
		t.Fatal(err)
	}
	vip := engine.ActingUser{ID: ultimate.ID, Role: "client"}
	p, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{Title: "Brand film"}, vip)
	if err != nil {
		t.Fatal(err)
	}
	if p.MaxRevisions != -1 {
		t.Fatalf("expected unlimited cap, got %d", p.MaxRevisions)
	}
	if _, err := env.Engine.AssignProject(env.Ctx, engine.AssignOptions{ProjectID: p.ID, EditorID: env.Editor.ID}, env.Admin); err != nil {
		t.Fatal(err)
	}
	deliver := func() {
		for _, s := range []string{"qc_review", "client_review"} {
			if _, err := env.Engine.UpdateStatus(env.Ctx, engine.StatusUpdateOptions{ProjectID: p.ID, Status: s}, env.Editor); err != nil {
				t.Fatal(err)
			}
		}
	}
	if _, err := env.Engine.UpdateStatus(env.Ctx, engine.StatusUpdateOptions{ProjectID: p.ID, Status: "in_progress"}, env.Editor); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		deliver()
		rev, err := env.Engine.RequestRevision(env.Ctx, engine.RevisionRequestOptions{ProjectID: p.ID, Description: "again"}, vip)
		if err != nil {
			t.Fatalf("revision %d refused: %v", i+1, err)
		}
		if _, err := env.Engine.ResolveRevision(env.Ctx, rev.ID, "completed", env.Editor); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRevisionRequiresClientReview(t *testing.T) {
	env := newTestEnv(t)
	id := env.newProject(t, "in_progress")
	_, err := env.Engine.RequestRevision(env.Ctx, engine.RevisionRequestOptions{ProjectID: id, Description: "too early"}, env.Client)
	var tErr engine.InvalidTransitionError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected InvalidTransitionError outside client_review, got %v", err)
	}
}

func TestRevisionOnlyByOwningClient(t *testing.T) {
	env := newTestEnv(t)
	id := env.newProject(t, "client_review")
	other, err := env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{Email: "c3@cutroom.test", Name: "C3", Role: "client", Plan: "premium"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.RequestRevision(env.Ctx, engine.RevisionRequestOptions{ProjectID: id, Description: "not mine"},
		engine.ActingUser{ID: other.ID, Role: "client"})
	var fErr engine.ForbiddenError
	if !errors.As(err, &fErr) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
}

func TestReviewApprove(t *testing.T) {
	env := newTestEnv(t)
	id := env.newProject(t, "client_review")

	p, err := env.Engine.Review(env.Ctx, engine.ReviewOptions{ProjectID: id, Action: "approve", Feedback: "great work"}, env.Client)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if p.Status != "completed" || p.CompletedAt == nil {
		t.Fatalf("expected completed with stamp, got %s", p.Status)
	}
	if p.Feedback == nil || *p.Feedback != "great work" {
		t.Fatalf("feedback not stored")
	}
	editor, err := env.Engine.Repo.GetUser(env.Ctx, env.Editor.ID)
	if err != nil {
		t.Fatal(err)
	}
	if editor.CompletedProjects != 1 {
		t.Fatalf("expected editor credit, got %d", editor.CompletedProjects)
	}
	// editor, QC and admin all hear about it
	for _, uid := range []string{env.Editor.ID, env.QC.ID, env.Admin.ID} {
		notifs, err := env.Engine.Repo.ListNotifications(env.Ctx, repo.NotificationFilters{UserID: uid})
		if err != nil {
			t.Fatal(err)
		}
		found := false
		for _, n := range notifs {
			if n.Type == "project.approved" {
				found = true
			}
		}
		if !found {
			t.Fatalf("user %s missing approval notification", uid)
		}
	}
}

func TestReviewReject(t *testing.T) {
	env := newTestEnv(t)
	id := env.newProject(t, "client_review")

	// reason is mandatory
	_, err := env.Engine.Review(env.Ctx, engine.ReviewOptions{ProjectID: id, Action: "reject"}, env.Client)
	var vErr engine.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for empty reason, got %v", err)
	}

	p, err := env.Engine.Review(env.Ctx, engine.ReviewOptions{ProjectID: id, Action: "reject", Feedback: "color grade is off"}, env.Client)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if p.Status != "rejected" {
		t.Fatalf("expected rejected, got %s", p.Status)
	}
	if p.Feedback == nil || *p.Feedback != "color grade is off" {
		t.Fatalf("reason not stored as feedback")
	}
	editor, _ := env.Engine.Repo.GetUser(env.Ctx, env.Editor.ID)
	if editor.CompletedProjects != 0 {
		t.Fatalf("reject must not credit the editor")
	}
}

func TestReviewGuards(t *testing.T) {
	env := newTestEnv(t)
	id := env.newProject(t, "qc_review")

	// approve outside client_review fails
	_, err := env.Engine.Review(env.Ctx, engine.ReviewOptions{ProjectID: id, Action: "approve"}, env.Client)
	var tErr engine.InvalidTransitionError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected InvalidTransitionError outside client_review, got %v", err)
	}

	id = env.newProject(t, "client_review")
	// only the owning client can review, even admins cannot
	_, err = env.Engine.Review(env.Ctx, engine.ReviewOptions{ProjectID: id, Action: "approve"}, env.Admin)
	var fErr engine.ForbiddenError
	if !errors.As(err, &fErr) {
		t.Fatalf("expected ForbiddenError for admin review, got %v", err)
	}
	// an unknown action is refused
	_, err = env.Engine.Review(env.Ctx, engine.ReviewOptions{ProjectID: id, Action: "maybe"}, env.Client)
	var vErr engine.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for unknown action, got %v", err)
	}
}

func TestActivityLoggedOnTransitions(t *testing.T) {
	env := newTestEnv(t)
	id := env.newProject(t, "client_review")
	if _, err := env.Engine.Review(env.Ctx, engine.ReviewOptions{ProjectID: id, Action: "approve"}, env.Client); err != nil {
		t.Fatal(err)
	}
	entries, err := env.Engine.Repo.LatestActivity(env.Ctx, 50, id, "")
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	types := map[string]int{}
	for _, a := range entries {
		types[a.Type]++
	}
	if types["project.created"] != 1 || types["project.assigned"] != 1 || types["project.approved"] != 1 {
		t.Fatalf("expected lifecycle entries, got %+v", types)
	}
	if types["project.status"] < 3 {
		t.Fatalf("expected status entries for each walk step, got %+v", types)
	}
}

func TestProjectFrozenRevisionCap(t *testing.T) {
	env := newTestEnv(t)
	p, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{Title: "Promo"}, env.Client)
	if err != nil {
		t.Fatal(err)
	}
	if p.MaxRevisions != 1 {
		t.Fatalf("basic plan should freeze cap at 1, got %d", p.MaxRevisions)
	}
	// upgrading the plan later does not retroactively change the project
	if err := env.Engine.Repo.SetUserPlan(env.Ctx, env.Client.ID, "premium"); err != nil {
		t.Fatal(err)
	}
	got, err := env.Engine.Repo.GetProject(env.Ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.MaxRevisions != 1 {
		t.Fatalf("cap changed after plan upgrade: %d", got.MaxRevisions)
	}
}

func TestProjectEditPreAssignmentOnly(t *testing.T) {
	env := newTestEnv(t)
	id := env.newProject(t, "pending")

	title := "Launch video, director's cut"
	p, err := env.Engine.UpdateProject(env.Ctx, engine.UpdateProjectOptions{ProjectID: id, Title: &title}, env.Client)
	if err != nil {
		t.Fatalf("client edit while pending: %v", err)
	}
	if p.Title != title {
		t.Fatalf("title = %q, want %q", p.Title, title)
	}

	if _, err := env.Engine.AssignProject(env.Ctx, engine.AssignOptions{ProjectID: id, EditorID: env.Editor.ID}, env.Admin); err != nil {
		t.Fatalf("assign: %v", err)
	}

	// After staffing the client loses edit rights.
	newTitle := "Too late"
	_, err = env.Engine.UpdateProject(env.Ctx, engine.UpdateProjectOptions{ProjectID: id, Title: &newTitle}, env.Client)
	var fe engine.ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("client edit after assignment: got %v, want ForbiddenError", err)
	}
	got, err := env.Engine.Repo.GetProject(env.Ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != title {
		t.Fatalf("title mutated by refused edit: %q", got.Title)
	}

	// Admins may edit at any stage; editors never.
	desc := "Re-cut for the spring launch"
	p, err = env.Engine.UpdateProject(env.Ctx, engine.UpdateProjectOptions{ProjectID: id, Description: &desc}, env.Admin)
	if err != nil || p.Description != desc {
		t.Fatalf("admin edit after assignment: %v (description %q)", err, p.Description)
	}
	_, err = env.Engine.UpdateProject(env.Ctx, engine.UpdateProjectOptions{ProjectID: id, Title: &newTitle}, env.Editor)
	if !errors.As(err, &fe) {
		t.Fatalf("editor edit: got %v, want ForbiddenError", err)
	}

	// Empty title is refused before any write.
	empty := ""
	_, err = env.Engine.UpdateProject(env.Ctx, engine.UpdateProjectOptions{ProjectID: id, Title: &empty}, env.Admin)
	var ve engine.ValidationError
	if !errors.As(err, &ve) || ve.Field != "title" {
		t.Fatalf("empty title: got %v, want ValidationError on title", err)
	}
}
