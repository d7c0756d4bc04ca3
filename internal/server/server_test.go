package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"cutroom/internal/config"
	"cutroom/internal/db"
	"cutroom/internal/engine"
	"cutroom/internal/migrate"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.AllowLegacyActorHeader = true
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	seed := []engine.UserCreateOptions{
		{ID: "u-admin", Email: "admin@cutroom.test", Name: "Admin", Role: "admin"},
		{ID: "u-editor", Email: "editor@cutroom.test", Name: "Editor", Role: "employee"},
		{ID: "u-qc", Email: "qc@cutroom.test", Name: "QC", Role: "qc"},
		{ID: "u-client", Email: "client@cutroom.test", Name: "Client", Role: "client", Plan: "basic"},
	}
	for _, opts := range seed {
		if _, err := e.CreateUser(context.Background(), opts); err != nil {
			t.Fatalf("seed user %s: %v", opts.Email, err)
		}
	}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v1",
		Auth: AuthConfig{
			JWTSecret:              cfg.Auth.JWTSecret,
			AllowLegacyActorHeader: true,
		},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(testSrv.Close)
	return testSrv
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	data, err := io.ReadAll(res.Body)
	res.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func asUser(id string) map[string]string {
	return map[string]string{"X-User-Id": id}
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, data)
	}
	return envelope.Error.Code
}

func TestHealthNoAuth(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.StatusCode, data)
	}
}

func TestUnauthenticatedRejected(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/projects", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, data)
	}
	if code := errorCode(t, data); code != "unauthorized" {
		t.Fatalf("expected unauthorized code, got %s", code)
	}
}

func TestProjectLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/projects",
		map[string]any{"title": "Launch video"}, asUser("u-client"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", res.StatusCode, data)
	}
	var p ProjectResponse
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("decode project: %v", err)
	}
	if p.Status != "pending" || p.MaxRevisions != 1 {
		t.Fatalf("unexpected project: %+v", p)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/projects/"+p.ID+"/assign",
		map[string]any{"editor_id": "u-editor", "qc_id": "u-qc"}, asUser("u-admin"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("assign: expected 200, got %d: %s", res.StatusCode, data)
	}

	for _, step := range []struct {
		status string
		user   string
	}{
		{"in_progress", "u-editor"},
		{"qc_review", "u-editor"},
		{"client_review", "u-qc"},
	} {
		res, data = doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/v1/projects/"+p.ID+"/status",
			map[string]any{"status": step.status}, asUser(step.user))
		if res.StatusCode != http.StatusOK {
			t.Fatalf("to %s: expected 200, got %d: %s", step.status, res.StatusCode, data)
		}
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/projects/"+p.ID+"/review",
		map[string]any{"action": "approve", "feedback": "ship it"}, asUser("u-client"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d: %s", res.StatusCode, data)
	}
	var approved ProjectResponse
	if err := json.Unmarshal(data, &approved); err != nil {
		t.Fatal(err)
	}
	if approved.Status != "completed" || approved.CompletedAt == nil {
		t.Fatalf("unexpected approved project: %+v", approved)
	}
}

func TestInvalidTransitionEnvelope(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/projects",
		map[string]any{"title": "Teaser"}, asUser("u-client"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %s", res.StatusCode, data)
	}
	var p ProjectResponse
	_ = json.Unmarshal(data, &p)

	res, data = doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/v1/projects/"+p.ID+"/status",
		map[string]any{"status": "completed"}, asUser("u-admin"))
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", res.StatusCode, data)
	}
	if code := errorCode(t, data); code != "invalid_transition" {
		t.Fatalf("expected invalid_transition code, got %s", code)
	}
	var envelope struct {
		Error struct {
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	_ = json.Unmarshal(data, &envelope)
	if envelope.Error.Details["current"] != "pending" || envelope.Error.Details["attempted"] != "completed" {
		t.Fatalf("expected transition details, got %+v", envelope.Error.Details)
	}
}

func TestRevisionLimitEnvelope(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	p, err := srv.Engine.CreateProject(ctx, engine.ProjectCreateOptions{Title: "Spot"},
		engine.ActingUser{ID: "u-client", Role: "client"})
	if err != nil {
		t.Fatal(err)
	}
	admin := engine.ActingUser{ID: "u-admin", Role: "admin"}
	if _, err := srv.Engine.AssignProject(ctx, engine.AssignOptions{ProjectID: p.ID, EditorID: "u-editor"}, admin); err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"in_progress", "qc_review", "client_review"} {
		if _, err := srv.Engine.UpdateStatus(ctx, engine.StatusUpdateOptions{ProjectID: p.ID, Status: s}, admin); err != nil {
			t.Fatal(err)
		}
	}
	rev, err := srv.Engine.RequestRevision(ctx, engine.RevisionRequestOptions{ProjectID: p.ID, Description: "first"},
		engine.ActingUser{ID: "u-client", Role: "client"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := srv.Engine.ResolveRevision(ctx, rev.ID, "completed", admin); err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"qc_review", "client_review"} {
		if _, err := srv.Engine.UpdateStatus(ctx, engine.StatusUpdateOptions{ProjectID: p.ID, Status: s}, admin); err != nil {
			t.Fatal(err)
		}
	}

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/projects/"+p.ID+"/revisions",
		map[string]any{"description": "second"}, asUser("u-client"))
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", res.StatusCode, data)
	}
	if code := errorCode(t, data); code != "revision_limit_exceeded" {
		t.Fatalf("expected revision_limit_exceeded code, got %s", code)
	}
}

func TestForbiddenEnvelope(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/users", nil, asUser("u-client"))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", res.StatusCode, data)
	}
	if code := errorCode(t, data); code != "forbidden" {
		t.Fatalf("expected forbidden code, got %s", code)
	}
}

func TestDevLoginAndJWT(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/auth/dev/login",
		map[string]any{"user_id": "u-admin"}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login: expected 200, got %d: %s", res.StatusCode, data)
	}
	var login DevLoginResponse
	if err := json.Unmarshal(data, &login); err != nil || login.Token == "" {
		t.Fatalf("expected token, got %s", data)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/me", nil,
		map[string]string{"Authorization": "Bearer " + login.Token})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me: expected 200, got %d: %s", res.StatusCode, data)
	}
	var who WhoAmIResponse
	if err := json.Unmarshal(data, &who); err != nil {
		t.Fatal(err)
	}
	if who.UserID != "u-admin" || who.Role != "admin" || who.Source != "jwt" {
		t.Fatalf("unexpected principal: %+v", who)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/apikeys",
		map[string]any{"name": "ci"}, asUser("u-editor"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create key: expected 201, got %d: %s", res.StatusCode, data)
	}
	var key APIKeyResponse
	if err := json.Unmarshal(data, &key); err != nil || key.Key == "" {
		t.Fatalf("expected plaintext key once, got %s", data)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/me", nil,
		map[string]string{"X-Api-Key": key.Key})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me via key: expected 200, got %d: %s", res.StatusCode, data)
	}
	var who WhoAmIResponse
	_ = json.Unmarshal(data, &who)
	if who.UserID != "u-editor" || who.Source != "api_key" {
		t.Fatalf("unexpected principal: %+v", who)
	}
}

func TestNotificationsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	p, err := srv.Engine.CreateProject(ctx, engine.ProjectCreateOptions{Title: "Reel"},
		engine.ActingUser{ID: "u-client", Role: "client"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := srv.Engine.AssignProject(ctx, engine.AssignOptions{ProjectID: p.ID, EditorID: "u-editor"},
		engine.ActingUser{ID: "u-admin", Role: "admin"}); err != nil {
		t.Fatal(err)
	}

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/notifications?unread=true", nil, asUser("u-editor"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.StatusCode, data)
	}
	var page paginatedNotifications
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatal(err)
	}
	if len(page.Items) == 0 || page.Items[0].Type != "assignment" {
		t.Fatalf("expected assignment notification, got %+v", page.Items)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/notifications/"+page.Items[0].ID+"/read", nil, asUser("u-editor"))
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusNoContent {
		t.Fatalf("mark read: got %d: %s", res.StatusCode, data)
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/notifications?unread=true", nil, asUser("u-editor"))
	if res.StatusCode != http.StatusOK {
		t.Fatal(res.StatusCode)
	}
	_ = json.Unmarshal(data, &page)
	for _, n := range page.Items {
		if n.ID == page.Items[0].ID && n.Read {
			t.Fatalf("read notification still listed as unread")
		}
	}
}

func TestProjectVisibilityScoped(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	if _, err := srv.Engine.CreateUser(ctx, engine.UserCreateOptions{
		ID: "u-client2", Email: "c2@cutroom.test", Name: "C2", Role: "client", Plan: "basic",
	}); err != nil {
		t.Fatal(err)
	}
	p, err := srv.Engine.CreateProject(ctx, engine.ProjectCreateOptions{Title: "Private cut"},
		engine.ActingUser{ID: "u-client", Role: "client"})
	if err != nil {
		t.Fatal(err)
	}

	// the other client sees an empty list and cannot read the project
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/projects", nil, asUser("u-client2"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list: %d %s", res.StatusCode, data)
	}
	var page paginatedProjects
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 0 {
		t.Fatalf("expected empty list for stranger, got %d items", len(page.Items))
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/projects/"+p.ID, nil, asUser("u-client2"))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", res.StatusCode, data)
	}
}

func TestProjectEditEndpoint(t *testing.T) {
	srv := newTestServer(t)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/projects",
		map[string]any{"title": "Rough cut"}, asUser("u-client"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %s", res.StatusCode, data)
	}
	var p ProjectResponse
	_ = json.Unmarshal(data, &p)

	res, data = doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/v1/projects/"+p.ID,
		map[string]any{"title": "Final cut", "description": "locked edit"}, asUser("u-client"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("edit while pending: %d %s", res.StatusCode, data)
	}
	var edited ProjectResponse
	_ = json.Unmarshal(data, &edited)
	if edited.Title != "Final cut" || edited.Description != "locked edit" {
		t.Fatalf("unexpected edited project: %+v", edited)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/projects/"+p.ID+"/assign",
		map[string]any{"editor_id": "u-editor"}, asUser("u-admin"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("assign: %d %s", res.StatusCode, data)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/v1/projects/"+p.ID,
		map[string]any{"title": "Too late"}, asUser("u-client"))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("edit after staffing: expected 403, got %d: %s", res.StatusCode, data)
	}
	if code := errorCode(t, data); code != "forbidden" {
		t.Fatalf("expected forbidden code, got %s", code)
	}
}
