package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"cutroom/internal/domain"
	"cutroom/internal/engine"
	"cutroom/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_transition"`
	Message string         `json:"message" example:"invalid status transition completed -> pending"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"current\":\"completed\"}"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the required error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Cutroom API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the requested envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Cutroom API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerStats(group, cfg.Engine)
	registerUsers(group, cfg.Engine)
	registerProjects(group, cfg.Engine)
	registerRevisions(group, cfg.Engine)
	registerNotifications(group, cfg.Engine)
	registerActivity(group, cfg.Engine)
	registerAPIKeys(group, cfg.Engine)
	registerMe(group)
	registerDevAuth(group, cfg.Engine, cfg.Auth)
	registerOpenAPI(router, api, basePath)

	startWebhookDispatcher(cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps engine errors onto the wire envelope. The engine's typed
// errors carry the structured detail so no string matching happens here.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var fe engine.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), nil)
	}
	var te engine.InvalidTransitionError
	if errors.As(err, &te) {
		return newAPIError(http.StatusConflict, "invalid_transition", err.Error(), map[string]any{
			"current":   te.Current,
			"attempted": te.Attempted,
		})
	}
	var ve engine.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, "validation_error", err.Error(), map[string]any{
			"field": ve.Field,
		})
	}
	var re engine.RevisionLimitError
	if errors.As(err, &re) {
		return newAPIError(http.StatusUnprocessableEntity, "revision_limit_exceeded", err.Error(), map[string]any{
			"used":    re.Used,
			"allowed": re.Allowed,
		})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	open := map[string]bool{
		"/" + strings.TrimPrefix(path.Join(basePath, "health"), "/"):         true,
		"/" + strings.TrimPrefix(path.Join(basePath, "auth/dev/login"), "/"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if open[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Cutroom API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerStats(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "stats",
		Method:      http.MethodGet,
		Path:        "/stats",
		Summary:     "Project counts by status",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]any `json:"body"`
	}, error) {
		if _, authErr := actingUserFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		counts, err := e.Repo.CountProjectsByStatus(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]any `json:"body"`
		}{Body: map[string]any{"project_counts": counts}}, nil
	})
}

func registerUsers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-user",
		Method:        http.MethodPost,
		Path:          "/users",
		Summary:       "Create user",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateUserRequest `json:"body"`
	}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor, authErr := actingUserFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if actor.Role != "admin" {
			return nil, handleError(engine.ForbiddenError{Reason: "only admins can create users"})
		}
		opts := engine.UserCreateOptions{
			Email: input.Body.Email,
			Name:  input.Body.Name,
			Role:  input.Body.Role,
		}
		if input.Body.ID != nil {
			opts.ID = *input.Body.ID
		}
		if input.Body.Plan != nil {
			opts.Plan = *input.Body.Plan
		}
		u, err := e.CreateUser(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: userResponse(u)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List users",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Role string `query:"role"`
	}) (*struct {
		Body []UserResponse `json:"body"`
	}, error) {
		actor, authErr := actingUserFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if actor.Role != "admin" {
			return nil, handleError(engine.ForbiddenError{Reason: "only admins can list users"})
		}
		items, err := e.Repo.ListUsers(ctx, repo.NormalizeRole(input.Role))
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]UserResponse, 0, len(items))
		for _, u := range items {
			res = append(res, userResponse(u))
		}
		return &struct {
			Body []UserResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/users/{id}",
		Summary:     "Get user",
		Errors:      []int{http.StatusNotFound, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		actor, authErr := actingUserFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if actor.Role != "admin" && actor.ID != input.ID {
			return nil, handleError(engine.ForbiddenError{Reason: "cannot read other users"})
		}
		u, err := e.Repo.GetUser(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: userResponse(u)}, nil
	})
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor, authErr := actingUserFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.ProjectCreateOptions{
			Title:       input.Body.Title,
			Description: stringOrEmpty(input.Body.Description),
			ClientID:    stringOrEmpty(input.Body.ClientID),
			Priority:    stringOrEmpty(input.Body.Priority),
			Notes:       stringOrEmpty(input.Body.Notes),
		}
		if input.Body.ID != nil {
			opts.ID = *input.Body.ID
		}
		p, err := e.CreateProject(ctx, opts, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status   string `query:"status"`
		Priority string `query:"priority"`
		Limit    int    `query:"limit" default:"50"`
		Cursor   string `query:"cursor"`
	}) (*struct {
		Body paginatedProjects `json:"body"`
	}, error) {
		actor, authErr := actingUserFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		limit := normalizeLimit(input.Limit)
		cursorCreated, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		filter := repo.ProjectFilters{
			Status:          input.Status,
			Priority:        input.Priority,
			Limit:           limit + 1,
			CursorCreatedAt: cursorCreated,
			CursorID:        cursorID,
		}
		// Non-admins only see projects they are attached to.
		switch actor.Role {
		case "admin":
		case "client":
			filter.ClientID = actor.ID
		case "employee":
			filter.EditorID = actor.ID
		case "qc":
			filter.QCID = actor.ID
		}
		items, err := e.Repo.ListProjects(ctx, filter)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedProjects{Items: []ProjectResponse{}}
		if len(items) > limit {
			resp.NextCursor = composeCursor(items[limit].CreatedAt, items[limit].ID)
			items = items[:limit]
		}
		resp.Items = mapProjects(items)
		return &struct {
			Body paginatedProjects `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusNotFound, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		actor, authErr := actingUserFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.Repo.GetProject(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := projectReadable(p, actor); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPatch,
		Path:        "/projects/{id}",
		Summary:     "Edit title and description",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body UpdateProjectRequest `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor, authErr := actingUserFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.UpdateProject(ctx, engine.UpdateProjectOptions{
			ProjectID:   input.ID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
		}, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-project",
		Method:      http.MethodPost,
		Path:        "/projects/{id}/assign",
		Summary:     "Assign editor and QC",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body AssignProjectRequest `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor, authErr := actingUserFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.AssignProject(ctx, engine.AssignOptions{
			ProjectID: input.ID,
			EditorID:  input.Body.EditorID,
			QCID:      stringOrEmpty(input.Body.QCID),
			Priority:  stringOrEmpty(input.Body.Priority),
		}, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project-status",
		Method:      http.MethodPatch,
		Path:        "/projects/{id}/status",
		Summary:     "Update status and progress",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID   string              `path:"id"`
		Body UpdateStatusRequest `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor, authErr := actingUserFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.StatusUpdateOptions{
			ProjectID: input.ID,
			Progress:  input.Body.Progress,
			Notes:     input.Body.Notes,
		}
		if input.Body.Status != nil {
			opts.Status = *input.Body.Status
		}
		p, err := e.UpdateStatus(ctx, opts, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "review-project",
		Method:      http.MethodPost,
		Path:        "/projects/{id}/review",
		Summary:     "Approve or reject a delivered project",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID   string        `path:"id"`
		Body ReviewRequest `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor, authErr := actingUserFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.Review(ctx, engine.ReviewOptions{
			ProjectID: input.ID,
			Action:    input.Body.Action,
			Feedback:  stringOrEmpty(input.Body.Feedback),
		}, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})
}

func registerRevisions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "request-revision",
		Method:        http.MethodPost,
		Path:          "/projects/{id}/revisions",
		Summary:       "Request a revision",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                `path:"id"`
		Body CreateRevisionRequest `json:"body"`
	}) (*struct {
		Body RevisionResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor, authErr := actingUserFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rev, err := e.RequestRevision(ctx, engine.RevisionRequestOptions{
			ProjectID:        input.ID,
			Description:      input.Body.Description,
			Priority:         stringOrEmpty(input.Body.Priority),
			Category:         stringOrEmpty(input.Body.Category),
			TimestampSeconds: input.Body.TimestampSeconds,
		}, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RevisionResponse `json:"body"`
		}{Body: revisionResponse(rev)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-revisions",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/revisions",
		Summary:     "List revisions",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID     string `path:"id"`
		Status string `query:"status"`
		Limit  int    `query:"limit" default:"50"`
		Cursor string `query:"cursor"`
	}) (*struct {
		Body paginatedRevisions `json:"body"`
	}, error) {
		actor, authErr := actingUserFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.Repo.GetProject(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := projectReadable(p, actor); err != nil {
			return nil, handleError(err)
		}
		limit := normalizeLimit(input.Limit)
		cursorCreated, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		items, err := e.Repo.ListRevisions(ctx, repo.RevisionFilters{
			ProjectID:       input.ID,
			Status:          input.Status,
			Limit:           limit + 1,
			CursorCreatedAt: cursorCreated,
			CursorID:        cursorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedRevisions{Items: []RevisionResponse{}}
		if len(items) > limit {
			resp.NextCursor = composeCursor(items[limit].CreatedAt, items[limit].ID)
			items = items[:limit]
		}
		resp.Items = mapRevisions(items)
		return &struct {
			Body paginatedRevisions `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resolve-revision",
		Method:      http.MethodPost,
		Path:        "/revisions/{id}/resolve",
		Summary:     "Resolve a revision",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                 `path:"id"`
		Body ResolveRevisionRequest `json:"body"`
	}) (*struct {
		Body RevisionResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor, authErr := actingUserFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rev, err := e.ResolveRevision(ctx, input.ID, input.Body.Status, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RevisionResponse `json:"body"`
		}{Body: revisionResponse(rev)}, nil
	})
}

func registerNotifications(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-notifications",
		Method:      http.MethodGet,
		Path:        "/notifications",
		Summary:     "List own notifications",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Unread bool   `query:"unread"`
		Limit  int    `query:"limit" default:"50"`
		Cursor string `query:"cursor"`
	}) (*struct {
		Body paginatedNotifications `json:"body"`
	}, error) {
		actor, authErr := actingUserFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		limit := normalizeLimit(input.Limit)
		cursorCreated, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		items, err := e.Repo.ListNotifications(ctx, repo.NotificationFilters{
			UserID:          actor.ID,
			UnreadOnly:      input.Unread,
			Limit:           limit + 1,
			CursorCreatedAt: cursorCreated,
			CursorID:        cursorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedNotifications{Items: []NotificationResponse{}}
		if len(items) > limit {
			resp.NextCursor = composeCursor(items[limit].CreatedAt, items[limit].ID)
			items = items[:limit]
		}
		resp.Items = mapNotifications(items)
		return &struct {
			Body paginatedNotifications `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "read-notification",
		Method:      http.MethodPost,
		Path:        "/notifications/{id}/read",
		Summary:     "Mark notification read",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		actor, authErr := actingUserFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.MarkNotificationRead(ctx, input.ID, actor); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerActivity(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-activity",
		Method:      http.MethodGet,
		Path:        "/activity",
		Summary:     "Activity log",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ProjectID string `query:"project_id"`
		Type      string `query:"type"`
		Limit     int    `query:"limit" default:"50"`
		From      int64  `query:"from"`
	}) (*struct {
		Body []ActivityResponse `json:"body"`
	}, error) {
		actor, authErr := actingUserFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if actor.Role != "admin" {
			return nil, handleError(engine.ForbiddenError{Reason: "only admins can read the activity log"})
		}
		limit := normalizeLimit(input.Limit)
		var items []domain.Activity
		var err error
		if input.From > 0 {
			items, err = e.Repo.LatestActivityFrom(ctx, limit, input.From, input.ProjectID, input.Type)
		} else {
			items, err = e.Repo.LatestActivity(ctx, limit, input.ProjectID, input.Type)
		}
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]ActivityResponse, 0, len(items))
		for _, a := range items {
			res = append(res, activityResponse(a))
		}
		return &struct {
			Body []ActivityResponse `json:"body"`
		}{Body: res}, nil
	})
}

func registerAPIKeys(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/apikeys",
		Summary:       "Create API key",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest `json:"body"`
	}) (*struct {
		Body APIKeyResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor, authErr := actingUserFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		targetID := input.Body.UserID
		if targetID == "" {
			targetID = actor.ID
		}
		if actor.Role != "admin" && targetID != actor.ID {
			return nil, handleError(engine.ForbiddenError{Reason: "cannot mint keys for other users"})
		}
		if _, err := e.Repo.GetUser(ctx, targetID); err != nil {
			return nil, handleError(err)
		}
		secret := uuid.New().String() + uuid.New().String()
		key := domain.APIKey{
			ID:        uuid.New().String(),
			UserID:    targetID,
			Name:      stringOrEmpty(input.Body.Name),
			KeyHash:   repo.HashAPIKey(secret),
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
		if err := e.Repo.InsertAPIKey(ctx, key); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body APIKeyResponse `json:"body"`
		}{Body: APIKeyResponse{
			ID:        key.ID,
			UserID:    key.UserID,
			Name:      key.Name,
			Key:       secret,
			CreatedAt: key.CreatedAt,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/apikeys",
		Summary:     "List own API keys",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []APIKeyResponse `json:"body"`
	}, error) {
		actor, authErr := actingUserFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListAPIKeys(ctx, actor.ID)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]APIKeyResponse, 0, len(items))
		for _, k := range items {
			res = append(res, APIKeyResponse{ID: k.ID, UserID: k.UserID, Name: k.Name, CreatedAt: k.CreatedAt})
		}
		return &struct {
			Body []APIKeyResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-api-key",
		Method:      http.MethodDelete,
		Path:        "/apikeys/{id}",
		Summary:     "Delete API key",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		actor, authErr := actingUserFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		keys, err := e.Repo.ListAPIKeys(ctx, actor.ID)
		if err != nil {
			return nil, handleError(err)
		}
		owned := false
		for _, k := range keys {
			if k.ID == input.ID {
				owned = true
			}
		}
		if !owned && actor.Role != "admin" {
			return nil, handleError(repo.ErrNotFound)
		}
		if err := e.Repo.DeleteAPIKey(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerMe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors: []int{
			http.StatusUnauthorized,
		},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body WhoAmIResponse `json:"body"`
	}, error) {
		principal, ok := principalFromContext(ctx)
		if !ok || principal.UserID == "" {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		}
		return &struct {
			Body WhoAmIResponse `json:"body"`
		}{Body: WhoAmIResponse{
			UserID: principal.UserID,
			Role:   principal.Role,
			Source: principal.Source,
		}}, nil
	})
}

func registerDevAuth(api huma.API, e engine.Engine, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		userID := strings.TrimSpace(input.Body.UserID)
		if userID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "user_id is required", nil)
		}
		u, err := e.Repo.GetUser(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		token, err := signDevToken(authCfg.JWTSecret, u.ID, u.Role)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

// projectReadable mirrors the engine's ownership guard for read endpoints.
func projectReadable(p domain.Project, actor engine.ActingUser) error {
	if actor.Role == "admin" {
		return nil
	}
	switch actor.Role {
	case "client":
		if p.ClientID == actor.ID {
			return nil
		}
	case "employee":
		if p.AssignedEditorID != nil && *p.AssignedEditorID == actor.ID {
			return nil
		}
	case "qc":
		if p.AssignedQCID != nil && *p.AssignedQCID == actor.ID {
			return nil
		}
	}
	return engine.ForbiddenError{Reason: "no access to this project"}
}

func activityResponse(a domain.Activity) ActivityResponse {
	res := ActivityResponse{
		ID:        a.ID,
		TS:        a.TS,
		Type:      a.Type,
		ProjectID: a.ProjectID,
		ActorID:   a.ActorID,
	}
	if a.Payload != "" {
		var m map[string]any
		if err := json.Unmarshal([]byte(a.Payload), &m); err == nil {
			res.Payload = m
		}
	}
	return res
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}

func parseCompositeCursor(cursor string) (string, string, error) {
	if cursor == "" {
		return "", "", nil
	}
	parts := strings.SplitN(cursor, "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid cursor")
	}
	return parts[0], parts[1], nil
}

func composeCursor(ts, id string) string {
	if ts == "" || id == "" {
		return ""
	}
	return ts + "|" + id
}

func stringOrEmpty(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
