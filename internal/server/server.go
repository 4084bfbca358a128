package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"remindline/internal/domain"
	"remindline/internal/engine"
	"remindline/internal/engine/auth"
	"remindline/internal/metrics"
	"remindline/internal/notify"
	"remindline/internal/repo"
	"remindline/internal/scheduler"
	"remindline/internal/timeparse"
)

// Config for the HTTP API handler.
type Config struct {
	Engine engine.Engine
	// Scheduler backs the force-check endpoint. It may be nil.
	Scheduler *scheduler.Scheduler
	BasePath  string
	Auth      AuthConfig
	Log       *zap.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_transition"`
	Message string         `json:"message" example:"invalid postpone on task 1: task is done"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the remindline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	huma.DefaultArrayNullable = false
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
	router.Use(middleware.RequestID)
	router.Use(requestLogger(log))
	router.Use(middleware.Recoverer)
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	router.Handle("/metrics", metrics.Handler())

	hcfg := huma.DefaultConfig("remindline API", "0.1.0")
	hcfg.OpenAPIPath = ""
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerTasks(group, cfg.Engine)
	registerUsers(group, cfg.Engine)
	registerLinks(group, cfg.Engine)
	registerScheduler(group, cfg.Engine, cfg.Scheduler)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

// requestLogger logs one line per request, errors at error level.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			fields := []zap.Field{
				zap.Int("status", ww.Status()),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("ip", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.Duration("latency", time.Since(start)),
			}
			if ww.Status() >= http.StatusInternalServerError {
				logger.Error("http request", fields...)
				return
			}
			logger.Info("http request", fields...)
		})
	}
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

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var pe *timeparse.ParseError
	if errors.As(err, &pe) {
		return newAPIError(http.StatusUnprocessableEntity, "parse_failure", err.Error(), map[string]any{"input": pe.Input})
	}
	var te *domain.InvalidTransitionError
	if errors.As(err, &te) {
		return newAPIError(http.StatusConflict, "invalid_transition", err.Error(), map[string]any{"op": te.Op})
	}
	var ce *domain.CycleRejectedError
	if errors.As(err, &ce) {
		return newAPIError(http.StatusConflict, "cycle_rejected", err.Error(), map[string]any{"manager_id": ce.ManagerID, "subordinate_id": ce.SubordinateID})
	}
	var de *domain.DuplicateLinkError
	if errors.As(err, &de) {
		return newAPIError(http.StatusConflict, "duplicate_link", err.Error(), nil)
	}
	var fe *domain.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"action": fe.Action})
	}
	if errors.Is(err, domain.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	var ne *notify.DeliveryError
	if errors.As(err, &ne) {
		return newAPIError(http.StatusBadGateway, "delivery_failed", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "required") ||
		strings.Contains(lowered, "unknown") || strings.Contains(lowered, "deactivated"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
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
	var (
		once sync.Once
		spec []byte
	)
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			if oas.Components != nil && oas.Components.Schemas != nil {
				oas.Components.Schemas.Schema(reflect.TypeOf(apiError{}), true, "ApiError")
			}
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		})
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
			item.Get, item.Put, item.Post, item.Delete, item.Patch,
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
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	healthPath := path.Join("/", basePath, "health")
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Patch,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
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
    <title>remindline API Docs</title>
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
      Authenticate with Authorization: Bearer &lt;token&gt;.
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

var taskErrors = []int{
	http.StatusBadRequest,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusUnprocessableEntity,
}

func userFilters(role, department string, activeOnly bool) repo.UserFilters {
	return repo.UserFilters{Role: role, Department: department, ActiveOnly: activeOnly}
}

type taskPath struct {
	ID string `path:"id"`
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        taskErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*CreateTaskBody, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		owner := strings.TrimSpace(input.Body.OwnerID)
		if owner == "" {
			owner = actorID
		}
		opts := engine.TaskCreateOptions{
			OwnerID:      owner,
			Description:  input.Body.Description,
			DeadlineText: input.Body.Deadline,
			ActorID:      actorID,
		}
		if input.Body.ID != nil {
			opts.ID = *input.Body.ID
		}
		res, err := e.CreateTask(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &CreateTaskBody{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List visible tasks",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:"new,in_progress,almost_done,done"`
		UserID string `query:"user_id"`
		Open   bool   `query:"open"`
		Limit  int    `query:"limit" minimum:"0" maximum:"1000"`
	}) (*TaskListBody, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		tasks, err := e.ListTasks(ctx, engine.TaskListOptions{
			ActorID:  actorID,
			UserID:   input.UserID,
			Status:   input.Status,
			OpenOnly: input.Open,
			Limit:    input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &TaskListBody{Body: tasks}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *taskPath) (*TaskBody, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.GetTask(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &TaskBody{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "task-events",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}/events",
		Summary:     "Task history",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *taskPath) (*EventListBody, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		evs, err := e.TaskEvents(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &EventListBody{Body: evs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "start-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/start",
		Summary:     "Start task",
		Errors:      taskErrors,
	}, func(ctx context.Context, input *taskPath) (*TaskBody, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.StartTask(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &TaskBody{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/complete",
		Summary:     "Complete task",
		Errors:      taskErrors,
	}, func(ctx context.Context, input *taskPath) (*TaskBody, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CompleteTask(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &TaskBody{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "postpone-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/postpone",
		Summary:     "Postpone task",
		Errors:      taskErrors,
	}, func(ctx context.Context, input *struct {
		ID   string          `path:"id"`
		Body PostponeRequest `json:"body"`
	}) (*TaskBody, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.PostponeTask(ctx, engine.PostponeOptions{
			TaskID:       input.ID,
			DeadlineText: input.Body.Deadline,
			Reason:       input.Body.Reason,
			ActorID:      actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &TaskBody{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "snooze-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/snooze",
		Summary:     "Snooze the next reminder",
		Errors:      taskErrors,
	}, func(ctx context.Context, input *struct {
		ID   string        `path:"id"`
		Body SnoozeRequest `json:"body"`
	}) (*TaskBody, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var (
			t   domain.Task
			err error
		)
		switch {
		case strings.TrimSpace(input.Body.Until) != "":
			t, err = e.SnoozeUntil(ctx, input.ID, input.Body.Until, actorID)
		case input.Body.Minutes > 0:
			t, err = e.SnoozeTask(ctx, input.ID, input.Body.Minutes, actorID)
		default:
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "minutes or until is required", nil)
		}
		if err != nil {
			return nil, handleError(err)
		}
		return &TaskBody{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-task-status",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/status",
		Summary:     "Set task status",
		Errors:      taskErrors,
	}, func(ctx context.Context, input *struct {
		ID   string        `path:"id"`
		Body StatusRequest `json:"body"`
	}) (*TaskBody, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.SetStatus(ctx, input.ID, input.Body.Status, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &TaskBody{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reply-to-reminder",
		Method:      http.MethodPost,
		Path:        "/replies",
		Summary:     "Forward a reply on a reminder to the managers",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body ReplyRequest `json:"body"`
	}) (*ReplyBody, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.ReplyToReminder(ctx, actorID, input.Body.MessageID, input.Body.Text)
		if err != nil {
			return nil, handleError(err)
		}
		return &ReplyBody{Body: res}, nil
	})
}

type userPath struct {
	ID string `path:"id"`
}

func registerUsers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "ensure-user",
		Method:      http.MethodPost,
		Path:        "/users",
		Summary:     "Register a contact or refresh its name",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body EnsureUserRequest `json:"body"`
	}) (*UserBody, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if actorID != input.Body.ID {
			if err := e.Auth.Require(ctx, actorID, auth.PermUserAdmin); err != nil {
				return nil, handleError(err)
			}
		}
		u, err := e.EnsureUser(ctx, input.Body.ID, input.Body.FullName)
		if err != nil {
			return nil, handleError(err)
		}
		if input.Body.Register {
			u, err = e.Register(ctx, u.ID, input.Body.FullName, input.Body.Department)
			if err != nil {
				return nil, handleError(err)
			}
		}
		return &UserBody{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List users",
	}, func(ctx context.Context, input *struct {
		Role       string `query:"role" enum:"employee,lead,head,developer"`
		Department string `query:"department"`
		Active     bool   `query:"active"`
	}) (*UserListBody, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		users, err := e.ListUsers(ctx, userFilters(input.Role, input.Department, input.Active))
		if err != nil {
			return nil, handleError(err)
		}
		return &UserListBody{Body: users}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "user-managers",
		Method:      http.MethodGet,
		Path:        "/users/{id}/managers",
		Summary:     "Everyone who hears about the user's overdue tasks",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *userPath) (*UserListBody, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		users, err := e.ManagersOf(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &UserListBody{Body: users}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-user-role",
		Method:      http.MethodPost,
		Path:        "/users/{id}/role",
		Summary:     "Change a user's role",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string      `path:"id"`
		Body RoleRequest `json:"body"`
	}) (*UserBody, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.SetRole(ctx, actorID, input.ID, input.Body.Role)
		if err != nil {
			return nil, handleError(err)
		}
		return &UserBody{Body: u}, nil
	})

	for _, op := range []struct {
		id, verb string
		fn       func(context.Context, string, string) (domain.User, error)
	}{
		{"deactivate-user", "deactivate", e.DeactivateUser},
		{"reactivate-user", "reactivate", e.ReactivateUser},
	} {
		fn := op.fn
		huma.Register(api, huma.Operation{
			OperationID: op.id,
			Method:      http.MethodPost,
			Path:        "/users/{id}/" + op.verb,
			Summary:     strings.ToUpper(op.verb[:1]) + op.verb[1:] + " user",
			Errors:      []int{http.StatusForbidden, http.StatusNotFound},
		}, func(ctx context.Context, input *userPath) (*UserBody, error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			u, err := fn(ctx, actorID, input.ID)
			if err != nil {
				return nil, handleError(err)
			}
			return &UserBody{Body: u}, nil
		})
	}
}

func registerLinks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "link-manager",
		Method:        http.MethodPost,
		Path:          "/links",
		Summary:       "Make one user a manager of another",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body LinkRequest `json:"body"`
	}) (*LinkBody, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		l, err := e.LinkManager(ctx, actorID, input.Body.ManagerID, input.Body.SubordinateID)
		if err != nil {
			return nil, handleError(err)
		}
		return &LinkBody{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "unlink-manager",
		Method:        http.MethodDelete,
		Path:          "/links/{manager_id}/{subordinate_id}",
		Summary:       "Remove a manager link",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ManagerID     string `path:"manager_id"`
		SubordinateID string `path:"subordinate_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.UnlinkManager(ctx, actorID, input.ManagerID, input.SubordinateID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerScheduler(api huma.API, e engine.Engine, s *scheduler.Scheduler) {
	huma.Register(api, huma.Operation{
		OperationID: "force-tick",
		Method:      http.MethodPost,
		Path:        "/scheduler/tick",
		Summary:     "Run a reminder check now",
		Errors:      []int{http.StatusForbidden, http.StatusServiceUnavailable},
	}, func(ctx context.Context, _ *struct{}) (*TickBody, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.Auth.Require(ctx, actorID, auth.PermSchedulerForce); err != nil {
			return nil, handleError(err)
		}
		if s == nil {
			return nil, newAPIError(http.StatusServiceUnavailable, "scheduler_disabled", "scheduler is not running in this process", nil)
		}
		return &TickBody{Body: s.Tick(ctx)}, nil
	})
}
