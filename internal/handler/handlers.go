package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/todoflow-labs/todo-api/internal/dto"
	"github.com/todoflow-labs/todo-api/internal/logging"
	"github.com/todoflow-labs/todo-api/internal/metrics"
	"github.com/todoflow-labs/todo-api/internal/model"
)

// TodoRepository is the persistence the handlers need.
type TodoRepository interface {
	Create(ctx context.Context, in model.NewTodo) (model.Todo, error)
	List(ctx context.Context, f model.ListFilter) (model.TodoPage, error)
	GetByID(ctx context.Context, id int64) (model.Todo, error)
	UpdateByID(ctx context.Context, id int64, patch model.TodoPatch) (model.Todo, error)
	CompleteByID(ctx context.Context, id int64) (model.Todo, error)
	DeleteByID(ctx context.Context, id int64) error
}

type Option func(*responder)

// WithErrorDetail appends the underlying cause to 500 responses. Keep it off in production.
func WithErrorDetail(on bool) Option {
	return func(rs *responder) { rs.errorDetail = on }
}

// Routes mounts the todo resource on a chi sub-router.
func Routes(repo TodoRepository, logger *logging.Logger, opts ...Option) func(chi.Router) {
	return func(r chi.Router) {
		r.Post("/", CreateTodo(repo, logger, opts...))
		r.Get("/", ListTodos(repo, logger, opts...))
		r.Get("/{id}", GetTodo(repo, logger, opts...))
		r.Put("/{id}", UpdateTodo(repo, logger, opts...))
		r.Patch("/{id}/complete", CompleteTodo(repo, logger, opts...))
		r.Delete("/{id}", DeleteTodo(repo, logger, opts...))
	}
}

func CreateTodo(repo TodoRepository, logger *logging.Logger, opts ...Option) http.HandlerFunc {
	rs := newResponder(logger, opts)
	return func(w http.ResponseWriter, r *http.Request) {
		rs.log(r).Debug().Msg("handling create todo")

		var req dto.CreateTodoRequest
		if err := decode(r, &req); err != nil {
			rs.fail(w, r, "create", metrics.TodoCreateCounter, err)
			return
		}
		in, err := req.Validate()
		if err != nil {
			rs.fail(w, r, "create", metrics.TodoCreateCounter, err)
			return
		}

		todo, err := repo.Create(r.Context(), in)
		if err != nil {
			rs.fail(w, r, "create", metrics.TodoCreateCounter, err)
			return
		}

		rs.log(r).Debug().Int64("id", todo.ID).Msg("todo created")
		metrics.TodoCreateCounter.WithLabelValues(metrics.OutcomeSuccess).Inc()
		WriteJSON(w, http.StatusCreated, dto.NewTodoResponse(todo))
	}
}

func ListTodos(repo TodoRepository, logger *logging.Logger, opts ...Option) http.HandlerFunc {
	rs := newResponder(logger, opts)
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := dto.ParseListQuery(r.URL.Query())
		if err != nil {
			rs.fail(w, r, "list", metrics.TodoListCounter, err)
			return
		}

		page, err := repo.List(r.Context(), filter)
		if err != nil {
			rs.fail(w, r, "list", metrics.TodoListCounter, err)
			return
		}

		metrics.TodoListCounter.WithLabelValues(metrics.OutcomeSuccess).Inc()
		WriteJSON(w, http.StatusOK, dto.NewTodoListResponse(page))
	}
}

func GetTodo(repo TodoRepository, logger *logging.Logger, opts ...Option) http.HandlerFunc {
	rs := newResponder(logger, opts)
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := dto.ParseID(chi.URLParam(r, "id"))
		if err != nil {
			rs.fail(w, r, "get", metrics.TodoGetCounter, err)
			return
		}

		todo, err := repo.GetByID(r.Context(), id)
		if err != nil {
			rs.fail(w, r, "get", metrics.TodoGetCounter, err)
			return
		}

		metrics.TodoGetCounter.WithLabelValues(metrics.OutcomeSuccess).Inc()
		WriteJSON(w, http.StatusOK, dto.NewTodoResponse(todo))
	}
}

func UpdateTodo(repo TodoRepository, logger *logging.Logger, opts ...Option) http.HandlerFunc {
	rs := newResponder(logger, opts)
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := dto.ParseID(chi.URLParam(r, "id"))
		if err != nil {
			rs.fail(w, r, "update", metrics.TodoUpdateCounter, err)
			return
		}

		var req dto.UpdateTodoRequest
		if err := decode(r, &req); err != nil {
			rs.fail(w, r, "update", metrics.TodoUpdateCounter, err)
			return
		}
		patch, err := req.Validate()
		if err != nil {
			rs.fail(w, r, "update", metrics.TodoUpdateCounter, err)
			return
		}
		if patch.Empty() {
			rs.log(r).Debug().Int64("id", id).Msg("empty update, only touching updated_at")
		}

		todo, err := repo.UpdateByID(r.Context(), id, patch)
		if err != nil {
			rs.fail(w, r, "update", metrics.TodoUpdateCounter, err)
			return
		}

		rs.log(r).Debug().Int64("id", id).Msg("todo updated")
		metrics.TodoUpdateCounter.WithLabelValues(metrics.OutcomeSuccess).Inc()
		WriteJSON(w, http.StatusOK, dto.NewTodoResponse(todo))
	}
}

func CompleteTodo(repo TodoRepository, logger *logging.Logger, opts ...Option) http.HandlerFunc {
	rs := newResponder(logger, opts)
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := dto.ParseID(chi.URLParam(r, "id"))
		if err != nil {
			rs.fail(w, r, "complete", metrics.TodoCompleteCounter, err)
			return
		}

		todo, err := repo.CompleteByID(r.Context(), id)
		if err != nil {
			rs.fail(w, r, "complete", metrics.TodoCompleteCounter, err)
			return
		}

		rs.log(r).Debug().Int64("id", id).Msg("todo completed")
		metrics.TodoCompleteCounter.WithLabelValues(metrics.OutcomeSuccess).Inc()
		WriteJSON(w, http.StatusOK, dto.NewTodoResponse(todo))
	}
}

func DeleteTodo(repo TodoRepository, logger *logging.Logger, opts ...Option) http.HandlerFunc {
	rs := newResponder(logger, opts)
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := dto.ParseID(chi.URLParam(r, "id"))
		if err != nil {
			rs.fail(w, r, "delete", metrics.TodoDeleteCounter, err)
			return
		}

		if err := repo.DeleteByID(r.Context(), id); err != nil {
			rs.fail(w, r, "delete", metrics.TodoDeleteCounter, err)
			return
		}

		rs.log(r).Debug().Int64("id", id).Msg("todo deleted")
		metrics.TodoDeleteCounter.WithLabelValues(metrics.OutcomeSuccess).Inc()
		w.WriteHeader(http.StatusNoContent)
	}
}

// responder carries what every handler needs to log and to report failures.
type responder struct {
	logger      *logging.Logger
	errorDetail bool
}

func newResponder(logger *logging.Logger, opts []Option) *responder {
	rs := &responder{logger: logger}
	for _, opt := range opts {
		opt(rs)
	}
	return rs
}

// fail is the single place where domain errors become HTTP statuses.
func (rs *responder) fail(w http.ResponseWriter, r *http.Request, op string, counter *prometheus.CounterVec, err error) {
	var (
		verr *model.ValidationError
		nf   *model.NotFoundError
	)
	switch {
	case errors.As(err, &verr):
		rs.log(r).Info().Str("op", op).Interface("errors", verr.Fields).Msg("invalid request")
		counter.WithLabelValues(metrics.OutcomeInvalid).Inc()
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Detail: "validation failed", Errors: verr.Fields})
	case errors.As(err, &nf):
		rs.log(r).Info().Str("op", op).Int64("id", nf.ID).Msg("todo not found")
		counter.WithLabelValues(metrics.OutcomeNotFound).Inc()
		WriteError(w, http.StatusNotFound, nf.Error())
	default:
		rs.log(r).Error().Err(err).Str("op", op).Msg("todo operation failed")
		counter.WithLabelValues(metrics.OutcomeError).Inc()
		detail := "internal server error"
		if rs.errorDetail {
			detail += ": " + err.Error()
		}
		WriteError(w, http.StatusInternalServerError, detail)
	}
}

// log prefers the request-scoped logger installed by hlog, which carries the request id.
func (rs *responder) log(r *http.Request) *logging.Logger {
	if l := hlog.FromRequest(r); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return rs.logger
}

// decode reads exactly one JSON value from the body.
func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return model.NewValidationError("body", "request body is required")
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return model.NewValidationError("body", "invalid JSON payload: "+err.Error())
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return model.NewValidationError("body", "invalid JSON payload: unexpected data after the object")
	}
	return nil
}
