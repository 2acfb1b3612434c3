package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/todoflow-labs/todo-api/internal/handler"
	"github.com/todoflow-labs/todo-api/internal/logging"
	"github.com/todoflow-labs/todo-api/internal/metrics"
)

const todosPath = "/api/v1/todos"

// availableEndpoints is listed in the body of unmatched-route responses.
var availableEndpoints = []string{
	"GET /",
	"GET /health",
	"GET " + todosPath,
	"POST " + todosPath,
	"GET " + todosPath + "/{id}",
	"PUT " + todosPath + "/{id}",
	"PATCH " + todosPath + "/{id}/complete",
	"DELETE " + todosPath + "/{id}",
}

// ServiceInfo is reported by the banner and health endpoints.
type ServiceInfo struct {
	Name    string
	Version string
}

// NewRouter wires middleware, the operational endpoints and the todo resource.
func NewRouter(info ServiceInfo, todos handler.TodoRepository, logger *logging.Logger, requestTimeout time.Duration, opts ...handler.Option) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(*logger))
	r.Use(requestIDLogger)
	r.Use(hlog.AccessHandler(accessLog))
	r.Use(middleware.Recoverer)
	if requestTimeout > 0 {
		r.Use(middleware.Timeout(requestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           int((12 * time.Hour).Seconds()),
	}))
	r.Use(metrics.Middleware)
	r.Use(jsonContentType)

	// Error handlers, registered before mounting so sub-routers inherit them
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		hlog.FromRequest(r).Warn().Str("path", r.URL.Path).Msg("404 not found")
		handler.WriteJSON(w, http.StatusNotFound, map[string]any{
			"detail":              "endpoint not found",
			"available_endpoints": availableEndpoints,
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		hlog.FromRequest(r).Warn().Str("path", r.URL.Path).Str("method", r.Method).Msg("405 method not allowed")
		handler.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Routes
	r.Get("/", rootHandler(info))
	r.Get("/health", healthHandler(info))
	r.Route(todosPath, handler.Routes(todos, logger, opts...))

	return r
}

func rootHandler(info ServiceInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handler.WriteJSON(w, http.StatusOK, map[string]any{
			"message": info.Name,
			"version": info.Version,
			"endpoints": map[string]string{
				"todos":  todosPath,
				"health": "/health",
			},
		})
	}
}

func healthHandler(info ServiceInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handler.WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": info.Name,
			"version": info.Version,
		})
	}
}

// Forces JSON Content-Type for all responses
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDLogger tags the request logger with chi's request id.
func requestIDLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("request_id", id)
			})
		}
		next.ServeHTTP(w, r)
	})
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request")
}
