package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/todoflow-labs/todo-api/internal/logging"
)

// Outcome labels for todo operation counters.
const (
	OutcomeSuccess  = "success"
	OutcomeInvalid  = "invalid"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

var (
	TodoOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "todo_operations_total",
		Help: "Todo operations by operation and outcome.",
	}, []string{"operation", "outcome"})

	TodoCreateCounter   = TodoOperations.MustCurryWith(prometheus.Labels{"operation": "create"})
	TodoListCounter     = TodoOperations.MustCurryWith(prometheus.Labels{"operation": "list"})
	TodoGetCounter      = TodoOperations.MustCurryWith(prometheus.Labels{"operation": "get"})
	TodoUpdateCounter   = TodoOperations.MustCurryWith(prometheus.Labels{"operation": "update"})
	TodoCompleteCounter = TodoOperations.MustCurryWith(prometheus.Labels{"operation": "complete"})
	TodoDeleteCounter   = TodoOperations.MustCurryWith(prometheus.Labels{"operation": "delete"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, route pattern and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by method and route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Middleware records request count and latency keyed by the chi route pattern,
// so /api/v1/todos/1 and /api/v1/todos/2 share one series.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Init serves /metrics on addr in the background. An empty addr disables it.
// The returned server can be shut down by the caller.
func Init(addr string, logger *logging.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	return srv
}
