package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"lendcore/observability"
)

// Observability records per-route metrics and optional access logs.
type Observability struct {
	logger      *slog.Logger
	logRequests bool
}

func NewObservability(logger *slog.Logger, logRequests bool) *Observability {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observability{logger: logger, logRequests: logRequests}
}

func (o *Observability) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		elapsed := time.Since(start)
		observability.HTTPMetrics().Observe(route, r.Method, recorder.status, elapsed)
		if o.logRequests {
			o.logger.Info("http request",
				"method", r.Method,
				"route", route,
				"status", recorder.status,
				"durationMs", float64(elapsed.Microseconds())/1000)
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
