package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lockdrop/observability"
)

const HeaderRequestID = "X-Request-ID"

// Observability traces, measures and logs every request of a route.
type Observability struct {
	logger      *slog.Logger
	tracer      trace.Tracer
	logRequests bool
}

func NewObservability(tracer trace.Tracer, logger *slog.Logger, logRequests bool) *Observability {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observability{logger: logger, tracer: tracer, logRequests: logRequests}
}

// Middleware instruments handlers registered under module. The method label
// is supplied per route so metrics stay low-cardinality.
func (o *Observability) Middleware(module, method string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := strings.TrimSpace(r.Header.Get(HeaderRequestID))
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, requestID)

			ctx := r.Context()
			var span trace.Span
			if o.tracer != nil {
				ctx, span = o.tracer.Start(ctx, module+"."+method, trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("lockdrop.request_id", requestID),
				))
			}
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r.WithContext(ctx))
			if span != nil {
				span.SetAttributes(attribute.Int("http.status_code", recorder.status))
				span.End()
			}
			duration := time.Since(start)
			observability.ModuleMetrics().Observe(module, method, recorder.status, duration)
			if o.logRequests {
				o.logger.Info("request served",
					slog.String("request_id", requestID),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", recorder.status),
					slog.Duration("duration", duration),
				)
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
