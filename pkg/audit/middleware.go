package audit

import (
	"net/http"

	"github.com/weavy/weavy/pkg/observability"
)

// Middleware puts the audit logger in the request context and records
// requests the API refused with 401 or 403.
type Middleware struct {
	logger Logger
}

// NewMiddleware creates audit middleware
func NewMiddleware(logger Logger) *Middleware {
	return &Middleware{logger: logger}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Handler wraps an HTTP handler with audit logging
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithLogger(r.Context(), m.logger)
		r = r.WithContext(ctx)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode != http.StatusUnauthorized && wrapped.statusCode != http.StatusForbidden {
			return
		}

		event := NewEvent(ctx, r, EventTypeAuthzAccessDenied, EventStatusDenied)
		event.Message = r.Method + " " + r.URL.Path
		event.Metadata = map[string]interface{}{"status_code": wrapped.statusCode}
		if err := m.logger.Log(ctx, event); err != nil {
			observability.FromContext(ctx).WithError(err).Warn("failed to record audit event")
		}
	})
}
