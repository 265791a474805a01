package audit

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/weavy/weavy/pkg/contextkeys"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *AuditEvent) error

	// Close flushes and releases the logger
	Close() error
}

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return contextkeys.WithAuditLogger(ctx, logger)
}

// FromContext retrieves the audit logger from context, or a no-op logger
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(contextkeys.AuditLoggerKey).(Logger); ok {
		return logger
	}
	return noOpLogger{}
}

type noOpLogger struct{}

func (noOpLogger) Log(context.Context, *AuditEvent) error { return nil }
func (noOpLogger) Close() error                           { return nil }

// NewEvent builds an event with the actor and request details taken from the
// context and, when given, the HTTP request.
func NewEvent(ctx context.Context, r *http.Request, eventType EventType, status EventStatus) *AuditEvent {
	event := &AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		RequestID: contextkeys.GetRequestID(ctx),
	}

	if p := contextkeys.GetPrincipal(ctx); p != nil {
		id := p.UserID
		event.UserID = &id
		event.Username = p.Username
	}

	if r != nil {
		event.IPAddress = ClientIP(r)
		event.UserAgent = r.UserAgent()
	}

	return event
}

// Record builds and logs an event through the context's audit logger.
// Failures to record are returned but never block the caller's operation.
func Record(ctx context.Context, r *http.Request, eventType EventType, status EventStatus, resourceType ResourceType, resourceID, message string) error {
	event := NewEvent(ctx, r, eventType, status)
	event.ResourceType = resourceType
	event.ResourceID = resourceID
	event.Message = message
	return FromContext(ctx).Log(ctx, event)
}

// ClientIP returns the peer address without its port. Behind a trusted proxy
// httputil.ForwardedHeaders has already replaced RemoteAddr with the client's.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
