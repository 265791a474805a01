// Package audit records security-relevant events: sign-ins, token use, and
// every role mutation.
//
// Loggers implement a two-method interface. DBLogger writes to the
// audit_events table and supports Search; LogrusLogger writes structured log
// lines; MultiLogger fans out to several loggers.
//
//	logger := audit.NewMultiLogger(dbLogger, audit.NewLogrusLogger(appLogger))
//	router.Use(audit.NewMiddleware(logger).Handler)
//
// Handlers record through the logger stored in the request context:
//
//	audit.Record(ctx, r, audit.EventTypeRoleTrash, audit.EventStatusSuccess,
//		audit.ResourceTypeRole, "7", "role trashed")
package audit
