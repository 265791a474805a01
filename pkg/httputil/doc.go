// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteSuccess(w, role)
//	httputil.WriteCreated(w, "/api/roles/5", role)
//	httputil.WriteNotFoundError(w, "Role with id 5 not found")
//
// Every error body has the shape {"error": "<message>"}.
//
// # Request Parsing
//
//	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
//	if !ok {
//		return // Error response already written
//	}
//
// ApplicationURL and ApplicationPath build absolute and relative links to the
// application root. Reverse proxy headers count only after ForwardedHeaders(true)
// has applied them, which the server does when WEAVY_TRUST_PROXY_HEADERS is set.
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.LoggingMiddleware,
//		httputil.RecoveryMiddleware,
//	)(router)
package httputil
