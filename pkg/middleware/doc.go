// Package middleware provides HTTP middleware for authentication and rate limiting.
//
// # Authentication
//
// Authenticator resolves the caller and stores a contextkeys.Principal in the
// request context. API clients send "Authorization: Bearer weavy_..." tokens
// (package auth); browsers carry the weavy_session cookie set by the sign-in
// gate (package sso). Requests with neither stay anonymous, and RequireAuth
// turns them away with 401:
//
//	api := router.PathPrefix("/api").Subrouter()
//	api.Use(middleware.NewAuthenticator(sessions, tokens, userStore, metrics).Handler)
//	api.Use(middleware.RequireAuth)
//
// A bad bearer token is always a 401 and is recorded as
// auth.token_validate_fail in the audit trail.
//
// # Rate Limiting
//
// RateLimitMiddleware throttles per client address. The in-memory RateLimiter
// is a golang.org/x/time/rate token bucket per key; DistributedRateLimiter is a
// fixed-window counter in Redis used when several instances share a Redis
// server. NewLimiter picks one from configuration. Limiter errors fail open.
//
//	limiter := middleware.NewLimiter(cfg.RateLimit, redisClient)
//	signIn.Use(middleware.NewRateLimitMiddleware(limiter).Handler)
package middleware
