package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/weavy/weavy/pkg/audit"
	"github.com/weavy/weavy/pkg/auth"
	"github.com/weavy/weavy/pkg/contextkeys"
	"github.com/weavy/weavy/pkg/httputil"
	"github.com/weavy/weavy/pkg/observability"
	"github.com/weavy/weavy/pkg/sso"
	"github.com/weavy/weavy/pkg/users"
)

// TokenValidator resolves a bearer token to its stored record
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*auth.APIToken, error)
}

// SessionLookup resolves a session cookie value
type SessionLookup interface {
	Get(ctx context.Context, id string) (*sso.Session, error)
}

// UserLookup loads the user behind a session or token
type UserLookup interface {
	Get(ctx context.Context, id int64) (*users.User, error)
}

// Authenticator identifies the caller from an API token or a session cookie
// and stores the Principal in the request context. A request with neither
// passes through anonymously; a bad bearer token is rejected with 401.
type Authenticator struct {
	sessions SessionLookup
	tokens   TokenValidator
	users    UserLookup
	metrics  *observability.Metrics
}

// NewAuthenticator creates the authentication middleware. sessions may be nil
// when the sign-in gate is not configured.
func NewAuthenticator(sessions SessionLookup, tokens TokenValidator, userLookup UserLookup, metrics *observability.Metrics) *Authenticator {
	return &Authenticator{
		sessions: sessions,
		tokens:   tokens,
		users:    userLookup,
		metrics:  metrics,
	}
}

// Handler wraps an HTTP handler with authentication
func (a *Authenticator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if header := r.Header.Get("Authorization"); header != "" {
			principal, err := a.fromBearer(ctx, header)
			if err != nil {
				a.rejectToken(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(contextkeys.WithPrincipal(ctx, principal)))
			return
		}

		if id := sso.SessionIDFromRequest(r); id != "" && a.sessions != nil {
			principal, err := a.fromSession(ctx, id)
			switch {
			case err == nil:
				ctx = contextkeys.WithPrincipal(ctx, principal)
			case errors.Is(err, sso.ErrSessionNotFound), errors.Is(err, users.ErrNotFound):
				// stale cookie, continue anonymously
			default:
				observability.FromContext(ctx).WithError(err).Error("Failed to resolve session")
				httputil.WriteInternalError(w)
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

var errMalformedHeader = errors.New("invalid authorization header format")

func (a *Authenticator) fromBearer(ctx context.Context, header string) (*contextkeys.Principal, error) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return nil, errMalformedHeader
	}
	if a.tokens == nil {
		return nil, auth.ErrInvalidToken
	}

	record, err := a.tokens.Validate(ctx, strings.TrimSpace(token))
	if err != nil {
		return nil, err
	}
	u, err := a.users.Get(ctx, record.UserID)
	if err != nil {
		return nil, err
	}
	return &contextkeys.Principal{UserID: u.ID, Username: u.Username, Method: contextkeys.AuthMethodAPIToken}, nil
}

func (a *Authenticator) fromSession(ctx context.Context, id string) (*contextkeys.Principal, error) {
	session, err := a.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	u, err := a.users.Get(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	return &contextkeys.Principal{UserID: u.ID, Username: u.Username, Method: contextkeys.AuthMethodSession}, nil
}

func (a *Authenticator) rejectToken(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	known := errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, errMalformedHeader) || errors.Is(err, users.ErrNotFound)
	if !known {
		observability.FromContext(ctx).WithError(err).Error("Failed to validate API token")
		httputil.WriteInternalError(w)
		return
	}

	a.metrics.RecordAuthentication("api_token", "failure")
	if auditErr := audit.Record(ctx, r, audit.EventTypeAuthTokenValidateFail, audit.EventStatusFailure,
		audit.ResourceTypeToken, "", err.Error()); auditErr != nil {
		observability.FromContext(ctx).WithError(auditErr).Warn("Failed to record audit event")
	}
	httputil.WriteUnauthorized(w, "invalid or expired token")
}

// RequireAuth rejects requests that carry no principal with 401
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if contextkeys.GetPrincipal(r.Context()) == nil {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
