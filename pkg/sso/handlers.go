package sso

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/weavy/weavy/pkg/audit"
	"github.com/weavy/weavy/pkg/contextkeys"
	"github.com/weavy/weavy/pkg/httputil"
	"github.com/weavy/weavy/pkg/observability"
	"github.com/weavy/weavy/pkg/users"
)

const providerLabel = "google"

var errInvalidState = errors.New("invalid or missing state")

// UserProvisioner links a verified identity to a local user
type UserProvisioner interface {
	Provision(ctx context.Context, id users.Identity) (*users.User, error)
}

// Gate is the OpenID Connect sign-in flow. It is passive: it only acts on its
// own challenge, callback and sign-out routes.
type Gate struct {
	opts     Options
	provider IdentityProvider
	users    UserProvisioner
	sessions SessionStore
	metrics  *observability.Metrics

	// Notifications are called during every sign-in
	Notifications Notifications
}

// NewGate creates a gate bound to opts.Domain. metrics may be nil.
func NewGate(opts Options, provider IdentityProvider, provisioner UserProvisioner, sessions SessionStore, metrics *observability.Metrics) *Gate {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	return &Gate{
		opts:          opts,
		provider:      provider,
		users:         provisioner,
		sessions:      sessions,
		metrics:       metrics,
		Notifications: DomainNotifications(opts.Domain, opts.BasePath),
	}
}

func (g *Gate) appPath() string {
	return httputil.ApplicationPath(g.opts.BasePath)
}

// RegisterRoutes registers the challenge, callback and sign-out routes
func (g *Gate) RegisterRoutes(router *mux.Router) {
	base := g.appPath()
	router.HandleFunc(base+ChallengePath, g.Challenge).Methods(http.MethodGet)
	router.HandleFunc(base+CallbackPath, g.Callback).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc(base+SignOutPath, g.SignOut).Methods(http.MethodPost)
}

// Challenge redirects the browser to the identity provider
func (g *Gate) Challenge(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	nonce := uuid.NewString()

	msg := &ProtocolMessage{
		RedirectURI: httputil.ApplicationURL(r, g.opts.BasePath) + CallbackPath,
		Parameters:  map[string]string{"nonce": nonce},
	}
	if hook := g.Notifications.RedirectToIdentityProvider; hook != nil {
		if err := hook(&RedirectContext{Request: r, ProtocolMessage: msg}); err != nil {
			g.fail(w, r, err)
			return
		}
	}

	g.setCookie(w, stateCookieName, state, correlationMaxAge)
	g.setCookie(w, nonceCookieName, nonce, correlationMaxAge)
	g.setCookie(w, redirectCookieName, msg.RedirectURI, correlationMaxAge)
	if ret := r.URL.Query().Get("return_url"); isLocalPath(ret) {
		g.setCookie(w, returnCookieName, ret, correlationMaxAge)
	}

	http.Redirect(w, r, g.provider.AuthCodeURL(state, msg.RedirectURI, msg.Parameters), http.StatusFound)
}

// Callback completes the sign-in, accepting both query and form_post responses
func (g *Gate) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		g.fail(w, r, fmt.Errorf("failed to parse callback: %w", err))
		return
	}
	if idpErr := r.Form.Get("error"); idpErr != "" {
		g.fail(w, r, fmt.Errorf("identity provider returned error: %s", idpErr))
		return
	}

	state, err := r.Cookie(stateCookieName)
	if err != nil || state.Value == "" || state.Value != r.Form.Get("state") {
		g.fail(w, r, errInvalidState)
		return
	}
	nonce, err := r.Cookie(nonceCookieName)
	if err != nil || nonce.Value == "" {
		g.fail(w, r, fmt.Errorf("invalid or missing nonce"))
		return
	}

	code := r.Form.Get("code")
	if code == "" {
		g.fail(w, r, fmt.Errorf("missing authorization code"))
		return
	}

	redirectURI := httputil.ApplicationURL(r, g.opts.BasePath) + CallbackPath
	if c, err := r.Cookie(redirectCookieName); err == nil && c.Value != "" {
		redirectURI = c.Value
	}

	claims, err := g.provider.Exchange(ctx, code, redirectURI)
	if err != nil {
		g.fail(w, r, err)
		return
	}
	if claims.String("nonce") != nonce.Value {
		g.fail(w, r, fmt.Errorf("nonce mismatch"))
		return
	}

	if hook := g.Notifications.SecurityTokenValidated; hook != nil {
		if err := hook(&TokenValidatedContext{Request: r, Claims: claims}); err != nil {
			g.fail(w, r, err)
			return
		}
	}

	user, err := g.users.Provision(ctx, users.Identity{
		Subject: claims.String("sub"),
		Email:   claims.String("email"),
		Name:    claims.String("name"),
	})
	if err != nil {
		g.fail(w, r, err)
		return
	}

	session, err := g.sessions.Create(ctx, user.ID, g.opts.SessionTTL)
	if err != nil {
		g.fail(w, r, err)
		return
	}

	g.setCookie(w, SessionCookieName, session.ID, g.opts.SessionTTL)
	returnURL := g.appPath()
	if c, err := r.Cookie(returnCookieName); err == nil && isLocalPath(c.Value) {
		returnURL = c.Value
	}
	g.clearCorrelationCookies(w)

	ctx = contextkeys.WithPrincipal(ctx, &contextkeys.Principal{
		UserID:   user.ID,
		Username: user.Username,
		Method:   contextkeys.AuthMethodSession,
	})
	g.metrics.RecordAuthentication(providerLabel, "success")
	g.record(ctx, r, audit.EventTypeAuthLogin, audit.EventStatusSuccess, "signed in")
	observability.FromContext(ctx).WithField("user_id", user.ID).Info("user signed in")

	http.Redirect(w, r, returnURL, http.StatusFound)
}

// SignOut deletes the current session and clears its cookie
func (g *Gate) SignOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if id := SessionIDFromRequest(r); id != "" {
		if session, err := g.sessions.Get(ctx, id); err == nil {
			ctx = contextkeys.WithPrincipal(ctx, &contextkeys.Principal{UserID: session.UserID, Method: contextkeys.AuthMethodSession})
		}
		if err := g.sessions.Delete(ctx, id); err != nil {
			observability.FromContext(ctx).WithError(err).Error("failed to delete session")
		}
		g.record(ctx, r, audit.EventTypeAuthLogout, audit.EventStatusSuccess, "signed out")
	}

	g.setCookie(w, SessionCookieName, "", -1)
	http.Redirect(w, r, g.appPath(), http.StatusSeeOther)
}

// fail logs the cause server-side and hands the response to AuthenticationFailed.
// The cause never reaches the client.
func (g *Gate) fail(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	observability.FromContext(ctx).WithError(err).Warn("authentication failed")
	g.metrics.RecordAuthentication(providerLabel, "failure")
	g.record(ctx, r, audit.EventTypeAuthLoginFailed, audit.EventStatusFailure, err.Error())
	g.clearCorrelationCookies(w)

	fc := &FailedContext{Request: r, Response: w, Err: err}
	if hook := g.Notifications.AuthenticationFailed; hook != nil {
		if herr := hook(fc); herr != nil {
			observability.FromContext(ctx).WithError(herr).Error("authentication failure handler failed")
		}
	}
	if !fc.Handled() {
		httputil.WriteUnauthorized(w, "authentication failed")
	}
}

func (g *Gate) record(ctx context.Context, r *http.Request, eventType audit.EventType, status audit.EventStatus, message string) {
	if err := audit.Record(ctx, r, eventType, status, audit.ResourceTypeSession, "", message); err != nil {
		observability.FromContext(ctx).WithError(err).Warn("failed to record audit event")
	}
}

// setCookie writes a gate cookie. A negative maxAge deletes it.
func (g *Gate) setCookie(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     g.appPath(),
		HttpOnly: true,
		Secure:   g.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge < 0 {
		c.MaxAge = -1
	} else {
		c.MaxAge = int(maxAge.Seconds())
	}
	http.SetCookie(w, c)
}

func (g *Gate) clearCorrelationCookies(w http.ResponseWriter) {
	for _, name := range []string{stateCookieName, nonceCookieName, redirectCookieName, returnCookieName} {
		g.setCookie(w, name, "", -1)
	}
}

// isLocalPath accepts only same-origin absolute paths
func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.HasPrefix(p, "/\\")
}

// Setup builds the gate against GoogleAuthority and registers its routes.
// It returns nil without registering anything unless client id, client
// secret and domain are all set.
func Setup(ctx context.Context, router *mux.Router, opts Options, provisioner UserProvisioner, sessions SessionStore, metrics *observability.Metrics) (*Gate, error) {
	if !opts.configured() {
		return nil, nil
	}

	provider, err := NewOIDCProvider(ctx, GoogleAuthority, opts.ClientID, opts.ClientSecret)
	if err != nil {
		return nil, err
	}

	gate := NewGate(opts, provider, provisioner, sessions, metrics)
	gate.RegisterRoutes(router)
	return gate, nil
}
