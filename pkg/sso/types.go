package sso

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/weavy/weavy/pkg/config"
)

const (
	// GoogleAuthority is the OpenID Connect issuer the gate trusts
	GoogleAuthority = "https://accounts.google.com"

	// CallbackPath is appended to the application URL to form the redirect URI
	CallbackPath = "signin-google"

	// ChallengePath starts a sign-in, relative to the application path
	ChallengePath = "sign-in/google"

	// SignOutPath ends the current session, relative to the application path
	SignOutPath = "sign-out"

	// UnauthorizedPath is where failed sign-ins are sent, relative to the application path
	UnauthorizedPath = "error/unauthorized"

	// SessionCookieName holds the session id after a successful sign-in
	SessionCookieName = "weavy_session"

	stateCookieName    = "weavy_oidc_state"
	nonceCookieName    = "weavy_oidc_nonce"
	redirectCookieName = "weavy_oidc_redirect"
	returnCookieName   = "weavy_oidc_return"

	correlationMaxAge = 10 * time.Minute
)

// Scopes requested from the identity provider
var Scopes = []string{"openid", "email", "profile"}

var (
	// ErrSecurityTokenValidation is returned when a verified token fails the
	// hosted domain check
	ErrSecurityTokenValidation = errors.New("security token validation failed")

	// ErrSessionNotFound is returned for unknown or expired sessions
	ErrSessionNotFound = errors.New("session not found")
)

// GateConfigured reports whether all three values needed by the gate are set.
// With any of them missing the gate is not built at all.
func GateConfigured(cfg config.GoogleConfig) bool {
	return cfg.ClientID != "" && cfg.ClientSecret != "" && cfg.Domain != ""
}

func (o Options) configured() bool {
	return GateConfigured(config.GoogleConfig{ClientID: o.ClientID, ClientSecret: o.ClientSecret, Domain: o.Domain})
}

// Options configures the authentication gate
type Options struct {
	ClientID     string
	ClientSecret string
	Domain       string

	// BasePath is where the application is mounted
	BasePath string

	SecureCookies bool
	SessionTTL    time.Duration
}

// OptionsFromConfig builds gate options from the loaded configuration
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ClientID:      cfg.Google.ClientID,
		ClientSecret:  cfg.Google.ClientSecret,
		Domain:        cfg.Google.Domain,
		BasePath:      cfg.Server.BasePath,
		SecureCookies: cfg.Server.SecureCookies,
		SessionTTL:    cfg.Server.SessionTTL,
	}
}

// Claims are the verified claims of an ID token
type Claims map[string]interface{}

// String returns the claim as a string, or "" when absent or not a string
func (c Claims) String(name string) string {
	if v, ok := c[name].(string); ok {
		return v
	}
	return ""
}

// Session is a signed-in browser session
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionIDFromRequest returns the session cookie value, if any
func SessionIDFromRequest(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}
