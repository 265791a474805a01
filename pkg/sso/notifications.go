package sso

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/weavy/weavy/pkg/httputil"
)

// ProtocolMessage is the authorization request about to be sent to the
// identity provider
type ProtocolMessage struct {
	RedirectURI string
	// Parameters are added to the authorization URL
	Parameters map[string]string
}

// RedirectContext is passed to RedirectToIdentityProvider
type RedirectContext struct {
	Request         *http.Request
	ProtocolMessage *ProtocolMessage
}

// TokenValidatedContext is passed to SecurityTokenValidated once the ID token
// signature, issuer, audience and expiry have been verified
type TokenValidatedContext struct {
	Request *http.Request
	Claims  Claims
}

// FailedContext is passed to AuthenticationFailed
type FailedContext struct {
	Request  *http.Request
	Response http.ResponseWriter
	Err      error

	handled bool
}

// HandleResponse marks the response as written so the gate does not write
// its own error reply
func (c *FailedContext) HandleResponse() {
	c.handled = true
}

// Handled reports whether HandleResponse was called
func (c *FailedContext) Handled() bool {
	return c.handled
}

// Notifications are the hooks the gate calls during a sign-in. Nil hooks are skipped.
type Notifications struct {
	RedirectToIdentityProvider func(*RedirectContext) error
	SecurityTokenValidated     func(*TokenValidatedContext) error
	AuthenticationFailed       func(*FailedContext) error
}

// DomainNotifications returns the hooks that bind sign-in to one hosted domain
func DomainNotifications(domain, basePath string) Notifications {
	return Notifications{
		RedirectToIdentityProvider: func(ctx *RedirectContext) error {
			ctx.ProtocolMessage.RedirectURI = httputil.ApplicationURL(ctx.Request, basePath) + CallbackPath
			ctx.ProtocolMessage.Parameters["hd"] = domain
			return nil
		},
		SecurityTokenValidated: func(ctx *TokenValidatedContext) error {
			hd := ctx.Claims.String("hd")
			if hd == "" {
				return fmt.Errorf("%w: no hosted domain (hd) found in claims", ErrSecurityTokenValidation)
			}
			if !strings.EqualFold(hd, domain) {
				return fmt.Errorf("%w: hosted domain %s is not allowed", ErrSecurityTokenValidation, hd)
			}
			return nil
		},
		AuthenticationFailed: func(ctx *FailedContext) error {
			http.Redirect(ctx.Response, ctx.Request, httputil.ApplicationPath(basePath)+UnauthorizedPath, http.StatusFound)
			ctx.HandleResponse()
			return nil
		},
	}
}
