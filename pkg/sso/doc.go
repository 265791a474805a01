// Package sso implements the Google sign-in gate.
//
// The gate is built only when client id, client secret and hosted domain are
// all configured (GateConfigured). It is passive: ordinary requests pass
// through untouched, and it acts only on three routes under the application
// path:
//
//	GET       /sign-in/google   redirect to the identity provider
//	GET|POST  /signin-google    authorization code callback
//	POST      /sign-out         end the session
//
// Sign-in behaviour is driven by Notifications. DomainNotifications, the
// default, rewrites the redirect URI to the application URL plus
// "signin-google", adds the hd parameter, rejects ID tokens whose hd claim is
// missing or differs from the domain (case-insensitive) with
// ErrSecurityTokenValidation, and redirects every failure to
// /error/unauthorized. Failure causes are logged and audited but never sent to
// the browser.
//
// On success the user is provisioned, a session is created in the
// SessionStore (SQL by default, Redis when configured) and its id is set in
// the weavy_session cookie.
package sso
