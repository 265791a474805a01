package sso

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// IdentityProvider is the OpenID Connect collaborator behind the gate
type IdentityProvider interface {
	// AuthCodeURL returns the authorization endpoint URL to redirect the browser to
	AuthCodeURL(state, redirectURI string, params map[string]string) string

	// Exchange redeems the authorization code and returns the verified ID token claims
	Exchange(ctx context.Context, code, redirectURI string) (Claims, error)
}

// OIDCProvider implements IdentityProvider with discovery and ID token
// verification from go-oidc and the code exchange from x/oauth2
type OIDCProvider struct {
	verifier     *oidc.IDTokenVerifier
	oauth2Config oauth2.Config
}

// NewOIDCProvider discovers the issuer's endpoints and keys
func NewOIDCProvider(ctx context.Context, issuer, clientID, clientSecret string) (*OIDCProvider, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("client id and client secret are required")
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	return &OIDCProvider{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
		oauth2Config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     provider.Endpoint(),
			Scopes:       Scopes,
		},
	}, nil
}

func (p *OIDCProvider) config(redirectURI string) *oauth2.Config {
	c := p.oauth2Config
	c.RedirectURL = redirectURI
	return &c
}

// AuthCodeURL builds the authorization URL with the extra parameters attached
func (p *OIDCProvider) AuthCodeURL(state, redirectURI string, params map[string]string) string {
	opts := make([]oauth2.AuthCodeOption, 0, len(params))
	for k, v := range params {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}
	return p.config(redirectURI).AuthCodeURL(state, opts...)
}

// Exchange redeems the code and verifies the returned ID token
func (p *OIDCProvider) Exchange(ctx context.Context, code, redirectURI string) (Claims, error) {
	token, err := p.config(redirectURI).Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("missing id_token in response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	claims := Claims{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}
	if claims.String("sub") == "" {
		return nil, fmt.Errorf("missing subject in ID token")
	}
	return claims, nil
}
