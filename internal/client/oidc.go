package client

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/joseAcevesG/phishingMailAI-sub000/internal/config"
	"golang.org/x/oauth2"
)

// OIDCClient handles the "sign in with an OIDC provider" flow: redirect out,
// exchange the code, verify the ID token, and hand back the confirmed email.
type OIDCClient struct {
	oauth    oauth2.Config
	verifier *oidc.IDTokenVerifier
}

func NewOIDCClient(ctx context.Context, cfg config.OIDCConfig) (*OIDCClient, error) {
	if cfg.Issuer == "" || cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURL == "" {
		return nil, fmt.Errorf("missing OIDC_ISSUER/OIDC_CLIENT_ID/OIDC_CLIENT_SECRET/OIDC_REDIRECT_URL")
	}

	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery failed: %w", err)
	}

	return &OIDCClient{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

func (c *OIDCClient) AuthURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// Exchange trades the authorization code for a verified, email-bearing ID
// token. Unverified addresses are refused.
func (c *OIDCClient) Exchange(ctx context.Context, code string) (string, error) {
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return "", &ProviderError{Kind: ProviderErrorInvalidToken, Message: err.Error()}
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return "", &ProviderError{Kind: ProviderErrorInvalidToken, Message: "no id_token in response"}
	}

	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return "", &ProviderError{Kind: ProviderErrorInvalidToken, Message: err.Error()}
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return "", &ProviderError{Kind: ProviderErrorUnknown, Message: err.Error()}
	}
	if claims.Email == "" || !claims.EmailVerified {
		return "", &ProviderError{Kind: ProviderErrorInvalidEmail, Message: "email missing or unverified"}
	}
	return claims.Email, nil
}
