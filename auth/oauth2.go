package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/Mishari713/BMS/config"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const googleIssuer = "https://accounts.google.com"

// OAuth2Identity is what a provider tells us about the signed-in account.
type OAuth2Identity struct {
	Email string
	Name  string
}

// OAuth2Provider runs the authorization-code flow against one registration.
type OAuth2Provider interface {
	// Registration is the id used in the login URLs, e.g. "google".
	Registration() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (OAuth2Identity, error)
}

// GoogleProvider implements OAuth2Provider with OpenID Connect discovery.
type GoogleProvider struct {
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
}

func NewGoogleProvider(ctx context.Context, cfg config.OAuth2ClientConfig) (*GoogleProvider, error) {
	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover google provider: %w", err)
	}
	return &GoogleProvider{
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
	}, nil
}

func (p *GoogleProvider) Registration() string { return "google" }

func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.oauth2Config.AuthCodeURL(state)
}

func (p *GoogleProvider) Exchange(ctx context.Context, code string) (OAuth2Identity, error) {
	token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return OAuth2Identity{}, fmt.Errorf("failed to exchange token: %w", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return OAuth2Identity{}, errors.New("missing id_token in response")
	}
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return OAuth2Identity{}, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims struct {
		Email    string `json:"email"`
		Verified bool   `json:"email_verified"`
		Name     string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return OAuth2Identity{}, fmt.Errorf("failed to parse claims: %w", err)
	}
	if claims.Email == "" || !claims.Verified {
		return OAuth2Identity{}, errors.New("missing verified email in ID token")
	}
	return OAuth2Identity{Email: claims.Email, Name: claims.Name}, nil
}
