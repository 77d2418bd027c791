package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Authenticator is the contract every OAuth integration satisfies: build the
// consent URL, then turn a callback code into a normalized Profile. The
// handshake mechanics behind it never reach the reconciler.
type Authenticator interface {
	Name() string
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (Profile, error)
}

// GoogleAuthenticator handles Google sign-in over OIDC. Identity comes from
// the verified ID token, not from a userinfo call.
type GoogleAuthenticator struct {
	config   *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewGoogleAuthenticator discovers the Google OIDC provider and prepares the
// OAuth config and ID-token verifier.
func NewGoogleAuthenticator(ctx context.Context, clientID, clientSecret, redirectURL string) (*GoogleAuthenticator, error) {
	provider, err := oidc.NewProvider(ctx, "https://accounts.google.com")
	if err != nil {
		return nil, fmt.Errorf("oidc provider: %w", err)
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
	}

	return &GoogleAuthenticator{
		config:   config,
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// Name returns the provider name.
func (g *GoogleAuthenticator) Name() string { return ProviderGoogle }

// AuthURL generates the Google consent URL with the given state.
func (g *GoogleAuthenticator) AuthURL(state string) string {
	return g.config.AuthCodeURL(
		state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

// googleClaims are the ID-token claims the reconciler cares about.
type googleClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

// Exchange trades the authorization code for tokens, verifies the ID token,
// and returns the normalized profile. An unverified email is rejected here:
// Google reconciliation keys on email, so an unverified one would let an
// attacker claim someone else's row.
func (g *GoogleAuthenticator) Exchange(ctx context.Context, code string) (Profile, error) {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("token exchange: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return Profile{}, fmt.Errorf("no id_token in response")
	}

	idToken, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return Profile{}, fmt.Errorf("verify id_token: %w", err)
	}

	var claims googleClaims
	if err := idToken.Claims(&claims); err != nil {
		return Profile{}, fmt.Errorf("parse claims: %w", err)
	}

	if !claims.EmailVerified {
		return Profile{}, ErrEmailNotVerified
	}

	return Profile{
		Provider:   ProviderGoogle,
		ExternalID: claims.Sub,
		Email:      claims.Email,
		FirstName:  claims.GivenName,
		LastName:   claims.FamilyName,
	}, nil
}

// GenerateState generates a cryptographically secure random state string.
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
