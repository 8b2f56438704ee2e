package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// ErrMissingToken indicates neither a token nor GitHub App credentials are configured.
var ErrMissingToken = errors.New("missing GITHUB_TOKEN")

// AppAuth holds GitHub App authentication configuration
type AppAuth struct {
	AppID      string
	PrivateKey string
	// BaseURL overrides the REST endpoint; empty means api.github.com.
	BaseURL    string
	HTTPClient *http.Client
}

// InstallationToken represents a GitHub App installation access token
type InstallationToken struct {
	Token     string
	ExpiresAt time.Time
}

// GenerateJWT creates a JWT token for GitHub App authentication
func (a *AppAuth) GenerateJWT() (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(a.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("failed to parse private key: %w", err)
	}

	appID, err := strconv.ParseInt(a.AppID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid app ID: %w", err)
	}

	// iat is backdated a minute; GitHub caps exp at ten minutes.
	now := time.Now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-60 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(9 * time.Minute)),
		Issuer:    strconv.FormatInt(appID, 10),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signedToken, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}

	return signedToken, nil
}

// GetInstallationToken gets an installation access token for owner/repo
func (a *AppAuth) GetInstallationToken(ctx context.Context, owner, repo string) (*InstallationToken, error) {
	jwtToken, err := a.GenerateJWT()
	if err != nil {
		return nil, err
	}

	hc := a.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	rest, err := newREST(hc, a.BaseURL)
	if err != nil {
		return nil, err
	}
	rest = rest.WithAuthToken(jwtToken)

	installation, _, err := rest.Apps.FindRepositoryInstallation(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to get installation for %s/%s: %w", owner, repo, err)
	}

	token, _, err := rest.Apps.CreateInstallationToken(ctx, installation.GetID(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}

	return &InstallationToken{
		Token:     token.GetToken(),
		ExpiresAt: token.GetExpiresAt().Time,
	}, nil
}

// appTokenSource mints installation tokens lazily, on first API use.
type appTokenSource struct {
	ctx   context.Context
	auth  *AppAuth
	owner string
	repo  string
}

func (s *appTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.auth.GetInstallationToken(s.ctx, s.owner, s.repo)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: tok.Token, Expiry: tok.ExpiresAt}, nil
}

// Credentials selects how the replier authenticates to GitHub.
type Credentials struct {
	Token string
	App   *AppAuth
}

// TokenSource returns a static source for a plain token, or an installation
// token source for owner/repo when only App credentials are present.
func (c Credentials) TokenSource(ctx context.Context, owner, repo string) (oauth2.TokenSource, error) {
	if c.Token != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.Token}), nil
	}
	if c.App != nil && c.App.AppID != "" && c.App.PrivateKey != "" {
		if owner == "" || repo == "" {
			return nil, fmt.Errorf("GitHub App authentication requires a repository")
		}
		return oauth2.ReuseTokenSource(nil, &appTokenSource{ctx: ctx, auth: c.App, owner: owner, repo: repo}), nil
	}
	return nil, ErrMissingToken
}

// Configured reports whether any GitHub credential is available.
func (c Credentials) Configured() bool {
	return c.Token != "" || (c.App != nil && c.App.AppID != "" && c.App.PrivateKey != "")
}
