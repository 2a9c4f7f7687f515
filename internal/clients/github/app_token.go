package github

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gh "github.com/google/go-github/v66/github"
)

// TokenSource yields the credential used for API calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a personal access token.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

// AppTokenSource exchanges a GitHub App JWT for an installation token and
// caches it until shortly before it expires.
type AppTokenSource struct {
	appID          int64
	installationID int64
	key            *rsa.PrivateKey
	baseURL        *url.URL
	now            func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewAppTokenSource parses the PEM private key of the app.
func NewAppTokenSource(appID, installationID int64, privateKeyPEM string) (*AppTokenSource, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse github app key: %w", err)
	}
	return &AppTokenSource{appID: appID, installationID: installationID, key: key, now: time.Now}, nil
}

func (a *AppTokenSource) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if a.token != "" && now.Add(time.Minute).Before(a.expires) {
		return a.token, nil
	}

	appJWT, err := a.signJWT(now)
	if err != nil {
		return "", err
	}
	client := gh.NewClient(nil).WithAuthToken(appJWT)
	if a.baseURL != nil {
		client.BaseURL = a.baseURL
	}
	tok, _, err := client.Apps.CreateInstallationToken(ctx, a.installationID, nil)
	if err != nil {
		return "", fmt.Errorf("create installation token: %w", err)
	}
	a.token = tok.GetToken()
	a.expires = tok.GetExpiresAt().Time
	if a.expires.IsZero() {
		a.expires = now.Add(time.Hour)
	}
	return a.token, nil
}

// signJWT backdates iat by a minute to tolerate clock drift; GitHub rejects
// app tokens that live longer than ten minutes.
func (a *AppTokenSource) signJWT(now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		Issuer:    strconv.FormatInt(a.appID, 10),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(a.key)
	if err != nil {
		return "", fmt.Errorf("sign github app jwt: %w", err)
	}
	return signed, nil
}
