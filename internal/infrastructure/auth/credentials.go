// Package auth produces the request headers used to call the upstream API and
// keeps the credentials behind them fresh.
package auth

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// CredentialType selects an authentication strategy.
type CredentialType string

// Supported credential types
const (
	CredentialBearer CredentialType = "bearer"
	CredentialOAuth2 CredentialType = "oauth2"
)

// ErrNoCredentials is returned when no credentials have been set.
var ErrNoCredentials = errors.New("no credentials configured")

// Credentials holds everything a strategy may need. Only the authentication
// manager and its strategies mutate them.
type Credentials struct {
	Type         CredentialType
	AccessToken  string
	RefreshToken string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
	ExpiresAt    *time.Time
}

func (c *Credentials) clone() *Credentials {
	out := *c
	if c.Scopes != nil {
		out.Scopes = append([]string(nil), c.Scopes...)
	}
	if c.ExpiresAt != nil {
		exp := *c.ExpiresAt
		out.ExpiresAt = &exp
	}
	return &out
}

// Authenticator is an authentication strategy.
type Authenticator interface {
	SetCredentials(creds Credentials)
	ValidateCredentials(ctx context.Context) (bool, error)
	RefreshCredentials(ctx context.Context) error
	AuthHeaders(ctx context.Context) (map[string]string, error)
	IsTokenExpired() bool
	TokenExpiry() *time.Time
}

// refresher is implemented by strategies that can obtain a new access token.
type refresher interface {
	CanRefresh() bool
}
