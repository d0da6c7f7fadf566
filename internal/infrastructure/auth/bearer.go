package auth

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// BearerStrategy sends a static access token.
type BearerStrategy struct {
	mu    sync.RWMutex
	creds *Credentials
	now   func() time.Time
}

// NewBearerStrategy creates a bearer strategy.
func NewBearerStrategy() *BearerStrategy {
	return &BearerStrategy{now: time.Now}
}

// SetCredentials implements Authenticator.
func (s *BearerStrategy) SetCredentials(creds Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds.clone()
}

// ValidateCredentials checks that an access token is present.
func (s *BearerStrategy) ValidateCredentials(context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return false, ErrNoCredentials
	}
	return s.creds.AccessToken != "", nil
}

// RefreshCredentials is a no-op: static tokens cannot be refreshed.
func (s *BearerStrategy) RefreshCredentials(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return ErrNoCredentials
	}
	return nil
}

// AuthHeaders implements Authenticator.
func (s *BearerStrategy) AuthHeaders(context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil || s.creds.AccessToken == "" {
		return nil, ErrNoCredentials
	}
	return map[string]string{"Authorization": "Bearer " + s.creds.AccessToken}, nil
}

// TokenExpiry returns the configured expiry, else the exp claim when the
// token is a JWT, else nil.
func (s *BearerStrategy) TokenExpiry() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return nil
	}
	if s.creds.ExpiresAt != nil {
		exp := *s.creds.ExpiresAt
		return &exp
	}
	return jwtExpiry(s.creds.AccessToken)
}

// IsTokenExpired implements Authenticator.
func (s *BearerStrategy) IsTokenExpired() bool {
	exp := s.TokenExpiry()
	return exp != nil && !s.now().Before(*exp)
}

// jwtExpiry reads the exp claim without verifying the signature. The token is
// only inspected, never trusted.
func jwtExpiry(token string) *time.Time {
	if token == "" {
		return nil
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	t := exp.Time
	return &t
}
