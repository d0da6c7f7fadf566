package auth

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// OAuth2Strategy exchanges a refresh token for access tokens.
type OAuth2Strategy struct {
	mu         sync.RWMutex
	creds      *Credentials
	httpClient *http.Client
	now        func() time.Time
}

// NewOAuth2Strategy creates an OAuth2 strategy. A nil client uses the
// default HTTP client.
func NewOAuth2Strategy(httpClient *http.Client) *OAuth2Strategy {
	return &OAuth2Strategy{httpClient: httpClient, now: time.Now}
}

// SetCredentials implements Authenticator.
func (s *OAuth2Strategy) SetCredentials(creds Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds.clone()
}

// ValidateCredentials accepts an access token, or everything needed to get one.
func (s *OAuth2Strategy) ValidateCredentials(context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return false, ErrNoCredentials
	}
	return s.creds.AccessToken != "" || s.canRefreshLocked(), nil
}

// CanRefresh reports whether a refresh exchange is possible.
func (s *OAuth2Strategy) CanRefresh() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.canRefreshLocked()
}

func (s *OAuth2Strategy) canRefreshLocked() bool {
	return s.creds != nil && s.creds.RefreshToken != "" && s.creds.ClientID != "" && s.creds.TokenURL != ""
}

// RefreshCredentials exchanges the refresh token and stores the new access
// token, expiry and refresh token.
func (s *OAuth2Strategy) RefreshCredentials(ctx context.Context) error {
	s.mu.RLock()
	if s.creds == nil {
		s.mu.RUnlock()
		return ErrNoCredentials
	}
	if !s.canRefreshLocked() {
		s.mu.RUnlock()
		return errors.New("oauth2 refresh requires refresh token, client id and token url")
	}
	conf := &oauth2.Config{
		ClientID:     s.creds.ClientID,
		ClientSecret: s.creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  s.creds.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: s.creds.Scopes,
	}
	refreshToken := s.creds.RefreshToken
	s.mu.RUnlock()

	if s.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}
	token, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return errors.Wrap(err, "refresh oauth2 token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		s.creds.RefreshToken = token.RefreshToken
	}
	if token.Expiry.IsZero() {
		s.creds.ExpiresAt = nil
	} else {
		exp := token.Expiry
		s.creds.ExpiresAt = &exp
	}
	return nil
}

// AuthHeaders implements Authenticator.
func (s *OAuth2Strategy) AuthHeaders(context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil || s.creds.AccessToken == "" {
		return nil, ErrNoCredentials
	}
	return map[string]string{"Authorization": "Bearer " + s.creds.AccessToken}, nil
}

// TokenExpiry implements Authenticator.
func (s *OAuth2Strategy) TokenExpiry() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil || s.creds.ExpiresAt == nil {
		return nil
	}
	exp := *s.creds.ExpiresAt
	return &exp
}

// IsTokenExpired implements Authenticator.
func (s *OAuth2Strategy) IsTokenExpired() bool {
	exp := s.TokenExpiry()
	return exp != nil && !s.now().Before(*exp)
}
