package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/logging"
)

// DefaultExpirySkew refreshes tokens this long before they expire.
const DefaultExpirySkew = 30 * time.Second

// refreshTimeout bounds a single token exchange.
const refreshTimeout = 30 * time.Second

// Manager wraps a strategy, refreshes expiring tokens and adds the headers
// every upstream call carries.
type Manager struct {
	strategy   Authenticator
	skew       time.Duration
	headers    map[string]string
	httpClient *http.Client
	now        func() time.Time
	logger     *logging.Logger
	group      singleflight.Group
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithExpirySkew sets how early an expiring token is refreshed.
func WithExpirySkew(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.skew = d
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) ManagerOption {
	return func(m *Manager) {
		m.headers[key] = value
	}
}

// WithHTTPClient sets the client used for token exchanges.
func WithHTTPClient(client *http.Client) ManagerOption {
	return func(m *Manager) {
		m.httpClient = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager wraps strategy.
func NewManager(strategy Authenticator, opts ...ManagerOption) *Manager {
	m := &Manager{
		strategy: strategy,
		skew:     DefaultExpirySkew,
		headers:  make(map[string]string),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.OrDefault(m.logger).Named("auth")
	return m
}

// New builds a manager whose strategy matches creds.Type, then stores creds.
func New(creds Credentials, opts ...ManagerOption) (*Manager, error) {
	m := NewManager(nil, opts...)
	switch creds.Type {
	case CredentialBearer, "":
		m.strategy = NewBearerStrategy()
	case CredentialOAuth2:
		m.strategy = NewOAuth2Strategy(m.httpClient)
	default:
		return nil, fmt.Errorf("unsupported credential type %q", creds.Type)
	}
	m.strategy.SetCredentials(creds)
	return m, nil
}

// SetCredentials implements Authenticator.
func (m *Manager) SetCredentials(creds Credentials) {
	m.strategy.SetCredentials(creds)
}

// ValidateCredentials implements Authenticator.
func (m *Manager) ValidateCredentials(ctx context.Context) (bool, error) {
	return m.strategy.ValidateCredentials(ctx)
}

// RefreshCredentials refreshes through the strategy. Concurrent callers
// share a single exchange.
func (m *Manager) RefreshCredentials(ctx context.Context) error {
	return m.refresh(ctx, false)
}

// refresh runs at most one exchange at a time. With onlyIfStale set, a caller
// that starts a new flight after another one finished skips the exchange when
// the token is already fresh. The exchange is detached from the caller that
// started it; each caller stops waiting when its own ctx is done.
func (m *Manager) refresh(ctx context.Context, onlyIfStale bool) error {
	ch := m.group.DoChan("refresh", func() (interface{}, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		if onlyIfStale && !m.needsRefresh(flightCtx) {
			return nil, nil
		}
		start := m.now()
		if err := m.strategy.RefreshCredentials(flightCtx); err != nil {
			return nil, err
		}
		m.logger.Info("credentials refreshed", logging.Fields{
			"duration": m.now().Sub(start),
		})
		return nil, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			m.logger.Error("credential refresh failed", logging.Fields{
				"error":  res.Err,
				"shared": res.Shared,
			})
		}
		return res.Err
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for credential refresh")
	}
}

// AuthHeaders returns the authorization headers plus the configured extra
// headers, refreshing the token first when it is missing or about to expire.
func (m *Manager) AuthHeaders(ctx context.Context) (map[string]string, error) {
	if m.needsRefresh(ctx) {
		if err := m.refresh(ctx, true); err != nil {
			return nil, err
		}
	}

	headers, err := m.strategy.AuthHeaders(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(headers)+len(m.headers))
	for k, v := range m.headers {
		out[k] = v
	}
	for k, v := range headers {
		out[k] = v
	}
	return out, nil
}

// IsTokenExpired implements Authenticator.
func (m *Manager) IsTokenExpired() bool {
	return m.strategy.IsTokenExpired()
}

// TokenExpiry implements Authenticator.
func (m *Manager) TokenExpiry() *time.Time {
	return m.strategy.TokenExpiry()
}

func (m *Manager) canRefresh() bool {
	r, ok := m.strategy.(refresher)
	return ok && r.CanRefresh()
}

func (m *Manager) needsRefresh(ctx context.Context) bool {
	if !m.canRefresh() {
		return false
	}
	if exp := m.strategy.TokenExpiry(); exp != nil && !m.now().Add(m.skew).Before(*exp) {
		return true
	}
	_, err := m.strategy.AuthHeaders(ctx)
	return errors.Is(err, ErrNoCredentials)
}

var (
	_ Authenticator = (*Manager)(nil)
	_ Authenticator = (*BearerStrategy)(nil)
	_ Authenticator = (*OAuth2Strategy)(nil)
)
