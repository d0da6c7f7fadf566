// Package builder assembles a runnable server from configuration.
package builder

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/miguelarios/productboard-mcp-server-sub002/internal/domain"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/domain/transport"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/auth"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/cache"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/config"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/logging"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/ratelimit"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/registry"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/retry"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/server"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/upstream"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/usecases"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/usecases/permission"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/usecases/productboard"
)

// ServerBuilder implements the Builder pattern for creating servers
type ServerBuilder struct {
	cfg          *config.Config
	logger       *logging.Logger
	api          upstream.API
	httpClient   *http.Client
	resourceRepo domain.ResourceRepository
	toolRepo     domain.ToolRepository
	promptRepo   domain.PromptRepository
	tools        []domain.Tool
	resources    []domain.Resource
	prompts      []domain.Prompt
	catalogue    bool
}

// NewServerBuilder creates a new server builder with default values
func NewServerBuilder() *ServerBuilder {
	return &ServerBuilder{
		cfg:       config.Default(),
		catalogue: true,
	}
}

// WithConfig sets the configuration
func (b *ServerBuilder) WithConfig(cfg *config.Config) *ServerBuilder {
	b.cfg = cfg
	return b
}

// WithName sets the server name
func (b *ServerBuilder) WithName(name string) *ServerBuilder {
	b.cfg.Server.Name = name
	return b
}

// WithVersion sets the server version
func (b *ServerBuilder) WithVersion(version string) *ServerBuilder {
	b.cfg.Server.Version = version
	return b
}

// WithInstructions sets the server instructions
func (b *ServerBuilder) WithInstructions(instructions string) *ServerBuilder {
	b.cfg.Server.Instructions = instructions
	return b
}

// WithLogger sets the logger. Without one, a logger is built from the
// configuration.
func (b *ServerBuilder) WithLogger(logger *logging.Logger) *ServerBuilder {
	b.logger = logger
	return b
}

// WithUpstream replaces the upstream client built from the configuration.
func (b *ServerBuilder) WithUpstream(api upstream.API) *ServerBuilder {
	b.api = api
	return b
}

// WithHTTPClient sets the HTTP client used for upstream and token calls
func (b *ServerBuilder) WithHTTPClient(client *http.Client) *ServerBuilder {
	b.httpClient = client
	return b
}

// WithResourceRepository sets the resource repository
func (b *ServerBuilder) WithResourceRepository(repo domain.ResourceRepository) *ServerBuilder {
	b.resourceRepo = repo
	return b
}

// WithToolRepository sets the tool repository
func (b *ServerBuilder) WithToolRepository(repo domain.ToolRepository) *ServerBuilder {
	b.toolRepo = repo
	return b
}

// WithPromptRepository sets the prompt repository
func (b *ServerBuilder) WithPromptRepository(repo domain.PromptRepository) *ServerBuilder {
	b.promptRepo = repo
	return b
}

// WithoutCatalogue skips registering the Productboard tools, resources and
// prompts.
func (b *ServerBuilder) WithoutCatalogue() *ServerBuilder {
	b.catalogue = false
	return b
}

// AddTool adds a tool registered after the catalogue
func (b *ServerBuilder) AddTool(tool domain.Tool) *ServerBuilder {
	b.tools = append(b.tools, tool)
	return b
}

// AddResource adds a resource registered after the catalogue
func (b *ServerBuilder) AddResource(resource domain.Resource) *ServerBuilder {
	b.resources = append(b.resources, resource)
	return b
}

// AddPrompt adds a prompt registered after the catalogue
func (b *ServerBuilder) AddPrompt(prompt domain.Prompt) *ServerBuilder {
	b.prompts = append(b.prompts, prompt)
	return b
}

// Server holds every wired component of a running server.
type Server struct {
	Config    *config.Config
	Logger    *logging.Logger
	Auth      *auth.Manager
	Upstream  upstream.API
	Tools     domain.ToolRepository
	Resources domain.ResourceRepository
	Prompts   domain.PromptRepository
	Gate      *permission.Gate
	Limiter   *ratelimit.Limiter
	Cache     *cache.Cache
	Retry     *retry.Handler
	Service   *usecases.ServerService
}

// Build validates the configuration and wires the components.
func (b *ServerBuilder) Build() (*Server, error) {
	cfg := b.cfg
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	logger := b.logger
	if logger == nil {
		var err error
		if logger, err = logging.New(cfg.LoggerConfig()); err != nil {
			return nil, errors.Wrap(err, "creating logger")
		}
	}

	s := &Server{Config: cfg, Logger: logger}

	authOpts := []auth.ManagerOption{
		auth.WithLogger(logger),
		auth.WithExpirySkew(cfg.Auth.ExpirySkew),
	}
	if cfg.Upstream.APIVersion != "" {
		authOpts = append(authOpts, auth.WithHeader("X-Version", cfg.Upstream.APIVersion))
	}
	if b.httpClient != nil {
		authOpts = append(authOpts, auth.WithHTTPClient(b.httpClient))
	}
	manager, err := auth.New(cfg.Credentials(), authOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating authenticator")
	}
	s.Auth = manager

	s.Upstream = b.api
	if s.Upstream == nil {
		clientOpts := []upstream.Option{upstream.WithHeaderSource(manager), upstream.WithLogger(logger)}
		if b.httpClient != nil {
			clientOpts = append(clientOpts, upstream.WithHTTPClient(b.httpClient))
		}
		s.Upstream = upstream.NewClient(cfg.UpstreamClientConfig(), clientOpts...)
	}

	s.Tools = b.toolRepo
	if s.Tools == nil {
		s.Tools = registry.NewInMemoryToolRepository(logger)
	}
	s.Resources = b.resourceRepo
	if s.Resources == nil {
		s.Resources = registry.NewInMemoryResourceRepository(logger)
	}
	s.Prompts = b.promptRepo
	if s.Prompts == nil {
		s.Prompts = registry.NewInMemoryPromptRepository(logger)
	}

	if b.catalogue {
		productboard.New(s.Upstream, logger).Register(s.Tools, s.Resources, s.Prompts)
	}
	for _, t := range b.tools {
		s.Tools.Register(t)
	}
	for _, r := range b.resources {
		s.Resources.Register(r)
	}
	for _, p := range b.prompts {
		s.Prompts.Register(p)
	}

	s.Gate = permission.NewGate(permission.Caller{
		AccessLevel: cfg.DefaultAccessLevel(),
		Permissions: cfg.Permissions.Granted,
	}, logger)
	s.Limiter = ratelimit.New(cfg.RateLimiterConfig(), ratelimit.WithLogger(logger))
	s.Cache = cache.New(cfg.CacheSettings(), cache.WithLogger(logger))
	s.Retry = retry.New(cfg.RetrySettings(),
		retry.WithPredicate(upstream.IsRetryable),
		retry.WithLogger(logger),
	)

	s.Service = usecases.NewServerService(usecases.ServerConfig{
		Name:         cfg.Server.Name,
		Version:      cfg.Server.Version,
		Instructions: cfg.Server.Instructions,
		ToolRepo:     s.Tools,
		ResourceRepo: s.Resources,
		PromptRepo:   s.Prompts,
		Gate:         s.Gate,
		Limiter:      s.Limiter,
		Cache:        s.Cache,
		Retry:        s.Retry,
		MaxWait:      cfg.RateLimit.MaxWait,
		Logger:       logger,
	})

	logger.Info("server built", logging.Fields{
		"name":      cfg.Server.Name,
		"version":   cfg.Server.Version,
		"session":   s.Service.SessionID(),
		"tools":     s.Tools.Size(),
		"resources": s.Resources.Size(),
		"prompts":   s.Prompts.Size(),
		"auth":      cfg.Auth.Type,
	})
	return s, nil
}

// Handler returns the message handler transports serve.
func (s *Server) Handler() transport.MessageHandler {
	return transport.Chain(s.Service.HandleMessage, server.LoggingMiddleware(s.Logger))
}

// Transport creates the transport selected by the configuration.
func (s *Server) Transport() (transport.Transport, error) {
	return server.NewTransport(server.Options{
		Kind:     s.Config.Server.Transport,
		HTTPAddr: s.Config.Server.HTTPAddr,
		Logger:   s.Logger,
	})
}

// Serve runs tr until ctx is done, its input ends or a client requests
// shutdown.
func (s *Server) Serve(ctx context.Context, tr transport.Transport) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.Service.Done():
			s.Logger.Info("stopping transport after shutdown request")
			cancel()
		case <-ctx.Done():
		}
	}()
	return tr.Start(ctx, s.Handler())
}

// Close releases the cache and the registries.
func (s *Server) Close() error {
	err := s.Service.Close()
	_ = s.Logger.Sync()
	return err
}
