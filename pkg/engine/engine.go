package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/germanamz/swchat/pkg/agent"
	"github.com/germanamz/swchat/pkg/inference"
	"github.com/germanamz/swchat/pkg/tools/swapi"
	"github.com/germanamz/swchat/pkg/tools/toolbox"
)

// ErrModelsUnsupported is returned by ListModels when the provider cannot
// enumerate its models.
var ErrModelsUnsupported = errors.New("engine: provider does not list models")

// Engine is the composition root that assembles all service components from
// configuration. It holds no per-request state and is safe for concurrent use.
type Engine struct {
	cfg      Config
	log      *slog.Logger
	provider inference.Gateway // Unwrapped; used for optional capabilities.
	gateway  inference.Gateway // Instrumented.
	swapi    *swapi.Client
	tools    *toolbox.ToolBox
	resolver *agent.Resolver
	cache    *swapi.RedisCache
}

// Option customizes New.
type Option func(*options)

type options struct {
	gateway inference.Gateway
	logger  *slog.Logger
	client  *http.Client
}

// WithGateway replaces the configured provider with g.
func WithGateway(g inference.Gateway) Option {
	return func(o *options) { o.gateway = g }
}

// WithLogger sets the logger used for startup and background messages.
// Request-scoped logging always goes through the context.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithHTTPClient sets the outbound HTTP client shared by the provider and
// the SWAPI tools.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// New creates an Engine from the given configuration. It validates the
// config, creates the provider gateway, connects the optional tool cache and
// builds the tool-resolution loop.
func New(ctx context.Context, cfg Config, opts ...Option) (*Engine, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{cfg: cfg, log: o.logger, provider: o.gateway}

	if e.provider == nil {
		g, err := buildGateway(cfg, o.client)
		if err != nil {
			return nil, err
		}
		e.provider = g
	}
	e.gateway = instrument(cfg, e.provider)

	swOpts := swapi.Options{
		BaseURL:     cfg.Tools.SWAPIBase,
		Timeout:     cfg.Tools.Timeout,
		ResultLimit: cfg.Tools.ResultLimit,
		CacheTTL:    cfg.Cache.TTL,
		HTTPClient:  o.client,
	}

	if cfg.Cache.RedisURL != "" {
		cache, err := swapi.NewRedisCache(cfg.Cache.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("engine: cache: %w", err)
		}
		if err := cache.Ping(ctx); err != nil {
			e.log.WarnContext(ctx, "tool cache unreachable", "error", err)
		}
		e.cache = cache
		swOpts.Cache = cache
	}

	e.swapi = swapi.New(swOpts)
	e.tools = e.swapi.ToolBox()
	e.resolver = agent.New(e.gateway, e.tools, agent.Options{
		Settings:  cfg.Settings(),
		MaxRounds: cfg.Inference.MaxToolRounds,
	})

	e.log.InfoContext(ctx, "engine ready",
		"provider", cfg.Provider,
		"model", cfg.Model(),
		"tools", len(e.tools.Tools()),
		"cache", e.cache != nil,
	)

	return e, nil
}

// Config returns the configuration the engine was built from.
func (e *Engine) Config() Config { return e.cfg }

// Tools returns the SWAPI tool registry.
func (e *Engine) Tools() *toolbox.ToolBox { return e.tools }

// Gateway returns the instrumented inference gateway.
func (e *Engine) Gateway() inference.Gateway { return e.gateway }

// Ready reports whether the engine's backing services are reachable. Only
// the tool cache is probed; without one the engine is always ready.
func (e *Engine) Ready(ctx context.Context) error {
	if e.cache == nil {
		return nil
	}
	if err := e.cache.Ping(ctx); err != nil {
		return fmt.Errorf("engine: cache: %w", err)
	}
	return nil
}

// ListModels lists the models the provider offers.
func (e *Engine) ListModels(ctx context.Context) ([]inference.Model, error) {
	lister, ok := e.provider.(inference.ModelLister)
	if !ok {
		return nil, ErrModelsUnsupported
	}
	return lister.ListModels(ctx)
}

// Close releases the tool cache connection.
func (e *Engine) Close() error {
	if e.cache == nil {
		return nil
	}
	return e.cache.Close()
}
