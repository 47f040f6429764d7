package engine

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/germanamz/swchat/pkg/inference"
	"github.com/germanamz/swchat/pkg/providers/anthropic"
	"github.com/germanamz/swchat/pkg/providers/bedrock"
)

// ProviderFactory creates a Gateway from the configuration. client is the
// shared outbound HTTP client and may be nil.
type ProviderFactory func(cfg Config, client *http.Client) (inference.Gateway, error)

var (
	factoryMu   sync.RWMutex
	factories   = map[string]ProviderFactory{}
	defaultsReg sync.Once
)

func ensureDefaults() {
	defaultsReg.Do(func() {
		factories[ProviderBedrock] = newBedrock
		factories[ProviderAnthropic] = newAnthropic
	})
}

// RegisterProvider registers a custom provider factory under the given kind.
// It can be called before New to extend the engine with additional providers.
func RegisterProvider(kind string, factory ProviderFactory) {
	ensureDefaults()

	factoryMu.Lock()
	defer factoryMu.Unlock()

	factories[kind] = factory
}

// getFactory returns the factory for the given kind.
func getFactory(kind string) (ProviderFactory, bool) {
	ensureDefaults()

	factoryMu.RLock()
	defer factoryMu.RUnlock()

	f, ok := factories[kind]
	return f, ok
}

func newBedrock(cfg Config, client *http.Client) (inference.Gateway, error) {
	return bedrock.New(bedrock.Options{
		Region:        cfg.Bedrock.Region,
		ModelID:       cfg.Bedrock.ModelID,
		Token:         cfg.Bedrock.Token,
		RuntimeURL:    cfg.Bedrock.RuntimeURL,
		ControlURL:    cfg.Bedrock.ControlURL,
		MaxRetries:    cfg.Inference.MaxRetries,
		InvokeTimeout: cfg.Inference.Timeout,
		Client:        client,
	}), nil
}

func newAnthropic(cfg Config, client *http.Client) (inference.Gateway, error) {
	return anthropic.New(anthropic.Options{
		APIKey:        cfg.Anthropic.APIKey,
		BaseURL:       cfg.Anthropic.BaseURL,
		Model:         cfg.Anthropic.Model,
		MaxRetries:    cfg.Inference.MaxRetries,
		InvokeTimeout: cfg.Inference.Timeout,
		Client:        client,
	}), nil
}

// buildGateway creates the Gateway for cfg.Provider using the registered
// factory.
func buildGateway(cfg Config, client *http.Client) (inference.Gateway, error) {
	factory, ok := getFactory(cfg.Provider)
	if !ok {
		return nil, fmt.Errorf("engine: unknown provider kind %q", cfg.Provider)
	}

	g, err := factory(cfg, client)
	if err != nil {
		return nil, fmt.Errorf("engine: provider %q: %w", cfg.Provider, err)
	}

	return g, nil
}

// instrument wraps g with usage accounting and tracing.
func instrument(cfg Config, g inference.Gateway) inference.Gateway {
	return inference.Instrument(g, inference.InstrumentOpts{
		Provider: cfg.Provider,
		Model:    cfg.Model(),
		Pricing:  cfg.UsagePricing(),
	})
}
