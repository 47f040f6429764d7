package engine

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/germanamz/swchat/pkg/agent"
	"github.com/germanamz/swchat/pkg/inference"
	"github.com/germanamz/swchat/pkg/logging"
	"github.com/germanamz/swchat/pkg/modeladapter/usage"
	"github.com/germanamz/swchat/pkg/providers/anthropic"
	"github.com/germanamz/swchat/pkg/tools/swapi"
)

// Provider kinds understood by the built-in factories.
const (
	ProviderBedrock   = "bedrock"
	ProviderAnthropic = "anthropic"
)

// EnvDevelopment selects the development logging profile.
const EnvDevelopment = "development"

// Config is the top-level service configuration.
type Config struct {
	Env       string          `yaml:"env"`
	Addr      string          `yaml:"addr"`
	Provider  string          `yaml:"provider"`
	Bedrock   BedrockConfig   `yaml:"bedrock"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Inference InferenceConfig `yaml:"inference"`
	Tools     ToolsConfig     `yaml:"tools"`
	Cache     CacheConfig     `yaml:"cache"`
	Log       LogConfig       `yaml:"log"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Pricing   PricingConfig   `yaml:"pricing"`
}

// BedrockConfig holds the Bedrock transport settings.
type BedrockConfig struct {
	Region     string `yaml:"region"`
	ModelID    string `yaml:"model_id"`
	RuntimeURL string `yaml:"runtime_url"`
	ControlURL string `yaml:"control_url"`
	Token      string `yaml:"token"` //nolint:gosec // configuration field, not a hardcoded secret
}

// AnthropicConfig holds the Anthropic Messages API settings.
type AnthropicConfig struct {
	APIKey  string `yaml:"api_key"` //nolint:gosec // configuration field, not a hardcoded secret
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// InferenceConfig controls generation and the tool loop.
type InferenceConfig struct {
	MaxTokens     int           `yaml:"max_tokens"`
	Temperature   float64       `yaml:"temperature"`
	MaxToolRounds int           `yaml:"max_tool_rounds"` // 0 = unlimited.
	MaxRetries    int           `yaml:"max_retries"`     // Retries on HTTP 429.
	Timeout       time.Duration `yaml:"timeout"`         // Bound on each single-shot call.
}

// ToolsConfig controls the SWAPI tools.
type ToolsConfig struct {
	SWAPIBase   string        `yaml:"swapi_base"`
	Timeout     time.Duration `yaml:"timeout"`
	ResultLimit int           `yaml:"result_limit"`
}

// CacheConfig enables the Redis tool-result cache when RedisURL is set.
type CacheConfig struct {
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig selects a span exporter.
type TracingConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Stdout       bool   `yaml:"stdout"`
}

// PricingConfig holds the per-1K-token prices used for cost estimates.
type PricingConfig struct {
	InputPer1K  float64 `yaml:"input_per_1k"`
	OutputPer1K float64 `yaml:"output_per_1k"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() Config {
	return Config{
		Addr:     ":8000",
		Provider: ProviderBedrock,
		Bedrock: BedrockConfig{
			Region:  "us-east-1",
			ModelID: "anthropic.claude-3-5-sonnet-20240620-v1:0",
		},
		Inference: InferenceConfig{
			MaxTokens:     1000,
			Temperature:   0.2,
			MaxToolRounds: agent.DefaultMaxRounds,
			MaxRetries:    2,
			Timeout:       120 * time.Second,
		},
		Tools: ToolsConfig{
			SWAPIBase:   swapi.DefaultBaseURL,
			Timeout:     swapi.DefaultTimeout,
			ResultLimit: swapi.DefaultResultLimit,
		},
		Cache: CacheConfig{TTL: time.Hour},
		Pricing: PricingConfig{
			InputPer1K:  0.003,
			OutputPer1K: 0.015,
		},
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig.
// Environment variables referenced as ${VAR} or $VAR in the YAML are expanded
// before parsing.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
	if err != nil {
		return Config{}, fmt.Errorf("engine: load config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("engine: parse config: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overlays the environment variables found through lookup.
// Pass os.LookupEnv in production. Set but unparsable values are reported
// together.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	// Durations accept Go syntax ("90s") or a bare number of seconds.
	duration := func(key string, dst *time.Duration) {
		v, ok := lookup(key)
		if !ok {
			return
		}
		v = strings.TrimSpace(v)
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = time.Duration(secs * float64(time.Second))
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}

	str("ENV", &c.Env)
	str("ADDR", &c.Addr)
	str("PROVIDER", &c.Provider)

	str("BEDROCK_REGION", &c.Bedrock.Region)
	str("BEDROCK_MODEL_ID", &c.Bedrock.ModelID)
	str("BEDROCK_RUNTIME_URL", &c.Bedrock.RuntimeURL)
	str("BEDROCK_CONTROL_URL", &c.Bedrock.ControlURL)
	str("AWS_BEARER_TOKEN_BEDROCK", &c.Bedrock.Token)

	str("ANTHROPIC_API_KEY", &c.Anthropic.APIKey)
	str("ANTHROPIC_BASE_URL", &c.Anthropic.BaseURL)
	str("ANTHROPIC_MODEL", &c.Anthropic.Model)

	integer("MAX_TOKENS", &c.Inference.MaxTokens)
	float("TEMPERATURE", &c.Inference.Temperature)
	integer("MAX_TOOL_ROUNDS", &c.Inference.MaxToolRounds)
	integer("MAX_RETRIES", &c.Inference.MaxRetries)
	duration("INFERENCE_TIMEOUT", &c.Inference.Timeout)

	str("SW_API_BASE", &c.Tools.SWAPIBase)
	duration("TOOL_TIMEOUT", &c.Tools.Timeout)
	integer("TOOL_RESULT_LIMIT", &c.Tools.ResultLimit)

	str("REDIS_URL", &c.Cache.RedisURL)
	duration("CACHE_TTL", &c.Cache.TTL)

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.Tracing.OTLPEndpoint)
	boolean("TRACE_STDOUT", &c.Tracing.Stdout)

	float("PRICE_INPUT_PER_1K", &c.Pricing.InputPer1K)
	float("PRICE_OUTPUT_PER_1K", &c.Pricing.OutputPer1K)

	if len(errs) > 0 {
		return fmt.Errorf("engine: env: %w", errors.Join(errs...))
	}

	return nil
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if c.Env == "" {
		return fmt.Errorf("engine: config: env is required")
	}

	switch c.Provider {
	case ProviderBedrock:
		if c.Bedrock.Region == "" && c.Bedrock.RuntimeURL == "" {
			return fmt.Errorf("engine: config: bedrock: region or runtime_url is required")
		}
		if c.Bedrock.ModelID == "" {
			return fmt.Errorf("engine: config: bedrock: model_id is required")
		}
	case ProviderAnthropic:
		if c.Anthropic.APIKey == "" {
			return fmt.Errorf("engine: config: anthropic: api_key is required")
		}
	case "":
		return fmt.Errorf("engine: config: provider is required")
	default:
		if _, ok := getFactory(c.Provider); !ok {
			return fmt.Errorf("engine: config: unknown provider %q", c.Provider)
		}
	}

	if c.Inference.MaxTokens <= 0 {
		return fmt.Errorf("engine: config: max_tokens must be positive")
	}
	if c.Inference.Temperature < 0 || c.Inference.Temperature > 1 {
		return fmt.Errorf("engine: config: temperature must be within [0, 1]")
	}
	if c.Inference.MaxToolRounds < 0 {
		return fmt.Errorf("engine: config: max_tool_rounds must not be negative")
	}
	if c.Inference.MaxRetries < 0 {
		return fmt.Errorf("engine: config: max_retries must not be negative")
	}
	if c.Inference.Timeout < 0 || c.Tools.Timeout < 0 || c.Cache.TTL < 0 {
		return fmt.Errorf("engine: config: timeouts must not be negative")
	}
	if c.Tools.ResultLimit <= 0 {
		return fmt.Errorf("engine: config: tool result_limit must be positive")
	}

	return nil
}

// Development reports whether the development profile is active.
func (c Config) Development() bool {
	return strings.EqualFold(c.Env, EnvDevelopment)
}

// Logging returns logger options. The development profile defaults to text
// output at debug level; explicit settings win.
func (c Config) Logging() logging.Options {
	opts := logging.Options{Level: c.Log.Level, Format: c.Log.Format}
	if c.Development() {
		if opts.Level == "" {
			opts.Level = "debug"
		}
		if opts.Format == "" {
			opts.Format = "text"
		}
	}
	return opts
}

// Settings returns the generation settings for the chat system prompt.
func (c Config) Settings() inference.Settings {
	return inference.Settings{
		System:      SystemPrompt,
		MaxTokens:   c.Inference.MaxTokens,
		Temperature: c.Inference.Temperature,
	}
}

// Model returns the model identifier of the selected provider.
func (c Config) Model() string {
	switch c.Provider {
	case ProviderBedrock:
		return c.Bedrock.ModelID
	case ProviderAnthropic:
		if c.Anthropic.Model == "" {
			return anthropic.DefaultModel
		}
		return c.Anthropic.Model
	default:
		return ""
	}
}

// UsagePricing converts the pricing section for cost estimates.
func (c Config) UsagePricing() usage.Pricing {
	return usage.Pricing{InputPer1K: c.Pricing.InputPer1K, OutputPer1K: c.Pricing.OutputPer1K}
}
