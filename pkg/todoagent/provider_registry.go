package todoagent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harunnryd/todoagent/pkg/configutil"
	"github.com/harunnryd/todoagent/pkg/errorsx"
	"github.com/harunnryd/todoagent/pkg/llm"
	"github.com/harunnryd/todoagent/pkg/providers/gemini"
	"github.com/harunnryd/todoagent/pkg/providers/mock"
	"github.com/harunnryd/todoagent/pkg/providers/openai"
	"github.com/harunnryd/todoagent/pkg/resilience"
	"github.com/harunnryd/todoagent/pkg/store"
)

type LLMFactory func(ctx context.Context, cfg Config) (llm.LLMAdapter, error)
type StoreFactory func(ctx context.Context, cfg Config) (store.Store, error)

type ProviderRegistry struct {
	llm   map[string]LLMFactory
	store map[string]StoreFactory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		llm:   make(map[string]LLMFactory),
		store: make(map[string]StoreFactory),
	}
}

// DefaultProviderRegistry knows the openai, gemini and mock models and the
// sqlite and memory stores.
func DefaultProviderRegistry() *ProviderRegistry {
	reg := NewProviderRegistry()
	reg.RegisterLLM("openai", buildOpenAI)
	reg.RegisterLLM("gemini", buildGemini)
	reg.RegisterLLM("mock", buildMock)
	reg.RegisterStore("sqlite", func(ctx context.Context, cfg Config) (store.Store, error) {
		return store.NewSQLiteStore(ctx, cfg.Store.DSN)
	})
	reg.RegisterStore("memory", func(context.Context, Config) (store.Store, error) {
		return store.NewMemoryStore(), nil
	})
	return reg
}

func (r *ProviderRegistry) RegisterLLM(name string, factory LLMFactory) {
	r.llm[normalizeName(name)] = factory
}

func (r *ProviderRegistry) RegisterStore(name string, factory StoreFactory) {
	r.store[normalizeName(name)] = factory
}

func (r *ProviderRegistry) BuildLLM(ctx context.Context, provider string, cfg Config) (llm.LLMAdapter, error) {
	fn := r.llm[normalizeName(provider)]
	if fn == nil {
		return nil, errorsx.Wrap(fmt.Errorf("llm provider not registered: %s", provider), errorsx.ReasonConfig)
	}
	adapter, err := fn(ctx, cfg)
	if err != nil {
		return nil, errorsx.Wrapf(err, errorsx.ReasonConfig, "build llm %s", provider)
	}
	return adapter, nil
}

func (r *ProviderRegistry) BuildStore(ctx context.Context, driver string, cfg Config) (store.Store, error) {
	fn := r.store[normalizeName(driver)]
	if fn == nil {
		return nil, errorsx.Wrap(fmt.Errorf("store driver not registered: %s", driver), errorsx.ReasonConfig)
	}
	return fn(ctx, cfg)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// CircuitSettings are the breaker keys shared by every llm provider.
type CircuitSettings struct {
	UseCircuitBreaker *bool `mapstructure:"use_circuit_breaker"`
	CircuitThreshold  int   `mapstructure:"circuit_threshold"`
	CircuitCooldownMs int   `mapstructure:"circuit_cooldown_ms"`
}

var breakerKeys = []string{"use_circuit_breaker", "circuit_threshold", "circuit_cooldown_ms"}

// wrap puts adapter behind a circuit breaker unless the settings opt out.
func (b CircuitSettings) wrap(adapter llm.LLMAdapter, enabledByDefault bool) llm.LLMAdapter {
	if !configutil.BoolValue(b.UseCircuitBreaker, enabledByDefault) {
		return adapter
	}
	threshold := b.CircuitThreshold
	if threshold <= 0 {
		threshold = 3
	}
	cooldown := b.CircuitCooldownMs
	if cooldown <= 0 {
		cooldown = 30000
	}
	breaker := resilience.NewCircuitBreaker(threshold, time.Duration(cooldown)*time.Millisecond)
	return llm.NewCircuitBreakerAdapter(adapter, breaker)
}

type openAISettings struct {
	openai.Config   `mapstructure:",squash"`
	CircuitSettings `mapstructure:",squash"`
}

func buildOpenAI(_ context.Context, cfg Config) (llm.LLMAdapter, error) {
	if err := validateSettings("vendors.llm.settings", cfg.Vendors.LLM.Settings, configutil.Schema{
		Required: []string{"api_key"},
		Optional: append([]string{"model", "base_url", "observation_role", "timeout_ms", "temperature"}, breakerKeys...),
	}); err != nil {
		return nil, err
	}
	var settings openAISettings
	if err := configutil.DecodeSettings(cfg.Vendors.LLM.Settings, &settings); err != nil {
		return nil, err
	}
	if err := configutil.RequireString(settings.APIKey, "vendors.llm.settings.api_key"); err != nil {
		return nil, err
	}
	adapter, err := openai.NewAdapter(settings.Config)
	if err != nil {
		return nil, err
	}
	return settings.wrap(adapter, true), nil
}

type geminiSettings struct {
	gemini.Config   `mapstructure:",squash"`
	CircuitSettings `mapstructure:",squash"`
}

func buildGemini(ctx context.Context, cfg Config) (llm.LLMAdapter, error) {
	if err := validateSettings("vendors.llm.settings", cfg.Vendors.LLM.Settings, configutil.Schema{
		Required: []string{"api_key"},
		Optional: append([]string{"model", "temperature"}, breakerKeys...),
	}); err != nil {
		return nil, err
	}
	var settings geminiSettings
	if err := configutil.DecodeSettings(cfg.Vendors.LLM.Settings, &settings); err != nil {
		return nil, err
	}
	if err := configutil.RequireString(settings.APIKey, "vendors.llm.settings.api_key"); err != nil {
		return nil, err
	}
	adapter, err := gemini.NewAdapter(ctx, settings.Config)
	if err != nil {
		return nil, err
	}
	return settings.wrap(adapter, true), nil
}

type mockSettings struct {
	mock.LLMConfig  `mapstructure:",squash"`
	CircuitSettings `mapstructure:",squash"`
}

func buildMock(_ context.Context, cfg Config) (llm.LLMAdapter, error) {
	if err := validateSettings("vendors.llm.settings", cfg.Vendors.LLM.Settings, configutil.Schema{
		Optional: append([]string{"responses", "repeat"}, breakerKeys...),
	}); err != nil {
		return nil, err
	}
	var settings mockSettings
	if err := configutil.DecodeSettings(cfg.Vendors.LLM.Settings, &settings); err != nil {
		return nil, err
	}
	return settings.wrap(mock.NewLLMAdapter(settings.LLMConfig), false), nil
}

func validateSettings(path string, input map[string]any, schema configutil.Schema) error {
	if err := configutil.ValidateSettings(input, schema); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
