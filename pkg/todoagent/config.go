package todoagent

import (
	"fmt"
	"math"
	"os"
	"reflect"
	"strings"

	"github.com/harunnryd/todoagent/pkg/agent"
	"github.com/harunnryd/todoagent/pkg/errorsx"
	"github.com/harunnryd/todoagent/pkg/logging"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. TODOAGENT_STORE_DSN.
const EnvPrefix = "TODOAGENT"

type Config struct {
	Environment   string              `mapstructure:"environment"`
	LogLevel      string              `mapstructure:"log_level"`
	LogFormat     string              `mapstructure:"log_format"`
	Vendors       VendorsConfig       `mapstructure:"vendors"`
	Store         StoreConfig         `mapstructure:"store"`
	Agent         AgentConfig         `mapstructure:"agent"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	LLM VendorConfig `mapstructure:"llm"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type AgentConfig struct {
	MaxSteps                 int    `mapstructure:"max_steps"`
	UnknownToolAsObservation bool   `mapstructure:"unknown_tool_as_observation"`
	ToolErrorPolicy          string `mapstructure:"tool_error_policy"`
	BasePrompt               string `mapstructure:"base_prompt"`
	Persona                  string `mapstructure:"persona"`
	Style                    string `mapstructure:"style"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

type ObservabilityConfig struct {
	// ArtifactsDir receives per-session timeline and usage files when set.
	ArtifactsDir  string  `mapstructure:"artifacts_dir"`
	RetentionDays int     `mapstructure:"retention_days"`
	MetricsFile   string  `mapstructure:"metrics_file"`
	SampleRate    float64 `mapstructure:"sample_rate"`
	AsyncBuffer   int     `mapstructure:"async_buffer"`
}

// LoadConfig reads path (skipped when empty), applies defaults and
// TODOAGENT_* environment overrides, expands ${VAR} references and validates
// the result.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errorsx.Wrapf(err, errorsx.ReasonConfig, "read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errorsx.Wrapf(err, errorsx.ReasonConfig, "unmarshal")
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, errorsx.Wrapf(err, errorsx.ReasonConfig, "validate config")
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("vendors.llm.provider", "openai")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "todos.db")
	v.SetDefault("agent.max_steps", agent.DefaultMaxSteps)
	v.SetDefault("agent.unknown_tool_as_observation", false)
	v.SetDefault("agent.tool_error_policy", string(agent.ToolErrorObserve))
	v.SetDefault("agent.base_prompt", "")
	v.SetDefault("agent.persona", "")
	v.SetDefault("agent.style", "")
	v.SetDefault("privacy.redact_pii", true)
	v.SetDefault("observability.artifacts_dir", "")
	v.SetDefault("observability.retention_days", 0)
	v.SetDefault("observability.metrics_file", "")
	v.SetDefault("observability.sample_rate", 1.0)
	v.SetDefault("observability.async_buffer", 256)
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Vendors.LLM.Provider) == "" {
		return fmt.Errorf("vendors.llm.provider is required")
	}
	switch strings.ToLower(strings.TrimSpace(c.Store.Driver)) {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("store.driver must be sqlite or memory, got %q", c.Store.Driver)
	}
	if c.Agent.MaxSteps < 1 {
		return fmt.Errorf("agent.max_steps must be at least 1, got %d", c.Agent.MaxSteps)
	}
	if _, err := agent.ParseToolErrorPolicy(c.Agent.ToolErrorPolicy); err != nil {
		return fmt.Errorf("agent.%w", err)
	}
	if _, ok := logging.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}
	rate := c.Observability.SampleRate
	if math.IsNaN(rate) || rate < 0 || rate > 1 {
		return fmt.Errorf("observability.sample_rate must be within [0, 1], got %v", rate)
	}
	if c.Observability.RetentionDays < 0 {
		return fmt.Errorf("observability.retention_days must not be negative")
	}
	if c.Observability.AsyncBuffer < 0 {
		return fmt.Errorf("observability.async_buffer must not be negative")
	}
	return nil
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Vendors.LLM.Settings = expandSettings(cfg.Vendors.LLM.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = expandAny(v)
		}
		return out
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	}
}
