// Package config loads the non-secret settings the core needs to boot: model
// context-window overrides, concurrency caps, persistence paths, and the LLM
// provider endpoints. Credential and secret loading are out of scope; a
// deployment supplies API keys through its own mechanism and only points
// Settings at the result (or relies on environment overrides, below).
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the top-level configuration structure for the core runtime.
type Settings struct {
	Tokens     TokensConfig     `yaml:"tokens"`
	Compaction CompactionConfig `yaml:"compaction"`
	Bus        BusConfig        `yaml:"bus"`
	Subagents  SubagentsConfig  `yaml:"subagents"`
	Cron       CronConfig       `yaml:"cron"`
	Driver     DriverConfig     `yaml:"driver"`
	Retry      RetryConfig      `yaml:"retry"`
	LLM        LLMConfig        `yaml:"llm"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// TokensConfig overrides the Token Accountant's per-model context windows.
// ModelLimits is merged over tokens.DefaultLimits: an entry here replaces
// the built-in value for that model name, everything else falls through.
type TokensConfig struct {
	ModelLimits map[string]int `yaml:"model_limits"`
}

// CompactionConfig tunes the Context Compressor.
type CompactionConfig struct {
	// Threshold is the ShouldCompress fraction (default 0.80).
	Threshold float64 `yaml:"threshold"`
}

// BusConfig tunes the Message Bus.
type BusConfig struct {
	// Capacity bounds the bus's internal channel (default 256).
	Capacity int `yaml:"capacity"`
}

// SubagentsConfig tunes the Subagent Manager.
type SubagentsConfig struct {
	// MaxConcurrent bounds how many subagents may run at once (default 10).
	MaxConcurrent int `yaml:"max_concurrent"`

	// DefaultMaxIterations is used for a spawn call that doesn't specify one.
	DefaultMaxIterations int `yaml:"default_max_iterations"`

	// MainOnlyTools lists additional tool names hidden from every subagent's
	// registry view, beyond the spawn tool itself.
	MainOnlyTools []string `yaml:"main_only_tools"`
}

// CronConfig tunes the Cron Service.
type CronConfig struct {
	// StorePath is where the job list is persisted as JSON. Empty disables
	// persistence (jobs live in memory only for the process lifetime).
	StorePath string `yaml:"store_path"`
}

// DriverConfig tunes the Agent Driver's two roles and turn limits.
type DriverConfig struct {
	PlannerModel string `yaml:"planner_model"`
	CoderModel   string `yaml:"coder_model"`

	PlannerSystemPrompt string `yaml:"planner_system_prompt"`
	CoderSystemPrompt   string `yaml:"coder_system_prompt"`

	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`

	MaxMessages        int `yaml:"max_messages"`
	MaxToolIterations  int `yaml:"max_tool_iterations"`
	EmergencyTruncateN int `yaml:"emergency_truncate_n"`

	// Guard configures the tool-result redaction guard applied to every tool
	// call the driver executes, for both the interactive driver and every
	// subagent's headless driver.
	Guard ToolResultGuardConfig `yaml:"guard"`
}

// ToolResultGuardConfig feeds agent.ToolResultGuard. Disabled (every field
// zero/false) unless an operator opts in, matching agent.ToolResultGuard's
// own zero-value-is-inert design.
type ToolResultGuardConfig struct {
	// MaxChars truncates a tool result's content past this length (0
	// disables truncation).
	MaxChars int `yaml:"max_chars"`

	// Denylist names tools whose results are replaced outright rather than
	// redacted in place.
	Denylist []string `yaml:"denylist"`

	// RedactPatterns are additional regexps, beyond the guard's builtin
	// secret patterns, whose matches are replaced by RedactionText.
	RedactPatterns []string `yaml:"redact_patterns"`

	RedactionText  string `yaml:"redaction_text"`
	TruncateSuffix string `yaml:"truncate_suffix"`

	// SanitizeSecrets turns on the guard's builtin API-key/bearer-token/
	// private-key redaction patterns.
	SanitizeSecrets bool `yaml:"sanitize_secrets"`
}

// RetryConfig tunes AccountingClient's retry policy for transport errors.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// LLMConfig selects the default provider and carries each provider's
// connection settings, keyed by provider name.
type LLMConfig struct {
	DefaultProvider string                       `yaml:"default_provider"`
	Providers       map[string]LLMProviderConfig `yaml:"providers"`
}

// LLMProviderConfig feeds providers.AnthropicConfig/OpenAIConfig.
type LLMProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
}

// LoggingConfig controls the shared slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads path, expands ${VAR}-style environment references in the raw
// bytes, decodes it as a single strict YAML document (unknown fields
// rejected), applies environment overrides and defaults, then validates the
// result.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Settings
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	if err := decoder.Decode(new(struct{})); err != io.EOF {
		return nil, fmt.Errorf("config: %s must contain a single YAML document", path)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validateSettings(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Settings) {
	applyCompactionDefaults(&cfg.Compaction)
	applyBusDefaults(&cfg.Bus)
	applySubagentsDefaults(&cfg.Subagents)
	applyDriverDefaults(&cfg.Driver)
	applyRetryDefaults(&cfg.Retry)
	applyLLMDefaults(&cfg.LLM)
	applyLoggingDefaults(&cfg.Logging)
}

func applyCompactionDefaults(cfg *CompactionConfig) {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.80
	}
}

func applyBusDefaults(cfg *BusConfig) {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 256
	}
}

func applySubagentsDefaults(cfg *SubagentsConfig) {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 10
	}
	if cfg.DefaultMaxIterations <= 0 {
		cfg.DefaultMaxIterations = 15
	}
}

func applyDriverDefaults(cfg *DriverConfig) {
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = 1000
	}
	if cfg.MaxToolIterations <= 0 {
		cfg.MaxToolIterations = 300
	}
	if cfg.EmergencyTruncateN <= 0 {
		cfg.EmergencyTruncateN = 30
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
}

func applyRetryDefaults(cfg *RetryConfig) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
}

func applyLLMDefaults(cfg *LLMConfig) {
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = "anthropic"
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
}

// applyEnvOverrides lets a small set of environment variables win over the
// parsed file, for values that tend to differ by deployment rather than by
// checked-in config.
func applyEnvOverrides(cfg *Settings) {
	if value := strings.TrimSpace(os.Getenv("AGENTCORE_LOG_LEVEL")); value != "" {
		cfg.Logging.Level = value
	}
	if value := strings.TrimSpace(os.Getenv("AGENTCORE_CRON_STORE_PATH")); value != "" {
		cfg.Cron.StorePath = value
	}
	if value := strings.TrimSpace(os.Getenv("AGENTCORE_SUBAGENTS_MAX_CONCURRENT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Subagents.MaxConcurrent = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); value != "" {
		setProviderAPIKey(cfg, "anthropic", value)
	}
	if value := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); value != "" {
		setProviderAPIKey(cfg, "openai", value)
	}
}

func setProviderAPIKey(cfg *Settings, name, apiKey string) {
	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = make(map[string]LLMProviderConfig)
	}
	entry := cfg.LLM.Providers[name]
	entry.APIKey = apiKey
	cfg.LLM.Providers[name] = entry
}

// ValidationError collects every configuration problem found by
// validateSettings so a misconfigured deployment learns everything wrong in
// one pass rather than one failure at a time.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "config: validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateSettings(cfg *Settings) error {
	var issues []string

	if cfg.Compaction.Threshold <= 0 || cfg.Compaction.Threshold > 1 {
		issues = append(issues, "compaction.threshold must be in (0, 1]")
	}
	if cfg.Subagents.MaxConcurrent <= 0 {
		issues = append(issues, "subagents.max_concurrent must be > 0")
	}
	if cfg.Driver.Temperature < 0 {
		issues = append(issues, "driver.temperature must be >= 0")
	}
	if _, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]; cfg.LLM.DefaultProvider != "" && len(cfg.LLM.Providers) > 0 && !ok {
		issues = append(issues, fmt.Sprintf("llm.default_provider %q has no matching entry under llm.providers", cfg.LLM.DefaultProvider))
	}
	if cfg.Logging.Format != "" && cfg.Logging.Format != "json" && cfg.Logging.Format != "text" {
		issues = append(issues, "logging.format must be \"json\" or \"text\"")
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
