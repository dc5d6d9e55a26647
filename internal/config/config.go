package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultExternalHTTPTimeoutSeconds = 90
	defaultHTTPAddr                   = ":8787"
)

const (
	StorageSQLite = "sqlite"
	StorageFile   = "file"
)

type Config struct {
	OpenAIAPIKey     string `yaml:"openai_api_key"`
	OpenAIBaseURL    string `yaml:"openai_base_url"`
	OpenAIModel      string `yaml:"openai_model"`
	AnthropicAPIKey  string `yaml:"anthropic_api_key"`
	AnthropicBaseURL string `yaml:"anthropic_base_url"`
	AnthropicModel   string `yaml:"anthropic_model"`

	// LLMProvider is tried first; the other configured provider is the fallback.
	LLMProvider                string   `yaml:"llm_provider"`
	LLMTemperature             *float64 `yaml:"llm_temperature"`
	LLMMaxTokens               int      `yaml:"llm_max_tokens"`
	ExternalHTTPTimeoutSeconds int      `yaml:"external_http_timeout_seconds"`

	StorageBackend string `yaml:"storage_backend"`
	DBPath         string `yaml:"db_path"`
	FeedbackPath   string `yaml:"feedback_path"`
	AuditLogPath   string `yaml:"audit_log_path"`
	KBDir          string `yaml:"kb_dir"`

	RateLimitCapacity      int `yaml:"rate_limit_capacity"`
	RateLimitWindowSeconds int `yaml:"rate_limit_window_seconds"`
	SnippetLimit           int `yaml:"snippet_limit"`

	FeedbackOverlapThreshold   float64 `yaml:"feedback_overlap_threshold"`
	FeedbackOverlapDenominator string  `yaml:"feedback_overlap_denominator"`

	HTTPAddr       string `yaml:"http_addr"`
	SlackBotToken  string `yaml:"slack_bot_token"`
	SlackChannelID string `yaml:"slack_channel_id"`

	AuditRetentionDays     int    `yaml:"audit_retention_days"`
	AuditRetentionSchedule string `yaml:"audit_retention_schedule"`

	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`
	Timezone string `yaml:"timezone"`

	Location *time.Location `yaml:"-"` // computed from Timezone, not from YAML
	// Warnings are non-fatal problems found while loading, logged by the caller
	// once a logger exists.
	Warnings []string `yaml:"-"`
}

// LoadConfig reads config.yaml (or CONFIG_PATH), applies environment
// overrides and defaults, then validates.
func LoadConfig() (Config, error) {
	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", configPath, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverride(&cfg.OpenAIBaseURL, "OPENAI_BASE_URL")
	envOverride(&cfg.OpenAIModel, "OPENAI_MODEL")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.AnthropicBaseURL, "ANTHROPIC_BASE_URL")
	envOverride(&cfg.AnthropicModel, "ANTHROPIC_MODEL")
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.StorageBackend, "STORAGE_BACKEND")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.FeedbackPath, "FEEDBACK_PATH")
	envOverride(&cfg.AuditLogPath, "AUDIT_LOG_PATH")
	envOverride(&cfg.KBDir, "KB_DIR")
	envOverride(&cfg.FeedbackOverlapDenominator, "FEEDBACK_OVERLAP_DENOMINATOR")
	envOverride(&cfg.HTTPAddr, "HTTP_ADDR")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackChannelID, "SLACK_CHANNEL_ID")
	envOverrideAllowEmpty(&cfg.AuditRetentionSchedule, "AUDIT_RETENTION_SCHEDULE")
	envOverride(&cfg.LogFile, "LOG_FILE")
	envOverride(&cfg.LogLevel, "LOG_LEVEL")
	envOverride(&cfg.Timezone, "TIMEZONE")

	ints := []struct {
		field *int
		key   string
	}{
		{&cfg.LLMMaxTokens, "LLM_MAX_TOKENS"},
		{&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS"},
		{&cfg.RateLimitCapacity, "RATE_LIMIT_CAPACITY"},
		{&cfg.RateLimitWindowSeconds, "RATE_LIMIT_WINDOW_SECONDS"},
		{&cfg.SnippetLimit, "SNIPPET_LIMIT"},
		{&cfg.AuditRetentionDays, "AUDIT_RETENTION_DAYS"},
	}
	for _, o := range ints {
		if err := envOverrideInt(o.field, o.key); err != nil {
			return err
		}
	}
	if err := envOverrideFloatPtr(&cfg.LLMTemperature, "LLM_TEMPERATURE"); err != nil {
		return err
	}
	return envOverrideFloat(&cfg.FeedbackOverlapThreshold, "FEEDBACK_OVERLAP_THRESHOLD")
}

func applyDefaults(cfg *Config) {
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = "openai"
	}
	// An explicit 0 is a valid temperature; only an absent value is defaulted.
	if cfg.LLMTemperature == nil {
		t := 0.2
		cfg.LLMTemperature = &t
	}
	if cfg.LLMMaxTokens == 0 {
		cfg.LLMMaxTokens = 1200
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = defaultExternalHTTPTimeoutSeconds
	}
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	if cfg.StorageBackend == "" {
		cfg.StorageBackend = StorageSQLite
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./data/salescomposer.db"
	}
	if cfg.FeedbackPath == "" {
		cfg.FeedbackPath = "./data/feedback.json"
	}
	if cfg.AuditLogPath == "" {
		cfg.AuditLogPath = "./logs/audit.jsonl"
	}
	if cfg.RateLimitCapacity == 0 {
		cfg.RateLimitCapacity = 10
	}
	if cfg.RateLimitWindowSeconds == 0 {
		cfg.RateLimitWindowSeconds = 60
	}
	if cfg.SnippetLimit == 0 {
		cfg.SnippetLimit = 20
	}
	if cfg.FeedbackOverlapThreshold == 0 {
		cfg.FeedbackOverlapThreshold = 0.3
	}
	if cfg.FeedbackOverlapDenominator == "" {
		cfg.FeedbackOverlapDenominator = "stored"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = defaultHTTPAddr
	}
	if cfg.AuditRetentionDays > 0 && cfg.AuditRetentionSchedule == "" {
		cfg.AuditRetentionSchedule = "0 3 * * *"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}
}

func (c *Config) validate() error {
	switch c.LLMProvider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("llm_provider must be 'openai' or 'anthropic', got '%s'", c.LLMProvider)
	}
	if !c.OpenAIConfigured() && !c.AnthropicConfigured() {
		c.Warnings = append(c.Warnings, "no LLM provider credentials set; compositions will use default text")
	}

	switch c.StorageBackend {
	case StorageSQLite, StorageFile:
	default:
		return fmt.Errorf("storage_backend must be '%s' or '%s', got '%s'", StorageSQLite, StorageFile, c.StorageBackend)
	}
	switch c.FeedbackOverlapDenominator {
	case "stored", "shorter":
	default:
		return fmt.Errorf("feedback_overlap_denominator must be 'stored' or 'shorter', got '%s'", c.FeedbackOverlapDenominator)
	}

	if strings.EqualFold(c.Timezone, "Local") {
		c.Location = time.Local
	} else {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
		}
		c.Location = loc
	}

	if t := *c.LLMTemperature; t < 0 || t > 2 {
		return fmt.Errorf("invalid llm_temperature '%f': must be between 0 and 2", t)
	}
	if c.LLMMaxTokens < 1 {
		return fmt.Errorf("invalid llm_max_tokens '%d': must be >= 1", c.LLMMaxTokens)
	}
	if c.ExternalHTTPTimeoutSeconds < 5 {
		return fmt.Errorf("invalid external_http_timeout_seconds '%d': must be >= 5", c.ExternalHTTPTimeoutSeconds)
	}
	if c.RateLimitCapacity < 1 {
		return fmt.Errorf("invalid rate_limit_capacity '%d': must be >= 1", c.RateLimitCapacity)
	}
	if c.RateLimitWindowSeconds < 1 {
		return fmt.Errorf("invalid rate_limit_window_seconds '%d': must be >= 1", c.RateLimitWindowSeconds)
	}
	if c.SnippetLimit < 1 {
		return fmt.Errorf("invalid snippet_limit '%d': must be >= 1", c.SnippetLimit)
	}
	if c.FeedbackOverlapThreshold <= 0 || c.FeedbackOverlapThreshold > 1 {
		return fmt.Errorf("invalid feedback_overlap_threshold '%f': must be in (0, 1]", c.FeedbackOverlapThreshold)
	}
	if c.AuditRetentionDays < 0 {
		return fmt.Errorf("invalid audit_retention_days '%d': must be >= 0", c.AuditRetentionDays)
	}
	if c.SlackBotToken != "" && c.SlackChannelID == "" {
		c.Warnings = append(c.Warnings, "slack_bot_token is set but slack_channel_id is empty; feedback notifications disabled")
	}
	return nil
}

func (c Config) OpenAIConfigured() bool {
	return strings.TrimSpace(c.OpenAIAPIKey) != ""
}

func (c Config) AnthropicConfigured() bool {
	return strings.TrimSpace(c.AnthropicAPIKey) != ""
}

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.SlackChannelID != ""
}

func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func (c Config) AuditRetention() time.Duration {
	return time.Duration(c.AuditRetentionDays) * 24 * time.Hour
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideAllowEmpty(field *string, envKey string) {
	if val, ok := os.LookupEnv(envKey); ok {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideFloat(field *float64, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideFloatPtr(field **float64, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = &parsed
	}
	return nil
}
