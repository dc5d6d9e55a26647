package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var configEnvKeys = []string{
	"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL",
	"ANTHROPIC_API_KEY", "ANTHROPIC_BASE_URL", "ANTHROPIC_MODEL",
	"LLM_PROVIDER", "LLM_TEMPERATURE", "LLM_MAX_TOKENS", "EXTERNAL_HTTP_TIMEOUT_SECONDS",
	"STORAGE_BACKEND", "DB_PATH", "FEEDBACK_PATH", "AUDIT_LOG_PATH", "KB_DIR",
	"RATE_LIMIT_CAPACITY", "RATE_LIMIT_WINDOW_SECONDS", "SNIPPET_LIMIT",
	"FEEDBACK_OVERLAP_THRESHOLD", "FEEDBACK_OVERLAP_DENOMINATOR",
	"HTTP_ADDR", "SLACK_BOT_TOKEN", "SLACK_CHANNEL_ID",
	"AUDIT_RETENTION_DAYS", "LOG_FILE", "LOG_LEVEL", "TIMEZONE",
}

// isolateEnv blanks every key LoadConfig reads so the host environment does
// not leak into assertions. Empty values are ignored by the overrides.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnvKeys {
		t.Setenv(k, "")
	}
	t.Setenv("AUDIT_RETENTION_SCHEDULE", "")
	os.Unsetenv("AUDIT_RETENTION_SCHEDULE")
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing-config.yaml"))
}

func TestLoadConfigDefaults(t *testing.T) {
	isolateEnv(t)
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LLMProvider != "openai" {
		t.Fatalf("unexpected provider default: %q", cfg.LLMProvider)
	}
	if cfg.LLMTemperature == nil || *cfg.LLMTemperature != 0.2 || cfg.LLMMaxTokens != 1200 {
		t.Fatalf("unexpected llm defaults: %v %d", cfg.LLMTemperature, cfg.LLMMaxTokens)
	}
	if cfg.ExternalHTTPTimeoutSeconds != defaultExternalHTTPTimeoutSeconds {
		t.Fatalf("unexpected timeout default: %d", cfg.ExternalHTTPTimeoutSeconds)
	}
	if cfg.StorageBackend != StorageSQLite {
		t.Fatalf("unexpected storage default: %q", cfg.StorageBackend)
	}
	if cfg.RateLimitCapacity != 10 || cfg.RateLimitWindow() != time.Minute {
		t.Fatalf("unexpected rate limit defaults: %d %s", cfg.RateLimitCapacity, cfg.RateLimitWindow())
	}
	if cfg.SnippetLimit != 20 || cfg.FeedbackOverlapThreshold != 0.3 || cfg.FeedbackOverlapDenominator != "stored" {
		t.Fatalf("unexpected selection defaults: %+v", cfg)
	}
	if cfg.HTTPAddr != ":8787" {
		t.Fatalf("unexpected http addr: %q", cfg.HTTPAddr)
	}
	if cfg.AuditRetentionSchedule != "" || cfg.AuditRetention() != 0 {
		t.Fatalf("retention should be off by default: %q %s", cfg.AuditRetentionSchedule, cfg.AuditRetention())
	}
	if cfg.Location == nil || cfg.Location.String() != "UTC" {
		t.Fatalf("unexpected location: %v", cfg.Location)
	}
}

func TestMissingCredentialsIsWarningOnly(t *testing.T) {
	isolateEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("missing credentials must not be fatal: %v", err)
	}
	if cfg.OpenAIConfigured() || cfg.AnthropicConfigured() {
		t.Fatal("expected no provider configured")
	}
	if len(cfg.Warnings) != 1 || !strings.Contains(cfg.Warnings[0], "credentials") {
		t.Fatalf("expected one credentials warning, got %v", cfg.Warnings)
	}
}

func TestLoadConfigYAMLAndEnvOverride(t *testing.T) {
	isolateEnv(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
llm_provider: "anthropic"
anthropic_api_key: "yaml-anthropic"
storage_backend: "file"
feedback_path: "/tmp/yaml-feedback.json"
rate_limit_capacity: 5
snippet_limit: 8
audit_retention_days: 30
timezone: "UTC"
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", cfgPath)
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("SNIPPET_LIMIT", "12")
	t.Setenv("FEEDBACK_OVERLAP_THRESHOLD", "0.5")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LLMProvider != "anthropic" || cfg.AnthropicAPIKey != "yaml-anthropic" {
		t.Fatalf("yaml provider settings lost: %q %q", cfg.LLMProvider, cfg.AnthropicAPIKey)
	}
	if !cfg.OpenAIConfigured() {
		t.Fatal("env OPENAI_API_KEY should configure openai")
	}
	if cfg.StorageBackend != StorageFile || cfg.FeedbackPath != "/tmp/yaml-feedback.json" {
		t.Fatalf("unexpected storage settings: %q %q", cfg.StorageBackend, cfg.FeedbackPath)
	}
	if cfg.RateLimitCapacity != 5 {
		t.Fatalf("yaml rate limit lost: %d", cfg.RateLimitCapacity)
	}
	if cfg.SnippetLimit != 12 {
		t.Fatalf("env should override snippet_limit, got %d", cfg.SnippetLimit)
	}
	if cfg.FeedbackOverlapThreshold != 0.5 {
		t.Fatalf("env should override overlap threshold, got %f", cfg.FeedbackOverlapThreshold)
	}
	if cfg.AuditRetention() != 30*24*time.Hour || cfg.AuditRetentionSchedule != "0 3 * * *" {
		t.Fatalf("unexpected retention: %s %q", cfg.AuditRetention(), cfg.AuditRetentionSchedule)
	}
	if len(cfg.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", cfg.Warnings)
	}
}

func TestZeroTemperatureIsKept(t *testing.T) {
	isolateEnv(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("llm_temperature: 0\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", cfgPath)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LLMTemperature == nil || *cfg.LLMTemperature != 0 {
		t.Fatalf("yaml temperature 0 should be kept, got %v", cfg.LLMTemperature)
	}

	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing-config.yaml"))
	t.Setenv("LLM_TEMPERATURE", "0")
	cfg, err = LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LLMTemperature == nil || *cfg.LLMTemperature != 0 {
		t.Fatalf("env temperature 0 should be kept, got %v", cfg.LLMTemperature)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"provider", "LLM_PROVIDER", "gemini", "llm_provider"},
		{"storage", "STORAGE_BACKEND", "postgres", "storage_backend"},
		{"denominator", "FEEDBACK_OVERLAP_DENOMINATOR", "longer", "feedback_overlap_denominator"},
		{"timezone", "TIMEZONE", "Mars/Olympus", "timezone"},
		{"timeout", "EXTERNAL_HTTP_TIMEOUT_SECONDS", "2", "external_http_timeout_seconds"},
		{"threshold", "FEEDBACK_OVERLAP_THRESHOLD", "1.5", "feedback_overlap_threshold"},
		{"int parse", "RATE_LIMIT_CAPACITY", "ten", "RATE_LIMIT_CAPACITY"},
		{"retention", "AUDIT_RETENTION_DAYS", "-1", "audit_retention_days"},
		{"temperature", "LLM_TEMPERATURE", "2.5", "llm_temperature"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			t.Setenv(tt.key, tt.val)
			_, err := LoadConfig()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadConfigBadYAML(t *testing.T) {
	isolateEnv(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("llm_provider: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", cfgPath)
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSlackWithoutChannelWarns(t *testing.T) {
	isolateEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk")
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-test")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.SlackConfigured() {
		t.Fatal("slack should not be configured without a channel")
	}
	if len(cfg.Warnings) != 1 || !strings.Contains(cfg.Warnings[0], "slack_channel_id") {
		t.Fatalf("expected slack warning, got %v", cfg.Warnings)
	}
}
