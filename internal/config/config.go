package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	SourcesFile   string `mapstructure:"sources_file"`
	NotifiersFile string `mapstructure:"notifiers_file"`

	DryRun   bool   `mapstructure:"dry_run"`
	Timezone string `mapstructure:"timezone"`
	PostHour int    `mapstructure:"post_hour"`
	PostMin  int    `mapstructure:"post_minute"`

	CharLimit            int           `mapstructure:"char_limit"`
	CandidateAttempts    int           `mapstructure:"candidate_attempts"`
	PublishRetries       int           `mapstructure:"publish_retries"`
	PublishBackoffMs     int64         `mapstructure:"publish_backoff_ms"`
	PublishBackoff       time.Duration `mapstructure:"-"`
	FetchTimeoutSeconds  int64         `mapstructure:"fetch_timeout_seconds"`
	FetchTimeout         time.Duration `mapstructure:"-"`
	GenerateTimeoutSecs  int64         `mapstructure:"generate_timeout_seconds"`
	GenerateTimeout      time.Duration `mapstructure:"-"`
	GenerateModel        string        `mapstructure:"generate_model"`
	GenerateMaxTokens    int           `mapstructure:"generate_max_tokens"`
	GenerateTemperature  float64       `mapstructure:"generate_temperature"`
	GenerateBaseURL      string        `mapstructure:"generate_base_url"`
	GroqAPIKey           string        `mapstructure:"groq_api_key"`
	RecentTextsForPrompt int           `mapstructure:"recent_texts_for_prompt"`

	XAPIKey            string `mapstructure:"x_api_key"`
	XAPISecret         string `mapstructure:"x_api_secret"`
	XAccessToken       string `mapstructure:"x_access_token"`
	XAccessTokenSecret string `mapstructure:"x_access_token_secret"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	MemoryTTLSeconds       int64         `mapstructure:"memory_ttl_seconds"`
	MemoryCleanupSeconds   int64         `mapstructure:"memory_cleanup_interval_seconds"`
	MemoryMaxEntries       int           `mapstructure:"memory_max_entries"`
	MemoryTTL              time.Duration `mapstructure:"-"`
	MemoryCleanupInterval  time.Duration `mapstructure:"-"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "devpulse-bot")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("sources_file", "./configs/sources.yaml")
	v.SetDefault("notifiers_file", "./configs/notifiers.yaml")

	v.SetDefault("dry_run", false)
	v.SetDefault("timezone", "Asia/Kolkata")
	v.SetDefault("post_hour", 19)
	v.SetDefault("post_minute", 0)

	v.SetDefault("char_limit", 280)
	v.SetDefault("candidate_attempts", 3)
	v.SetDefault("publish_retries", 3)
	v.SetDefault("publish_backoff_ms", 2000)
	v.SetDefault("fetch_timeout_seconds", 15)
	v.SetDefault("generate_timeout_seconds", 30)
	v.SetDefault("generate_model", "llama-3.1-8b-instant")
	v.SetDefault("generate_max_tokens", 100)
	v.SetDefault("generate_temperature", 0.9)
	v.SetDefault("generate_base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("recent_texts_for_prompt", 10)

	// Credentials come from the environment only; empty defaults keep the
	// keys visible to Unmarshal under AutomaticEnv.
	v.SetDefault("groq_api_key", "")
	v.SetDefault("x_api_key", "")
	v.SetDefault("x_api_secret", "")
	v.SetDefault("x_access_token", "")
	v.SetDefault("x_access_token_secret", "")

	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/memory.db")
	v.SetDefault("memory_ttl_seconds", int64((5*24*time.Hour)/time.Second))
	v.SetDefault("memory_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))
	v.SetDefault("memory_max_entries", 100)

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.PostHour < 0 || cfg.PostHour > 23 {
		return nil, fmt.Errorf("invalid post_hour %d (must be 0-23)", cfg.PostHour)
	}
	if cfg.PostMin < 0 || cfg.PostMin > 59 {
		return nil, fmt.Errorf("invalid post_minute %d (must be 0-59)", cfg.PostMin)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	if cfg.CharLimit <= 0 {
		return nil, fmt.Errorf("invalid char_limit (must be positive)")
	}
	if cfg.CandidateAttempts <= 0 {
		return nil, fmt.Errorf("invalid candidate_attempts (must be positive)")
	}
	if cfg.PublishRetries < 0 {
		return nil, fmt.Errorf("invalid publish_retries (must not be negative)")
	}
	if cfg.FetchTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid fetch_timeout_seconds (must be positive)")
	}
	if cfg.GenerateTimeoutSecs <= 0 {
		return nil, fmt.Errorf("invalid generate_timeout_seconds (must be positive)")
	}
	if cfg.MemoryTTLSeconds <= 0 {
		return nil, fmt.Errorf("invalid memory_ttl_seconds (must be positive)")
	}
	if cfg.MemoryCleanupSeconds <= 0 {
		return nil, fmt.Errorf("invalid memory_cleanup_interval_seconds (must be positive)")
	}

	cfg.PublishBackoff = time.Duration(cfg.PublishBackoffMs) * time.Millisecond
	cfg.FetchTimeout = time.Duration(cfg.FetchTimeoutSeconds) * time.Second
	cfg.GenerateTimeout = time.Duration(cfg.GenerateTimeoutSecs) * time.Second
	cfg.MemoryTTL = time.Duration(cfg.MemoryTTLSeconds) * time.Second
	cfg.MemoryCleanupInterval = time.Duration(cfg.MemoryCleanupSeconds) * time.Second

	return &cfg, nil
}

// ValidateCredentials checks that every credential needed for live posting is set.
// Dry-run mode only needs the Groq key, and survives without that too since
// generation falls back to the template.
func (c *Config) ValidateCredentials() []string {
	var missing []string
	if c.XAPIKey == "" {
		missing = append(missing, "X_API_KEY is not set")
	}
	if c.XAPISecret == "" {
		missing = append(missing, "X_API_SECRET is not set")
	}
	if c.XAccessToken == "" {
		missing = append(missing, "X_ACCESS_TOKEN is not set")
	}
	if c.XAccessTokenSecret == "" {
		missing = append(missing, "X_ACCESS_TOKEN_SECRET is not set")
	}
	if c.GroqAPIKey == "" {
		missing = append(missing, "GROQ_API_KEY is not set")
	}
	return missing
}

// Location resolves the configured IANA timezone. Load has already
// validated it, so failures here only happen with a hand-built Config.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}
