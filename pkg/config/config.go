package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the briefs service.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// MigrationsPath is the directory holding the SQL migrations.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`

	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	LLM         LLMConfig         `yaml:"llm"`
	Suggestions SuggestionsConfig `yaml:"suggestions"`
	MCP         MCPConfig         `yaml:"mcp"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"briefs"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"ekaya_briefs"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds the optional Redis connection. Empty host disables Redis
// and suggestions stay in process memory.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// Enabled reports whether Redis is configured.
func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}

// LLMConfig selects the suggestion provider.
type LLMConfig struct {
	Provider    string  `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"` // openai | anthropic
	BaseURL     string  `yaml:"base_url" env:"LLM_BASE_URL" env-default:"https://api.openai.com/v1"`
	Model       string  `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o-mini"`
	Temperature float64 `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0.7"`
	MaxTokens   int     `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"1024"`
	APIKey      string  `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
}

// SuggestionsConfig tunes background suggestions and response saves.
type SuggestionsConfig struct {
	// Timeout bounds one suggestion request; past it the question shows no suggestion.
	Timeout time.Duration `yaml:"timeout" env:"SUGGESTIONS_TIMEOUT" env-default:"20s"`
	// MaxConcurrentSaves bounds parallel response saves when leaving a category.
	MaxConcurrentSaves int `yaml:"max_concurrent_saves" env:"SUGGESTIONS_MAX_CONCURRENT_SAVES" env-default:"8"`
	// CacheTTL is how long suggestions live in Redis.
	CacheTTL time.Duration `yaml:"cache_ttl" env:"SUGGESTIONS_CACHE_TTL" env-default:"24h"`
	// BreakerThreshold is the number of consecutive provider failures that opens the circuit.
	BreakerThreshold int `yaml:"breaker_threshold" env:"SUGGESTIONS_BREAKER_THRESHOLD" env-default:"5"`
	// BreakerReset is how long the circuit stays open.
	BreakerReset time.Duration `yaml:"breaker_reset" env:"SUGGESTIONS_BREAKER_RESET" env-default:"30s"`
}

// MCPConfig controls the downstream MCP endpoint for published briefs.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"MCP_ENABLED" env-default:"true"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	return LoadFile("config.yaml", version)
}

// LoadFile is Load with an explicit path.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg.resolveDockerHosts()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.LLM.Provider) {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("llm.provider must be openai or anthropic, got %q", c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2, got %v", c.LLM.Temperature)
	}
	if c.Suggestions.Timeout <= 0 {
		return fmt.Errorf("suggestions.timeout must be positive")
	}
	if c.Suggestions.MaxConcurrentSaves < 1 {
		return fmt.Errorf("suggestions.max_concurrent_saves must be at least 1")
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// URL returns the connection string in URL form, as golang-migrate expects.
func (c *DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}
