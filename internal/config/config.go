package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Token store backends
const (
	TokenStoreMemory = "memory"
	TokenStoreRedis  = "redis"
)

// Config holds the client configuration
type Config struct {
	API     APIConfig     `yaml:"api"`
	Log     LogConfig     `yaml:"log"`
	Session SessionConfig `yaml:"session"`
	Redis   RedisConfig   `yaml:"redis"`
}

// APIConfig selects the backend
type APIConfig struct {
	BaseURL        string `yaml:"base_url"`        // Backend origin, e.g. http://localhost:8000
	TimeoutSeconds int    `yaml:"timeout_seconds"` // Per-call timeout (default: 10)
}

// Timeout returns the per-call timeout as a duration
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LogConfig controls zerolog output
type LogConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // console|json
}

// SessionConfig controls where the session lives between calls
type SessionConfig struct {
	TokenStore string `yaml:"token_store"` // memory|redis
	Key        string `yaml:"key"`         // Browsing-session id (default: random per process)
	TTLSeconds int    `yaml:"ttl_seconds"` // Idle lifetime of the stored token (default: 1800)
	CookieFile string `yaml:"cookie_file"` // Where the refresh cookie is kept; empty keeps it in memory
}

// TTL returns the token store TTL as a duration
func (c SessionConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// RedisConfig holds redis connection settings for the redis token store
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL:        "http://localhost:8000",
			TimeoutSeconds: 10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Session: SessionConfig{
			TokenStore: TokenStoreMemory,
			TTLSeconds: 1800,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
	}
}

// LoadConfig loads configuration from the file named by FILMFLARE_CONFIG (if
// any) and then from environment variables.
func LoadConfig() (*Config, error) {
	return Load(os.Getenv("FILMFLARE_CONFIG"))
}

// Load reads path (a missing file is not an error), applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromYAML(path, &cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(&cfg)

	if cfg.Session.Key == "" {
		cfg.Session.Key = uuid.NewString()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("API_BASE_URL is required")
	}
	if c.API.TimeoutSeconds <= 0 {
		return fmt.Errorf("invalid API timeout: %d", c.API.TimeoutSeconds)
	}
	switch c.Session.TokenStore {
	case TokenStoreMemory:
	case TokenStoreRedis:
		if c.Redis.Addr == "" {
			return errors.New("REDIS_ADDR is required for the redis token store")
		}
	default:
		return fmt.Errorf("unknown token store %q", c.Session.TokenStore)
	}
	if c.Session.TTLSeconds <= 0 {
		return fmt.Errorf("invalid session TTL: %d", c.Session.TTLSeconds)
	}
	return nil
}

func loadFromYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("unmarshal config yaml: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.API.BaseURL = getEnv("API_BASE_URL", cfg.API.BaseURL)
	cfg.API.TimeoutSeconds = getEnvAsInt("API_TIMEOUT", cfg.API.TimeoutSeconds)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
	cfg.Session.TokenStore = strings.ToLower(getEnv("TOKEN_STORE", cfg.Session.TokenStore))
	cfg.Session.Key = getEnv("SESSION_KEY", cfg.Session.Key)
	cfg.Session.TTLSeconds = getEnvAsInt("SESSION_TTL", cfg.Session.TTLSeconds)
	cfg.Session.CookieFile = getEnv("COOKIE_FILE", cfg.Session.CookieFile)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
