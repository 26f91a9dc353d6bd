package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/DevRickLin/tpp-chat-filter/internal/biz/usecase"
	"github.com/DevRickLin/tpp-chat-filter/internal/data"
	"github.com/DevRickLin/tpp-chat-filter/internal/server"
)

// Config represents application configuration
type Config struct {
	Storage StorageConfig
	API     APIConfig
	Filter  FilterConfig
	Feishu  FeishuConfig
	Relay   RelayConfig

	// Debug mode
	Debug bool `env:"DEBUG" envDefault:"false"`
}

// StorageConfig selects where settings are persisted
type StorageConfig struct {
	Backend   string `env:"STORAGE_BACKEND" envDefault:"sqlite"` // sqlite, json, memory
	DBPath    string `env:"DB_PATH"`
	StorePath string `env:"STORE_PATH"`
}

// APIConfig contains HTTP API configuration
type APIConfig struct {
	Port int    `env:"API_PORT" envDefault:"9876"`
	URL  string `env:"FILTER_API_URL"` // Used by clients such as the MCP server
}

// FilterConfig contains engine configuration
type FilterConfig struct {
	CatalogPath     string        `env:"CATALOG_PATH"`
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"250ms"`
	BufferSize      int           `env:"BUFFER_SIZE" envDefault:"200"`
	BufferMaxAge    time.Duration `env:"BUFFER_MAX_AGE" envDefault:"30m"`
	SelfName        string        `env:"SELF_NAME"` // Bot broadcasts mentioning this name stay visible
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string `env:"FEISHU_APP_ID"`
	AppSecret string `env:"FEISHU_APP_SECRET"`
}

// RelayConfig contains relay configuration
type RelayConfig struct {
	SourceChatID string  `env:"RELAY_SOURCE_CHAT_ID"`
	TargetChatID string  `env:"RELAY_TARGET_CHAT_ID"`
	Rate         float64 `env:"RELAY_RATE" envDefault:"1"`
	Burst        int     `env:"RELAY_BURST" envDefault:"3"`
	Backfill     int     `env:"RELAY_BACKFILL" envDefault:"50"` // History lines loaded on start, 0 disables
}

// Load reads .env (if present) and the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Printf("[Config] Failed to read .env: %v\n", err)
	}
	return LoadFromEnv()
}

// LoadFromEnv parses configuration from environment variables
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	homeDir, _ := os.UserHomeDir()
	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = filepath.Join(homeDir, ".tpp-chat-filter", "settings.db")
	}
	if cfg.Storage.StorePath == "" {
		cfg.Storage.StorePath = filepath.Join(homeDir, ".tpp-chat-filter", "settings.json")
	}
	if cfg.API.URL == "" {
		cfg.API.URL = fmt.Sprintf("http://localhost:%d", cfg.API.Port)
	}
	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case data.BackendSQLite, data.BackendJSON, data.BackendMemory:
	default:
		return &ConfigError{Field: "STORAGE_BACKEND", Message: fmt.Sprintf("unknown backend %q", c.Storage.Backend)}
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return &ConfigError{Field: "API_PORT", Message: "must be between 1 and 65535"}
	}
	if c.Filter.RefreshInterval <= 0 {
		return &ConfigError{Field: "REFRESH_INTERVAL", Message: "must be positive"}
	}
	if c.Filter.BufferSize <= 0 {
		return &ConfigError{Field: "BUFFER_SIZE", Message: "must be positive"}
	}
	return nil
}

// ValidateRelay checks the settings the Feishu relay needs
func (c *Config) ValidateRelay() error {
	if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
		return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required"}
	}
	if c.Relay.SourceChatID == "" {
		return &ConfigError{Field: "RELAY_SOURCE_CHAT_ID", Message: "required"}
	}
	if c.Relay.Rate <= 0 {
		return &ConfigError{Field: "RELAY_RATE", Message: "must be positive"}
	}
	return nil
}

// FeishuEnabled reports whether Feishu credentials are set
func (c *Config) FeishuEnabled() bool {
	return c.Feishu.AppID != "" && c.Feishu.AppSecret != ""
}

// ToStorageOptions converts to data storage options
func (c *Config) ToStorageOptions() data.StorageOptions {
	return data.StorageOptions{
		Backend:   c.Storage.Backend,
		DBPath:    c.Storage.DBPath,
		StorePath: c.Storage.StorePath,
	}
}

// ToBufferConfig converts to line buffer configuration
func (c *Config) ToBufferConfig() usecase.BufferConfig {
	return usecase.BufferConfig{
		Capacity: c.Filter.BufferSize,
		MaxAge:   c.Filter.BufferMaxAge,
	}
}

// ToRelayConfig converts to relay configuration
func (c *Config) ToRelayConfig() server.RelayConfig {
	return server.RelayConfig{
		SourceChatID: c.Relay.SourceChatID,
		TargetChatID: c.Relay.TargetChatID,
		Rate:         c.Relay.Rate,
		Burst:        c.Relay.Burst,
	}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
