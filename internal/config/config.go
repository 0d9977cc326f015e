// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Provider: OpenRouter endpoint, chat model, embedding model
//   - Vector index: Qdrant URL, API key, collection name
//   - Storage: PostgreSQL connection (DATABASE_URL)
//   - Ingestion: docs directory, admin API key
//   - Server: listen address, CORS origins, rate limit burst
//
// Sensitive values (API keys, database URL) are masked when the config is
// marshaled or printed. Validation is fail-fast: Load returns an error before
// any client is constructed from a bad value.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates a required provider API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrMissingQdrantURL indicates the vector index URL is not set.
	ErrMissingQdrantURL = errors.New("missing Qdrant URL")

	// ErrMissingDatabaseURL indicates the PostgreSQL connection URL is not set.
	ErrMissingDatabaseURL = errors.New("missing database URL")

	// ErrInvalidModelName indicates a model identifier is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidCollection indicates the Qdrant collection name is invalid.
	ErrInvalidCollection = errors.New("invalid collection name")
)

// Defaults matching the deployed service.
const (
	DefaultAddr           = "127.0.0.1:8000"
	DefaultOpenRouterBase = "https://openrouter.ai/api/v1"
	DefaultChatModel      = "qwen/qwen3-max"
	DefaultEmbeddingModel = "openai/text-embedding-3-small"
	DefaultCollection     = "physical-ai-book"
	DefaultDocsPath       = "docs"
	DefaultAdminAPIKey    = "changeme"
	DefaultRateBurst      = 60
)

// Config stores application configuration.
// Sensitive fields are explicitly masked in MarshalJSON; when adding new
// secrets, update that method.
type Config struct {
	// HTTP server
	Addr        string   `mapstructure:"addr" json:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`

	// Model provider (OpenRouter, OpenAI-compatible)
	OpenRouterBaseURL string `mapstructure:"openrouter_base_url" json:"openrouter_base_url"`
	OpenRouterAPIKey  string `mapstructure:"openrouter_api_key" json:"openrouter_api_key"` // SENSITIVE
	ChatModel         string `mapstructure:"chat_model" json:"chat_model"`
	EmbeddingModel    string `mapstructure:"embedding_model" json:"embedding_model"`

	// Vector index
	QdrantURL        string `mapstructure:"qdrant_url" json:"qdrant_url"`
	QdrantAPIKey     string `mapstructure:"qdrant_api_key" json:"qdrant_api_key"` // SENSITIVE
	QdrantCollection string `mapstructure:"qdrant_collection" json:"qdrant_collection"`

	// Session storage
	DatabaseURL string `mapstructure:"database_url" json:"database_url"` // SENSITIVE

	// Ingestion
	DocsPath    string `mapstructure:"docs_path" json:"docs_path"`
	AdminAPIKey string `mapstructure:"admin_api_key" json:"admin_api_key"` // SENSITIVE
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; env vars and defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using environment and defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", DefaultAddr)
	v.SetDefault("cors_origins", []string{
		"http://localhost:3000",
		"http://localhost:3001",
		"http://localhost:3002",
		"http://localhost:3003",
	})
	v.SetDefault("rate_burst", DefaultRateBurst)

	v.SetDefault("openrouter_base_url", DefaultOpenRouterBase)
	v.SetDefault("chat_model", DefaultChatModel)
	v.SetDefault("embedding_model", DefaultEmbeddingModel)

	v.SetDefault("qdrant_collection", DefaultCollection)

	v.SetDefault("docs_path", DefaultDocsPath)
	v.SetDefault("admin_api_key", DefaultAdminAPIKey)
}

// bindEnvVariables binds environment variables explicitly.
// Hardcoded keys cannot fail to bind; a bind error here is a bug.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("addr", "AIBOOK_ADDR")
	mustBind("cors_origins", "AIBOOK_CORS_ORIGINS")
	mustBind("rate_burst", "AIBOOK_RATE_BURST")

	mustBind("openrouter_base_url", "OPENROUTER_BASE_URL")
	mustBind("openrouter_api_key", "OPENROUTER_API_KEY")
	mustBind("chat_model", "CHAT_MODEL")
	mustBind("embedding_model", "EMBEDDING_MODEL")

	mustBind("qdrant_url", "QDRANT_URL")
	mustBind("qdrant_api_key", "QDRANT_API_KEY")
	mustBind("qdrant_collection", "QDRANT_COLLECTION")

	mustBind("database_url", "DATABASE_URL")

	mustBind("docs_path", "AIBOOK_DOCS_PATH")
	mustBind("admin_api_key", "ADMIN_API_KEY")
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Short secrets are fully masked; longer ones keep the first and last two
// characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.OpenRouterAPIKey = maskSecret(a.OpenRouterAPIKey)
	a.QdrantAPIKey = maskSecret(a.QdrantAPIKey)
	a.DatabaseURL = maskSecret(a.DatabaseURL)
	a.AdminAPIKey = maskSecret(a.AdminAPIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
