// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.ringan/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: provider, model, embedder, generation timeouts
//   - Retrieval: top-k, embedding dimension
//   - Session: history bound, idle TTL
//   - Feedback: sentiment score thresholds for next-action selection
//   - Storage: PostgreSQL connection (see storage.go)
//   - Serve: HTTP address, CORS, rate limiting
//
// Security: sensitive values (postgres password) are masked in MarshalJSON.
// Validation: range checks in validation.go with sentinel errors; a config
// that fails validation must prevent the process from serving.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGoogleAI = "googleai"
	ProviderOllama   = "ollama"
)

// Default tunables. The feedback thresholds and retrieval k mirror the values
// the product shipped with; they are exposed as configuration because nobody
// has ever demonstrated they are optimal.
const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	DefaultEmbedderModel = "text-embedding-004"

	// DefaultEmbedderDimension matches the passages table vector column.
	// Changing it requires a migration and a full reindex.
	DefaultEmbedderDimension = 768

	// DefaultTopK is the default number of passages retrieved per query.
	DefaultTopK = 5

	// DefaultPositiveThreshold and DefaultNegativeThreshold split sentiment
	// scores into CONTINUE / ASK_FOLLOW_UP / SHOW_ALTERNATIVES bands.
	DefaultPositiveThreshold = 0.3
	DefaultNegativeThreshold = -0.3

	// DefaultMaxTurns bounds per-session history; oldest turns drop first.
	DefaultMaxTurns = 40

	// DefaultSessionTTL evicts sessions idle longer than this.
	DefaultSessionTTL = 2 * time.Hour
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// AI provider and model configuration
	Provider    string  `mapstructure:"provider" json:"provider"`
	ModelName   string  `mapstructure:"model_name" json:"model_name"`
	Temperature float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`
	Language    string  `mapstructure:"language" json:"language"` // answer language, e.g. "English"

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Retrieval configuration
	EmbedderModel     string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedderDimension int    `mapstructure:"embedder_dimension" json:"embedder_dimension"`
	RetrievalTopK     int    `mapstructure:"retrieval_top_k" json:"retrieval_top_k"`

	// External-call timeouts (seconds)
	EmbedTimeoutSec    int `mapstructure:"embed_timeout_sec" json:"embed_timeout_sec"`
	SearchTimeoutSec   int `mapstructure:"search_timeout_sec" json:"search_timeout_sec"`
	GenerateTimeoutSec int `mapstructure:"generate_timeout_sec" json:"generate_timeout_sec"`

	// Session configuration
	SessionMaxTurns  int `mapstructure:"session_max_turns" json:"session_max_turns"`
	SessionTTLMin    int `mapstructure:"session_ttl_min" json:"session_ttl_min"`
	MaxMessageLength int `mapstructure:"max_message_length" json:"max_message_length"`

	// Feedback configuration
	PositiveThreshold float64 `mapstructure:"positive_threshold" json:"positive_threshold"`
	NegativeThreshold float64 `mapstructure:"negative_threshold" json:"negative_threshold"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Serve configuration
	HTTPAddr       string   `mapstructure:"http_addr" json:"http_addr"`
	CORSOrigins    []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy     bool     `mapstructure:"trust_proxy" json:"trust_proxy"`
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps" json:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst" json:"rate_limit_burst"`
}

// EmbedTimeout returns the embedding call timeout as a duration.
func (c *Config) EmbedTimeout() time.Duration {
	return time.Duration(c.EmbedTimeoutSec) * time.Second
}

// SearchTimeout returns the vector search timeout as a duration.
func (c *Config) SearchTimeout() time.Duration {
	return time.Duration(c.SearchTimeoutSec) * time.Second
}

// GenerateTimeout returns the generation call timeout as a duration.
func (c *Config) GenerateTimeout() time.Duration {
	return time.Duration(c.GenerateTimeoutSec) * time.Second
}

// SessionTTL returns the idle-session eviction TTL as a duration.
func (c *Config) SessionTTL() time.Duration {
	if c.SessionTTLMin <= 0 {
		return DefaultSessionTTL
	}
	return time.Duration(c.SessionTTLMin) * time.Minute
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".ringan")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL, when set, overrides the individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	// Fail fast: a process with invalid configuration must not serve.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderGoogleAI)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("max_tokens", 2048)
	viper.SetDefault("language", "English")
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// Retrieval defaults
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("embedder_dimension", DefaultEmbedderDimension)
	viper.SetDefault("retrieval_top_k", DefaultTopK)

	// Timeout defaults
	viper.SetDefault("embed_timeout_sec", 10)
	viper.SetDefault("search_timeout_sec", 10)
	viper.SetDefault("generate_timeout_sec", 60)

	// Session defaults
	viper.SetDefault("session_max_turns", DefaultMaxTurns)
	viper.SetDefault("session_ttl_min", int(DefaultSessionTTL/time.Minute))
	viper.SetDefault("max_message_length", 4000)

	// Feedback defaults
	viper.SetDefault("positive_threshold", DefaultPositiveThreshold)
	viper.SetDefault("negative_threshold", DefaultNegativeThreshold)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "ringan")
	viper.SetDefault("postgres_password", "ringan_dev_password")
	viper.SetDefault("postgres_db_name", "ringan")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Serve defaults
	viper.SetDefault("http_addr", ":8080")
	viper.SetDefault("cors_origins", []string{"http://localhost:3000"})
	viper.SetDefault("trust_proxy", false)
	viper.SetDefault("rate_limit_rps", 5.0)
	viper.SetDefault("rate_limit_burst", 20)
}

// bindEnvVariables binds environment variable overrides explicitly.
// GEMINI_API_KEY is read directly by Genkit, not via viper; Validate()
// checks its presence when the googleai provider is selected.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "RINGAN_PROVIDER")
	mustBind("model_name", "RINGAN_MODEL_NAME")
	mustBind("embedder_model", "RINGAN_EMBEDDER_MODEL")
	mustBind("ollama_host", "RINGAN_OLLAMA_HOST")
	mustBind("language", "RINGAN_LANGUAGE")
	mustBind("http_addr", "RINGAN_HTTP_ADDR")
	mustBind("cors_origins", "RINGAN_CORS_ORIGINS")
	mustBind("trust_proxy", "RINGAN_TRUST_PROXY")
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
// When adding new secret fields, mask them here.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config // avoid recursion
	masked := alias(c)
	if masked.PostgresPassword != "" {
		masked.PostgresPassword = maskedValue
	}
	return json.Marshal(masked)
}
