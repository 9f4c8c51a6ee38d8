package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
)

// Sentinel errors for configuration validation.
// All of them are fatal at startup: the process must refuse to serve.
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidEmbedder indicates the embedder model or dimension is invalid.
	ErrInvalidEmbedder = errors.New("invalid embedder configuration")

	// ErrInvalidTopK indicates the retrieval top-k is out of range.
	ErrInvalidTopK = errors.New("invalid retrieval top-k")

	// ErrInvalidThresholds indicates the feedback thresholds are inconsistent.
	ErrInvalidThresholds = errors.New("invalid feedback thresholds")

	// ErrInvalidTimeout indicates an external-call timeout is out of range.
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrInvalidSessionBound indicates the session history bound is invalid.
	ErrInvalidSessionBound = errors.New("invalid session bound")

	// ErrInvalidPostgres indicates the PostgreSQL connection settings are invalid.
	ErrInvalidPostgres = errors.New("invalid PostgreSQL configuration")
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// Provider and credentials. GEMINI_API_KEY is consumed by Genkit directly;
	// its absence only matters for the googleai provider.
	switch c.Provider {
	case ProviderGoogleAI:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required for provider %q",
				ErrMissingAPIKey, c.Provider)
		}
	case ProviderOllama:
		if c.OllamaHost == "" {
			return fmt.Errorf("%w: ollama_host cannot be empty for provider %q",
				ErrInvalidProvider, c.Provider)
		}
	default:
		return fmt.Errorf("%w: %q (must be %q or %q)",
			ErrInvalidProvider, c.Provider, ProviderGoogleAI, ProviderOllama)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	if c.MaxTokens < 1 || c.MaxTokens > 2097152 {
		return fmt.Errorf("%w: must be between 1 and 2,097,152, got %d", ErrInvalidMaxTokens, c.MaxTokens)
	}

	// Retrieval settings. The embedding dimension must match the passages
	// table vector column; a mismatch corrupts every similarity result, so it
	// is rejected here rather than discovered per-request.
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedder)
	}
	if c.EmbedderDimension < 1 || c.EmbedderDimension > 4096 {
		return fmt.Errorf("%w: embedder_dimension must be between 1 and 4096, got %d",
			ErrInvalidEmbedder, c.EmbedderDimension)
	}
	if c.RetrievalTopK < 1 || c.RetrievalTopK > 50 {
		return fmt.Errorf("%w: must be between 1 and 50, got %d", ErrInvalidTopK, c.RetrievalTopK)
	}

	// Feedback thresholds split [-1,1] into three bands; the negative bound
	// must sit strictly below the positive one or the middle band vanishes.
	if c.PositiveThreshold <= 0 || c.PositiveThreshold > 1 {
		return fmt.Errorf("%w: positive_threshold must be in (0,1], got %.2f",
			ErrInvalidThresholds, c.PositiveThreshold)
	}
	if c.NegativeThreshold >= 0 || c.NegativeThreshold < -1 {
		return fmt.Errorf("%w: negative_threshold must be in [-1,0), got %.2f",
			ErrInvalidThresholds, c.NegativeThreshold)
	}

	for name, sec := range map[string]int{
		"embed_timeout_sec":    c.EmbedTimeoutSec,
		"search_timeout_sec":   c.SearchTimeoutSec,
		"generate_timeout_sec": c.GenerateTimeoutSec,
	} {
		if sec < 1 || sec > 600 {
			return fmt.Errorf("%w: %s must be between 1 and 600, got %d", ErrInvalidTimeout, name, sec)
		}
	}

	if c.SessionMaxTurns < 2 {
		return fmt.Errorf("%w: session_max_turns must be at least 2, got %d",
			ErrInvalidSessionBound, c.SessionMaxTurns)
	}
	if c.MaxMessageLength < 1 {
		return fmt.Errorf("%w: max_message_length must be positive, got %d",
			ErrInvalidSessionBound, c.MaxMessageLength)
	}

	// PostgreSQL settings.
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgres)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: port must be between 1 and 65535, got %d", ErrInvalidPostgres, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgres)
	}
	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set", ErrInvalidPostgres)
	}
	if c.PostgresPassword == "ringan_dev_password" {
		slog.Warn("using default development password for PostgreSQL",
			"warning", "change postgres_password for production deployments")
	}

	// Modern SSL modes only - the deprecated allow/prefer modes are MITM vulnerable.
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: ssl mode %q is not valid, must be one of: %v",
			ErrInvalidPostgres, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
