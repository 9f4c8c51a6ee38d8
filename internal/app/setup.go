package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"

	"github.com/ringan-ai/ringan/db"
	"github.com/ringan-ai/ringan/internal/assistant"
	"github.com/ringan-ai/ringan/internal/config"
	"github.com/ringan-ai/ringan/internal/database"
	"github.com/ringan-ai/ringan/internal/feedback"
	"github.com/ringan-ai/ringan/internal/index"
	"github.com/ringan-ai/ringan/internal/kb"
	"github.com/ringan-ai/ringan/internal/rag"
	"github.com/ringan-ai/ringan/internal/session"
)

// Setup builds the full application from configuration: database pool with
// migrations applied, Genkit with the configured provider, stores, the
// retrieval pipeline, and the assistant. On error everything already
// initialized is released. A nil logger falls back to slog.Default.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		Config: cfg,
		Logger: logger,
	}

	defer func() {
		if retErr != nil {
			a.Close()
		}
	}()

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("applying migrations: %w", err)
	}

	pool, err := database.Open(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.Pool = pool

	g, embedder, err := provideGenkit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Genkit = g
	a.Embedder = embedder

	a.KB = kb.New(pool, a.Logger)
	a.Index = index.New(pool, cfg.EmbedderDimension, a.Logger)

	a.Sessions, err = session.NewStore(session.Config{
		MaxTurns: cfg.SessionMaxTurns,
		TTL:      cfg.SessionTTL(),
		Logger:   a.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating session store: %w", err)
	}

	modelName := qualifiedModelName(cfg)

	a.Condenser, err = rag.NewCondenser(rag.CondenserConfig{
		Genkit:    g,
		ModelName: modelName,
		Timeout:   cfg.GenerateTimeout(),
		Logger:    a.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating condenser: %w", err)
	}

	a.Retriever, err = rag.NewRetriever(rag.RetrieverConfig{
		Embedder: embedder,
		Index:    a.Index,
		TopK:     cfg.RetrievalTopK,
		Timeout:  cfg.EmbedTimeout() + cfg.SearchTimeout(),
		Logger:   a.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating retriever: %w", err)
	}

	a.Generator, err = rag.NewGenerator(rag.GeneratorConfig{
		Genkit:    g,
		ModelName: modelName,
		Language:  cfg.Language,
		Timeout:   cfg.GenerateTimeout(),
		Logger:    a.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating generator: %w", err)
	}

	a.Analyzer, err = feedback.NewAnalyzer(feedback.AnalyzerConfig{
		Genkit:    g,
		ModelName: modelName,
		Timeout:   cfg.GenerateTimeout(),
		Logger:    a.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating analyzer: %w", err)
	}

	a.Feedback = feedback.NewStore(pool, a.Logger)

	a.Assistant, err = assistant.New(assistant.Config{
		Condenser: a.Condenser,
		Retriever: a.Retriever,
		Generator: a.Generator,
		Sessions:  a.Sessions,
		Analyzer:  a.Analyzer,
		Feedback:  a.Feedback,
		Policy: feedback.Policy{
			PositiveThreshold: cfg.PositiveThreshold,
			NegativeThreshold: cfg.NegativeThreshold,
		},
		MaxMessageLength: cfg.MaxMessageLength,
		Logger:           a.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating assistant: %w", err)
	}

	return a, nil
}

// provideGenkit initializes Genkit with the configured provider and returns
// the embedder for retrieval. Ollama needs explicit model and embedder
// registration; Google AI registers its catalog during Init.
func provideGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, ai.Embedder, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		plugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(plugin))
		if g == nil {
			return nil, nil, errors.New("initializing genkit with ollama provider")
		}
		plugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		plugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		embedder := ollama.Embedder(g, cfg.OllamaHost)
		if embedder == nil {
			return nil, nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
		}
		return g, embedder, nil

	case config.ProviderGoogleAI:
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, nil, errors.New("initializing genkit with googleai provider")
		}
		embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
		if embedder == nil {
			return nil, nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
		}
		return g, embedder, nil

	default:
		return nil, nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// qualifiedModelName prefixes the configured model with its provider
// namespace as registered in the Genkit model catalog.
func qualifiedModelName(cfg *config.Config) string {
	return cfg.Provider + "/" + cfg.ModelName
}
