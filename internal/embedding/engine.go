// Package embedding generates vector embeddings for semantic search.
// Supports Google GenAI (cloud), Ollama (local), and a deterministic mock
// for tests and offline operation.
package embedding

import (
	"context"
	"fmt"
	"time"

	"engram/internal/logging"
)

// =============================================================================
// ENGINE INTERFACE
// =============================================================================

// Engine generates vector embeddings for text.
type Engine interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of embeddings.
	Dimensions() int

	// Name returns the engine name.
	Name() string
}

// TaskEmbedder is an optional interface for engines whose backend optimizes
// embeddings per task (indexing a document vs. answering a query). Engines
// without task support use their default everywhere.
type TaskEmbedder interface {
	EmbedWithTask(ctx context.Context, text string, taskType string) ([]float32, error)
}

// HealthChecker is an optional interface for engines that can verify their
// backend is reachable before batch operations.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Providers.
const (
	ProviderGenAI  = "genai"
	ProviderOllama = "ollama"
	ProviderMock   = "mock"
)

// Config holds embedding engine configuration. The daemon maps the yaml
// config onto this so the package stays decoupled from config loading.
type Config struct {
	// Provider: "genai", "ollama", or "mock".
	Provider string

	// APIKey authenticates the GenAI client.
	APIKey string

	// Model names the embedding model. Defaults: gemini-embedding-001 for
	// GenAI, embeddinggemma for Ollama.
	Model string

	// BaseURL points at the Ollama server. Default: http://localhost:11434.
	BaseURL string

	// Dimensions is the vector width. Default 768, matching both default
	// models.
	Dimensions int

	// Timeout bounds a single embedding HTTP call.
	Timeout time.Duration
}

// =============================================================================
// FACTORY
// =============================================================================

// New creates an embedding engine from configuration.
func New(cfg Config) (Engine, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "New")
	defer timer.Stop()

	logging.Embedding("Creating embedding engine: provider=%s model=%s dims=%d",
		cfg.Provider, cfg.Model, cfg.Dimensions)

	var (
		engine Engine
		err    error
	)
	switch cfg.Provider {
	case ProviderGenAI:
		engine, err = NewGenAIEngine(cfg.APIKey, cfg.Model, cfg.Dimensions)
	case ProviderOllama:
		engine, err = NewOllamaEngine(cfg.BaseURL, cfg.Model, cfg.Dimensions, cfg.Timeout)
	case ProviderMock:
		engine = NewMock(cfg.Dimensions)
	default:
		err = fmt.Errorf("unsupported embedding provider: %s (use 'genai', 'ollama', or 'mock')", cfg.Provider)
	}
	if err != nil {
		logging.Get(logging.CategoryEmbedding).Error("Failed to create embedding engine: %v", err)
		return nil, err
	}

	logging.Embedding("Embedding engine ready: name=%s dimensions=%d", engine.Name(), engine.Dimensions())
	return engine, nil
}
