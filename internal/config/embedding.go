package config

import (
	"fmt"
	"time"
)

// Embedding providers.
const (
	ProviderGenAI  = "genai"
	ProviderOllama = "ollama"
	ProviderMock   = "mock"
)

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // genai, ollama, mock
	APIKey     string `yaml:"api_key,omitempty"`
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url,omitempty"`
	Dimensions int    `yaml:"dimensions"`
	Timeout    string `yaml:"timeout"`
}

func defaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		Provider:   ProviderGenAI,
		Model:      "gemini-embedding-001",
		Dimensions: 768,
		Timeout:    "30s",
	}
}

func (e EmbeddingConfig) validate() error {
	switch e.Provider {
	case ProviderGenAI, ProviderOllama, ProviderMock:
	default:
		return fmt.Errorf("invalid embedding provider %q (valid: %s, %s, %s)",
			e.Provider, ProviderGenAI, ProviderOllama, ProviderMock)
	}
	if e.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive, got %d", e.Dimensions)
	}
	return nil
}

// GetEmbeddingTimeout returns the embedding call timeout as a duration.
func (c *Config) GetEmbeddingTimeout() time.Duration {
	d, err := time.ParseDuration(c.Embedding.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}
