package config

import "testing"

func TestEnvOverrideHome(t *testing.T) {
	override := t.TempDir()
	t.Setenv("ENGRAM_HOME", override)
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := Load("/some/other/place")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Home != override {
		t.Errorf("Home = %q, want ENGRAM_HOME %q", cfg.Home, override)
	}
}

func TestEnvOverrideAPIKey(t *testing.T) {
	t.Setenv("ENGRAM_HOME", "")
	t.Setenv("GEMINI_API_KEY", "test-key-123")
	t.Setenv("ENGRAM_EMBEDDING_API_KEY", "")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Embedding.APIKey != "test-key-123" {
		t.Errorf("APIKey = %q, want test-key-123", cfg.Embedding.APIKey)
	}
	if cfg.Embedding.Provider != ProviderGenAI {
		t.Errorf("Provider = %q, want genai", cfg.Embedding.Provider)
	}
}

func TestEnvOverrideSpecificKeyWins(t *testing.T) {
	t.Setenv("ENGRAM_HOME", "")
	t.Setenv("GEMINI_API_KEY", "generic")
	t.Setenv("ENGRAM_EMBEDDING_API_KEY", "specific")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Embedding.APIKey != "specific" {
		t.Errorf("APIKey = %q, want specific", cfg.Embedding.APIKey)
	}
}

func TestEnvOverrideProviderAndOllamaHost(t *testing.T) {
	t.Setenv("ENGRAM_HOME", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("ENGRAM_EMBEDDING_PROVIDER", ProviderOllama)
	t.Setenv("OLLAMA_HOST", "http://gpu-box:11434")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Embedding.Provider != ProviderOllama {
		t.Errorf("Provider = %q, want ollama", cfg.Embedding.Provider)
	}
	if cfg.Embedding.BaseURL != "http://gpu-box:11434" {
		t.Errorf("BaseURL = %q", cfg.Embedding.BaseURL)
	}
}

func TestEnvOverridePort(t *testing.T) {
	t.Setenv("ENGRAM_HOME", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("ENGRAM_PORT", "9999")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Daemon.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Daemon.Port)
	}

	// Garbage port is ignored.
	t.Setenv("ENGRAM_PORT", "not-a-port")
	cfg, err = Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Daemon.Port != 7377 {
		t.Errorf("Port = %d, want default after bad env", cfg.Daemon.Port)
	}
}

func TestEnvOverrideDebug(t *testing.T) {
	t.Setenv("ENGRAM_HOME", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("ENGRAM_DEBUG", "1")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Logging.DebugMode {
		t.Error("DebugMode should be on with ENGRAM_DEBUG=1")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Logging.Level)
	}
}
