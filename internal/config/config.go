// Package config loads and persists engram configuration. Everything lives in
// one YAML file at {home}/config.yaml; environment variables override file
// values so hooks and CI can steer a daemon without editing it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ServerName and Version identify the daemon on /health.
const (
	ServerName = "engram"
	Version    = "0.4.0"
)

// Config holds all engram configuration.
type Config struct {
	// Home is the state directory. Not serialized: it decides where the
	// config itself lives.
	Home string `yaml:"-"`

	Embedding EmbeddingConfig `yaml:"embedding"`
	Vector    VectorConfig    `yaml:"vector"`
	Daemon    DaemonConfig    `yaml:"daemon"`
	Hooks     HooksConfig     `yaml:"hooks"`
	Worktree  WorktreeConfig  `yaml:"worktree"`
	Gates     GatesConfig     `yaml:"gates"`
	Cluster   ClusterConfig   `yaml:"cluster"`
	Values    ValuesConfig    `yaml:"values"`
	Search    SearchConfig    `yaml:"search"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// VectorConfig configures the vector store backend.
type VectorConfig struct {
	// Path to the sqlite vector database, relative to home unless absolute.
	Path string `yaml:"path"`
}

// LoggingConfig configures categorized file logging. The logging package
// re-parses the same block to avoid an import cycle.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Categories map[string]bool `yaml:"categories,omitempty"`
	JSONFormat bool            `yaml:"json_format"`
}

// DefaultHome returns ~/.engram, or a relative fallback when the user home
// cannot be resolved.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".engram"
	}
	return filepath.Join(home, ".engram")
}

// DefaultConfig returns the default configuration rooted at home.
func DefaultConfig(home string) *Config {
	if home == "" {
		home = DefaultHome()
	}
	return &Config{
		Home:      home,
		Embedding: defaultEmbeddingConfig(),
		Vector:    VectorConfig{Path: "vectors.db"},
		Daemon:    defaultDaemonConfig(),
		Hooks:     defaultHooksConfig(),
		Worktree:  defaultWorktreeConfig(),
		Gates:     defaultGatesConfig(),
		Cluster:   defaultClusterConfig(),
		Values:    defaultValuesConfig(),
		Search:    defaultSearchConfig(),
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load reads {home}/config.yaml, falling back to defaults when absent, then
// applies environment overrides. ENGRAM_HOME wins over the home argument.
func Load(home string) (*Config, error) {
	if env := os.Getenv("ENGRAM_HOME"); env != "" {
		home = env
	}
	if home == "" {
		home = DefaultHome()
	}

	cfg := DefaultConfig(home)

	data, err := os.ReadFile(cfg.Path())
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Home = home

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to {home}/config.yaml.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.Home, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.Path(), data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Embedding.APIKey = key
		if c.Embedding.Provider == "" {
			c.Embedding.Provider = ProviderGenAI
		}
	}
	if key := os.Getenv("ENGRAM_EMBEDDING_API_KEY"); key != "" {
		c.Embedding.APIKey = key
	}
	if p := os.Getenv("ENGRAM_EMBEDDING_PROVIDER"); p != "" {
		c.Embedding.Provider = p
	}
	if host := os.Getenv("OLLAMA_HOST"); host != "" && c.Embedding.Provider == ProviderOllama {
		c.Embedding.BaseURL = host
	}
	if port := os.Getenv("ENGRAM_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil && n > 0 {
			c.Daemon.Port = n
		}
	}
	if debug := os.Getenv("ENGRAM_DEBUG"); debug == "1" || debug == "true" {
		c.Logging.DebugMode = true
		c.Logging.Level = "debug"
	}
}

// Validate checks cross-field consistency. It does not require an API key:
// the mock provider and ollama run without one.
func (c *Config) Validate() error {
	if err := c.Embedding.validate(); err != nil {
		return err
	}
	if c.Daemon.Port <= 0 || c.Daemon.Port > 65535 {
		return fmt.Errorf("invalid daemon port %d", c.Daemon.Port)
	}
	if c.Cluster.MinClusterSize < 2 {
		return fmt.Errorf("cluster min_cluster_size must be >= 2, got %d", c.Cluster.MinClusterSize)
	}
	if c.Cluster.MinSamples < 1 {
		return fmt.Errorf("cluster min_samples must be >= 1, got %d", c.Cluster.MinSamples)
	}
	if c.Values.SimilarityThreshold <= 0 || c.Values.SimilarityThreshold > 1 {
		return fmt.Errorf("values similarity_threshold must be in (0,1], got %v", c.Values.SimilarityThreshold)
	}
	return nil
}

// =============================================================================
// STATE LAYOUT
// =============================================================================

// Path returns the config file location.
func (c *Config) Path() string { return filepath.Join(c.Home, "config.yaml") }

// MetadataDBPath returns the relational store location.
func (c *Config) MetadataDBPath() string { return filepath.Join(c.Home, "metadata.db") }

// VectorDBPath resolves the vector store location against home.
func (c *Config) VectorDBPath() string {
	if filepath.IsAbs(c.Vector.Path) {
		return c.Vector.Path
	}
	return filepath.Join(c.Home, c.Vector.Path)
}

// PIDPath returns the daemon PID file location.
func (c *Config) PIDPath() string { return filepath.Join(c.Home, "server.pid") }

// LogPath returns the daemon stderr log location.
func (c *Config) LogPath() string { return filepath.Join(c.Home, "server.log") }

// CounterPath returns the per-session tool counter file.
func (c *Config) CounterPath() string { return filepath.Join(c.Home, "tool_count") }

// SessionPath returns the current session id file.
func (c *Config) SessionPath() string { return filepath.Join(c.Home, "session_id") }

// JournalDir returns the journal directory.
func (c *Config) JournalDir() string { return filepath.Join(c.Home, "journal") }

// BackupDir returns the metadata backup directory.
func (c *Config) BackupDir() string { return filepath.Join(c.Home, "backups") }

// layoutDirs are created on first run so every component can assume its
// directory exists.
var layoutDirs = []string{
	"logs",
	"journal",
	filepath.Join("journal", "archive"),
	"workflows",
	"roles",
	"sessions",
	"skills",
	"backups",
}

// EnsureLayout creates the home directory tree.
func (c *Config) EnsureLayout() error {
	for _, dir := range append([]string{""}, layoutDirs...) {
		if err := os.MkdirAll(filepath.Join(c.Home, dir), 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", filepath.Join(c.Home, dir), err)
		}
	}
	return nil
}
