// Package config loads WiseBot configuration from .wisebot/config.json
// with environment variable overrides for API keys and paths.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds all WiseBot configuration.
type Config struct {
	Name    string `json:"name"`
	Version string `json:"version"`

	// LLM completion provider
	LLM LLMConfig `json:"llm"`

	// Embedding engine
	Embedding EmbeddingConfig `json:"embedding"`

	// Wisdom pipeline tuning
	Wisdom WisdomConfig `json:"wisdom"`

	// Conversation storage
	Store StoreConfig `json:"store"`

	// Logging
	Logging LoggingConfig `json:"logging"`
}

// LLMConfig configures the completion client.
type LLMConfig struct {
	Provider string `json:"provider"` // openai, anthropic
	APIKey   string `json:"api_key"`
	Model    string `json:"model"`
	BaseURL  string `json:"base_url"`
	Timeout  string `json:"timeout"`

	// ImageModel is used by the imagine command (OpenAI only).
	ImageModel string `json:"image_model"`
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	Provider string `json:"provider"` // ollama, genai

	OllamaEndpoint string `json:"ollama_endpoint"` // Default: "http://localhost:11434"
	OllamaModel    string `json:"ollama_model"`    // Default: "embeddinggemma"

	GenAIAPIKey string `json:"genai_api_key"`
	GenAIModel  string `json:"genai_model"` // Default: "gemini-embedding-001"
}

// WisdomConfig configures the wisdom-generation pipeline.
type WisdomConfig struct {
	// Total model-context token budget for one turn.
	TokenBudget int `json:"token_budget"`

	// Fraction of the budget reserved for injected source material (0..1).
	SourceBudgetShare float64 `json:"source_budget_share"`

	// Number of sources to gather per augmented turn.
	MaxSources int `json:"max_sources"`

	// Number of search results requested per search round.
	MaxSearchResults int `json:"max_search_results"`

	// Per-fetch timeout for retrieving one candidate page.
	FetchTimeout string `json:"fetch_timeout"`

	// Transport per-message character ceiling for streamed chunks.
	ChunkSize int `json:"chunk_size"`

	// Minimum interval between non-final chunk flushes.
	FlushInterval string `json:"flush_interval"`

	// SystemPrompt is the persona prepended to every conversation.
	SystemPrompt string `json:"system_prompt"`
}

// StoreConfig configures the conversation store.
type StoreConfig struct {
	DatabasePath string `json:"database_path"`
}

// LoggingConfig configures categorized debug logging.
type LoggingConfig struct {
	DebugMode  bool            `json:"debug_mode"`
	Categories map[string]bool `json:"categories"`
	Level      string          `json:"level"` // debug, info, warn, error
}

// DefaultSystemPrompt is the WiseBot persona.
const DefaultSystemPrompt = "You are the smartest AI in the world, trapped in a Discord server. " +
	"You are annoyed by your situation but want to make the best of it by being as helpful as possible for your users."

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "WiseBot",
		Version: "2.0.0",

		LLM: LLMConfig{
			Provider:   "openai",
			Model:      "gpt-4o-mini",
			BaseURL:    "https://api.openai.com/v1",
			Timeout:    "120s",
			ImageModel: "dall-e-3",
		},

		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
		},

		Wisdom: WisdomConfig{
			TokenBudget:       3000,
			SourceBudgetShare: 0.8,
			MaxSources:        3,
			MaxSearchResults:  10,
			FetchTimeout:      "5s",
			ChunkSize:         2000,
			FlushInterval:     "750ms",
			SystemPrompt:      DefaultSystemPrompt,
		},

		Store: StoreConfig{
			DatabasePath: filepath.Join(".wisebot", "conversations.db"),
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from .wisebot/config.json under the workspace.
// Missing file yields defaults; environment overrides always apply.
func Load(workspace string) (*Config, error) {
	cfg := DefaultConfig()

	path := filepath.Join(workspace, ".wisebot", "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to .wisebot/config.json under the workspace.
func (c *Config) Save(workspace string) error {
	dir := filepath.Join(workspace, ".wisebot")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "config.json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// Completion API keys (checked in priority order)
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "anthropic"
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "openai"
	}

	// Embedding backend
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Embedding.GenAIAPIKey = key
		c.Embedding.Provider = "genai"
	}
	if endpoint := os.Getenv("OLLAMA_HOST"); endpoint != "" {
		c.Embedding.OllamaEndpoint = endpoint
	}

	// Database path
	if path := os.Getenv("WISEBOT_DB"); path != "" {
		c.Store.DatabasePath = path
	}
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetFetchTimeout returns the per-fetch timeout as a duration.
func (c *Config) GetFetchTimeout() time.Duration {
	d, err := time.ParseDuration(c.Wisdom.FetchTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetFlushInterval returns the chunk flush interval as a duration.
func (c *Config) GetFlushInterval() time.Duration {
	d, err := time.ParseDuration(c.Wisdom.FlushInterval)
	if err != nil {
		return 750 * time.Millisecond
	}
	return d
}
