package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// LLMProvider represents the configured completion backend
type LLMProvider string

const (
	// LLMProviderOllama uses a locally hosted Ollama server (default)
	LLMProviderOllama LLMProvider = "ollama"
	// LLMProviderClaude uses the Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Logging     LoggingConfig    `toml:"logging"`
	Chunking    ChunkingConfig   `toml:"chunking"`
	Retrieval   RetrievalConfig  `toml:"retrieval"`
	Chat        ChatConfig       `toml:"chat"`
	LLM         LLMConfig        `toml:"llm"`
	Processing  ProcessingConfig `toml:"processing"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// ChunkingConfig controls how manuscripts are split before embedding
type ChunkingConfig struct {
	MaxSize   int `toml:"max_size"`   // Maximum chunk size in characters
	Overlap   int `toml:"overlap"`    // Characters shared between consecutive chunks
	BatchSize int `toml:"batch_size"` // Chunks embedded per batch during import
}

// RetrievalConfig controls similarity search behavior
type RetrievalConfig struct {
	MaxChunks int     `toml:"max_chunks"` // Maximum passages returned per query
	MinScore  float64 `toml:"min_score"`  // Minimum cosine similarity (0.0-1.0)
}

// ChatConfig controls prompt assembly for character conversations
type ChatConfig struct {
	HistoryTurns   int    `toml:"history_turns"`   // Conversation turns rendered into prompts
	StoredTurns    int    `toml:"stored_turns"`    // Conversation turns retained per character
	ContextBudget  int    `toml:"context_budget"`  // Prompt token budget before truncation kicks in
	PromptTemplate string `toml:"prompt_template"` // Optional override of the built-in character template
}

// LLMConfig contains unified configuration for embedding and completion backends
type LLMConfig struct {
	Provider LLMProvider  `toml:"provider"` // "ollama" (default) or "claude"
	Ollama   OllamaConfig `toml:"ollama"`
	Claude   ClaudeConfig `toml:"claude"`
}

// OllamaConfig contains connection details for a local Ollama server
type OllamaConfig struct {
	BaseURL     string  `toml:"base_url"`    // e.g. "http://localhost:11434"
	EmbedModel  string  `toml:"embed_model"` // Embedding model name
	ChatModel   string  `toml:"chat_model"`  // Completion model name
	Timeout     string  `toml:"timeout"`     // Per-request timeout, e.g. "60s"
	RateLimit   string  `toml:"rate_limit"`  // Minimum interval between requests, e.g. "0s"
	Temperature float32 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"` // Maximum generated tokens per completion
}

// ClaudeConfig contains configuration for the Anthropic completion provider.
// Embeddings always come from Ollama; Claude only serves completions.
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"` // ANTHROPIC_API_KEY env var takes precedence
	Model       string  `toml:"model"`
	Timeout     string  `toml:"timeout"`
	RateLimit   string  `toml:"rate_limit"`
	Temperature float32 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
}

// ProcessingConfig controls the background pass that finishes partially
// indexed manuscripts
type ProcessingConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron schedule format
	Limit    int    `toml:"limit"`    // Max manuscripts resumed per run
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in fabula.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Chunking: ChunkingConfig{
			MaxSize:   1000, // Characters per chunk
			Overlap:   200,  // Shared characters between neighbors
			BatchSize: 16,   // Chunks per embedding batch
		},
		Retrieval: RetrievalConfig{
			MaxChunks: 5,
			MinScore:  0.7,
		},
		Chat: ChatConfig{
			HistoryTurns:  5,    // Turns rendered into the prompt
			StoredTurns:   20,   // Turns retained per character
			ContextBudget: 4096, // Prompt tokens before truncation
		},
		LLM: LLMConfig{
			Provider: LLMProviderOllama,
			Ollama: OllamaConfig{
				BaseURL:     "http://localhost:11434",
				EmbedModel:  "nomic-embed-text",
				ChatModel:   "llama3.1:8b",
				Timeout:     "60s",
				RateLimit:   "0s", // No throttling against a local server
				Temperature: 0.7,
				MaxTokens:   2048,
			},
			Claude: ClaudeConfig{
				APIKey:      "", // User must provide API key (ANTHROPIC_API_KEY or config)
				Model:       "claude-haiku-3-5-20241022",
				Timeout:     "5m",
				RateLimit:   "1s",
				Temperature: 0.7,
				MaxTokens:   2048,
			},
		},
		Processing: ProcessingConfig{
			Enabled:  true,
			Schedule: "0 */5 * * * *", // Every 5 minutes (cron format with seconds)
			Limit:    3,
		},
	}
}

// LoadFromFile loads configuration with priority: defaults -> file -> env.
// CLI flag overrides are applied separately via ApplyFlagOverrides.
func LoadFromFile(path string) (*Config, error) {
	config := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FABULA_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("FABULA_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("FABULA_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if path := os.Getenv("FABULA_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if level := os.Getenv("FABULA_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if url := os.Getenv("FABULA_OLLAMA_URL"); url != "" {
		config.LLM.Ollama.BaseURL = url
	}
	if model := os.Getenv("FABULA_EMBED_MODEL"); model != "" {
		config.LLM.Ollama.EmbedModel = model
	}
	if model := os.Getenv("FABULA_CHAT_MODEL"); model != "" {
		config.LLM.Ollama.ChatModel = model
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		config.LLM.Claude.APIKey = key
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks configuration invariants before any pipeline work starts.
// Chunking and retrieval parameters are validated here so a bad config is
// rejected before a single embedding call is made.
func (c *Config) Validate() error {
	if c.Chunking.MaxSize <= 0 {
		return NewConfigurationError("chunking.max_size", "must be a positive integer")
	}
	if c.Chunking.Overlap <= 0 {
		return NewConfigurationError("chunking.overlap", "must be a positive integer")
	}
	if c.Chunking.Overlap >= c.Chunking.MaxSize {
		return NewConfigurationError("chunking.overlap",
			fmt.Sprintf("must be smaller than max_size (%d >= %d)", c.Chunking.Overlap, c.Chunking.MaxSize))
	}
	if c.Chunking.BatchSize <= 0 {
		return NewConfigurationError("chunking.batch_size", "must be a positive integer")
	}
	if c.Retrieval.MaxChunks <= 0 {
		return NewConfigurationError("retrieval.max_chunks", "must be a positive integer")
	}
	if c.Retrieval.MinScore < 0 || c.Retrieval.MinScore > 1 {
		return NewConfigurationError("retrieval.min_score", "must be between 0.0 and 1.0")
	}
	if c.Chat.HistoryTurns <= 0 {
		return NewConfigurationError("chat.history_turns", "must be a positive integer")
	}
	if c.Chat.StoredTurns < c.Chat.HistoryTurns {
		return NewConfigurationError("chat.stored_turns", "must not be smaller than history_turns")
	}
	if c.Chat.ContextBudget <= 0 {
		return NewConfigurationError("chat.context_budget", "must be a positive integer")
	}

	switch c.LLM.Provider {
	case LLMProviderOllama, LLMProviderClaude:
	default:
		return NewConfigurationError("llm.provider",
			fmt.Sprintf("unknown provider %q: must be 'ollama' or 'claude'", c.LLM.Provider))
	}

	if _, err := time.ParseDuration(c.LLM.Ollama.Timeout); err != nil {
		return NewConfigurationError("llm.ollama.timeout", err.Error())
	}
	if _, err := time.ParseDuration(c.LLM.Ollama.RateLimit); err != nil {
		return NewConfigurationError("llm.ollama.rate_limit", err.Error())
	}

	if c.Processing.Enabled {
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(c.Processing.Schedule); err != nil {
			return NewConfigurationError("processing.schedule", err.Error())
		}
	}

	return nil
}
