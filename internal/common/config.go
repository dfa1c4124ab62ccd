package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"

	"github.com/ternarybob/docent/internal/interfaces"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Processing  ProcessingConfig `toml:"processing"`
	Retrieval   RetrievalConfig  `toml:"retrieval"`
	Chat        ChatConfig       `toml:"chat"`
	Logging     LoggingConfig    `toml:"logging"`
	Gemini      GeminiConfig     `toml:"gemini"`
	Claude      ClaudeConfig     `toml:"claude"`
	LLM         LLMConfig        `toml:"llm"`
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

// ProcessingConfig controls document chunking and the reprocessing sweep
type ProcessingConfig struct {
	Enabled       bool   `toml:"enabled"`         // Enable the scheduled reprocessing sweep
	Schedule      string `toml:"schedule"`        // Cron schedule for the sweep
	Limit         int    `toml:"limit"`           // Max documents to process per sweep
	MaxChunkChars int    `toml:"max_chunk_chars"` // Maximum characters per chunk
}

// RetrievalConfig controls similarity search behavior
type RetrievalConfig struct {
	TopK     int     `toml:"top_k"`     // Default number of chunks to retrieve
	MinScore float64 `toml:"min_score"` // Relevance floor; results below are discarded
}

// ChatConfig controls conversation context assembly
type ChatConfig struct {
	HistoryWindow int `toml:"history_window"` // Most recent messages included as context
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Format string   `toml:"format"` // "json" or "text"
	Output []string `toml:"output"` // "stdout", "file"
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`     // Google Gemini API key
	Model       string  `toml:"model"`       // Chat model (default: "gemini-3-flash-preview")
	EmbedModel  string  `toml:"embed_model"` // Embedding model (default: "gemini-embedding-001")
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "2m")
	RateLimit   string  `toml:"rate_limit"`  // Minimum interval between requests (default: "4s" for 15 RPM)
	Temperature float32 `toml:"temperature"` // Chat completion temperature (default: 0.7)
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key
	Model       string  `toml:"model"`       // Chat model (default: "claude-haiku-3-5-20241022")
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 2048)
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "2m")
	RateLimit   string  `toml:"rate_limit"`  // Minimum interval between requests (default: "1s")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.7)
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains unified configuration for all AI providers
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // "gemini" or "claude" (default: "gemini")
	EmbedDimension  int         `toml:"embed_dimension"`  // Model-strategy embedding dimension (default: 768)
}

// NewDefaultConfig creates a configuration with default values.
// Only user-facing settings should be exposed in docent.toml.
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
		Processing: ProcessingConfig{
			Enabled:       true,
			Schedule:      "0 */10 * * * *", // Every 10 minutes - retries interrupted processing
			Limit:         100,              // Max documents per sweep
			MaxChunkChars: 1000,             // Chunk character cap
		},
		Retrieval: RetrievalConfig{
			TopK:     3,
			MinScore: 0.15, // Below this a chunk is treated as irrelevant
		},
		Chat: ChatConfig{
			HistoryWindow: 6, // Most recent turns carried into provider context
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Gemini: GeminiConfig{
			APIKey:      "", // User must provide API key (no fallback)
			Model:       "gemini-3-flash-preview",
			EmbedModel:  "gemini-embedding-001",
			Timeout:     "2m",
			RateLimit:   "4s", // Default to 4s (15 RPM) for free tier
			Temperature: 0.7,
		},
		Claude: ClaudeConfig{
			APIKey:      "", // User must provide API key (ANTHROPIC_API_KEY or config)
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   2048,
			Timeout:     "2m",
			RateLimit:   "1s",
			Temperature: 0.7,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
			EmbedDimension:  768,
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
// kvStorage can be nil (key replacement from storage is skipped)
func LoadFromFile(kvStorage interfaces.KeyValueStorage, path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles(kvStorage)
	}
	return LoadFromFiles(kvStorage, path)
}

// LoadFromFiles loads configuration from multiple files. Later files override
// earlier files; environment variables override all files.
func LoadFromFiles(kvStorage interfaces.KeyValueStorage, paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := ValidateSchedule(config.Processing.Schedule); err != nil {
		return nil, fmt.Errorf("invalid processing schedule %q: %w", config.Processing.Schedule, err)
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("DOCENT_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("DOCENT_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("DOCENT_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("DOCENT_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Processing configuration
	if enabled := os.Getenv("DOCENT_PROCESSING_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Processing.Enabled = e
		}
	}
	if schedule := os.Getenv("DOCENT_PROCESSING_SCHEDULE"); schedule != "" {
		config.Processing.Schedule = schedule
	}
	if limit := os.Getenv("DOCENT_PROCESSING_LIMIT"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			config.Processing.Limit = l
		}
	}
	if maxChars := os.Getenv("DOCENT_PROCESSING_MAX_CHUNK_CHARS"); maxChars != "" {
		if mc, err := strconv.Atoi(maxChars); err == nil && mc > 0 {
			config.Processing.MaxChunkChars = mc
		}
	}

	// Retrieval configuration
	if topK := os.Getenv("DOCENT_RETRIEVAL_TOP_K"); topK != "" {
		if k, err := strconv.Atoi(topK); err == nil && k > 0 {
			config.Retrieval.TopK = k
		}
	}
	if minScore := os.Getenv("DOCENT_RETRIEVAL_MIN_SCORE"); minScore != "" {
		if ms, err := strconv.ParseFloat(minScore, 64); err == nil {
			config.Retrieval.MinScore = ms
		}
	}

	// Chat configuration
	if window := os.Getenv("DOCENT_CHAT_HISTORY_WINDOW"); window != "" {
		if w, err := strconv.Atoi(window); err == nil && w >= 0 {
			config.Chat.HistoryWindow = w
		}
	}

	// Logging configuration
	if level := os.Getenv("DOCENT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("DOCENT_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("DOCENT_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Gemini configuration
	if apiKey := os.Getenv("DOCENT_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("DOCENT_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if embedModel := os.Getenv("DOCENT_GEMINI_EMBED_MODEL"); embedModel != "" {
		config.Gemini.EmbedModel = embedModel
	}
	if timeout := os.Getenv("DOCENT_GEMINI_TIMEOUT"); timeout != "" {
		config.Gemini.Timeout = timeout
	}
	if rateLimit := os.Getenv("DOCENT_GEMINI_RATE_LIMIT"); rateLimit != "" {
		config.Gemini.RateLimit = rateLimit
	}
	if temperature := os.Getenv("DOCENT_GEMINI_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Gemini.Temperature = float32(t)
		}
	}

	// Claude configuration
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("DOCENT_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey // DOCENT_ prefix takes priority
	}
	if model := os.Getenv("DOCENT_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if maxTokens := os.Getenv("DOCENT_CLAUDE_MAX_TOKENS"); maxTokens != "" {
		if mt, err := strconv.Atoi(maxTokens); err == nil {
			config.Claude.MaxTokens = mt
		}
	}
	if timeout := os.Getenv("DOCENT_CLAUDE_TIMEOUT"); timeout != "" {
		config.Claude.Timeout = timeout
	}
	if rateLimit := os.Getenv("DOCENT_CLAUDE_RATE_LIMIT"); rateLimit != "" {
		config.Claude.RateLimit = rateLimit
	}
	if temperature := os.Getenv("DOCENT_CLAUDE_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Claude.Temperature = float32(t)
		}
	}

	// LLM provider configuration
	if provider := os.Getenv("DOCENT_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}
	if dim := os.Getenv("DOCENT_LLM_EMBED_DIMENSION"); dim != "" {
		if d, err := strconv.Atoi(dim); err == nil && d > 0 {
			config.LLM.EmbedDimension = d
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ResolveAPIKey resolves an API key by name with environment variable priority.
// Resolution order: environment variables → KV store → config fallback → error.
func ResolveAPIKey(kvStorage interfaces.KeyValueStorage, name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key":    {"DOCENT_GEMINI_API_KEY"},
		"anthropic_api_key": {"DOCENT_CLAUDE_API_KEY"},
		"claude_api_key":    {"DOCENT_CLAUDE_API_KEY"},
	}

	// For Claude, also check the standard ANTHROPIC_API_KEY env var
	if name == "anthropic_api_key" || name == "claude_api_key" {
		if envValue := os.Getenv("ANTHROPIC_API_KEY"); envValue != "" {
			return envValue, nil
		}
	}

	if envVarNames, hasMappedEnv := keyToEnvMapping[name]; hasMappedEnv {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	// KV store holds runtime-updatable keys
	if kvStorage != nil {
		apiKey, err := kvStorage.Get(name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment, KV store, or config", name)
}

// ValidateSchedule validates a cron schedule expression (with seconds field)
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
