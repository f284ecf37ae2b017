package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment" yaml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server" yaml:"server"`
	Storage     StorageConfig    `toml:"storage" yaml:"storage"`
	Logging     LoggingConfig    `toml:"logging" yaml:"logging"`
	Upload      UploadConfig     `toml:"upload" yaml:"upload"`
	RAG         RAGConfig        `toml:"rag" yaml:"rag"`
	Embedding   EmbeddingConfig  `toml:"embedding" yaml:"embedding"`
	Vector      VectorConfig     `toml:"vector" yaml:"vector"`
	LLM         LLMConfig        `toml:"llm" yaml:"llm"`
	OpenAI      OpenAIConfig     `toml:"openai" yaml:"openai"`
	Gemini      GeminiConfig     `toml:"gemini" yaml:"gemini"`
	Claude      ClaudeConfig     `toml:"claude" yaml:"claude"`
	Generation  GenerationConfig `toml:"generation" yaml:"generation"`
	Auth        AuthConfig       `toml:"auth" yaml:"auth"`
	GC          GCConfig         `toml:"gc" yaml:"gc"`
}

type ServerConfig struct {
	Port int    `toml:"port" yaml:"port"`
	Host string `toml:"host" yaml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger" yaml:"badger"`
	SQLite SQLiteConfig `toml:"sqlite" yaml:"sqlite"`
	Blob   BlobConfig   `toml:"blob" yaml:"blob"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" yaml:"path"`                         // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup" yaml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// SQLiteConfig configures the SQLite vector index (vector.provider = "sqlite")
type SQLiteConfig struct {
	Path          string `toml:"path" yaml:"path"`
	CacheSizeMB   int    `toml:"cache_size_mb" yaml:"cache_size_mb"`
	WALMode       bool   `toml:"wal_mode" yaml:"wal_mode"`
	BusyTimeoutMS int    `toml:"busy_timeout_ms" yaml:"busy_timeout_ms"`
}

// BlobConfig configures the filesystem blob store for uploaded files
type BlobConfig struct {
	Dir     string `toml:"dir" yaml:"dir"`           // Root directory for stored files
	BaseURL string `toml:"base_url" yaml:"base_url"` // Prefix for returned file URLs (default: file://<dir>)
}

type LoggingConfig struct {
	Level      string   `toml:"level" yaml:"level"`             // "debug", "info", "warn", "error"
	Output     []string `toml:"output" yaml:"output"`           // "stdout", "file"
	TimeFormat string   `toml:"time_format" yaml:"time_format"` // Time format for logs (default: "15:04:05")
}

// UploadConfig bounds accepted uploads
type UploadConfig struct {
	MaxSizeMB         int      `toml:"max_size_mb" yaml:"max_size_mb"`
	AllowedExtensions []string `toml:"allowed_extensions" yaml:"allowed_extensions"`
}

// MaxSizeBytes returns the upload limit in bytes
func (u UploadConfig) MaxSizeBytes() int64 {
	return int64(u.MaxSizeMB) * 1024 * 1024
}

// RAGConfig holds the retrieval pipeline parameters
type RAGConfig struct {
	ChunkSize     int `toml:"chunk_size" yaml:"chunk_size"`         // Characters per chunk
	ChunkOverlap  int `toml:"chunk_overlap" yaml:"chunk_overlap"`   // Characters shared by consecutive chunks
	TopK          int `toml:"top_k" yaml:"top_k"`                   // Passages retrieved per query
	HistoryWindow int `toml:"history_window" yaml:"history_window"` // Prior turns sent to the model
	SourceCount   int `toml:"source_count" yaml:"source_count"`     // Passages attached as sources to an answer
	ExcerptLength int `toml:"excerpt_length" yaml:"excerpt_length"` // Characters kept per source excerpt
}

// EmbeddingProvider selects the embedding backend
type EmbeddingProvider string

const (
	EmbeddingProviderHash   EmbeddingProvider = "hash"
	EmbeddingProviderOpenAI EmbeddingProvider = "openai"
	EmbeddingProviderGemini EmbeddingProvider = "gemini"
)

type EmbeddingConfig struct {
	Provider    EmbeddingProvider `toml:"provider" yaml:"provider"`       // "hash" (local), "openai" (OpenAI/Ollama compatible), "gemini"
	Model       string            `toml:"model" yaml:"model"`             // Model name for hosted providers
	Dimension   int               `toml:"dimension" yaml:"dimension"`     // Vector length; must match the vector collection
	BaseURL     string            `toml:"base_url" yaml:"base_url"`       // OpenAI-compatible endpoint (e.g. http://localhost:11434/v1 for Ollama)
	APIKey      string            `toml:"api_key" yaml:"api_key"`         // Falls back to DOCGPT_EMBEDDING_API_KEY / OPENAI_API_KEY / GEMINI_API_KEY
	BatchSize   int               `toml:"batch_size" yaml:"batch_size"`   // Texts per backend request
	Concurrency int               `toml:"concurrency" yaml:"concurrency"` // Parallel backend requests
	RateLimit   float64           `toml:"rate_limit" yaml:"rate_limit"`   // Requests per second, 0 = unlimited
	Timeout     string            `toml:"timeout" yaml:"timeout"`
}

// VectorProvider selects the vector index backend
type VectorProvider string

const (
	VectorProviderBadger VectorProvider = "badger"
	VectorProviderSQLite VectorProvider = "sqlite"
	VectorProviderQdrant VectorProvider = "qdrant"
)

type VectorConfig struct {
	Provider     VectorProvider `toml:"provider" yaml:"provider"`
	Collection   string         `toml:"collection" yaml:"collection"`
	Distance     string         `toml:"distance" yaml:"distance"` // Only "cosine" is supported
	QdrantURL    string         `toml:"qdrant_url" yaml:"qdrant_url"`
	QdrantAPIKey string         `toml:"qdrant_api_key" yaml:"qdrant_api_key"`
	Timeout      string         `toml:"timeout" yaml:"timeout"`
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderOpenAI uses any OpenAI-compatible chat endpoint (Groq by default)
	LLMProviderOpenAI LLMProvider = "openai"
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
	// LLMProviderOffline answers with retrieved passages only, no model call
	LLMProviderOffline LLMProvider = "offline"
)

type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider" yaml:"default_provider"`
}

// OpenAIConfig configures the OpenAI-compatible completion endpoint
type OpenAIConfig struct {
	APIKey  string `toml:"api_key" yaml:"api_key"`
	BaseURL string `toml:"base_url" yaml:"base_url"`
	Model   string `toml:"model" yaml:"model"`
}

type GeminiConfig struct {
	APIKey string `toml:"api_key" yaml:"api_key"`
	Model  string `toml:"model" yaml:"model"`
}

type ClaudeConfig struct {
	APIKey string `toml:"api_key" yaml:"api_key"`
	Model  string `toml:"model" yaml:"model"`
}

// GenerationConfig holds the fixed sampling parameters for every completion
type GenerationConfig struct {
	Temperature float32 `toml:"temperature" yaml:"temperature"`
	TopP        float32 `toml:"top_p" yaml:"top_p"`
	MaxTokens   int     `toml:"max_tokens" yaml:"max_tokens"`
	Timeout     string  `toml:"timeout" yaml:"timeout"`
	MaxRetries  int     `toml:"max_retries" yaml:"max_retries"` // Retries before the first token; streams are never retried mid-flight
}

// AuthToken maps a bearer token to a user identity
type AuthToken struct {
	Token  string `toml:"token" yaml:"token"`
	UserID string `toml:"user_id" yaml:"user_id"`
	Email  string `toml:"email" yaml:"email"`
}

type AuthConfig struct {
	Tokens []AuthToken `toml:"tokens" yaml:"tokens"`
}

// GCConfig schedules the orphaned-vector sweep
type GCConfig struct {
	Enabled  bool   `toml:"enabled" yaml:"enabled"`
	Schedule string `toml:"schedule" yaml:"schedule"` // Cron with seconds field
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/badger",
			},
			SQLite: SQLiteConfig{
				Path:          "./data/vectors.db",
				CacheSizeMB:   64,
				WALMode:       true,
				BusyTimeoutMS: 5000,
			},
			Blob: BlobConfig{
				Dir: "./data/files",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
		Upload: UploadConfig{
			MaxSizeMB:         50,
			AllowedExtensions: []string{"pdf"},
		},
		RAG: RAGConfig{
			ChunkSize:     1500,
			ChunkOverlap:  300,
			TopK:          8,
			HistoryWindow: 6,
			SourceCount:   3,
			ExcerptLength: 200,
		},
		Embedding: EmbeddingConfig{
			Provider:    EmbeddingProviderHash, // Offline default, no API key required
			Model:       "text-embedding-3-small",
			Dimension:   384,
			BatchSize:   32,
			Concurrency: 4,
			Timeout:     "60s",
		},
		Vector: VectorConfig{
			Provider:   VectorProviderBadger,
			Collection: "document_chunks",
			Distance:   "cosine",
			QdrantURL:  "http://localhost:6333",
			Timeout:    "30s",
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderOpenAI,
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "llama-3.3-70b-versatile",
		},
		Gemini: GeminiConfig{
			Model: "gemini-2.5-flash",
		},
		Claude: ClaudeConfig{
			Model: "claude-3-5-haiku-latest",
		},
		Generation: GenerationConfig{
			Temperature: 0.1,  // Low randomness for grounded answers
			TopP:        0.85, //
			MaxTokens:   2048,
			Timeout:     "2m",
			MaxRetries:  2,
		},
		GC: GCConfig{
			Enabled:  true,
			Schedule: "0 */15 * * * *", // Every 15 minutes
		},
	}
}

// LoadDotEnv loads .env files into the process environment when present.
// Existing environment variables are never overwritten.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		_ = godotenv.Load(path)
	}
}

// LoadFromFiles loads configuration with priority: default -> file1 -> file2 -> ... -> env
// Files ending in .yaml or .yml are decoded as YAML, everything else as TOML.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, config)
		default:
			err = toml.Unmarshal(data, config)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("DOCGPT_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("DOCGPT_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("DOCGPT_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("DOCGPT_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if sqlitePath := os.Getenv("DOCGPT_SQLITE_PATH"); sqlitePath != "" {
		config.Storage.SQLite.Path = sqlitePath
	}
	if blobDir := os.Getenv("DOCGPT_BLOB_DIR"); blobDir != "" {
		config.Storage.Blob.Dir = blobDir
	}

	// Logging configuration
	if level := os.Getenv("DOCGPT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("DOCGPT_LOG_OUTPUT"); output != "" {
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

	// RAG configuration
	if size := os.Getenv("DOCGPT_CHUNK_SIZE"); size != "" {
		if s, err := strconv.Atoi(size); err == nil {
			config.RAG.ChunkSize = s
		}
	}
	if overlap := os.Getenv("DOCGPT_CHUNK_OVERLAP"); overlap != "" {
		if o, err := strconv.Atoi(overlap); err == nil {
			config.RAG.ChunkOverlap = o
		}
	}
	if topK := os.Getenv("DOCGPT_TOP_K"); topK != "" {
		if k, err := strconv.Atoi(topK); err == nil {
			config.RAG.TopK = k
		}
	}

	// Embedding configuration
	if provider := os.Getenv("DOCGPT_EMBEDDING_PROVIDER"); provider != "" {
		config.Embedding.Provider = EmbeddingProvider(provider)
	}
	if model := os.Getenv("DOCGPT_EMBEDDING_MODEL"); model != "" {
		config.Embedding.Model = model
	}
	if dim := os.Getenv("DOCGPT_EMBEDDING_DIMENSION"); dim != "" {
		if d, err := strconv.Atoi(dim); err == nil {
			config.Embedding.Dimension = d
		}
	}
	if baseURL := os.Getenv("DOCGPT_EMBEDDING_BASE_URL"); baseURL != "" {
		config.Embedding.BaseURL = baseURL
	}

	// Vector configuration
	if provider := os.Getenv("DOCGPT_VECTOR_PROVIDER"); provider != "" {
		config.Vector.Provider = VectorProvider(provider)
	}
	if collection := os.Getenv("DOCGPT_VECTOR_COLLECTION"); collection != "" {
		config.Vector.Collection = collection
	}
	if qdrantURL := os.Getenv("DOCGPT_QDRANT_URL"); qdrantURL != "" {
		config.Vector.QdrantURL = qdrantURL
	}
	if qdrantKey := os.Getenv("DOCGPT_QDRANT_API_KEY"); qdrantKey != "" {
		config.Vector.QdrantAPIKey = qdrantKey
	}

	// LLM configuration
	if provider := os.Getenv("DOCGPT_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}
	if model := os.Getenv("DOCGPT_OPENAI_MODEL"); model != "" {
		config.OpenAI.Model = model
	}
	if baseURL := os.Getenv("DOCGPT_OPENAI_BASE_URL"); baseURL != "" {
		config.OpenAI.BaseURL = baseURL
	}
	if model := os.Getenv("DOCGPT_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if model := os.Getenv("DOCGPT_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}

	// Generation configuration
	if temp := os.Getenv("DOCGPT_TEMPERATURE"); temp != "" {
		if t, err := strconv.ParseFloat(temp, 32); err == nil {
			config.Generation.Temperature = float32(t)
		}
	}
	if maxTokens := os.Getenv("DOCGPT_MAX_TOKENS"); maxTokens != "" {
		if mt, err := strconv.Atoi(maxTokens); err == nil {
			config.Generation.MaxTokens = mt
		}
	}

	// Auth: a single token from the environment is appended to the configured list
	if token := os.Getenv("DOCGPT_AUTH_TOKEN"); token != "" {
		userID := os.Getenv("DOCGPT_AUTH_USER_ID")
		if userID == "" {
			userID = "local"
		}
		config.Auth.Tokens = append(config.Auth.Tokens, AuthToken{
			Token:  token,
			UserID: userID,
			Email:  os.Getenv("DOCGPT_AUTH_EMAIL"),
		})
	}

	// GC configuration
	if enabled := os.Getenv("DOCGPT_GC_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.GC.Enabled = e
		}
	}
	if schedule := os.Getenv("DOCGPT_GC_SCHEDULE"); schedule != "" {
		config.GC.Schedule = schedule
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// apiKeyEnvMapping lists environment variables consulted per key name, in priority order
var apiKeyEnvMapping = map[string][]string{
	"openai_api_key":    {"DOCGPT_OPENAI_API_KEY", "GROQ_API_KEY", "OPENAI_API_KEY"},
	"gemini_api_key":    {"DOCGPT_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"anthropic_api_key": {"DOCGPT_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
	"embedding_api_key": {"DOCGPT_EMBEDDING_API_KEY"},
	"qdrant_api_key":    {"DOCGPT_QDRANT_API_KEY", "QDRANT_API_KEY"},
}

// ResolveAPIKey resolves an API key by name.
// Resolution order: environment variables → config fallback → error
func ResolveAPIKey(name string, configFallback string) (string, error) {
	for _, envVarName := range apiKeyEnvMapping[name] {
		if envValue := os.Getenv(envVarName); envValue != "" {
			return envValue, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment or config", name)
}

// ParseDuration parses a duration string, returning fallback when empty or invalid
func ParseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Validate checks the settings the pipeline cannot run without
func (c *Config) Validate() error {
	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("rag.chunk_size must be positive, got %d", c.RAG.ChunkSize)
	}
	if c.RAG.TopK <= 0 {
		return fmt.Errorf("rag.top_k must be positive, got %d", c.RAG.TopK)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if !strings.EqualFold(c.Vector.Distance, "cosine") {
		return fmt.Errorf("vector.distance %q is not supported (only cosine)", c.Vector.Distance)
	}
	if c.Vector.Collection == "" {
		return fmt.Errorf("vector.collection is required")
	}
	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
