package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL           string `yaml:"base_url"`
	APIKeyEnv         string `yaml:"api_key_env"`
	Model             string `yaml:"model"`
	TimeoutSecs       int    `yaml:"timeout_secs"`
	BatchSize         int    `yaml:"batch_size"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

// GeminiConfig holds credentials and limits shared by the Gemini embedder
// and summarizer.
type GeminiConfig struct {
	APIKeyEnv         string `yaml:"api_key_env"`
	Model             string `yaml:"model"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string                `yaml:"type"`
	Dimension int                   `yaml:"dimension"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	Gemini    *GeminiConfig         `yaml:"gemini,omitempty"`
}

// ChunkerConfig configures the fixed-token window used when neither
// headings nor slides fit a document.
type ChunkerConfig struct {
	MaxTokens    int `yaml:"max_tokens"`
	OverlapWords int `yaml:"overlap_words"`
}

// IndexConfig selects and configures the vector index implementation.
type IndexConfig struct {
	Type           string        `yaml:"type"`
	Dir            string        `yaml:"dir"`
	M              int           `yaml:"m"`
	EfConstruction int           `yaml:"ef_construction"`
	EfSearch       int           `yaml:"ef_search"`
	Qdrant         *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// ExtractConfig configures document text extraction.
type ExtractConfig struct {
	OCRThreshold int    `yaml:"ocr_threshold"`
	OCRLanguage  string `yaml:"ocr_language"`
}

// SummarizerConfig selects the abstractive summarizer and bounds the
// synthesis cascade.
type SummarizerConfig struct {
	Type          string `yaml:"type"`
	TimeoutSecs   int    `yaml:"timeout_secs"`
	MaxInputChars int    `yaml:"max_input_chars"`
	Concurrency   int    `yaml:"concurrency"`

	Gemini              *GeminiConfig `yaml:"gemini,omitempty"`
	BreakerMinRequests  uint32        `yaml:"breaker_min_requests"`
	BreakerFailureRatio float64       `yaml:"breaker_failure_ratio"`
	BreakerOpenSecs     int           `yaml:"breaker_open_secs"`
}

// FlashcardsConfig configures derived flashcard generation.
type FlashcardsConfig struct {
	MaxCards int `yaml:"max_cards"`
}

// QueryConfig configures retrieval.
type QueryConfig struct {
	TopK int `yaml:"top_k"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig configures OpenTelemetry export. An empty endpoint
// disables export.
type TracingConfig struct {
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate"`
	Environment  string  `yaml:"environment"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder   EmbedderConfig   `yaml:"embedder"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Index      IndexConfig      `yaml:"index"`
	Extract    ExtractConfig    `yaml:"extract"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Flashcards FlashcardsConfig `yaml:"flashcards"`
	Query      QueryConfig      `yaml:"query"`
	Log        LogConfig        `yaml:"log"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

// IndexPath is where the graph structure is persisted.
func (c *AppConfig) IndexPath() string { return filepath.Join(c.Index.Dir, "index.hnsw") }

// MetaPath is where the metadata array is persisted.
func (c *AppConfig) MetaPath() string { return filepath.Join(c.Index.Dir, "metadata.json") }

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/docqa/config.yaml.
// If neither exists, it writes defaults to ~/.config/docqa/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docqa", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder:   EmbedderConfig{Type: "hashing"},
		Index:      IndexConfig{Type: "hnsw"},
		Summarizer: SummarizerConfig{Type: "none"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "hashing"
	}
	if cfg.Embedder.Dimension == 0 {
		switch cfg.Embedder.Type {
		case "gemini":
			cfg.Embedder.Dimension = 768
		case "openai":
			cfg.Embedder.Dimension = 1536
		default:
			cfg.Embedder.Dimension = 384
		}
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
		if cfg.Embedder.OpenAI.BatchSize == 0 {
			cfg.Embedder.OpenAI.BatchSize = 32
		}
	}
	if cfg.Embedder.Type == "gemini" {
		cfg.Embedder.Gemini = geminiDefaults(cfg.Embedder.Gemini, "text-embedding-004")
	}

	if cfg.Chunker.MaxTokens == 0 {
		cfg.Chunker.MaxTokens = 200
	}
	if cfg.Chunker.OverlapWords == 0 {
		cfg.Chunker.OverlapWords = 20
	}

	if cfg.Index.Type == "" {
		cfg.Index.Type = "hnsw"
	}
	if cfg.Index.Dir == "" {
		cfg.Index.Dir = "data/index"
	}
	if cfg.Index.M == 0 {
		cfg.Index.M = 32
	}
	if cfg.Index.EfConstruction == 0 {
		cfg.Index.EfConstruction = 200
	}
	if cfg.Index.EfSearch == 0 {
		cfg.Index.EfSearch = 50
	}
	if cfg.Index.Type == "qdrant" {
		if cfg.Index.Qdrant == nil {
			cfg.Index.Qdrant = &QdrantConfig{}
		}
		if cfg.Index.Qdrant.Host == "" {
			cfg.Index.Qdrant.Host = "localhost"
		}
		if cfg.Index.Qdrant.Port == 0 {
			cfg.Index.Qdrant.Port = 6334
		}
		if cfg.Index.Qdrant.Collection == "" {
			cfg.Index.Qdrant.Collection = "docqa"
		}
		if cfg.Index.Qdrant.TimeoutSecs == 0 {
			cfg.Index.Qdrant.TimeoutSecs = 15
		}
	}

	if cfg.Extract.OCRThreshold == 0 {
		cfg.Extract.OCRThreshold = 40
	}
	if cfg.Extract.OCRLanguage == "" {
		cfg.Extract.OCRLanguage = "eng"
	}

	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = "none"
	}
	if cfg.Summarizer.TimeoutSecs == 0 {
		cfg.Summarizer.TimeoutSecs = 30
	}
	if cfg.Summarizer.MaxInputChars == 0 {
		cfg.Summarizer.MaxInputChars = 512
	}
	if cfg.Summarizer.Concurrency == 0 {
		cfg.Summarizer.Concurrency = 4
	}
	if cfg.Summarizer.Type == "gemini" {
		cfg.Summarizer.Gemini = geminiDefaults(cfg.Summarizer.Gemini, "gemini-2.0-flash")
		if cfg.Summarizer.BreakerMinRequests == 0 {
			cfg.Summarizer.BreakerMinRequests = 3
		}
		if cfg.Summarizer.BreakerFailureRatio == 0 {
			cfg.Summarizer.BreakerFailureRatio = 0.6
		}
		if cfg.Summarizer.BreakerOpenSecs == 0 {
			cfg.Summarizer.BreakerOpenSecs = 60
		}
	}

	if cfg.Flashcards.MaxCards == 0 {
		cfg.Flashcards.MaxCards = 10
	}
	if cfg.Query.TopK == 0 {
		cfg.Query.TopK = 5
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "warn"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Tracing.SampleRate == 0 {
		cfg.Tracing.SampleRate = 1.0
	}
	if cfg.Tracing.Environment == "" {
		cfg.Tracing.Environment = "development"
	}
}

func geminiDefaults(g *GeminiConfig, model string) *GeminiConfig {
	if g == nil {
		g = &GeminiConfig{}
	}
	if g.APIKeyEnv == "" {
		g.APIKeyEnv = "GEMINI_API_KEY"
	}
	if g.Model == "" {
		g.Model = model
	}
	if g.RequestsPerMinute == 0 {
		g.RequestsPerMinute = 10
	}
	return g
}
