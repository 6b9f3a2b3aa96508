package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"bookrag/internal/domain"
)

const appName = "bookrag"

// Hashed vectors score much lower than learned embeddings, so the hashing
// embedder gets its own threshold and a wider dimension to keep collisions down.
const (
	DefaultScoreThreshold = 0.5
	HashingScoreThreshold = 0.05
	HashingDimension      = 1024
)

// LibraryConfig locates the source documents.
type LibraryConfig struct {
	BooksDir   string   `yaml:"books_dir" toml:"books_dir"`
	Extensions []string `yaml:"extensions" toml:"extensions"`
}

// ChunkerConfig configures the word-window chunker.
type ChunkerConfig struct {
	ChunkSize     int `yaml:"chunk_size" toml:"chunk_size"`
	Overlap       int `yaml:"overlap" toml:"overlap"`
	MinChunkChars int `yaml:"min_chunk_chars" toml:"min_chunk_chars"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL           string  `yaml:"base_url" toml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env" toml:"api_key_env"`
	Model             string  `yaml:"model" toml:"model"`
	TimeoutSecs       int     `yaml:"timeout_secs" toml:"timeout_secs"`
	BatchSize         int     `yaml:"batch_size" toml:"batch_size"`
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second"`
	MaxRetries        int     `yaml:"max_retries" toml:"max_retries"`
}

// OllamaConfig points at a local Ollama server.
type OllamaConfig struct {
	Host        string `yaml:"host" toml:"host"`
	Model       string `yaml:"model" toml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" toml:"timeout_secs"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string                `yaml:"type" toml:"type"`
	Dimension int                   `yaml:"dimension" toml:"dimension"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty" toml:"openai,omitempty"`
	Ollama    *OllamaConfig         `yaml:"ollama,omitempty" toml:"ollama,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	Host   string `yaml:"host" toml:"host"`
	Port   int    `yaml:"port" toml:"port"`
	APIKey string `yaml:"api_key" toml:"api_key"`
	UseTLS bool   `yaml:"use_tls" toml:"use_tls"`
}

// SQLiteConfig locates the embedded index database.
type SQLiteConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type            string        `yaml:"type" toml:"type"`
	Collection      string        `yaml:"collection" toml:"collection"`
	UpsertBatchSize int           `yaml:"upsert_batch_size" toml:"upsert_batch_size"`
	Qdrant          *QdrantConfig `yaml:"qdrant,omitempty" toml:"qdrant,omitempty"`
	SQLite          *SQLiteConfig `yaml:"sqlite,omitempty" toml:"sqlite,omitempty"`
}

// RetrievalConfig holds search and context-window defaults.
type RetrievalConfig struct {
	TopK                int     `yaml:"top_k" toml:"top_k"`
	FilteredTopK        int     `yaml:"filtered_top_k" toml:"filtered_top_k"`
	ScoreThreshold      float64 `yaml:"score_threshold" toml:"score_threshold"`
	MaxContextChars     int     `yaml:"max_context_chars" toml:"max_context_chars"`
	SummaryContextChars int     `yaml:"summary_context_chars" toml:"summary_context_chars"`
	PromptResults       int     `yaml:"prompt_results" toml:"prompt_results"`
	StatsPageSize       int     `yaml:"stats_page_size" toml:"stats_page_size"`
	StatsMaxPages       int     `yaml:"stats_max_pages" toml:"stats_max_pages"`
	QueryTimeoutSecs    int     `yaml:"query_timeout_secs" toml:"query_timeout_secs"`
}

// OpenAIGeneratorConfig configures an OpenAI-compatible chat endpoint (Groq by default).
type OpenAIGeneratorConfig struct {
	BaseURL     string  `yaml:"base_url" toml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env" toml:"api_key_env"`
	Model       string  `yaml:"model" toml:"model"`
	Temperature float32 `yaml:"temperature" toml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" toml:"max_tokens"`
	TimeoutSecs int     `yaml:"timeout_secs" toml:"timeout_secs"`
}

// ExtractiveConfig configures the offline answer generator.
type ExtractiveConfig struct {
	MaxSentences int `yaml:"max_sentences" toml:"max_sentences"`
}

// GeneratorConfig selects the answer generator.
type GeneratorConfig struct {
	Type       string                 `yaml:"type" toml:"type"`
	OpenAI     *OpenAIGeneratorConfig `yaml:"openai,omitempty" toml:"openai,omitempty"`
	Ollama     *OllamaConfig          `yaml:"ollama,omitempty" toml:"ollama,omitempty"`
	Extractive ExtractiveConfig       `yaml:"extractive" toml:"extractive"`
}

// LogConfig controls log verbosity.
type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Library     LibraryConfig     `yaml:"library" toml:"library"`
	Chunker     ChunkerConfig     `yaml:"chunker" toml:"chunker"`
	Embedder    EmbedderConfig    `yaml:"embedder" toml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store" toml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval" toml:"retrieval"`
	Generator   GeneratorConfig   `yaml:"generator" toml:"generator"`
	Log         LogConfig         `yaml:"log" toml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// The file is decoded over the defaults, so keys it sets to zero stay zero.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	// The embedder decides the default score threshold and the chunk size
	// decides the default overlap, so read those first.
	var head struct {
		Embedder struct {
			Type string `yaml:"type" toml:"type"`
		} `yaml:"embedder" toml:"embedder"`
		Chunker struct {
			Overlap *int `yaml:"overlap" toml:"overlap"`
		} `yaml:"chunker" toml:"chunker"`
	}
	if err := decode(path, data, &head); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg := baseConfig(head.Embedder.Type)
	if err := decode(path, data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if head.Chunker.Overlap == nil {
		cfg.Chunker.Overlap = defaultOverlap(cfg.Chunker.ChunkSize)
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func decode(path string, data []byte, v any) error {
	if isTOML(path) {
		return toml.Unmarshal(data, v)
	}
	return yaml.Unmarshal(data, v)
}

// LoadDefault tries ./bookrag.yaml first, then the user config file.
// If neither exists, it writes defaults to the user config file and returns them.
func LoadDefault() (*AppConfig, string, error) {
	for _, p := range []string{appName + ".yaml", appName + ".toml"} {
		if _, err := os.Stat(p); err == nil {
			cfg, err := Load(p)
			return cfg, p, err
		}
	}
	userPath, err := xdg.ConfigFile(filepath.Join(appName, "config.yaml"))
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
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
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Default returns the built-in configuration: offline embedder, embedded
// index and extractive answers, so the tool works without any service.
func Default() *AppConfig {
	cfg := baseConfig("")
	applyConfigDefaults(cfg)
	return cfg
}

// baseConfig holds every scalar default. Files are decoded on top of it.
func baseConfig(embedderType string) *AppConfig {
	if embedderType == "" {
		embedderType = "hashing"
	}
	threshold := DefaultScoreThreshold
	if embedderType == "hashing" {
		threshold = HashingScoreThreshold
	}
	return &AppConfig{
		Library: LibraryConfig{
			BooksDir:   "books/",
			Extensions: []string{".pdf", ".txt"},
		},
		Chunker: ChunkerConfig{ChunkSize: 400, Overlap: defaultOverlap(400), MinChunkChars: 50},
		Embedder: EmbedderConfig{Type: embedderType},
		VectorStore: VectorStoreConfig{
			Type:            "sqlite",
			Collection:      "book_library",
			UpsertBatchSize: 50,
		},
		Retrieval: RetrievalConfig{
			TopK:                10,
			FilteredTopK:        5,
			ScoreThreshold:      threshold,
			MaxContextChars:     2000,
			SummaryContextChars: 500,
			PromptResults:       5,
			StatsPageSize:       1000,
			QueryTimeoutSecs:    30,
		},
		Generator: GeneratorConfig{
			Type:       "extractive",
			Extractive: ExtractiveConfig{MaxSentences: 5},
		},
		Log: LogConfig{Level: "info"},
	}
}

// defaultOverlap keeps one eighth of a chunk shared with its neighbour.
func defaultOverlap(chunkSize int) int {
	if chunkSize <= 0 {
		return 0
	}
	return chunkSize / 8
}

// Validate rejects configurations the components cannot run with.
func (c *AppConfig) Validate() error {
	if c.Chunker.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunker.chunk_size must be positive, got %d", domain.ErrInvalidChunkConfig, c.Chunker.ChunkSize)
	}
	if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("%w: chunker.overlap must be in [0, %d), got %d", domain.ErrInvalidChunkConfig, c.Chunker.ChunkSize, c.Chunker.Overlap)
	}
	if c.Retrieval.QueryTimeoutSecs < 0 {
		return fmt.Errorf("retrieval.query_timeout_secs must not be negative, got %d", c.Retrieval.QueryTimeoutSecs)
	}
	if c.Retrieval.ScoreThreshold < -1 || c.Retrieval.ScoreThreshold > 1 {
		return fmt.Errorf("retrieval.score_threshold must be in [-1, 1], got %f", c.Retrieval.ScoreThreshold)
	}
	switch c.Embedder.Type {
	case "hashing", "openai", "ollama":
	default:
		return fmt.Errorf("unknown embedder: %s", c.Embedder.Type)
	}
	switch c.VectorStore.Type {
	case "sqlite", "memory", "qdrant":
	default:
		return fmt.Errorf("unknown vector store: %s", c.VectorStore.Type)
	}
	switch c.Generator.Type {
	case "extractive", "openai", "ollama":
	default:
		return fmt.Errorf("unknown generator: %s", c.Generator.Type)
	}
	return nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func defaultDataFile(name string) string {
	p, err := xdg.DataFile(filepath.Join(appName, name))
	if err != nil {
		return filepath.Join(".", name)
	}
	return p
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "hashing" && cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = HashingDimension
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		o := cfg.Embedder.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "text-embedding-3-small"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
		if o.BatchSize == 0 {
			o.BatchSize = 32
		}
		if o.RequestsPerSecond == 0 {
			o.RequestsPerSecond = 5
		}
		if o.MaxRetries == 0 {
			o.MaxRetries = 5
		}
	}
	if cfg.Embedder.Type == "ollama" {
		if cfg.Embedder.Ollama == nil {
			cfg.Embedder.Ollama = &OllamaConfig{}
		}
		applyOllamaDefaults(cfg.Embedder.Ollama, "all-minilm")
	}

	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "sqlite"
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "book_library"
	}
	if cfg.VectorStore.UpsertBatchSize == 0 {
		cfg.VectorStore.UpsertBatchSize = 50
	}
	if cfg.VectorStore.Type == "qdrant" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		if cfg.VectorStore.Qdrant.Host == "" {
			cfg.VectorStore.Qdrant.Host = "localhost"
		}
		if cfg.VectorStore.Qdrant.Port == 0 {
			cfg.VectorStore.Qdrant.Port = 6334
		}
	}
	if cfg.VectorStore.Type == "sqlite" {
		if cfg.VectorStore.SQLite == nil {
			cfg.VectorStore.SQLite = &SQLiteConfig{}
		}
		if cfg.VectorStore.SQLite.Path == "" {
			cfg.VectorStore.SQLite.Path = defaultDataFile("index.db")
		}
	}

	if cfg.Generator.Type == "openai" {
		if cfg.Generator.OpenAI == nil {
			cfg.Generator.OpenAI = &OpenAIGeneratorConfig{}
		}
		g := cfg.Generator.OpenAI
		if g.BaseURL == "" {
			g.BaseURL = "https://api.groq.com/openai/v1"
		}
		if g.APIKeyEnv == "" {
			g.APIKeyEnv = "GROQ_API_KEY"
		}
		if g.Model == "" {
			g.Model = "llama-3.1-8b-instant"
		}
		if g.Temperature == 0 {
			g.Temperature = 0.3
		}
		if g.MaxTokens == 0 {
			g.MaxTokens = 1024
		}
		if g.TimeoutSecs == 0 {
			g.TimeoutSecs = 120
		}
	}
	if cfg.Generator.Type == "ollama" {
		if cfg.Generator.Ollama == nil {
			cfg.Generator.Ollama = &OllamaConfig{}
		}
		applyOllamaDefaults(cfg.Generator.Ollama, "llama3.2")
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func applyOllamaDefaults(o *OllamaConfig, model string) {
	if o.Host == "" {
		o.Host = os.Getenv("OLLAMA_HOST")
	}
	if o.Host == "" {
		o.Host = "http://localhost:11434"
	}
	if o.Model == "" {
		o.Model = model
	}
	if o.TimeoutSecs == 0 {
		o.TimeoutSecs = 120
	}
}
