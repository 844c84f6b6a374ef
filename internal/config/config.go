// Package config loads and validates DocuMind configuration. Values apply in
// order of increasing precedence: hardcoded defaults, the user config file
// (~/.config/documind/config.yaml), the project config file (.documind.yaml),
// then DOCUMIND_* environment variables.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/t-simwa/documind-document-analyzer-sub000/internal/retrieval"
)

// Config is the complete DocuMind configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Rerank     RerankConfig     `yaml:"rerank" json:"rerank"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" json:"retrieval"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// StoreConfig configures the local vector store.
type StoreConfig struct {
	// Path is the SQLite document database location. Empty means in-memory.
	Path string `yaml:"path" json:"path"`
	// Dimensions must match the embedding model output. 0 means take the
	// embedder's reported dimensions.
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	Metric     string `yaml:"metric" json:"metric"`
	// M and EfSearch tune the HNSW graph. Zero keeps library defaults.
	M        int `yaml:"m" json:"m"`
	EfSearch int `yaml:"ef_search" json:"ef_search"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "openai" or "ollama".
	Provider  string `yaml:"provider" json:"provider"`
	Model     string `yaml:"model" json:"model"`
	BatchSize int    `yaml:"batch_size" json:"batch_size"`
	// CacheSize bounds the LRU embedding cache.
	CacheSize int `yaml:"cache_size" json:"cache_size"`

	// OpenAI settings. APIKey is normally supplied via OPENAI_API_KEY.
	APIKey  string `yaml:"api_key" json:"-"`
	BaseURL string `yaml:"base_url" json:"base_url"`

	// Ollama settings.
	OllamaHost string        `yaml:"ollama_host" json:"ollama_host"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	MaxRetries int           `yaml:"max_retries" json:"max_retries"`
}

// RerankConfig configures the optional reranking stage.
type RerankConfig struct {
	// Provider is "none", "local", or "hosted".
	Provider string `yaml:"provider" json:"provider"`
	// Hosted (Cohere-compatible) settings. APIKey normally comes from
	// COHERE_API_KEY.
	APIKey   string `yaml:"api_key" json:"-"`
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	Model    string `yaml:"model" json:"model"`
	// PoolSize bounds the local reranker's worker pool.
	PoolSize int `yaml:"pool_size" json:"pool_size"`
}

// RetrievalConfig holds the per-query defaults. Individual requests may
// override any of these.
type RetrievalConfig struct {
	SearchType    string  `yaml:"search_type" json:"search_type"`
	TopK          int     `yaml:"top_k" json:"top_k"`
	VectorWeight  float64 `yaml:"vector_weight" json:"vector_weight"`
	KeywordWeight float64 `yaml:"keyword_weight" json:"keyword_weight"`
	FusionMethod  string  `yaml:"fusion_method" json:"fusion_method"`
	RRFK          int     `yaml:"rrf_k" json:"rrf_k"`
	K1            float64 `yaml:"k1" json:"k1"`
	B             float64 `yaml:"b" json:"b"`
	RerankEnabled bool    `yaml:"rerank_enabled" json:"rerank_enabled"`
	RerankTopN    int     `yaml:"rerank_top_n" json:"rerank_top_n"`
	// RerankProvider pins requests to a specific reranker; empty accepts
	// whatever rerank.provider wired.
	RerankProvider string `yaml:"rerank_provider" json:"rerank_provider"`
	// RerankThreshold drops reranked results scoring below it. 0 keeps all.
	RerankThreshold float64 `yaml:"rerank_threshold" json:"rerank_threshold"`
	Deduplication   bool    `yaml:"deduplication" json:"deduplication"`
	DedupThreshold  float64 `yaml:"dedup_threshold" json:"dedup_threshold"`
	QueryExpansion  bool    `yaml:"query_expansion" json:"query_expansion"`
	// RequestTimeout bounds a hybrid retrieve end to end.
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level" json:"level"`
	// Format is "text" or "json".
	Format string `yaml:"format" json:"format"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Store: StoreConfig{
			Path:   defaultStorePath(),
			Metric: "cos",
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "ollama",
			BatchSize: 32,
			CacheSize: 1000,
			Timeout:   60 * time.Second,
		},
		Rerank: RerankConfig{
			Provider: "none",
		},
		Retrieval: RetrievalConfig{
			SearchType:     string(retrieval.SearchTypeHybrid),
			TopK:           retrieval.DefaultTopK,
			VectorWeight:   retrieval.DefaultVectorWeight,
			KeywordWeight:  retrieval.DefaultKeywordWeight,
			FusionMethod:   string(retrieval.FusionRRF),
			RRFK:           retrieval.DefaultRRFK,
			K1:             retrieval.DefaultK1,
			B:              retrieval.DefaultB,
			RerankTopN:     retrieval.DefaultRerankTopN,
			Deduplication:  true,
			DedupThreshold: retrieval.DefaultDedupThreshold,
			RequestTimeout: retrieval.DefaultRequestTimeout,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// RetrievalDefaults converts the file-level retrieval section into the
// per-request Config consumed by the retrieval service.
func (c *Config) RetrievalDefaults() retrieval.Config {
	return retrieval.Config{
		SearchType:             retrieval.SearchType(c.Retrieval.SearchType),
		TopK:                   c.Retrieval.TopK,
		VectorWeight:           c.Retrieval.VectorWeight,
		KeywordWeight:          c.Retrieval.KeywordWeight,
		FusionMethod:           retrieval.FusionMethod(c.Retrieval.FusionMethod),
		RRFK:                   c.Retrieval.RRFK,
		K1:                     c.Retrieval.K1,
		B:                      c.Retrieval.B,
		RerankEnabled:          c.Retrieval.RerankEnabled,
		RerankTopN:             c.Retrieval.RerankTopN,
		RerankProvider:         c.Retrieval.RerankProvider,
		RerankThreshold:        c.Retrieval.RerankThreshold,
		DeduplicationEnabled:   c.Retrieval.Deduplication,
		DeduplicationThreshold: c.Retrieval.DedupThreshold,
		QueryExpansionEnabled:  c.Retrieval.QueryExpansion,
	}
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".documind", "store.db")
	}
	return filepath.Join(home, ".documind", "store.db")
}

// UserConfigPath returns the user configuration file location, following
// XDG_CONFIG_HOME when set.
func UserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "documind", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "documind", "config.yaml")
	}
	return filepath.Join(home, ".config", "documind", "config.yaml")
}

// Load builds the effective configuration for a project directory.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := UserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("user config: %w", err)
		}
	}

	if err := cfg.loadProjectFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadProjectFile merges .documind.yaml (or .yml) from dir when present.
func (c *Config) loadProjectFile(dir string) error {
	for _, name := range []string{".documind.yaml", ".documind.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c. Booleans that default
// to true (deduplication) are handled by merging only alongside another
// field from the same section.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Store.Path != "" {
		c.Store.Path = other.Store.Path
	}
	if other.Store.Dimensions != 0 {
		c.Store.Dimensions = other.Store.Dimensions
	}
	if other.Store.Metric != "" {
		c.Store.Metric = other.Store.Metric
	}
	if other.Store.M != 0 {
		c.Store.M = other.Store.M
	}
	if other.Store.EfSearch != 0 {
		c.Store.EfSearch = other.Store.EfSearch
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}
	if other.Embeddings.APIKey != "" {
		c.Embeddings.APIKey = other.Embeddings.APIKey
	}
	if other.Embeddings.BaseURL != "" {
		c.Embeddings.BaseURL = other.Embeddings.BaseURL
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.Timeout != 0 {
		c.Embeddings.Timeout = other.Embeddings.Timeout
	}
	if other.Embeddings.MaxRetries != 0 {
		c.Embeddings.MaxRetries = other.Embeddings.MaxRetries
	}

	if other.Rerank.Provider != "" {
		c.Rerank.Provider = other.Rerank.Provider
	}
	if other.Rerank.APIKey != "" {
		c.Rerank.APIKey = other.Rerank.APIKey
	}
	if other.Rerank.Endpoint != "" {
		c.Rerank.Endpoint = other.Rerank.Endpoint
	}
	if other.Rerank.Model != "" {
		c.Rerank.Model = other.Rerank.Model
	}
	if other.Rerank.PoolSize != 0 {
		c.Rerank.PoolSize = other.Rerank.PoolSize
	}

	if other.Retrieval.SearchType != "" {
		c.Retrieval.SearchType = other.Retrieval.SearchType
	}
	if other.Retrieval.TopK != 0 {
		c.Retrieval.TopK = other.Retrieval.TopK
	}
	if other.Retrieval.VectorWeight != 0 {
		c.Retrieval.VectorWeight = other.Retrieval.VectorWeight
	}
	if other.Retrieval.KeywordWeight != 0 {
		c.Retrieval.KeywordWeight = other.Retrieval.KeywordWeight
	}
	if other.Retrieval.FusionMethod != "" {
		c.Retrieval.FusionMethod = other.Retrieval.FusionMethod
	}
	if other.Retrieval.RRFK != 0 {
		c.Retrieval.RRFK = other.Retrieval.RRFK
	}
	if other.Retrieval.K1 != 0 {
		c.Retrieval.K1 = other.Retrieval.K1
	}
	if other.Retrieval.B != 0 {
		c.Retrieval.B = other.Retrieval.B
	}
	if other.Retrieval.RerankEnabled {
		c.Retrieval.RerankEnabled = true
	}
	if other.Retrieval.RerankTopN != 0 {
		c.Retrieval.RerankTopN = other.Retrieval.RerankTopN
	}
	if other.Retrieval.RerankProvider != "" {
		c.Retrieval.RerankProvider = other.Retrieval.RerankProvider
	}
	if other.Retrieval.RerankThreshold != 0 {
		c.Retrieval.RerankThreshold = other.Retrieval.RerankThreshold
	}
	// Deduplication defaults true; a project that sets a threshold is also
	// taken to have decided the toggle.
	if other.Retrieval.DedupThreshold != 0 {
		c.Retrieval.Deduplication = other.Retrieval.Deduplication
		c.Retrieval.DedupThreshold = other.Retrieval.DedupThreshold
	}
	if other.Retrieval.QueryExpansion {
		c.Retrieval.QueryExpansion = true
	}
	if other.Retrieval.RequestTimeout != 0 {
		c.Retrieval.RequestTimeout = other.Retrieval.RequestTimeout
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.Format != "" {
		c.Logging.Format = other.Logging.Format
	}
}

// applyEnvOverrides applies DOCUMIND_* environment variables, plus the
// conventional provider key variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DOCUMIND_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("DOCUMIND_STORE_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Store.Dimensions = n
		}
	}

	if v := os.Getenv("DOCUMIND_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("DOCUMIND_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("DOCUMIND_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.Embeddings.APIKey == "" {
		c.Embeddings.APIKey = v
	}

	if v := os.Getenv("DOCUMIND_RERANK_PROVIDER"); v != "" {
		c.Rerank.Provider = v
	}
	if v := os.Getenv("COHERE_API_KEY"); v != "" && c.Rerank.APIKey == "" {
		c.Rerank.APIKey = v
	}

	if v := os.Getenv("DOCUMIND_SEARCH_TYPE"); v != "" {
		c.Retrieval.SearchType = v
	}
	// Weight overrides accept explicit zero.
	if v := os.Getenv("DOCUMIND_VECTOR_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && w >= 0 && w <= 1 {
			c.Retrieval.VectorWeight = w
		}
	}
	if v := os.Getenv("DOCUMIND_KEYWORD_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && w >= 0 && w <= 1 {
			c.Retrieval.KeywordWeight = w
		}
	}
	if v := os.Getenv("DOCUMIND_RERANK_THRESHOLD"); v != "" {
		if th, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && th >= 0 && th <= 1 {
			c.Retrieval.RerankThreshold = th
		}
	}
	if v := os.Getenv("DOCUMIND_RRF_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Retrieval.RRFK = k
		}
	}
	if v := os.Getenv("DOCUMIND_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Retrieval.TopK = k
		}
	}

	if v := os.Getenv("DOCUMIND_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("DOCUMIND_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}

// Validate checks the effective configuration.
func (c *Config) Validate() error {
	if c.Retrieval.VectorWeight < 0 || c.Retrieval.VectorWeight > 1 {
		return fmt.Errorf("retrieval.vector_weight must be between 0 and 1, got %f", c.Retrieval.VectorWeight)
	}
	if c.Retrieval.KeywordWeight < 0 || c.Retrieval.KeywordWeight > 1 {
		return fmt.Errorf("retrieval.keyword_weight must be between 0 and 1, got %f", c.Retrieval.KeywordWeight)
	}
	sum := c.Retrieval.VectorWeight + c.Retrieval.KeywordWeight
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("retrieval.vector_weight + retrieval.keyword_weight must equal 1.0, got %.2f", sum)
	}
	if c.Retrieval.TopK < 0 {
		return fmt.Errorf("retrieval.top_k must be non-negative, got %d", c.Retrieval.TopK)
	}

	switch strings.ToLower(c.Retrieval.SearchType) {
	case string(retrieval.SearchTypeVector), string(retrieval.SearchTypeKeyword), string(retrieval.SearchTypeHybrid):
	default:
		return fmt.Errorf("retrieval.search_type must be 'vector', 'keyword', or 'hybrid', got %s", c.Retrieval.SearchType)
	}
	switch strings.ToLower(c.Retrieval.FusionMethod) {
	case string(retrieval.FusionRRF), string(retrieval.FusionWeighted), string(retrieval.FusionMean):
	default:
		return fmt.Errorf("retrieval.fusion_method must be 'rrf', 'weighted', or 'mean', got %s", c.Retrieval.FusionMethod)
	}

	if c.Retrieval.RerankThreshold < 0 || c.Retrieval.RerankThreshold > 1 {
		return fmt.Errorf("retrieval.rerank_threshold must be between 0 and 1, got %f", c.Retrieval.RerankThreshold)
	}
	switch strings.ToLower(c.Retrieval.RerankProvider) {
	case "", "none", "local", "hosted":
	default:
		return fmt.Errorf("retrieval.rerank_provider must be 'none', 'local', or 'hosted', got %s", c.Retrieval.RerankProvider)
	}

	switch strings.ToLower(c.Store.Metric) {
	case "cos", "l2":
	default:
		return fmt.Errorf("store.metric must be 'cos' or 'l2', got %s", c.Store.Metric)
	}

	switch strings.ToLower(c.Embeddings.Provider) {
	case "openai", "ollama":
	default:
		return fmt.Errorf("embeddings.provider must be 'openai' or 'ollama', got %s", c.Embeddings.Provider)
	}
	switch strings.ToLower(c.Rerank.Provider) {
	case "", "none", "local", "hosted":
	default:
		return fmt.Errorf("rerank.provider must be 'none', 'local', or 'hosted', got %s", c.Rerank.Provider)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be 'text' or 'json', got %s", c.Logging.Format)
	}

	return nil
}

// WriteYAML writes the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
