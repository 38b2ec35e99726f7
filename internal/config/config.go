// Package config loads paperindex settings.
//
// Values are resolved in order: built-in defaults, the TOML config file
// (~/.paperindex/config.toml unless a path is given), a .env file in the
// working directory, then process environment variables. Later sources win.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/paperindex/pkg/types"
)

// Environment variables that override file settings.
const (
	EnvDBPath            = "PAPERINDEX_DB_PATH"
	EnvEmbeddingProvider = "PAPERINDEX_EMBEDDING_PROVIDER"
	EnvEmbeddingModel    = "PAPERINDEX_EMBEDDING_MODEL"
	EnvVectorBackend     = "PAPERINDEX_VECTOR_BACKEND"
	EnvLogLevel          = "PAPERINDEX_LOG_LEVEL"
	EnvLogFormat         = "PAPERINDEX_LOG_FORMAT"
	EnvOpenAIKey         = "OPENAI_API_KEY"
	EnvOllamaHost        = "OLLAMA_HOST"
)

const (
	configDirName  = ".paperindex"
	configFileName = "config.toml"
	dbFileName     = "papers.db"
)

// Config is the full runtime configuration.
type Config struct {
	DBPath        string          `toml:"db_path"`
	LogLevel      string          `toml:"log_level"`
	LogFormat     string          `toml:"log_format"`
	VectorBackend string          `toml:"vector_backend"`
	Embedding     EmbeddingConfig `toml:"embedding"`
	Search        SearchConfig    `toml:"search"`
	Indexer       IndexerConfig   `toml:"indexer"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	Provider          string `toml:"provider"` // openai, ollama, local or none
	Model             string `toml:"model"`
	APIKey            string `toml:"api_key"`
	BaseURL           string `toml:"base_url"`
	Dimension         int    `toml:"dimension"` // 0 = provider default
	CacheSize         int    `toml:"cache_size"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
	TimeoutSecs       int    `toml:"timeout_secs"`
}

// SearchConfig holds query defaults.
type SearchConfig struct {
	DefaultLimit int     `toml:"default_limit"`
	MaxLimit     int     `toml:"max_limit"`
	RRFConstant  float64 `toml:"rrf_constant"`
	DefaultAlpha float64 `toml:"default_alpha"`
	CacheSize    int     `toml:"cache_size"`
	CacheTTLSecs int     `toml:"cache_ttl_secs"`
}

// IndexerConfig tunes indexing.
type IndexerConfig struct {
	Workers int `toml:"workers"` // 0 = runtime.NumCPU()
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DBPath:        defaultDBPath(),
		LogLevel:      "info",
		LogFormat:     "text",
		VectorBackend: "auto",
		Embedding: EmbeddingConfig{
			Provider:          "local",
			CacheSize:         1000,
			RequestsPerMinute: 3000,
			TimeoutSecs:       30,
		},
		Search: SearchConfig{
			DefaultLimit: 10,
			MaxLimit:     100,
			RRFConstant:  60,
			DefaultAlpha: 0.5,
			CacheSize:    1000,
			CacheTTLSecs: 3600,
		},
	}
}

// DefaultPath returns ~/.paperindex/config.toml, or an empty string when the
// home directory cannot be resolved.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, configDirName, configFileName)
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return dbFileName
	}
	return filepath.Join(home, configDirName, dbFileName)
}

// Load reads the config file at path (DefaultPath when empty), then .env in
// the working directory, then the environment.
func Load(path string) (*Config, error) {
	return LoadFiles(path, ".env")
}

// LoadFiles is Load with an explicit .env location. A missing config file or
// .env file is not an error.
func LoadFiles(path, envFile string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	dotenv := map[string]string{}
	if envFile != "" {
		vals, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			dotenv = vals
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("%w: read %s: %w", types.ErrConfiguration, envFile, err)
		}
	}

	cfg.applyEnv(func(key string) string {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v
		}
		return dotenv[key]
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", types.ErrConfiguration, path, err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%w: parse %s: %w", types.ErrConfiguration, path, err)
	}
	return nil
}

// applyEnv overrides settings from getenv. The provider override runs first
// so OPENAI_API_KEY and OLLAMA_HOST land on the selected provider.
func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv(EnvDBPath); v != "" {
		c.DBPath = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := getenv(EnvLogFormat); v != "" {
		c.LogFormat = v
	}
	if v := getenv(EnvVectorBackend); v != "" {
		c.VectorBackend = v
	}
	if v := getenv(EnvEmbeddingProvider); v != "" {
		c.Embedding.Provider = v
	}
	if v := getenv(EnvEmbeddingModel); v != "" {
		c.Embedding.Model = v
	}

	switch strings.ToLower(c.Embedding.Provider) {
	case "openai":
		if v := getenv(EnvOpenAIKey); v != "" && c.Embedding.APIKey == "" {
			c.Embedding.APIKey = v
		}
	case "ollama":
		if v := getenv(EnvOllamaHost); v != "" {
			c.Embedding.BaseURL = ollamaURL(v)
		}
	}
}

// ollamaURL accepts OLLAMA_HOST in the host:port form the ollama CLI uses.
func ollamaURL(host string) string {
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	return "http://" + host
}

// Validate checks value ranges. Errors wrap types.ErrConfiguration.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	switch strings.ToLower(c.VectorBackend) {
	case "", "auto", "sqlite-vec", "bruteforce", "none":
	default:
		errs = append(errs, fmt.Errorf("vector_backend %q must be auto, sqlite-vec, bruteforce or none", c.VectorBackend))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q must be text or json", c.LogFormat))
	}
	switch strings.ToLower(c.Embedding.Provider) {
	case "", "none", "off", "disabled", "local", "openai", "ollama":
	default:
		errs = append(errs, fmt.Errorf("embedding.provider %q is not supported", c.Embedding.Provider))
	}
	if c.Embedding.Dimension < 0 {
		errs = append(errs, errors.New("embedding.dimension must be >= 0"))
	}
	if c.Embedding.CacheSize < 0 || c.Embedding.RequestsPerMinute < 0 || c.Embedding.TimeoutSecs < 0 {
		errs = append(errs, errors.New("embedding cache_size, requests_per_minute and timeout_secs must be >= 0"))
	}
	if c.Search.DefaultLimit < 1 {
		errs = append(errs, errors.New("search.default_limit must be >= 1"))
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		errs = append(errs, fmt.Errorf("search.max_limit %d is below default_limit %d", c.Search.MaxLimit, c.Search.DefaultLimit))
	}
	if c.Search.RRFConstant <= 0 {
		errs = append(errs, errors.New("search.rrf_constant must be > 0"))
	}
	if c.Search.DefaultAlpha < 0 || c.Search.DefaultAlpha > 1 {
		errs = append(errs, errors.New("search.default_alpha must be within [0, 1]"))
	}
	if c.Search.CacheSize < 0 || c.Search.CacheTTLSecs < 0 {
		errs = append(errs, errors.New("search cache_size and cache_ttl_secs must be >= 0"))
	}
	if c.Indexer.Workers < 0 {
		errs = append(errs, errors.New("indexer.workers must be >= 0"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", types.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

// Save writes c as TOML to path, creating the parent directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("%w: %w", types.ErrConfiguration, err)
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", types.ErrConfiguration, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("%w: write %s: %w", types.ErrConfiguration, path, err)
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Embedding.APIKey != "" {
		c.Embedding.APIKey = "****" + lastN(c.Embedding.APIKey, 4)
	}
	return c
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return ""
	}
	return s[len(s)-n:]
}
