package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/paperindex/pkg/types"
)

// clearEnv blanks every override so the host environment does not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvDBPath, EnvEmbeddingProvider, EnvEmbeddingModel, EnvVectorBackend,
		EnvLogLevel, EnvLogFormat, EnvOpenAIKey, EnvOllamaHost,
	} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFiles_MissingFilesGiveDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfg, err := LoadFiles(filepath.Join(dir, "absent.toml"), filepath.Join(dir, ".env"))
	require.NoError(t, err)

	want := Default()
	assert.Equal(t, want, cfg)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, 60.0, cfg.Search.RRFConstant)
	assert.Equal(t, 0.5, cfg.Search.DefaultAlpha)
	assert.Equal(t, "local", cfg.Embedding.Provider)
}

func TestLoadFiles_TOMLOverridesDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "config.toml", `
db_path = "/tmp/papers.db"
vector_backend = "bruteforce"

[embedding]
provider = "ollama"
model = "mxbai-embed-large"
dimension = 1024

[search]
default_limit = 5
default_alpha = 0.7

[indexer]
workers = 2
`)

	cfg, err := LoadFiles(path, "")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/papers.db", cfg.DBPath)
	assert.Equal(t, "bruteforce", cfg.VectorBackend)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, "mxbai-embed-large", cfg.Embedding.Model)
	assert.Equal(t, 1024, cfg.Embedding.Dimension)
	assert.Equal(t, 5, cfg.Search.DefaultLimit)
	assert.Equal(t, 0.7, cfg.Search.DefaultAlpha)
	assert.Equal(t, 2, cfg.Indexer.Workers)
	// untouched keys keep defaults
	assert.Equal(t, 100, cfg.Search.MaxLimit)
	assert.Equal(t, 1000, cfg.Embedding.CacheSize)
}

func TestLoadFiles_EnvBeatsDotenvBeatsFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "config.toml", `
db_path = "/from/file.db"
log_level = "warn"
`)
	envFile := writeFile(t, dir, ".env", `
PAPERINDEX_DB_PATH=/from/dotenv.db
PAPERINDEX_LOG_LEVEL=debug
PAPERINDEX_EMBEDDING_PROVIDER=openai
OPENAI_API_KEY=sk-dotenv
`)
	t.Setenv(EnvDBPath, "/from/env.db")

	cfg, err := LoadFiles(path, envFile)
	require.NoError(t, err)

	assert.Equal(t, "/from/env.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, "sk-dotenv", cfg.Embedding.APIKey)
}

func TestApplyEnv_ProviderSpecificVariables(t *testing.T) {
	env := map[string]string{
		EnvEmbeddingProvider: "ollama",
		EnvOllamaHost:        "gpu-box:11434",
		EnvOpenAIKey:         "sk-ignored",
	}
	cfg := Default()
	cfg.applyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "http://gpu-box:11434", cfg.Embedding.BaseURL)
	assert.Empty(t, cfg.Embedding.APIKey)

	cfg = Default()
	cfg.Embedding.Provider = "openai"
	cfg.Embedding.APIKey = "sk-file"
	cfg.applyEnv(func(k string) string {
		if k == EnvOpenAIKey {
			return "sk-env"
		}
		return ""
	})
	assert.Equal(t, "sk-file", cfg.Embedding.APIKey, "explicit key is kept")
}

func TestOllamaURL(t *testing.T) {
	assert.Equal(t, "http://localhost:11434", ollamaURL("localhost:11434"))
	assert.Equal(t, "https://ollama.example.com", ollamaURL("https://ollama.example.com"))
}

func TestLoadFiles_InvalidTOML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "config.toml", "db_path = [unterminated")

	_, err := LoadFiles(path, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"empty db path", func(c *Config) { c.DBPath = " " }, true},
		{"unknown backend", func(c *Config) { c.VectorBackend = "faiss" }, true},
		{"backend none", func(c *Config) { c.VectorBackend = "none" }, false},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "jina" }, true},
		{"provider disabled", func(c *Config) { c.Embedding.Provider = "none" }, false},
		{"negative dimension", func(c *Config) { c.Embedding.Dimension = -1 }, true},
		{"zero default limit", func(c *Config) { c.Search.DefaultLimit = 0 }, true},
		{"max below default", func(c *Config) { c.Search.MaxLimit = 5 }, true},
		{"zero rrf constant", func(c *Config) { c.Search.RRFConstant = 0 }, true},
		{"alpha above one", func(c *Config) { c.Search.DefaultAlpha = 1.5 }, true},
		{"alpha zero", func(c *Config) { c.Search.DefaultAlpha = 0 }, false},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, true},
		{"negative workers", func(c *Config) { c.Indexer.Workers = -2 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, types.ErrConfiguration)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.DBPath = "/data/papers.db"
	cfg.Search.DefaultAlpha = 0.25
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadFiles(path, "")
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.Embedding.APIKey = "sk-abcdef123456"

	red := cfg.Redacted()
	assert.Equal(t, "****3456", red.Embedding.APIKey)
	assert.Equal(t, "sk-abcdef123456", cfg.Embedding.APIKey)

	cfg.Embedding.APIKey = "abc"
	assert.Equal(t, "****", cfg.Redacted().Embedding.APIKey)
}
