package capability

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/paperindex/internal/embedder"
	"github.com/dshills/paperindex/internal/storage"
)

func bruteForce(t *testing.T) storage.VectorBackend {
	t.Helper()
	s, err := storage.NewSQLiteStorage(":memory:", storage.WithVectorBackend(storage.BackendBruteForce))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	b, err := s.VectorBackend()
	require.NoError(t, err)
	return b
}

func localEmbedder(t *testing.T) embedder.Embedder {
	t.Helper()
	e, err := embedder.NewLocalProvider(64, nil)
	require.NoError(t, err)
	return e
}

func TestProbe(t *testing.T) {
	backend := bruteForce(t)
	emb := localEmbedder(t)

	tests := []struct {
		name      string
		checks    Checks
		available bool
		reason    string
	}{
		{
			name:      "all good",
			checks:    Checks{GOOS: "linux", GOARCH: "amd64", Backend: backend, Embedder: emb},
			available: true,
		},
		{
			name:      "pure go backend runs anywhere",
			checks:    Checks{GOOS: "plan9", GOARCH: "386", Backend: backend, Embedder: emb},
			available: true,
		},
		{
			name:   "backend disabled",
			checks: Checks{GOOS: "linux", GOARCH: "amd64", BackendErr: storage.ErrBackendDisabled, Embedder: emb},
			reason: "vector backend: vector backend disabled",
		},
		{
			name:   "embedder missing",
			checks: Checks{GOOS: "linux", GOARCH: "amd64", Backend: backend, EmbedderErr: embedder.ErrNoProviderEnabled},
			reason: "embedder: no embedding provider configured",
		},
		{
			name:   "backend failure wins over embedder failure",
			checks: Checks{Backend: nil, BackendErr: errors.New("boom"), EmbedderErr: errors.New("also boom")},
			reason: "vector backend: boom",
		},
		{
			name:   "nothing selected",
			checks: Checks{GOOS: "linux", GOARCH: "amd64", Embedder: emb},
			reason: "vector backend: none selected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Probe(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), tt.checks)
			assert.Equal(t, tt.available, got.Available)
			assert.Equal(t, tt.reason, got.Reason)
			if got.Available {
				assert.Equal(t, storage.BackendBruteForce, got.Backend)
				assert.Equal(t, embedder.Fingerprint(emb), got.Fingerprint())
			}
		})
	}
}

func TestProbe_LogsOneWarningOnFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	got := Probe(logger, Checks{BackendErr: storage.ErrBackendDisabled})
	assert.False(t, got.Available)
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("level=WARN")))
	assert.Contains(t, buf.String(), "vector backend disabled")
}

func TestNativeSupported(t *testing.T) {
	assert.True(t, NativeSupported("linux", "arm64"))
	assert.True(t, NativeSupported("darwin", "amd64"))
	assert.False(t, NativeSupported("freebsd", "amd64"))
	assert.False(t, NativeSupported("linux", "riscv64"))
}

func TestConstructors(t *testing.T) {
	fp := storage.Fingerprint{Provider: "local", Model: "m", Dimension: 8}
	on := Enabled("bruteforce", fp)
	assert.True(t, on.Available)
	assert.Empty(t, on.Reason)
	assert.Equal(t, fp, on.Fingerprint())
	assert.Contains(t, on.String(), "local/m@8")

	off := Disabled("no model")
	assert.False(t, off.Available)
	assert.Equal(t, "unavailable: no model", off.String())
	assert.True(t, off.Fingerprint().IsZero())
}
