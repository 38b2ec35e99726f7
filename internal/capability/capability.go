// Package capability decides, once per process, whether semantic search can
// run. The result is an immutable value handed to the indexer and searcher.
package capability

import (
	"fmt"
	"log/slog"

	"github.com/dshills/paperindex/internal/embedder"
	"github.com/dshills/paperindex/internal/storage"
)

// Capability records whether embeddings can be produced and compared
type Capability struct {
	Available bool
	Reason    string // Why semantic search is unavailable; empty when Available

	Backend   string // Vector backend name
	Provider  string
	Model     string
	Dimension int
}

// Enabled builds an available capability
func Enabled(backend string, fp storage.Fingerprint) Capability {
	return Capability{
		Available: true,
		Backend:   backend,
		Provider:  fp.Provider,
		Model:     fp.Model,
		Dimension: fp.Dimension,
	}
}

// Disabled builds an unavailable capability with a human readable reason
func Disabled(reason string) Capability {
	return Capability{Reason: reason}
}

// Fingerprint is the embedding fingerprint vectors must carry to be compared
func (c Capability) Fingerprint() storage.Fingerprint {
	return storage.Fingerprint{Provider: c.Provider, Model: c.Model, Dimension: c.Dimension}
}

func (c Capability) String() string {
	if !c.Available {
		return "unavailable: " + c.Reason
	}
	return fmt.Sprintf("available (%s, %s)", c.Backend, c.Fingerprint())
}

// Checks carries the facts Probe decides on
type Checks struct {
	GOOS   string
	GOARCH string

	Backend    storage.VectorBackend
	BackendErr error

	Embedder    embedder.Embedder
	EmbedderErr error
}

// nativePlatforms lists where the sqlite-vec extension ships prebuilt
var nativePlatforms = map[string]bool{
	"linux/amd64":   true,
	"linux/arm64":   true,
	"darwin/amd64":  true,
	"darwin/arm64":  true,
	"windows/amd64": true,
	"windows/arm64": true,
}

// NativeSupported reports whether the sqlite-vec backend may be attempted
func NativeSupported(goos, goarch string) bool {
	return nativePlatforms[goos+"/"+goarch]
}

// Probe evaluates checks in order; the first failure wins and is logged once.
func Probe(logger *slog.Logger, c Checks) Capability {
	if logger == nil {
		logger = slog.Default()
	}

	result := probe(c)
	if !result.Available {
		logger.Warn("semantic search unavailable, falling back to lexical", "reason", result.Reason)
	} else {
		logger.Debug("semantic search available",
			"backend", result.Backend,
			"provider", result.Provider,
			"model", result.Model,
			"dimension", result.Dimension,
		)
	}
	return result
}

func probe(c Checks) Capability {
	if c.Backend != nil && c.Backend.Name() == storage.BackendNative && !NativeSupported(c.GOOS, c.GOARCH) {
		return Disabled(fmt.Sprintf("sqlite-vec is not supported on %s/%s", c.GOOS, c.GOARCH))
	}

	if c.BackendErr != nil {
		return Disabled(fmt.Sprintf("vector backend: %v", c.BackendErr))
	}
	if c.Backend == nil {
		return Disabled("vector backend: none selected")
	}

	if c.EmbedderErr != nil {
		return Disabled(fmt.Sprintf("embedder: %v", c.EmbedderErr))
	}
	if c.Embedder == nil {
		return Disabled("embedder: none configured")
	}

	fp := embedder.Fingerprint(c.Embedder)
	if fp.Dimension <= 0 {
		return Disabled(fmt.Sprintf("embedder: %s reports no dimension", fp))
	}

	return Enabled(c.Backend.Name(), fp)
}
