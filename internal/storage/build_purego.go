//go:build purego || !sqlite_vec

package storage

// Default build: pure Go SQLite, no C compiler required.
//
//   CGO_ENABLED=0 go build ./...
//
// FTS5 is compiled into modernc.org/sqlite. Vector similarity runs in Go
// through the brute-force backend.

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// VectorExtensionAvailable indicates if the sqlite-vec extension is linked in
	VectorExtensionAvailable = false

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
