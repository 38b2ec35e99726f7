//go:build sqlite_vec && !purego

package storage

// Native build with the sqlite-vec extension registered on every connection.
//
//   CGO_ENABLED=1 go build -tags "sqlite_vec,sqlite_fts5" ./...
//
// Cosine distance is computed inside SQLite by vec_distance_cosine.

import (
	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// VectorExtensionAvailable indicates if the sqlite-vec extension is linked in
	VectorExtensionAvailable = true

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)

func init() {
	sqlite_vec.Auto()
}
