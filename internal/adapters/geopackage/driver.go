// Package geopackage exports polygon layers of GeoPackage files as GeoJSON
// boundary documents using SpatiaLite.
package geopackage

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/mattn/go-sqlite3"
)

// driverName is the database/sql driver that loads SpatiaLite on connect.
const driverName = "sqlite3_spatialite"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		Extensions: spatiaLiteLibraryPaths(),
	})
}

// spatiaLiteLibraryPaths returns the candidate SpatiaLite libraries. An
// explicit SPATIALITE_LIBRARY_PATH is used alone.
func spatiaLiteLibraryPaths() []string {
	if envPath := os.Getenv("SPATIALITE_LIBRARY_PATH"); envPath != "" {
		return []string{envPath}
	}

	return []string{
		"/usr/lib/mod_spatialite.so", // Alpine
		"/usr/lib/x86_64-linux-gnu/mod_spatialite.so",
		"/usr/lib/aarch64-linux-gnu/mod_spatialite.so",
		"/usr/local/lib/mod_spatialite.dylib", // Homebrew (Intel)
		"/opt/homebrew/lib/mod_spatialite.dylib",
		"mod_spatialite",
	}
}

// openDB opens dsn with SpatiaLite loaded and verifies the extension.
func openDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	var version string
	if err := db.QueryRowContext(ctx, "SELECT spatialite_version()").Scan(&version); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("SpatiaLite extension not available: %w", err)
	}
	return db, nil
}

// openReadOnly opens a GeoPackage file without write access.
func openReadOnly(ctx context.Context, path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return openDB(ctx, fmt.Sprintf("file:%s?mode=ro", path))
}
