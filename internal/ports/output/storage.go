// Package output defines the secondary/driven ports of the application.
package output

import (
	"context"
	"io"
	"path"
	"strings"
)

// ObjectStorage defines the secondary port for object storage operations.
type ObjectStorage interface {
	// List returns all boundary documents and map sidecars in the storage.
	List(ctx context.Context) ([]StorageObject, error)

	// Download downloads an object to the local filesystem.
	Download(ctx context.Context, key string, dest string) error

	// GetReader returns a reader for the given object.
	GetReader(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks if an object exists.
	Exists(ctx context.Context, key string) (bool, error)
}

// StorageObject represents a file in object storage.
type StorageObject struct {
	Key          string // Object key/path
	Size         int64  // Size in bytes
	LastModified int64  // Unix timestamp
	ETag         string // Content hash
}

// StorageType represents the type of storage backend.
type StorageType string

const (
	StorageTypeS3    StorageType = "s3"
	StorageTypeAzure StorageType = "azure"
	StorageTypeHTTP  StorageType = "http"
	StorageTypeLocal StorageType = "local"
)

// File extensions recognised in storage.
var (
	BoundaryExtensions = []string{".geojson", ".json", ".gpkg"}
	SidecarExtensions  = []string{".yaml", ".yml"}
)

// IsBoundaryFile reports whether key names a boundary document.
func IsBoundaryFile(key string) bool {
	return hasExtension(key, BoundaryExtensions)
}

// IsSidecarFile reports whether key names a map sidecar file.
func IsSidecarFile(key string) bool {
	return hasExtension(key, SidecarExtensions)
}

// IsMapFile reports whether key is relevant to map loading.
func IsMapFile(key string) bool {
	return IsBoundaryFile(key) || IsSidecarFile(key)
}

// IsGeoPackage reports whether key names a GeoPackage file.
func IsGeoPackage(key string) bool {
	return strings.EqualFold(path.Ext(key), ".gpkg")
}

func hasExtension(key string, exts []string) bool {
	ext := strings.ToLower(path.Ext(key))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
