package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jobrunner/geoview/internal/domain"
)

// writeFile streams r into dest, creating parent directories. A partially
// written file is removed.
func writeFile(dest string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return err
	}

	f, err := os.Create(dest) //#nosec G304 -- dest is a controlled local path
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(dest)
		return err
	}
	return f.Close()
}

// relativeKey strips the configured prefix from a bucket key.
func relativeKey(prefix, key string) string {
	return strings.TrimPrefix(strings.TrimPrefix(key, prefix), "/")
}

// prefixedKey joins the configured prefix and a relative key.
func prefixedKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return strings.TrimSuffix(prefix, "/") + "/" + key
}

// statusError maps an HTTP status of a remote object to a domain error.
func statusError(key string, status int) error {
	if status == 404 {
		return fmt.Errorf("%s: %w", key, domain.ErrNotFound)
	}
	return fmt.Errorf("%s: unexpected status %d: %w", key, status, domain.ErrStorageUnavailable)
}
