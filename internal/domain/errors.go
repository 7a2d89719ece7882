package domain

import (
	"errors"
	"fmt"
)

// Base error types (sentinel errors).
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidFormat = errors.New("invalid boundary document")
	ErrUnsupported   = errors.New("unsupported operation")
	ErrUnavailable   = errors.New("service unavailable")
)

// Specific errors.
var (
	ErrMapNotFound        = fmt.Errorf("map: %w", ErrNotFound)
	ErrRegionNotFound     = fmt.Errorf("region: %w", ErrNotFound)
	ErrSeriesNotFound     = fmt.Errorf("series: %w", ErrNotFound)
	ErrLayerNotFound      = fmt.Errorf("layer: %w", ErrNotFound)
	ErrInvalidViewRect    = fmt.Errorf("view rect: %w", ErrInvalidInput)
	ErrInvalidFinder      = fmt.Errorf("finder: %w", ErrInvalidInput)
	ErrUnsupportedSource  = fmt.Errorf("boundary source: %w", ErrUnsupported)
	ErrNotReady           = fmt.Errorf("service not ready: %w", ErrUnavailable)
	ErrMapNotReady        = fmt.Errorf("map not ready: %w", ErrUnavailable)
	ErrStorageUnavailable = fmt.Errorf("storage: %w", ErrUnavailable)
)

// FormatError reports a boundary document that could not be interpreted
// as a collection of named geometries.
type FormatError struct {
	Source string // Map or file the document came from, may be empty
	Err    error  // Underlying decode error
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%v %s: %v", ErrInvalidFormat, e.Source, e.Err)
	}
	return fmt.Sprintf("%v: %v", ErrInvalidFormat, e.Err)
}

// Unwrap returns the underlying error.
func (e *FormatError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrInvalidFormat.
func (e *FormatError) Is(target error) bool {
	return target == ErrInvalidFormat
}

// ValidationError represents a detailed validation error.
type ValidationError struct {
	Field      string      // Field that failed validation
	Value      interface{} // The invalid value
	Constraint string      // The constraint that was violated
	Message    string      // Human-readable message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s (value: %v, constraint: %s)",
		e.Field, e.Message, e.Value, e.Constraint)
}

// Unwrap returns the underlying error type.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// LoadError represents a failure while building a map's coordinate system.
type LoadError struct {
	MapID string // Map identifier
	Stage string // read, sidecar, parse, export
	Err   error  // Underlying error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("loading map %s failed at %s: %v", e.MapID, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// StorageError represents an error during storage operations.
type StorageError struct {
	Operation string // Operation that failed (download, list, etc.)
	Key       string // Object key
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage error during %s for %s: %v",
			e.Operation, e.Key, e.Err)
	}
	return fmt.Sprintf("storage error during %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string // Configuration field
	Message string // Error message
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error type.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidInput
}
