package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound is returned when an identifier is absent from every tier.
	ErrNotFound = errors.New("store: not found")

	// ErrStorageFailure is matched by errors from the persistent tier other
	// than not-found (permissions, I/O, network).
	ErrStorageFailure = errors.New("store: storage failure")

	// ErrConfiguration is matched by errors describing an unusable
	// configuration, such as an unknown hash algorithm.
	ErrConfiguration = errors.New("store: invalid configuration")

	// ErrInvalidID is returned when a string is not a well-formed identifier
	// for the configured length.
	ErrInvalidID = errors.New("store: invalid identifier")
)

// StorageError records a failed persistent-tier operation.
type StorageError struct {
	Op   string // "read" or "write"
	Path string // shard path key
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is reports whether target is ErrStorageFailure.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorageFailure
}

// ConfigError describes a rejected configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("store: invalid configuration: %s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}
