package shortblob

import "github.com/meigma/shortblob/core"

// Errors re-exported from core.
var (
	// ErrNotFound is returned when an identifier is malformed or has no content.
	ErrNotFound = core.ErrNotFound

	// ErrStorageFailure is matched by errors from the persistent tier.
	ErrStorageFailure = core.ErrStorageFailure

	// ErrConfiguration is matched by invalid configuration errors.
	ErrConfiguration = core.ErrConfiguration

	// ErrInvalidID is returned when a string is not a well-formed identifier.
	ErrInvalidID = core.ErrInvalidID
)

// Error types re-exported from core.
type (
	// StorageError describes a failed persistent-tier operation.
	StorageError = core.StorageError

	// ConfigError describes an invalid setting.
	ConfigError = core.ConfigError
)
