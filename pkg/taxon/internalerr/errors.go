package internalerr

import "errors"

// Sentinel errors for common cases
var (
	// ErrModelNotFound is returned when no persisted model exists and
	// creating a fresh one is disabled.
	ErrModelNotFound = errors.New("model not found")

	// ErrCorruptModel is returned when a persisted model cannot be
	// decompressed or its structure cannot be decoded.
	ErrCorruptModel = errors.New("corrupt model")

	// ErrInvalidInput is returned when a caller passes a value of an
	// unsupported shape (e.g. reduce with neither a list nor a map).
	ErrInvalidInput = errors.New("invalid input")

	// ErrRemoteImport is returned when fetching a pre-trained model
	// over HTTP fails.
	ErrRemoteImport = errors.New("remote import failed")

	// ErrDestroyed is returned by every operation attempted after
	// Destroy; destroyed classifiers never silently no-op.
	ErrDestroyed = errors.New("classifier destroyed")

	// ErrPurgeInProgress is returned when a purge is requested while
	// another purge or a save already holds the guard.
	ErrPurgeInProgress = errors.New("purge already in progress")

	// ErrSaveInProgress is returned when a save is requested while another
	// save already holds the guard.
	ErrSaveInProgress = errors.New("save already in progress")

	// ErrInvalidConfig is returned for out-of-range or unparseable
	// configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)
