package reporter

import "errors"

var (
	// ErrInvalidManifest is returned when a manifest does not match ManifestSchema
	ErrInvalidManifest = errors.New("invalid crash handler manifest")

	// ErrUnsupportedABI is recorded when the device ABI cannot run the handler
	ErrUnsupportedABI = errors.New("unsupported ABI")

	// ErrAlreadyInitialized is recorded when Initialize is called twice
	ErrAlreadyInitialized = errors.New("crash reporter already initialized")

	// ErrUnknownMode is returned by ParseMode
	ErrUnknownMode = errors.New("unknown crash handler mode")
)
