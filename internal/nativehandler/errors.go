package nativehandler

import "errors"

var (
	// ErrHandlerBinaryMissing is returned when neither an extracted library nor
	// a package entry can be found
	ErrHandlerBinaryMissing = errors.New("crash handler binary missing")

	// ErrNotEmbedded is returned when a reference does not point inside a package
	ErrNotEmbedded = errors.New("reference is not a package-internal path")
)
