package crashplugin

import "errors"

var (
	// ErrLibraryLoad is returned when the handler cannot be started or dispensed
	ErrLibraryLoad = errors.New("crash handler library load failed")

	// ErrInvocation is returned when a call into a loaded handler fails
	ErrInvocation = errors.New("crash handler invocation failed")

	// ErrLoaderClosed is returned by Load after Close
	ErrLoaderClosed = errors.New("crash handler loader is closed")
)
