package bootstrap

import "errors"

var (
	// ErrEnvironmentVariableMissing is returned when the second-chance process
	// cannot find its configuration
	ErrEnvironmentVariableMissing = errors.New("crash handler environment variable missing")

	// ErrNativeInvocation is returned when the native entry point fails
	ErrNativeInvocation = errors.New("native crash handler invocation failed")
)
