package engine

import "errors"

var (
	// ErrRuntimeUnavailable is returned for every call, in-flight or
	// future, once the runtime worker has terminated.
	ErrRuntimeUnavailable = errors.New("script runtime unavailable")

	// ErrScript wraps evaluation failures and panics raised by
	// interpreted code.
	ErrScript = errors.New("script error")
)
