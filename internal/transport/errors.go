package transport

import "errors"

// ErrTransport wraps chat-platform failures.
var ErrTransport = errors.New("transport error")
