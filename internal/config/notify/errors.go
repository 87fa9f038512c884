package notify

import "errors"

var (
	// ErrBadTimeSpec reports an unparseable firing-time specification.
	ErrBadTimeSpec = errors.New("invalid notification time spec")

	// ErrBadFilter reports an unparseable recipient filter.
	ErrBadFilter = errors.New("invalid notification filter")

	// ErrBadMessage reports an unparseable message source.
	ErrBadMessage = errors.New("invalid notification message source")
)
