package store

import "errors"

// ErrNotFound reports a lookup for a record that does not exist.
var ErrNotFound = errors.New("record not found")
