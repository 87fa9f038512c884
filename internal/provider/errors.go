package provider

import "errors"

// ErrNoResult is returned by callers that required a function to
// produce a value when the function returned nothing.
var ErrNoResult = errors.New("function returned no value")
