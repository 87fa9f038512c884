package funcs

import "errors"

// ErrDetached reports an invocation of a placeholder that never had a
// live callable attached.
var ErrDetached = errors.New("function placeholder was never attached")
