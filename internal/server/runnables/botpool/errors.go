package botpool

import "errors"

// ErrWorkerPanic marks a worker that died from an unrecovered panic
// rather than a clean error return.
var ErrWorkerPanic = errors.New("worker panic")
