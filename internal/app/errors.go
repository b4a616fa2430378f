package service

import "errors"

// ErrNotStarted is returned by operations that need the board or the worker
// pool before Start was called.
var ErrNotStarted = errors.New("service not started")
