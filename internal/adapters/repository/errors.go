package repository

import "errors"

// Sentinel kinds for anomaly board errors.
var (
	ErrNotFound     = errors.New("object not on board")
	ErrInvalidLimit = errors.New("invalid board limit")
	ErrInvalidEntry = errors.New("invalid board entry")
)
