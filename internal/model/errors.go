package model

import "errors"

// ErrNotFound is returned when a pool, token or network cannot be resolved.
var ErrNotFound = errors.New("not found")
