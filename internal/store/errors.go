package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a unique constraint is violated,
// such as registering an email that already exists.
var ErrConflict = errors.New("conflict")
