package store

import "errors"

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict indicates a conditional status transition matched no row,
	// meaning another invocation already moved the item out of the expected
	// status (or the item does not exist).
	ErrConflict = errors.New("store: status conflict")
)
