package database

import "errors"

var (
	// ErrNotFound signals a missing report or match.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateMatch signals that a match for the (lost, found) pair already exists.
	ErrDuplicateMatch = errors.New("match already exists for this pair")
	// ErrInvalidStatus signals a status outside the allowed set.
	ErrInvalidStatus = errors.New("invalid status")
)
