package model

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned for malformed input rejected before any state change.
	ErrInvalidInput = errors.New("invalid input")
)
