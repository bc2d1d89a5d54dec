package tokenbucket

import "errors"

// Package-level error definitions for limiter argument validation.
var (
	// ErrInvalidRate indicates that the replenishment rate is not a positive,
	// finite number.
	ErrInvalidRate = errors.New("invalid rate")

	// ErrInvalidCapacity indicates that the bucket capacity is less than one.
	ErrInvalidCapacity = errors.New("invalid capacity")

	// ErrStorageRequired indicates that no storage backend was provided.
	ErrStorageRequired = errors.New("storage is required")

	// ErrInvalidKey indicates that the bucket key is empty.
	ErrInvalidKey = errors.New("invalid key")

	// ErrInvalidTokenCount indicates that the requested token count is less
	// than one.
	ErrInvalidTokenCount = errors.New("invalid token count")
)
