// Package cache defines domain-specific errors
package cache

import "errors"

// Domain errors - DRY principle: defined once, used everywhere
var (
	ErrInvalidNodeID = errors.New("invalid node ID")
	ErrNilPayload    = errors.New("cache payload cannot be nil")
	ErrEntryNotFound = errors.New("cache entry not found")

	// Persistence errors
	ErrSaveFailed   = errors.New("failed to save cache entry")
	ErrLoadFailed   = errors.New("failed to load cache entry")
	ErrDeleteFailed = errors.New("failed to delete cache entry")
)
