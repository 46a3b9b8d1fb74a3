// Package services defines domain-specific errors
package services

import "errors"

// MaxGridDimension bounds split grid rows and columns.
const MaxGridDimension = 8

// Domain errors - DRY principle: defined once, used everywhere
var (
	ErrInvalidGridSize = errors.New("grid rows and columns must be between 1 and 8")
	ErrNotSplitGrid    = errors.New("node is not a split grid")
	ErrNoAutosavePath  = errors.New("autosave path not configured")
)
