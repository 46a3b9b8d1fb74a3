// Package graph defines domain-specific errors
package graph

import "errors"

// Domain errors - DRY principle: defined once, used everywhere
var (
	// Graph errors
	ErrGraphNotFound = errors.New("graph state not found")
	ErrCyclicGraph   = errors.New("cycle detected")

	// Node errors
	ErrInvalidNodeID     = errors.New("invalid node ID")
	ErrInvalidNodeType   = errors.New("invalid node type")
	ErrNodeNotFound      = errors.New("node not found")
	ErrDuplicateNode     = errors.New("duplicate node ID")
	ErrPatchTypeMismatch = errors.New("patch does not match node type")

	// Edge errors
	ErrInvalidHandle      = errors.New("invalid handle")
	ErrIncompatibleHandle = errors.New("incompatible handle types")
	ErrEdgeNotFound       = errors.New("edge not found")
	ErrSelfLoop           = errors.New("self-loops are not allowed")
	ErrInvalidEdgeStyle   = errors.New("invalid edge style")

	// Group errors
	ErrGroupNotFound     = errors.New("group not found")
	ErrEmptyGroup        = errors.New("group needs at least one existing node")
	ErrInvalidGroupColor = errors.New("invalid group color")
)
