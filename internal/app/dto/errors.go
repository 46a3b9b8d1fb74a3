package dto

import (
	"errors"
	"fmt"
)

// Execution errors
var (
	ErrRunInProgress      = errors.New("a workflow run is already in progress")
	ErrMissingTextInput   = errors.New("missing text input")
	ErrMissingImageInput  = errors.New("missing image input")
	ErrSplitNotConfigured = errors.New("split grid is not configured")
	ErrBackendFailure     = errors.New("generation backend failed")
	ErrBackendUnavailable = errors.New("generation backend not configured")
)

// NodeErrorKind classifies node-level failures.
type NodeErrorKind string

const (
	// NodeErrorValidation covers missing inputs and unconfigured nodes
	NodeErrorValidation NodeErrorKind = "validation"
	// NodeErrorBackend covers failed or rejected backend requests
	NodeErrorBackend NodeErrorKind = "backend"
)

// NodeError is a failure recorded on a node that halts the run.
type NodeError struct {
	NodeID  string
	Kind    NodeErrorKind
	Message string
	Err     error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s", e.NodeID, e.Message)
}

func (e *NodeError) Unwrap() error { return e.Err }

// NewValidationError wraps a validation sentinel for a node.
func NewValidationError(nodeID string, err error, msg string) *NodeError {
	return &NodeError{NodeID: nodeID, Kind: NodeErrorValidation, Message: msg, Err: err}
}

// NewBackendError wraps a backend failure for a node.
func NewBackendError(nodeID string, err error, msg string) *NodeError {
	if err == nil {
		err = ErrBackendFailure
	}
	return &NodeError{NodeID: nodeID, Kind: NodeErrorBackend, Message: msg, Err: err}
}
