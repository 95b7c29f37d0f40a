package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/parcelflow/internal/node"
)

// RuntimeError represents an error detected by the engine itself, as opposed
// to a failure returned by a node.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected run, when known.
	RunID string

	// NodeID identifies the node involved, when there is one.
	NodeID string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeNodeFailed indicates a node invocation returned an error,
	// panicked, timed out or was cancelled.
	ErrCodeNodeFailed RuntimeErrorCode = "NODE_FAILED"

	// ErrCodeRoundLimit indicates the run exceeded its round budget.
	ErrCodeRoundLimit RuntimeErrorCode = "ROUND_LIMIT"

	// ErrCodeOutputConflict indicates an output would rebind a bound name.
	ErrCodeOutputConflict RuntimeErrorCode = "OUTPUT_CONFLICT"

	// ErrCodeInvalidOutput indicates a node returned an unusable output name.
	ErrCodeInvalidOutput RuntimeErrorCode = "INVALID_OUTPUT"

	// ErrCodeInvalidWorkflow indicates the nodes, initial data or terminal
	// name were rejected before the first round.
	ErrCodeInvalidWorkflow RuntimeErrorCode = "INVALID_WORKFLOW"

	// ErrCodeCancelled indicates the run's context ended between rounds.
	ErrCodeCancelled RuntimeErrorCode = "CANCELLED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.RunID != "" && e.NodeID != "" {
		return fmt.Sprintf("%s: %s (run=%s, node=%s)", e.Code, e.Message, e.RunID, e.NodeID)
	}
	if e.NodeID != "" {
		return fmt.Sprintf("%s: %s (node=%s)", e.Code, e.Message, e.NodeID)
	}
	if e.RunID != "" {
		return fmt.Sprintf("%s: %s (run=%s)", e.Code, e.Message, e.RunID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// coder is implemented by engine errors that are not RuntimeErrors but
// still belong to a code category.
type coder interface {
	Code() RuntimeErrorCode
}

// HasCode returns true if err is or wraps an error in the given category:
// a RuntimeError with that code, an error whose Code method returns it, or,
// for ErrCodeNodeFailed, a node.NodeExecutionError.
func HasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) && re.Code == code {
		return true
	}
	var c coder
	if errors.As(err, &c) && c.Code() == code {
		return true
	}
	return code == ErrCodeNodeFailed && node.IsNodeExecutionError(err)
}

// IsInvalidWorkflow returns true for errors returned by Execute before any
// round ran.
func IsInvalidWorkflow(err error) bool {
	return HasCode(err, ErrCodeInvalidWorkflow)
}

// IsConflictError returns true if err is an output conflict.
func IsConflictError(err error) bool {
	return HasCode(err, ErrCodeOutputConflict)
}

func invalidWorkflow(format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvalidWorkflow,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewConflictError creates a RuntimeError for a rejected rebind.
func NewConflictError(runID string, c Conflict) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeOutputConflict,
		Message: fmt.Sprintf("output %s is already bound", c.Name),
		RunID:   runID,
		NodeID:  c.NodeID,
		Details: map[string]string{
			"name":   c.Name,
			"round":  fmt.Sprintf("%d", c.Round),
			"winner": c.Winner,
		},
	}
}
