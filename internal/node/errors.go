package node

import (
	"errors"
	"fmt"
)

// NodeExecutionError reports that one invocation of a node failed.
//
// Cancellation, timeouts and recovered panics are reported with this type as
// well; Cause carries context.Canceled, context.DeadlineExceeded or the
// panic value wrapped in an error.
type NodeExecutionError struct {
	NodeID   string
	Index    int
	HasIndex bool
	Cause    error
}

// Error implements the error interface.
func (e *NodeExecutionError) Error() string {
	if e.HasIndex {
		return fmt.Sprintf("node %s[%d] failed: %v", e.NodeID, e.Index, e.Cause)
	}
	return fmt.Sprintf("node %s failed: %v", e.NodeID, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *NodeExecutionError) Unwrap() error {
	return e.Cause
}

// IsNodeExecutionError returns true if err is or wraps a NodeExecutionError.
func IsNodeExecutionError(err error) bool {
	var ne *NodeExecutionError
	return errors.As(err, &ne)
}
