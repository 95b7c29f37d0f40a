package engine

import (
	"errors"
	"fmt"
)

// RoundBudget counts rounds for one run and enforces a maximum.
//
// Acyclic workflows terminate on their own; the budget bounds runs whose node
// declarations are defective (for example a node that keeps producing new
// indices for its own input family).
type RoundBudget struct {
	maxRounds int
	current   int
}

// NewRoundBudget creates a budget allowing maxRounds rounds.
func NewRoundBudget(maxRounds int) *RoundBudget {
	return &RoundBudget{maxRounds: maxRounds}
}

// Check counts one more round and validates it against the limit.
func (b *RoundBudget) Check(runID string) error {
	b.current++
	if b.current > b.maxRounds {
		return &RoundLimitError{
			RunID:  runID,
			Rounds: b.current,
			Limit:  b.maxRounds,
		}
	}
	return nil
}

// Current returns the number of rounds counted so far.
func (b *RoundBudget) Current() int {
	return b.current
}

// MaxRounds returns the limit.
func (b *RoundBudget) MaxRounds() int {
	return b.maxRounds
}

// RoundLimitError is the failure cause when a run exceeds its round budget.
type RoundLimitError struct {
	RunID  string
	Rounds int
	Limit  int
}

// Error implements the error interface.
func (e *RoundLimitError) Error() string {
	return fmt.Sprintf("run %s exceeded round limit: round %d > %d limit",
		e.RunID, e.Rounds, e.Limit)
}

// Code returns the error category for HasCode.
func (e *RoundLimitError) Code() RuntimeErrorCode {
	return ErrCodeRoundLimit
}

// IsRoundLimitError returns true if err is or wraps a RoundLimitError.
func IsRoundLimitError(err error) bool {
	var le *RoundLimitError
	return errors.As(err, &le)
}
