package harness

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/roach88/parcelflow/internal/parcel"
)

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] round %d %s -> %v\n", event.Seq, event.Round, event.Label(), event.Outputs)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against a result and returns
// the failure messages, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertParcelEquals:
		return assertParcelEquals(result, a)
	case AssertParcelAbsent:
		return assertParcelAbsent(result, a)
	case AssertExecCount:
		return assertExecCount(result.Trace, a)
	case AssertExecOrder:
		return assertExecOrder(result.Trace, a)
	case AssertRounds:
		return assertRounds(result, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

// assertParcelEquals compares canonical JSON, so 1 and 1.0 are equal and
// map key order never matters.
func assertParcelEquals(result *Result, a Assertion) error {
	actual, ok := result.State[a.Name]
	if !ok {
		return &AssertionError{
			Type:     AssertParcelEquals,
			Expected: fmt.Sprintf("%s bound", a.Name),
			Actual:   "not bound",
			Trace:    result.Trace,
		}
	}

	want, err := parcel.MarshalCanonical(a.Value)
	if err != nil {
		return fmt.Errorf("expected value of %s: %w", a.Name, err)
	}
	got, err := parcel.MarshalCanonical(actual)
	if err != nil {
		return fmt.Errorf("actual value of %s: %w", a.Name, err)
	}
	if !bytes.Equal(want, got) {
		return &AssertionError{
			Type:     AssertParcelEquals,
			Expected: fmt.Sprintf("%s = %s", a.Name, want),
			Actual:   fmt.Sprintf("%s = %s", a.Name, got),
		}
	}
	return nil
}

func assertParcelAbsent(result *Result, a Assertion) error {
	if v, ok := result.State[a.Name]; ok {
		return &AssertionError{
			Type:     AssertParcelAbsent,
			Expected: fmt.Sprintf("%s unbound", a.Name),
			Actual:   fmt.Sprintf("%s = %v", a.Name, v),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertExecCount counts scalar and indexed invocations of a node together.
func assertExecCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Node == a.Node {
			count++
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertExecCount,
			Expected: fmt.Sprintf("%d executions of %s", a.Count, a.Node),
			Actual:   fmt.Sprintf("%d executions", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertExecOrder checks that invocations appear in the specified order.
// They don't need to be consecutive.
func assertExecOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		label := event.Label()
		if _, ok := positions[label]; !ok {
			positions[label] = i + 1 // 1-indexed for readability
		}
	}

	for _, label := range a.Invocations {
		if positions[label] == 0 {
			return &AssertionError{
				Type:     AssertExecOrder,
				Expected: fmt.Sprintf("all invocations present: %v", a.Invocations),
				Actual:   fmt.Sprintf("missing invocation: %s", label),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Invocations); i++ {
		prev, curr := a.Invocations[i-1], a.Invocations[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertExecOrder,
				Expected: fmt.Sprintf("invocations in order: %v", a.Invocations),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertRounds(result *Result, a Assertion) error {
	if result.Rounds != a.Count {
		return &AssertionError{
			Type:     AssertRounds,
			Expected: fmt.Sprintf("%d rounds", a.Count),
			Actual:   fmt.Sprintf("%d rounds", result.Rounds),
		}
	}
	return nil
}
