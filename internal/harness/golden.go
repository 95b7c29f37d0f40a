package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/parcelflow/internal/catalog"
	"github.com/roach88/parcelflow/internal/parcel"
)

// GoldenDir holds golden files relative to the test's package directory.
const GoldenDir = "testdata/golden"

// Snapshot is the deterministic part of a run: everything except
// durations and timestamps.
type Snapshot struct {
	Scenario string
	RunID    string
	Status   string
	Rounds   int
	Trace    []TraceEvent
	Final    []string
}

// NewSnapshot captures a scenario result.
func NewSnapshot(name string, result *Result) Snapshot {
	return Snapshot{
		Scenario: name,
		RunID:    result.RunID,
		Status:   result.Status,
		Rounds:   result.Rounds,
		Trace:    result.Trace,
		Final:    result.Names(),
	}
}

// toCanonicalMap converts a Snapshot to a map[string]any for canonical JSON
// serialization.
func (s Snapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		m := map[string]any{
			"seq":     event.Seq,
			"round":   event.Round,
			"node":    event.Node,
			"outputs": event.Outputs,
		}
		if event.Index != nil {
			m["index"] = *event.Index
		}
		if event.Error != "" {
			m["error"] = event.Error
		}
		trace[i] = m
	}

	return map[string]any{
		"scenario": s.Scenario,
		"run_id":   s.RunID,
		"status":   s.Status,
		"rounds":   s.Rounds,
		"trace":    trace,
		"final":    s.Final,
	}
}

// MarshalCanonical renders the snapshot as canonical JSON.
func (s Snapshot) MarshalCanonical() ([]byte, error) {
	return parcel.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if the scenario could not run. A snapshot mismatch fails t
// through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario, cat *catalog.Catalog) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, cat)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(name, result).MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

// ErrGoldenMismatch is returned by CompareGoldenFile when a snapshot differs
// from its golden file.
var ErrGoldenMismatch = errors.New("golden mismatch")

// CompareGoldenFile compares a result's snapshot with dir/{name}.golden
// outside of go test. With update set, the file is (re)written instead. A
// missing golden file without update is an error.
func CompareGoldenFile(dir, name string, result *Result, update bool) error {
	data, err := NewSnapshot(name, result).MarshalCanonical()
	if err != nil {
		return err
	}
	path := filepath.Join(dir, name+".golden")

	if update {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create golden dir: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write golden file: %w", err)
		}
		return nil
	}

	want, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read golden file: %w", err)
	}
	if !bytes.Equal(bytes.TrimSpace(want), data) {
		return fmt.Errorf("%w: %s\n  want: %s\n  got:  %s", ErrGoldenMismatch, path, bytes.TrimSpace(want), data)
	}
	return nil
}
