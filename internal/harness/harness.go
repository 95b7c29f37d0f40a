package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/parcelflow/internal/catalog"
	"github.com/roach88/parcelflow/internal/engine"
	"github.com/roach88/parcelflow/internal/nodes"
	"github.com/roach88/parcelflow/internal/testutil"
)

// Run executes a scenario against a workflow from cat and evaluates its
// assertions.
//
// The returned error reports a scenario that could not run at all (unknown
// workflow, invalid nodes or data). Status mismatches and failed assertions
// are recorded on the Result instead.
func Run(scenario *Scenario, cat *catalog.Catalog) (*Result, error) {
	return RunContext(context.Background(), scenario, cat)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario, cat *catalog.Catalog) (*Result, error) {
	wf, ok := cat.Get(scenario.Workflow)
	if !ok {
		return nil, fmt.Errorf("scenario %s: unknown workflow %q", scenario.Name, scenario.Workflow)
	}
	ns, err := wf.Build(nodes.Default())
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	terminal := wf.Terminal
	if scenario.Terminal != "" {
		terminal = scenario.Terminal
	}

	clock := testutil.NewStepClock(time.Millisecond)
	opts := []engine.Option{
		engine.WithNow(clock.Now),
		engine.WithRunIDGenerator(testutil.NewFixedRunID(scenario.RunID)),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), // Suppress logs in tests
	}
	if scenario.MaxRounds > 0 {
		opts = append(opts, engine.WithMaxRounds(scenario.MaxRounds))
	}

	res, err := engine.ExecuteWorkflow(ctx, ns, wf.InitialData(scenario.Data), terminal, opts...)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	result := NewResult()
	result.RunID = res.RunID
	result.Status = string(res.Status)
	result.Rounds = res.RoundsExecuted
	result.Trace = newTrace(res.ExecutionLog)
	for name, v := range res.FinalState {
		result.State[name] = v
	}

	if want := scenario.expectedStatus(); res.Status != want {
		msg := fmt.Sprintf("status = %s, want %s", res.Status, want)
		if res.Err != nil {
			msg += ": " + res.Err.Error()
		}
		result.AddError(msg)
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}
