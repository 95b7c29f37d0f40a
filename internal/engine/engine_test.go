package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/parcelflow/internal/node"
	"github.com/roach88/parcelflow/internal/parcel"
	"github.com/roach88/parcelflow/internal/testutil"
)

// spreadNode turns the list bound to from into the family to plus its count.
func spreadNode(id, from, to string) node.Node {
	return node.New(id, []string{from}, []string{to, parcel.CountName(to)},
		func(_ context.Context, in *node.Input) (map[string]any, error) {
			items, ok := parcel.AsList(in.MustValue(from))
			if !ok {
				return nil, fmt.Errorf("%s is not a list", from)
			}
			return parcel.Spread(to, items), nil
		})
}

// suffixNode appends suffix to the string it reads from `from`.
func suffixNode(id, from, to, suffix string) node.Node {
	return node.New(id, []string{from}, []string{to},
		func(_ context.Context, in *node.Input) (map[string]any, error) {
			s, ok := in.MustValue(from).(string)
			if !ok {
				return nil, fmt.Errorf("%s is not a string", from)
			}
			return map[string]any{to: s + suffix}, nil
		})
}

func collectNode(id, family, count, to string) node.Node {
	return node.New(id, nil, []string{to},
		func(_ context.Context, in *node.Input) (map[string]any, error) {
			items, err := in.Collect(family, count)
			if err != nil {
				return nil, err
			}
			return map[string]any{to: items}, nil
		},
		node.WithGather(family, count))
}

func respondNode(id, from, to string) node.Node {
	return node.New(id, []string{from}, []string{to},
		func(_ context.Context, in *node.Input) (map[string]any, error) {
			return map[string]any{to: map[string]any{
				"status": "success",
				"data":   in.MustValue(from),
			}}, nil
		})
}

// constNode has no requirements and emits fixed outputs.
func constNode(id string, outputs map[string]any) node.Node {
	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, parcel.MustParseName(name).Base)
	}
	return node.New(id, nil, names,
		func(context.Context, *node.Input) (map[string]any, error) {
			return outputs, nil
		})
}

func failNode(id string, requires []string, err error) node.Node {
	return node.New(id, requires, []string{"never"},
		func(context.Context, *node.Input) (map[string]any, error) {
			return nil, err
		})
}

func scenarioNodes() []node.Node {
	return []node.Node{
		spreadNode("spread", "request_data", "user"),
		suffixNode("process", "user", "processed", " (done)"),
		collectNode("collect", "processed", "user_count", "result"),
		respondNode("respond", "result", "response"),
	}
}

func labels(res *Result) []string {
	out := make([]string, len(res.ExecutionLog))
	for i, e := range res.ExecutionLog {
		out[i] = e.Label()
	}
	return out
}

func deterministicEngine(opts ...Option) *Engine {
	clock := testutil.NewStepClock(time.Millisecond)
	base := []Option{
		WithNow(clock.Now),
		WithRunIDGenerator(testutil.NewFixedRunID("run-test")),
	}
	return New(append(base, opts...)...)
}

func TestExecute_SpreadProcessCollectRespond(t *testing.T) {
	res, err := deterministicEngine().Execute(context.Background(), scenarioNodes(),
		map[string]any{"request_data": []any{"alice", "bob", "charlie"}},
		"response")
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, res.Status)
	assert.NoError(t, res.Err)
	assert.Equal(t, 4, res.RoundsExecuted)
	assert.Equal(t, "run-test", res.RunID)

	assert.Equal(t, []any{"alice (done)", "bob (done)", "charlie (done)"}, res.FinalState["result"])
	assert.Equal(t, 3, res.FinalState["user_count"])
	assert.Len(t, res.Executions("process"), 3)

	assert.Equal(t, []string{
		"spread",
		"process[0]", "process[1]", "process[2]",
		"collect",
		"respond",
	}, labels(res))

	rounds := make([]int, len(res.ExecutionLog))
	for i, e := range res.ExecutionLog {
		rounds[i] = e.Round
	}
	assert.Equal(t, []int{1, 2, 2, 2, 3, 4}, rounds)

	v, ok := res.TerminalValue()
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"status": "success",
		"data":   []any{"alice (done)", "bob (done)", "charlie (done)"},
	}, v)
}

func TestExecute_ExecutionLog(t *testing.T) {
	res, err := deterministicEngine().Execute(context.Background(), scenarioNodes(),
		map[string]any{"request_data": []any{"a", "b"}},
		"response")
	require.NoError(t, err)

	for i, e := range res.ExecutionLog {
		assert.Equal(t, int64(i+1), e.Seq, "seq must increase by one per execution")
		assert.Empty(t, e.Err)
		assert.Equal(t, time.Millisecond, e.Duration)
	}

	spread := res.ExecutionLog[0]
	assert.False(t, spread.HasIndex)
	assert.Equal(t, []string{"user[0]", "user[1]", "user_count"}, spread.Outputs)

	process := res.ExecutionLog[2]
	assert.True(t, process.HasIndex)
	assert.Equal(t, 1, process.Index)
	assert.Equal(t, []string{"processed[1]"}, process.Outputs)
}

func TestExecute_Deterministic(t *testing.T) {
	data := map[string]any{"request_data": []any{"x", "y", "z", "w"}}

	first, err := deterministicEngine().Execute(context.Background(), scenarioNodes(), data, "response")
	require.NoError(t, err)
	second, err := deterministicEngine().Execute(context.Background(), scenarioNodes(), data, "response")
	require.NoError(t, err)

	assert.Equal(t, first.ExecutionLog, second.ExecutionLog)
	assert.Equal(t, first.FinalState, second.FinalState)

	d1, err := first.Digest()
	require.NoError(t, err)
	d2, err := second.Digest()
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestExecute_RoundIsolation(t *testing.T) {
	var sawA bool
	probe := node.New("probe", nil, []string{"p"},
		func(_ context.Context, in *node.Input) (map[string]any, error) {
			sawA = in.Has("a")
			return map[string]any{"p": true}, nil
		})

	// b is registered before a but still needs a round of its own.
	nodes := []node.Node{
		suffixNode("b", "a", "b", "!"),
		constNode("a", map[string]any{"a": "hi"}),
		probe,
	}
	res, err := deterministicEngine().Execute(context.Background(), nodes, nil, "b")
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, res.Status)
	assert.False(t, sawA, "same-round output must not be visible")
	assert.Equal(t, []string{"a", "probe", "b"}, labels(res))
	assert.Equal(t, 2, res.ExecutionLog[2].Round)
	assert.Equal(t, "hi!", res.FinalState["b"])
}

func TestExecute_ExactlyOncePerPair(t *testing.T) {
	nodes := []node.Node{
		constNode("seed", map[string]any{"a": 1}),
		node.New("step", []string{"a"}, []string{"b"},
			func(context.Context, *node.Input) (map[string]any, error) {
				return map[string]any{"b": 2}, nil
			}),
		node.New("last", []string{"b"}, []string{"c"},
			func(context.Context, *node.Input) (map[string]any, error) {
				return map[string]any{"c": 3}, nil
			}),
	}
	res, err := deterministicEngine().Execute(context.Background(), nodes, nil, "c")
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, res.Status)
	assert.Equal(t, 3, res.RoundsExecuted)
	assert.Len(t, res.Executions("seed"), 1)
	assert.Len(t, res.Executions("step"), 1)
}

func TestExecute_FalsyValuesArePresent(t *testing.T) {
	nodes := []node.Node{
		node.New("check", []string{"zero", "empty", "no", "nothing"}, []string{"ok"},
			func(context.Context, *node.Input) (map[string]any, error) {
				return map[string]any{"ok": true}, nil
			}),
	}
	res, err := deterministicEngine().Execute(context.Background(), nodes,
		map[string]any{"zero": 0, "empty": "", "no": false, "nothing": nil},
		"ok")
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, res.Status)
	assert.Equal(t, 1, res.RoundsExecuted)
}

func TestExecute_TerminalInInitialData(t *testing.T) {
	res, err := deterministicEngine().Execute(context.Background(), scenarioNodes(),
		map[string]any{"response": "cached"}, "response")
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, res.Status)
	assert.Equal(t, 0, res.RoundsExecuted)
	assert.Empty(t, res.ExecutionLog)
	assert.Equal(t, "cached", res.FinalState["response"])
}

func TestExecute_DeadlockWhenInputNeverProduced(t *testing.T) {
	nodes := []node.Node{
		constNode("a", map[string]any{"a": 1}),
		suffixNode("b", "missing", "b", "?"),
	}
	res, err := deterministicEngine().Execute(context.Background(), nodes, nil, "b")
	require.NoError(t, err)

	assert.Equal(t, StatusDeadlocked, res.Status)
	assert.NoError(t, res.Err)
	assert.Equal(t, 1, res.RoundsExecuted)
	assert.NotContains(t, res.FinalState, "b")
	assert.Equal(t, []string{"missing"}, res.Missing(nodes))
}

func TestExecute_DeadlockWithNoEligibleNode(t *testing.T) {
	nodes := []node.Node{suffixNode("b", "missing", "b", "?")}
	res, err := deterministicEngine().Execute(context.Background(), nodes, nil, "b")
	require.NoError(t, err)

	assert.Equal(t, StatusDeadlocked, res.Status)
	assert.Equal(t, 0, res.RoundsExecuted)
	assert.Empty(t, res.ExecutionLog)
}

func TestExecute_FailureCommitsNothingFromRound(t *testing.T) {
	boom := errors.New("boom")
	nodes := []node.Node{
		constNode("ok", map[string]any{"x": 1}),
		failNode("bad", nil, boom),
	}
	res, err := deterministicEngine().Execute(context.Background(), nodes, nil, "never")
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, res.Status)
	assert.NotContains(t, res.FinalState, "x", "sibling outputs must be discarded")
	assert.ErrorIs(t, res.Err, boom)
	assert.True(t, HasCode(res.Err, ErrCodeNodeFailed))
	assert.False(t, HasCode(res.Err, ErrCodeRoundLimit))

	var ne *node.NodeExecutionError
	require.ErrorAs(t, res.Err, &ne)
	assert.Equal(t, "bad", ne.NodeID)
	assert.False(t, ne.HasIndex)

	require.Len(t, res.ExecutionLog, 2)
	assert.Empty(t, res.ExecutionLog[0].Err)
	assert.Contains(t, res.ExecutionLog[1].Err, "boom")
}

func TestExecute_FailureKeepsEarlierRounds(t *testing.T) {
	nodes := []node.Node{
		constNode("ok", map[string]any{"x": 1}),
		failNode("bad", []string{"x"}, errors.New("boom")),
	}
	res, err := deterministicEngine().Execute(context.Background(), nodes, nil, "never")
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 2, res.RoundsExecuted)
	assert.Equal(t, 1, res.FinalState["x"])
}

func TestExecute_IndexedFailureReportsIndex(t *testing.T) {
	process := node.New("process", []string{"user"}, []string{"processed"},
		func(_ context.Context, in *node.Input) (map[string]any, error) {
			if i, _ := in.Index(); i == 1 {
				return nil, errors.New("bad user")
			}
			return map[string]any{"processed": in.MustValue("user")}, nil
		})
	nodes := []node.Node{spreadNode("spread", "request_data", "user"), process}

	res, err := deterministicEngine().Execute(context.Background(), nodes,
		map[string]any{"request_data": []any{"a", "b", "c"}}, "never")
	require.NoError(t, err)

	var ne *node.NodeExecutionError
	require.ErrorAs(t, res.Err, &ne)
	assert.True(t, ne.HasIndex)
	assert.Equal(t, 1, ne.Index)
	assert.NotContains(t, res.FinalState, "processed[0]")
	assert.Equal(t, []string{"spread", "process[0]", "process[1]"}, labels(res))
}

func TestExecute_PanicIsRecovered(t *testing.T) {
	nodes := []node.Node{
		node.New("panics", nil, []string{"x"},
			func(context.Context, *node.Input) (map[string]any, error) {
				panic("kaboom")
			}),
	}
	res, err := deterministicEngine().Execute(context.Background(), nodes, nil, "x")
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, res.Status)
	assert.True(t, node.IsNodeExecutionError(res.Err))
	assert.Contains(t, res.Err.Error(), "panic: kaboom")
}

func TestExecute_InvocationTimeout(t *testing.T) {
	nodes := []node.Node{
		node.New("slow", nil, []string{"x"},
			func(ctx context.Context, _ *node.Input) (map[string]any, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			}),
	}
	res, err := New(WithInvocationTimeout(20*time.Millisecond)).
		Execute(context.Background(), nodes, nil, "x")
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.True(t, node.IsNodeExecutionError(res.Err))
}

func TestExecute_TimeoutAllowsFastNodes(t *testing.T) {
	res, err := New(WithInvocationTimeout(time.Second)).Execute(context.Background(),
		scenarioNodes(), map[string]any{"request_data": []any{"a"}}, "response")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, res.Status)
}

func TestExecute_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New().Execute(ctx, scenarioNodes(),
		map[string]any{"request_data": []any{"a"}}, "response")
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, res.Status)
	assert.True(t, HasCode(res.Err, ErrCodeCancelled))
	assert.Empty(t, res.ExecutionLog)
}

func TestExecute_CancelDuringNode(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	nodes := []node.Node{
		node.New("cancels", nil, []string{"x"},
			func(ctx context.Context, _ *node.Input) (map[string]any, error) {
				cancel()
				<-ctx.Done()
				return nil, ctx.Err()
			}),
	}
	res, err := New().Execute(ctx, nodes, nil, "x")
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.True(t, node.IsNodeExecutionError(res.Err))
}

func TestExecute_SameRoundConflictFirstWriterWins(t *testing.T) {
	nodes := []node.Node{
		constNode("first", map[string]any{"x": "first"}),
		constNode("second", map[string]any{"x": "second", "y": 2}),
	}
	res, err := deterministicEngine().Execute(context.Background(), nodes, nil, "x")
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, res.Status)
	assert.Equal(t, "first", res.FinalState["x"])
	assert.Equal(t, 2, res.FinalState["y"])

	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, Conflict{Name: "x", Round: 1, NodeID: "second", Winner: "first"}, res.Conflicts[0])

	p, ok := res.Parcels.Lookup(parcel.Bare("x"))
	require.True(t, ok)
	assert.Equal(t, "first", p.Producer())
}

func TestExecute_EarlierBindingWins(t *testing.T) {
	nodes := []node.Node{
		node.New("rewrite", []string{"x"}, []string{"x", "done"},
			func(context.Context, *node.Input) (map[string]any, error) {
				return map[string]any{"x": "new", "done": true}, nil
			}),
	}
	res, err := deterministicEngine().Execute(context.Background(), nodes,
		map[string]any{"x": "old"}, "done")
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, res.Status)
	assert.Equal(t, "old", res.FinalState["x"])
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "", res.Conflicts[0].Winner)
}

func TestExecute_StrictOutputsFailOnConflict(t *testing.T) {
	nodes := []node.Node{
		constNode("first", map[string]any{"x": "first"}),
		constNode("second", map[string]any{"x": "second", "y": 2}),
	}
	res, err := deterministicEngine(WithStrictOutputs(true)).
		Execute(context.Background(), nodes, nil, "x")
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, res.Status)
	assert.True(t, IsConflictError(res.Err))
	assert.Empty(t, res.FinalState, "strict conflict must commit nothing")
}

func TestExecute_RoundLimit(t *testing.T) {
	nodes := []node.Node{
		constNode("a", map[string]any{"a": "a"}),
		suffixNode("b", "a", "b", "b"),
		suffixNode("c", "b", "c", "c"),
		suffixNode("d", "c", "d", "d"),
	}
	res, err := deterministicEngine(WithMaxRounds(2)).
		Execute(context.Background(), nodes, nil, "d")
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, res.Status)
	assert.True(t, IsRoundLimitError(res.Err))
	assert.True(t, HasCode(res.Err, ErrCodeRoundLimit))
	assert.False(t, HasCode(res.Err, ErrCodeNodeFailed))
	assert.Equal(t, 2, res.RoundsExecuted)
	assert.Equal(t, "ab", res.FinalState["b"])
}

func TestExecute_EmptyArray(t *testing.T) {
	res, err := deterministicEngine().Execute(context.Background(), scenarioNodes(),
		map[string]any{"request_data": []any{}}, "response")
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, res.Status)
	assert.Equal(t, []any{}, res.FinalState["result"])
	assert.Empty(t, res.Executions("process"))
	assert.Equal(t, 3, res.RoundsExecuted)
}

func TestExecute_SparseFamilyDeadlocksCollector(t *testing.T) {
	nodes := []node.Node{
		constNode("emit", map[string]any{"v[0]": "a", "v[2]": "c", "v_count": 3}),
		suffixNode("touch", "v", "w", "+"),
		collectNode("collect", "v", "v_count", "all"),
	}
	res, err := deterministicEngine().Execute(context.Background(), nodes, nil, "all")
	require.NoError(t, err)

	assert.Equal(t, StatusDeadlocked, res.Status)
	assert.Equal(t, []string{"emit", "touch[0]", "touch[2]"}, labels(res))
	assert.Equal(t, "c+", res.FinalState["w[2]"])
	assert.Equal(t, []string{"v[1]"}, res.Missing(nodes))
}

// plainCollector declares only requires and outputs, reading every index
// itself.
func plainCollector(id, family, count, to string) node.Node {
	return node.New(id, []string{family, count}, []string{to},
		func(_ context.Context, in *node.Input) (map[string]any, error) {
			items, err := in.Collect(family, count)
			if err != nil {
				return nil, err
			}
			return map[string]any{to: items}, nil
		})
}

func TestExecute_CollectorFromRequirements(t *testing.T) {
	tests := []struct {
		name     string
		data     []any
		expected []any
	}{
		{"three users", []any{"alice", "bob", "charlie"}, []any{"alice (done)", "bob (done)", "charlie (done)"}},
		{"no users", []any{}, []any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes := []node.Node{
				spreadNode("spread", "request_data", "user"),
				suffixNode("process", "user", "processed", " (done)"),
				plainCollector("collect", "processed", "user_count", "result"),
				respondNode("respond", "result", "response"),
			}
			res, err := deterministicEngine().Execute(context.Background(), nodes,
				map[string]any{"request_data": tt.data}, "response")
			require.NoError(t, err)

			assert.Equal(t, StatusSucceeded, res.Status)
			assert.Equal(t, tt.expected, res.FinalState["result"])
			assert.NotContains(t, res.FinalState, "result[0]")
			assert.Len(t, res.Executions("process"), len(tt.data))
			require.Len(t, res.Executions("collect"), 1)
			assert.False(t, res.Executions("collect")[0].HasIndex)
		})
	}
}

func TestExecute_CollectorPairedCount(t *testing.T) {
	nodes := []node.Node{
		constNode("emit", map[string]any{"v[0]": "a", "v[1]": "b", "v_count": 2}),
		plainCollector("collect", "v", "v_count", "all"),
	}
	res, err := deterministicEngine().Execute(context.Background(), nodes, nil, "all")
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, res.Status)
	assert.Equal(t, []any{"a", "b"}, res.FinalState["all"])
	assert.Equal(t, []string{"emit", "collect"}, labels(res))
}

func TestResult_MissingReportsInvalidCount(t *testing.T) {
	nodes := []node.Node{
		constNode("emit", map[string]any{"v[0]": "a", "v_count": "three"}),
		plainCollector("collect", "v", "v_count", "all"),
	}
	res, err := deterministicEngine().Execute(context.Background(), nodes, nil, "all")
	require.NoError(t, err)

	assert.Equal(t, StatusDeadlocked, res.Status)
	assert.Equal(t, []string{"v_count (invalid count)"}, res.Missing(nodes))
}

func TestExecute_FanOutCardinality(t *testing.T) {
	nodes := []node.Node{
		constNode("emit", map[string]any{
			"a[0]": 1, "a[1]": 2, "a[2]": 3,
			"b[0]": 10, "b[1]": 20,
		}),
		node.New("sum", []string{"a", "b", "k"}, []string{"s"},
			func(_ context.Context, in *node.Input) (map[string]any, error) {
				a := in.MustValue("a").(int)
				b := in.MustValue("b").(int)
				k := in.MustValue("k").(int)
				return map[string]any{"s": a + b + k}, nil
			}),
	}
	res, err := deterministicEngine().Execute(context.Background(), nodes,
		map[string]any{"k": 100}, "never")
	require.NoError(t, err)

	assert.Equal(t, StatusDeadlocked, res.Status)
	assert.Equal(t, []string{"emit", "sum[0]", "sum[1]"}, labels(res))
	assert.Equal(t, 111, res.FinalState["s[0]"])
	assert.Equal(t, 122, res.FinalState["s[1]"])
	assert.NotContains(t, res.FinalState, "s[2]")
}

func TestExecute_ScalarAndIndexedInvocations(t *testing.T) {
	nodes := []node.Node{
		constNode("emit", map[string]any{"v": "bare", "v[0]": "zero"}),
		suffixNode("echo", "v", "e", "."),
	}
	res, err := deterministicEngine().Execute(context.Background(), nodes, nil, "never")
	require.NoError(t, err)

	assert.Equal(t, []string{"emit", "echo", "echo[0]"}, labels(res))
	assert.Equal(t, "bare.", res.FinalState["e"])
	assert.Equal(t, "zero.", res.FinalState["e[0]"])
}

func TestExecute_IndexedOutputInIndexedModeFails(t *testing.T) {
	nodes := []node.Node{
		constNode("emit", map[string]any{"v[0]": 1}),
		node.New("nested", []string{"v"}, []string{"x"},
			func(context.Context, *node.Input) (map[string]any, error) {
				return map[string]any{"x[0]": 1}, nil
			}),
	}
	res, err := deterministicEngine().Execute(context.Background(), nodes, nil, "never")
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, res.Status)
	assert.True(t, HasCode(res.Err, ErrCodeInvalidOutput))
	assert.True(t, node.IsNodeExecutionError(res.Err))
}

func TestExecute_InvalidOutputName(t *testing.T) {
	nodes := []node.Node{constNode("emit", map[string]any{"a": 1})}
	nodes[0] = node.New("emit", nil, []string{"a"},
		func(context.Context, *node.Input) (map[string]any, error) {
			return map[string]any{"bad name": 1}, nil
		})
	res, err := deterministicEngine().Execute(context.Background(), nodes, nil, "a")
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, res.Status)
	assert.True(t, HasCode(res.Err, ErrCodeInvalidOutput))
}

func TestExecute_RejectsInvalidWorkflow(t *testing.T) {
	ok := constNode("a", map[string]any{"a": 1})

	tests := []struct {
		name     string
		nodes    []node.Node
		data     map[string]any
		terminal string
	}{
		{"nil node", []node.Node{nil}, nil, "a"},
		{"empty id", []node.Node{constNode("", nil)}, nil, "a"},
		{"duplicate id", []node.Node{ok, constNode("a", nil)}, nil, "a"},
		{"empty terminal", []node.Node{ok}, nil, ""},
		{"invalid terminal", []node.Node{ok}, nil, "a["},
		{"indexed initial data", []node.Node{ok}, map[string]any{"x[0]": 1}, "a"},
		{"invalid initial data", []node.Node{ok}, map[string]any{"x y": 1}, "a"},
		{"invalid requirement", []node.Node{suffixNode("s", "x[0]", "y", "")}, nil, "y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := New().Execute(context.Background(), tt.nodes, tt.data, tt.terminal)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, IsInvalidWorkflow(err), "got %v", err)
		})
	}
}

func TestExecute_DoesNotMutateInitialData(t *testing.T) {
	data := map[string]any{"request_data": []any{"a", "b"}}
	_, err := New().Execute(context.Background(), scenarioNodes(), data, "response")
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"request_data": []any{"a", "b"}}, data)
}

func TestExecute_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	res, err := deterministicEngine(WithLogger(logger)).Execute(context.Background(),
		scenarioNodes(), map[string]any{"request_data": []any{"a"}}, "response")
	require.NoError(t, err)
	require.Equal(t, StatusSucceeded, res.Status)

	out := buf.String()
	assert.Contains(t, out, `"msg":"run starting"`)
	assert.Contains(t, out, `"msg":"node executed"`)
	assert.Contains(t, out, `"msg":"run finished"`)
	assert.Contains(t, out, `"run_id":"run-test"`)
	assert.Equal(t, 1, strings.Count(out, `"msg":"run finished"`))
}

func TestExecute_UndeclaredOutputIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	nodes := []node.Node{
		node.New("sneaky", nil, []string{"a"},
			func(context.Context, *node.Input) (map[string]any, error) {
				return map[string]any{"a": 1, "extra": 2}, nil
			}),
	}
	res, err := New(WithLogger(logger)).Execute(context.Background(), nodes, nil, "a")
	require.NoError(t, err)

	assert.Equal(t, 2, res.FinalState["extra"])
	assert.Contains(t, buf.String(), `"msg":"undeclared output"`)
}

func TestExecuteWorkflow(t *testing.T) {
	res, err := ExecuteWorkflow(context.Background(), scenarioNodes(),
		map[string]any{"request_data": []any{"solo"}}, "response",
		WithMaxRounds(10))
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, res.Status)
	assert.True(t, res.Succeeded())
	assert.False(t, res.FinishedAt.Before(res.StartedAt))
}

func TestNew_Defaults(t *testing.T) {
	cfg := New().Config()
	assert.Equal(t, DefaultMaxRounds, cfg.MaxRounds)
	assert.Zero(t, cfg.InvocationTimeout)
	assert.False(t, cfg.StrictOutputs)

	cfg = New(WithMaxRounds(5), WithInvocationTimeout(time.Second), WithStrictOutputs(true)).Config()
	assert.Equal(t, Config{MaxRounds: 5, InvocationTimeout: time.Second, StrictOutputs: true}, cfg)
}
