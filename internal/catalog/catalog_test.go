package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/parcelflow/internal/engine"
	"github.com/roach88/parcelflow/internal/nodes"
)

func writeCUE(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
}

func TestLoadBuiltin(t *testing.T) {
	c, err := LoadBuiltin()
	require.NoError(t, err)

	assert.Equal(t, []string{"array", "batch", "parallel", "simple"}, c.Names())
	for _, wf := range c.List() {
		assert.NotEmpty(t, wf.Description, wf.Name)
		assert.Equal(t, "response", wf.Terminal, wf.Name)
		assert.True(t, wf.Pos.IsValid(), wf.Name)
	}
}

func TestLoadBuiltin_ArrayDefinition(t *testing.T) {
	c, err := LoadBuiltin()
	require.NoError(t, err)

	wf, ok := c.Get("array")
	require.True(t, ok)

	assert.Equal(t, map[string]any{
		"request_data": []any{"alice", "bob", "charlie", "diana"},
	}, wf.Data)

	var ids []string
	for _, def := range wf.Nodes {
		ids = append(ids, def.ID)
	}
	assert.Equal(t, []string{"request", "spread", "process", "collect", "response"}, ids)
	assert.Equal(t, nodes.Params{"family": "processed", "count": "user_count", "output": "result"}, wf.Nodes[3].Params)
	assert.Nil(t, wf.Nodes[0].Params)
}

func TestBuiltinWorkflowsRun(t *testing.T) {
	c, err := LoadBuiltin()
	require.NoError(t, err)

	tests := []struct {
		name string
		want any
	}{
		{"simple", "DATA IS VALID"},
		{"parallel", "DATA IS VALID"},
		{"array", []any{"PROCESSED: ALICE", "PROCESSED: BOB", "PROCESSED: CHARLIE", "PROCESSED: DIANA"}},
		{"batch", []any{"alice (done)", "bob (done)", "charlie (done)"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf, ok := c.Get(tt.name)
			require.True(t, ok)

			ns, err := wf.Build(nodes.Default())
			require.NoError(t, err)

			res, err := engine.ExecuteWorkflow(context.Background(), ns, wf.InitialData(nil), wf.Terminal)
			require.NoError(t, err)
			require.Equal(t, engine.StatusSucceeded, res.Status, "err: %v", res.Err)

			assert.Equal(t, map[string]any{"status": "success", "data": tt.want}, res.FinalState["response"])
		})
	}
}

func TestParallelWorkflow_ValidateAndLogShareRound(t *testing.T) {
	c, err := LoadBuiltin()
	require.NoError(t, err)
	wf, _ := c.Get("parallel")
	ns, err := wf.Build(nodes.Default())
	require.NoError(t, err)

	res, err := engine.ExecuteWorkflow(context.Background(), ns, wf.InitialData(nil), wf.Terminal)
	require.NoError(t, err)

	validate := res.Executions("validate")
	log := res.Executions("log")
	require.Len(t, validate, 1)
	require.Len(t, log, 1)
	assert.Equal(t, validate[0].Round, log[0].Round)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "greet.cue", `
package workflows

workflow: greet: {
	terminal: "response"
	data: request_data: "hi"
	nodes: [
		{id: "validate", kind: "validate"},
		{id: "response", kind: "response", params: input: "validation_result"},
	]
}
`)

	c, err := LoadDir(dir)
	require.NoError(t, err)

	wf, ok := c.Get("greet")
	require.True(t, ok)
	assert.Equal(t, "", wf.Description, "description defaults to empty")
	assert.Equal(t, map[string]any{"request_data": "hi"}, wf.Data)
	assert.Len(t, wf.Nodes, 2)
	assert.Equal(t, "greet.cue", filepath.Base(wf.Pos.Filename()))
}

func TestLoadDir_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{
			name: "unknown field",
			src: `package workflows
workflow: bad: {
	terminl: "response"
	terminal: "response"
	nodes: [{id: "a", kind: "request"}]
}`,
			wantErr: "not allowed",
		},
		{
			name: "missing terminal",
			src: `package workflows
workflow: bad: nodes: [{id: "a", kind: "request"}]
`,
			wantErr: "terminal is required",
		},
		{
			name: "no nodes",
			src: `package workflows
workflow: bad: {terminal: "x", nodes: []}
`,
			wantErr: "at least one node is required",
		},
		{
			name: "duplicate node id",
			src: `package workflows
workflow: bad: {
	terminal: "x"
	nodes: [{id: "a", kind: "request"}, {id: "a", kind: "log"}]
}`,
			wantErr: `duplicate node id "a"`,
		},
		{
			name: "indexed data name",
			src: `package workflows
workflow: bad: {
	terminal: "x"
	data: "user[0]": "alice"
	nodes: [{id: "a", kind: "request"}]
}`,
			wantErr: "must not be indexed",
		},
		{
			name: "invalid node id",
			src: `package workflows
workflow: bad: {
	terminal: "x"
	nodes: [{id: "a b", kind: "request"}]
}`,
			wantErr: "id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeCUE(t, dir, "bad.cue", tt.src)

			_, err := LoadDir(dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadDir_PositionInError(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "bad.cue", `package workflows
workflow: bad: {
	terminal: 42
	nodes: [{id: "a", kind: "request"}]
}`)

	_, err := LoadDir(dir)
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.Pos.IsValid())
	assert.Contains(t, err.Error(), "bad.cue")
}

func TestLoadDir_NoFiles(t *testing.T) {
	_, err := LoadDir(t.TempDir())
	assert.ErrorContains(t, err, "no CUE files found")
}

func TestLoadDir_Missing(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestCatalog_Merge(t *testing.T) {
	builtin, err := LoadBuiltin()
	require.NoError(t, err)

	dir := t.TempDir()
	writeCUE(t, dir, "extra.cue", `package workflows
workflow: extra: {terminal: "request_received", nodes: [{id: "r", kind: "request"}]}
`)
	extra, err := LoadDir(dir)
	require.NoError(t, err)

	require.NoError(t, builtin.Merge(extra))
	assert.Equal(t, 5, builtin.Len())

	again, err := LoadDir(dir)
	require.NoError(t, err)
	assert.ErrorContains(t, builtin.Merge(again), `workflow "extra" is defined twice`)
}

func TestBuild_UnknownKind(t *testing.T) {
	wf := &Workflow{
		Name:     "x",
		Terminal: "y",
		Nodes:    []NodeDef{{ID: "a", Kind: "teleport"}},
	}
	_, err := wf.Build(nodes.Default())
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "nodes.a", ce.Field)
	assert.ErrorIs(t, err, nodes.ErrUnknownKind)
}

func TestInitialData_Overrides(t *testing.T) {
	wf := &Workflow{Data: map[string]any{"a": 1, "b": 2}}

	got := wf.InitialData(map[string]any{"b": 3, "c": 4})

	assert.Equal(t, map[string]any{"a": 1, "b": 3, "c": 4}, got)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, wf.Data, "workflow data must not change")
}
