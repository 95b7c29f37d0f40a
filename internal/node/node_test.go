package node

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/parcelflow/internal/parcel"
)

func buildState(t *testing.T, values map[string]any) *parcel.Set {
	t.Helper()
	s := parcel.NewSet()
	for name, v := range values {
		require.NoError(t, s.Bind(parcel.New(parcel.MustParseName(name), v)))
	}
	return s
}

func TestFunc_Contract(t *testing.T) {
	requires := []string{"a", "b"}
	n := New("join", requires, []string{"out"}, func(ctx context.Context, in *Input) (map[string]any, error) {
		return map[string]any{"out": fmt.Sprintf("%v+%v", in.MustValue("a"), in.MustValue("b"))}, nil
	})
	requires[0] = "mutated"

	assert.Equal(t, "join", n.ID())
	assert.Equal(t, []string{"a", "b"}, n.Requires(), "requires must be copied")
	assert.Equal(t, []string{"out"}, n.Outputs())
	assert.Nil(t, GathersOf(n))

	out, err := n.Run(context.Background(), NewInput(buildState(t, map[string]any{"a": 1, "b": 2})))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"out": "1+2"}, out)
}

func TestWithGather_AddsRequirements(t *testing.T) {
	n := New("collect", nil, []string{"result"}, nil, WithGather("processed", "user_count"))

	assert.Equal(t, []string{"processed", "user_count"}, n.Requires())
	assert.Equal(t, []Gather{{Family: "processed", Count: "user_count"}}, GathersOf(n))

	again := New("collect", []string{"processed"}, nil, nil, WithGather("processed", "user_count"))
	assert.Equal(t, []string{"processed", "user_count"}, again.Requires(), "no duplicates")
}

func TestIsCollector(t *testing.T) {
	assert.False(t, IsCollector(New("process", []string{"user"}, nil, nil)))
	assert.True(t, IsCollector(New("collect", []string{"processed", "user_count"}, nil, nil)))
	assert.True(t, IsCollector(New("collect", nil, nil, nil, WithGather("processed", "size"))))
	assert.False(t, IsCollector(New("odd", []string{"_count"}, nil, nil)), "suffix alone is not a count name")
}

func TestGathersIn(t *testing.T) {
	tests := []struct {
		name     string
		node     Node
		state    map[string]any
		expected []Gather
	}{
		{
			name:     "declared",
			node:     New("c", nil, nil, nil, WithGather("processed", "size")),
			expected: []Gather{{Family: "processed", Count: "size"}},
		},
		{
			name:     "paired by convention",
			node:     New("c", []string{"user", "user_count"}, nil, nil),
			expected: []Gather{{Family: "user", Count: "user_count"}},
		},
		{
			name:     "unpaired count gathers the unbound requirement",
			node:     New("c", []string{"processed", "user_count"}, nil, nil),
			state:    map[string]any{"processed[0]": "a", "user_count": 1},
			expected: []Gather{{Family: "processed", Count: "user_count"}},
		},
		{
			name:     "bare requirements are not gathered",
			node:     New("c", []string{"label", "processed", "user_count"}, nil, nil),
			state:    map[string]any{"label": "x", "user_count": 0},
			expected: []Gather{{Family: "processed", Count: "user_count"}},
		},
		{
			name: "not a collector",
			node: New("p", []string{"user"}, nil, nil),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GathersIn(buildState(t, tt.state), tt.node))
		})
	}
}

func TestInput_ScalarResolution(t *testing.T) {
	state := buildState(t, map[string]any{"a": "bare", "a[0]": "indexed"})
	in := NewInput(state)

	_, indexed := in.Index()
	assert.False(t, indexed)
	assert.Equal(t, parcel.Bare("a"), in.Resolve("a"))
	assert.Equal(t, "bare", in.MustValue("a"))
}

func TestInput_IndexedResolution(t *testing.T) {
	state := buildState(t, map[string]any{
		"user[0]": "alice",
		"user[1]": "bob",
		"prefix":  ">",
	})
	in := NewIndexedInput(state, 1)

	i, indexed := in.Index()
	require.True(t, indexed)
	assert.Equal(t, 1, i)

	assert.Equal(t, parcel.At("user", 1), in.Resolve("user"))
	assert.Equal(t, "bob", in.MustValue("user"))

	// No family for prefix: falls back to the bare name.
	assert.Equal(t, parcel.Bare("prefix"), in.Resolve("prefix"))
	assert.Equal(t, ">", in.MustValue("prefix"))
}

func TestInput_IndexedNoFallbackWhenFamilyExists(t *testing.T) {
	state := buildState(t, map[string]any{
		"user":    "bare user",
		"user[0]": "alice",
	})
	in := NewIndexedInput(state, 3)

	assert.False(t, in.Has("user"), "family exists, so user[3] is required and bare is not used")
	_, ok := in.Value("user")
	assert.False(t, ok)
	assert.Panics(t, func() { in.MustValue("user") })
}

func TestInput_FalsyValuesArePresent(t *testing.T) {
	in := NewInput(buildState(t, map[string]any{"zero": 0, "empty": ""}))

	assert.True(t, in.Has("zero"))
	assert.True(t, in.Has("empty"))
	v, ok := in.Value("zero")
	assert.True(t, ok)
	assert.Equal(t, 0, v)
}

func TestInput_Collect(t *testing.T) {
	in := NewInput(buildState(t, map[string]any{
		"processed[1]": "b",
		"processed[0]": "a",
		"processed[2]": "c",
		"user_count":   3,
	}))

	items, err := in.Collect("processed", "user_count")
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b", "c"}, items)
	assert.Equal(t, []int{0, 1, 2}, in.Indices("processed"))
}

func TestInput_CollectEmpty(t *testing.T) {
	in := NewInput(buildState(t, map[string]any{"user_count": 0}))

	items, err := in.Collect("processed", "user_count")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestInput_CollectErrors(t *testing.T) {
	sparse := NewInput(buildState(t, map[string]any{
		"processed[0]": "a",
		"processed[2]": "c",
		"user_count":   3,
	}))
	_, err := sparse.Collect("processed", "user_count")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index 1 of 3 is missing")

	noCount := NewInput(buildState(t, map[string]any{"processed[0]": "a"}))
	_, err = noCount.Collect("processed", "user_count")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not bound")

	badCount := NewInput(buildState(t, map[string]any{"user_count": "three"}))
	_, err = badCount.Collect("processed", "user_count")
	require.Error(t, err)
}

func TestInput_Lookup(t *testing.T) {
	in := NewIndexedInput(buildState(t, map[string]any{"x[4]": true}), 0)

	p, ok := in.Lookup(parcel.At("x", 4))
	require.True(t, ok)
	assert.Equal(t, true, p.Value())
}

func TestNodeExecutionError(t *testing.T) {
	cause := errors.New("boom")

	scalar := &NodeExecutionError{NodeID: "validate", Cause: cause}
	assert.Equal(t, "node validate failed: boom", scalar.Error())

	indexed := &NodeExecutionError{NodeID: "process", Index: 2, HasIndex: true, Cause: cause}
	assert.Equal(t, "node process[2] failed: boom", indexed.Error())

	wrapped := fmt.Errorf("round 3: %w", indexed)
	assert.True(t, IsNodeExecutionError(wrapped))
	assert.ErrorIs(t, wrapped, cause)
	assert.False(t, IsNodeExecutionError(cause))
}
