package engine

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/parcelflow/internal/node"
	"github.com/roach88/parcelflow/internal/parcel"
)

// DefaultMaxRounds is the default round budget per run.
const DefaultMaxRounds = 1000

// Engine executes workflows: a node list, initial data and a terminal name.
//
// An Engine holds configuration only. Each Execute call owns its own state,
// ledger and clock, so one Engine may execute many workflows, including from
// several goroutines at once.
type Engine struct {
	maxRounds int
	timeout   time.Duration
	strict    bool
	logger    *slog.Logger
	now       func() time.Time
	runIDs    RunIDGenerator
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxRounds sets the round budget per run.
//
// Default: 1000 rounds (DefaultMaxRounds).
// Use WithMaxRounds(3) for testing budget enforcement.
func WithMaxRounds(n int) Option {
	return func(e *Engine) {
		e.maxRounds = n
	}
}

// WithInvocationTimeout bounds every single node invocation. Zero disables
// the limit.
func WithInvocationTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithStrictOutputs makes a write-once conflict fail the round instead of
// dropping the later write.
func WithStrictOutputs(strict bool) Option {
	return func(e *Engine) {
		e.strict = strict
	}
}

// WithLogger routes run logs to l. Without it the engine logs nowhere.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithNow replaces the wall clock used for parcel timestamps and durations.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithRunIDGenerator replaces the UUIDv7 run ID generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.runIDs = g
		}
	}
}

// New creates an Engine with the given options.
func New(opts ...Option) *Engine {
	e := &Engine{
		maxRounds: DefaultMaxRounds,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
		runIDs:    UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config is a read-only snapshot of an Engine's settings.
type Config struct {
	MaxRounds         int
	InvocationTimeout time.Duration
	StrictOutputs     bool
}

// Config returns the engine's settings.
func (e *Engine) Config() Config {
	return Config{
		MaxRounds:         e.maxRounds,
		InvocationTimeout: e.timeout,
		StrictOutputs:     e.strict,
	}
}

// ExecuteWorkflow runs one workflow on a fresh Engine built from opts.
func ExecuteWorkflow(
	ctx context.Context,
	nodes []node.Node,
	initialData map[string]any,
	terminal string,
	opts ...Option,
) (*Result, error) {
	return New(opts...).Execute(ctx, nodes, initialData, terminal)
}

// Execute runs rounds until terminal is bound, no invocation is eligible, a
// node fails or the round budget is exhausted.
//
// The nodes slice order is the registration order; it fixes execution order
// inside a round and resolves write-once conflicts. The slice is copied.
//
// The returned error is non-nil only when the input is rejected before the
// first round (see IsInvalidWorkflow). Every other outcome, including node
// failure, is reported through Result.Status and Result.Err.
func (e *Engine) Execute(
	ctx context.Context,
	nodes []node.Node,
	initialData map[string]any,
	terminal string,
) (*Result, error) {
	if err := validateNodes(nodes); err != nil {
		return nil, err
	}
	terminalName, err := parcel.ParseName(terminal)
	if err != nil {
		return nil, invalidWorkflow("terminal name %q: %v", terminal, err)
	}

	r := e.newRun(nodes, terminalName)
	if err := r.seed(initialData); err != nil {
		return nil, err
	}

	r.loop(ctx)
	return r.result, nil
}

func validateNodes(nodes []node.Node) error {
	seen := make(map[string]struct{}, len(nodes))
	for i, n := range nodes {
		if n == nil {
			return invalidWorkflow("node %d is nil", i)
		}
		id := n.ID()
		if id == "" {
			return invalidWorkflow("node %d has an empty ID", i)
		}
		if _, dup := seen[id]; dup {
			return invalidWorkflow("duplicate node ID %q", id)
		}
		seen[id] = struct{}{}

		for _, req := range n.Requires() {
			if !parcel.IsBase(req) {
				return invalidWorkflow("node %s requires invalid name %q", id, req)
			}
		}
		for _, g := range node.GathersOf(n) {
			if !parcel.IsBase(g.Family) || !parcel.IsBase(g.Count) {
				return invalidWorkflow("node %s gathers invalid names %q/%q", id, g.Family, g.Count)
			}
		}
	}
	return nil
}
